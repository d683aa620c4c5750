// Copyright (C) 2021 the ml-meteorology authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package eval

import (
	"fmt"
	"math"
	"gonum.org/v1/gonum/floats"
)

// Aggregate error between a predicted and an actual reflectivity vector.
// ErrPerLen is sqrt(sum of squared differences)/length -- the division
// happens outside the square root, so this is NOT the usual RMSE. Preserved
// under this name for comparability with historical results.
type Result struct {
	MSE       float64
	ErrPerLen float64
}

// Evaluate computes aggregate error metrics between two equal-length
// reflectivity vectors. Unequal lengths are a precondition violation.
func Evaluate(predicted, actual []float64) (Result, error) {
	if len(predicted)!=len(actual) {
		return Result{}, fmt.Errorf("length mismatch: %d predicted vs %d actual", len(predicted), len(actual))
	}
	if len(predicted)==0 {
		return Result{}, fmt.Errorf("empty vectors")
	}

	diff:=make([]float64, len(predicted))
	floats.SubTo(diff, predicted, actual)
	sumSq:=floats.Dot(diff, diff)

	n:=float64(len(predicted))
	return Result{
		MSE:       sumSq/n,
		ErrPerLen: math.Sqrt(sumSq)/n,
	}, nil
}

func (r Result) String() string {
	return fmt.Sprintf("mse %.4g errPerLen %.4g", r.MSE, r.ErrPerLen)
}
