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

package model

import (
	"math"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Lasso fitting parameters. Alpha is the L1 regularization strength for the
// objective 1/(2n)*||y - Xw - b||^2 + alpha*||w||_1.
type LassoParams struct {
	Alpha   float64
	MaxIter int
	Tol     float64
}

func NewLassoParams(alpha float64) LassoParams {
	return LassoParams{Alpha: alpha, MaxIter: 1000, Tol: 1e-4}
}

// A sparse linear model for a single spatial pixel. Owns no state beyond
// its fitted parameters; retraining creates a new model.
type PixelModel struct {
	Pixel     int       // spatial pixel index this model predicts
	Intercept float64
	Coef      []float64 // one weight per feature column, mostly zero
	Iters     int       // coordinate descent sweeps until convergence
}

// Predicts one continuous reflectivity value from a feature vector
func (m *PixelModel) Predict(features []float64) float64 {
	return m.Intercept + floats.Dot(m.Coef, features)
}

// Number of nonzero coefficients
func (m *PixelModel) NonZero() int {
	nz:=0
	for _,w:=range m.Coef {
		if w!=0 { nz++ }
	}
	return nz
}

// A feature matrix preprocessed for coordinate descent: mean-centered
// columns stored contiguously, with per-column squared norms. Shared
// read-only across all per-pixel fits.
type design struct {
	n         int         // number of samples
	cols      [][]float64 // centered feature columns
	colMeans  []float64
	colNormSq []float64
}

func newDesign(x *mat.Dense) *design {
	n, d:=x.Dims()
	dm:=&design{
		n:         n,
		cols:      make([][]float64, d),
		colMeans:  make([]float64, d),
		colNormSq: make([]float64, d),
	}
	for j:=0; j<d; j++ {
		col:=make([]float64, n)
		mat.Col(col, j, x)
		mean:=floats.Sum(col)/float64(n)
		for i:=range col {
			col[i]-=mean
		}
		dm.cols[j]=col
		dm.colMeans[j]=mean
		dm.colNormSq[j]=floats.Dot(col, col)
	}
	return dm
}

// Fits one L1-regularized least squares model by cyclic coordinate descent.
// Fully deterministic: coordinates are visited in fixed order and there is
// no randomization anywhere in the procedure.
func fitLasso(dm *design, y []float64, pixel int, p LassoParams) *PixelModel {
	n:=float64(dm.n)
	yMean:=floats.Sum(y)/n

	w:=make([]float64, len(dm.cols))
	r:=make([]float64, dm.n) // residual of the centered problem
	for i:=range r {
		r[i]=y[i]-yMean
	}

	iters:=0
	for iter:=0; iter<p.MaxIter; iter++ {
		iters=iter+1
		maxChange:=0.0
		for j,col:=range dm.cols {
			normSq:=dm.colNormSq[j]
			if normSq==0 { continue } // constant column carries no signal
			wj:=w[j]
			rho:=floats.Dot(col, r) + wj*normSq
			wjNew:=softThreshold(rho, p.Alpha*n)/normSq
			if wjNew!=wj {
				delta:=wjNew-wj
				floats.AddScaled(r, -delta, col)
				w[j]=wjNew
				if c:=math.Abs(delta); c>maxChange { maxChange=c }
			}
		}
		if maxChange<p.Tol { break }
	}

	return &PixelModel{
		Pixel:     pixel,
		Intercept: yMean - floats.Dot(dm.colMeans, w),
		Coef:      w,
		Iters:     iters,
	}
}

// FitLasso fits a single sparse linear model against a feature matrix and
// one label series. Convenience wrapper around the shared-design path the
// ensemble uses.
func FitLasso(x *mat.Dense, y []float64, pixel int, p LassoParams) *PixelModel {
	return fitLasso(newDesign(x), y, pixel, p)
}

func softThreshold(v, lambda float64) float64 {
	switch {
	case v>lambda:
		return v-lambda
	case v< -lambda:
		return v+lambda
	default:
		return 0
	}
}
