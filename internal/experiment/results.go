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

package experiment

import (
	"encoding/csv"
	"os"
	"strconv"
)

// WriteSweepCSV persists the error-vs-training-size curve as a CSV table
// for external inspection and plotting
func WriteSweepCSV(points []SweepPoint, fileName string) error {
	file, err:=os.Create(fileName)
	if err!=nil { return err }
	defer file.Close()

	w:=csv.NewWriter(file)
	defer w.Flush()

	if err:=w.Write([]string{"requestedSamples", "trainedSamples", "mse", "errPerLen"}); err!=nil {
		return err
	}
	for _,p:=range points {
		record:=[]string{
			strconv.Itoa(p.Requested),
			strconv.Itoa(p.Trained),
			strconv.FormatFloat(p.Error.MSE, 'g', -1, 64),
			strconv.FormatFloat(p.Error.ErrPerLen, 'g', -1, 64),
		}
		if err:=w.Write(record); err!=nil { return err }
	}
	return nil
}
