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

package frame

import (
	"fmt"
	"github.com/valyala/fastrand"
	"github.com/frantsen/ml-meteorology/internal/qsort"
)

// A single radar snapshot for one station at one point in time, decoded
// into reflectivity levels. Immutable once decoded.
type Frame struct {
	ID       int     // sequential number within the station's sequence, for log output
	Station  string
	FileName string  // original file name, for log output
	Dim      int     // square spatial resolution after resize
	Data     []float32 // decoded reflectivity in dBZ, row-major, len Dim*Dim

	Stats *Stats
}

// Basic statistics on decoded reflectivity data
type Stats struct {
	Min    float32
	Max    float32
	Mean   float32
	Median float32 // approximated by subsampling on large frames
}

// Number of subsamples used for approximate median estimation
const medianSamples=1024

// Calculates basic statistics on the given data. Min, max and mean are
// exact; the median is subsampled on frames larger than medianSamples.
func NewStats(data []float32) *Stats {
	if len(data)==0 { return &Stats{} }
	min, max:=data[0], data[0]
	sum:=float32(0)
	for _,d:=range data {
		if d<min { min=d }
		if d>max { max=d }
		sum+=d
	}

	var median float32
	if len(data)<=medianSamples {
		scratch:=append([]float32(nil), data...)
		median=qsort.QSelectMedianFloat32(scratch)
	} else {
		median=fastApproxMedian(data, make([]float32, medianSamples))
	}

	return &Stats{
		Min:    min,
		Max:    max,
		Mean:   sum/float32(len(data)),
		Median: median,
	}
}

// Calculates fast approximate median of the (presumably large) data by
// subsampling the given number of values and taking the median of that.
// Uses provided samples array as scratchpad
func fastApproxMedian(data []float32, samples []float32) float32 {
	max:=uint32(len(data))
	rng:=fastrand.RNG{}
	for i:=range samples {
		samples[i]=data[rng.Uint32n(max)]
	}
	return qsort.QSelectMedianFloat32(samples)
}

func (s *Stats) String() string {
	return fmt.Sprintf("min %.4g max %.4g mean %.4g median %.4g dBZ", s.Min, s.Max, s.Mean, s.Median)
}
