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

package dataset

import (
	"fmt"
	"io"
	"gonum.org/v1/gonum/mat"
	"github.com/frantsen/ml-meteorology/internal/frame"
)

// Windowing parameters
type Params struct {
	WindowSize           int // frames per feature window
	MaxSamplesPerStation int // cap on samples contributed by one station
	FrameDelay           int // spacing between window end and label frame
	Dim                  int // square spatial resolution
	MemoryMB             int // memory budget for the feature matrix, 0=no check
}

// One training sample: a window of consecutive frames flattened into a
// feature vector, together with the full label frame that follows it.
// Feature and label travel as one unit, so feature-matrix rows and
// per-pixel label series cannot fall out of alignment.
type Sample struct {
	Station  string
	Offset   int       // window start offset within the station's sequence
	Features []float64 // len WindowSize*Dim*Dim, frames concatenated in time order
	Labels   []float64 // len Dim*Dim, the frame at Offset+WindowSize+FrameDelay
}

// A windowed dataset over one or more station frame sequences. Samples are
// kept in stable global order: stations in insertion order, window offsets
// ascending within a station.
type Dataset struct {
	Params  Params
	Samples []*Sample
}

func New(p Params) *Dataset {
	return &Dataset{Params: p}
}

// Builds a dataset by loading each station's frame sequence and windowing
// it. Loading failures abort the build.
func Build(stations []string, opt frame.LoadOptions, p Params) (*Dataset, error) {
	d:=New(p)
	for _,station:=range stations {
		frames, err:=frame.LoadStation(station, opt)
		if err!=nil { return nil, err }
		n, err:=d.AddStation(station, frames)
		if err!=nil { return nil, err }
		if opt.Log!=nil {
			fmt.Fprintf(opt.Log, "%s: %d frames yield %d samples (window %d, delay %d, cap %d)\n",
				station, len(frames), n, p.WindowSize, p.FrameDelay, p.MaxSamplesPerStation)
		}
	}
	if len(d.Samples)==0 {
		return nil, fmt.Errorf("no usable samples from %d stations", len(stations))
	}
	return d, nil
}

// Slides the window over one station's frame sequence and appends the
// resulting samples. The station contributes
// min(MaxSamplesPerStation, frames - WindowSize - FrameDelay - 1) samples;
// zero or fewer usable frames contribute nothing and are not an error.
func (d *Dataset) AddStation(station string, frames []*frame.Frame) (int, error) {
	p:=d.Params
	pixels:=p.Dim*p.Dim
	for _,f:=range frames {
		if len(f.Data)!=pixels {
			return 0, fmt.Errorf("%s frame %d has %d pixels; want %d", station, f.ID, len(f.Data), pixels)
		}
	}

	usable:=len(frames) - p.WindowSize - p.FrameDelay - 1
	if usable>p.MaxSamplesPerStation { usable=p.MaxSamplesPerStation }
	if usable<=0 { return 0, nil }

	for i:=0; i<usable; i++ {
		features:=make([]float64, 0, p.WindowSize*pixels)
		for w:=0; w<p.WindowSize; w++ {
			for _,v:=range frames[i+w].Data {
				features=append(features, float64(v))
			}
		}
		labels:=make([]float64, pixels)
		for j,v:=range frames[i+p.WindowSize+p.FrameDelay].Data {
			labels[j]=float64(v)
		}
		d.Samples=append(d.Samples, &Sample{
			Station:  station,
			Offset:   i,
			Features: features,
			Labels:   labels,
		})
	}
	return usable, nil
}

func (d *Dataset) NumSamples() int  { return len(d.Samples) }
func (d *Dataset) FeatureCols() int { return d.Params.WindowSize*d.Params.Dim*d.Params.Dim }
func (d *Dataset) Pixels() int      { return d.Params.Dim*d.Params.Dim }

// Assembles the shared feature matrix, one row per sample in global order
func (d *Dataset) FeatureMatrix() *mat.Dense {
	rows, cols:=d.NumSamples(), d.FeatureCols()
	m:=mat.NewDense(rows, cols, nil)
	for i,s:=range d.Samples {
		m.SetRow(i, s.Features)
	}
	return m
}

// Extracts the label series for spatial pixel p, aligned by index to the
// feature-matrix rows
func (d *Dataset) LabelSeries(p int) []float64 {
	series:=make([]float64, len(d.Samples))
	for i,s:=range d.Samples {
		series[i]=s.Labels[p]
	}
	return series
}

// Estimated feature-matrix size in MiB
func (d *Dataset) FeatureMiB() int {
	return d.NumSamples()*d.FeatureCols()*8/(1024*1024)
}

// Warns when the feature matrix exceeds the configured memory budget
func (d *Dataset) CheckMemory(log io.Writer) {
	if d.Params.MemoryMB<=0 || log==nil { return }
	if mib:=d.FeatureMiB(); mib>d.Params.MemoryMB {
		fmt.Fprintf(log, "WARNING feature matrix needs ~%d MiB, budget is %d MiB\n", mib, d.Params.MemoryMB)
	}
}

// Debugging name for feature column j, in the {frameOffset}:{row},{col}
// convention (frame 0-indexed, row and column 1-indexed). Cosmetic only;
// nothing depends on it beyond human inspection.
func (d *Dataset) ColumnName(j int) string {
	pixels:=d.Pixels()
	f:=j/pixels
	p:=j%pixels
	return fmt.Sprintf("%d:%d,%d", f, p/d.Params.Dim+1, p%d.Params.Dim+1)
}
