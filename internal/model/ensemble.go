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
	"fmt"
	"io"
	"gonum.org/v1/gonum/mat"
	"github.com/frantsen/ml-meteorology/internal/dataset"
	"github.com/frantsen/ml-meteorology/internal/dbz"
)

// One independently trained regression model per spatial pixel, indexed by
// pixel position. Created together, normally invoked together.
type Ensemble struct {
	Dim    int
	Models []*PixelModel // Dim*Dim entries
	Params LassoParams
}

// Trains one lasso model per spatial pixel against the shared feature
// matrix and that pixel's label series. The fits share no state and are
// fanned out across maxThreads goroutines; each writes only its own slot,
// collected by pixel index.
func Train(d *dataset.Dataset, p LassoParams, maxThreads int, log io.Writer) *Ensemble {
	x:=d.FeatureMatrix()
	pixels:=d.Pixels()
	if log!=nil {
		fmt.Fprintf(log, "Training %d pixel models on %d samples x %d features, alpha %g, %d threads\n",
			pixels, d.NumSamples(), d.FeatureCols(), p.Alpha, maxThreads)
	}

	dm:=newDesign(x) // shared immutable across all fits
	models:=make([]*PixelModel, pixels)
	if maxThreads<1 { maxThreads=1 }
	limiter:=make(chan bool, maxThreads)
	for pix:=0; pix<pixels; pix++ {
		limiter <- true
		go func(pix int) {
			defer func() { <-limiter }()
			models[pix]=fitLasso(dm, d.LabelSeries(pix), pix, p)
		}(pix)
	}
	for i:=0; i<cap(limiter); i++ { // wait for goroutines to finish
		limiter <- true
	}

	if log!=nil {
		nz, iters:=0, 0
		for _,m:=range models {
			nz+=m.NonZero()
			iters+=m.Iters
		}
		fmt.Fprintf(log, "Trained %d models with %d nonzero coefficients total, %.1f CD sweeps avg\n",
			pixels, nz, float64(iters)/float64(pixels))
	}

	return &Ensemble{Dim: d.Params.Dim, Models: models, Params: p}
}

// Predicts one continuous value per pixel from a single feature vector
func (e *Ensemble) PredictRaw(features []float64) []float64 {
	out:=make([]float64, len(e.Models))
	for i,m:=range e.Models {
		out[i]=m.Predict(features)
	}
	return out
}

// Predicts one quantized reflectivity level per pixel from a single
// feature vector
func (e *Ensemble) Predict(features []float64) []dbz.Level {
	raw:=e.PredictRaw(features)
	levels:=make([]dbz.Level, len(raw))
	for i,v:=range raw {
		levels[i]=dbz.Quantize(v)
	}
	return levels
}

// Runs every pixel model against each row of a (possibly held-out) feature
// matrix, one predicted frame per row
func (e *Ensemble) PredictAll(x *mat.Dense) [][]dbz.Level {
	rows, _:=x.Dims()
	out:=make([][]dbz.Level, rows)
	for i:=0; i<rows; i++ {
		out[i]=e.Predict(x.RawRowView(i))
	}
	return out
}
