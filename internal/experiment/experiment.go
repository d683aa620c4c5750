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
	"fmt"
	"image"
	"io"
	"runtime"
	"github.com/pbnjay/memory"
	"github.com/frantsen/ml-meteorology/internal/dataset"
	"github.com/frantsen/ml-meteorology/internal/dbz"
	"github.com/frantsen/ml-meteorology/internal/eval"
	"github.com/frantsen/ml-meteorology/internal/frame"
	"github.com/frantsen/ml-meteorology/internal/model"
	"github.com/frantsen/ml-meteorology/internal/recon"
)

// An execution context for pipeline runs
type Context struct {
	Log        io.Writer
	MemoryMB   int // memory.TotalMemory()/1024/1024
	MaxThreads int
}

func NewContext(log io.Writer) *Context {
	return &Context{
		Log:        log,
		MemoryMB:   int(memory.TotalMemory()/1024/1024),
		MaxThreads: runtime.GOMAXPROCS(0),
	}
}

// Parameters for one end-to-end pipeline run
type Config struct {
	DataDir     string
	Product     string
	Stations    []string // training stations
	Holdout     string   // held-out station for prediction and scoring
	HoldoutIdx  int      // sample index within the holdout sequence, -1 = last
	Dim         int
	WindowSize  int
	MaxSamples  int // per training station
	FrameDelay  int
	SkipFirst   bool
	SavePattern string // optional resized-frame persistence, %d = frame ID
	Lasso       model.LassoParams
}

func (cfg Config) loadOptions(log io.Writer) frame.LoadOptions {
	return frame.LoadOptions{
		Dir:         cfg.DataDir,
		Product:     cfg.Product,
		Dim:         cfg.Dim,
		SkipFirst:   cfg.SkipFirst,
		SavePattern: cfg.SavePattern,
		Log:         log,
	}
}

func (cfg Config) params(memoryMB int) dataset.Params {
	return dataset.Params{
		WindowSize:           cfg.WindowSize,
		MaxSamplesPerStation: cfg.MaxSamples,
		FrameDelay:           cfg.FrameDelay,
		Dim:                  cfg.Dim,
		MemoryMB:             memoryMB,
	}
}

// The outcome of one end-to-end run against the held-out frame
type Result struct {
	TrainSamples int
	Predicted    []dbz.Level
	Actual       []float64
	Error        eval.Result
	Image        *image.RGBA // reconstructed prediction
	ActualImage  *image.RGBA // reconstructed ground truth, for side-by-side inspection
}

// Run executes the full pipeline once: load the training stations, build
// the windowed dataset, train the per-pixel ensemble, predict one held-out
// frame, score it, and reconstruct both prediction and truth as images.
func Run(cfg Config, c *Context) (*Result, error) {
	ds, err:=dataset.Build(cfg.Stations, cfg.loadOptions(c.Log), cfg.params(c.MemoryMB))
	if err!=nil { return nil, err }
	ds.CheckMemory(c.Log)

	ens:=model.Train(ds, cfg.Lasso, c.MaxThreads, c.Log)

	// window the held-out station with no sample cap; prediction target is
	// one of its samples, by default the most recent
	holdOpt:=cfg.loadOptions(c.Log)
	holdOpt.SavePattern="" // persistence applies to training frames only
	holdFrames, err:=frame.LoadStation(cfg.Holdout, holdOpt)
	if err!=nil { return nil, err }
	holdParams:=cfg.params(0)
	holdParams.MaxSamplesPerStation=len(holdFrames)
	hold:=dataset.New(holdParams)
	if _, err:=hold.AddStation(cfg.Holdout, holdFrames); err!=nil { return nil, err }
	if hold.NumSamples()==0 {
		return nil, fmt.Errorf("holdout station %s yields no usable samples", cfg.Holdout)
	}
	idx:=cfg.HoldoutIdx
	if idx<0 || idx>=hold.NumSamples() {
		idx=hold.NumSamples()-1
	}
	target:=hold.Samples[idx]

	predicted:=ens.Predict(target.Features)
	predFloat:=make([]float64, len(predicted))
	for i,l:=range predicted {
		predFloat[i]=float64(l)
	}
	errStats, err:=eval.Evaluate(predFloat, target.Labels)
	if err!=nil { return nil, err }
	fmt.Fprintf(c.Log, "Holdout %s sample %d: %v\n", cfg.Holdout, idx, errStats)

	img, err:=recon.Reconstruct(predicted, cfg.Dim)
	if err!=nil { return nil, err }
	actualLevels:=make([]dbz.Level, len(target.Labels))
	for i,v:=range target.Labels {
		actualLevels[i]=dbz.Quantize(v)
	}
	actualImg, err:=recon.Reconstruct(actualLevels, cfg.Dim)
	if err!=nil { return nil, err }

	return &Result{
		TrainSamples: ds.NumSamples(),
		Predicted:    predicted,
		Actual:       target.Labels,
		Error:        errStats,
		Image:        img,
		ActualImage:  actualImg,
	}, nil
}

// One point on the error-vs-training-size curve
type SweepPoint struct {
	Requested int // requested per-station sample count
	Trained   int // samples actually available after clamping
	Error     eval.Result
}

// Sweep repeats the full pipeline for each requested training-sample count
// and collects one point per count, in input order. No caching between
// iterations: every run reloads and retrains from the raw frames.
func Sweep(cfg Config, counts []int, c *Context) ([]SweepPoint, error) {
	points:=make([]SweepPoint, 0, len(counts))
	for _,count:=range counts {
		runCfg:=cfg
		runCfg.MaxSamples=count
		fmt.Fprintf(c.Log, "\nSweep: %d samples per station\n", count)
		res, err:=Run(runCfg, c)
		if err!=nil { return nil, fmt.Errorf("sweep at %d samples: %s", count, err.Error()) }
		points=append(points, SweepPoint{Requested: count, Trained: res.TrainSamples, Error: res.Error})
	}
	return points, nil
}
