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

package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"strconv"
	"strings"
	"time"
	"github.com/frantsen/ml-meteorology/internal/experiment"
	"github.com/frantsen/ml-meteorology/internal/frame"
	"github.com/frantsen/ml-meteorology/internal/model"
)

const version = "0.1.0"

var cpuprofile = flag.String("cpuprofile", "", "write cpu profile to `file`")
var memprofile = flag.String("memprofile", "", "write memory profile to `file`")

var dir     = flag.String("dir", "data", "radar frame archive root `directory`, laid out as dir/station/product/")
var product = flag.String("product", "cmax", "radar product `type` subdirectory to load")
var stations= flag.String("stations", "", "comma-separated training station identifiers")
var holdout = flag.String("holdout", "", "held-out `station` to predict and score")
var holdoutIdx = flag.Int64("holdoutIdx", -1, "sample index within the held-out sequence, -1=most recent")

var dim     = flag.Int64("dim", 100, "target square resolution in pixels, frames are resized to dim x dim")
var window  = flag.Int64("window", 2, "number of consecutive frames per feature window")
var samples = flag.Int64("samples", 50, "maximum training samples per station")
var delay   = flag.Int64("delay", 0, "frame spacing between window end and label frame")
var skipFirst = flag.Int64("skipFirst", 1, "1=skip the first listed entry per station (non-data stub), 0=keep it")

var alpha   = flag.Float64("alpha", 1.0, "lasso L1 regularization strength")
var maxIter = flag.Int64("maxIter", 1000, "maximum coordinate descent sweeps per pixel model")

var out       = flag.String("out", "prediction.png", "save reconstructed prediction to `file`")
var actualOut = flag.String("actual", "", "save reconstructed ground truth to `file` for side-by-side comparison")
var resized   = flag.String("resized", "", "save resized training frames with given filename pattern, e.g. `resized%04d.png`")
var sweepOut  = flag.String("sweepOut", "sweep.csv", "save sweep results table to `file`")
var counts    = flag.String("counts", "10,20,50,100", "comma-separated per-station sample counts for the sweep")

var logFlag   = flag.String("log", "", "save log output to `file` in addition to stdout")
var maxThreads= flag.Int64("maxThreads", int64(runtime.GOMAXPROCS(0)), "number of threads for per-pixel model training")

func main() {
	start:=time.Now()
	flag.Usage=func() {
		fmt.Printf(`ml-meteorology Copyright (c) 2021 the ml-meteorology authors
This program comes with ABSOLUTELY NO WARRANTY.
This is free software, and you are welcome to redistribute it under certain conditions.
Refer to https://www.gnu.org/licenses/gpl-3.0.en.html for details.

Usage: %s [-flag value] (predict|sweep|legal|version)

Commands:
  predict Train per-pixel models on the given stations and predict one held-out frame
  sweep   Repeat the full pipeline over a range of training-sample counts
  legal   Show license and attribution information
  version Show version information

Flags:
`, os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	// Initialize logging to file in addition to stdout, if selected
	if *logFlag!="" {
		if err:=logAlsoToFile(*logFlag); err!=nil {
			logFatalf("Unable to open logfile '%s'\n", *logFlag)
		}
	}

	// Enable CPU profiling if flagged
	if *cpuprofile!="" {
		f, err:=os.Create(*cpuprofile)
		if err!=nil { logFatalf("Could not create CPU profile: %s\n", err.Error()) }
		defer f.Close()
		if err:=pprof.StartCPUProfile(f); err!=nil {
			logFatalf("Could not start CPU profile: %s\n", err.Error())
		}
		defer pprof.StopCPUProfile()
	}

	args:=flag.Args()
	if len(args)<1 {
		flag.Usage()
		return
	}

	var err error
	switch args[0] {
	case "predict":
		err=cmdPredict()

	case "sweep":
		err=cmdSweep()

	case "legal":
		logPrintf("%s", legal)

	case "version":
		logPrintf("Version %s\n", version)

	case "help", "?":
		flag.Usage()

	default:
		logPrintf("Unknown command '%s'\n\n", args[0])
		flag.Usage()
		return
	}

	logPrintf("\nDone after %v\n", time.Since(start))

	// Store memory profile if flagged
	if *memprofile!="" {
		f, err:=os.Create(*memprofile)
		if err!=nil { logFatalf("Could not create memory profile: %s\n", err.Error()) }
		defer f.Close()
		runtime.GC() // get up-to-date statistics
		if err:=pprof.Lookup("allocs").WriteTo(f, 0); err!=nil {
			logFatalf("Could not write allocation profile: %s\n", err.Error())
		}
	}

	if err!=nil {
		logPrintf("Error: %s\n", err.Error())
		logSync()
		os.Exit(-1)
	}
	logSync()
}

// Assembles the pipeline configuration from command line flags
func configFromFlags() (experiment.Config, error) {
	trainStations:=splitList(*stations)
	if len(trainStations)==0 {
		return experiment.Config{}, fmt.Errorf("no training stations given, use -stations")
	}
	if *holdout=="" {
		return experiment.Config{}, fmt.Errorf("no held-out station given, use -holdout")
	}
	lasso:=model.NewLassoParams(*alpha)
	lasso.MaxIter=int(*maxIter)
	return experiment.Config{
		DataDir:     *dir,
		Product:     *product,
		Stations:    trainStations,
		Holdout:     *holdout,
		HoldoutIdx:  int(*holdoutIdx),
		Dim:         int(*dim),
		WindowSize:  int(*window),
		MaxSamples:  int(*samples),
		FrameDelay:  int(*delay),
		SkipFirst:   *skipFirst!=0,
		SavePattern: *resized,
		Lasso:       lasso,
	}, nil
}

// Perform the predict command
func cmdPredict() error {
	cfg, err:=configFromFlags()
	if err!=nil { return err }

	ctx:=experiment.NewContext(teeWriter{})
	ctx.MaxThreads=int(*maxThreads)

	res, err:=experiment.Run(cfg, ctx)
	if err!=nil { return err }

	logPrintf("Prediction error vs actual frame: %v\n", res.Error)
	logPrintf("Writing prediction PNG to %s ...\n", *out)
	if err:=frame.WritePNGToFile(res.Image, *out); err!=nil { return err }
	if *actualOut!="" {
		logPrintf("Writing ground truth PNG to %s ...\n", *actualOut)
		if err:=frame.WritePNGToFile(res.ActualImage, *actualOut); err!=nil { return err }
	}
	return nil
}

// Perform the sweep command
func cmdSweep() error {
	cfg, err:=configFromFlags()
	if err!=nil { return err }
	sweepCounts, err:=parseCounts(*counts)
	if err!=nil { return err }

	ctx:=experiment.NewContext(teeWriter{})
	ctx.MaxThreads=int(*maxThreads)

	points, err:=experiment.Sweep(cfg, sweepCounts, ctx)
	if err!=nil { return err }

	logPrintf("\n%10s %10s %12s %12s\n", "requested", "trained", "mse", "errPerLen")
	for _,p:=range points {
		logPrintf("%10d %10d %12.4g %12.4g\n", p.Requested, p.Trained, p.Error.MSE, p.Error.ErrPerLen)
	}
	if *sweepOut!="" {
		logPrintf("Writing sweep results to %s ...\n", *sweepOut)
		return experiment.WriteSweepCSV(points, *sweepOut)
	}
	return nil
}

// Splits a comma-separated list, dropping empty entries
func splitList(s string) []string {
	parts:=[]string{}
	for _,p:=range strings.Split(s, ",") {
		p=strings.TrimSpace(p)
		if p!="" { parts=append(parts, p) }
	}
	return parts
}

// Parses a comma-separated list of positive sample counts
func parseCounts(s string) ([]int, error) {
	out:=[]int{}
	for _,p:=range splitList(s) {
		n, err:=strconv.Atoi(p)
		if err!=nil || n<1 {
			return nil, fmt.Errorf("invalid sample count '%s'", p)
		}
		out=append(out, n)
	}
	if len(out)==0 { return nil, fmt.Errorf("no sample counts given, use -counts") }
	return out, nil
}
