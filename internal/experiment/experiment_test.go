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
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"testing"
	"github.com/frantsen/ml-meteorology/internal/frame"
	"github.com/frantsen/ml-meteorology/internal/model"
)

// writes a station directory of single-color 4x4 frames with ascending
// embedded timestamps
func writeStation(t *testing.T, root, station, product string, numFrames int, c color.RGBA) {
	t.Helper()
	dir := filepath.Join(root, station, product)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err.Error())
	}
	for i := 0; i < numFrames; i++ {
		img := image.NewPaletted(image.Rect(0, 0, 4, 4), color.Palette{c})
		name := filepath.Join(dir, fmt.Sprintf("%s_20210417%02d00.png", product, i))
		if err := frame.WritePNGToFile(img, name); err != nil {
			t.Fatal(err.Error())
		}
	}
}

func testConfig(root string) Config {
	return Config{
		DataDir:    root,
		Product:    "cmax",
		Stations:   []string{"brno", "praha"},
		Holdout:    "skalky",
		HoldoutIdx: -1,
		Dim:        4,
		WindowSize: 2,
		MaxSamples: 3,
		FrameDelay: 0,
		Lasso:      model.NewLassoParams(1.0),
	}
}

func testContext() *Context {
	c := NewContext(io.Discard)
	c.MaxThreads = 2
	return c
}

func TestRunEndToEnd(t *testing.T) {
	root := t.TempDir()
	// constant 30 dBZ everywhere: the ensemble must predict it exactly
	green := color.RGBA{0, 142, 0, 255}
	for _, station := range []string{"brno", "praha", "skalky"} {
		writeStation(t, root, station, "cmax", 6, green)
	}

	res, err := Run(testConfig(root), testContext())
	if err != nil {
		t.Fatalf("run: %s", err.Error())
	}
	// each station yields min(3, 6-2-0-1)=3 samples
	if res.TrainSamples != 6 {
		t.Errorf("trained on %d samples; want 6", res.TrainSamples)
	}
	for pix, l := range res.Predicted {
		if l != 30 {
			t.Errorf("pixel %d predicted %d dBZ; want 30", pix, l)
		}
	}
	if res.Error.MSE != 0 || res.Error.ErrPerLen != 0 {
		t.Errorf("error = %v; want zero on a constant field", res.Error)
	}
	if b := res.Image.Bounds(); b.Dx() != 4 || b.Dy() != 4 {
		t.Errorf("prediction image is %dx%d; want 4x4", b.Dx(), b.Dy())
	}
	if c := res.Image.RGBAAt(0, 0); c.R != 0 || c.G != 142 || c.B != 0 || c.A != 255 {
		t.Errorf("prediction pixel = %v; want (0,142,0,255)", c)
	}
	if c := res.ActualImage.RGBAAt(3, 3); c.G != 142 {
		t.Errorf("actual-image pixel = %v; want (0,142,0,255)", c)
	}
}

func TestRunMissingHoldoutAborts(t *testing.T) {
	root := t.TempDir()
	green := color.RGBA{0, 142, 0, 255}
	for _, station := range []string{"brno", "praha"} {
		writeStation(t, root, station, "cmax", 6, green)
	}
	if _, err := Run(testConfig(root), testContext()); err == nil {
		t.Error("run with missing holdout station succeeded; want error")
	}
}

func TestSweepOrderAndCSV(t *testing.T) {
	root := t.TempDir()
	green := color.RGBA{0, 142, 0, 255}
	for _, station := range []string{"brno", "praha", "skalky"} {
		writeStation(t, root, station, "cmax", 8, green)
	}

	counts := []int{1, 4, 2}
	points, err := Sweep(testConfig(root), counts, testContext())
	if err != nil {
		t.Fatalf("sweep: %s", err.Error())
	}
	if len(points) != len(counts) {
		t.Fatalf("%d points; want %d", len(points), len(counts))
	}
	for i, p := range points {
		// one result per requested count, in input order; error trends are
		// not asserted, only presence and ordering
		if p.Requested != counts[i] {
			t.Errorf("point %d requested=%d; want %d", i, p.Requested, counts[i])
		}
	}
	// 8 frames: usable = 8-2-0-1 = 5 per station, clamped by the request
	if points[1].Trained != 8 {
		t.Errorf("point 1 trained=%d; want 8 (4 per station)", points[1].Trained)
	}

	fileName := filepath.Join(t.TempDir(), "sweep.csv")
	if err := WriteSweepCSV(points, fileName); err != nil {
		t.Fatalf("csv: %s", err.Error())
	}
	file, err := os.Open(fileName)
	if err != nil {
		t.Fatal(err.Error())
	}
	defer file.Close()
	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatal(err.Error())
	}
	if len(records) != len(counts)+1 {
		t.Errorf("%d csv rows; want %d", len(records), len(counts)+1)
	}
	if records[0][0] != "requestedSamples" {
		t.Errorf("csv header %v", records[0])
	}
}
