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
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"testing"
)

// writes a dim x dim single-color paletted PNG
func writeTestPNG(t *testing.T, fileName string, dim int, c color.RGBA) {
	t.Helper()
	img := image.NewPaletted(image.Rect(0, 0, dim, dim), color.Palette{c})
	if err := WritePNGToFile(img, fileName); err != nil {
		t.Fatalf("writing %s: %s", fileName, err.Error())
	}
}

func testStationDir(t *testing.T, station, product string) (root, dir string) {
	t.Helper()
	root = t.TempDir()
	dir = filepath.Join(root, station, product)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("mkdir %s: %s", dir, err.Error())
	}
	return root, dir
}

func TestLoadStationDecodesAndResizes(t *testing.T) {
	root, dir := testStationDir(t, "brno", "cmax")
	// 8x8 frames at 30 dBZ (0,142,0), loaded at target dimension 4
	for _, name := range []string{"cmax_20210417000000.png", "cmax_20210417001000.png"} {
		writeTestPNG(t, filepath.Join(dir, name), 8, color.RGBA{0, 142, 0, 255})
	}

	frames, err := LoadStation("brno", LoadOptions{
		Dir: root, Product: "cmax", Dim: 4, Log: io.Discard,
	})
	if err != nil {
		t.Fatalf("load: %s", err.Error())
	}
	if len(frames) != 2 {
		t.Fatalf("loaded %d frames; want 2", len(frames))
	}
	for _, f := range frames {
		if len(f.Data) != 16 {
			t.Errorf("frame %d has %d pixels; want 16", f.ID, len(f.Data))
		}
		for p, v := range f.Data {
			if v != 30 {
				t.Errorf("frame %d pixel %d = %g; want 30", f.ID, p, v)
			}
		}
	}
}

func TestLoadStationChronologicalOrder(t *testing.T) {
	root, dir := testStationDir(t, "brno", "cmax")
	// lexical order disagrees with timestamp order
	writeTestPNG(t, filepath.Join(dir, "a_20210417120000.png"), 4, color.RGBA{4, 233, 231, 255})  // 5 dBZ, later
	writeTestPNG(t, filepath.Join(dir, "b_20210417110000.png"), 4, color.RGBA{1, 159, 244, 255}) // 10 dBZ, earlier

	frames, err := LoadStation("brno", LoadOptions{
		Dir: root, Product: "cmax", Dim: 4, Log: io.Discard,
	})
	if err != nil {
		t.Fatalf("load: %s", err.Error())
	}
	if frames[0].Data[0] != 10 || frames[1].Data[0] != 5 {
		t.Errorf("frames out of chronological order: got %g then %g dBZ; want 10 then 5",
			frames[0].Data[0], frames[1].Data[0])
	}
}

func TestLoadStationSkipFirst(t *testing.T) {
	root, dir := testStationDir(t, "brno", "cmax")
	writeTestPNG(t, filepath.Join(dir, "cmax_20210417000000.png"), 4, color.RGBA{0, 0, 0, 0}) // stub entry
	writeTestPNG(t, filepath.Join(dir, "cmax_20210417001000.png"), 4, color.RGBA{0, 142, 0, 255})
	writeTestPNG(t, filepath.Join(dir, "cmax_20210417002000.png"), 4, color.RGBA{0, 142, 0, 255})

	frames, err := LoadStation("brno", LoadOptions{
		Dir: root, Product: "cmax", Dim: 4, SkipFirst: true, Log: io.Discard,
	})
	if err != nil {
		t.Fatalf("load: %s", err.Error())
	}
	if len(frames) != 2 {
		t.Errorf("loaded %d frames; want 2 after skipping the stub", len(frames))
	}
}

func TestLoadStationMissingDirAborts(t *testing.T) {
	root := t.TempDir()
	_, err := LoadStation("nowhere", LoadOptions{Dir: root, Product: "cmax", Dim: 4})
	if err == nil {
		t.Error("loading a missing station succeeded; want error")
	}
}

func TestLoadStationSavesResizedCopy(t *testing.T) {
	root, dir := testStationDir(t, "brno", "cmax")
	writeTestPNG(t, filepath.Join(dir, "cmax_20210417000000.png"), 8, color.RGBA{0, 142, 0, 255})

	out := filepath.Join(t.TempDir(), "resized%04d.png")
	_, err := LoadStation("brno", LoadOptions{
		Dir: root, Product: "cmax", Dim: 4, SavePattern: out, Log: io.Discard,
	})
	if err != nil {
		t.Fatalf("load: %s", err.Error())
	}
	saved, err := os.Open(filepath.Join(filepath.Dir(out), "resized0000.png"))
	if err != nil {
		t.Fatalf("opening saved copy: %s", err.Error())
	}
	defer saved.Close()
	img, _, err := image.Decode(saved)
	if err != nil {
		t.Fatalf("decoding saved copy: %s", err.Error())
	}
	if b := img.Bounds(); b.Dx() != 4 || b.Dy() != 4 {
		t.Errorf("saved copy is %dx%d; want 4x4", b.Dx(), b.Dy())
	}
}

func TestEmbeddedTimestamp(t *testing.T) {
	tcs := []struct {
		Name string
		Want int64
		OK   bool
	}{
		{"cmax_202104171530.png", 202104171530, true},
		{"20210417.gif", 20210417, true},
		{"radar_9.png", 0, false},
		{"noDigits.png", 0, false},
	}
	for _, tc := range tcs {
		got, ok := embeddedTimestamp(tc.Name)
		if ok != tc.OK || got != tc.Want {
			t.Errorf("embeddedTimestamp(%s)=(%d,%v); want (%d,%v)", tc.Name, got, ok, tc.Want, tc.OK)
		}
	}
}

func TestNewStats(t *testing.T) {
	s := NewStats([]float32{0, 10, 20, 30})
	if s.Min != 0 || s.Max != 30 {
		t.Errorf("min/max = %g/%g; want 0/30", s.Min, s.Max)
	}
	if s.Mean != 15 {
		t.Errorf("mean = %g; want 15", s.Mean)
	}
}
