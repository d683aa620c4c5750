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
	"image"
	_ "image/gif"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"golang.org/x/image/draw"
	"github.com/frantsen/ml-meteorology/internal/dbz"
)

// Options for loading a station's frame sequence
type LoadOptions struct {
	Dir         string    // data root; frames live in Dir/station/product/
	Product     string    // radar product type, e.g. "cmax"
	Dim         int       // target square resolution
	SkipFirst   bool      // skip the leading non-data entry (directory stub)
	SavePattern string    // optional: persist resized frames, %d expands to the frame ID
	Log         io.Writer
}

// Loads the time-ordered frame sequence for one station, resizing each
// frame to opt.Dim and decoding it into reflectivity levels. A missing or
// unreadable frame aborts the whole station load; no partial sequence is
// returned.
func LoadStation(station string, opt LoadOptions) ([]*Frame, error) {
	dir:=filepath.Join(opt.Dir, station, opt.Product)
	names, err:=listChronological(dir)
	if err!=nil { return nil, fmt.Errorf("station %s: %s", station, err.Error()) }
	if opt.SkipFirst && len(names)>0 {
		names=names[1:]
	}
	if len(names)==0 { return nil, fmt.Errorf("station %s: no frames in %s", station, dir) }

	frames:=make([]*Frame, len(names))
	for i,name:=range names {
		f, err:=loadFrame(filepath.Join(dir, name), station, i, opt)
		if err!=nil { return nil, fmt.Errorf("station %s: %s", station, err.Error()) }
		frames[i]=f
	}
	return frames, nil
}

// Lists the frame files in dir in chronological order. File names carrying
// an embedded acquisition timestamp (a run of 8 or more digits) are ordered
// by that timestamp; otherwise plain listing order applies, and acquisition
// order in the listing is a documented precondition.
func listChronological(dir string) ([]string, error) {
	entries, err:=os.ReadDir(dir)
	if err!=nil { return nil, err }

	names:=[]string{}
	for _,e:=range entries {
		if e.IsDir() { continue }
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".png", ".gif":
			names=append(names, e.Name())
		}
	}
	sort.Slice(names, func(i, j int) bool {
		ti, oki:=embeddedTimestamp(names[i])
		tj, okj:=embeddedTimestamp(names[j])
		if oki && okj && ti!=tj { return ti<tj }
		return names[i]<names[j]
	})
	return names, nil
}

// Extracts the longest run of digits from a file name as a sortable
// acquisition timestamp, e.g. "cmax_202104171530.png" -> 202104171530.
func embeddedTimestamp(name string) (int64, bool) {
	best:=""
	run:=""
	for _,r:=range name {
		if r>='0' && r<='9' {
			run+=string(r)
		} else {
			if len(run)>len(best) { best=run }
			run=""
		}
	}
	if len(run)>len(best) { best=run }
	if len(best)<8 { return 0, false }
	t, err:=strconv.ParseInt(best, 10, 64)
	if err!=nil { return 0, false }
	return t, true
}

// Loads a single frame file: decode container, resize to the target
// resolution, then decode colors into reflectivity. Resizing must happen
// before color decoding so the codec sees the palette colors at the final
// resolution.
func loadFrame(path, station string, id int, opt LoadOptions) (*Frame, error) {
	file, err:=os.Open(path)
	if err!=nil { return nil, err }
	defer file.Close()

	src, _, err:=image.Decode(file)
	if err!=nil { return nil, fmt.Errorf("%s: %s", path, err.Error()) }

	resized:=resizeNearest(src, opt.Dim)
	var levels []float32
	var stats  dbz.DecodeStats
	if p, ok:=resized.(*image.Paletted); ok {
		levels, stats=dbz.DecodeIndexed(p.Pix, p.Palette)
	} else {
		levels, stats=dbz.DecodeImage(resized)
	}

	f:=&Frame{
		ID:       id,
		Station:  station,
		FileName: path,
		Dim:      opt.Dim,
		Data:     levels,
		Stats:    NewStats(levels),
	}

	if opt.Log!=nil {
		fmt.Fprintf(opt.Log, "%s %d: Loaded %dx%d frame with %v from %s\n", station, id, opt.Dim, opt.Dim, f.Stats, filepath.Base(path))
		if stats.Unrecognized>0 {
			c:=stats.Unknown[0]
			near, dist:=dbz.Nearest(c)
			fmt.Fprintf(opt.Log, "%s %d: %d pixels in %d unrecognized colors decoded as 0 dBZ; e.g. (%d,%d,%d), closest known %d dBZ at Lab distance %.3f\n",
				station, id, stats.Unrecognized, len(stats.Unknown), c.R, c.G, c.B, near, dist)
		}
	}

	if opt.SavePattern!="" {
		fileName:=opt.SavePattern
		if strings.Contains(fileName, "%") {
			fileName=fmt.Sprintf(opt.SavePattern, id)
		}
		if err:=WritePNGToFile(resized, fileName); err!=nil {
			return nil, fmt.Errorf("writing resized frame to %s: %s", fileName, err.Error())
		}
	}
	return f, nil
}

// Resize an image to dim x dim with deterministic nearest-neighbor
// resampling. Nearest-neighbor never invents colors, so a palette-indexed
// source stays within its palette. No-op if the size already matches.
func resizeNearest(src image.Image, dim int) image.Image {
	b:=src.Bounds()
	if b.Dx()==dim && b.Dy()==dim { return src }

	rect:=image.Rect(0, 0, dim, dim)
	var dst draw.Image
	if p, ok:=src.(*image.Paletted); ok {
		dst=image.NewPaletted(rect, p.Palette)
	} else {
		dst=image.NewRGBA(rect)
	}
	draw.NearestNeighbor.Scale(dst, rect, src, b, draw.Src, nil)
	return dst
}
