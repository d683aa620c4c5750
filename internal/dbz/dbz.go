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

package dbz

import (
	"fmt"
	"image"
	"image/color"
	colorful "github.com/lucasb-eyer/go-colorful"
)

// A radar reflectivity level in dBZ, discretized to multiples of LevelStep
// in [0, LevelMax]. Level 0 doubles as "no data".
type Level int32

const (
	LevelStep Level = 5
	LevelMax  Level = 75
)

// The single bidirectional level<->color table. Levels are rendered with the
// classic NWS reflectivity palette. Level 0 is fully transparent, not opaque
// black. Forward and inverse lookups are both derived from this literal, so
// the two directions cannot drift apart.
var levelColors=[]struct {
	level   Level
	r, g, b uint8
}{
	{ 5,   4, 233, 231},
	{10,   1, 159, 244},
	{15,   3,   0, 244},
	{20,   2, 253,   2},
	{25,   1, 197,   1},
	{30,   0, 142,   0},
	{35, 253, 248,   2},
	{40, 229, 188,   0},
	{45, 253, 149,   0},
	{50, 253,   0,   0},
	{55, 212,   0,   0},
	{60, 188,   0,   0},
	{65, 248,   0, 253},
	{70, 152,  84, 198},
	{75, 253, 253, 253},
}

var colorToLevel map[uint32]Level

func init() {
	colorToLevel=make(map[uint32]Level, len(levelColors))
	for _,e:=range levelColors {
		colorToLevel[packRGB(e.r, e.g, e.b)]=e.level
	}
}

func packRGB(r, g, b uint8) uint32 {
	return uint32(r)<<16 | uint32(g)<<8 | uint32(b)
}

// Decode one 8-bit RGB triple into a reflectivity level. Exact triple
// equality only, no fuzzy matching. The second return value is false for
// colors outside the known table, letting callers distinguish "clear sky"
// from an unrecognized color; both decode to level 0.
func DecodePixel(r, g, b uint8) (Level, bool) {
	l, ok:=colorToLevel[packRGB(r, g, b)]
	return l, ok
}

// Decode statistics accumulated over one frame
type DecodeStats struct {
	Pixels       int          // total pixels decoded
	Unrecognized int          // pixels whose color was not in the table
	Unknown      []color.RGBA // distinct unrecognized colors, first-seen order
}

// Decode a palette-indexed pixel buffer into reflectivity levels, looking up
// each pixel's color from the palette. Unknown colors decode to level 0 and
// are accounted for in the returned stats.
func DecodeIndexed(pix []uint8, palette color.Palette) ([]float32, DecodeStats) {
	// resolve each palette slot once, not once per pixel
	slotLevel :=make([]float32, len(palette))
	slotKnown :=make([]bool, len(palette))
	for i,c:=range palette {
		r, g, b, _:=c.RGBA()
		l, ok:=DecodePixel(uint8(r>>8), uint8(g>>8), uint8(b>>8))
		slotLevel[i], slotKnown[i]=float32(l), ok
	}

	levels:=make([]float32, len(pix))
	stats :=DecodeStats{Pixels: len(pix)}
	seen  :=make(map[uint8]bool)
	for i,p:=range pix {
		levels[i]=slotLevel[p]
		if !slotKnown[p] {
			stats.Unrecognized++
			if !seen[p] {
				seen[p]=true
				r, g, b, _:=palette[p].RGBA()
				stats.Unknown=append(stats.Unknown, color.RGBA{uint8(r>>8), uint8(g>>8), uint8(b>>8), 255})
			}
		}
	}
	return levels, stats
}

// Decode an arbitrary image into reflectivity levels in row-major order.
// Fallback path for containers that do not expose a palette.
func DecodeImage(img image.Image) ([]float32, DecodeStats) {
	bounds:=img.Bounds()
	w, h  :=bounds.Dx(), bounds.Dy()
	levels:=make([]float32, w*h)
	stats :=DecodeStats{Pixels: w*h}
	seen  :=make(map[uint32]bool)
	for y:=0; y<h; y++ {
		for x:=0; x<w; x++ {
			r, g, b, _:=img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			r8, g8, b8:=uint8(r>>8), uint8(g>>8), uint8(b>>8)
			l, ok:=DecodePixel(r8, g8, b8)
			levels[y*w+x]=float32(l)
			if !ok {
				stats.Unrecognized++
				key:=packRGB(r8, g8, b8)
				if !seen[key] {
					seen[key]=true
					stats.Unknown=append(stats.Unknown, color.RGBA{r8, g8, b8, 255})
				}
			}
		}
	}
	return levels, stats
}

// Encode a reflectivity level as an RGBA color. Level 0 maps to fully
// transparent. Levels outside the closed table are an error, never a
// silent default.
func Encode(l Level) (color.RGBA, error) {
	if l==0 { return color.RGBA{0, 0, 0, 0}, nil }
	for _,e:=range levelColors {
		if e.level==l { return color.RGBA{e.r, e.g, e.b, 255}, nil }
	}
	return color.RGBA{}, fmt.Errorf("level %d dBZ outside the closed color table [0,%d] step %d", l, LevelMax, LevelStep)
}

// Quantize a continuous model prediction into an encodable level.
// Declared domain is [0, LevelMax]: values below clamp to 0, values above
// clamp to LevelMax, in-range values bucket down to their lower multiple
// of LevelStep.
func Quantize(v float64) Level {
	if v<=0 { return 0 }
	if v>=float64(LevelMax) { return LevelMax }
	l:=Level(v)
	return l - l%LevelStep
}

// Nearest returns the known level whose color is perceptually closest to c,
// and the CIE Lab distance to it. Diagnostic only: the decode path never
// fuzzy-matches.
func Nearest(c color.RGBA) (Level, float64) {
	target, _:=colorful.MakeColor(color.NRGBA{c.R, c.G, c.B, 255})
	bestLevel, bestDist:=Level(0), -1.0
	for _,e:=range levelColors {
		known, _:=colorful.MakeColor(color.NRGBA{e.r, e.g, e.b, 255})
		d:=target.DistanceLab(known)
		if bestDist<0 || d<bestDist {
			bestLevel, bestDist=e.level, d
		}
	}
	return bestLevel, bestDist
}
