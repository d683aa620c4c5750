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

package recon

import (
	"fmt"
	"image"
	"github.com/frantsen/ml-meteorology/internal/dbz"
)

// Reconstruct materializes a predicted reflectivity vector as a dim x dim
// RGBA image over a transparent background, colorizing each pixel
// independently through the codec. No smoothing across pixels.
func Reconstruct(levels []dbz.Level, dim int) (*image.RGBA, error) {
	if len(levels)!=dim*dim {
		return nil, fmt.Errorf("%d levels for a %dx%d image", len(levels), dim, dim)
	}

	img:=image.NewRGBA(image.Rect(0, 0, dim, dim))
	for y:=0; y<dim; y++ {
		for x:=0; x<dim; x++ {
			c, err:=dbz.Encode(levels[y*dim+x])
			if err!=nil { return nil, fmt.Errorf("pixel (%d,%d): %s", x, y, err.Error()) }
			img.SetRGBA(x, y, c)
		}
	}
	return img, nil
}
