/*
Copyright © 2024 the InMAP authors.
This file is part of InMAP.

InMAP is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

InMAP is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with InMAP.  If not, see <http://www.gnu.org/licenses/>.
*/

package iop

import (
	"fmt"
	"sort"
)

// edgeFilled lists the fields whose model levels outside of the
// interpolated range are filled with the file values at the top
// and the surface.
var edgeFilled = map[string]bool{
	"T": true, "q": true,
	"u": true, "u_ls": true,
	"v": true, "v_ls": true,
}

// linInterp linearly interpolates the values ySrc at the increasing
// coordinates xSrc onto the coordinates xTgt and stores the results in
// yTgt. Targets outside of the source coordinates are extrapolated from
// the nearest segment.
func linInterp(xSrc, ySrc, xTgt, yTgt []float64) {
	n := len(xSrc)
	parallelFor(len(xTgt), func(i int) {
		if n == 1 {
			yTgt[i] = ySrc[0]
			return
		}
		x := xTgt[i]
		k := sort.Search(n, func(j int) bool { return xSrc[j] > x }) - 1
		if k < 0 {
			k = 0
		} else if k > n-2 {
			k = n - 2
		}
		dx := xSrc[k+1] - xSrc[k]
		if dx == 0 {
			yTgt[i] = ySrc[k]
			return
		}
		yTgt[i] = ySrc[k] + (ySrc[k+1]-ySrc[k])*(x-xSrc[k])/dx
	})
}

// surfaceValue extrapolates the surface value of v, which is the value
// at level adjusted-1, from the two levels above it, where p holds the
// level pressures. If those two levels have the same value, the
// surface gets that value too.
func surfaceValue(v, p []float64, adjusted int) float64 {
	a := adjusted
	if a < 3 {
		return v[a-2]
	}
	dx := v[a-2] - v[a-3]
	if dx == 0 {
		return v[a-2]
	}
	dy := p[a-2] - p[a-3]
	if dy == 0 {
		return v[a-2]
	}
	scale := dy / dx
	return (p[a-1]-p[a-2])/scale + v[a-2]
}

// fillEdges sets the model levels [0, r.ModelStart] to top and the
// levels [r.ModelEnd-1, len(v)) to surface.
func fillEdges(v []float64, r OverlapRange, top, surface float64) {
	n := len(v)
	end := r.ModelStart + 1
	if end > n {
		end = n
	}
	parallelFor(end, func(l int) { v[l] = top })
	start := r.ModelEnd - 1
	if start < 0 {
		start = 0
	}
	parallelFor(n-start, func(l int) { v[start+l] = surface })
}

// loadProfile reads the per-level field f at time slot idx and
// interpolates it onto the model levels within r.
func (dm *DataManager) loadProfile(f *Field, idx int, r OverlapRange) error {
	a := r.AdjustedFileLevels
	data, err := dm.file.ReadSlice(f.FileVar(), idx)
	if err != nil {
		return err
	}
	if len(data) != dm.fileLevels {
		return fmt.Errorf("iop: forcing file variable %s has %d values per time slot; expected %d levels",
			f.FileVar(), len(data), dm.fileLevels)
	}

	src := NewDualView(f.FileVar()+"_iop_file", a)
	sv := src.Host()
	copy(sv[:a-1], data[:a-1])
	if f.SurfaceName != "" {
		if sv[a-1], err = dm.file.ReadScalar(f.SurfaceName, idx); err != nil {
			return err
		}
	} else {
		sv[a-1] = surfaceValue(sv, dm.filePres.Host(), a)
	}
	src.ModifyHost()
	src.SyncToDevice()

	out := f.Data.Device()
	if r.FileEnd > r.FileStart && r.ModelEnd > r.ModelStart {
		fp, mp, in := dm.filePres.Device(), dm.modelPres.Device(), src.Device()
		linInterp(fp[r.FileStart:r.FileEnd], in[r.FileStart:r.FileEnd],
			mp[r.ModelStart:r.ModelEnd], out[r.ModelStart:r.ModelEnd])
	}
	if edgeFilled[f.Name] {
		in := src.Device()
		fillEdges(out, r, in[0], in[a-1])
	}
	f.Data.ModifyDevice()
	f.Data.SyncToHost()
	return nil
}

// loadScalar reads the scalar field f at time slot idx.
func (dm *DataManager) loadScalar(f *Field, idx int) error {
	v, err := dm.file.ReadScalar(f.FileVar(), idx)
	if err != nil {
		return err
	}
	f.Data.Host()[0] = v
	f.Data.ModifyHost()
	f.Data.SyncToDevice()
	return nil
}
