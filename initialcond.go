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
	"math"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
	"github.com/sirupsen/logrus"
)

// earthRadius is the mean radius of the earth [m].
const earthRadius = 6371000.

// ColumnRemapper copies the column of an initial condition file that
// is nearest to a target location into every column of host fields.
type ColumnRemapper struct {
	file   *ForcingFile
	colDim string

	// nearest is the index of the column nearest the target, and
	// distance is its distance from the target [m].
	nearest  int
	distance float64

	targets []remapTarget
}

type remapTarget struct {
	name string
	dst  *sparse.DenseArray
}

// NewColumnRemapper finds the column of file nearest to the target
// location. Columns are indexed by the ncol dimension, or by ncol_d
// when file has it and grid is the physics_gll grid.
func NewColumnRemapper(file *ForcingFile, grid string, targetLat, targetLon float64) (*ColumnRemapper, error) {
	r := &ColumnRemapper{file: file, colDim: "ncol"}
	latName, lonName := "lat", "lon"
	if grid == PhysicsGLL && file.HasDim("ncol_d") {
		r.colDim = "ncol_d"
		if file.HasVar("lat_d") && file.HasVar("lon_d") {
			latName, lonName = "lat_d", "lon_d"
		}
	}
	ncol, ok := file.DimLen(r.colDim)
	if !ok {
		return nil, fmt.Errorf("%w: initial condition file requires dimension %s", ErrMissingVariable, r.colDim)
	}
	if file.TimeDim() == "" && file.HasDim("time") {
		file.SetTimeDim("time")
	}
	lat, err := file.ReadAll(latName)
	if err != nil {
		return nil, err
	}
	lon, err := file.ReadAll(lonName)
	if err != nil {
		return nil, err
	}
	if len(lat) != ncol || len(lon) != ncol {
		return nil, fmt.Errorf("iop: initial condition file %s and %s must have one value per %s column (%d)",
			latName, lonName, r.colDim, ncol)
	}

	r.distance = math.Inf(1)
	for i := range lat {
		d := greatCircleDistance(targetLat, targetLon, lat[i], lon[i])
		if d < r.distance {
			r.nearest, r.distance = i, d
		}
	}
	return r, nil
}

// greatCircleDistance returns the distance [m] between two points
// given by latitude and longitude in degrees.
func greatCircleDistance(lat1, lon1, lat2, lon2 float64) float64 {
	const rad = math.Pi / 180
	dLon := (lon2 - lon1) * rad
	lat1, lat2 = lat1*rad, lat2*rad
	dLat := lat2 - lat1
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadius * math.Asin(math.Min(1, math.Sqrt(h)))
}

// Nearest returns the index of the column nearest the target and its
// distance from the target [m].
func (r *ColumnRemapper) Nearest() (int, float64) { return r.nearest, r.distance }

// RegisterTarget adds a host field that will be filled from the
// file variable with the same name.
func (r *ColumnRemapper) RegisterTarget(name string, dst *sparse.DenseArray) error {
	if dst == nil || len(dst.Shape) == 0 {
		return fmt.Errorf("iop: remap target %s has no shape", name)
	}
	if !r.file.HasVar(name) {
		return fmt.Errorf("%w: initial condition file has no variable %s", ErrMissingVariable, name)
	}
	r.targets = append(r.targets, remapTarget{name: name, dst: dst})
	return nil
}

// column reads the values of variable name in the nearest column. The
// column dimension must be outermost, after time if present.
func (r *ColumnRemapper) column(name string) ([]float64, error) {
	dims := r.file.Dims(name)
	lengths := r.file.lengths(name)
	k := 0
	if len(dims) > 0 && dims[0] == r.file.TimeDim() {
		k = 1
	}
	if len(dims) <= k || dims[k] != r.colDim {
		return nil, fmt.Errorf("iop: initial condition variable %s has dimensions %v; expected %s outermost",
			name, dims, r.colDim)
	}
	n := 1
	for _, l := range lengths[k+1:] {
		n *= l
	}
	begin := make([]int, len(dims))
	begin[k] = r.nearest
	return r.file.readContiguous(name, begin, n)
}

// Remap fills every column of every registered target with the values
// of the nearest file column.
func (r *ColumnRemapper) Remap() error {
	for _, t := range r.targets {
		vals, err := r.column(t.name)
		if err != nil {
			return err
		}
		ncol := t.dst.Shape[0]
		per := len(t.dst.Elements) / ncol
		if len(vals) != per {
			return fmt.Errorf("iop: initial condition variable %s has %d values per column; host field has %d",
				t.name, len(vals), per)
		}
		parallelFor(ncol, func(c int) {
			copy(t.dst.Elements[c*per:(c+1)*per], vals)
		})
	}
	return nil
}

// ReadFieldsFromFile fills the named fields of state with the values in
// the column of the initial condition file at path that is nearest to
// the target location.
func (dm *DataManager) ReadFieldsFromFile(path string, state HostState, names []string) error {
	if len(names) == 0 {
		return fmt.Errorf("%w: list of fields to read from %s is empty", ErrConfig, path)
	}
	f, err := OpenForcingFilePath(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r, err := NewColumnRemapper(f, state.GridName(), dm.opts.TargetLatitude, dm.opts.TargetLongitude)
	if err != nil {
		return err
	}
	for _, name := range names {
		dst, err := state.Field(name)
		if err != nil {
			return err
		}
		if err = r.RegisterTarget(name, dst); err != nil {
			return err
		}
	}
	if err = r.Remap(); err != nil {
		return err
	}
	col, dist := r.Nearest()
	dm.log.WithFields(logrus.Fields{
		"file":        path,
		"fields":      names,
		"column":      col,
		"distance_km": dist / 1000,
	}).Info("iop: read initial conditions")
	return nil
}

// ReadHybridCoefficients reads the hybrid level coefficients hyam and
// hybm from the file at path.
func ReadHybridCoefficients(path string) (hyam, hybm []float64, err error) {
	f, err := OpenForcingFilePath(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	if hyam, err = f.ReadAll("hyam"); err != nil {
		return nil, nil, err
	}
	if hybm, err = f.ReadAll("hybm"); err != nil {
		return nil, nil, err
	}
	if len(hyam) != len(hybm) {
		return nil, nil, fmt.Errorf("iop: %s: hyam has %d levels and hybm has %d", path, len(hyam), len(hybm))
	}
	return hyam, hybm, nil
}

// InitialConditions holds the contents of an initial condition file
// so that it can be written out in NetCDF format.
type InitialConditions struct {
	// Lat and Lon are the column locations [degrees].
	Lat, Lon []float64

	// Hyam and Hybm are the hybrid level coefficients.
	Hyam, Hybm []float64

	// Surface holds one value per column for each variable.
	Surface map[string][]float64

	// Profiles holds one value per column and level for each variable,
	// indexed as [column][level].
	Profiles map[string][][]float64
}

// Write writes ic to w in NetCDF format with dimensions ncol and lev.
func (ic *InitialConditions) Write(w cdf.ReaderWriterAt) error {
	ncol, nlev := len(ic.Lat), len(ic.Hyam)
	if len(ic.Lon) != ncol || len(ic.Hybm) != nlev {
		return fmt.Errorf("iop: writing initial conditions: lat (%d), lon (%d), hyam (%d) and hybm (%d) lengths are inconsistent",
			len(ic.Lat), len(ic.Lon), len(ic.Hyam), len(ic.Hybm))
	}
	data := make(map[string][]float64)
	for name, v := range ic.Surface {
		if len(v) != ncol {
			return fmt.Errorf("iop: writing initial conditions: variable %s has %d columns; expected %d", name, len(v), ncol)
		}
		data[name] = v
	}
	for name, v := range ic.Profiles {
		if len(v) != ncol {
			return fmt.Errorf("iop: writing initial conditions: variable %s has %d columns; expected %d", name, len(v), ncol)
		}
		flat := make([]float64, 0, ncol*nlev)
		for _, col := range v {
			if len(col) != nlev {
				return fmt.Errorf("iop: writing initial conditions: variable %s has %d levels; expected %d", name, len(col), nlev)
			}
			flat = append(flat, col...)
		}
		data[name] = flat
	}

	h := cdf.NewHeader([]string{"ncol", "lev"}, []int{ncol, nlev})
	h.AddAttribute("", "comment", "initial condition file")
	h.AddVariable("lat", []string{"ncol"}, []float64{0})
	h.AddAttribute("lat", "units", "degrees_north")
	h.AddVariable("lon", []string{"ncol"}, []float64{0})
	h.AddAttribute("lon", "units", "degrees_east")
	h.AddVariable("hyam", []string{"lev"}, []float64{0})
	h.AddVariable("hybm", []string{"lev"}, []float64{0})
	names := sortedKeys(data)
	for _, name := range names {
		if _, ok := ic.Surface[name]; ok {
			h.AddVariable(name, []string{"ncol"}, []float64{0})
		} else {
			h.AddVariable(name, []string{"ncol", "lev"}, []float64{0})
		}
	}
	h.Define()

	f, err := cdf.Create(w, h)
	if err != nil {
		return err
	}
	for _, v := range []struct {
		name string
		vals []float64
	}{{"lat", ic.Lat}, {"lon", ic.Lon}, {"hyam", ic.Hyam}, {"hybm", ic.Hybm}} {
		if err = writeVar(f, v.name, nil, v.vals); err != nil {
			return err
		}
	}
	for _, name := range names {
		if err = writeVar(f, name, nil, data[name]); err != nil {
			return err
		}
	}
	return nil
}
