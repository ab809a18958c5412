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
	"io"
	"os"
	"sort"

	"github.com/ctessum/cdf"
)

// ForcingData holds the contents of a single-column IOP forcing file
// so that it can be written out in NetCDF format.
type ForcingData struct {
	// BaseDate is the date of the first time slot, as YYYYMMDD.
	BaseDate int

	// TimeOffsets are the time slot offsets [seconds since BaseDate].
	TimeOffsets []int

	// Lat and Lon are the location of the observation column [degrees].
	Lat, Lon float64

	// Levels are the level midpoint pressures [Pa].
	Levels []float64

	// Scalars holds one value per time slot for each variable.
	Scalars map[string][]float64

	// Profiles holds one value per time slot and level for each variable,
	// indexed as [time][level].
	Profiles map[string][][]float64
}

// Write writes d to w in NetCDF format, with time as the record dimension.
func (d *ForcingData) Write(w cdf.ReaderWriterAt) error {
	nt, nlev := len(d.TimeOffsets), len(d.Levels)
	for name, v := range d.Scalars {
		if len(v) != nt {
			return fmt.Errorf("iop: writing forcing data: variable %s has %d time slots; expected %d", name, len(v), nt)
		}
	}
	for name, v := range d.Profiles {
		if len(v) != nt {
			return fmt.Errorf("iop: writing forcing data: variable %s has %d time slots; expected %d", name, len(v), nt)
		}
		for _, vv := range v {
			if len(vv) != nlev {
				return fmt.Errorf("iop: writing forcing data: variable %s has %d levels; expected %d", name, len(vv), nlev)
			}
		}
	}

	h := cdf.NewHeader([]string{"time", "lev", "lat", "lon"}, []int{0, nlev, 1, 1})
	h.AddAttribute("", "comment", "single-column IOP forcing data file")

	h.AddVariable("bdate", []string{}, []int32{0})
	h.AddAttribute("bdate", "description", "base date (YYYYMMDD)")
	h.AddVariable("tsec", []string{"time"}, []int32{0})
	h.AddAttribute("tsec", "units", "s")
	h.AddVariable("lev", []string{"lev"}, []float64{0})
	h.AddAttribute("lev", "units", "Pa")
	h.AddVariable("lat", []string{"lat"}, []float64{0})
	h.AddAttribute("lat", "units", "degrees_north")
	h.AddVariable("lon", []string{"lon"}, []float64{0})
	h.AddAttribute("lon", "units", "degrees_east")

	// Sort the names so they write in the same order every time.
	scalars := sortedKeys(d.Scalars)
	profiles := make([]string, 0, len(d.Profiles))
	for n := range d.Profiles {
		profiles = append(profiles, n)
	}
	sort.Strings(profiles)

	for _, name := range scalars {
		h.AddVariable(name, []string{"time", "lat", "lon"}, []float64{0})
	}
	for _, name := range profiles {
		h.AddVariable(name, []string{"time", "lev", "lat", "lon"}, []float64{0})
	}
	h.Define()

	f, err := cdf.Create(w, h)
	if err != nil {
		return err
	}

	if err = writeVar(f, "bdate", nil, []int32{int32(d.BaseDate)}); err != nil {
		return err
	}
	if err = writeVar(f, "lev", nil, d.Levels); err != nil {
		return err
	}
	if err = writeVar(f, "lat", nil, []float64{d.Lat}); err != nil {
		return err
	}
	if err = writeVar(f, "lon", nil, []float64{d.Lon}); err != nil {
		return err
	}
	for t, offset := range d.TimeOffsets {
		if err = writeVar(f, "tsec", []int{t}, []int32{int32(offset)}); err != nil {
			return err
		}
		for _, name := range scalars {
			if err = writeVar(f, name, []int{t, 0, 0}, []float64{d.Scalars[name][t]}); err != nil {
				return err
			}
		}
		for _, name := range profiles {
			if err = writeVar(f, name, []int{t, 0, 0, 0}, d.Profiles[name][t]); err != nil {
				return err
			}
		}
	}
	if ff, ok := w.(*os.File); ok {
		return cdf.UpdateNumRecs(ff)
	}
	return nil
}

// writeVar writes vals into variable name starting at begin.
func writeVar(f *cdf.File, name string, begin []int, vals interface{}) error {
	w := f.Writer(name, begin, nil)
	if _, err := w.Write(vals); err != nil && err != io.EOF {
		return fmt.Errorf("iop: writing variable %s to netcdf file: %v", name, err)
	}
	return nil
}

func sortedKeys(m map[string][]float64) []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
