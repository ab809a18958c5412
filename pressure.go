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

	"github.com/ctessum/unit"
)

// OverlapRange holds the parts of the forcing file and model pressure
// profiles that are used for vertical interpolation.
type OverlapRange struct {
	// FileStart and FileEnd bound the file levels [FileStart, FileEnd).
	FileStart, FileEnd int

	// ModelStart and ModelEnd bound the model levels [ModelStart, ModelEnd).
	ModelStart, ModelEnd int

	// AdjustedFileLevels is the number of file levels in use, the last
	// of which is at the surface.
	AdjustedFileLevels int
}

// millibar is one millibar [Pa].
var millibar = unit.New(100, unit.Pascal)

// levelUnits holds the size of one unit of each supported forcing
// file lev units attribute. Pressures without units are in Pa.
var levelUnits = map[string]*unit.Unit{
	"":          unit.New(1, unit.Pascal),
	"Pa":        unit.New(1, unit.Pascal),
	"pa":        unit.New(1, unit.Pascal),
	"kPa":       unit.New(1000, unit.Pascal),
	"hPa":       millibar,
	"mb":        millibar,
	"mbar":      millibar,
	"millibar":  millibar,
	"millibars": millibar,
}

// toMillibar converts pressure pa [Pa] to millibar.
func toMillibar(pa float64) float64 {
	return unit.Div(unit.New(pa, unit.Pascal), millibar).Value()
}

// levelsToMillibar converts the file level pressures, given in units,
// to millibar.
func levelsToMillibar(lev []float64, units string) ([]float64, error) {
	u, ok := levelUnits[units]
	if !ok {
		return nil, fmt.Errorf("%w: forcing file lev has unsupported units %q", ErrConfig, units)
	}
	if err := unit.Div(u, millibar).Check(unit.Dimless); err != nil {
		return nil, fmt.Errorf("%w: forcing file lev units %q: %v", ErrConfig, units, err)
	}
	out := make([]float64, len(lev))
	for i, v := range lev {
		out[i] = unit.Div(unit.Mul(unit.New(v, unit.Dimless), u), millibar).Value()
	}
	return out, nil
}

// adjustFilePressure sets the surface slot p[fileLevels] to ps,
// limits every pressure to ps, and returns the number of levels up
// to and including the first level at ps. All pressures are in mb.
func adjustFilePressure(p []float64, fileLevels int, ps float64) int {
	parallelFor(fileLevels+1, func(i int) {
		if i == fileLevels {
			p[i] = ps
		}
		if p[i] > ps {
			p[i] = ps
		}
	})
	return searchIndex(fileLevels+1, lowest, 1, fileLevels+1, func(i int) bool {
		return p[i] == ps
	})
}

// modelPressure computes the model level pressures [mb] from the
// hybrid coefficients and surface pressure ps [Pa].
func modelPressure(p, hyam, hybm []float64, ps float64) {
	parallelFor(len(p), func(l int) {
		p[l] = 1000*hyam[l] + ps*hybm[l]/100
	})
}

// overlap finds the file levels just outside the range of the model
// levels, and the model levels just inside the range of the file
// levels. filePres must hold at least adjusted values.
func overlap(filePres, modelPres []float64, adjusted int) OverlapRange {
	nlev := len(modelPres)
	r := OverlapRange{AdjustedFileLevels: adjusted}
	r.FileStart = searchIndex(adjusted, highest, 0, 0, func(i int) bool {
		return filePres[i] <= modelPres[0]
	})
	r.FileEnd = searchIndex(adjusted, lowest, 1, adjusted, func(i int) bool {
		return filePres[i] >= modelPres[nlev-1]
	})
	r.ModelStart = searchIndex(nlev, lowest, 0, nlev-1, func(i int) bool {
		return modelPres[i] >= filePres[r.FileStart]
	})
	r.ModelEnd = searchIndex(nlev, highest, 1, 1, func(i int) bool {
		return modelPres[i] <= filePres[r.FileEnd-1]
	})
	return r
}

// reconcile loads the surface pressure and file level pressures at
// time slot idx, builds both pressure profiles, and computes the
// overlap between them.
func (dm *DataManager) reconcile(idx int) (OverlapRange, error) {
	psField, err := dm.fields.Get("Ps")
	if err != nil {
		return OverlapRange{}, err
	}
	ps, err := dm.file.ReadScalar(psField.FileVar(), idx)
	if err != nil {
		return OverlapRange{}, err
	}
	psField.Data.Host()[0] = ps
	psField.Data.ModifyHost()
	psField.Data.SyncToDevice()

	lev, err := dm.file.ReadAll("lev")
	if err != nil {
		return OverlapRange{}, err
	}
	units, _ := dm.file.Attribute("lev", "units")
	lev, err = levelsToMillibar(lev, units)
	if err != nil {
		return OverlapRange{}, err
	}
	copy(dm.filePres.Host(), lev)
	dm.filePres.ModifyHost()
	dm.filePres.SyncToDevice()

	fp := dm.filePres.Device()
	adjusted := adjustFilePressure(fp, dm.fileLevels, toMillibar(ps))
	dm.filePres.ModifyDevice()
	if adjusted <= 1 {
		dm.filePres.SyncToHost()
		return OverlapRange{}, fmt.Errorf("%w: pressures in %s are set incorrectly; surface pressure Ps (%g mb) should be greater than at least the first entry in midpoint pressures lev (%g mb)",
			ErrBadPressureProfile, dm.file.Name(), toMillibar(ps), lev[0])
	}

	mp := dm.modelPres.Device()
	modelPressure(mp, dm.hyam, dm.hybm, ps)
	dm.modelPres.ModifyDevice()

	r := overlap(fp, mp, adjusted)

	dm.filePres.SyncToHost()
	dm.modelPres.SyncToHost()
	return r, nil
}
