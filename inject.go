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

	"github.com/ctessum/sparse"
	"github.com/sirupsen/logrus"
)

// hostProfiles pairs per-level host state fields with the forcing
// fields they are set from.
var hostProfiles = []struct{ host, iop string }{
	{host: "T_mid", iop: "T"},
	{host: "qv", iop: "q"},
	{host: "nc", iop: "NUMLIQ"},
	{host: "qc", iop: "CLDLIQ"},
	{host: "qi", iop: "CLDICE"},
	{host: "ni", iop: "NUMICE"},
}

// SetFieldsFromIOPData copies the forcing data into every column of
// state. Only the host fields that have a matching forcing field are
// set: ps from Ps, T_mid from T, the two horiz_winds components from u
// and v, qv from q, nc from NUMLIQ, qc from CLDLIQ, qi from CLDICE and
// ni from NUMICE.
//
// If the top levels of the temperature profile are not positive, they
// and the matching moisture levels are first replaced with the values
// in column 0 of the host state.
func (dm *DataManager) SetFieldsFromIOPData(state HostState) error {
	if dm.opts.ZeroNonIOPTracers {
		for _, name := range state.Tracers() {
			a, err := state.Field(name)
			if err != nil {
				return err
			}
			for i := range a.Elements {
				a.Elements[i] = 0
			}
		}
	}

	if g := state.GridName(); g != PhysicsGLL {
		return fmt.Errorf("%w: attempting to set fields on grid %q using forcing data; only %s is supported",
			ErrConfig, g, PhysicsGLL)
	}
	ncol, nlev := state.NumColumns(), state.NumLevels()
	if nlev != dm.modelLevels {
		return fmt.Errorf("%w: host state has %d levels; forcing data has %d", ErrConfig, nlev, dm.modelLevels)
	}

	if err := dm.correctTemperatureAndWaterVapor(state); err != nil {
		return err
	}

	type pair struct {
		dst *sparse.DenseArray
		src []float64
	}
	var profiles []pair
	for _, p := range hostProfiles {
		if !state.HasField(p.host) || !dm.fields.Has(p.iop) {
			continue
		}
		dst, err := state.Field(p.host)
		if err != nil {
			return err
		}
		if err := checkShape(p.host, dst, ncol, nlev); err != nil {
			return err
		}
		profiles = append(profiles, pair{dst: dst, src: dm.fields.byName[p.iop].Data.Host()})
	}

	var winds *sparse.DenseArray
	var windSrc [2][]float64
	if state.HasField("horiz_winds") {
		for i, name := range []string{"u", "v"} {
			if f, ok := dm.fields.byName[name]; ok {
				windSrc[i] = f.Data.Host()
			}
		}
		if windSrc[0] != nil || windSrc[1] != nil {
			var err error
			if winds, err = state.Field("horiz_winds"); err != nil {
				return err
			}
			if err := checkShape("horiz_winds", winds, ncol, 2, nlev); err != nil {
				return err
			}
		}
	}

	var ps *sparse.DenseArray
	var psIOP float64
	if state.HasField("ps") && dm.fields.Has("Ps") {
		var err error
		if ps, err = state.Field("ps"); err != nil {
			return err
		}
		if err := checkShape("ps", ps, ncol); err != nil {
			return err
		}
		psIOP = dm.fields.byName["Ps"].Data.Host()[0]
	}

	parallelFor(ncol, func(c int) {
		if ps != nil {
			ps.Elements[c] = psIOP
		}
		for _, p := range profiles {
			copy(p.dst.Elements[c*nlev:(c+1)*nlev], p.src)
		}
		if winds != nil {
			for k, src := range windSrc {
				if src != nil {
					i := winds.Index1d(c, k, 0)
					copy(winds.Elements[i:i+nlev], src)
				}
			}
		}
	})
	dm.log.WithFields(logrus.Fields{
		"columns":    ncol,
		"profiles":   len(profiles),
		"time_index": dm.timeAxis.Current(),
	}).Debug("iop: set host state from forcing data")
	return nil
}

// correctTemperatureAndWaterVapor replaces the levels above the first
// positive temperature in the T and q forcing profiles with column 0
// of the host T_mid and qv fields.
func (dm *DataManager) correctTemperatureAndWaterVapor(state HostState) error {
	t, err := dm.fields.Get("T")
	if err != nil {
		return err
	}
	tv := t.Data.Host()
	firstValid := searchIndex(len(tv), lowest, 0, len(tv), func(l int) bool { return tv[l] > 0 })
	if firstValid == 0 {
		return nil
	}
	for _, name := range []string{"T_mid", "qv"} {
		if !state.HasField(name) {
			return fmt.Errorf("%w: correcting forcing temperature and moisture requires host field %s",
				ErrMissingHostField, name)
		}
	}
	q, err := dm.fields.Get("q")
	if err != nil {
		return err
	}
	tMid, err := state.Field("T_mid")
	if err != nil {
		return err
	}
	qv, err := state.Field("qv")
	if err != nil {
		return err
	}
	ncol, nlev := state.NumColumns(), state.NumLevels()
	if err := checkShape("T_mid", tMid, ncol, nlev); err != nil {
		return err
	}
	if err := checkShape("qv", qv, ncol, nlev); err != nil {
		return err
	}
	qvIOP := q.Data.Host()
	parallelFor(firstValid, func(l int) {
		tv[l] = tMid.Get(0, l)
		qvIOP[l] = qv.Get(0, l)
	})
	t.Data.ModifyHost()
	t.Data.SyncToDevice()
	q.Data.ModifyHost()
	q.Data.SyncToDevice()

	dm.log.WithFields(logrus.Fields{
		"levels": firstValid,
	}).Info("iop: replaced non-positive forcing temperature levels with host state")
	return nil
}

// checkShape returns an error if the host field a does not have the
// given shape.
func checkShape(name string, a *sparse.DenseArray, shape ...int) error {
	if len(a.Shape) != len(shape) {
		return fmt.Errorf("%w: host field %s has shape %v; expected %v", ErrConfig, name, a.Shape, shape)
	}
	for i, n := range shape {
		if a.Shape[i] != n {
			return fmt.Errorf("%w: host field %s has shape %v; expected %v", ErrConfig, name, a.Shape, shape)
		}
	}
	return nil
}
