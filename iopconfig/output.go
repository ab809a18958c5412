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

package iopconfig

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
	"github.com/spatialmodel/iop"
)

// columnOutput holds the model state in column 0 at every step.
type columnOutput struct {
	tsec []int32
	ps   *sparse.DenseArray
	T    *sparse.DenseArray
	qv   *sparse.DenseArray
	u, v *sparse.DenseArray
	nlev int
}

func newColumnOutput(nsteps, nlev int) *columnOutput {
	return &columnOutput{
		tsec: make([]int32, nsteps),
		ps:   sparse.ZerosDense(nsteps),
		T:    sparse.ZerosDense(nsteps, nlev),
		qv:   sparse.ZerosDense(nsteps, nlev),
		u:    sparse.ZerosDense(nsteps, nlev),
		v:    sparse.ZerosDense(nsteps, nlev),
		nlev: nlev,
	}
}

// record copies column 0 of state into step i, which is elapsed after
// the start of the run.
func (o *columnOutput) record(i int, elapsed time.Duration, state iop.HostState) error {
	o.tsec[i] = int32(elapsed / time.Second)
	ps, err := state.Field("ps")
	if err != nil {
		return err
	}
	o.ps.Set(ps.Get(0), i)
	for _, v := range []struct {
		name string
		dst  *sparse.DenseArray
	}{{"T_mid", o.T}, {"qv", o.qv}} {
		a, err := state.Field(v.name)
		if err != nil {
			return err
		}
		for k := 0; k < o.nlev; k++ {
			v.dst.Set(a.Get(0, k), i, k)
		}
	}
	winds, err := state.Field("horiz_winds")
	if err != nil {
		return err
	}
	for k := 0; k < o.nlev; k++ {
		o.u.Set(winds.Get(0, 0, k), i, k)
		o.v.Set(winds.Get(0, 1, k), i, k)
	}
	return nil
}

// write saves the output to a NetCDF file at path.
func (o *columnOutput) write(path string, start time.Time) error {
	nsteps := len(o.tsec)
	h := cdf.NewHeader([]string{"time", "lev"}, []int{nsteps, o.nlev})
	h.AddAttribute("", "comment", "model state in the first column at every step")
	h.AddAttribute("", "start_time", start.Format(time.RFC3339))
	h.AddVariable("tsec", []string{"time"}, []int32{0})
	h.AddAttribute("tsec", "units", "s")
	for _, v := range []struct{ name, description, units string }{
		{"ps", "surface pressure", "Pa"},
		{"T_mid", "temperature at level midpoints", "K"},
		{"qv", "water vapor mixing ratio", "kg/kg"},
		{"u", "zonal wind", "m/s"},
		{"v", "meridional wind", "m/s"},
	} {
		dims := []string{"time", "lev"}
		if v.name == "ps" {
			dims = dims[:1]
		}
		h.AddVariable(v.name, dims, []float32{0})
		h.AddAttribute(v.name, "description", v.description)
		h.AddAttribute(v.name, "units", v.units)
	}
	h.Define()

	ff, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("iop: creating output file: %v", err)
	}
	f, err := cdf.Create(ff, h)
	if err != nil {
		ff.Close()
		return fmt.Errorf("iop: creating output file: %v", err)
	}
	w := f.Writer("tsec", nil, nil)
	if _, err = w.Write(o.tsec); err != nil && err != io.EOF {
		ff.Close()
		return fmt.Errorf("iop: writing tsec: %v", err)
	}
	for name, data := range map[string]*sparse.DenseArray{
		"ps": o.ps, "T_mid": o.T, "qv": o.qv, "u": o.u, "v": o.v,
	} {
		if err = writeNCF(f, name, data); err != nil {
			ff.Close()
			return fmt.Errorf("iop: writing %s: %v", name, err)
		}
	}
	return ff.Close()
}

func writeNCF(f *cdf.File, Var string, data *sparse.DenseArray) error {
	// Check that data matches dimensions.
	n := 1
	for _, v := range data.Shape {
		n *= v
	}
	if len(data.Elements) != n {
		return fmt.Errorf("dims are %d but array length is %d", n, len(data.Elements))
	}

	data32 := make([]float32, len(data.Elements))
	for i, e := range data.Elements {
		data32[i] = float32(e)
	}
	end := f.Header.Lengths(Var)
	start := make([]int, len(end))
	w := f.Writer(Var, start, end)
	if _, err := w.Write(data32); err != nil && err != io.EOF {
		return err
	}
	return nil
}
