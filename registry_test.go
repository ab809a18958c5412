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
	"errors"
	"strings"
	"testing"
	"time"

	"gonum.org/v1/gonum/floats"
)

func TestBuildRegistry(t *testing.T) {
	d := testForcingData()
	d.Scalars["sh"] = []float64{10, 11, 12}
	d.Scalars["Tsair"] = []float64{290, 291, 292}
	ff := openTestFile(t, d)
	r, err := buildRegistry(ff, 5, false)
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"Ps", "Tg", "lhflx", "shflx", "T", "q", "divT", "divq", "u", "v"} {
		if !r.Has(name) {
			t.Errorf("missing field %s", name)
		}
	}
	for _, name := range []string{"cld", "omega", "u_ls", "divT3d", "divq3d"} {
		if r.Has(name) {
			t.Errorf("field %s should not be set up", name)
		}
	}
	lh, _ := r.Get("lhflx")
	if lh.FileVar() != "lh" {
		t.Errorf("lhflx file variable: have %q, want lh", lh.FileVar())
	}
	sh, _ := r.Get("shflx")
	if sh.FileVar() != "sh" {
		t.Errorf("shflx file variable: have %q, want sh", sh.FileVar())
	}
	T, _ := r.Get("T")
	if T.SurfaceName != "Tsair" || T.Data.Len() != 5 || T.Rank != 1 {
		t.Errorf("T: have surface %q, length %d, rank %d", T.SurfaceName, T.Data.Len(), T.Rank)
	}
	q, _ := r.Get("q")
	if q.SurfaceName != "" {
		t.Errorf("q surface: have %q, want none", q.SurfaceName)
	}
	ps, _ := r.Get("Ps")
	if ps.Data.Len() != 1 || ps.Rank != 0 {
		t.Errorf("Ps: have length %d, rank %d", ps.Data.Len(), ps.Rank)
	}
	if r.UseLargeScaleWind || r.Use3DForcing {
		t.Error("large-scale wind and 3-D forcing should not be in use")
	}
	if _, err := r.Get("cld"); err == nil {
		t.Error("getting a missing field should fail")
	}
	if !strings.Contains(r.String(), "lhflx") {
		t.Errorf("registry string is missing lhflx:\n%s", r)
	}
}

func TestRegistrySetup(t *testing.T) {
	ff := openTestFile(t, testForcingData())
	r := NewRegistry()
	if _, err := r.Setup(ff, []string{"T"}, 2, 5, ""); !errors.Is(err, ErrRank) {
		t.Errorf("rank 2: have error %v, want %v", err, ErrRank)
	}
	f, err := r.Setup(ff, []string{"cld"}, 1, 5, "")
	if err != nil || f != nil {
		t.Errorf("absent field: have (%v, %v), want (nil, nil)", f, err)
	}
	if _, err = r.Setup(ff, []string{"T"}, 1, 5, ""); err != nil {
		t.Fatal(err)
	}
	defer func() {
		if recover() == nil {
			t.Error("setting up a field twice should panic")
		}
	}()
	r.Setup(ff, []string{"T"}, 1, 5, "")
}

func TestThreeDForcing(t *testing.T) {
	d := testForcingData()
	d.Profiles["vertdivT"] = profile(func(t int, p float64) float64 { return 2e-5 * p })
	d.Profiles["vertdivq"] = profile(func(t int, p float64) float64 { return 3e-8 * p })
	dm := newTestManager(t, d)
	if !dm.Use3DForcing() {
		t.Fatal("3-D forcing should be in use")
	}
	for _, name := range []string{"divT3d", "divq3d"} {
		f, err := dm.Field(name)
		if err != nil {
			t.Fatal(err)
		}
		if f.Provenance != Computed {
			t.Errorf("%s: have provenance %v, want %v", name, f.Provenance, Computed)
		}
	}
	if _, err := dm.ReadIOPFileData(dm.TimeAxis().Begin.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	for _, c := range threeDForcing {
		sum, _ := dm.Field(c.name)
		h, _ := dm.Field(c.horizontal)
		v, _ := dm.Field(c.vertical)
		want := make([]float64, sum.Data.Len())
		floats.AddTo(want, h.Data.Host(), v.Data.Host())
		if !floats.EqualApprox(sum.Data.Host(), want, testTolerance) {
			t.Errorf("%s: have %v, want %v", c.name, sum.Data.Host(), want)
		}
	}
	divT3d, _ := dm.Field("divT3d")
	for l, p := range dm.ModelPressure() {
		if want := 3e-5 * p; !floats.EqualWithinAbsOrRel(divT3d.Data.Host()[l], want, testTolerance, testTolerance) {
			t.Errorf("divT3d level %d: have %g, want %g", l, divT3d.Data.Host()[l], want)
		}
	}
}

func TestThreeDForcingFromFile(t *testing.T) {
	d := testForcingData()
	d.Profiles["divT3d"] = profile(func(t int, p float64) float64 { return 1 })
	d.Profiles["vertdivT"] = profile(func(t int, p float64) float64 { return 2 })
	d.Profiles["vertdivq"] = profile(func(t int, p float64) float64 { return 3 })
	dm := newTestManager(t, d)
	divT3d, _ := dm.Field("divT3d")
	if divT3d.Provenance != FromFile {
		t.Errorf("divT3d in the file should not be computed")
	}
	divq3d, _ := dm.Field("divq3d")
	if divq3d.Provenance != Computed {
		t.Errorf("divq3d should be computed")
	}
	if _, err := dm.ReadIOPFileData(dm.TimeAxis().Begin); err != nil {
		t.Fatal(err)
	}
	for l, v := range divT3d.Data.Host() {
		if v != 1 {
			t.Errorf("divT3d level %d: have %g, want 1", l, v)
		}
	}
}
