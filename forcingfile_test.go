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
	"os"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/floats"
)

func TestForcingFileRead(t *testing.T) {
	d := testForcingData()
	ff := openTestFile(t, d)
	ff.SetTimeDim("time")

	if n, ok := ff.DimLen("time"); !ok || n != 3 {
		t.Errorf("time records: have (%d, %v), want (3, true)", n, ok)
	}
	if n, ok := ff.DimLen("lev"); !ok || n != len(testLevels) {
		t.Errorf("lev: have (%d, %v), want (%d, true)", n, ok, len(testLevels))
	}
	if ff.HasDim("ncol") {
		t.Error("file should not have dimension ncol")
	}
	if u, ok := ff.Attribute("lev", "units"); !ok || u != "Pa" {
		t.Errorf("lev units: have (%q, %v), want (Pa, true)", u, ok)
	}

	for ti := range d.TimeOffsets {
		T, err := ff.ReadSlice("T", ti)
		if err != nil {
			t.Fatal(err)
		}
		if !floats.Equal(T, d.Profiles["T"][ti]) {
			t.Errorf("T time %d: have %v, want %v", ti, T, d.Profiles["T"][ti])
		}
		ps, err := ff.ReadScalar("Ps", ti)
		if err != nil {
			t.Fatal(err)
		}
		if ps != testPs[ti] {
			t.Errorf("Ps time %d: have %g, want %g", ti, ps, testPs[ti])
		}
	}

	lev, err := ff.ReadAll("lev")
	if err != nil {
		t.Fatal(err)
	}
	if !floats.Equal(lev, testLevels) {
		t.Errorf("lev: have %v, want %v", lev, testLevels)
	}
	// Variables without a time dimension ignore the time index.
	lev, err = ff.ReadSlice("lev", 2)
	if err != nil {
		t.Fatal(err)
	}
	if !floats.Equal(lev, testLevels) {
		t.Errorf("lev slice: have %v, want %v", lev, testLevels)
	}

	if _, err = ff.ReadSlice("T", 3); err == nil {
		t.Error("reading past the last time slot should fail")
	}
	if _, err = ff.ReadScalar("T", 0); err == nil {
		t.Error("reading a profile as a scalar should fail")
	}
	if _, err = ff.ReadAll("cld"); !errors.Is(err, ErrMissingVariable) {
		t.Errorf("missing variable: have error %v, want %v", err, ErrMissingVariable)
	}
}

func TestForcingFileOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "iop.nc")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err = testForcingData().Write(f); err != nil {
		t.Fatal(err)
	}
	if err = f.Close(); err != nil {
		t.Fatal(err)
	}

	ff, err := OpenForcingFilePath(path)
	if err != nil {
		t.Fatal(err)
	}
	defer ff.Close()
	if ff.Name() != path {
		t.Errorf("name: have %q, want %q", ff.Name(), path)
	}
	ta, err := ReadTimeAxis(ff)
	if err != nil {
		t.Fatal(err)
	}
	if ta.Len() != 3 {
		t.Errorf("time slots: have %d, want 3", ta.Len())
	}
	q, err := ff.ReadSlice("q", 2)
	if err != nil {
		t.Fatal(err)
	}
	if want := testForcingData().Profiles["q"][2]; !floats.Equal(q, want) {
		t.Errorf("q: have %v, want %v", q, want)
	}
}

func TestForcingDataWriteErrors(t *testing.T) {
	d := testForcingData()
	d.Scalars["Tg"] = []float64{1}
	if err := d.Write(new(memFile)); err == nil {
		t.Error("scalar with the wrong number of time slots should fail")
	}
	d = testForcingData()
	d.Profiles["T"][1] = []float64{1, 2}
	if err := d.Write(new(memFile)); err == nil {
		t.Error("profile with the wrong number of levels should fail")
	}
}
