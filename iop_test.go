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
	"io"
	"io/ioutil"
	"math"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
)

const testTolerance = 1.e-10

// memFile is an in-memory cdf.ReaderWriterAt.
type memFile struct {
	b []byte
}

func (m *memFile) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(m.b)) {
		return 0, io.EOF
	}
	n := copy(p, m.b[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (m *memFile) WriteAt(p []byte, off int64) (int, error) {
	if end := int(off) + len(p); end > len(m.b) {
		b := make([]byte, end)
		copy(b, m.b)
		m.b = b
	}
	copy(m.b[off:], p)
	return len(p), nil
}

var (
	testLevels = []float64{10000, 30000, 50000, 70000, 85000, 95000, 100000} // Pa
	testPs     = []float64{97000, 97500, 98000}                               // Pa
	testHyam   = []float64{0.1, 0.05, 0, 0, 0}
	testHybm   = []float64{0.1, 0.35, 0.6, 0.8, 0.95}
)

// profile returns f evaluated at every test level pressure [mb] for
// every time slot.
func profile(f func(t int, p float64) float64) [][]float64 {
	o := make([][]float64, len(testPs))
	for t := range o {
		o[t] = make([]float64, len(testLevels))
		for l, p := range testLevels {
			o[t][l] = f(t, p/100)
		}
	}
	return o
}

func testTemperature(t int, p float64) float64 { return 200 + 0.1*p + float64(t) }

// testForcingData returns the contents of a forcing file at the ARM
// Southern Great Plains site.
func testForcingData() *ForcingData {
	return &ForcingData{
		BaseDate:    19950701,
		TimeOffsets: []int{0, 3600, 7200},
		Lat:         36.6,
		Lon:         -97.5,
		Levels:      append([]float64(nil), testLevels...),
		Scalars: map[string][]float64{
			"Ps": append([]float64(nil), testPs...),
			"Tg": {300, 301, 302},
			"lh": {100, 110, 120},
		},
		Profiles: map[string][][]float64{
			"T":    profile(testTemperature),
			"q":    profile(func(t int, p float64) float64 { return 1e-5 * p }),
			"divT": profile(func(t int, p float64) float64 { return 1e-5 * p }),
			"divq": profile(func(t int, p float64) float64 { return -2e-8 * p }),
			"u":    profile(func(t int, p float64) float64 { return 5 + 0.01*p }),
			"v":    profile(func(t int, p float64) float64 { return -3 + 0.005*p }),
		},
	}
}

// openTestFile writes d into memory and opens it.
func openTestFile(t *testing.T, d *ForcingData) *ForcingFile {
	t.Helper()
	m := new(memFile)
	if err := d.Write(m); err != nil {
		t.Fatal(err)
	}
	ff, err := OpenForcingFile(m, int64(len(m.b)))
	if err != nil {
		t.Fatal(err)
	}
	return ff
}

func testOptions() Options {
	o := DefaultOptions()
	o.DoublyPeriodicMode = true
	o.TargetLatitude = 36.6
	o.TargetLongitude = 262.5
	return o
}

func testLogger() logrus.FieldLogger {
	l := logrus.New()
	l.Out = ioutil.Discard
	return l
}

func newTestManager(t *testing.T, d *ForcingData, options ...Option) *DataManager {
	t.Helper()
	ff := openTestFile(t, d)
	begin := time.Date(1995, 7, 1, 0, 0, 0, 0, time.UTC)
	options = append([]Option{WithLogger(testLogger())}, options...)
	dm, err := NewDataManager(testOptions(), ff, begin, len(testHyam), testHyam, testHybm, options...)
	if err != nil {
		t.Fatal(err)
	}
	return dm
}

func different(a, b, tolerance float64) bool {
	if 2*math.Abs(a-b)/math.Abs(a+b) > tolerance || math.IsNaN(a) || math.IsNaN(b) {
		return true
	}
	return false
}

func TestEndToEnd(t *testing.T) {
	reg := prometheus.NewRegistry()
	dm := newTestManager(t, testForcingData(), WithMetrics(reg))
	defer dm.Close()

	begin := dm.TimeAxis().Begin
	if want := time.Date(1995, 7, 1, 0, 0, 0, 0, time.UTC); !begin.Equal(want) {
		t.Fatalf("begin: have %v, want %v", begin, want)
	}

	reloaded, err := dm.ReadIOPFileData(begin.Add(3650 * time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if !reloaded {
		t.Error("first query should reload")
	}
	if c := dm.TimeAxis().Current(); c != 1 {
		t.Errorf("time index: have %d, want 1", c)
	}

	reloaded, err = dm.ReadIOPFileData(begin.Add(3700 * time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if reloaded {
		t.Error("second query in the same time slot should not reload")
	}
	if n := testutil.ToFloat64(dm.metrics.reloads); n != 1 {
		t.Errorf("reloads: have %g, want 1", n)
	}
	if n := testutil.ToFloat64(dm.metrics.skips); n != 1 {
		t.Errorf("skips: have %g, want 1", n)
	}
	if n := testutil.ToFloat64(dm.metrics.timeIndex); n != 1 {
		t.Errorf("time index gauge: have %g, want 1", n)
	}

	ps, _ := dm.Field("Ps")
	if v := ps.Data.Host()[0]; v != testPs[1] {
		t.Errorf("Ps: have %g, want %g", v, testPs[1])
	}
	lh, _ := dm.Field("lhflx")
	if v := lh.Data.Host()[0]; v != 110 {
		t.Errorf("lhflx: have %g, want 110", v)
	}

	r := dm.Overlap()
	want := OverlapRange{FileStart: 0, FileEnd: 6, ModelStart: 0, ModelEnd: 5, AdjustedFileLevels: 7}
	if r != want {
		t.Errorf("overlap: have %+v, want %+v", r, want)
	}

	mp := dm.ModelPressure()
	psMb := testPs[1] / 100
	divT, _ := dm.Field("divT")
	for l, p := range mp {
		if wantP := 1000*testHyam[l] + testPs[1]*testHybm[l]/100; !floats.EqualWithinAbsOrRel(p, wantP, testTolerance, testTolerance) {
			t.Errorf("model pressure level %d: have %g, want %g", l, p, wantP)
		}
		// divT is linear in pressure, so interpolation is exact.
		if v := divT.Data.Host()[l]; !floats.EqualWithinAbsOrRel(v, 1e-5*p, testTolerance, testTolerance) {
			t.Errorf("divT level %d: have %g, want %g", l, v, 1e-5*p)
		}
	}

	T, _ := dm.Field("T")
	tv := T.Data.Host()
	if want := testTemperature(1, testLevels[0]/100); tv[0] != want {
		t.Errorf("T top: have %g, want %g", tv[0], want)
	}
	if want := testTemperature(1, psMb); different(tv[4], want, testTolerance) {
		t.Errorf("T surface: have %g, want %g", tv[4], want)
	}
	for l := 1; l < 4; l++ {
		if want := testTemperature(1, mp[l]); different(tv[l], want, testTolerance) {
			t.Errorf("T level %d: have %g, want %g", l, tv[l], want)
		}
	}

	state := NewPhysicsState(3, len(testHyam))
	if err := dm.SetFieldsFromIOPData(state); err != nil {
		t.Fatal(err)
	}
	tMid, _ := state.Field("T_mid")
	winds, _ := state.Field("horiz_winds")
	psHost, _ := state.Field("ps")
	u, _ := dm.Field("u")
	v, _ := dm.Field("v")
	for c := 0; c < 3; c++ {
		if psHost.Get(c) != testPs[1] {
			t.Errorf("ps column %d: have %g, want %g", c, psHost.Get(c), testPs[1])
		}
		for l := range tv {
			if tMid.Get(c, l) != tv[l] {
				t.Errorf("T_mid(%d, %d): have %g, want %g", c, l, tMid.Get(c, l), tv[l])
			}
			if winds.Get(c, 0, l) != u.Data.Host()[l] {
				t.Errorf("u(%d, %d): have %g, want %g", c, l, winds.Get(c, 0, l), u.Data.Host()[l])
			}
			if winds.Get(c, 1, l) != v.Data.Host()[l] {
				t.Errorf("v(%d, %d): have %g, want %g", c, l, winds.Get(c, 1, l), v.Data.Host()[l])
			}
		}
	}

	if _, err := dm.ReadIOPFileData(begin.Add(10 * time.Second)); !errors.Is(err, ErrTimeReversal) {
		t.Errorf("stepping back in time: have error %v, want %v", err, ErrTimeReversal)
	}
}

func TestNewDataManagerErrors(t *testing.T) {
	begin := time.Date(1995, 7, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		opts    func(*Options)
		data    func(*ForcingData)
		t0      time.Time
		wantErr error
	}{
		{
			name:    "not doubly periodic",
			opts:    func(o *Options) { o.DoublyPeriodicMode = false },
			wantErr: ErrConfig,
		},
		{
			name:    "latitude out of range",
			opts:    func(o *Options) { o.TargetLatitude = 91 },
			wantErr: ErrConfig,
		},
		{
			name:    "longitude out of range",
			opts:    func(o *Options) { o.TargetLongitude = -97.5 },
			wantErr: ErrConfig,
		},
		{
			name:    "latitude mismatch",
			opts:    func(o *Options) { o.TargetLatitude = 36.7 },
			wantErr: ErrLocationMismatch,
		},
		{
			name:    "longitude mismatch",
			data:    func(d *ForcingData) { d.Lon = -97.4 },
			wantErr: ErrLocationMismatch,
		},
		{
			name:    "missing divq",
			data:    func(d *ForcingData) { delete(d.Profiles, "divq") },
			wantErr: ErrMissingVariable,
		},
		{
			name:    "missing Ps",
			data:    func(d *ForcingData) { delete(d.Scalars, "Ps") },
			wantErr: ErrMissingVariable,
		},
		{
			name: "u_ls without v_ls",
			data: func(d *ForcingData) {
				d.Profiles["u_ls"] = profile(func(int, float64) float64 { return 1 })
			},
			wantErr: ErrConfig,
		},
		{
			name:    "coriolis without large-scale winds",
			opts:    func(o *Options) { o.Coriolis = true },
			wantErr: ErrConfig,
		},
		{
			name: "vertical temperature tendency only",
			data: func(d *ForcingData) {
				d.Profiles["vertdivT"] = profile(func(int, float64) float64 { return 1 })
			},
			wantErr: ErrConfig,
		},
		{
			name:    "run start before forcing period",
			t0:      begin.Add(-time.Second),
			wantErr: ErrOutsidePeriod,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			d := testForcingData()
			if test.data != nil {
				test.data(d)
			}
			o := testOptions()
			if test.opts != nil {
				test.opts(&o)
			}
			t0 := begin
			if !test.t0.IsZero() {
				t0 = test.t0
			}
			_, err := NewDataManager(o, openTestFile(t, d), t0, len(testHyam), testHyam, testHybm, WithLogger(testLogger()))
			if !errors.Is(err, test.wantErr) {
				t.Errorf("have error %v, want %v", err, test.wantErr)
			}
		})
	}
}

func TestLargeScaleWindAndCoriolis(t *testing.T) {
	d := testForcingData()
	d.Profiles["u_ls"] = profile(func(int, float64) float64 { return 2 })
	d.Profiles["v_ls"] = profile(func(int, float64) float64 { return -2 })
	o := testOptions()
	o.Coriolis = true
	begin := time.Date(1995, 7, 1, 0, 0, 0, 0, time.UTC)
	dm, err := NewDataManager(o, openTestFile(t, d), begin, len(testHyam), testHyam, testHybm, WithLogger(testLogger()))
	if err != nil {
		t.Fatal(err)
	}
	if !dm.UseLargeScaleWind() {
		t.Error("large-scale winds should be in use")
	}
	if dm.Use3DForcing() {
		t.Error("3-D forcing should not be in use")
	}
}

func TestBadPressureProfile(t *testing.T) {
	d := testForcingData()
	// Surface pressure above the top file level.
	d.Scalars["Ps"] = []float64{5000, 5000, 5000}
	dm := newTestManager(t, d)
	_, err := dm.ReadIOPFileData(dm.TimeAxis().Begin)
	if !errors.Is(err, ErrBadPressureProfile) {
		t.Errorf("have error %v, want %v", err, ErrBadPressureProfile)
	}
	if c := dm.TimeAxis().Current(); c != -1 {
		t.Errorf("time index should not be committed after a failed reload; have %d", c)
	}
}

func TestSurfaceVariable(t *testing.T) {
	d := testForcingData()
	d.Scalars["Tsair"] = []float64{290, 291, 292}
	dm := newTestManager(t, d)
	if _, err := dm.ReadIOPFileData(dm.TimeAxis().Begin.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	T, _ := dm.Field("T")
	if T.SurfaceName != "Tsair" {
		t.Errorf("surface name: have %q, want Tsair", T.SurfaceName)
	}
	if v := T.Data.Host()[len(testHyam)-1]; v != 291 {
		t.Errorf("T surface: have %g, want 291", v)
	}
}
