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
	"testing"
	"time"
)

func TestTimeAxisResolve(t *testing.T) {
	ta, err := NewTimeAxis(19950701, []int{0, 3600, 7200})
	if err != nil {
		t.Fatal(err)
	}
	begin := time.Date(1995, 7, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		offset  time.Duration
		want    int
		wantErr error
	}{
		{offset: 0, want: 0},
		{offset: 3599 * time.Second, want: 0},
		{offset: 3600 * time.Second, want: 1},
		{offset: 3650 * time.Second, want: 1},
		{offset: 7199 * time.Second, want: 1},
		{offset: 7200 * time.Second, wantErr: ErrOutsidePeriod},
		{offset: -time.Second, wantErr: ErrOutsidePeriod},
	}
	for _, test := range tests {
		idx, err := ta.Resolve(begin.Add(test.offset))
		if test.wantErr != nil {
			if !errors.Is(err, test.wantErr) {
				t.Errorf("%v: have error %v, want %v", test.offset, err, test.wantErr)
			}
			continue
		}
		if err != nil {
			t.Errorf("%v: %v", test.offset, err)
			continue
		}
		if idx != test.want {
			t.Errorf("%v: have index %d, want %d", test.offset, idx, test.want)
		}
	}
	if ta.Current() != -1 {
		t.Errorf("Resolve should not change the loaded index; have %d", ta.Current())
	}
}

func TestTimeAxisSingleSlot(t *testing.T) {
	ta, err := NewTimeAxis(20000101, []int{0})
	if err != nil {
		t.Fatal(err)
	}
	idx, err := ta.Resolve(ta.Begin.Add(48 * time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if idx != 0 {
		t.Errorf("have index %d, want 0", idx)
	}
}

func TestTimeAxisReload(t *testing.T) {
	ta, err := NewTimeAxis(19950701, []int{0, 3600, 7200})
	if err != nil {
		t.Fatal(err)
	}
	at := func(s int) time.Time { return ta.Begin.Add(time.Duration(s) * time.Second) }

	idx, reload, err := ta.NeedsReload(at(100))
	if err != nil || !reload || idx != 0 {
		t.Fatalf("first request: have (%d, %v, %v), want (0, true, nil)", idx, reload, err)
	}
	ta.Commit(idx)

	// Repeated requests within a slot do not reload.
	for i := 0; i < 3; i++ {
		idx, reload, err = ta.NeedsReload(at(200))
		if err != nil || reload || idx != 0 {
			t.Fatalf("repeated request: have (%d, %v, %v), want (0, false, nil)", idx, reload, err)
		}
	}

	idx, reload, err = ta.NeedsReload(at(4000))
	if err != nil || !reload || idx != 1 {
		t.Fatalf("next slot: have (%d, %v, %v), want (1, true, nil)", idx, reload, err)
	}
	ta.Commit(idx)

	if _, _, err = ta.NeedsReload(at(100)); !errors.Is(err, ErrTimeReversal) {
		t.Errorf("have error %v, want %v", err, ErrTimeReversal)
	}
	if ta.Current() != 1 {
		t.Errorf("failed request changed the loaded index to %d", ta.Current())
	}
}

func TestTimeAxisCommitBackwards(t *testing.T) {
	ta, err := NewTimeAxis(19950701, []int{0, 3600})
	if err != nil {
		t.Fatal(err)
	}
	ta.Commit(1)
	defer func() {
		if recover() == nil {
			t.Error("committing an earlier index should panic")
		}
	}()
	ta.Commit(0)
}

func TestNewTimeAxisErrors(t *testing.T) {
	if _, err := NewTimeAxis(19950732, []int{0}); err == nil {
		t.Error("invalid base date should fail")
	}
	if _, err := NewTimeAxis(19950701, nil); !errors.Is(err, ErrMissingVariable) {
		t.Errorf("no offsets: have error %v, want %v", err, ErrMissingVariable)
	}
	if _, err := NewTimeAxis(19950701, []int{0, 3600, 3600}); err == nil {
		t.Error("repeated offsets should fail")
	}
}

func TestReadTimeAxis(t *testing.T) {
	ff := openTestFile(t, testForcingData())
	ta, err := ReadTimeAxis(ff)
	if err != nil {
		t.Fatal(err)
	}
	if ff.TimeDim() != "time" {
		t.Errorf("time dimension: have %q, want time", ff.TimeDim())
	}
	want := []int{0, 3600, 7200}
	offsets := ta.Offsets()
	if len(offsets) != len(want) {
		t.Fatalf("offsets: have %v, want %v", offsets, want)
	}
	for i := range want {
		if offsets[i] != want[i] {
			t.Errorf("offset %d: have %d, want %d", i, offsets[i], want[i])
		}
	}
	if !ta.Begin.Equal(time.Date(1995, 7, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("begin: have %v", ta.Begin)
	}
}
