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
	"time"
)

// Alternate names of the forcing file base date variable and time
// dimension, in order of preference.
var (
	baseDateNames = []string{"bdate", "basedate", "nbdate"}
	timeDimNames  = []string{"time", "tsec"}
)

// TimeAxis maps simulation times onto the time slots of a
// forcing file and keeps track of which slot is loaded.
type TimeAxis struct {
	// Begin is the forcing file base date at 00:00:00 UTC.
	Begin time.Time

	// offsets are the starts of the time slots [seconds since Begin].
	offsets []int

	// current is the index of the loaded slot, or -1 if none is loaded.
	current int
}

// NewTimeAxis creates a time axis from a YYYYMMDD base date and
// strictly increasing slot offsets in seconds.
func NewTimeAxis(baseDate int, offsets []int) (*TimeAxis, error) {
	begin, err := parseBaseDate(baseDate)
	if err != nil {
		return nil, err
	}
	if len(offsets) == 0 {
		return nil, fmt.Errorf("%w: forcing file has no time slots", ErrMissingVariable)
	}
	for i := 1; i < len(offsets); i++ {
		if offsets[i] <= offsets[i-1] {
			return nil, fmt.Errorf("iop: forcing file time offsets must be strictly increasing; offset %d (%d s) follows %d s",
				i, offsets[i], offsets[i-1])
		}
	}
	o := make([]int, len(offsets))
	copy(o, offsets)
	return &TimeAxis{Begin: begin, offsets: o, current: -1}, nil
}

func parseBaseDate(d int) (time.Time, error) {
	yr, mo, day := d/10000, (d/100)%100, d%100
	t := time.Date(yr, time.Month(mo), day, 0, 0, 0, 0, time.UTC)
	if d <= 0 || t.Year() != yr || t.Month() != time.Month(mo) || t.Day() != day {
		return time.Time{}, fmt.Errorf("iop: invalid forcing file base date %d; expected YYYYMMDD", d)
	}
	return t, nil
}

// Current returns the index of the loaded time slot, or -1 if no
// slot has been loaded.
func (ta *TimeAxis) Current() int { return ta.current }

// Len returns the number of time slots.
func (ta *TimeAxis) Len() int { return len(ta.offsets) }

// Offsets returns a copy of the time slot starts [seconds since Begin].
func (ta *TimeAxis) Offsets() []int {
	o := make([]int, len(ta.offsets))
	copy(o, ta.offsets)
	return o
}

// SlotTime returns the start time of slot i.
func (ta *TimeAxis) SlotTime(i int) time.Time {
	return ta.Begin.Add(time.Duration(ta.offsets[i]) * time.Second)
}

// Resolve returns the index of the latest slot whose start is not
// after t. The end of the last slot is its own start, so a t at or
// after the last slot start is outside the forcing period unless the
// file has a single slot. Resolve does not change the state of ta.
func (ta *TimeAxis) Resolve(t time.Time) (int, error) {
	elapsed := t.Sub(ta.Begin).Seconds()
	last := len(ta.offsets) - 1
	if elapsed < float64(ta.offsets[0]) {
		return -1, fmt.Errorf("%w: %s is before the first time slot at %s", ErrOutsidePeriod,
			t.Format(time.RFC3339), ta.SlotTime(0).Format(time.RFC3339))
	}
	if last > 0 && elapsed >= float64(ta.offsets[last]) {
		return -1, fmt.Errorf("%w: %s is not before the last time slot at %s", ErrOutsidePeriod,
			t.Format(time.RFC3339), ta.SlotTime(last).Format(time.RFC3339))
	}
	i := sort.Search(len(ta.offsets), func(i int) bool {
		return float64(ta.offsets[i]) > elapsed
	})
	return i - 1, nil
}

// NeedsReload resolves t and reports whether the resolved slot
// differs from the loaded one. It fails if the resolved slot is
// earlier than the loaded one.
func (ta *TimeAxis) NeedsReload(t time.Time) (int, bool, error) {
	idx, err := ta.Resolve(t)
	if err != nil {
		return idx, false, err
	}
	if idx < ta.current {
		return idx, false, fmt.Errorf("%w: requested %d, loaded %d", ErrTimeReversal, idx, ta.current)
	}
	return idx, idx != ta.current, nil
}

// Commit records that slot idx has been loaded.
func (ta *TimeAxis) Commit(idx int) {
	if idx < ta.current {
		panic(fmt.Sprintf("iop: committing time index %d after %d", idx, ta.current))
	}
	ta.current = idx
}

// ReadTimeAxis reads the base date and time offsets from ff and marks
// the time dimension on ff.
func ReadTimeAxis(ff *ForcingFile) (*TimeAxis, error) {
	bdName, ok := resolveName(baseDateNames, ff.HasVar)
	if !ok {
		return nil, fmt.Errorf("%w: forcing file must contain one of %v", ErrMissingVariable, baseDateNames)
	}
	timeDim, ok := resolveName(timeDimNames, ff.HasDim)
	if !ok {
		return nil, fmt.Errorf("%w: forcing file must contain a time dimension named one of %v", ErrMissingVariable, timeDimNames)
	}
	ff.SetTimeDim(timeDim)

	bd, err := ff.ReadAll(bdName)
	if err != nil {
		return nil, err
	}
	ntimes, _ := ff.DimLen(timeDim)

	offsetName, ok := resolveName([]string{"tsec", timeDim}, ff.HasVar)
	if !ok {
		return nil, fmt.Errorf("%w: tsec", ErrMissingVariable)
	}
	offsets := make([]int, ntimes)
	for t := range offsets {
		v, err := ff.ReadScalar(offsetName, t)
		if err != nil {
			return nil, err
		}
		offsets[t] = int(v)
	}
	return NewTimeAxis(int(bd[0]), offsets)
}
