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

	"github.com/ctessum/sparse"
)

// PhysicsGLL is the name of the physics grid that forcing data can be
// injected into.
const PhysicsGLL = "physics_gll"

// HostState is the model state that forcing data is injected into.
// Fields are indexed by column first. Per-level fields have
// shape [ncol, nlev], horizontal winds have shape [ncol, 2, nlev], and
// surface fields have shape [ncol].
type HostState interface {
	GridName() string
	NumColumns() int
	NumLevels() int

	// HasField returns whether the state holds the named field.
	HasField(name string) bool

	// Field returns the named field.
	Field(name string) (*sparse.DenseArray, error)

	// Tracers returns the names of the advected tracer fields.
	Tracers() []string
}

// State is an in-memory HostState.
type State struct {
	grid       string
	ncol, nlev int
	fields     map[string]*sparse.DenseArray
	tracers    []string
}

// NewState returns an empty state for ncol columns with nlev levels
// on the named grid.
func NewState(grid string, ncol, nlev int) *State {
	return &State{
		grid:   grid,
		ncol:   ncol,
		nlev:   nlev,
		fields: make(map[string]*sparse.DenseArray),
	}
}

// NewPhysicsState returns a state on the physics_gll grid with
// surface pressure ps, temperature T_mid, horizontal winds
// horiz_winds and the water species tracers qv, qc, qi, nc and ni.
func NewPhysicsState(ncol, nlev int) *State {
	s := NewState(PhysicsGLL, ncol, nlev)
	s.AddField("ps", ncol)
	s.AddField("T_mid", ncol, nlev)
	s.AddField("horiz_winds", ncol, 2, nlev)
	for _, t := range []string{"qv", "qc", "qi", "nc", "ni"} {
		s.AddTracer(t)
	}
	return s
}

// AddField adds a zeroed field with the given shape and returns it.
// The first dimension must be the number of columns.
func (s *State) AddField(name string, shape ...int) *sparse.DenseArray {
	if len(shape) == 0 || shape[0] != s.ncol {
		panic(fmt.Sprintf("iop: field %s shape %v must start with %d columns", name, shape, s.ncol))
	}
	a := sparse.ZerosDense(shape...)
	s.fields[name] = a
	return a
}

// AddTracer adds a zeroed per-level tracer field and returns it.
func (s *State) AddTracer(name string) *sparse.DenseArray {
	a := s.AddField(name, s.ncol, s.nlev)
	s.tracers = append(s.tracers, name)
	return a
}

// GridName returns the name of the grid s is on.
func (s *State) GridName() string { return s.grid }

// NumColumns returns the number of columns.
func (s *State) NumColumns() int { return s.ncol }

// NumLevels returns the number of levels per column.
func (s *State) NumLevels() int { return s.nlev }

// Tracers returns the names of the tracers in the order they were added.
func (s *State) Tracers() []string { return s.tracers }

// HasField returns whether s holds the named field.
func (s *State) HasField(name string) bool {
	_, ok := s.fields[name]
	return ok
}

// Field returns the named field, or an error wrapping
// ErrMissingHostField if s does not hold it.
func (s *State) Field(name string) (*sparse.DenseArray, error) {
	a, ok := s.fields[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingHostField, name)
	}
	return a, nil
}

// FieldNames returns the names of all fields in alphabetical order.
func (s *State) FieldNames() []string {
	names := make([]string, 0, len(s.fields))
	for n := range s.fields {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
