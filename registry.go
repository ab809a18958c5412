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
	"strings"
)

// Provenance tells where the values of a Field come from.
type Provenance int

const (
	// FromFile fields are read from the forcing file.
	FromFile Provenance = iota
	// Computed fields are derived from other fields after they are read.
	Computed
)

func (p Provenance) String() string {
	switch p {
	case FromFile:
		return "FromFile"
	case Computed:
		return "Computed"
	default:
		return fmt.Sprintf("Provenance(%d)", int(p))
	}
}

// Field is a forcing quantity for the observation column.
type Field struct {
	// Name is the canonical name of the field.
	Name string

	// Rank is 0 for scalars and 1 for per-level profiles.
	Rank int

	// Alias is the name of the field in the forcing file when it
	// differs from Name.
	Alias string

	// SurfaceName is the forcing file variable holding the surface
	// value of a profile, or "" if there is none.
	SurfaceName string

	Provenance Provenance

	// Data holds one value for scalars or one value per model
	// level for profiles.
	Data *DualView
}

// FileVar returns the name of the field in the forcing file.
func (f *Field) FileVar() string {
	if f.Alias != "" {
		return f.Alias
	}
	return f.Name
}

// fieldSpec describes a field that may be present in a forcing file.
// The first of names is the canonical name; the rest are alternate
// names that are checked in order.
type fieldSpec struct {
	names   []string
	rank    int
	surface string
}

// forcingFields is the inventory of fields that are read when present.
var forcingFields = []fieldSpec{
	{names: []string{"Ps"}, rank: 0},
	{names: []string{"Tg"}, rank: 0},
	{names: []string{"lhflx", "lh"}, rank: 0},
	{names: []string{"shflx", "sh"}, rank: 0},

	{names: []string{"T"}, rank: 1, surface: "Tsair"},
	{names: []string{"q"}, rank: 1, surface: "qsrf"},
	{names: []string{"cld"}, rank: 1},
	{names: []string{"clwp"}, rank: 1},
	{names: []string{"divq"}, rank: 1, surface: "divqsrf"},
	{names: []string{"vertdivq"}, rank: 1, surface: "vertdivqsrf"},
	{names: []string{"NUMLIQ"}, rank: 1},
	{names: []string{"CLDLIQ"}, rank: 1},
	{names: []string{"CLDICE"}, rank: 1},
	{names: []string{"NUMICE"}, rank: 1},
	{names: []string{"divu"}, rank: 1, surface: "divusrf"},
	{names: []string{"divv"}, rank: 1, surface: "divvsrf"},
	{names: []string{"divT"}, rank: 1, surface: "divtsrf"},
	{names: []string{"vertdivT"}, rank: 1, surface: "vertdivTsrf"},
	{names: []string{"divT3d"}, rank: 1, surface: "divT3dsrf"},
	{names: []string{"u"}, rank: 1, surface: "usrf"},
	{names: []string{"u_ls"}, rank: 1, surface: "usrf"},
	{names: []string{"v"}, rank: 1, surface: "vsrf"},
	{names: []string{"v_ls"}, rank: 1, surface: "vsrf"},
	{names: []string{"Q1"}, rank: 1},
	{names: []string{"Q2"}, rank: 1},
	{names: []string{"omega"}, rank: 1, surface: "Ptend"},
}

// requiredFields must be present in every forcing file.
var requiredFields = []string{"Ps", "T", "q", "divT", "divq"}

// threeDForcing lists the 3-D tendencies with the horizontal and
// vertical components they can be combined from.
var threeDForcing = []struct {
	name, horizontal, vertical string
}{
	{name: "divT3d", horizontal: "divT", vertical: "vertdivT"},
	{name: "divq3d", horizontal: "divq", vertical: "vertdivq"},
}

// resolveName returns the first of candidates for which has is true.
func resolveName(candidates []string, has func(string) bool) (string, bool) {
	for _, c := range candidates {
		if has(c) {
			return c, true
		}
	}
	return "", false
}

// Registry holds the forcing fields in the order they were set up.
type Registry struct {
	fields []*Field
	byName map[string]*Field

	// UseLargeScaleWind is set when the forcing file has both
	// large-scale wind components.
	UseLargeScaleWind bool

	// Use3DForcing is set when both 3-D temperature and moisture
	// tendencies are available.
	Use3DForcing bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Field)}
}

// Setup adds a field to the registry if any of candidates is a
// variable in the forcing file, and returns it. The field is named
// after candidates[0]. It returns nil and no error if none of the
// candidates are present. Profiles get one value per model level.
func (r *Registry) Setup(ff *ForcingFile, candidates []string, rank, levels int, surface string) (*Field, error) {
	if rank != 0 && rank != 1 {
		return nil, fmt.Errorf("%w: setting up %s with rank %d; must be 0 or 1", ErrRank, candidates[0], rank)
	}
	fileVar, ok := resolveName(candidates, ff.HasVar)
	if !ok {
		return nil, nil
	}
	f := &Field{
		Name:       candidates[0],
		Rank:       rank,
		Provenance: FromFile,
	}
	if fileVar != f.Name {
		f.Alias = fileVar
	}
	if surface != "" && ff.HasVar(surface) {
		f.SurfaceName = surface
	}
	n := 1
	if rank == 1 {
		n = levels
	}
	f.Data = NewDualView(f.Name, n)
	r.add(f)
	return f, nil
}

// addComputed adds a per-level field that is filled by the combiner.
func (r *Registry) addComputed(name string, levels int) *Field {
	f := &Field{
		Name:       name,
		Rank:       1,
		Provenance: Computed,
		Data:       NewDualView(name, levels),
	}
	r.add(f)
	return f
}

func (r *Registry) add(f *Field) {
	if _, ok := r.byName[f.Name]; ok {
		panic(fmt.Sprintf("iop: field %s set up twice", f.Name))
	}
	r.fields = append(r.fields, f)
	r.byName[f.Name] = f
}

// Get returns the named field.
func (r *Registry) Get(name string) (*Field, error) {
	f, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("iop: no forcing field named %s", name)
	}
	return f, nil
}

// Has returns whether the named field is in the registry.
func (r *Registry) Has(name string) bool {
	_, ok := r.byName[name]
	return ok
}

// Fields returns the fields in the order they were set up.
func (r *Registry) Fields() []*Field { return r.fields }

// hasLevelData returns whether any profile is read from the file.
func (r *Registry) hasLevelData() bool {
	for _, f := range r.fields {
		if f.Rank == 1 && f.Provenance == FromFile {
			return true
		}
	}
	return false
}

func (r *Registry) String() string {
	var b strings.Builder
	for _, f := range r.fields {
		fmt.Fprintf(&b, "%-9s rank=%d %-8s", f.Name, f.Rank, f.Provenance)
		if f.Alias != "" {
			fmt.Fprintf(&b, " file=%s", f.Alias)
		}
		if f.SurfaceName != "" {
			fmt.Fprintf(&b, " surface=%s", f.SurfaceName)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// buildRegistry sets up every field in the forcing file inventory and
// checks the required fields and the pairing rules.
func buildRegistry(ff *ForcingFile, levels int, coriolis bool) (*Registry, error) {
	r := NewRegistry()
	for _, s := range forcingFields {
		if _, err := r.Setup(ff, s.names, s.rank, levels, s.surface); err != nil {
			return nil, err
		}
	}

	for _, name := range requiredFields {
		if !r.Has(name) {
			return nil, fmt.Errorf("%w: forcing file is required to contain variable %q", ErrMissingVariable, name)
		}
	}

	uLS, vLS := r.Has("u_ls"), r.Has("v_ls")
	if uLS != vLS {
		return nil, fmt.Errorf("%w: either u_ls and v_ls must both be in the forcing file, or neither", ErrConfig)
	}
	r.UseLargeScaleWind = uLS && vLS

	if coriolis && !r.UseLargeScaleWind {
		return nil, fmt.Errorf("%w: iop_coriolis requires large-scale winds u_ls and v_ls in the forcing file", ErrConfig)
	}

	for _, c := range threeDForcing {
		if r.Has(c.vertical) && !r.Has(c.name) {
			r.addComputed(c.name, levels)
		}
	}
	t3d, q3d := r.Has("divT3d"), r.Has("divq3d")
	if t3d != q3d {
		return nil, fmt.Errorf("%w: either divT3d and divq3d must both be available, or neither", ErrConfig)
	}
	r.Use3DForcing = t3d && q3d
	return r, nil
}
