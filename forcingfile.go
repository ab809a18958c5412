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
	"io"
	"os"

	"github.com/ctessum/cdf"
)

// ForcingFile is an IOP forcing file in NetCDF classic format.
// It is opened once and read from at every reload.
type ForcingFile struct {
	f      *cdf.File
	name   string
	size   int64
	closer io.Closer

	// timeDim is the dimension that indexes the time slots.
	timeDim string
}

// OpenForcingFile reads the header of the forcing file stored in rw,
// which holds size bytes. The size is used to count the records when
// the time dimension is the record dimension.
func OpenForcingFile(rw cdf.ReaderWriterAt, size int64) (*ForcingFile, error) {
	f, err := cdf.Open(rw)
	if err != nil {
		return nil, fmt.Errorf("iop: opening forcing file: %v", err)
	}
	ff := &ForcingFile{f: f, size: size, name: "<memory>"}
	if c, ok := rw.(io.Closer); ok {
		ff.closer = c
	}
	return ff, nil
}

// OpenForcingFilePath opens the forcing file at path.
func OpenForcingFilePath(path string) (*ForcingFile, error) {
	r, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("iop: opening forcing file: %v", err)
	}
	fi, err := r.Stat()
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("iop: opening forcing file: %v", err)
	}
	ff, err := OpenForcingFile(r, fi.Size())
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("iop: %s: %v", path, err)
	}
	ff.name = path
	return ff, nil
}

// Name returns the path of the file, if it was opened from one.
func (ff *ForcingFile) Name() string { return ff.name }

// Close releases the underlying storage.
func (ff *ForcingFile) Close() error {
	if ff.closer == nil {
		return nil
	}
	return ff.closer.Close()
}

// Variables returns the names of all variables in the file.
func (ff *ForcingFile) Variables() []string { return ff.f.Header.Variables() }

// HasVar returns whether the file contains variable name.
func (ff *ForcingFile) HasVar(name string) bool {
	return ff.f.Header.Lengths(name) != nil
}

// HasDim returns whether the file contains dimension name.
func (ff *ForcingFile) HasDim(name string) bool {
	_, ok := ff.DimLen(name)
	return ok
}

// DimLen returns the length of dimension name. The length of the
// record dimension is the number of records in the file.
func (ff *ForcingFile) DimLen(name string) (int, bool) {
	names := ff.f.Header.Dimensions("")
	lengths := ff.f.Header.Lengths("")
	for i, n := range names {
		if n != name {
			continue
		}
		if lengths[i] == 0 {
			return int(ff.f.Header.NumRecs(ff.size)), true
		}
		return lengths[i], true
	}
	return 0, false
}

// SetTimeDim marks dim as the dimension that indexes time slots.
// Variables whose outermost dimension is dim are read one slot at a
// time by ReadSlice.
func (ff *ForcingFile) SetTimeDim(dim string) { ff.timeDim = dim }

// TimeDim returns the dimension set with SetTimeDim.
func (ff *ForcingFile) TimeDim() string { return ff.timeDim }

// Attribute returns the string attribute attr of variable name, or
// the global attribute if name is empty.
func (ff *ForcingFile) Attribute(name, attr string) (string, bool) {
	s, ok := ff.f.Header.GetAttribute(name, attr).(string)
	return s, ok
}

// lengths returns the dimension lengths of variable name with the
// record dimension replaced by the record count.
func (ff *ForcingFile) lengths(name string) []int {
	l := ff.f.Header.Lengths(name)
	if l == nil {
		return nil
	}
	out := make([]int, len(l))
	copy(out, l)
	if len(out) > 0 && out[0] == 0 {
		out[0] = int(ff.f.Header.NumRecs(ff.size))
	}
	return out
}

// ReadSlice reads variable name at time slot t. If the outermost
// dimension of the variable is not the time dimension, the whole
// variable is read and t is ignored.
func (ff *ForcingFile) ReadSlice(name string, t int) ([]float64, error) {
	dims := ff.f.Header.Dimensions(name)
	if dims == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingVariable, name)
	}
	lengths := ff.lengths(name)
	timed := len(dims) > 0 && dims[0] == ff.timeDim
	if timed && (t < 0 || t >= lengths[0]) {
		return nil, fmt.Errorf("iop: reading %s: time index %d out of range [0, %d)", name, t, lengths[0])
	}
	begin, end := make([]int, len(dims)), make([]int, len(dims))
	n := 1
	for i, l := range lengths {
		if i == 0 && timed {
			continue
		}
		n *= l
	}
	if timed {
		begin[0], end[0] = t, t+1
	} else if len(dims) > 0 {
		end[0] = lengths[0]
	}
	if n == 0 {
		return nil, fmt.Errorf("iop: reading %s: variable is empty", name)
	}
	r := ff.f.Reader(name, begin, end)
	buf := r.Zero(n)
	if _, err := r.Read(buf); err != nil && err != io.EOF {
		return nil, fmt.Errorf("iop: reading forcing file variable %s: %v", name, err)
	}
	return toFloat64s(buf)
}

// ReadAll reads all values of variable name.
func (ff *ForcingFile) ReadAll(name string) ([]float64, error) {
	if ff.f.Header.Lengths(name) == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingVariable, name)
	}
	lengths := ff.lengths(name)
	n := 1
	for _, l := range lengths {
		n *= l
	}
	if n == 0 {
		return nil, fmt.Errorf("iop: reading %s: variable is empty", name)
	}
	begin := make([]int, len(lengths))
	end := make([]int, len(lengths))
	if len(lengths) > 0 {
		end[0] = lengths[0]
	}
	r := ff.f.Reader(name, begin, end)
	buf := r.Zero(n)
	if _, err := r.Read(buf); err != nil && err != io.EOF {
		return nil, fmt.Errorf("iop: reading forcing file variable %s: %v", name, err)
	}
	return toFloat64s(buf)
}

// Dims returns the dimension names of variable name.
func (ff *ForcingFile) Dims(name string) []string { return ff.f.Header.Dimensions(name) }

// readContiguous reads n values of variable name that are stored
// contiguously starting at index begin.
func (ff *ForcingFile) readContiguous(name string, begin []int, n int) ([]float64, error) {
	if ff.f.Header.Lengths(name) == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingVariable, name)
	}
	r := ff.f.Reader(name, begin, nil)
	buf := r.Zero(n)
	if _, err := r.Read(buf); err != nil && err != io.EOF {
		return nil, fmt.Errorf("iop: reading netcdf variable %s: %v", name, err)
	}
	return toFloat64s(buf)
}

// ReadScalar reads the single value of variable name at time slot t.
func (ff *ForcingFile) ReadScalar(name string, t int) (float64, error) {
	v, err := ff.ReadSlice(name, t)
	if err != nil {
		return 0, err
	}
	if len(v) != 1 {
		return 0, fmt.Errorf("iop: variable %s has %d values per time slot; expected 1", name, len(v))
	}
	return v[0], nil
}

// toFloat64s converts the value slices returned by cdf readers.
func toFloat64s(buf interface{}) ([]float64, error) {
	switch b := buf.(type) {
	case []float64:
		return b, nil
	case []float32:
		o := make([]float64, len(b))
		for i, v := range b {
			o[i] = float64(v)
		}
		return o, nil
	case []int32:
		o := make([]float64, len(b))
		for i, v := range b {
			o[i] = float64(v)
		}
		return o, nil
	case []int16:
		o := make([]float64, len(b))
		for i, v := range b {
			o[i] = float64(v)
		}
		return o, nil
	case []uint8:
		o := make([]float64, len(b))
		for i, v := range b {
			o[i] = float64(v)
		}
		return o, nil
	default:
		return nil, fmt.Errorf("iop: unsupported netcdf data type %T", buf)
	}
}
