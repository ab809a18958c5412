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

import "fmt"

// DualView is a buffer of float64 values that is mirrored between
// host memory, where file input and host state exchange happen, and
// device memory, where the data-parallel kernels run.
//
// After writing to one side, call the matching Modify method, and
// then the matching Sync method before the other side is read.
// Reading a side while the other side holds unsynchronized writes
// panics.
type DualView struct {
	name         string
	host, device []float64

	hostModified, deviceModified bool
}

// NewDualView allocates a DualView with n zeroed elements.
func NewDualView(name string, n int) *DualView {
	return &DualView{
		name:   name,
		host:   make([]float64, n),
		device: make([]float64, n),
	}
}

// Name returns the name the view was created with.
func (v *DualView) Name() string { return v.name }

// Len returns the number of elements in the view.
func (v *DualView) Len() int { return len(v.host) }

// Host returns the host side of the view.
func (v *DualView) Host() []float64 {
	if v.deviceModified {
		panic(fmt.Sprintf("iop: stale host read of %s: device side has not been synchronized", v.name))
	}
	return v.host
}

// Device returns the device side of the view.
func (v *DualView) Device() []float64 {
	if v.hostModified {
		panic(fmt.Sprintf("iop: stale device read of %s: host side has not been synchronized", v.name))
	}
	return v.device
}

// ModifyHost marks the host side as written.
func (v *DualView) ModifyHost() {
	if v.deviceModified {
		panic(fmt.Sprintf("iop: %s modified on both host and device", v.name))
	}
	v.hostModified = true
}

// ModifyDevice marks the device side as written.
func (v *DualView) ModifyDevice() {
	if v.hostModified {
		panic(fmt.Sprintf("iop: %s modified on both host and device", v.name))
	}
	v.deviceModified = true
}

// SyncToDevice copies host writes to the device side. It is a no-op
// if the host side has not been modified.
func (v *DualView) SyncToDevice() {
	if !v.hostModified {
		return
	}
	copy(v.device, v.host)
	v.hostModified = false
}

// SyncToHost copies device writes to the host side. It is a no-op
// if the device side has not been modified.
func (v *DualView) SyncToHost() {
	if !v.deviceModified {
		return
	}
	copy(v.host, v.device)
	v.deviceModified = false
}

// Synced reports whether both sides hold the same values.
func (v *DualView) Synced() bool {
	return !v.hostModified && !v.deviceModified
}
