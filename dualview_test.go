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

import "testing"

func expectPanic(t *testing.T, name string, f func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Errorf("%s should panic", name)
		}
	}()
	f()
}

func TestDualViewSync(t *testing.T) {
	v := NewDualView("x", 3)
	if v.Name() != "x" || v.Len() != 3 {
		t.Fatalf("have name %q and length %d", v.Name(), v.Len())
	}
	copy(v.Host(), []float64{1, 2, 3})
	v.ModifyHost()
	if v.Synced() {
		t.Error("view with host writes should not be synced")
	}
	v.SyncToDevice()
	if !v.Synced() {
		t.Error("view should be synced")
	}
	d := v.Device()
	for i, want := range []float64{1, 2, 3} {
		if d[i] != want {
			t.Errorf("device %d: have %g, want %g", i, d[i], want)
		}
	}

	d[0] = 10
	v.ModifyDevice()
	v.SyncToHost()
	if h := v.Host()[0]; h != 10 {
		t.Errorf("host 0: have %g, want 10", h)
	}

	// Syncing a clean view does nothing.
	v.SyncToHost()
	v.SyncToDevice()
	if !v.Synced() {
		t.Error("view should be synced")
	}
}

func TestDualViewStaleAccess(t *testing.T) {
	v := NewDualView("x", 1)
	v.ModifyHost()
	expectPanic(t, "device read after host write", func() { v.Device() })
	expectPanic(t, "device write after host write", func() { v.ModifyDevice() })
	v.SyncToDevice()

	v.ModifyDevice()
	expectPanic(t, "host read after device write", func() { v.Host() })
	expectPanic(t, "host write after device write", func() { v.ModifyHost() })
}
