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

import "gonum.org/v1/gonum/floats"

// combine3D sets each Computed 3-D tendency to the sum of its
// horizontal and vertical components. The components must already
// hold values for the current time slot.
func combine3D(r *Registry) error {
	for _, c := range threeDForcing {
		f, ok := r.byName[c.name]
		if !ok || f.Provenance != Computed {
			continue
		}
		h, err := r.Get(c.horizontal)
		if err != nil {
			return err
		}
		v, err := r.Get(c.vertical)
		if err != nil {
			return err
		}
		floats.AddTo(f.Data.Device(), h.Data.Device(), v.Data.Device())
		f.Data.ModifyDevice()
		f.Data.SyncToHost()
	}
	return nil
}
