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

import "errors"

// These are the classes of error the data manager can return. Test for
// them with errors.Is.
var (
	// ErrMissingVariable is returned when a variable or dimension
	// that is required is not in the forcing file.
	ErrMissingVariable = errors.New("iop: missing forcing file variable")

	// ErrConfig is returned for out-of-range or inconsistent options.
	ErrConfig = errors.New("iop: invalid configuration")

	// ErrLocationMismatch is returned when the latitude or longitude in
	// the forcing file does not match the target location.
	ErrLocationMismatch = errors.New("iop: forcing file location does not match target")

	// ErrBadPressureProfile is returned when the surface pressure in the
	// forcing file is not greater than the first file level pressure.
	ErrBadPressureProfile = errors.New("iop: malformed forcing file pressure profile")

	// ErrTimeReversal is returned when data is requested for a time
	// slot earlier than the one already loaded.
	ErrTimeReversal = errors.New("iop: attempting to read previous forcing file time index")

	// ErrOutsidePeriod is returned when the requested time is not
	// covered by the forcing file time axis.
	ErrOutsidePeriod = errors.New("iop: time is outside of the forcing period")

	// ErrMissingHostField is returned when the host state lacks a field
	// that is needed.
	ErrMissingHostField = errors.New("iop: missing host state field")

	// ErrRank is returned when a field with an unsupported rank is set up.
	ErrRank = errors.New("iop: unsupported field rank")
)
