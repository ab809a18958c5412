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
	"math"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Options holds the settings for running with IOP forcing.
type Options struct {
	// IOPFile is the path to the forcing file.
	IOPFile string

	// DoublyPeriodicMode must be true; it is the only mode that
	// supports IOP forcing.
	DoublyPeriodicMode bool

	// TargetLatitude [-90, 90] and TargetLongitude [0, 360] are the
	// location of the observation column [degrees]. NaN means unset.
	TargetLatitude, TargetLongitude float64

	// SurfaceProperties specifies whether surface fluxes and
	// temperature are taken from the forcing file.
	SurfaceProperties bool

	// DoSubsidence specifies whether to apply large-scale subsidence.
	DoSubsidence bool

	// Coriolis specifies whether to apply Coriolis forcing. It
	// requires large-scale winds in the forcing file.
	Coriolis bool

	// NudgeTQ and NudgeUV specify whether to nudge temperature and
	// moisture, and winds, toward the forcing data.
	NudgeTQ, NudgeUV bool

	// NudgeTQLow and NudgeTQHigh bound the pressures [mb] at which
	// temperature and moisture are nudged.
	NudgeTQLow, NudgeTQHigh float64

	// NudgeTScale is the nudging time scale [s].
	NudgeTScale float64

	// ZeroNonIOPTracers specifies whether all tracers are set to zero
	// before the forcing data is injected.
	ZeroNonIOPTracers bool
}

// DefaultOptions returns the default options. The target location is
// unset and must be given.
func DefaultOptions() Options {
	return Options{
		TargetLatitude:  math.NaN(),
		TargetLongitude: math.NaN(),
		NudgeTQLow:      1050,
		NudgeTQHigh:     0,
		NudgeTScale:     10800,
	}
}

// Validate checks that the options are usable.
func (o Options) Validate() error {
	if !o.DoublyPeriodicMode {
		return fmt.Errorf("%w: doubly periodic mode is currently the only use case for intensive observation period files", ErrConfig)
	}
	if math.IsNaN(o.TargetLatitude) || math.IsNaN(o.TargetLongitude) {
		return fmt.Errorf("%w: using intensive observation period files requires target_latitude and target_longitude", ErrConfig)
	}
	if o.TargetLatitude < -90 || o.TargetLatitude > 90 {
		return fmt.Errorf("%w: target_latitude=%g outside of expected range [-90, 90]", ErrConfig, o.TargetLatitude)
	}
	if o.TargetLongitude < 0 || o.TargetLongitude > 360 {
		return fmt.Errorf("%w: target_longitude=%g outside of expected range [0, 360]", ErrConfig, o.TargetLongitude)
	}
	if o.NudgeTScale <= 0 {
		return fmt.Errorf("%w: iop_nudge_tscale=%g must be positive", ErrConfig, o.NudgeTScale)
	}
	return nil
}

// Option configures a DataManager.
type Option func(*DataManager) error

// WithLogger sets the logger. The default is the logrus standard logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(dm *DataManager) error {
		if l == nil {
			return fmt.Errorf("%w: nil logger", ErrConfig)
		}
		dm.log = l
		return nil
	}
}

// WithMetrics registers the reload metrics with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(dm *DataManager) error {
		dm.registerer = reg
		return nil
	}
}
