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

package iopconfig

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/iop"
	"github.com/spf13/cast"
)

// OptionsFromConfig reads the forcing options from cfg.
func OptionsFromConfig(cfg *viper.Viper) (iop.Options, error) {
	o := iop.DefaultOptions()
	o.IOPFile = expand(cfg.GetString("iop_file"))
	if o.IOPFile == "" {
		return o, fmt.Errorf("%w: you need to specify a forcing file using the iop_file configuration variable", iop.ErrConfig)
	}
	o.DoublyPeriodicMode = cfg.GetBool("doubly_periodic_mode")

	var err error
	if o.TargetLatitude, err = getFloat(cfg, "target_latitude"); err != nil {
		return o, err
	}
	if o.TargetLongitude, err = getFloat(cfg, "target_longitude"); err != nil {
		return o, err
	}
	o.SurfaceProperties = cfg.GetBool("iop_srf_prop")
	o.DoSubsidence = cfg.GetBool("iop_dosubsidence")
	o.Coriolis = cfg.GetBool("iop_coriolis")
	o.NudgeTQ = cfg.GetBool("iop_nudge_tq")
	o.NudgeUV = cfg.GetBool("iop_nudge_uv")
	if o.NudgeTQLow, err = getFloat(cfg, "iop_nudge_tq_low"); err != nil {
		return o, err
	}
	if o.NudgeTQHigh, err = getFloat(cfg, "iop_nudge_tq_high"); err != nil {
		return o, err
	}
	if o.NudgeTScale, err = getFloat(cfg, "iop_nudge_tscale"); err != nil {
		return o, err
	}
	o.ZeroNonIOPTracers = cfg.GetBool("zero_non_iop_tracers")
	return o, o.Validate()
}

// getFloat reads a floating point option. Unset values given as an
// empty string or "NaN" in a configuration file are NaN.
func getFloat(cfg *viper.Viper, name string) (float64, error) {
	v := cfg.Get(name)
	if s, ok := v.(string); ok && (s == "" || strings.EqualFold(s, "nan")) {
		return math.NaN(), nil
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", iop.ErrConfig, name, err)
	}
	return f, nil
}

// newLogger creates a logger that writes to w at the configured level.
func newLogger(cfg *viper.Viper, w io.Writer) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(cfg.GetString("log_level"))
	if err != nil {
		return nil, fmt.Errorf("%w: log_level: %v", iop.ErrConfig, err)
	}
	l := logrus.New()
	l.Out = w
	l.Level = level
	return l, nil
}

// RunConfig holds the settings of a run that are not forcing options.
type RunConfig struct {
	// InitialConditions is the path to the file holding the hybrid
	// level coefficients and initial values of ICFields.
	InitialConditions string
	ICFields          []string

	// Columns is the number of model columns.
	Columns int

	// Start is the start of the run. If it is the zero time, the run
	// starts at the forcing file base date.
	Start time.Time

	TimeStep, Duration time.Duration

	// OutputFile is where column 0 of the model state is written.
	OutputFile string
}

func runConfigFromConfig(cfg *viper.Viper) (RunConfig, error) {
	rc := RunConfig{
		InitialConditions: expand(cfg.GetString("initial_conditions")),
		Columns:           cfg.GetInt("columns"),
		OutputFile:        expand(cfg.GetString("output_file")),
	}
	fields, err := cast.ToStringSliceE(cfg.Get("ic_fields"))
	if err != nil {
		return rc, fmt.Errorf("%w: ic_fields: %v", iop.ErrConfig, err)
	}
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			rc.ICFields = append(rc.ICFields, f)
		}
	}
	if rc.InitialConditions == "" {
		return rc, fmt.Errorf("%w: you need to specify an initial condition file holding hyam and hybm using the initial_conditions configuration variable", iop.ErrConfig)
	}
	if rc.Columns < 1 {
		return rc, fmt.Errorf("%w: columns=%d must be at least 1", iop.ErrConfig, rc.Columns)
	}
	if rc.Start, err = parseStart(cfg.GetString("start_time")); err != nil {
		return rc, err
	}
	if rc.TimeStep, err = cast.ToDurationE(cfg.Get("time_step")); err != nil || rc.TimeStep <= 0 {
		return rc, fmt.Errorf("%w: time_step=%v must be a positive duration", iop.ErrConfig, cfg.Get("time_step"))
	}
	if rc.Duration, err = cast.ToDurationE(cfg.Get("duration")); err != nil || rc.Duration < 0 {
		return rc, fmt.Errorf("%w: duration=%v must be a non-negative duration", iop.ErrConfig, cfg.Get("duration"))
	}
	if rc.OutputFile == "" {
		return rc, fmt.Errorf(`%w: you need to specify an output file configuration variable (for example: output_file="output.nc")`, iop.ErrConfig)
	}
	if _, err := os.Stat(filepath.Dir(rc.OutputFile)); err != nil {
		return rc, fmt.Errorf("%w: the output_file directory doesn't exist: %v", iop.ErrConfig, err)
	}
	return rc, nil
}

// parseStart parses an RFC 3339 start time. An empty string gives the
// zero time.
func parseStart(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := cast.ToTimeE(s)
	if err != nil {
		return t, fmt.Errorf("%w: start_time: %v", iop.ErrConfig, err)
	}
	return t.UTC(), nil
}

// SynthConfig holds the settings for writing synthetic files.
type SynthConfig struct {
	IOPFile, InitialConditions string

	Lat, Lon float64

	BaseDate  int
	TimeSlots int
	Interval  time.Duration

	Levels, ModelLevels, Columns int
}

func synthConfigFromConfig(cfg *viper.Viper) (SynthConfig, error) {
	sc := SynthConfig{
		IOPFile:           expand(cfg.GetString("iop_file")),
		InitialConditions: expand(cfg.GetString("initial_conditions")),
		BaseDate:          cfg.GetInt("synth.base_date"),
		TimeSlots:         cfg.GetInt("synth.time_slots"),
		Levels:            cfg.GetInt("synth.levels"),
		ModelLevels:       cfg.GetInt("synth.model_levels"),
		Columns:           cfg.GetInt("synth.columns"),
	}
	if sc.IOPFile == "" || sc.InitialConditions == "" {
		return sc, fmt.Errorf("%w: synth requires both iop_file and initial_conditions", iop.ErrConfig)
	}
	var err error
	if sc.Lat, err = getFloat(cfg, "target_latitude"); err != nil {
		return sc, err
	}
	if sc.Lon, err = getFloat(cfg, "target_longitude"); err != nil {
		return sc, err
	}
	if math.IsNaN(sc.Lat) || math.IsNaN(sc.Lon) {
		return sc, fmt.Errorf("%w: synth requires target_latitude and target_longitude", iop.ErrConfig)
	}
	if sc.Interval, err = cast.ToDurationE(cfg.Get("synth.interval")); err != nil || sc.Interval < time.Second {
		return sc, fmt.Errorf("%w: synth.interval=%v must be at least one second", iop.ErrConfig, cfg.Get("synth.interval"))
	}
	if sc.TimeSlots < 1 || sc.Levels < 2 || sc.ModelLevels < 1 || sc.Columns < 1 {
		return sc, fmt.Errorf("%w: synth needs at least 1 time slot, 2 levels, 1 model level and 1 column", iop.ErrConfig)
	}
	return sc, nil
}
