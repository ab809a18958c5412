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
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/iop"
)

// openManager opens the forcing file in opts and sets up a data manager
// for the model levels in the initial condition file at icPath. If
// start is the zero time, the run starts at the forcing file base date.
func openManager(opts iop.Options, icPath string, start time.Time, log logrus.FieldLogger, reg prometheus.Registerer) (*iop.DataManager, time.Time, error) {
	if icPath == "" {
		return nil, start, fmt.Errorf("%w: you need to specify an initial condition file holding hyam and hybm using the initial_conditions configuration variable", iop.ErrConfig)
	}
	hyam, hybm, err := iop.ReadHybridCoefficients(icPath)
	if err != nil {
		return nil, start, err
	}
	ff, err := iop.OpenForcingFilePath(opts.IOPFile)
	if err != nil {
		return nil, start, err
	}
	if start.IsZero() {
		ta, err := iop.ReadTimeAxis(ff)
		if err != nil {
			ff.Close()
			return nil, start, err
		}
		start = ta.Begin
	}
	dm, err := iop.NewDataManager(opts, ff, start, len(hyam), hyam, hybm,
		iop.WithLogger(log), iop.WithMetrics(reg))
	if err != nil {
		ff.Close()
		return nil, start, err
	}
	return dm, start, nil
}

// Inspect prints a description of the forcing file in opts to w: its
// time slots, its forcing fields, and how its levels overlap the model
// levels in the initial condition file at the start of the run.
func Inspect(w io.Writer, opts iop.Options, icPath, startTime string, log logrus.FieldLogger) error {
	start, err := parseStart(startTime)
	if err != nil {
		return err
	}
	dm, start, err := openManager(opts, icPath, start, log, nil)
	if err != nil {
		return err
	}
	defer dm.Close()
	if _, err = dm.ReadIOPFileData(start); err != nil {
		return err
	}

	ta := dm.TimeAxis()
	fmt.Fprintf(w, "forcing file: %s\n", opts.IOPFile)
	fmt.Fprintf(w, "location: %g°N %g°E\n", opts.TargetLatitude, opts.TargetLongitude)
	fmt.Fprintf(w, "time slots: %d\n", ta.Len())
	for i := 0; i < ta.Len(); i++ {
		marker := ""
		if i == ta.Current() {
			marker = " *"
		}
		fmt.Fprintf(w, "  %3d %s%s\n", i, ta.SlotTime(i).Format(time.RFC3339), marker)
	}
	fmt.Fprintf(w, "fields:\n%s", dm.Fields())
	fmt.Fprintf(w, "large-scale wind: %v\n", dm.UseLargeScaleWind())
	fmt.Fprintf(w, "3-D forcing: %v\n", dm.Use3DForcing())
	r := dm.Overlap()
	fmt.Fprintf(w, "adjusted file levels: %d\n", r.AdjustedFileLevels)
	fmt.Fprintf(w, "file levels used: [%d, %d)\n", r.FileStart, r.FileEnd)
	fmt.Fprintf(w, "model levels interpolated: [%d, %d)\n", r.ModelStart, r.ModelEnd)
	return nil
}

// Run steps a model state through the forcing period as configured by
// opts and rc, and writes the first column of the state at every step
// to rc.OutputFile.
func Run(opts iop.Options, rc RunConfig, log logrus.FieldLogger) error {
	reg := prometheus.NewRegistry()
	dm, start, err := openManager(opts, rc.InitialConditions, rc.Start, log, reg)
	if err != nil {
		return err
	}
	defer dm.Close()

	nlev := len(dm.ModelPressure())
	state := iop.NewPhysicsState(rc.Columns, nlev)
	if len(rc.ICFields) > 0 {
		if err = dm.ReadFieldsFromFile(rc.InitialConditions, state, rc.ICFields); err != nil {
			return err
		}
	}

	nsteps := int(rc.Duration/rc.TimeStep) + 1
	out := newColumnOutput(nsteps, nlev)
	for i := 0; i < nsteps; i++ {
		elapsed := time.Duration(i) * rc.TimeStep
		t := start.Add(elapsed)
		if _, err = dm.ReadIOPFileData(t); err != nil {
			return fmt.Errorf("iop: step %d at %s: %w", i, t.Format(time.RFC3339), err)
		}
		if err = dm.SetFieldsFromIOPData(state); err != nil {
			return fmt.Errorf("iop: step %d at %s: %w", i, t.Format(time.RFC3339), err)
		}
		if err = out.record(i, elapsed, state); err != nil {
			return err
		}
	}
	if err = out.write(rc.OutputFile, start); err != nil {
		return err
	}
	return logMetrics(reg, log.WithField("output_file", rc.OutputFile))
}

// logMetrics logs the value of every counter and gauge in reg.
func logMetrics(reg *prometheus.Registry, log logrus.FieldLogger) error {
	mfs, err := reg.Gather()
	if err != nil {
		return fmt.Errorf("iop: gathering metrics: %v", err)
	}
	fields := logrus.Fields{}
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				fields[mf.GetName()] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				fields[mf.GetName()] = m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				fields[mf.GetName()+"_count"] = m.GetHistogram().GetSampleCount()
			}
		}
	}
	log.WithFields(fields).Info("iop: run complete")
	return nil
}
