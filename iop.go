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

// Package iop supplies single-column atmospheric forcing from an
// intensive observation period (IOP) file to a doubly periodic model.
//
// The forcing file is a NetCDF time series of scalars and pressure-level
// profiles at a single location. A DataManager tracks which time slot
// of the file is needed by the model, interpolates the profiles from
// the file pressure levels to the model's hybrid pressure levels when
// the slot changes, and copies the results into every column of the
// model state.
package iop

import (
	"fmt"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Version gives the version number.
const Version = "1.0.0"

// DataManager loads forcing data from an IOP file and supplies it
// to the model state.
type DataManager struct {
	opts Options
	file *ForcingFile

	fields   *Registry
	timeAxis *TimeAxis

	modelLevels, fileLevels int
	hyam, hybm              []float64

	// filePres holds the file level pressures [mb] with one extra
	// slot for the surface; modelPres holds the model level pressures [mb].
	filePres, modelPres *DualView

	overlap OverlapRange

	log        logrus.FieldLogger
	registerer prometheus.Registerer
	metrics    *metrics
}

// NewDataManager sets up forcing from file for a model with modelLevels
// levels whose midpoint pressures are defined by the hybrid coefficients
// hyam and hybm. runT0 is the start time of the run, which must be
// within the forcing period.
func NewDataManager(opts Options, file *ForcingFile, runT0 time.Time, modelLevels int, hyam, hybm []float64, options ...Option) (*DataManager, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if modelLevels < 1 {
		return nil, fmt.Errorf("%w: model must have at least one level", ErrConfig)
	}
	if len(hyam) != modelLevels || len(hybm) != modelLevels {
		return nil, fmt.Errorf("%w: hyam (%d) and hybm (%d) must have one value per model level (%d)",
			ErrConfig, len(hyam), len(hybm), modelLevels)
	}
	dm := &DataManager{
		opts:        opts,
		file:        file,
		modelLevels: modelLevels,
		hyam:        append([]float64(nil), hyam...),
		hybm:        append([]float64(nil), hybm...),
		log:         logrus.StandardLogger(),
	}
	for _, o := range options {
		if err := o(dm); err != nil {
			return nil, err
		}
	}
	dm.metrics = newMetrics(dm.registerer)

	var err error
	if dm.fields, err = buildRegistry(file, modelLevels, opts.Coriolis); err != nil {
		return nil, err
	}
	if dm.timeAxis, err = ReadTimeAxis(file); err != nil {
		return nil, err
	}
	if err = checkLocation(file, opts.TargetLatitude, opts.TargetLongitude); err != nil {
		return nil, err
	}

	if !file.HasVar("lev") {
		return nil, fmt.Errorf("%w: using a forcing file requires variable \"lev\"", ErrMissingVariable)
	}
	dm.fileLevels, _ = file.DimLen("lev")
	dm.filePres = NewDualView("iop_file_pressure", dm.fileLevels+1)
	dm.modelPres = NewDualView("model_pressure", modelLevels)

	lev, err := file.ReadAll("lev")
	if err != nil {
		return nil, err
	}
	if len(lev) != dm.fileLevels {
		return nil, fmt.Errorf("%w: lev has %d values; expected %d", ErrMissingVariable, len(lev), dm.fileLevels)
	}
	units, _ := file.Attribute("lev", "units")
	if lev, err = levelsToMillibar(lev, units); err != nil {
		return nil, err
	}
	copy(dm.filePres.Host(), lev)
	dm.filePres.ModifyHost()
	dm.filePres.SyncToDevice()

	t0, err := dm.timeAxis.Resolve(runT0)
	if err != nil {
		return nil, fmt.Errorf("iop: run start: %w", err)
	}

	dm.log.WithFields(logrus.Fields{
		"file":                 file.Name(),
		"fields":               len(dm.fields.Fields()),
		"file_levels":          dm.fileLevels,
		"model_levels":         modelLevels,
		"time_slots":           dm.timeAxis.Len(),
		"run_start_time_index": t0,
		"large_scale_wind":     dm.fields.UseLargeScaleWind,
		"3d_forcing":           dm.fields.Use3DForcing,
	}).Info("iop: initialized forcing data")
	return dm, nil
}

// checkLocation checks that the forcing file holds a single location
// that matches the target latitude and longitude.
func checkLocation(file *ForcingFile, targetLat, targetLon float64) error {
	nlat, okLat := file.DimLen("lat")
	nlon, okLon := file.DimLen("lon")
	if !okLat || !okLon || nlat != 1 || nlon != 1 {
		return fmt.Errorf("%w: forcing file requires a single lat/lon pair", ErrLocationMismatch)
	}
	lat, err := file.ReadAll("lat")
	if err != nil {
		return err
	}
	lon, err := file.ReadAll("lon")
	if err != nil {
		return err
	}
	const eps = 1.1920929e-07 // float32 machine epsilon

	latErr := math.Abs(lat[0]-targetLat) / math.Max(math.Abs(targetLat), 0.1)
	if latErr >= eps {
		return fmt.Errorf("%w: forcing file lat=%g does not match target_latitude=%g", ErrLocationMismatch, lat[0], targetLat)
	}
	fileLon := math.Mod(lon[0]+360, 360)
	lonErr := math.Abs(fileLon-targetLon) / math.Max(targetLon, 0.1)
	if lonErr >= eps {
		return fmt.Errorf("%w: forcing file lon=%g does not match target_longitude=%g", ErrLocationMismatch, lon[0], targetLon)
	}
	return nil
}

// ReadIOPFileData loads the forcing data for time t if it is in a
// different time slot than the data already loaded. It returns
// whether data was loaded. Times must not go backwards across calls.
func (dm *DataManager) ReadIOPFileData(t time.Time) (bool, error) {
	idx, reload, err := dm.timeAxis.NeedsReload(t)
	if err != nil {
		return false, err
	}
	if !reload {
		dm.metrics.skips.Inc()
		return false, nil
	}
	start := time.Now()

	var r OverlapRange
	if dm.fields.hasLevelData() {
		if r, err = dm.reconcile(idx); err != nil {
			return false, err
		}
	}

	var g errgroup.Group
	for _, f := range dm.fields.Fields() {
		f := f
		if f.Provenance == Computed {
			continue
		}
		if f.Rank == 0 {
			g.Go(func() error { return dm.loadScalar(f, idx) })
		} else {
			g.Go(func() error { return dm.loadProfile(f, idx, r) })
		}
	}
	if err := g.Wait(); err != nil {
		return false, fmt.Errorf("iop: loading time index %d: %w", idx, err)
	}

	if err := combine3D(dm.fields); err != nil {
		return false, err
	}

	dm.timeAxis.Commit(idx)
	dm.overlap = r

	dm.metrics.reloads.Inc()
	dm.metrics.timeIndex.Set(float64(idx))
	dm.metrics.adjusted.Set(float64(r.AdjustedFileLevels))
	dm.metrics.duration.Observe(time.Since(start).Seconds())
	dm.log.WithFields(logrus.Fields{
		"time_index":      idx,
		"slot_time":       dm.timeAxis.SlotTime(idx).Format(time.RFC3339),
		"adjusted_levels": r.AdjustedFileLevels,
		"file_range":      [2]int{r.FileStart, r.FileEnd},
		"model_range":     [2]int{r.ModelStart, r.ModelEnd},
	}).Info("iop: loaded forcing data")
	return true, nil
}

// Field returns the named forcing field.
func (dm *DataManager) Field(name string) (*Field, error) { return dm.fields.Get(name) }

// HasField returns whether the named forcing field exists.
func (dm *DataManager) HasField(name string) bool { return dm.fields.Has(name) }

// Fields returns the forcing field registry.
func (dm *DataManager) Fields() *Registry { return dm.fields }

// TimeAxis returns the forcing file time axis.
func (dm *DataManager) TimeAxis() *TimeAxis { return dm.timeAxis }

// Overlap returns the overlap between the file and model pressure
// levels computed at the last reload.
func (dm *DataManager) Overlap() OverlapRange { return dm.overlap }

// Options returns the options the manager was created with.
func (dm *DataManager) Options() Options { return dm.opts }

// UseLargeScaleWind reports whether the forcing file has large-scale winds.
func (dm *DataManager) UseLargeScaleWind() bool { return dm.fields.UseLargeScaleWind }

// Use3DForcing reports whether 3-D temperature and moisture tendencies
// are available.
func (dm *DataManager) Use3DForcing() bool { return dm.fields.Use3DForcing }

// FilePressure returns the forcing file level pressures [mb] as of the
// last reload, including the surface slot.
func (dm *DataManager) FilePressure() []float64 { return dm.filePres.Host() }

// ModelPressure returns the model level pressures [mb] as of the last reload.
func (dm *DataManager) ModelPressure() []float64 { return dm.modelPres.Host() }

// Close releases the forcing file.
func (dm *DataManager) Close() error { return dm.file.Close() }
