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
	"math"
	"os"

	"github.com/ctessum/cdf"
	"github.com/spatialmodel/iop"
)

// Reference profile of the synthetic atmosphere, as a function of
// pressure p [Pa] and time of day tod [s].
func synthTemperature(p, tod float64) float64 {
	return 300*math.Pow(p/100000, 0.19) + 2*math.Sin(2*math.Pi*tod/86400)
}

func synthHumidity(p float64) float64 { return 0.015 * math.Pow(p/100000, 3) }

func synthSurfacePressure(tod float64) float64 {
	return 97000 + 400*math.Sin(2*math.Pi*tod/86400)
}

// SynthForcing returns synthetic forcing data as configured by sc.
func SynthForcing(sc SynthConfig) *iop.ForcingData {
	d := &iop.ForcingData{
		BaseDate:    sc.BaseDate,
		TimeOffsets: make([]int, sc.TimeSlots),
		Lat:         sc.Lat,
		Lon:         sc.Lon,
		Levels:      make([]float64, sc.Levels),
		Scalars:     make(map[string][]float64),
		Profiles:    make(map[string][][]float64),
	}
	for l := range d.Levels {
		d.Levels[l] = 10000 + 90000*float64(l)/float64(sc.Levels-1)
	}
	scalars := map[string]func(tod float64) float64{
		"Ps":    synthSurfacePressure,
		"Tg":    func(tod float64) float64 { return synthTemperature(100000, tod) + 1 },
		"lhflx": func(tod float64) float64 { return 100 + 80*math.Sin(2*math.Pi*tod/86400) },
		"shflx": func(tod float64) float64 { return 20 + 15*math.Sin(2*math.Pi*tod/86400) },
	}
	profiles := map[string]func(p, tod float64) float64{
		"T":     synthTemperature,
		"q":     func(p, tod float64) float64 { return synthHumidity(p) },
		"divT":  func(p, tod float64) float64 { return -1e-5 * p / 100000 },
		"divq":  func(p, tod float64) float64 { return 1e-8 * p / 100000 },
		"u":     func(p, tod float64) float64 { return 2 + 10*(1-p/100000) },
		"v":     func(p, tod float64) float64 { return -1 + 3*(1-p/100000) },
		"omega": func(p, tod float64) float64 { return 0.05 * math.Sin(math.Pi*p/100000) },
	}
	for name := range scalars {
		d.Scalars[name] = make([]float64, sc.TimeSlots)
	}
	for name := range profiles {
		d.Profiles[name] = make([][]float64, sc.TimeSlots)
	}
	for t := range d.TimeOffsets {
		off := int(sc.Interval.Seconds()) * t
		d.TimeOffsets[t] = off
		tod := float64(off % 86400)
		for name, f := range scalars {
			d.Scalars[name][t] = f(tod)
		}
		for name, f := range profiles {
			v := make([]float64, sc.Levels)
			for l, p := range d.Levels {
				v[l] = f(p, tod)
			}
			d.Profiles[name][t] = v
		}
	}
	return d
}

// SynthInitialConditions returns a synthetic initial condition file
// with columns spread around the target location.
func SynthInitialConditions(sc SynthConfig) *iop.InitialConditions {
	ic := &iop.InitialConditions{
		Lat:      make([]float64, sc.Columns),
		Lon:      make([]float64, sc.Columns),
		Hyam:     make([]float64, sc.ModelLevels),
		Hybm:     make([]float64, sc.ModelLevels),
		Surface:  map[string][]float64{"ps": make([]float64, sc.Columns)},
		Profiles: map[string][][]float64{"T_mid": nil, "qv": nil},
	}
	for k := range ic.Hyam {
		eta := 0.5
		if sc.ModelLevels > 1 {
			eta = 0.1 + 0.89*float64(k)/float64(sc.ModelLevels-1)
		}
		ic.Hyam[k] = 0.1 * (1 - eta)
		ic.Hybm[k] = eta
	}
	side := int(math.Ceil(math.Sqrt(float64(sc.Columns))))
	for c := 0; c < sc.Columns; c++ {
		ic.Lat[c] = sc.Lat + 0.25*float64(c/side-side/2)
		ic.Lon[c] = math.Mod(sc.Lon+0.25*float64(c%side-side/2)+360, 360)
		ps := synthSurfacePressure(0) + 50*float64(c)
		ic.Surface["ps"][c] = ps
		T := make([]float64, sc.ModelLevels)
		q := make([]float64, sc.ModelLevels)
		for k := range T {
			p := 100000*ic.Hyam[k] + ps*ic.Hybm[k]
			T[k] = synthTemperature(p, 0) - 1
			q[k] = synthHumidity(p)
		}
		ic.Profiles["T_mid"] = append(ic.Profiles["T_mid"], T)
		ic.Profiles["qv"] = append(ic.Profiles["qv"], q)
	}
	return ic
}

// Synth writes a synthetic forcing file and initial condition file.
func Synth(sc SynthConfig) error {
	if err := writeFile(sc.IOPFile, SynthForcing(sc).Write); err != nil {
		return err
	}
	return writeFile(sc.InitialConditions, SynthInitialConditions(sc).Write)
}

func writeFile(path string, write func(cdf.ReaderWriterAt) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("iop: creating %s: %v", path, err)
	}
	if err = write(f); err != nil {
		f.Close()
		return fmt.Errorf("iop: writing %s: %v", path, err)
	}
	return f.Close()
}
