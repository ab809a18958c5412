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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics tracks forcing file reloads. The collectors are only
// registered when a registerer is given.
type metrics struct {
	reloads   prometheus.Counter
	skips     prometheus.Counter
	timeIndex prometheus.Gauge
	adjusted  prometheus.Gauge
	duration  prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	return &metrics{
		reloads: f.NewCounter(prometheus.CounterOpts{
			Name: "iop_reloads_total",
			Help: "Number of times forcing data was loaded from the forcing file.",
		}),
		skips: f.NewCounter(prometheus.CounterOpts{
			Name: "iop_reload_skips_total",
			Help: "Number of reload requests for a time slot that was already loaded.",
		}),
		timeIndex: f.NewGauge(prometheus.GaugeOpts{
			Name: "iop_time_index",
			Help: "Index of the loaded forcing file time slot.",
		}),
		adjusted: f.NewGauge(prometheus.GaugeOpts{
			Name: "iop_adjusted_file_levels",
			Help: "Number of forcing file levels in use, including the surface.",
		}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "iop_reload_duration_seconds",
			Help:    "Time spent loading and interpolating forcing data.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
	}
}
