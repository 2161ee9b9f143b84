/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package report

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pida/rtjitter/jitter"
)

const metricsNamespace = "rtjitter"

// Metrics holds measurement results as prometheus metrics, labeled by period
type Metrics struct {
	registry       *prometheus.Registry
	minDeviation   *prometheus.GaugeVec
	maxDeviation   *prometheus.GaugeVec
	meanDeviation  *prometheus.GaugeVec
	stddev         *prometheus.GaugeVec
	totalErrorPct  *prometheus.GaugeVec
	deviations     *prometheus.HistogramVec
	schedulingInfo *prometheus.GaugeVec
}

func newGaugeVec(name, help string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      name,
		Help:      help,
	}, []string{"period"})
}

// NewMetrics creates all metrics and registers them in a dedicated registry
func NewMetrics() (*Metrics, error) {
	m := &Metrics{
		registry:      prometheus.NewRegistry(),
		minDeviation:  newGaugeVec("deviation_min_us", "Smallest wakeup deviation from period, in microseconds"),
		maxDeviation:  newGaugeVec("deviation_max_us", "Largest wakeup deviation from period, in microseconds"),
		meanDeviation: newGaugeVec("deviation_mean_us", "Mean wakeup deviation from period, in microseconds"),
		stddev:        newGaugeVec("deviation_stddev_us", "Standard deviation of wakeup deviation, in microseconds"),
		totalErrorPct: newGaugeVec("total_error_pct", "Total run time deviation relative to expected duration, in percent"),
		deviations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "deviation_us",
			Help:      "Distribution of wakeup deviation from period, in microseconds",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 16),
		}, []string{"period"}),
		schedulingInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "scheduling_info",
			Help:      "Scheduling the measurement ran with, value is the static priority",
		}, []string{"period", "policy"}),
	}
	for _, c := range []prometheus.Collector{m.minDeviation, m.maxDeviation, m.meanDeviation, m.stddev, m.totalErrorPct, m.deviations, m.schedulingInfo} {
		if err := m.registry.Register(c); err != nil {
			return nil, fmt.Errorf("registering metric: %w", err)
		}
	}
	return m, nil
}

// Registry returns registry all metrics are registered in
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Observe records measurement result
func (m *Metrics) Observe(res *jitter.Result) {
	period := res.Stats.Period.Duration().String()
	s := res.Stats
	m.minDeviation.WithLabelValues(period).Set(s.MinUS)
	m.maxDeviation.WithLabelValues(period).Set(s.MaxUS)
	m.meanDeviation.WithLabelValues(period).Set(s.MeanUS)
	m.stddev.WithLabelValues(period).Set(s.StddevUS)
	m.totalErrorPct.WithLabelValues(period).Set(s.TotalErrorPct)
	h := m.deviations.WithLabelValues(period)
	for _, d := range jitter.Deviations(res.Samples, s.Period) {
		h.Observe(d)
	}
	if res.Handle != nil {
		m.schedulingInfo.WithLabelValues(period, res.Handle.Policy().String()).Set(float64(res.Handle.Priority()))
	} else {
		m.schedulingInfo.WithLabelValues(period, "other").Set(0)
	}
}

// WriteTextfile writes all metrics in a format node_exporter textfile collector understands
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

// WritePromTextfile is a shortcut to export results into a textfile
func WritePromTextfile(path string, results []*jitter.Result) error {
	m, err := NewMetrics()
	if err != nil {
		return err
	}
	for _, r := range results {
		m.Observe(r)
	}
	return m.WriteTextfile(path)
}
