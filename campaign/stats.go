// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package campaign

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/NVIDIA/rbfuzz/blunder"
	"github.com/NVIDIA/rbfuzz/bucketstats"
	"github.com/NVIDIA/rbfuzz/harness"
)

// campaignStats is registered with bucketstats under ("campaign", <report ID>)
// for the life of the campaign.
type campaignStats struct {
	Runs     bucketstats.Total
	Passed   bucketstats.Total
	Failed   bucketstats.Total
	TimedOut bucketstats.Total

	InsertActions         bucketstats.Total
	DeleteActions         bucketstats.Total
	FindActions           bucketstats.Total
	PredecessorActions    bucketstats.Total
	SuccessorActions      bucketstats.Total
	RangeEnumerateActions bucketstats.Total
	StructuralCheckAction bucketstats.Total
	TeardownActions       bucketstats.Total

	RoundsPerRun bucketstats.Average
	OracleSize   bucketstats.BucketLog2Round
	RunUsec      bucketstats.BucketLog2Round
}

func (stats *campaignStats) actionTotal(kind harness.Kind) *bucketstats.Total {
	switch kind {
	case harness.Insert:
		return &stats.InsertActions
	case harness.Delete:
		return &stats.DeleteActions
	case harness.Find:
		return &stats.FindActions
	case harness.Predecessor:
		return &stats.PredecessorActions
	case harness.Successor:
		return &stats.SuccessorActions
	case harness.RangeEnumerate:
		return &stats.RangeEnumerateActions
	case harness.StructuralCheck:
		return &stats.StructuralCheckAction
	case harness.RandomTeardown:
		return &stats.TeardownActions
	}
	return nil
}

func (stats *campaignStats) record(result harness.Result, err error) {
	stats.Runs.Increment()
	switch {
	case nil == err:
		stats.Passed.Increment()
	case blunder.Is(err, blunder.TimeoutError):
		stats.TimedOut.Increment()
	default:
		stats.Failed.Increment()
	}

	for kind, count := range result.Actions {
		total := stats.actionTotal(kind)
		if nil != total {
			total.Add(count)
		}
	}

	stats.RoundsPerRun.Add(uint64(result.Rounds))
	for _, size := range result.Sizes {
		stats.OracleSize.Add(uint64(size))
	}
	stats.RunUsec.Add(uint64(result.Elapsed.Microseconds()))
}

// metrics mirrors a finished Report into a private Prometheus registry so it
// can be written out in the text exposition format.
type metrics struct {
	registry  *prometheus.Registry
	runs      *prometheus.CounterVec
	actions   *prometheus.CounterVec
	failures  prometheus.Gauge
	elapsed   prometheus.Gauge
	maxRSS    prometheus.Gauge
	rounds    prometheus.Histogram
	oracleLen prometheus.Histogram
}

func newMetrics() (m *metrics) {
	m = &metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rbfuzz",
			Name:      "runs_total",
			Help:      "Runs executed, by outcome.",
		}, []string{"outcome"}),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rbfuzz",
			Name:      "actions_total",
			Help:      "Actions applied, by kind.",
		}, []string{"kind"}),
		failures: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "rbfuzz",
			Name:      "distinct_failures",
			Help:      "Distinct failure signatures found.",
		}),
		elapsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "rbfuzz",
			Name:      "campaign_seconds",
			Help:      "Wall time of the campaign.",
		}),
		maxRSS: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "rbfuzz",
			Name:      "max_rss_bytes",
			Help:      "Peak resident set size of the process.",
		}),
		rounds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "rbfuzz",
			Name:      "run_rounds",
			Help:      "Rounds completed per run.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
		oracleLen: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "rbfuzz",
			Name:      "oracle_entries",
			Help:      "Oracle size at each full cross-check.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
	}

	m.registry.MustRegister(m.runs, m.actions, m.failures, m.elapsed, m.maxRSS, m.rounds, m.oracleLen)

	// Every outcome and kind is present even when zero
	for _, outcome := range []string{"passed", "failed", "timeout"} {
		m.runs.WithLabelValues(outcome)
	}
	for _, kind := range harness.Kinds() {
		m.actions.WithLabelValues(kind.String())
	}

	return
}

func (m *metrics) record(result harness.Result, err error) {
	switch {
	case nil == err:
		m.runs.WithLabelValues("passed").Inc()
	case blunder.Is(err, blunder.TimeoutError):
		m.runs.WithLabelValues("timeout").Inc()
	default:
		m.runs.WithLabelValues("failed").Inc()
	}
	for kind, count := range result.Actions {
		m.actions.WithLabelValues(kind.String()).Add(float64(count))
	}
	m.rounds.Observe(float64(result.Rounds))
	for _, size := range result.Sizes {
		m.oracleLen.Observe(float64(size))
	}
}

func (m *metrics) finish(report *Report) {
	m.failures.Set(float64(len(report.Failures)))
	m.elapsed.Set(report.Elapsed.Seconds())
	m.maxRSS.Set(float64(report.MaxRSS) * 1024)
}

func (m *metrics) writeTextfile(filename string) (err error) {
	err = prometheus.WriteToTextfile(filename, m.registry)
	return
}
