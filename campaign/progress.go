// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package campaign

import (
	"runtime"
	"time"

	"github.com/NVIDIA/rbfuzz/logger"
)

// progressLogger logs the campaign's counters every period, then once more
// (as a final "total") when stopped.
type progressLogger struct {
	c        *campaign
	ticker   *time.Ticker
	stopChan chan bool
	doneChan chan bool
}

type progressSample struct {
	runs, passed, failed, timedOut, distinct int
}

func (c *campaign) sample() (s progressSample) {
	c.Lock()
	s = progressSample{
		runs:     c.runs,
		passed:   c.passed,
		failed:   c.failed,
		timedOut: c.timedOut,
		distinct: len(c.failures),
	}
	c.Unlock()
	return
}

// startProgressLogger returns nil if period is 0.
func startProgressLogger(c *campaign, period time.Duration) (progress *progressLogger) {
	if 0 == period {
		return
	}

	progress = &progressLogger{
		c:        c,
		ticker:   time.NewTicker(period),
		stopChan: make(chan bool),
		doneChan: make(chan bool),
	}
	go progress.loop(period)
	return
}

func (progress *progressLogger) stop() {
	if nil == progress {
		return
	}
	progress.stopChan <- true
	<-progress.doneChan
}

func (progress *progressLogger) loop(period time.Duration) {
	var (
		oldSample   progressSample
		newSample   progressSample
		oldMemStats runtime.MemStats
		newMemStats runtime.MemStats
	)

	// memstats "stops the world"
	runtime.ReadMemStats(&oldMemStats)

	for stopRequest := false; !stopRequest; {
		select {
		case <-progress.stopChan:
			stopRequest = true
		case <-progress.ticker.C:
		}

		newSample = progress.c.sample()
		runtime.ReadMemStats(&newMemStats)

		logger.Infof("campaign %s progress (total): runs=%d of %d passed=%d failed=%d timedOut=%d distinct=%d",
			progress.c.id, newSample.runs, progress.c.config.Runs, newSample.passed, newSample.failed, newSample.timedOut, newSample.distinct)
		if !stopRequest {
			logger.Infof("campaign %s progress (delta): runs=%d (%.1f/s) failed=%d",
				progress.c.id, newSample.runs-oldSample.runs,
				float64(newSample.runs-oldSample.runs)/period.Seconds(), newSample.failed-oldSample.failed)
		}
		logger.Infof("Memory in Kibyte (total): HeapInuse=%d HeapIdle=%d Cumulative TotalAlloc=%d NumGC=%d (+%d)",
			int64(newMemStats.HeapInuse)/1024, int64(newMemStats.HeapIdle)/1024,
			int64(newMemStats.TotalAlloc)/1024, newMemStats.NumGC, newMemStats.NumGC-oldMemStats.NumGC)

		oldSample = newSample
		oldMemStats = newMemStats
	}

	progress.ticker.Stop()
	progress.doneChan <- true
}
