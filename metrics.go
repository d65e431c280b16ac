package hnf

import (
	"sync/atomic"
	"time"
)

// MetricsCollector receives operational metrics. Implement it to export
// to a monitoring system; examples/04-metrics binds it to Prometheus.
//
// Implementations must be safe for concurrent use: parallel reads record
// from several goroutines.
type MetricsCollector interface {
	// RecordRead is called once per neuron read, with the kinds decoded.
	RecordRead(id string, kinds []Kind, duration time.Duration, err error)

	// RecordWrite is called once per representation block written.
	RecordWrite(id string, kind Kind, duration time.Duration, err error)

	// RecordDispatch is called after each parallel read.
	RecordDispatch(total, failed, workers int, duration time.Duration)
}

// NoopMetricsCollector discards all metrics.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordRead(string, []Kind, time.Duration, error) {}
func (NoopMetricsCollector) RecordWrite(string, Kind, time.Duration, error)  {}
func (NoopMetricsCollector) RecordDispatch(int, int, int, time.Duration)     {}

// BasicMetricsCollector counts operations in memory.
type BasicMetricsCollector struct {
	ReadCount       atomic.Int64
	ReadErrors      atomic.Int64
	ReadTotalNanos  atomic.Int64
	BlocksDecoded   atomic.Int64
	WriteCount      atomic.Int64
	WriteErrors     atomic.Int64
	WriteTotalNanos atomic.Int64
	DispatchCount   atomic.Int64
	DispatchNeurons atomic.Int64
	DispatchFailed  atomic.Int64
}

// RecordRead implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRead(_ string, kinds []Kind, duration time.Duration, err error) {
	b.ReadCount.Add(1)
	b.ReadTotalNanos.Add(duration.Nanoseconds())
	b.BlocksDecoded.Add(int64(len(kinds)))
	if err != nil {
		b.ReadErrors.Add(1)
	}
}

// RecordWrite implements MetricsCollector.
func (b *BasicMetricsCollector) RecordWrite(_ string, _ Kind, duration time.Duration, err error) {
	b.WriteCount.Add(1)
	b.WriteTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.WriteErrors.Add(1)
	}
}

// RecordDispatch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDispatch(total, failed, _ int, _ time.Duration) {
	b.DispatchCount.Add(1)
	b.DispatchNeurons.Add(int64(total))
	b.DispatchFailed.Add(int64(failed))
}

// GetStats returns a snapshot of the counters.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	s := BasicMetricsStats{
		ReadCount:       b.ReadCount.Load(),
		ReadErrors:      b.ReadErrors.Load(),
		BlocksDecoded:   b.BlocksDecoded.Load(),
		WriteCount:      b.WriteCount.Load(),
		WriteErrors:     b.WriteErrors.Load(),
		DispatchCount:   b.DispatchCount.Load(),
		DispatchNeurons: b.DispatchNeurons.Load(),
		DispatchFailed:  b.DispatchFailed.Load(),
	}
	if s.ReadCount > 0 {
		s.ReadAvgNanos = b.ReadTotalNanos.Load() / s.ReadCount
	}
	if s.WriteCount > 0 {
		s.WriteAvgNanos = b.WriteTotalNanos.Load() / s.WriteCount
	}
	return s
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	ReadCount       int64
	ReadErrors      int64
	ReadAvgNanos    int64
	BlocksDecoded   int64
	WriteCount      int64
	WriteErrors     int64
	WriteAvgNanos   int64
	DispatchCount   int64
	DispatchNeurons int64
	DispatchFailed  int64
}
