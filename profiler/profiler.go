// Package profiler - Runtime sampling and latency tracking around a timed evaluation.
package profiler

import (
	"fmt"
	"runtime"
	"runtime/metrics"
	"sync"
	"time"
)

// DefaultSampleInterval is how often a Sampler reads runtime statistics.
const DefaultSampleInterval = 50 * time.Millisecond

const (
	heapObjectsMetric = "/memory/classes/heap/objects:bytes"
	goroutinesMetric  = "/sched/goroutines:goroutines"
)

// Peaks are the largest values a Sampler observed.
type Peaks struct {
	HeapAllocBytes uint64 `json:"peak_heap_alloc_bytes"`
	Goroutines     int    `json:"peak_goroutines"`
	CgoCalls       int64  `json:"cgo_calls"`
	Samples        int    `json:"samples"`
}

// Sampler polls the Go runtime in the background and keeps the peaks.
//
// It reads runtime/metrics, which does not stop the world, so it can run inside a timed region.
// Memory owned by native runtimes is invisible to it; CgoCalls counts calls into them.
type Sampler struct {
	interval time.Duration
	samples  []metrics.Sample

	mu      sync.Mutex
	peaks   Peaks
	cgoBase int64
	stop    chan struct{}
	done    chan struct{}
}

// NewSampler returns a stopped sampler. A non-positive interval uses DefaultSampleInterval.
func NewSampler(interval time.Duration) *Sampler {
	if interval <= 0 {
		interval = DefaultSampleInterval
	}
	return &Sampler{
		interval: interval,
		samples: []metrics.Sample{
			{Name: heapObjectsMetric},
			{Name: goroutinesMetric},
		},
	}
}

// Start begins sampling. Calling Start on a running sampler is a no-op.
func (s *Sampler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stop != nil {
		return
	}
	s.peaks = Peaks{}
	s.cgoBase = runtime.NumCgoCall()
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.sampleLocked()

	go s.loop(s.stop, s.done)
}

// Stop halts sampling, takes a final sample and returns the peaks.
func (s *Sampler) Stop() Peaks {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sampleLocked()
	return s.peaks
}

func (s *Sampler) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			s.sampleLocked()
			s.mu.Unlock()
		}
	}
}

func (s *Sampler) sampleLocked() {
	metrics.Read(s.samples)

	if v := s.samples[0].Value; v.Kind() == metrics.KindUint64 && v.Uint64() > s.peaks.HeapAllocBytes {
		s.peaks.HeapAllocBytes = v.Uint64()
	}
	if v := s.samples[1].Value; v.Kind() == metrics.KindUint64 && int(v.Uint64()) > s.peaks.Goroutines {
		s.peaks.Goroutines = int(v.Uint64())
	}
	s.peaks.CgoCalls = runtime.NumCgoCall() - s.cgoBase
	s.peaks.Samples++
}

// FormatBytes renders a byte count with a binary unit.
func FormatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
