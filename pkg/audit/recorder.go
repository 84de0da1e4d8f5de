package audit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// RecorderConfig contains configuration for the async recorder.
type RecorderConfig struct {
	// Buffer is the size of the record channel. When the buffer is full,
	// records are dropped rather than blocking the admission path.
	// Default: 1000
	Buffer int

	// WriteTimeout bounds each storage write.
	// Default: 5 seconds
	WriteTimeout time.Duration
}

// DefaultRecorderConfig returns the default recorder configuration.
func DefaultRecorderConfig() RecorderConfig {
	return RecorderConfig{
		Buffer:       1000,
		WriteTimeout: 5 * time.Second,
	}
}

// Recorder writes admission decisions to a Store asynchronously so that
// storage latency never shows up in a decision.
type Recorder struct {
	store   Store
	cfg     RecorderConfig
	records chan *Record
	dropped atomic.Int64
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
	logger  *slog.Logger
}

// NewRecorder creates a recorder draining into store and starts its worker.
func NewRecorder(store Store, cfg RecorderConfig) *Recorder {
	if cfg.Buffer <= 0 {
		cfg.Buffer = 1000
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}

	r := &Recorder{
		store:   store,
		cfg:     cfg,
		records: make(chan *Record, cfg.Buffer),
		done:    make(chan struct{}),
		logger:  slog.Default().With("component", "audit.recorder"),
	}

	r.wg.Add(1)
	go r.worker()

	return r
}

// Record enqueues one decision. It never blocks: when the buffer is full the
// record is counted as dropped instead.
func (r *Recorder) Record(clientID string, allowed bool, latency time.Duration) {
	record := &Record{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		ClientID:  clientID,
		Allowed:   allowed,
		Latency:   latency,
	}

	select {
	case r.records <- record:
	default:
		r.dropped.Add(1)
	}
}

// Dropped returns the number of records lost to a full buffer.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// Close stops the worker after draining buffered records. The store itself
// is not closed; it belongs to the caller.
func (r *Recorder) Close() error {
	r.once.Do(func() {
		close(r.done)
	})
	r.wg.Wait()
	return nil
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case record := <-r.records:
			r.write(record)
		case <-r.done:
			// Drain whatever is still buffered, then exit.
			for {
				select {
				case record := <-r.records:
					r.write(record)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(record *Record) {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.WriteTimeout)
	defer cancel()

	if err := r.store.Append(ctx, record); err != nil {
		r.logger.Error("failed to write audit record",
			"record_id", record.ID,
			"client_id", record.ClientID,
			"error", err,
		)
	}
}
