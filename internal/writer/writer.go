package writer

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/speedwagon-io/wificonnector/internal/buffer"
	"github.com/speedwagon-io/wificonnector/internal/lib/logger/sl"
	"github.com/speedwagon-io/wificonnector/internal/model"
	"github.com/speedwagon-io/wificonnector/internal/retry"
)

const (
	DefaultBatchSize = 5000
	replayPageSize   = 50
)

// Report summarises one WriteBatch call.
type Report struct {
	Points        int
	Written       int
	Batches       int
	Dropped       int
	DroppedPoints int
	Spooled       int
	Errors        []error
}

func (r *Report) Failed() bool {
	return r.Dropped > 0
}

type Writer struct {
	log       *slog.Logger
	store     PointStore
	policy    retry.Policy
	batchSize int
	buffer    buffer.Buffer
	maxAge    time.Duration
}

type Option func(*Writer)

// WithBuffer spools batches that could not be written.
func WithBuffer(buf buffer.Buffer, maxAge time.Duration) Option {
	return func(w *Writer) {
		w.buffer = buf
		w.maxAge = maxAge
	}
}

func New(log *slog.Logger, store PointStore, policy retry.Policy, batchSize int, opts ...Option) *Writer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	w := &Writer{
		log:       log,
		store:     store,
		policy:    policy,
		batchSize: batchSize,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// WriteBatch writes points grouped by measurement in chunks of at most
// batchSize. A chunk that still fails after retries is dropped (and
// spooled when a buffer is configured); the other chunks still go out.
func (w *Writer) WriteBatch(ctx context.Context, points []model.Point) Report {
	report := Report{Points: len(points)}

	groups := make(map[string][]model.Point)
	for _, p := range points {
		groups[p.Measurement] = append(groups[p.Measurement], p)
	}
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		for _, chunk := range chunks(groups[name], w.batchSize) {
			report.Batches++

			err := w.writeChunk(ctx, name, chunk)
			if err == nil {
				report.Written += len(chunk)
				continue
			}

			report.Dropped++
			report.DroppedPoints += len(chunk)
			report.Errors = append(report.Errors, &retry.Error{Kind: retry.KindWrite, Op: "write " + name, Err: err})

			if ctx.Err() != nil {
				return report
			}

			w.log.Error("dropping batch after retries",
				slog.String("measurement", name),
				slog.Int("points", len(chunk)),
				sl.Err(err),
			)

			if w.spool(ctx, model.NewBatch(name, chunk)) {
				report.Spooled++
			}
		}
	}

	return report
}

func (w *Writer) writeChunk(ctx context.Context, measurement string, chunk []model.Point) error {
	return w.policy.Do(ctx, func(ctx context.Context) error {
		return w.store.WritePoints(ctx, chunk)
	}, func(attempt int, delay time.Duration, err error) {
		w.log.Warn("write attempt failed",
			slog.String("measurement", measurement),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", w.policy.MaxAttempts),
			slog.Duration("delay", delay),
			sl.Err(err),
		)
	})
}

func (w *Writer) spool(ctx context.Context, batch *model.Batch) bool {
	if w.buffer == nil {
		return false
	}
	if err := w.buffer.Store(ctx, batch); err != nil {
		w.log.Error("failed to store batch in buffer", slog.String("id", batch.ID), sl.Err(err))
		return false
	}
	return true
}

// Replay re-sends spooled batches, oldest first, and purges those older
// than the configured max age. It stops at the first batch the store
// still refuses.
func (w *Writer) Replay(ctx context.Context) (int, error) {
	if w.buffer == nil {
		return 0, nil
	}

	if w.maxAge > 0 {
		if _, err := w.buffer.Cleanup(ctx, w.maxAge); err != nil {
			w.log.Error("failed to cleanup buffer", sl.Err(err))
		}
	}

	replayed := 0
	for {
		batches, err := w.buffer.Pending(ctx, replayPageSize)
		if err != nil {
			return replayed, err
		}
		if len(batches) == 0 {
			break
		}

		for _, batch := range batches {
			if err := w.writeChunk(ctx, batch.Measurement, batch.Points); err != nil {
				w.log.Warn("buffer replay interrupted",
					slog.String("id", batch.ID),
					slog.Int("replayed", replayed),
					sl.Err(err),
				)
				return replayed, err
			}
			if err := w.buffer.Delete(ctx, []string{batch.ID}); err != nil {
				return replayed, err
			}
			replayed++
		}
	}

	if replayed > 0 {
		w.log.Info("replayed buffered batches", slog.Int("count", replayed))
	}
	return replayed, nil
}

func (w *Writer) Health(ctx context.Context) error {
	return w.store.Health(ctx)
}

func chunks(points []model.Point, size int) [][]model.Point {
	var out [][]model.Point
	for start := 0; start < len(points); start += size {
		end := start + size
		if end > len(points) {
			end = len(points)
		}
		out = append(out, points[start:end])
	}
	return out
}
