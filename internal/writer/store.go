package writer

//go:generate mockgen -destination=mock_store.go -package=writer github.com/speedwagon-io/wificonnector/internal/writer PointStore

import (
	"context"
	"log/slog"

	"github.com/speedwagon-io/wificonnector/internal/model"
)

// PointStore is the time-series database the points end up in.
type PointStore interface {
	WritePoints(ctx context.Context, points []model.Point) error
	Health(ctx context.Context) error
	Close() error
}

// LogStore logs points instead of writing them (dry-run mode).
type LogStore struct {
	log *slog.Logger
}

func NewLogStore(log *slog.Logger) *LogStore {
	return &LogStore{log: log}
}

func (s *LogStore) WritePoints(_ context.Context, points []model.Point) error {
	if len(points) == 0 {
		return nil
	}

	s.log.Info("WRITE",
		slog.String("measurement", points[0].Measurement),
		slog.Int("points_count", len(points)),
	)
	for _, p := range points {
		s.log.Debug("point",
			slog.String("measurement", p.Measurement),
			slog.Any("tags", p.Tags),
			slog.Any("fields", p.Fields),
			slog.Time("time", p.Time),
		)
	}

	return nil
}

func (s *LogStore) Health(context.Context) error {
	return nil
}

func (s *LogStore) Close() error {
	return nil
}
