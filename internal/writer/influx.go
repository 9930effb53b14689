package writer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	http2 "github.com/influxdata/influxdb-client-go/v2/api/http"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"

	"github.com/speedwagon-io/wificonnector/internal/config"
	"github.com/speedwagon-io/wificonnector/internal/model"
	"github.com/speedwagon-io/wificonnector/internal/retry"
)

const opWrite = "influx write"

// InfluxStore writes points through the InfluxDB v2 blocking write API.
// Retries are left to the caller.
type InfluxStore struct {
	log    *slog.Logger
	client influxdb2.Client
	write  api.WriteAPIBlocking
	org    string
	bucket string
}

func NewInfluxStore(log *slog.Logger, cfg *config.StoreConfig) *InfluxStore {
	opts := influxdb2.DefaultOptions().
		SetHTTPRequestTimeout(uint(cfg.Timeout / time.Second))
	if !cfg.VerifySSL {
		opts.SetTLSConfig(&tls.Config{InsecureSkipVerify: true}) //nolint:gosec // operator opted out
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)

	return &InfluxStore{
		log:    log,
		client: client,
		write:  client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		org:    cfg.Org,
		bucket: cfg.Bucket,
	}
}

func (s *InfluxStore) WritePoints(ctx context.Context, points []model.Point) error {
	if len(points) == 0 {
		return nil
	}

	pts := make([]*write.Point, 0, len(points))
	for _, p := range points {
		pts = append(pts, write.NewPoint(p.Measurement, nonEmptyTags(p.Tags), p.Fields, p.Time))
	}

	if err := s.write.WritePoint(ctx, pts...); err != nil {
		return classify(ctx, opWrite, err)
	}
	return nil
}

func (s *InfluxStore) Health(ctx context.Context) error {
	h, err := s.client.Health(ctx)
	if err != nil {
		return fmt.Errorf("influx health check failed: %w", err)
	}
	if h.Status != domain.HealthCheckStatusPass {
		msg := ""
		if h.Message != nil {
			msg = *h.Message
		}
		return fmt.Errorf("influx unhealthy: %s %s", h.Status, msg)
	}
	return nil
}

// EnsureBucket creates the configured bucket when it does not exist yet.
func (s *InfluxStore) EnsureBucket(ctx context.Context) error {
	buckets := s.client.BucketsAPI()
	if _, err := buckets.FindBucketByName(ctx, s.bucket); err == nil {
		return nil
	}

	org, err := s.client.OrganizationsAPI().FindOrganizationByName(ctx, s.org)
	if err != nil {
		return fmt.Errorf("failed to find organization %q: %w", s.org, err)
	}

	if _, err := buckets.CreateBucketWithName(ctx, org, s.bucket); err != nil {
		return fmt.Errorf("failed to create bucket %q: %w", s.bucket, err)
	}

	s.log.Info("created bucket", slog.String("bucket", s.bucket), slog.String("org", s.org))
	return nil
}

func (s *InfluxStore) Close() error {
	s.client.Close()
	return nil
}

// classify maps a write failure onto the retry kinds. Errors without an
// HTTP status are network failures and worth retrying.
func classify(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	var herr *http2.Error
	if errors.As(err, &herr) && herr.StatusCode != 0 {
		e := retry.FromStatus(op, herr.StatusCode, nil, "")
		e.Err = err
		if herr.RetryAfter > 0 {
			e.RetryAfter = time.Duration(herr.RetryAfter) * time.Second
		}
		return e
	}

	return &retry.Error{Kind: retry.KindTransient, Op: op, Err: err}
}

func nonEmptyTags(tags map[string]string) map[string]string {
	out := make(map[string]string, len(tags))
	for k, v := range tags {
		if v != "" {
			out[k] = v
		}
	}
	return out
}
