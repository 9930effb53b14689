package collector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/speedwagon-io/wificonnector/internal/aggregate"
	"github.com/speedwagon-io/wificonnector/internal/controller"
	"github.com/speedwagon-io/wificonnector/internal/lib/logger/sl"
	"github.com/speedwagon-io/wificonnector/internal/metrics"
	"github.com/speedwagon-io/wificonnector/internal/model"
	"github.com/speedwagon-io/wificonnector/internal/retry"
	"github.com/speedwagon-io/wificonnector/internal/transform"
)

type Options struct {
	PageSize     int
	TopHosts     int
	SLAThreshold float64
	// Retry covers the login at the start of a cycle.
	Retry retry.Policy
}

// Pipeline runs one collection cycle: fetch every entity kind, convert
// and aggregate the snapshot, write the points.
type Pipeline struct {
	log     *slog.Logger
	session Session
	fetcher Fetcher
	sink    Sink
	metrics *metrics.Metrics
	opts    Options
	now     func() time.Time
}

func NewPipeline(log *slog.Logger, session Session, fetcher Fetcher, sink Sink, m *metrics.Metrics, opts Options) *Pipeline {
	if opts.PageSize <= 0 {
		opts.PageSize = 100
	}
	if opts.TopHosts <= 0 {
		opts.TopHosts = aggregate.DefaultTopN
	}
	return &Pipeline{
		log:     log,
		session: session,
		fetcher: fetcher,
		sink:    sink,
		metrics: m,
		opts:    opts,
		now:     time.Now,
	}
}

type snapshot struct {
	zones   []model.Zone
	aps     []model.AccessPoint
	clients []model.Client
	causes  []model.DisconnectCause
}

func (p *Pipeline) RunCycle(ctx context.Context, phase func(State)) (*Report, error) {
	if phase == nil {
		phase = func(State) {}
	}

	started := p.now()
	report := newReport(uuid.New().String(), started)
	log := p.log.With(slog.String("cycle_id", report.CycleID))

	defer func() {
		report.Duration = p.now().Sub(started)
		p.logSummary(log, report)
	}()

	phase(StateCollecting)

	p.session.BeginCycle()
	if err := p.ensureSession(ctx, log); err != nil {
		report.Err = fmt.Errorf("failed to establish controller session: %w", err)
		return report, report.Err
	}

	results, err := p.fetch(ctx)
	if err != nil {
		report.Err = err
		return report, err
	}

	// One timestamp for every point of the cycle.
	ts := started.UTC()

	snap := p.convert(log, report, results)
	points := p.build(log, report, snap, ts)
	report.Points = len(points)

	if err := ctx.Err(); err != nil {
		report.Err = err
		log.Warn("cycle cancelled before write, discarding snapshot", slog.Int("points", len(points)))
		return report, err
	}

	phase(StateWriting)

	report.Write = p.sink.WriteBatch(ctx, points)
	if p.metrics != nil {
		p.metrics.PointsWritten(report.Write.Written, report.Write.DroppedPoints)
		p.metrics.BatchesDropped(report.Write.Dropped)
	}

	if !report.Write.Failed() && ctx.Err() == nil {
		n, err := p.sink.Replay(ctx)
		report.Replayed = n
		if err != nil {
			log.Warn("buffer replay failed", sl.Err(err))
		}
	}

	return report, nil
}

func (p *Pipeline) ensureSession(ctx context.Context, log *slog.Logger) error {
	return p.opts.Retry.Do(ctx, func(ctx context.Context) error {
		_, err := p.session.EnsureSession(ctx)
		return err
	}, func(attempt int, delay time.Duration, err error) {
		log.Warn("controller login failed, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			sl.Err(err),
		)
	})
}

func (p *Pipeline) fetch(ctx context.Context) (map[model.EntityKind]*controller.FetchResult, error) {
	results := make([]*controller.FetchResult, len(model.EntityKinds))

	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range model.EntityKinds {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("%w: fetch %s: %v", ErrCyclePanic, kind, r)
				}
			}()

			res, err := p.fetcher.FetchAll(gctx, kind, p.opts.PageSize)
			if err != nil {
				return fmt.Errorf("failed to fetch %s: %w", kind, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byKind := make(map[model.EntityKind]*controller.FetchResult, len(results))
	for i, kind := range model.EntityKinds {
		byKind[kind] = results[i]
	}
	return byKind, nil
}

func (p *Pipeline) convert(log *slog.Logger, report *Report, results map[model.EntityKind]*controller.FetchResult) snapshot {
	for kind, res := range results {
		report.Fetched[kind] = len(res.Entities)
		report.PageErrors += len(res.PageErrors)
		if res.Truncated {
			report.Truncated++
		}
		if p.metrics != nil {
			p.metrics.EntitiesFetched(string(kind), len(res.Entities))
			p.metrics.PageErrors(string(kind), len(res.PageErrors))
		}
	}

	return snapshot{
		zones:   convertAll(p, log, report, model.EntityZone, results[model.EntityZone], transform.Zone),
		aps:     convertAll(p, log, report, model.EntityAccessPoint, results[model.EntityAccessPoint], transform.AccessPoint),
		clients: convertAll(p, log, report, model.EntityClient, results[model.EntityClient], transform.Client),
		causes:  convertAll(p, log, report, model.EntityDisconnectCause, results[model.EntityDisconnectCause], transform.DisconnectCause),
	}
}

func convertAll[T any](p *Pipeline, log *slog.Logger, report *Report, kind model.EntityKind, res *controller.FetchResult, fn func(model.RawEntity) (T, error)) []T {
	if res == nil {
		return nil
	}

	out := make([]T, 0, len(res.Entities))
	skipped := 0
	for _, raw := range res.Entities {
		v, err := fn(raw)
		if err != nil {
			skipped++
			log.Warn("skipping invalid entity",
				slog.String("entity", string(kind)),
				slog.String("id", kind.Key(raw)),
				sl.Err(err),
			)
			continue
		}
		out = append(out, v)
	}

	report.Skipped[kind] = skipped
	if p.metrics != nil && skipped > 0 {
		p.metrics.EntitiesSkipped(string(kind), skipped)
	}
	return out
}

func (p *Pipeline) build(log *slog.Logger, report *Report, snap snapshot, ts time.Time) []model.Point {
	zones := aggregate.EnrichZones(snap.zones, snap.aps, snap.clients)

	refs := aggregate.CheckReferences(zones, snap.aps, snap.clients)
	report.Dangling = refs.Total()
	if refs.Total() > 0 {
		log.Warn("clients reference entities missing from the snapshot",
			slog.Int("unknown_ap", refs.DanglingAP),
			slog.Int("unknown_zone", refs.DanglingZone),
		)
	}

	causes := aggregate.FilterCauses(snap.causes, snap.aps)
	if causes.UnknownAP > 0 {
		log.Warn("disconnect causes reference unknown access points", slog.Int("count", causes.UnknownAP))
	}
	if causes.Online > 0 {
		log.Debug("ignored disconnect causes of online access points", slog.Int("count", causes.Online))
	}

	points := make([]model.Point, 0, len(zones)+len(snap.aps)+len(snap.clients)+len(causes.Causes)+p.opts.TopHosts+8)

	points = append(points, aggregate.Venue(zones, p.opts.SLAThreshold).Point(ts))
	for _, z := range zones {
		points = append(points, z.Point(ts))
	}
	for _, ap := range snap.aps {
		points = append(points, ap.Point(ts))
	}
	for _, c := range snap.clients {
		points = append(points, c.Point(ts))
	}
	for _, c := range causes.Causes {
		points = append(points, c.Point(ts))
	}
	for _, e := range aggregate.OsDistribution(snap.clients) {
		points = append(points, e.Point(ts))
	}
	for _, e := range aggregate.HostUsage(snap.clients, p.opts.TopHosts) {
		points = append(points, e.Point(ts))
	}

	return points
}

func (p *Pipeline) logSummary(log *slog.Logger, r *Report) {
	attrs := []any{
		slog.String("result", r.Result()),
		slog.Duration("duration", r.Duration),
		slog.Int("zones", r.Fetched[model.EntityZone]),
		slog.Int("aps", r.Fetched[model.EntityAccessPoint]),
		slog.Int("clients", r.Fetched[model.EntityClient]),
		slog.Int("causes", r.Fetched[model.EntityDisconnectCause]),
		slog.Int("skipped", r.SkippedTotal()),
		slog.Int("page_errors", r.PageErrors),
		slog.Int("truncated", r.Truncated),
		slog.Int("dangling", r.Dangling),
		slog.Int("points", r.Points),
		slog.Int("written", r.Write.Written),
		slog.Int("dropped_batches", r.Write.Dropped),
		slog.Int("spooled", r.Write.Spooled),
		slog.Int("replayed", r.Replayed),
	}

	if r.Err != nil {
		log.Error("collection cycle failed", append(attrs, sl.Err(r.Err))...)
		return
	}
	log.Info("collection cycle finished", attrs...)
}
