package collector

import (
	"context"
	"time"

	"github.com/speedwagon-io/wificonnector/internal/controller"
	"github.com/speedwagon-io/wificonnector/internal/model"
	"github.com/speedwagon-io/wificonnector/internal/writer"
)

// Fetcher pulls every entity of one kind from the controller.
type Fetcher interface {
	FetchAll(ctx context.Context, kind model.EntityKind, pageSize int) (*controller.FetchResult, error)
}

type Session interface {
	BeginCycle()
	EnsureSession(ctx context.Context) (controller.Credential, error)
}

type Sink interface {
	WriteBatch(ctx context.Context, points []model.Point) writer.Report
	Replay(ctx context.Context) (int, error)
}

// Cycle is one collect-transform-write pass. phase is called as the
// cycle moves from collecting to writing.
type Cycle interface {
	RunCycle(ctx context.Context, phase func(State)) (*Report, error)
}

type State int32

const (
	StateIdle State = iota
	StateCollecting
	StateWriting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCollecting:
		return "collecting"
	case StateWriting:
		return "writing"
	default:
		return "unknown"
	}
}

const (
	ResultSuccess = "success"
	ResultPartial = "partial"
	ResultFailed  = "failed"
)

type Report struct {
	CycleID  string
	Started  time.Time
	Duration time.Duration

	Fetched    map[model.EntityKind]int
	Skipped    map[model.EntityKind]int
	PageErrors int
	// Truncated counts entity kinds cut off by the page limit.
	Truncated int
	Dangling  int
	Points    int
	Replayed  int
	Write     writer.Report

	Err error
}

func newReport(id string, started time.Time) *Report {
	return &Report{
		CycleID: id,
		Started: started,
		Fetched: make(map[model.EntityKind]int),
		Skipped: make(map[model.EntityKind]int),
	}
}

func (r *Report) SkippedTotal() int {
	n := 0
	for _, v := range r.Skipped {
		n += v
	}
	return n
}

func (r *Report) Result() string {
	switch {
	case r.Err != nil:
		return ResultFailed
	case r.Write.Failed(), r.PageErrors > 0, r.Truncated > 0, r.SkippedTotal() > 0:
		return ResultPartial
	default:
		return ResultSuccess
	}
}
