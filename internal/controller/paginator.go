package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/speedwagon-io/wificonnector/internal/lib/logger/sl"
	"github.com/speedwagon-io/wificonnector/internal/model"
	"github.com/speedwagon-io/wificonnector/internal/retry"
)

var ErrInvalidPageSize = errors.New("page size must be positive")

// envelope accepts both {totalCount, data} and the controller-native
// {totalCount, hasMore, list} response shapes.
type envelope struct {
	TotalCount int               `json:"totalCount"`
	HasMore    *bool             `json:"hasMore"`
	Data       []model.RawEntity `json:"data"`
	List       []model.RawEntity `json:"list"`
}

func (e *envelope) items() []model.RawEntity {
	if e.Data != nil {
		return e.Data
	}
	return e.List
}

type PageError struct {
	Page int
	Err  error
}

func (e PageError) Error() string {
	return fmt.Sprintf("page %d: %v", e.Page, e.Err)
}

type FetchResult struct {
	Kind       model.EntityKind
	Entities   []model.RawEntity
	TotalCount int
	Pages      int
	Duplicates int
	PageErrors []PageError
	// Truncated is set when the walk hit maxPages before the last page.
	Truncated bool
}

type Paginator struct {
	log      *slog.Logger
	client   *Client
	session  *SessionManager
	policy   retry.Policy
	method   string
	maxPages int
}

func NewPaginator(log *slog.Logger, client *Client, session *SessionManager, policy retry.Policy, method string, maxPages int) *Paginator {
	if method == "" {
		method = http.MethodGet
	}
	if maxPages <= 0 {
		maxPages = 1000
	}
	return &Paginator{
		log:      log,
		client:   client,
		session:  session,
		policy:   policy,
		method:   method,
		maxPages: maxPages,
	}
}

// FetchAll walks every page of kind. Pages that keep failing with
// transient errors are dropped and reported in PageErrors; an auth
// failure or cancellation aborts the walk and is returned.
func (p *Paginator) FetchAll(ctx context.Context, kind model.EntityKind, pageSize int) (*FetchResult, error) {
	if pageSize <= 0 {
		return nil, ErrInvalidPageSize
	}

	log := p.log.With(slog.String("entity", string(kind)))
	res := &FetchResult{Kind: kind}
	index := make(map[string]int)
	covered := 0
	done := false

	for page := 1; page <= p.maxPages && !done; page++ {
		env, err := p.fetchPage(ctx, kind, page, pageSize)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			if retry.Is(err, retry.KindAuth) {
				return res, err
			}

			log.Warn("dropping page after retries", slog.Int("page", page), sl.Err(err))
			res.PageErrors = append(res.PageErrors, PageError{Page: page, Err: err})

			covered += pageSize
			done = res.TotalCount == 0 || covered >= res.TotalCount
			continue
		}

		res.Pages++
		if env.TotalCount > 0 {
			res.TotalCount = env.TotalCount
		}

		items := env.items()
		covered += len(items)
		for _, raw := range items {
			key := kind.Key(raw)
			if key == "" {
				res.Entities = append(res.Entities, raw)
				continue
			}
			if i, seen := index[key]; seen {
				res.Entities[i] = raw
				res.Duplicates++
				continue
			}
			index[key] = len(res.Entities)
			res.Entities = append(res.Entities, raw)
		}

		done = len(items) < pageSize ||
			(env.HasMore != nil && !*env.HasMore) ||
			(res.TotalCount > 0 && covered >= res.TotalCount)
	}

	if !done {
		res.Truncated = true
		log.Warn("page limit reached, snapshot is incomplete",
			slog.Int("max_pages", p.maxPages),
			slog.Int("covered", covered),
			slog.Int("total_count", res.TotalCount),
		)
	}

	log.Debug("fetched entities",
		slog.Int("count", len(res.Entities)),
		slog.Int("total_count", res.TotalCount),
		slog.Int("pages", res.Pages),
		slog.Int("duplicates", res.Duplicates),
		slog.Int("page_errors", len(res.PageErrors)),
	)

	return res, nil
}

type pageRequest struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

func (p *Paginator) fetchPage(ctx context.Context, kind model.EntityKind, page, pageSize int) (*envelope, error) {
	op := "query " + string(kind)
	endpoint := p.client.endpoint(p.client.apiVersion, "/query/"+string(kind))

	var env *envelope
	err := p.policy.Do(ctx, func(ctx context.Context) error {
		return p.session.Do(ctx, func(ctx context.Context, cred Credential) error {
			var (
				query url.Values
				body  any
			)
			if p.method == http.MethodPost {
				body = pageRequest{Page: page, Limit: pageSize}
			} else {
				query = url.Values{
					"page":  {strconv.Itoa(page)},
					"limit": {strconv.Itoa(pageSize)},
				}
			}

			resp, err := p.client.do(ctx, op, p.method, endpoint, query, body, &cred)
			if err != nil {
				return err
			}

			decoded, err := decodeEnvelope(resp.body)
			if err != nil {
				return retry.New(retry.KindPermanent, op, err)
			}
			env = decoded
			return nil
		})
	}, func(attempt int, delay time.Duration, err error) {
		p.log.Warn("page request failed, retrying",
			slog.String("entity", string(kind)),
			slog.Int("page", page),
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			sl.Err(err),
		)
	})

	return env, err
}

func decodeEnvelope(body []byte) (*envelope, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var env envelope
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &env, nil
}
