package writer

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speedwagon-io/wificonnector/internal/config"
	"github.com/speedwagon-io/wificonnector/internal/lib/logger/sl"
	"github.com/speedwagon-io/wificonnector/internal/model"
	"github.com/speedwagon-io/wificonnector/internal/retry"
)

type fakeInflux struct {
	mu          sync.Mutex
	bodies      []string
	status      int
	buckets     []map[string]any
	createdName string
}

func (f *fakeInflux) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v2/write", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		f.mu.Lock()
		f.bodies = append(f.bodies, string(body))
		status := f.status
		f.mu.Unlock()

		if status != 0 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"code":"internal error","message":"boom"}`))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSONStatus(w, http.StatusOK, map[string]any{"name": "influxdb", "status": "pass", "message": "ready", "checks": []any{}})
	})

	mux.HandleFunc("/api/v2/buckets", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		if r.Method == http.MethodPost {
			var req map[string]any
			_ = json.NewDecoder(r.Body).Decode(&req)
			f.createdName, _ = req["name"].(string)
			writeJSONStatus(w, http.StatusCreated, map[string]any{
				"id": "b1", "name": f.createdName, "orgID": "o1", "retentionRules": []any{},
			})
			return
		}
		buckets := f.buckets
		if buckets == nil {
			buckets = []map[string]any{}
		}
		writeJSONStatus(w, http.StatusOK, map[string]any{"buckets": buckets})
	})

	mux.HandleFunc("/api/v2/orgs", func(w http.ResponseWriter, _ *http.Request) {
		writeJSONStatus(w, http.StatusOK, map[string]any{"orgs": []any{map[string]any{"id": "o1", "name": "wifi-org"}}})
	})

	return mux
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestInflux(t *testing.T, f *fakeInflux) *InfluxStore {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)

	store := NewInfluxStore(sl.Discard(), &config.StoreConfig{
		URL:       srv.URL,
		Org:       "wifi-org",
		Bucket:    "wifi",
		Token:     "tkn",
		Timeout:   5 * time.Second,
		VerifySSL: true,
	})
	t.Cleanup(func() { store.Close() })
	return store
}

func TestInfluxStoreWritesLineProtocol(t *testing.T) {
	f := &fakeInflux{}
	store := newTestInflux(t, f)

	p := model.NewPoint(model.MeasurementZone, ts).
		Tag("zoneId", "Z1").
		Tag("domainId", "").
		Int("clients", 3).
		Float("apAvailability", 100)

	require.NoError(t, store.WritePoints(context.Background(), []model.Point{p}))

	f.mu.Lock()
	defer f.mu.Unlock()
	require.Len(t, f.bodies, 1)
	line := strings.TrimSpace(f.bodies[0])
	assert.True(t, strings.HasPrefix(line, "zone,zoneId=Z1 "), line)
	assert.Contains(t, line, "clients=3i")
	assert.Contains(t, line, "apAvailability=100")
	assert.NotContains(t, line, "domainId")
}

func TestInfluxStoreClassifiesErrors(t *testing.T) {
	cases := map[int]retry.Kind{
		http.StatusServiceUnavailable: retry.KindTransient,
		http.StatusTooManyRequests:    retry.KindRateLimit,
		http.StatusUnauthorized:       retry.KindAuth,
		http.StatusBadRequest:         retry.KindPermanent,
	}

	for status, kind := range cases {
		f := &fakeInflux{status: status}
		store := newTestInflux(t, f)

		err := store.WritePoints(context.Background(), []model.Point{model.NewPoint(model.MeasurementVenue, ts).Int("totalZones", 1)})
		require.Error(t, err, status)
		assert.Equal(t, kind, retry.KindOf(err), "status %d", status)
	}
}

func TestInfluxStoreSkipsEmptyWrite(t *testing.T) {
	f := &fakeInflux{}
	store := newTestInflux(t, f)

	require.NoError(t, store.WritePoints(context.Background(), nil))
	assert.Empty(t, f.bodies)
}

func TestInfluxStoreHealth(t *testing.T) {
	store := newTestInflux(t, &fakeInflux{})
	assert.NoError(t, store.Health(context.Background()))
}

func TestEnsureBucketCreatesMissing(t *testing.T) {
	f := &fakeInflux{}
	store := newTestInflux(t, f)

	require.NoError(t, store.EnsureBucket(context.Background()))

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Equal(t, "wifi", f.createdName)
}

func TestEnsureBucketKeepsExisting(t *testing.T) {
	f := &fakeInflux{buckets: []map[string]any{{"id": "b0", "name": "wifi", "orgID": "o1", "retentionRules": []any{}}}}
	store := newTestInflux(t, f)

	require.NoError(t, store.EnsureBucket(context.Background()))

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Empty(t, f.createdName)
}
