package db

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"sync"
	"testing"

	"hrloader/internal/config"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   []byte
	User   string
}

// fakeTransport answers like an Elasticsearch node.
type fakeTransport struct {
	mu       sync.Mutex
	requests []recordedRequest
	handle   func(r recordedRequest) (int, string)
}

func (f *fakeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		body, _ = io.ReadAll(req.Body)
	}
	user, _, _ := req.BasicAuth()
	rr := recordedRequest{Method: req.Method, Path: req.URL.Path, Body: body, User: user}

	f.mu.Lock()
	f.requests = append(f.requests, rr)
	f.mu.Unlock()

	status, payload := f.handle(rr)
	return &http.Response{
		StatusCode: status,
		Header: http.Header{
			"X-Elastic-Product": []string{"Elasticsearch"},
			"Content-Type":      []string{"application/json"},
		},
		Body:    io.NopCloser(strings.NewReader(payload)),
		Request: req,
	}, nil
}

func (f *fakeTransport) Requests() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.requests)
}

// bulkResponse builds a _bulk reply with one item per action line of body.
// Documents containing "reject" fail with a mapping error.
func bulkResponse(body []byte) string {
	type item struct {
		Index  string         `json:"_index"`
		Status int            `json:"status"`
		Error  map[string]any `json:"error,omitempty"`
	}
	var (
		items    []map[string]item
		hasError bool
		index    string
	)
	sc := bufio.NewScanner(bytes.NewReader(body))
	for n := 0; sc.Scan(); n++ {
		line := sc.Bytes()
		if n%2 == 0 {
			var meta map[string]map[string]any
			_ = json.Unmarshal(line, &meta)
			index, _ = meta["index"]["_index"].(string)
			continue
		}
		if bytes.Contains(line, []byte("reject")) {
			hasError = true
			items = append(items, map[string]item{"index": {Index: index, Status: 400,
				Error: map[string]any{"type": "mapper_parsing_exception", "reason": "failed to parse"}}})
			continue
		}
		items = append(items, map[string]item{"index": {Index: index, Status: 201}})
	}
	out, _ := json.Marshal(map[string]any{"took": 1, "errors": hasError, "items": items})
	return string(out)
}

func newTestStore(t *testing.T, cfg config.Elastic, handle func(r recordedRequest) (int, string)) (*ElasticStore, *fakeTransport, *logtest.Hook) {
	t.Helper()
	tp := &fakeTransport{handle: handle}
	log, hook := logtest.NewNullLogger()
	if cfg.Addresses == nil {
		cfg = config.Default().Elastic
	}
	store, err := NewElasticStore(cfg, log, tp)
	require.NoError(t, err)
	return store, tp, hook
}

func seqOf(actions ...Action) func(func(Action) bool) {
	return func(yield func(Action) bool) {
		for _, a := range actions {
			if !yield(a) {
				return
			}
		}
	}
}

func TestPing(t *testing.T) {
	store, tp, _ := newTestStore(t, config.Elastic{}, func(r recordedRequest) (int, string) {
		return 200, `{"version":{"number":"8.12.0"},"tagline":"You Know, for Search"}`
	})

	require.NoError(t, store.Ping(context.Background()))
	reqs := tp.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "GET", reqs[0].Method)
	assert.Equal(t, "/", reqs[0].Path)
	assert.Equal(t, "elastic", reqs[0].User)
}

func TestPingErrorStatus(t *testing.T) {
	store, tp, _ := newTestStore(t, config.Elastic{}, func(r recordedRequest) (int, string) {
		return 503, `{"error":"unavailable"}`
	})

	assert.Error(t, store.Ping(context.Background()))
	// retries are off unless configured
	assert.Len(t, tp.Requests(), 1)
}

func TestPingRetriesWhenConfigured(t *testing.T) {
	cfg := config.Default().Elastic
	cfg.MaxRetries = 2
	calls := 0
	store, tp, _ := newTestStore(t, cfg, func(r recordedRequest) (int, string) {
		calls++
		if calls == 1 {
			return 503, `{}`
		}
		return 200, `{}`
	})

	require.NoError(t, store.Ping(context.Background()))
	assert.Len(t, tp.Requests(), 2)
}

func TestIndexExists(t *testing.T) {
	for status, want := range map[int]bool{200: true, 404: false} {
		store, tp, _ := newTestStore(t, config.Elastic{}, func(r recordedRequest) (int, string) {
			return status, ``
		})

		exists, err := store.IndexExists(context.Background(), "workers")
		require.NoError(t, err)
		assert.Equal(t, want, exists)

		reqs := tp.Requests()
		require.Len(t, reqs, 1)
		assert.Equal(t, "HEAD", reqs[0].Method)
		assert.Equal(t, "/workers", reqs[0].Path)
	}
}

func TestIndexExistsUnexpectedStatus(t *testing.T) {
	store, _, _ := newTestStore(t, config.Elastic{}, func(r recordedRequest) (int, string) {
		return 401, `{"error":"unauthorized"}`
	})

	_, err := store.IndexExists(context.Background(), "workers")
	assert.Error(t, err)
}

func TestCreateIndexSendsMappingVerbatim(t *testing.T) {
	store, tp, _ := newTestStore(t, config.Elastic{}, func(r recordedRequest) (int, string) {
		return 200, `{"acknowledged":true,"index":"workers"}`
	})

	mapping := map[string]any{
		"mappings": map[string]any{
			"properties": map[string]any{
				"Зарплата": map[string]any{"type": "integer"},
			},
		},
	}
	require.NoError(t, store.CreateIndex(context.Background(), "workers", mapping))

	reqs := tp.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "PUT", reqs[0].Method)
	assert.Equal(t, "/workers", reqs[0].Path)
	assert.JSONEq(t, `{"mappings":{"properties":{"Зарплата":{"type":"integer"}}}}`, string(reqs[0].Body))
}

func TestCreateIndexError(t *testing.T) {
	store, _, _ := newTestStore(t, config.Elastic{}, func(r recordedRequest) (int, string) {
		return 400, `{"error":{"type":"resource_already_exists_exception"}}`
	})

	err := store.CreateIndex(context.Background(), "workers", map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resource_already_exists_exception")
}

func TestBulkSingleRequest(t *testing.T) {
	store, tp, _ := newTestStore(t, config.Elastic{}, func(r recordedRequest) (int, string) {
		return 200, bulkResponse(r.Body)
	})

	var actions []Action
	for i := 0; i < 3; i++ {
		actions = append(actions, Action{Index: "workers", Source: Record{"ФИО": fmt.Sprintf("n%d", i), "Рост": json.Number("170")}})
	}

	res, err := store.Bulk(context.Background(), seqOf(actions...))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Indexed)
	assert.Zero(t, res.Failed)
	assert.Equal(t, 1, res.Requests)

	reqs := tp.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "POST", reqs[0].Method)
	assert.Equal(t, "/_bulk", reqs[0].Path)

	lines := strings.Split(strings.TrimSpace(string(reqs[0].Body)), "\n")
	require.Len(t, lines, 6)
	assert.JSONEq(t, `{"index":{"_index":"workers"}}`, lines[0])
	assert.JSONEq(t, `{"ФИО":"n0","Рост":170}`, lines[1])
}

func TestBulkItemFailures(t *testing.T) {
	store, _, hook := newTestStore(t, config.Elastic{}, func(r recordedRequest) (int, string) {
		return 200, bulkResponse(r.Body)
	})

	res, err := store.Bulk(context.Background(), seqOf(
		Action{Index: "workers", Source: Record{"name": "ok"}},
		Action{Index: "workers", Source: Record{"name": "reject"}},
	))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Indexed)
	assert.Equal(t, 1, res.Failed)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.Contains(t, entry.Message, "mapper_parsing_exception")
}

func TestBulkRequestError(t *testing.T) {
	store, _, _ := newTestStore(t, config.Elastic{}, func(r recordedRequest) (int, string) {
		return 500, `{"error":"boom"}`
	})

	res, err := store.Bulk(context.Background(), seqOf(Action{Index: "workers", Source: Record{"a": 1}}))
	assert.Error(t, err)
	assert.Zero(t, res.Indexed)
}

func TestBulkEmpty(t *testing.T) {
	store, tp, _ := newTestStore(t, config.Elastic{}, func(r recordedRequest) (int, string) {
		return 200, bulkResponse(r.Body)
	})

	res, err := store.Bulk(context.Background(), seqOf())
	require.NoError(t, err)
	assert.Zero(t, res.Indexed)
	assert.Empty(t, tp.Requests())
}
