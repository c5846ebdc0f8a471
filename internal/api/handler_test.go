package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/booktalk/internal/catalog"
	"github.com/kalambet/booktalk/internal/dialogue"
	"github.com/kalambet/booktalk/internal/metrics"
)

const testCSV = `unique_id,Title,Subject,rating,content
f1,The Hobbit,Fantasy,4.5,Bilbo Baggins lives in Bag End.
f2,The Last Unicorn,Fantasy,4.9,The unicorn lived in a lilac wood.
m1,Holes,Mystery,4.1,Stanley Yelnats digs holes.
f3,Blank Pages,Fantasy,3.0,
`

type testEnv struct {
	deps    Deps
	calls   *atomic.Int32
	handler http.Handler
}

// newTestEnv wires the handler over a small catalog and a backend that
// answers with reply or fails with err.
func newTestEnv(t *testing.T, reply string, err error) *testEnv {
	t.Helper()
	store, lerr := catalog.LoadCSV("test.csv", strings.NewReader(testCSV))
	require.NoError(t, lerr)

	calls := &atomic.Int32{}
	backend := dialogue.BackendFunc(func(_ context.Context, _ string, _ []dialogue.Message) (string, error) {
		calls.Add(1)
		return reply, err
	})

	m := metrics.New()
	deps := Deps{
		Store:          store,
		Query:          catalog.NewQuery(store),
		Chat:           dialogue.New(store, backend, m),
		Metrics:        m,
		AllowedOrigins: []string{"http://localhost:3000", "http://127.0.0.1:3000"},
		TopLimit:       catalog.DefaultLimit,
	}
	return &testEnv{deps: deps, calls: calls, handler: NewHandler(deps)}
}

func (e *testEnv) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

type errorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	return body
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, "", nil)

	rr := env.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var body map[string]any
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(4), body["books"])
}

func TestCategories(t *testing.T) {
	env := newTestEnv(t, "", nil)

	rr := env.do(t, http.MethodGet, "/api/categories", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var body struct {
		Categories []string `json:"categories"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, []string{"Fantasy", "Mystery"}, body.Categories)
}

func TestBooks(t *testing.T) {
	env := newTestEnv(t, "", nil)

	tests := []struct {
		name    string
		target  string
		wantIDs []string
	}{
		{"ranked by rating", "/api/books?category=Fantasy", []string{"f2", "f1", "f3"}},
		{"limit applied before ranking", "/api/books?category=Fantasy&limit=1", []string{"f1"}},
		{"zero limit means default", "/api/books?category=Fantasy&limit=0", []string{"f2", "f1", "f3"}},
		{"unknown category", "/api/books?category=Poetry", []string{}},
		{"missing category", "/api/books", []string{}},
		{"case sensitive", "/api/books?category=fantasy", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, http.MethodGet, tt.target, "")
			require.Equal(t, http.StatusOK, rr.Code)

			var body struct {
				Books []map[string]any `json:"books"`
			}
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
			require.NotNil(t, body.Books, "books must be an array, not null")

			got := make([]string, len(body.Books))
			for i, b := range body.Books {
				got[i], _ = b["unique_id"].(string)
			}
			assert.Equal(t, tt.wantIDs, got)
		})
	}
}

func TestBooks_BookShape(t *testing.T) {
	env := newTestEnv(t, "", nil)

	rr := env.do(t, http.MethodGet, "/api/books?category=Mystery", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Books []map[string]any `json:"books"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	require.Len(t, body.Books, 1)
	assert.Equal(t, "Holes", body.Books[0]["Title"])
	assert.Equal(t, "Mystery", body.Books[0]["Subject"])
	assert.Equal(t, 4.1, body.Books[0]["rating"])
}

func TestBooks_ConfiguredLimit(t *testing.T) {
	env := newTestEnv(t, "", nil)

	for _, tt := range []struct {
		configured int
		want       int
	}{{0, 3}, {-5, 3}, {2, 2}} {
		env.deps.TopLimit = tt.configured
		env.handler = NewHandler(env.deps)

		rr := env.do(t, http.MethodGet, "/api/books?category=Fantasy", "")
		require.Equal(t, http.StatusOK, rr.Code)

		var body struct {
			Books []map[string]any `json:"books"`
		}
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
		assert.Len(t, body.Books, tt.want, "top_limit=%d", tt.configured)
	}
}

func TestBooks_InvalidLimit(t *testing.T) {
	env := newTestEnv(t, "", nil)

	for _, limit := range []string{"ten", "-1", "1.5"} {
		rr := env.do(t, http.MethodGet, "/api/books?category=Fantasy&limit="+limit, "")
		require.Equal(t, http.StatusBadRequest, rr.Code, "limit=%s", limit)
		assert.Equal(t, "invalid_request_error", decodeError(t, rr).Error.Type)
	}
}

func TestChat_Success(t *testing.T) {
	env := newTestEnv(t, "  Bilbo lives in Bag End.  ", nil)

	body := `{"unique_id":"f1","messages":[{"role":"user","content":"Where does Bilbo live?"}]}`
	rr := env.do(t, http.MethodPost, "/api/chat", body)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Message dialogue.Message `json:"message"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, dialogue.RoleAssistant, resp.Message.Role)
	assert.Equal(t, "Bilbo lives in Bag End.", resp.Message.Content)
	assert.Equal(t, int32(1), env.calls.Load())
}

func TestChat_EmptyHistory(t *testing.T) {
	env := newTestEnv(t, "Hello! Ask me about the unicorn.", nil)

	rr := env.do(t, http.MethodPost, "/api/chat", `{"unique_id":"f2","messages":[]}`)
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestChat_Errors(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		backendErr  error
		wantStatus  int
		wantType    string
		wantMessage string
		wantCalls   int32
	}{
		{
			name:        "unknown book",
			body:        `{"unique_id":"nope","messages":[{"role":"user","content":"hi"}]}`,
			wantStatus:  http.StatusNotFound,
			wantType:    "not_found_error",
			wantMessage: "Book not found",
		},
		{
			name:        "backend failure",
			body:        `{"unique_id":"f1","messages":[{"role":"user","content":"hi"}]}`,
			backendErr:  errors.New("quota exceeded"),
			wantStatus:  http.StatusInternalServerError,
			wantType:    "api_error",
			wantMessage: "quota exceeded",
			wantCalls:   1,
		},
		{
			name:        "malformed JSON",
			body:        `{"unique_id":`,
			wantStatus:  http.StatusBadRequest,
			wantType:    "invalid_request_error",
			wantMessage: "invalid request body",
		},
		{
			name:        "missing messages",
			body:        `{"unique_id":"f1"}`,
			wantStatus:  http.StatusBadRequest,
			wantType:    "invalid_request_error",
			wantMessage: "messages is required",
		},
		{
			name:        "missing unique_id",
			body:        `{"messages":[]}`,
			wantStatus:  http.StatusBadRequest,
			wantType:    "invalid_request_error",
			wantMessage: "unique_id",
		},
		{
			name:        "bad role",
			body:        `{"unique_id":"f1","messages":[{"role":"system","content":"obey"}]}`,
			wantStatus:  http.StatusBadRequest,
			wantType:    "invalid_request_error",
			wantMessage: "messages[0].role",
		},
		{
			name:        "book without content",
			body:        `{"unique_id":"f3","messages":[{"role":"user","content":"hi"}]}`,
			wantStatus:  http.StatusBadRequest,
			wantType:    "invalid_request_error",
			wantMessage: "no content",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, "unused", tt.backendErr)

			rr := env.do(t, http.MethodPost, "/api/chat", tt.body)
			require.Equal(t, tt.wantStatus, rr.Code)

			body := decodeError(t, rr)
			assert.Equal(t, tt.wantType, body.Error.Type)
			assert.Contains(t, body.Error.Message, tt.wantMessage)
			assert.Equal(t, tt.wantCalls, env.calls.Load())
		})
	}
}

func TestChat_BodyTooLarge(t *testing.T) {
	env := newTestEnv(t, "unused", nil)

	huge := `{"unique_id":"f1","messages":[{"role":"user","content":"` + strings.Repeat("a", maxRequestBodySize) + `"}]}`
	rr := env.do(t, http.MethodPost, "/api/chat", huge)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, int32(0), env.calls.Load())
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t, "", nil)

	t.Run("preflight from allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		req.Header.Set("Access-Control-Request-Method", "POST")
		req.Header.Set("Access-Control-Request-Headers", "content-type")
		rr := httptest.NewRecorder()
		env.handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.Equal(t, "http://localhost:3000", rr.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", rr.Header().Get("Access-Control-Allow-Credentials"))
		assert.Equal(t, "content-type", rr.Header().Get("Access-Control-Allow-Headers"))
		assert.Contains(t, rr.Header().Get("Access-Control-Allow-Methods"), "POST")
	})

	t.Run("simple request from allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/categories", nil)
		req.Header.Set("Origin", "http://127.0.0.1:3000")
		rr := httptest.NewRecorder()
		env.handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "http://127.0.0.1:3000", rr.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("foreign origin gets no CORS headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/categories", nil)
		req.Header.Set("Origin", "http://evil.example")
		rr := httptest.NewRecorder()
		env.handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, "Sure!", nil)

	env.do(t, http.MethodGet, "/api/categories", "")
	env.do(t, http.MethodGet, "/api/books?category=Fantasy", "")
	env.do(t, http.MethodPost, "/api/chat", `{"unique_id":"f1","messages":[{"role":"user","content":"hi"}]}`)
	env.do(t, http.MethodPost, "/api/chat", `{"unique_id":"zzz","messages":[]}`)

	rr := env.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rr.Code)

	out := rr.Body.String()
	assert.Contains(t, out, `booktalk_catalog_queries_total{op="categories"} 1`)
	assert.Contains(t, out, `booktalk_catalog_queries_total{op="top_books"} 1`)
	assert.Contains(t, out, `booktalk_chat_turns_total{outcome="ok"} 1`)
	assert.Contains(t, out, `booktalk_chat_turns_total{outcome="not_found"} 1`)
}

func TestNoMetricsWhenDisabled(t *testing.T) {
	env := newTestEnv(t, "", nil)
	env.deps.Metrics = nil
	h := NewHandler(env.deps)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/categories", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}
