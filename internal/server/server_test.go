package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyago-dev/voyago/internal/dataset"
	"github.com/voyago-dev/voyago/internal/dialog"
	"github.com/voyago-dev/voyago/internal/geo"
	"github.com/voyago-dev/voyago/internal/oracle"
	"github.com/voyago-dev/voyago/pkg/session"
)

// cannedOracles answers every oracle call with fixed values, enough to
// drive a data-query turn end to end over a real store. A non-nil gate
// blocks each turn inside classification until the test releases it.
type cannedOracles struct {
	intent  oracle.Intent
	filters map[string]any
	sql     string
	gate    chan struct{}
}

func (c *cannedOracles) Classify(ctx context.Context, history []oracle.Turn, last string) oracle.Intent {
	if c.gate != nil {
		<-c.gate
	}
	return c.intent
}

func (c *cannedOracles) ExtractFilters(ctx context.Context, history []oracle.Turn, last string, current map[string]any) map[string]any {
	return c.filters
}

func (c *cannedOracles) ToQuery(ctx context.Context, filters map[string]any) (string, error) {
	return c.sql, nil
}

func (c *cannedOracles) ExtractCoords(ctx context.Context, history []oracle.Turn) geo.Point {
	return geo.Point{}
}

func (c *cannedOracles) ExtractCity(ctx context.Context, history []oracle.Turn) string {
	return "NA"
}

func (c *cannedOracles) PropertyInfo(ctx context.Context, results []*dataset.ResultSet, history []oracle.Turn, last string) (string, error) {
	return "property info", nil
}

func (c *cannedOracles) PropertyID(ctx context.Context, results []*dataset.ResultSet, history []oracle.Turn, last string) (int64, error) {
	return 1, nil
}

func (c *cannedOracles) Summarize(ctx context.Context, history []oracle.Turn, extra string) string {
	return "summary response"
}

func (c *cannedOracles) SummarizeListing(ctx context.Context, row dataset.Row, history []oracle.Turn) string {
	return fmt.Sprintf("summary of %d", row.Listing.ID)
}

func (c *cannedOracles) NextQuestion(ctx context.Context, filters map[string]any, history []oracle.Turn) string {
	return "What is your budget?"
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return newTestServerWith(t, &cannedOracles{
		intent:  oracle.IntentData,
		filters: map[string]any{"location": "San Francisco"},
		sql:     "SELECT * FROM listings WHERE location = 'San Francisco'",
	})
}

func newTestServerWith(t *testing.T, stub *cannedOracles) *Server {
	t.Helper()

	store, err := dataset.OpenMemory()
	require.NoError(t, err)
	rating := 4.8
	require.NoError(t, store.Insert(context.Background(), []dataset.Listing{
		{ID: 1, Name: "Bay Loft", Location: "San Francisco", PropertyType: "Apartment", Price: 150, Accommodates: 2, ReviewScoresRating: &rating},
	}))

	suite := oracle.Suite{
		Classifier: stub,
		Filters:    stub,
		Query:      stub,
		Coords:     stub,
		City:       stub,
		Analyst:    stub,
		Resolver:   stub,
		Summarizer: stub,
		FollowUp:   stub,
	}
	orch := dialog.NewOrchestrator(suite, store)

	backend, err := session.NewFileBackend(t.TempDir())
	require.NoError(t, err)
	return New(orch, session.NewManager(backend), nil)
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func createSession(t *testing.T, handler http.Handler) string {
	t.Helper()
	rec := doJSON(t, handler, http.MethodPost, "/api/sessions", nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		ID       string           `json:"id"`
		Messages []dialog.Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.ID)
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, dialog.Greeting, resp.Messages[0].Text)
	return resp.ID
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s.Handler(), http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateAndListSessions(t *testing.T) {
	s := newTestServer(t)
	id := createSession(t, s.Handler())

	rec := doJSON(t, s.Handler(), http.MethodGet, "/api/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Sessions []session.Metadata `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Sessions, 1)
	assert.Equal(t, id, resp.Sessions[0].ID)
}

func TestPostMessageReturnsResults(t *testing.T) {
	s := newTestServer(t)
	id := createSession(t, s.Handler())

	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/sessions/"+id+"/messages",
		map[string]string{"text": "somewhere in San Francisco"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Messages []dialog.Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Messages, 1)
	require.Len(t, resp.Messages[0].Properties, 1)
	assert.Equal(t, int64(1), resp.Messages[0].Properties[0].ID)
	assert.Equal(t, "summary of 1", resp.Messages[0].Properties[0].Summary)
}

func TestPostMessageValidation(t *testing.T) {
	s := newTestServer(t)
	id := createSession(t, s.Handler())

	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/sessions/"+id+"/messages",
		map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetMessagesAfterTurn(t *testing.T) {
	s := newTestServer(t)
	id := createSession(t, s.Handler())

	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/sessions/"+id+"/messages",
		map[string]string{"text": "somewhere in San Francisco"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s.Handler(), http.MethodGet, "/api/sessions/"+id+"/messages", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Messages []dialog.Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	// Greeting, user turn, assistant result.
	require.Len(t, resp.Messages, 3)
	assert.Equal(t, dialog.RoleUser, resp.Messages[1].Role)
}

func TestUnknownSession(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s.Handler(), http.MethodGet, "/api/sessions/nope/messages", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, s.Handler(), http.MethodPost, "/api/sessions/nope/messages",
		map[string]string{"text": "hi"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteSession(t *testing.T) {
	s := newTestServer(t)
	id := createSession(t, s.Handler())

	rec := doJSON(t, s.Handler(), http.MethodDelete, "/api/sessions/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, s.Handler(), http.MethodDelete, "/api/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSearchHistoryWithoutRedis(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s.Handler(), http.MethodGet, "/api/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"searches": []}`, rec.Body.String())
}

func TestConcurrentTurnsSerializePerSession(t *testing.T) {
	const turns = 4

	// The others intent appends exactly one assistant reply per turn, so
	// any interleaving under concurrency would break strict alternation.
	gate := make(chan struct{})
	stub := &cannedOracles{intent: oracle.IntentOther, gate: gate}
	s := newTestServerWith(t, stub)
	id := createSession(t, s.Handler())

	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			rec := doJSON(t, s.Handler(), http.MethodPost, "/api/sessions/"+id+"/messages",
				map[string]string{"text": fmt.Sprintf("request %d", n)})
			assert.Equal(t, http.StatusOK, rec.Code)
		}(i)
	}

	// Each release lets exactly one in-flight turn through classification;
	// the per-session lock must hold the rest back.
	for i := 0; i < turns; i++ {
		gate <- struct{}{}
	}
	wg.Wait()

	rec := doJSON(t, s.Handler(), http.MethodGet, "/api/sessions/"+id+"/messages", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Messages []dialog.Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	// Greeting plus one user/assistant pair per turn, never interleaved.
	require.Len(t, resp.Messages, 1+2*turns)
	for i := 1; i < len(resp.Messages); i += 2 {
		assert.Equal(t, dialog.RoleUser, resp.Messages[i].Role)
		assert.Equal(t, dialog.RoleAssistant, resp.Messages[i+1].Role)
	}
}

func TestColdSessionResume(t *testing.T) {
	s := newTestServer(t)
	id := createSession(t, s.Handler())

	// Drop the in-memory copy to force a resume from storage.
	s.mu.Lock()
	delete(s.live, id)
	s.mu.Unlock()

	rec := doJSON(t, s.Handler(), http.MethodGet, "/api/sessions/"+id+"/messages", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Messages []dialog.Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, dialog.Greeting, resp.Messages[0].Text)
}
