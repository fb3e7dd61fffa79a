package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s0up4200/requestarr/arr"
	"github.com/s0up4200/requestarr/requests"
	"github.com/s0up4200/requestarr/session"
	"github.com/s0up4200/requestarr/store"
)

type fakeOrchestrator struct {
	err         error
	showResult  *requests.ShowResult
	tokens      []string
	movieInputs []requests.MovieInput
	showInputs  []requests.ShowInput
	listOwnOnly []bool
	deleted     []int64
}

func (f *fakeOrchestrator) CreateMovie(_ context.Context, token string, in requests.MovieInput) (*store.Record, error) {
	f.tokens = append(f.tokens, token)
	f.movieInputs = append(f.movieInputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return &store.Record{ID: 1, Kind: store.KindMovie, Title: in.Title, ExternalID: in.ExternalID, AcquisitionID: "77"}, nil
}

func (f *fakeOrchestrator) CreateShow(_ context.Context, token string, in requests.ShowInput) (*requests.ShowResult, error) {
	f.tokens = append(f.tokens, token)
	f.showInputs = append(f.showInputs, in)
	if f.err != nil {
		return nil, f.err
	}
	if f.showResult != nil {
		return f.showResult, nil
	}
	return &requests.ShowResult{Record: &store.Record{ID: 2, Kind: store.KindShow, Title: in.Title, AcquisitionID: "sonarr55"}}, nil
}

func (f *fakeOrchestrator) Delete(_ context.Context, token string, _ store.Kind, id int64) error {
	f.tokens = append(f.tokens, token)
	f.deleted = append(f.deleted, id)
	return f.err
}

func (f *fakeOrchestrator) List(_ context.Context, token string, kind store.Kind, ownOnly bool) ([]*store.Record, error) {
	f.tokens = append(f.tokens, token)
	f.listOwnOnly = append(f.listOwnOnly, ownOnly)
	if f.err != nil {
		return nil, f.err
	}
	return []*store.Record{{ID: 2, Kind: kind}, {ID: 1, Kind: kind}}, nil
}

func (f *fakeOrchestrator) Get(_ context.Context, token string, kind store.Kind, id int64) (*store.Record, error) {
	f.tokens = append(f.tokens, token)
	if f.err != nil {
		return nil, f.err
	}
	return &store.Record{ID: id, Kind: kind}, nil
}

var testSessions = session.Static{
	"t1": {Username: "alice", Email: "alice@example.com"},
	"t9": {Username: "carol"},
}

func newTestServer(t *testing.T, cfg Config, svc Orchestrator) *Server {
	t.Helper()
	if cfg.Sessions == nil {
		cfg.Sessions = testSessions
	}
	s, err := New(cfg, svc, zerolog.Nop())
	require.NoError(t, err)
	return s
}

func do(t *testing.T, s *Server, method, path, body string, opts ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, opt := range opts {
		opt(req)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func withCookie(token string) func(*http.Request) {
	return func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "sessionid", Value: token})
	}
}

const arrivalBody = `{"title":"Arrival","release_date":"2016-11-11","imdb_id":"tt2543164"}`

func TestCreateMovie(t *testing.T) {
	svc := &fakeOrchestrator{}
	s := newTestServer(t, Config{}, svc)

	w := do(t, s, http.MethodPost, "/api/movies", arrivalBody, withCookie("t1"))
	require.Equal(t, http.StatusCreated, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))

	var rec store.Record
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.Equal(t, "77", rec.AcquisitionID)

	assert.Equal(t, []string{"t1"}, svc.tokens)
	assert.Equal(t, requests.MovieInput{Title: "Arrival", ReleaseDate: "2016-11-11", ExternalID: "tt2543164"}, svc.movieInputs[0])
}

func TestCreateMovieValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: `{"title":`},
		{name: "missing title", body: `{"release_date":"2016","imdb_id":"tt1"}`},
		{name: "bad release date", body: `{"title":"Arrival","release_date":"11/11/2016","imdb_id":"tt1"}`},
		{name: "bad imdb id", body: `{"title":"Arrival","release_date":"2016","imdb_id":"2543164"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeOrchestrator{}
			s := newTestServer(t, Config{}, svc)

			w := do(t, s, http.MethodPost, "/api/movies", tt.body, withCookie("t1"))
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Empty(t, svc.movieInputs)
		})
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		method     string
		path       string
		body       string
		wantStatus int
		wantBody   string
	}{
		{name: "unauthorized", err: requests.ErrUnauthorized, method: http.MethodPost, path: "/api/movies", body: arrivalBody, wantStatus: http.StatusUnauthorized},
		{name: "available", err: &requests.ConflictError{Reason: requests.ReasonAvailable}, method: http.MethodPost, path: "/api/movies", body: arrivalBody, wantStatus: http.StatusConflict, wantBody: "already on library"},
		{name: "dependency down", err: fmt.Errorf("lookup: %w", requests.ErrDependencyUnavailable), method: http.MethodPost, path: "/api/movies", body: arrivalBody, wantStatus: http.StatusServiceUnavailable},
		{name: "create rejected", err: &requests.RejectedError{Op: "add movie", Reply: json.RawMessage(`{"message":"nope"}`)}, method: http.MethodPost, path: "/api/movies", body: arrivalBody, wantStatus: http.StatusServiceUnavailable, wantBody: `{"message":"nope"}`},
		{name: "delete rejected", err: &requests.RejectedError{Op: "delete movie", Reply: json.RawMessage(`{"message":"unknown id"}`)}, method: http.MethodDelete, path: "/api/movies/3", wantStatus: http.StatusBadRequest, wantBody: `{"message":"unknown id"}`},
		{name: "delete not found", err: requests.ErrNotFound, method: http.MethodDelete, path: "/api/movies/3", wantStatus: http.StatusNotFound},
		{name: "get not found", err: requests.ErrNotFound, method: http.MethodGet, path: "/api/shows/3", wantStatus: http.StatusNotFound},
		{name: "list unauthorized", err: requests.ErrUnauthorized, method: http.MethodGet, path: "/api/shows", wantStatus: http.StatusUnauthorized},
		{name: "store failure", err: fmt.Errorf("list requests: disk I/O error"), method: http.MethodGet, path: "/api/shows", wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, Config{}, &fakeOrchestrator{err: tt.err})

			w := do(t, s, tt.method, tt.path, tt.body, withCookie("t1"))
			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantBody != "" {
				assert.Contains(t, w.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestCreateShow(t *testing.T) {
	svc := &fakeOrchestrator{}
	s := newTestServer(t, Config{}, svc)

	body := `{"title":"Foo","release_date":"2020-01-01","tvdb_id":"123","poster":"http://img/foo.jpg","seasons":[1,2]}`
	w := do(t, s, http.MethodPost, "/api/shows", body, func(r *http.Request) {
		r.Header.Set("X-Session-Token", "t1")
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "sonarr55", resp["acquisitionId"])
	assert.Equal(t, "queued", resp["seasonSearch"])

	assert.Equal(t, []string{"t1"}, svc.tokens)
	assert.Equal(t, requests.ShowInput{
		Title:       "Foo",
		ReleaseDate: "2020-01-01",
		ExternalID:  "123",
		PosterURL:   "http://img/foo.jpg",
		Seasons:     []int{1, 2},
	}, svc.showInputs[0])
}

func TestCreateShowSeasonSearchFailed(t *testing.T) {
	svc := &fakeOrchestrator{showResult: &requests.ShowResult{
		Record:            &store.Record{ID: 2, Kind: store.KindShow, AcquisitionID: "sonarr55"},
		SeasonSearchErr:   requests.ErrRejected,
		SeasonSearchReply: arr.Rejected("season 9 does not exist").Reply,
	}}
	s := newTestServer(t, Config{}, svc)

	body := `{"title":"Foo","release_date":"2020","tvdb_id":"123","seasons":[9]}`
	w := do(t, s, http.MethodPost, "/api/shows", body, withCookie("t1"))
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"seasonSearch":"failed"`)
	assert.Contains(t, w.Body.String(), "season 9 does not exist")
}

func TestListUserOnly(t *testing.T) {
	svc := &fakeOrchestrator{}
	s := newTestServer(t, Config{}, svc)

	w := do(t, s, http.MethodGet, "/api/movies?useronly=y", "", withCookie("t1"))
	require.Equal(t, http.StatusOK, w.Code)
	w = do(t, s, http.MethodGet, "/api/movies", "", withCookie("t1"))
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, []bool{true, false}, svc.listOwnOnly)

	var records []store.Record
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &records))
	require.Len(t, records, 2)
	assert.Equal(t, int64(2), records[0].ID)
}

func TestDeleteAndGet(t *testing.T) {
	svc := &fakeOrchestrator{}
	s := newTestServer(t, Config{}, svc)

	w := do(t, s, http.MethodDelete, "/api/shows/5", "", withCookie("t1"))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []int64{5}, svc.deleted)

	w = do(t, s, http.MethodGet, "/api/movies/5", "", withCookie("t1"))
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, s, http.MethodGet, "/api/movies/abc", "", withCookie("t1"))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPublicDetail(t *testing.T) {
	private := newTestServer(t, Config{}, &fakeOrchestrator{})
	w := do(t, private, http.MethodGet, "/api/movies/5", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	svc := &fakeOrchestrator{}
	public := newTestServer(t, Config{PublicDetail: true}, svc)
	w = do(t, public, http.MethodGet, "/api/movies/5", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{""}, svc.tokens)

	w = do(t, public, http.MethodGet, "/api/movies", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSessionCheckedBeforePayload(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		body   string
		opts   []func(*http.Request)
	}{
		{name: "no token invalid movie", method: http.MethodPost, path: "/api/movies", body: `{"title":"Arrival"}`},
		{name: "no token malformed show", method: http.MethodPost, path: "/api/shows", body: `{"title":`},
		{name: "unknown token invalid movie", method: http.MethodPost, path: "/api/movies", body: `{"title":"Arrival"}`, opts: []func(*http.Request){withCookie("expired")}},
		{name: "unknown header token", method: http.MethodDelete, path: "/api/shows/abc", opts: []func(*http.Request){func(r *http.Request) {
			r.Header.Set("X-Session-Token", "expired")
		}}},
		{name: "no token list", method: http.MethodGet, path: "/api/shows?useronly=y"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeOrchestrator{}
			s := newTestServer(t, Config{}, svc)

			w := do(t, s, tt.method, tt.path, tt.body, tt.opts...)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.NotContains(t, w.Body.String(), "validation_failed")
			assert.Empty(t, svc.tokens)
		})
	}
}

func TestNewRequiresSessions(t *testing.T) {
	_, err := New(Config{}, &fakeOrchestrator{}, zerolog.Nop())
	assert.Error(t, err)
}

func TestRequestIDIsEchoed(t *testing.T) {
	s := newTestServer(t, Config{}, &fakeOrchestrator{})

	w := do(t, s, http.MethodGet, "/health", "", func(r *http.Request) {
		r.Header.Set("X-Request-Id", "abc-123")
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-Id"))
}

func TestCustomCookieName(t *testing.T) {
	svc := &fakeOrchestrator{}
	s := newTestServer(t, Config{CookieName: "requestarr"}, svc)

	do(t, s, http.MethodGet, "/api/movies", "", func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "requestarr", Value: "t9"})
	})
	assert.Equal(t, []string{"t9"}, svc.tokens)
}
