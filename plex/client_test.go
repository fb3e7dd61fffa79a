package plex

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const searchReply = `<?xml version="1.0" encoding="UTF-8"?>
<MediaContainer size="3">
  <Video type="movie" title="Arrival" year="2016" />
  <Video type="movie" title="The Arrival" year="1996" />
  <Directory type="show" title="Foo" year="2020" />
</MediaContainer>`

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(server.URL+"/", zerolog.Nop(), opts...)
	require.NoError(t, err)
	return client
}

func TestNewClient(t *testing.T) {
	_, err := NewClient("", zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "URL is required")

	client, err := NewClient("http://plex:32400/", zerolog.Nop(), WithTimeout(3*time.Second), WithToken("tok"))
	require.NoError(t, err)
	assert.Equal(t, "http://plex:32400", client.baseURL)
	assert.Equal(t, 3*time.Second, client.httpClient.Timeout)
	assert.Equal(t, "tok", client.token)
}

func TestIsAvailable(t *testing.T) {
	tests := []struct {
		name  string
		kind  MediaType
		title string
		year  string
		want  bool
	}{
		{name: "exact movie match", kind: MediaTypeMovie, title: "Arrival", year: "2016", want: true},
		{name: "wrong year", kind: MediaTypeMovie, title: "Arrival", year: "2017", want: false},
		{name: "case sensitive title", kind: MediaTypeMovie, title: "arrival", year: "2016", want: false},
		{name: "wrong kind", kind: MediaTypeShow, title: "Arrival", year: "2016", want: false},
		{name: "show in directory element", kind: MediaTypeShow, title: "Foo", year: "2020", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/search", r.URL.Path)
				assert.Equal(t, tt.title, r.URL.Query().Get("query"))
				assert.Equal(t, "tok", r.Header.Get("X-Plex-Token"))
				assert.Equal(t, productName, r.Header.Get("X-Plex-Product"))
				w.Write([]byte(searchReply))
			}, WithToken("tok"))

			got, err := client.IsAvailable(context.Background(), tt.kind, tt.title, tt.year)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsAvailableEscapesTitle(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Fast & Furious 7?", r.URL.Query().Get("query"))
		w.Write([]byte(`<MediaContainer size="0"></MediaContainer>`))
	})

	got, err := client.IsAvailable(context.Background(), MediaTypeMovie, "Fast & Furious 7?", "2015")
	require.NoError(t, err)
	assert.False(t, got)
}

func TestIsAvailableFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
		},
		{
			name: "unauthorized",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("<html><body>Failed communicating with Plex.</body></html>"))
			},
		},
		{
			name: "empty body",
			handler: func(w http.ResponseWriter, r *http.Request) {
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, tt.handler)

			got, err := client.IsAvailable(context.Background(), MediaTypeMovie, "Arrival", "2016")
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUnavailable))
			assert.False(t, got)
		})
	}
}

func TestIsAvailableTimeout(t *testing.T) {
	release := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, WithTimeout(50*time.Millisecond))
	defer close(release)

	start := time.Now()
	_, err := client.IsAvailable(context.Background(), MediaTypeMovie, "Arrival", "2016")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestAPIError(t *testing.T) {
	err := &APIError{StatusCode: 401}
	assert.Equal(t, "plex API error: status 401", err.Error())
	assert.True(t, err.IsUnauthorized())
	assert.ErrorIs(t, err, ErrUnavailable)

	err.StatusCode = 500
	assert.False(t, err.IsUnauthorized())
}

func TestUnauthorizedLogsTokenHint(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantHint bool
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, wantHint: true},
		{name: "forbidden", status: http.StatusForbidden, wantHint: true},
		{name: "server error", status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			t.Cleanup(server.Close)

			var buf bytes.Buffer
			client, err := NewClient(server.URL, zerolog.New(&buf), WithToken("stale"))
			require.NoError(t, err)

			_, err = client.IsAvailable(context.Background(), MediaTypeMovie, "Arrival", "2016")
			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)

			if tt.wantHint {
				assert.Contains(t, buf.String(), "plex.token")
				assert.Contains(t, buf.String(), `"token_set":true`)
			} else {
				assert.NotContains(t, buf.String(), "plex.token")
			}
		})
	}
}

func TestPing(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/identity", r.URL.Path)
		w.Write([]byte(`<MediaContainer machineIdentifier="abc"/>`))
	})
	assert.NoError(t, client.Ping(context.Background()))
}
