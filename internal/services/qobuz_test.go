package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/shared"
	tu "github.com/desertthunder/crate/internal/testing"
)

const albumSearchBody = `{"albums":{"items":[
	{"id":"0060254767291","title":"Abbey Road","slug":"abbey-road",
	 "artist":{"id":26390,"name":"The Beatles"},
	 "image":{"large":"https://img/large.jpg","small":"https://img/small.jpg"},
	 "released_at":-8380800,"tracks_count":17,"duration":2832},
	{"id":123,"title":"Help!","artist":null,"image":null,"released_at":"1965-08-06T00:00:00"}
]}}`

const trackSearchBody = `{"tracks":{"items":[
	{"id":5966783,"title":"Come Together","performer":{"id":1,"name":"The Beatles"},
	 "album":{"id":"0060254767291","title":"Abbey Road","slug":"abbey-road","image":{"small":"https://img/small.jpg"}},
	 "track_number":1,"media_number":1,"duration":259}
]}}`

const artistSearchBody = `{"artists":{"items":[
	{"id":26390,"name":"The Beatles","image":null,"albums_count":400},
	{"id":"77","name":"","image":{"medium":"https://img/m.jpg"},"biography":{"content":"bio"}}
]}}`

const albumGetBody = `{"id":"0060254767291","title":"Abbey Road","slug":"abbey-road",
	"artist":{"id":26390,"name":"The Beatles"},"genre":{"name":"Rock"},
	"released_at":"1969-09-26","tracks_count":2,
	"tracks":{"items":[
		{"id":1,"title":"Come Together","performer":{"name":"The Beatles"},"track_number":1,"media_number":1,"duration":259},
		{"id":2,"title":"Something","performer":null,"track_number":2,"duration":182}
	]}}`

func newQobuzServer(t *testing.T, handler http.HandlerFunc) *QobuzService {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewQobuzService(QobuzOpts{
		BaseURL:       server.URL,
		AppID:         "app-1",
		UserAuthToken: "token-1",
		Timeout:       5 * time.Second,
	})
}

func routes(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-User-Auth-Token"); got != "token-1" {
			t.Errorf("expected auth token header, got %q", got)
		}
		if got := r.URL.Query().Get("app_id"); got != "app-1" {
			t.Errorf("expected app_id param, got %q", got)
		}

		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/album/search":
			w.Write([]byte(albumSearchBody))
		case "/track/search":
			w.Write([]byte(trackSearchBody))
		case "/artist/search":
			w.Write([]byte(artistSearchBody))
		case "/album/getFeatured":
			if r.URL.Query().Get("type") != "new-releases" {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"status":"error","code":400,"message":"Invalid argument: type"}`))
				return
			}
			w.Write([]byte(albumSearchBody))
		case "/album/get":
			if r.URL.Query().Get("album_id") != "0060254767291" {
				w.WriteHeader(http.StatusNotFound)
				w.Write([]byte(`{"status":"error","code":404,"message":"No result matching given argument"}`))
				return
			}
			w.Write([]byte(albumGetBody))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func TestQobuzService(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		srv := NewQobuzService(QobuzOpts{})
		if srv.baseURL != qobuzBaseURL {
			t.Errorf("expected default base URL, got %s", srv.baseURL)
		}
		if srv.Name() != "qobuz" {
			t.Errorf("expected name 'qobuz', got %s", srv.Name())
		}

		srv = NewQobuzService(QobuzOpts{BaseURL: "http://localhost:9000/"})
		if srv.baseURL != "http://localhost:9000" {
			t.Errorf("expected trailing slash trimmed, got %s", srv.baseURL)
		}
	})

	t.Run("SearchAlbums", func(t *testing.T) {
		srv := newQobuzServer(t, routes(t))

		albums, err := srv.SearchAlbums(context.Background(), "abbey road", 10)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(albums) != 2 {
			t.Fatalf("expected 2 albums, got %d", len(albums))
		}

		first := albums[0]
		if first.ExternalID != "0060254767291" || first.Artist != "The Beatles" || first.ArtistID != "26390" {
			t.Errorf("unexpected album: %+v", first)
		}
		if first.CoverURL != "https://img/large.jpg" {
			t.Errorf("expected large image, got %s", first.CoverURL)
		}
		if first.ReleaseDate != "1969-09-26" {
			t.Errorf("expected unix date converted, got %s", first.ReleaseDate)
		}
		if first.URL != "https://www.qobuz.com/us-en/album/abbey-road/0060254767291" {
			t.Errorf("unexpected url %s", first.URL)
		}
		if first.Source != models.SourceRemote {
			t.Errorf("expected remote source, got %s", first.Source)
		}

		second := albums[1]
		if second.ExternalID != "123" {
			t.Errorf("expected numeric id as string, got %s", second.ExternalID)
		}
		if second.Artist != "Unknown Artist" {
			t.Errorf("expected unknown artist fallback, got %s", second.Artist)
		}
		if second.ReleaseDate != "1965-08-06" {
			t.Errorf("expected date truncated, got %s", second.ReleaseDate)
		}
		if second.URL != "https://www.qobuz.com/us-en/album/-/123" {
			t.Errorf("expected slugless url, got %s", second.URL)
		}
	})

	t.Run("Search", func(t *testing.T) {
		srv := newQobuzServer(t, routes(t))

		results, err := srv.Search(context.Background(), "beatles", 5)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(results.Albums) != 2 || len(results.Tracks) != 1 || len(results.Artists) != 2 {
			t.Fatalf("unexpected counts: %d albums, %d tracks, %d artists",
				len(results.Albums), len(results.Tracks), len(results.Artists))
		}

		track := results.Tracks[0]
		if track.AlbumExternalID != "0060254767291" || track.Album != "Abbey Road" {
			t.Errorf("expected album fields on track, got %+v", track)
		}
		if track.AlbumURL == "" || track.CoverURL != "https://img/small.jpg" {
			t.Errorf("expected album url and cover, got %+v", track)
		}

		if results.Artists[0].AlbumCount != 400 || results.Artists[0].ImageURL != "" {
			t.Errorf("unexpected artist: %+v", results.Artists[0])
		}
		if results.Artists[1].Name != "Unknown Artist" || results.Artists[1].Bio != "bio" || results.Artists[1].ImageURL != "https://img/m.jpg" {
			t.Errorf("unexpected artist: %+v", results.Artists[1])
		}
	})

	t.Run("GetAlbum", func(t *testing.T) {
		srv := newQobuzServer(t, routes(t))

		detail, err := srv.GetAlbum(context.Background(), "0060254767291")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if detail.Genre != "Rock" || detail.Album.ReleaseDate != "1969-09-26" {
			t.Errorf("unexpected album detail: %+v", detail)
		}
		if len(detail.Tracks) != 2 {
			t.Fatalf("expected 2 tracks, got %d", len(detail.Tracks))
		}

		second := detail.Tracks[1]
		if second.Artist != "The Beatles" {
			t.Errorf("expected album artist fallback, got %s", second.Artist)
		}
		if second.DiscNumber != 1 {
			t.Errorf("expected default disc 1, got %d", second.DiscNumber)
		}
		if second.AlbumExternalID != "0060254767291" {
			t.Errorf("expected parent album id, got %s", second.AlbumExternalID)
		}

		t.Run("Not Found", func(t *testing.T) {
			_, err := srv.GetAlbum(context.Background(), "missing")
			if !errors.Is(err, shared.ErrAPIRequest) {
				t.Fatalf("expected ErrAPIRequest, got %v", err)
			}
			if !strings.Contains(err.Error(), "No result matching") {
				t.Errorf("expected API message in error, got %v", err)
			}
		})

		t.Run("Missing ID", func(t *testing.T) {
			_, err := srv.GetAlbum(context.Background(), "")
			if !errors.Is(err, shared.ErrMissingArgument) {
				t.Errorf("expected ErrMissingArgument, got %v", err)
			}
		})
	})

	t.Run("Featured", func(t *testing.T) {
		srv := newQobuzServer(t, routes(t))

		albums, err := srv.Featured(context.Background(), "new-releases", 20)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(albums) != 2 || albums[0].Title != "Abbey Road" || albums[0].Source != models.SourceRemote {
			t.Errorf("unexpected featured albums: %+v", albums)
		}

		if _, err := srv.Featured(context.Background(), "bogus", 20); !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
		if _, err := srv.Featured(context.Background(), "", 20); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("Retries Server Errors", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.Write([]byte(artistSearchBody))
		}))
		defer server.Close()

		srv := NewQobuzService(QobuzOpts{BaseURL: server.URL, Retries: 2})
		srv.client.RetryWaitMin = time.Millisecond
		srv.client.RetryWaitMax = time.Millisecond

		artists, err := srv.SearchArtists(context.Background(), "beatles", 5)
		if err != nil {
			t.Fatalf("expected retry to succeed, got %v", err)
		}
		if len(artists) != 2 || calls.Load() != 2 {
			t.Errorf("expected 2 artists after 2 calls, got %d after %d", len(artists), calls.Load())
		}
	})

	t.Run("Unavailable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		srv := NewQobuzService(QobuzOpts{BaseURL: server.URL, Retries: 1})
		srv.client.RetryWaitMin = time.Millisecond
		srv.client.RetryWaitMax = time.Millisecond

		if _, err := srv.Search(context.Background(), "x", 5); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})

	t.Run("Transport Error", func(t *testing.T) {
		srv := NewQobuzService(QobuzOpts{
			HTTPClient: &http.Client{Transport: tu.NewMockRoundTripper(nil, errors.New("connection refused"))},
		})

		if _, err := srv.GetAlbum(context.Background(), "1"); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})

	t.Run("Unreadable Body", func(t *testing.T) {
		resp := &http.Response{StatusCode: http.StatusOK, Header: http.Header{}, Body: &tu.FCloser{}}
		srv := NewQobuzService(QobuzOpts{
			HTTPClient: &http.Client{Transport: tu.NewMockRoundTripper(resp, nil)},
		})

		_, err := srv.SearchTracks(context.Background(), "x", 5)
		if err == nil || !strings.Contains(err.Error(), "failed to read response") {
			t.Errorf("expected read error, got %v", err)
		}
	})

	t.Run("Cancelled Context", func(t *testing.T) {
		srv := newQobuzServer(t, routes(t))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if _, err := srv.SearchAlbums(ctx, "x", 5); err == nil {
			t.Error("expected error for cancelled context")
		}
	})
}

func TestAlbumURLs(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"store url", "https://www.qobuz.com/us-en/album/abbey-road-the-beatles/0060254767291", "0060254767291"},
		{"open url", "https://open.qobuz.com/album/abc123", "abc123"},
		{"trailing slash", "https://www.qobuz.com/gb-en/album/x/42/", "42"},
		{"track url", "https://open.qobuz.com/track/99", ""},
		{"garbage", "::not a url", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AlbumIDFromURL(tt.url); got != tt.want {
				t.Errorf("AlbumIDFromURL(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}

	if got := AlbumIDFromURL(AlbumURL("", "55")); got != "55" {
		t.Errorf("expected round trip through AlbumURL, got %q", got)
	}
	if AlbumURL("slug", "") != "" {
		t.Error("expected empty url without id")
	}
}
