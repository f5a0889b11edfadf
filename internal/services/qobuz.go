// Qobuz API implementation of [Provider]
//
// Response shapes follow the public JSON API at https://www.qobuz.com/api.json/0.2
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/shared"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	qobuzBaseURL  = "https://www.qobuz.com/api.json/0.2"
	qobuzSiteURL  = "https://www.qobuz.com/us-en/album"
	unknownArtist = "Unknown Artist"
)

// flexID accepts ids sent either as JSON numbers or strings.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

// flexDate accepts a release date as "YYYY-MM-DD..." or a unix timestamp.
type flexDate string

func (f *flexDate) UnmarshalJSON(data []byte) error {
	switch {
	case string(data) == "null":
		*f = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if len(s) >= 10 {
			s = s[:10]
		}
		*f = flexDate(s)
	default:
		ts, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return err
		}
		*f = flexDate(time.Unix(int64(ts), 0).UTC().Format("2006-01-02"))
	}
	return nil
}

// QobuzImage holds the image sizes Qobuz returns.
type QobuzImage struct {
	Large     string `json:"large"`
	Medium    string `json:"medium"`
	Small     string `json:"small"`
	Thumbnail string `json:"thumbnail"`
}

// Best returns the largest available image URL.
func (i *QobuzImage) Best() string {
	if i == nil {
		return ""
	}
	for _, u := range []string{i.Large, i.Medium, i.Small, i.Thumbnail} {
		if u != "" {
			return u
		}
	}
	return ""
}

// QobuzArtist represents a Qobuz artist.
type QobuzArtist struct {
	ID        flexID      `json:"id"`
	Name      string      `json:"name"`
	Image     *QobuzImage `json:"image"`
	Biography *struct {
		Content string `json:"content"`
	} `json:"biography"`
	AlbumsCount int `json:"albums_count"`
}

// QobuzAlbum represents a Qobuz album, with tracks when fetched by id.
type QobuzAlbum struct {
	ID     flexID       `json:"id"`
	Title  string       `json:"title"`
	Slug   string       `json:"slug"`
	Artist *QobuzArtist `json:"artist"`
	Image  *QobuzImage  `json:"image"`
	Genre  *struct {
		Name string `json:"name"`
	} `json:"genre"`
	ReleasedAt  flexDate `json:"released_at"`
	TracksCount int      `json:"tracks_count"`
	Duration    int      `json:"duration"`
	Tracks      *struct {
		Items []QobuzTrack `json:"items"`
	} `json:"tracks"`
}

// QobuzTrack represents a Qobuz track.
type QobuzTrack struct {
	ID          flexID       `json:"id"`
	Title       string       `json:"title"`
	Performer   *QobuzArtist `json:"performer"`
	Album       *QobuzAlbum  `json:"album"`
	TrackNumber int          `json:"track_number"`
	MediaNumber int          `json:"media_number"`
	Duration    int          `json:"duration"`
}

type qobuzAlbumSearch struct {
	Albums struct {
		Items []QobuzAlbum `json:"items"`
	} `json:"albums"`
}

type qobuzTrackSearch struct {
	Tracks struct {
		Items []QobuzTrack `json:"items"`
	} `json:"tracks"`
}

type qobuzArtistSearch struct {
	Artists struct {
		Items []QobuzArtist `json:"items"`
	} `json:"artists"`
}

// QobuzOpts configures a [QobuzService].
type QobuzOpts struct {
	BaseURL           string
	AppID             string
	UserAuthToken     string
	Timeout           time.Duration
	Retries           int
	RequestsPerSecond float64
	// HTTPClient replaces the underlying client; its Timeout is overwritten when Timeout is set.
	HTTPClient *http.Client
	Logger     *log.Logger
}

// QobuzService implements [Provider] against the Qobuz JSON API.
// Requests are paced by a token bucket and retried on 5xx and 429 responses.
type QobuzService struct {
	baseURL string
	appID   string
	token   string
	client  *retryablehttp.Client
	limiter *rate.Limiter
	logger  *log.Logger
}

// NewQobuzService creates a new Qobuz client
func NewQobuzService(opts QobuzOpts) *QobuzService {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = qobuzBaseURL
	}

	logger := opts.Logger
	if logger == nil {
		logger = shared.DiscardLogger()
	}

	retryClient := retryablehttp.NewClient()
	if opts.HTTPClient != nil {
		retryClient.HTTPClient = opts.HTTPClient
	}
	retryClient.RetryMax = max(opts.Retries, 0)
	retryClient.RetryWaitMin = 200 * time.Millisecond
	retryClient.RetryWaitMax = 2 * time.Second
	if opts.Timeout > 0 {
		retryClient.HTTPClient.Timeout = opts.Timeout
	}
	retryClient.Logger = nil

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	return &QobuzService{
		baseURL: baseURL,
		appID:   opts.AppID,
		token:   opts.UserAuthToken,
		client:  retryClient,
		limiter: rate.NewLimiter(limit, 1),
		logger:  shared.WithLogger(logger, "component", "qobuz"),
	}
}

// Name returns the provider name
func (q *QobuzService) Name() string {
	return "qobuz"
}

// doRequest performs a paced GET against endpoint and decodes the JSON body into result.
func (q *QobuzService) doRequest(ctx context.Context, endpoint string, params url.Values, result any) error {
	if err := q.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	if params == nil {
		params = url.Values{}
	}
	if q.appID != "" {
		params.Set("app_id", q.appID)
	}
	fullURL := q.baseURL + endpoint + "?" + params.Encode()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if q.token != "" {
		req.Header.Set("X-User-Auth-Token", q.token)
	}

	start := time.Now()
	resp, err := q.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	q.logger.Debug("request", "endpoint", endpoint, "status", resp.StatusCode, "took", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("%w: qobuz %s: %d %s", shared.ErrAPIRequest, endpoint, resp.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("%w: qobuz %s: status %d", shared.ErrAPIRequest, endpoint, resp.StatusCode)
	}

	if err := json.NewDecoder(bytes.NewReader(body)).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func searchParams(query string, limit int) url.Values {
	params := url.Values{}
	params.Set("query", query)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	return params
}

// SearchAlbums searches the album catalog.
func (q *QobuzService) SearchAlbums(ctx context.Context, query string, limit int) ([]models.AlbumResult, error) {
	var resp qobuzAlbumSearch
	if err := q.doRequest(ctx, "/album/search", searchParams(query, limit), &resp); err != nil {
		return nil, err
	}
	albums := make([]models.AlbumResult, 0, len(resp.Albums.Items))
	for _, a := range resp.Albums.Items {
		albums = append(albums, a.Result())
	}
	return albums, nil
}

// SearchTracks searches the track catalog.
func (q *QobuzService) SearchTracks(ctx context.Context, query string, limit int) ([]models.TrackResult, error) {
	var resp qobuzTrackSearch
	if err := q.doRequest(ctx, "/track/search", searchParams(query, limit), &resp); err != nil {
		return nil, err
	}
	tracks := make([]models.TrackResult, 0, len(resp.Tracks.Items))
	for _, t := range resp.Tracks.Items {
		tracks = append(tracks, t.Result(nil))
	}
	return tracks, nil
}

// SearchArtists searches the artist catalog.
func (q *QobuzService) SearchArtists(ctx context.Context, query string, limit int) ([]models.ArtistResult, error) {
	var resp qobuzArtistSearch
	if err := q.doRequest(ctx, "/artist/search", searchParams(query, limit), &resp); err != nil {
		return nil, err
	}
	artists := make([]models.ArtistResult, 0, len(resp.Artists.Items))
	for _, a := range resp.Artists.Items {
		artists = append(artists, a.Result())
	}
	return artists, nil
}

// Search runs the album, track and artist searches concurrently. Any failure
// fails the whole call.
func (q *QobuzService) Search(ctx context.Context, query string, limit int) (*models.SearchResults, error) {
	results := &models.SearchResults{}
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		results.Albums, err = q.SearchAlbums(ctx, query, limit)
		return err
	})
	g.Go(func() (err error) {
		results.Tracks, err = q.SearchTracks(ctx, query, limit)
		return err
	})
	g.Go(func() (err error) {
		results.Artists, err = q.SearchArtists(ctx, query, limit)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("qobuz search failed: %w", err)
	}
	return results, nil
}

// GetAlbum retrieves an album with its tracks.
func (q *QobuzService) GetAlbum(ctx context.Context, id string) (*models.AlbumDetail, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: album id", shared.ErrMissingArgument)
	}

	params := url.Values{}
	params.Set("album_id", id)

	var album QobuzAlbum
	if err := q.doRequest(ctx, "/album/get", params, &album); err != nil {
		return nil, err
	}

	detail := &models.AlbumDetail{Album: album.Result(), Tracks: []models.TrackResult{}}
	if album.Genre != nil {
		detail.Genre = album.Genre.Name
	}
	if album.Tracks != nil {
		for _, t := range album.Tracks.Items {
			detail.Tracks = append(detail.Tracks, t.Result(&album))
		}
	}
	return detail, nil
}

// Featured lists albums from a curated list.
func (q *QobuzService) Featured(ctx context.Context, kind string, limit int) ([]models.AlbumResult, error) {
	if kind == "" {
		return nil, fmt.Errorf("%w: featured list type", shared.ErrMissingArgument)
	}

	params := url.Values{}
	params.Set("type", kind)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var resp qobuzAlbumSearch
	if err := q.doRequest(ctx, "/album/getFeatured", params, &resp); err != nil {
		return nil, err
	}
	albums := make([]models.AlbumResult, 0, len(resp.Albums.Items))
	for _, a := range resp.Albums.Items {
		albums = append(albums, a.Result())
	}
	return albums, nil
}

// Result converts the album to its normalized form.
func (a *QobuzAlbum) Result() models.AlbumResult {
	artist := unknownArtist
	if a.Artist != nil && a.Artist.Name != "" {
		artist = a.Artist.Name
	}
	return models.AlbumResult{
		ExternalID:  string(a.ID),
		Title:       a.Title,
		Artist:      artist,
		ArtistID:    artistID(a.Artist),
		CoverURL:    a.Image.Best(),
		ReleaseDate: string(a.ReleasedAt),
		TrackCount:  a.TracksCount,
		Duration:    a.Duration,
		URL:         AlbumURL(a.Slug, string(a.ID)),
		Source:      models.SourceRemote,
	}
}

// Result converts the track to its normalized form. parent supplies album
// details when the track came from an album listing.
func (t *QobuzTrack) Result(parent *QobuzAlbum) models.TrackResult {
	album := t.Album
	if album == nil {
		album = parent
	}

	artist := ""
	if t.Performer != nil {
		artist = t.Performer.Name
	}
	if artist == "" && album != nil && album.Artist != nil {
		artist = album.Artist.Name
	}
	if artist == "" {
		artist = unknownArtist
	}

	disc := t.MediaNumber
	if disc <= 0 {
		disc = 1
	}

	r := models.TrackResult{
		ExternalID:  string(t.ID),
		Title:       t.Title,
		Artist:      artist,
		TrackNumber: t.TrackNumber,
		DiscNumber:  disc,
		Duration:    t.Duration,
		Source:      models.SourceRemote,
	}
	if album != nil {
		r.Album = album.Title
		r.AlbumExternalID = string(album.ID)
		r.AlbumURL = AlbumURL(album.Slug, string(album.ID))
		r.CoverURL = album.Image.Best()
	}
	return r
}

// Result converts the artist to its normalized form.
func (a *QobuzArtist) Result() models.ArtistResult {
	r := models.ArtistResult{
		ExternalID: string(a.ID),
		Name:       a.Name,
		ImageURL:   a.Image.Best(),
		AlbumCount: a.AlbumsCount,
		Source:     models.SourceRemote,
	}
	if r.Name == "" {
		r.Name = unknownArtist
	}
	if a.Biography != nil {
		r.Bio = a.Biography.Content
	}
	return r
}

func artistID(a *QobuzArtist) string {
	if a == nil {
		return ""
	}
	return string(a.ID)
}

// AlbumURL builds the store page URL streamrip accepts. A missing slug is
// replaced with "-", which the site redirects.
func AlbumURL(slug, id string) string {
	if id == "" {
		return ""
	}
	if slug == "" {
		slug = "-"
	}
	return qobuzSiteURL + "/" + slug + "/" + id
}

// AlbumIDFromURL returns the album id at the end of a store URL, or "" when
// the URL does not point at an album.
func AlbumIDFromURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, s := range segments {
		if s == "album" && i+1 < len(segments) {
			return segments[len(segments)-1]
		}
	}
	return ""
}
