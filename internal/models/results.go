package models

// Source tells where a search result came from.
type Source string

const (
	SourceLocal  Source = "local"
	SourceRemote Source = "remote"
)

// AlbumResult is the normalized album shape produced by both the local catalog
// query and the remote provider adapter.
type AlbumResult struct {
	ID          string `json:"id,omitempty"`
	ExternalID  string `json:"external_id,omitempty"`
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	ArtistID    string `json:"artist_id,omitempty"`
	CoverURL    string `json:"cover_url,omitempty"`
	ReleaseDate string `json:"release_date,omitempty"`
	TrackCount  int    `json:"track_count,omitempty"`
	Duration    int    `json:"duration,omitempty"`
	URL         string `json:"url,omitempty"`
	Downloaded  bool   `json:"downloaded"`
	Source      Source `json:"source"`
}

// TrackResult is the normalized track shape.
type TrackResult struct {
	ID              string `json:"id,omitempty"`
	ExternalID      string `json:"external_id,omitempty"`
	Title           string `json:"title"`
	Artist          string `json:"artist"`
	Album           string `json:"album,omitempty"`
	AlbumID         string `json:"album_id,omitempty"`
	AlbumExternalID string `json:"album_external_id,omitempty"`
	AlbumURL        string `json:"album_url,omitempty"`
	TrackNumber     int    `json:"track_number,omitempty"`
	DiscNumber      int    `json:"disc_number,omitempty"`
	Duration        int    `json:"duration,omitempty"`
	CoverURL        string `json:"cover_url,omitempty"`
	Downloaded      bool   `json:"downloaded"`
	Source          Source `json:"source"`
}

// ArtistResult is the normalized artist shape.
type ArtistResult struct {
	ID         string `json:"id,omitempty"`
	ExternalID string `json:"external_id,omitempty"`
	Name       string `json:"name"`
	ImageURL   string `json:"image_url,omitempty"`
	Bio        string `json:"bio,omitempty"`
	AlbumCount int    `json:"album_count,omitempty"`
	Source     Source `json:"source"`
}

// SearchResults groups merged results by kind.
type SearchResults struct {
	Albums  []AlbumResult  `json:"albums"`
	Tracks  []TrackResult  `json:"tracks"`
	Artists []ArtistResult `json:"artists"`
}

// Curated album lists a provider can be asked for.
const (
	FeaturedNewReleases = "new-releases"
	FeaturedPressAwards = "press-awards"
	FeaturedEditorPicks = "editor-picks"
)

// Feed holds the provider's curated album lists. Albums already in the
// catalog carry their local id and download state.
type Feed struct {
	NewReleases []AlbumResult `json:"new_releases"`
	PressAwards []AlbumResult `json:"press_awards"`
	EditorPicks []AlbumResult `json:"editor_picks"`
}

// AlbumDetail is a remote album with its track listing.
type AlbumDetail struct {
	Album  AlbumResult   `json:"album"`
	Tracks []TrackResult `json:"tracks"`
	Genre  string        `json:"genre,omitempty"`
}

// AlbumResultFrom converts a catalog album into its search result form.
func AlbumResultFrom(a *Album) AlbumResult {
	cover := a.CoverURL
	if cover == "" {
		cover = a.CoverLocal
	}
	return AlbumResult{
		ID:          a.ID,
		ExternalID:  a.ExternalID,
		Title:       a.Title,
		Artist:      a.ArtistName,
		ArtistID:    a.ArtistID,
		CoverURL:    cover,
		ReleaseDate: a.ReleaseDate,
		TrackCount:  a.TrackCount,
		Duration:    a.Duration,
		URL:         a.ExternalURL,
		Downloaded:  a.Downloaded,
		Source:      SourceLocal,
	}
}

// TrackResultFrom converts a catalog track into its search result form.
func TrackResultFrom(t *Track) TrackResult {
	return TrackResult{
		ID:          t.ID,
		ExternalID:  t.ExternalID,
		Title:       t.Title,
		Artist:      t.ArtistName,
		Album:       t.AlbumTitle,
		AlbumID:     t.AlbumID,
		TrackNumber: t.TrackNumber,
		DiscNumber:  t.DiscNumber,
		Duration:    t.Duration,
		Downloaded:  t.Downloaded,
		Source:      SourceLocal,
	}
}

// ArtistResultFrom converts a catalog artist into its search result form.
func ArtistResultFrom(a *Artist) ArtistResult {
	return ArtistResult{
		ID:         a.ID,
		ExternalID: a.ExternalID,
		Name:       a.Name,
		ImageURL:   a.ImageURL,
		Bio:        a.Bio,
		AlbumCount: a.AlbumCount,
		Source:     SourceLocal,
	}
}
