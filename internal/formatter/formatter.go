// package formatter renders catalog data for the terminal (tables, durations)
// and exports the playback queue as M3U or CSV.
package formatter

import (
	"fmt"
	"strconv"
	"time"

	"github.com/desertthunder/crate/internal/models"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Align is a column alignment for [RenderTable].
type Align int

const (
	AlignLeft Align = iota
	AlignRight
)

// FormatDuration renders seconds as m:ss, or h:mm:ss from one hour up.
func FormatDuration(seconds int) string {
	if seconds <= 0 {
		return "0:00"
	}
	h, m, s := seconds/3600, (seconds%3600)/60, seconds%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// RenderTable draws rows under headers with rounded borders. Short rows are
// padded; an empty header list renders nothing.
func RenderTable(headers []string, rows [][]string, aligns []Align) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == AlignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

func check(b bool) string {
	if b {
		return "✓"
	}
	return ""
}

// AlbumsTable lists catalog albums.
func AlbumsTable(albums []*models.Album) string {
	rows := make([][]string, 0, len(albums))
	for _, a := range albums {
		rows = append(rows, []string{
			a.ID, a.Title, a.ArtistName, a.ReleaseDate,
			strconv.Itoa(a.TrackCount), FormatDuration(a.Duration), check(a.Downloaded),
		})
	}
	return RenderTable(
		[]string{"ID", "Title", "Artist", "Year", "Tracks", "Length", "Local"},
		rows,
		[]Align{AlignLeft, AlignLeft, AlignLeft, AlignLeft, AlignRight, AlignRight},
	)
}

// TracksTable lists tracks in disc/track order as given.
func TracksTable(tracks []*models.Track) string {
	rows := make([][]string, 0, len(tracks))
	for _, t := range tracks {
		rows = append(rows, []string{
			fmt.Sprintf("%d-%02d", max(t.DiscNumber, 1), t.TrackNumber),
			t.Title, t.ArtistName, FormatDuration(t.Duration), strconv.Itoa(t.PlayCount), t.ID,
		})
	}
	return RenderTable(
		[]string{"#", "Title", "Artist", "Length", "Plays", "ID"},
		rows,
		[]Align{AlignRight, AlignLeft, AlignLeft, AlignRight, AlignRight},
	)
}

// ArtistsTable lists catalog artists.
func ArtistsTable(artists []*models.Artist) string {
	rows := make([][]string, 0, len(artists))
	for _, a := range artists {
		rows = append(rows, []string{a.ID, a.Name, strconv.Itoa(a.AlbumCount)})
	}
	return RenderTable([]string{"ID", "Name", "Albums"}, rows, []Align{AlignLeft, AlignLeft, AlignRight})
}

// QueueTable lists the queue, marking the playing item.
func QueueTable(items []*models.QueueItem) string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		marker := ""
		if item.IsPlaying {
			marker = "▶"
		}
		title, artist, album, length := "", "", "", ""
		if item.Track != nil {
			title, artist, album = item.Track.Title, item.Track.ArtistName, item.Track.AlbumTitle
			length = FormatDuration(item.Track.Duration)
		}
		rows = append(rows, []string{marker, strconv.Itoa(item.Position), title, artist, album, length, item.ID})
	}
	return RenderTable(
		[]string{"", "Pos", "Title", "Artist", "Album", "Length", "Item"},
		rows,
		[]Align{AlignLeft, AlignRight, AlignLeft, AlignLeft, AlignLeft, AlignRight},
	)
}

// TasksTable lists download tasks.
func TasksTable(tasks []*models.DownloadTask) string {
	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		name := t.SourceURL
		if t.Title != "" {
			name = t.Title
		}
		rows = append(rows, []string{
			t.ID, string(t.Status), strconv.Itoa(t.Progress) + "%", name, t.CreatedAt.Local().Format(time.DateTime), t.Error,
		})
	}
	return RenderTable(
		[]string{"ID", "Status", "Progress", "Source", "Created", "Error"},
		rows,
		[]Align{AlignLeft, AlignLeft, AlignRight},
	)
}

// HistoryTable lists plays newest first.
func HistoryTable(entries []*models.PlayHistory) string {
	rows := make([][]string, 0, len(entries))
	for _, h := range entries {
		title, artist := "(removed)", ""
		if h.Track != nil {
			title, artist = h.Track.Title, h.Track.ArtistName
		}
		rows = append(rows, []string{h.PlayedAt.Local().Format(time.DateTime), title, artist, FormatDuration(h.Duration)})
	}
	return RenderTable([]string{"Played", "Title", "Artist", "Listened"}, rows, []Align{AlignLeft, AlignLeft, AlignLeft, AlignRight})
}

// SearchTables renders merged search results, one table per kind.
func SearchTables(results *models.SearchResults) string {
	var out string
	if len(results.Albums) > 0 {
		out += Styles.Title("Albums") + "\n" + albumResultsTable(results.Albums) + "\n"
	}
	if len(results.Tracks) > 0 {
		rows := make([][]string, 0, len(results.Tracks))
		for _, t := range results.Tracks {
			id := t.ID
			if id == "" {
				id = t.ExternalID
			}
			rows = append(rows, []string{string(t.Source), t.Title, t.Artist, t.Album, FormatDuration(t.Duration), id})
		}
		out += Styles.Title("Tracks") + "\n" + RenderTable([]string{"Source", "Title", "Artist", "Album", "Length", "ID"}, rows, nil) + "\n"
	}
	if len(results.Artists) > 0 {
		rows := make([][]string, 0, len(results.Artists))
		for _, a := range results.Artists {
			id := a.ID
			if id == "" {
				id = a.ExternalID
			}
			rows = append(rows, []string{string(a.Source), a.Name, id})
		}
		out += Styles.Title("Artists") + "\n" + RenderTable([]string{"Source", "Name", "ID"}, rows, nil) + "\n"
	}
	return out
}

// FeedTables renders the curated lists that have entries.
func FeedTables(feed *models.Feed) string {
	var out string
	for _, list := range []struct {
		title  string
		albums []models.AlbumResult
	}{
		{"New Releases", feed.NewReleases},
		{"Press Awards", feed.PressAwards},
		{"Editor Picks", feed.EditorPicks},
	} {
		if len(list.albums) > 0 {
			out += Styles.Title(list.title) + "\n" + albumResultsTable(list.albums) + "\n"
		}
	}
	return out
}

func albumResultsTable(albums []models.AlbumResult) string {
	rows := make([][]string, 0, len(albums))
	for _, a := range albums {
		id := a.ID
		if id == "" {
			id = a.ExternalID
		}
		rows = append(rows, []string{string(a.Source), a.Title, a.Artist, a.ReleaseDate, check(a.Downloaded), id})
	}
	return RenderTable([]string{"Source", "Title", "Artist", "Released", "Local", "ID"}, rows, nil)
}
