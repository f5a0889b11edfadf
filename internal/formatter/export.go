package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/desertthunder/crate/internal/models"
)

// ExportToM3U renders queue items as an extended M3U playlist. Items whose
// track has no local file are skipped.
func ExportToM3U(items []*models.QueueItem) []byte {
	var buf bytes.Buffer
	buf.WriteString("#EXTM3U\n")

	for _, item := range items {
		t := item.Track
		if t == nil || t.FilePath == "" {
			continue
		}
		duration := t.Duration
		if duration <= 0 {
			duration = -1
		}
		buf.WriteString(fmt.Sprintf("#EXTINF:%d,%s - %s\n", duration, t.ArtistName, t.Title))
		buf.WriteString(t.FilePath + "\n")
	}

	return buf.Bytes()
}

// ExportToCSV converts queue items to CSV with columns: Position, Title, Artist, Album, Duration, Path, Playing
func ExportToCSV(items []*models.QueueItem) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Position", "Title", "Artist", "Album", "Duration", "Path", "Playing"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, item := range items {
		record := []string{strconv.Itoa(item.Position), "", "", "", "0", "", strconv.FormatBool(item.IsPlaying)}
		if t := item.Track; t != nil {
			record[1], record[2], record[3] = t.Title, t.ArtistName, t.AlbumTitle
			record[4] = strconv.Itoa(t.Duration)
			record[5] = t.FilePath
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// WriteQueueExport writes the queue to path in format ("m3u" or "csv").
// An empty format is taken from the file extension.
func WriteQueueExport(items []*models.QueueItem, format, path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("export path is required")
	}
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	}

	var (
		data []byte
		err  error
	)
	switch format {
	case "m3u", "m3u8":
		data = ExportToM3U(items)
	case "csv":
		data, err = ExportToCSV(items)
	default:
		return "", fmt.Errorf("unsupported export format %q", format)
	}
	if err != nil {
		return "", err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}
	return path, nil
}
