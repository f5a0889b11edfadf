// package testing contains shared testing utilities
package testing

import (
	"database/sql"
	"encoding/binary"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/bogem/id3v2"
	"github.com/desertthunder/crate/internal/shared"
)

// NewTestDB creates a file-backed SQLite database with migrations applied and
// closes it when the test ends.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

// Tags are the frames written by [WriteTaggedMP3]. Zero values are skipped.
type Tags struct {
	Title       string
	Artist      string
	AlbumArtist string
	Album       string
	Genre       string
	Year        string
	Track       int
	Disc        int
	LengthMS    int
}

// WriteTaggedMP3 writes a minimal MP3 at path carrying an ID3v2 tag. Parent
// directories are created.
func WriteTaggedMP3(t *testing.T, path string, tags Tags) string {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}
	// one silent MPEG-1 Layer III frame header followed by padding
	frame := append([]byte{0xFF, 0xFB, 0x90, 0x00}, make([]byte, 413)...)
	if err := os.WriteFile(path, frame, 0644); err != nil {
		t.Fatalf("failed to write mp3: %v", err)
	}

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		t.Fatalf("failed to open mp3 for tagging: %v", err)
	}
	defer tag.Close()

	if tags.Title != "" {
		tag.SetTitle(tags.Title)
	}
	if tags.Artist != "" {
		tag.SetArtist(tags.Artist)
	}
	if tags.Album != "" {
		tag.SetAlbum(tags.Album)
	}
	if tags.Genre != "" {
		tag.SetGenre(tags.Genre)
	}
	if tags.Year != "" {
		tag.SetYear(tags.Year)
	}
	if tags.AlbumArtist != "" {
		tag.AddTextFrame("TPE2", id3v2.EncodingUTF8, tags.AlbumArtist)
	}
	if tags.Track > 0 {
		tag.AddTextFrame("TRCK", id3v2.EncodingUTF8, strconv.Itoa(tags.Track))
	}
	if tags.Disc > 0 {
		tag.AddTextFrame("TPOS", id3v2.EncodingUTF8, strconv.Itoa(tags.Disc))
	}
	if tags.LengthMS > 0 {
		tag.AddTextFrame("TLEN", id3v2.EncodingUTF8, strconv.Itoa(tags.LengthMS))
	}

	if err := tag.Save(); err != nil {
		t.Fatalf("failed to save id3 tag: %v", err)
	}
	return path
}

// WriteUntaggedFile writes a file with content that no tag reader recognizes.
func WriteUntaggedFile(t *testing.T, path string) string {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte("not really audio"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	return path
}

// WriteFLAC writes a FLAC stream holding only a STREAMINFO block, so the file
// has a duration but no tags.
func WriteFLAC(t *testing.T, path string, sampleRate int, totalSamples uint64) string {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}

	info := make([]byte, 34)
	binary.BigEndian.PutUint16(info[0:2], 4096)
	binary.BigEndian.PutUint16(info[2:4], 4096)
	// sample rate (20 bits), channels-1 (3 bits), bps-1 (5 bits), total samples (36 bits)
	packed := uint64(sampleRate)<<44 | uint64(1)<<41 | uint64(15)<<36 | totalSamples&0xFFFFFFFFF
	binary.BigEndian.PutUint64(info[10:18], packed)

	data := []byte("fLaC")
	data = append(data, 0x80, 0x00, 0x00, 34) // last block, STREAMINFO, length 34
	data = append(data, info...)

	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write flac: %v", err)
	}
	return path
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

// MustRemove deletes path, failing the test on error
func MustRemove(t *testing.T, path string) {
	t.Helper()
	if err := os.Remove(path); err != nil {
		t.Fatalf("Failed to remove %s: %v", path, err)
	}
}
