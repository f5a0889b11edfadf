package metadata

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var (
	discDirPattern  = regexp.MustCompile(`(?i)^(?:disc|disk|cd)\s*(\d+)$`)
	albumDirPattern = regexp.MustCompile(`^(.+?)\s+-\s+(.+?)(?:\s+\((\d{4})\))?$`)
	fileNamePattern = regexp.MustCompile(`^(\d{1,3})\s*[.\- ]\s*(.+)$`)
)

// PathInfo is what a file's location says about it. Empty fields are unknown.
type PathInfo struct {
	Artist      string
	Album       string
	Year        string
	Title       string
	TrackNumber int
	DiscNumber  int
}

// ParsePath reads artist, album and year from the album directory
// ("<Artist> - <Album> (<Year>)") and track number, title and sometimes artist
// from the file name ("<N>. <Title>" or "<N>. <Artist> - <Title>"). A "Disc N"
// or "CD N" directory supplies the disc number and defers to its parent.
func ParsePath(path string) PathInfo {
	var info PathInfo

	dir := filepath.Dir(path)
	name := filepath.Base(dir)
	if m := discDirPattern.FindStringSubmatch(name); m != nil {
		info.DiscNumber, _ = strconv.Atoi(m[1])
		name = filepath.Base(filepath.Dir(dir))
	}

	if usableDir(name) {
		if m := albumDirPattern.FindStringSubmatch(name); m != nil {
			info.Artist = strings.TrimSpace(m[1])
			info.Album = strings.TrimSpace(m[2])
			info.Year = m[3]
		} else {
			info.Album = name
		}
	}

	stem := cleanName(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	info.Title = stem
	if m := fileNamePattern.FindStringSubmatch(stem); m != nil {
		info.TrackNumber, _ = strconv.Atoi(m[1])
		info.Title = strings.TrimSpace(m[2])
		if artist, title, ok := strings.Cut(info.Title, " - "); ok && strings.TrimSpace(title) != "" {
			info.Artist = strings.TrimSpace(artist)
			info.Title = strings.TrimSpace(title)
		}
	}

	return info
}

func usableDir(name string) bool {
	return name != "" && name != "." && name != string(filepath.Separator)
}

// cleanName turns underscores into spaces and collapses whitespace
func cleanName(s string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(s, "_", " ")), " ")
}
