package metadata

import (
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bogem/id3v2"
)

// Duration returns the length of the file at path in whole seconds, or 0 when
// the container does not say.
func Duration(path string) int {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return mp3Duration(path)
	case ".flac":
		return flacDuration(path)
	default:
		return 0
	}
}

// mp3Duration reads the ID3v2 TLEN frame (milliseconds)
func mp3Duration(path string) int {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true, ParseFrames: []string{"TLEN"}})
	if err != nil {
		return 0
	}
	defer tag.Close()

	ms, err := strconv.Atoi(strings.TrimSpace(tag.GetTextFrame("TLEN").Text))
	if err != nil || ms <= 0 {
		return 0
	}
	return ms / 1000
}

// flacDuration reads total samples and sample rate from the STREAMINFO block,
// which is always the first metadata block of a FLAC stream.
func flacDuration(path string) int {
	f, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close()

	header := make([]byte, 8)
	if _, err := io.ReadFull(f, header); err != nil {
		return 0
	}
	if string(header[:4]) != "fLaC" || header[4]&0x7F != 0 {
		return 0
	}

	info := make([]byte, 34)
	if _, err := io.ReadFull(f, info); err != nil {
		return 0
	}

	packed := binary.BigEndian.Uint64(info[10:18])
	sampleRate := packed >> 44
	totalSamples := packed & 0xFFFFFFFFF
	if sampleRate == 0 {
		return 0
	}
	return int(totalSamples / sampleRate)
}
