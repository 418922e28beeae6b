package scanner

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
	"github.com/tcolgate/mp3"
)

// probeResult holds whatever metadata could be read from one audio file.
// Every field is best-effort: untagged or unreadable files probe to zeroes
// and the import falls back to file and folder names.
type probeResult struct {
	title       string
	artist      string
	album       string
	albumArtist string
	track       int
	// durationMs is a container-level hint, 0 when the format offers none.
	// The audio unit's reported duration supersedes it at playback time.
	durationMs int64
}

// probeFile reads embedded tags and, for mp3 files, a frame-walk duration
// hint.
func probeFile(path string) probeResult {
	var p probeResult

	if f, err := os.Open(path); err == nil {
		if meta, err := tag.ReadFrom(f); err == nil {
			p.title = strings.TrimSpace(meta.Title())
			p.artist = strings.TrimSpace(meta.Artist())
			p.album = strings.TrimSpace(meta.Album())
			p.albumArtist = strings.TrimSpace(meta.AlbumArtist())
			p.track, _ = meta.Track()
		}
		f.Close()
	}

	if strings.EqualFold(filepath.Ext(path), ".mp3") {
		if ms, err := mp3DurationMs(path); err == nil {
			p.durationMs = ms
		}
	}
	return p
}

// mp3DurationMs sums frame durations across the whole file. Accurate for
// both CBR and VBR, at the cost of reading every frame header.
func mp3DurationMs(path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	decoder := mp3.NewDecoder(f)
	var frame mp3.Frame
	var skipped int
	var total float64

	for {
		if err := decoder.Decode(&frame, &skipped); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return 0, err
		}
		total += frame.Duration().Seconds()
	}
	return int64(total * 1000), nil
}
