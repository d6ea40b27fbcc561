package tags

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"Decibel/core/audio"
	"Decibel/logger"
	"Decibel/model"

	"github.com/dhowden/tag"
)

// ErrUnsupported is returned for files whose extension is not a known media format.
var ErrUnsupported = errors.New("unsupported media format")

type format int

const (
	formatGeneric format = iota
	formatMP4
	formatWavPack
)

// 支持的媒体格式 (按扩展名)
var formats = map[string]format{
	".mp3":  formatGeneric,
	".flac": formatGeneric,
	".ogg":  formatGeneric,
	".oga":  formatGeneric,
	".m4a":  formatMP4,
	".mp4":  formatMP4,
	".m4b":  formatMP4,
	".wv":   formatWavPack,
}

// IsSupported reports whether the file name has a known media extension.
func IsSupported(name string) bool {
	_, ok := formats[strings.ToLower(filepath.Ext(name))]
	return ok
}

// Prober reads the duration and container tags of a file.
type Prober interface {
	Probe(ctx context.Context, path string) (*audio.Probe, error)
}

// Reader builds tracks from media files.
type Reader struct {
	prober   Prober
	readTags func(path string) (tag.Metadata, error)
}

func NewReader(prober Prober) *Reader {
	return &Reader{prober: prober, readTags: readFileTags}
}

func readFileTags(path string) (tag.Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return tag.ReadFrom(f)
}

// GetTrack reads one file. Only the duration is mandatory, every other tag
// is left unset when it cannot be read.
func (r *Reader) GetTrack(ctx context.Context, path string) (*model.Track, error) {
	kind, ok := formats[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrUnsupported)
	}

	probe, err := r.prober.Probe(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read duration of %s: %w", path, err)
	}

	track := model.NewFileTrack(path)
	track.SetLength(probe.Seconds())

	switch kind {
	case formatMP4:
		r.readMP4(path, track)
	case formatWavPack:
		applyProbeTags(track, probe, apeKeys)
	default:
		r.readGeneric(path, track, probe)
	}
	return track, nil
}

func (r *Reader) readMP4(path string, track *model.Track) {
	m, err := r.readTags(path)
	if err != nil {
		logger.Debug("no mp4 tags", logger.String("path", path), logger.ErrorField(err))
		return
	}
	applyMetadata(track, m)
}

// readGeneric falls back to the container tags reported by ffprobe when the
// file has no tag block we can parse.
func (r *Reader) readGeneric(path string, track *model.Track, probe *audio.Probe) {
	m, err := r.readTags(path)
	if err != nil {
		logger.Debug("falling back to ffprobe tags", logger.String("path", path), logger.ErrorField(err))
		applyProbeTags(track, probe, commonKeys)
		return
	}
	applyMetadata(track, m)

	raw := m.Raw()
	for _, key := range []string{"musicbrainz_trackid", "MUSICBRAINZ_TRACKID", "MusicBrainz Track Id"} {
		if id, ok := raw[key].(string); ok && id != "" {
			track.SetExternalID(id)
			break
		}
	}
}

func applyMetadata(track *model.Track, m tag.Metadata) {
	if n, _ := m.Track(); n > 0 {
		track.SetNumber(n)
	}
	if n, _ := m.Disc(); n > 0 {
		track.SetDiscNumber(n)
	}
	if y := m.Year(); y > 0 {
		track.SetDate(y)
	}
	setText(track.SetTitle, m.Title())
	setText(track.SetAlbum, m.Album())
	setText(track.SetArtist, m.Artist())
	setText(track.SetGenre, m.Genre())
	setText(track.SetAlbumArtist, m.AlbumArtist())
}

// probeKeys names the container tags that map onto track fields.
type probeKeys struct {
	title, album, artist, albumArtist, genre, number, disc, date string
}

// APEv2 keys as written by WavPack encoders
var apeKeys = probeKeys{
	title:       "Title",
	album:       "Album",
	artist:      "Artist",
	albumArtist: "Album Artist",
	genre:       "genre",
	number:      "Track",
	disc:        "Disc",
	date:        "Year",
}

var commonKeys = probeKeys{
	title:       "title",
	album:       "album",
	artist:      "artist",
	albumArtist: "album_artist",
	genre:       "genre",
	number:      "track",
	disc:        "disc",
	date:        "date",
}

func applyProbeTags(track *model.Track, probe *audio.Probe, keys probeKeys) {
	text := func(key string, set func(string)) {
		if v, ok := probe.Tag(key); ok {
			setText(set, v)
		}
	}
	number := func(key string, set func(int)) {
		if v, ok := probe.Tag(key); ok {
			if n, ok := leadingNumber(v); ok {
				set(n)
			}
		}
	}

	text(keys.title, track.SetTitle)
	text(keys.album, track.SetAlbum)
	text(keys.artist, track.SetArtist)
	text(keys.albumArtist, track.SetAlbumArtist)
	text(keys.genre, track.SetGenre)
	number(keys.number, track.SetNumber)
	number(keys.disc, track.SetDiscNumber)
	number(keys.date, track.SetDate)
}

func setText(set func(string), v string) {
	if v = strings.TrimSpace(v); v != "" {
		set(v)
	}
}

// leadingNumber parses "3", "03/12" or "1998-04-01".
func leadingNumber(v string) (int, bool) {
	v = strings.TrimSpace(v)
	if i := strings.IndexAny(v, "/-"); i >= 0 {
		v = v[:i]
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// GetTracks reads the given files and, recursively, the media files of the
// given directories. Unreadable files are skipped. Tracks of one directory
// are sorted by tags, or by file name when addByFilename is set.
func (r *Reader) GetTracks(ctx context.Context, paths []string, addByFilename bool) []*model.Track {
	var tracks []*model.Track
	for _, path := range paths {
		if ctx.Err() != nil {
			break
		}
		info, err := os.Stat(path)
		if err != nil {
			logger.Warn("skipping unreadable path", logger.String("path", path), logger.ErrorField(err))
			continue
		}
		if info.IsDir() {
			tracks = append(tracks, r.scanDir(ctx, path, addByFilename)...)
			continue
		}
		if track := r.tryTrack(ctx, path); track != nil {
			tracks = append(tracks, track)
		}
	}
	return tracks
}

func (r *Reader) tryTrack(ctx context.Context, path string) *model.Track {
	if !IsSupported(path) {
		return nil
	}
	track, err := r.GetTrack(ctx, path)
	if err != nil {
		logger.Warn("skipping unreadable file", logger.String("path", path), logger.ErrorField(err))
		return nil
	}
	return track
}

// scanDir returns the tracks of dir followed by those of its subdirectories.
// Hidden entries are ignored.
func (r *Reader) scanDir(ctx context.Context, dir string, addByFilename bool) []*model.Track {
	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Warn("failed to read directory", logger.String("path", dir), logger.ErrorField(err))
		return nil
	}

	var tracks []*model.Track
	var subdirs []string
	for _, entry := range entries {
		if ctx.Err() != nil {
			return tracks
		}
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			subdirs = append(subdirs, path)
			continue
		}
		if track := r.tryTrack(ctx, path); track != nil {
			tracks = append(tracks, track)
		}
	}

	if addByFilename {
		sort.SliceStable(tracks, func(i, j int) bool {
			return tracks[i].Path() < tracks[j].Path()
		})
	} else {
		model.SortTracks(tracks)
	}

	for _, sub := range subdirs {
		tracks = append(tracks, r.scanDir(ctx, sub, addByFilename)...)
	}
	return tracks
}
