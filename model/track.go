package model

import (
	"errors"
	"fmt"
	"html"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
)

// TagID identifies one field of a Track.
// The numeric values are persisted in serialized tracks and must never change.
type TagID int

const (
	TagPath        TagID = iota // Full path to the resource
	TagScheme                   // URI scheme (e.g., file, cdda)
	TagNumber                   // Track number
	TagTitle                    // Title
	TagArtist                   // Artist
	TagAlbum                    // Album
	TagLength                   // Length in seconds
	TagAlbumArtist              // Album artist
	TagDiscNumber               // Disc number
	TagGenre                    // Genre
	TagDate                     // Year
	TagExternalID               // MusicBrainz track id
	TagPlaylistPos              // Position in the playlist
	TagPlaylistLen              // Length of the playlist

	tagCount
)

// Sentinel values returned for absent tags.
const (
	UnknownDate        = 0
	UnknownGenre       = "Unknown Genre"
	UnknownTitle       = "Unknown Title"
	UnknownAlbum       = "Unknown Album"
	UnknownArtist      = "Unknown Artist"
	UnknownLength      = 0
	UnknownExternalID  = ""
	UnknownDiscNumber  = 0
	UnknownTrackNumber = 0
	UnknownAlbumArtist = "Unknown Album Artist"
	UnknownPlaylistPos = -1
	UnknownPlaylistLen = -1
)

const SchemeFile = "file"

// ErrNoScheme is returned when a locator is requested for a track whose scheme was never set.
var ErrNoScheme = errors.New("track has no resource scheme")

// IsIntTag reports whether the tag holds an integer value.
func (id TagID) IsIntTag() bool {
	switch id {
	case TagNumber, TagLength, TagDiscNumber, TagDate, TagPlaylistPos, TagPlaylistLen:
		return true
	}
	return false
}

// Valid reports whether id is a known tag identifier.
func (id TagID) Valid() bool {
	return id >= 0 && id < tagCount
}

// Track is the metadata record of one playable resource.
// Values are either string or int depending on the tag.
type Track struct {
	tags map[TagID]any
}

// NewTrack creates a track for the given resource path and scheme.
// An empty scheme leaves the scheme tag unset.
func NewTrack(path, scheme string) *Track {
	t := &Track{tags: make(map[TagID]any, 8)}
	t.tags[TagPath] = path
	if scheme != "" {
		t.tags[TagScheme] = scheme
	}
	return t
}

// NewFileTrack creates a track for a local file.
func NewFileTrack(path string) *Track {
	return NewTrack(path, SchemeFile)
}

// Setters are used while building a track; once inserted in a tracklist only the
// playlist position and length are rewritten.

func (t *Track) SetNumber(n int) {
	t.tags[TagNumber] = n
}

func (t *Track) SetTitle(title string) {
	t.tags[TagTitle] = title
}

func (t *Track) SetArtist(artist string) {
	t.tags[TagArtist] = artist
}

func (t *Track) SetAlbum(album string) {
	t.tags[TagAlbum] = album
}

func (t *Track) SetLength(seconds int) {
	t.tags[TagLength] = seconds
}

func (t *Track) SetAlbumArtist(artist string) {
	t.tags[TagAlbumArtist] = artist
}

func (t *Track) SetDiscNumber(n int) {
	t.tags[TagDiscNumber] = n
}

func (t *Track) SetGenre(genre string) {
	t.tags[TagGenre] = genre
}

func (t *Track) SetDate(year int) {
	t.tags[TagDate] = year
}

func (t *Track) SetExternalID(id string) {
	t.tags[TagExternalID] = id
}

func (t *Track) SetPlaylistPos(pos int) {
	t.tags[TagPlaylistPos] = pos
}

func (t *Track) SetPlaylistLen(n int) {
	t.tags[TagPlaylistLen] = n
}

func (t *Track) Has(id TagID) bool {
	_, ok := t.tags[id]
	return ok
}

func (t *Track) HasAlbumArtist() bool {
	return t.Has(TagAlbumArtist)
}

func (t *Track) Path() string {
	return t.str(TagPath, "")
}

func (t *Track) Scheme() string {
	return t.str(TagScheme, "")
}

func (t *Track) Number() int {
	return t.num(TagNumber, UnknownTrackNumber)
}

func (t *Track) Title() string {
	return t.str(TagTitle, UnknownTitle)
}

func (t *Track) Artist() string {
	return t.str(TagArtist, UnknownArtist)
}

func (t *Track) Album() string {
	return t.str(TagAlbum, UnknownAlbum)
}

func (t *Track) Length() int {
	return t.num(TagLength, UnknownLength)
}

func (t *Track) AlbumArtist() string {
	return t.str(TagAlbumArtist, UnknownAlbumArtist)
}

func (t *Track) DiscNumber() int {
	return t.num(TagDiscNumber, UnknownDiscNumber)
}

func (t *Track) Genre() string {
	return t.str(TagGenre, UnknownGenre)
}

func (t *Track) Date() int {
	return t.num(TagDate, UnknownDate)
}

func (t *Track) ExternalID() string {
	return t.str(TagExternalID, UnknownExternalID)
}

func (t *Track) PlaylistPos() int {
	return t.num(TagPlaylistPos, UnknownPlaylistPos)
}

func (t *Track) PlaylistLen() int {
	return t.num(TagPlaylistLen, UnknownPlaylistLen)
}

func (t *Track) Tag(id TagID) (value any, ok bool) {
	value, ok = t.tags[id]
	return
}

func (t *Track) str(id TagID, def string) string {
	if v, ok := t.tags[id].(string); ok {
		return v
	}
	return def
}

func (t *Track) num(id TagID, def int) int {
	if v, ok := t.tags[id].(int); ok {
		return v
	}
	return def
}

// URI returns the scheme-qualified locator of the resource.
// '#' would start a fragment, so it is escaped.
func (t *Track) URI() (string, error) {
	scheme, ok := t.tags[TagScheme].(string)
	if !ok || scheme == "" {
		return "", fmt.Errorf("%w: %s", ErrNoScheme, t.Path())
	}
	return scheme + "://" + strings.ReplaceAll(t.Path(), "#", "%23"), nil
}

// ExtendedAlbum returns the album name plus the disc number, if any.
func (t *Track) ExtendedAlbum() string {
	if t.DiscNumber() != UnknownDiscNumber {
		return fmt.Sprintf("%s  [Disc %d]", t.Album(), t.DiscNumber())
	}
	return t.Album()
}

// Clone returns a copy that shares no state with t.
func (t *Track) Clone() *Track {
	c := &Track{tags: make(map[TagID]any, len(t.tags))}
	for k, v := range t.tags {
		c.tags[k] = v
	}
	return c
}

func (t *Track) String() string {
	return fmt.Sprintf("%s - %s - %s (%d)", t.Artist(), t.Album(), t.Title(), t.Number())
}

// foldCompare compares case-insensitively. Casers keep state, so each call gets its own.
func foldCompare(a, b string) int {
	f := cases.Fold()
	return strings.Compare(f.String(a), f.String(b))
}

func intCompare(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Compare orders tracks by artist, album, disc, track number and finally path.
// The album artist replaces the artist when a has one.
func Compare(a, b *Track) int {
	var r int
	if a.HasAlbumArtist() {
		r = foldCompare(a.AlbumArtist(), b.AlbumArtist())
	} else {
		r = foldCompare(a.Artist(), b.Artist())
	}
	if r != 0 {
		return r
	}
	if r = foldCompare(a.Album(), b.Album()); r != 0 {
		return r
	}
	if r = intCompare(a.DiscNumber(), b.DiscNumber()); r != 0 {
		return r
	}
	if r = intCompare(a.Number(), b.Number()); r != 0 {
		return r
	}
	return strings.Compare(a.Path(), b.Path())
}

// SortTracks sorts tracks in place using Compare.
func SortTracks(tracks []*Track) {
	sort.SliceStable(tracks, func(i, j int) bool {
		return Compare(tracks[i], tracks[j]) < 0
	})
}

// FormatDuration renders seconds as m:ss, or h:mm:ss past one hour.
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h, m, s := seconds/3600, (seconds/60)%60, seconds%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// FormatFields lists the placeholders understood by Format, with a short description.
var FormatFields = [][2]string{
	{"track", "Track number"},
	{"title", "Title"},
	{"artist", "Artist"},
	{"album", "Album"},
	{"genre", "Genre"},
	{"date", "Date"},
	{"disc", "Disc number"},
	{"duration_sec", "Duration in seconds (e.g., 194)"},
	{"duration_str", "Duration as a string (e.g., 3:14)"},
	{"playlist_pos", "Position of the track in the playlist"},
	{"playlist_len", "Number of tracks in the playlist"},
	{"path", "Full path to the file"},
}

// Format replaces the {field} placeholders of tmpl by their value.
func (t *Track) Format(tmpl string) string {
	return t.format(tmpl, func(s string) string { return s })
}

// FormatHTMLSafe is Format with &, < and > escaped in text fields.
func (t *Track) FormatHTMLSafe(tmpl string) string {
	return t.format(tmpl, html.EscapeString)
}

func (t *Track) format(tmpl string, esc func(string) string) string {
	r := strings.NewReplacer(
		"{path}", esc(t.Path()),
		"{album}", esc(t.Album()),
		"{track}", strconv.Itoa(t.Number()),
		"{title}", esc(t.Title()),
		"{artist}", esc(t.Artist()),
		"{genre}", esc(t.Genre()),
		"{date}", strconv.Itoa(t.Date()),
		"{disc}", strconv.Itoa(t.DiscNumber()),
		"{duration_sec}", strconv.Itoa(t.Length()),
		"{duration_str}", FormatDuration(t.Length()),
		"{playlist_pos}", strconv.Itoa(t.PlaylistPos()),
		"{playlist_len}", strconv.Itoa(t.PlaylistLen()),
	)
	return r.Replace(tmpl)
}
