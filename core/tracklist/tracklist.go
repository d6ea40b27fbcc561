package tracklist

import (
	"math/rand"

	"Decibel/model"

	"github.com/google/uuid"
)

// State is the playback state of one entry.
type State int

const (
	Unmarked State = iota
	Playing
	Paused
)

func (s State) String() string {
	switch s {
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return "unmarked"
	}
}

// Entry is one slot of the tracklist.
// Failed is sticky: it survives later marks until the entry leaves the list.
type Entry struct {
	ID     string
	Track  *model.Track
	State  State
	Failed bool
}

// Status is what a renderer shows for the entry.
func (e *Entry) Status() string {
	if e.Failed && e.State == Unmarked {
		return "failed"
	}
	return e.State.String()
}

// Sink receives the notifications of a Tracklist. The entries are only valid
// during the call.
type Sink interface {
	TracklistChanged(entries []*Entry, playtime int)
	Stop()
}

// Tracklist is the ordered play queue with its current marker.
// It is not safe for concurrent use, the bus control goroutine owns it.
type Tracklist struct {
	entries  []*Entry
	current  int // -1 when nothing is current
	playtime int
	snapshot []*model.Track // nil when there is nothing to revert to

	sink Sink
	rnd  *rand.Rand
}

// New returns an empty tracklist. A nil rnd uses the global source.
func New(sink Sink, rnd *rand.Rand) *Tracklist {
	return &Tracklist{current: -1, sink: sink, rnd: rnd}
}

func (l *Tracklist) Len() int {
	return len(l.entries)
}

func (l *Tracklist) Playtime() int {
	return l.playtime
}

// Current returns the current index, or -1.
func (l *Tracklist) Current() int {
	return l.current
}

func (l *Tracklist) HasCurrent() bool {
	return l.current >= 0
}

func (l *Tracklist) HasSnapshot() bool {
	return l.snapshot != nil
}

// dropSnapshot forgets the revert snapshot.
func (l *Tracklist) dropSnapshot() {
	l.snapshot = nil
}

// Entry returns the entry at i, nil when out of range.
func (l *Tracklist) Entry(i int) *Entry {
	if i < 0 || i >= len(l.entries) {
		return nil
	}
	return l.entries[i]
}

// Tracks returns the tracks in play order.
func (l *Tracklist) Tracks() []*model.Track {
	tracks := make([]*model.Track, len(l.entries))
	for i, e := range l.entries {
		tracks[i] = e.Track
	}
	return tracks
}

// Insert adds tracks at position, or appends them when position is out of range.
// The tracks are copied, the caller keeps ownership of its values.
func (l *Tracklist) Insert(tracks []*model.Track, position int) {
	if len(tracks) == 0 {
		return
	}
	if position < 0 || position > len(l.entries) {
		position = len(l.entries)
	}
	l.snapshot = l.Tracks()

	added := make([]*Entry, len(tracks))
	for i, t := range tracks {
		added[i] = &Entry{ID: uuid.NewString(), Track: t.Clone()}
		l.playtime += t.Length()
	}

	entries := make([]*Entry, 0, len(l.entries)+len(added))
	entries = append(entries, l.entries[:position]...)
	entries = append(entries, added...)
	entries = append(entries, l.entries[position:]...)
	l.entries = entries

	if l.current >= position {
		l.current += len(added)
	}
	l.changed()
}

// Replace swaps the whole content. Nil tracks clears the list.
// A stop is issued first when something was current and playNow is false.
func (l *Tracklist) Replace(tracks []*model.Track, playNow bool) {
	previous := l.Tracks()

	if l.current >= 0 && !playNow {
		l.sink.Stop()
	}

	l.entries = nil
	l.current = -1
	l.playtime = 0

	if tracks == nil {
		l.sink.TracklistChanged([]*Entry{}, 0)
	} else if len(tracks) == 0 {
		l.changed()
	} else {
		l.Insert(tracks, -1)
	}
	l.snapshot = previous
}

// Clear empties the list.
func (l *Tracklist) Clear() {
	l.Replace(nil, false)
}

// RemoveSelection removes the entries at indices, or every other entry when
// invert is set. Out of range and duplicate indices are ignored.
func (l *Tracklist) RemoveSelection(indices []int, invert bool) {
	selected := make(map[int]bool, len(indices))
	for _, i := range indices {
		if i >= 0 && i < len(l.entries) {
			selected[i] = true
		}
	}

	selectedPlaytime := 0
	for i := range selected {
		selectedPlaytime += l.entries[i].Track.Length()
	}

	l.snapshot = l.Tracks()
	hadCurrent := l.current >= 0

	if invert {
		l.playtime = selectedPlaytime
	} else {
		l.playtime -= selectedPlaytime
	}

	kept := make([]*Entry, 0, len(l.entries))
	newCurrent := -1
	for i, e := range l.entries {
		if selected[i] == invert {
			if i == l.current {
				newCurrent = len(kept)
			}
			kept = append(kept, e)
		}
	}
	l.entries = kept
	l.current = newCurrent

	if hadCurrent && l.current < 0 {
		l.sink.Stop()
	}
	l.changed()
}

// Revert restores the previous sequence, and keeps the replaced one as the new
// snapshot. It returns false when there is nothing to revert to.
func (l *Tracklist) Revert() bool {
	if l.snapshot == nil {
		return false
	}
	l.Replace(l.snapshot, false)
	return true
}

// Shuffle randomly reorders the entries. The current entry stays current.
func (l *Tracklist) Shuffle() {
	l.snapshot = l.Tracks()

	var current *Entry
	if l.current >= 0 {
		current = l.entries[l.current]
	}

	swap := func(i, j int) {
		l.entries[i], l.entries[j] = l.entries[j], l.entries[i]
	}
	if l.rnd != nil {
		l.rnd.Shuffle(len(l.entries), swap)
	} else {
		rand.Shuffle(len(l.entries), swap)
	}

	if current != nil {
		for i, e := range l.entries {
			if e == current {
				l.current = i
				break
			}
		}
	}
	l.changed()
}

// Mark makes i the current entry, in the given state. The previous current
// entry goes back to Unmarked, its failed flag untouched.
func (l *Tracklist) Mark(i int, state State) {
	if l.current >= 0 {
		l.entries[l.current].State = Unmarked
	}
	l.current = i
	l.entries[i].State = state
}

// Unmark clears the current marker.
func (l *Tracklist) Unmark() {
	if l.current >= 0 {
		l.entries[l.current].State = Unmarked
	}
	l.current = -1
}

// changed renumbers the members and notifies the sink.
func (l *Tracklist) changed() {
	n := len(l.entries)
	for i, e := range l.entries {
		e.Track.SetPlaylistPos(i + 1)
		e.Track.SetPlaylistLen(n)
	}
	l.sink.TracklistChanged(l.entries, l.playtime)
}
