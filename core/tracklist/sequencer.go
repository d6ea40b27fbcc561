package tracklist

import (
	"errors"
	"fmt"
	"math/rand"

	"Decibel/logger"
	"Decibel/model"
)

// ErrIndexOutOfRange is returned by JumpTo for an index outside the list.
var ErrIndexOutOfRange = errors.New("tracklist index out of range")

// PlaybackSink receives the decisions of a Sequencer.
type PlaybackSink interface {
	Sink
	// Play starts the track. An error means the track cannot be played at all.
	Play(track *model.Track) error
	Prebuffer(track *model.Track)
	// TrackMoved reports the current index, -1 for none, with every entry.
	TrackMoved(r Reachability, current int, entries []*Entry)
}

// Reachability tells whether previous/next commands would move anywhere.
type Reachability struct {
	HasPrevious bool
	HasNext     bool
}

// Sequencer decides what plays next over a Tracklist.
type Sequencer struct {
	list   *Tracklist
	repeat bool
	sink   PlaybackSink

	// resume is the index restored from a saved session, -1 when none.
	resume int
}

func NewSequencer(sink PlaybackSink, rnd *rand.Rand) *Sequencer {
	return &Sequencer{
		list:   New(sink, rnd),
		sink:   sink,
		resume: -1,
	}
}

// List gives read access to the underlying tracklist.
func (s *Sequencer) List() *Tracklist {
	return s.list
}

func (s *Sequencer) Repeat() bool {
	return s.repeat
}

// NextIndex returns the index that a next command would play.
func (s *Sequencer) NextIndex() (int, bool) {
	cur := s.list.Current()
	switch {
	case cur < 0:
		return -1, false
	case cur < s.list.Len()-1:
		return cur + 1, true
	case s.repeat:
		return 0, true
	}
	return -1, false
}

// PreviousIndex returns the index that a previous command would play.
func (s *Sequencer) PreviousIndex() (int, bool) {
	cur := s.list.Current()
	switch {
	case cur < 0:
		return -1, false
	case cur > 0:
		return cur - 1, true
	case s.repeat:
		return s.list.Len() - 1, true
	}
	return -1, false
}

func (s *Sequencer) reachability() Reachability {
	_, hasPrevious := s.PreviousIndex()
	_, hasNext := s.NextIndex()
	return Reachability{HasPrevious: hasPrevious, HasNext: hasNext}
}

func (s *Sequencer) moved() Reachability {
	r := s.reachability()
	s.sink.TrackMoved(r, s.list.Current(), s.list.entries)
	return r
}

// IsCurrent reports whether uri locates the track of the current entry.
// Engine events name the resource they are about, this tells stale ones apart.
func (s *Sequencer) IsCurrent(uri string) bool {
	e := s.list.Entry(s.list.Current())
	if e == nil {
		return false
	}
	cur, err := e.Track.URI()
	return err == nil && cur == uri
}

// JumpTo makes index i current and starts it.
// A track that cannot be started is flagged as failed and skipped.
func (s *Sequencer) JumpTo(i int) (Reachability, error) {
	if i < 0 || i >= s.list.Len() {
		return s.reachability(), fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, i, s.list.Len())
	}

	s.resume = -1
	s.list.Mark(i, Playing)
	entry := s.list.Entry(i)
	if err := s.sink.Play(entry.Track); err != nil {
		logger.Warn("track cannot be played, skipping",
			logger.Module(ModuleName),
			logger.String("path", entry.Track.Path()),
			logger.ErrorField(err))
		entry.Failed = true
		s.AdvanceAfterEnd(false)
		return s.reachability(), nil
	}
	return s.moved(), nil
}

// AdvanceAfterEnd is called when the current track finished, withError when
// playback failed. Every reachable index is tried at most once, in forward
// order, wrapping only when repeat is on. Nothing playable stops playback.
func (s *Sequencer) AdvanceAfterEnd(withError bool) {
	cur := s.list.Current()
	if cur < 0 {
		return
	}
	if withError {
		s.list.Entry(cur).Failed = true
	}

	n := s.list.Len()
	candidates := n - 1 - cur
	if s.repeat {
		candidates = n
	}

	idx := cur
	for k := 0; k < candidates; k++ {
		idx = (idx + 1) % n
		if !s.list.Entry(idx).Failed {
			s.JumpTo(idx)
			return
		}
	}
	s.sink.Stop()
}

// NearEnd asks for the likely next track to be preloaded.
// The choice is only a hint, AdvanceAfterEnd decides what really plays.
func (s *Sequencer) NearEnd() {
	if i, ok := s.NextIndex(); ok {
		s.sink.Prebuffer(s.list.Entry(i).Track)
	}
}

// Next jumps to the next track, if any.
func (s *Sequencer) Next() bool {
	i, ok := s.NextIndex()
	if ok {
		s.JumpTo(i)
	}
	return ok
}

// Previous jumps to the previous track, if any.
func (s *Sequencer) Previous() bool {
	i, ok := s.PreviousIndex()
	if ok {
		s.JumpTo(i)
	}
	return ok
}

func (s *Sequencer) SetRepeat(repeat bool) {
	s.repeat = repeat
	if s.list.HasCurrent() {
		s.moved()
	}
}

// Stopped clears the current marker once playback has stopped.
func (s *Sequencer) Stopped() {
	if !s.list.HasCurrent() {
		return
	}
	s.list.Unmark()
	s.moved()
}

func (s *Sequencer) SetPaused(paused bool) {
	cur := s.list.Current()
	if cur < 0 {
		return
	}
	if paused {
		s.list.Entry(cur).State = Paused
	} else {
		s.list.Entry(cur).State = Playing
	}
}

// TogglePause starts playback when nothing is current: from the restored
// position when there is one, else from the top. It returns true if it did.
// Pausing a playing track is the player's job.
func (s *Sequencer) TogglePause() bool {
	if s.list.HasCurrent() || s.list.Len() == 0 {
		return false
	}
	start := 0
	if s.resume >= 0 && s.resume < s.list.Len() {
		start = s.resume
	}
	s.JumpTo(start)
	return true
}

// Replace swaps the tracklist, and starts its first track when playNow is set.
func (s *Sequencer) Replace(tracks []*model.Track, playNow bool) {
	s.resume = -1
	s.list.Replace(tracks, playNow)
	if playNow && s.list.Len() > 0 {
		s.JumpTo(0)
		return
	}
	s.moved()
}

func (s *Sequencer) Insert(tracks []*model.Track, position int) {
	if len(tracks) == 0 {
		return
	}
	s.list.Insert(tracks, position)
	s.moved()
}

func (s *Sequencer) RemoveSelection(indices []int, invert bool) {
	s.list.RemoveSelection(indices, invert)
	s.moved()
}

func (s *Sequencer) Revert() bool {
	if !s.list.Revert() {
		return false
	}
	s.moved()
	return true
}

func (s *Sequencer) Shuffle() {
	s.list.Shuffle()
	s.moved()
}

// Restore loads a saved session without starting playback. The saved current
// index becomes the starting point of the next TogglePause.
func (s *Sequencer) Restore(session *model.Session) {
	if session == nil || len(session.Tracks) == 0 {
		return
	}
	s.list.Insert(session.Tracks, -1)
	s.list.dropSnapshot()
	s.resume = session.Current
	s.moved()
}

// Session returns the tracklist in a form suitable for saving.
func (s *Sequencer) Session() *model.Session {
	current := s.list.Current()
	if current < 0 {
		current = s.resume
	}
	return &model.Session{Tracks: s.list.Tracks(), Current: current}
}
