package tracklist

import (
	"fmt"

	"Decibel/core/bus"
	"Decibel/logger"
	"Decibel/model"
)

// Bridge turns sequencer decisions into bus commands and events.
// Tracks leaving the control goroutine are copies, so async modules can read
// them while the tracklist keeps renumbering its own.
type Bridge struct {
	poster bus.Poster
}

func NewBridge(poster bus.Poster) *Bridge {
	return &Bridge{poster: poster}
}

func (b *Bridge) Play(track *model.Track) error {
	uri, err := track.URI()
	if err != nil {
		return fmt.Errorf("play %s: %w", track.Path(), err)
	}
	b.poster.Post(bus.Play{URI: uri})
	b.poster.Post(bus.NewTrack{Track: track.Clone()})
	return nil
}

// Prebuffer is advisory: a locator that cannot be built is only logged.
func (b *Bridge) Prebuffer(track *model.Track) {
	uri, err := track.URI()
	if err != nil {
		logger.Warn("cannot prebuffer track",
			logger.Module(ModuleName),
			logger.String("path", track.Path()),
			logger.ErrorField(err))
		return
	}
	b.poster.Post(bus.Buffer{URI: uri})
}

func (b *Bridge) Stop() {
	b.poster.Post(bus.Stop{})
}

func (b *Bridge) TrackMoved(r Reachability, current int, entries []*Entry) {
	b.poster.Post(bus.TrackMoved{
		HasPrevious: r.HasPrevious,
		HasNext:     r.HasNext,
		Current:     current,
		Entries:     entryStatuses(entries),
	})
}

func (b *Bridge) TracklistChanged(entries []*Entry, playtime int) {
	copies := make([]*model.Track, len(entries))
	for i, e := range entries {
		copies[i] = e.Track.Clone()
	}
	b.poster.Post(bus.NewTracklist{Tracks: copies, Entries: entryStatuses(entries), Playtime: playtime})
}

func entryStatuses(entries []*Entry) []bus.EntryStatus {
	statuses := make([]bus.EntryStatus, len(entries))
	for i, e := range entries {
		statuses[i] = bus.EntryStatus{ID: e.ID, Status: e.Status()}
	}
	return statuses
}
