package server

import (
	"context"
	"sync"

	"Decibel/core/bus"
	"Decibel/logger"
	"Decibel/model"
)

const ModuleName = "RemoteUI"

// TrackData is the JSON form of a tracklist entry.
type TrackData struct {
	ID          string `json:"id"`
	Status      string `json:"status"` // unmarked, playing, paused, failed
	Path        string `json:"path"`
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	Album       string `json:"album"`
	AlbumArtist string `json:"albumArtist"`
	Genre       string `json:"genre"`
	Number      int    `json:"number"`
	Disc        int    `json:"disc"`
	Date        int    `json:"date"`
	Length      int    `json:"length"`
	Duration    string `json:"duration"`
	Position    int    `json:"position"`
	Serialized  string `json:"serialized"`
}

func newTrackData(t *model.Track) TrackData {
	return TrackData{
		Path:        t.Path(),
		Title:       t.Title(),
		Artist:      t.Artist(),
		Album:       t.Album(),
		AlbumArtist: t.AlbumArtist(),
		Genre:       t.Genre(),
		Number:      t.Number(),
		Disc:        t.DiscNumber(),
		Date:        t.Date(),
		Length:      t.Length(),
		Duration:    model.FormatDuration(t.Length()),
		Position:    t.PlaylistPos(),
		Serialized:  t.Serialize(),
	}
}

// PlayerState is what remote clients get when they connect.
type PlayerState struct {
	Tracks      []TrackData `json:"tracks"`
	Playtime    int         `json:"playtime"`
	Current     *TrackData  `json:"current,omitempty"`
	Index       int         `json:"index"` // current entry, -1 for none
	HasPrevious bool        `json:"hasPrevious"`
	HasNext     bool        `json:"hasNext"`
	Status      string      `json:"status"` // stopped, playing, paused
	Position    int         `json:"position"`
	Volume      float64     `json:"volume"`
}

type tracklistData struct {
	Tracks   []TrackData `json:"tracks"`
	Playtime int         `json:"playtime"`
}

type entryData struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type trackMovedData struct {
	HasPrevious bool        `json:"hasPrevious"`
	HasNext     bool        `json:"hasNext"`
	Index       int         `json:"index"`
	Entries     []entryData `json:"entries"`
}

type positionData struct {
	Seconds int `json:"seconds"`
}

type volumeData struct {
	Value float64 `json:"value"`
}

type explorerData struct {
	Path string `json:"path"`
}

// State mirrors the player from bus events and forwards them to the hub.
type State struct {
	hub *Hub

	mu    sync.RWMutex
	state PlayerState
}

func NewState(hub *Hub) *State {
	return &State{
		hub:   hub,
		state: PlayerState{Tracks: []TrackData{}, Index: -1, Status: "stopped"},
	}
}

func (s *State) Name() string {
	return ModuleName
}

func (s *State) Subscriptions() []bus.Kind {
	return []bus.Kind{
		bus.EvtNewTrack, bus.EvtNewTracklist, bus.EvtTrackMoved,
		bus.EvtStopped, bus.EvtPaused, bus.EvtUnpaused,
		bus.EvtTrackPosition, bus.EvtVolumeChanged, bus.EvtExplorerChanged,
	}
}

func (s *State) HandleMsg(_ context.Context, msg bus.Message) {
	var (
		t    MessageType
		data any
	)

	s.mu.Lock()
	switch msg := msg.(type) {
	case bus.NewTrack:
		current := newTrackData(msg.Track)
		s.state.Current = &current
		s.state.Status = "playing"
		s.state.Position = 0
		t, data = MsgTypeNewTrack, current
	case bus.NewTracklist:
		tracks := make([]TrackData, len(msg.Tracks))
		for i, track := range msg.Tracks {
			tracks[i] = newTrackData(track)
			if i < len(msg.Entries) {
				tracks[i].ID, tracks[i].Status = msg.Entries[i].ID, msg.Entries[i].Status
			}
		}
		s.state.Tracks, s.state.Playtime = tracks, msg.Playtime
		t, data = MsgTypeNewTracklist, tracklistData{Tracks: tracks, Playtime: msg.Playtime}
	case bus.TrackMoved:
		s.state.HasPrevious, s.state.HasNext = msg.HasPrevious, msg.HasNext
		s.state.Index = msg.Current
		entries := make([]entryData, len(msg.Entries))
		for i, e := range msg.Entries {
			entries[i] = entryData{ID: e.ID, Status: e.Status}
			if i < len(s.state.Tracks) {
				s.state.Tracks[i].Status = e.Status
			}
		}
		t, data = MsgTypeTrackMoved, trackMovedData{
			HasPrevious: msg.HasPrevious,
			HasNext:     msg.HasNext,
			Index:       msg.Current,
			Entries:     entries,
		}
	case bus.Stopped:
		s.state.Current = nil
		s.state.Status = "stopped"
		s.state.Position = 0
		s.state.HasPrevious, s.state.HasNext = false, false
		s.setCurrentStatus("unmarked")
		s.state.Index = -1
		t = MsgTypeStopped
	case bus.Paused:
		s.state.Status = "paused"
		s.setCurrentStatus("paused")
		t = MsgTypePaused
	case bus.Unpaused:
		s.state.Status = "playing"
		s.setCurrentStatus("playing")
		t = MsgTypeUnpaused
	case bus.TrackPosition:
		s.state.Position = msg.Seconds
		t, data = MsgTypePosition, positionData{Seconds: msg.Seconds}
	case bus.VolumeChanged:
		s.state.Volume = msg.Value
		t, data = MsgTypeVolume, volumeData{Value: msg.Value}
	case bus.ExplorerChanged:
		t, data = MsgTypeExplorerChanged, explorerData{Path: msg.Path}
	}
	s.mu.Unlock()

	if t == "" {
		return
	}
	out, err := NewWSMessage(t, data)
	if err != nil {
		logger.Warn("failed to encode event", logger.Module(ModuleName), logger.ErrorField(err))
		return
	}
	if err := s.hub.BroadcastWSMessage(out); err != nil {
		logger.Warn("failed to broadcast event", logger.Module(ModuleName), logger.ErrorField(err))
	}
}

// setCurrentStatus updates the current entry. s.mu must be held.
func (s *State) setCurrentStatus(status string) {
	i := s.state.Index
	if i < 0 || i >= len(s.state.Tracks) {
		return
	}
	s.state.Tracks[i].Status = status
}

// Snapshot returns a copy of the mirrored state.
func (s *State) Snapshot() PlayerState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.state
	snap.Tracks = append([]TrackData(nil), s.state.Tracks...)
	if s.state.Current != nil {
		current := *s.state.Current
		snap.Current = &current
	}
	return snap
}
