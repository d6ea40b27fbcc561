package tracklist

import (
	"context"
	"math/rand"

	"Decibel/core/bus"
	"Decibel/logger"
	"Decibel/repository"
)

const (
	ModuleName = "Tracklist"

	prefRepeat = "repeat-status"
)

// Module owns the tracklist and reacts to playback commands and events.
// It runs on the bus control goroutine.
type Module struct {
	seq      *Sequencer
	prefs    repository.PrefsRepository
	sessions repository.SessionRepository // nil disables saving
}

// NewModule wires a sequencer to the bus. sessions may be nil.
func NewModule(poster bus.Poster, prefs repository.PrefsRepository, sessions repository.SessionRepository, rnd *rand.Rand) *Module {
	return &Module{
		seq:      NewSequencer(NewBridge(poster), rnd),
		prefs:    prefs,
		sessions: sessions,
	}
}

func (m *Module) Name() string {
	return ModuleName
}

// Sequencer exposes the state for read-only callers on the control goroutine.
func (m *Module) Sequencer() *Sequencer {
	return m.seq
}

func (m *Module) Subscriptions() []bus.Kind {
	return []bus.Kind{
		bus.CmdNext, bus.CmdPrevious, bus.CmdTogglePause, bus.CmdJumpTo,
		bus.CmdTracklistSet, bus.CmdTracklistAdd, bus.CmdTracklistClear,
		bus.CmdTracklistShuffle, bus.CmdTracklistRevert, bus.CmdTracklistRemove,
		bus.CmdTracklistRepeat,
		bus.EvtNeedBuffer, bus.EvtStopped, bus.EvtPaused, bus.EvtUnpaused,
		bus.EvtTrackEndedOK, bus.EvtTrackEndedError,
		bus.EvtAppStarted, bus.EvtAppQuit,
	}
}

func (m *Module) HandleMsg(ctx context.Context, msg bus.Message) {
	switch msg := msg.(type) {
	case bus.Next:
		m.seq.Next()
	case bus.Previous:
		m.seq.Previous()
	case bus.TogglePause:
		m.seq.TogglePause()
	case bus.JumpTo:
		if _, err := m.seq.JumpTo(msg.Index); err != nil {
			logger.Warn("jump ignored", logger.Module(ModuleName), logger.ErrorField(err))
		}

	case bus.TracklistSet:
		m.seq.Replace(msg.Tracks, msg.PlayNow)
	case bus.TracklistAdd:
		m.seq.Insert(msg.Tracks, msg.Position)
	case bus.TracklistClear:
		m.seq.Replace(nil, false)
	case bus.TracklistShuffle:
		m.seq.Shuffle()
	case bus.TracklistRevert:
		if !m.seq.Revert() {
			logger.Debug("nothing to revert to", logger.Module(ModuleName))
		}
	case bus.TracklistRemove:
		m.seq.RemoveSelection(msg.Indices, msg.Invert)
	case bus.TracklistRepeat:
		m.seq.SetRepeat(msg.Repeat)
		if err := m.prefs.Set(ctx, ModuleName, prefRepeat, msg.Repeat); err != nil {
			logger.Error("failed to save repeat status", logger.Module(ModuleName), logger.ErrorField(err))
		}

	case bus.NeedBuffer:
		if m.current(msg) {
			m.seq.NearEnd()
		}
	case bus.Stopped:
		m.seq.Stopped()
	case bus.Paused:
		m.seq.SetPaused(true)
	case bus.Unpaused:
		m.seq.SetPaused(false)
	case bus.TrackEndedOK:
		if m.current(msg) {
			m.seq.AdvanceAfterEnd(false)
		}
	case bus.TrackEndedError:
		logger.Warn("track ended with an error",
			logger.Module(ModuleName),
			logger.String("uri", msg.URI),
			logger.ErrorField(msg.Err))
		if m.current(msg) {
			m.seq.AdvanceAfterEnd(true)
		}

	case bus.AppStarted:
		m.onAppStarted(ctx)
	case bus.AppQuit:
		m.onAppQuit(ctx)
	}
}

// current filters engine events: a play command supersedes whatever the engine
// reported for the resource it replaced.
func (m *Module) current(msg bus.Message) bool {
	var uri string
	switch msg := msg.(type) {
	case bus.NeedBuffer:
		uri = msg.URI
	case bus.TrackEndedOK:
		uri = msg.URI
	case bus.TrackEndedError:
		uri = msg.URI
	}
	if m.seq.IsCurrent(uri) {
		return true
	}
	logger.Debug("stale engine event dropped",
		logger.Module(ModuleName),
		logger.String("kind", msg.Kind().String()),
		logger.String("uri", uri))
	return false
}

func (m *Module) onAppStarted(ctx context.Context) {
	var repeat bool
	if _, err := m.prefs.Get(ctx, ModuleName, prefRepeat, &repeat); err != nil {
		logger.Warn("failed to load repeat status", logger.Module(ModuleName), logger.ErrorField(err))
	}
	m.seq.SetRepeat(repeat)

	if m.sessions == nil {
		return
	}
	session, err := m.sessions.LoadSession(ctx)
	if err != nil {
		logger.Error("failed to restore tracklist", logger.Module(ModuleName), logger.ErrorField(err))
		return
	}
	if session != nil {
		m.seq.Restore(session)
		logger.Info("tracklist restored",
			logger.Module(ModuleName),
			logger.Int("tracks", len(session.Tracks)),
			logger.Int("current", session.Current))
	}
}

func (m *Module) onAppQuit(ctx context.Context) {
	if m.sessions == nil {
		return
	}
	session := m.seq.Session()
	if err := m.sessions.SaveSession(ctx, session); err != nil {
		logger.Error("failed to save tracklist", logger.Module(ModuleName), logger.ErrorField(err))
		return
	}
	logger.Info("tracklist saved", logger.Module(ModuleName), logger.Int("tracks", len(session.Tracks)))
}
