package audio

import (
	"context"
	"sync"

	"Decibel/core/bus"
	"Decibel/logger"
	"Decibel/repository"
)

const (
	ModuleName = "AudioPlayer"

	prefVolume    = "volume"
	defaultVolume = 0.65
)

type playerState int

const (
	stateStopped playerState = iota
	statePlaying
	statePaused
)

// Player is the bus module driving an Engine. Commands go to the engine,
// engine events come back as bus events.
type Player struct {
	poster bus.Poster
	engine Engine
	prefs  repository.PrefsRepository

	state  playerState
	volume float64

	pumpOnce sync.Once
	pumpDone chan struct{}
}

func NewPlayer(poster bus.Poster, engine Engine, prefs repository.PrefsRepository) *Player {
	return &Player{
		poster:   poster,
		engine:   engine,
		prefs:    prefs,
		volume:   defaultVolume,
		pumpDone: make(chan struct{}),
	}
}

func (p *Player) Name() string {
	return ModuleName
}

func (p *Player) Subscriptions() []bus.Kind {
	return []bus.Kind{
		bus.CmdPlay, bus.CmdStop, bus.CmdTogglePause, bus.CmdSeek,
		bus.CmdSetVolume, bus.CmdBuffer,
		bus.EvtAppStarted, bus.EvtAppQuit,
	}
}

func (p *Player) HandleMsg(ctx context.Context, msg bus.Message) {
	switch msg := msg.(type) {
	case bus.Play:
		p.play(msg.URI)
	case bus.Stop:
		p.stop()
	case bus.TogglePause:
		p.togglePause()
	case bus.Seek:
		if err := p.engine.Seek(msg.Seconds); err != nil {
			logger.Warn("seek failed", logger.Module(ModuleName), logger.ErrorField(err))
		}
	case bus.SetVolume:
		p.setVolume(ctx, msg.Value)
	case bus.Buffer:
		p.engine.Prebuffer(msg.URI)
	case bus.AppStarted:
		p.onAppStarted(ctx)
	case bus.AppQuit:
		p.onAppQuit()
	}
}

func (p *Player) play(uri string) {
	if err := p.engine.Play(uri); err != nil {
		logger.Error("failed to start playback", logger.Module(ModuleName), logger.String("uri", uri), logger.ErrorField(err))
		p.poster.Post(bus.TrackEndedError{URI: uri, Err: err})
		return
	}
	if p.state == statePaused {
		p.poster.Post(bus.Unpaused{})
	}
	p.state = statePlaying
}

func (p *Player) stop() {
	if err := p.engine.Stop(); err != nil {
		logger.Warn("stop failed", logger.Module(ModuleName), logger.ErrorField(err))
	}
	p.state = stateStopped
	p.poster.Post(bus.Stopped{})
}

// togglePause does nothing when stopped, starting playback is up to the tracklist.
func (p *Player) togglePause() {
	switch p.state {
	case statePlaying:
		if err := p.engine.Pause(); err != nil {
			logger.Warn("pause failed", logger.Module(ModuleName), logger.ErrorField(err))
			return
		}
		p.state = statePaused
		p.poster.Post(bus.Paused{})
	case statePaused:
		if err := p.engine.Resume(); err != nil {
			logger.Warn("resume failed", logger.Module(ModuleName), logger.ErrorField(err))
			return
		}
		p.state = statePlaying
		p.poster.Post(bus.Unpaused{})
	}
}

func (p *Player) setVolume(ctx context.Context, v float64) {
	p.volume = p.engine.SetVolume(v)
	p.poster.Post(bus.VolumeChanged{Value: p.volume})
	if err := p.prefs.Set(ctx, ModuleName, prefVolume, p.volume); err != nil {
		logger.Error("failed to save volume", logger.Module(ModuleName), logger.ErrorField(err))
	}
}

func (p *Player) onAppStarted(ctx context.Context) {
	volume := defaultVolume
	if _, err := p.prefs.Get(ctx, ModuleName, prefVolume, &volume); err != nil {
		logger.Warn("failed to load volume", logger.Module(ModuleName), logger.ErrorField(err))
	}
	p.volume = p.engine.SetVolume(volume)
	p.poster.Post(bus.VolumeChanged{Value: p.volume})

	p.pumpOnce.Do(func() {
		go p.pump()
	})
}

func (p *Player) onAppQuit() {
	if err := p.engine.Close(); err != nil {
		logger.Warn("failed to close engine", logger.Module(ModuleName), logger.ErrorField(err))
	}
}

// pump forwards engine events to the bus until the engine is closed.
func (p *Player) pump() {
	defer close(p.pumpDone)
	for ev := range p.engine.Events() {
		switch ev.Type {
		case EndOfStream:
			p.poster.Post(bus.TrackEndedOK{URI: ev.URI})
		case Error:
			p.poster.Post(bus.TrackEndedError{URI: ev.URI, Err: ev.Err})
		case AboutToFinish:
			p.poster.Post(bus.NeedBuffer{URI: ev.URI})
		case Position:
			p.poster.Post(bus.TrackPosition{Seconds: int(ev.Position.Seconds())})
		}
	}
}
