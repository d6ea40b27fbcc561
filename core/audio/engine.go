package audio

import (
	"errors"
	"strings"
	"time"
)

// ErrNoProcess is returned by pause/resume/seek when nothing is playing.
var ErrNoProcess = errors.New("no playback in progress")

// EventType is the kind of an EngineEvent.
type EventType int

const (
	EndOfStream EventType = iota
	Error
	AboutToFinish
	Position
)

func (t EventType) String() string {
	switch t {
	case EndOfStream:
		return "end-of-stream"
	case Error:
		return "error"
	case AboutToFinish:
		return "about-to-finish"
	case Position:
		return "position"
	}
	return "unknown"
}

// EngineEvent is reported asynchronously by an Engine, for the resource
// currently playing. Events of a superseded resource are never reported.
type EngineEvent struct {
	Type     EventType
	URI      string
	Err      error         // Error only
	Position time.Duration // Position only
}

// Engine decodes and outputs audio.
type Engine interface {
	Play(uri string) error
	Stop() error
	Pause() error
	Resume() error
	Seek(seconds int) error
	// SetVolume clamps v to 0..1 and returns the value kept.
	SetVolume(v float64) float64
	// Prebuffer prepares uri, likely the next one to play. It is only a hint.
	Prebuffer(uri string)
	Events() <-chan EngineEvent
	Close() error
}

// ClampVolume limits v to 0..1.
func ClampVolume(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// LocalPath turns a file:// locator back into a path. Other locators are
// returned as they are, ffplay understands most of them.
func LocalPath(uri string) string {
	if !strings.HasPrefix(uri, "file://") {
		return uri
	}
	return strings.ReplaceAll(strings.TrimPrefix(uri, "file://"), "%23", "#")
}
