package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"Decibel/logger"
)

// FFPlayEngine plays each resource with its own `ffplay -nodisp -autoexit`
// process. Pause and resume stop and continue the process; seeking restarts
// it at the requested offset.
type FFPlayEngine struct {
	ffplayPath string
	prober     *Prober // nil disables durations, so no about-to-finish
	nearEnd    time.Duration
	tick       time.Duration

	mu     sync.Mutex
	volume float64
	cur    *playback // nil when stopped
	pre    *prebuffer
	closed bool

	events    chan EngineEvent
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

type playback struct {
	uri    string
	cmd    *exec.Cmd
	cancel context.CancelFunc

	offset      time.Duration
	started     time.Time
	pausedAt    time.Time // zero while running
	pausedTotal time.Duration
	duration    float64 // seconds, 0 while unknown
}

func (p *playback) paused() bool {
	return !p.pausedAt.IsZero()
}

func (p *playback) elapsed(now time.Time) time.Duration {
	if p.paused() {
		now = p.pausedAt
	}
	return p.offset + now.Sub(p.started) - p.pausedTotal
}

type prebuffer struct {
	uri      string
	cancel   context.CancelFunc
	duration float64
	ready    bool
}

// EngineOption tunes an FFPlayEngine.
type EngineOption func(*FFPlayEngine)

// WithTick sets how often the position is sampled.
func WithTick(d time.Duration) EngineOption {
	return func(e *FFPlayEngine) {
		e.tick = d
	}
}

// NewFFPlayEngine creates an engine. nearEnd is how long before the end of a
// track AboutToFinish is reported.
func NewFFPlayEngine(ffplayPath string, prober *Prober, nearEnd time.Duration, opts ...EngineOption) *FFPlayEngine {
	if ffplayPath == "" {
		ffplayPath = "ffplay"
	}
	e := &FFPlayEngine{
		ffplayPath: ffplayPath,
		prober:     prober,
		nearEnd:    nearEnd,
		tick:       250 * time.Millisecond,
		volume:     1,
		events:     make(chan EngineEvent, 32),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *FFPlayEngine) Events() <-chan EngineEvent {
	return e.events
}

func (e *FFPlayEngine) Play(uri string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return errors.New("engine closed")
	}
	e.stopLocked()

	var duration float64
	if e.pre != nil {
		if e.pre.uri == uri && e.pre.ready {
			duration = e.pre.duration
		}
		e.pre.cancel()
		e.pre = nil
	}

	return e.startLocked(uri, 0, duration, false)
}

func (e *FFPlayEngine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stopLocked()
	if e.pre != nil {
		e.pre.cancel()
		e.pre = nil
	}
	return nil
}

func (e *FFPlayEngine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cur == nil {
		return ErrNoProcess
	}
	if e.cur.paused() {
		return nil
	}
	if err := pauseProcess(e.cur.cmd.Process); err != nil {
		return fmt.Errorf("failed to pause ffplay: %w", err)
	}
	e.cur.pausedAt = time.Now()
	return nil
}

func (e *FFPlayEngine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cur == nil {
		return ErrNoProcess
	}
	if !e.cur.paused() {
		return nil
	}
	if err := resumeProcess(e.cur.cmd.Process); err != nil {
		return fmt.Errorf("failed to resume ffplay: %w", err)
	}
	e.cur.pausedTotal += time.Since(e.cur.pausedAt)
	e.cur.pausedAt = time.Time{}
	return nil
}

// Seek restarts the current resource at the given offset. A paused playback
// stays paused.
func (e *FFPlayEngine) Seek(seconds int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cur == nil {
		return ErrNoProcess
	}
	if seconds < 0 {
		seconds = 0
	}
	uri, duration, paused := e.cur.uri, e.cur.duration, e.cur.paused()
	e.stopLocked()
	return e.startLocked(uri, time.Duration(seconds)*time.Second, duration, paused)
}

// SetVolume takes effect when the next process starts.
func (e *FFPlayEngine) SetVolume(v float64) float64 {
	v = ClampVolume(v)
	e.mu.Lock()
	e.volume = v
	e.mu.Unlock()
	return v
}

// Prebuffer probes the duration of uri ahead of time.
func (e *FFPlayEngine) Prebuffer(uri string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || e.prober == nil {
		return
	}
	if e.pre != nil {
		if e.pre.uri == uri {
			return
		}
		e.pre.cancel()
	}

	ctx, cancel := context.WithCancel(context.Background())
	pre := &prebuffer{uri: uri, cancel: cancel}
	e.pre = pre

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		d, err := e.prober.Duration(ctx, LocalPath(uri))

		e.mu.Lock()
		defer e.mu.Unlock()
		if e.pre != pre {
			return
		}
		if err != nil {
			logger.Debug("prebuffer probe failed", logger.String("uri", uri), logger.ErrorField(err))
			return
		}
		pre.duration = d
		pre.ready = true
	}()
}

// Close stops playback and waits for the helper goroutines. Events() is
// closed afterwards.
func (e *FFPlayEngine) Close() error {
	e.closeOnce.Do(func() {
		close(e.done)

		e.mu.Lock()
		e.closed = true
		e.stopLocked()
		if e.pre != nil {
			e.pre.cancel()
			e.pre = nil
		}
		e.mu.Unlock()

		e.wg.Wait()
		close(e.events)
	})
	return nil
}

func (e *FFPlayEngine) args(uri string, offset time.Duration) []string {
	args := []string{
		"-nodisp", "-autoexit",
		"-loglevel", "error",
		"-volume", strconv.Itoa(int(math.Round(e.volume * 100))),
	}
	if offset > 0 {
		args = append(args, "-ss", strconv.Itoa(int(offset/time.Second)))
	}
	return append(args, LocalPath(uri))
}

func (e *FFPlayEngine) startLocked(uri string, offset time.Duration, duration float64, paused bool) error {
	cmd := exec.Command(e.ffplayPath, e.args(uri, offset)...)
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffplay for %s: %w", uri, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	pb := &playback{
		uri:      uri,
		cmd:      cmd,
		cancel:   cancel,
		offset:   offset,
		started:  time.Now(),
		duration: duration,
	}
	if paused {
		if err := pauseProcess(cmd.Process); err == nil {
			pb.pausedAt = pb.started
		}
	}
	e.cur = pb

	logger.Debug("ffplay started",
		logger.String("uri", uri),
		logger.Duration("offset", offset),
		logger.Int("pid", cmd.Process.Pid))

	e.wg.Add(2)
	go e.wait(pb, stderr)
	go e.monitor(ctx, pb)
	return nil
}

// stopLocked kills the current process. Its exit is not reported.
func (e *FFPlayEngine) stopLocked() {
	pb := e.cur
	if pb == nil {
		return
	}
	e.cur = nil
	pb.cancel()
	if err := pb.cmd.Process.Kill(); err != nil {
		logger.Debug("failed to kill ffplay", logger.ErrorField(err))
	}
}

func (e *FFPlayEngine) wait(pb *playback, stderr *bytes.Buffer) {
	defer e.wg.Done()
	err := pb.cmd.Wait()
	pb.cancel()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cur != pb {
		return
	}
	e.cur = nil

	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		e.sendLocked(EngineEvent{Type: Error, URI: pb.uri, Err: fmt.Errorf("ffplay: %w: %s", err, msg)})
		return
	}
	e.sendLocked(EngineEvent{Type: EndOfStream, URI: pb.uri})
}

// monitor reports the position every second and AboutToFinish once.
func (e *FFPlayEngine) monitor(ctx context.Context, pb *playback) {
	defer e.wg.Done()

	e.mu.Lock()
	needProbe := pb.duration == 0 && e.prober != nil
	e.mu.Unlock()
	if needProbe {
		d, err := e.prober.Duration(ctx, LocalPath(pb.uri))
		if err != nil {
			logger.Debug("duration probe failed", logger.String("uri", pb.uri), logger.ErrorField(err))
		} else {
			e.mu.Lock()
			pb.duration = d
			e.mu.Unlock()
		}
	}

	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()

	lastSecond := -1
	notified := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		e.mu.Lock()
		if e.cur != pb {
			e.mu.Unlock()
			return
		}
		elapsed := pb.elapsed(time.Now())
		if s := int(elapsed / time.Second); s != lastSecond {
			lastSecond = s
			e.sendLocked(EngineEvent{Type: Position, URI: pb.uri, Position: elapsed})
		}
		if !notified && pb.duration > 0 {
			total := time.Duration(pb.duration * float64(time.Second))
			if elapsed >= total-e.nearEnd {
				notified = true
				e.sendLocked(EngineEvent{Type: AboutToFinish, URI: pb.uri})
			}
		}
		e.mu.Unlock()
	}
}

// sendLocked delivers ev unless the engine is closing. Holding mu while
// sending keeps superseded events out of the channel.
func (e *FFPlayEngine) sendLocked(ev EngineEvent) {
	select {
	case e.events <- ev:
	case <-e.done:
	}
}
