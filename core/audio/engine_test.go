package audio

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

// writeScript creates an executable shell script standing in for ffplay/ffprobe.
func writeScript(t *testing.T, name, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not available")
	}
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func nextEvent(t *testing.T, events <-chan EngineEvent, skipPositions bool) EngineEvent {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				t.Fatal("events channel closed")
			}
			if skipPositions && ev.Type == Position {
				continue
			}
			return ev
		case <-timeout:
			t.Fatal("no engine event within 5s")
		}
	}
}

func TestClampVolume(t *testing.T) {
	tests := map[float64]float64{-0.5: 0, 0: 0, 0.4: 0.4, 1: 1, 3: 1}
	for in, want := range tests {
		if got := ClampVolume(in); got != want {
			t.Errorf("ClampVolume(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestLocalPath(t *testing.T) {
	tests := map[string]string{
		"file:///music/Best %231.mp3": "/music/Best #1.mp3",
		"file:///a.ogg":               "/a.ogg",
		"http://radio/stream":         "http://radio/stream",
	}
	for in, want := range tests {
		if got := LocalPath(in); got != want {
			t.Errorf("LocalPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestEndOfStreamAndError(t *testing.T) {
	ok := writeScript(t, "ffplay-ok", "exit 0")
	e := NewFFPlayEngine(ok, nil, 0)
	defer e.Close()

	if err := e.Play("file:///a.ogg"); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if ev := nextEvent(t, e.Events(), true); ev.Type != EndOfStream || ev.URI != "file:///a.ogg" {
		t.Errorf("event = %+v, want end-of-stream", ev)
	}

	bad := writeScript(t, "ffplay-bad", "echo 'no such file' >&2; exit 1")
	e2 := NewFFPlayEngine(bad, nil, 0)
	defer e2.Close()

	if err := e2.Play("file:///missing.ogg"); err != nil {
		t.Fatalf("Play: %v", err)
	}
	ev := nextEvent(t, e2.Events(), true)
	if ev.Type != Error || ev.Err == nil {
		t.Errorf("event = %+v, want error", ev)
	}
}

func TestStopSuppressesExitEvent(t *testing.T) {
	slow := writeScript(t, "ffplay-slow", "sleep 10")
	e := NewFFPlayEngine(slow, nil, 0, WithTick(time.Hour))

	if err := e.Play("file:///a.ogg"); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if err := e.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := e.Pause(); err != ErrNoProcess {
		t.Errorf("Pause() after stop = %v, want ErrNoProcess", err)
	}

	e.Close()
	for ev := range e.Events() {
		t.Errorf("unexpected event after stop: %+v", ev)
	}
}

func TestPlaySupersedesPrevious(t *testing.T) {
	script := writeScript(t, "ffplay", `case "$*" in *slow*) sleep 10;; *) exit 0;; esac`)
	e := NewFFPlayEngine(script, nil, 0, WithTick(time.Hour))
	defer e.Close()

	if err := e.Play("file:///slow.ogg"); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if err := e.Play("file:///fast.ogg"); err != nil {
		t.Fatalf("Play: %v", err)
	}

	ev := nextEvent(t, e.Events(), true)
	if ev.Type != EndOfStream || ev.URI != "file:///fast.ogg" {
		t.Errorf("event = %+v, want end of fast.ogg only", ev)
	}
}

func TestPauseResume(t *testing.T) {
	slow := writeScript(t, "ffplay-slow", "sleep 10")
	e := NewFFPlayEngine(slow, nil, 0, WithTick(time.Hour))
	defer e.Close()

	if err := e.Play("file:///a.ogg"); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if err := e.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if err := e.Pause(); err != nil {
		t.Errorf("second Pause() = %v, want nil", err)
	}
	if err := e.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if err := e.Seek(30); err != nil {
		t.Fatalf("Seek: %v", err)
	}

	e.mu.Lock()
	offset := e.cur.offset
	e.mu.Unlock()
	if offset != 30*time.Second {
		t.Errorf("offset after seek = %s, want 30s", offset)
	}
}

func TestAboutToFinish(t *testing.T) {
	slow := writeScript(t, "ffplay-slow", "sleep 10")
	probe := writeScript(t, "ffprobe", `echo '{"format": {"duration": "1.0"}}'`)
	e := NewFFPlayEngine(slow, NewProber(probe), 900*time.Millisecond, WithTick(20*time.Millisecond))
	defer e.Close()

	if err := e.Play("file:///a.ogg"); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if ev := nextEvent(t, e.Events(), true); ev.Type != AboutToFinish {
		t.Errorf("event = %+v, want about-to-finish", ev)
	}
}

func TestPrebufferedDurationIsReused(t *testing.T) {
	slow := writeScript(t, "ffplay-slow", "sleep 10")
	probe := writeScript(t, "ffprobe", `echo '{"format": {"duration": "42.5"}}'`)
	e := NewFFPlayEngine(slow, NewProber(probe), 0, WithTick(time.Hour))
	defer e.Close()

	e.Prebuffer("file:///next.ogg")

	deadline := time.Now().Add(5 * time.Second)
	for {
		e.mu.Lock()
		ready := e.pre != nil && e.pre.ready
		e.mu.Unlock()
		if ready {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("prebuffer never became ready")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := e.Play("file:///next.ogg"); err != nil {
		t.Fatalf("Play: %v", err)
	}
	e.mu.Lock()
	duration, pre := e.cur.duration, e.pre
	e.mu.Unlock()
	if duration != 42.5 {
		t.Errorf("duration = %v, want the prebuffered 42.5", duration)
	}
	if pre != nil {
		t.Errorf("prebuffer should be consumed by play")
	}
}

func TestSetVolumeClampsAndShapesArgs(t *testing.T) {
	e := NewFFPlayEngine("ffplay", nil, 0)
	defer e.Close()

	if v := e.SetVolume(1.7); v != 1 {
		t.Errorf("SetVolume(1.7) = %v", v)
	}
	e.SetVolume(0.5)
	args := e.args("file:///x %23y.ogg", 12*time.Second)
	want := []string{"-nodisp", "-autoexit", "-loglevel", "error", "-volume", "50", "-ss", "12", "/x #y.ogg"}
	if len(args) != len(want) {
		t.Fatalf("args = %v", args)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Fatalf("args = %v, want %v", args, want)
		}
	}
}

func TestPlayAfterClose(t *testing.T) {
	e := NewFFPlayEngine("ffplay", nil, 0)
	e.Close()
	if err := e.Play("file:///a.ogg"); err == nil {
		t.Errorf("Play() after Close should fail")
	}
}
