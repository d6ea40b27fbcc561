package tracklist

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"testing"

	"Decibel/core/audio"
	"Decibel/core/bus"
	"Decibel/model"
)

type memPrefs struct {
	values map[string]string
}

func newMemPrefs() *memPrefs {
	return &memPrefs{values: map[string]string{}}
}

func (p *memPrefs) Get(_ context.Context, module, key string, dst any) (bool, error) {
	v, ok := p.values[module+"/"+key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal([]byte(v), dst)
}

func (p *memPrefs) Set(_ context.Context, module, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	p.values[module+"/"+key] = string(data)
	return nil
}

func (p *memPrefs) Delete(_ context.Context, module, key string) error {
	delete(p.values, module+"/"+key)
	return nil
}

func (p *memPrefs) List(context.Context, string) (map[string]string, error) {
	return p.values, nil
}

type memSessions struct {
	saved *model.Session
}

func (s *memSessions) SaveSession(_ context.Context, session *model.Session) error {
	s.saved = session
	return nil
}

func (s *memSessions) LoadSession(context.Context) (*model.Session, error) {
	return s.saved, nil
}

func (s *memSessions) ClearSession(context.Context) error {
	s.saved = nil
	return nil
}

// observer collects the commands and events the tracklist module posts.
type observer struct {
	got []bus.Message
}

func (o *observer) Name() string { return "observer" }

func (o *observer) Subscriptions() []bus.Kind {
	return []bus.Kind{bus.CmdPlay, bus.CmdStop, bus.CmdBuffer, bus.EvtNewTrack, bus.EvtNewTracklist, bus.EvtTrackMoved}
}

func (o *observer) HandleMsg(_ context.Context, msg bus.Message) {
	o.got = append(o.got, msg)
}

func (o *observer) kinds() []bus.Kind {
	kinds := make([]bus.Kind, len(o.got))
	for i, m := range o.got {
		kinds[i] = m.Kind()
	}
	return kinds
}

func (o *observer) reset() {
	o.got = nil
}

func setupModule(t *testing.T) (*bus.Bus, *Module, *observer, *memPrefs, *memSessions) {
	t.Helper()
	b := bus.New()
	prefs := newMemPrefs()
	sessions := &memSessions{}
	m := NewModule(b, prefs, sessions, rand.New(rand.NewSource(3)))
	obs := &observer{}
	b.Register(m)
	b.Register(obs)
	b.Drain(context.Background())
	return b, m, obs, prefs, sessions
}

func TestModuleSetPlayNowStartsFirstTrack(t *testing.T) {
	b, m, obs, _, _ := setupModule(t)
	ctx := context.Background()

	b.Post(bus.TracklistSet{Tracks: makeTracks(2), PlayNow: true})
	b.Drain(ctx)

	if m.Sequencer().List().Current() != 0 {
		t.Fatalf("Current() = %d, want 0", m.Sequencer().List().Current())
	}

	var play *bus.Play
	var newTrack *bus.NewTrack
	for _, msg := range obs.got {
		switch msg := msg.(type) {
		case bus.Play:
			play = &msg
		case bus.NewTrack:
			newTrack = &msg
		case bus.Stop:
			t.Errorf("no stop expected")
		}
	}
	if play == nil || play.URI != "file:///music/t0.ogg" {
		t.Errorf("play = %+v", play)
	}
	if newTrack == nil || newTrack.Track.Title() != "t0" {
		t.Errorf("newTrack = %+v", newTrack)
	}
	if newTrack != nil && newTrack.Track == m.Sequencer().List().Entry(0).Track {
		t.Errorf("event should carry a copy of the track")
	}
}

func TestModuleEndOfTrackAdvances(t *testing.T) {
	b, m, obs, _, _ := setupModule(t)
	ctx := context.Background()

	b.Post(bus.TracklistSet{Tracks: makeTracks(2), PlayNow: true})
	b.Drain(ctx)
	obs.reset()

	b.Post(bus.NeedBuffer{URI: "file:///music/t0.ogg"})
	b.Post(bus.TrackEndedError{URI: "file:///music/t0.ogg"})
	b.Drain(ctx)

	want := []bus.Kind{bus.CmdBuffer, bus.CmdPlay, bus.EvtNewTrack, bus.EvtTrackMoved}
	got := obs.kinds()
	if len(got) != len(want) {
		t.Fatalf("kinds = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("kinds = %v, want %v", got, want)
		}
	}
	if !m.Sequencer().List().Entry(0).Failed {
		t.Errorf("entry 0 should be flagged failed")
	}

	obs.reset()
	b.Post(bus.TrackEndedOK{URI: "file:///music/t1.ogg"})
	b.Drain(ctx)
	if len(obs.got) != 1 || obs.got[0].Kind() != bus.CmdStop {
		t.Errorf("end of list should stop, got %v", obs.kinds())
	}

	b.Post(bus.Stopped{})
	b.Drain(ctx)
	if m.Sequencer().List().HasCurrent() {
		t.Errorf("stopped event should clear the current entry")
	}
	moved, ok := obs.got[len(obs.got)-1].(bus.TrackMoved)
	if !ok || moved.Current != -1 || moved.Entries[0].Status != "failed" {
		t.Errorf("last message = %#v, want a move showing entry 0 failed", obs.got[len(obs.got)-1])
	}
}

func TestModuleIgnoresStaleEngineEvents(t *testing.T) {
	const stale = "file:///music/t0.ogg"
	tests := []struct {
		name string
		msg  bus.Message
	}{
		{"end of stream", bus.TrackEndedOK{URI: stale}},
		{"error", bus.TrackEndedError{URI: stale, Err: errors.New("decode failed")}},
		{"near end", bus.NeedBuffer{URI: stale}},
		{"no locator", bus.TrackEndedOK{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, m, obs, _, _ := setupModule(t)
			ctx := context.Background()

			b.Post(bus.TracklistSet{Tracks: makeTracks(4), PlayNow: true})
			b.Drain(ctx)
			// the user picks t2 while the engine still reports on t0
			b.Post(bus.JumpTo{Index: 2})
			b.Post(tt.msg)
			obs.reset()
			b.Drain(ctx)

			list := m.Sequencer().List()
			if list.Current() != 2 {
				t.Errorf("Current() = %d, want 2", list.Current())
			}
			for i := 0; i < list.Len(); i++ {
				if list.Entry(i).Failed {
					t.Errorf("entry %d flagged failed", i)
				}
			}
			plays := 0
			for _, msg := range obs.got {
				switch msg.Kind() {
				case bus.CmdPlay:
					plays++
				case bus.CmdStop, bus.CmdBuffer:
					t.Errorf("unexpected %s", msg.Kind())
				}
			}
			if plays != 1 {
				t.Errorf("%d plays, want only the one for the jump", plays)
			}
		})
	}
}

// flakyEngine refuses to play the locators in broken.
type flakyEngine struct {
	broken map[string]bool
	played []string
	events chan audio.EngineEvent
}

func (e *flakyEngine) Play(uri string) error {
	if e.broken[uri] {
		return errors.New("cannot open " + uri)
	}
	e.played = append(e.played, uri)
	return nil
}

func (e *flakyEngine) Stop() error                      { return nil }
func (e *flakyEngine) Pause() error                     { return nil }
func (e *flakyEngine) Resume() error                    { return nil }
func (e *flakyEngine) Seek(int) error                   { return nil }
func (e *flakyEngine) SetVolume(v float64) float64      { return audio.ClampVolume(v) }
func (e *flakyEngine) Prebuffer(string)                 {}
func (e *flakyEngine) Events() <-chan audio.EngineEvent { return e.events }
func (e *flakyEngine) Close() error                     { return nil }

func TestModuleWithPlayerKeepsFailureOnFailedTrack(t *testing.T) {
	b, m, _, prefs, _ := setupModule(t)
	ctx := context.Background()
	engine := &flakyEngine{
		broken: map[string]bool{"file:///music/t1.ogg": true},
		events: make(chan audio.EngineEvent),
	}
	b.Register(audio.NewPlayer(b, engine, prefs))

	b.Post(bus.TracklistSet{Tracks: makeTracks(3), PlayNow: false})
	b.Drain(ctx)
	// both jumps are queued before the player tries t1
	b.Post(bus.JumpTo{Index: 1})
	b.Post(bus.JumpTo{Index: 2})
	b.Drain(ctx)

	list := m.Sequencer().List()
	if list.Current() != 2 {
		t.Fatalf("Current() = %d, want 2", list.Current())
	}
	if list.Entry(2).Failed {
		t.Errorf("t2 flagged failed although only t1 failed to play")
	}
	if len(engine.played) != 1 || engine.played[0] != "file:///music/t2.ogg" {
		t.Errorf("played = %v, want only t2", engine.played)
	}

	// the failure of the current track still counts
	engine.broken["file:///music/t0.ogg"] = true
	b.Post(bus.JumpTo{Index: 0})
	b.Drain(ctx)
	if !list.Entry(0).Failed || !list.Entry(1).Failed {
		t.Errorf("failed = %v %v, want t0 and t1 flagged once each was current", list.Entry(0).Failed, list.Entry(1).Failed)
	}
	if list.Current() != 2 || list.Entry(2).Failed {
		t.Errorf("Current() = %d, want 2 after skipping t0 and t1", list.Current())
	}
}

func TestModuleReportsEntryStatuses(t *testing.T) {
	b, m, obs, _, _ := setupModule(t)
	ctx := context.Background()

	dup := makeTrack("dup", 10)
	b.Post(bus.TracklistSet{Tracks: []*model.Track{dup, dup}, PlayNow: false})
	b.Post(bus.JumpTo{Index: 1})
	b.Drain(ctx)

	var (
		tracklist *bus.NewTracklist
		moved     *bus.TrackMoved
	)
	for _, msg := range obs.got {
		switch msg := msg.(type) {
		case bus.NewTracklist:
			tracklist = &msg
		case bus.TrackMoved:
			moved = &msg
		}
	}
	if tracklist == nil || moved == nil {
		t.Fatalf("messages = %v", obs.kinds())
	}
	if len(tracklist.Entries) != 2 || tracklist.Entries[0].ID == tracklist.Entries[1].ID {
		t.Fatalf("entries = %+v, want two distinct slots", tracklist.Entries)
	}
	if tracklist.Entries[1].ID != m.Sequencer().List().Entry(1).ID {
		t.Errorf("entry ids do not follow the list")
	}
	if moved.Current != 1 || moved.Entries[1].Status != "playing" || moved.Entries[0].Status != "unmarked" {
		t.Errorf("moved = %+v, want slot 1 playing", moved)
	}
}

func TestModuleClearEmitsEmptyTracklist(t *testing.T) {
	b, _, obs, _, _ := setupModule(t)

	b.Post(bus.TracklistClear{})
	b.Drain(context.Background())

	if len(obs.got) == 0 {
		t.Fatal("no messages posted")
	}
	nt, ok := obs.got[0].(bus.NewTracklist)
	if !ok || len(nt.Tracks) != 0 || nt.Playtime != 0 {
		t.Errorf("first message = %#v, want an empty tracklist", obs.got[0])
	}
	for _, k := range obs.kinds() {
		if k == bus.CmdStop {
			t.Errorf("no stop expected on an idle clear")
		}
	}
}

func TestModuleRepeatPersists(t *testing.T) {
	b, m, _, prefs, _ := setupModule(t)
	ctx := context.Background()

	b.Post(bus.TracklistRepeat{Repeat: true})
	b.Drain(ctx)

	if !m.Sequencer().Repeat() {
		t.Errorf("repeat not enabled")
	}
	if prefs.values[ModuleName+"/"+prefRepeat] != "true" {
		t.Errorf("repeat-status pref = %q", prefs.values[ModuleName+"/"+prefRepeat])
	}

	other := NewModule(b, prefs, nil, nil)
	other.HandleMsg(ctx, bus.AppStarted{})
	if !other.Sequencer().Repeat() {
		t.Errorf("repeat status not restored on start")
	}
}

func TestModuleSessionSaveAndRestore(t *testing.T) {
	b, _, _, prefs, sessions := setupModule(t)
	ctx := context.Background()

	b.Post(bus.TracklistSet{Tracks: makeTracks(3), PlayNow: false})
	b.Post(bus.JumpTo{Index: 1})
	b.Post(bus.AppQuit{})
	b.Drain(ctx)

	if sessions.saved == nil || len(sessions.saved.Tracks) != 3 || sessions.saved.Current != 1 {
		t.Fatalf("saved session = %+v", sessions.saved)
	}

	b2 := bus.New()
	restored := NewModule(b2, prefs, sessions, nil)
	restored.HandleMsg(ctx, bus.AppStarted{})
	if restored.Sequencer().List().Len() != 3 {
		t.Errorf("restored %d tracks, want 3", restored.Sequencer().List().Len())
	}
	if restored.Sequencer().List().HasCurrent() {
		t.Errorf("restore should not start playback")
	}
}
