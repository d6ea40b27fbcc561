package tracklist

import (
	"errors"
	"fmt"
	"testing"

	"Decibel/model"
)

func TestNextIndexWithoutRepeat(t *testing.T) {
	for n := 1; n <= 5; n++ {
		for cur := 0; cur < n; cur++ {
			seq, _ := newTestSequencer(makeTracks(n), cur, false)
			next, ok := seq.NextIndex()
			isLast := cur == n-1
			if ok == isLast {
				t.Errorf("len %d, current %d: NextIndex() ok = %v", n, cur, ok)
			}
			if ok && next != cur+1 {
				t.Errorf("len %d, current %d: NextIndex() = %d", n, cur, next)
			}
		}
	}
}

func TestNextIndexWithRepeatCycles(t *testing.T) {
	for n := 1; n <= 5; n++ {
		for start := 0; start < n; start++ {
			seq, _ := newTestSequencer(makeTracks(n), start, true)
			for k := 0; k < n; k++ {
				next, ok := seq.NextIndex()
				if !ok {
					t.Fatalf("len %d: NextIndex() reported none with repeat", n)
				}
				seq.list.Mark(next, Playing)
			}
			if seq.list.Current() != start {
				t.Errorf("len %d, start %d: ended on %d", n, start, seq.list.Current())
			}
		}
	}
}

func TestNextIndexRepeatFromLast(t *testing.T) {
	seq, _ := newTestSequencer(makeTracks(3), 2, true)
	if next, ok := seq.NextIndex(); !ok || next != 0 {
		t.Errorf("NextIndex() = (%d, %v), want (0, true)", next, ok)
	}
}

func TestNextIndexWithoutCurrent(t *testing.T) {
	seq, _ := newTestSequencer(makeTracks(3), -1, true)
	if _, ok := seq.NextIndex(); ok {
		t.Errorf("NextIndex() without current should report none")
	}
	if _, ok := seq.PreviousIndex(); ok {
		t.Errorf("PreviousIndex() without current should report none")
	}
}

func TestPreviousIndex(t *testing.T) {
	tests := []struct {
		cur    int
		repeat bool
		want   int
		wantOK bool
	}{
		{2, false, 1, true},
		{0, false, -1, false},
		{0, true, 3, true},
	}
	for _, tt := range tests {
		seq, _ := newTestSequencer(makeTracks(4), tt.cur, tt.repeat)
		got, ok := seq.PreviousIndex()
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("cur %d repeat %v: PreviousIndex() = (%d, %v), want (%d, %v)",
				tt.cur, tt.repeat, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestAdvanceSkipsFailedEntry(t *testing.T) {
	tracks := []*model.Track{makeTrack("A", 200), makeTrack("B", 100), makeTrack("C", 150)}
	seq, sink := newTestSequencer(tracks, 0, false)
	seq.list.Entry(1).Failed = true

	seq.AdvanceAfterEnd(false)

	if seq.list.Current() != 2 {
		t.Fatalf("Current() = %d, want 2", seq.list.Current())
	}
	if seq.list.Playtime() != 450 {
		t.Errorf("Playtime() = %d, want 450", seq.list.Playtime())
	}
	ev, ok := sink.last("play")
	if !ok || ev.track.Title() != "C" {
		t.Errorf("expected C to be played, got %+v", sink.events)
	}
	if sink.count("stop") != 0 {
		t.Errorf("unexpected stop")
	}
}

func TestAdvanceWithErrorNeverPicksFailed(t *testing.T) {
	tests := []struct {
		name     string
		n        int
		current  int
		failed   []int
		repeat   bool
		wantCur  int
		wantStop bool
	}{
		{"next is free", 4, 0, nil, false, 1, false},
		{"skip a run", 5, 0, []int{1, 2, 3}, false, 4, false},
		{"nothing after current", 4, 1, []int{2, 3}, false, 1, true},
		{"last without repeat", 3, 2, nil, false, 2, true},
		{"wrap with repeat", 4, 2, []int{3}, true, 0, false},
		{"all failed with repeat", 3, 1, []int{0, 2}, true, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seq, sink := newTestSequencer(makeTracks(tt.n), tt.current, tt.repeat)
			for _, i := range tt.failed {
				seq.list.Entry(i).Failed = true
			}

			seq.AdvanceAfterEnd(true)

			if !seq.list.Entry(tt.current).Failed {
				t.Errorf("ended entry was not flagged")
			}
			if (sink.count("stop") == 1) != tt.wantStop {
				t.Errorf("stops = %d, want stop %v", sink.count("stop"), tt.wantStop)
			}
			if seq.list.Current() != tt.wantCur {
				t.Errorf("Current() = %d, want %d", seq.list.Current(), tt.wantCur)
			}
			if ev, ok := sink.last("play"); ok && ev.track.Title() == makeTracks(tt.n)[tt.current].Title() {
				t.Errorf("failed entry was played again")
			}
			if sink.count("play") > 1 {
				t.Errorf("%d plays in one scan", sink.count("play"))
			}
		})
	}
}

func TestAdvanceWithRepeatMayReplayCurrent(t *testing.T) {
	seq, sink := newTestSequencer(makeTracks(3), 1, true)
	seq.list.Entry(0).Failed = true
	seq.list.Entry(2).Failed = true

	seq.AdvanceAfterEnd(false)

	if seq.list.Current() != 1 || sink.count("play") != 1 {
		t.Errorf("the only playable entry should play again, current = %d", seq.list.Current())
	}
}

func TestAdvanceWithoutCurrentDoesNothing(t *testing.T) {
	seq, sink := newTestSequencer(makeTracks(3), -1, true)
	seq.AdvanceAfterEnd(true)
	if len(sink.events) != 0 {
		t.Errorf("unexpected events %+v", sink.events)
	}
}

func TestJumpToKeepsFailedFlagOfPrevious(t *testing.T) {
	seq, sink := newTestSequencer(makeTracks(3), 0, false)
	seq.list.Entry(0).Failed = true

	r, err := seq.JumpTo(2)
	if err != nil {
		t.Fatalf("JumpTo: %v", err)
	}
	if !seq.list.Entry(0).Failed || seq.list.Entry(0).State != Unmarked {
		t.Errorf("previous entry: failed=%v state=%v", seq.list.Entry(0).Failed, seq.list.Entry(0).State)
	}
	if seq.list.Entry(2).State != Playing {
		t.Errorf("new current is not playing")
	}
	if !r.HasPrevious || r.HasNext {
		t.Errorf("reachability = %+v, want previous only", r)
	}

	wantKinds := []string{"play", "moved"}
	if len(sink.events) != len(wantKinds) {
		t.Fatalf("events = %+v", sink.events)
	}
	for i, k := range wantKinds {
		if sink.events[i].kind != k {
			t.Errorf("event %d = %s, want %s", i, sink.events[i].kind, k)
		}
	}
}

func TestJumpToOutOfRange(t *testing.T) {
	seq, sink := newTestSequencer(makeTracks(2), -1, false)
	if _, err := seq.JumpTo(2); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("JumpTo(2) err = %v, want ErrIndexOutOfRange", err)
	}
	if len(sink.events) != 0 {
		t.Errorf("unexpected events %+v", sink.events)
	}
}

func TestJumpToUnplayableSkips(t *testing.T) {
	tracks := makeTracks(3)
	seq, sink := newTestSequencer(tracks, -1, false)
	sink.unplayable[tracks[0].Path()] = true

	seq.JumpTo(0)

	if !seq.list.Entry(0).Failed {
		t.Errorf("unplayable entry was not flagged")
	}
	if seq.list.Current() != 1 {
		t.Errorf("Current() = %d, want 1", seq.list.Current())
	}
}

func TestNearEndPrebuffersNext(t *testing.T) {
	seq, sink := newTestSequencer(makeTracks(2), 0, false)
	seq.NearEnd()
	ev, ok := sink.last("prebuffer")
	if !ok || ev.track.Title() != "t1" {
		t.Fatalf("want t1 prebuffered, got %+v", sink.events)
	}

	seq, sink = newTestSequencer(makeTracks(2), 1, false)
	seq.NearEnd()
	if sink.count("prebuffer") != 0 {
		t.Errorf("nothing should be prebuffered at the end of the list")
	}
}

func TestSetRepeatReportsMove(t *testing.T) {
	seq, sink := newTestSequencer(makeTracks(2), 1, false)
	seq.SetRepeat(true)
	ev, ok := sink.last("moved")
	if !ok || !ev.hasNext || !ev.hasPrev {
		t.Errorf("moved = %+v, want both reachable", ev)
	}

	seq, sink = newTestSequencer(makeTracks(2), -1, false)
	seq.SetRepeat(true)
	if sink.count("moved") != 0 {
		t.Errorf("no move expected without current entry")
	}
}

func TestStoppedAndPaused(t *testing.T) {
	seq, _ := newTestSequencer(makeTracks(2), 1, false)
	seq.SetPaused(true)
	if seq.list.Entry(1).State != Paused {
		t.Errorf("state = %v, want paused", seq.list.Entry(1).State)
	}
	seq.SetPaused(false)
	if seq.list.Entry(1).State != Playing {
		t.Errorf("state = %v, want playing", seq.list.Entry(1).State)
	}

	seq.list.Entry(1).Failed = true
	seq.Stopped()
	if seq.list.HasCurrent() || !seq.list.Entry(1).Failed {
		t.Errorf("Stopped() should clear the mark and keep the failed flag")
	}
}

func TestStoppedReportsStatuses(t *testing.T) {
	seq, sink := newTestSequencer(makeTracks(3), 2, false)
	seq.list.Entry(2).Failed = true

	seq.Stopped()

	ev, ok := sink.last("moved")
	if !ok {
		t.Fatalf("no move reported, events = %+v", sink.events)
	}
	want := []string{"unmarked", "unmarked", "failed"}
	if ev.current != -1 || fmt.Sprint(ev.statuses) != fmt.Sprint(want) {
		t.Errorf("moved = current %d statuses %v, want -1 %v", ev.current, ev.statuses, want)
	}

	sink.reset()
	seq.Stopped()
	if len(sink.events) != 0 {
		t.Errorf("a second stop should not report anything, got %+v", sink.events)
	}
}

func TestIsCurrent(t *testing.T) {
	tracks := makeTracks(2)
	seq, _ := newTestSequencer(tracks, 1, false)

	uri, err := tracks[1].URI()
	if err != nil {
		t.Fatal(err)
	}
	if !seq.IsCurrent(uri) {
		t.Errorf("IsCurrent(%s) = false", uri)
	}
	other, _ := tracks[0].URI()
	if seq.IsCurrent(other) || seq.IsCurrent("") {
		t.Errorf("IsCurrent should only match the current entry")
	}

	seq.Stopped()
	if seq.IsCurrent(uri) {
		t.Errorf("IsCurrent without a current entry should be false")
	}
}

func TestTogglePauseStartsFromTop(t *testing.T) {
	seq, sink := newTestSequencer(makeTracks(3), -1, false)
	if !seq.TogglePause() {
		t.Fatalf("TogglePause() = false")
	}
	if seq.list.Current() != 0 || sink.count("play") != 1 {
		t.Errorf("expected index 0 to start")
	}
	if seq.TogglePause() {
		t.Errorf("TogglePause() with a current entry should leave it to the player")
	}
}

func TestReplacePlayNow(t *testing.T) {
	seq, sink := newTestSequencer(makeTracks(2), 1, false)
	seq.Replace(makeTracks(3), true)

	if seq.list.Current() != 0 {
		t.Errorf("Current() = %d, want 0", seq.list.Current())
	}
	if sink.count("stop") != 0 || sink.count("play") != 1 {
		t.Errorf("events = %+v", sink.events)
	}
	if sink.count("moved") != 1 {
		t.Errorf("%d moves, want 1", sink.count("moved"))
	}
	if ev, _ := sink.last("moved"); ev.current != 0 || ev.statuses[0] != "playing" {
		t.Errorf("moved = %+v, want index 0 playing", ev)
	}
}

func TestWrappersReportMoves(t *testing.T) {
	ops := map[string]func(*Sequencer){
		"insert":  func(s *Sequencer) { s.Insert(makeTracks(1), -1) },
		"remove":  func(s *Sequencer) { s.RemoveSelection([]int{0}, false) },
		"shuffle": func(s *Sequencer) { s.Shuffle() },
		"revert":  func(s *Sequencer) { s.Revert() },
		"replace": func(s *Sequencer) { s.Replace(nil, false) },
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			seq, sink := newTestSequencer(makeTracks(3), 1, false)
			op(seq)
			if sink.count("moved") != 1 {
				t.Errorf("%s: %d moves, want 1", name, sink.count("moved"))
			}
		})
	}
}

func TestRestoreAndSession(t *testing.T) {
	seq, sink := newTestSequencer(nil, -1, false)
	seq.Restore(&model.Session{Tracks: makeTracks(3), Current: 2})

	if seq.list.Len() != 3 || seq.list.HasCurrent() || seq.list.HasSnapshot() {
		t.Fatalf("restore: len %d current %d snapshot %v", seq.list.Len(), seq.list.Current(), seq.list.HasSnapshot())
	}
	if sink.count("play") != 0 {
		t.Errorf("restore should not start playback")
	}
	if s := seq.Session(); s.Current != 2 || len(s.Tracks) != 3 {
		t.Errorf("Session() = %d tracks, current %d", len(s.Tracks), s.Current)
	}

	seq.TogglePause()
	if seq.list.Current() != 2 {
		t.Errorf("TogglePause() started %d, want the restored 2", seq.list.Current())
	}
	if fmt.Sprint(seq.Session().Current) != "2" {
		t.Errorf("Session().Current = %d", seq.Session().Current)
	}
}
