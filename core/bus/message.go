package bus

import "Decibel/model"

// Message is the payload of one bus message.
type Message interface {
	Kind() Kind
}

// Play asks the engine to start playing a resource.
type Play struct {
	URI string
}

type Stop struct{}

type Next struct{}

type Previous struct{}

type TogglePause struct{}

// Seek moves the playback position, in seconds from the start.
type Seek struct {
	Seconds int
}

// SetVolume is clamped to 0..1 by the player.
type SetVolume struct {
	Value float64
}

// Buffer asks the engine to preload the resource likely to play next.
type Buffer struct {
	URI string
}

type JumpTo struct {
	Index int
}

// TracklistSet replaces the tracklist. Nil Tracks clears it.
type TracklistSet struct {
	Tracks  []*model.Track
	PlayNow bool
}

// TracklistAdd inserts tracks at Position, or appends when Position is negative.
type TracklistAdd struct {
	Tracks   []*model.Track
	Position int
}

type TracklistClear struct{}

type TracklistShuffle struct{}

type TracklistRevert struct{}

// TracklistRemove removes the given indices, or all the others when Invert is set.
type TracklistRemove struct {
	Indices []int
	Invert  bool
}

type TracklistRepeat struct {
	Repeat bool
}

type ExplorerAdd struct {
	Name string
	Path string
}

type ExplorerRemove struct {
	Name string
}

type ExplorerRename struct {
	OldName string
	NewName string
}

// NewTrack is posted when a track becomes current.
type NewTrack struct {
	Track *model.Track
}

// EntryStatus describes one tracklist slot. ID stays with the slot when the
// list is reordered, so duplicates of a track can be told apart.
// Status is one of unmarked, playing, paused or failed.
type EntryStatus struct {
	ID     string
	Status string
}

// NewTracklist carries the whole tracklist after a structural change.
// Entries runs parallel to Tracks.
type NewTracklist struct {
	Tracks   []*model.Track
	Entries  []EntryStatus
	Playtime int
}

// TrackMoved is posted when the current entry or the reachability changed.
// Current is -1 when nothing is current.
type TrackMoved struct {
	HasPrevious bool
	HasNext     bool
	Current     int
	Entries     []EntryStatus
}

type Stopped struct{}

type Paused struct{}

type Unpaused struct{}

// TrackEndedOK, TrackEndedError and NeedBuffer name the resource they are
// about, so that events of a superseded play can be told apart.
type TrackEndedOK struct {
	URI string
}

type TrackEndedError struct {
	URI string
	Err error
}

// NeedBuffer is posted by the player shortly before the current track ends.
type NeedBuffer struct {
	URI string
}

type TrackPosition struct {
	Seconds int
}

type VolumeChanged struct {
	Value float64
}

type AppStarted struct{}

type AppQuit struct{}

type ModLoaded struct {
	Name string
}

type ModUnloaded struct {
	Name string
}

// ExplorerChanged is posted when a watched directory changed on disk.
type ExplorerChanged struct {
	Path string
}

func (Play) Kind() Kind { return CmdPlay }
func (Stop) Kind() Kind { return CmdStop }
func (Next) Kind() Kind { return CmdNext }
func (Previous) Kind() Kind { return CmdPrevious }
func (TogglePause) Kind() Kind { return CmdTogglePause }
func (Seek) Kind() Kind { return CmdSeek }
func (SetVolume) Kind() Kind { return CmdSetVolume }
func (Buffer) Kind() Kind { return CmdBuffer }
func (JumpTo) Kind() Kind { return CmdJumpTo }
func (TracklistSet) Kind() Kind { return CmdTracklistSet }
func (TracklistAdd) Kind() Kind { return CmdTracklistAdd }
func (TracklistClear) Kind() Kind { return CmdTracklistClear }
func (TracklistShuffle) Kind() Kind { return CmdTracklistShuffle }
func (TracklistRevert) Kind() Kind { return CmdTracklistRevert }
func (TracklistRemove) Kind() Kind { return CmdTracklistRemove }
func (TracklistRepeat) Kind() Kind { return CmdTracklistRepeat }
func (ExplorerAdd) Kind() Kind { return CmdExplorerAdd }
func (ExplorerRemove) Kind() Kind { return CmdExplorerRemove }
func (ExplorerRename) Kind() Kind { return CmdExplorerRename }
func (NewTrack) Kind() Kind { return EvtNewTrack }
func (NewTracklist) Kind() Kind { return EvtNewTracklist }
func (TrackMoved) Kind() Kind { return EvtTrackMoved }
func (Stopped) Kind() Kind { return EvtStopped }
func (Paused) Kind() Kind { return EvtPaused }
func (Unpaused) Kind() Kind { return EvtUnpaused }
func (TrackEndedOK) Kind() Kind { return EvtTrackEndedOK }
func (TrackEndedError) Kind() Kind { return EvtTrackEndedError }
func (NeedBuffer) Kind() Kind { return EvtNeedBuffer }
func (TrackPosition) Kind() Kind { return EvtTrackPosition }
func (VolumeChanged) Kind() Kind { return EvtVolumeChanged }
func (AppStarted) Kind() Kind { return EvtAppStarted }
func (AppQuit) Kind() Kind { return EvtAppQuit }
func (ModLoaded) Kind() Kind { return EvtModLoaded }
func (ModUnloaded) Kind() Kind { return EvtModUnloaded }
func (ExplorerChanged) Kind() Kind { return EvtExplorerChanged }
