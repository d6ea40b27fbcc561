package bus

// Kind identifies a command or event travelling on the bus.
// Commands ask a module to do something, events report what happened.
type Kind int

const (
	// Commands
	CmdPlay Kind = iota
	CmdStop
	CmdNext
	CmdPrevious
	CmdTogglePause
	CmdSeek
	CmdSetVolume
	CmdBuffer
	CmdJumpTo
	CmdTracklistSet
	CmdTracklistAdd
	CmdTracklistClear
	CmdTracklistShuffle
	CmdTracklistRevert
	CmdTracklistRemove
	CmdTracklistRepeat
	CmdExplorerAdd
	CmdExplorerRemove
	CmdExplorerRename

	// Events
	EvtNewTrack
	EvtNewTracklist
	EvtTrackMoved
	EvtStopped
	EvtPaused
	EvtUnpaused
	EvtTrackEndedOK
	EvtTrackEndedError
	EvtNeedBuffer
	EvtTrackPosition
	EvtVolumeChanged
	EvtAppStarted
	EvtAppQuit
	EvtModLoaded
	EvtModUnloaded
	EvtExplorerChanged

	kindCount
)

var kindNames = [kindCount]string{
	CmdPlay:             "cmd.play",
	CmdStop:             "cmd.stop",
	CmdNext:             "cmd.next",
	CmdPrevious:         "cmd.previous",
	CmdTogglePause:      "cmd.toggle-pause",
	CmdSeek:             "cmd.seek",
	CmdSetVolume:        "cmd.set-volume",
	CmdBuffer:           "cmd.buffer",
	CmdJumpTo:           "cmd.jump-to",
	CmdTracklistSet:     "cmd.tracklist-set",
	CmdTracklistAdd:     "cmd.tracklist-add",
	CmdTracklistClear:   "cmd.tracklist-clear",
	CmdTracklistShuffle: "cmd.tracklist-shuffle",
	CmdTracklistRevert:  "cmd.tracklist-revert",
	CmdTracklistRemove:  "cmd.tracklist-remove",
	CmdTracklistRepeat:  "cmd.tracklist-repeat",
	CmdExplorerAdd:      "cmd.explorer-add",
	CmdExplorerRemove:   "cmd.explorer-remove",
	CmdExplorerRename:   "cmd.explorer-rename",
	EvtNewTrack:         "evt.new-track",
	EvtNewTracklist:     "evt.new-tracklist",
	EvtTrackMoved:       "evt.track-moved",
	EvtStopped:          "evt.stopped",
	EvtPaused:           "evt.paused",
	EvtUnpaused:         "evt.unpaused",
	EvtTrackEndedOK:     "evt.track-ended-ok",
	EvtTrackEndedError:  "evt.track-ended-error",
	EvtNeedBuffer:       "evt.need-buffer",
	EvtTrackPosition:    "evt.track-position",
	EvtVolumeChanged:    "evt.volume-changed",
	EvtAppStarted:       "evt.app-started",
	EvtAppQuit:          "evt.app-quit",
	EvtModLoaded:        "evt.mod-loaded",
	EvtModUnloaded:      "evt.mod-unloaded",
	EvtExplorerChanged:  "evt.explorer-changed",
}

func (k Kind) String() string {
	if k < 0 || k >= kindCount {
		return "unknown"
	}
	return kindNames[k]
}

// IsCommand reports whether k is a command rather than an event.
func (k Kind) IsCommand() bool {
	return k >= CmdPlay && k < EvtNewTrack
}
