package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"Decibel/core/bus"
	"Decibel/core/explorer"
	"Decibel/logger"

	"github.com/gorilla/websocket"
)

// Browser is the part of the file explorer the remote UI drives.
type Browser interface {
	Folders() map[string]string
	Root() (name, path string)
	SetRoot(name string) error
	Tree() ([]explorer.Node, error)
	Expand(dir string) ([]explorer.Entry, error)
	Collapse(dir string) error
	Refresh()
	Play(ctx context.Context, replace bool, paths []string) int
}

// APIHandler 处理所有API请求
type APIHandler struct {
	poster   bus.Poster
	state    *State
	hub      *Hub
	browser  Browser
	reader   explorer.TrackReader
	upgrader websocket.Upgrader
}

// NewAPIHandler 创建新的API处理器. browser and reader may be nil.
func NewAPIHandler(poster bus.Poster, state *State, hub *Hub, browser Browser, reader explorer.TrackReader) *APIHandler {
	return &APIHandler{
		poster:  poster,
		state:   state,
		hub:     hub,
		browser: browser,
		reader:  reader,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

var errBadCommand = errors.New("bad command")

type playData struct {
	Index *int `json:"index"`
}

type seekData struct {
	Seconds int `json:"seconds"`
}

type removeData struct {
	Indices []int `json:"indices"`
	Invert  bool  `json:"invert"`
}

type repeatData struct {
	Repeat bool `json:"repeat"`
}

// commandFor maps a remote command onto a bus message.
// The REST routes and the websocket share it.
func commandFor(t MessageType, data json.RawMessage) (bus.Message, error) {
	decode := func(dst any) error {
		if len(data) == 0 {
			return nil
		}
		if err := json.Unmarshal(data, dst); err != nil {
			return fmt.Errorf("%w: %s: %v", errBadCommand, t, err)
		}
		return nil
	}

	switch t {
	case MsgTypePlay:
		var d playData
		if err := decode(&d); err != nil {
			return nil, err
		}
		if d.Index != nil {
			if *d.Index < 0 {
				return nil, fmt.Errorf("%w: negative index", errBadCommand)
			}
			return bus.JumpTo{Index: *d.Index}, nil
		}
		return bus.TogglePause{}, nil
	case MsgTypeStop:
		return bus.Stop{}, nil
	case MsgTypeNext:
		return bus.Next{}, nil
	case MsgTypePrevious:
		return bus.Previous{}, nil
	case MsgTypeTogglePause:
		return bus.TogglePause{}, nil
	case MsgTypeSeek:
		var d seekData
		if err := decode(&d); err != nil {
			return nil, err
		}
		if d.Seconds < 0 {
			return nil, fmt.Errorf("%w: negative position", errBadCommand)
		}
		return bus.Seek{Seconds: d.Seconds}, nil
	case MsgTypeSetVolume:
		var d volumeData
		if err := decode(&d); err != nil {
			return nil, err
		}
		return bus.SetVolume{Value: d.Value}, nil
	case MsgTypeShuffle:
		return bus.TracklistShuffle{}, nil
	case MsgTypeRevert:
		return bus.TracklistRevert{}, nil
	case MsgTypeClear:
		return bus.TracklistClear{}, nil
	case MsgTypeRemove:
		var d removeData
		if err := decode(&d); err != nil {
			return nil, err
		}
		return bus.TracklistRemove{Indices: d.Indices, Invert: d.Invert}, nil
	case MsgTypeRepeat:
		var d repeatData
		if err := decode(&d); err != nil {
			return nil, err
		}
		return bus.TracklistRepeat{Repeat: d.Repeat}, nil
	}
	return nil, fmt.Errorf("%w: unknown type %q", errBadCommand, t)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("failed to write response", logger.ErrorField(err))
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, ErrorData{Message: err.Error()})
}

// readBody returns the raw request body, nil when empty.
func readBody(r *http.Request) (json.RawMessage, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("%w: invalid JSON body", errBadCommand)
	}
	return data, nil
}

// CommandHandler returns a handler posting the command t.
func (h *APIHandler) CommandHandler(t MessageType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := readBody(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		msg, err := commandFor(t, data)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		h.poster.Post(msg)
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "ok"})
	}
}

// StateHandler GET /api/state
func (h *APIHandler) StateHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.state.Snapshot())
}

type tracklistRequest struct {
	Paths      []string `json:"paths"`
	Mode       string   `json:"mode"` // set or add
	Position   *int     `json:"position"`
	PlayNow    bool     `json:"playNow"`
	ByFilename bool     `json:"byFilename"`
}

// TracklistHandler GET/POST/DELETE /api/tracklist
func (h *APIHandler) TracklistHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		snap := h.state.Snapshot()
		writeJSON(w, http.StatusOK, tracklistData{Tracks: snap.Tracks, Playtime: snap.Playtime})

	case http.MethodDelete:
		h.poster.Post(bus.TracklistClear{})
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "ok"})

	case http.MethodPost:
		if h.reader == nil {
			http.Error(w, "track reader not available", http.StatusServiceUnavailable)
			return
		}
		var req tracklistRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if len(req.Paths) == 0 {
			http.Error(w, "paths is required", http.StatusBadRequest)
			return
		}
		tracks := h.reader.GetTracks(r.Context(), req.Paths, req.ByFilename)

		switch req.Mode {
		case "", "set":
			h.poster.Post(bus.TracklistSet{Tracks: tracks, PlayNow: req.PlayNow})
		case "add":
			position := -1
			if req.Position != nil {
				position = *req.Position
			}
			h.poster.Post(bus.TracklistAdd{Tracks: tracks, Position: position})
		default:
			http.Error(w, "mode must be set or add", http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]int{"added": len(tracks)})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type explorerView struct {
	Folders map[string]string `json:"folders"`
	Root    string            `json:"root"`
	Path    string            `json:"path"`
	Tree    []explorer.Node   `json:"tree"`
}

// ExplorerHandler GET /api/explorer
func (h *APIHandler) ExplorerHandler(w http.ResponseWriter, r *http.Request) {
	if !h.requireBrowser(w) {
		return
	}
	h.writeExplorer(w)
}

func (h *APIHandler) writeExplorer(w http.ResponseWriter) {
	name, path := h.browser.Root()
	view := explorerView{Folders: h.browser.Folders(), Root: name, Path: path, Tree: []explorer.Node{}}
	if name != "" {
		tree, err := h.browser.Tree()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		view.Tree = tree
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *APIHandler) requireBrowser(w http.ResponseWriter) bool {
	if h.browser == nil {
		http.Error(w, "explorer not available", http.StatusServiceUnavailable)
		return false
	}
	return true
}

func explorerStatus(err error) int {
	switch {
	case errors.Is(err, explorer.ErrUnknownFolder), errors.Is(err, explorer.ErrNoRoot):
		return http.StatusNotFound
	case errors.Is(err, explorer.ErrOutsideRoot), errors.Is(err, explorer.ErrFolderExists):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// ExplorerRootHandler POST /api/explorer/root {"name": ...}
func (h *APIHandler) ExplorerRootHandler(w http.ResponseWriter, r *http.Request) {
	if !h.requireBrowser(w) {
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.browser.SetRoot(req.Name); err != nil {
		writeError(w, explorerStatus(err), err)
		return
	}
	h.writeExplorer(w)
}

type dirRequest struct {
	Path string `json:"path"`
}

// ExpandHandler POST /api/explorer/expand
func (h *APIHandler) ExpandHandler(w http.ResponseWriter, r *http.Request) {
	if !h.requireBrowser(w) {
		return
	}
	var req dirRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		http.Error(w, "path is required", http.StatusBadRequest)
		return
	}
	entries, err := h.browser.Expand(req.Path)
	if err != nil {
		writeError(w, explorerStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// CollapseHandler POST /api/explorer/collapse
func (h *APIHandler) CollapseHandler(w http.ResponseWriter, r *http.Request) {
	if !h.requireBrowser(w) {
		return
	}
	var req dirRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		http.Error(w, "path is required", http.StatusBadRequest)
		return
	}
	if err := h.browser.Collapse(req.Path); err != nil {
		writeError(w, explorerStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// RefreshHandler POST /api/explorer/refresh
func (h *APIHandler) RefreshHandler(w http.ResponseWriter, r *http.Request) {
	if !h.requireBrowser(w) {
		return
	}
	h.browser.Refresh()
	h.writeExplorer(w)
}

// ExplorerPlayHandler POST /api/explorer/play {"paths": [...], "replace": bool}
func (h *APIHandler) ExplorerPlayHandler(w http.ResponseWriter, r *http.Request) {
	if !h.requireBrowser(w) {
		return
	}
	var req struct {
		Paths   []string `json:"paths"`
		Replace bool     `json:"replace"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Paths) == 0 {
		http.Error(w, "paths is required", http.StatusBadRequest)
		return
	}
	n := h.browser.Play(r.Context(), req.Replace, req.Paths)
	writeJSON(w, http.StatusAccepted, map[string]int{"added": n})
}

// FoldersHandler POST/PUT/DELETE /api/explorer/folders
// Folder changes go through the bus so the explorer module saves them.
func (h *APIHandler) FoldersHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name    string `json:"name"`
		Path    string `json:"path"`
		NewName string `json:"newName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodPost:
		if req.Path == "" {
			http.Error(w, "path is required", http.StatusBadRequest)
			return
		}
		h.poster.Post(bus.ExplorerAdd{Name: req.Name, Path: req.Path})
	case http.MethodPut:
		if req.NewName == "" {
			http.Error(w, "newName is required", http.StatusBadRequest)
			return
		}
		h.poster.Post(bus.ExplorerRename{OldName: req.Name, NewName: req.NewName})
	case http.MethodDelete:
		h.poster.Post(bus.ExplorerRemove{Name: req.Name})
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "ok"})
}

// WebSocketHandler GET /ws
func (h *APIHandler) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("WebSocket 升级失败", logger.ErrorField(err))
		return
	}

	client := NewClient(h.hub, conn)
	h.hub.Register(client)

	syncMsg, err := NewWSMessage(MsgTypeSync, h.state.Snapshot())
	if err == nil {
		client.SendMessage(syncMsg)
	}

	go client.WritePump()
	go client.ReadPump(context.Background(), h.handleWSMessage)
}

func (h *APIHandler) handleWSMessage(_ context.Context, client *Client, msg *WSMessage) {
	cmd, err := commandFor(msg.Type, msg.Data)
	if err != nil {
		if reply, e := NewWSMessage(MsgTypeError, ErrorData{Message: err.Error()}); e == nil {
			client.SendMessage(reply)
		}
		return
	}
	logger.Debug("remote command", logger.String("client", client.ID), logger.String("command", cmd.Kind().String()))
	h.poster.Post(cmd)
}
