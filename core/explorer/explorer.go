package explorer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"Decibel/core/bus"
	"Decibel/core/tags"
	"Decibel/logger"
	"Decibel/model"
	"Decibel/repository"

	"golang.org/x/text/cases"
)

const (
	ModuleName = "FileExplorer"

	prefMediaFolders    = "media-folders"
	prefShowHiddenFiles = "show-hidden-files"
	prefAddByFilename   = "add-by-filename"
	prefSavedStates     = "saved-states"
	prefCurrentRoot     = "current-root"
)

var (
	ErrUnknownFolder = errors.New("unknown media folder")
	ErrFolderExists  = errors.New("media folder already exists")
	ErrOutsideRoot   = errors.New("path is outside the current media folder")
	ErrNoRoot        = errors.New("no media folder selected")
)

// EntryType tells directories and media files apart.
type EntryType string

const (
	TypeDir  EntryType = "dir"
	TypeFile EntryType = "file"
)

// Entry is one row of a directory listing.
type Entry struct {
	Name string    `json:"name"`
	Path string    `json:"path"`
	Type EntryType `json:"type"`
}

// Node is an entry with the listing of its children when it is expanded.
type Node struct {
	Entry
	Expanded bool   `json:"expanded,omitempty"`
	Children []Node `json:"children,omitempty"`
}

// TrackReader builds tracks from files and directories.
type TrackReader interface {
	GetTracks(ctx context.Context, paths []string, addByFilename bool) []*model.Track
}

// DefaultFolders returns the media folders used until the user configures some.
func DefaultFolders() map[string]string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "/"
	}
	return map[string]string{"Home": home, "Root": "/"}
}

// Explorer browses the file system from a set of named media folders.
// Methods are safe for concurrent use, the remote API calls them directly.
type Explorer struct {
	poster bus.Poster
	prefs  repository.PrefsRepository
	reader TrackReader

	mu            sync.Mutex
	folders       map[string]string
	showHidden    bool
	addByFilename bool
	root          string          // name of the current media folder, "" when none
	expanded      map[string]bool // expanded directories below the current root
	savedStates   map[string][]string
	watch         *watcher
}

func New(poster bus.Poster, prefs repository.PrefsRepository, reader TrackReader) *Explorer {
	return &Explorer{
		poster:      poster,
		prefs:       prefs,
		reader:      reader,
		folders:     DefaultFolders(),
		expanded:    make(map[string]bool),
		savedStates: make(map[string][]string),
	}
}

// load reads the preferences and selects the last used media folder.
func (e *Explorer) load(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	get := func(key string, dst any) {
		if _, err := e.prefs.Get(ctx, ModuleName, key, dst); err != nil {
			logger.Warn("failed to load preference", logger.Module(ModuleName), logger.String("key", key), logger.ErrorField(err))
		}
	}

	folders := map[string]string{}
	get(prefMediaFolders, &folders)
	if len(folders) > 0 {
		e.folders = folders
	}
	get(prefShowHiddenFiles, &e.showHidden)
	get(prefAddByFilename, &e.addByFilename)
	get(prefSavedStates, &e.savedStates)
	if e.savedStates == nil {
		e.savedStates = make(map[string][]string)
	}

	var root string
	get(prefCurrentRoot, &root)
	if _, ok := e.folders[root]; !ok {
		root = ""
		if names := e.folderNamesLocked(); len(names) > 0 {
			root = names[0]
		}
	}
	if root != "" {
		e.switchRootLocked(root)
	}
}

// save persists the preferences, including the tree state of the current root.
func (e *Explorer) save(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.saveStateLocked()
	values := map[string]any{
		prefMediaFolders:    e.folders,
		prefShowHiddenFiles: e.showHidden,
		prefAddByFilename:   e.addByFilename,
		prefSavedStates:     e.savedStates,
		prefCurrentRoot:     e.root,
	}
	for key, v := range values {
		if err := e.prefs.Set(ctx, ModuleName, key, v); err != nil {
			logger.Error("failed to save preference", logger.Module(ModuleName), logger.String("key", key), logger.ErrorField(err))
		}
	}
}

// Folders returns a copy of the media folders.
func (e *Explorer) Folders() map[string]string {
	e.mu.Lock()
	defer e.mu.Unlock()

	folders := make(map[string]string, len(e.folders))
	for name, path := range e.folders {
		folders[name] = path
	}
	return folders
}

func (e *Explorer) folderNamesLocked() []string {
	names := make([]string, 0, len(e.folders))
	for name := range e.folders {
		names = append(names, name)
	}
	sortFolded(names, func(s string) string { return s })
	return names
}

// Root returns the name and path of the current media folder.
func (e *Explorer) Root() (name, path string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.root, e.folders[e.root]
}

// SetRoot switches to another media folder. The tree state of the previous
// one is saved and the one of the new folder restored.
func (e *Explorer) SetRoot(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.folders[name]; !ok {
		return fmt.Errorf("%q: %w", name, ErrUnknownFolder)
	}
	if name == e.root {
		return nil
	}
	e.switchRootLocked(name)
	return nil
}

func (e *Explorer) switchRootLocked(name string) {
	e.saveStateLocked()

	e.root = name
	e.expanded = make(map[string]bool)
	for _, dir := range e.savedStates[name] {
		if isDir(dir) {
			e.expanded[dir] = true
		}
	}
	e.rewatchLocked()
}

func (e *Explorer) saveStateLocked() {
	if e.root == "" {
		return
	}
	dirs := make([]string, 0, len(e.expanded))
	for dir := range e.expanded {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	e.savedStates[e.root] = dirs
}

// SetShowHiddenFiles shows or hides dot files.
func (e *Explorer) SetShowHiddenFiles(show bool) {
	e.mu.Lock()
	changed := e.showHidden != show
	e.showHidden = show
	e.mu.Unlock()

	if changed {
		e.Refresh()
	}
}

// SetAddByFilename selects whether directories are added sorted by file name
// instead of by tags.
func (e *Explorer) SetAddByFilename(byFilename bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.addByFilename = byFilename
}

// ListDir returns the directories then the media files of dir, each sorted
// case-insensitively. Hidden entries are skipped unless enabled.
func (e *Explorer) ListDir(dir string) ([]Entry, error) {
	e.mu.Lock()
	showHidden := e.showHidden
	e.mu.Unlock()
	return listDir(dir, showHidden)
}

func listDir(dir string, showHidden bool) ([]Entry, error) {
	items, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	var dirs, files []Entry
	for _, item := range items {
		name := item.Name()
		if !showHidden && strings.HasPrefix(name, ".") {
			continue
		}
		path := filepath.Join(dir, name)
		// follow symlinks
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		switch {
		case info.IsDir():
			dirs = append(dirs, Entry{Name: name, Path: path, Type: TypeDir})
		case info.Mode().IsRegular() && tags.IsSupported(name):
			files = append(files, Entry{Name: name, Path: path, Type: TypeFile})
		}
	}

	byName := func(en Entry) string { return en.Name }
	sortFolded(dirs, byName)
	sortFolded(files, byName)
	return append(dirs, files...), nil
}

func sortFolded[T any](items []T, key func(T) string) {
	fold := cases.Fold()
	keys := make(map[string]string, len(items))
	for _, it := range items {
		k := key(it)
		keys[k] = fold.String(k)
	}
	sort.SliceStable(items, func(i, j int) bool {
		return keys[key(items[i])] < keys[key(items[j])]
	})
}

// Expand marks dir as expanded and returns its listing.
func (e *Explorer) Expand(dir string) ([]Entry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	dir = filepath.Clean(dir)
	if err := e.checkInRootLocked(dir); err != nil {
		return nil, err
	}
	entries, err := listDir(dir, e.showHidden)
	if err != nil {
		return nil, err
	}
	if !e.expanded[dir] {
		e.expanded[dir] = true
		e.watch.add(dir)
	}
	return entries, nil
}

// Collapse forgets dir and every expanded directory below it.
func (e *Explorer) Collapse(dir string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	dir = filepath.Clean(dir)
	if err := e.checkInRootLocked(dir); err != nil {
		return err
	}
	for path := range e.expanded {
		if isBelow(path, dir) {
			delete(e.expanded, path)
			e.watch.remove(path)
		}
	}
	return nil
}

func (e *Explorer) checkInRootLocked(dir string) error {
	if e.root == "" {
		return ErrNoRoot
	}
	if !isBelow(dir, e.folders[e.root]) {
		return fmt.Errorf("%s: %w", dir, ErrOutsideRoot)
	}
	return nil
}

// isBelow reports whether path is dir or one of its descendants.
func isBelow(path, dir string) bool {
	path, dir = filepath.Clean(path), filepath.Clean(dir)
	if path == dir {
		return true
	}
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// Tree lists the current media folder, descending into expanded directories.
func (e *Explorer) Tree() ([]Node, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.root == "" {
		return nil, ErrNoRoot
	}
	return e.treeLocked(e.folders[e.root])
}

func (e *Explorer) treeLocked(dir string) ([]Node, error) {
	entries, err := listDir(dir, e.showHidden)
	if err != nil {
		return nil, err
	}
	nodes := make([]Node, len(entries))
	for i, en := range entries {
		nodes[i] = Node{Entry: en}
		if en.Type != TypeDir || !e.expanded[en.Path] {
			continue
		}
		nodes[i].Expanded = true
		children, err := e.treeLocked(en.Path)
		if err != nil {
			logger.Debug("failed to list expanded directory", logger.Module(ModuleName), logger.ErrorField(err))
			continue
		}
		nodes[i].Children = children
	}
	return nodes, nil
}

// Refresh drops expanded directories that disappeared and tells listeners
// the current tree must be listed again.
func (e *Explorer) Refresh() {
	e.mu.Lock()
	if e.root == "" {
		e.mu.Unlock()
		return
	}
	for dir := range e.expanded {
		if !isDir(dir) {
			delete(e.expanded, dir)
			e.watch.remove(dir)
		}
	}
	path := e.folders[e.root]
	e.mu.Unlock()

	e.poster.Post(bus.ExplorerChanged{Path: path})
}

// Play reads the tracks of paths and either replaces the tracklist, starting
// playback, or appends them.
func (e *Explorer) Play(ctx context.Context, replace bool, paths []string) int {
	e.mu.Lock()
	byFilename := e.addByFilename
	e.mu.Unlock()

	tracks := e.reader.GetTracks(ctx, paths, byFilename)
	if replace {
		e.poster.Post(bus.TracklistSet{Tracks: tracks, PlayNow: true})
	} else {
		e.poster.Post(bus.TracklistAdd{Tracks: tracks, Position: -1})
	}
	return len(tracks)
}

// AddFolder registers a new media folder.
func (e *Explorer) AddFolder(name, path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.folders[name]; ok {
		return fmt.Errorf("%q: %w", name, ErrFolderExists)
	}
	if !isDir(path) {
		return fmt.Errorf("%s is not a directory", path)
	}
	e.folders[name] = filepath.Clean(path)
	if e.root == "" {
		e.switchRootLocked(name)
	}
	return nil
}

// RemoveFolder forgets a media folder and its saved tree state.
func (e *Explorer) RemoveFolder(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.folders[name]; !ok {
		return fmt.Errorf("%q: %w", name, ErrUnknownFolder)
	}
	delete(e.folders, name)
	delete(e.savedStates, name)
	if e.root == name {
		e.root = ""
		e.expanded = make(map[string]bool)
		e.rewatchLocked()
	}
	return nil
}

// RenameFolder renames a media folder, its saved tree state follows.
func (e *Explorer) RenameFolder(oldName, newName string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	path, ok := e.folders[oldName]
	if !ok {
		return fmt.Errorf("%q: %w", oldName, ErrUnknownFolder)
	}
	if _, ok := e.folders[newName]; ok {
		return fmt.Errorf("%q: %w", newName, ErrFolderExists)
	}
	e.folders[newName] = path
	delete(e.folders, oldName)

	if state, ok := e.savedStates[oldName]; ok {
		e.savedStates[newName] = state
		delete(e.savedStates, oldName)
	}
	if e.root == oldName {
		e.root = newName
	}
	return nil
}
