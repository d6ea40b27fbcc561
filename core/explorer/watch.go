package explorer

import (
	"path/filepath"
	"sync"

	"Decibel/core/bus"
	"Decibel/logger"

	"github.com/fsnotify/fsnotify"
)

// watcher reports changes of the listed directories as ExplorerChanged events.
// A nil watcher ignores every call.
type watcher struct {
	fs     *fsnotify.Watcher
	poster bus.Poster
	dirs   map[string]bool
	wg     sync.WaitGroup
}

func newWatcher(poster bus.Poster) (*watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &watcher{fs: fs, poster: poster, dirs: make(map[string]bool)}
	w.wg.Add(1)
	go w.run()
	return w, nil
}

func (w *watcher) run() {
	defer w.wg.Done()
	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			// 只关心目录内容变化
			if event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.poster.Post(bus.ExplorerChanged{Path: filepath.Dir(event.Name)})
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			logger.Warn("watcher error", logger.Module(ModuleName), logger.ErrorField(err))
		}
	}
}

func (w *watcher) add(dir string) {
	if w == nil || w.dirs[dir] {
		return
	}
	if err := w.fs.Add(dir); err != nil {
		logger.Warn("watcher add failed", logger.Module(ModuleName), logger.String("path", dir), logger.ErrorField(err))
		return
	}
	w.dirs[dir] = true
}

func (w *watcher) remove(dir string) {
	if w == nil || !w.dirs[dir] {
		return
	}
	delete(w.dirs, dir)
	if err := w.fs.Remove(dir); err != nil {
		logger.Debug("watcher remove failed", logger.Module(ModuleName), logger.String("path", dir), logger.ErrorField(err))
	}
}

// reset watches exactly dirs.
func (w *watcher) reset(dirs []string) {
	if w == nil {
		return
	}
	keep := make(map[string]bool, len(dirs))
	for _, dir := range dirs {
		keep[dir] = true
	}
	for dir := range w.dirs {
		if !keep[dir] {
			w.remove(dir)
		}
	}
	for _, dir := range dirs {
		w.add(dir)
	}
}

func (w *watcher) close() error {
	if w == nil {
		return nil
	}
	err := w.fs.Close()
	w.wg.Wait()
	return err
}

func (e *Explorer) rewatchLocked() {
	if e.root == "" {
		e.watch.reset(nil)
		return
	}
	dirs := []string{e.folders[e.root]}
	for dir := range e.expanded {
		dirs = append(dirs, dir)
	}
	e.watch.reset(dirs)
}
