package explorer

import (
	"context"

	"Decibel/core/bus"
	"Decibel/logger"
)

func (e *Explorer) Name() string {
	return ModuleName
}

func (e *Explorer) Subscriptions() []bus.Kind {
	return []bus.Kind{
		bus.EvtAppStarted, bus.EvtAppQuit,
		bus.CmdExplorerAdd, bus.CmdExplorerRemove, bus.CmdExplorerRename,
	}
}

func (e *Explorer) HandleMsg(ctx context.Context, msg bus.Message) {
	var err error
	switch msg := msg.(type) {
	case bus.AppStarted:
		e.start(ctx)
	case bus.AppQuit:
		e.stop(ctx)
	case bus.ExplorerAdd:
		err = e.AddFolder(msg.Name, msg.Path)
	case bus.ExplorerRemove:
		err = e.RemoveFolder(msg.Name)
	case bus.ExplorerRename:
		err = e.RenameFolder(msg.OldName, msg.NewName)
	}
	if err != nil {
		logger.Warn("explorer command failed", logger.Module(ModuleName), logger.String("kind", msg.Kind().String()), logger.ErrorField(err))
	}
}

func (e *Explorer) start(ctx context.Context) {
	w, err := newWatcher(e.poster)
	if err != nil {
		logger.Warn("directory watching disabled", logger.Module(ModuleName), logger.ErrorField(err))
	}

	e.mu.Lock()
	e.watch = w
	e.mu.Unlock()

	e.load(ctx)
	name, path := e.Root()
	logger.Info("explorer ready", logger.Module(ModuleName), logger.String("root", name), logger.String("path", path))
}

func (e *Explorer) stop(ctx context.Context) {
	e.save(ctx)

	e.mu.Lock()
	w := e.watch
	e.watch = nil
	e.mu.Unlock()

	if err := w.close(); err != nil {
		logger.Debug("failed to close watcher", logger.Module(ModuleName), logger.ErrorField(err))
	}
}
