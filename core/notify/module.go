package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"Decibel/core/bus"
	"Decibel/logger"
	"Decibel/model"
	"Decibel/repository"
)

const ModuleName = "DesktopNotification"

// 默认偏好设置
const (
	DefaultBody      = "by {artist}\nfrom {album}\n\nTrack {playlist_pos} out of {playlist_len}"
	DefaultTitle     = "{title}  [{duration_str}]"
	DefaultTimeout   = 10 // seconds
	DefaultSkipTrack = false

	prefBody      = "body"
	prefTitle     = "title"
	prefTimeout   = "timeout"
	prefSkipTrack = "skip-track"

	actionSkip = "stop"
)

type settings struct {
	body      string
	title     string
	timeout   int
	skipTrack bool
}

// Module shows a desktop notification whenever a new track starts.
// It must be registered with RegisterAsync, D-Bus calls may block.
type Module struct {
	poster  bus.Poster
	prefs   repository.PrefsRepository
	connect func() (Notifier, error)

	settings settings
	notifier Notifier
	current  atomic.Uint32 // id of the notification on screen, 0 when none
	hasNext  atomic.Bool
	wg       sync.WaitGroup
}

// NewModule creates the module. connect is called once the application has started.
func NewModule(poster bus.Poster, prefs repository.PrefsRepository, connect func() (Notifier, error)) *Module {
	return &Module{
		poster:  poster,
		prefs:   prefs,
		connect: connect,
		settings: settings{
			body:      DefaultBody,
			title:     DefaultTitle,
			timeout:   DefaultTimeout,
			skipTrack: DefaultSkipTrack,
		},
	}
}

func (m *Module) Name() string {
	return ModuleName
}

func (m *Module) Subscriptions() []bus.Kind {
	return []bus.Kind{
		bus.EvtAppStarted, bus.EvtAppQuit, bus.EvtModUnloaded,
		bus.EvtNewTrack, bus.EvtStopped, bus.EvtTrackMoved,
	}
}

func (m *Module) HandleMsg(ctx context.Context, msg bus.Message) {
	switch msg := msg.(type) {
	case bus.AppStarted:
		m.start(ctx)
	case bus.NewTrack:
		m.show(msg.Track)
	case bus.TrackMoved:
		m.hasNext.Store(msg.HasNext)
	case bus.Stopped:
		m.closeCurrent()
	case bus.ModUnloaded:
		if msg.Name == ModuleName {
			m.shutdown()
		}
	case bus.AppQuit:
		m.shutdown()
	}
}

func (m *Module) start(ctx context.Context) {
	m.loadSettings(ctx)
	if m.notifier != nil {
		return
	}

	notifier, err := m.connect()
	if err != nil {
		logger.Error("initialization failed", logger.Module(ModuleName), logger.ErrorField(err))
		return
	}
	m.notifier = notifier

	m.wg.Add(1)
	go m.watchActions(notifier.ActionInvoked())
}

func (m *Module) loadSettings(ctx context.Context) {
	load := func(key string, dst any) {
		if _, err := m.prefs.Get(ctx, ModuleName, key, dst); err != nil {
			logger.Warn("failed to load preference", logger.Module(ModuleName), logger.String("key", key), logger.ErrorField(err))
		}
	}
	load(prefBody, &m.settings.body)
	load(prefTitle, &m.settings.title)
	load(prefTimeout, &m.settings.timeout)
	load(prefSkipTrack, &m.settings.skipTrack)
}

func (m *Module) show(track *model.Track) {
	if m.notifier == nil || track == nil {
		return
	}

	n := Notification{
		ReplacesID: m.current.Load(),
		Summary:    track.Format(m.settings.title),
		Body:       track.FormatHTMLSafe(m.settings.body),
		Timeout:    time.Duration(m.settings.timeout) * time.Second,
	}
	if m.settings.skipTrack && m.notifier.SupportsActions() {
		n.Actions = []string{actionSkip, "Skip track"}
	}

	id, err := m.notifier.Notify(n)
	if err != nil {
		logger.Warn("failed to show notification", logger.Module(ModuleName), logger.ErrorField(err))
		return
	}
	m.current.Store(id)
}

func (m *Module) closeCurrent() {
	id := m.current.Swap(0)
	if m.notifier == nil || id == 0 {
		return
	}
	if err := m.notifier.CloseNotification(id); err != nil {
		logger.Debug("failed to close notification", logger.Module(ModuleName), logger.ErrorField(err))
	}
}

func (m *Module) shutdown() {
	if m.notifier == nil {
		return
	}
	m.closeCurrent()
	if err := m.notifier.Close(); err != nil {
		logger.Debug("failed to close notifier", logger.Module(ModuleName), logger.ErrorField(err))
	}
	m.wg.Wait()
	m.notifier = nil
}

// watchActions runs until the notifier closes its action channel. Actions
// of other applications' notifications are ignored.
func (m *Module) watchActions(actions <-chan Action) {
	defer m.wg.Done()
	for action := range actions {
		if action.Key != actionSkip || action.ID != m.current.Load() {
			continue
		}
		if m.hasNext.Load() {
			m.poster.Post(bus.Next{})
		} else {
			m.poster.Post(bus.Stop{})
		}
	}
}
