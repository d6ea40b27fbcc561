package cmd

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"Decibel/cache"
	"Decibel/config"
	"Decibel/core/audio"
	"Decibel/core/bus"
	"Decibel/core/explorer"
	"Decibel/core/notify"
	"Decibel/core/tags"
	"Decibel/core/tracklist"
	"Decibel/db"
	"Decibel/logger"
	"Decibel/repository"
	"Decibel/server"
)

// loadConfig 加载配置并初始化日志
func loadConfig() (*config.Config, error) {
	if configFile != "" {
		os.Setenv("DECIBEL_CONFIG", configFile)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger.InitLogger(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		OutputPath: cfg.LogPath,
		MaxSize:    cfg.LogMaxSize,
		MaxBackups: cfg.LogMaxBackups,
		MaxAge:     cfg.LogMaxAge,
		Compress:   cfg.LogCompress,
		Console:    cfg.LogConsole,
	})
	return cfg, nil
}

// openStores connects the preferences database and the session backend.
// The returned cleanup closes whatever was opened.
func openStores(cfg *config.Config) (repository.PrefsRepository, repository.SessionRepository, func(), error) {
	if err := db.ConnectGormDB(cfg); err != nil {
		return nil, nil, nil, err
	}
	cleanup := func() {
		if err := db.CloseGormDB(); err != nil {
			logger.Warn("failed to close database", logger.ErrorField(err))
		}
	}
	if err := db.Migrate(); err != nil {
		cleanup()
		return nil, nil, nil, err
	}
	prefs := repository.NewGormPrefsRepository(db.GormDB)

	var sessions repository.SessionRepository
	switch cfg.SessionBackend {
	case config.SessionBackendDB:
		sessions = repository.NewGormSessionRepository(db.GormDB, cfg.SessionName)
	case config.SessionBackendRedis:
		if err := cache.ConnectRedis(cfg); err != nil {
			cleanup()
			return nil, nil, nil, err
		}
		sessions = cache.NewRedisSessionStore(cache.RedisClient, cfg.SessionName, cfg.SessionTTL)
		closeDB := cleanup
		cleanup = func() {
			if err := cache.CloseRedis(); err != nil {
				logger.Warn("failed to close Redis", logger.ErrorField(err))
			}
			closeDB()
		}
	}

	logger.Info("stores ready",
		logger.String("db", cfg.DBDriver),
		logger.String("session", cfg.SessionBackend))
	return prefs, sessions, cleanup, nil
}

func connectNotifier(appName string) func() (notify.Notifier, error) {
	return func() (notify.Notifier, error) {
		n, err := notify.NewDBusNotifier(appName)
		if err != nil {
			return nil, err
		}
		return n, nil
	}
}

// runPlayer wires every module to the bus and runs until SIGINT/SIGTERM.
func runPlayer(ctx context.Context, args []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if remoteAddr != "" {
		cfg.RemoteAddr = remoteAddr
	}

	prefs, sessions, closeStores, err := openStores(cfg)
	if err != nil {
		return fmt.Errorf("open stores: %w", err)
	}
	defer closeStores()

	b := bus.New()
	prober := audio.NewProber(cfg.FFprobePath)
	reader := tags.NewReader(prober)

	tl := tracklist.NewModule(b, prefs, sessions, rand.New(rand.NewSource(time.Now().UnixNano())))
	b.Register(tl)

	engine := audio.NewFFPlayEngine(cfg.FFplayPath, prober, cfg.NearEnd)
	b.Register(audio.NewPlayer(b, engine, prefs))

	b.RegisterAsync(notify.NewModule(b, prefs, connectNotifier(cfg.NotifyAppName)))

	exp := explorer.New(b, prefs, reader)
	b.RegisterAsync(exp)

	var remote *server.Server
	if cfg.RemoteAddr != "" {
		hub := server.NewHub()
		state := server.NewState(hub)
		b.RegisterAsync(state)

		remote = server.New(cfg.RemoteAddr, server.NewAPIHandler(b, state, hub, exp, reader))
		if _, err := remote.Start(); err != nil {
			return fmt.Errorf("start remote control: %w", err)
		}
	}

	b.Post(bus.AppStarted{})
	if len(args) > 0 {
		// 命令行给出的文件替换恢复的播放列表
		tracks := reader.GetTracks(ctx, args, false)
		logger.Info("tracks from command line", logger.Int("count", len(tracks)))
		b.Post(bus.TracklistSet{Tracks: tracks, PlayNow: playNow})
	}

	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-sigs
		logger.Info("shutting down")
		b.Post(bus.AppQuit{})
		// 第二次信号强制退出
		<-sigs
		cancel()
	}()

	logger.Info("decibel started", logger.String("remote", cfg.RemoteAddr))
	runErr := b.Run(runCtx)

	if remote != nil {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := remote.Shutdown(shutdownCtx); err != nil {
			logger.Warn("remote control forced to shutdown", logger.ErrorField(err))
		}
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	logger.Info("decibel stopped")
	return nil
}
