package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"storyweave/config"
	"storyweave/logger"
	"storyweave/media"
	"storyweave/persist"
	"storyweave/story"
)

// env is the per-run state shared by all commands.
type env struct {
	cfg *config.Client
	log *zap.Logger

	store       persist.Store
	settings    *persist.SettingsStore
	media       media.Store
	resolver    *media.Resolver
	keepBlobIDs bool
	local       *media.LocalStore

	closers []func() error
	notices *noticeLog
}

type envKey struct{}

func contextWithEnv(ctx context.Context) context.Context {
	return context.WithValue(ctx, envKey{}, &env{log: zap.NewNop(), notices: &noticeLog{out: os.Stderr}})
}

func envFromContext(ctx context.Context) *env {
	if e, ok := ctx.Value(envKey{}).(*env); ok {
		return e
	}
	panic("storyctl: context carries no env")
}

func initializeEnv(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	cfg, err := config.LoadClient()
	if err != nil {
		return ctx, err
	}
	if s := cmd.String("server"); s != "" {
		cfg.ServerURL = s
	}
	if d := cmd.String("data"); d != "" {
		cfg.DataDir = d
	}
	switch {
	case cmd.Bool("debug"):
		cfg.Logger.Level = "debug"
	case os.Getenv("LOG_LEVEL") == "":
		cfg.Logger.Level = "warn"
	}
	log, err := logger.New(cfg.Logger)
	if err != nil {
		return ctx, err
	}

	e := envFromContext(ctx)
	e.cfg, e.log = cfg, log
	var kv persist.KV
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		e.closers = append(e.closers, rdb.Close)
		kv = persist.NewRedisKV(rdb, cfg.Redis.Prefix, log)
	} else {
		kv = persist.NewINIKV(filepath.Join(cfg.DataDir, "storyweave.ini"))
	}
	e.settings = persist.NewSettingsStore(kv, log)

	if cfg.ServerURL != "" {
		client := &http.Client{Timeout: cfg.HTTPTimeout}
		server := strings.TrimRight(cfg.ServerURL, "/")
		e.store = persist.NewRemoteStore(server, client)
		e.media = media.NewRemoteStore(server, client, log)
		e.resolver = media.NewResolver(server, e.media, log)
		log.Debug("Using story server", zap.String("server", server))
		return ctx, nil
	}

	open := media.OpenSQLite(filepath.Join(cfg.DataDir, "media.db"))
	if cfg.Mongo.URI != "" {
		open = media.OpenMongo(cfg.Mongo.URI, cfg.Mongo.Database)
	}
	e.local = media.NewLocalStore(open, log)
	e.closers = append(e.closers, e.local.Close)
	e.store = persist.NewKVStore(kv)
	e.media = e.local
	e.resolver = media.NewResolver("", e.local, log)
	e.keepBlobIDs = true
	log.Debug("Using local storage", zap.String("dir", cfg.DataDir))
	return ctx, nil
}

func destroyEnv(ctx context.Context, _ *cli.Command) error {
	e := envFromContext(ctx)
	var err error
	for i := len(e.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, e.closers[i]())
	}
	if e.log != nil {
		_ = e.log.Sync()
	}
	return err
}

// open starts a session; r may be nil for commands that print on their own.
func (e *env) open(ctx context.Context, r story.Renderer) (*story.Session, error) {
	return story.Open(ctx, story.Options{
		Store:       e.store,
		Settings:    e.settings,
		Media:       e.media,
		Resolver:    e.resolver,
		Renderer:    r,
		Notifier:    e.notices,
		Logger:      e.log,
		KeepBlobIDs: e.keepBlobIDs,
	})
}

// finish closes the session and reports a failed background save.
func (e *env) finish(s *story.Session) error {
	s.Close()
	return e.notices.failure()
}

// noticeLog prints notices and remembers the errors it has shown.
type noticeLog struct {
	out *os.File

	mu    sync.Mutex
	err   error
	shown []error
}

func (n *noticeLog) Notify(notice story.Notice) {
	prefix := "note"
	switch notice.Level {
	case story.LevelWarning:
		prefix = "warning"
	case story.LevelError:
		prefix = "error"
	}
	if notice.Err != nil {
		fmt.Fprintf(n.out, "%s: %s: %v\n", prefix, notice.Message, notice.Err)
	} else {
		fmt.Fprintf(n.out, "%s: %s\n", prefix, notice.Message)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if notice.Err != nil {
		n.shown = append(n.shown, notice.Err)
	}
	if notice.Level == story.LevelError && n.err == nil {
		n.err = fmt.Errorf("%s: %w", notice.Message, notice.Err)
	}
}

// reported tells whether err has already been printed as a notice.
func (n *noticeLog) reported(err error) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, s := range n.shown {
		if errors.Is(err, s) {
			return true
		}
	}
	return false
}

func (n *noticeLog) failure() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.err
}
