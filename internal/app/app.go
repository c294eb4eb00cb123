// Package app wires the client stack for one invocation: config, local
// state, the gateway client over the persistent cookie jar, the session
// store, the sync flow, and the mutation controller.
package app

import (
	"context"

	"github.com/sirupsen/logrus"

	"taskdeck/internal/api"
	"taskdeck/internal/config"
	"taskdeck/internal/datasync"
	"taskdeck/internal/localstore"
	"taskdeck/internal/mutate"
	"taskdeck/internal/session"
)

type Options struct {
	Workspace string
	// BaseURL overrides the configured backend when non-empty.
	BaseURL string
	// LogLevel overrides the configured level when non-empty.
	LogLevel string
}

type App struct {
	Config    *config.Config
	Store     *localstore.Store
	Jar       *localstore.Jar
	Client    *api.Client
	Session   *session.Store
	Flow      *datasync.Flow
	Mutations *mutate.Controller
	Log       *logrus.Entry
}

func New(opts Options) (*App, error) {
	cfg, err := config.LoadOptional(opts.Workspace)
	if err != nil {
		return nil, err
	}
	if opts.BaseURL != "" {
		cfg.Backend.BaseURL = opts.BaseURL
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := newLogger(cfg.Log.Level)

	store, err := localstore.Open(opts.Workspace)
	if err != nil {
		return nil, err
	}
	jar := store.Jar()
	client := api.NewWithJar(cfg.Backend.BaseURL, jar)
	client.Timeout = cfg.Timeout()
	client.HTTPClient.Timeout = cfg.Timeout()

	sess := session.NewStore(client, log.WithField("component", "session"))
	flow := datasync.NewFlow(client, sess, log.WithField("component", "datasync"))
	ctrl := mutate.NewController(client, flow, log.WithField("component", "mutate"))
	ctrl.Journal = store

	return &App{
		Config:    cfg,
		Store:     store,
		Jar:       jar,
		Client:    client,
		Session:   sess,
		Flow:      flow,
		Mutations: ctrl,
		Log:       log.WithField("component", "app"),
	}, nil
}

func (a *App) Close() error {
	return a.Store.Close()
}

// Bootstrap runs the initial session check and the first data fetch. A
// failed check is not fatal here; the session snapshot carries the error
// and the flow simply stays empty.
func (a *App) Bootstrap(ctx context.Context) error {
	if _, err := a.Session.Check(ctx, true); err != nil {
		return err
	}
	return a.Flow.Refresh(ctx)
}

func newLogger(level string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.WarnLevel
	}
	log.SetLevel(lvl)
	return log
}
