// Package cli implements the interactive shell of the listvault client: a
// small REPL over the session manager and the sync engine.
package cli

import (
	"bufio"
	"context"
	"os"

	"listvault/internal/client/api"
	"listvault/internal/client/config"
	"listvault/internal/client/session"
	"listvault/internal/client/storage"
	"listvault/internal/client/sync"
	"listvault/internal/logging"
	"listvault/internal/netx"
)

// App wires the client together: local store, HTTP client, session manager,
// sync engine, and the connectivity monitor.
type App struct {
	config  *config.Config
	store   *storage.Store
	session *session.Manager
	engine  *sync.Engine
	monitor *netx.Monitor
	log     logging.Logger
	reader  *bufio.Reader
}

func NewApp(ctx context.Context, cfg *config.Config, log logging.Logger) (*App, error) {
	store, err := storage.Open(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	sess := session.NewManager(store, log)
	client := api.NewHTTPClient(cfg.ServerAddr, sess, log)
	sess.BindClient(client)

	monitor := netx.NewMonitor(client.Ping, cfg.ProbeInterval, log)
	engine := sync.NewEngine(client, store, sess, monitor, log)
	monitor.OnReconnect(engine.HandleReconnect)

	return &App{
		config:  cfg,
		store:   store,
		session: sess,
		engine:  engine,
		monitor: monitor,
		log:     log,
		reader:  bufio.NewReader(os.Stdin),
	}, nil
}

// Run restores any persisted session, starts the connectivity watcher, and
// enters the REPL. Blocks until the user exits or ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if err := a.session.Initialize(ctx); err != nil {
		return err
	}
	a.monitor.CheckNow(ctx)

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go a.monitor.Run(watchCtx)

	a.Root(ctx)
	return nil
}

// Close wipes the in-memory key and releases the database.
func (a *App) Close() error {
	a.session.Shutdown()
	return a.store.Close()
}

func (a *App) loggedIn() bool {
	s := a.session.State()
	return s == session.StateAuthenticated || s == session.StateKeyUnavailable
}

func (a *App) keyArmed() bool {
	return a.session.State() == session.StateAuthenticated
}
