package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-faster/errors"
	"github.com/spf13/cobra"

	"github.com/jask/unimarket/internal/catalog"
	"github.com/jask/unimarket/internal/config"
	"github.com/jask/unimarket/internal/database"
	"github.com/jask/unimarket/internal/database/repository"
	"github.com/jask/unimarket/internal/market"
	"github.com/jask/unimarket/internal/secrets"
	"github.com/jask/unimarket/internal/service"
	"github.com/jask/unimarket/internal/session"
	"github.com/jask/unimarket/internal/tui"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", market.Describe(err))
		os.Exit(1)
	}
}

// env is everything a command needs, built once per invocation.
type env struct {
	cfg     config.Config
	logger  *slog.Logger
	logSink io.Closer
	db      *sql.DB
	client  *market.Client
	store   *session.Store
	auth    *service.AuthService
	dir     *service.CategoryDirectory
	creator *service.ItemCreator
	engine  *catalog.Engine
}

func setup(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, errors.Wrap(err, "config")
	}
	logger, sink, err := newLogger(cfg.Log)
	if err != nil {
		return nil, err
	}
	e := &env{cfg: cfg, logger: logger, logSink: sink}

	e.db, err = database.Prepare(cfg.Database.Path)
	if err != nil {
		e.Close()
		return nil, errors.Wrap(err, "database")
	}

	sealer, err := secrets.NewSealer(secrets.DefaultIdentity())
	if err != nil {
		e.Close()
		return nil, err
	}
	e.store = session.NewStore(repository.NewKVRepo(e.db), sealer)
	if err := e.store.Load(ctx); err != nil {
		// an unreadable token only means signing in again
		logger.WarnContext(ctx, "stored session ignored", "error", err)
	}

	e.client, err = market.New(market.Options{
		BaseURL:       cfg.API.BaseURL,
		Timeout:       cfg.API.Timeout,
		LoginEncoding: market.LoginEncoding(cfg.API.LoginEncoding),
		Logger:        logger,
	})
	if err != nil {
		e.Close()
		return nil, err
	}

	caps := cfg.Capabilities()
	e.auth = &service.AuthService{API: e.client, Session: e.store, Logger: logger}
	e.dir = &service.CategoryDirectory{
		API:     e.client,
		Cache:   repository.NewCategoryRepo(e.db),
		Session: e.store,
		Logger:  logger,
	}
	e.creator = &service.ItemCreator{API: e.client, Session: e.store, Capabilities: caps, Logger: logger}
	e.engine = catalog.NewEngine(e.client, e.store, caps, logger)
	return e, nil
}

func (e *env) Close() {
	if e.db != nil {
		_ = e.db.Close()
	}
	if e.logSink != nil {
		_ = e.logSink.Close()
	}
}

func (e *env) imageLocator() catalog.ImageLocator {
	return catalog.ImageLocator{BaseURL: e.client.BaseURL(), Path: e.cfg.Images.Path, Extensions: e.cfg.Images.Extensions}
}

// newLogger writes to the configured file; the terminal belongs to the UI.
func newLogger(cfg config.LogConfig) (*slog.Logger, io.Closer, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(cfg.Level))); err != nil {
		return nil, nil, errors.Wrapf(err, "log level %q", cfg.Level)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, nil, errors.Wrap(err, "mkdir log dir")
	}
	f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, errors.Wrap(err, "open log file")
	}
	return slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level})), f, nil
}

// withEnv adapts a command body that needs the wired environment.
func withEnv(run func(cmd *cobra.Command, args []string, e *env) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()
		return run(cmd, args, e)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "unimarket",
		Short:         "Browse and list items on a marketplace server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          withEnv(runBrowser),
	}
	root.AddCommand(
		newHealthCmd(),
		newRegisterCmd(),
		newLoginCmd(),
		newLogoutCmd(),
		newCategoriesCmd(),
		newItemsCmd(),
		newConfigCmd(),
		newSandboxCmd(),
	)
	return root
}

func runBrowser(cmd *cobra.Command, _ []string, e *env) error {
	app := tui.New(cmd.Context(), tui.Services{
		Engine:    e.engine,
		Creator:   e.creator,
		Directory: e.dir,
		Auth:      e.auth,
		Session:   e.store,
		Images:    e.imageLocator(),
		Prober:    e.client,
	}, e.cfg.InitialView())
	_, err := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
	return err
}
