package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/trade-engine/catalog-browser/internal/browser"
	"github.com/trade-engine/catalog-browser/internal/cart"
	"github.com/trade-engine/catalog-browser/internal/config"
	"github.com/trade-engine/catalog-browser/internal/currency"
	"github.com/trade-engine/catalog-browser/internal/dialog"
	"github.com/trade-engine/catalog-browser/internal/metadata"
	"github.com/trade-engine/catalog-browser/internal/restapi"
	arrowsink "github.com/trade-engine/catalog-browser/internal/sink/arrow"
	"github.com/trade-engine/catalog-browser/internal/storage"
)

type Application struct {
	cfg    *config.Config
	logger *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	in  *bufio.Reader
	out io.Writer

	// Components
	store      storage.Store
	cart       *cart.Manager
	fetchState *metadata.FetchState
	browser    *browser.Browser

	shutdownOnce sync.Once
}

func NewApplication(configPath string, in io.Reader, out io.Writer) (*Application, error) {
	missingConfig := false
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		missingConfig = true
		configPath = ""
	}

	cfg, err := config.LoadValidated(configPath, nil)
	if err != nil {
		return nil, err
	}

	logger, err := createLogger(cfg.Application.LogLevel)
	if err != nil {
		return nil, err
	}
	if missingConfig {
		logger.Warn("Config file not found, using defaults")
	}

	ctx, cancel := context.WithCancel(context.Background())

	app := &Application{
		cfg:    cfg,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		in:     bufio.NewReader(in),
		out:    out,
	}

	if err := app.initializeComponents(); err != nil {
		cancel()
		return nil, err
	}

	return app, nil
}

func (a *Application) initializeComponents() error {
	a.logger.Info("Initializing components")

	store, err := storage.Open(a.ctx, storage.Options{
		Backend:    a.cfg.Storage.Backend,
		Path:       a.cfg.Storage.Path,
		Passphrase: a.cfg.Storage.Passphrase,
	}, a.logger)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	a.store = store

	fetchState, err := metadata.LoadFetchState(a.cfg.Metadata.StatePath)
	if err != nil {
		a.logger.Warn("Ignoring unreadable fetch state", zap.Error(err))
		fetchState, _ = metadata.LoadFetchState("")
	}
	a.fetchState = fetchState

	client := restapi.NewClient(restapi.Options{
		CatalogURL:        a.cfg.Endpoints.CatalogURL,
		RatesURL:          a.cfg.Endpoints.RatesURL,
		Timeout:           a.cfg.Endpoints.Timeout,
		RequestsPerMinute: a.cfg.Endpoints.RequestsPerMinute,
	}, a.logger)

	a.cart = cart.NewManager(store, dialog.NewTerminal(a.in, a.out), cart.Options{
		Key:            a.cfg.Storage.Key,
		WipeAllOnReset: a.cfg.Storage.WipeAllOnReset,
	}, a.logger)

	a.browser = browser.New(browser.Deps{
		Fetcher:    client,
		Rates:      currency.NewTable(a.cfg.Endpoints.BaseCurrency, a.logger),
		Cart:       a.cart,
		FetchState: fetchState,
		Exporter:   arrowsink.NewSnapshotWriter(a.logger),
	}, browser.Options{
		PageSize:          a.cfg.Catalog.PageSize,
		ResetPageOnSearch: a.cfg.Catalog.ResetPageOnSearch,
		ExportDir:         a.cfg.Export.BasePath,
	}, a.logger)

	a.logger.Info("Components initialized successfully",
		zap.String("storage", a.cfg.Storage.Backend))
	return nil
}

func (a *Application) Run() error {
	a.logger.Info("Starting catalog browser",
		zap.String("version", a.cfg.Application.Version))

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signalChan)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.handleSignals(signalChan)
	}()

	fmt.Fprintln(a.out, "Loading catalog...")
	outcome, ok := a.load()
	if !ok {
		a.Shutdown()
		a.logger.Info("Application stopped during load")
		return nil
	}
	if err := outcome.err; err != nil && !errors.Is(err, browser.ErrClosed) {
		a.Shutdown()
		return fmt.Errorf("load catalog: %w", err)
	}
	if outcome.res.RatesErr != nil {
		fmt.Fprintln(a.out, "Exchange rates unavailable, prices are shown in", a.cfg.Endpoints.BaseCurrency)
	}

	r := newREPL(a.browser, a.in, a.out, a.cfg.Export.BasePath)
	r.renderPage()
	fmt.Fprintln(a.out, `Type "help" for commands.`)

	// the reader cannot be interrupted, so it is not tracked by wg
	loopDone := make(chan error, 1)
	go func() {
		loopDone <- r.run(a.ctx)
	}()

	var err error
	select {
	case err = <-loopDone:
	case <-a.ctx.Done():
	}

	a.Shutdown()
	a.logger.Info("Application stopped")

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

type loadOutcome struct {
	res browser.LoadResult
	err error
}

// load runs the initial fetch and any restore prompt. ok is false when the
// context ended first; the prompt may still be waiting on stdin then.
func (a *Application) load() (loadOutcome, bool) {
	done := make(chan loadOutcome, 1)
	go func() {
		res, err := a.browser.Load(a.ctx)
		done <- loadOutcome{res: res, err: err}
	}()

	select {
	case out := <-done:
		return out, true
	case <-a.ctx.Done():
		return loadOutcome{}, false
	}
}

func (a *Application) handleSignals(signalChan chan os.Signal) {
	select {
	case sig := <-signalChan:
		a.logger.Info("Received signal", zap.String("signal", sig.String()))
		a.logger.Info("Shutting down gracefully...")
		a.cancel()
	case <-a.ctx.Done():
	}
}

// Shutdown closes the browser, which drains cart writes, then saves the fetch
// state and closes storage.
func (a *Application) Shutdown() {
	a.shutdownOnce.Do(func() {
		a.logger.Info("Shutting down application")

		a.browser.Close()

		if err := a.fetchState.Save(); err != nil {
			a.logger.Error("Failed to save fetch state", zap.Error(err))
		}
		if err := a.store.Close(); err != nil {
			a.logger.Error("Failed to close storage", zap.Error(err))
		}

		a.cancel()

		done := make(chan struct{})
		go func() {
			a.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			a.logger.Info("All goroutines stopped")
		case <-time.After(10 * time.Second):
			a.logger.Warn("Timeout waiting for goroutines to stop")
		}

		_ = a.logger.Sync()
	})
}

func createLogger(level string) (*zap.Logger, error) {
	var config zap.Config

	switch level {
	case "debug":
		config = zap.NewDevelopmentConfig()
	case "info":
		config = zap.NewProductionConfig()
	case "warn":
		config = zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		config = zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		config = zap.NewProductionConfig()
	}

	// stdout carries the interactive page
	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}

	return config.Build()
}
