// Package app wires configuration, logging, metrics, the backend client and
// client-side state into one object the CLI commands share.
package app

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/newthinker/stratdesk/internal/apiclient"
	"github.com/newthinker/stratdesk/internal/config"
	"github.com/newthinker/stratdesk/internal/core"
	"github.com/newthinker/stratdesk/internal/form"
	"github.com/newthinker/stratdesk/internal/metrics"
	"github.com/newthinker/stratdesk/internal/state/auth"
	"github.com/newthinker/stratdesk/internal/state/strategies"
	"github.com/newthinker/stratdesk/internal/storage/archive"
	"github.com/newthinker/stratdesk/internal/storage/local"
	"go.uber.org/zap"
)

// App is the client-side application: one backend client, its session and
// the strategy list, sharing a metrics registry.
type App struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Registry

	client     *apiclient.Client
	store      *local.Store
	session    *auth.Session
	strategies *strategies.Store
}

// Options overrides parts of the wiring, mainly for tests.
type Options struct {
	// Transport is the innermost round tripper; nil means http.DefaultTransport.
	Transport http.RoundTripper
}

// New builds the application from a validated config.
func New(cfg *config.Config, logger *zap.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var reg *metrics.Registry
	if cfg.Metrics.Enabled {
		reg = metrics.NewRegistry()
	}

	storePath := cfg.Storage.Path
	if storePath == "" {
		storePath = local.DefaultPath()
	}
	store, err := local.New(storePath, logger)
	if err != nil {
		return nil, fmt.Errorf("opening local storage: %w", err)
	}

	client := apiclient.New(apiclient.Config{
		BaseURL:   cfg.API.BaseURL,
		Timeout:   cfg.API.Timeout,
		Transport: transport(opts.Transport, reg, logger),
	}, logger)

	return &App{
		cfg:        cfg,
		logger:     logger,
		metrics:    reg,
		client:     client,
		store:      store,
		session:    auth.NewSession(client, store, logger, reg),
		strategies: strategies.New(client, logger, reg),
	}, nil
}

// transport layers logging and, when enabled, metrics over base.
func transport(base http.RoundTripper, reg *metrics.Registry, logger *zap.Logger) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	rt := metrics.LoggingTransport(logger, base)
	if reg != nil {
		rt = metrics.Transport(reg, rt)
	}
	return rt
}

func (a *App) Config() *config.Config { return a.cfg }
func (a *App) Logger() *zap.Logger { return a.logger }
func (a *App) Metrics() *metrics.Registry { return a.metrics }
func (a *App) Client() *apiclient.Client { return a.client }
func (a *App) Session() *auth.Session { return a.session }
func (a *App) Strategies() *strategies.Store { return a.strategies }
func (a *App) LocalStore() *local.Store { return a.store }

// RequireLogin fails with ErrNotAuthenticated or ErrTokenExpired unless the
// session holds a usable token.
func (a *App) RequireLogin() error {
	if a.session.Token() == "" {
		return core.ErrNotAuthenticated
	}
	if !a.session.IsAuthenticated() {
		return core.ErrTokenExpired
	}
	return nil
}

// Datasets opens the configured archive.
func (a *App) Datasets() (*archive.Datasets, error) {
	ac := a.cfg.Archive
	storage, err := archive.Open(archive.Options{
		Type: ac.Type,
		Path: ac.Path,
		S3: archive.S3Config{
			Bucket:    ac.S3.Bucket,
			Endpoint:  ac.S3.Endpoint,
			Region:    ac.S3.Region,
			AccessKey: ac.S3.AccessKey,
			SecretKey: ac.S3.SecretKey,
			Prefix:    ac.S3.Prefix,
		},
	})
	if err != nil {
		return nil, err
	}
	return archive.NewDatasets(storage, a.logger), nil
}

// UploadResult is the outcome of Upload.
type UploadResult struct {
	Dataset    *core.Dataset
	ArchiveKey string
}

// Upload sends a local file to the backend. With archiveCopy, or when the
// archive is enabled in config, the file is archived first; archive failures
// are logged and do not stop the upload. Without archiving the file is
// streamed rather than read into memory.
func (a *App) Upload(ctx context.Context, path string, archiveCopy bool) (*UploadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading dataset: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("reading dataset: %w", err)
	}
	filename := filepath.Base(path)
	res := &UploadResult{}

	var body io.Reader = f
	if archiveCopy || a.cfg.Archive.Enabled {
		data, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("reading dataset: %w", err)
		}
		res.ArchiveKey = a.archive(ctx, filename, data)
		body = bytes.NewReader(data)
	}

	ds, err := a.client.UploadData(ctx, filename, body)
	if a.metrics != nil {
		a.metrics.RecordUpload(info.Size(), err)
	}
	if err != nil {
		return nil, err
	}
	res.Dataset = ds
	return res, nil
}

func (a *App) archive(ctx context.Context, filename string, data []byte) string {
	datasets, err := a.Datasets()
	if err != nil {
		a.logger.Warn("dataset archive unavailable", zap.Error(err))
		return ""
	}
	key, err := datasets.Put(ctx, filename, data)
	if err != nil {
		a.logger.Warn("archiving dataset failed", zap.String("filename", filename), zap.Error(err))
		return ""
	}
	return key
}

// Backtest validates the request and runs it on the backend.
func (a *App) Backtest(ctx context.Context, req core.BacktestRequest) (*core.BacktestResult, error) {
	if errs := form.ValidateStruct(req); errs != nil {
		return nil, core.WrapError(core.ErrValidation, fmt.Errorf("%s", joinErrors(errs)))
	}

	start := time.Now()
	res, err := a.client.RunBacktest(ctx, req)
	if a.metrics != nil {
		a.metrics.RecordBacktest(err, time.Since(start).Seconds())
	}
	return res, err
}

// Close writes the metrics textfile when one is configured.
func (a *App) Close() error {
	if a.metrics == nil || a.cfg.Metrics.Textfile == "" {
		return nil
	}
	if err := a.metrics.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}

func joinErrors(errs map[string]string) string {
	keys := make([]string, 0, len(errs))
	for k := range errs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	msgs := make([]string, len(keys))
	for i, k := range keys {
		msgs[i] = errs[k]
	}
	return strings.Join(msgs, "; ")
}
