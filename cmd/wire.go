package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	prommetrics "github.com/bnema/convtree/internal/adapters/metrics/prom"
	sqlitestore "github.com/bnema/convtree/internal/adapters/store/sqlite"
	tomlstore "github.com/bnema/convtree/internal/adapters/store/toml"
	"github.com/bnema/convtree/internal/adapters/todo"
	"github.com/bnema/convtree/internal/application"
	"github.com/bnema/convtree/internal/config"
	"github.com/bnema/convtree/internal/domain"
	"github.com/bnema/convtree/internal/logging"
	"github.com/bnema/convtree/internal/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// conversationStore is what every store driver provides to the CLI.
type conversationStore interface {
	ports.ConversationStore
	ports.ConversationReader
	ports.ReportSource
	ports.ProfileSource
	ports.RuntimeSource
	ports.SnapshotRepository
	Path() string
}

type app struct {
	viper   *viper.Viper
	cfg     config.Config
	logger  *zap.Logger
	metrics *prommetrics.Metrics
	now     func() time.Time
}

func newApp(v *viper.Viper) *app {
	return &app{
		viper:  v,
		logger: zap.NewNop(),
		now:    time.Now,
	}
}

func (a *app) wire(cmd *cobra.Command) error {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		a.viper.SetConfigFile(path)
	}

	cfg, err := config.Load(a.viper)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a.cfg = cfg

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("wire logger: %w", err)
	}
	a.logger = logger

	if cfg.MetricsEnabled {
		metrics, err := prommetrics.New(prometheus.NewRegistry())
		if err != nil {
			return fmt.Errorf("wire metrics: %w", err)
		}
		a.metrics = metrics
	}

	return nil
}

func (a *app) shutdown() error {
	var errs []error
	if a.metrics != nil && a.cfg.MetricsTextfile != "" {
		if err := os.MkdirAll(filepath.Dir(a.cfg.MetricsTextfile), 0o700); err != nil {
			errs = append(errs, fmt.Errorf("create metrics directory: %w", err))
		} else if err := a.metrics.WriteTextfile(a.cfg.MetricsTextfile); err != nil {
			errs = append(errs, fmt.Errorf("write metrics: %w", err))
		}
	}

	// stderr rejects fsync on most terminals.
	_ = a.logger.Sync()

	return errors.Join(errs...)
}

func (a *app) openStore(ctx context.Context) (conversationStore, func() error, error) {
	return openStore(ctx, a.cfg.StoreDriver, a.cfg.StorePath)
}

func openStore(ctx context.Context, driver, path string) (conversationStore, func() error, error) {
	switch driver {
	case config.DriverTOML:
		store, err := tomlstore.NewStore(path)
		if err != nil {
			return nil, nil, fmt.Errorf("open toml store: %w", err)
		}
		return store, func() error { return nil }, nil
	case config.DriverSQLite:
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, nil, fmt.Errorf("create store directory: %w", err)
		}
		store, err := sqlitestore.NewStore(ctx, path)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", domain.ErrUnknownStoreDriver, driver)
	}
}

func (a *app) newEngine(conversation domain.Conversation, store conversationStore, onChange func(application.DetailState)) *application.Engine {
	opts := application.EngineOptions{
		Profiles:         store,
		Runtime:          store,
		TodoParser:       todo.NewParser(a.logger),
		Clock:            ports.ClockFunc(a.now),
		Logger:           a.logger,
		FetchConcurrency: a.cfg.FetchConcurrency,
		OnChange:         onChange,
	}
	if a.metrics != nil {
		opts.Metrics = a.metrics
	}

	return application.NewEngine(conversation, store, opts)
}

func (a *app) lookupConversation(ctx context.Context, store conversationStore, id string) (domain.Conversation, error) {
	conversation, err := store.Conversation(ctx, domain.ConversationID(id))
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("load conversation %s: %w", id, err)
	}
	return conversation, nil
}
