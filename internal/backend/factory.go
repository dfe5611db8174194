package backend

import (
	"context"
	"errors"
	"fmt"

	"tempo/internal/amqp"
	tlog "tempo/internal/log"
	"tempo/internal/store/memory"
	"tempo/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *tlog.Logger
}

func NewFactory(logger *tlog.Logger) Factory {
	if logger == nil {
		logger = tlog.New(tlog.DefaultConfig())
	}
	return &DefaultFactory{
		logger: logger.WithComponent(tlog.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		res *Result
		err error
	)
	switch config.Type {
	case SQLite:
		res, err = f.createSQLiteBackend(ctx, config)
	case Memory:
		res = f.createMemoryBackend(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	client := f.connectAMQP(ctx, config)
	if client != nil {
		// assigned only when non-nil so Publisher never holds a typed nil
		res.Publisher = client
	}
	res.Cleanup = cleanup(res.Backend, client)
	return res, nil
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (*Result, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.InfoContext(ctx, "Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	return &Result{Backend: repo, Repo: repo}, nil
}

func (f *DefaultFactory) createMemoryBackend(ctx context.Context, config Config) *Result {
	dir := config.SeedDir
	if dir == "" {
		dir = "data"
	}
	s := memory.NewFromFiles(dir)

	f.logger.InfoContext(ctx, "Initialized memory backend", "seed_dir", dir)
	return &Result{Backend: s}
}

// connectAMQP dials the broker when configured. A broker that cannot be
// reached disables change events instead of failing startup.
func (f *DefaultFactory) connectAMQP(ctx context.Context, config Config) *amqp.Client {
	if config.AMQPURL == "" {
		return nil
	}
	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
	if err != nil {
		f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without change events", "error", err)
		return nil
	}
	f.logger.InfoContext(ctx, "Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)
	return client
}

func cleanup(backend interface{ Close() error }, client *amqp.Client) CleanupFunc {
	return func() error {
		var errs []error
		if client != nil {
			if err := client.Close(); err != nil {
				errs = append(errs, fmt.Errorf("amqp: %w", err))
			}
		}
		if err := backend.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
		return errors.Join(errs...)
	}
}
