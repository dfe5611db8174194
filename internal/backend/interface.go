package backend

import (
	"context"

	"tempo/internal/services"
	"tempo/internal/storage"
	"tempo/internal/store"
)

// CleanupFunc releases the resources held by a Result.
type CleanupFunc func() error

// Result is a ready storage backend plus the optional change publisher that
// goes with it.
type Result struct {
	Backend store.Backend
	// Publisher is nil when change events are disabled.
	Publisher services.ChangePublisher
	// Repo is set for the sqlite backend; the export worker reads from it.
	Repo    *storage.SQLiteRepository
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type Type

	// SQLite specific
	SQLiteDBPath string

	// Change events, any backend
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Memory backend seed directory
	SeedDir string
}

type Type string

const (
	SQLite Type = "sqlite"
	Memory Type = "memory"
)

func (t Type) String() string {
	return string(t)
}

func (t Type) IsValid() bool {
	switch t {
	case SQLite, Memory:
		return true
	default:
		return false
	}
}
