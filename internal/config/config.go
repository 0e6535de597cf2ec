package config

import (
	"context"
	"strings"

	"github.com/docuflow/content-migrator/internal/model"
)

type contextKey struct{}

// WithContext returns a new context carrying the given Config.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, contextKey{}, cfg)
}

// FromContext retrieves the Config from the context.
func FromContext(ctx context.Context) *Config {
	cfg, _ := ctx.Value(contextKey{}).(*Config)
	return cfg
}

// Config holds all configuration for the content migrator.
type Config struct {
	// Database
	DBURL string

	// Datastore backend type: "postgres", "sqlite", or "mongo".
	DatastoreType string

	// Run datastore migrations on startup.
	DatastoreMigrateAtStart bool

	// ActorID is the identity performing the migration. Grant derivation
	// skips the redundant collaborate grant when a source record's owner is
	// this identity.
	ActorID string

	// ChunkSize is the number of source records handed to the orchestrator
	// per chunk.
	ChunkSize int

	// DeleteSources purges a chunk's source records after its conversion,
	// grant creation, and provenance writes have all committed.
	DeleteSources bool

	// SourceKinds is the comma-separated list of record kinds to migrate:
	// "attachments", "notes", or both.
	SourceKinds string

	// Management listener for /health, /ready and /metrics during a run.
	// Zero disables the listener.
	ManagementPort int

	// DB pool
	DBMaxOpenConns int
	DBMaxIdleConns int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DatastoreType:           "postgres",
		DatastoreMigrateAtStart: true,
		ChunkSize:               200,
		DeleteSources:           false,
		SourceKinds:             "attachments,notes",
		DBMaxOpenConns:          25,
		DBMaxIdleConns:          5,
	}
}

// Kinds resolves SourceKinds into model kinds, preserving the configured
// order and ignoring empty segments.
func (c *Config) Kinds() []model.SourceKind {
	var kinds []model.SourceKind
	for _, part := range strings.Split(c.SourceKinds, ",") {
		switch strings.TrimSpace(strings.ToLower(part)) {
		case "attachments", "attachment":
			kinds = append(kinds, model.SourceKindAttachment)
		case "notes", "note":
			kinds = append(kinds, model.SourceKindNote)
		}
	}
	return kinds
}
