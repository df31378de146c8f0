package notely

import (
	"context"
	"log/slog"

	"github.com/aretw0/notely/internal/platform"
	"github.com/aretw0/notely/pkg/core"
)

// --- Configuration ---

// Option configures New and Init.
type Option = platform.Option

// Config is the process configuration read by LoadConfig.
type Config = platform.Config

// ServerConfig, ClientConfig and LogConfig are the sections of Config.
type (
	ServerConfig = platform.ServerConfig
	ClientConfig = platform.ClientConfig
	LogConfig    = platform.LogConfig
)

// WithAutoInit creates the vault (and its git repository) when missing.
func WithAutoInit(auto bool) Option {
	return platform.WithAutoInit(auto)
}

// WithVersioning enables or disables git versioning of the vault.
func WithVersioning(enabled bool) Option {
	return platform.WithVersioning(enabled)
}

// WithForceTemp forces the vault into a temporary directory.
func WithForceTemp(force bool) Option {
	return platform.WithForceTemp(force)
}

// WithMustExist fails when the vault directory is missing.
func WithMustExist(must bool) Option {
	return platform.WithMustExist(must)
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return platform.WithLogger(logger)
}

// WithRepository injects a storage adapter.
func WithRepository(repo core.Repository) Option {
	return platform.WithRepository(repo)
}

// WithAdapter selects the storage adapter by name ("fs" or "postgres").
func WithAdapter(name string) Option {
	return platform.WithAdapter(name)
}

// WithSystemDir sets the hidden directory name of the vault.
func WithSystemDir(name string) Option {
	return platform.WithSystemDir(name)
}

// WithEventBuffer sets the size of the service's event buffer.
func WithEventBuffer(size int) Option {
	return platform.WithEventBuffer(size)
}

// WithReadOnly opens the store read-only.
func WithReadOnly(enabled bool) Option {
	return platform.WithReadOnly(enabled)
}

// WithDevSafety controls the temporary-directory sandbox used by dev builds.
func WithDevSafety(enabled bool) Option {
	return platform.WithDevSafety(enabled)
}

// WithWatcherErrorHandler receives errors from the vault watcher.
func WithWatcherErrorHandler(fn func(error)) Option {
	return platform.WithWatcherErrorHandler(fn)
}

// --- Factory ---

// New opens storage at uri and returns the domain service.
func New(ctx context.Context, uri string, opts ...Option) (*core.Service, error) {
	return platform.New(ctx, uri, opts...)
}

// Init opens storage at uri without building a service.
func Init(ctx context.Context, uri string, opts ...Option) (core.Repository, error) {
	return platform.Init(ctx, uri, opts...)
}

// Release closes resources held by repo, such as a database pool.
func Release(repo core.Repository) {
	platform.Release(repo)
}

// LoadConfig reads the process configuration. See platform.LoadConfig.
func LoadConfig(path string, envFiles ...string) (Config, error) {
	return platform.LoadConfig(path, envFiles...)
}

// --- Utils ---

// FindVaultRoot walks upwards from startDir looking for a vault.
func FindVaultRoot(startDir string) (string, error) {
	return platform.FindRoot(startDir)
}

// FormatChangeReason builds a conventional commit message for vault writes.
func FormatChangeReason(ctype, scope, subject, body string) string {
	return platform.FormatChangeReason(ctype, scope, subject, body)
}

// WithChangeReason attaches a commit message to ctx for the next vault write.
func WithChangeReason(ctx context.Context, reason string) context.Context {
	return platform.WithChangeReason(ctx, reason)
}
