package platform

import (
	"log/slog"
	"time"

	"github.com/aretw0/notely/pkg/core"
)

// Adapter names accepted by WithAdapter.
const (
	AdapterFS       = "fs"
	AdapterPostgres = "postgres"
)

// options holds the internal configuration used to build a repository and service.
type options struct {
	repository core.Repository
	logger     *slog.Logger
	adapter    string
	config     map[string]any
}

// Option configures Init and New.
type Option func(*options)

func defaultOptions() *options {
	return &options{
		adapter: AdapterFS,
		config:  make(map[string]any),
	}
}

func applyOptions(opts []Option) *options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithAutoInit creates the vault directory (and git repository) when missing.
func WithAutoInit(auto bool) Option {
	return func(o *options) {
		o.config["auto_init"] = auto
	}
}

// WithVersioning enables or disables git versioning of the vault.
// When unset, it is detected from the vault on disk.
func WithVersioning(enabled bool) Option {
	return func(o *options) {
		o.config["gitless"] = !enabled
	}
}

// WithForceTemp forces the vault into a temporary directory.
func WithForceTemp(force bool) Option {
	return func(o *options) {
		o.config["temp_dir"] = force
	}
}

// WithMustExist fails Init when the vault directory is missing.
func WithMustExist(must bool) Option {
	return func(o *options) {
		o.config["must_exist"] = must
	}
}

// WithLogger sets the logger passed to the repository and service.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithRepository injects a ready repository. Init then skips adapter setup.
func WithRepository(repo core.Repository) Option {
	return func(o *options) {
		o.repository = repo
	}
}

// WithAdapter selects the storage adapter: "fs" (default) or "postgres".
func WithAdapter(name string) Option {
	return func(o *options) {
		o.adapter = name
	}
}

// WithSystemDir sets the vault's hidden directory name. Defaults to ".notely".
func WithSystemDir(name string) Option {
	return func(o *options) {
		o.config["system_dir"] = name
	}
}

// WithEventBuffer sets the size of the service's event buffer.
func WithEventBuffer(size int) Option {
	return func(o *options) {
		o.config["event_buffer"] = size
	}
}

// WithPasswordCost sets the bcrypt cost used for new passwords.
func WithPasswordCost(cost int) Option {
	return func(o *options) {
		o.config["password_cost"] = cost
	}
}

// WithWatchDelay sets how long the fs watcher coalesces events per note.
func WithWatchDelay(d time.Duration) Option {
	return func(o *options) {
		o.config["watch_delay"] = d
	}
}

// WithWatcherErrorHandler receives runtime watcher failures, which are
// otherwise only logged.
func WithWatcherErrorHandler(fn func(error)) Option {
	return func(o *options) {
		o.config["watcher_error_handler"] = fn
	}
}

// WithReadOnly opens the vault read-only. Writes return core.ErrReadOnly,
// initialization is skipped and the dev sandbox is bypassed.
func WithReadOnly(enabled bool) Option {
	return func(o *options) {
		o.config["read_only"] = enabled
	}
}

// WithDevSafety controls the sandbox used under `go run` and `go test`.
// By default (true) the vault is re-rooted into a temporary directory.
//
// CAUTION: disabling it lets a development build write to the real vault.
func WithDevSafety(enabled bool) Option {
	return func(o *options) {
		o.config["dev_safety"] = enabled
	}
}
