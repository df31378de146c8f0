package platform

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aretw0/notely/pkg/adapters/fs"
	"github.com/aretw0/notely/pkg/adapters/postgres"
	"github.com/aretw0/notely/pkg/core"
)

// Init builds and initializes a repository. The uri is adapter specific: a
// vault path for "fs", a connection string for "postgres".
func Init(ctx context.Context, uri string, opts ...Option) (core.Repository, error) {
	o := applyOptions(opts)

	if o.repository != nil {
		return o.repository, nil
	}

	var repo core.Repository
	switch o.adapter {
	case AdapterFS, "":
		repo = initFS(uri, o)
	case AdapterPostgres:
		repo = postgres.NewRepository(postgres.Config{URL: uri, Logger: o.logger})
	default:
		return nil, fmt.Errorf("unknown adapter: %s", o.adapter)
	}

	if err := repo.Initialize(ctx); err != nil {
		Release(repo)
		return nil, err
	}
	return repo, nil
}

// Release frees resources held by repositories that need it, such as the
// postgres pool.
func Release(repo core.Repository) {
	if c, ok := repo.(interface{ Close() }); ok {
		c.Close()
	}
}

// initFS resolves the vault path and versioning mode for the filesystem adapter.
func initFS(path string, o *options) *fs.Repository {
	autoInit, _ := o.config["auto_init"].(bool)
	gitless, gitlessSet := o.config["gitless"].(bool)
	tempDir, _ := o.config["temp_dir"].(bool)
	mustExist, _ := o.config["must_exist"].(bool)
	systemDir, _ := o.config["system_dir"].(string)
	errorHandler, _ := o.config["watcher_error_handler"].(func(error))
	watchDelay, _ := o.config["watch_delay"].(time.Duration)
	readOnly, _ := o.config["read_only"].(bool)

	devSafety := true
	if val, ok := o.config["dev_safety"].(bool); ok {
		devSafety = val
	}
	bypassSafety := readOnly || !devSafety

	useTemp := tempDir || (IsDevRun() && !bypassSafety)
	resolvedPath := ResolveVaultPath(path, useTemp)

	if IsDevRun() && o.logger != nil {
		switch {
		case readOnly:
			o.logger.Debug("running in READ-ONLY mode (bypassing dev sandbox)", "path", resolvedPath)
		case bypassSafety:
			o.logger.Warn("running in UNSAFE mode (bypassing dev sandbox)", "path", resolvedPath)
		default:
			o.logger.Debug("running in SAFE mode (dev sandbox enabled)", "path", resolvedPath)
		}
	}

	if systemDir == "" {
		systemDir = fs.DefaultSystemDir
	}

	if !gitlessSet {
		gitless = detectGitless(resolvedPath, systemDir, autoInit)
		if gitless && o.logger != nil {
			o.logger.Debug("auto-detected gitless mode", "reason", ".git missing")
		}
	}

	return fs.NewRepository(fs.Config{
		Path:         resolvedPath,
		AutoInit:     autoInit,
		Gitless:      gitless,
		MustExist:    mustExist || (!autoInit && !useTemp),
		ReadOnly:     readOnly,
		Logger:       o.logger,
		SystemDir:    systemDir,
		ErrorHandler: errorHandler,
		WatchDelay:   watchDelay,
	})
}

// detectGitless decides the versioning mode of a vault that did not ask for one.
// An existing .git means versioned. Without it, a fresh vault created by
// AutoInit gets git, while an existing vault (system dir present) or a plain
// folder stays gitless.
func detectGitless(path, systemDir string, autoInit bool) bool {
	if hasFile(path, ".git") {
		return false
	}
	if !autoInit {
		return true
	}
	_, err := os.Stat(filepath.Join(path, systemDir))
	return err == nil
}
