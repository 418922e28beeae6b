package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/soundleaf/soundleaf/internal/config"
	"github.com/soundleaf/soundleaf/internal/domain"
	"github.com/soundleaf/soundleaf/internal/logger"
	"github.com/soundleaf/soundleaf/internal/scanner"
	"github.com/soundleaf/soundleaf/internal/service"
	"github.com/soundleaf/soundleaf/internal/watcher"
)

// ProvideScanner provides the folder import scanner.
func ProvideScanner(i do.Injector) (*scanner.Scanner, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return scanner.New(storeHandle.Store, log.Logger), nil
}

// WatcherHandle wraps the filesystem watcher with shutdown capability.
// Watcher is nil when source watching is disabled by configuration.
type WatcherHandle struct {
	*watcher.Watcher
}

// Shutdown implements do.Shutdownable.
func (h *WatcherHandle) Shutdown() error {
	if h.Watcher == nil {
		return nil
	}
	return h.Close()
}

// ProvideWatcher provides the filesystem watcher for registered sources.
// Rescans resolve the library service through the injector at event time,
// which breaks the construction cycle between the two.
func ProvideWatcher(i do.Injector) (*WatcherHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if !cfg.Library.WatchSources {
		log.Info("Source watching disabled by configuration")
		return &WatcherHandle{Watcher: nil}, nil
	}

	w, err := watcher.New(watcher.DefaultDebounce, func(root string) {
		svc, err := do.Invoke[*service.LibraryService](i)
		if err != nil {
			log.Error("Watcher rescan skipped, library service unavailable", "error", err)
			return
		}
		svc.RescanRoot(root)
	}, log.Logger)
	if err != nil {
		return nil, err
	}

	log.Info("File watcher started")

	return &WatcherHandle{Watcher: w}, nil
}

// noopWatcher satisfies service.SourceWatcher when watching is disabled.
type noopWatcher struct{}

func (noopWatcher) AddRoot(string) error { return nil }

// ProvideLibraryService provides the library management service and registers
// existing sources with the watcher.
func ProvideLibraryService(i do.Injector) (*service.LibraryService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	fileScanner := do.MustInvoke[*scanner.Scanner](i)
	watcherHandle := do.MustInvoke[*WatcherHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	var sourceWatcher service.SourceWatcher = noopWatcher{}
	if watcherHandle.Watcher != nil {
		sourceWatcher = watcherHandle.Watcher
	}

	svc := service.NewLibraryService(storeHandle.Store, fileScanner, sourceWatcher, log.Logger)

	ctx := context.Background()

	// Re-register stored sources with the watcher across restarts.
	sources, err := svc.ListFolderSources(ctx)
	if err != nil {
		return nil, err
	}
	for _, src := range sources {
		if err := sourceWatcher.AddRoot(src.URI); err != nil {
			log.Warn("Failed to watch source", "uri", src.URI, "error", err)
		}
	}

	// Seed the configured import folder on first run.
	if cfg.Library.FolderPath != "" && !hasSourceURI(sources, cfg.Library.FolderPath) {
		if _, err := svc.AddFolderSource(ctx, cfg.Library.FolderPath, ""); err != nil {
			log.Warn("Failed to register configured folder source",
				"path", cfg.Library.FolderPath,
				"error", err,
			)
		} else {
			log.Info("Registered configured folder source", "path", cfg.Library.FolderPath)
		}
	}

	return svc, nil
}

func hasSourceURI(sources []*domain.FolderSource, uri string) bool {
	for _, src := range sources {
		if src.URI == uri {
			return true
		}
	}
	return false
}

// ProvideStatsService provides the listening statistics service.
func ProvideStatsService(i do.Injector) (*service.StatsService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewStatsService(storeHandle.Store, log.Logger), nil
}
