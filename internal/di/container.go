// Package di provides dependency injection configuration for the Soundleaf daemon.
package di

import (
	"github.com/samber/do/v2"

	"github.com/soundleaf/soundleaf/internal/config"
	"github.com/soundleaf/soundleaf/internal/di/providers"
	"github.com/soundleaf/soundleaf/internal/logger"
	"github.com/soundleaf/soundleaf/internal/scanner"
	"github.com/soundleaf/soundleaf/internal/service"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Database layer
	do.Provide(injector, providers.ProvideStore)

	// Library layer
	do.Provide(injector, providers.ProvideScanner)
	do.Provide(injector, providers.ProvideWatcher)
	do.Provide(injector, providers.ProvideLibraryService)
	do.Provide(injector, providers.ProvideStatsService)

	// Playback layer
	do.Provide(injector, providers.ProvideAudioDriver)
	do.Provide(injector, providers.ProvideSession)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and returns handles for lifecycle management.
// This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)

	// Library layer
	_ = do.MustInvoke[*scanner.Scanner](injector)
	_ = do.MustInvoke[*providers.WatcherHandle](injector)
	_ = do.MustInvoke[*service.LibraryService](injector)
	_ = do.MustInvoke[*service.StatsService](injector)

	// Playback layer
	_ = do.MustInvoke[*providers.SessionHandle](injector)

	// Server
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	return nil
}
