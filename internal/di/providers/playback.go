package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/soundleaf/soundleaf/internal/audio"
	"github.com/soundleaf/soundleaf/internal/config"
	"github.com/soundleaf/soundleaf/internal/logger"
	"github.com/soundleaf/soundleaf/internal/playback"
)

// SessionHandle wraps the playback session with shutdown capability.
type SessionHandle struct {
	*playback.Session
}

// Shutdown implements do.Shutdownable. It flushes pending progress and
// listening time before releasing the audio unit.
func (h *SessionHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Session.Stop(ctx)
}

// ProvideSession provides the playback session with its reconciler running.
func ProvideSession(i do.Injector) (*SessionHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	driver := do.MustInvoke[audio.Driver](i)
	log := do.MustInvoke[*logger.Logger](i)

	sess := playback.NewSession(storeHandle.Store, driver, playback.Config{
		SaveInterval: cfg.Playback.SaveInterval,
		MaxTickGap:   cfg.Playback.MaxTickGap,
	}, log.Logger)
	sess.Start()

	log.Info("Playback session started",
		"save_interval", cfg.Playback.SaveInterval,
		"max_tick_gap", cfg.Playback.MaxTickGap,
	)

	return &SessionHandle{Session: sess}, nil
}
