package providers

import (
	"github.com/samber/do/v2"

	"github.com/soundleaf/soundleaf/internal/audio"
	"github.com/soundleaf/soundleaf/internal/logger"
)

// ProvideAudioDriver provides the playback backend. The daemon ships with the
// in-memory driver; a platform decode/output backend replaces it by providing
// its own audio.Driver here.
func ProvideAudioDriver(i do.Injector) (audio.Driver, error) {
	log := do.MustInvoke[*logger.Logger](i)

	log.Info("Audio driver initialized", "backend", "in-memory")
	return audio.NewFakeDriver(), nil
}
