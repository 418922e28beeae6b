// Package audio defines the playback device abstraction consumed by the
// playback engine. The actual decode/output backend is platform-specific and
// lives behind the Driver interface; the engine only depends on the contract
// here.
package audio

import (
	"context"
	"errors"
)

// ErrUnloaded is returned by Unit methods after Unload has been called.
// Teardown races during rapid navigation are expected; callers treat this
// as non-fatal.
var ErrUnloaded = errors.New("audio: unit is unloaded")

// Status is a snapshot of a unit's transport state. Drivers deliver it to
// the registered StatusFunc at a fixed interval (roughly every 500ms) and on
// every transport change.
type Status struct {
	PositionMs    int64
	DurationMs    int64
	IsPlaying     bool
	DidJustFinish bool
	IsLooping     bool
	Err           error
}

// StatusFunc receives status updates from a unit. It is invoked from the
// driver's delivery goroutine; implementations must do their own locking.
type StatusFunc func(Status)

// Options configures a unit at open time.
type Options struct {
	// InitialPositionMs is the offset to start at within the file.
	InitialPositionMs int64
	// Rate is the playback speed multiplier (1.0 = normal).
	Rate float64
	// AutoPlay starts playback immediately after the unit is ready.
	AutoPlay bool
}

// Unit is a single loaded audio file. At most one unit per session is live
// at a time; the session must Unload the old unit before opening a new one.
type Unit interface {
	// Play starts or resumes playback. Playing an already-playing unit is
	// a benign no-op.
	Play() error
	// Pause suspends playback. Pausing an already-paused unit is a benign
	// no-op.
	Pause() error
	// SeekTo repositions to the given offset. Offsets outside
	// [0, duration] are clamped by the caller before this is invoked.
	SeekTo(positionMs int64) error
	// SetRate requests a playback speed. Backends may reject unsupported
	// rates; callers detect this by re-querying Rate afterwards.
	SetRate(rate float64) error
	// Rate reports the rate the backend is actually using.
	Rate() (float64, error)
	// IsPlaying reports the current transport state.
	IsPlaying() (bool, error)
	// Unload stops playback and releases decoder resources. Unloading an
	// already-unloaded unit returns ErrUnloaded.
	Unload() error
}

// Driver opens audio files and produces units. There is one driver per
// process, injected into the playback engine.
type Driver interface {
	Open(ctx context.Context, filePath string, opts Options, onStatus StatusFunc) (Unit, error)
}
