package audio

import (
	"context"
	"path/filepath"
	"sync"
)

// FakeDriver is a deterministic in-memory Driver for tests and for running
// the daemon without an audio backend. Tests drive status delivery manually
// via FakeUnit.Tick and EmitFinished; no real time passes.
type FakeDriver struct {
	mu sync.Mutex

	// Durations maps file base names to the duration the unit will report.
	// Files not listed report DefaultDurationMs.
	Durations map[string]int64
	// DefaultDurationMs is reported for files not in Durations. Zero means
	// the unit reports no duration until one is set explicitly.
	DefaultDurationMs int64
	// FailOpen makes Open return the given error for matching base names.
	FailOpen map[string]error
	// SupportedRates limits SetRate; nil accepts any rate.
	SupportedRates []float64

	units []*FakeUnit
}

// NewFakeDriver creates a fake driver with no preconfigured files.
func NewFakeDriver() *FakeDriver {
	return &FakeDriver{
		Durations: make(map[string]int64),
		FailOpen:  make(map[string]error),
	}
}

// Open implements Driver.
func (d *FakeDriver) Open(_ context.Context, filePath string, opts Options, onStatus StatusFunc) (Unit, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	base := filepath.Base(filePath)
	if err := d.FailOpen[base]; err != nil {
		return nil, err
	}

	duration := d.DefaultDurationMs
	if ms, ok := d.Durations[base]; ok {
		duration = ms
	}

	rate := opts.Rate
	if rate == 0 {
		rate = 1.0
	}

	u := &FakeUnit{
		driver:     d,
		filePath:   filePath,
		durationMs: duration,
		positionMs: opts.InitialPositionMs,
		playing:    opts.AutoPlay,
		rate:       rate,
		onStatus:   onStatus,
	}
	d.units = append(d.units, u)
	return u, nil
}

// OpenCount returns how many units have been opened so far.
func (d *FakeDriver) OpenCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.units)
}

// LastUnit returns the most recently opened unit, or nil.
func (d *FakeDriver) LastUnit() *FakeUnit {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.units) == 0 {
		return nil
	}
	return d.units[len(d.units)-1]
}

// FakeUnit is the Unit produced by FakeDriver.
type FakeUnit struct {
	driver   *FakeDriver
	filePath string
	onStatus StatusFunc

	mu         sync.Mutex
	durationMs int64
	positionMs int64
	playing    bool
	rate       float64
	unloaded   bool

	// PlayCalls and PauseCalls count transport invocations, including
	// benign no-ops.
	PlayCalls  int
	PauseCalls int
}

// FilePath returns the path this unit was opened with.
func (u *FakeUnit) FilePath() string {
	return u.filePath
}

// Play implements Unit.
func (u *FakeUnit) Play() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.unloaded {
		return ErrUnloaded
	}
	u.PlayCalls++
	u.playing = true
	return nil
}

// Pause implements Unit.
func (u *FakeUnit) Pause() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.unloaded {
		return ErrUnloaded
	}
	u.PauseCalls++
	u.playing = false
	return nil
}

// SeekTo implements Unit.
func (u *FakeUnit) SeekTo(positionMs int64) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.unloaded {
		return ErrUnloaded
	}
	u.positionMs = positionMs
	return nil
}

// SetRate implements Unit. Rates outside the driver's SupportedRates set are
// silently ignored, mirroring platform backends that keep their previous rate.
func (u *FakeUnit) SetRate(rate float64) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.unloaded {
		return ErrUnloaded
	}
	if supported := u.driver.SupportedRates; supported != nil {
		ok := false
		for _, r := range supported {
			if r == rate {
				ok = true
				break
			}
		}
		if !ok {
			return nil
		}
	}
	u.rate = rate
	return nil
}

// Rate implements Unit.
func (u *FakeUnit) Rate() (float64, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.unloaded {
		return 0, ErrUnloaded
	}
	return u.rate, nil
}

// IsPlaying implements Unit.
func (u *FakeUnit) IsPlaying() (bool, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.unloaded {
		return false, ErrUnloaded
	}
	return u.playing, nil
}

// Unload implements Unit.
func (u *FakeUnit) Unload() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.unloaded {
		return ErrUnloaded
	}
	u.unloaded = true
	u.playing = false
	return nil
}

// Unloaded reports whether Unload has been called.
func (u *FakeUnit) Unloaded() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.unloaded
}

// Tick advances the playhead by deltaMs when playing and delivers a status
// update, simulating the backend's periodic callback.
func (u *FakeUnit) Tick(deltaMs int64) {
	u.mu.Lock()
	if u.unloaded {
		u.mu.Unlock()
		return
	}
	if u.playing {
		u.positionMs += deltaMs
		if u.durationMs > 0 && u.positionMs > u.durationMs {
			u.positionMs = u.durationMs
		}
	}
	status := u.statusLocked()
	cb := u.onStatus
	u.mu.Unlock()

	if cb != nil {
		cb(status)
	}
}

// EmitStatus delivers the current status without advancing the playhead.
func (u *FakeUnit) EmitStatus() {
	u.Tick(0)
}

// EmitFinished simulates the unit reaching end of file: position snaps to the
// duration, playback stops, and a status with DidJustFinish is delivered.
func (u *FakeUnit) EmitFinished() {
	u.mu.Lock()
	if u.unloaded {
		u.mu.Unlock()
		return
	}
	u.positionMs = u.durationMs
	u.playing = false
	status := u.statusLocked()
	status.DidJustFinish = true
	cb := u.onStatus
	u.mu.Unlock()

	if cb != nil {
		cb(status)
	}
}

// statusLocked builds a Status snapshot. Caller holds u.mu.
func (u *FakeUnit) statusLocked() Status {
	return Status{
		PositionMs: u.positionMs,
		DurationMs: u.durationMs,
		IsPlaying:  u.playing,
	}
}
