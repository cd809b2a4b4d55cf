package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// overrideCore decides levels with its own enabler and delegates everything
// else to the wrapped core, so the radio can log louder or quieter than the
// rest of the daemon.
type overrideCore struct {
	zapcore.Core

	// enabler replaces the level check of the wrapped core.
	enabler zapcore.LevelEnabler
}

// Enabled ignores the wrapped core's level.
func (o *overrideCore) Enabled(lvl zapcore.Level) bool {
	return o.enabler.Enabled(lvl)
}

// Level lets zapcore.LevelOf report the override.
func (o *overrideCore) Level() zapcore.Level {
	return zapcore.LevelOf(o.enabler)
}

// Check registers o itself, not the wrapped core, so entries the wrapped
// level would filter still reach Write.
//
//nolint:gocritic // zapcore.Core passes entries by value.
func (o *overrideCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !o.Enabled(entry.Level) {
		return checked
	}

	return checked.AddCore(entry, o)
}

// With keeps the override on derived loggers.
//
//nolint:ireturn // zapcore.Core is the contract.
func (o *overrideCore) With(fields []zapcore.Field) zapcore.Core {
	return &overrideCore{Core: o.Core.With(fields), enabler: o.enabler}
}

// WithLevel is a zap option giving a derived logger its own minimum level.
// Passing a zap.AtomicLevel makes the override adjustable at runtime.
//
//nolint:ireturn // zap.Option is the contract.
func WithLevel(enabler zapcore.LevelEnabler) zap.Option {
	return zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return &overrideCore{Core: core, enabler: enabler}
	})
}
