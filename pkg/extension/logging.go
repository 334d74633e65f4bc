package extension

import (
	"log/slog"

	"github.com/vango-dev/trackstate/pkg/state"
)

// LoggingExtension writes store activity to a slog.Logger.
type LoggingExtension struct {
	logger *slog.Logger

	// IncludeValues adds written values to write records.
	IncludeValues bool
}

// Logging creates an extension that logs store activity. A nil logger
// uses slog.Default().
func Logging(logger *slog.Logger) *LoggingExtension {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingExtension{logger: logger}
}

// Name implements state.Extension.
func (l *LoggingExtension) Name() string { return "logging" }

// OnInit implements state.InitHook.
func (l *LoggingExtension) OnInit(s *state.Store) {
	l.logger.Info("store active", "store", s.ID(), "pending", s.Promised())
}

// OnDestroy implements state.DestroyHook.
func (l *LoggingExtension) OnDestroy(s *state.Store) {
	l.logger.Info("store destroyed", "store", s.ID())
}

// OnSet implements state.SetHook.
func (l *LoggingExtension) OnSet(ev state.SetEvent) {
	attrs := []any{
		"store", ev.Store.ID(),
		"path", ev.Path.String(),
		"op", opOf(ev),
		"action", actionName(actionOf(ev)),
		"edition", ev.Store.Edition(),
	}
	if l.IncludeValues {
		attrs = append(attrs, "value", formatValue(ev.Value))
	}
	l.logger.Debug("write", attrs...)
}

// OnNotify implements state.NotifyHook.
func (l *LoggingExtension) OnNotify(ev state.NotifyEvent) {
	if ev.Observers == 0 {
		return
	}
	l.logger.Debug("notify", "store", ev.Store.ID(), "mutations", len(ev.Mutations), "observers", ev.Observers)
}

// OnBatchStart implements state.BatchHook.
func (l *LoggingExtension) OnBatchStart(s *state.Store) {
	l.logger.Debug("batch start", "store", s.ID())
}

// OnBatchFinish implements state.BatchHook.
func (l *LoggingExtension) OnBatchFinish(s *state.Store) {
	l.logger.Debug("batch finish", "store", s.ID())
}
