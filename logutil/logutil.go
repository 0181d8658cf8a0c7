// logutil.go - Logger-Konstruktion fuer lorapatch
//
// Dieses Modul enthaelt:
// - NewLogger: Erstellt einen slog-Logger mit Level und Source-Angabe
// - Trace/TraceContext: Logging unterhalb von Debug
package logutil

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
)

const LevelTrace slog.Level = slog.LevelDebug - 4

// NewLogger erstellt einen Text-Logger mit kurzem Source-Pfad
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: true,
		ReplaceAttr: func(_ []string, attr slog.Attr) slog.Attr {
			if attr.Key == slog.SourceKey {
				source := attr.Value.Any().(*slog.Source)
				source.File = filepath.Base(source.File)
			}
			return attr
		},
	}))
}

func Trace(msg string, args ...any) {
	slog.Log(context.TODO(), LevelTrace, msg, args...)
}

func TraceContext(ctx context.Context, msg string, args ...any) {
	slog.Log(ctx, LevelTrace, msg, args...)
}
