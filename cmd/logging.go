package main

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/gwuah/steerd/types"
)

const (
	CookieKey string = "cookie"
)

var logLevelMap = map[string]slog.Level{
	"trace": types.LevelTrace,
	"debug": types.LevelDebug,
	"info":  types.LevelInfo,
	"warn":  types.LevelWarn,
	"error": types.LevelError,
}

func logReplacements(groups []string, a slog.Attr) slog.Attr {
	// Remove time.
	if a.Key == slog.TimeKey && len(groups) == 0 && !logTimeFlag {
		return slog.Attr{}
	}

	// Remove the directory from the source's filename.
	if a.Key == slog.SourceKey {
		source, ok := a.Value.Any().(*slog.Source)
		if ok {
			source.File = filepath.Base(source.File)
		}
	}

	// slog would print our trace level as DEBUG-1.
	if a.Key == slog.LevelKey && len(groups) == 0 {
		level, ok := a.Value.Any().(slog.Level)
		if ok {
			return slog.String(slog.LevelKey, types.LevelName(level))
		}
	}

	// Socket cookies are easier to compare in hex.
	if a.Key == CookieKey {
		cookie, ok := a.Value.Any().(uint64)
		if ok {
			return slog.String(a.Key, fmt.Sprintf("%#x", cookie))
		}
	}

	return a
}
