// Package debug implements per-category debug logging.
//
// What to log and how much are controlled independently: the
// AUSKUNFT_DEBUG env var (or config) names categories, and
// AUSKUNFT_LOG_LEVEL (or config) sets verbosity. Known categories are
// providers, engine, ingest, retrieval, storage, auth, transport,
// streaming, config, and the wildcard "all".
//
//	debug.Log("providers", "request", "method", "POST", "url", url)
//	if debug.Enabled("providers") { /* expensive formatting */ }
package debug

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// LevelTrace sits below slog.LevelDebug. TRACE turns on full
// untruncated request and response bodies.
const LevelTrace = slog.LevelDebug - 4

// enabledSet is written once by init()/Init() and read-only afterward.
var enabledSet map[string]bool

func init() {
	enabledSet = splitCategories(os.Getenv("AUSKUNFT_DEBUG"))
}

// Init applies the configured debug categories and log level. The
// environment variables win over the config values, so an operator can
// turn on debugging without editing config files.
func Init(cfgCategories, cfgLevel string) {
	cats := os.Getenv("AUSKUNFT_DEBUG")
	if cats == "" {
		cats = cfgCategories
	}
	enabledSet = splitCategories(cats)

	level := os.Getenv("AUSKUNFT_LOG_LEVEL")
	if level == "" {
		level = cfgLevel
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: ParseLevel(level),
	})))
}

// Enabled reports whether the category (or "all") is switched on.
func Enabled(category string) bool {
	return enabledSet["all"] || enabledSet[category]
}

// Log emits a debug record for the category. No-op when the category
// is off.
func Log(category, msg string, args ...any) {
	if !Enabled(category) {
		return
	}
	slog.Debug(msg, append([]any{"debug", category}, args...)...)
}

// Trace emits a trace-level record for the category. Visible only at
// AUSKUNFT_LOG_LEVEL=TRACE.
func Trace(category, msg string, args ...any) {
	if !Enabled(category) {
		return
	}
	slog.Log(nil, LevelTrace, msg, append([]any{"debug", category}, args...)...)
}

// TraceIsEnabled reports whether trace output would actually be
// emitted for the category.
func TraceIsEnabled(category string) bool {
	return Enabled(category) && slog.Default().Enabled(nil, LevelTrace)
}

// Raw writes text straight to stderr with no slog framing, for
// copy-paste-ready dumps of HTTP bodies and headers. Requires the
// category to be on and the level to be TRACE.
func Raw(category, text string) {
	if !TraceIsEnabled(category) {
		return
	}
	fmt.Fprintln(os.Stderr, text)
}

// ParseLevel maps a level name to a slog.Level. Unknown names fall
// back to INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return LevelTrace
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Categories lists the currently enabled categories.
func Categories() []string {
	out := make([]string, 0, len(enabledSet))
	for name := range enabledSet {
		out = append(out, name)
	}
	return out
}

// Truncate shortens s to maxLen characters, marking the cut with "...".
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

func splitCategories(s string) map[string]bool {
	set := make(map[string]bool)
	for _, part := range strings.Split(s, ",") {
		if name := strings.TrimSpace(strings.ToLower(part)); name != "" {
			set[name] = true
		}
	}
	return set
}
