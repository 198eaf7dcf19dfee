// Package logging provides the console logger used by the CLI.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// LevelTrace is below slog.LevelDebug and carries per-change detail.
const LevelTrace = slog.Level(-8)

// ParseVerbosity maps a verbosity name to the lowest level logged.
func ParseVerbosity(v string) (slog.Level, error) {
	switch strings.ToLower(v) {
	case "q", "quiet":
		return slog.LevelError, nil
	case "m", "minimal":
		return slog.LevelWarn, nil
	case "", "n", "normal":
		return slog.LevelInfo, nil
	case "d", "detailed":
		return slog.LevelDebug, nil
	case "diag", "diagnostic":
		return LevelTrace, nil
	}
	return 0, fmt.Errorf("unknown verbosity %q", v)
}

// New returns a logger writing to f, colored when f is a terminal.
func New(f *os.File, level slog.Leveler) *slog.Logger {
	return slog.New(NewConsoleHandler(f, level, term.IsTerminal(int(f.Fd()))))
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// ConsoleHandler writes one "level: message key=value..." line per record.
type ConsoleHandler struct {
	mu     *sync.Mutex
	w      io.Writer
	level  slog.Leveler
	colors map[slog.Level]*color.Color
	attrs  string
	group  string
}

// NewConsoleHandler returns a handler writing records at or above level.
func NewConsoleHandler(w io.Writer, level slog.Leveler, colored bool) *ConsoleHandler {
	colors := map[slog.Level]*color.Color{
		LevelTrace:      color.New(color.FgHiBlack),
		slog.LevelDebug: color.New(color.FgCyan),
		slog.LevelInfo:  color.New(color.FgGreen),
		slog.LevelWarn:  color.New(color.FgYellow, color.Bold),
		slog.LevelError: color.New(color.FgRed, color.Bold),
	}
	for _, c := range colors {
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return &ConsoleHandler{mu: &sync.Mutex{}, w: w, level: level, colors: colors}
}

func (h *ConsoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *ConsoleHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	tag, c := h.tag(r.Level)
	b.WriteString(c.Sprint(tag))
	b.WriteString(": ")
	b.WriteString(r.Message)
	b.WriteString(h.attrs)
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&b, h.group, a)
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *ConsoleHandler) tag(level slog.Level) (string, *color.Color) {
	switch {
	case level >= slog.LevelError:
		return "error", h.colors[slog.LevelError]
	case level >= slog.LevelWarn:
		return "warn", h.colors[slog.LevelWarn]
	case level >= slog.LevelInfo:
		return "info", h.colors[slog.LevelInfo]
	case level >= slog.LevelDebug:
		return "debug", h.colors[slog.LevelDebug]
	default:
		return "trace", h.colors[LevelTrace]
	}
}

func (h *ConsoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	var b strings.Builder
	b.WriteString(h.attrs)
	for _, a := range attrs {
		writeAttr(&b, h.group, a)
	}
	h2 := *h
	h2.attrs = b.String()
	return &h2
}

func (h *ConsoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	h2.group = h.group + name + "."
	return &h2
}

func writeAttr(b *strings.Builder, group string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		prefix := group
		if a.Key != "" {
			prefix += a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			writeAttr(b, prefix, ga)
		}
		return
	}
	v := a.Value.String()
	if v == "" || strings.ContainsAny(v, " \t\n\"=") {
		v = strconv.Quote(v)
	}
	b.WriteByte(' ')
	b.WriteString(group)
	b.WriteString(a.Key)
	b.WriteByte('=')
	b.WriteString(v)
}
