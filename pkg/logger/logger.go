// Package logger builds the slog loggers used by kgembed.
//
// Text output colours warnings yellow, errors red and persistence messages
// (checkpoints, exports) green when writing to a terminal. JSON output is
// plain slog.JSONHandler.
package logger

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// Format selects the handler.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// persistenceMarkers flag INFO messages that are highlighted in green.
var persistenceMarkers = []string{"saved", "persist", "checkpoint", "export"}

// NewDefaultLogger returns a text logger on stderr.
func NewDefaultLogger(level slog.Level) *slog.Logger {
	return NewLogger(os.Stderr, level, FormatText)
}

// NewLogger returns a logger writing to w. Colours are used only when w is a terminal.
func NewLogger(w io.Writer, level slog.Level, format Format) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == FormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(NewColorHandler(w, opts, isTerminal(w)))
}

// ParseLevel maps "debug", "info", "warn" and "error" to slog levels. Unknown
// values fall back to info.
func ParseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// ColorHandler renders records as slog text lines, coloured by level.
// Handlers derived with WithAttrs or WithGroup share the buffer and lock.
type ColorHandler struct {
	mu     *sync.Mutex
	buf    *bytes.Buffer
	w      io.Writer
	inner  slog.Handler
	colors bool

	yellow *color.Color
	red    *color.Color
	green  *color.Color
}

// NewColorHandler creates a handler writing to w. When colors is false the
// output matches slog.TextHandler apart from the shorter timestamp.
func NewColorHandler(w io.Writer, opts *slog.HandlerOptions, colors bool) *ColorHandler {
	var o slog.HandlerOptions
	if opts != nil {
		o = *opts
	}
	replace := o.ReplaceAttr
	o.ReplaceAttr = func(groups []string, a slog.Attr) slog.Attr {
		if len(groups) == 0 && a.Key == slog.TimeKey && a.Value.Kind() == slog.KindTime {
			a = slog.String(slog.TimeKey, a.Value.Time().Format(time.DateTime))
		}
		if replace != nil {
			return replace(groups, a)
		}
		return a
	}

	buf := &bytes.Buffer{}
	h := &ColorHandler{
		mu:     &sync.Mutex{},
		buf:    buf,
		w:      w,
		inner:  slog.NewTextHandler(buf, &o),
		colors: colors,
		yellow: color.New(color.FgYellow),
		red:    color.New(color.FgRed),
		green:  color.New(color.FgGreen),
	}
	if colors {
		for _, c := range []*color.Color{h.yellow, h.red, h.green} {
			c.EnableColor()
		}
	}
	return h
}

func (h *ColorHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *ColorHandler) Handle(ctx context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.buf.Reset()
	if err := h.inner.Handle(ctx, r); err != nil {
		return err
	}
	line := h.buf.String()
	if c := h.colorFor(r); c != nil {
		line = c.Sprint(strings.TrimSuffix(line, "\n")) + "\n"
	}
	_, err := io.WriteString(h.w, line)
	return err
}

func (h *ColorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.inner = h.inner.WithAttrs(attrs)
	return &clone
}

func (h *ColorHandler) WithGroup(name string) slog.Handler {
	clone := *h
	clone.inner = h.inner.WithGroup(name)
	return &clone
}

func (h *ColorHandler) colorFor(r slog.Record) *color.Color {
	if !h.colors {
		return nil
	}
	switch {
	case r.Level >= slog.LevelError:
		return h.red
	case r.Level >= slog.LevelWarn:
		return h.yellow
	case r.Level == slog.LevelInfo && isPersistence(r.Message):
		return h.green
	}
	return nil
}

func isPersistence(msg string) bool {
	lower := strings.ToLower(msg)
	for _, m := range persistenceMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}
