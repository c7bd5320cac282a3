package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/joseph-ayodele/document-extractor/internal/common"
)

// New builds the process logger. Output goes to stdout and, when cfg.File is
// set, to a size-rotated file as well. The returned closer flushes the file.
func New(cfg common.LogConfig) (*slog.Logger, io.Closer) {
	return NewWriter(os.Stdout, cfg)
}

// NewWriter is New with console output sent to console instead of stdout.
func NewWriter(console io.Writer, cfg common.LogConfig) (*slog.Logger, io.Closer) {
	w := console
	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     14, // days
			Compress:   true,
		}
		w = io.MultiWriter(console, lj)
		closer = lj
	}
	return slog.New(newHandler(w, cfg)), closer
}

func newHandler(w io.Writer, cfg common.LogConfig) slog.Handler {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
