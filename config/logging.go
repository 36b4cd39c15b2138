package config

import (
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/muesli/termenv"
)

var logLevels = map[string]log.Level{
	"error": log.ErrorLevel,
	"warn":  log.WarnLevel,
	"info":  log.InfoLevel,
	"debug": log.DebugLevel,
	// charmbracelet/log has nothing below debug
	"trace": log.DebugLevel,
}

var logFormats = map[string]log.Formatter{
	"text":   log.TextFormatter,
	"json":   log.JSONFormatter,
	"logfmt": log.LogfmtFormatter,
}

// SetupLogging configures the default logger. A level of "off" discards all
// output.
func SetupLogging(conf LogConf, w io.Writer) error {
	formatter, ok := logFormats[conf.Format]
	if !ok {
		return fmt.Errorf("unknown log format %q", conf.Format)
	}
	log.SetFormatter(formatter)
	log.SetReportTimestamp(true)

	if conf.Level == "off" {
		log.SetOutput(io.Discard)
		return nil
	}
	level, ok := logLevels[conf.Level]
	if !ok {
		return fmt.Errorf("unknown log level %q", conf.Level)
	}
	// SetOutput replaces the renderer, so the color profile goes after it.
	log.SetOutput(w)
	log.SetLevel(level)

	switch conf.Style {
	case "auto":
	case "always":
		log.SetColorProfile(termenv.ANSI256)
	case "never":
		log.SetColorProfile(termenv.Ascii)
	default:
		return fmt.Errorf("unknown log style %q", conf.Style)
	}
	return nil
}
