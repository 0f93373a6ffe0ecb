package base

import (
  "io"
  "os"
  "strings"

  "github.com/rs/zerolog"
)

var (
  logOutput io.Writer = os.Stderr
  logLevel            = zerolog.WarnLevel
  logger              = newLogger()
)

func newLogger() *zerolog.Logger {
  lg := zerolog.New(logOutput).Level(logLevel).With().Timestamp().Logger()
  return &lg
}

func SetLogLevel(level string) {
  switch strings.ToLower(level) {
  case "debug":
    logLevel = zerolog.DebugLevel
  case "info":
    logLevel = zerolog.InfoLevel
  case "warn":
    logLevel = zerolog.WarnLevel
  case "error":
    logLevel = zerolog.ErrorLevel
  case "off", "disabled":
    logLevel = zerolog.Disabled
  }
  logger = newLogger()
}

// SetLogOutput redirects the log, nil restores stderr.
func SetLogOutput(w io.Writer) {
  if w == nil {
    w = os.Stderr
  }
  logOutput = w
  logger = newLogger()
}

func Logger() *zerolog.Logger {
  return logger
}
