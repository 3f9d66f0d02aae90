package cli

import "go.uber.org/zap"

// sessionLogger wraps zap for verbose debug with server context.
type sessionLogger struct {
	sugared *zap.SugaredLogger
	server  string
}

func newSessionLogger(verbose bool, server string) *sessionLogger {
	if !verbose {
		return &sessionLogger{}
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	cfg.Encoding = "json"
	logger, _ := cfg.Build()
	return &sessionLogger{
		sugared: logger.Sugar(),
		server:  server,
	}
}

func (l *sessionLogger) Debug(format string, args ...interface{}) {
	if l.sugared == nil {
		return
	}
	l.sugared.With("server", l.server).Debugf(format, args...)
}
