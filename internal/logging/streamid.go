package logging

type streamIDCapable interface {
	WithStreamID(string) Logger
}

// WithStreamID returns a logger that tags every line with the stream it
// belongs to, so interleaved output from concurrent detectors stays readable.
func WithStreamID(logger Logger, streamID string) Logger {
	if IsNil(logger) {
		return Nop()
	}
	if streamID == "" {
		return logger
	}
	if capable, ok := logger.(streamIDCapable); ok {
		return capable.WithStreamID(streamID)
	}
	return &streamIDLogger{logger: logger, streamID: streamID}
}

type streamIDLogger struct {
	logger   Logger
	streamID string
}

// WithStreamID replaces the tag rather than stacking a second one.
func (l *streamIDLogger) WithStreamID(streamID string) Logger {
	return &streamIDLogger{logger: l.logger, streamID: streamID}
}

func (l *streamIDLogger) Debug(format string, args ...any) {
	l.logger.Debug(prefixStreamID(l.streamID, format), args...)
}

func (l *streamIDLogger) Info(format string, args ...any) {
	l.logger.Info(prefixStreamID(l.streamID, format), args...)
}

func (l *streamIDLogger) Warn(format string, args ...any) {
	l.logger.Warn(prefixStreamID(l.streamID, format), args...)
}

func (l *streamIDLogger) Error(format string, args ...any) {
	l.logger.Error(prefixStreamID(l.streamID, format), args...)
}

func prefixStreamID(streamID, format string) string {
	return "stream=" + streamID + " " + format
}
