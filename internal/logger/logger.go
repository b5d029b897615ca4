package logger

import (
	"context"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
)

var Log *logrus.Logger

// Init настраивает логгер процесса. text включает человекочитаемый формат для локальной разработки.
func Init(level string, text bool) {
	l := logrus.New()

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)

	if text {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		l.SetFormatter(&logrus.JSONFormatter{})
	}
	Log = l
}

// For запись с полем component. До Init пишет в стандартный логгер logrus.
func For(component string) *logrus.Entry {
	if Log == nil {
		return logrus.StandardLogger().WithField("component", component)
	}
	return Log.WithField("component", component)
}

// Ctx как For, плюс trace_id и span_id активного спана, чтобы лог можно было найти по трассе.
func Ctx(ctx context.Context, component string) *logrus.Entry {
	entry := For(component)
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return entry
	}
	return entry.WithFields(logrus.Fields{
		"trace_id": sc.TraceID().String(),
		"span_id":  sc.SpanID().String(),
	})
}
