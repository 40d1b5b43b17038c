package otelutil

import (
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
)

// ErrorHandler creates an [otel.ErrorHandler] that reports errors raised
// during OTel span processing and export through logrus.
func ErrorHandler(opts ...HandlerOption) otel.ErrorHandler {
	c := handlerConfig{
		level: logrus.ErrorLevel,
		extra: make(logrus.Fields),
	}
	for _, o := range opts {
		o(&c)
	}

	return otel.ErrorHandlerFunc(func(err error) {
		// [WithFields] copies c.extra, so a shared fields map cannot be
		// modified inadvertently across calls
		logrus.WithFields(c.extra).WithError(err).Log(c.level, "OpenTelemetry error")
	})
}

type HandlerOption func(*handlerConfig)

type handlerConfig struct {
	level logrus.Level
	extra logrus.Fields
}

// WithLevel specifies the [logrus.Level] to use when writing errors.
//
// The default is [logrus.ErrorLevel].
func WithLevel(l logrus.Level) HandlerOption {
	return func(c *handlerConfig) {
		c.level = l
	}
}

// WithExtra specifies additional [logrus.Fields] to append to the error message.
func WithExtra(fields logrus.Fields) HandlerOption {
	return func(c *handlerConfig) {
		for k, v := range fields {
			c.extra[k] = v
		}
	}
}
