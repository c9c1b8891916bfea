// Package logging configures the process logger and adapts it to the
// Temporal SDK's logging interface so workflow, activity, and process logs
// share one structured output.
package logging

import (
	"fmt"

	sdklog "go.temporal.io/sdk/log"
	"go.uber.org/zap"
)

// New builds the process logger. Development mode enables human-readable
// console output.
func New(development bool) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if development {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

// Adapter adapts a zap logger to the Temporal SDK log.Logger interface.
type Adapter struct {
	sugar *zap.SugaredLogger
}

var _ sdklog.Logger = (*Adapter)(nil)

// NewAdapter wraps the given zap logger for use as a Temporal client
// logger. The extra caller skip removes the adapter frame from call sites.
func NewAdapter(logger *zap.Logger) *Adapter {
	return &Adapter{sugar: logger.WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

// Debug implements log.Logger.
func (a *Adapter) Debug(msg string, keyvals ...any) { a.sugar.Debugw(msg, keyvals...) }

// Info implements log.Logger.
func (a *Adapter) Info(msg string, keyvals ...any) { a.sugar.Infow(msg, keyvals...) }

// Warn implements log.Logger.
func (a *Adapter) Warn(msg string, keyvals ...any) { a.sugar.Warnw(msg, keyvals...) }

// Error implements log.Logger.
func (a *Adapter) Error(msg string, keyvals ...any) { a.sugar.Errorw(msg, keyvals...) }
