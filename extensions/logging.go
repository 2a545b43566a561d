package extensions

import (
	"go.uber.org/zap"

	dispose "github.com/disposable-fn/dispose-go"
)

// LoggingExtension logs scope registrations, teardown failures and scope
// disposal through a zap logger.
type LoggingExtension struct {
	dispose.BaseExtension
	logger *zap.Logger
}

// NewLoggingExtension creates a new logging extension. A nil logger
// falls back to zap.NewNop.
func NewLoggingExtension(logger *zap.Logger) *LoggingExtension {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoggingExtension{
		BaseExtension: dispose.NewBaseExtension("logging"),
		logger:        logger,
	}
}

func (e *LoggingExtension) OnRegister(scope *dispose.Scope, d dispose.AnyDisposable) {
	e.logger.Debug("registered disposable",
		zap.String("scope", scope.ID()),
		zap.String("label", d.Label()),
		zap.Stringer("teardown", d.TeardownKind()),
	)
}

func (e *LoggingExtension) OnTeardownError(err *dispose.TeardownError) bool {
	e.logger.Error("teardown failed",
		zap.String("label", err.Label),
		zap.String("phase", err.Phase),
		zap.Error(err.Err),
	)
	// Logged, not handled: the failure still aggregates into the
	// scope's reported error.
	return false
}

func (e *LoggingExtension) Dispose(scope *dispose.Scope) error {
	e.logger.Debug("scope closed", zap.String("scope", scope.ID()))
	return nil
}

// LoggingObserver logs manager lifecycle events through a zap logger.
type LoggingObserver struct {
	logger *zap.Logger
}

// NewLoggingObserver creates a manager observer. A nil logger falls back
// to zap.NewNop.
func NewLoggingObserver(logger *zap.Logger) *LoggingObserver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoggingObserver{logger: logger}
}

func (o *LoggingObserver) OnCreate(manager, key string) {
	o.logger.Info("resource created",
		zap.String("manager", manager),
		zap.String("key", key),
	)
}

func (o *LoggingObserver) OnBorrow(manager, key string, count int) {
	o.logger.Debug("resource borrowed",
		zap.String("manager", manager),
		zap.String("key", key),
		zap.Int("count", count),
	)
}

func (o *LoggingObserver) OnRelease(manager, key string, count int) {
	o.logger.Debug("resource released",
		zap.String("manager", manager),
		zap.String("key", key),
		zap.Int("count", count),
	)
}

func (o *LoggingObserver) OnTeardown(manager, key string, err error) {
	if err != nil {
		o.logger.Error("resource teardown failed",
			zap.String("manager", manager),
			zap.String("key", key),
			zap.Error(err),
		)
		return
	}
	o.logger.Info("resource torn down",
		zap.String("manager", manager),
		zap.String("key", key),
	)
}
