package logging

import "go.uber.org/zap"

// ZapLogger adapts a zap.SugaredLogger to Interface, backing
// Config.LogBackend == "zap" for production daemon use (cmd/sensormgrd).
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZapLogger builds a ZapLogger from a production zap configuration.
// Falls back to a no-op core if the logger cannot be built, matching the
// standard logger's "never fail to construct" contract.
func NewZapLogger() *ZapLogger {
	z, err := zap.NewProduction()
	if err != nil {
		z = zap.NewNop()
	}
	return &ZapLogger{sugar: z.Sugar()}
}

// NewZapLoggerFrom wraps an already-constructed zap.Logger, for callers
// that want control over zap's own output configuration.
func NewZapLoggerFrom(z *zap.Logger) *ZapLogger {
	return &ZapLogger{sugar: z.Sugar()}
}

func (z *ZapLogger) Debug(msg string, args ...any) { z.sugar.Debugw(msg, args...) }
func (z *ZapLogger) Info(msg string, args ...any)  { z.sugar.Infow(msg, args...) }
func (z *ZapLogger) Warn(msg string, args ...any)  { z.sugar.Warnw(msg, args...) }
func (z *ZapLogger) Error(msg string, args ...any) { z.sugar.Errorw(msg, args...) }

func (z *ZapLogger) WithSensor(handle uint32) Interface {
	return &ZapLogger{sugar: z.sugar.With("sensor_handle", handle)}
}

func (z *ZapLogger) WithClient(client uint32) Interface {
	return &ZapLogger{sugar: z.sugar.With("client_id", client)}
}

func (z *ZapLogger) WithRequest(handle uint32, op string) Interface {
	return &ZapLogger{sugar: z.sugar.With("sensor_handle", handle, "op", op)}
}

func (z *ZapLogger) WithError(err error) Interface {
	return &ZapLogger{sugar: z.sugar.With("error", err)}
}
