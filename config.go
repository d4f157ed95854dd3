package sensormgr

import (
	"github.com/go-playground/validator/v10"
)

// Config carries the capacity knobs named in the manager's resource model
// plus the logging backend selection. Construct with DefaultConfig and
// override only what you need, the same pattern the teacher uses for
// device parameters.
type Config struct {
	// MaxRegisteredSensors bounds the sensor slot table.
	MaxRegisteredSensors int `validate:"gt=0"`

	// MaxClientSensorRecords bounds the (sensor, client) request table.
	MaxClientSensorRecords int `validate:"gt=0"`

	// MaxInternalEvents bounds the shared internal-event pool used for
	// completion events and out-of-process setRate dispatch payloads.
	MaxInternalEvents int `validate:"gt=0"`

	// LogBackend selects the logging implementation used by the manager.
	LogBackend LogBackend `validate:"oneof=standard zap"`
}

// LogBackend selects which logging.Logger implementation backs a Manager.
type LogBackend string

const (
	// LogBackendStandard is the teacher-parity hand-rolled leveled logger.
	LogBackendStandard LogBackend = "standard"
	// LogBackendZap is the zap-backed structured logger, intended for
	// production daemon use (see cmd/sensormgrd).
	LogBackendZap LogBackend = "zap"
)

var configValidator = validator.New()

func init() {
	if err := configValidator.RegisterValidation("ascending", validateAscending); err != nil {
		panic("sensormgr: registering ascending validator: " + err.Error())
	}
}

// validateAscending reports whether a slice field's elements are strictly
// increasing. Used to enforce that registry.Info.SupportedRates lists its
// rates low to high, per SPEC_FULL.md §3.
func validateAscending(fl validator.FieldLevel) bool {
	field := fl.Field()
	for i := 1; i < field.Len(); i++ {
		if field.Index(i).Int() <= field.Index(i-1).Int() {
			return false
		}
	}
	return true
}

// DefaultConfig returns sensible default capacities and the teacher-parity
// logging backend.
func DefaultConfig() Config {
	return Config{
		MaxRegisteredSensors:   DefaultMaxRegisteredSensors,
		MaxClientSensorRecords: DefaultMaxClientSensorRecords,
		MaxInternalEvents:      DefaultMaxInternalEvents,
		LogBackend:             LogBackendStandard,
	}
}

// Validate checks the configuration for internal consistency, returning a
// structured *Error with ErrCodeInvalidConfig on failure.
func (c Config) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		return WrapError("config.Validate", ErrCodeInvalidConfig, err)
	}
	return nil
}
