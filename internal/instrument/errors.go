package instrument

import (
	"errors"
	"fmt"
)

var (
	ErrMissingOwner    = errors.New("owner object not found")
	ErrMissingCallable = errors.New("original member is not callable")
	ErrMissingSetter   = errors.New("original property has no setter")
	ErrNotConfigurable = errors.New("original property is not configurable")
	ErrNotWritable     = errors.New("original member is read-only")
	ErrNotExtensible   = errors.New("owner object is not extensible")
	ErrInvalidHook     = errors.New("invalid hook")
	ErrUnknownSink     = errors.New("unknown sink")
	ErrForeignResult   = errors.New("result global is already defined by someone else")
)

// ConfigError reports a catalogue hook that cannot be installed.
type ConfigError struct {
	Hook Hook
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("instrument: hook %q on %s.%s: %v", e.Hook.Sink, e.Hook.Owner, e.Hook.Member, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
