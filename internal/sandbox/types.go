package sandbox

import (
	"errors"
	"time"
)

var (
	ErrClosed      = errors.New("sandbox runtime is closed")
	ErrInterrupted = errors.New("sandbox execution interrupted")
)

// Config defines sandbox configuration
type Config struct {
	MaxCallStack  int           // Maximum JS call stack depth
	Timeout       time.Duration // Per-script execution timeout
	EnableConsole bool          // Capture console.log/info/warn/error
	TimerBudget   int           // Maximum timer callbacks per RunTimers
	IntervalRuns  int           // Maximum runs of a single setInterval
	URL           string        // Value exposed through window.location
}

// Result holds the outcome of one Execute call
type Result struct {
	Value           interface{}   // Completion value
	Console         []LogEntry    // Console output produced by this call
	ExternalScripts []string      // src of scripts inserted by this call
	Duration        time.Duration // Execution time
	Error           error         // Execution error
}

// LogEntry represents console output
type LogEntry struct {
	Level   string    `json:"level" yaml:"level"`
	Message string    `json:"message" yaml:"message"`
	Time    time.Time `json:"time" yaml:"time"`
}

// ScriptError describes a script, listener or timer callback that threw.
type ScriptError struct {
	Script  string `json:"script" yaml:"script"`
	Message string `json:"message" yaml:"message"`
}

// DefaultConfig returns the default sandbox configuration
func DefaultConfig() Config {
	return Config{
		MaxCallStack:  1024,
		Timeout:       5 * time.Second,
		EnableConsole: true,
		TimerBudget:   1000,
		IntervalRuns:  10,
		URL:           "about:blank",
	}
}
