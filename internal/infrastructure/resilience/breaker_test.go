package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFailed = errors.New("failed")

type clock struct{ t time.Time }

func (c *clock) now() time.Time           { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newBreaker(c *clock, s Settings) *Breaker {
	s.now = c.now
	return New("test", s)
}

func fail() error    { return errFailed }
func succeed() error { return nil }

func TestBreakerStateTransitions(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
		requests []bool // true = success, false = failure
		want     State
	}{
		{
			name:     "stays closed on successes",
			requests: []bool{true, true, true},
			want:     StateClosed,
		},
		{
			name:     "opens after consecutive failures",
			settings: Settings{Trip: func(c Counts) bool { return c.ConsecutiveFailures >= 3 }},
			requests: []bool{false, false, false},
			want:     StateOpen,
		},
		{
			name:     "success resets the streak",
			settings: Settings{Trip: func(c Counts) bool { return c.ConsecutiveFailures >= 2 }},
			requests: []bool{false, true, false},
			want:     StateClosed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBreaker(&clock{t: time.Unix(0, 0)}, tt.settings)
			for _, ok := range tt.requests {
				if ok {
					_ = b.Do(succeed)
				} else {
					_ = b.Do(fail)
				}
			}
			assert.Equal(t, tt.want, b.State())
		})
	}
}

func TestBreakerCounts(t *testing.T) {
	b := newBreaker(&clock{t: time.Unix(0, 0)}, Settings{})

	require.NoError(t, b.Do(succeed))
	assert.Equal(t, Counts{Requests: 1, Successes: 1, ConsecutiveSuccesses: 1}, b.Counts())

	assert.ErrorIs(t, b.Do(fail), errFailed)
	assert.Equal(t, Counts{Requests: 2, Successes: 1, Failures: 1, ConsecutiveFailures: 1}, b.Counts())
}

func TestBreakerWindowClearsCounts(t *testing.T) {
	c := &clock{t: time.Unix(0, 0)}
	b := newBreaker(c, Settings{Window: time.Second})

	_ = b.Do(fail)
	c.advance(2 * time.Second)

	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, Counts{}, b.Counts())
}

func TestBreakerCooldownAndRecovery(t *testing.T) {
	c := &clock{t: time.Unix(0, 0)}
	var transitions []string
	b := newBreaker(c, Settings{
		HalfOpenProbes: 2,
		Cooldown:       time.Second,
		Trip:           func(c Counts) bool { return c.ConsecutiveFailures >= 2 },
		OnStateChange: func(_ string, from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	_ = b.Do(fail)
	_ = b.Do(fail)
	assert.Equal(t, StateOpen, b.State())
	assert.ErrorIs(t, b.Do(succeed), ErrCircuitOpen)

	c.advance(2 * time.Second)
	assert.Equal(t, StateHalfOpen, b.State())

	require.NoError(t, b.Do(succeed))
	require.NoError(t, b.Do(succeed))
	assert.Equal(t, StateClosed, b.State())

	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	c := &clock{t: time.Unix(0, 0)}
	b := newBreaker(c, Settings{
		Cooldown: time.Second,
		Trip:     func(c Counts) bool { return c.ConsecutiveFailures >= 1 },
	})

	_ = b.Do(fail)
	c.advance(2 * time.Second)
	require.Equal(t, StateHalfOpen, b.State())

	assert.ErrorIs(t, b.Do(fail), errFailed)
	assert.Equal(t, StateOpen, b.State())
}

func TestCall(t *testing.T) {
	b := newBreaker(&clock{t: time.Unix(0, 0)}, Settings{})

	got, err := Call(b, func() (string, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
}

func TestGroup(t *testing.T) {
	g := NewGroup(Settings{Trip: func(c Counts) bool { return c.ConsecutiveFailures >= 1 }})

	a := g.Get("a.example")
	assert.Same(t, a, g.Get("a.example"))

	_ = a.Do(fail)
	_ = g.Get("b.example").Do(succeed)

	assert.Equal(t, map[string]State{"a.example": StateOpen, "b.example": StateClosed}, g.States())
}
