package security

import (
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ClientLimiter applies a token bucket per client key, for example an IP
// address. Buckets unused for longer than the idle window are discarded.
type ClientLimiter struct {
	requestsPerSecond float64
	burst             int
	idle              time.Duration
	now               func() time.Time

	mu      sync.Mutex
	clients map[string]*clientBucket
	sweep   time.Time
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewClientLimiter creates a limiter allowing requestsPerSecond with burst
// per client.
func NewClientLimiter(requestsPerSecond float64, burst int) *ClientLimiter {
	return &ClientLimiter{
		requestsPerSecond: requestsPerSecond,
		burst:             burst,
		idle:              10 * time.Minute,
		now:               time.Now,
		clients:           make(map[string]*clientBucket),
	}
}

// Allow reports whether clientID may make a request now.
func (cl *ClientLimiter) Allow(clientID string) bool {
	now := cl.now()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if now.Sub(cl.sweep) > cl.idle {
		for id, b := range cl.clients {
			if now.Sub(b.lastSeen) > cl.idle {
				delete(cl.clients, id)
			}
		}
		cl.sweep = now
	}

	b, ok := cl.clients[clientID]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(rate.Limit(cl.requestsPerSecond), cl.burst)}
		cl.clients[clientID] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

// Clients reports how many buckets are tracked.
func (cl *ClientLimiter) Clients() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return len(cl.clients)
}

// ErrCircuitOpen is returned while a breaker is rejecting calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	}
	return "closed"
}

// CircuitBreaker stops calling a failing dependency for resetTimeout after
// maxFailures consecutive failures, then lets calls through again to probe it.
// Calls are not serialized; the breaker only tracks outcomes.
type CircuitBreaker struct {
	maxFailures  int
	resetTimeout time.Duration
	now          func() time.Time

	mu          sync.Mutex
	failures    int
	lastFailure time.Time
	state       CircuitState
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(maxFailures int, resetTimeout time.Duration) *CircuitBreaker {
	if maxFailures <= 0 {
		maxFailures = 1
	}
	return &CircuitBreaker{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		now:          time.Now,
		state:        CircuitClosed,
	}
}

// Execute runs fn unless the circuit is open.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.before(); err != nil {
		return err
	}
	err := fn()
	cb.after(err)
	return err
}

func (cb *CircuitBreaker) before() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitOpen && cb.now().Sub(cb.lastFailure) >= cb.resetTimeout {
		cb.state = CircuitHalfOpen
	}
	if cb.state == CircuitOpen {
		return ErrCircuitOpen
	}
	return nil
}

func (cb *CircuitBreaker) after(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err == nil {
		cb.failures = 0
		cb.state = CircuitClosed
		return
	}

	cb.failures++
	cb.lastFailure = cb.now()
	if cb.state == CircuitHalfOpen || cb.failures >= cb.maxFailures {
		cb.state = CircuitOpen
	}
}

// State returns the current state of the circuit breaker.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == CircuitOpen && cb.now().Sub(cb.lastFailure) >= cb.resetTimeout {
		return CircuitHalfOpen
	}
	return cb.state
}

// Reset manually closes the circuit.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.state = CircuitClosed
}
