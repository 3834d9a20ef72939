package health

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

var errCheckTimeout = errors.New("check timed out")

// CheckFunc verifica una singola dipendenza
type CheckFunc func(ctx context.Context) error

// Status è l'esito di un giro di controlli
type Status struct {
	Ready     bool              `json:"ready"`
	Checks    map[string]string `json:"checks"`
	CheckedAt time.Time         `json:"checked_at"`
}

// Checker esegue in parallelo i controlli di readiness registrati
// (database, redis), ciascuno con un timeout.
type Checker struct {
	mu      sync.RWMutex
	checks  map[string]CheckFunc
	timeout time.Duration
}

// NewChecker crea un nuovo checker. timeout <= 0 usa 5s.
func NewChecker(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Checker{
		checks:  make(map[string]CheckFunc),
		timeout: timeout,
	}
}

// Register aggiunge (o sostituisce) un controllo
func (c *Checker) Register(name string, fn CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = fn
}

// Names restituisce i controlli registrati in ordine alfabetico
func (c *Checker) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Check esegue tutti i controlli. Ready è true solo se nessuno fallisce.
// Un controllo che non risponde entro il timeout è riportato come fallito,
// anche se ignora il context.
func (c *Checker) Check(ctx context.Context) Status {
	c.mu.RLock()
	checks := make(map[string]CheckFunc, len(c.checks))
	for name, fn := range c.checks {
		checks[name] = fn
	}
	c.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	type outcome struct {
		name string
		err  error
	}

	// Buffered so late checks never block after Check has returned
	done := make(chan outcome, len(checks))
	for name, fn := range checks {
		go func(name string, fn CheckFunc) {
			done <- outcome{name: name, err: fn(ctx)}
		}(name, fn)
	}

	results := make(map[string]string, len(checks))
	ready := true

	record := func(name string, err error) {
		if err == nil {
			results[name] = "ok"
			return
		}
		ready = false
		results[name] = err.Error()
		log.Warn().
			Err(err).
			Str("check", name).
			Msg("Readiness check failed")
	}

	for len(results) < len(checks) {
		select {
		case o := <-done:
			record(o.name, o.err)
		case <-ctx.Done():
			for name := range checks {
				if _, ok := results[name]; !ok {
					record(name, errCheckTimeout)
				}
			}
		}
	}

	return Status{
		Ready:     ready,
		Checks:    results,
		CheckedAt: time.Now(),
	}
}
