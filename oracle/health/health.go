package health

import (
	"context"
	"sync"
	"time"

	"github.com/GPTx-global/oracle-relayer/oracle/log"
	"github.com/GPTx-global/oracle-relayer/oracle/provider"
)

const DefaultInterval = 30 * time.Second

// Check is a single named probe.
type Check interface {
	Check(ctx context.Context) error
	Name() string
}

// Checker runs its checks periodically and keeps the latest result of each.
type Checker struct {
	mu       sync.RWMutex
	checks   map[string]Check
	status   map[string]Status
	interval time.Duration
	now      func() time.Time
}

// Status is the outcome of the last run of a check.
type Status struct {
	Healthy   bool      `json:"healthy"`
	LastCheck time.Time `json:"last_check"`
	LastError string    `json:"last_error,omitempty"`
}

func NewChecker(interval time.Duration) *Checker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Checker{
		checks:   make(map[string]Check),
		status:   make(map[string]Status),
		interval: interval,
		now:      time.Now,
	}
}

// AddCheck registers check. A check is considered healthy until its first run.
func (c *Checker) AddCheck(check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()

	name := check.Name()
	c.checks[name] = check
	c.status[name] = Status{Healthy: true, LastCheck: c.now()}

	log.Debugf("Added health check: %s", name)
}

// Start runs every check immediately and then once per interval until ctx is done.
func (c *Checker) Start(ctx context.Context) {
	log.Infof("Health checker started, checking every %v", c.interval)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.RunChecks(ctx)

	for {
		select {
		case <-ticker.C:
			c.RunChecks(ctx)
		case <-ctx.Done():
			log.Info("Health checker stopped")
			return
		}
	}
}

// RunChecks runs every check concurrently and returns once all have reported.
func (c *Checker) RunChecks(ctx context.Context) {
	c.mu.RLock()
	checks := make([]Check, 0, len(c.checks))
	for _, check := range c.checks {
		checks = append(checks, check)
	}
	c.mu.RUnlock()

	var wg sync.WaitGroup
	for _, check := range checks {
		wg.Add(1)
		go func(check Check) {
			defer wg.Done()

			err := check.Check(ctx)
			status := Status{Healthy: err == nil, LastCheck: c.now()}
			if err != nil {
				status.LastError = err.Error()
				log.Warnf("Health check failed - %s: %v", check.Name(), err)
			}

			c.mu.Lock()
			c.status[check.Name()] = status
			c.mu.Unlock()
		}(check)
	}
	wg.Wait()
}

func (c *Checker) GetStatus() map[string]Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[string]Status, len(c.status))
	for name, status := range c.status {
		result[name] = status
	}
	return result
}

// IsHealthy reports whether every check passed its last run.
func (c *Checker) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, status := range c.status {
		if !status.Healthy {
			return false
		}
	}
	return true
}

// FuncCheck adapts a function to Check.
type FuncCheck struct {
	name  string
	check func(ctx context.Context) error
}

func NewFuncCheck(name string, check func(ctx context.Context) error) *FuncCheck {
	return &FuncCheck{name: name, check: check}
}

func (f *FuncCheck) Check(ctx context.Context) error {
	return f.check(ctx)
}

func (f *FuncCheck) Name() string {
	return f.name
}

// ProviderCheck probes a network adapter's RPC connection.
func ProviderCheck(p provider.Provider) Check {
	return NewFuncCheck("rpc/"+p.Descriptor().ID, p.HealthCheck)
}
