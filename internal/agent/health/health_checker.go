// Package health tracks component availability for the agent and HTTP
// surfaces. The rollup distinguishes a degraded server, which still answers
// analyses with reduced tiers, from an unhealthy one that cannot serve at
// all.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// State is the health classification of a component or of the whole server.
type State string

const (
	StateHealthy   State = "healthy"
	StateDegraded  State = "degraded"
	StateUnhealthy State = "unhealthy"
	StateUnknown   State = "unknown"
)

// CheckFunc probes one component. A nil return means healthy.
type CheckFunc func(ctx context.Context) error

// ComponentHealth is the outcome of one component probe.
type ComponentHealth struct {
	Name        string        `json:"name"`
	Status      State         `json:"status"`
	Critical    bool          `json:"critical"`
	LastChecked time.Time     `json:"lastChecked"`
	Duration    time.Duration `json:"duration"`
	Error       string        `json:"error,omitempty"`
}

// Status is the rolled-up view over every registered component.
type Status struct {
	Overall     State                      `json:"overall"`
	Components  map[string]ComponentHealth `json:"components"`
	LastChecked time.Time                  `json:"lastChecked"`
	CheckCount  int64                      `json:"checkCount"`
}

// Config tunes the checker.
type Config struct {
	// Interval between background check passes.
	Interval time.Duration
	// Timeout bounds each individual component probe.
	Timeout time.Duration
}

type registration struct {
	name     string
	critical bool
	probe    CheckFunc
}

// Checker runs registered component probes on an interval and keeps the
// latest rollup. A failing critical component makes the server unhealthy;
// a failing optional one only degrades it.
type Checker struct {
	config Config
	logger *logrus.Logger

	mu     sync.RWMutex
	checks []registration
	status Status

	stopOnce sync.Once
	stop     chan struct{}
}

// New creates a checker. Probes are registered with Register before Start.
func New(config Config, logger *logrus.Logger) *Checker {
	if config.Interval <= 0 {
		config.Interval = 30 * time.Second
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Checker{
		config: config,
		logger: logger,
		status: Status{
			Overall:    StateUnknown,
			Components: make(map[string]ComponentHealth),
		},
		stop: make(chan struct{}),
	}
}

// Register adds a component probe. Critical components gate overall health;
// optional ones only degrade it when failing.
func (c *Checker) Register(name string, critical bool, probe CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks = append(c.checks, registration{name: name, critical: critical, probe: probe})
}

// Start runs an immediate check pass and then repeats on the configured
// interval until Stop is called.
func (c *Checker) Start() {
	c.RunChecks(context.Background())

	go func() {
		ticker := time.NewTicker(c.config.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.RunChecks(context.Background())
			case <-c.stop:
				return
			}
		}
	}()
}

// Stop halts the background check loop. Safe to call more than once.
func (c *Checker) Stop() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

// RunChecks probes every component in parallel, updates the stored rollup,
// and returns it.
func (c *Checker) RunChecks(ctx context.Context) Status {
	c.mu.RLock()
	checks := make([]registration, len(c.checks))
	copy(checks, c.checks)
	c.mu.RUnlock()

	results := make(chan ComponentHealth, len(checks))
	var wg sync.WaitGroup
	for _, reg := range checks {
		wg.Add(1)
		go func(reg registration) {
			defer wg.Done()
			results <- c.runOne(ctx, reg)
		}(reg)
	}
	wg.Wait()
	close(results)

	components := make(map[string]ComponentHealth, len(checks))
	overall := StateHealthy
	var failing []string
	for result := range results {
		components[result.Name] = result
		switch result.Status {
		case StateUnhealthy:
			overall = StateUnhealthy
			failing = append(failing, result.Name)
		case StateDegraded:
			if overall != StateUnhealthy {
				overall = StateDegraded
			}
			failing = append(failing, result.Name)
		}
	}

	c.mu.Lock()
	c.status = Status{
		Overall:     overall,
		Components:  components,
		LastChecked: time.Now(),
		CheckCount:  c.status.CheckCount + 1,
	}
	status := c.statusCopyLocked()
	c.mu.Unlock()

	if overall != StateHealthy {
		c.logger.WithFields(logrus.Fields{
			"overall": overall,
			"failing": failing,
		}).Warn("Health check pass found failing components")
	} else {
		c.logger.Debug("Health check pass clean")
	}

	return status
}

// Status returns a copy of the latest rollup.
func (c *Checker) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.statusCopyLocked()
}

// Ready reports whether the server should accept work. A degraded server
// is still ready; only an unhealthy or never-checked one is not.
func (c *Checker) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status.Overall == StateHealthy || c.status.Overall == StateDegraded
}

func (c *Checker) statusCopyLocked() Status {
	status := c.status
	status.Components = make(map[string]ComponentHealth, len(c.status.Components))
	for name, component := range c.status.Components {
		status.Components[name] = component
	}
	return status
}

func (c *Checker) runOne(ctx context.Context, reg registration) ComponentHealth {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	err := reg.probe(ctx)

	result := ComponentHealth{
		Name:        reg.name,
		Status:      StateHealthy,
		Critical:    reg.critical,
		LastChecked: time.Now(),
		Duration:    time.Since(start),
	}
	if err != nil {
		result.Error = err.Error()
		if reg.critical {
			result.Status = StateUnhealthy
		} else {
			result.Status = StateDegraded
		}
	}
	return result
}
