package ai

import (
	"context"
	"errors"
	"sync"
)

// Launcher adjusts the Cybertron fleet; the Manager is the in process implementation.
type Launcher interface {
	// Scale adjusts the number of Cybertron ships and returns the confirmed population.
	Scale(ctx context.Context, target int) (int, error)
}

// PopulationSnapshot exposes the observed pilot counts.
type PopulationSnapshot struct {
	Players    int `json:"players"`
	Cybertrons int `json:"cybertrons"`
	Target     int `json:"target"`
}

// PopulationConfig configures the population controller.
type PopulationConfig struct {
	TargetPopulation int
	Launcher         Launcher
}

// PopulationController keeps players plus Cybertrons at the target population.
type PopulationController struct {
	mu sync.Mutex

	players    int
	cybertrons int
	target     int
	launcher   Launcher
}

// NewPopulationController constructs a controller. A zero target leaves the fleet empty.
func NewPopulationController(cfg PopulationConfig) *PopulationController {
	controller := &PopulationController{launcher: cfg.Launcher}
	if cfg.TargetPopulation > 0 {
		controller.target = cfg.TargetPopulation
	}
	return controller
}

// SetTargetPopulation updates the desired total number of ships and reconciles the fleet.
func (c *PopulationController) SetTargetPopulation(ctx context.Context, population int) error {
	if c == nil {
		return errors.New("controller is nil")
	}
	if population < 0 {
		return errors.New("population must be non-negative")
	}
	c.mu.Lock()
	c.target = population
	desired := c.desiredLocked()
	c.mu.Unlock()
	return c.reconcile(ctx, desired)
}

// PlayerJoined counts a new player ship and shrinks the fleet accordingly.
func (c *PopulationController) PlayerJoined(ctx context.Context) error {
	if c == nil {
		return errors.New("controller is nil")
	}
	c.mu.Lock()
	c.players++
	desired := c.desiredLocked()
	c.mu.Unlock()
	return c.reconcile(ctx, desired)
}

// PlayerLeft removes a player ship and grows the fleet accordingly.
func (c *PopulationController) PlayerLeft(ctx context.Context) error {
	if c == nil {
		return errors.New("controller is nil")
	}
	c.mu.Lock()
	//1.- Absorb out of order departures.
	if c.players > 0 {
		c.players--
	}
	desired := c.desiredLocked()
	c.mu.Unlock()
	return c.reconcile(ctx, desired)
}

// Reconcile re-applies the current target, e.g. after Cybertrons were destroyed.
func (c *PopulationController) Reconcile(ctx context.Context) error {
	if c == nil {
		return errors.New("controller is nil")
	}
	c.mu.Lock()
	desired := c.desiredLocked()
	c.mu.Unlock()
	return c.reconcile(ctx, desired)
}

// Snapshot returns the latest counts.
func (c *PopulationController) Snapshot() PopulationSnapshot {
	if c == nil {
		return PopulationSnapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return PopulationSnapshot{Players: c.players, Cybertrons: c.cybertrons, Target: c.target}
}

func (c *PopulationController) desiredLocked() int {
	desired := c.target - c.players
	if desired < 0 {
		desired = 0
	}
	return desired
}

func (c *PopulationController) reconcile(ctx context.Context, target int) error {
	var (
		confirmed int
		err       error
	)
	if c.launcher != nil {
		//1.- Let the launcher adjust the fleet and trust its confirmed count.
		confirmed, err = c.launcher.Scale(ctx, target)
	} else {
		confirmed = target
	}
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.cybertrons = confirmed
	c.mu.Unlock()
	return nil
}
