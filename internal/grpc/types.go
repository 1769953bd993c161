package grpc

import (
	"context"

	"github.com/talktojer/ge-sub000/internal/ai"
	"github.com/talktojer/ge-sub000/internal/destruct"
	"github.com/talktojer/ge-sub000/internal/engine"
	"github.com/talktojer/ge-sub000/internal/events"
	"github.com/talktojer/ge-sub000/internal/state"
	"github.com/talktojer/ge-sub000/internal/targeting"
)

// Simulation is the command surface of the core the bridge exposes to collaborators.
type Simulation interface {
	UpsertShip(ctx context.Context, ship state.Ship) error
	RemoveShip(ctx context.Context, shipID string) error
	SpawnAI(ctx context.Context, req ai.CreateRequest) (ai.Result, error)
	Navigate(ctx context.Context, req engine.NavigationRequest) (engine.NavigationResult, error)
	Combat(ctx context.Context, req engine.CombatRequest) (engine.CombatResult, error)
	Scan(ctx context.Context, req engine.ScanRequest) (engine.ScanResponse, error)
	Display(ctx context.Context, req engine.DisplayRequest) (engine.DisplayResponse, error)
	Lock(ctx context.Context, req engine.LockRequest) (targeting.Result, error)
	SelfDestruct(ctx context.Context, req engine.SelfDestructRequest) (destruct.Result, error)
	Status(ctx context.Context, shipID string) (engine.ShipStatus, error)
	Stats() engine.Stats
}

// EventSource hands out durable subscriptions to the published event stream.
type EventSource interface {
	Subscribe(ctx context.Context, subscriberID string, buffer int) (*events.Subscription, error)
}

// shipRef addresses one ship in RemoveShip and Status.
type shipRef struct {
	ShipID string `json:"ship_id"`
}

// streamRequest opens an event stream for a durable subscriber.
type streamRequest struct {
	SubscriberID string   `json:"subscriber_id"`
	Kinds        []string `json:"kinds,omitempty"`
	Buffer       int      `json:"buffer,omitempty"`
}

var _ Simulation = (*engine.Core)(nil)
var _ EventSource = (*events.Stream)(nil)
