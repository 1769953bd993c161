// Package grpc bridges the simulation core to collaborators over gRPC. Payloads travel as
// google.protobuf.Struct so the command surface needs no generated stubs.
package grpc

import (
	"context"
	"errors"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/talktojer/ge-sub000/internal/engine"
	"github.com/talktojer/ge-sub000/internal/events"
	"github.com/talktojer/ge-sub000/internal/logging"
	"github.com/talktojer/ge-sub000/internal/state"
)

// ServiceName is the fully qualified name of the bridge service.
const ServiceName = "ge.core.v1.SimulationCore"

const (
	// eventStreamRateHz bounds how often buffered events are flushed to a stream.
	eventStreamRateHz = 20
	// commandTimeout guards every unary command so a stuck world cannot hold a collaborator.
	commandTimeout = 2 * time.Second
)

// Option customises the behaviour of the gRPC service.
type Option func(*Service)

// tickerFactory constructs cancellable tick channels for throttled streaming.
type tickerFactory func(time.Duration) (<-chan time.Time, func())

// WithEventSource enables StreamEvents.
func WithEventSource(source EventSource) Option {
	return func(s *Service) {
		if source != nil {
			s.events = source
		}
	}
}

// WithTickerFactory overrides the throttling ticker factory (used in tests).
func WithTickerFactory(factory tickerFactory) Option {
	return func(s *Service) {
		if factory != nil {
			s.newTicker = factory
		}
	}
}

// WithClock overrides the time source of response timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger routes service logs to the provided logger.
func WithLogger(logger *logging.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Service implements SimulationCoreServer on top of the simulation core.
type Service struct {
	sim       Simulation
	events    EventSource
	newTicker tickerFactory
	now       func() time.Time
	logger    *logging.Logger
}

// NewService wires the gRPC service to the simulation core and optional settings.
func NewService(sim Simulation, opts ...Option) *Service {
	service := &Service{sim: sim, newTicker: defaultTickerFactory, now: time.Now, logger: logging.L()}
	for _, opt := range opts {
		if opt != nil {
			opt(service)
		}
	}
	return service
}

func defaultTickerFactory(interval time.Duration) (<-chan time.Time, func()) {
	ticker := time.NewTicker(interval)
	stop := func() {
		ticker.Stop()
	}
	return ticker.C, stop
}

func (s *Service) ready() error {
	if s == nil || s.sim == nil {
		return status.Error(codes.FailedPrecondition, "simulation unavailable")
	}
	return nil
}

// command decodes the request, runs it under the command timeout and encodes the outcome.
func command[Req any, Res any](s *Service, ctx context.Context, in *structpb.Struct, run func(context.Context, Req) (Res, error)) (*structpb.Struct, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var req Req
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	result, err := run(ctx, req)
	if err != nil {
		logging.LoggerFromContext(ctx).Warn("command failed", logging.Error(err))
		return nil, statusFor(err)
	}
	return encode(result)
}

// UpsertShip registers or replaces a ship.
func (s *Service) UpsertShip(ctx context.Context, in *structpb.Struct) (*emptypb.Empty, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var ship state.Ship
	if err := decode(in, &ship); err != nil {
		return nil, err
	}
	if err := s.sim.UpsertShip(ctx, ship); err != nil {
		return nil, statusFor(err)
	}
	return &emptypb.Empty{}, nil
}

// RemoveShip discards a ship and its registry records.
func (s *Service) RemoveShip(ctx context.Context, in *structpb.Struct) (*emptypb.Empty, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var ref shipRef
	if err := decode(in, &ref); err != nil {
		return nil, err
	}
	if err := s.sim.RemoveShip(ctx, ref.ShipID); err != nil {
		return nil, statusFor(err)
	}
	return &emptypb.Empty{}, nil
}

// SpawnAI launches a Cybertron or a droid on request of the collaborator.
func (s *Service) SpawnAI(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return command(s, ctx, in, s.sim.SpawnAI)
}

// Navigate relays a helm order.
func (s *Service) Navigate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return command(s, ctx, in, s.sim.Navigate)
}

// Combat relays a weapon or countermeasure action.
func (s *Service) Combat(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return command(s, ctx, in, s.sim.Combat)
}

// Scan relays a powered sensor sweep.
func (s *Service) Scan(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return command(s, ctx, in, s.sim.Scan)
}

// Display renders the tactical display of a ship.
func (s *Service) Display(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return command(s, ctx, in, s.sim.Display)
}

// Lock relays a target lock operation.
func (s *Service) Lock(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return command(s, ctx, in, s.sim.Lock)
}

// SelfDestruct relays a self-destruct operation.
func (s *Service) SelfDestruct(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return command(s, ctx, in, s.sim.SelfDestruct)
}

// Status reports the tactical state of one ship.
func (s *Service) Status(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return command(s, ctx, in, func(ctx context.Context, ref shipRef) (engine.ShipStatus, error) {
		return s.sim.Status(ctx, ref.ShipID)
	})
}

// Stats reports the registry sizes together with the time they were sampled.
func (s *Service) Stats(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	out, err := encode(s.sim.Stats())
	if err != nil {
		return nil, err
	}
	out.Fields["generated_at"] = structpb.NewStringValue(stamp(s.now()))
	return out, nil
}

// StreamEvents relays the published event stream to a durable subscriber. Every delivered
// event is acknowledged, so a reconnecting subscriber resumes after the last one it received.
func (s *Service) StreamEvents(in *structpb.Struct, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	if s == nil || s.events == nil {
		return status.Error(codes.FailedPrecondition, "streaming unavailable")
	}
	var req streamRequest
	if err := decode(in, &req); err != nil {
		return err
	}
	if strings.TrimSpace(req.SubscriberID) == "" {
		return status.Error(codes.InvalidArgument, "subscriber_id is required")
	}
	kinds := make(map[events.Kind]struct{}, len(req.Kinds))
	for _, kind := range req.Kinds {
		kinds[events.Kind(strings.ToLower(strings.TrimSpace(kind)))] = struct{}{}
	}
	ctx := stream.Context()
	//1.- Subscribe so outstanding events replay before new ones arrive.
	sub, err := s.events.Subscribe(ctx, req.SubscriberID, req.Buffer)
	if err != nil {
		return status.Errorf(codes.Internal, "subscribe events: %v", err)
	}
	defer sub.Close()

	tickCh, stop := s.newTicker(time.Second / eventStreamRateHz)
	defer stop()

	var pending []*events.Envelope
	feed := sub.Events()
	for {
		select {
		case <-ctx.Done():
			//2.- Surface context cancellation so clients can retry.
			if errors.Is(ctx.Err(), context.Canceled) {
				return status.Error(codes.Canceled, "stream cancelled")
			}
			return status.Error(codes.DeadlineExceeded, "stream deadline exceeded")
		case envelope, ok := <-feed:
			if !ok {
				feed = nil
				continue
			}
			//3.- Buffer incoming events so they are flushed at the throttled cadence.
			pending = append(pending, envelope)
		case <-tickCh:
			for len(pending) > 0 {
				envelope := pending[0]
				pending = pending[1:]
				if err := s.deliver(stream, sub, envelope, kinds); err != nil {
					return err
				}
			}
		}
	}
}

func (s *Service) deliver(stream grpc.ServerStreamingServer[structpb.Struct], sub *events.Subscription, envelope *events.Envelope, kinds map[events.Kind]struct{}) error {
	_, wanted := kinds[envelope.Event.Kind]
	if len(kinds) == 0 || wanted {
		frame, err := encode(envelope)
		if err != nil {
			return err
		}
		if err := stream.Send(frame); err != nil {
			return err
		}
	}
	//1.- Filtered events are acknowledged too, the subscriber asked not to see them.
	if err := sub.Ack(envelope.Sequence); err != nil {
		s.logger.Warn("event ack failed", logging.Uint64("sequence", envelope.Sequence), logging.Error(err))
	}
	return nil
}

// SimulationCoreServer is the server API of the bridge service.
type SimulationCoreServer interface {
	UpsertShip(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	RemoveShip(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	SpawnAI(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Navigate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Combat(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Scan(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Display(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Lock(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SelfDestruct(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Status(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Stats(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	StreamEvents(*structpb.Struct, grpc.ServerStreamingServer[structpb.Struct]) error
}

func unary[Req any, Res any](name string, call func(SimulationCoreServer, context.Context, *Req) (*Res, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			server := srv.(SimulationCoreServer)
			if interceptor == nil {
				return call(server, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(server, ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func streamEventsHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(SimulationCoreServer).StreamEvents(in, &grpc.GenericServerStream[structpb.Struct, structpb.Struct]{ServerStream: stream})
}

// ServiceDesc describes the bridge service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SimulationCoreServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("UpsertShip", SimulationCoreServer.UpsertShip),
		unary("RemoveShip", SimulationCoreServer.RemoveShip),
		unary("SpawnAI", SimulationCoreServer.SpawnAI),
		unary("Navigate", SimulationCoreServer.Navigate),
		unary("Combat", SimulationCoreServer.Combat),
		unary("Scan", SimulationCoreServer.Scan),
		unary("Display", SimulationCoreServer.Display),
		unary("Lock", SimulationCoreServer.Lock),
		unary("SelfDestruct", SimulationCoreServer.SelfDestruct),
		unary("Status", SimulationCoreServer.Status),
		unary("Stats", SimulationCoreServer.Stats),
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "StreamEvents", Handler: streamEventsHandler, ServerStreams: true},
	},
	Metadata: "ge/core/v1/simulation_core.proto",
}

// Register installs the service on the server.
func Register(server grpc.ServiceRegistrar, service SimulationCoreServer) {
	server.RegisterService(&ServiceDesc, service)
}

var _ SimulationCoreServer = (*Service)(nil)
