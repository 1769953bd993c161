package grpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/talktojer/ge-sub000/internal/engine"
	"github.com/talktojer/ge-sub000/internal/state"
)

// decode maps a Struct payload onto a request type through its JSON tags. Unknown fields are rejected.
func decode(in *structpb.Struct, out any) error {
	if in == nil {
		return status.Error(codes.InvalidArgument, "payload is required")
	}
	raw, err := protojson.Marshal(in)
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "encode payload: %v", err)
	}
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return status.Errorf(codes.InvalidArgument, "decode payload: %v", err)
	}
	return nil
}

// encode flattens a response value into a Struct.
func encode(value any) (*structpb.Struct, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	fields := make(map[string]any)
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

// stamp renders a time with the JSON mapping of google.protobuf.Timestamp.
func stamp(at time.Time) string {
	raw, err := protojson.Marshal(timestamppb.New(at))
	if err != nil {
		return at.UTC().Format(time.RFC3339Nano)
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return at.UTC().Format(time.RFC3339Nano)
	}
	return text
}

// statusFor converts internal failures into gRPC status errors. Validation failures never reach
// this point, they travel inside the response payload.
func statusFor(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, engine.ErrUnknownShip):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, state.ErrMissingID):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
