// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package pluginsdk

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/holomush/pluginmgr/pkg/eventbus"
	"github.com/holomush/pluginmgr/pkg/plugin"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "pluginmgr.plugin.v1.Plugin"

const (
	describeMethod = "/" + ServiceName + "/Describe"
	callMethod     = "/" + ServiceName + "/Call"
)

// Wire fields. A Call request is {method, args}; the response is
// {result, updates} where updates[i] carries the mutations made to the i-th
// argument when it was an event.
const (
	fieldMethods = "methods"
	fieldMethod  = "method"
	fieldArgs    = "args"
	fieldResult  = "result"
	fieldUpdates = "updates"
)

// pluginServer is the server side of the plugin service. Messages are the
// well-known protobuf types so no generated code is needed.
type pluginServer interface {
	Describe(ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error)
	Call(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*pluginServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Describe", Handler: describeHandler},
		{MethodName: "Call", Handler: callHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pluginmgr/plugin/v1/plugin.proto",
}

func describeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(pluginServer).Describe(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: describeMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(pluginServer).Describe(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func callHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(pluginServer).Call(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: callMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(pluginServer).Call(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// RegisterServer serves methods on s.
func RegisterServer(s grpc.ServiceRegistrar, methods *plugin.MethodSet) {
	s.RegisterService(&serviceDesc, &server{methods: methods})
}

type server struct {
	methods *plugin.MethodSet
}

func (s *server) Describe(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	names := s.methods.Names()
	list := make([]any, len(names))
	for i, n := range names {
		list[i] = n
	}
	out, err := structpb.NewStruct(map[string]any{fieldMethods: list})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func (s *server) Call(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	method := in.GetFields()[fieldMethod].GetStringValue()
	if method == "" {
		return nil, status.Error(codes.InvalidArgument, "method is required")
	}

	wireArgs := in.GetFields()[fieldArgs].GetListValue().GetValues()
	args := make([]any, len(wireArgs))
	for i, v := range wireArgs {
		args[i] = decodeArg(v)
	}

	res, err := s.methods.Call(ctx, method, args...)
	if err == nil {
		res, err = eventbus.Resolve(ctx, res)
	}
	if err != nil {
		return nil, toStatus(err)
	}

	result, err := toValue(res)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode result of %s: %v", method, err)
	}
	updates := make([]*structpb.Value, len(args))
	for i, a := range args {
		if updates[i], err = encodeUpdate(a); err != nil {
			return nil, status.Errorf(codes.Internal, "encode argument %d of %s: %v", i, method, err)
		}
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldResult:  result,
		fieldUpdates: structpb.NewListValue(&structpb.ListValue{Values: updates}),
	}}, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, plugin.ErrMethodNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, plugin.ErrInvalidArgument):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Unknown, err.Error())
	}
}
