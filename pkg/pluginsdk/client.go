// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package pluginsdk

import (
	"context"
	"errors"
	"sort"

	"github.com/samber/oops"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/holomush/pluginmgr/pkg/plugin"
)

// ErrCallFailed is returned when the plugin process reports a failure.
var ErrCallFailed = errors.New("plugin call failed")

// Client is the host side of a binary plugin. It implements
// plugin.Dispatcher, so the manager calls it like any other instance.
type Client struct {
	conn  grpc.ClientConnInterface
	names []string
}

var _ plugin.Dispatcher = (*Client)(nil)

// NewClient asks the plugin for its methods and returns a client for them.
func NewClient(ctx context.Context, conn grpc.ClientConnInterface) (*Client, error) {
	out := new(structpb.Struct)
	if err := conn.Invoke(ctx, describeMethod, &emptypb.Empty{}, out); err != nil {
		return nil, oops.Code("PLUGIN_DESCRIBE_FAILED").In("pluginsdk").Wrap(err)
	}

	values := out.GetFields()[fieldMethods].GetListValue().GetValues()
	names := make([]string, 0, len(values))
	for _, v := range values {
		if n := v.GetStringValue(); n != "" {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return &Client{conn: conn, names: names}, nil
}

// MethodNames implements plugin.Dispatcher.
func (c *Client) MethodNames() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Call implements plugin.Dispatcher. Mutations the plugin makes to event
// arguments are applied to the caller's events before Call returns.
func (c *Client) Call(ctx context.Context, method string, args ...any) (any, error) {
	wire := make([]*structpb.Value, len(args))
	for i, a := range args {
		v, err := encodeArg(a)
		if err != nil {
			return nil, oops.Code("INVALID_ARGUMENT").In("pluginsdk").
				With("method", method).
				With("position", i).
				Wrap(errors.Join(plugin.ErrInvalidArgument, err))
		}
		wire[i] = v
	}

	req := &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldMethod: structpb.NewStringValue(method),
		fieldArgs:   structpb.NewListValue(&structpb.ListValue{Values: wire}),
	}}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, callMethod, req, out); err != nil {
		return nil, fromStatus(method, err)
	}

	for i, u := range out.GetFields()[fieldUpdates].GetListValue().GetValues() {
		if i < len(args) {
			applyUpdate(args[i], u)
		}
	}
	return fromValue(out.GetFields()[fieldResult]), nil
}

func fromStatus(method string, err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return oops.Code("PLUGIN_CALL_FAILED").In("pluginsdk").With("method", method).
			Wrap(errors.Join(ErrCallFailed, err))
	}

	b := oops.In("pluginsdk").With("method", method)
	switch st.Code() {
	case codes.NotFound:
		return b.Code("METHOD_NOT_FOUND").Wrap(errors.Join(plugin.ErrMethodNotFound, errors.New(st.Message())))
	case codes.InvalidArgument:
		return b.Code("INVALID_ARGUMENT").Wrap(errors.Join(plugin.ErrInvalidArgument, errors.New(st.Message())))
	default:
		return b.Code("PLUGIN_CALL_FAILED").With("grpc_code", st.Code().String()).
			Wrap(errors.Join(ErrCallFailed, errors.New(st.Message())))
	}
}
