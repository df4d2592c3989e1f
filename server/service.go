package server

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/fabriziomello/pg-normalize-query/stats"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "pgnormalize.v1.NormalizeService"

const (
	normalizeMethod   = "/" + ServiceName + "/Normalize"
	fingerprintMethod = "/" + ServiceName + "/Fingerprint"
	topMethod         = "/" + ServiceName + "/Top"
)

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*normalizeServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Normalize", Handler: normalizeHandler},
		{MethodName: "Fingerprint", Handler: fingerprintHandler},
		{MethodName: "Top", Handler: topHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pgnormalize/v1/normalize.proto",
}

func normalizeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(normalizeServer).Normalize(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: normalizeMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(normalizeServer).Normalize(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func fingerprintHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(normalizeServer).Fingerprint(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fingerprintMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(normalizeServer).Fingerprint(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func topHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(normalizeServer).Top(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: topMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(normalizeServer).Top(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// Client calls a remote NormalizeService.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an established connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Normalize returns the normalized form of sql.
func (c *Client) Normalize(ctx context.Context, sql string, opts ...grpc.CallOption) (string, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, normalizeMethod, wrapperspb.String(sql), out, opts...); err != nil {
		return "", fmt.Errorf("server: normalize: %w", err)
	}
	return out.GetValue(), nil
}

// Fingerprint returns the fingerprint of sql.
func (c *Client) Fingerprint(ctx context.Context, sql string, opts ...grpc.CallOption) (uint64, error) {
	out := new(wrapperspb.UInt64Value)
	if err := c.cc.Invoke(ctx, fingerprintMethod, wrapperspb.String(sql), out, opts...); err != nil {
		return 0, fmt.Errorf("server: fingerprint: %w", err)
	}
	return out.GetValue(), nil
}

// TopOptions selects the rows returned by Top.
type TopOptions struct {
	// Limit caps the number of rows; zero returns every row.
	Limit int
	Sort  stats.SortMode
	// Reset starts a new collection period on the server.
	Reset bool
}

// Top returns the aggregated rows of the sampled queries.
func (c *Client) Top(ctx context.Context, opts TopOptions, callOpts ...grpc.CallOption) ([]stats.Row, error) {
	in, err := structpb.NewStruct(map[string]any{
		"limit": opts.Limit,
		"sort":  opts.Sort.String(),
		"reset": opts.Reset,
	})
	if err != nil {
		return nil, fmt.Errorf("server: top: %w", err)
	}

	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, topMethod, in, out, callOpts...); err != nil {
		return nil, fmt.Errorf("server: top: %w", err)
	}

	rows := make([]stats.Row, 0, len(out.GetValues()))
	for _, v := range out.GetValues() {
		r, err := rowFromStruct(v.GetStructValue())
		if err != nil {
			return nil, fmt.Errorf("server: top: %w", err)
		}
		rows = append(rows, r)
	}
	return rows, nil
}

func rowToMap(r stats.Row) map[string]any {
	return map[string]any{
		"query":       r.Query,
		"fingerprint": fmt.Sprintf("%016x", r.Fingerprint),
		"count":       r.Count,
		"total_ns":    int64(r.Total),
		"avg_ns":      int64(r.Avg),
		"p95_ns":      int64(r.P95),
		"max_ns":      int64(r.Max),
	}
}

func rowFromStruct(s *structpb.Struct) (stats.Row, error) {
	f := s.GetFields()
	fp, err := strconv.ParseUint(f["fingerprint"].GetStringValue(), 16, 64)
	if err != nil {
		return stats.Row{}, fmt.Errorf("fingerprint: %w", err)
	}
	ns := func(key string) time.Duration {
		return time.Duration(int64(f[key].GetNumberValue()))
	}
	return stats.Row{
		Query:       f["query"].GetStringValue(),
		Fingerprint: fp,
		Count:       int(f["count"].GetNumberValue()),
		Total:       ns("total_ns"),
		Avg:         ns("avg_ns"),
		P95:         ns("p95_ns"),
		Max:         ns("max_ns"),
	}, nil
}
