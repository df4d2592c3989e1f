package server

import (
	"context"
	"errors"
	"fmt"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/fabriziomello/pg-normalize-query/normalize"
	"github.com/fabriziomello/pg-normalize-query/query"
	"github.com/fabriziomello/pg-normalize-query/stats"
)

// Server exposes the NormalizeService over gRPC.
type Server struct {
	grpcServer *grpc.Server
}

// New creates a new Server that normalizes with n and reports the groups
// collected by agg. agg may be nil if no sampling is configured.
func New(n *query.Normalizer, agg *stats.Aggregator, opts ...grpc.ServerOption) *Server {
	if n == nil {
		n = query.NewNormalizer(nil, query.FallbackNone)
	}
	gs := grpc.NewServer(opts...)
	gs.RegisterService(&serviceDesc, &normalizeService{norm: n, agg: agg})

	return &Server{grpcServer: gs}
}

// Serve starts the gRPC server on the given listener.
func (s *Server) Serve(lis net.Listener) error {
	if err := s.grpcServer.Serve(lis); err != nil {
		return fmt.Errorf("server: serve: %w", err)
	}
	return nil
}

// Stop immediately stops the server, closing all active connections.
func (s *Server) Stop() {
	s.grpcServer.Stop()
}

// GracefulStop gracefully stops the server.
func (s *Server) GracefulStop() {
	s.grpcServer.GracefulStop()
}

type normalizeServer interface {
	Normalize(context.Context, *wrapperspb.StringValue) (*wrapperspb.StringValue, error)
	Fingerprint(context.Context, *wrapperspb.StringValue) (*wrapperspb.UInt64Value, error)
	Top(context.Context, *structpb.Struct) (*structpb.ListValue, error)
}

type normalizeService struct {
	norm *query.Normalizer
	agg  *stats.Aggregator
}

func (s *normalizeService) Normalize(_ context.Context, req *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	out, err := s.norm.Normalize(req.GetValue())
	if err != nil {
		return nil, toStatus("normalize", err)
	}
	return wrapperspb.String(out), nil
}

func (s *normalizeService) Fingerprint(_ context.Context, req *wrapperspb.StringValue) (*wrapperspb.UInt64Value, error) {
	fp, _, err := s.norm.Fingerprint(req.GetValue())
	if err != nil {
		return nil, toStatus("fingerprint", err)
	}
	return wrapperspb.UInt64(fp), nil
}

func (s *normalizeService) Top(_ context.Context, req *structpb.Struct) (*structpb.ListValue, error) {
	if s.agg == nil {
		return nil, status.Error(codes.FailedPrecondition, "sampling is not configured (set DATABASE_URL)")
	}

	f := req.GetFields()
	mode := stats.SortTotal
	if name := f["sort"].GetStringValue(); name != "" {
		m, err := stats.ParseSortMode(name)
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "top: %v", err)
		}
		mode = m
	}

	var rows []stats.Row
	if f["reset"].GetBoolValue() {
		rows = s.agg.Take(mode)
	} else {
		rows = s.agg.Rows(mode)
	}
	if n := int(f["limit"].GetNumberValue()); n > 0 && n < len(rows) {
		rows = rows[:n]
	}

	items := make([]any, 0, len(rows))
	for _, r := range rows {
		items = append(items, rowToMap(r))
	}
	list, err := structpb.NewList(items)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "top: %v", err)
	}
	return list, nil
}

func toStatus(op string, err error) error {
	switch {
	case errors.Is(err, normalize.ErrSyntax), errors.Is(err, normalize.ErrTooDeep):
		return status.Errorf(codes.InvalidArgument, "%s: %v", op, err)
	default:
		return status.Errorf(codes.Internal, "%s: %v", op, err)
	}
}
