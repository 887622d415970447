package executor

import (
	"context"
	"log/slog"
	"time"

	"github.com/ashureev/shsh-chat/internal/domain"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

type executorServer interface {
	Execute(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*executorServer)(nil),
	Methods: []grpc.MethodDesc{{
		MethodName: methodName,
		Handler:    executeHandler,
	}},
	Streams:  []grpc.StreamDesc{},
	Metadata: "fsexec/v1/executor.proto",
}

func executeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(executorServer).Execute(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(executorServer).Execute(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// Server exposes a backend over gRPC.
type Server struct {
	backend domain.Executor
	logger  *slog.Logger
}

// Register attaches the executor service for backend to s.
func Register(s *grpc.Server, backend domain.Executor, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	srv := &Server{backend: backend, logger: logger}
	s.RegisterService(&serviceDesc, srv)
	return srv
}

// Execute decodes one request and runs it on the backend. Backend errors are
// reported as unsuccessful responses rather than RPC failures.
func (s *Server) Execute(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req := decodeRequest(in)
	start := time.Now()

	resp, err := s.backend.Execute(ctx, req)
	if err != nil {
		resp = &domain.ExecResponse{Error: err.Error()}
	}

	s.logger.Info("Executed filesystem operation",
		"operation", req.Operation,
		"path", req.Path,
		"success", resp.Success,
		"duration", time.Since(start),
	)

	out, err := encodeResponse(resp)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}
