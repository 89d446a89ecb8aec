package api

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"autoservice/internal/config"
	"autoservice/internal/models"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	SchedulingServiceName = "autoservice.scheduling.v1.Scheduling"

	methodFreeSlots    = "/" + SchedulingServiceName + "/FreeSlots"
	methodReserve      = "/" + SchedulingServiceName + "/Reserve"
	methodListServices = "/" + SchedulingServiceName + "/ListServices"
)

// SchedulingServer is the server API of the scheduling service. Messages are
// google.protobuf.Struct so that no generated code is required.
type SchedulingServer interface {
	FreeSlots(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Reserve(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListServices(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var schedulingServiceDesc = grpc.ServiceDesc{
	ServiceName: SchedulingServiceName,
	HandlerType: (*SchedulingServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "FreeSlots", Handler: unaryHandler(methodFreeSlots, SchedulingServer.FreeSlots)},
		{MethodName: "Reserve", Handler: unaryHandler(methodReserve, SchedulingServer.Reserve)},
		{MethodName: "ListServices", Handler: unaryHandler(methodListServices, SchedulingServer.ListServices)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "autoservice/scheduling/v1/scheduling.proto",
}

func RegisterSchedulingServer(s grpc.ServiceRegistrar, srv SchedulingServer) {
	s.RegisterService(&schedulingServiceDesc, srv)
}

type structCall func(SchedulingServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call structCall) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(SchedulingServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(SchedulingServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// SchedulingClient calls the scheduling service.
type SchedulingClient struct {
	cc grpc.ClientConnInterface
}

func NewSchedulingClient(cc grpc.ClientConnInterface) *SchedulingClient {
	return &SchedulingClient{cc: cc}
}

func (c *SchedulingClient) FreeSlots(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodFreeSlots, in, opts...)
}

func (c *SchedulingClient) Reserve(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodReserve, in, opts...)
}

func (c *SchedulingClient) ListServices(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodListServices, in, opts...)
}

func (c *SchedulingClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	if in == nil {
		in = &structpb.Struct{}
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// schedulingService adapts Deps to SchedulingServer.
type schedulingService struct {
	deps Deps
	loc  *time.Location
}

func NewSchedulingService(deps Deps, loc *time.Location) SchedulingServer {
	if loc == nil {
		loc = time.Local
	}
	return &schedulingService{deps: deps, loc: loc}
}

func (s *schedulingService) FreeSlots(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	date, err := parseDate(stringField(req, "date"), s.loc)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	slots, err := s.deps.Slots.ComputeFreeSlots(ctx, date)
	if err != nil {
		return nil, grpcError(err)
	}

	list := make([]any, 0, len(slots))
	for _, slot := range slots {
		list = append(list, slot.String())
	}
	return newStruct(map[string]any{
		"date":  date.Format(models.ISODateLayout),
		"slots": list,
	})
}

func (s *schedulingService) Reserve(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	clientID := int64(numberField(req, "client_id"))
	service := strings.TrimSpace(stringField(req, "service"))
	if clientID <= 0 || service == "" {
		return nil, status.Error(codes.InvalidArgument, "client_id and service are required")
	}
	date, err := parseDate(stringField(req, "date"), s.loc)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	hour, err := models.ParseClock(stringField(req, "time"))
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	res, err := s.deps.Reservations.Reserve(ctx, date, hour, clientID, service)
	if err != nil {
		return nil, grpcError(err)
	}
	return newStruct(reservationJSON(res))
}

func (s *schedulingService) ListServices(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	services, err := s.deps.Catalog.List(ctx)
	if err != nil {
		return nil, grpcError(err)
	}

	list := make([]any, 0, len(services))
	for _, svc := range services {
		list = append(list, map[string]any{
			"id":     svc.ID,
			"name":   svc.Name,
			"price":  svc.Price,
			"payout": svc.Payout,
		})
	}
	return newStruct(map[string]any{"services": list})
}

func newStruct(fields map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to encode response")
	}
	return out, nil
}

func stringField(s *structpb.Struct, name string) string {
	if s == nil {
		return ""
	}
	return s.GetFields()[name].GetStringValue()
}

func numberField(s *structpb.Struct, name string) float64 {
	if s == nil {
		return 0
	}
	return s.GetFields()[name].GetNumberValue()
}

type GRPCServer struct {
	cfg      *config.APIConfig
	server   *grpc.Server
	health   *health.Server
	listener net.Listener
	log      zerolog.Logger
}

func NewGRPCServer(cfg *config.APIConfig, deps Deps, loc *time.Location, logger *zerolog.Logger) (*GRPCServer, error) {
	addr := fmt.Sprintf(":%d", cfg.GRPC.Port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("grpc listen %s: %w", addr, err)
	}

	srv, err := newGRPCServer(cfg, deps, loc, lis, logger)
	if err != nil {
		_ = lis.Close()
		return nil, err
	}
	return srv, nil
}

func newGRPCServer(cfg *config.APIConfig, deps Deps, loc *time.Location, lis net.Listener, logger *zerolog.Logger) (*GRPCServer, error) {
	var serverLogger zerolog.Logger
	if logger != nil {
		serverLogger = logger.With().Str("component", "grpc").Logger()
	} else {
		serverLogger = zerolog.Nop()
	}

	auth := NewAuthInterceptor(cfg)
	unary := ChainUnaryInterceptors(
		RecoveryUnaryInterceptor(&serverLogger),
		LoggingUnaryInterceptor(logger),
		auth.Unary(),
	)

	serverOpts := []grpc.ServerOption{grpc.UnaryInterceptor(unary)}
	if cfg.GRPC.TLS.Enabled {
		tlsCfg, err := buildTLSConfig(cfg.GRPC.TLS)
		if err != nil {
			return nil, err
		}
		serverOpts = append(serverOpts, grpc.Creds(credentials.NewTLS(tlsCfg)))
	}

	grpcServer := grpc.NewServer(serverOpts...)
	RegisterSchedulingServer(grpcServer, NewSchedulingService(deps, loc))

	healthServer := health.NewServer()
	healthServer.SetServingStatus(SchedulingServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	if cfg.GRPC.Reflection {
		reflection.Register(grpcServer)
	}

	return &GRPCServer{
		cfg:      cfg,
		server:   grpcServer,
		health:   healthServer,
		listener: lis,
		log:      serverLogger,
	}, nil
}

func buildTLSConfig(cfg config.APITLSConfig) (*tls.Config, error) {
	if cfg.CertFile == "" || cfg.KeyFile == "" {
		return nil, errors.New("grpc tls enabled but cert_file/key_file not set")
	}

	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load grpc tls keypair: %w", err)
	}

	tlsCfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}

	if cfg.RequireClientCert {
		if cfg.ClientCAFile == "" {
			return nil, errors.New("grpc tls require_client_cert=true but client_ca_file not set")
		}
		caPEM, err := os.ReadFile(cfg.ClientCAFile)
		if err != nil {
			return nil, fmt.Errorf("read client_ca_file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, errors.New("failed to parse client_ca_file PEM")
		}
		tlsCfg.ClientAuth = tls.RequireAndVerifyClientCert
		tlsCfg.ClientCAs = pool
	}

	return tlsCfg, nil
}

func (s *GRPCServer) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *GRPCServer) Serve() error {
	s.log.Info().Str("addr", s.Addr()).Msg("gRPC API listening")
	return s.server.Serve(s.listener)
}

func (s *GRPCServer) Shutdown(ctx context.Context) {
	if s.server == nil {
		return
	}
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		return
	case <-ctx.Done():
		s.log.Warn().Msg("gRPC graceful shutdown timed out; forcing stop")
		s.server.Stop()
		return
	case <-time.After(10 * time.Second):
		s.log.Warn().Msg("gRPC graceful shutdown timed out; forcing stop")
		s.server.Stop()
		return
	}
}
