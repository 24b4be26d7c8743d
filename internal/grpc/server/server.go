package server

import (
	"context"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"

	"browserctl/internal/auth"
	"browserctl/internal/config"
	"browserctl/internal/controlplane"
	_ "browserctl/internal/grpc/codec"
	"browserctl/internal/grpc/controlplanev1"
	"browserctl/internal/grpc/interceptors"
	"browserctl/internal/logging"
	"browserctl/internal/logging/types"
	"browserctl/pkg/apierrors"
	"browserctl/pkg/idgen"
	"browserctl/pkg/models"
)

// Server is the gRPC transport: it translates ControlPlaneService calls
// into controlplane.Service calls and back, the same role the REST
// handlers play for HTTP. It carries no state of its own beyond that
// translation.
type Server struct {
	cfg    *config.Config
	svc    controlplane.Service
	logger types.Logger

	grpcServer *grpc.Server

	controlplanev1.UnimplementedControlPlaneServiceServer
}

// NewServer wires a gRPC transport around an already-constructed
// controlplane.Service.
func NewServer(cfg *config.Config, svc controlplane.Service) *Server {
	return &Server{
		cfg:    cfg,
		svc:    svc,
		logger: logging.GetGlobalLogger(),
	}
}

func (s *Server) Start(lis net.Listener) error {
	signingKey := s.cfg.Security.JWTSigningKey
	if signingKey == "" {
		signingKey = idgen.NewRequestID()
		s.logger.Warn("no jwt_signing_key configured, generating an ephemeral key for this process; tokens won't survive a restart", nil)
	}
	verifier, err := auth.NewVerifier(signingKey, s.cfg.Security.JWTIssuer)
	if err != nil {
		return err
	}

	s.grpcServer = grpc.NewServer(
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    30 * time.Second,
			Timeout: 5 * time.Second,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             5 * time.Second,
			PermitWithoutStream: true,
		}),
		grpc.MaxRecvMsgSize(32*1024*1024), // 32MB
		grpc.MaxSendMsgSize(32*1024*1024), // 32MB
		grpc.ChainUnaryInterceptor(
			interceptors.RecoveryInterceptor(),
			interceptors.LoggingInterceptor(),
			interceptors.MetricsInterceptor(),
			interceptors.AuthInterceptor(verifier),
		),
		grpc.ChainStreamInterceptor(
			interceptors.StreamRecoveryInterceptor(),
			interceptors.StreamLoggingInterceptor(),
			interceptors.StreamMetricsInterceptor(),
			interceptors.StreamAuthInterceptor(verifier),
		),
	)

	controlplanev1.RegisterControlPlaneServiceServer(s.grpcServer, s)
	reflection.Register(s.grpcServer)

	s.logger.Info("Starting gRPC server", map[string]interface{}{
		"address": lis.Addr().String(),
	})

	return s.grpcServer.Serve(lis)
}

func (s *Server) Stop() {
	s.logger.Info("Shutting down gRPC server...", map[string]interface{}{})
	if s.grpcServer != nil {
		s.grpcServer.GracefulStop()
	}
}

func (s *Server) GetConfig() *config.Config {
	return s.cfg
}

func (s *Server) GetLogger() types.Logger {
	return s.logger
}

func (s *Server) CreateSession(ctx context.Context, req *controlplanev1.CreateSessionRequest) (*controlplanev1.SessionResponse, error) {
	sess, err := s.svc.CreateSession(ctx, controlplane.CreateSessionRequest{
		UserID:   req.UserID,
		Username: req.Username,
		Roles:    req.Roles,
		Scopes:   req.Scopes,
		Metadata: req.Metadata,
		TTL:      time.Duration(req.TTLSecs) * time.Second,
	})
	if err != nil {
		return nil, toGRPCError(err)
	}
	return &controlplanev1.SessionResponse{Session: sess}, nil
}

func (s *Server) GetSession(ctx context.Context, req *controlplanev1.GetSessionRequest) (*controlplanev1.SessionResponse, error) {
	sess, err := s.svc.GetSession(ctx, req.ID)
	if err != nil {
		return nil, toGRPCError(err)
	}
	return &controlplanev1.SessionResponse{Session: sess}, nil
}

func (s *Server) ListSessions(ctx context.Context, req *controlplanev1.ListSessionsRequest) (*controlplanev1.ListSessionsResponse, error) {
	sessions, err := s.svc.ListSessions(ctx, models.SessionFilter{UserID: req.UserID})
	if err != nil {
		return nil, toGRPCError(err)
	}
	return &controlplanev1.ListSessionsResponse{Sessions: sessions}, nil
}

func (s *Server) DeleteSession(ctx context.Context, req *controlplanev1.DeleteSessionRequest) (*controlplanev1.DeleteSessionResponse, error) {
	if err := s.svc.DeleteSession(ctx, req.ID); err != nil {
		return nil, toGRPCError(err)
	}
	return &controlplanev1.DeleteSessionResponse{Deleted: true}, nil
}

func (s *Server) CreateContext(ctx context.Context, req *controlplanev1.CreateContextRequest) (*controlplanev1.ContextResponse, error) {
	ctxType := models.ContextDefault
	if req.Type != "" {
		ctxType = models.ContextType(req.Type)
	}
	browserCtx, err := s.svc.CreateContext(ctx, controlplane.CreateContextRequest{
		SessionID: req.SessionID,
		Type:      ctxType,
	})
	if err != nil {
		return nil, toGRPCError(err)
	}
	return &controlplanev1.ContextResponse{Context: browserCtx}, nil
}

func (s *Server) DeleteContext(ctx context.Context, req *controlplanev1.DeleteContextRequest) (*controlplanev1.DeleteSessionResponse, error) {
	if err := s.svc.DeleteContext(ctx, req.SessionID, req.ID); err != nil {
		return nil, toGRPCError(err)
	}
	return &controlplanev1.DeleteSessionResponse{Deleted: true}, nil
}

func (s *Server) CreatePage(ctx context.Context, req *controlplanev1.CreatePageRequest) (*controlplanev1.PageResponse, error) {
	page, err := s.svc.CreatePage(ctx, controlplane.CreatePageRequest{
		ContextID: req.ContextID,
		Options:   req.Options,
	})
	if err != nil {
		return nil, toGRPCError(err)
	}
	return &controlplanev1.PageResponse{Page: page}, nil
}

func (s *Server) DeletePage(ctx context.Context, req *controlplanev1.DeletePageRequest) (*controlplanev1.DeleteSessionResponse, error) {
	if err := s.svc.DeletePage(ctx, req.ContextID, req.ID); err != nil {
		return nil, toGRPCError(err)
	}
	return &controlplanev1.DeleteSessionResponse{Deleted: true}, nil
}

func (s *Server) Execute(ctx context.Context, req *controlplanev1.ExecuteRequest) (*controlplanev1.ExecuteResponse, error) {
	results, err := s.svc.Execute(ctx, controlplane.ExecuteRequest{
		SessionID: req.SessionID,
		PageID:    req.PageID,
		Actions:   req.Actions,
	})
	if err != nil {
		return nil, toGRPCError(err)
	}
	return &controlplanev1.ExecuteResponse{Results: results}, nil
}

func (s *Server) StreamSessionEvents(req *controlplanev1.StreamSessionEventsRequest, stream controlplanev1.ControlPlaneService_StreamSessionEventsServer) error {
	ctx := stream.Context()
	events, cancel, err := s.svc.StreamEvents(ctx, controlplane.EventFilter{
		SessionID: req.SessionID,
		UserID:    req.UserID,
	})
	if err != nil {
		return toGRPCError(err)
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			msg := &controlplanev1.SessionEventMessage{
				Type:      ev.Type,
				SessionID: ev.SessionID,
				UserID:    ev.UserID,
				Session:   ev.Session,
			}
			if err := stream.Send(msg); err != nil {
				return err
			}
		}
	}
}

func toGRPCError(err error) error {
	apiErr := apierrors.As(err)
	if apiErr == nil {
		return err
	}
	return apiErr.GRPCStatus().Err()
}
