package broker

import (
	"context"
	"fmt"
	"net"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gorm.io/gorm"

	"github.com/rocktick/rocktick/internal/config"
	"github.com/rocktick/rocktick/internal/dronerpc"
	"github.com/rocktick/rocktick/internal/models"
	"github.com/rocktick/rocktick/internal/secrets"
)

// Service implements dronerpc.DroneServiceServer: the broker's whole
// drone-facing surface.
type Service struct {
	db         *gorm.DB
	log        zerolog.Logger
	cfg        config.BrokerConfig
	dispatcher *Dispatcher
	recorder   *Recorder
	liveness   *LivenessCache
}

// NewService wires a broker Service from its dependencies.
func NewService(db *gorm.DB, log zerolog.Logger, cfg config.BrokerConfig, keyring *secrets.KeyRing, liveness *LivenessCache) *Service {
	return &Service{
		db:  db,
		log: log,
		cfg: cfg,
		dispatcher: &Dispatcher{
			Keyring:               keyring,
			FallbackSigningSecret: []byte(cfg.FallbackSigningSecret),
			Cfg:                   cfg,
		},
		recorder: &Recorder{DB: db},
		liveness: liveness,
	}
}

func (s *Service) DroneCheckin(ctx context.Context, req *dronerpc.DroneCheckinRequest) (*dronerpc.DroneCheckinResponse, error) {
	if req.DroneID == "" || req.DroneRegion == "" {
		return nil, status.Error(codes.InvalidArgument, "drone_id and drone_region are required")
	}

	checkinAgain, err := Checkin(ctx, s.db, req.DroneID, req.DroneIP, req.DroneRegion, req.DroneTimeMs)
	if err != nil {
		s.log.Error().Err(err).Str("drone_id", req.DroneID).Msg("checkin failed")
		return nil, status.Error(codes.Internal, "checkin failed")
	}

	if s.liveness != nil {
		s.liveness.MarkAlive(ctx, req.DroneID, req.DroneRegion, models.CheckinGracePeriod)
	}

	return &dronerpc.DroneCheckinResponse{CheckinAgainAtMs: checkinAgain}, nil
}

func (s *Service) GetJobs(req *dronerpc.GetJobsRequest, stream dronerpc.DroneService_GetJobsServer) error {
	if req.Region == "" {
		return status.Error(codes.InvalidArgument, "region is required")
	}

	ctx := stream.Context()

	var jobs []dronerpc.JobSpec
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		jobs, err = s.dispatcher.Dispatch(ctx, tx, req.Region)
		return err
	})
	if err != nil {
		s.log.Error().Err(err).Str("region", req.Region).Msg("dispatch failed")
		return status.Error(codes.Internal, "dispatch failed")
	}

	if s.liveness != nil {
		s.liveness.PublishDispatchDepth(ctx, req.Region, len(jobs))
	}

	// Jobs are already leased and committed above; streaming them out
	// through a bounded channel only provides backpressure on the
	// drone's read rate, it is never part of the atomicity boundary.
	// A disconnect here just means the lease recovers via the reaper.
	queue := make(chan dronerpc.JobSpec, s.cfg.DispatchChannelSize)
	go func() {
		defer close(queue)
		for _, job := range jobs {
			select {
			case queue <- job:
			case <-ctx.Done():
				return
			}
		}
	}()

	for job := range queue {
		j := job
		if err := stream.Send(&j); err != nil {
			return status.Errorf(codes.Unavailable, "send job: %v", err)
		}
	}
	return nil
}

func (s *Service) RecordExecution(stream dronerpc.DroneService_RecordExecutionServer) error {
	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		frame, err := stream.Recv()
		if err != nil {
			return err
		}

		recorded, err := s.recorder.RecordFrame(frame)
		if err != nil {
			s.log.Error().Err(err).Str("job_id", frame.JobID).Msg("record execution failed")
			return status.Errorf(codes.Internal, "record execution: %v", err)
		}
		if !recorded {
			continue
		}

		if err := stream.Send(&dronerpc.RecordExecutionResponse{JobID: frame.JobID}); err != nil {
			return status.Errorf(codes.Unavailable, "ack: %v", err)
		}
	}
}

// Serve starts the gRPC listener with the JSON codec forced (see
// internal/dronerpc/codec.go) and blocks until ctx is cancelled.
func Serve(ctx context.Context, addr string, svc *Service) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("broker: listen %s: %w", addr, err)
	}

	server := grpc.NewServer(grpc.ForceServerCodec(dronerpc.Codec))
	dronerpc.RegisterDroneServiceServer(server, svc)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Serve(lis) }()

	select {
	case <-ctx.Done():
		server.GracefulStop()
		return nil
	case err := <-errCh:
		return err
	}
}
