package drone

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/rocktick/rocktick/internal/config"
	"github.com/rocktick/rocktick/internal/drone/store"
	"github.com/rocktick/rocktick/internal/dronerpc"
)

// Runtime is one drone process: it checks in with the broker, consumes
// the region's job stream, executes jobs against a hardened HTTP
// client, and reports outcomes back over RecordExecution, buffering
// locally when disconnected.
type Runtime struct {
	ID     string
	cfg    config.DroneConfig
	log    zerolog.Logger
	http   *http.Client
	store  *store.Store
	client dronerpc.DroneServiceClient
}

// NewRuntime dials the broker and opens the local buffer.
func NewRuntime(id string, cfg config.DroneConfig, log zerolog.Logger) (*Runtime, error) {
	localStore, err := store.Open(cfg.LocalStorePath)
	if err != nil {
		return nil, err
	}

	conn, err := grpc.NewClient(cfg.BrokerAddr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(dronerpc.Codec)),
	)
	if err != nil {
		localStore.Close()
		return nil, err
	}

	return &Runtime{
		ID:     id,
		cfg:    cfg,
		log:    log,
		http:   NewHardenedClient(cfg.HTTPTimeout),
		store:  localStore,
		client: dronerpc.NewDroneServiceClient(conn),
	}, nil
}

// Run drives the checkin loop, the local-buffer resync loop, and job
// stream consumption until ctx is cancelled.
func (r *Runtime) Run(ctx context.Context) {
	go r.checkinLoop(ctx)
	go r.resyncLoop(ctx)
	r.streamLoop(ctx)
}

// Close releases the local store file handle.
func (r *Runtime) Close() error {
	return r.store.Close()
}

func (r *Runtime) checkinLoop(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.CheckinEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			resp, err := r.client.DroneCheckin(ctx, &dronerpc.DroneCheckinRequest{
				DroneID:     r.ID,
				DroneRegion: r.cfg.Region,
				DroneTimeMs: time.Now().UnixMilli(),
			})
			if err != nil {
				r.log.Warn().Err(err).Msg("checkin failed")
				continue
			}
			r.log.Debug().Int64("checkin_again_at_ms", resp.CheckinAgainAtMs).Msg("checked in")
		}
	}
}

func (r *Runtime) streamLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		stream, err := r.client.GetJobs(ctx, &dronerpc.GetJobsRequest{Region: r.cfg.Region})
		if err != nil {
			r.log.Warn().Err(err).Msg("GetJobs failed, retrying")
			r.sleep(ctx, time.Second)
			continue
		}

		for {
			job, err := stream.Recv()
			if err == io.EOF {
				break
			}
			if err != nil {
				r.log.Warn().Err(err).Msg("job stream broken, reconnecting")
				break
			}
			r.execute(ctx, job)
		}

		// The broker closes the stream once the current batch is
		// drained; pause before polling again.
		r.sleep(ctx, time.Second)
	}
}

func (r *Runtime) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// execute runs one job against the hardened client and reports the
// outcome. The local store buffers every outcome before it is offered
// to the broker, so a drone crash between execution and ack never loses
// the result.
func (r *Runtime) execute(ctx context.Context, job *dronerpc.JobSpec) {
	reqCtx, cancel := context.WithTimeout(ctx, time.Duration(job.TimeoutMs)*time.Millisecond)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, job.Method, job.URL, bytes.NewReader(job.Body))
	frame := &dronerpc.JobExecutionFrame{
		JobID:        job.JobID,
		LockNonce:    job.LockNonce,
		ReqMethod:    job.Method,
		ReqURL:       job.URL,
		ReqHeaders:   job.Headers,
		ReqBody:      job.Body,
		ExecutedAtMs: time.Now().UnixMilli(),
	}
	if err != nil {
		errMsg := err.Error()
		frame.Success = false
		frame.ResponseError = &errMsg
		r.report(ctx, frame)
		return
	}

	for k, v := range job.Headers {
		req.Header.Set(k, v)
	}

	resp, err := r.http.Do(req)
	if err != nil {
		errMsg := err.Error()
		frame.Success = false
		frame.ResponseError = &errMsg
		r.report(ctx, frame)
		return
	}
	defer resp.Body.Close()

	limit := job.MaxResponseBytes
	if limit <= 0 {
		limit = 1 << 20
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, limit))

	headers := map[string]string{}
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}

	frame.Success = resp.StatusCode >= 200 && resp.StatusCode < 300
	frame.Response = &dronerpc.ResponseFrame{
		Status:  int32(resp.StatusCode),
		Headers: headers,
		Body:    body,
	}
	r.report(ctx, frame)
}

// bufferedFrameRetention bounds how long an unacked frame stays in the
// local buffer. A frame whose lease the broker never matched gets no
// ack (the lease was reaped and the job will re-run), so without an
// expiry the buffer would grow forever.
const bufferedFrameRetention = time.Hour

// ackTimeout bounds one send-and-await-ack exchange. The broker acks
// only frames it durably committed, so a dropped duplicate produces no
// reply at all; the deadline is what keeps a resync pass from hanging
// on it.
const ackTimeout = 30 * time.Second

// resyncLoop periodically drains executions still buffered from an
// earlier disconnect or crash, oldest first. Delivery stays
// at-least-once: the broker's (job_id, lock_nonce) lease check makes a
// replayed frame a no-op, so re-sending a frame whose ack was lost is
// always safe.
func (r *Runtime) resyncLoop(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.ResyncEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		records, err := r.store.Unsynced()
		if err != nil {
			r.log.Error().Err(err).Msg("list unsynced executions")
			continue
		}
		if len(records) == 0 {
			continue
		}

		passCtx, cancel := context.WithTimeout(ctx, time.Duration(len(records))*ackTimeout)
		stream, err := r.client.RecordExecution(passCtx)
		if err != nil {
			cancel()
			r.log.Warn().Err(err).Msg("open RecordExecution stream for resync")
			continue
		}

		for _, rec := range records {
			if time.Since(rec.BufferedAt) > bufferedFrameRetention {
				_ = r.store.Delete(rec.JobID)
				continue
			}
			var frame dronerpc.JobExecutionFrame
			if err := json.Unmarshal(rec.FrameJSON, &frame); err != nil {
				r.log.Error().Err(err).Str("job_id", rec.JobID).Msg("corrupt buffered frame, dropping")
				_ = r.store.Delete(rec.JobID)
				continue
			}
			_ = r.store.MarkStatus(rec.JobID, store.StatusPending)
			if err := stream.Send(&frame); err != nil {
				r.log.Warn().Err(err).Str("job_id", rec.JobID).Msg("resync send failed")
				break
			}
			if _, err := stream.Recv(); err != nil {
				r.log.Warn().Err(err).Str("job_id", rec.JobID).Msg("resync ack not received")
				break
			}
			_ = r.store.MarkStatus(rec.JobID, store.StatusSynced)
			_ = r.store.Delete(rec.JobID)
		}
		cancel()
	}
}

// report buffers the frame locally then attempts to send it on a fresh
// RecordExecution stream. Delivery is at-least-once: a frame is only
// deleted from the local store once the broker acks it.
func (r *Runtime) report(ctx context.Context, frame *dronerpc.JobExecutionFrame) {
	data, err := json.Marshal(frame)
	if err != nil {
		r.log.Error().Err(err).Str("job_id", frame.JobID).Msg("marshal execution frame")
		return
	}
	if err := r.store.Append(frame.JobID, data); err != nil {
		r.log.Error().Err(err).Str("job_id", frame.JobID).Msg("buffer execution frame")
	}

	ackCtx, cancel := context.WithTimeout(ctx, ackTimeout)
	defer cancel()

	stream, err := r.client.RecordExecution(ackCtx)
	if err != nil {
		r.log.Warn().Err(err).Str("job_id", frame.JobID).Msg("open RecordExecution stream")
		return
	}
	_ = r.store.MarkStatus(frame.JobID, store.StatusPending)

	if err := stream.Send(frame); err != nil {
		r.log.Warn().Err(err).Str("job_id", frame.JobID).Msg("send execution frame")
		return
	}
	if _, err := stream.Recv(); err != nil {
		r.log.Warn().Err(err).Str("job_id", frame.JobID).Msg("ack not received")
		return
	}
	_ = r.store.MarkStatus(frame.JobID, store.StatusSynced)
	_ = r.store.Delete(frame.JobID)
}
