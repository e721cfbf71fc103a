package livekit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	lkproto "github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go"
	"github.com/twitchtv/twirp"
	"go.uber.org/zap"

	"github.com/bodycam/backend/pkg/storage"
)

// EgressClientConfig configures provider API calls.
type EgressClientConfig struct {
	APIURL         string
	CallTimeout    time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
}

// SegmentedEgressRequest describes a room-composite capture with HLS segment output.
type SegmentedEgressRequest struct {
	RoomName        string
	FilenamePrefix  string
	PlaylistName    string
	Layout          string
	SegmentDuration time.Duration
	Storage         storage.Credentials
}

// egressAPI is the part of the server SDK egress client used here.
type egressAPI interface {
	StartRoomCompositeEgress(ctx context.Context, req *lkproto.RoomCompositeEgressRequest) (*lkproto.EgressInfo, error)
	StopEgress(ctx context.Context, req *lkproto.StopEgressRequest) (*lkproto.EgressInfo, error)
}

// EgressClient starts and stops egress through the server SDK, bounding every call by a
// timeout and retrying transient failures.
type EgressClient struct {
	cfg    EgressClientConfig
	api    egressAPI
	logger *zap.Logger
}

// NewEgressClient creates an egress API client authenticated with the signer's key pair.
func NewEgressClient(cfg EgressClientConfig, signer *Signer, logger *zap.Logger) (*EgressClient, error) {
	if cfg.APIURL == "" || signer == nil {
		return nil, fmt.Errorf("livekit: api url and signer required")
	}
	return newEgressClient(cfg, lksdk.NewEgressClient(cfg.APIURL, signer.apiKey, signer.apiSecret), logger), nil
}

func newEgressClient(cfg EgressClientConfig, api egressAPI, logger *zap.Logger) *EgressClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 2 * time.Minute
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &EgressClient{cfg: cfg, api: api, logger: logger}
}

// SegmentedRequest builds the room-composite request writing HLS segments to object storage.
func SegmentedRequest(req SegmentedEgressRequest) *lkproto.RoomCompositeEgressRequest {
	return &lkproto.RoomCompositeEgressRequest{
		RoomName: req.RoomName,
		Layout:   req.Layout,
		SegmentOutputs: []*lkproto.SegmentedFileOutput{{
			Protocol:        lkproto.SegmentedFileProtocol_HLS_PROTOCOL,
			FilenamePrefix:  req.FilenamePrefix,
			PlaylistName:    req.PlaylistName,
			SegmentDuration: uint32(req.SegmentDuration / time.Second),
			Output: &lkproto.SegmentedFileOutput_S3{
				S3: &lkproto.S3Upload{
					AccessKey: req.Storage.AccessKey,
					Secret:    req.Storage.Secret,
					Region:    req.Storage.Region,
					Endpoint:  req.Storage.Endpoint,
					Bucket:    req.Storage.Bucket,
				},
			},
		}},
	}
}

// StartSegmentedEgress starts capturing a room into segmented HLS on object storage.
func (c *EgressClient) StartSegmentedEgress(ctx context.Context, req SegmentedEgressRequest) (*lkproto.EgressInfo, error) {
	payload := SegmentedRequest(req)
	return c.invoke(ctx, "StartRoomCompositeEgress", func(ctx context.Context) (*lkproto.EgressInfo, error) {
		return c.api.StartRoomCompositeEgress(ctx, payload)
	})
}

// StopEgress asks the provider to stop a running egress.
func (c *EgressClient) StopEgress(ctx context.Context, egressID string) (*lkproto.EgressInfo, error) {
	payload := &lkproto.StopEgressRequest{EgressId: egressID}
	return c.invoke(ctx, "StopEgress", func(ctx context.Context) (*lkproto.EgressInfo, error) {
		return c.api.StopEgress(ctx, payload)
	})
}

func (c *EgressClient) invoke(ctx context.Context, method string, call func(context.Context) (*lkproto.EgressInfo, error)) (*lkproto.EgressInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()

	b := backoff.NewExponentialBackOff()
	if c.cfg.InitialBackoff > 0 {
		b.InitialInterval = c.cfg.InitialBackoff
	}
	attempt := 0
	op := func() (*lkproto.EgressInfo, error) {
		attempt++
		info, err := call(ctx)
		if err == nil {
			if info.GetEgressId() == "" {
				return nil, backoff.Permanent(fmt.Errorf("livekit %s: response has no egress id", method))
			}
			return info, nil
		}
		err = fmt.Errorf("livekit %s: %w", method, err)
		if !Temporary(err) {
			return nil, backoff.Permanent(err)
		}
		c.logger.Warn("livekit call failed",
			zap.String("method", method),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		return nil, err
	}
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(c.cfg.MaxAttempts)),
	)
}

// Temporary reports whether a failed provider call may succeed on retry. Twirp errors are
// classified by code; anything else is treated as a transport failure.
func Temporary(err error) bool {
	var terr twirp.Error
	if !errors.As(err, &terr) {
		return true
	}
	switch terr.Code() {
	case twirp.Unavailable, twirp.ResourceExhausted, twirp.Internal, twirp.Unknown, twirp.DeadlineExceeded:
		return true
	default:
		return false
	}
}

// EgressFailed reports whether the provider considers the egress unsuccessful.
func EgressFailed(info *lkproto.EgressInfo) bool {
	switch info.GetStatus() {
	case lkproto.EgressStatus_EGRESS_FAILED, lkproto.EgressStatus_EGRESS_ABORTED:
		return true
	}
	return info.GetError() != ""
}

func segments(info *lkproto.EgressInfo) *lkproto.SegmentsInfo {
	if results := info.GetSegmentResults(); len(results) > 0 {
		return results[0]
	}
	return info.GetSegments()
}

// PlaylistLocation returns the manifest location reported for the first segment output.
func PlaylistLocation(info *lkproto.EgressInfo) string {
	return segments(info).GetPlaylistLocation()
}

// SegmentCount returns the number of segments written so far.
func SegmentCount(info *lkproto.EgressInfo) int64 {
	return segments(info).GetSegmentCount()
}
