package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/parley-hq/parley/internal/blob"
	"github.com/parley-hq/parley/internal/models"
	"github.com/parley-hq/parley/internal/repository"
	"go.uber.org/zap"
)

// RecordingPipeline schedules the best-effort transcript and summary
// work that follows a recording upload.
type RecordingPipeline interface {
	EnqueueProcessRecording(ctx context.Context, callID uuid.UUID, recordingURL string) error
}

// Calls runs the call session state machine: NoActiveCall → Ongoing →
// Ended. The only transitions are caller-triggered; auto-end fires
// inside the leave transaction, never from a background job.
type Calls struct {
	access
	calls    repository.CallStore
	blobs    blob.Store
	pipeline RecordingPipeline
	logger   *zap.Logger
	now      func() time.Time
}

func NewCalls(channels repository.ChannelStore, members repository.MembershipStore, calls repository.CallStore, blobs blob.Store, pipeline RecordingPipeline, logger *zap.Logger) *Calls {
	return &Calls{
		access:   access{channels: channels, members: members},
		calls:    calls,
		blobs:    blobs,
		pipeline: pipeline,
		logger:   logger,
		now:      time.Now,
	}
}

// CallView is a call with its full participant roster, historical rows
// included.
type CallView struct {
	Call         models.Call              `json:"call"`
	Participants []models.CallParticipant `json:"participants"`
}

// Start opens a call in a channel and seats the actor as host. A
// channel can hold at most one ongoing call; losing that race is a
// BAD_REQUEST, not a second call.
func (s *Calls) Start(ctx context.Context, actor Actor, channelID uuid.UUID, callType models.CallType) (*CallView, error) {
	if !callType.Valid() {
		return nil, BadRequest("invalid call type")
	}
	if _, _, err := s.require(ctx, channelID, actor.UserID, models.RoleGuest); err != nil {
		return nil, err
	}

	call := &models.Call{ChannelID: channelID, InitiatorID: actor.UserID, Type: callType}
	host := &models.CallParticipant{
		UserID:       actor.UserID,
		Role:         models.CallRoleHost,
		AudioEnabled: true,
		VideoEnabled: callType == models.CallTypeVideo,
	}
	started, err := s.calls.Start(ctx, call, host)
	if err != nil {
		return nil, err
	}
	if !started {
		return nil, BadRequest("call already ongoing")
	}

	s.logger.Info("call started",
		zap.String("call_id", call.ID.String()),
		zap.String("channel_id", channelID.String()),
	)
	return &CallView{Call: *call, Participants: []models.CallParticipant{*host}}, nil
}

// Get returns a call and its roster. Channel members only.
func (s *Calls) Get(ctx context.Context, actor Actor, callID uuid.UUID) (*CallView, error) {
	call, err := s.call(ctx, callID)
	if err != nil {
		return nil, err
	}
	if _, _, err := s.require(ctx, call.ChannelID, actor.UserID, models.RoleGuest); err != nil {
		return nil, err
	}
	return s.view(ctx, call)
}

// Active returns the channel's ongoing call, if any.
func (s *Calls) Active(ctx context.Context, actor Actor, channelID uuid.UUID) (*CallView, error) {
	if _, _, err := s.require(ctx, channelID, actor.UserID, models.RoleGuest); err != nil {
		return nil, err
	}
	call, err := s.calls.GetOngoingByChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if call == nil {
		return nil, NotFound("no active call")
	}
	return s.view(ctx, call)
}

// Join seats a channel member in an ongoing call. A user already
// active in the call cannot join twice; rejoining after a leave is
// fine.
func (s *Calls) Join(ctx context.Context, actor Actor, callID uuid.UUID, audio, video bool) (*models.CallParticipant, error) {
	call, err := s.call(ctx, callID)
	if err != nil {
		return nil, err
	}
	if call.Status != models.CallStatusOngoing {
		return nil, BadRequest("call ended")
	}
	if _, _, err := s.require(ctx, call.ChannelID, actor.UserID, models.RoleGuest); err != nil {
		return nil, err
	}

	p := &models.CallParticipant{
		CallID:       callID,
		UserID:       actor.UserID,
		Role:         models.CallRoleParticipant,
		AudioEnabled: audio,
		VideoEnabled: video,
	}
	added, err := s.calls.AddParticipant(ctx, p)
	if err != nil {
		return nil, err
	}
	if !added {
		current, err := s.call(ctx, callID)
		if err != nil {
			return nil, err
		}
		if current.Status != models.CallStatusOngoing {
			return nil, BadRequest("call ended")
		}
		return nil, BadRequest("already in the call")
	}
	return p, nil
}

// Leave marks the actor out of the call. When the last active
// participant leaves, the same transaction ends the call; the returned
// flag reports whether that happened here. Leaving a call you are not
// in, or one that already ended, is a no-op.
func (s *Calls) Leave(ctx context.Context, actor Actor, callID uuid.UUID) (bool, error) {
	if _, err := s.call(ctx, callID); err != nil {
		return false, err
	}

	_, ended, err := s.calls.Leave(ctx, callID, actor.UserID, s.now())
	if err != nil {
		return false, err
	}
	if ended {
		s.logger.Info("call ended", zap.String("call_id", callID.String()))
	}
	return ended, nil
}

// End terminates the call for everyone. Host-only; ending an already
// ended call just returns it.
func (s *Calls) End(ctx context.Context, actor Actor, callID uuid.UUID) (*models.Call, error) {
	call, err := s.call(ctx, callID)
	if err != nil {
		return nil, err
	}

	roster, err := s.calls.ListParticipants(ctx, callID)
	if err != nil {
		return nil, err
	}
	isHost := false
	for _, p := range roster {
		if p.UserID == actor.UserID && p.Role == models.CallRoleHost {
			isHost = true
			break
		}
	}
	if !isHost {
		return nil, Forbidden("only the host can end the call")
	}

	if call.Status == models.CallStatusEnded {
		return call, nil
	}
	if _, err := s.calls.EndAll(ctx, callID, s.now()); err != nil {
		return nil, err
	}
	s.logger.Info("call ended", zap.String("call_id", callID.String()))
	return s.call(ctx, callID)
}

// SetMedia updates the actor's mute flags in an ongoing call.
func (s *Calls) SetMedia(ctx context.Context, actor Actor, callID uuid.UUID, audio, video bool) error {
	call, err := s.call(ctx, callID)
	if err != nil {
		return err
	}
	if call.Status != models.CallStatusOngoing {
		return BadRequest("call ended")
	}

	ok, err := s.calls.SetMedia(ctx, callID, actor.UserID, audio, video)
	if err != nil {
		return err
	}
	if !ok {
		return BadRequest("not in the call")
	}
	return nil
}

// UploadRecording stores the call's audio artifact. The blob write and
// the recording URL on the call row are the mandatory part; transcript
// and summary generation are queued best-effort, and a failure to queue
// them never fails the upload.
func (s *Calls) UploadRecording(ctx context.Context, actor Actor, callID uuid.UUID, data []byte, contentType string) (*models.Call, error) {
	call, err := s.call(ctx, callID)
	if err != nil {
		return nil, err
	}
	if _, _, err := s.require(ctx, call.ChannelID, actor.UserID, models.RoleGuest); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, BadRequest("recording is empty")
	}

	key := fmt.Sprintf("calls/%s/recording%s", callID, extFor(contentType))
	url, err := s.blobs.Put(ctx, key, data, contentType)
	if err != nil {
		return nil, err
	}
	if err := s.calls.SetArtifacts(ctx, callID, &url, nil, nil); err != nil {
		return nil, err
	}

	if s.pipeline != nil {
		if err := s.pipeline.EnqueueProcessRecording(ctx, callID, url); err != nil {
			s.logger.Warn("enqueue recording pipeline",
				zap.String("call_id", callID.String()),
				zap.Error(err),
			)
		}
	}
	return s.call(ctx, callID)
}

func (s *Calls) call(ctx context.Context, id uuid.UUID) (*models.Call, error) {
	c, err := s.calls.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, NotFound("call not found")
	}
	return c, nil
}

func (s *Calls) view(ctx context.Context, call *models.Call) (*CallView, error) {
	roster, err := s.calls.ListParticipants(ctx, call.ID)
	if err != nil {
		return nil, err
	}
	return &CallView{Call: *call, Participants: roster}, nil
}

func extFor(contentType string) string {
	switch contentType {
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/wav", "audio/x-wav":
		return ".wav"
	case "audio/webm", "video/webm":
		return ".webm"
	case "audio/mp4", "video/mp4":
		return ".mp4"
	case "audio/ogg":
		return ".ogg"
	}
	return ".bin"
}
