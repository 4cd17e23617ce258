package task

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/parley-hq/parley/internal/blob"
	"github.com/parley-hq/parley/internal/repository"
	"github.com/parley-hq/parley/internal/transcribe"
	"go.uber.org/zap"
)

// TypeProcessRecording generates transcript and summary artifacts for
// an uploaded call recording.
const TypeProcessRecording = "call:process_recording"

// ProcessRecordingPayload is the queue wire format, decoupled from the
// domain types.
type ProcessRecordingPayload struct {
	CallID       uuid.UUID `json:"call_id"`
	RecordingURL string    `json:"recording_url"`
}

func NewProcessRecordingTask(callID uuid.UUID, recordingURL string) (*asynq.Task, error) {
	payload, err := json.Marshal(ProcessRecordingPayload{CallID: callID, RecordingURL: recordingURL})
	if err != nil {
		return nil, fmt.Errorf("encode recording payload: %w", err)
	}
	return asynq.NewTask(TypeProcessRecording, payload,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
	), nil
}

// Handler runs queued tasks. Everything here is best-effort relative to
// the upload that queued it: each failure is logged and at worst leaves
// an artifact URL null on the call row.
type Handler struct {
	calls       repository.CallStore
	blobs       blob.Store
	transcriber transcribe.Client
	logger      *zap.Logger
}

func NewHandler(calls repository.CallStore, blobs blob.Store, transcriber transcribe.Client, logger *zap.Logger) *Handler {
	return &Handler{calls: calls, blobs: blobs, transcriber: transcriber, logger: logger}
}

// HandleProcessRecording transcribes the recording, then summarizes the
// transcript, writing each artifact URL onto the call as soon as it
// exists. A transcription failure is retried by the queue (capped); a
// summarization failure is not, since the transcript is already stored
// and retrying would redo the expensive transcription.
func (h *Handler) HandleProcessRecording(ctx context.Context, t *asynq.Task) error {
	var p ProcessRecordingPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode recording payload: %v: %w", err, asynq.SkipRetry)
	}

	transcript, err := h.transcriber.Transcribe(ctx, p.RecordingURL)
	if err != nil {
		h.logger.Warn("transcribe recording",
			zap.String("call_id", p.CallID.String()),
			zap.Error(err),
		)
		return fmt.Errorf("transcribe recording: %w", err)
	}

	if data, err := json.Marshal(transcript); err != nil {
		h.logger.Warn("encode transcript", zap.String("call_id", p.CallID.String()), zap.Error(err))
	} else {
		key := fmt.Sprintf("calls/%s/transcript.json", p.CallID)
		url, err := h.blobs.Put(ctx, key, data, "application/json")
		if err != nil {
			h.logger.Warn("store transcript", zap.String("call_id", p.CallID.String()), zap.Error(err))
		} else if err := h.calls.SetArtifacts(ctx, p.CallID, nil, &url, nil); err != nil {
			h.logger.Warn("save transcript url", zap.String("call_id", p.CallID.String()), zap.Error(err))
		}
	}

	summary, err := h.transcriber.Summarize(ctx, transcript.Text)
	if err != nil {
		h.logger.Warn("summarize transcript",
			zap.String("call_id", p.CallID.String()),
			zap.Error(err),
		)
		return nil
	}

	data, err := json.Marshal(summary)
	if err != nil {
		h.logger.Warn("encode summary", zap.String("call_id", p.CallID.String()), zap.Error(err))
		return nil
	}
	key := fmt.Sprintf("calls/%s/summary.json", p.CallID)
	url, err := h.blobs.Put(ctx, key, data, "application/json")
	if err != nil {
		h.logger.Warn("store summary", zap.String("call_id", p.CallID.String()), zap.Error(err))
		return nil
	}
	if err := h.calls.SetArtifacts(ctx, p.CallID, nil, nil, &url); err != nil {
		h.logger.Warn("save summary url", zap.String("call_id", p.CallID.String()), zap.Error(err))
		return nil
	}

	h.logger.Info("recording processed", zap.String("call_id", p.CallID.String()))
	return nil
}
