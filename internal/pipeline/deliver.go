package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"subtitler/internal/caption"
	"subtitler/internal/job"
)

// Deliverer is the third stage. It renders the transcript as captions,
// stores them and announces a download link.
type Deliverer struct {
	Results   ResultStore
	Presigner Presigner
	Notifier  Notifier
	// Bucket receives the caption documents. Empty means the bucket named in
	// the request.
	Bucket string
	TTL    time.Duration
	Timing caption.Timing
}

// HandleMessage decodes a forwarded DeliveryRequest and delivers it.
func (d *Deliverer) HandleMessage(ctx context.Context, body []byte) error {
	var req DeliveryRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return fmt.Errorf("%w: %v", job.ErrMalformedTrigger, err)
	}
	_, err := d.Deliver(ctx, req)
	return err
}

// Deliver either stores the document and notifies, or fails with nothing
// recorded as complete. Re-running it for the same file overwrites the same
// document.
func (d *Deliverer) Deliver(ctx context.Context, req DeliveryRequest) (DispatchResult, error) {
	if err := validate(req); err != nil {
		log.Error().Err(err).Str("key", req.FileName).Msg("rejecting the delivery request")
		return DispatchResult{}, err
	}

	id, err := job.Derive(req.FileName)
	if err != nil {
		return DispatchResult{}, err
	}
	j := job.New(id, job.StageTranscribed)
	j.TranscriptText = *req.Transcription
	j.OwnerContact = req.Email
	if err := j.Advance(job.StageDelivering); err != nil {
		return DispatchResult{}, err
	}
	logger := log.With().Str("jobId", id.CorrelationID).Str("key", id.SourceKey).Logger()

	bucket := d.Bucket
	if bucket == "" {
		bucket = req.BucketName
	}

	document := caption.Document(j.TranscriptText, d.Timing)
	if err := d.Results.Put(ctx, bucket, id.ResultKey, caption.ContentType, []byte(document)); err != nil {
		_ = j.Advance(job.StageFailed)
		logger.Error().Err(err).Str("resultKey", id.ResultKey).Msg("failed to store the captions")
		return DispatchResult{}, fmt.Errorf("%w: store %s: %w", job.ErrPersistence, id.ResultKey, err)
	}

	url, err := d.Presigner.PresignDownload(ctx, bucket, id.ResultKey, d.TTL)
	if err != nil {
		_ = j.Advance(job.StageFailed)
		logger.Error().Err(err).Str("resultKey", id.ResultKey).Msg("failed to presign the download")
		return DispatchResult{}, fmt.Errorf("%w: presign %s: %w", job.ErrPersistence, id.ResultKey, err)
	}

	result, err := d.Notifier.Notify(ctx, Notification{
		Subject: "Subtitles Generated - " + id.SourceKey,
		Message: fmt.Sprintf("File Name: %s\nSubtitle URL: %s\n\nYou can download the subtitles from the link above.", id.SourceKey, url),
		JobID:   id.CorrelationID,
		Email:   j.OwnerContact,
	})
	if err != nil {
		_ = j.Advance(job.StageFailed)
		logger.Error().Err(err).Msg("failed to publish the subtitles notification")
		return DispatchResult{}, fmt.Errorf("%w: %w", job.ErrNotificationDispatch, err)
	}

	if err := j.Advance(job.StageDelivered); err != nil {
		return DispatchResult{}, err
	}
	logger.Info().Str("resultKey", id.ResultKey).Int64("receivers", result.Receivers).Msg("successfully delivered the captions")
	return result, nil
}

func validate(req DeliveryRequest) error {
	var missing []string
	if req.Transcription == nil {
		missing = append(missing, "transcription")
	}
	if req.FileName == "" {
		missing = append(missing, "fileName")
	}
	if req.BucketName == "" {
		missing = append(missing, "bucketName")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", job.ErrMissingField, strings.Join(missing, ", "))
	}
	return nil
}
