package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"subtitler/internal/job"
)

// Steps of one transcription invocation.
const (
	StepTriggered  = "triggered"
	StepFetched    = "fetched"
	StepRelocated  = "relocated"
	StepRecognized = "recognized"
	StepForwarded  = "forwarded"
)

// Transcriber is the second stage. It is triggered by a confirmed write of an
// authorized upload and forwards the transcript to delivery.
type Transcriber struct {
	Store      AudioStore
	Relocator  Relocator
	Recognizer SpeechRecognizer
	Forwarder  Forwarder
	// Normalizer is optional. When set, the relocated audio is its output.
	Normalizer Normalizer
	// TempDir holds the transient local copy. Empty means os.TempDir.
	TempDir string
}

// HandleEvent processes every record of a storage-write event in order.
// Malformed records are skipped; the event only fails as malformed when no
// record in it was usable.
func (t *Transcriber) HandleEvent(ctx context.Context, body []byte) error {
	triggers, err := job.ParseStorageEvent(body)
	if err != nil {
		return err
	}
	var malformed error
	handled := 0
	for _, trigger := range triggers {
		_, err := t.Transcribe(ctx, trigger)
		switch {
		case errors.Is(err, job.ErrMalformedTrigger):
			log.Warn().Err(err).Str("bucket", trigger.Bucket).Str("key", trigger.Key).Msg("skipping the record")
			malformed = err
			continue
		case err != nil:
			return err
		}
		handled++
	}
	if handled == 0 {
		return malformed
	}
	return nil
}

// Transcribe runs fetch, relocate, recognize and forward for one written
// object. Redelivery of the same trigger repeats all four; every target is
// derived from the source key so repeats overwrite instead of duplicating.
func (t *Transcriber) Transcribe(ctx context.Context, trigger job.Trigger) (*job.Job, error) {
	id, err := trigger.Identity()
	if err != nil {
		log.Error().Err(err).Str("bucket", trigger.Bucket).Str("key", trigger.Key).Msg("dropping the trigger")
		return nil, err
	}
	j := job.New(id, job.StageAuthorized)
	if err := j.Advance(job.StageTranscribing); err != nil {
		return nil, err
	}
	logger := log.With().Str("jobId", id.CorrelationID).Str("key", id.SourceKey).Logger()
	logger.Debug().Str("step", StepTriggered).Str("bucket", trigger.Bucket).Msg("transcription triggered")

	if err := t.run(ctx, j, trigger.Bucket, logger); err != nil {
		_ = j.Advance(job.StageFailed)
		logger.Error().Err(err).Msg("transcription failed")
		return j, err
	}
	logger.Info().Int("chars", len(j.TranscriptText)).Msg("successfully transcribed and forwarded")
	return j, nil
}

func (t *Transcriber) run(ctx context.Context, j *job.Job, bucket string, logger zerolog.Logger) error {
	// The transient name is unique per invocation, not per job.
	file, err := t.transient(path.Base(j.SourceKey), logger)
	if err != nil {
		return &job.StageError{State: StepFetched, Err: fmt.Errorf("%w: %w", job.ErrFetch, err)}
	}
	defer release(file, logger)

	if err := t.Store.Fetch(ctx, bucket, j.SourceKey, file); err != nil {
		return &job.StageError{State: StepFetched, Err: fmt.Errorf("%w: %w", job.ErrFetch, err)}
	}
	logger.Debug().Str("step", StepFetched).Str("path", file.Name()).Msg("fetched the upload")

	owner, err := t.Store.Owner(ctx, bucket, j.SourceKey)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to read the owner tag")
	}
	j.OwnerContact = owner

	source := file
	if t.Normalizer != nil {
		normalized, err := t.transient("normalized.flac", logger)
		if err != nil {
			return &job.StageError{State: StepRelocated, Err: fmt.Errorf("%w: %w", job.ErrRelocation, err)}
		}
		defer release(normalized, logger)
		if err := t.Normalizer.Normalize(ctx, file.Name(), normalized.Name()); err != nil {
			return &job.StageError{State: StepRelocated, Err: fmt.Errorf("%w: normalize: %w", job.ErrRelocation, err)}
		}
		source = normalized
	}

	if _, err := source.Seek(0, io.SeekStart); err != nil {
		return &job.StageError{State: StepRelocated, Err: fmt.Errorf("%w: %w", job.ErrRelocation, err)}
	}
	uri, err := t.Relocator.Relocate(ctx, j.RelocationKey(), source)
	if err != nil {
		return &job.StageError{State: StepRelocated, Err: fmt.Errorf("%w: %w", job.ErrRelocation, err)}
	}
	logger.Debug().Str("step", StepRelocated).Str("uri", uri).Msg("relocated the upload")

	text, err := t.Recognizer.Recognize(ctx, uri)
	if err != nil {
		return &job.StageError{State: StepRecognized, Err: fmt.Errorf("%w: %w", job.ErrRecognition, err)}
	}
	j.TranscriptText = text
	if err := j.Advance(job.StageTranscribed); err != nil {
		return err
	}
	logger.Debug().Str("step", StepRecognized).Bool("empty", text == "").Msg("recognized the audio")

	err = t.Forwarder.Forward(ctx, DeliveryRequest{
		Transcription: &text,
		FileName:      j.SourceKey,
		BucketName:    bucket,
		Email:         j.OwnerContact,
	})
	if err != nil {
		return &job.StageError{State: StepForwarded, Err: fmt.Errorf("%w: %w", job.ErrForward, err)}
	}
	logger.Debug().Str("step", StepForwarded).Msg("forwarded the transcript")
	return nil
}

func (t *Transcriber) transient(name string, logger zerolog.Logger) (*os.File, error) {
	file, err := os.CreateTemp(t.TempDir, uuid.NewString()+"-*-"+name)
	if err != nil {
		return nil, err
	}
	logger.Debug().Str("path", file.Name()).Msg("created the transient file")
	return file, nil
}

func release(file *os.File, logger zerolog.Logger) {
	if err := file.Close(); err != nil {
		logger.Debug().Err(err).Str("path", file.Name()).Msg("failed to close the transient file")
	}
	if err := os.Remove(file.Name()); err != nil && !os.IsNotExist(err) {
		logger.Error().Err(err).Str("path", file.Name()).Msg("failed to clean up the transient file")
	}
}
