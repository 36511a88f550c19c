package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"subtitler/internal/job"
)

// OwnerTag is the object tag that carries the owner contact.
const OwnerTag = "email"

// Grant is the outcome of a successful authorization. Warning is set when the
// capability was issued but the job-created notification was not.
type Grant struct {
	Identity   job.Identity
	Capability *Capability
	Warning    error
}

// Authorizer is the first stage: it grants a scoped upload capability and
// announces the new job.
type Authorizer struct {
	Bucket    string
	Prefix    string
	TTL       time.Duration
	Presigner Presigner
	Notifier  Notifier
}

// Authorize returns either a grant or an error wrapping
// job.ErrCapabilityIssuance, never both.
func (a *Authorizer) Authorize(ctx context.Context, req UploadRequest) (*Grant, error) {
	key, err := job.NewSourceKey(a.Prefix, req.FileName)
	if err != nil {
		return nil, err
	}
	id, err := job.Derive(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", job.ErrCapabilityIssuance, err)
	}
	logger := log.With().Str("jobId", id.CorrelationID).Str("key", key).Logger()

	var tags map[string]string
	if req.Email != "" {
		tags = map[string]string{OwnerTag: req.Email}
	}
	capability, err := a.Presigner.PresignUpload(ctx, a.Bucket, key, tags, a.TTL)
	if err != nil {
		logger.Error().Err(err).Msg("failed to presign the upload")
		return nil, fmt.Errorf("%w: %w", job.ErrCapabilityIssuance, err)
	}
	if capability == nil || capability.URL == "" {
		logger.Error().Msg("presigner returned no capability")
		return nil, fmt.Errorf("%w: no capability returned", job.ErrCapabilityIssuance)
	}

	grant := &Grant{Identity: id, Capability: capability}

	_, err = a.Notifier.Notify(ctx, Notification{
		Subject: "File Upload Notification",
		Message: fmt.Sprintf("A new file has been uploaded with the name: %s.", key),
		JobID:   id.CorrelationID,
		Email:   req.Email,
	})
	if err != nil {
		grant.Warning = errors.Join(job.ErrNotificationDispatch, err)
		logger.Warn().Err(err).Msg("failed to publish the job created notification")
	}

	logger.Info().Time("expiresAt", capability.ExpiresAt).Msg("successfully authorized the upload")
	return grant, nil
}
