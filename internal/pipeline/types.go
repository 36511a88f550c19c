// Package pipeline holds the three stages that move a job from an authorized
// upload to a delivered caption document. Stages share no in-process state;
// everything a stage knows arrives in its trigger.
package pipeline

import (
	"context"
	"io"
	"net/http"
	"time"
)

// AudioStore reads uploaded audio and the metadata bound to it at upload time.
type AudioStore interface {
	Fetch(ctx context.Context, bucket, key string, w io.Writer) error
	Owner(ctx context.Context, bucket, key string) (string, error)
}

// Relocator copies audio to where the speech service can read it and returns
// the reference the recognizer understands.
type Relocator interface {
	Relocate(ctx context.Context, key string, r io.Reader) (string, error)
}

// Normalizer re-encodes the local file at in into the format the recognizer
// is configured for, writing it to out.
type Normalizer interface {
	Normalize(ctx context.Context, in, out string) error
}

// SpeechRecognizer transcribes the audio at uri. An empty transcript with a
// nil error means no speech was recognized.
type SpeechRecognizer interface {
	Recognize(ctx context.Context, uri string) (string, error)
}

// Forwarder hands a transcript to the delivery stage without waiting for it.
// A nil error means the request was accepted for later execution, nothing more.
type Forwarder interface {
	Forward(ctx context.Context, req DeliveryRequest) error
}

// ResultStore persists caption documents.
type ResultStore interface {
	Put(ctx context.Context, bucket, key, contentType string, body []byte) error
}

// Presigner issues time-limited single-object capabilities.
type Presigner interface {
	PresignUpload(ctx context.Context, bucket, key string, tags map[string]string, ttl time.Duration) (*Capability, error)
	PresignDownload(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
}

// Notifier publishes a notification to a topic. Subscribers are not awaited.
type Notifier interface {
	Notify(ctx context.Context, n Notification) (DispatchResult, error)
}

// UploadRequest is the inbound request to the authorization stage.
type UploadRequest struct {
	FileName string `json:"fileName"`
	Email    string `json:"email"`
}

// Capability is a signed, time-limited permission for one object operation.
// Headers must be sent verbatim with the request.
type Capability struct {
	URL       string      `json:"url"`
	Method    string      `json:"method"`
	Headers   http.Header `json:"headers,omitempty"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

// DeliveryRequest is the payload forwarded from transcription to delivery.
// Transcription is a pointer so an absent field can be told apart from an
// empty transcript.
type DeliveryRequest struct {
	Transcription *string `json:"transcription"`
	FileName      string  `json:"fileName"`
	BucketName    string  `json:"bucketName"`
	Email         string  `json:"email,omitempty"`
}

// Notification is a topic-style message.
type Notification struct {
	Subject string `json:"subject"`
	Message string `json:"message"`
	JobID   string `json:"jobId,omitempty"`
	Email   string `json:"email,omitempty"`
}

// DispatchResult is what the notification backend reported for a publish.
type DispatchResult struct {
	Receivers int64 `json:"receivers"`
}
