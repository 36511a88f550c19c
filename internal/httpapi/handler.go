// Package httpapi exposes the upload authorization stage over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"subtitler/internal/pipeline"
)

// Authorizer grants upload capabilities.
type Authorizer interface {
	Authorize(ctx context.Context, req pipeline.UploadRequest) (*pipeline.Grant, error)
}

// UploadURLResponse always carries PreSignedURL; it is null when the
// capability was denied.
type UploadURLResponse struct {
	PreSignedURL    *string           `json:"preSignedURL"`
	Method          string            `json:"method,omitempty"`
	RequiredHeaders map[string]string `json:"requiredHeaders,omitempty"`
	ExpiresAt       *time.Time        `json:"expiresAt,omitempty"`
	JobID           string            `json:"jobId,omitempty"`
	Message         string            `json:"message,omitempty"`
	Error           string            `json:"error,omitempty"`
}

type Handler struct {
	authorizer  Authorizer
	allowOrigin string
}

func NewHandler(authorizer Authorizer, allowOrigin string) *Handler {
	return &Handler{authorizer: authorizer, allowOrigin: allowOrigin}
}

// Routes returns the stage's HTTP surface.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /upload-url", h.UploadURL)
	mux.HandleFunc("OPTIONS /upload-url", h.Preflight)
	mux.HandleFunc("GET /healthz", h.Health)
	return h.cors(mux)
}

// UploadURL handles POST /upload-url.
func (h *Handler) UploadURL(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	var req pipeline.UploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, UploadURLResponse{Error: "invalid JSON body"})
		return
	}

	grant, err := h.authorizer.Authorize(r.Context(), req)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, UploadURLResponse{Error: err.Error()})
		return
	}

	resp := UploadURLResponse{
		PreSignedURL:    &grant.Capability.URL,
		Method:          grant.Capability.Method,
		RequiredHeaders: flatten(grant.Capability.Headers),
		ExpiresAt:       &grant.Capability.ExpiresAt,
		JobID:           grant.Identity.CorrelationID,
		Message:         "Notification sent successfully",
	}
	if grant.Warning != nil {
		resp.Message = "Upload authorized; notification could not be sent"
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) Preflight(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Origin", h.allowOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "OPTIONS,POST")
		next.ServeHTTP(w, r)
	})
}

// Serve runs srv until ctx is done, then shuts it down within timeout.
func Serve(ctx context.Context, srv *http.Server, timeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func flatten(h http.Header) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for k := range h {
		out[k] = h.Get(k)
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write the response")
	}
}
