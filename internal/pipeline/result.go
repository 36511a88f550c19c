package pipeline

import (
	"encoding/json"

	"subtitler/internal/job"
)

// Result is the structured outcome a stage reports at its boundary.
type Result struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

// NewResult converts a stage outcome into a Result. payload is only used on
// success.
func NewResult(payload any, err error) Result {
	if err != nil {
		body, _ := json.Marshal(map[string]string{"error": err.Error()})
		return Result{StatusCode: job.StatusCode(err), Body: string(body)}
	}
	body, mErr := json.Marshal(payload)
	if mErr != nil {
		body, _ = json.Marshal(map[string]string{"error": mErr.Error()})
		return Result{StatusCode: 500, Body: string(body)}
	}
	return Result{StatusCode: 200, Body: string(body)}
}

// OK reports whether the stage succeeded.
func (r Result) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}
