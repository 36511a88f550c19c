// Package speech calls the Google Speech-to-Text REST API.
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const DefaultEndpoint = "https://speech.googleapis.com"

// RecognitionConfig is the fixed decoding configuration sent with every request.
type RecognitionConfig struct {
	Encoding                   string `json:"encoding"`
	SampleRateHertz            int    `json:"sampleRateHertz"`
	LanguageCode               string `json:"languageCode"`
	EnableAutomaticPunctuation bool   `json:"enableAutomaticPunctuation"`
	AudioChannelCount          int    `json:"audioChannelCount,omitempty"`
}

// DefaultConfig matches stereo 48 kHz FLAC in US English.
var DefaultConfig = RecognitionConfig{
	Encoding:                   "FLAC",
	SampleRateHertz:            48000,
	LanguageCode:               "en-US",
	EnableAutomaticPunctuation: true,
	AudioChannelCount:          2,
}

type recognizeRequest struct {
	Config RecognitionConfig `json:"config"`
	Audio  struct {
		URI string `json:"uri"`
	} `json:"audio"`
}

type recognizeResponse struct {
	Results []struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"results"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Client is a SpeechRecognizer. Safe for concurrent use.
type Client struct {
	endpoint   string
	apiKey     string
	config     RecognitionConfig
	httpClient *http.Client
}

// NewClient returns a client for endpoint (DefaultEndpoint when empty).
func NewClient(endpoint, apiKey string, config RecognitionConfig, timeout time.Duration) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("speech API key is required")
	}
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		endpoint:   strings.TrimSuffix(endpoint, "/"),
		apiKey:     apiKey,
		config:     config,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Recognize transcribes the audio at uri. Each result contributes its first
// alternative as one line. A response without results yields "" and no error.
func (c *Client) Recognize(ctx context.Context, uri string) (string, error) {
	payload := recognizeRequest{Config: c.config}
	payload.Audio.URI = uri
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := c.endpoint + "/v1p1beta1/speech:recognize?key=" + url.QueryEscape(c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			return "", fmt.Errorf("speech API error %d %s: %s", resp.StatusCode, apiErr.Error.Status, apiErr.Error.Message)
		}
		return "", fmt.Errorf("speech API error %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var result recognizeResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	lines := make([]string, 0, len(result.Results))
	for _, r := range result.Results {
		if len(r.Alternatives) == 0 {
			continue
		}
		lines = append(lines, r.Alternatives[0].Transcript)
	}
	return strings.Join(lines, "\n"), nil
}
