package media

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"delta-backend/internal/domain"
)

const ttsEndpoint = "https://texttospeech.googleapis.com/v1/text:synthesize"

// TTSClient turns text into base64-encoded MP3 audio via the Google
// Text-to-Speech REST API.
type TTSClient struct {
	http   *resty.Client
	apiKey string
}

func NewTTSClient(apiKey string) *TTSClient {
	client := resty.New().
		SetTimeout(30 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(1 * time.Second).
		SetHeader("Content-Type", "application/json")
	return &TTSClient{http: client, apiKey: apiKey}
}

type ttsRequest struct {
	Input struct {
		Text string `json:"text"`
	} `json:"input"`
	Voice struct {
		LanguageCode string `json:"languageCode"`
		Name         string `json:"name"`
	} `json:"voice"`
	AudioConfig struct {
		AudioEncoding string `json:"audioEncoding"`
	} `json:"audioConfig"`
}

type ttsResponse struct {
	AudioContent string `json:"audioContent"`
}

// Synthesize returns the spoken text as base64-encoded MP3.
func (c *TTSClient) Synthesize(ctx context.Context, text string) (string, error) {
	if text == "" {
		return "", domain.ErrInvalidArgument
	}
	if c.apiKey == "" {
		return "", domain.ErrUnavailable
	}

	var req ttsRequest
	req.Input.Text = text
	req.Voice.LanguageCode = "en-US"
	req.Voice.Name = "en-US-Polyglot-1"
	req.AudioConfig.AudioEncoding = "MP3"

	var out ttsResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("key", c.apiKey).
		SetBody(&req).
		SetResult(&out).
		Post(ttsEndpoint)
	if err != nil {
		return "", fmt.Errorf("tts request: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("tts request: status %d: %s", resp.StatusCode(), resp.String())
	}
	return out.AudioContent, nil
}
