package media

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"delta-backend/internal/domain"
)

const (
	imageModel    = "imagen-3.0-generate-002"
	imageEndpoint = "https://generativelanguage.googleapis.com/v1beta/models/%s:predict"
)

// ImageClient generates illustrations via the Imagen REST API and returns
// them as data URIs, ready for inline rendering.
type ImageClient struct {
	http   *resty.Client
	apiKey string
}

func NewImageClient(apiKey string) *ImageClient {
	client := resty.New().
		SetTimeout(60 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(1 * time.Second).
		SetHeader("Content-Type", "application/json")
	return &ImageClient{http: client, apiKey: apiKey}
}

type imagePrediction struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded"`
	MimeType           string `json:"mimeType"`
}

type imageResponse struct {
	Predictions []imagePrediction `json:"predictions"`
}

func (c *ImageClient) GenerateDataURI(ctx context.Context, prompt string) (string, error) {
	if prompt == "" {
		return "", domain.ErrInvalidArgument
	}
	if c.apiKey == "" {
		return "", domain.ErrUnavailable
	}

	body := map[string]any{
		"instances":  []map[string]any{{"prompt": prompt}},
		"parameters": map[string]any{"sampleCount": 1},
	}

	var out imageResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("key", c.apiKey).
		SetBody(body).
		SetResult(&out).
		Post(fmt.Sprintf(imageEndpoint, imageModel))
	if err != nil {
		return "", fmt.Errorf("image request: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("image request: status %d: %s", resp.StatusCode(), resp.String())
	}
	if len(out.Predictions) == 0 || out.Predictions[0].BytesBase64Encoded == "" {
		return "", fmt.Errorf("image request: empty prediction")
	}

	mime := out.Predictions[0].MimeType
	if mime == "" {
		mime = "image/png"
	}
	return "data:" + mime + ";base64," + out.Predictions[0].BytesBase64Encoded, nil
}
