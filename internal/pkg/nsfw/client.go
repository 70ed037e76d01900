package nsfw

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// DetectionResult represents the result of NSFW detection.
type DetectionResult struct {
	IsNSFW      bool
	NSFWScore   float64 // 0.0 to 1.0
	NormalScore float64
	Label       string
	Confidence  float64
	ProcessedAt time.Time
}

// IsSafe returns true if the image is safe (not NSFW).
func (r *DetectionResult) IsSafe() bool {
	return !r.IsNSFW
}

// HTTPConfig holds configuration for the HTTP NSFW detector.
type HTTPConfig struct {
	BaseURL string // NSFW API URL, e.g., "http://localhost:8080"
	Timeout time.Duration
}

// DefaultHTTPConfig returns default configuration.
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		BaseURL: "http://localhost:8080",
		Timeout: 30 * time.Second,
	}
}

// Client is a client for NSFW detection API (Falconsai/nsfw_image_detection).
type Client struct {
	config     HTTPConfig
	httpClient *http.Client
}

// NewClient creates a new NSFW detection client.
func NewClient(config HTTPConfig) *Client {
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// apiResponse represents the API response from Falconsai model.
type apiResponse struct {
	IsNSFW      bool    `json:"is_nsfw"`
	NSFWScore   float64 `json:"nsfw_score"`
	NormalScore float64 `json:"normal_score"`
	Label       string  `json:"label"`
	Confidence  float64 `json:"confidence"`
}

// Detect uploads one encoded image to /predict.
func (c *Client) Detect(ctx context.Context, imageData []byte) (*DetectionResult, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "frame.jpg")
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}

	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close writer: %w", err)
	}

	return c.doRequest(ctx, body, writer.FormDataContentType())
}

func (c *Client) doRequest(ctx context.Context, body *bytes.Buffer, contentType string) (*DetectionResult, error) {
	url := c.config.BaseURL + "/predict"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call NSFW API: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("NSFW API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var apiResp apiResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return &DetectionResult{
		IsNSFW:      apiResp.IsNSFW,
		NSFWScore:   apiResp.NSFWScore,
		NormalScore: apiResp.NormalScore,
		Label:       apiResp.Label,
		Confidence:  apiResp.Confidence,
		ProcessedAt: time.Now(),
	}, nil
}

// Ping checks if the NSFW API is reachable.
func (c *Client) Ping(ctx context.Context) error {
	url := c.config.BaseURL + "/health"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("NSFW API not reachable at %s: %w", c.config.BaseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("NSFW API returned status %d", resp.StatusCode)
	}

	return nil
}
