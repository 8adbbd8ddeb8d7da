// Package modelhttp is the client of the model-serving sidecar that hosts
// the segmentation and image-embedding models. The models are loaded once
// by the sidecar and shared across requests.
package modelhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

type Config struct {
	BaseURL           string
	APIKey            string
	SegmentPath       string
	EmbedPath         string
	SegmentationModel string
	EmbeddingModel    string
	// Device is forwarded as a hint ("cuda" or "cpu"); the sidecar picks what it has.
	Device  string
	Timeout time.Duration
}

type Client struct {
	baseURL     string
	apiKey      string
	segmentPath string
	embedPath   string
	segModel    string
	embModel    string
	device      string
	timeout     time.Duration
	httpClient  *http.Client
}

func New(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("modelhttp: base_url required")
	}
	segPath := strings.TrimSpace(cfg.SegmentPath)
	if segPath == "" {
		segPath = "/v1/segment"
	}
	embPath := strings.TrimSpace(cfg.EmbedPath)
	if embPath == "" {
		embPath = "/v1/embed/image"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        64,
		MaxIdleConnsPerHost: 32,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Client{
		baseURL:     baseURL,
		apiKey:      strings.TrimSpace(cfg.APIKey),
		segmentPath: segPath,
		embedPath:   embPath,
		segModel:    strings.TrimSpace(cfg.SegmentationModel),
		embModel:    strings.TrimSpace(cfg.EmbeddingModel),
		device:      strings.TrimSpace(cfg.Device),
		timeout:     timeout,
		httpClient:  &http.Client{Transport: tr},
	}, nil
}

// NewWithHTTPClient swaps the transport; tests use it to avoid the network.
func NewWithHTTPClient(cfg Config, httpClient *http.Client) (*Client, error) {
	c, err := New(cfg)
	if err != nil {
		return nil, err
	}
	if httpClient != nil {
		c.httpClient = httpClient
	}
	return c, nil
}

type imageRequest struct {
	Model  string `json:"model,omitempty"`
	Image  []byte `json:"image_base64"`
	Device string `json:"device,omitempty"`
}

// SegmentResponse carries one class label per pixel, row-major, at the
// model's output resolution.
type SegmentResponse struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Labels []byte `json:"labels"`
}

type embedResponse struct {
	Embedding []float64 `json:"embedding"`
	Model     string    `json:"model,omitempty"`
}

func (c *Client) Segment(ctx context.Context, png []byte) (SegmentResponse, error) {
	var out SegmentResponse
	if err := c.doJSON(ctx, c.segmentPath, imageRequest{Model: c.segModel, Image: png, Device: c.device}, &out); err != nil {
		return SegmentResponse{}, err
	}
	if out.Width <= 0 || out.Height <= 0 || len(out.Labels) != out.Width*out.Height {
		return SegmentResponse{}, fmt.Errorf("modelhttp: malformed class map %dx%d with %d labels", out.Width, out.Height, len(out.Labels))
	}
	return out, nil
}

func (c *Client) EmbedImage(ctx context.Context, png []byte) ([]float32, error) {
	var out embedResponse
	if err := c.doJSON(ctx, c.embedPath, imageRequest{Model: c.embModel, Image: png, Device: c.device}, &out); err != nil {
		return nil, err
	}
	if len(out.Embedding) == 0 {
		return nil, errors.New("modelhttp: empty embedding")
	}
	vec := make([]float32, len(out.Embedding))
	for i, f := range out.Embedding {
		vec[i] = float32(f)
	}
	return vec, nil
}

func (c *Client) doJSON(ctx context.Context, path string, body any, out any) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
