package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/sahaay-health/sahaay/backend/internal/config"
	"github.com/sahaay-health/sahaay/backend/internal/metrics"
	"github.com/sahaay-health/sahaay/backend/pkg/log"
)

// ErrClassification covers malformed images and inference failures.
var ErrClassification = errors.New("image classification failed")

// Result is the top-1 prediction for one image.
type Result struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Classifier is the opaque single-label image classifier.
type Classifier interface {
	Classify(ctx context.Context, image []byte) (Result, error)
}

// Client calls a local inference server that hosts the trained weights.
type Client struct {
	endpoint    string
	weightsPath string
	labels      map[string]string
	httpClient  *http.Client
}

// NewClient creates a Client from configuration.
func NewClient(cfg config.ClassifierConfig) *Client {
	labels := make(map[string]string, len(cfg.Labels))
	for _, label := range cfg.Labels {
		labels[strings.ToLower(label)] = label
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		endpoint:    cfg.URL,
		weightsPath: cfg.WeightsPath,
		labels:      labels,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

type inferenceResponse struct {
	Label      string   `json:"label"`
	Confidence *float64 `json:"confidence"`
}

// Classify validates the image locally, then asks the inference server for the top-1 label.
func (c *Client) Classify(ctx context.Context, data []byte) (Result, error) {
	format, err := DetectFormat(data)
	if err != nil {
		metrics.Classifications.WithLabelValues("invalid_image", "").Inc()
		return Result{}, err
	}

	result, err := c.infer(ctx, data, format)
	if err != nil {
		metrics.Classifications.WithLabelValues("error", "").Inc()
		return Result{}, fmt.Errorf("%w: %v", ErrClassification, err)
	}

	metrics.Classifications.WithLabelValues("ok", result.Label).Inc()
	log.Infow("image classified", "label", result.Label, "confidence", result.Confidence)
	return result, nil
}

// DetectFormat decodes only the image header and reports "jpeg" or "png".
func DetectFormat(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty image", ErrClassification)
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: malformed image: %v", ErrClassification, err)
	}
	return format, nil
}

func (c *Client) infer(ctx context.Context, data []byte, format string) (Result, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("image", "upload."+format)
	if err != nil {
		return Result{}, err
	}
	if _, err := part.Write(data); err != nil {
		return Result{}, err
	}
	if err := writer.WriteField("weights", c.weightsPath); err != nil {
		return Result{}, err
	}
	if err := writer.Close(); err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("call classifier: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Result{}, fmt.Errorf("classifier returned %s: %s", resp.Status, strings.TrimSpace(string(respBody)))
	}

	var payload inferenceResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Result{}, fmt.Errorf("decode classifier response: %w", err)
	}

	label, ok := c.labels[strings.ToLower(strings.TrimSpace(payload.Label))]
	if !ok {
		return Result{}, fmt.Errorf("unknown label %q", payload.Label)
	}
	if payload.Confidence == nil {
		return Result{}, fmt.Errorf("missing confidence for label %q", label)
	}
	confidence := *payload.Confidence
	if confidence < 0 || confidence > 1 {
		return Result{}, fmt.Errorf("confidence %v outside [0, 1]", confidence)
	}

	return Result{Label: label, Confidence: confidence}, nil
}
