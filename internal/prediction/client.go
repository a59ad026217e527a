// internal/prediction/client.go
package prediction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "cancercare-web/internal/common/errors"
	commonhttp "cancercare-web/internal/common/http"
	"cancercare-web/internal/common/logger"
	"cancercare-web/internal/common/metrics"
)

// Backend label values for metrics and logs.
const (
	BackendRisk  = "risk"
	BackendImage = "image"
)

const (
	riskService  = "risk model"
	imageService = "image classifier"

	// FileField is the only multipart field the image backend reads.
	FileField = "file"

	maxErrorBody = 4 << 10
)

var (
	ErrMissingPrediction  = errors.New("response has no prediction field")
	ErrInvalidProbability = errors.New("probability outside [0,1]")

	tracer = otel.Tracer("cancercare-web/prediction")

	quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")
)

// RiskClient sends completed questionnaires to the risk model.
type RiskClient struct {
	endpoint string
	client   *commonhttp.Client
	logger   logger.Logger
}

func NewRiskClient(cfg *Config, log logger.Logger) *RiskClient {
	return &RiskClient{
		endpoint: cfg.RiskURL + "/predict",
		client:   commonhttp.NewClient(cfg.Timeout),
		logger:   log.WithFields(map[string]interface{}{"backend": BackendRisk}),
	}
}

// Predict posts req as JSON and returns the backend's prediction value.
// The request is sent once; the caller is responsible for completeness.
func (c *RiskClient) Predict(ctx context.Context, req PredictionRequest) (string, error) {
	ctx, span := tracer.Start(ctx, "prediction.risk", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	start := time.Now()

	label, err := c.predict(ctx, req)
	observe(span, BackendRisk, start, err)
	if err != nil {
		c.logger.Warn("risk prediction failed", failureFields(err, start))
		return "", err
	}

	c.logger.Info("risk prediction completed", map[string]interface{}{
		"durationMs": time.Since(start).Milliseconds(),
	})
	return label, nil
}

func (c *RiskClient) predict(ctx context.Context, req PredictionRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", apperrors.NewInternalError(fmt.Errorf("encode request: %w", err))
	}

	resp, err := c.client.Post(ctx, c.endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		return "", apperrors.NewTransportError(riskService, err)
	}
	defer resp.Body.Close()

	data, err := readResponse(resp, riskService)
	if err != nil {
		return "", err
	}
	return decodeLabel(data)
}

// ImageClient sends lung images to the image classifier.
type ImageClient struct {
	endpoint string
	client   *commonhttp.Client
	logger   logger.Logger
}

func NewImageClient(cfg *Config, log logger.Logger) *ImageClient {
	return &ImageClient{
		endpoint: cfg.ImageURL + "/upload",
		client:   commonhttp.NewClient(cfg.Timeout),
		logger:   log.WithFields(map[string]interface{}{"backend": BackendImage}),
	}
}

// Classify uploads img and returns the label and probability. progress may
// be nil.
func (c *ImageClient) Classify(ctx context.Context, img Image, progress ProgressFunc) (*PredictionResult, error) {
	ctx, span := tracer.Start(ctx, "prediction.image", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	start := time.Now()

	result, err := c.classify(ctx, img, progress)
	observe(span, BackendImage, start, err)
	if err != nil {
		c.logger.Warn("image classification failed", failureFields(err, start))
		return nil, err
	}

	c.logger.Info("image classification completed", map[string]interface{}{
		"label":       result.Label,
		"probability": result.Probability,
		"durationMs":  time.Since(start).Milliseconds(),
	})
	return result, nil
}

func (c *ImageClient) classify(ctx context.Context, img Image, progress ProgressFunc) (*PredictionResult, error) {
	data, err := c.send(ctx, img, progress)
	if err != nil {
		return nil, err
	}
	return decodeResult(data)
}

// Relay uploads img and returns the backend's JSON body unchanged.
func (c *ImageClient) Relay(ctx context.Context, img Image) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "prediction.image.relay", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	start := time.Now()

	data, err := c.send(ctx, img, nil)
	if err == nil && !json.Valid(data) {
		err = apperrors.NewBackendDecodeError(imageService, errors.New("response is not JSON"))
	}
	observe(span, BackendImage, start, err)
	if err != nil {
		c.logger.Warn("image relay failed", failureFields(err, start))
		return nil, err
	}
	return data, nil
}

func (c *ImageClient) send(ctx context.Context, img Image, progress ProgressFunc) ([]byte, error) {
	body, contentType, err := encodeMultipart(img)
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("encode multipart: %w", err))
	}

	total := int64(body.Len())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint,
		commonhttp.NewProgressReader(body, total, progress))
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	req.ContentLength = total
	req.Header.Set("Content-Type", contentType)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, apperrors.NewTransportError(imageService, err)
	}
	defer resp.Body.Close()

	return readResponse(resp, imageService)
}

func encodeMultipart(img Image) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	contentType := img.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="%s"; filename="%s"`, FileField, quoteEscaper.Replace(img.Filename)))
	h.Set("Content-Type", contentType)

	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(img.Data); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}

func readResponse(resp *http.Response, service string) ([]byte, error) {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, apperrors.NewBackendStatusError(service, resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewTransportError(service, err)
	}
	return data, nil
}

// decodeLabel returns the prediction field. String values are unquoted;
// any other JSON value is returned as its JSON text.
func decodeLabel(data []byte) (string, error) {
	var payload struct {
		Prediction json.RawMessage `json:"prediction"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", apperrors.NewBackendDecodeError(riskService, err)
	}
	if len(payload.Prediction) == 0 || string(payload.Prediction) == "null" {
		return "", apperrors.NewBackendDecodeError(riskService, ErrMissingPrediction)
	}

	var label string
	if err := json.Unmarshal(payload.Prediction, &label); err == nil {
		return label, nil
	}
	return string(payload.Prediction), nil
}

func decodeResult(data []byte) (*PredictionResult, error) {
	var payload struct {
		Prediction  *string  `json:"prediction"`
		Probability *float64 `json:"probability"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, apperrors.NewBackendDecodeError(imageService, err)
	}
	if payload.Prediction == nil {
		return nil, apperrors.NewBackendDecodeError(imageService, ErrMissingPrediction)
	}

	result := &PredictionResult{Label: *payload.Prediction}
	if payload.Probability != nil {
		p := *payload.Probability
		if p < 0 || p > 1 {
			return nil, apperrors.NewBackendDecodeError(imageService, fmt.Errorf("%w: %v", ErrInvalidProbability, p))
		}
		result.Probability = p
	}
	return result, nil
}

func observe(span trace.Span, backend string, start time.Time, err error) {
	metrics.PredictionDuration.WithLabelValues(backend).Observe(time.Since(start).Seconds())

	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = apperrors.Classify(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		if se := apperrors.Normalize(err); se.StatusCode != 0 {
			span.SetAttributes(attribute.Int("http.response.status_code", se.StatusCode))
		}
	}
	metrics.PredictionRequests.WithLabelValues(backend, outcome).Inc()
}

func failureFields(err error, start time.Time) map[string]interface{} {
	fields := map[string]interface{}{
		"error":         err.Error(),
		"errorCategory": apperrors.Classify(err),
		"durationMs":    time.Since(start).Milliseconds(),
	}
	if se := apperrors.Normalize(err); se.StatusCode != 0 {
		fields["backendStatus"] = se.StatusCode
	}
	return fields
}
