package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"socdash/dashboard/services/monitor/internal/models"
)

// BatteryClient talks to the SoC training/prediction backend.
type BatteryClient struct {
	base   *BaseClient
	logger *zap.Logger
}

// NewBatteryClient returns client.
func NewBatteryClient(baseURL string, httpClient HTTPDoer, logger *zap.Logger) *BatteryClient {
	return &BatteryClient{
		base:   NewBaseClient(baseURL, httpClient),
		logger: logger,
	}
}

// Upload sends a CSV file as multipart field "file".
func (c *BatteryClient) Upload(ctx context.Context, filename string, r io.Reader) (*models.UploadResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("upload: read file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var out models.UploadResult
	req := Request{Op: "upload", Method: http.MethodPost, Path: "/upload", Body: buf.Bytes(), ContentType: mw.FormDataContentType()}
	if err := c.exchange(ctx, req, &out, &out.Error); err != nil {
		return nil, err
	}
	return &out, nil
}

// Train asks the backend to fit a model on a previously uploaded file.
func (c *BatteryClient) Train(ctx context.Context, req models.TrainRequest) (*models.TrainResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	var out models.TrainResult
	if err := c.exchange(ctx, Request{Op: "train", Method: http.MethodPost, Path: "/train", Body: body}, &out, &out.Error); err != nil {
		return nil, err
	}
	return &out, nil
}

// Predict requests SoC and remaining time for a reading.
func (c *BatteryClient) Predict(ctx context.Context, req models.PredictRequest) (*models.PredictResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	var out models.PredictResult
	if err := c.exchange(ctx, Request{Op: "predict", Method: http.MethodPost, Path: "/predict", Body: body}, &out, &out.Error); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetData fetches the latest live reading.
func (c *BatteryClient) GetData(ctx context.Context) (*models.LiveData, error) {
	var out models.LiveData
	if err := c.exchange(ctx, Request{Op: "get_data", Method: http.MethodGet, Path: "/get_data"}, &out, &out.Error); err != nil {
		return nil, err
	}
	return &out, nil
}

// LiveCurveData fetches the predicted SoC curve for the live chart.
func (c *BatteryClient) LiveCurveData(ctx context.Context) (*models.LiveCurve, error) {
	var out models.LiveCurve
	if err := c.exchange(ctx, Request{Op: "live_curve_data", Method: http.MethodGet, Path: "/live_curve_data"}, &out, &out.Error); err != nil {
		return nil, err
	}
	return &out, nil
}

// ToggleGeneration starts or stops backend-side recording.
func (c *BatteryClient) ToggleGeneration(ctx context.Context, minV float64) (*models.RecordingStatus, error) {
	body, err := json.Marshal(models.ToggleRequest{MinV: minV})
	if err != nil {
		return nil, err
	}
	var out models.RecordingStatus
	if err := c.exchange(ctx, Request{Op: "toggle_gen", Method: http.MethodPost, Path: "/toggle_gen", Body: body}, &out, &out.Error); err != nil {
		return nil, err
	}
	return &out, nil
}

// exchange runs one request and decodes the JSON answer into out. errField points at out's
// "error" member so an application error can be told apart from a normal payload.
func (c *BatteryClient) exchange(ctx context.Context, req Request, out interface{}, errField *string) error {
	resp, err := c.base.Send(ctx, req)
	if err != nil {
		c.logger.Debug("backend request failed", zap.String("op", req.Op), zap.Error(err))
		return err
	}

	decodeErr := json.Unmarshal(resp.Body, out)
	if decodeErr == nil && strings.TrimSpace(*errField) != "" {
		return &ApplicationError{Op: req.Op, Status: resp.Status, Message: *errField}
	}
	if resp.Status < 200 || resp.Status >= 300 {
		return &ApplicationError{Op: req.Op, Status: resp.Status, Message: statusMessage(resp.Status, resp.Body)}
	}
	if decodeErr != nil {
		return &NetworkError{Op: req.Op, Err: fmt.Errorf("decode response: %w", decodeErr)}
	}
	return nil
}

func statusMessage(status int, body []byte) string {
	text := strings.TrimSpace(string(body))
	if text == "" || len(text) > 200 {
		return http.StatusText(status)
	}
	return text
}
