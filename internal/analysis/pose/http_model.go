package pose

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/image/draw"

	"github.com/2beens/fitanalysis/internal/analysis"
)

const defaultInputWidth = 256

// HTTPModel is a client for a MoveNet-style pose server exposing
//
//	GET  {base}/v1/models/{name}          model status
//	POST {base}/v1/models/{name}:predict  inference
//
// Keypoints come back as [y, x, score] triplets in normalized coordinates.
type HTTPModel struct {
	baseURL    string
	name       string
	inputWidth int
	client     *http.Client

	mu      sync.RWMutex
	version string
	loaded  bool
}

func NewHTTPModel(baseURL, name string, timeout time.Duration) *HTTPModel {
	return &HTTPModel{
		baseURL:    strings.TrimRight(baseURL, "/"),
		name:       name,
		inputWidth: defaultInputWidth,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

type modelStatusResponse struct {
	ModelVersionStatus []struct {
		Version string `json:"version"`
		State   string `json:"state"`
	} `json:"model_version_status"`
}

// Load checks that the server has an available version of the model.
func (m *HTTPModel) Load(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+"/v1/models/"+m.name, nil)
	if err != nil {
		return analysis.ModelUnavailableError("invalid pose model url", err)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return analysis.ModelUnavailableError("pose model server unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return analysis.ModelUnavailableError(fmt.Sprintf("pose model status %d", resp.StatusCode), nil)
	}

	var status modelStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return analysis.ModelUnavailableError("malformed pose model status", err)
	}
	for _, s := range status.ModelVersionStatus {
		if s.State == "AVAILABLE" {
			m.mu.Lock()
			m.version = s.Version
			m.loaded = true
			m.mu.Unlock()
			return nil
		}
	}
	return analysis.ModelUnavailableError(fmt.Sprintf("pose model [%s] has no available version", m.name), nil)
}

func (m *HTTPModel) Version() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.name + "@" + m.version
}

type predictRequest struct {
	Instances []predictInstance `json:"instances"`
}

type predictInstance struct {
	B64 string `json:"b64"`
}

type predictResponse struct {
	Predictions []struct {
		Score     float64      `json:"score"`
		Keypoints [][3]float64 `json:"keypoints"`
	} `json:"predictions"`
}

func (m *HTTPModel) Infer(ctx context.Context, img image.Image) ([]Detection, error) {
	m.mu.RLock()
	loaded := m.loaded
	m.mu.RUnlock()
	if !loaded {
		return nil, analysis.ModelUnavailableError("pose model not loaded", nil)
	}

	payload, err := m.encode(img)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(predictRequest{Instances: []predictInstance{{B64: payload}}})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/v1/models/"+m.name+":predict", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pose predict: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pose predict: status %d", resp.StatusCode)
	}

	var pr predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("decode pose prediction: %w", err)
	}

	detections := make([]Detection, 0, len(pr.Predictions))
	for _, p := range pr.Predictions {
		if len(p.Keypoints) != NumJoints {
			return nil, fmt.Errorf("pose prediction has %d keypoints, want %d", len(p.Keypoints), NumJoints)
		}
		d := Detection{
			Score:     p.Score,
			Keypoints: make([]Keypoint, NumJoints),
		}
		for j, kp := range p.Keypoints {
			d.Keypoints[j] = Keypoint{
				Joint:      Joint(j),
				Y:          clampUnit(kp[0]),
				X:          clampUnit(kp[1]),
				Confidence: clampUnit(kp[2]),
			}
		}
		detections = append(detections, d)
	}
	return detections, nil
}

// encode downsizes img to the model input width and encodes it as base64 JPEG.
func (m *HTTPModel) encode(img image.Image) (string, error) {
	b := img.Bounds()
	src := img
	if b.Dx() > m.inputWidth {
		h := max(1, b.Dy()*m.inputWidth/b.Dx())
		dst := image.NewRGBA(image.Rect(0, 0, m.inputWidth, h))
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
		src = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, src, &jpeg.Options{Quality: 90}); err != nil {
		return "", fmt.Errorf("encode frame: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Close releases idle connections of the model client.
func (m *HTTPModel) Close() {
	m.client.CloseIdleConnections()
}
