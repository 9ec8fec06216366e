package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"
)

// ErrBadInput marks a model-service rejection of the payload itself (4xx or
// unparseable response). Callers treat the triggering message as poison.
var ErrBadInput = errors.New("model service rejected input")

// Landmark is one facial keypoint in absolute pixel coordinates.
type Landmark struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Box is an absolute-pixel bounding box.
type Box struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Detection is one face candidate returned by the detector service.
type Detection struct {
	Box        Box       `json:"box"`
	Confidence float64   `json:"confidence"`
	LeftEye    *Landmark `json:"left_eye"`
	RightEye   *Landmark `json:"right_eye"`
}

type detectResponse struct {
	Detections []Detection `json:"detections"`
}

// DetectorClient calls the external face detection service.
type DetectorClient struct {
	baseURL        string
	minConfidence  float64
	modelSelection int
	httpClient     *http.Client
}

// NewDetectorClient builds a client for the detector at baseURL.
func NewDetectorClient(baseURL string, minConfidence float64, modelSelection int) *DetectorClient {
	return &DetectorClient{
		baseURL:        baseURL,
		minConfidence:  minConfidence,
		modelSelection: modelSelection,
		httpClient:     &http.Client{Timeout: 60 * time.Second},
	}
}

// Detect posts the frame bytes and returns the face candidates.
// POST {base}/detect?min_confidence=..&model_selection=..
func (c *DetectorClient) Detect(ctx context.Context, imageBytes []byte) ([]Detection, error) {
	url := fmt.Sprintf("%s/detect?min_confidence=%s&model_selection=%d",
		c.baseURL, strconv.FormatFloat(c.minConfidence, 'f', -1, 64), c.modelSelection)

	respBody, err := postImage(ctx, c.httpClient, url, imageBytes, nil)
	if err != nil {
		return nil, err
	}

	var out detectResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("%w: parse detector response: %v", ErrBadInput, err)
	}
	return out.Detections, nil
}

// postImage uploads imageBytes as a multipart "file" field plus optional
// extra form fields, returning the response body on 200. 4xx maps to
// ErrBadInput, anything else to a transient error.
func postImage(ctx context.Context, client *http.Client, url string, imageBytes []byte, fields map[string]string) ([]byte, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "image.png")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(imageBytes); err != nil {
		return nil, fmt.Errorf("write image data: %w", err)
	}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("write field %q: %w", k, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return respBody, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, fmt.Errorf("%w: %d: %s", ErrBadInput, resp.StatusCode, string(respBody))
	default:
		return nil, fmt.Errorf("model service error %d: %s", resp.StatusCode, string(respBody))
	}
}
