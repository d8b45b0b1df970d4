package detect

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/png"
	"io"
	"net/http"
	"time"

	"github.com/LdDl/headcount/mot"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// HTTPDetector delegates inference to an external service.
//
// Request body: {"image": "<base64 png>", "conf": 0.35, "imgsz": 640, "classes": [0]}.
// Response body: {"boxes": [{"cls": 0, "conf": 0.91, "xyxy": [x1, y1, x2, y2]}, ...]}.
// Services built on different inference runtimes wrap numbers differently, so "cls", "conf" and
// "xyxy" are accepted both as scalars/flat arrays and as one-element nested arrays.
type HTTPDetector struct {
	url           string
	client        *http.Client
	classID       int
	confThreshold float64
	imgSize       int
}

// NewHTTPDetector creates detector for the given service URL
func NewHTTPDetector(url string, classID int, confThreshold float64, imgSize int) *HTTPDetector {
	return &HTTPDetector{
		url:           url,
		client:        &http.Client{Timeout: 30 * time.Second},
		classID:       classID,
		confThreshold: confThreshold,
		imgSize:       imgSize,
	}
}

// WithClient replaces underlying HTTP client
func (d *HTTPDetector) WithClient(client *http.Client) *HTTPDetector {
	d.client = client
	return d
}

// Detect sends frame to the service and converts response into boxes
func (d *HTTPDetector) Detect(ctx context.Context, raster image.Image) ([]mot.BoundingBox, error) {
	body, err := d.requestBody(raster)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "can't build inference request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "inference request failed")
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "can't read inference response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("inference service returned %d: %s", resp.StatusCode, gjson.GetBytes(payload, "error").String())
	}
	raws, err := ParseResponse(payload)
	if err != nil {
		return nil, err
	}
	return FilterClass(raws, d.classID, d.confThreshold)
}

func (d *HTTPDetector) requestBody(raster image.Image) ([]byte, error) {
	var encoded bytes.Buffer
	if err := png.Encode(&encoded, raster); err != nil {
		return nil, errors.Wrap(err, "can't encode frame")
	}
	body := []byte(`{}`)
	var err error
	body, err = sjson.SetBytes(body, "image", base64.StdEncoding.EncodeToString(encoded.Bytes()))
	if err != nil {
		return nil, errors.Wrap(err, "can't set image")
	}
	body, err = sjson.SetBytes(body, "conf", d.confThreshold)
	if err != nil {
		return nil, errors.Wrap(err, "can't set conf")
	}
	body, err = sjson.SetBytes(body, "imgsz", d.imgSize)
	if err != nil {
		return nil, errors.Wrap(err, "can't set imgsz")
	}
	body, err = sjson.SetBytes(body, "classes", []int{d.classID})
	if err != nil {
		return nil, errors.Wrap(err, "can't set classes")
	}
	return body, nil
}

// ParseResponse extracts raw detections from inference service response
func ParseResponse(payload []byte) ([]RawDetection, error) {
	if !gjson.ValidBytes(payload) {
		return nil, errors.Wrap(ErrMalformedDetection, "response is not valid JSON")
	}
	boxes := gjson.GetBytes(payload, "boxes")
	if !boxes.Exists() {
		return nil, errors.Wrap(ErrMalformedDetection, `response has no "boxes" field`)
	}
	if !boxes.IsArray() {
		return nil, errors.Wrap(ErrMalformedDetection, `"boxes" is not an array`)
	}
	items := boxes.Array()
	raws := make([]RawDetection, 0, len(items))
	for i, item := range items {
		cls, err := scalar(item.Get("cls"))
		if err != nil {
			return nil, errors.Wrapf(err, "box %d: cls", i)
		}
		conf, err := scalar(item.Get("conf"))
		if err != nil {
			return nil, errors.Wrapf(err, "box %d: conf", i)
		}
		xyxy, err := coordinates(item.Get("xyxy"))
		if err != nil {
			return nil, errors.Wrapf(err, "box %d: xyxy", i)
		}
		raws = append(raws, RawDetection{
			Class:      int(cls),
			XYXY:       xyxy,
			Confidence: conf,
		})
	}
	return raws, nil
}

// scalar accepts 0.5 or [0.5]
func scalar(value gjson.Result) (float64, error) {
	if value.IsArray() {
		items := value.Array()
		if len(items) != 1 {
			return 0, errors.Wrapf(ErrMalformedDetection, "expected one element, got %d", len(items))
		}
		value = items[0]
	}
	if value.Type != gjson.Number {
		return 0, errors.Wrapf(ErrMalformedDetection, "expected number, got %q", value.Raw)
	}
	return value.Float(), nil
}

// coordinates accepts [x1, y1, x2, y2] or [[x1, y1, x2, y2]]
func coordinates(value gjson.Result) ([][]float64, error) {
	if !value.IsArray() {
		return nil, errors.Wrapf(ErrMalformedDetection, "expected array, got %q", value.Raw)
	}
	var flat []float64
	var nested [][]float64
	for _, item := range value.Array() {
		switch {
		case item.IsArray():
			row := make([]float64, 0, 4)
			for _, v := range item.Array() {
				if v.Type != gjson.Number {
					return nil, errors.Wrapf(ErrMalformedDetection, "expected number, got %q", v.Raw)
				}
				row = append(row, v.Float())
			}
			nested = append(nested, row)
		case item.Type == gjson.Number:
			flat = append(flat, item.Float())
		default:
			return nil, errors.Wrapf(ErrMalformedDetection, "expected number, got %q", item.Raw)
		}
	}
	if len(flat) > 0 {
		nested = append([][]float64{flat}, nested...)
	}
	return nested, nil
}
