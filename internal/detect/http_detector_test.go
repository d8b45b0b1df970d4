package detect

import (
	"context"
	"image"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/LdDl/headcount/mot"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestParseResponseShapes(t *testing.T) {
	payload := []byte(`{"boxes": [
		{"cls": 0, "conf": 0.9, "xyxy": [1, 2, 3, 4]},
		{"cls": [0], "conf": [0.8], "xyxy": [[5, 6, 7, 8]]}
	]}`)
	raws, err := ParseResponse(payload)
	require.NoError(t, err)
	require.Len(t, raws, 2)

	for i, want := range []mot.BoundingBox{
		mot.NewBoundingBox(1, 2, 3, 4, 0.9),
		mot.NewBoundingBox(5, 6, 7, 8, 0.8),
	} {
		box, err := Normalize(raws[i])
		require.NoError(t, err)
		assert.Equal(t, want, box)
	}
}

func TestParseResponseMalformed(t *testing.T) {
	for name, payload := range map[string]string{
		"not json":       `{"boxes": [`,
		"no boxes":       `{"detections": []}`,
		"boxes object":   `{"boxes": {}}`,
		"string conf":    `{"boxes": [{"cls": 0, "conf": "high", "xyxy": [1, 2, 3, 4]}]}`,
		"two classes":    `{"boxes": [{"cls": [0, 1], "conf": 0.5, "xyxy": [1, 2, 3, 4]}]}`,
		"string coords":  `{"boxes": [{"cls": 0, "conf": 0.5, "xyxy": ["1", 2, 3, 4]}]}`,
		"missing coords": `{"boxes": [{"cls": 0, "conf": 0.5}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseResponse([]byte(payload))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedDetection))
		})
	}
}

func TestParseResponseEmpty(t *testing.T) {
	raws, err := ParseResponse([]byte(`{"boxes": []}`))
	require.NoError(t, err)
	assert.Empty(t, raws)
}

func TestHTTPDetector(t *testing.T) {
	var request []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		request, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"boxes": [
			{"cls": 0, "conf": 0.91, "xyxy": [10, 10, 50, 90]},
			{"cls": 56, "conf": 0.99, "xyxy": [0, 0, 5, 5]},
			{"cls": 0, "conf": 0.1, "xyxy": [60, 10, 80, 90]}
		]}`)
	}))
	defer server.Close()

	detector := NewHTTPDetector(server.URL, 0, 0.35, 640).WithClient(server.Client())
	boxes, err := detector.Detect(context.Background(), image.NewRGBA(image.Rect(0, 0, 8, 8)))
	require.NoError(t, err)
	assert.Equal(t, []mot.BoundingBox{mot.NewBoundingBox(10, 10, 50, 90, 0.91)}, boxes)

	assert.NotEmpty(t, gjson.GetBytes(request, "image").String())
	assert.Equal(t, 0.35, gjson.GetBytes(request, "conf").Float())
	assert.Equal(t, int64(640), gjson.GetBytes(request, "imgsz").Int())
	assert.Equal(t, `[0]`, gjson.GetBytes(request, "classes").Raw)
}

func TestHTTPDetectorServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, `{"error": "model not loaded"}`)
	}))
	defer server.Close()

	detector := NewHTTPDetector(server.URL, 0, 0.35, 640)
	_, err := detector.Detect(context.Background(), image.NewRGBA(image.Rect(0, 0, 8, 8)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not loaded")
}

func TestParsedContainerShapesFailFrame(t *testing.T) {
	for name, payload := range map[string]string{
		"two rows":     `{"boxes": [{"cls": 0, "conf": 0.5, "xyxy": [[1, 2, 3, 4], [50, 60, 70, 80]]}]}`,
		"split rows":   `{"boxes": [{"cls": 0, "conf": 0.5, "xyxy": [[1, 2], [3, 4]]}]}`,
		"five values":  `{"boxes": [{"cls": 0, "conf": 0.5, "xyxy": [[1, 2, 3, 4, 99]]}]}`,
		"flat and row": `{"boxes": [{"cls": 0, "conf": 0.5, "xyxy": [1, 2, 3, 4, [5, 6, 7, 8]]}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			raws, err := ParseResponse([]byte(payload))
			require.NoError(t, err)
			_, err = FilterClass(raws, 0, 0.1)
			assert.ErrorIs(t, err, ErrMalformedDetection)
		})
	}
}
