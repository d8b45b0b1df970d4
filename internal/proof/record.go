package proof

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Record is persisted metadata of a proof frame. Field names are a contract with consumers
type Record struct {
	ProofImageName        string  `json:"proof_image_name"`
	FrameIndex            int     `json:"frame_index"`
	DetectedInProofFrame  int     `json:"detected_persons_in_proof_frame"`
	CountsPerFrame        []int   `json:"counts_per_frame"`
	UniqueTrackedIDsCount int     `json:"unique_tracked_ids_count"`
	RobustCount           int     `json:"robust_count"`
	SecondsProcessed      float64 `json:"seconds_processed"`
	FPSUsed               float64 `json:"fps_used"`
	StartTimeSec          float64 `json:"start_time_sec"`
}

// FileName returns proof image name, e.g. proof_persons_idx12_count3_1700000000_<session id>.png.
// Session id keeps names of concurrent sessions over the same source apart.
func FileName(label string, frameIndex, count int, ts time.Time, sessionID uuid.UUID) string {
	return fmt.Sprintf("proof_%s_idx%d_count%d_%d_%s.png", sanitizeLabel(label), frameIndex, count, ts.Unix(), sessionID)
}

// SidecarName returns name of the JSON metadata file stored next to the proof image
func SidecarName(imageName string) string {
	return strings.TrimSuffix(imageName, ".png") + ".json"
}

// Encode writes indented JSON representation of the record
func (r *Record) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return errors.Wrap(err, "can't encode proof record")
	}
	return nil
}

// DecodeRecord reads record written by Encode
func DecodeRecord(r io.Reader) (*Record, error) {
	var record Record
	if err := json.NewDecoder(r).Decode(&record); err != nil {
		return nil, errors.Wrap(err, "can't decode proof record")
	}
	return &record, nil
}

func sanitizeLabel(label string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			return r
		}
		return '_'
	}, label)
}
