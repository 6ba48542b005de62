package weightd

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
)

type pongResponse struct {
	Pong bool `json:"pong"`
}

type identityResponse struct {
	GenesisHash      string `json:"genesis_hash"`
	ProtocolVersion  string `json:"protocol_version"`
	AlgorithmVersion string `json:"algorithm_version"`
}

// Weights are decimal strings on the wire, never JSON numbers.
type weightResponse struct {
	Weight string `json:"weight"`
}

type totalWeightResponse struct {
	TotalWeight string `json:"total_weight"`
}

type errorResponse struct {
	Error string    `json:"error"`
	Code  ErrorCode `json:"code"`
}

func newWeightResponse(w uint64) weightResponse {
	return weightResponse{Weight: strconv.FormatUint(w, 10)}
}

func newTotalWeightResponse(w uint64) totalWeightResponse {
	return totalWeightResponse{TotalWeight: strconv.FormatUint(w, 10)}
}

// errorToResponse maps a DaemonError onto its wire form. Anything else is
// reported as an internal error.
func errorToResponse(err error) errorResponse {
	var de *DaemonError
	if errors.As(err, &de) {
		return errorResponse{Error: de.Msg, Code: de.Code}
	}
	return errorResponse{Error: err.Error(), Code: CodeInternal}
}

// encodeResponse renders resp as a single JSON line.
func encodeResponse(resp interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(resp); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
