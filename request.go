package weightd

import (
	"encoding/base64"
	"encoding/json"
	"unicode/utf8"
)

const (
	typePing        = "ping"
	typeIdentity    = "identity"
	typeWeight      = "weight"
	typeTotalWeight = "total_weight"
)

// request is one of the decoded request variants below. Anything with an
// unrecognised type decodes to unknownRequest.
type request interface {
	requestType() string
}

type (
	pingRequest     struct{}
	identityRequest struct{}

	weightRequest struct {
		Address      string
		SelectionID  string
		BalanceRound string
	}

	totalWeightRequest struct {
		BalanceRound string
		VoteRound    string
	}

	unknownRequest struct {
		Type string
	}
)

func (pingRequest) requestType() string        { return typePing }
func (identityRequest) requestType() string    { return typeIdentity }
func (weightRequest) requestType() string      { return typeWeight }
func (totalWeightRequest) requestType() string { return typeTotalWeight }
func (r unknownRequest) requestType() string   { return r.Type }

// decodeRequest parses one framed message. Required fields are checked in
// wire order so the first missing one is the one reported.
func decodeRequest(data []byte) (request, error) {
	if !utf8.Valid(data) {
		return nil, badRequest("Invalid JSON: invalid UTF-8 in request")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, badRequest("Invalid JSON: %v", err)
	}
	if fields == nil {
		return nil, badRequest("Invalid JSON: request must be an object")
	}

	typ := typeOf(fields)
	switch typ {
	case typePing:
		return pingRequest{}, nil
	case typeIdentity:
		return identityRequest{}, nil
	case typeWeight:
		var (
			r   weightRequest
			err error
		)
		if r.Address, err = requiredString(fields, "address"); err != nil {
			return nil, err
		}
		if r.SelectionID, err = requiredString(fields, "selection_id"); err != nil {
			return nil, err
		}
		if r.BalanceRound, err = requiredString(fields, "balance_round"); err != nil {
			return nil, err
		}
		return r, nil
	case typeTotalWeight:
		var (
			r   totalWeightRequest
			err error
		)
		if r.BalanceRound, err = requiredString(fields, "balance_round"); err != nil {
			return nil, err
		}
		if r.VoteRound, err = requiredString(fields, "vote_round"); err != nil {
			return nil, err
		}
		return r, nil
	default:
		return unknownRequest{Type: typ}, nil
	}
}

// typeOf returns the "type" field, or its raw JSON text when it is not a string.
func typeOf(fields map[string]json.RawMessage) string {
	raw, ok := fields["type"]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return string(raw)
	}
	return s
}

// requiredString treats absent, null and "" alike as missing.
func requiredString(fields map[string]json.RawMessage, name string) (string, error) {
	raw, ok := fields[name]
	if !ok || string(raw) == "null" {
		return "", badRequest("Missing %s field", name)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", badRequest("Invalid %s field: expected string", name)
	}
	if s == "" {
		return "", badRequest("Missing %s field", name)
	}
	return s, nil
}

func (s *server) handleRequest(req request) (interface{}, error) {
	switch r := req.(type) {
	case pingRequest:
		return pongResponse{Pong: true}, nil
	case identityRequest:
		return identityResponse{
			GenesisHash:      base64.StdEncoding.EncodeToString(s.config.GenesisHash[:]),
			ProtocolVersion:  s.config.ProtocolVersion,
			AlgorithmVersion: s.config.AlgorithmVersion,
		}, nil
	case weightRequest:
		return s.handleWeight(r), nil
	case totalWeightRequest:
		// vote_round only has to be present.
		return newTotalWeightResponse(s.store.total()), nil
	default:
		return nil, unsupported("Unknown request type: %s", req.requestType())
	}
}

func (s *server) handleWeight(r weightRequest) weightResponse {
	if s.config.DefaultWeight != nil {
		return newWeightResponse(*s.config.DefaultWeight)
	}
	return newWeightResponse(s.store.lookup(r.Address, r.SelectionID, r.BalanceRound))
}

// process turns one framed message into the response to send back.
func (s *server) process(data []byte) interface{} {
	req, err := decodeRequest(data)
	if err != nil {
		return errorToResponse(err)
	}
	s.log.WithField("type", req.requestType()).Debug("dispatching request")
	resp, err := s.handleRequest(req)
	if err != nil {
		return errorToResponse(err)
	}
	return resp
}
