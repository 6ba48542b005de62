package weightd

import (
	"errors"
	"io"
	"strings"
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

func newTestServer(cfg Config) *server {
	logger, _ := logtest.NewNullLogger()
	cfg.Logger = logger
	return NewServer(cfg).(*server)
}

func TestDecodeRequest(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    request
		code    ErrorCode
		message string
	}{
		{name: "ping", input: `{"type":"ping"}`, want: pingRequest{}},
		{name: "identity ignores extra fields", input: `{"type":"identity","x":1}`, want: identityRequest{}},
		{
			name:  "weight",
			input: `{"type":"weight","address":"A","selection_id":"s","balance_round":"1"}`,
			want:  weightRequest{Address: "A", SelectionID: "s", BalanceRound: "1"},
		},
		{
			name:  "total weight",
			input: `{"type":"total_weight","balance_round":"1","vote_round":"2"}`,
			want:  totalWeightRequest{BalanceRound: "1", VoteRound: "2"},
		},
		{name: "unknown", input: `{"type":"bogus"}`, want: unknownRequest{Type: "bogus"}},
		{name: "missing type", input: `{"address":"A"}`, want: unknownRequest{Type: ""}},
		{name: "non-string type", input: `{"type":5}`, want: unknownRequest{Type: "5"}},
		{
			name:    "address checked first",
			input:   `{"type":"weight","balance_round":"1"}`,
			code:    CodeBadRequest,
			message: "Missing address field",
		},
		{
			name:    "null counts as missing",
			input:   `{"type":"weight","address":"A","selection_id":null,"balance_round":"1"}`,
			code:    CodeBadRequest,
			message: "Missing selection_id field",
		},
		{
			name:    "non-string field",
			input:   `{"type":"weight","address":"A","selection_id":"s","balance_round":1}`,
			code:    CodeBadRequest,
			message: "Invalid balance_round field: expected string",
		},
		{
			name:    "vote round required",
			input:   `{"type":"total_weight","balance_round":"1","vote_round":""}`,
			code:    CodeBadRequest,
			message: "Missing vote_round field",
		},
		{
			name:    "null body",
			input:   `null`,
			code:    CodeBadRequest,
			message: "Invalid JSON: request must be an object",
		},
		{
			name:    "invalid utf-8",
			input:   "{\"type\":\"\xc3\x28\"}",
			code:    CodeBadRequest,
			message: "Invalid JSON: invalid UTF-8 in request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := decodeRequest([]byte(tt.input))
			if tt.code == "" {
				require.NoError(t, err)
				require.Equal(t, tt.want, req)
				return
			}
			require.True(t, IsDaemonError(err, tt.code), "got %v", err)
			require.Equal(t, tt.message, err.(*DaemonError).Msg)
		})
	}
}

func TestProcess(t *testing.T) {
	override := uint64(3)
	s := newTestServer(Config{TotalWeight: 9})
	withOverride := newTestServer(Config{DefaultWeight: &override})
	override = 4 // config is copied

	require.Equal(t, pongResponse{Pong: true}, s.process([]byte(`{"type":"ping"}`)))
	require.Equal(t, weightResponse{Weight: "180"},
		s.process([]byte(`{"type":"weight","address":"ZZ","selection_id":"x","balance_round":"5"}`)))
	require.Equal(t, weightResponse{Weight: "3"},
		withOverride.process([]byte(`{"type":"weight","address":"ZZ","selection_id":"x","balance_round":"5"}`)))
	require.Equal(t, totalWeightResponse{TotalWeight: "9"},
		s.process([]byte(`{"type":"total_weight","balance_round":"1","vote_round":"2"}`)))
	require.Equal(t, errorResponse{Error: "Unknown request type: bogus", Code: CodeUnsupported},
		s.process([]byte(`{"type":"bogus"}`)))

	resp, ok := s.process([]byte(`{"type":"ping"`)).(errorResponse)
	require.True(t, ok)
	require.Equal(t, CodeBadRequest, resp.Code)
	require.True(t, strings.HasPrefix(resp.Error, "Invalid JSON: "))
}

func TestErrorToResponse(t *testing.T) {
	require.Equal(t, errorResponse{Error: "boom", Code: CodeInternal}, errorToResponse(errors.New("boom")))
	require.Equal(t, errorResponse{Error: "gone", Code: CodeNotFound},
		errorToResponse(&DaemonError{Code: CodeNotFound, Msg: "gone"}))
}

func TestEncodeResponse(t *testing.T) {
	out, err := encodeResponse(errorResponse{Error: "Unknown request type: <b>&", Code: CodeUnsupported})
	require.NoError(t, err)
	require.Equal(t, `{"error":"Unknown request type: <b>&","code":"unsupported"}`+"\n", string(out))
}

func TestReadMessage(t *testing.T) {
	t.Run("stops at first brace across reads", func(t *testing.T) {
		r := io.MultiReader(
			strings.NewReader(`{"type":`),
			strings.NewReader(`"ping"}`),
			strings.NewReader(`never read`),
		)
		data, err := readMessage(r)
		require.NoError(t, err)
		require.Equal(t, `{"type":"ping"}`, string(data))
	})

	t.Run("reads to EOF without brace", func(t *testing.T) {
		data, err := readMessage(strings.NewReader(`not json`))
		require.NoError(t, err)
		require.Equal(t, `not json`, string(data))
	})

	t.Run("empty", func(t *testing.T) {
		data, err := readMessage(strings.NewReader(""))
		require.NoError(t, err)
		require.Empty(t, data)
	})

	t.Run("brace inside a string value truncates", func(t *testing.T) {
		r := io.MultiReader(
			strings.NewReader(`{"type":"weight","address":"a}`),
			strings.NewReader(`b","selection_id":"s","balance_round":"1"}`),
		)
		data, err := readMessage(r)
		require.NoError(t, err)
		require.Equal(t, `{"type":"weight","address":"a}`, string(data))

		_, err = decodeRequest(data)
		require.True(t, IsDaemonError(err, CodeBadRequest))
	})

	t.Run("read error", func(t *testing.T) {
		r := io.MultiReader(strings.NewReader(`{"type"`), errReader{})
		_, err := readMessage(r)
		require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	})
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }
