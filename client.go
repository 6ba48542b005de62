package weightd

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"time"
)

const (
	// DefaultDialTimeout is the timeout for establishing a TCP connection to the daemon.
	DefaultDialTimeout = 5 * time.Second

	// DefaultQueryTimeout bounds a complete query: dial, send and receive.
	DefaultQueryTimeout = 10 * time.Second
)

// Identity is the daemon metadata returned by an identity query.
type Identity struct {
	GenesisHash      [GenesisHashSize]byte
	ProtocolVersion  string
	AlgorithmVersion string
}

// Client speaks the one-request-per-connection wire protocol to a weight daemon.
type Client struct {
	addr         string
	dialTimeout  time.Duration
	queryTimeout time.Duration
}

func NewClient(addr string) *Client {
	return &Client{
		addr:         addr,
		dialTimeout:  DefaultDialTimeout,
		queryTimeout: DefaultQueryTimeout,
	}
}

// SetTimeouts overrides the dial and query timeouts. Zero keeps the current value.
func (c *Client) SetTimeouts(dialTimeout, queryTimeout time.Duration) {
	if dialTimeout > 0 {
		c.dialTimeout = dialTimeout
	}
	if queryTimeout > 0 {
		c.queryTimeout = queryTimeout
	}
}

type typedRequest struct {
	Type         string `json:"type"`
	Address      string `json:"address,omitempty"`
	SelectionID  string `json:"selection_id,omitempty"`
	BalanceRound string `json:"balance_round,omitempty"`
	VoteRound    string `json:"vote_round,omitempty"`
}

// do sends req on a fresh connection and decodes the single-line reply into
// result. Error replies come back as *DaemonError.
func (c *Client) do(ctx context.Context, req typedRequest, result interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.queryTimeout)
	defer cancel()

	dialer := net.Dialer{Timeout: c.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return fmt.Errorf("failed to connect to weight daemon: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return fmt.Errorf("failed to set deadline: %w", err)
		}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	if _, err := conn.Write(body); err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil && len(line) == 0 {
		return fmt.Errorf("failed to read response from weight daemon: %w", err)
	}

	var errResp errorResponse
	if err := json.Unmarshal(line, &errResp); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if errResp.Error != "" {
		return &DaemonError{Code: errResp.Code, Msg: errResp.Error}
	}

	if err := json.Unmarshal(line, result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Ping checks that the daemon is reachable and answering.
func (c *Client) Ping(ctx context.Context) error {
	var resp pongResponse
	if err := c.do(ctx, typedRequest{Type: typePing}, &resp); err != nil {
		return err
	}
	if !resp.Pong {
		return fmt.Errorf("unexpected ping response: pong field is false or missing")
	}
	return nil
}

func (c *Client) Identity(ctx context.Context) (Identity, error) {
	var resp identityResponse
	if err := c.do(ctx, typedRequest{Type: typeIdentity}, &resp); err != nil {
		return Identity{}, err
	}

	if resp.GenesisHash == "" {
		return Identity{}, fmt.Errorf("identity response missing genesis_hash field")
	}
	if resp.ProtocolVersion == "" {
		return Identity{}, fmt.Errorf("identity response missing protocol_version field")
	}
	if resp.AlgorithmVersion == "" {
		return Identity{}, fmt.Errorf("identity response missing algorithm_version field")
	}

	genesis, err := base64.StdEncoding.DecodeString(resp.GenesisHash)
	if err != nil {
		return Identity{}, fmt.Errorf("invalid genesis_hash base64 encoding: %w", err)
	}
	if len(genesis) != GenesisHashSize {
		return Identity{}, fmt.Errorf("invalid genesis_hash length: expected %d bytes, got %d", GenesisHashSize, len(genesis))
	}

	id := Identity{
		ProtocolVersion:  resp.ProtocolVersion,
		AlgorithmVersion: resp.AlgorithmVersion,
	}
	copy(id.GenesisHash[:], genesis)
	return id, nil
}

func (c *Client) Weight(ctx context.Context, address, selectionID, balanceRound string) (uint64, error) {
	req := typedRequest{
		Type:         typeWeight,
		Address:      address,
		SelectionID:  selectionID,
		BalanceRound: balanceRound,
	}
	var resp weightResponse
	if err := c.do(ctx, req, &resp); err != nil {
		return 0, err
	}
	return parseDecimal("weight", resp.Weight)
}

func (c *Client) TotalWeight(ctx context.Context, balanceRound, voteRound string) (uint64, error) {
	req := typedRequest{
		Type:         typeTotalWeight,
		BalanceRound: balanceRound,
		VoteRound:    voteRound,
	}
	var resp totalWeightResponse
	if err := c.do(ctx, req, &resp); err != nil {
		return 0, err
	}
	return parseDecimal("total_weight", resp.TotalWeight)
}

func parseDecimal(field, value string) (uint64, error) {
	if value == "" {
		return 0, fmt.Errorf("%s response missing %s field", field, field)
	}
	v, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", field, value, err)
	}
	return v, nil
}
