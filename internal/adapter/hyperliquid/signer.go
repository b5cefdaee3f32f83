// Package hyperliquid implements the reference exchange adapter (C8):
// the signed-action batcher, nonce manager, asset resolver, and client
// for the Hyperliquid venue. Orders, cancels and queries go over REST;
// the WebSocket connection carries only the userEvents subscription
// (fills and order updates), and no order is submitted over it.
//
// Signer implements the external NDJSON signer collaborator protocol
// from spec.md §6: requests carry
// {id, private_key, action, vault_address?, nonce, expires_after?, is_mainnet},
// responses carry {id, r, s, v} or {id, error}, correlated by integer id.
// This process holds the API secret it is configured with and forwards
// it as private_key in every request; computing the signature is
// delegated entirely to the external collaborator, consistent with
// spec.md §1 treating cryptographic signing as a black-box signer service. action carries
// the base64 encoding of the action's msgpack serialization, the exact
// bytes Hyperliquid's phantom-agent hash is taken over — computed here
// with vmihailenco/msgpack/v5 rather than left for the signer to
// re-derive from JSON, so the hashed bytes can never drift from what
// this process believes it sent.
package hyperliquid

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
)

// SignRequest is one outbound NDJSON request line. Action is base64 of
// the msgpack-serialized action.
type SignRequest struct {
	ID           int64  `json:"id"`
	PrivateKey   string `json:"private_key"`
	Action       string `json:"action"`
	VaultAddress string `json:"vault_address,omitempty"`
	Nonce        int64  `json:"nonce"`
	ExpiresAfter *int64 `json:"expires_after,omitempty"`
	IsMainnet    bool   `json:"is_mainnet"`
}

// SignResponse is one inbound NDJSON response line.
type SignResponse struct {
	ID    int64  `json:"id"`
	R     string `json:"r"`
	S     string `json:"s"`
	V     int    `json:"v"`
	Error string `json:"error,omitempty"`
}

// Signer exchanges NDJSON lines with an external signer subprocess over
// stdio, correlating concurrent requests by integer id. Safe for
// concurrent use by multiple callers.
type Signer struct {
	mu      sync.Mutex
	encoder *json.Encoder
	pending map[int64]chan SignResponse
	nextID  atomic.Int64
	logger  *slog.Logger
}

// NewSigner wraps stdin/stdout of an already-started signer subprocess.
// It starts a background goroutine reading NDJSON responses from stdout
// until it returns EOF or an error.
func NewSigner(stdin io.Writer, stdout io.Reader, logger *slog.Logger) *Signer {
	s := &Signer{
		encoder: json.NewEncoder(stdin),
		pending: make(map[int64]chan SignResponse),
		logger:  logger,
	}
	go s.readLoop(stdout)
	return s
}

func (s *Signer) readLoop(stdout io.Reader) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var resp SignResponse
		if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
			s.logger.Warn("hyperliquid: malformed signer response", "err", err)
			continue
		}
		s.deliver(resp)
	}
	if err := scanner.Err(); err != nil {
		s.logger.Warn("hyperliquid: signer stdout closed", "err", err)
	}
}

func (s *Signer) deliver(resp SignResponse) {
	s.mu.Lock()
	ch, ok := s.pending[resp.ID]
	if ok {
		delete(s.pending, resp.ID)
	}
	s.mu.Unlock()
	if ok {
		ch <- resp
	}
}

// Sign requests a signature over the msgpack-serialized actionBytes at
// nonce, blocking until the subprocess responds or ctx is canceled.
func (s *Signer) Sign(ctx context.Context, privateKey string, actionBytes []byte, nonce int64, vaultAddress string, isMainnet bool) (SignResponse, error) {
	id := s.nextID.Add(1)
	ch := make(chan SignResponse, 1)

	s.mu.Lock()
	s.pending[id] = ch
	err := s.encoder.Encode(SignRequest{
		ID:           id,
		PrivateKey:   privateKey,
		Action:       base64.StdEncoding.EncodeToString(actionBytes),
		VaultAddress: vaultAddress,
		Nonce:        nonce,
		IsMainnet:    isMainnet,
	})
	s.mu.Unlock()
	if err != nil {
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
		return SignResponse{}, fmt.Errorf("hyperliquid: write sign request: %w", err)
	}

	select {
	case resp := <-ch:
		if resp.Error != "" {
			return SignResponse{}, errors.New(resp.Error)
		}
		return resp, nil
	case <-ctx.Done():
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
		return SignResponse{}, ctx.Err()
	}
}
