package breeze

import (
	"context"
	"encoding/json"
	"fmt"
)

// Session is an authenticated Breeze session. It is safe for concurrent use.
type Session struct {
	client *Client
	userID string
	token  string
}

// UserID is the ICICI Direct user the session belongs to.
func (s *Session) UserID() string { return s.userID }

// GetQuotes returns the latest quote rows for one instrument.
func (s *Session) GetQuotes(ctx context.Context, req QuoteRequest) (*Response, error) {
	return s.list(ctx, "quotes", req)
}

// GetOptionChainQuotes returns option-chain rows. Leave ExpiryDate empty for
// the nearest expiry, StrikePrice empty for all strikes and set Right to
// "others" for both calls and puts.
func (s *Session) GetOptionChainQuotes(ctx context.Context, req QuoteRequest) (*Response, error) {
	return s.list(ctx, "OptionChain", req)
}

func (s *Session) list(ctx context.Context, path string, req QuoteRequest) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	env, err := s.client.do(ctx, path, body, s.client.sign(body, s.token))
	if err != nil {
		return nil, err
	}

	out := &Response{Status: env.Status, Error: errorText(env.Error, "")}
	if isNull(env.Success) {
		return out, nil
	}
	if err := decodeJSON(env.Success, &out.Success); err != nil {
		return nil, fmt.Errorf("decoding %s rows: %w", path, err)
	}
	return out, nil
}
