package breeze

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultBaseURL is the production Breeze REST endpoint.
const DefaultBaseURL = "https://api.icicidirect.com/breezeapi/api/v1/"

// Client is an unauthenticated Breeze API client. Call GenerateSession to
// obtain a Session that can query market data.
type Client struct {
	appKey     string
	secret     string
	baseURL    string
	httpClient *http.Client
	header     http.Header
	logger     resty.Logger
	now        func() time.Time

	rest *resty.Client
}

// ClientOption is a configuration option for the Breeze client.
type ClientOption func(*Client)

// WithBaseURL sets the base URL for the API.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithHeader sets additional headers to be sent with each request.
func WithHeader(header http.Header) ClientOption {
	return func(c *Client) {
		for key, values := range header {
			for _, value := range values {
				c.header.Add(key, value)
			}
		}
	}
}

// WithLogger routes resty's own warnings to logger.
func WithLogger(logger resty.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithClock overrides the time source used to sign requests.
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient creates a Breeze client for the given app key and secret.
func NewClient(appKey, secret string, options ...ClientOption) *Client {
	c := &Client{
		appKey:     appKey,
		secret:     secret,
		baseURL:    DefaultBaseURL,
		httpClient: http.DefaultClient,
		header:     http.Header{},
		now:        time.Now,
	}
	for _, option := range options {
		option(c)
	}

	// Breeze reads request parameters from the body of GET requests.
	c.rest = resty.NewWithClient(c.httpClient).
		SetBaseURL(c.baseURL).
		SetAllowGetMethodPayload(true).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if c.logger != nil {
		c.rest.SetLogger(c.logger)
	}
	for key := range c.header {
		c.rest.SetHeader(key, c.header.Get(key))
	}
	return c
}

// Response is the decoded Breeze envelope for list-returning endpoints.
type Response struct {
	Success []map[string]any
	Status  int
	Error   string
}

type envelope struct {
	Success json.RawMessage `json:"Success"`
	Status  int             `json:"Status"`
	Error   any             `json:"Error"`
}

type customerDetails struct {
	SessionToken string `json:"session_token"`
}

// QuoteRequest is the body shared by the quotes and option-chain endpoints.
type QuoteRequest struct {
	StockCode    string `json:"stock_code"`
	ExchangeCode string `json:"exchange_code"`
	ExpiryDate   string `json:"expiry_date"`
	ProductType  string `json:"product_type"`
	Right        string `json:"right"`
	StrikePrice  string `json:"strike_price"`
}

// GenerateSession exchanges the daily session token for an API session.
func (c *Client) GenerateSession(ctx context.Context, sessionToken string) (*Session, error) {
	switch {
	case c.appKey == "":
		return nil, errors.New("breeze: app key is empty")
	case c.secret == "":
		return nil, errors.New("breeze: app secret is empty")
	case sessionToken == "":
		return nil, errors.New("breeze: session token is empty")
	}

	body, err := json.Marshal(map[string]string{"SessionToken": sessionToken, "AppKey": c.appKey})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	env, err := c.do(ctx, "customerdetails", body, nil)
	if err != nil {
		return nil, err
	}
	if isNull(env.Success) {
		return nil, fmt.Errorf("breeze: customer details: %s", errorText(env.Error, "empty response"))
	}
	var details customerDetails
	if err := json.Unmarshal(env.Success, &details); err != nil {
		return nil, fmt.Errorf("decoding customer details: %w", err)
	}

	raw, err := base64.StdEncoding.DecodeString(details.SessionToken)
	if err != nil {
		return nil, fmt.Errorf("breeze: malformed session token: %w", err)
	}
	userID, sessionKey, ok := strings.Cut(string(raw), ":")
	if !ok || userID == "" || sessionKey == "" {
		return nil, errors.New("breeze: malformed session token")
	}

	return &Session{
		client: c,
		userID: userID,
		token:  base64.StdEncoding.EncodeToString([]byte(userID + ":" + sessionKey)),
	}, nil
}

// do sends a GET with a JSON body and decodes the Breeze envelope. headers
// may be nil for unsigned endpoints.
func (c *Client) do(ctx context.Context, path string, body []byte, headers map[string]string) (*envelope, error) {
	res, err := c.rest.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetBody(body).
		Get(path)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}

	var env envelope
	decodeErr := decodeJSON(res.Body(), &env)

	if !res.IsSuccess() {
		if decodeErr == nil {
			if msg := errorText(env.Error, ""); msg != "" {
				return nil, fmt.Errorf("GET %s -> %d: %s", path, res.StatusCode(), msg)
			}
		}
		return nil, fmt.Errorf("GET %s -> %d: %s", path, res.StatusCode(), truncate(res.String(), 256))
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decoding response: %w", decodeErr)
	}
	return &env, nil
}

// sign builds the checksum headers Breeze requires on authenticated calls.
func (c *Client) sign(body []byte, sessionToken string) map[string]string {
	ts := c.now().UTC().Format("2006-01-02T15:04:05") + ".000Z"
	sum := sha256.Sum256([]byte(ts + string(body) + c.secret))
	return map[string]string{
		"X-Checksum":     "token " + hex.EncodeToString(sum[:]),
		"X-Timestamp":    ts,
		"X-AppKey":       c.appKey,
		"X-SessionToken": sessionToken,
	}
}

// decodeJSON keeps numbers as json.Number so prices are not rounded through
// float64 before normalization.
func decodeJSON(b []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	return dec.Decode(v)
}

func isNull(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s == "" || s == "null"
}

// errorText flattens the Error field, which Breeze sends as a string, null
// or occasionally an object.
func errorText(v any, fallback string) string {
	switch e := v.(type) {
	case nil:
		return fallback
	case string:
		if strings.TrimSpace(e) == "" {
			return fallback
		}
		return e
	default:
		b, err := json.Marshal(e)
		if err != nil {
			return fmt.Sprint(e)
		}
		return string(b)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
