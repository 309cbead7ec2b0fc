package breeze_test

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"breezerelay/internal/breeze"
)

var fixedNow = time.Date(2025, 6, 20, 9, 15, 30, 123000000, time.UTC)

// fakeBreeze serves customerdetails plus one signed endpoint backed by handler.
func fakeBreeze(t *testing.T, signed func(w http.ResponseWriter, r *http.Request, body []byte)) *httptest.Server {
	t.Helper()
	sessionToken := base64.StdEncoding.EncodeToString([]byte("USER1:session-key"))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		switch r.URL.Path {
		case "/customerdetails":
			var in map[string]string
			require.NoError(t, json.Unmarshal(body, &in))
			if in["SessionToken"] != "daily-token" {
				_, _ = io.WriteString(w, `{"Success":null,"Status":500,"Error":"Session key is expired."}`)
				return
			}
			require.Equal(t, "app-key", in["AppKey"])
			_ = json.NewEncoder(w).Encode(map[string]any{
				"Success": map[string]any{"session_token": sessionToken, "idirect_userid": "USER1"},
				"Status":  200,
				"Error":   nil,
			})
		default:
			signed(w, r, body)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newSession(t *testing.T, srv *httptest.Server) *breeze.Session {
	t.Helper()
	client := breeze.NewClient("app-key", "app-secret",
		breeze.WithBaseURL(srv.URL),
		breeze.WithHTTPClient(srv.Client()),
		breeze.WithClock(func() time.Time { return fixedNow }),
	)
	sess, err := client.GenerateSession(t.Context(), "daily-token")
	require.NoError(t, err)
	return sess
}

func TestGenerateSession(t *testing.T) {
	t.Parallel()

	// Arrange
	srv := fakeBreeze(t, nil)
	client := breeze.NewClient("app-key", "app-secret", breeze.WithBaseURL(srv.URL))

	// Act
	sess, err := client.GenerateSession(t.Context(), "daily-token")

	// Assert
	require.NoError(t, err)
	require.Equal(t, "USER1", sess.UserID())
}

func TestGenerateSession_VendorRejects(t *testing.T) {
	t.Parallel()

	srv := fakeBreeze(t, nil)
	client := breeze.NewClient("app-key", "app-secret", breeze.WithBaseURL(srv.URL))

	sess, err := client.GenerateSession(t.Context(), "stale-token")

	require.Nil(t, sess)
	require.ErrorContains(t, err, "Session key is expired.")
}

func TestGenerateSession_MissingCredentialsSkipsNetwork(t *testing.T) {
	t.Parallel()

	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	defer srv.Close()

	for _, c := range []struct{ key, secret, token, want string }{
		{"", "s", "t", "app key is empty"},
		{"k", "", "t", "app secret is empty"},
		{"k", "s", "", "session token is empty"},
	} {
		client := breeze.NewClient(c.key, c.secret, breeze.WithBaseURL(srv.URL))
		_, err := client.GenerateSession(t.Context(), c.token)
		require.ErrorContains(t, err, c.want)
	}
	require.False(t, called)
}

func TestGenerateSession_MalformedToken(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"Success":{"session_token":"bm8tY29sb24="},"Status":200,"Error":null}`)
	}))
	defer srv.Close()

	client := breeze.NewClient("k", "s", breeze.WithBaseURL(srv.URL))
	_, err := client.GenerateSession(t.Context(), "t")
	require.ErrorContains(t, err, "malformed session token")
}

func TestGetQuotes_SignsRequest(t *testing.T) {
	t.Parallel()

	// Arrange: a vendor that checks the signature and returns one row
	srv := fakeBreeze(t, func(w http.ResponseWriter, r *http.Request, body []byte) {
		require.Equal(t, "/quotes", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.Equal(t, "app-key", r.Header.Get("X-AppKey"))
		require.Equal(t, "2025-06-20T09:15:30.000Z", r.Header.Get("X-Timestamp"))
		require.Equal(t, base64.StdEncoding.EncodeToString([]byte("USER1:session-key")), r.Header.Get("X-SessionToken"))

		sum := sha256.Sum256([]byte("2025-06-20T09:15:30.000Z" + string(body) + "app-secret"))
		require.Equal(t, "token "+hex.EncodeToString(sum[:]), r.Header.Get("X-Checksum"))

		var in breeze.QuoteRequest
		require.NoError(t, json.Unmarshal(body, &in))
		require.Equal(t, breeze.QuoteRequest{StockCode: "NIFTY", ExchangeCode: "NSE"}, in)

		_, _ = io.WriteString(w, `{"Success":[{"stock_code":"NIFTY","ltp":22500.35,"previous_close":"22400.10","stock_name":"NIFTY 50"}],"Status":200,"Error":null}`)
	})
	sess := newSession(t, srv)

	// Act
	res, err := sess.GetQuotes(t.Context(), breeze.QuoteRequest{StockCode: "NIFTY", ExchangeCode: "NSE"})

	// Assert: numbers survive as json.Number
	require.NoError(t, err)
	require.Equal(t, 200, res.Status)
	require.Empty(t, res.Error)
	require.Len(t, res.Success, 1)
	require.Equal(t, json.Number("22500.35"), res.Success[0]["ltp"])
	require.Equal(t, "22400.10", res.Success[0]["previous_close"])
}

func TestGetOptionChainQuotes_VendorError(t *testing.T) {
	t.Parallel()

	srv := fakeBreeze(t, func(w http.ResponseWriter, r *http.Request, body []byte) {
		require.Equal(t, "/OptionChain", r.URL.Path)
		var in breeze.QuoteRequest
		require.NoError(t, json.Unmarshal(body, &in))
		require.Equal(t, "others", in.Right)
		_, _ = io.WriteString(w, `{"Success":null,"Status":500,"Error":"Invalid expiry date"}`)
	})
	sess := newSession(t, srv)

	res, err := sess.GetOptionChainQuotes(t.Context(), breeze.QuoteRequest{
		StockCode: "NIFTY", ExchangeCode: "NFO", ProductType: "options", Right: "others",
	})

	require.NoError(t, err)
	require.Empty(t, res.Success)
	require.Equal(t, 500, res.Status)
	require.Equal(t, "Invalid expiry date", res.Error)
}

func TestGetQuotes_NonSuccessStatus(t *testing.T) {
	t.Parallel()

	srv := fakeBreeze(t, func(w http.ResponseWriter, r *http.Request, body []byte) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"Success":null,"Status":401,"Error":"Request Object is Null"}`)
	})
	sess := newSession(t, srv)

	res, err := sess.GetQuotes(t.Context(), breeze.QuoteRequest{StockCode: "NIFTY", ExchangeCode: "NSE"})

	require.Nil(t, res)
	require.EqualError(t, err, "GET quotes -> 401: Request Object is Null")
}

func TestGetQuotes_NonJSONBody(t *testing.T) {
	t.Parallel()

	srv := fakeBreeze(t, func(w http.ResponseWriter, r *http.Request, body []byte) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "upstream unavailable")
	})
	sess := newSession(t, srv)

	_, err := sess.GetQuotes(t.Context(), breeze.QuoteRequest{StockCode: "NIFTY", ExchangeCode: "NSE"})
	require.EqualError(t, err, "GET quotes -> 502: upstream unavailable")
}

func TestGetQuotes_InvalidJSON(t *testing.T) {
	t.Parallel()

	srv := fakeBreeze(t, func(w http.ResponseWriter, r *http.Request, body []byte) {
		_, _ = io.WriteString(w, "invalid json")
	})
	sess := newSession(t, srv)

	_, err := sess.GetQuotes(t.Context(), breeze.QuoteRequest{StockCode: "NIFTY", ExchangeCode: "NSE"})
	require.ErrorContains(t, err, "decoding response")
}

func TestWithHeader(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "bar", r.Header.Get("foo"))
		_, _ = io.WriteString(w, `{"Success":null,"Status":500,"Error":"nope"}`)
	}))
	defer srv.Close()

	client := breeze.NewClient("k", "s", breeze.WithBaseURL(srv.URL), breeze.WithHeader(http.Header{"foo": []string{"bar"}}))
	_, err := client.GenerateSession(t.Context(), "t")
	require.ErrorContains(t, err, "nope")
}
