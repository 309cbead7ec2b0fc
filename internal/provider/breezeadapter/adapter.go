// Package breezeadapter exposes the Breeze REST client as a
// provider.SessionProvider.
package breezeadapter

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"breezerelay/internal/breeze"
	"breezerelay/internal/logging"
	"breezerelay/internal/metrics"
	"breezerelay/internal/provider"
	"breezerelay/internal/provider/tokenstore"
)

// SessionGenerator is the part of *breeze.Client the adapter needs.
type SessionGenerator interface {
	GenerateSession(ctx context.Context, sessionToken string) (*breeze.Session, error)
}

type Adapter struct {
	client  SessionGenerator
	tokens  tokenstore.Source
	metrics *metrics.Metrics
	log     logrus.FieldLogger
	now     func() time.Time
}

// New wires a Breeze client to a session-token source. m and log may be nil.
func New(client SessionGenerator, tokens tokenstore.Source, m *metrics.Metrics, log logrus.FieldLogger) *Adapter {
	if log == nil {
		log = logging.Discard()
	}
	return &Adapter{client: client, tokens: tokens, metrics: m, log: log, now: time.Now}
}

// Acquire opens a fresh vendor session with the current session token.
func (a *Adapter) Acquire(ctx context.Context) (provider.MarketData, error) {
	start := a.now()
	token, err := a.tokens.SessionToken(ctx)
	if err != nil {
		a.metrics.ObserveVendor("customerdetails", "error", a.now().Sub(start))
		return nil, fmt.Errorf("reading session token: %w", err)
	}
	sess, err := a.client.GenerateSession(ctx, token)
	if err != nil {
		a.metrics.ObserveVendor("customerdetails", "error", a.now().Sub(start))
		return nil, err
	}
	elapsed := a.now().Sub(start)
	a.metrics.ObserveVendor("customerdetails", "ok", elapsed)
	a.log.WithFields(logrus.Fields{"user_id": sess.UserID(), "elapsed": elapsed}).Debug("breeze session opened")
	return &session{s: sess, metrics: a.metrics, now: a.now}, nil
}

// quoter is the part of *breeze.Session the adapter calls.
type quoter interface {
	GetQuotes(ctx context.Context, req breeze.QuoteRequest) (*breeze.Response, error)
	GetOptionChainQuotes(ctx context.Context, req breeze.QuoteRequest) (*breeze.Response, error)
}

type session struct {
	s       quoter
	metrics *metrics.Metrics
	now     func() time.Time
}

func (s *session) GetQuotes(ctx context.Context, exchange, stockCode string) (provider.Response, error) {
	req := breeze.QuoteRequest{StockCode: stockCode, ExchangeCode: exchange}
	return s.call("quotes", func() (*breeze.Response, error) { return s.s.GetQuotes(ctx, req) })
}

func (s *session) GetOptionChainQuotes(ctx context.Context, q provider.OptionChainQuery) (provider.Response, error) {
	req := breeze.QuoteRequest{
		StockCode:    q.StockCode,
		ExchangeCode: q.ExchangeCode,
		ProductType:  q.ProductType,
		ExpiryDate:   q.ExpiryDate,
		Right:        q.Right,
		StrikePrice:  q.StrikePrice,
	}
	return s.call("option_chain", func() (*breeze.Response, error) { return s.s.GetOptionChainQuotes(ctx, req) })
}

func (s *session) call(op string, fn func() (*breeze.Response, error)) (provider.Response, error) {
	start := s.now()
	res, err := fn()
	elapsed := s.now().Sub(start)
	if err != nil {
		s.metrics.ObserveVendor(op, "error", elapsed)
		return provider.Response{}, err
	}
	out := convert(res)
	outcome := "ok"
	if !out.OK() {
		outcome = "empty"
	}
	s.metrics.ObserveVendor(op, outcome, elapsed)
	return out, nil
}

func convert(res *breeze.Response) provider.Response {
	if res == nil {
		return provider.Response{}
	}
	out := provider.Response{Status: res.Status, Error: res.Error}
	if len(res.Success) > 0 {
		out.Success = make([]provider.Record, len(res.Success))
		for i, row := range res.Success {
			out.Success[i] = provider.Record(row)
		}
	}
	return out
}
