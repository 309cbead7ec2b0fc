// Package market turns vendor sessions into the relay's two responses: the
// index snapshot and the option chain.
package market

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"breezerelay/internal/aggregate"
	"breezerelay/internal/apperr"
	"breezerelay/internal/config"
	"breezerelay/internal/logging"
	"breezerelay/internal/metrics"
	"breezerelay/internal/normalize"
	"breezerelay/internal/provider"
)

const (
	emptySuccess  = "Empty success array"
	emptyResponse = "API response was empty"
)

// Options configures a Service. Zero values fall back to the defaults of
// config.Default.
type Options struct {
	Indices        []config.Index
	OptionChain    provider.OptionChainQuery
	MaxConcurrency int
	Logger         logrus.FieldLogger
	Metrics        *metrics.Metrics
}

type Service struct {
	sessions provider.SessionProvider
	indices  []config.Index
	chain    provider.OptionChainQuery
	limit    int
	log      logrus.FieldLogger
	metrics  *metrics.Metrics
}

func NewService(sessions provider.SessionProvider, opts Options) *Service {
	if len(opts.Indices) == 0 {
		opts.Indices = config.Default().Indices
	}
	if opts.OptionChain == (provider.OptionChainQuery{}) {
		opts.OptionChain = provider.DefaultOptionChainQuery()
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 1
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return &Service{
		sessions: sessions,
		indices:  opts.Indices,
		chain:    opts.OptionChain,
		limit:    opts.MaxConcurrency,
		log:      opts.Logger,
		metrics:  opts.Metrics,
	}
}

// Indices returns one quote per configured index that the vendor answered,
// in configured order. It fails only when no session can be opened or no
// index at all could be fetched.
func (s *Service) Indices(ctx context.Context) ([]normalize.IndexQuote, error) {
	md, err := s.sessions.Acquire(ctx)
	if err != nil {
		s.log.WithError(err).Error("breeze session failed")
		return nil, apperr.Connection(err)
	}

	bySymbol := make(map[string]config.Index, len(s.indices))
	keys := make([]string, 0, len(s.indices))
	for _, ix := range s.indices {
		bySymbol[ix.Symbol] = ix
		keys = append(keys, ix.Symbol)
	}

	res := aggregate.Collect(ctx, keys, s.limit, func(ctx context.Context, symbol string) (normalize.IndexQuote, error) {
		ix := bySymbol[symbol]
		r, err := md.GetQuotes(ctx, ix.Exchange, ix.Code)
		if err != nil {
			return normalize.IndexQuote{}, err
		}
		if !r.OK() {
			reason := r.Error
			if reason == "" {
				reason = emptySuccess
			}
			return normalize.IndexQuote{}, errors.New(reason)
		}
		return normalize.NormalizeIndexQuote(r.Success[0], symbol), nil
	})

	for _, f := range res.Failed {
		s.metrics.IndexFailed(f.Key)
		s.log.WithFields(logrus.Fields{"symbol": f.Key, "reason": f.Reason}).Warn("could not fetch index quote")
	}
	if res.Empty() {
		s.dropSession()
		e := apperr.NoData(res.Failed)
		s.log.WithField("kind", e.Kind).Error(e.Message)
		return nil, e
	}
	if !res.Complete() {
		w := apperr.PartialData(res.Failed, len(keys))
		s.log.WithFields(logrus.Fields{"kind": w.Kind, "failed": res.FailedKeys()}).Warn(w.Message)
	}
	return res.Succeeded, nil
}

// ChainOverrides replaces parts of the configured option-chain query for a
// single request. Empty fields keep the configured value.
type ChainOverrides struct {
	StockCode  string
	ExpiryDate string
}

// Query returns the vendor query for o.
func (s *Service) Query(o ChainOverrides) provider.OptionChainQuery {
	q := s.chain
	if o.StockCode != "" {
		q.StockCode = o.StockCode
	}
	if o.ExpiryDate != "" {
		q.ExpiryDate = o.ExpiryDate
	}
	return q
}

// OptionChain returns calls and puts sorted by strike. Any vendor failure
// fails the whole request.
func (s *Service) OptionChain(ctx context.Context, o ChainOverrides) (normalize.OptionChain, error) {
	md, err := s.sessions.Acquire(ctx)
	if err != nil {
		s.log.WithError(err).Error("breeze session failed")
		return normalize.OptionChain{}, apperr.Connection(err)
	}

	q := s.Query(o)
	res, err := md.GetOptionChainQuotes(ctx, q)
	if err != nil {
		s.dropSession()
		s.log.WithError(err).WithField("stock_code", q.StockCode).Error("option chain request failed")
		return normalize.OptionChain{}, apperr.VendorCall(err)
	}
	if !res.OK() {
		msg := res.Error
		if msg == "" {
			msg = emptyResponse
		}
		e := apperr.Vendor(msg)
		s.dropSession()
		s.log.WithFields(logrus.Fields{"kind": e.Kind, "stock_code": q.StockCode}).Error(e.Message)
		return normalize.OptionChain{}, e
	}
	return normalize.NewOptionChain(res.Success), nil
}

// invalidator is implemented by session providers that reuse sessions.
type invalidator interface {
	Invalidate()
}

// dropSession discards a reused session after a vendor failure, so an
// expired session or rotated token is replaced on the next request.
func (s *Service) dropSession() {
	if inv, ok := s.sessions.(invalidator); ok {
		inv.Invalidate()
	}
}
