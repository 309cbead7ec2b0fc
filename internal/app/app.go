// Package app assembles the market service from config. It is shared by the
// server and the fetch tool.
package app

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"breezerelay/internal/breeze"
	"breezerelay/internal/config"
	"breezerelay/internal/httpx"
	"breezerelay/internal/market"
	"breezerelay/internal/metrics"
	"breezerelay/internal/provider"
	"breezerelay/internal/provider/breezeadapter"
	"breezerelay/internal/provider/cache"
	"breezerelay/internal/provider/tokenstore"
)

// NewService wires the Breeze client, token source and optional session
// cache behind a market.Service. m may be nil. The returned cleanup closes
// any Redis connection.
func NewService(cfg config.Config, log *logrus.Logger, m *metrics.Metrics) (*market.Service, func() error, error) {
	timeout := time.Duration(cfg.Server.RequestTimeoutSec) * time.Second
	client := breeze.NewClient(cfg.Breeze.APIKey, cfg.Breeze.APISecret,
		breeze.WithBaseURL(cfg.Breeze.BaseURL),
		breeze.WithHTTPClient(httpx.New(timeout)),
		breeze.WithHeader(map[string][]string{"User-Agent": {httpx.UserAgent}}),
		breeze.WithLogger(log),
	)

	var tokens tokenstore.Source = tokenstore.Static(cfg.Breeze.SessionToken)
	cleanup := func() error { return nil }
	if cfg.Breeze.TokenRedisURL != "" {
		r, err := tokenstore.NewRedis(cfg.Breeze.TokenRedisURL, cfg.Breeze.TokenRedisKey)
		if err != nil {
			return nil, nil, fmt.Errorf("token store: %w", err)
		}
		tokens = r
		cleanup = r.Close
		log.WithField("key", cfg.Breeze.TokenRedisKey).Info("reading breeze session token from redis")
	}

	var sessions provider.SessionProvider = breezeadapter.New(client, tokens, m, log)
	if cfg.Breeze.SessionTTLSec > 0 {
		sessions = &cache.Provider{P: sessions, TTL: time.Duration(cfg.Breeze.SessionTTLSec) * time.Second}
	}

	svc := market.NewService(sessions, market.Options{
		Indices:        cfg.Indices,
		OptionChain:    OptionChainQuery(cfg.OptionChain),
		MaxConcurrency: cfg.Breeze.MaxConcurrency,
		Logger:         log,
		Metrics:        m,
	})
	return svc, cleanup, nil
}

// OptionChainQuery converts the configured defaults into a vendor query.
func OptionChainQuery(c config.OptionChain) provider.OptionChainQuery {
	return provider.OptionChainQuery{
		StockCode:    c.StockCode,
		ExchangeCode: c.ExchangeCode,
		ProductType:  c.ProductType,
		ExpiryDate:   c.ExpiryDate,
		Right:        c.Right,
		StrikePrice:  c.StrikePrice,
	}
}
