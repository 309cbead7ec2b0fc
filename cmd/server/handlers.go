package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"breezerelay/internal/apperr"
	"breezerelay/internal/market"
	"breezerelay/internal/metrics"
	"breezerelay/internal/normalize"
)

type marketService interface {
	Indices(ctx context.Context) ([]normalize.IndexQuote, error)
	OptionChain(ctx context.Context, o market.ChainOverrides) (normalize.OptionChain, error)
}

type errorResponse struct {
	Error string `json:"error"`
}

type handlers struct {
	svc     marketService
	log     logrus.FieldLogger
	timeout time.Duration
}

// newRouter builds the route table and wraps it in the middleware chain.
func newRouter(svc marketService, log logrus.FieldLogger, m *metrics.Metrics, timeout time.Duration) http.Handler {
	h := &handlers{svc: svc, log: log, timeout: timeout}

	r := mux.NewRouter()
	r.Use(withMetrics(m))
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.Handle("/metrics", m.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/indices", h.indices).Methods(http.MethodGet)
	api.HandleFunc("/option-chain", h.optionChain).Methods(http.MethodGet)

	return withJSONHeaders(withCompression(withRequestID(recoverPanic(log, r))))
}

func (h *handlers) indices(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.context(r)
	defer cancel()

	quotes, err := h.svc.Indices(ctx)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quotes)
}

func (h *handlers) optionChain(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.context(r)
	defer cancel()

	q := r.URL.Query()
	chain, err := h.svc.OptionChain(ctx, market.ChainOverrides{
		StockCode:  q.Get("stock_code"),
		ExpiryDate: q.Get("expiry_date"),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chain)
}

func (h *handlers) context(r *http.Request) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), h.timeout)
}

func (h *handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := apperr.Public(err)
	entry := h.log.WithField("request_id", requestID(r.Context())).WithField("path", r.URL.Path)
	if _, ok := apperr.As(err); !ok {
		entry.WithError(err).Error("unclassified error")
	} else {
		entry.WithField("status", status).Info(msg)
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
