package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/radieske/gridbet-engine/internal/price-oracle/oracle"
	"github.com/radieske/gridbet-engine/internal/wager-service/dto"
	"github.com/radieske/gridbet-engine/internal/wager-service/lifecycle"
	"github.com/radieske/gridbet-engine/internal/wager-service/repo"
)

// writeError traduz a taxonomia de erros em status HTTP.
// Erros internos nunca expõem o texto original ao cliente.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var insufficient *lifecycle.InsufficientFundsError
	switch {
	case errors.As(err, &insufficient):
		bal := insufficient.Balance
		writeJSON(w, http.StatusPaymentRequired, dto.ErrorResponse{Error: "insufficient balance", Balance: &bal})
	case errors.Is(err, lifecycle.ErrInvalidInput),
		errors.Is(err, lifecycle.ErrAmountOutOfRange),
		errors.Is(err, lifecycle.ErrMultiplierOutOfRange),
		errors.Is(err, lifecycle.ErrOddsRejected):
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
	case errors.Is(err, lifecycle.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: "unauthorized"})
	case errors.Is(err, lifecycle.ErrForbidden):
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "forbidden"})
	case errors.Is(err, lifecycle.ErrAccountSuspended):
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "account suspended"})
	case errors.Is(err, lifecycle.ErrNotFound), errors.Is(err, repo.ErrNotFound):
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "not found"})
	case errors.Is(err, oracle.ErrUpstreamUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		writeJSON(w, http.StatusServiceUnavailable, dto.ErrorResponse{Error: "price temporarily unavailable", Retryable: true})
	default:
		s.log.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", chimiddleware.GetReqID(r.Context())),
			zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "internal error"})
	}
}

// requestLogger registra cada requisição no zap
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("latency", time.Since(start)),
				zap.String("request_id", chimiddleware.GetReqID(r.Context())))
		})
	}
}
