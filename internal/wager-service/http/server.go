package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/radieske/gridbet-engine/internal/price-oracle/oracle"
	"github.com/radieske/gridbet-engine/internal/shared/auth"
	"github.com/radieske/gridbet-engine/internal/shared/config"
	"github.com/radieske/gridbet-engine/internal/wager-service/dto"
	"github.com/radieske/gridbet-engine/internal/wager-service/ledger"
	"github.com/radieske/gridbet-engine/internal/wager-service/lifecycle"
	"github.com/radieske/gridbet-engine/internal/wager-service/odds"
	"github.com/radieske/gridbet-engine/internal/wager-service/repo"
)

// PriceView é o que a API expõe do oráculo
type PriceView interface {
	GetPrice(ctx context.Context) (oracle.PriceData, error)
	History() []oracle.PricePoint
}

type Deps struct {
	Log         *zap.Logger
	Manager     *lifecycle.Manager
	Ledger      *ledger.Ledger
	Accounts    repo.AccountStore
	Prices      PriceView
	Signer      *odds.Signer
	Grid        config.GridConfig
	Verifier    *auth.Verifier
	PriceStream http.Handler // opcional: WebSocket de ticks
	CORSOrigins []string
}

type Server struct {
	log      *zap.Logger
	mgr      *lifecycle.Manager
	ledger   *ledger.Ledger
	accounts repo.AccountStore
	prices   PriceView
	signer   *odds.Signer
	grid     config.GridConfig
	verifier *auth.Verifier
	stream   http.Handler
	origins  []string
}

func NewServer(d Deps) *Server {
	if len(d.CORSOrigins) == 0 {
		d.CORSOrigins = []string{"*"}
	}
	return &Server{
		log:      d.Log,
		mgr:      d.Manager,
		ledger:   d.Ledger,
		accounts: d.Accounts,
		prices:   d.Prices,
		signer:   d.Signer,
		grid:     d.Grid,
		verifier: d.Verifier,
		stream:   d.PriceStream,
		origins:  d.CORSOrigins,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Route("/v1", func(r chi.Router) {
		// conexão longa: fica fora do timeout
		if s.stream != nil {
			r.Handle("/price/stream", s.stream)
		}

		r.Group(func(r chi.Router) {
			r.Use(chimiddleware.Timeout(15 * time.Second))

			// públicas
			r.Get("/config", s.getConfig)
			r.Get("/price", s.getPrice)
			r.Get("/odds", s.getOdds)

			r.Group(func(r chi.Router) {
				r.Use(s.verifier.Middleware)
				r.Get("/account", s.getAccount)
				r.Post("/wagers", s.placeWager)
				r.Get("/wagers/{id}", s.getWager)
				r.Post("/wagers/{id}/resolve", s.resolveWager)

				r.Route("/admin", func(r chi.Router) {
					r.Use(auth.RequireAdmin)
					r.Post("/wagers/refund-stale", s.refundStale)
					r.Post("/accounts/{wallet}/adjust", s.adjustBalance)
				})
			})
		})
	})
	return r
}

func (s *Server) getConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.grid)
}

func (s *Server) getPrice(w http.ResponseWriter, r *http.Request) {
	p, err := s.prices.GetPrice(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := dto.PriceResponse{PriceData: p}
	if r.URL.Query().Get("history") != "false" {
		resp.History = s.prices.History()
	}
	writeJSON(w, http.StatusOK, resp)
}

// getOdds: ?currentPriceYIndex=&columnX=&range=
func (s *Server) getOdds(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	center, err1 := strconv.Atoi(q.Get("currentPriceYIndex"))
	column, err2 := strconv.Atoi(q.Get("columnX"))
	if err1 != nil || err2 != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "currentPriceYIndex and columnX must be integers"})
		return
	}
	rng := s.grid.MaxOddsRange / 2
	if v := q.Get("range"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "range must be an integer"})
			return
		}
		rng = n
	}
	sheet, err := s.signer.IssueOdds(center, column, rng)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, sheet)
}

// getAccount cria a conta no primeiro acesso da carteira
func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	acc, err := s.accounts.GetOrCreateAccount(r.Context(), id.WalletAddress)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewAccountResponse(acc))
}

func (s *Server) placeWager(w http.ResponseWriter, r *http.Request) {
	var req dto.PlaceWagerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "bad json"})
		return
	}
	id, _ := auth.FromContext(r.Context())

	in := lifecycle.PlaceRequest{
		WalletAddress: id.WalletAddress,
		SessionID:     req.SessionID,
		Amount:        req.Amount,
		Multiplier:    req.Multiplier,
		ColumnID:      req.ColumnID,
		YIndex:        req.YIndex,
		BasePrice:     req.BasePrice,
		CellSize:      req.CellSize,
		PriceAtBet:    req.PriceAtBet,
	}
	if req.OddsID != "" || req.Signature != "" || req.ColumnX != nil {
		if req.OddsID == "" || req.Signature == "" || req.ColumnX == nil {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "oddsId, signature and columnX must be sent together"})
			return
		}
		in.Quote = &odds.Quote{OddsID: req.OddsID, Signature: req.Signature, ColumnX: *req.ColumnX}
	}

	res, err := s.mgr.PlaceWager(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.PlaceWagerResponse{
		Wager:      dto.NewWagerSummary(res.Wager),
		NewBalance: res.NewBalance,
	})
}

func (s *Server) getWager(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	wager, err := s.mgr.GetWager(r.Context(), id.WalletAddress, chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewWagerSummary(wager))
}

func (s *Server) resolveWager(w http.ResponseWriter, r *http.Request) {
	var req dto.ResolveWagerRequest
	if err := decodeOptional(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "bad json"})
		return
	}
	id, _ := auth.FromContext(r.Context())

	out, err := s.mgr.ResolveWager(r.Context(), lifecycle.ResolveRequest{
		WalletAddress:   id.WalletAddress,
		WagerID:         chi.URLParam(r, "id"),
		PriceRangeMin:   req.PriceRangeMin,
		PriceRangeMax:   req.PriceRangeMax,
		PriceAtCrossing: req.PriceAtCrossing,
		ClientHint:      req.ClientHint,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ResolveWagerResponse{
		WagerSummary:    dto.NewWagerSummary(out.Wager),
		IsWin:           out.IsWin,
		AlreadyResolved: out.AlreadyResolved,
		NewBalance:      out.NewBalance,
	})
}

func (s *Server) refundStale(w http.ResponseWriter, r *http.Request) {
	var req dto.RefundStaleRequest
	if err := decodeOptional(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "bad json"})
		return
	}
	res, err := s.mgr.CancelStalePending(r.Context(), time.Duration(req.MaxAgeMinutes)*time.Minute)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	errs := res.Errors
	if errs == nil {
		errs = []string{}
	}
	writeJSON(w, http.StatusOK, dto.SweepResponse{
		RefundedCount: res.RefundedCount,
		TotalRefunded: res.TotalRefunded,
		TotalPending:  res.TotalPending,
		Errors:        errs,
	})
}

// adjustBalance é o caminho de depósito simulado
func (s *Server) adjustBalance(w http.ResponseWriter, r *http.Request) {
	var req dto.AdjustBalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "bad json"})
		return
	}
	wallet := chi.URLParam(r, "wallet")
	if req.Delta.IsZero() || req.Reason == "" {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "delta and reason are required"})
		return
	}
	if _, err := s.accounts.GetOrCreateAccount(r.Context(), wallet); err != nil {
		s.writeError(w, r, err)
		return
	}
	admin, _ := auth.FromContext(r.Context())
	res, err := s.ledger.AdjustBalance(r.Context(), wallet, req.Delta, "admin:"+req.Reason, admin.WalletAddress)
	if errors.Is(err, repo.ErrInsufficientFunds) {
		err = &lifecycle.InsufficientFundsError{Balance: res.NewBalance}
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.AdjustBalanceResponse{
		Success:         res.Success,
		PreviousBalance: res.PreviousBalance,
		NewBalance:      res.NewBalance,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeOptional aceita corpo vazio, inclusive chunked sem Content-Length
func decodeOptional(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
