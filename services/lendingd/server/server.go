// Package server exposes the lending engine over HTTP. All state-touching
// calls funnel through a single mutex so the engine itself stays lock-free.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	coretypes "github.com/sunidhiii/mando-lending-borrowing-sub000/core/types"
	"github.com/sunidhiii/mando-lending-borrowing-sub000/crypto"
	nativecommon "github.com/sunidhiii/mando-lending-borrowing-sub000/native/common"
	"github.com/sunidhiii/mando-lending-borrowing-sub000/native/fees"
	"github.com/sunidhiii/mando-lending-borrowing-sub000/native/lending"
	"github.com/sunidhiii/mando-lending-borrowing-sub000/native/oracle"
	"github.com/sunidhiii/mando-lending-borrowing-sub000/native/token"
	"github.com/sunidhiii/mando-lending-borrowing-sub000/observability"
	"github.com/sunidhiii/mando-lending-borrowing-sub000/observability/metrics"
)

const requestLimit = 1 << 20 // 1 MiB

// Server serializes access to the lending engine and its collaborators.
type Server struct {
	mu sync.Mutex

	engine *lending.Engine
	tokens map[string]*token.Token
	oracle *oracle.Oracle
	fees   *fees.Provider
	pauses *nativecommon.Pauses

	limiter  *RateLimiter
	logger   *slog.Logger
	now      func() time.Time
	accounts lending.State
}

// New wires the HTTP surface around a fully configured engine. The tokens map
// is keyed by reserve identifier.
func New(engine *lending.Engine, tokens map[string]*token.Token, priceOracle *oracle.Oracle, feeProvider *fees.Provider, pauses *nativecommon.Pauses, limiter *RateLimiter, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		engine:  engine,
		tokens:  tokens,
		oracle:  priceOracle,
		fees:    feeProvider,
		pauses:  pauses,
		limiter: limiter,
		logger:  logger,
		now:     time.Now,
	}
}

// SetAccountStore enables the owner-gated funding endpoint, which credits
// underlying balances directly. Meant for genesis funding and dev setups.
func (s *Server) SetAccountStore(state lending.State) {
	s.accounts = state
}

// Router assembles the route table.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(s.observe)

	r.Get("/healthz", s.health)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/reserves", s.listReserves)
		r.Get("/reserves/{reserve}", s.getReserve)
		r.Get("/reserves/{reserve}/positions/{address}", s.getPosition)
		r.Get("/users/{address}", s.getUserData)

		r.Group(func(r chi.Router) {
			if s.limiter != nil {
				r.Use(s.limiter.Middleware)
			}
			r.Post("/deposit", s.deposit)
			r.Post("/borrow", s.borrow)
			r.Post("/repay", s.repay)
			r.Post("/redeem", s.redeem)
			r.Post("/collateral", s.setCollateral)
			r.Post("/rewards", s.setRewardStrategy)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/prices", s.setPrice)
			r.Post("/fees", s.setFee)
			r.Post("/strategy", s.setStrategy)
			r.Post("/pause", s.setPause)
			r.Post("/fund", s.fund)
		})
	})
	return r
}

// observe wraps every handler with request metrics keyed by route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := s.now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		observability.RequestMetrics().Observe(route, recorder.status, s.now().Sub(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type txRequest struct {
	User    string `json:"user"`
	Reserve string `json:"reserve"`
	Amount  string `json:"amount"`
	Mode    string `json:"mode,omitempty"`
}

type collateralRequest struct {
	User            string `json:"user"`
	Reserve         string `json:"reserve"`
	UseAsCollateral bool   `json:"useAsCollateral"`
}

type rewardRequest struct {
	User    string `json:"user"`
	Reserve string `json:"reserve"`
	Enabled bool   `json:"enabled"`
}

type priceRequest struct {
	Caller          string `json:"caller"`
	Reserve         string `json:"reserve"`
	Price           string `json:"price"`
	ValidForSeconds int64  `json:"validForSeconds"`
}

type feeRequest struct {
	Caller string `json:"caller"`
	Rate   string `json:"rate"`
}

type strategyRequest struct {
	Caller   string               `json:"caller"`
	Reserve  string               `json:"reserve"`
	Strategy lending.RateStrategy `json:"strategy"`
}

type pauseRequest struct {
	Caller string `json:"caller"`
	Module string `json:"module"`
	Paused bool   `json:"paused"`
}

func (s *Server) deposit(w http.ResponseWriter, r *http.Request) {
	var req txRequest
	if err := decodeRequest(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	user, amount, err := parseUserAmount(req.User, req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	s.mu.Lock()
	s.engine.SetTimestamp(uint64(s.now().Unix()))
	opErr := s.engine.Deposit(user, req.Reserve, amount)
	s.mu.Unlock()

	s.finishOperation(w, "deposit", req.Reserve, opErr)
}

func (s *Server) borrow(w http.ResponseWriter, r *http.Request) {
	var req txRequest
	if err := decodeRequest(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	user, amount, err := parseUserAmount(req.User, req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	mode, err := parseRateMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	s.mu.Lock()
	s.engine.SetTimestamp(uint64(s.now().Unix()))
	opErr := s.engine.Borrow(user, req.Reserve, amount, mode)
	s.mu.Unlock()

	s.finishOperation(w, "borrow", req.Reserve, opErr)
}

func (s *Server) repay(w http.ResponseWriter, r *http.Request) {
	var req txRequest
	if err := decodeRequest(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	user, amount, err := parseUserAmount(req.User, req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	s.mu.Lock()
	s.engine.SetTimestamp(uint64(s.now().Unix()))
	opErr := s.engine.Repay(user, req.Reserve, amount)
	s.mu.Unlock()

	s.finishOperation(w, "repay", req.Reserve, opErr)
}

func (s *Server) redeem(w http.ResponseWriter, r *http.Request) {
	var req txRequest
	if err := decodeRequest(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	user, amount, err := parseUserAmount(req.User, req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	s.mu.Lock()
	receipt, ok := s.tokens[req.Reserve]
	var opErr error
	if !ok {
		opErr = fmt.Errorf("unknown reserve %q", req.Reserve)
	} else {
		s.engine.SetTimestamp(uint64(s.now().Unix()))
		opErr = receipt.Redeem(user, amount)
	}
	s.mu.Unlock()

	if opErr != nil && !ok {
		metrics.Lending().ObserveRejection("redeem", "unknown_reserve")
		writeError(w, http.StatusNotFound, opErr)
		return
	}
	s.finishOperation(w, "redeem", req.Reserve, opErr)
}

func (s *Server) setCollateral(w http.ResponseWriter, r *http.Request) {
	var req collateralRequest
	if err := decodeRequest(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	user, err := crypto.DecodeAddress(req.User)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	s.mu.Lock()
	s.engine.SetTimestamp(uint64(s.now().Unix()))
	opErr := s.engine.SetUserUseReserveAsCollateral(user, req.Reserve, req.UseAsCollateral)
	s.mu.Unlock()

	s.finishOperation(w, "collateral", req.Reserve, opErr)
}

func (s *Server) setRewardStrategy(w http.ResponseWriter, r *http.Request) {
	var req rewardRequest
	if err := decodeRequest(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	user, err := crypto.DecodeAddress(req.User)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	s.mu.Lock()
	s.engine.SetTimestamp(uint64(s.now().Unix()))
	opErr := s.engine.SetAutonomousRewardStrategy(user, req.Reserve, req.Enabled)
	s.mu.Unlock()

	s.finishOperation(w, "rewards", req.Reserve, opErr)
}

func (s *Server) setPrice(w http.ResponseWriter, r *http.Request) {
	var req priceRequest
	if err := decodeRequest(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	caller, err := crypto.DecodeAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	price, err := parseAmount(req.Price)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.ValidForSeconds <= 0 {
		writeError(w, http.StatusBadRequest, errors.New("validForSeconds must be positive"))
		return
	}

	s.mu.Lock()
	opErr := s.oracle.SetPrice(caller, req.Reserve, price, time.Duration(req.ValidForSeconds)*time.Second)
	s.mu.Unlock()

	if opErr != nil {
		s.writeOperationError(w, "prices", req.Reserve, opErr)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) setFee(w http.ResponseWriter, r *http.Request) {
	var req feeRequest
	if err := decodeRequest(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	caller, err := crypto.DecodeAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	rate, err := parseAmount(req.Rate)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	s.mu.Lock()
	opErr := s.fees.UpdateFee(caller, rate)
	s.mu.Unlock()

	if opErr != nil {
		s.writeOperationError(w, "fees", "", opErr)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) setStrategy(w http.ResponseWriter, r *http.Request) {
	var req strategyRequest
	if err := decodeRequest(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	caller, err := crypto.DecodeAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	s.mu.Lock()
	s.engine.SetTimestamp(uint64(s.now().Unix()))
	opErr := s.engine.SetReserveStrategy(caller, req.Reserve, req.Strategy)
	s.mu.Unlock()

	s.finishOperation(w, "strategy", req.Reserve, opErr)
}

func (s *Server) setPause(w http.ResponseWriter, r *http.Request) {
	var req pauseRequest
	if err := decodeRequest(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	caller, err := crypto.DecodeAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if !caller.Equal(s.engine.Owner()) {
		writeError(w, http.StatusForbidden, errors.New("caller is not the protocol owner"))
		return
	}
	module := strings.TrimSpace(req.Module)
	if module == "" {
		writeError(w, http.StatusBadRequest, errors.New("module name required"))
		return
	}

	s.mu.Lock()
	s.pauses.SetPaused(module, req.Paused)
	s.mu.Unlock()

	s.logger.Info("pause switch flipped", "component", module, "paused", req.Paused)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type fundRequest struct {
	Caller  string `json:"caller"`
	User    string `json:"user"`
	Reserve string `json:"reserve"`
	Amount  string `json:"amount"`
}

func (s *Server) fund(w http.ResponseWriter, r *http.Request) {
	if s.accounts == nil {
		writeError(w, http.StatusNotFound, errors.New("funding endpoint disabled"))
		return
	}
	var req fundRequest
	if err := decodeRequest(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	caller, err := crypto.DecodeAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if !caller.Equal(s.engine.Owner()) {
		writeError(w, http.StatusForbidden, errors.New("caller is not the protocol owner"))
		return
	}
	user, amount, err := parseUserAmount(req.User, req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if amount.Sign() <= 0 {
		writeError(w, http.StatusBadRequest, errors.New("amount must be positive"))
		return
	}

	s.mu.Lock()
	opErr := func() error {
		account, err := s.accounts.GetAccount(user)
		if err != nil {
			return err
		}
		if account == nil {
			account = coretypes.NewAccount()
		}
		account.Credit(req.Reserve, amount)
		return s.accounts.PutAccount(user, account)
	}()
	s.mu.Unlock()

	if opErr != nil {
		s.writeOperationError(w, "fund", req.Reserve, opErr)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listReserves(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.engine.SetTimestamp(uint64(s.now().Unix()))
	ids, err := s.engine.ReserveIDs()
	var snapshots []*lending.ReserveSnapshot
	if err == nil {
		snapshots = make([]*lending.ReserveSnapshot, 0, len(ids))
		for _, id := range ids {
			snapshot, snapErr := s.engine.ReserveData(id)
			if snapErr != nil {
				err = snapErr
				break
			}
			snapshots = append(snapshots, snapshot)
		}
	}
	s.mu.Unlock()

	if err != nil {
		s.writeOperationError(w, "reserves", "", err)
		return
	}
	writeJSON(w, http.StatusOK, snapshots)
}

func (s *Server) getReserve(w http.ResponseWriter, r *http.Request) {
	reserveID := chi.URLParam(r, "reserve")

	s.mu.Lock()
	s.engine.SetTimestamp(uint64(s.now().Unix()))
	snapshot, err := s.engine.ReserveData(reserveID)
	s.mu.Unlock()

	if err != nil {
		s.writeOperationError(w, "reserves", reserveID, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) getPosition(w http.ResponseWriter, r *http.Request) {
	reserveID := chi.URLParam(r, "reserve")
	user, err := crypto.DecodeAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	s.mu.Lock()
	s.engine.SetTimestamp(uint64(s.now().Unix()))
	view, opErr := s.engine.UserReserveData(reserveID, user)
	s.mu.Unlock()

	if opErr != nil {
		s.writeOperationError(w, "positions", reserveID, opErr)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) getUserData(w http.ResponseWriter, r *http.Request) {
	user, err := crypto.DecodeAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	s.mu.Lock()
	s.engine.SetTimestamp(uint64(s.now().Unix()))
	data, opErr := s.engine.CalculateUserGlobalData(user)
	s.mu.Unlock()

	if opErr != nil {
		s.writeOperationError(w, "users", "", opErr)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

// finishOperation records metrics, refreshes the reserve gauges, and writes
// the response for a mutating call.
func (s *Server) finishOperation(w http.ResponseWriter, operation, reserveID string, opErr error) {
	if opErr != nil {
		s.writeOperationError(w, operation, reserveID, opErr)
		return
	}
	metrics.Lending().ObserveOperation(operation)
	s.updateReserveGauges(reserveID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeOperationError(w http.ResponseWriter, operation, reserveID string, opErr error) {
	status := statusFromError(opErr)
	metrics.Lending().ObserveRejection(operation, reasonFromStatus(status))
	s.logger.Warn("operation rejected",
		"operation", operation,
		"reserve", reserveID,
		"error", opErr.Error(),
	)
	writeError(w, status, opErr)
}

func (s *Server) updateReserveGauges(reserveID string) {
	if reserveID == "" {
		return
	}
	s.mu.Lock()
	snapshot, err := s.engine.ReserveData(reserveID)
	s.mu.Unlock()
	if err != nil || snapshot == nil || snapshot.Reserve == nil {
		return
	}
	reg := metrics.Lending()
	reg.SetUtilization(reserveID, unitToFloat(snapshot.Utilization))
	reg.SetRates(reserveID,
		unitToFloat(snapshot.Reserve.CurrentLiquidityRate),
		unitToFloat(snapshot.Reserve.CurrentVariableBorrowRate),
		unitToFloat(snapshot.Reserve.CurrentStableBorrowRate),
	)
	reg.SetOutstandingBorrows(reserveID, lending.RateModeStable.String(), bigToFloat(snapshot.Reserve.TotalBorrowsStable))
	reg.SetOutstandingBorrows(reserveID, lending.RateModeVariable.String(), bigToFloat(snapshot.Reserve.TotalBorrowsVariable))
}

func decodeRequest(r *http.Request, out any) error {
	if r.Body == nil {
		return errors.New("missing request body")
	}
	defer r.Body.Close()

	reader := io.LimitReader(r.Body, requestLimit)
	data, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("read request body: %w", err)
	}
	if len(data) == 0 {
		return errors.New("request body is empty")
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

func parseUserAmount(user, amount string) (crypto.Address, *big.Int, error) {
	addr, err := crypto.DecodeAddress(user)
	if err != nil {
		return crypto.Address{}, nil, err
	}
	value, err := parseAmount(amount)
	if err != nil {
		return crypto.Address{}, nil, err
	}
	return addr, value, nil
}

func parseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, errors.New("amount required")
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	return value, nil
}

func parseRateMode(raw string) (lending.RateMode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "stable":
		return lending.RateModeStable, nil
	case "variable":
		return lending.RateModeVariable, nil
	default:
		return lending.RateModeNone, fmt.Errorf("invalid rate mode %q", raw)
	}
}

func statusFromError(err error) int {
	switch {
	case errors.Is(err, nativecommon.ErrModulePaused):
		return http.StatusServiceUnavailable
	case errors.Is(err, lending.ErrAuthorization):
		return http.StatusForbidden
	case errors.Is(err, lending.ErrValidation), errors.Is(err, token.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, lending.ErrInsufficientLiquidity),
		errors.Is(err, lending.ErrInsufficientCollateral),
		errors.Is(err, token.ErrBalanceTooLow),
		errors.Is(err, token.ErrDecreaseBlocked):
		return http.StatusUnprocessableEntity
	case errors.Is(err, fees.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, fees.ErrInvalidRate):
		return http.StatusBadRequest
	case errors.Is(err, lending.ErrState),
		errors.Is(err, oracle.ErrPriceUnset),
		errors.Is(err, oracle.ErrPriceStale):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func reasonFromStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "validation"
	case http.StatusForbidden:
		return "authorization"
	case http.StatusUnprocessableEntity:
		return "risk"
	case http.StatusConflict:
		return "state"
	case http.StatusServiceUnavailable:
		return "paused"
	default:
		return "internal"
	}
}

// unitToFloat converts a 1e9 fixed-point value to a plain ratio for gauges.
func unitToFloat(value *big.Int) float64 {
	if value == nil {
		return 0
	}
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(value), big.NewFloat(1e9)).Float64()
	return f
}

func bigToFloat(value *big.Int) float64 {
	if value == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(value).Float64()
	return f
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	data, err := json.Marshal(payload)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("marshal response: %w", err))
		return
	}
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	message := strings.TrimSpace(err.Error())
	if message == "" {
		message = http.StatusText(status)
	}
	payload, marshalErr := json.Marshal(map[string]string{"error": message})
	if marshalErr != nil {
		payload = []byte(`{"error":"internal error"}`)
	}
	_, _ = w.Write(payload)
}
