package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/sheikh-saqib/club-membership-ledger/internal/ledger"
	"github.com/sheikh-saqib/club-membership-ledger/internal/models"
	"github.com/sheikh-saqib/club-membership-ledger/internal/pkg/logger"
)

// Service is the part of the ledger the HTTP adapter drives.
type Service interface {
	AddMember(ctx context.Context, firstName, lastName string, birthday time.Time) (int, error)
	DeleteMember(ctx context.Context, memberNumber int) error
	JoinMember(ctx context.Context, memberNumber int) (*models.Membership, error)
	CancelMembership(ctx context.Context, memberNumber int) (*models.Membership, error)
	Deposit(ctx context.Context, memberNumber int, amount decimal.Decimal) error
	GetDepositStatistics(ctx context.Context) ([]models.DepositStatistic, error)
	GetMember(ctx context.Context, memberNumber int) (*models.Member, error)
	Memberships(ctx context.Context, memberNumber int) ([]models.Membership, error)
}

type Handler struct {
	service Service
	limiter *rate.Limiter
	log     *logger.Logger
}

func NewHandler(service Service, limiter *rate.Limiter, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.NewNop()
	}
	return &Handler{service: service, limiter: limiter, log: log.With("component", "httpapi")}
}

// Routes builds the router. Mutating routes share the handler's rate limiter.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.handleHealth)
	r.Get("/members/{number}", h.handleGetMember)
	r.Get("/members/{number}/memberships", h.handleListMemberships)
	r.Get("/statistics/deposits", h.handleDepositStatistics)

	r.Group(func(r chi.Router) {
		r.Use(h.rateLimit)
		r.Post("/members", h.handleAddMember)
		r.Delete("/members/{number}", h.handleDeleteMember)
		r.Post("/members/{number}/memberships", h.handleJoin)
		r.Delete("/members/{number}/memberships/active", h.handleCancel)
		r.Post("/members/{number}/deposits", h.handleDeposit)
	})
	return r
}

func (h *Handler) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.limiter != nil && !h.limiter.Allow() {
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleAddMember(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Birthday  string `json:"birthday"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	// An absent birthday is left zero; the ledger only requires names.
	var birthday time.Time
	if req.Birthday != "" {
		parsed, err := parseBirthday(req.Birthday)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "birthday must be YYYY-MM-DD or RFC 3339"})
			return
		}
		birthday = parsed
	}

	number, err := h.service.AddMember(r.Context(), req.FirstName, req.LastName, birthday)
	if err != nil {
		h.writeError(w, r, err, false)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int{"member_number": number})
}

func (h *Handler) handleGetMember(w http.ResponseWriter, r *http.Request) {
	number, ok := memberNumber(w, r)
	if !ok {
		return
	}
	member, err := h.service.GetMember(r.Context(), number)
	if err != nil {
		h.writeError(w, r, err, true)
		return
	}
	writeJSON(w, http.StatusOK, member)
}

func (h *Handler) handleDeleteMember(w http.ResponseWriter, r *http.Request) {
	number, ok := memberNumber(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteMember(r.Context(), number); err != nil {
		h.writeError(w, r, err, false)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleJoin(w http.ResponseWriter, r *http.Request) {
	number, ok := memberNumber(w, r)
	if !ok {
		return
	}
	ms, err := h.service.JoinMember(r.Context(), number)
	if err != nil {
		h.writeError(w, r, err, false)
		return
	}
	writeJSON(w, http.StatusCreated, ms)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	number, ok := memberNumber(w, r)
	if !ok {
		return
	}
	ms, err := h.service.CancelMembership(r.Context(), number)
	if err != nil {
		h.writeError(w, r, err, false)
		return
	}
	writeJSON(w, http.StatusOK, ms)
}

func (h *Handler) handleListMemberships(w http.ResponseWriter, r *http.Request) {
	number, ok := memberNumber(w, r)
	if !ok {
		return
	}
	history, err := h.service.Memberships(r.Context(), number)
	if err != nil {
		h.writeError(w, r, err, true)
		return
	}
	if history == nil {
		history = []models.Membership{}
	}
	writeJSON(w, http.StatusOK, history)
}

func (h *Handler) handleDeposit(w http.ResponseWriter, r *http.Request) {
	number, ok := memberNumber(w, r)
	if !ok {
		return
	}
	var req struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if err := h.service.Deposit(r.Context(), number, req.Amount); err != nil {
		h.writeError(w, r, err, false)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "recorded"})
}

func (h *Handler) handleDepositStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetDepositStatistics(r.Context())
	if err != nil {
		h.writeError(w, r, err, false)
		return
	}
	if stats == nil {
		stats = []models.DepositStatistic{}
	}
	writeJSON(w, http.StatusOK, stats)
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps ledger errors onto status codes. lookup turns a missing
// member into 404 for read routes.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, lookup bool) {
	status := statusFor(err)
	if lookup && status == http.StatusBadRequest {
		status = http.StatusNotFound
	}
	if status >= http.StatusInternalServerError {
		h.log.Error("Request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrDuplicateName),
		errors.Is(err, ledger.ErrAlreadyMember),
		errors.Is(err, ledger.ErrNoActiveMembership):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrNotInitialized):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func memberNumber(w http.ResponseWriter, r *http.Request) (int, bool) {
	number, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil || number <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid member number"})
		return 0, false
	}
	return number, true
}

func parseBirthday(raw string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
