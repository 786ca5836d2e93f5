package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"vistream/billing-service/internal/checkout"
	"vistream/billing-service/internal/gateway"
	"vistream/billing-service/internal/order"
	"vistream/billing-service/internal/plan"
	"vistream/billing-service/internal/subscription"

	"github.com/google/uuid"
)

// Server exposes the billing HTTP surface. Caller identity arrives in
// X-User-ID / X-User-Admin headers set by the auth layer in front of this
// service.
type Server struct {
	orchestrator *checkout.Orchestrator
	reconciler   *checkout.Reconciler
	orders       *order.Store
	ledger       *subscription.Ledger
	plans        *plan.Catalog
	logger       *slog.Logger
	mux          *http.ServeMux
}

func NewServer(orch *checkout.Orchestrator, rec *checkout.Reconciler, orders *order.Store, ledger *subscription.Ledger, plans *plan.Catalog, logger *slog.Logger) *Server {
	s := &Server{
		orchestrator: orch,
		reconciler:   rec,
		orders:       orders,
		ledger:       ledger,
		plans:        plans,
		logger:       logger,
		mux:          http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.healthz)
	s.mux.HandleFunc("GET /plans", s.listPlans)
	s.mux.HandleFunc("POST /orders", s.createOrder)
	s.mux.HandleFunc("GET /orders", s.listOrders)
	s.mux.HandleFunc("POST /payments/ipn", s.handleIPN)
	s.mux.HandleFunc("GET /payments/return", s.handleReturn)
	s.mux.HandleFunc("GET /membership", s.membership)
	s.mux.HandleFunc("POST /admin/orders/{orderID}/status", s.adminSetStatus)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := s.plans.List(r.Context())
	if err != nil {
		s.logger.Error("list plans", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"plans": plans})
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	ident, err := s.identity(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req struct {
		Plan   string `json:"plan"`
		Period string `json:"period"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Period == "" {
		req.Period = string(plan.PeriodMonthly)
	}

	o, err := s.orchestrator.CreateOrder(r.Context(), ident, req.Plan, plan.Period(req.Period))
	if err != nil {
		switch {
		case errors.Is(err, checkout.ErrAdminPurchase):
			writeError(w, http.StatusForbidden, "admin accounts do not purchase plans")
		case errors.Is(err, plan.ErrPlanNotFound),
			errors.Is(err, plan.ErrInvalidPriceConfig),
			errors.Is(err, plan.ErrUnknownPeriod):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, gateway.ErrUnavailable), errors.Is(err, checkout.ErrGatewayRejected):
			writeError(w, http.StatusBadGateway, "payment gateway unavailable")
		default:
			s.logger.Error("create order", "err", err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"order_id": o.ID,
		"pay_url":  o.PayURL,
	})
}

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	ident, err := s.identity(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	orders, err := s.orders.ListByUser(r.Context(), ident.UserID)
	if err != nil {
		s.logger.Error("list orders", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

// handleIPN answers the gateway with short acknowledgement strings; 200
// covers processed, already-processed and failure-recorded so the gateway
// stops retrying.
func (s *Server) handleIPN(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeAck(w, http.StatusBadRequest, "unreadable body")
		return
	}

	var payload gateway.CallbackPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		writeAck(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	switch err := s.reconciler.HandleIPN(r.Context(), payload, raw); {
	case err == nil:
		writeAck(w, http.StatusOK, "ok")
	case errors.Is(err, checkout.ErrAlreadyProcessed):
		writeAck(w, http.StatusOK, "already processed")
	case errors.Is(err, checkout.ErrBadSignature):
		writeAck(w, http.StatusBadRequest, "signature mismatch")
	case errors.Is(err, checkout.ErrAmountMismatch):
		writeAck(w, http.StatusBadRequest, "amount mismatch")
	case errors.Is(err, order.ErrOrderNotFound):
		writeAck(w, http.StatusNotFound, "unknown order")
	default:
		s.logger.Error("process ipn", "order_id", payload.OrderID, "err", err)
		writeAck(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) handleReturn(w http.ResponseWriter, r *http.Request) {
	res, err := s.reconciler.HandleReturn(r.Context(), r.URL.Query())
	if err != nil {
		switch {
		case errors.Is(err, checkout.ErrBadPayload):
			writeError(w, http.StatusBadRequest, "malformed return parameters")
		case errors.Is(err, checkout.ErrBadSignature):
			writeError(w, http.StatusBadRequest, "signature mismatch")
		case errors.Is(err, order.ErrOrderNotFound):
			writeError(w, http.StatusNotFound, "unknown order")
		default:
			s.logger.Error("process return", "err", err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) membership(w http.ResponseWriter, r *http.Request) {
	ident, err := s.identity(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var sub *subscription.Subscription
	if !ident.Admin {
		sub, err = s.ledger.Get(r.Context(), ident.UserID)
		if err != nil && !errors.Is(err, subscription.ErrNoSubscription) {
			s.logger.Error("get subscription", "user_id", ident.UserID, "err", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
	}

	writeJSON(w, http.StatusOK, subscription.MembershipOf(sub, ident.Admin, time.Now()))
}

func (s *Server) adminSetStatus(w http.ResponseWriter, r *http.Request) {
	ident, err := s.identity(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !ident.Admin {
		writeError(w, http.StatusForbidden, "admin only")
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	orderID := r.PathValue("orderID")
	switch err := s.reconciler.AdminSetStatus(r.Context(), orderID, order.Status(req.Status)); {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"order_id": orderID, "status": req.Status})
	case errors.Is(err, checkout.ErrAlreadyProcessed):
		writeError(w, http.StatusConflict, "order already paid")
	case errors.Is(err, checkout.ErrBadPayload):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, order.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, "order not found")
	default:
		s.logger.Error("admin set status", "order_id", orderID, "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) identity(r *http.Request) (checkout.Identity, error) {
	value := r.Header.Get("X-User-ID")
	if value == "" {
		return checkout.Identity{}, errors.New("missing X-User-ID header")
	}
	userID, err := uuid.Parse(value)
	if err != nil {
		return checkout.Identity{}, errors.New("invalid X-User-ID header")
	}
	return checkout.Identity{
		UserID: userID,
		Admin:  r.Header.Get("X-User-Admin") == "true",
	}, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeAck(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(msg))
}
