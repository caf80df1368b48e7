// Package api is the REST surface of the trade server: thin JSON
// handlers over the trading facade, with a uniform error body and the
// brokerage's own messages passed through verbatim.
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"kitetrader/internal/markethours"
	"kitetrader/internal/model"
	"kitetrader/internal/trade"
	"kitetrader/pkg/kiteconnect"
)

// SetCORS sets CORS headers for REST endpoints.
func SetCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/", s.handleHealth)
	mux.HandleFunc("/auth/status", s.handleAuthStatus)
	mux.HandleFunc("/auth/login", s.handleAuthLogin)
	mux.HandleFunc("/auth/logout", s.handleAuthLogout)
	mux.HandleFunc("/trade/buy", s.handleOrder(model.SideBuy))
	mux.HandleFunc("/trade/sell", s.handleOrder(model.SideSell))
	mux.HandleFunc("/trade/positions", s.handlePositions)
	mux.HandleFunc("/trade/journal", s.handleJournal)
	mux.HandleFunc("/market/status", s.handleMarketStatus)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	SetCORS(w)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"service":   "kitetrader",
		"version":   Version,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	SetCORS(w)
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, s.cfg.Facade.Status(time.Now()))
}

// handleAuthLogin triggers the headless TOTP login. Browser-assisted
// login never runs inside a request handler; when TOTP credentials are
// not configured the endpoint says how to authenticate instead.
func (s *Server) handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	SetCORS(w)
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	if s.cfg.Flow == nil || s.cfg.Creds.TOTPSecret == "" {
		writeJSON(w, http.StatusConflict, errorResponse{
			Message: "TOTP auto-login not configured. Run kiteauth for browser login.",
		})
		return
	}

	sess, err := s.cfg.Flow.LoginHeadless(r.Context(), s.cfg.Creds)
	if err != nil {
		log.Printf("[api] headless login failed: %v", err)
		writeError(w, &trade.AuthError{Msg: "login failed: " + err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"user_id":   sess.UserID,
		"user_name": sess.UserName,
	})
}

func (s *Server) handleAuthLogout(w http.ResponseWriter, r *http.Request) {
	SetCORS(w)
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	if err := s.cfg.Facade.Logout(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	if s.cfg.Flow != nil {
		s.cfg.Flow.Invalidate()
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "logged out"})
}

func (s *Server) handleOrder(side string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		if !allowMethod(w, r, http.MethodPost) {
			return
		}
		var dto orderRequestDTO
		if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
			writeError(w, &trade.ValidationError{Msg: "invalid JSON body: " + err.Error()})
			return
		}

		res, err := s.cfg.Facade.PlaceOrder(r.Context(), side, dto.toModel())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	SetCORS(w)
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	pos, err := s.cfg.Facade.Positions(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if pos == nil {
		pos = []kiteconnect.Position{}
	}
	writeJSON(w, http.StatusOK, positionsResponse{Success: true, Count: len(pos), Positions: pos})
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	SetCORS(w)
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	if s.cfg.Journal == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Message: "order journal not enabled"})
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, &trade.ValidationError{Msg: "limit must be a positive integer"})
			return
		}
		limit = n
	}
	records, err := s.cfg.Journal.Recent(limit)
	if err != nil {
		writeError(w, &trade.IOError{Msg: "read journal", Err: err})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"count":   len(records),
		"orders":  records,
	})
}

func (s *Server) handleMarketStatus(w http.ResponseWriter, r *http.Request) {
	SetCORS(w)
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	now := time.Now()
	resp := marketStatusResponse{
		Open:   markethours.IsMarketOpen(now),
		Status: markethours.StatusString(now),
	}
	if resp.Open {
		resp.TodayClose = markethours.TodayClose(now).Format(time.RFC3339)
	} else {
		resp.NextOpen = markethours.NextOpen(now).Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

// allowMethod handles OPTIONS preflight and rejects other methods.
func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return false
	}
	if r.Method != method {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Message: "method not allowed"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[api] encode response: %v", err)
	}
}

// writeError maps the error taxonomy onto HTTP statuses: validation
// 400, auth 401, brokerage rejections by their own type, IO 500.
// Brokerage messages are never rewritten.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	errType := ""

	var kerr *kiteconnect.Error
	switch {
	case trade.IsValidationError(err):
		status = http.StatusBadRequest
		errType = "ValidationError"
	case trade.IsAuthError(err):
		status = http.StatusUnauthorized
		errType = "AuthError"
	case errors.As(err, &kerr):
		errType = kerr.Type
		switch kerr.Type {
		case kiteconnect.InputException:
			status = http.StatusBadRequest
		case kiteconnect.TokenException:
			status = http.StatusForbidden
		case kiteconnect.NetworkException:
			status = http.StatusBadGateway
		default:
			status = http.StatusInternalServerError
		}
		if kerr.Code >= 400 && kerr.Code < 600 {
			status = kerr.Code
		}
	}

	writeJSON(w, status, errorResponse{Message: err.Error(), ErrorType: errType})
}
