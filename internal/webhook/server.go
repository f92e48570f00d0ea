// Package webhook serves the push-mode notify endpoints. When the panel can
// reach the bot directly, it posts status changes here instead of waiting
// for a reconciliation cycle.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"log/slog"

	"github.com/parnamyadak/partsbot/internal/domain"
	"github.com/parnamyadak/partsbot/internal/logger"
	"github.com/parnamyadak/partsbot/internal/notify"
	"github.com/parnamyadak/partsbot/internal/store"
)

// Server handles panel push notifications.
type Server struct {
	notifier *notify.Notifier
	store    store.Store
	addr     string
}

// New builds a Server listening on listen:port.
func New(notifier *notify.Notifier, st store.Store, listen string, port int) *Server {
	return &Server{
		notifier: notifier,
		store:    st,
		addr:     fmt.Sprintf("%s:%d", listen, port),
	}
}

// Handler returns the HTTP handler for the notify endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/mechanic_status_notify", s.handleMechanicStatus)
	mux.HandleFunc("/api/order_status_notify", s.handleOrderStatus)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "webhook", "notify.listen",
			slog.String("listen", s.addr),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("notify server shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("notify server: %w", err)
	}
}

type mechanicStatusPayload struct {
	TelegramID int64   `json:"telegram_id"`
	Status     string  `json:"status"`
	Commission float64 `json:"commission_percentage"`
}

func (s *Server) handleMechanicStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeInvalid(w)
		return
	}
	var payload mechanicStatusPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.TelegramID == 0 {
		writeInvalid(w)
		return
	}
	state, err := domain.ParseUserState(payload.Status)
	if err != nil {
		writeInvalid(w)
		return
	}

	ctx := r.Context()
	status := domain.UserStatus{TelegramID: payload.TelegramID, Role: domain.RoleMechanic, State: state}
	if existing, err := s.store.UserStatus(payload.TelegramID); err == nil && existing.Role != "" {
		status.Role = existing.Role
	}
	if err := s.store.SetUserStatus(status); err != nil {
		logger.Error(ctx, "webhook", "user.status.persist",
			slog.Int64("user_id", payload.TelegramID),
			slog.String("err", err.Error()),
		)
	}
	if err := s.notifier.UserStateChanged(ctx, payload.TelegramID, state, payload.Commission); err != nil {
		logger.Error(ctx, "webhook", "notify.user",
			slog.Int64("user_id", payload.TelegramID),
			slog.String("err", err.Error()),
		)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "Notification failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type orderStatusPayload struct {
	TelegramID int64  `json:"telegram_id"`
	OrderID    int64  `json:"order_id"`
	Status     string `json:"status"`
}

func (s *Server) handleOrderStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeInvalid(w)
		return
	}
	var payload orderStatusPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil ||
		payload.TelegramID == 0 || payload.OrderID == 0 {
		writeInvalid(w)
		return
	}
	status, err := domain.ParseOrderStatus(payload.Status)
	if err != nil {
		writeInvalid(w)
		return
	}

	ctx := r.Context()
	if err := s.notifier.OrderStatusChanged(ctx, payload.TelegramID, payload.OrderID, status, nil); err != nil {
		logger.Error(ctx, "webhook", "notify.order",
			slog.Int64("order_id", payload.OrderID),
			slog.String("err", err.Error()),
		)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "Notification failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Bot is running!"))
}

func writeInvalid(w http.ResponseWriter) {
	writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "Invalid data"})
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
