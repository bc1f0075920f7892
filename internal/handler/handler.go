// Package handler содержит HTTP-обработчики API сервиса WashWise.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/mmeshcher/washwise/internal/access"
	"github.com/mmeshcher/washwise/internal/auth"
	"github.com/mmeshcher/washwise/internal/middleware"
	"github.com/mmeshcher/washwise/internal/model"
	"github.com/mmeshcher/washwise/internal/pricing"
	"github.com/mmeshcher/washwise/internal/repository"
	"github.com/mmeshcher/washwise/internal/service"
	"github.com/mmeshcher/washwise/internal/workflow"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, username, email, password string, role model.Role) (*model.User, error)
	Login(ctx context.Context, username, password string) (string, *model.User, error)
	Me(ctx context.Context, actor service.Actor) (*model.User, error)
	ChangePassword(ctx context.Context, actor service.Actor, current, next string) error
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, password string) error
	Subscribe(ctx context.Context, actor service.Actor, userID string, plan model.MembershipPlan) (*model.User, error)
	ListUsers(ctx context.Context, actor service.Actor) ([]model.User, error)
	DeleteUser(ctx context.Context, actor service.Actor, userID string) error
	UserQR(ctx context.Context, actor service.Actor) (string, error)

	CreateOrder(ctx context.Context, actor service.Actor, customerUsername, idempotencyKey string, lines []pricing.Line) (*model.Order, bool, error)
	ListOrders(ctx context.Context, actor service.Actor) ([]model.Order, error)
	GetOrder(ctx context.Context, orderID string) (*model.Order, error)
	PayOrder(ctx context.Context, actor service.Actor, orderID string) (*model.Order, error)
	AdvanceItemStatus(ctx context.Context, actor service.Actor, itemID, status string) (*model.OrderItem, error)
	ActiveOrders(ctx context.Context, actor service.Actor, userID string) ([]model.Order, error)
	ExportOrders(ctx context.Context, actor service.Actor) ([]byte, error)

	NextStatuses(item model.OrderItem) []string
	SystemConfig() service.SystemConfig
}

// Handler реализует HTTP-обработчики API сервиса WashWise.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	qrDir          string
	metrics        http.Handler
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

// WithQRDir включает раздачу файлов QR-кодов из каталога dir.
func (h *Handler) WithQRDir(dir string) *Handler {
	h.qrDir = dir
	return h
}

// WithMetrics публикует метрики по адресу /metrics.
func (h *Handler) WithMetrics(m http.Handler) *Handler {
	h.metrics = m
	return h
}

func actorFromRequest(r *http.Request) (service.Actor, bool) {
	claims, ok := middleware.GetClaimsFromContext(r.Context())
	if !ok {
		return service.Actor{}, false
	}
	return service.Actor{ID: claims.UserID, Role: claims.Role}, true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrCannotDeleteSelf),
		errors.Is(err, service.ErrIncorrectPassword),
		errors.Is(err, service.ErrInvalidResetToken),
		errors.Is(err, service.ErrResetTokenExpired),
		errors.Is(err, pricing.ErrInvalidService),
		errors.Is(err, pricing.ErrInvalidQuantity),
		errors.Is(err, pricing.ErrNoLines),
		errors.Is(err, workflow.ErrUnknownStatus),
		errors.Is(err, workflow.ErrIllegalRegression):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, access.ErrForbidden),
		errors.Is(err, service.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, repository.ErrUserNotFound),
		errors.Is(err, repository.ErrOrderNotFound),
		errors.Is(err, repository.ErrItemNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrUsernameTaken),
		errors.Is(err, repository.ErrEmailTaken),
		errors.Is(err, workflow.ErrUnknownService):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError отвечает кодом, соответствующим ошибке. Внутренние ошибки
// логируются, клиенту уходит только текст статуса.
func (h *Handler) writeError(w http.ResponseWriter, op string, err error, fields ...zap.Field) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		h.logger.Error(op+" error", append(fields, zap.Error(err))...)
		http.Error(w, http.StatusText(code), code)
		return
	}
	writeJSON(w, code, errorResponse{Detail: err.Error()})
}

type errorResponse struct {
	Detail string `json:"detail"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) bool {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v) == nil
}

func badRequest(w http.ResponseWriter) {
	http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
}

func unauthorized(w http.ResponseWriter) {
	http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
}
