package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/washwise/internal/model"
)

type userResponse struct {
	ID                   string         `json:"id"`
	Username             string         `json:"username"`
	Email                string         `json:"email"`
	Role                 string         `json:"role"`
	MembershipPlan       string         `json:"membership_plan"`
	MembershipExpiryDate *string        `json:"membership_expiry_date"`
	MonthlyServicesUsed  map[string]int `json:"monthly_services_used"`
}

func toUserResponse(u *model.User) userResponse {
	resp := userResponse{
		ID:                  u.ID,
		Username:            u.Username,
		Email:               u.Email,
		Role:                string(u.Role),
		MembershipPlan:      string(u.MembershipPlan),
		MonthlyServicesUsed: map[string]int(u.MonthlyUsage.Clone()),
	}
	if u.MembershipExpiry != nil {
		v := u.MembershipExpiry.UTC().Format(time.RFC3339)
		resp.MembershipExpiryDate = &v
	}
	return resp
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// Register обрабатывает регистрацию нового пользователя.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(r, &req) {
		badRequest(w)
		return
	}

	u, err := h.service.RegisterUser(r.Context(), req.Username, req.Email, req.Password, model.Role(req.Role))
	if err != nil {
		h.writeError(w, "register user", err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(u))
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Role        string `json:"role"`
	UserID      string `json:"user_id"`
}

// Login выполняет аутентификацию пользователя и выдаёт токен доступа.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(r, &req) {
		badRequest(w)
		return
	}

	if req.Username == "" || req.Password == "" {
		badRequest(w)
		return
	}

	token, u, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeError(w, "login user", err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: token,
		TokenType:   "bearer",
		Role:        string(u.Role),
		UserID:      u.ID,
	})
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

// ForgotPassword запускает отправку ссылки для сброса пароля.
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if !decodeJSON(r, &req) {
		badRequest(w)
		return
	}

	if err := h.service.RequestPasswordReset(r.Context(), req.Email); err != nil {
		h.writeError(w, "request password reset", err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{
		Message: "If an account with that email exists, a password reset link has been sent.",
	})
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// ResetPassword устанавливает новый пароль по токену сброса.
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !decodeJSON(r, &req) {
		badRequest(w)
		return
	}

	if err := h.service.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		h.writeError(w, "reset password", err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Password has been reset successfully."})
}

// Me возвращает профиль текущего пользователя.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		unauthorized(w)
		return
	}

	u, err := h.service.Me(r.Context(), actor)
	if err != nil {
		h.writeError(w, "get me", err, zap.String("userID", actor.ID))
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(u))
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ChangePassword меняет пароль текущего пользователя.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		unauthorized(w)
		return
	}

	var req changePasswordRequest
	if !decodeJSON(r, &req) {
		badRequest(w)
		return
	}

	if err := h.service.ChangePassword(r.Context(), actor, req.CurrentPassword, req.NewPassword); err != nil {
		h.writeError(w, "change password", err, zap.String("userID", actor.ID))
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Password updated"})
}

type subscribeRequest struct {
	Plan string `json:"plan"`
}

// SelfSubscribe оформляет подписку текущему пользователю.
func (h *Handler) SelfSubscribe(w http.ResponseWriter, r *http.Request) {
	h.subscribe(w, r, "")
}

// SubscribeUser оформляет подписку указанному пользователю.
func (h *Handler) SubscribeUser(w http.ResponseWriter, r *http.Request) {
	h.subscribe(w, r, chi.URLParam(r, "userID"))
}

func (h *Handler) subscribe(w http.ResponseWriter, r *http.Request, userID string) {
	actor, ok := actorFromRequest(r)
	if !ok {
		unauthorized(w)
		return
	}

	var req subscribeRequest
	if !decodeJSON(r, &req) {
		badRequest(w)
		return
	}

	u, err := h.service.Subscribe(r.Context(), actor, userID, model.MembershipPlan(req.Plan))
	if err != nil {
		h.writeError(w, "subscribe", err, zap.String("userID", userID))
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(u))
}

// ListUsers возвращает список пользователей.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		unauthorized(w)
		return
	}

	users, err := h.service.ListUsers(r.Context(), actor)
	if err != nil {
		h.writeError(w, "list users", err)
		return
	}

	resp := make([]userResponse, 0, len(users))
	for i := range users {
		resp = append(resp, toUserResponse(&users[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// DeleteUser удаляет пользователя.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		unauthorized(w)
		return
	}

	userID := chi.URLParam(r, "userID")
	if err := h.service.DeleteUser(r.Context(), actor, userID); err != nil {
		h.writeError(w, "delete user", err, zap.String("userID", userID))
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "User deleted"})
}

// MyQRCode возвращает ссылку на QR-код текущего пользователя.
func (h *Handler) MyQRCode(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		unauthorized(w)
		return
	}

	name, err := h.service.UserQR(r.Context(), actor)
	if err != nil {
		h.writeError(w, "user qr", err, zap.String("userID", actor.ID))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"user_qr": qrURL(name)})
}

type serviceConfigResponse struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

type systemConfigResponse struct {
	Prices     map[string]serviceConfigResponse `json:"prices"`
	Workflows  map[string][]string              `json:"workflows"`
	MonthlyCap int                              `json:"monthly_cap"`
}

// SystemConfig возвращает справочник цен и цепочек статусов.
func (h *Handler) SystemConfig(w http.ResponseWriter, r *http.Request) {
	cfg := h.service.SystemConfig()

	resp := systemConfigResponse{
		Prices:     make(map[string]serviceConfigResponse, len(cfg.Services)),
		Workflows:  make(map[string][]string, len(cfg.Services)),
		MonthlyCap: cfg.MonthlyCap,
	}
	for _, e := range cfg.Services {
		resp.Prices[e.ID] = serviceConfigResponse{Name: e.DisplayName, Price: e.UnitPrice.InexactFloat64()}
		resp.Workflows[e.ID] = append([]string(nil), e.Workflow...)
	}

	writeJSON(w, http.StatusOK, resp)
}
