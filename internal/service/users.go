package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/mmeshcher/washwise/internal/access"
	"github.com/mmeshcher/washwise/internal/auth"
	"github.com/mmeshcher/washwise/internal/model"
	"github.com/mmeshcher/washwise/internal/notify"
	"github.com/mmeshcher/washwise/internal/qrcode"
	"github.com/mmeshcher/washwise/internal/repository"
	"github.com/mmeshcher/washwise/internal/validation"
)

// RegisterUser регистрирует нового пользователя. Пустая роль означает клиента.
func (s *Service) RegisterUser(ctx context.Context, username, email, password string, role model.Role) (*model.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	if role == "" {
		role = model.RoleCustomer
	}
	switch {
	case !validation.IsValidUsername(username):
		return nil, fmt.Errorf("%w: username", ErrInvalidInput)
	case !validation.IsValidEmail(email):
		return nil, fmt.Errorf("%w: email", ErrInvalidInput)
	case !validation.IsValidPassword(password):
		return nil, fmt.Errorf("%w: password", ErrInvalidInput)
	case !role.Valid():
		return nil, fmt.Errorf("%w: role", ErrInvalidInput)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	u := &model.User{
		Username:       username,
		Email:          email,
		PasswordHash:   hash,
		Role:           role,
		MembershipPlan: model.PlanNone,
	}
	if err := s.repo.CreateUser(ctx, u); err != nil {
		return nil, err
	}

	s.logger.Info("user registered", zap.String("user_id", u.ID), zap.String("role", string(u.Role)))
	return u, nil
}

// Login проверяет имя и пароль и выпускает токен доступа.
func (s *Service) Login(ctx context.Context, username, password string) (string, *model.User, error) {
	u, err := s.repo.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", nil, auth.ErrInvalidCredentials
		}
		return "", nil, err
	}

	if err := auth.VerifyPassword(u.PasswordHash, password); err != nil {
		return "", nil, err
	}

	token, err := s.tokens.Issue(u)
	if err != nil {
		return "", nil, fmt.Errorf("issue token: %w", err)
	}
	return token, u, nil
}

// Me возвращает профиль текущего пользователя.
func (s *Service) Me(ctx context.Context, actor Actor) (*model.User, error) {
	return s.repo.GetUserByID(ctx, actor.ID)
}

// ChangePassword меняет пароль после проверки текущего.
func (s *Service) ChangePassword(ctx context.Context, actor Actor, current, next string) error {
	if !validation.IsValidPassword(next) {
		return fmt.Errorf("%w: password", ErrInvalidInput)
	}

	u, err := s.repo.GetUserByID(ctx, actor.ID)
	if err != nil {
		return err
	}
	if len(u.PasswordHash) == 0 || auth.VerifyPassword(u.PasswordHash, current) != nil {
		return ErrIncorrectPassword
	}

	hash, err := auth.HashPassword(next)
	if err != nil {
		return err
	}
	return s.repo.UpdatePassword(ctx, u.ID, hash)
}

// RequestPasswordReset отправляет ссылку для сброса пароля, если адрес известен.
// Для неизвестного адреса возвращает nil, чтобы не раскрывать наличие учётной записи.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	u, err := s.repo.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil
		}
		return err
	}

	token, err := auth.NewResetToken()
	if err != nil {
		return err
	}
	if err := s.repo.SetResetToken(ctx, u.ID, token, s.now().UTC().Add(ResetTokenTTL)); err != nil {
		return err
	}

	link := fmt.Sprintf("%s/reset-password?token=%s", strings.TrimRight(s.frontendURL, "/"), url.QueryEscape(token))
	s.publish(notify.PasswordResetMessage(u.Email, u.Username, link))
	return nil
}

// ResetPassword устанавливает новый пароль по токену сброса и гасит токен.
func (s *Service) ResetPassword(ctx context.Context, token, password string) error {
	if !validation.IsValidPassword(password) {
		return fmt.Errorf("%w: password", ErrInvalidInput)
	}
	if token == "" {
		return ErrInvalidResetToken
	}

	u, err := s.repo.GetUserByResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrInvalidResetToken
		}
		return err
	}
	if u.ResetTokenExpiry == nil {
		return ErrInvalidResetToken
	}
	if u.ResetTokenExpiry.Before(s.now()) {
		return ErrResetTokenExpired
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	return s.repo.UpdatePassword(ctx, u.ID, hash)
}

// Subscribe оформляет план plan пользователю userID. Менять чужую подписку
// может только сотрудник.
func (s *Service) Subscribe(ctx context.Context, actor Actor, userID string, plan model.MembershipPlan) (*model.User, error) {
	if userID == "" {
		userID = actor.ID
	}
	if userID != actor.ID {
		if err := access.Check(actor.Role, access.ManageSubscriptions); err != nil {
			return nil, err
		}
	}
	if !plan.Valid() {
		return nil, fmt.Errorf("%w: plan %q", ErrInvalidInput, plan)
	}

	now := s.now()
	u, err := s.repo.UpdateSubscription(ctx, userID, func(u *model.User) {
		s.policy.Purchase(u, plan, now)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("subscription updated",
		zap.String("user_id", u.ID), zap.String("plan", string(plan)), zap.String("by", actor.ID))
	return u, nil
}

// ListUsers возвращает всех пользователей.
func (s *Service) ListUsers(ctx context.Context, actor Actor) ([]model.User, error) {
	if err := access.Check(actor.Role, access.ListUsers); err != nil {
		return nil, err
	}
	return s.repo.ListUsers(ctx)
}

// DeleteUser удаляет пользователя вместе с заказами.
func (s *Service) DeleteUser(ctx context.Context, actor Actor, userID string) error {
	if err := access.Check(actor.Role, access.DeleteUser); err != nil {
		return err
	}
	if userID == actor.ID {
		return ErrCannotDeleteSelf
	}
	if err := s.repo.DeleteUser(ctx, userID); err != nil {
		return err
	}
	s.logger.Info("user deleted", zap.String("user_id", userID), zap.String("by", actor.ID))
	return nil
}

// UserQR возвращает имя файла QR-кода текущего пользователя, создавая его при необходимости.
func (s *Service) UserQR(ctx context.Context, actor Actor) (string, error) {
	u, err := s.repo.GetUserByID(ctx, actor.ID)
	if err != nil {
		return "", err
	}
	if s.qr == nil {
		return "", errors.New("qr rendering disabled")
	}

	name, err := s.qr.Render(map[string]string{"user_id": u.ID}, qrcode.UserFileName(u.ID))
	if err != nil {
		return "", err
	}
	if u.QRReference != name {
		if err := s.repo.SetUserQR(ctx, u.ID, name); err != nil {
			return "", err
		}
	}
	return name, nil
}
