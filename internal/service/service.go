// Package service реализует бизнес-логику сервиса WashWise.
package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/washwise/internal/catalog"
	"github.com/mmeshcher/washwise/internal/metrics"
	"github.com/mmeshcher/washwise/internal/model"
	"github.com/mmeshcher/washwise/internal/notify"
	"github.com/mmeshcher/washwise/internal/pricing"
	"github.com/mmeshcher/washwise/internal/repository"
	"github.com/mmeshcher/washwise/internal/subscription"
	"github.com/mmeshcher/washwise/internal/workflow"
)

var (
	// ErrInvalidInput возвращается для некорректных входных данных.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotOwner возвращается, если заказ принадлежит другому пользователю.
	ErrNotOwner = errors.New("not your order")
	// ErrCannotDeleteSelf возвращается при попытке удалить собственную учётную запись.
	ErrCannotDeleteSelf = errors.New("cannot delete yourself")
	// ErrIncorrectPassword возвращается, если текущий пароль указан неверно.
	ErrIncorrectPassword = errors.New("incorrect current password")
	// ErrInvalidResetToken возвращается для неизвестного токена сброса.
	ErrInvalidResetToken = errors.New("invalid reset token")
	// ErrResetTokenExpired возвращается для просроченного токена сброса.
	ErrResetTokenExpired = errors.New("reset token expired")
)

// ResetTokenTTL задаёт срок действия ссылки для сброса пароля.
const ResetTokenTTL = 15 * time.Minute

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error

	CreateUser(ctx context.Context, u *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByResetToken(ctx context.Context, token string) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	DeleteUser(ctx context.Context, id string) error
	UpdatePassword(ctx context.Context, id string, hash []byte) error
	SetResetToken(ctx context.Context, id, token string, expiry time.Time) error
	PurgeExpiredResetTokens(ctx context.Context, now time.Time) (int64, error)
	SetUserQR(ctx context.Context, id, ref string) error
	UpdateSubscription(ctx context.Context, userID string, apply func(u *model.User)) (*model.User, error)

	CreateOrder(ctx context.Context, ownerID, idempotencyKey string, build repository.BuildOrderFunc) (*model.Order, bool, error)
	GetOrder(ctx context.Context, id string) (*model.Order, error)
	GetOrdersByUser(ctx context.Context, userID string) ([]model.Order, error)
	ListOrders(ctx context.Context) ([]model.Order, error)
	SetOrderQR(ctx context.Context, id, ref string) error
	MarkOrderPaid(ctx context.Context, id string) error
	UpdateItemStatus(ctx context.Context, itemID string, apply repository.ApplyItemFunc) (*model.OrderItem, bool, error)
}

// TokenIssuer выпускает bearer-токены.
type TokenIssuer interface {
	Issue(u *model.User) (string, error)
}

// Publisher ставит письмо в очередь отправки, не дожидаясь доставки.
type Publisher interface {
	Publish(msg notify.Message)
}

// QRRenderer сохраняет QR-код с полезной нагрузкой payload в файл name.
type QRRenderer interface {
	Render(payload any, name string) (string, error)
}

// Actor описывает аутентифицированного пользователя, выполняющего операцию.
type Actor struct {
	ID   string
	Role model.Role
}

// Options содержит зависимости сервиса. Незаданные поля получают значения по умолчанию.
type Options struct {
	Catalog       *catalog.Catalog
	Policy        *subscription.Policy
	Tokens        TokenIssuer
	Notifications Publisher
	QR            QRRenderer
	Metrics       *metrics.Metrics
	Logger        *zap.Logger
	FrontendURL   string
	Now           func() time.Time
}

// Service содержит бизнес-логику сервиса WashWise.
type Service struct {
	repo        Repository
	catalog     *catalog.Catalog
	policy      *subscription.Policy
	pricing     *pricing.Engine
	workflow    *workflow.Engine
	tokens      TokenIssuer
	notify      Publisher
	qr          QRRenderer
	metrics     *metrics.Metrics
	logger      *zap.Logger
	frontendURL string
	now         func() time.Time
}

// NewService создаёт новый сервис с указанным репозиторием и зависимостями.
func NewService(repo Repository, opts Options) *Service {
	if opts.Catalog == nil {
		opts.Catalog = catalog.Default()
	}
	if opts.Policy == nil {
		opts.Policy = subscription.DefaultPolicy()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Service{
		repo:        repo,
		catalog:     opts.Catalog,
		policy:      opts.Policy,
		pricing:     pricing.NewEngine(opts.Catalog, opts.Policy).WithClock(opts.Now),
		workflow:    workflow.NewEngine(opts.Catalog),
		tokens:      opts.Tokens,
		notify:      opts.Notifications,
		qr:          opts.QR,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
		frontendURL: opts.FrontendURL,
		now:         opts.Now,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// NextStatuses возвращает статусы, в которые ещё может перейти позиция.
func (s *Service) NextStatuses(item model.OrderItem) []string {
	return s.workflow.NextStatuses(item)
}

// SystemConfig описывает справочник услуг и параметры подписки.
type SystemConfig struct {
	Services   []catalog.Entry
	MonthlyCap int
}

// SystemConfig возвращает справочник услуг и лимит подписки.
func (s *Service) SystemConfig() SystemConfig {
	return SystemConfig{
		Services:   s.catalog.Entries(),
		MonthlyCap: s.policy.MonthlyCap(),
	}
}

func (s *Service) publish(msg notify.Message) {
	if s.notify == nil {
		s.logger.Warn("notifications disabled, dropping email", zap.String("to", msg.To))
		return
	}
	s.notify.Publish(msg)
}
