package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/mmeshcher/washwise/internal/access"
	"github.com/mmeshcher/washwise/internal/model"
	"github.com/mmeshcher/washwise/internal/notify"
	"github.com/mmeshcher/washwise/internal/pricing"
	"github.com/mmeshcher/washwise/internal/qrcode"
	"github.com/mmeshcher/washwise/internal/report"
)

// CreateOrder создаёт заказ клиента customerUsername. Повтор с тем же
// idempotencyKey возвращает исходный заказ и created == false.
func (s *Service) CreateOrder(ctx context.Context, actor Actor, customerUsername, idempotencyKey string, lines []pricing.Line) (*model.Order, bool, error) {
	if err := access.Check(actor.Role, access.CreateOrder); err != nil {
		return nil, false, err
	}
	if err := s.pricing.Validate(lines); err != nil {
		return nil, false, err
	}

	owner, err := s.repo.GetUserByUsername(ctx, strings.TrimSpace(customerUsername))
	if err != nil {
		return nil, false, err
	}

	order, created, err := s.repo.CreateOrder(ctx, owner.ID, idempotencyKey, func(locked *model.User) (*model.Order, error) {
		return s.pricing.Price(locked, lines)
	})
	if err != nil {
		return nil, false, err
	}

	if !created {
		s.logger.Info("order replayed by idempotency key",
			zap.String("order_id", order.ID), zap.String("key", idempotencyKey))
		return order, false, nil
	}

	s.metrics.OrderCreated(order.FullyPlanCovered)
	s.logger.Info("order created",
		zap.String("order_id", order.ID),
		zap.String("owner_id", owner.ID),
		zap.String("total", order.TotalCost.StringFixed(2)),
		zap.Bool("fully_plan_covered", order.FullyPlanCovered),
	)

	s.attachOrderQR(ctx, order)
	return order, true, nil
}

// attachOrderQR рисует QR-код заказа. Ошибка не отменяет созданный заказ.
func (s *Service) attachOrderQR(ctx context.Context, order *model.Order) {
	if s.qr == nil {
		return
	}

	name, err := s.qr.Render(map[string]string{"order_id": order.ID}, qrcode.OrderFileName(order.ID))
	if err != nil {
		s.logger.Warn("failed to render order qr", zap.String("order_id", order.ID), zap.Error(err))
		return
	}
	if err := s.repo.SetOrderQR(ctx, order.ID, name); err != nil {
		s.logger.Warn("failed to save order qr", zap.String("order_id", order.ID), zap.Error(err))
		return
	}
	order.QRReference = name
}

// ListOrders возвращает заказы клиента либо все заказы для сотрудника.
func (s *Service) ListOrders(ctx context.Context, actor Actor) ([]model.Order, error) {
	if access.Can(actor.Role, access.ViewAllOrders) {
		return s.repo.ListOrders(ctx)
	}
	return s.repo.GetOrdersByUser(ctx, actor.ID)
}

// GetOrder возвращает заказ по идентификатору из QR-кода.
func (s *Service) GetOrder(ctx context.Context, orderID string) (*model.Order, error) {
	return s.repo.GetOrder(ctx, orderID)
}

// PayOrder отмечает заказ оплаченным. Оплатить можно только свой заказ.
func (s *Service) PayOrder(ctx context.Context, actor Actor, orderID string) (*model.Order, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != actor.ID {
		return nil, ErrNotOwner
	}

	if order.PaymentStatus != model.PaymentPaid {
		if err := s.repo.MarkOrderPaid(ctx, order.ID); err != nil {
			return nil, err
		}
		order.PaymentStatus = model.PaymentPaid
		s.logger.Info("order paid", zap.String("order_id", order.ID))
	}
	return order, nil
}

// AdvanceItemStatus переводит позицию заказа в статус status. При фактической
// смене статуса владельцу отправляется письмо; ошибка отправки не влияет на результат.
func (s *Service) AdvanceItemStatus(ctx context.Context, actor Actor, itemID, status string) (*model.OrderItem, error) {
	if err := access.Check(actor.Role, access.AdvanceStatus); err != nil {
		return nil, err
	}

	item, changed, err := s.repo.UpdateItemStatus(ctx, itemID, func(it *model.OrderItem) (bool, error) {
		return s.workflow.Advance(it, status)
	})
	if err != nil {
		return nil, err
	}
	if !changed {
		return item, nil
	}

	s.metrics.ItemTransition(item.ServiceID)
	s.logger.Info("item status changed",
		zap.String("item_id", item.ID), zap.String("status", item.Status), zap.String("by", actor.ID))

	s.notifyStatusChange(ctx, item)
	return item, nil
}

func (s *Service) notifyStatusChange(ctx context.Context, item *model.OrderItem) {
	order, err := s.repo.GetOrder(ctx, item.OrderID)
	if err != nil {
		s.logger.Warn("status email skipped: order lookup failed", zap.String("order_id", item.OrderID), zap.Error(err))
		return
	}
	owner, err := s.repo.GetUserByID(ctx, order.UserID)
	if err != nil {
		s.logger.Warn("status email skipped: owner lookup failed", zap.String("user_id", order.UserID), zap.Error(err))
		return
	}
	if owner.Email == "" {
		return
	}

	serviceName := item.ServiceID
	if entry, ok := s.catalog.Get(item.ServiceID); ok {
		serviceName = entry.DisplayName
	}
	s.publish(notify.StatusChangedMessage(owner.Email, owner.Username, order.ID, serviceName, item.Status))
}

// ActiveOrders возвращает заказы клиента, в которых есть незавершённые позиции.
func (s *Service) ActiveOrders(ctx context.Context, actor Actor, userID string) ([]model.Order, error) {
	if err := access.Check(actor.Role, access.ViewCustomerOrders); err != nil {
		return nil, err
	}

	orders, err := s.repo.GetOrdersByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	active := make([]model.Order, 0, len(orders))
	for _, o := range orders {
		for _, it := range o.Items {
			if !s.workflow.IsTerminal(it) {
				active = append(active, o)
				break
			}
		}
	}
	return active, nil
}

// ExportOrders выгружает все заказы в XLSX.
func (s *Service) ExportOrders(ctx context.Context, actor Actor) ([]byte, error) {
	if err := access.Check(actor.Role, access.ExportOrders); err != nil {
		return nil, err
	}

	orders, err := s.repo.ListOrders(ctx)
	if err != nil {
		return nil, err
	}
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	usernames := make(map[string]string, len(users))
	for _, u := range users {
		usernames[u.ID] = u.Username
	}
	return report.OrdersXLSX(orders, usernames)
}
