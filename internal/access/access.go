// Package access централизует проверки прав по роли пользователя.
package access

import (
	"errors"
	"fmt"

	"github.com/mmeshcher/washwise/internal/model"
)

// ErrForbidden возвращается, если роли не разрешено действие.
var ErrForbidden = errors.New("forbidden")

// Action описывает операцию, требующую проверки прав.
type Action string

const (
	CreateOrder         Action = "create_order"
	AdvanceStatus       Action = "advance_status"
	ManageSubscriptions Action = "manage_subscriptions"
	ListUsers           Action = "list_users"
	DeleteUser          Action = "delete_user"
	ViewAllOrders       Action = "view_all_orders"
	ViewCustomerOrders  Action = "view_customer_orders"
	ExportOrders        Action = "export_orders"
)

var grants = map[model.Role]map[Action]struct{}{
	model.RoleServiceman: {
		CreateOrder:         {},
		AdvanceStatus:       {},
		ManageSubscriptions: {},
		ListUsers:           {},
		DeleteUser:          {},
		ViewAllOrders:       {},
		ViewCustomerOrders:  {},
		ExportOrders:        {},
	},
	model.RoleCustomer: {},
}

// Can сообщает, разрешено ли роли действие.
func Can(role model.Role, action Action) bool {
	_, ok := grants[role][action]
	return ok
}

// Check возвращает ErrForbidden, если роли не разрешено действие.
func Check(role model.Role, action Action) error {
	if !Can(role, action) {
		return fmt.Errorf("%w: %s cannot %s", ErrForbidden, role, action)
	}
	return nil
}
