// Package workflow проверяет и применяет переходы статусов позиций заказа.
package workflow

import (
	"errors"
	"fmt"

	"github.com/mmeshcher/washwise/internal/catalog"
	"github.com/mmeshcher/washwise/internal/model"
)

var (
	// ErrUnknownService возвращается, если услуги позиции нет в справочнике.
	ErrUnknownService = errors.New("unknown service")
	// ErrUnknownStatus возвращается для статуса вне цепочки услуги.
	ErrUnknownStatus = errors.New("unknown status")
	// ErrIllegalRegression возвращается при попытке вернуть позицию на предыдущий статус.
	ErrIllegalRegression = errors.New("cannot revert to a previous status")
)

// Engine применяет переходы по цепочкам статусов справочника.
type Engine struct {
	catalog *catalog.Catalog
}

// NewEngine создаёт движок статусов.
func NewEngine(c *catalog.Catalog) *Engine {
	return &Engine{catalog: c}
}

// Advance переводит позицию в статус requested. Переход допустим только вперёд
// по цепочке (пропуск промежуточных статусов разрешён); переход в текущий
// статус ничего не меняет и возвращает changed == false.
func (e *Engine) Advance(item *model.OrderItem, requested string) (bool, error) {
	entry, ok := e.catalog.Get(item.ServiceID)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownService, item.ServiceID)
	}

	next := entry.IndexOf(requested)
	if next < 0 {
		return false, fmt.Errorf("%w: %q for %s", ErrUnknownStatus, requested, item.ServiceID)
	}

	cur := entry.IndexOf(item.Status)
	if cur < 0 {
		return false, fmt.Errorf("%w: current %q for %s", ErrUnknownStatus, item.Status, item.ServiceID)
	}

	if next < cur {
		return false, fmt.Errorf("%w: %s -> %s", ErrIllegalRegression, item.Status, requested)
	}
	if next == cur {
		return false, nil
	}

	item.Status = requested
	return true, nil
}

// IsTerminal сообщает, достигла ли позиция последнего статуса.
func (e *Engine) IsTerminal(item model.OrderItem) bool {
	entry, ok := e.catalog.Get(item.ServiceID)
	if !ok {
		return false
	}
	return item.Status == entry.TerminalStatus()
}

// NextStatuses возвращает статусы, в которые позицию ещё можно перевести.
func (e *Engine) NextStatuses(item model.OrderItem) []string {
	entry, ok := e.catalog.Get(item.ServiceID)
	if !ok {
		return []string{}
	}
	return entry.NextStatuses(item.Status)
}
