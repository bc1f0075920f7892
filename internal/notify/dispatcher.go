package notify

import (
	"context"
	"time"

	EventBus "github.com/asaskevich/EventBus"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

// TopicEmail задаёт тему шины событий для исходящих писем.
const TopicEmail = "notify:email"

const sendTimeout = 15 * time.Second

// Dispatcher доставляет письма в фоне: публикация не ждёт отправки,
// ошибки доставки только логируются.
type Dispatcher struct {
	bus      EventBus.Bus
	pool     *ants.Pool
	notifier Notifier
	logger   *zap.Logger
	onResult func(ok bool)
}

// NewDispatcher создаёт диспетчер с пулом из workers горутин.
func NewDispatcher(n Notifier, logger *zap.Logger, workers int) (*Dispatcher, error) {
	if workers <= 0 {
		workers = 4
	}

	d := &Dispatcher{
		bus:      EventBus.New(),
		notifier: n,
		logger:   logger,
		onResult: func(bool) {},
	}

	pool, err := ants.NewPool(workers,
		ants.WithNonblocking(true),
		ants.WithPanicHandler(func(p interface{}) {
			d.logger.Error("notification worker panic", zap.Any("panic", p))
		}),
	)
	if err != nil {
		return nil, err
	}
	d.pool = pool

	if err := d.bus.Subscribe(TopicEmail, d.enqueue); err != nil {
		pool.Release()
		return nil, err
	}

	return d, nil
}

// OnResult задаёт обработчик результата каждой отправки.
func (d *Dispatcher) OnResult(fn func(ok bool)) {
	d.onResult = fn
}

// Publish ставит письмо в очередь отправки.
func (d *Dispatcher) Publish(msg Message) {
	d.bus.Publish(TopicEmail, msg)
}

func (d *Dispatcher) enqueue(msg Message) {
	err := d.pool.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()

		if err := d.notifier.Send(ctx, msg.To, msg.Subject, msg.HTML); err != nil {
			d.logger.Warn("failed to send email", zap.String("to", msg.To), zap.Error(err))
			d.onResult(false)
			return
		}
		d.onResult(true)
	})
	if err != nil {
		d.logger.Warn("notification dropped", zap.String("to", msg.To), zap.Error(err))
		d.onResult(false)
	}
}

// Close отписывается от шины и дожидается завершения отправок.
func (d *Dispatcher) Close() error {
	_ = d.bus.Unsubscribe(TopicEmail, d.enqueue)
	return d.pool.ReleaseTimeout(5 * time.Second)
}
