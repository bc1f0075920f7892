// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/washwise/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var (
	// ErrUsernameTaken возвращается при попытке создать пользователя с занятым именем.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrEmailTaken возвращается при попытке создать пользователя с занятым адресом.
	ErrEmailTaken = errors.New("email already exists")
	// ErrUserNotFound возвращается, если пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrOrderNotFound возвращается, если заказ не найден.
	ErrOrderNotFound = errors.New("order not found")
	// ErrItemNotFound возвращается, если позиция заказа не найдена.
	ErrItemNotFound = errors.New("order item not found")
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

func toCents(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

func fromCents(c int64) decimal.Decimal {
	return decimal.New(c, -2)
}

const userColumns = `id, username, email, password_hash, role, membership_plan,
	membership_expiry, COALESCE(qr_reference, ''), COALESCE(reset_token, ''), reset_token_expiry, created_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var (
		u    model.User
		role string
		plan string
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &role, &plan,
		&u.MembershipExpiry, &u.QRReference, &u.ResetToken, &u.ResetTokenExpiry, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.Role = model.Role(role)
	u.MembershipPlan = model.MembershipPlan(plan)
	return &u, nil
}

func loadUsage(ctx context.Context, q querier, userID string) (model.Usage, error) {
	rows, err := q.Query(ctx, `SELECT service_id, used FROM service_usage WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("select usage: %w", err)
	}
	defer rows.Close()

	usage := model.Usage{}
	for rows.Next() {
		var (
			serviceID string
			used      int
		)
		if err := rows.Scan(&serviceID, &used); err != nil {
			return nil, fmt.Errorf("scan usage: %w", err)
		}
		usage[serviceID] = used
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return usage, nil
}

// saveUsage заменяет счётчики пользователя переданными значениями.
func saveUsage(ctx context.Context, q querier, userID string, usage model.Usage) error {
	if _, err := q.Exec(ctx, `DELETE FROM service_usage WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("clear usage: %w", err)
	}
	for serviceID, used := range usage {
		_, err := q.Exec(ctx,
			`INSERT INTO service_usage (user_id, service_id, used) VALUES ($1, $2, $3)`,
			userID, serviceID, used,
		)
		if err != nil {
			return fmt.Errorf("insert usage: %w", err)
		}
	}
	return nil
}

func (r *PostgresRepository) getUser(ctx context.Context, q querier, where string, arg any) (*model.User, error) {
	u, err := scanUser(q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg))
	if err != nil {
		return nil, err
	}
	u.MonthlyUsage, err = loadUsage(ctx, q, u.ID)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// CreateUser создаёт нового пользователя и присваивает ему идентификатор.
func (r *PostgresRepository) CreateUser(ctx context.Context, u *model.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.MembershipPlan == "" {
		u.MembershipPlan = model.PlanNone
	}

	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (id, username, email, password_hash, role, membership_plan)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at`,
		u.ID, u.Username, u.Email, u.PasswordHash, string(u.Role), string(u.MembershipPlan),
	).Scan(&u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			if pgErr.ConstraintName == "users_email_key" {
				return fmt.Errorf("%w: %s", ErrEmailTaken, u.Email)
			}
			return fmt.Errorf("%w: %s", ErrUsernameTaken, u.Username)
		}
		return fmt.Errorf("create user: %w", err)
	}
	u.MonthlyUsage = model.Usage{}
	return nil
}

// GetUserByID возвращает пользователя по идентификатору.
func (r *PostgresRepository) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return r.getUser(ctx, r.pool, `id = $1`, id)
}

// GetUserByUsername возвращает пользователя по имени.
func (r *PostgresRepository) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.getUser(ctx, r.pool, `username = $1`, username)
}

// GetUserByEmail возвращает пользователя по адресу почты.
func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getUser(ctx, r.pool, `email = $1`, email)
}

// GetUserByResetToken возвращает пользователя по токену сброса пароля.
func (r *PostgresRepository) GetUserByResetToken(ctx context.Context, token string) (*model.User, error) {
	return r.getUser(ctx, r.pool, `reset_token = $1`, token)
}

// ListUsers возвращает всех пользователей.
func (r *PostgresRepository) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("select users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	usage, err := r.usageByUser(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		users[i].MonthlyUsage = usage[users[i].ID]
		if users[i].MonthlyUsage == nil {
			users[i].MonthlyUsage = model.Usage{}
		}
	}

	return users, nil
}

func (r *PostgresRepository) usageByUser(ctx context.Context) (map[string]model.Usage, error) {
	rows, err := r.pool.Query(ctx, `SELECT user_id, service_id, used FROM service_usage`)
	if err != nil {
		return nil, fmt.Errorf("select usage: %w", err)
	}
	defer rows.Close()

	res := make(map[string]model.Usage)
	for rows.Next() {
		var (
			userID, serviceID string
			used              int
		)
		if err := rows.Scan(&userID, &serviceID, &used); err != nil {
			return nil, fmt.Errorf("scan usage: %w", err)
		}
		if res[userID] == nil {
			res[userID] = model.Usage{}
		}
		res[userID][serviceID] = used
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// DeleteUser удаляет пользователя вместе с его заказами.
func (r *PostgresRepository) DeleteUser(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// UpdatePassword сохраняет новый хеш пароля и аннулирует токен сброса.
func (r *PostgresRepository) UpdatePassword(ctx context.Context, id string, hash []byte) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET password_hash = $2, reset_token = NULL, reset_token_expiry = NULL WHERE id = $1`,
		id, hash,
	)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SetResetToken сохраняет токен сброса пароля и срок его действия.
func (r *PostgresRepository) SetResetToken(ctx context.Context, id, token string, expiry time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET reset_token = $2, reset_token_expiry = $3 WHERE id = $1`,
		id, token, expiry,
	)
	if err != nil {
		return fmt.Errorf("set reset token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// PurgeExpiredResetTokens удаляет просроченные токены сброса пароля.
func (r *PostgresRepository) PurgeExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET reset_token = NULL, reset_token_expiry = NULL
		 WHERE reset_token IS NOT NULL AND reset_token_expiry < $1`,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("purge reset tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

// SetUserQR сохраняет ссылку на QR-код пользователя.
func (r *PostgresRepository) SetUserQR(ctx context.Context, id, ref string) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET qr_reference = $2 WHERE id = $1`, id, ref)
	if err != nil {
		return fmt.Errorf("set user qr: %w", err)
	}
	return nil
}

// UpdateSubscription меняет план пользователя под блокировкой строки.
// Функция apply получает актуальное состояние и изменяет план, срок и счётчики.
func (r *PostgresRepository) UpdateSubscription(ctx context.Context, userID string, apply func(u *model.User)) (*model.User, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	u, err := r.getUser(ctx, tx, `id = $1 FOR UPDATE`, userID)
	if err != nil {
		return nil, err
	}

	apply(u)

	_, err = tx.Exec(ctx,
		`UPDATE users SET membership_plan = $2, membership_expiry = $3 WHERE id = $1`,
		u.ID, string(u.MembershipPlan), u.MembershipExpiry,
	)
	if err != nil {
		return nil, fmt.Errorf("update subscription: %w", err)
	}

	if err := saveUsage(ctx, tx, u.ID, u.MonthlyUsage); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return u, nil
}

// BuildOrderFunc рассчитывает заказ для владельца и обновляет его счётчики.
type BuildOrderFunc func(owner *model.User) (*model.Order, error)

// CreateOrder создаёт заказ в одной транзакции с обновлением счётчиков подписки.
// Строка владельца блокируется, поэтому параллельные заказы одного клиента
// расходуют лимит последовательно. Повтор с тем же ключом идемпотентности
// возвращает ранее созданный заказ и created == false.
func (r *PostgresRepository) CreateOrder(ctx context.Context, ownerID, idempotencyKey string, build BuildOrderFunc) (*model.Order, bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	owner, err := r.getUser(ctx, tx, `id = $1 FOR UPDATE`, ownerID)
	if err != nil {
		return nil, false, err
	}

	if idempotencyKey != "" {
		var existingID string
		err := tx.QueryRow(ctx,
			`SELECT id FROM orders WHERE user_id = $1 AND idempotency_key = $2`,
			ownerID, idempotencyKey,
		).Scan(&existingID)
		if err == nil {
			order, err := r.getOrder(ctx, tx, existingID)
			if err != nil {
				return nil, false, err
			}
			return order, false, tx.Commit(ctx)
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, false, fmt.Errorf("select existing order: %w", err)
		}
	}

	order, err := build(owner)
	if err != nil {
		return nil, false, err
	}

	order.ID = uuid.NewString()
	order.UserID = owner.ID
	order.IdempotencyKey = idempotencyKey

	var key *string
	if idempotencyKey != "" {
		key = &idempotencyKey
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO orders (id, user_id, total_cost, payment_status, fully_plan_covered, idempotency_key)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at`,
		order.ID, order.UserID, toCents(order.TotalCost), string(order.PaymentStatus), order.FullyPlanCovered, key,
	).Scan(&order.CreatedAt)
	if err != nil {
		return nil, false, fmt.Errorf("insert order: %w", err)
	}

	for i := range order.Items {
		it := &order.Items[i]
		it.ID = uuid.NewString()
		it.OrderID = order.ID
		_, err := tx.Exec(ctx,
			`INSERT INTO order_items (id, order_id, position, service_id, quantity, unit_price, cost, covered, status)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			it.ID, it.OrderID, i, it.ServiceID, it.Quantity, toCents(it.UnitPrice), toCents(it.Cost), it.Covered, it.Status,
		)
		if err != nil {
			return nil, false, fmt.Errorf("insert order item: %w", err)
		}
	}

	if err := saveUsage(ctx, tx, owner.ID, owner.MonthlyUsage); err != nil {
		return nil, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("commit tx: %w", err)
	}

	return order, true, nil
}

const orderColumns = `id, user_id, created_at, total_cost, payment_status, fully_plan_covered,
	COALESCE(qr_reference, ''), COALESCE(idempotency_key, '')`

func scanOrder(row pgx.Row) (*model.Order, error) {
	var (
		o      model.Order
		total  int64
		status string
	)
	err := row.Scan(&o.ID, &o.UserID, &o.CreatedAt, &total, &status, &o.FullyPlanCovered, &o.QRReference, &o.IdempotencyKey)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}
	o.TotalCost = fromCents(total)
	o.PaymentStatus = model.PaymentStatus(status)
	return &o, nil
}

const itemColumns = `id, order_id, service_id, quantity, unit_price, cost, covered, status`

func scanItem(row pgx.Row) (*model.OrderItem, error) {
	var (
		it         model.OrderItem
		unit, cost int64
	)
	if err := row.Scan(&it.ID, &it.OrderID, &it.ServiceID, &it.Quantity, &unit, &cost, &it.Covered, &it.Status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("scan order item: %w", err)
	}
	it.UnitPrice = fromCents(unit)
	it.Cost = fromCents(cost)
	return &it, nil
}

func (r *PostgresRepository) getOrder(ctx context.Context, q querier, id string) (*model.Order, error) {
	o, err := scanOrder(q.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	orders := []model.Order{*o}
	if err := r.attachItems(ctx, q, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

func (r *PostgresRepository) attachItems(ctx context.Context, q querier, orders []model.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]string, len(orders))
	index := make(map[string]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
	}

	rows, err := q.Query(ctx,
		`SELECT `+itemColumns+` FROM order_items WHERE order_id = ANY($1) ORDER BY order_id, position`,
		ids,
	)
	if err != nil {
		return fmt.Errorf("select order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return err
		}
		i := index[it.OrderID]
		orders[i].Items = append(orders[i].Items, *it)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) listOrders(ctx context.Context, where string, args ...any) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders `+where+` ORDER BY created_at DESC`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	if err := r.attachItems(ctx, r.pool, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// GetOrder возвращает заказ вместе с позициями.
func (r *PostgresRepository) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	return r.getOrder(ctx, r.pool, id)
}

// GetOrdersByUser возвращает заказы пользователя, новые первыми.
func (r *PostgresRepository) GetOrdersByUser(ctx context.Context, userID string) ([]model.Order, error) {
	return r.listOrders(ctx, `WHERE user_id = $1`, userID)
}

// ListOrders возвращает все заказы, новые первыми.
func (r *PostgresRepository) ListOrders(ctx context.Context) ([]model.Order, error) {
	return r.listOrders(ctx, ``)
}

// SetOrderQR сохраняет ссылку на QR-код заказа.
func (r *PostgresRepository) SetOrderQR(ctx context.Context, id, ref string) error {
	_, err := r.pool.Exec(ctx, `UPDATE orders SET qr_reference = $2 WHERE id = $1`, id, ref)
	if err != nil {
		return fmt.Errorf("set order qr: %w", err)
	}
	return nil
}

// MarkOrderPaid отмечает заказ оплаченным.
func (r *PostgresRepository) MarkOrderPaid(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE orders SET payment_status = $2 WHERE id = $1`,
		id, string(model.PaymentPaid),
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// ApplyItemFunc проверяет и применяет переход статуса позиции.
type ApplyItemFunc func(item *model.OrderItem) (bool, error)

// UpdateItemStatus меняет статус позиции под блокировкой строки: параллельные
// обновления одной позиции проверяются последовательно.
func (r *PostgresRepository) UpdateItemStatus(ctx context.Context, itemID string, apply ApplyItemFunc) (*model.OrderItem, bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	item, err := scanItem(tx.QueryRow(ctx,
		`SELECT `+itemColumns+` FROM order_items WHERE id = $1 FOR UPDATE`,
		itemID,
	))
	if err != nil {
		return nil, false, err
	}

	changed, err := apply(item)
	if err != nil {
		return nil, false, err
	}
	if !changed {
		return item, false, tx.Commit(ctx)
	}

	if _, err := tx.Exec(ctx, `UPDATE order_items SET status = $2 WHERE id = $1`, item.ID, item.Status); err != nil {
		return nil, false, fmt.Errorf("update order item: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("commit tx: %w", err)
	}

	return item, true, nil
}
