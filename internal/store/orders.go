package store

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/jogardn/laptop-store/internal/pagination"
	"github.com/jogardn/laptop-store/pkg/models"
)

const (
	ordersTable   = "orders"
	orderIDColumn = "o_id"
)

var orderColumns = []string{"o_id", "o_date", "o_total", "o_shipping_address"}

type OrderStore struct {
	db   *sql.DB
	opts Options
}

func NewOrderStore(db *sql.DB, opts Options) *OrderStore {
	return &OrderStore{db: db, opts: opts}
}

func orderFields(o *models.Order) []interface{} {
	return []interface{}{&o.ID, &o.Date, &o.Total, &o.ShippingAddress}
}

func (s *OrderStore) Create(ctx context.Context, in models.OrderInput) (models.Order, error) {
	columns := []string{"o_total", "o_shipping_address"}
	values := []interface{}{in.Total, in.ShippingAddress}
	if !in.Date.IsZero() {
		columns = append(columns, "o_date")
		values = append(values, in.Date)
	}

	query, args, err := psql.Insert(ordersTable).
		Columns(columns...).
		Values(values...).
		Suffix(returning(orderColumns)).
		ToSql()
	if err != nil {
		return models.Order{}, fmt.Errorf("failed to build insert: %w", err)
	}

	var o models.Order
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(orderFields(&o)...); err != nil {
		return models.Order{}, fmt.Errorf("failed to insert order: %w", err)
	}
	return o, nil
}

func (s *OrderStore) List(ctx context.Context, f models.OrderFilter, p pagination.Paginator) (pagination.Page[models.Order], error) {
	q := psql.Select(recordCountColumn).Columns(orderColumns...).From(ordersTable)
	q = whereIDEquals(q, condition{orderIDColumn, f.ID})
	q = whereLike(q, condition{"CAST(o_date AS TEXT)", f.Date})
	if s.opts.StableOrder {
		q = q.OrderBy(orderIDColumn)
	}

	page, err := queryPage(ctx, s.db, q, p, orderFields)
	if err != nil {
		return page, fmt.Errorf("failed to list orders: %w", err)
	}
	return page, nil
}

func (s *OrderStore) Get(ctx context.Context, id int64) (models.Order, error) {
	query, args, err := psql.Select(orderColumns...).
		From(ordersTable).
		Where(sq.Eq{orderIDColumn: id}).
		ToSql()
	if err != nil {
		return models.Order{}, fmt.Errorf("failed to build select: %w", err)
	}

	var o models.Order
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(orderFields(&o)...); err != nil {
		return models.Order{}, notFound(err)
	}
	return o, nil
}

func (s *OrderStore) Update(ctx context.Context, id int64, patch models.OrderPatch) (models.Order, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Order{}, err
	}
	defer tx.Rollback()

	query, args, err := psql.Select(orderColumns...).
		From(ordersTable).
		Where(sq.Eq{orderIDColumn: id}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return models.Order{}, fmt.Errorf("failed to build select: %w", err)
	}

	var order models.Order
	if err := tx.QueryRowContext(ctx, query, args...).Scan(orderFields(&order)...); err != nil {
		return models.Order{}, notFound(err)
	}

	patch.Apply(&order)

	query, args, err = psql.Update(ordersTable).
		Set("o_date", order.Date).
		Set("o_total", order.Total).
		Set("o_shipping_address", order.ShippingAddress).
		Where(sq.Eq{orderIDColumn: id}).
		ToSql()
	if err != nil {
		return models.Order{}, fmt.Errorf("failed to build update: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return models.Order{}, fmt.Errorf("failed to update order %d: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return models.Order{}, err
	}
	return order, nil
}

func (s *OrderStore) Delete(ctx context.Context, id int64) (models.Order, error) {
	query, args, err := psql.Delete(ordersTable).
		Where(sq.Eq{orderIDColumn: id}).
		Suffix(returning(orderColumns)).
		ToSql()
	if err != nil {
		return models.Order{}, fmt.Errorf("failed to build delete: %w", err)
	}

	var o models.Order
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(orderFields(&o)...); err != nil {
		return models.Order{}, notFound(err)
	}
	return o, nil
}

func (s *OrderStore) DeleteAll(ctx context.Context) error {
	query, args, err := psql.Delete(ordersTable).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete orders: %w", err)
	}
	return nil
}
