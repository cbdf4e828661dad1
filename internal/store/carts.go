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
	cartsTable   = "carts"
	cartIDColumn = "car_id"
)

var cartColumns = []string{"car_id", "c_id", "l_id", "car_date", "car_quantity"}

type CartStore struct {
	db   *sql.DB
	opts Options
}

func NewCartStore(db *sql.DB, opts Options) *CartStore {
	return &CartStore{db: db, opts: opts}
}

func cartFields(c *models.Cart) []interface{} {
	return []interface{}{&c.ID, &c.CustomerID, &c.LaptopID, &c.Date, &c.Quantity}
}

func cartValues(c models.Cart) []interface{} {
	return []interface{}{c.CustomerID, c.LaptopID, c.Date, c.Quantity}
}

// Create leaves car_date to its column default when the input has no date.
func (s *CartStore) Create(ctx context.Context, in models.CartInput) (models.Cart, error) {
	columns := []string{"c_id", "l_id", "car_quantity"}
	values := []interface{}{in.CustomerID, in.LaptopID, in.Quantity}
	if !in.Date.IsZero() {
		columns = append(columns, "car_date")
		values = append(values, in.Date)
	}

	query, args, err := psql.Insert(cartsTable).
		Columns(columns...).
		Values(values...).
		Suffix(returning(cartColumns)).
		ToSql()
	if err != nil {
		return models.Cart{}, fmt.Errorf("failed to build insert: %w", err)
	}

	var c models.Cart
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(cartFields(&c)...); err != nil {
		return models.Cart{}, fmt.Errorf("failed to insert cart: %w", err)
	}
	return c, nil
}

func (s *CartStore) List(ctx context.Context, f models.CartFilter, p pagination.Paginator) (pagination.Page[models.Cart], error) {
	q := psql.Select(recordCountColumn).Columns(cartColumns...).From(cartsTable)
	q = whereIDEquals(q,
		condition{"c_id", f.CustomerID},
		condition{"l_id", f.LaptopID},
	)
	q = whereLike(q, condition{"CAST(car_date AS TEXT)", f.Date})
	if s.opts.StableOrder {
		q = q.OrderBy(cartIDColumn)
	}

	page, err := queryPage(ctx, s.db, q, p, cartFields)
	if err != nil {
		return page, fmt.Errorf("failed to list carts: %w", err)
	}
	return page, nil
}

func (s *CartStore) Get(ctx context.Context, id int64) (models.Cart, error) {
	query, args, err := psql.Select(cartColumns...).
		From(cartsTable).
		Where(sq.Eq{cartIDColumn: id}).
		ToSql()
	if err != nil {
		return models.Cart{}, fmt.Errorf("failed to build select: %w", err)
	}

	var c models.Cart
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(cartFields(&c)...); err != nil {
		return models.Cart{}, notFound(err)
	}
	return c, nil
}

func (s *CartStore) Update(ctx context.Context, id int64, patch models.CartPatch) (models.Cart, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Cart{}, err
	}
	defer tx.Rollback()

	query, args, err := psql.Select(cartColumns...).
		From(cartsTable).
		Where(sq.Eq{cartIDColumn: id}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return models.Cart{}, fmt.Errorf("failed to build select: %w", err)
	}

	var cart models.Cart
	if err := tx.QueryRowContext(ctx, query, args...).Scan(cartFields(&cart)...); err != nil {
		return models.Cart{}, notFound(err)
	}

	patch.Apply(&cart)

	query, args, err = setColumns(psql.Update(cartsTable), cartColumns[1:], cartValues(cart)).
		Where(sq.Eq{cartIDColumn: id}).
		ToSql()
	if err != nil {
		return models.Cart{}, fmt.Errorf("failed to build update: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return models.Cart{}, fmt.Errorf("failed to update cart %d: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return models.Cart{}, err
	}
	return cart, nil
}

func (s *CartStore) Delete(ctx context.Context, id int64) (models.Cart, error) {
	query, args, err := psql.Delete(cartsTable).
		Where(sq.Eq{cartIDColumn: id}).
		Suffix(returning(cartColumns)).
		ToSql()
	if err != nil {
		return models.Cart{}, fmt.Errorf("failed to build delete: %w", err)
	}

	var c models.Cart
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(cartFields(&c)...); err != nil {
		return models.Cart{}, notFound(err)
	}
	return c, nil
}

func (s *CartStore) DeleteAll(ctx context.Context) error {
	query, args, err := psql.Delete(cartsTable).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete carts: %w", err)
	}
	return nil
}
