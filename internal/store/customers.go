package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"golang.org/x/crypto/bcrypt"

	"github.com/jogardn/laptop-store/internal/pagination"
	"github.com/jogardn/laptop-store/pkg/models"
)

const (
	customersTable   = "customers"
	customerIDColumn = "c_id"
)

var customerColumns = []string{"c_id", "c_name", "c_email", "c_password", "c_phone", "c_role"}

type CustomerStore struct {
	db   *sql.DB
	opts Options
}

func NewCustomerStore(db *sql.DB, opts Options) *CustomerStore {
	return &CustomerStore{db: db, opts: opts}
}

func customerFields(c *models.Customer) []interface{} {
	return []interface{}{&c.ID, &c.Name, &c.Email, &c.Password, &c.Phone, &c.Role}
}

func customerValues(c models.CustomerInput) []interface{} {
	return []interface{}{c.Name, c.Email, c.Password, c.Phone, c.Role}
}

func (s *CustomerStore) Create(ctx context.Context, in models.CustomerInput) (models.Customer, error) {
	password, err := s.password(in.Password)
	if err != nil {
		return models.Customer{}, err
	}
	in.Password = password

	query, args, err := psql.Insert(customersTable).
		Columns(customerColumns[1:]...).
		Values(customerValues(in)...).
		Suffix(returning(customerColumns)).
		ToSql()
	if err != nil {
		return models.Customer{}, fmt.Errorf("failed to build insert: %w", err)
	}

	var c models.Customer
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(customerFields(&c)...); err != nil {
		return models.Customer{}, fmt.Errorf("failed to insert customer: %w", err)
	}
	return c, nil
}

func (s *CustomerStore) List(ctx context.Context, f models.CustomerFilter, p pagination.Paginator) (pagination.Page[models.Customer], error) {
	q := psql.Select(recordCountColumn).Columns(customerColumns...).From(customersTable)
	q = whereLike(q,
		condition{"c_name", f.Name},
		condition{"c_email", f.Email},
		condition{"c_phone", f.Phone},
	)
	if f.Role != "" {
		q = q.Where(sq.Eq{"c_role": f.Role})
	}
	if s.opts.StableOrder {
		q = q.OrderBy(customerIDColumn)
	}

	page, err := queryPage(ctx, s.db, q, p, customerFields)
	if err != nil {
		return page, fmt.Errorf("failed to list customers: %w", err)
	}
	return page, nil
}

func (s *CustomerStore) Get(ctx context.Context, id int64) (models.Customer, error) {
	query, args, err := psql.Select(customerColumns...).
		From(customersTable).
		Where(sq.Eq{customerIDColumn: id}).
		ToSql()
	if err != nil {
		return models.Customer{}, fmt.Errorf("failed to build select: %w", err)
	}

	var c models.Customer
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(customerFields(&c)...); err != nil {
		return models.Customer{}, notFound(err)
	}
	return c, nil
}

func (s *CustomerStore) Update(ctx context.Context, id int64, patch models.CustomerPatch) (models.Customer, error) {
	if patch.Password != nil {
		password, err := s.password(*patch.Password)
		if err != nil {
			return models.Customer{}, err
		}
		patch.Password = &password
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Customer{}, err
	}
	defer tx.Rollback()

	query, args, err := psql.Select(customerColumns...).
		From(customersTable).
		Where(sq.Eq{customerIDColumn: id}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return models.Customer{}, fmt.Errorf("failed to build select: %w", err)
	}

	var customer models.Customer
	if err := tx.QueryRowContext(ctx, query, args...).Scan(customerFields(&customer)...); err != nil {
		return models.Customer{}, notFound(err)
	}

	patch.Apply(&customer)

	values := customerValues(models.CustomerInput{
		Name:     customer.Name,
		Email:    customer.Email,
		Password: customer.Password,
		Phone:    customer.Phone,
		Role:     customer.Role,
	})
	query, args, err = setColumns(psql.Update(customersTable), customerColumns[1:], values).
		Where(sq.Eq{customerIDColumn: id}).
		ToSql()
	if err != nil {
		return models.Customer{}, fmt.Errorf("failed to build update: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return models.Customer{}, fmt.Errorf("failed to update customer %d: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return models.Customer{}, err
	}
	return customer, nil
}

func (s *CustomerStore) Delete(ctx context.Context, id int64) (models.Customer, error) {
	query, args, err := psql.Delete(customersTable).
		Where(sq.Eq{customerIDColumn: id}).
		Suffix(returning(customerColumns)).
		ToSql()
	if err != nil {
		return models.Customer{}, fmt.Errorf("failed to build delete: %w", err)
	}

	var c models.Customer
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(customerFields(&c)...); err != nil {
		return models.Customer{}, notFound(err)
	}
	return c, nil
}

func (s *CustomerStore) DeleteAll(ctx context.Context) error {
	query, args, err := psql.Delete(customersTable).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete customers: %w", err)
	}
	return nil
}

func (s *CustomerStore) password(plain string) (string, error) {
	if !s.opts.HashPasswords || plain == "" {
		return plain, nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", fmt.Errorf("%w: password longer than 72 bytes", ErrInvalidInput)
	}
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}
