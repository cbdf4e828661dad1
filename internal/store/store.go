// Package store holds one repository per table. Every store takes an
// injected *sql.DB and builds its statements with squirrel.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/jogardn/laptop-store/internal/pagination"
)

var ErrNotFound = errors.New("record not found")

// ErrInvalidInput marks a write rejected because of the values given.
var ErrInvalidInput = errors.New("invalid input")

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const recordCountColumn = "count(*) OVER() AS record_count"

// Options tune listing and write behavior shared by the stores.
type Options struct {
	// StableOrder sorts listings by primary key. Without it rows come back in
	// the database's natural order, which can shift between pages while
	// rows are being written.
	StableOrder bool
	// HashPasswords stores customer passwords as bcrypt hashes.
	HashPasswords bool
}

// ImageCleaner removes uploaded files once the rows referencing them are gone.
type ImageCleaner interface {
	Enqueue(publicPath string)
}

type condition struct {
	column string
	value  string
}

func whereLike(q sq.SelectBuilder, conds ...condition) sq.SelectBuilder {
	for _, c := range conds {
		if c.value != "" {
			q = q.Where(sq.Like{c.column: "%" + c.value + "%"})
		}
	}
	return q
}

// whereIDEquals matches an integer column exactly. A value that is not an
// integer can never match.
func whereIDEquals(q sq.SelectBuilder, conds ...condition) sq.SelectBuilder {
	for _, c := range conds {
		if c.value == "" {
			continue
		}
		id, err := strconv.ParseInt(c.value, 10, 64)
		if err != nil {
			q = q.Where(sq.Expr("FALSE"))
			continue
		}
		q = q.Where(sq.Eq{c.column: id})
	}
	return q
}

func setColumns(ub sq.UpdateBuilder, columns []string, values []interface{}) sq.UpdateBuilder {
	for i, col := range columns {
		ub = ub.Set(col, values[i])
	}
	return ub
}

func returning(columns []string) string {
	return "RETURNING " + strings.Join(columns, ", ")
}

// queryPage runs a select whose first column is the window count and scans
// one window of rows. fields returns the scan targets for one item.
func queryPage[T any](ctx context.Context, db *sql.DB, q sq.SelectBuilder, p pagination.Paginator, fields func(*T) []interface{}) (pagination.Page[T], error) {
	query, args, err := q.Limit(uint64(p.Limit)).Offset(uint64(p.Offset())).ToSql()
	if err != nil {
		return pagination.Page[T]{}, fmt.Errorf("failed to build list query: %w", err)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return pagination.Page[T]{}, err
	}
	defer rows.Close()

	var items []T
	total := 0
	for rows.Next() {
		var item T
		dest := append([]interface{}{&total}, fields(&item)...)
		if err := rows.Scan(dest...); err != nil {
			return pagination.Page[T]{}, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return pagination.Page[T]{}, err
	}

	return pagination.NewPage(items, total, p), nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
