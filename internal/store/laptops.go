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
	laptopsTable   = "laptops"
	laptopIDColumn = "l_id"
)

var laptopColumns = []string{
	"l_id", "l_brand", "l_name", "l_model", "l_price", "l_cpu", "l_ram", "l_storage",
	"l_gpu", "l_screen_size", "l_weight", "l_description", "l_image", "l_quantity",
}

type LaptopStore struct {
	db      *sql.DB
	cleaner ImageCleaner
	opts    Options
}

func NewLaptopStore(db *sql.DB, cleaner ImageCleaner, opts Options) *LaptopStore {
	return &LaptopStore{db: db, cleaner: cleaner, opts: opts}
}

func laptopFields(l *models.Laptop) []interface{} {
	return []interface{}{
		&l.ID, &l.Brand, &l.Name, &l.Model, &l.Price, &l.CPU, &l.RAM, &l.Storage,
		&l.GPU, &l.ScreenSize, &l.Weight, &l.Description, &l.Image, &l.Quantity,
	}
}

// laptopValues lines up with laptopColumns[1:].
func laptopValues(in models.LaptopInput) []interface{} {
	return []interface{}{
		in.Brand, in.Name, in.Model, in.Price, in.CPU, in.RAM, in.Storage,
		in.GPU, in.ScreenSize, in.Weight, in.Description, in.Image, in.Quantity,
	}
}

func (s *LaptopStore) Create(ctx context.Context, in models.LaptopInput) (models.Laptop, error) {
	query, args, err := psql.Insert(laptopsTable).
		Columns(laptopColumns[1:]...).
		Values(laptopValues(in)...).
		Suffix(returning(laptopColumns)).
		ToSql()
	if err != nil {
		return models.Laptop{}, fmt.Errorf("failed to build insert: %w", err)
	}

	var l models.Laptop
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(laptopFields(&l)...); err != nil {
		return models.Laptop{}, fmt.Errorf("failed to insert laptop: %w", err)
	}
	return l, nil
}

func (s *LaptopStore) List(ctx context.Context, f models.LaptopFilter, p pagination.Paginator) (pagination.Page[models.Laptop], error) {
	q := psql.Select(recordCountColumn).Columns(laptopColumns...).From(laptopsTable)
	q = whereLike(q,
		condition{"l_brand", f.Brand},
		condition{"l_name", f.Name},
		condition{"l_model", f.Model},
		condition{"l_cpu", f.CPU},
		condition{"l_ram", f.RAM},
		condition{"l_storage", f.Storage},
		condition{"l_gpu", f.GPU},
		condition{"l_screen_size", f.ScreenSize},
		condition{"l_weight", f.Weight},
	)
	if s.opts.StableOrder {
		q = q.OrderBy(laptopIDColumn)
	}

	page, err := queryPage(ctx, s.db, q, p, laptopFields)
	if err != nil {
		return page, fmt.Errorf("failed to list laptops: %w", err)
	}
	return page, nil
}

func (s *LaptopStore) Get(ctx context.Context, id int64) (models.Laptop, error) {
	query, args, err := psql.Select(laptopColumns...).
		From(laptopsTable).
		Where(sq.Eq{laptopIDColumn: id}).
		ToSql()
	if err != nil {
		return models.Laptop{}, fmt.Errorf("failed to build select: %w", err)
	}

	var l models.Laptop
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(laptopFields(&l)...); err != nil {
		return models.Laptop{}, notFound(err)
	}
	return l, nil
}

// Update locks the row, merges the patch over it and writes the whole row
// back in one transaction. A replaced upload is queued for removal once the
// transaction has committed.
func (s *LaptopStore) Update(ctx context.Context, id int64, patch models.LaptopPatch) (models.Laptop, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Laptop{}, err
	}
	defer tx.Rollback()

	query, args, err := psql.Select(laptopColumns...).
		From(laptopsTable).
		Where(sq.Eq{laptopIDColumn: id}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return models.Laptop{}, fmt.Errorf("failed to build select: %w", err)
	}

	var laptop models.Laptop
	if err := tx.QueryRowContext(ctx, query, args...).Scan(laptopFields(&laptop)...); err != nil {
		return models.Laptop{}, notFound(err)
	}
	previousImage := laptop.Image

	patch.Apply(&laptop)

	query, args, err = setColumns(psql.Update(laptopsTable), laptopColumns[1:], laptopValues(laptopInput(laptop))).
		Where(sq.Eq{laptopIDColumn: id}).
		ToSql()
	if err != nil {
		return models.Laptop{}, fmt.Errorf("failed to build update: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return models.Laptop{}, fmt.Errorf("failed to update laptop %d: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return models.Laptop{}, err
	}

	if patch.Image != nil && previousImage != nil && *previousImage != *patch.Image {
		s.discard(*previousImage)
	}
	return laptop, nil
}

// Delete removes one laptop and returns the deleted row.
func (s *LaptopStore) Delete(ctx context.Context, id int64) (models.Laptop, error) {
	query, args, err := psql.Delete(laptopsTable).
		Where(sq.Eq{laptopIDColumn: id}).
		Suffix(returning(laptopColumns)).
		ToSql()
	if err != nil {
		return models.Laptop{}, fmt.Errorf("failed to build delete: %w", err)
	}

	var l models.Laptop
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(laptopFields(&l)...); err != nil {
		return models.Laptop{}, notFound(err)
	}

	if l.Image != nil {
		s.discard(*l.Image)
	}
	return l, nil
}

// DeleteAll empties the table and queues every referenced image for removal.
func (s *LaptopStore) DeleteAll(ctx context.Context) error {
	query, args, err := psql.Delete(laptopsTable).Suffix("RETURNING l_image").ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete laptops: %w", err)
	}
	defer rows.Close()

	var images []string
	for rows.Next() {
		var image sql.NullString
		if err := rows.Scan(&image); err != nil {
			return err
		}
		if image.Valid && image.String != "" {
			images = append(images, image.String)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, image := range images {
		s.discard(image)
	}
	return nil
}

func (s *LaptopStore) discard(publicPath string) {
	if s.cleaner != nil {
		s.cleaner.Enqueue(publicPath)
	}
}

func laptopInput(l models.Laptop) models.LaptopInput {
	return models.LaptopInput{
		Brand:       l.Brand,
		Name:        l.Name,
		Model:       l.Model,
		Price:       l.Price,
		CPU:         l.CPU,
		RAM:         l.RAM,
		Storage:     l.Storage,
		GPU:         l.GPU,
		ScreenSize:  l.ScreenSize,
		Weight:      l.Weight,
		Description: l.Description,
		Image:       l.Image,
		Quantity:    l.Quantity,
	}
}
