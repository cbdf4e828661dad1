package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"

	"github.com/jogardn/laptop-store/internal/pagination"
	"github.com/jogardn/laptop-store/pkg/models"
)

type recordingCleaner struct {
	paths []string
}

func (c *recordingCleaner) Enqueue(publicPath string) {
	c.paths = append(c.paths, publicPath)
}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func laptopRow(id int64, name string, image interface{}) []driver.Value {
	return []driver.Value{
		id, "Dell", name, "9340", "1299.99", "i7-1360P", "16GB", "512GB",
		"Iris Xe", "13.4", "1.2kg", "Ultrabook", image, int64(3),
	}
}

func TestLaptopStoreCreate(t *testing.T) {
	db, mock := newMock(t)
	s := NewLaptopStore(db, nil, Options{})

	mock.ExpectQuery(`INSERT INTO laptops`).
		WithArgs("Dell", "XPS 13", "9340", "1299.99", "i7-1360P", "16GB", "512GB",
			"Iris Xe", "13.4", "1.2kg", "Ultrabook", nil, 3).
		WillReturnRows(sqlmock.NewRows(laptopColumns).AddRow(laptopRow(1, "XPS 13", nil)...))

	laptop, err := s.Create(context.Background(), models.LaptopInput{
		Brand:       "Dell",
		Name:        "XPS 13",
		Model:       "9340",
		Price:       decimal.RequireFromString("1299.99"),
		CPU:         "i7-1360P",
		RAM:         "16GB",
		Storage:     "512GB",
		GPU:         "Iris Xe",
		ScreenSize:  "13.4",
		Weight:      "1.2kg",
		Description: "Ultrabook",
		Quantity:    3,
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if laptop.ID != 1 || laptop.Name != "XPS 13" || laptop.Image != nil {
		t.Errorf("Unexpected laptop: %+v", laptop)
	}
	if !laptop.Price.Equal(decimal.RequireFromString("1299.99")) {
		t.Errorf("Expected price 1299.99, got %s", laptop.Price)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestLaptopStoreListComposesFilters(t *testing.T) {
	db, mock := newMock(t)
	s := NewLaptopStore(db, nil, Options{StableOrder: true})

	columns := append([]string{"record_count"}, laptopColumns...)
	rows := sqlmock.NewRows(columns).
		AddRow(append([]driver.Value{int64(7)}, laptopRow(6, "XPS 13", nil)...)...).
		AddRow(append([]driver.Value{int64(7)}, laptopRow(7, "XPS 15", "/public/uploads/1-2.png")...)...)

	mock.ExpectQuery(`SELECT count\(\*\) OVER\(\) AS record_count, l_id, .* FROM laptops WHERE l_name LIKE \$1 AND l_cpu LIKE \$2 ORDER BY l_id LIMIT 5 OFFSET 5`).
		WithArgs("%XPS%", "%i7%").
		WillReturnRows(rows)

	page, err := s.List(context.Background(), models.LaptopFilter{Name: "XPS", CPU: "i7"}, pagination.New(2, 5))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(page.Items) != 2 {
		t.Fatalf("Expected 2 laptops, got %d", len(page.Items))
	}
	if page.Items[1].Image == nil || *page.Items[1].Image != "/public/uploads/1-2.png" {
		t.Errorf("Expected image to be scanned, got %v", page.Items[1].Image)
	}
	expected := pagination.Metadata{TotalRecords: 7, FirstPage: 1, LastPage: 2, Page: 2, Limit: 5}
	if page.Metadata != expected {
		t.Errorf("Expected metadata %+v, got %+v", expected, page.Metadata)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestLaptopStoreListWithoutFilters(t *testing.T) {
	db, mock := newMock(t)
	s := NewLaptopStore(db, nil, Options{})

	columns := append([]string{"record_count"}, laptopColumns...)
	mock.ExpectQuery(`FROM laptops LIMIT 5 OFFSET 0`).
		WillReturnRows(sqlmock.NewRows(columns))

	page, err := s.List(context.Background(), models.LaptopFilter{}, pagination.New(1, 5))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if page.Items == nil || len(page.Items) != 0 {
		t.Errorf("Expected empty non-nil items, got %#v", page.Items)
	}
	if page.Metadata.TotalRecords != 0 || page.Metadata.LastPage != 1 {
		t.Errorf("Unexpected metadata: %+v", page.Metadata)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestLaptopStoreGetNotFound(t *testing.T) {
	db, mock := newMock(t)
	s := NewLaptopStore(db, nil, Options{})

	mock.ExpectQuery(`FROM laptops WHERE l_id = \$1`).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows(laptopColumns))

	_, err := s.Get(context.Background(), 42)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestLaptopStoreGetPropagatesFailures(t *testing.T) {
	db, mock := newMock(t)
	s := NewLaptopStore(db, nil, Options{})

	mock.ExpectQuery(`FROM laptops WHERE l_id = \$1`).
		WillReturnError(errors.New("connection reset"))

	_, err := s.Get(context.Background(), 1)
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("Expected storage failure, got %v", err)
	}
}

func TestLaptopStoreUpdateKeepsImageWhenOmitted(t *testing.T) {
	db, mock := newMock(t)
	cleaner := &recordingCleaner{}
	s := NewLaptopStore(db, cleaner, Options{})

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM laptops WHERE l_id = \$1 FOR UPDATE`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(laptopColumns).AddRow(laptopRow(7, "XPS 13", "/public/uploads/a.png")...))
	mock.ExpectExec(`UPDATE laptops SET l_brand = \$1, l_name = \$2, .* WHERE l_id = \$14`).
		WithArgs("Dell", "XPS 15", "9340", "1299.99", "i7-1360P", "16GB", "512GB",
			"Iris Xe", "13.4", "1.2kg", "Ultrabook", "/public/uploads/a.png", 3, int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	name := "XPS 15"
	laptop, err := s.Update(context.Background(), 7, models.LaptopPatch{Name: &name})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if laptop.Name != "XPS 15" || laptop.Brand != "Dell" {
		t.Errorf("Expected merged laptop, got %+v", laptop)
	}
	if laptop.Image == nil || *laptop.Image != "/public/uploads/a.png" {
		t.Errorf("Expected image to be kept, got %v", laptop.Image)
	}
	if len(cleaner.paths) != 0 {
		t.Errorf("Expected no cleanup, got %v", cleaner.paths)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestLaptopStoreUpdateReplacesImage(t *testing.T) {
	db, mock := newMock(t)
	cleaner := &recordingCleaner{}
	s := NewLaptopStore(db, cleaner, Options{})

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows(laptopColumns).AddRow(laptopRow(7, "XPS 13", "/public/uploads/old.png")...))
	mock.ExpectExec(`UPDATE laptops`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	image := "/public/uploads/new.png"
	laptop, err := s.Update(context.Background(), 7, models.LaptopPatch{Image: &image})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if laptop.Image == nil || *laptop.Image != image {
		t.Errorf("Expected new image, got %v", laptop.Image)
	}
	if len(cleaner.paths) != 1 || cleaner.paths[0] != "/public/uploads/old.png" {
		t.Errorf("Expected old image to be queued, got %v", cleaner.paths)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestLaptopStoreUpdateNotFound(t *testing.T) {
	db, mock := newMock(t)
	cleaner := &recordingCleaner{}
	s := NewLaptopStore(db, cleaner, Options{})

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WillReturnRows(sqlmock.NewRows(laptopColumns))
	mock.ExpectRollback()

	name := "ghost"
	_, err := s.Update(context.Background(), 99, models.LaptopPatch{Name: &name})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if len(cleaner.paths) != 0 {
		t.Errorf("Expected no cleanup, got %v", cleaner.paths)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestLaptopStoreUpdateFailureSkipsCleanup(t *testing.T) {
	db, mock := newMock(t)
	cleaner := &recordingCleaner{}
	s := NewLaptopStore(db, cleaner, Options{})

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows(laptopColumns).AddRow(laptopRow(7, "XPS 13", "/public/uploads/old.png")...))
	mock.ExpectExec(`UPDATE laptops`).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	image := "/public/uploads/new.png"
	if _, err := s.Update(context.Background(), 7, models.LaptopPatch{Image: &image}); err == nil {
		t.Fatal("Expected error")
	}
	if len(cleaner.paths) != 0 {
		t.Errorf("Expected old image to be kept when the update fails, got %v", cleaner.paths)
	}
}

func TestLaptopStoreDeleteQueuesImage(t *testing.T) {
	db, mock := newMock(t)
	cleaner := &recordingCleaner{}
	s := NewLaptopStore(db, cleaner, Options{})

	mock.ExpectQuery(`DELETE FROM laptops WHERE l_id = \$1 RETURNING l_id`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(laptopColumns).AddRow(laptopRow(7, "XPS 13", "/public/uploads/a.png")...))

	deleted, err := s.Delete(context.Background(), 7)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if deleted.ID != 7 {
		t.Errorf("Expected deleted snapshot for id 7, got %d", deleted.ID)
	}
	if len(cleaner.paths) != 1 || cleaner.paths[0] != "/public/uploads/a.png" {
		t.Errorf("Expected image to be queued, got %v", cleaner.paths)
	}
}

func TestLaptopStoreDeleteNotFound(t *testing.T) {
	db, mock := newMock(t)
	s := NewLaptopStore(db, &recordingCleaner{}, Options{})

	mock.ExpectQuery(`DELETE FROM laptops`).WillReturnRows(sqlmock.NewRows(laptopColumns))

	if _, err := s.Delete(context.Background(), 7); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestLaptopStoreDeleteAllQueuesEveryImage(t *testing.T) {
	db, mock := newMock(t)
	cleaner := &recordingCleaner{}
	s := NewLaptopStore(db, cleaner, Options{})

	mock.ExpectQuery(`DELETE FROM laptops RETURNING l_image`).
		WillReturnRows(sqlmock.NewRows([]string{"l_image"}).
			AddRow("/public/uploads/a.png").
			AddRow(nil).
			AddRow("/public/uploads/b.jpg"))

	if err := s.DeleteAll(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(cleaner.paths) != 2 {
		t.Fatalf("Expected 2 images queued, got %v", cleaner.paths)
	}
	if cleaner.paths[0] != "/public/uploads/a.png" || cleaner.paths[1] != "/public/uploads/b.jpg" {
		t.Errorf("Unexpected queued images: %v", cleaner.paths)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
