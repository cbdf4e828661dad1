package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/jogardn/laptop-store/internal/events"
	"github.com/jogardn/laptop-store/internal/pagination"
	"github.com/jogardn/laptop-store/internal/store"
	"github.com/jogardn/laptop-store/pkg/models"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	logger.SetOutput(io.Discard)
	return logger
}

// memRepo is an in-memory Repository used to drive the handlers.
type memRepo[T any, I any, P any, F any] struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]T
	build  func(id int64, in I) T
	apply  func(row *T, p P)

	err        error
	panicOn    string
	calls      int
	lastFilter F
	lastPage   pagination.Paginator
}

func newMemRepo[T, I, P, F any](build func(int64, I) T, apply func(*T, P)) *memRepo[T, I, P, F] {
	return &memRepo[T, I, P, F]{rows: make(map[int64]T), build: build, apply: apply}
}

func (m *memRepo[T, I, P, F]) enter(op string) error {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.panicOn == op {
		panic("boom in " + op)
	}
	return m.err
}

func (m *memRepo[T, I, P, F]) Create(ctx context.Context, in I) (T, error) {
	if err := m.enter("create"); err != nil {
		var zero T
		return zero, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	row := m.build(m.nextID, in)
	m.rows[m.nextID] = row
	return row, nil
}

func (m *memRepo[T, I, P, F]) List(ctx context.Context, f F, p pagination.Paginator) (pagination.Page[T], error) {
	if err := m.enter("list"); err != nil {
		return pagination.Page[T]{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastFilter = f
	m.lastPage = p

	ids := make([]int64, 0, len(m.rows))
	for id := range m.rows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var items []T
	for i := p.Offset(); i < len(ids) && len(items) < p.Limit; i++ {
		items = append(items, m.rows[ids[i]])
	}
	return pagination.NewPage(items, len(ids), p), nil
}

func (m *memRepo[T, I, P, F]) Get(ctx context.Context, id int64) (T, error) {
	var zero T
	if err := m.enter("get"); err != nil {
		return zero, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return zero, store.ErrNotFound
	}
	return row, nil
}

func (m *memRepo[T, I, P, F]) Update(ctx context.Context, id int64, p P) (T, error) {
	var zero T
	if err := m.enter("update"); err != nil {
		return zero, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return zero, store.ErrNotFound
	}
	m.apply(&row, p)
	m.rows[id] = row
	return row, nil
}

func (m *memRepo[T, I, P, F]) Delete(ctx context.Context, id int64) (T, error) {
	var zero T
	if err := m.enter("delete"); err != nil {
		return zero, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return zero, store.ErrNotFound
	}
	delete(m.rows, id)
	return row, nil
}

func (m *memRepo[T, I, P, F]) DeleteAll(ctx context.Context) error {
	if err := m.enter("deleteAll"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = make(map[int64]T)
	return nil
}

func (m *memRepo[T, I, P, F]) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type fakeUploader struct {
	mu        sync.Mutex
	saved     []string
	discarded []string
	err       error
}

func (u *fakeUploader) Save(fh *multipart.FileHeader) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	p := "/public/uploads/1700000000000-42-" + fh.Filename
	u.saved = append(u.saved, p)
	return p, nil
}

func (u *fakeUploader) Discard(publicPath string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.discarded = append(u.discarded, publicPath)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.ChangeEvent
	err    error
}

func (p *recordingPublisher) PublishChange(ctx context.Context, e events.ChangeEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) Events() []events.ChangeEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.ChangeEvent(nil), p.events...)
}

type recordingHub struct {
	mu    sync.Mutex
	types []string
}

func (h *recordingHub) Broadcast(messageType string, data interface{}, source string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.types = append(h.types, messageType)
}

type pinger struct{ err error }

func (p pinger) PingContext(context.Context) error { return p.err }

type testServer struct {
	handler   http.Handler
	laptops   *memRepo[models.Laptop, models.LaptopInput, models.LaptopPatch, models.LaptopFilter]
	customers *memRepo[models.Customer, models.CustomerInput, models.CustomerPatch, models.CustomerFilter]
	carts     *memRepo[models.Cart, models.CartInput, models.CartPatch, models.CartFilter]
	orders    *memRepo[models.Order, models.OrderInput, models.OrderPatch, models.OrderFilter]
	uploads   *fakeUploader
	publisher *recordingPublisher
	hub       *recordingHub
}

func newTestServer(t *testing.T, configure ...func(*Options)) *testServer {
	t.Helper()
	s := &testServer{
		laptops: newMemRepo[models.Laptop, models.LaptopInput, models.LaptopPatch, models.LaptopFilter](
			func(id int64, in models.LaptopInput) models.Laptop {
				return models.Laptop{
					ID: id, Brand: in.Brand, Name: in.Name, Model: in.Model, Price: in.Price,
					CPU: in.CPU, RAM: in.RAM, Storage: in.Storage, GPU: in.GPU,
					ScreenSize: in.ScreenSize, Weight: in.Weight, Description: in.Description,
					Image: in.Image, Quantity: in.Quantity,
				}
			},
			func(l *models.Laptop, p models.LaptopPatch) { p.Apply(l) },
		),
		customers: newMemRepo[models.Customer, models.CustomerInput, models.CustomerPatch, models.CustomerFilter](
			func(id int64, in models.CustomerInput) models.Customer {
				return models.Customer{ID: id, Name: in.Name, Email: in.Email, Password: in.Password, Phone: in.Phone, Role: in.Role}
			},
			func(c *models.Customer, p models.CustomerPatch) { p.Apply(c) },
		),
		carts: newMemRepo[models.Cart, models.CartInput, models.CartPatch, models.CartFilter](
			func(id int64, in models.CartInput) models.Cart {
				return models.Cart{ID: id, CustomerID: in.CustomerID, LaptopID: in.LaptopID, Date: in.Date, Quantity: in.Quantity}
			},
			func(c *models.Cart, p models.CartPatch) { p.Apply(c) },
		),
		orders: newMemRepo[models.Order, models.OrderInput, models.OrderPatch, models.OrderFilter](
			func(id int64, in models.OrderInput) models.Order {
				return models.Order{ID: id, Date: in.Date, Total: in.Total, ShippingAddress: in.ShippingAddress}
			},
			func(o *models.Order, p models.OrderPatch) { p.Apply(o) },
		),
		uploads:   &fakeUploader{},
		publisher: &recordingPublisher{},
		hub:       &recordingHub{},
	}

	logger := quietLogger()
	opts := Options{
		Laptops:   s.laptops,
		Customers: s.customers,
		Carts:     s.carts,
		Orders:    s.orders,
		Uploads:   s.uploads,
		Notifier:  NewNotifier(s.publisher, s.hub, logger),
		DB:        pinger{},
		Metrics:   NewMetrics(),
		Logger:    logger,
	}
	for _, c := range configure {
		c(&opts)
	}
	s.handler = NewRouter(opts)
	return s
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	return rr
}

type response struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) response {
	t.Helper()
	var resp response
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response %q: %v", rr.Body.String(), err)
	}
	return resp
}

func decodeData(t *testing.T, resp response, key string, dst interface{}) {
	t.Helper()
	var data map[string]json.RawMessage
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		t.Fatalf("Failed to decode data %s: %v", resp.Data, err)
	}
	raw, ok := data[key]
	if !ok {
		t.Fatalf("Expected key %s in %s", key, resp.Data)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		t.Fatalf("Failed to decode %s: %v", key, err)
	}
}

var errStorage = errors.New("connection reset")
