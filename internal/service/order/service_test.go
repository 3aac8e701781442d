package order

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderservice/internal/cache"
	"github.com/Additional-Code/orderservice/internal/clock"
	"github.com/Additional-Code/orderservice/internal/config"
	"github.com/Additional-Code/orderservice/internal/entity"
	"github.com/Additional-Code/orderservice/internal/messaging"
	repo "github.com/Additional-Code/orderservice/internal/repository/order"
	"github.com/Additional-Code/orderservice/pkg/errorbank"
)

type fakeStore struct {
	mu     sync.Mutex
	nextID int64
	orders map[int64]entity.Order
	err    error
	gets   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{orders: map[int64]entity.Order{}}
}

func (f *fakeStore) Create(_ context.Context, o *entity.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.nextID++
	o.ID = f.nextID
	f.orders[o.ID] = *o
	return nil
}

func (f *fakeStore) GetByID(_ context.Context, id int64) (*entity.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.err != nil {
		return nil, f.err
	}
	o, ok := f.orders[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &o, nil
}

func (f *fakeStore) List(_ context.Context, filter repo.Filter) ([]entity.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := []entity.Order{}
	for _, o := range f.orders {
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (f *fakeStore) Update(_ context.Context, o *entity.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	current, ok := f.orders[o.ID]
	if !ok {
		return repo.ErrNotFound
	}
	o.OrderDate = current.OrderDate
	f.orders[o.ID] = *o
	return nil
}

func (f *fakeStore) UpdateStatus(_ context.Context, id int64, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	o, ok := f.orders[id]
	if !ok {
		return repo.ErrNotFound
	}
	o.Status = status
	f.orders[id] = o
	return nil
}

func (f *fakeStore) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if _, ok := f.orders[id]; !ok {
		return repo.ErrNotFound
	}
	delete(f.orders, id)
	return nil
}

type memoryCache map[string][]byte

func (m memoryCache) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m[key]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return v, nil
}

func (m memoryCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m[key] = value
	return nil
}

func (m memoryCache) Delete(_ context.Context, key string) error {
	delete(m, key)
	return nil
}

type recordingPublisher struct {
	messaging.Client
	events []Event
	keys   []string
}

func (p *recordingPublisher) Publish(_ context.Context, key []byte, value []byte) error {
	var ev Event
	if err := json.Unmarshal(value, &ev); err != nil {
		return err
	}
	p.events = append(p.events, ev)
	p.keys = append(p.keys, string(key))
	return nil
}

type fixture struct {
	svc   *Service
	store *fakeStore
	cache memoryCache
	pub   *recordingPublisher
	now   time.Time
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	mem := memoryCache{}
	pub := &recordingPublisher{Client: messaging.NewNoop("orders.events")}

	cfg := config.Config{}
	cfg.Cache.DefaultTTL = time.Minute
	cfg.Messaging.Enabled = true
	cfg.Messaging.Kafka.Topic = "orders.events"

	svc, err := NewService(Params{
		Repository: store,
		Cache:      mem,
		Clock:      clock.NewFixed(now),
		Config:     cfg,
		Logger:     zap.NewNop(),
		Publisher:  pub,
	})
	require.NoError(t, err)

	return fixture{svc: svc, store: store, cache: mem, pub: pub, now: now}
}

func assertKind(t *testing.T, err error, kind errorbank.Kind) {
	t.Helper()
	var appErr *errorbank.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, kind, appErr.Kind())
}

func TestService_Create_AppliesDefaults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order := &entity.Order{CustomerName: "Ada", ProductName: "Loom", Quantity: 2, Price: decimal.RequireFromString("3.50")}
	require.NoError(t, f.svc.Create(ctx, order))

	assert.Equal(t, int64(1), order.ID)
	assert.Equal(t, entity.StatusNew, order.Status)
	assert.Equal(t, f.now, order.OrderDate)

	require.Len(t, f.pub.events, 1)
	assert.Equal(t, EventOrderCreated, f.pub.events[0].Type)
	assert.Equal(t, "order-1", f.pub.keys[0])
	assert.Equal(t, "Ada", f.pub.events[0].Order.CustomerName)
	assert.Equal(t, f.now, f.pub.events[0].OccurredAt)

	assert.Contains(t, f.cache, CacheKey(1))
}

func TestService_Create_KeepsProvidedValues(t *testing.T) {
	f := newFixture(t)
	date := time.Date(2020, 1, 1, 9, 0, 0, 0, time.FixedZone("x", 3600))

	order := &entity.Order{OrderDate: date, Status: "Shipped"}
	require.NoError(t, f.svc.Create(context.Background(), order))

	assert.Equal(t, "Shipped", order.Status)
	assert.True(t, order.OrderDate.Equal(date))
	assert.Equal(t, time.UTC, order.OrderDate.Location())
}

func TestService_Create_AcceptsNegativeValues(t *testing.T) {
	f := newFixture(t)

	order := &entity.Order{Quantity: -1, Price: decimal.RequireFromString("-5.00")}
	require.NoError(t, f.svc.Create(context.Background(), order))

	stored := f.store.orders[order.ID]
	assert.Equal(t, -1, stored.Quantity)
	assert.True(t, stored.Price.Equal(decimal.NewFromInt(-5)))
}

func TestService_RoundsPriceToStoredScale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order := &entity.Order{Price: decimal.RequireFromString("19.999")}
	require.NoError(t, f.svc.Create(ctx, order))

	want := decimal.RequireFromString("20.00")
	assert.True(t, order.Price.Equal(want), order.Price.String())
	assert.True(t, f.store.orders[order.ID].Price.Equal(want))
	assert.True(t, f.pub.events[0].Order.Price.Equal(want), "event carries the persisted price")

	cached, err := cache.GetJSON[entity.Order](ctx, f.cache, CacheKey(order.ID))
	require.NoError(t, err)
	assert.True(t, cached.Price.Equal(want), "cache carries the persisted price")

	updated, err := f.svc.Update(ctx, order.ID, &entity.Order{Price: decimal.RequireFromString("4.125")})
	require.NoError(t, err)
	assert.Equal(t, "4.13", updated.Price.String())
	assert.Equal(t, "4.13", f.pub.events[1].Order.Price.String())
}

func TestService_Create_Errors(t *testing.T) {
	f := newFixture(t)

	assertKind(t, f.svc.Create(context.Background(), nil), errorbank.KindBadRequest)

	f.store.err = errors.New("db down")
	err := f.svc.Create(context.Background(), &entity.Order{})
	assertKind(t, err, errorbank.KindInternal)
	assert.ErrorContains(t, err, "db down")
	assert.Empty(t, f.pub.events)
}

func TestService_Get_UsesCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order := &entity.Order{CustomerName: "Grace", Price: decimal.RequireFromString("19.99")}
	require.NoError(t, f.svc.Create(ctx, order))
	delete(f.cache, CacheKey(order.ID))

	got, err := f.svc.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "Grace", got.CustomerName)
	assert.Equal(t, 1, f.store.gets)

	got, err = f.svc.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, got.Price.Equal(decimal.RequireFromString("19.99")))
	assert.Equal(t, 1, f.store.gets, "second read must be served from cache")
}

func TestService_Get_Errors(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Get(context.Background(), 99)
	assertKind(t, err, errorbank.KindNotFound)

	f.store.err = errors.New("boom")
	_, err = f.svc.Get(context.Background(), 1)
	assertKind(t, err, errorbank.KindInternal)
}

func TestService_List(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Create(ctx, &entity.Order{CustomerName: "a"}))
	require.NoError(t, f.svc.Create(ctx, &entity.Order{CustomerName: "b", Status: "Shipped"}))
	require.NoError(t, f.svc.Create(ctx, &entity.Order{CustomerName: "c"}))

	all, err := f.svc.List(ctx, repo.Filter{Limit: -1})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].CustomerName)

	shipped, err := f.svc.List(ctx, repo.Filter{Status: "Shipped"})
	require.NoError(t, err)
	require.Len(t, shipped, 1)
	assert.Equal(t, "b", shipped[0].CustomerName)

	f.store.err = errors.New("boom")
	_, err = f.svc.List(ctx, repo.Filter{})
	assertKind(t, err, errorbank.KindInternal)
}

func TestService_Update_PreservesOrderDate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order := &entity.Order{CustomerName: "Ada", Quantity: 1}
	require.NoError(t, f.svc.Create(ctx, order))

	updated, err := f.svc.Update(ctx, order.ID, &entity.Order{
		CustomerName: "Ada L.",
		ProductName:  "Engine",
		Quantity:     5,
		Price:        decimal.RequireFromString("19.99"),
		OrderDate:    time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC),
		Status:       "Shipped",
	})
	require.NoError(t, err)

	assert.Equal(t, order.ID, updated.ID)
	assert.Equal(t, "Ada L.", updated.CustomerName)
	assert.Equal(t, 5, updated.Quantity)
	assert.Equal(t, "19.99", updated.Price.StringFixed(2))
	assert.Equal(t, "Shipped", updated.Status)
	assert.Equal(t, f.now, updated.OrderDate)

	cached, err := cache.GetJSON[entity.Order](ctx, f.cache, CacheKey(order.ID))
	require.NoError(t, err)
	assert.Equal(t, "Shipped", cached.Status)

	require.Len(t, f.pub.events, 2)
	assert.Equal(t, EventOrderUpdated, f.pub.events[1].Type)
}

func TestService_Update_Errors(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Update(context.Background(), 1, nil)
	assertKind(t, err, errorbank.KindBadRequest)

	_, err = f.svc.Update(context.Background(), 404, &entity.Order{})
	assertKind(t, err, errorbank.KindNotFound)
}

func TestService_UpdateStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order := &entity.Order{CustomerName: "Ada"}
	require.NoError(t, f.svc.Create(ctx, order))

	updated, err := f.svc.UpdateStatus(ctx, order.ID, "anything goes")
	require.NoError(t, err)
	assert.Equal(t, "anything goes", updated.Status)
	assert.Equal(t, "Ada", updated.CustomerName)

	require.Len(t, f.pub.events, 2)
	assert.Equal(t, EventOrderStatusChanged, f.pub.events[1].Type)
	assert.Equal(t, "anything goes", f.pub.events[1].Order.Status)

	_, err = f.svc.UpdateStatus(ctx, order.ID, "")
	assertKind(t, err, errorbank.KindBadRequest)

	_, err = f.svc.UpdateStatus(ctx, 77, "Shipped")
	assertKind(t, err, errorbank.KindNotFound)
}

func TestService_Delete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order := &entity.Order{}
	require.NoError(t, f.svc.Create(ctx, order))
	require.Contains(t, f.cache, CacheKey(order.ID))

	require.NoError(t, f.svc.Delete(ctx, order.ID))
	assert.NotContains(t, f.cache, CacheKey(order.ID))

	require.Len(t, f.pub.events, 2)
	assert.Equal(t, EventOrderDeleted, f.pub.events[1].Type)
	assert.Equal(t, order.ID, f.pub.events[1].Order.ID)

	_, err := f.svc.Get(ctx, order.ID)
	assertKind(t, err, errorbank.KindNotFound)

	assertKind(t, f.svc.Delete(ctx, order.ID), errorbank.KindNotFound)
}

func TestService_MessagingDisabled(t *testing.T) {
	f := newFixture(t)
	f.svc.messaging.enabled = false

	require.NoError(t, f.svc.Create(context.Background(), &entity.Order{}))
	assert.Empty(t, f.pub.events)
}
