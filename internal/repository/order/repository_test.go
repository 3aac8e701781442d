package order

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/orderservice/internal/database/dbtest"
	"github.com/Additional-Code/orderservice/internal/entity"
)

func TestFilter_Normalize(t *testing.T) {
	tests := []struct {
		name string
		in   Filter
		want Filter
	}{
		{name: "zero", in: Filter{}, want: Filter{Limit: DefaultLimit}},
		{name: "within bounds", in: Filter{Limit: 50, Offset: 10}, want: Filter{Limit: 50, Offset: 10}},
		{name: "limit above max", in: Filter{Limit: 500}, want: Filter{Limit: MaxLimit}},
		{name: "limit at max", in: Filter{Limit: MaxLimit}, want: Filter{Limit: MaxLimit}},
		{name: "negative offset", in: Filter{Limit: 5, Offset: -4}, want: Filter{Limit: 5}},
		{name: "keeps filters", in: Filter{Status: "New", CustomerName: "ada"}, want: Filter{Status: "New", CustomerName: "ada", Limit: DefaultLimit}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Normalize())
		})
	}
}

func newSQLiteRepository(t *testing.T) *Repository {
	t.Helper()
	return NewRepository(dbtest.NewOrdersDB(t))
}

func seedOrder(t *testing.T, r *Repository, customer, status string, at time.Time) *entity.Order {
	t.Helper()
	o := entity.NewOrderAt(at)
	o.CustomerName = customer
	o.ProductName = "Widget"
	o.Quantity = 2
	o.Price = decimal.RequireFromString("19.99")
	o.Status = status
	require.NoError(t, r.Create(context.Background(), o))
	return o
}

func TestRepository_CreateAndGet(t *testing.T) {
	r := newSQLiteRepository(t)
	at := time.Date(2025, 4, 1, 10, 30, 0, 0, time.UTC)

	created := seedOrder(t, r, "Ada", entity.StatusNew, at)
	assert.Positive(t, created.ID)

	got, err := r.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.CustomerName)
	assert.Equal(t, "Widget", got.ProductName)
	assert.Equal(t, 2, got.Quantity)
	assert.Equal(t, "19.99", got.Price.StringFixed(2))
	assert.True(t, got.OrderDate.Equal(at), got.OrderDate.String())
	assert.Equal(t, entity.StatusNew, got.Status)
}

func TestRepository_List(t *testing.T) {
	r := newSQLiteRepository(t)
	ctx := context.Background()
	day := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

	oldest := seedOrder(t, r, "Ada", entity.StatusNew, day)
	middle := seedOrder(t, r, "Grace", "Shipped", day.Add(time.Hour))
	sameTimeA := seedOrder(t, r, "Ada", "Shipped", day.Add(2*time.Hour))
	sameTimeB := seedOrder(t, r, "Linus", entity.StatusNew, day.Add(2*time.Hour))

	ids := func(orders []entity.Order) []int64 {
		out := make([]int64, 0, len(orders))
		for _, o := range orders {
			out = append(out, o.ID)
		}
		return out
	}

	all, err := r.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, []int64{sameTimeB.ID, sameTimeA.ID, middle.ID, oldest.ID}, ids(all), "newest first, ties by id desc")

	shipped, err := r.List(ctx, Filter{Status: "Shipped"})
	require.NoError(t, err)
	assert.Equal(t, []int64{sameTimeA.ID, middle.ID}, ids(shipped))

	ada, err := r.List(ctx, Filter{CustomerName: "Ada"})
	require.NoError(t, err)
	assert.Equal(t, []int64{sameTimeA.ID, oldest.ID}, ids(ada))

	both, err := r.List(ctx, Filter{CustomerName: "Ada", Status: entity.StatusNew})
	require.NoError(t, err)
	assert.Equal(t, []int64{oldest.ID}, ids(both))

	page, err := r.List(ctx, Filter{Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, []int64{sameTimeA.ID, middle.ID}, ids(page))

	none, err := r.List(ctx, Filter{Status: "Cancelled"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRepository_UpdateKeepsOrderDate(t *testing.T) {
	r := newSQLiteRepository(t)
	ctx := context.Background()
	at := time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)
	o := seedOrder(t, r, "Ada", entity.StatusNew, at)

	o.CustomerName = "Ada L."
	o.Quantity = 9
	o.Price = decimal.RequireFromString("5.25")
	o.Status = "Paid"
	o.OrderDate = at.AddDate(-5, 0, 0)
	require.NoError(t, r.Update(ctx, o))

	got, err := r.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada L.", got.CustomerName)
	assert.Equal(t, 9, got.Quantity)
	assert.Equal(t, "5.25", got.Price.StringFixed(2))
	assert.Equal(t, "Paid", got.Status)
	assert.True(t, got.OrderDate.Equal(at), "order_date is not rewritten")
}

func TestRepository_UpdateStatusAndDelete(t *testing.T) {
	r := newSQLiteRepository(t)
	ctx := context.Background()
	o := seedOrder(t, r, "Ada", entity.StatusNew, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC))

	require.NoError(t, r.UpdateStatus(ctx, o.ID, "on hold: awaiting stock"))
	got, err := r.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "on hold: awaiting stock", got.Status)

	require.NoError(t, r.Delete(ctx, o.ID))
	_, err = r.GetByID(ctx, o.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepository_MissingOrder(t *testing.T) {
	r := newSQLiteRepository(t)
	ctx := context.Background()
	const missing = int64(404)

	_, err := r.GetByID(ctx, missing)
	assert.ErrorIs(t, err, ErrNotFound, "get")
	assert.ErrorIs(t, r.Update(ctx, &entity.Order{ID: missing, Status: "x"}), ErrNotFound, "update")
	assert.ErrorIs(t, r.UpdateStatus(ctx, missing, "x"), ErrNotFound, "update status")
	assert.ErrorIs(t, r.Delete(ctx, missing), ErrNotFound, "delete")
}

func TestRepository_NilOrder(t *testing.T) {
	r := newSQLiteRepository(t)
	assert.EqualError(t, r.Create(context.Background(), nil), "nil order")
	assert.EqualError(t, r.Update(context.Background(), nil), "nil order")
}
