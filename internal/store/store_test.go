package store

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/joshua-takyi/staylink/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	id   string
	name string
}

func (i item) GetID() string { return i.id }

func ids(items []item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.id
	}
	return out
}

func TestAppendSkipsKnownIDsWithoutReordering(t *testing.T) {
	s := New[item]("test", time.Minute)
	s.Set([]item{{id: "a"}, {id: "b"}, {id: "c"}}, 3)

	added := s.Append(item{id: "b", name: "changed"})
	assert.Equal(t, 0, added)
	assert.Equal(t, []string{"a", "b", "c"}, ids(s.Items()))
	assert.Equal(t, 3, s.Total())

	b, ok := s.Find("b")
	require.True(t, ok)
	assert.Empty(t, b.name)

	added = s.Append(item{id: "d"}, item{id: "a"}, item{id: "d"})
	assert.Equal(t, 1, added)
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(s.Items()))
	assert.Equal(t, 4, s.Total())
}

func TestAppendPaymentRecordWithKnownID(t *testing.T) {
	s := New[models.PaymentRecord](PaymentsStore, time.Minute)
	first := models.PaymentRecord{ID: uuid.New(), PaymentIntentID: "pi_1"}
	second := models.PaymentRecord{ID: uuid.New(), PaymentIntentID: "pi_2"}
	s.Set([]models.PaymentRecord{first, second}, 2)

	s.Append(models.PaymentRecord{ID: first.ID, PaymentIntentID: "pi_other"})

	items := s.Items()
	require.Len(t, items, 2)
	assert.Equal(t, first.ID, items[0].ID)
	assert.Equal(t, "pi_1", items[0].PaymentIntentID)
	assert.Equal(t, second.ID, items[1].ID)
}

func TestUpsertIsCopyOnWrite(t *testing.T) {
	s := New[item]("test", time.Minute)
	s.Set([]item{{id: "a", name: "one"}, {id: "b", name: "two"}}, 2)

	before := s.Items()
	s.Upsert(item{id: "a", name: "uno"})
	after := s.Items()

	assert.Equal(t, "one", before[0].name)
	assert.Equal(t, "uno", after[0].name)
	assert.Equal(t, 2, s.Total())

	s.Upsert(item{id: "z"})
	assert.Equal(t, []string{"z", "a", "b"}, ids(s.Items()))
	assert.Equal(t, 3, s.Total())
}

func TestRemove(t *testing.T) {
	s := New[item]("test", time.Minute)
	s.Set([]item{{id: "a"}, {id: "b"}}, 2)

	assert.True(t, s.Remove("a"))
	assert.False(t, s.Remove("a"))
	assert.Equal(t, []string{"b"}, ids(s.Items()))
	assert.Equal(t, 1, s.Total())
}

func TestShouldFetch(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	s := New[item]("test", 5*time.Minute)
	s.now = func() time.Time { return now }

	assert.True(t, s.ShouldFetch("guest", 1))

	s.Set([]item{{id: "a"}}, 1)
	s.MarkFetched("guest", 1)
	assert.False(t, s.ShouldFetch("guest", 1))
	assert.True(t, s.ShouldFetch("guest", 2), "a different page is not cached")

	now = now.Add(6 * time.Minute)
	assert.True(t, s.ShouldFetch("guest", 1), "expired")

	s.MarkFetched("guest", 1)
	s.SetError(errors.New("boom"))
	assert.True(t, s.ShouldFetch("guest", 1), "errored")
	assert.False(t, s.Loading())
	assert.Len(t, s.Items(), 1, "items survive an error")

	s.Set([]item{{id: "a"}}, 1)
	s.MarkFetched("guest", 1)
	s.Invalidate()
	assert.True(t, s.ShouldFetch("guest", 1))
	assert.Len(t, s.Items(), 1)
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	s := New[item]("bookings", time.Minute)
	var mu sync.Mutex
	var kinds []string
	unsub := s.Subscribe(func(c Change) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, "bookings", c.Store)
		kinds = append(kinds, c.Kind)
	})

	s.Set(nil, 0)
	s.Append(item{id: "a"})
	s.Append(item{id: "a"})
	unsub()
	s.Upsert(item{id: "b"})

	assert.Equal(t, []string{ChangeSet, ChangeAppend}, kinds)
}

func TestConcurrentAppend(t *testing.T) {
	s := New[item]("test", time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Append(item{id: string(rune('a' + i%10))})
		}(i)
	}
	wg.Wait()
	assert.Len(t, s.Items(), 10)
	assert.Equal(t, 10, s.Total())
}

func TestValueTTL(t *testing.T) {
	now := time.Now()
	v := NewValue[models.WalletMetrics](WalletStore, time.Minute)
	v.now = func() time.Time { return now }

	_, ok := v.Get()
	assert.False(t, ok)

	v.Set(models.WalletMetrics{PayoutBalance: 120})
	got, ok := v.Get()
	require.True(t, ok)
	assert.Equal(t, 120.0, got.PayoutBalance)

	now = now.Add(2 * time.Minute)
	_, ok = v.Get()
	assert.False(t, ok)
	got, ok = v.Peek()
	require.True(t, ok)
	assert.Equal(t, 120.0, got.PayoutBalance)

	now = now.Add(-2 * time.Minute)
	v.Invalidate()
	_, ok = v.Get()
	assert.False(t, ok)
}

func TestRegistryForwardsChanges(t *testing.T) {
	r := NewRegistry(time.Minute)
	var got []uuid.UUID
	r.Listen(func(userID uuid.UUID, c Change) {
		got = append(got, userID)
	})

	user := uuid.New()
	sess := r.Get(user)
	assert.Same(t, sess, r.Get(user))

	sess.Bookings.Append(models.Booking{ID: uuid.New()})
	require.Len(t, got, 1)
	assert.Equal(t, user, got[0])

	_, ok := r.Peek(uuid.New())
	assert.False(t, ok)
}

func TestRegistryEvict(t *testing.T) {
	r := NewRegistry(time.Minute)
	a := r.Get(uuid.New())
	r.Get(uuid.New())

	a.touch(time.Now().Add(-2 * time.Hour))
	assert.Equal(t, 1, r.Evict(time.Hour))
	assert.Equal(t, 1, r.Len())
}

func TestSessionFindPaymentByIntent(t *testing.T) {
	sess := NewSession(uuid.New(), time.Minute)
	rec := models.PaymentRecord{ID: uuid.New(), PaymentIntentID: "pi_42"}
	sess.Payments.Append(rec)

	got, ok := sess.FindPaymentByIntent("pi_42")
	require.True(t, ok)
	assert.Equal(t, rec.ID, got.ID)

	_, ok = sess.FindPaymentByIntent("missing")
	assert.False(t, ok)
}
