package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/joshua-takyi/staylink/internal/models"
)

const (
	BookingsStore         = "bookings"
	PaymentsStore         = "payments"
	PayoutsStore          = "payouts"
	WalletStore           = "wallet"
	LastAvailabilityStore = "availability"
)

// Session groups the caches of one signed-in user.
type Session struct {
	UserID uuid.UUID

	Bookings         *Store[models.Booking]
	Payments         *Store[models.PaymentRecord]
	Payouts          *Store[models.PayoutRequest]
	Wallet           *Value[models.WalletMetrics]
	LastAvailability *Value[models.AvailabilityResult]

	mu       sync.Mutex
	lastSeen time.Time
}

func NewSession(userID uuid.UUID, ttl time.Duration) *Session {
	return &Session{
		UserID:           userID,
		Bookings:         New[models.Booking](BookingsStore, ttl),
		Payments:         New[models.PaymentRecord](PaymentsStore, ttl),
		Payouts:          New[models.PayoutRequest](PayoutsStore, ttl),
		Wallet:           NewValue[models.WalletMetrics](WalletStore, ttl),
		LastAvailability: NewValue[models.AvailabilityResult](LastAvailabilityStore, ttl),
		lastSeen:         time.Now(),
	}
}

// Subscribe listens to every cache of the session.
func (s *Session) Subscribe(fn func(Change)) func() {
	unsubs := []func(){
		s.Bookings.Subscribe(fn),
		s.Payments.Subscribe(fn),
		s.Payouts.Subscribe(fn),
		s.Wallet.Subscribe(fn),
		s.LastAvailability.Subscribe(fn),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// FindPaymentByIntent looks a cached payment record up by provider intent id.
func (s *Session) FindPaymentByIntent(intentID string) (models.PaymentRecord, bool) {
	return s.Payments.FindFunc(func(p models.PaymentRecord) bool {
		return p.PaymentIntentID == intentID
	})
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen)
}

// Registry owns one Session per user.
type Registry struct {
	ttl time.Duration

	mu        sync.Mutex
	sessions  map[uuid.UUID]*Session
	listeners []func(uuid.UUID, Change)
}

func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{
		ttl:      ttl,
		sessions: make(map[uuid.UUID]*Session),
	}
}

// Listen registers fn for changes in every session, including ones created later.
func (r *Registry) Listen(fn func(userID uuid.UUID, c Change)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// Get returns the user's session, creating it on first use.
func (r *Registry) Get(userID uuid.UUID) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if sess, ok := r.sessions[userID]; ok {
		sess.touch(now)
		return sess
	}

	sess := NewSession(userID, r.ttl)
	sess.Subscribe(func(c Change) {
		r.mu.Lock()
		listeners := append([]func(uuid.UUID, Change){}, r.listeners...)
		r.mu.Unlock()
		for _, l := range listeners {
			l(userID, c)
		}
	})
	r.sessions[userID] = sess
	return sess
}

// Peek returns an existing session without creating one.
func (r *Registry) Peek(userID uuid.UUID) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[userID]
	return sess, ok
}

func (r *Registry) Drop(userID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, userID)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Evict drops sessions idle for longer than maxIdle and returns how many went.
func (r *Registry) Evict(maxIdle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	evicted := 0
	for id, sess := range r.sessions {
		if sess.idleSince(now) > maxIdle {
			delete(r.sessions, id)
			evicted++
		}
	}
	return evicted
}

// Run evicts idle sessions every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Evict(maxIdle)
		}
	}
}
