package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/joshua-takyi/staylink/internal/events"
	"github.com/joshua-takyi/staylink/internal/helpers"
	"github.com/joshua-takyi/staylink/internal/models"
	"github.com/joshua-takyi/staylink/internal/payment"
	"github.com/supabase-community/gotrue-go/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newPrincipal(role string) *helpers.Principal {
	return &helpers.Principal{
		UserID:      uuid.New(),
		Email:       role + "@example.com",
		Role:        role,
		AccessToken: "token-" + role,
	}
}

type fakeBookingRepo struct {
	mu           sync.Mutex
	bookings     map[uuid.UUID]models.Booking
	availability *models.AvailabilityResult
	availErr     error
	insertErr    error
	updateErr    error
	inserts      int
	listCalls    int
	lastUpdate   map[string]interface{}
}

func newFakeBookingRepo() *fakeBookingRepo {
	return &fakeBookingRepo{
		bookings:     make(map[uuid.UUID]models.Booking),
		availability: &models.AvailabilityResult{IsAvailable: true},
	}
}

func (f *fakeBookingRepo) put(b models.Booking) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bookings[b.ID] = b
}

func (f *fakeBookingRepo) CheckPropertyAvailability(ctx context.Context, propertyID uuid.UUID, checkIn, checkOut string, accessToken string) (*models.AvailabilityResult, error) {
	if f.availErr != nil {
		return nil, f.availErr
	}
	res := *f.availability
	res.PropertyID = propertyID
	return &res, nil
}

func (f *fakeBookingRepo) InsertBooking(ctx context.Context, booking *models.Booking, accessToken string) (*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserts++
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	created := *booking
	created.ID = uuid.New()
	created.CreatedAt = time.Now()
	f.bookings[created.ID] = created
	return &created, nil
}

func (f *fakeBookingRepo) GetBooking(ctx context.Context, id uuid.UUID, accessToken string) (*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (f *fakeBookingRepo) ListBookingsForGuest(ctx context.Context, guestID uuid.UUID, offset, limit int, accessToken string) ([]models.Booking, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	var rows []models.Booking
	for _, b := range f.bookings {
		if b.GuestID == guestID {
			rows = append(rows, b)
		}
	}
	return rows, len(rows), nil
}

func (f *fakeBookingRepo) UpdateBookingStatus(ctx context.Context, id uuid.UUID, status models.BookingStatus, fields map[string]interface{}, accessToken string) (*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	b, ok := f.bookings[id]
	if !ok {
		return nil, fmt.Errorf("no booking found to update")
	}
	b.Status = status
	if reason, ok := fields["cancellation_reason"].(string); ok {
		b.CancellationReason = reason
	}
	f.bookings[id] = b
	f.lastUpdate = fields
	return &b, nil
}

func (f *fakeBookingRepo) listCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

type fakePropertyRepo struct {
	timezone    string
	timezoneErr error
	property    *models.Property
	pricingErr  error
}

func (f *fakePropertyRepo) GetPropertyTimezone(ctx context.Context, propertyID uuid.UUID, accessToken string) (string, error) {
	return f.timezone, f.timezoneErr
}

func (f *fakePropertyRepo) GetPropertyPricing(ctx context.Context, propertyID uuid.UUID, accessToken string) (*models.Property, error) {
	if f.pricingErr != nil {
		return nil, f.pricingErr
	}
	p := *f.property
	p.ID = propertyID
	return &p, nil
}

type fakePaymentRepo struct {
	mu        sync.Mutex
	records   map[string]*models.PaymentRecord
	updates   int
	updateErr error
	insertErr error
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{records: make(map[string]*models.PaymentRecord)}
}

func (f *fakePaymentRepo) InsertPaymentRecord(ctx context.Context, record *models.PaymentRecord, accessToken string) (*models.PaymentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	cp := *record
	f.records[record.PaymentIntentID] = &cp
	out := cp
	return &out, nil
}

// UpdatePaymentRecordByIntent only touches in-flight rows, like the real filter.
func (f *fakePaymentRepo) UpdatePaymentRecordByIntent(ctx context.Context, intentID string, update models.PaymentUpdate, accessToken string) (*models.PaymentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	rec, ok := f.records[intentID]
	if !ok || rec.PaymentStatus.IsTerminal() {
		return nil, nil
	}
	f.updates++
	rec.PaymentStatus = update.Status
	rec.TransactionID = update.TransactionID
	rec.FailureReason = update.FailureReason
	if update.NetAmount != nil {
		rec.NetAmount = *update.NetAmount
	}
	out := *rec
	return &out, nil
}

func (f *fakePaymentRepo) ListPaymentRecords(ctx context.Context, userID uuid.UUID, offset, limit int, accessToken string) ([]models.PaymentRecord, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var rows []models.PaymentRecord
	for _, r := range f.records {
		if r.UserID == userID {
			rows = append(rows, *r)
		}
	}
	return rows, len(rows), nil
}

func (f *fakePaymentRepo) GetCompletedPaymentForBooking(ctx context.Context, bookingID uuid.UUID, accessToken string) (*models.PaymentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.BookingID == bookingID && r.PaymentStatus == models.PaymentCompleted {
			out := *r
			return &out, nil
		}
	}
	return nil, nil
}

func (f *fakePaymentRepo) get(intentID string) models.PaymentRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.records[intentID]
}

func (f *fakePaymentRepo) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.updates
}

type fakeIntents struct {
	mu    sync.Mutex
	calls int
	err   error
	gate  chan struct{}
	fees  payment.Fees
}

func (f *fakeIntents) CreateIntent(ctx context.Context, accessToken string, req payment.IntentRequest) (*payment.IntentResponse, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	gate := f.gate
	err := f.err
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return &payment.IntentResponse{
		PaymentIntentID: fmt.Sprintf("pi_%d", n),
		Amount:          req.Amount,
		Currency:        req.Currency,
		Fees:            f.fees,
	}, nil
}

func (f *fakeIntents) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeNotifier stands in for the websocket hub behind the checkout widget.
type fakeNotifier struct {
	mu          sync.Mutex
	connections int
	messages    []string
}

func (f *fakeNotifier) SendToUser(userID uuid.UUID, payload interface{}) int {
	raw, _ := json.Marshal(payload)
	var msg struct {
		Type string `json:"type"`
	}
	_ = json.Unmarshal(raw, &msg)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connections == 0 {
		return 0
	}
	f.messages = append(f.messages, msg.Type)
	return f.connections
}

func (f *fakeNotifier) count(msgType string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.messages {
		if m == msgType {
			n++
		}
	}
	return n
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type fakeRefundRepo struct {
	calc *models.RefundCalculation
	err  error
}

func (f *fakeRefundRepo) CalculateRefundAmount(ctx context.Context, bookingID uuid.UUID, cancellationDate time.Time, accessToken string) (*models.RefundCalculation, error) {
	if f.err != nil {
		return nil, f.err
	}
	c := *f.calc
	return &c, nil
}

type fakePayoutRepo struct {
	mu           sync.Mutex
	requestCalls int
	metricsCalls int
	metrics      models.WalletMetrics
	decided      *models.PayoutRequest
}

func (f *fakePayoutRepo) RequestPayout(ctx context.Context, amount float64, accessToken string) (*models.PayoutRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requestCalls++
	return &models.PayoutRequest{ID: uuid.New(), Amount: amount, Currency: "XOF", Status: models.PayoutPending, RequestedAt: time.Now()}, nil
}

func (f *fakePayoutRepo) ApprovePayout(ctx context.Context, id uuid.UUID, action models.PayoutAction, note string, accessToken string) (*models.PayoutRequest, error) {
	target, _ := action.TargetStatus()
	out := *f.decided
	out.ID = id
	out.Status = target
	out.Note = note
	return &out, nil
}

func (f *fakePayoutRepo) ListPayoutRequests(ctx context.Context, userID *uuid.UUID, status models.PayoutStatus, offset, limit int, accessToken string) ([]models.PayoutRequest, int, error) {
	return nil, 0, nil
}

func (f *fakePayoutRepo) GetWalletMetrics(ctx context.Context, userID uuid.UUID, accessToken string) (*models.WalletMetrics, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metricsCalls++
	m := f.metrics
	return &m, nil
}

type fakeUserRepo struct {
	getErrs  []error
	getCalls int
	user     *models.User
}

func (f *fakeUserRepo) CreateUser(ctx context.Context, user *models.User) (*types.SignupResponse, error) {
	return &types.SignupResponse{}, nil
}

func (f *fakeUserRepo) AuthenticateUser(ctx context.Context, email, password string) (*types.TokenResponse, error) {
	return nil, fmt.Errorf("invalid login credentials")
}

func (f *fakeUserRepo) RefreshToken(ctx context.Context, refreshToken string) (*types.TokenResponse, error) {
	return &types.TokenResponse{}, nil
}

func (f *fakeUserRepo) GetUser(ctx context.Context, id uuid.UUID, accessToken string) (*models.User, error) {
	f.getCalls++
	if len(f.getErrs) > 0 {
		err := f.getErrs[0]
		f.getErrs = f.getErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return f.user, nil
}

type fakeAdminRepo struct {
	stats *models.PropertyStatistics
}

func (f *fakeAdminRepo) GetAdminPropertyStatistics(ctx context.Context, accessToken string) (*models.PropertyStatistics, error) {
	return f.stats, nil
}

func (f *fakeAdminRepo) ListPropertiesByStatus(ctx context.Context, status models.PropertyStatus, offset, limit int, accessToken string) ([]*models.Property, error) {
	return []*models.Property{{ID: uuid.New(), Status: status}}, nil
}
