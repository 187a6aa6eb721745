package services

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/joshua-takyi/staylink/internal/apperrors"
	"github.com/joshua-takyi/staylink/internal/events"
	"github.com/joshua-takyi/staylink/internal/helpers"
	"github.com/joshua-takyi/staylink/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const maxDisputePage = 100

type DisputeForm struct {
	BookingID uuid.UUID `json:"booking_id" validate:"required"`
	Reason    string    `json:"reason" validate:"required,min=10,max=2000"`
}

type DisputeDecision struct {
	Status     models.DisputeStatus `json:"status" validate:"required,oneof=resolved rejected"`
	Resolution string               `json:"resolution" validate:"max=2000"`
}

// AdminOverview is the moderation dashboard payload.
type AdminOverview struct {
	Properties *models.PropertyStatistics `json:"properties"`
	Disputes   *models.DisputeStats       `json:"disputes"`
}

type AdminService struct {
	admin     models.AdminRepo
	bookings  models.BookingRepo
	disputes  models.DisputeRepo
	publisher events.Publisher
	logger    *slog.Logger
}

func NewAdminService(admin models.AdminRepo, bookings models.BookingRepo, disputes models.DisputeRepo, publisher events.Publisher, logger *slog.Logger) *AdminService {
	return &AdminService{
		admin:     admin,
		bookings:  bookings,
		disputes:  disputes,
		publisher: publisher,
		logger:    logger,
	}
}

func requireAdmin(p *helpers.Principal) error {
	if err := requirePrincipal(p); err != nil {
		return err
	}
	if !p.IsAdmin() {
		return apperrors.Forbidden("admin access required")
	}
	return nil
}

func (as *AdminService) PropertyStatistics(ctx context.Context, p *helpers.Principal) (*models.PropertyStatistics, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	stats, err := as.admin.GetAdminPropertyStatistics(ctx, p.AccessToken)
	if err != nil {
		as.logger.Error("property statistics failed", "error", err)
		return nil, apperrors.RemoteOperation("get property statistics", err)
	}
	return stats, nil
}

func (as *AdminService) Overview(ctx context.Context, p *helpers.Principal) (*AdminOverview, error) {
	props, err := as.PropertyStatistics(ctx, p)
	if err != nil {
		return nil, err
	}
	disputes, err := as.DisputeStats(ctx, p)
	if err != nil {
		return nil, err
	}
	return &AdminOverview{Properties: props, Disputes: disputes}, nil
}

func (as *AdminService) ListPropertiesByStatus(ctx context.Context, p *helpers.Principal, status models.PropertyStatus, offset, limit int) ([]*models.Property, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	switch status {
	case models.PropertyPending, models.PropertyActive, models.PropertyInactive, models.PropertyRejected:
	default:
		return nil, apperrors.Validation("unknown property status", map[string]any{"status": status})
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}

	rows, err := as.admin.ListPropertiesByStatus(ctx, status, offset, limit, p.AccessToken)
	if err != nil {
		as.logger.Error("list properties by status failed", "status", status, "error", err)
		return nil, apperrors.RemoteOperation("list properties", err)
	}
	return rows, nil
}

// OpenDispute lets the guest or host of a booking escalate it to the admins.
func (as *AdminService) OpenDispute(ctx context.Context, p *helpers.Principal, form DisputeForm) (*models.Dispute, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	if err := validate(form); err != nil {
		return nil, err
	}

	booking, err := as.bookings.GetBooking(ctx, form.BookingID, p.AccessToken)
	if err != nil {
		return nil, apperrors.RemoteOperation("get booking", err)
	}
	if booking == nil {
		return nil, apperrors.NotFound("booking")
	}
	if booking.GuestID != p.UserID && booking.HostID != p.UserID {
		return nil, apperrors.Forbidden("only the guest or host can dispute this booking")
	}

	dispute, err := as.disputes.CreateDispute(ctx, &models.Dispute{
		BookingID: form.BookingID,
		OpenedBy:  p.UserID,
		Reason:    form.Reason,
	})
	if err != nil {
		as.logger.Error("failed to open dispute", "booking_id", form.BookingID, "error", err)
		return nil, apperrors.Internal("failed to open dispute", err)
	}

	publish(as.publisher, as.logger, events.New(events.DisputeOpened, dispute.ID.Hex(), p.UserID, dispute))
	return dispute, nil
}

func (as *AdminService) ListDisputes(ctx context.Context, p *helpers.Principal, status models.DisputeStatus, limit int) ([]*models.Dispute, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > maxDisputePage {
		limit = maxDisputePage
	}
	rows, err := as.disputes.ListDisputes(ctx, status, limit)
	if err != nil {
		return nil, apperrors.Internal("failed to list disputes", err)
	}
	return rows, nil
}

func (as *AdminService) ResolveDispute(ctx context.Context, p *helpers.Principal, id string, decision DisputeDecision) (*models.Dispute, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	if err := validate(decision); err != nil {
		return nil, err
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperrors.Validation("invalid dispute id", nil)
	}

	dispute, err := as.disputes.ResolveDispute(ctx, oid, decision.Status, decision.Resolution, p.UserID)
	if err != nil {
		return nil, apperrors.Internal("failed to resolve dispute", err)
	}
	if dispute == nil {
		return nil, apperrors.Conflict("dispute not found or already closed")
	}

	publish(as.publisher, as.logger, events.New(events.DisputeResolved, dispute.ID.Hex(), dispute.OpenedBy, dispute))
	return dispute, nil
}

func (as *AdminService) DisputeStats(ctx context.Context, p *helpers.Principal) (*models.DisputeStats, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	stats, err := as.disputes.GetDisputeStats(ctx)
	if err != nil {
		return nil, apperrors.Internal("failed to load dispute stats", err)
	}
	return stats, nil
}
