package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joshua-takyi/staylink/internal/apperrors"
	"github.com/joshua-takyi/staylink/internal/events"
	"github.com/joshua-takyi/staylink/internal/helpers"
	"github.com/joshua-takyi/staylink/internal/models"
)

const (
	DefaultPageSize = 20
	publishTimeout  = 5 * time.Second
)

func requirePrincipal(p *helpers.Principal) error {
	if p == nil {
		return apperrors.AuthenticationRequired()
	}
	return nil
}

// validate runs struct tags and turns failures into a VALIDATION_ERROR with one entry per field.
func validate(v interface{}) error {
	err := models.Validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		details := make(map[string]any, len(fieldErrs))
		for _, fe := range fieldErrs {
			details[fe.Field()] = fe.Tag()
		}
		return apperrors.Validation("invalid request", details)
	}
	return apperrors.Validation(err.Error(), nil)
}

// publish sends an event without failing the caller; the backend change already happened.
func publish(publisher events.Publisher, logger *slog.Logger, ev events.Event) {
	if publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := publisher.Publish(ctx, ev); err != nil {
		logger.Warn("failed to publish event",
			"event_type", ev.Type,
			"key", ev.Key,
			"error", err,
		)
	}
}
