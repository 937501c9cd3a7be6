package validator

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"parkly/pkg/logger"
	"parkly/pkg/model"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

type ReservationValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewReservationValidator(log *logger.Logger) *ReservationValidator {
	return &ReservationValidator{
		validate: validator.New(),
		logger:   log,
	}
}

func (v *ReservationValidator) Validate(reservation *model.Reservation) error {
	if err := v.validate.Struct(reservation); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return translateValidationErrors(validationErrs)
		}
		return err
	}
	return v.validateInterval(reservation.StartTime, reservation.EndTime)
}

// ValidateInterval checks a candidate interval on its own, for updates where
// only the times change.
func (v *ReservationValidator) ValidateInterval(start, end time.Time) error {
	return v.validateInterval(start, end)
}

// startGrace absorbs client clock skew on the start-time check.
const startGrace = time.Minute

func (v *ReservationValidator) validateInterval(start, end time.Time) error {
	var validationErrors ValidationErrors

	if start.Before(time.Now().Add(-startGrace)) {
		validationErrors = append(validationErrors, ValidationError{
			Field:   "StartTime",
			Message: "StartTime cannot be in the past",
		})
	}
	if !end.After(start) {
		validationErrors = append(validationErrors, ValidationError{
			Field:   "EndTime",
			Message: "EndTime must be after StartTime",
		})
	}

	if len(validationErrors) > 0 {
		return validationErrors
	}
	return nil
}

func translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "gtfield":
			message = fmt.Sprintf("%s must be after %s", err.Field(), err.Param())
		case "mongodb":
			message = fmt.Sprintf("%s must be a valid MongoDB ObjectID", err.Field())
		case "oneof":
			message = fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
