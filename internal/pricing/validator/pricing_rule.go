package validator

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"parkly/pkg/logger"
	"parkly/pkg/model"
)

var hourPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

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

type PricingRuleValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewPricingRuleValidator(log *logger.Logger) (*PricingRuleValidator, error) {
	v := validator.New()
	if err := v.RegisterValidation("valid_hour", validHour); err != nil {
		return nil, fmt.Errorf("failed to register valid_hour validation: %w", err)
	}
	return &PricingRuleValidator{
		validate: v,
		logger:   log,
	}, nil
}

// validHour accepts zero-padded 24-hour "HH:MM" strings. Zero padding keeps
// lexicographic comparison equivalent to time-of-day comparison.
func validHour(fl validator.FieldLevel) bool {
	return hourPattern.MatchString(fl.Field().String())
}

func (v *PricingRuleValidator) Validate(rule *model.PricingRule) error {
	if err := v.validate.Struct(rule); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return translateValidationErrors(validationErrs)
		}
		return err
	}

	if rule.EndHour <= rule.StartHour {
		return ValidationErrors{{
			Field:   "EndHour",
			Message: "EndHour must be after StartHour",
		}}
	}
	return nil
}

func (v *PricingRuleValidator) ValidateUpdate(update *model.PricingRuleUpdate) error {
	if err := v.validate.Struct(update); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return translateValidationErrors(validationErrs)
		}
		return err
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
		case "oneof":
			message = fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param())
		case "valid_hour":
			message = fmt.Sprintf("%s must be a 24-hour HH:MM string", err.Field())
		case "gte":
			message = fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
		case "mongodb":
			message = fmt.Sprintf("%s must be a valid MongoDB ObjectID", err.Field())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
