package validator

import (
	"testing"

	"parkly/pkg/logger"
	"parkly/pkg/model"
)

func newValidator(t *testing.T) *PricingRuleValidator {
	t.Helper()
	log := logger.New(logger.Config{Level: logger.ERROR, Format: logger.JSON, Service: "test"})
	v, err := NewPricingRuleValidator(log)
	if err != nil {
		t.Fatalf("failed to build validator: %v", err)
	}
	return v
}

func validRule() *model.PricingRule {
	return &model.PricingRule{
		SpotType:     model.SpotTypeStandard,
		DayOfWeek:    "Monday",
		StartHour:    "08:00",
		EndHour:      "18:00",
		PricePerHour: 2.50,
	}
}

func TestValidate_AcceptsWellFormedRule(t *testing.T) {
	v := newValidator(t)
	if err := v.Validate(validRule()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_HourFormat(t *testing.T) {
	cases := []struct {
		hour string
		ok   bool
	}{
		{"00:00", true},
		{"09:30", true},
		{"23:59", true},
		{"24:00", false},
		{"9:30", false},
		{"09:60", false},
		{"0930", false},
		{"morning", false},
		{"", false},
	}

	v := newValidator(t)
	for _, tc := range cases {
		t.Run(tc.hour, func(t *testing.T) {
			rule := validRule()
			rule.StartHour = tc.hour
			err := v.Validate(rule)
			if tc.ok && err != nil {
				t.Errorf("expected %q to validate, got %v", tc.hour, err)
			}
			if !tc.ok && err == nil {
				t.Errorf("expected %q to fail validation", tc.hour)
			}
		})
	}
}

func TestValidate_RejectsInvertedHourRange(t *testing.T) {
	v := newValidator(t)

	rule := validRule()
	rule.StartHour = "18:00"
	rule.EndHour = "08:00"
	if err := v.Validate(rule); err == nil {
		t.Fatal("expected inverted hour range to fail")
	}

	rule = validRule()
	rule.StartHour = "08:00"
	rule.EndHour = "08:00"
	if err := v.Validate(rule); err == nil {
		t.Fatal("expected empty hour range to fail")
	}
}

func TestValidate_RejectsUnknownDayAndType(t *testing.T) {
	v := newValidator(t)

	rule := validRule()
	rule.DayOfWeek = "Funday"
	if err := v.Validate(rule); err == nil {
		t.Fatal("expected unknown weekday to fail")
	}

	rule = validRule()
	rule.SpotType = "helipad"
	if err := v.Validate(rule); err == nil {
		t.Fatal("expected unknown spot type to fail")
	}
}

func TestValidateUpdate_PartialFieldsAllowed(t *testing.T) {
	v := newValidator(t)

	if err := v.ValidateUpdate(&model.PricingRuleUpdate{StartHour: "10:00"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := v.ValidateUpdate(&model.PricingRuleUpdate{}); err != nil {
		t.Fatalf("empty update must pass field validation: %v", err)
	}
	if err := v.ValidateUpdate(&model.PricingRuleUpdate{EndHour: "25:00"}); err == nil {
		t.Fatal("expected malformed hour to fail")
	}
}
