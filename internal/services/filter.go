package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"ecommerce-dashboard/internal/models"
)

const DateLayout = "2006-01-02"

var (
	ErrInvalidRange = errors.New("invalid date range")
	ErrNotLoaded    = errors.New("dataset not loaded")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ParseRange builds a range from YYYY-MM-DD strings. Empty values fall back
// to the first and last approval days of the dataset.
func ParseRange(start, end string, bounds models.DateRange) (models.DateRange, error) {
	rng := bounds

	if s := strings.TrimSpace(start); s != "" {
		t, err := time.Parse(DateLayout, s)
		if err != nil {
			return models.DateRange{}, fmt.Errorf("%w: start %q is not a YYYY-MM-DD date", ErrInvalidRange, start)
		}
		rng.Start = t
	}
	if s := strings.TrimSpace(end); s != "" {
		t, err := time.Parse(DateLayout, s)
		if err != nil {
			return models.DateRange{}, fmt.Errorf("%w: end %q is not a YYYY-MM-DD date", ErrInvalidRange, end)
		}
		rng.End = t
	}

	if err := validate.Struct(rng); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return models.DateRange{}, fmt.Errorf("%w: %s", ErrInvalidRange, describe(verrs[0]))
		}
		return models.DateRange{}, fmt.Errorf("%w: %v", ErrInvalidRange, err)
	}
	return rng, nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return strings.ToLower(fe.Field()) + " date is required"
	case "gtefield":
		return "end date must not be before start date"
	}
	return fe.Error()
}

// dayBounds widens the approval timestamps of a dataset to whole days.
func dayBounds(minDate, maxDate time.Time) models.DateRange {
	if minDate.IsZero() || maxDate.IsZero() {
		return models.DateRange{}
	}
	return models.DateRange{Start: truncateDay(minDate), End: truncateDay(maxDate)}
}
