package api

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Budget levels accepted by the backend.
const (
	BudgetLow    = "Low"
	BudgetMedium = "Medium"
	BudgetHigh   = "High"
)

// ErrInvalidTrip is returned by TripRequest.Validate.
var ErrInvalidTrip = errors.New("invalid trip request")

// TripRequest is the body of POST /api/generate-itinerary.
type TripRequest struct {
	TripDescription  string   `json:"trip_description"`
	Destination      string   `json:"destination,omitempty"`
	StartDate        string   `json:"start_date,omitempty"`
	Days             int      `json:"days,omitempty"`
	BudgetLevel      string   `json:"budget_level,omitempty"`
	TripTags         []string `json:"trip_tags"`
	InspirationImage string   `json:"inspiration_image,omitempty"`
}

// Validate applies the checks the backend would reject on.
func (r *TripRequest) Validate() error {
	if strings.TrimSpace(r.TripDescription) == "" {
		return fmt.Errorf("%w: trip description is required", ErrInvalidTrip)
	}
	if r.Days < 0 {
		return fmt.Errorf("%w: days must be positive", ErrInvalidTrip)
	}
	switch r.BudgetLevel {
	case "", BudgetLow, BudgetMedium, BudgetHigh:
	default:
		return fmt.Errorf("%w: unknown budget level %q", ErrInvalidTrip, r.BudgetLevel)
	}
	return nil
}

// Activity is one entry of a day plan.
type Activity struct {
	TimeOfDay       string   `json:"timeOfDay"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Location        string   `json:"location"`
	Category        string   `json:"category"`
	EstimatedCost   float64  `json:"estimatedCost"`
	BookingRequired bool     `json:"bookingRequired"`
	Latitude        *float64 `json:"latitude,omitempty"`
	Longitude       *float64 `json:"longitude,omitempty"`
}

// HasCoordinates reports whether the backend already placed this activity on the map.
func (a Activity) HasCoordinates() bool {
	return a.Latitude != nil && a.Longitude != nil
}

// DayPlan groups the activities of one day.
type DayPlan struct {
	DayNumber  int        `json:"dayNumber"`
	Date       string     `json:"date,omitempty"`
	Theme      string     `json:"theme"`
	Summary    string     `json:"summary"`
	Activities []Activity `json:"activities"`
}

// Cost sums the estimated cost of the day's activities.
func (d DayPlan) Cost() decimal.Decimal {
	total := decimal.Zero
	for _, a := range d.Activities {
		total = total.Add(decimal.NewFromFloat(a.EstimatedCost))
	}
	return total
}

// ItineraryMeta carries currency and budget context.
type ItineraryMeta struct {
	Currency    string `json:"currency"`
	BudgetLevel string `json:"budgetLevel"`
	Notes       string `json:"notes"`
}

// Itinerary is the backend's structured plan.
type Itinerary struct {
	Destination      string        `json:"destination"`
	NumDays          int           `json:"numDays"`
	StyleKeywords    []string      `json:"styleKeywords"`
	ImageMoodSummary string        `json:"imageMoodSummary,omitempty"`
	Days             []DayPlan     `json:"days"`
	Meta             ItineraryMeta `json:"meta"`
}

// TotalCost sums every day's cost.
func (it *Itinerary) TotalCost() decimal.Decimal {
	total := decimal.Zero
	for _, d := range it.Days {
		total = total.Add(d.Cost())
	}
	return total
}

// Locations returns the distinct, non-empty activity locations in first-seen order.
func (it *Itinerary) Locations() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, d := range it.Days {
		for _, a := range d.Activities {
			loc := strings.TrimSpace(a.Location)
			if loc == "" {
				continue
			}
			if _, ok := seen[loc]; ok {
				continue
			}
			seen[loc] = struct{}{}
			out = append(out, loc)
		}
	}
	return out
}
