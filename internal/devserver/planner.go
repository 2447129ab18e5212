package devserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/travelplanner/tripauth/api"
)

// Planner turns a trip request into an itinerary.
type Planner interface {
	Plan(ctx context.Context, email string, req *api.TripRequest) (*api.Itinerary, error)
}

// PlaceholderPlanner returns a fixed-shape itinerary so clients can be exercised
// without a model behind the backend.
type PlaceholderPlanner struct{}

var placeholderSlots = []struct {
	timeOfDay string
	category  string
	cost      float64
}{
	{"Morning", "sightseeing", 15},
	{"Afternoon", "food", 22.5},
	{"Evening", "culture", 30},
}

func (PlaceholderPlanner) Plan(_ context.Context, _ string, req *api.TripRequest) (*api.Itinerary, error) {
	days := req.Days
	if days <= 0 {
		days = 3
	}
	dest := strings.TrimSpace(req.Destination)
	if dest == "" {
		dest = "Your destination"
	}
	budget := req.BudgetLevel
	if budget == "" {
		budget = api.BudgetMedium
	}

	it := &api.Itinerary{
		Destination:   dest,
		NumDays:       days,
		StyleKeywords: append([]string{}, req.TripTags...),
		Meta: api.ItineraryMeta{
			Currency:    "USD",
			BudgetLevel: budget,
			Notes:       "Placeholder plan from the development backend.",
		},
	}
	for d := 1; d <= days; d++ {
		plan := api.DayPlan{
			DayNumber: d,
			Theme:     fmt.Sprintf("Day %d in %s", d, dest),
			Summary:   "Explore at your own pace.",
		}
		for _, slot := range placeholderSlots {
			plan.Activities = append(plan.Activities, api.Activity{
				TimeOfDay:     slot.timeOfDay,
				Title:         fmt.Sprintf("%s %s", slot.timeOfDay, slot.category),
				Description:   req.TripDescription,
				Location:      fmt.Sprintf("%s %s spot %d", dest, slot.category, d),
				Category:      slot.category,
				EstimatedCost: slot.cost,
			})
		}
		it.Days = append(it.Days, plan)
	}
	return it, nil
}
