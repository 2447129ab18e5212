package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/travelplanner/tripauth"
	"github.com/travelplanner/tripauth/api"
)

func runStatus(ctx context.Context, a *app, _ []string) error {
	res, err := a.engine.Bootstrap(ctx)
	if err != nil {
		return err
	}
	if !a.engine.IsAuthenticated() {
		fmt.Fprintf(a.out, "Not signed in (%s)\n", res.Outcome)
		return nil
	}
	info, _, err := a.engine.GetSessionInfo()
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Signed in as %s (%s storage)\n", info.Email, info.Storage)
	if !info.ExpiresAt.IsZero() {
		fmt.Fprintf(a.out, "Session expires %s (in %s)\n", info.ExpiresAt.Local().Format(time.RFC1123), info.Remaining.Round(time.Second))
	}
	return nil
}

func runLogout(ctx context.Context, a *app, _ []string) error {
	if _, err := a.engine.Bootstrap(ctx); err != nil {
		return err
	}
	if err := a.engine.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Signed out")
	return nil
}

func runHealth(ctx context.Context, a *app, _ []string) error {
	status := a.engine.HealthReport(ctx)
	if status.BackendAvailable {
		fmt.Fprintf(a.out, "backend  ok    %s\n", status.BackendLatency.Round(time.Millisecond))
	} else {
		fmt.Fprintf(a.out, "backend  down  %s\n", status.BackendError)
	}
	if status.RedisConfigured {
		if status.RedisAvailable {
			fmt.Fprintf(a.out, "redis    ok    %s\n", status.RedisLatency.Round(time.Millisecond))
		} else {
			fmt.Fprintln(a.out, "redis    down")
		}
	}
	if !status.Healthy() {
		return errUnhealthy
	}
	fmt.Fprintln(a.out, "Backend is healthy")
	return nil
}

var errUnhealthy = &tripauth.ValidationError{Field: "health", Message: "One or more dependencies are unavailable."}

func runPlan(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("plan", flag.ContinueOnError)
	desc := fs.String("d", "", "trip description (required)")
	dest := fs.String("dest", "", "destination")
	start := fs.String("start", "", "start date, YYYY-MM-DD")
	days := fs.Int("days", 0, "number of days")
	budget := fs.String("budget", "", "Low, Medium or High")
	tags := fs.String("tags", "", "comma-separated trip tags")
	locate := fs.Bool("geocode", false, "resolve activity locations to coordinates")
	if err := fs.Parse(args); err != nil {
		return err
	}

	req := &api.TripRequest{
		TripDescription: *desc,
		Destination:     *dest,
		StartDate:       *start,
		Days:            *days,
		BudgetLevel:     *budget,
		TripTags:        splitTags(*tags),
	}
	if err := req.Validate(); err != nil {
		return &tripauth.ValidationError{Field: "trip", Message: strings.TrimPrefix(err.Error(), api.ErrInvalidTrip.Error()+": ")}
	}

	if _, err := a.engine.Bootstrap(ctx); err != nil {
		return err
	}
	if !a.engine.IsAuthenticated() {
		return &tripauth.ValidationError{Field: "session", Message: "Not signed in. Run `tripauth login` first."}
	}

	it, err := a.engine.GenerateItinerary(ctx, req)
	if errors.Is(err, tripauth.ErrNotAuthenticated) {
		return &tripauth.ValidationError{Field: "session", Message: "Session rejected by the backend. Run `tripauth login` again."}
	}
	if err != nil {
		return err
	}
	printItinerary(a, it)

	if *locate {
		geo := a.engine.Geocoder()
		if geo == nil {
			return &tripauth.ValidationError{Field: "geocode", Message: "No geocoder configured (TRIPAUTH_GEOCODER_URL)."}
		}
		points, err := geo.Locate(ctx, it)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, "\nLocations:")
		for _, name := range it.Locations() {
			if p, ok := points[name]; ok {
				fmt.Fprintf(a.out, "  %-40s %.5f, %.5f\n", name, p.Latitude, p.Longitude)
			} else {
				fmt.Fprintf(a.out, "  %-40s not found\n", name)
			}
		}
	}
	return nil
}

func printItinerary(a *app, it *api.Itinerary) {
	currency := it.Meta.Currency
	fmt.Fprintf(a.out, "%s, %d days\n", it.Destination, it.NumDays)
	for _, day := range it.Days {
		fmt.Fprintf(a.out, "\nDay %d: %s\n", day.DayNumber, day.Theme)
		for _, act := range day.Activities {
			fmt.Fprintf(a.out, "  %-10s %s @ %s\n", act.TimeOfDay, act.Title, act.Location)
		}
		fmt.Fprintf(a.out, "  day cost: %s %s\n", day.Cost().StringFixed(2), currency)
	}
	fmt.Fprintf(a.out, "\nEstimated total: %s %s\n", it.TotalCost().StringFixed(2), currency)
}

func splitTags(raw string) []string {
	var out []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func runSecurity(_ context.Context, a *app, _ []string) error {
	r := a.engine.SecurityReport()
	fmt.Fprintf(a.out, "backend        %s (tls=%t)\n", r.APIBaseURL, r.TLS)
	fmt.Fprintf(a.out, "storage        %s (persistent=%t)\n", r.Storage, r.PersistentSession)
	fmt.Fprintf(a.out, "code lifetime  %s\n", r.ChallengeTTL)
	fmt.Fprintf(a.out, "resend limit   %t\n", r.ResendCooldownEnforced)
	for _, w := range r.Warnings() {
		fmt.Fprintf(a.out, "warning: %s\n", w)
	}
	return nil
}
