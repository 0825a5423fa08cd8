package types

import "math"

type PlanID string

const (
	PlanIDDaily    PlanID = "daily"
	PlanIDWeekly   PlanID = "weekly"
	PlanIDMonthly  PlanID = "monthly"
	PlanIDSixMonth PlanID = "sixmonth"
)

// Plan is a server-trusted catalog entry. Clients only ever send the ID.
type Plan struct {
	ID           PlanID  `json:"id" mapstructure:"id"`
	Name         string  `json:"name" mapstructure:"name"`
	DurationDays int     `json:"duration_days" mapstructure:"duration_days"`
	Price        float64 `json:"price" mapstructure:"price"`
	Currency     string  `json:"currency" mapstructure:"currency"`
}

// PriceCents returns the plan price in minor currency units.
func (p *Plan) PriceCents() int64 {
	return int64(math.Round(p.Price * 100))
}

// DefaultPlans is the catalog used when config does not define one.
func DefaultPlans() []*Plan {
	return []*Plan{
		{ID: PlanIDDaily, Name: "Daily Pass", DurationDays: 1, Price: 1.99, Currency: "usd"},
		{ID: PlanIDWeekly, Name: "Weekly Plan", DurationDays: 7, Price: 4.99, Currency: "usd"},
		{ID: PlanIDMonthly, Name: "Monthly Plan", DurationDays: 30, Price: 12.99, Currency: "usd"},
		{ID: PlanIDSixMonth, Name: "6-Month Plan", DurationDays: 180, Price: 39.99, Currency: "usd"},
	}
}
