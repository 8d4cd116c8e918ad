package models

// Plan is a purchasable price point for one role and billing cycle.
type Plan struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Description  string       `json:"description"`
	Role         UserRole     `json:"role"`
	BillingCycle BillingCycle `json:"billing_cycle"`
	Amount       int64        `json:"amount"`
	Currency     string       `json:"currency"`
	TrialDays    int          `json:"trial_days"`
	Features     []string     `json:"features"`
}

func (p Plan) AmountInRupees() float64 {
	return PaiseToRupees(p.Amount)
}
