package services

import (
	"fmt"
	"sort"

	"lexdesk/internal/models"
)

// DefaultTrialDays applies when no trial length is configured.
const DefaultTrialDays = 14

type PlanCatalog interface {
	List() []models.Plan
	Get(planID string) (models.Plan, error)
	Find(role models.UserRole, cycle models.BillingCycle) (models.Plan, error)
}

type planCatalog struct {
	plans map[string]models.Plan
}

type planPrice struct {
	role        models.UserRole
	title       string
	description string
	monthly     int64
	yearly      int64
	features    []string
}

// Prices are in paise. Yearly plans cost ten monthly payments.
var planPrices = []planPrice{
	{
		role:        models.RoleStudent,
		title:       "Student",
		description: "Case notes and study tools for law students",
		monthly:     19900,
		yearly:      199900,
		features:    []string{"Case notes", "Moot court planner", "Bare acts library"},
	},
	{
		role:        models.RoleAdvocate,
		title:       "Advocate",
		description: "Full practice management for advocates",
		monthly:     49900,
		yearly:      499900,
		features:    []string{"Client and case management", "Hearing calendar", "Document drafting", "Clerk delegation"},
	},
	{
		role:        models.RoleClerk,
		title:       "Clerk",
		description: "Filing and cause-list tracking for court clerks",
		monthly:     29900,
		yearly:      299900,
		features:    []string{"Cause list tracking", "Filing checklist", "Advocate sharing"},
	},
}

func PlanID(role models.UserRole, cycle models.BillingCycle) string {
	return fmt.Sprintf("%s-%s", role, cycle)
}

func NewPlanCatalog(trialDays int) PlanCatalog {
	if trialDays <= 0 {
		trialDays = DefaultTrialDays
	}
	plans := make(map[string]models.Plan, len(planPrices)*2)
	for _, p := range planPrices {
		for _, cycle := range []models.BillingCycle{models.BillingMonthly, models.BillingYearly} {
			amount, label := p.monthly, "Monthly"
			if cycle == models.BillingYearly {
				amount, label = p.yearly, "Yearly"
			}
			id := PlanID(p.role, cycle)
			plans[id] = models.Plan{
				ID:           id,
				Name:         p.title + " " + label,
				Description:  p.description,
				Role:         p.role,
				BillingCycle: cycle,
				Amount:       amount,
				Currency:     models.DefaultCurrency,
				TrialDays:    trialDays,
				Features:     p.features,
			}
		}
	}
	return &planCatalog{plans: plans}
}

func (c *planCatalog) List() []models.Plan {
	plans := make([]models.Plan, 0, len(c.plans))
	for _, p := range c.plans {
		plans = append(plans, p)
	}
	sort.Slice(plans, func(i, j int) bool { return plans[i].ID < plans[j].ID })
	return plans
}

func (c *planCatalog) Get(planID string) (models.Plan, error) {
	plan, ok := c.plans[planID]
	if !ok {
		return models.Plan{}, fmt.Errorf("plan %q: %w", planID, models.ErrNotFound)
	}
	return plan, nil
}

func (c *planCatalog) Find(role models.UserRole, cycle models.BillingCycle) (models.Plan, error) {
	if _, err := models.ParseUserRole(string(role)); err != nil {
		return models.Plan{}, err
	}
	if _, err := models.ParseBillingCycle(string(cycle)); err != nil {
		return models.Plan{}, err
	}
	return c.Get(PlanID(role, cycle))
}
