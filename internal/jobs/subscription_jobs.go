package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"lexdesk/internal/caching"
	"lexdesk/internal/models"
	"lexdesk/internal/services"

	"github.com/google/uuid"
)

// reminderTTL outlives the look-ahead window so a period is reminded once.
const reminderTTL = (models.ExpiringSoonDays + 1) * 24 * time.Hour

type SubscriptionJobs struct {
	subscriptions services.SubscriptionService
	cache         caching.CacheService
	now           services.Clock
}

type RenewalReminder struct {
	UserID        uuid.UUID
	PlanName      string
	EndDate       time.Time
	DaysRemaining int
	Amount        int64
}

// NewSubscriptionJobs builds the periodic subscription tasks. Without a cache
// reminders are not de-duplicated across runs.
func NewSubscriptionJobs(subscriptions services.SubscriptionService, cache caching.CacheService, clock services.Clock) *SubscriptionJobs {
	if clock == nil {
		clock = services.SystemClock
	}
	return &SubscriptionJobs{
		subscriptions: subscriptions,
		cache:         cache,
		now:           clock,
	}
}

// SweepExpired marks every overdue subscription expired.
func (j *SubscriptionJobs) SweepExpired(ctx context.Context) (int, error) {
	log.Printf("Starting subscription expiry sweep")
	count, err := j.subscriptions.ExpireOldSubscriptions(ctx)
	if err != nil {
		log.Printf("Subscription expiry sweep failed: %v", err)
		return 0, err
	}
	log.Printf("Completed subscription expiry sweep: %d subscriptions expired", count)
	return count, nil
}

// SendRenewalReminders reminds auto-renewing subscribers whose period ends
// within the expiring-soon window. Each billing period is reminded at most once.
func (j *SubscriptionJobs) SendRenewalReminders(ctx context.Context) (int, error) {
	subs, err := j.subscriptions.GetExpiringSoon(ctx, models.ExpiringSoonDays)
	if err != nil {
		log.Printf("Failed to list expiring subscriptions: %v", err)
		return 0, err
	}

	asOf := j.now()
	var reminders []RenewalReminder
	for _, sub := range subs {
		if !sub.AutoRenew {
			continue
		}
		if j.cache != nil {
			first, err := j.cache.MarkOnce(ctx, reminderKey(sub), reminderTTL)
			if err != nil {
				log.Printf("Failed to record reminder for user %s: %v", sub.UserID, err)
				continue
			}
			if !first {
				continue
			}
		}
		reminders = append(reminders, RenewalReminder{
			UserID:        sub.UserID,
			PlanName:      sub.PlanName,
			EndDate:       sub.EndDate,
			DaysRemaining: sub.DaysRemaining(asOf),
			Amount:        sub.Amount,
		})
	}

	j.logReminders(reminders)
	return len(reminders), nil
}

func (j *SubscriptionJobs) logReminders(reminders []RenewalReminder) {
	if len(reminders) == 0 {
		log.Println("No renewal reminders to send")
		return
	}
	for _, r := range reminders {
		log.Printf("REMINDER: user %s plan '%s' renews on %s (%d days, %.2f INR)",
			r.UserID, r.PlanName, r.EndDate.Format("2006-01-02"), r.DaysRemaining, models.PaiseToRupees(r.Amount))
	}
}

func reminderKey(sub *models.Subscription) string {
	return fmt.Sprintf("reminder:%s:%s", sub.UserID, sub.EndDate.UTC().Format("2006-01-02"))
}
