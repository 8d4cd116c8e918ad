package background

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Job names, also used by the admin run-now endpoint.
const (
	ExpirySweepJob      = "subscription-expiry-sweep"
	RenewalReminderJob  = "renewal-reminders"
	DefaultSweepCron    = "0 0 * * *"
	DefaultReminderCron = "0 9 * * *"
)

var ErrUnknownJob = errors.New("unknown job")

// SubscriptionJobRunner is the work the scheduler triggers.
type SubscriptionJobRunner interface {
	SweepExpired(ctx context.Context) (int, error)
	SendRenewalReminders(ctx context.Context) (int, error)
}

type Schedule struct {
	SweepCron    string
	ReminderCron string
	Location     *time.Location
}

// JobScheduler runs the subscription jobs on cron schedules. Jobs run in
// singleton mode so a slow sweep is never overlapped by the next one.
type JobScheduler struct {
	scheduler gocron.Scheduler
	runner    SubscriptionJobRunner
	ctx       context.Context
	cancel    context.CancelFunc
	jobJobs   map[string]gocron.Job
	mu        sync.RWMutex
}

// NewJobScheduler creates a new job scheduler
func NewJobScheduler(runner SubscriptionJobRunner, schedule Schedule) (*JobScheduler, error) {
	if schedule.SweepCron == "" {
		schedule.SweepCron = DefaultSweepCron
	}
	if schedule.ReminderCron == "" {
		schedule.ReminderCron = DefaultReminderCron
	}
	if schedule.Location == nil {
		schedule.Location = time.UTC
	}

	scheduler, err := gocron.NewScheduler(gocron.WithLocation(schedule.Location))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	js := &JobScheduler{
		scheduler: scheduler,
		runner:    runner,
		ctx:       ctx,
		cancel:    cancel,
		jobJobs:   make(map[string]gocron.Job),
	}

	if err := js.registerJobs(schedule); err != nil {
		cancel()
		_ = scheduler.Shutdown()
		return nil, err
	}
	return js, nil
}

// Start starts the job scheduler
func (js *JobScheduler) Start() {
	log.Printf("Starting background job scheduler")
	js.scheduler.Start()
}

// Stop cancels running jobs and stops the scheduler
func (js *JobScheduler) Stop() error {
	log.Printf("Stopping background job scheduler")
	js.cancel()
	return js.scheduler.Shutdown()
}

func (js *JobScheduler) registerJobs(schedule Schedule) error {
	if err := js.addCronJob(ExpirySweepJob, schedule.SweepCron, js.runExpirySweep); err != nil {
		return err
	}
	if err := js.addCronJob(RenewalReminderJob, schedule.ReminderCron, js.runRenewalReminders); err != nil {
		return err
	}
	log.Printf("Registered %d background jobs", len(js.jobJobs))
	return nil
}

func (js *JobScheduler) addCronJob(name, crontab string, task func(context.Context) error) error {
	js.mu.Lock()
	defer js.mu.Unlock()

	job, err := js.scheduler.NewJob(
		gocron.CronJob(crontab, false),
		gocron.NewTask(task, js.ctx),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to create %s job with schedule %q: %w", name, crontab, err)
	}
	js.jobJobs[name] = job
	return nil
}

func (js *JobScheduler) runExpirySweep(ctx context.Context) error {
	_, err := js.runner.SweepExpired(ctx)
	return err
}

func (js *JobScheduler) runRenewalReminders(ctx context.Context) error {
	_, err := js.runner.SendRenewalReminders(ctx)
	return err
}

// RunNow triggers a registered job outside its schedule.
func (js *JobScheduler) RunNow(name string) error {
	js.mu.RLock()
	job, exists := js.jobJobs[name]
	js.mu.RUnlock()

	if !exists {
		return fmt.Errorf("%s: %w", name, ErrUnknownJob)
	}
	log.Printf("Triggering job %s on demand", name)
	return job.RunNow()
}

type JobStatus struct {
	Name    string    `json:"name"`
	NextRun time.Time `json:"next_run"`
	LastRun time.Time `json:"last_run"`
}

// GetJobStatus returns information about scheduled jobs
func (js *JobScheduler) GetJobStatus() []JobStatus {
	js.mu.RLock()
	defer js.mu.RUnlock()

	statuses := make([]JobStatus, 0, len(js.jobJobs))
	for name, job := range js.jobJobs {
		status := JobStatus{Name: name}
		if next, err := job.NextRun(); err == nil {
			status.NextRun = next
		}
		if last, err := job.LastRun(); err == nil {
			status.LastRun = last
		}
		statuses = append(statuses, status)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })
	return statuses
}
