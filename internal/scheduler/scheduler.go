package scheduler

import (
	"context"
	"time"

	"github.com/ikkim/bookstore-backend/config"
	"github.com/ikkim/bookstore-backend/pkg/logger"
	"github.com/robfig/cron/v3"
)

// Job is one unit of background work. Each run gets its own deadline.
type Job struct {
	Name    string
	Spec    string
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

// Scheduler runs the outbox relay and the dashboard stats refresh.
type Scheduler struct {
	cron *cron.Cron
	jobs []Job
}

func New() *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}
}

// Add registers a job; it is a no-op before Start.
func (s *Scheduler) Add(job Job) {
	if job.Timeout <= 0 {
		job.Timeout = 30 * time.Second
	}
	s.jobs = append(s.jobs, job)
}

// Jobs returns the registered job names
func (s *Scheduler) Jobs() []string {
	names := make([]string, 0, len(s.jobs))
	for _, j := range s.jobs {
		names = append(names, j.Name)
	}
	return names
}

func (s *Scheduler) Start() error {
	for _, job := range s.jobs {
		job := job
		if _, err := s.cron.AddFunc(job.Spec, func() { runJob(job) }); err != nil {
			logger.Error("Failed to add cron job", err, map[string]interface{}{
				"job":  job.Name,
				"spec": job.Spec,
			})
			return err
		}
	}

	s.cron.Start()
	logger.Info("Scheduler started", map[string]interface{}{
		"jobs": s.Jobs(),
	})
	return nil
}

func runJob(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), job.Timeout)
	defer cancel()

	start := time.Now()
	if err := job.Run(ctx); err != nil {
		logger.Error("Scheduled job failed", err, map[string]interface{}{
			"job": job.Name,
		})
		return
	}
	logger.Debug("Scheduled job finished", map[string]interface{}{
		"job":         job.Name,
		"duration_ms": time.Since(start).Milliseconds(),
	})
}

// Stop waits for running jobs to finish
func (s *Scheduler) Stop() {
	logger.Info("Stopping scheduler...")
	<-s.cron.Stop().Done()
	logger.Info("Scheduler stopped")
}

// Register wires the standard jobs. relay may be nil when no broker is
// configured.
func Register(s *Scheduler, cfg config.SchedulerConfig, relay func(context.Context) error, refreshStats func(context.Context) error) {
	if relay != nil {
		s.Add(Job{Name: "outbox_relay", Spec: cfg.OutboxRelaySpec, Run: relay})
	}
	if refreshStats != nil {
		s.Add(Job{Name: "stats_refresh", Spec: cfg.StatsRefreshSpec, Run: refreshStats})
	}
}
