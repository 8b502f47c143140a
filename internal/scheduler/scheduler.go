package scheduler

import (
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/hydrozone/sprinkler-weather/internal/store"
)

// Scheduler runs the store's maintenance off the request path: a
// periodic snapshot to disk and an hourly retention trim.
type Scheduler struct {
	scheduler *gocron.Scheduler
	store     *store.ObservationStore
	interval  time.Duration
	persist   bool
}

// New creates a Scheduler. When persist is false the snapshot job is
// skipped and only trimming runs.
func New(obs *store.ObservationStore, interval time.Duration, persist bool) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		store:     obs,
		interval:  interval,
		persist:   persist,
	}
}

// Start schedules the maintenance jobs and starts the underlying
// scheduler. Persistence failures are logged and retried on the next
// tick, never fatal.
func (s *Scheduler) Start() error {
	if s.persist {
		minutes := int(s.interval.Minutes())
		if minutes <= 0 {
			minutes = 30
		}
		_, err := s.scheduler.Every(minutes).Minutes().Do(func() {
			if err := s.store.Persist(); err != nil {
				log.Printf("scheduler: observation snapshot failed: %v", err)
			}
		})
		if err != nil {
			return err
		}
	}

	_, err := s.scheduler.Every(1).Hour().Do(func() {
		s.store.Trim(time.Now())
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
