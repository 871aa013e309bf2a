package jobs

import (
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

func NewScheduler() (gocron.Scheduler, error) {
	return gocron.NewScheduler(gocron.WithLocation(time.UTC))
}

// OverdueLoansJob runs the overdue sweep once a day at the given times.
func OverdueLoansJob(scheduler gocron.Scheduler, atTimes gocron.AtTimes, sweeper *OverdueSweeper, logger *slog.Logger) (gocron.Job, error) {
	return scheduler.NewJob(
		gocron.DailyJob(1, atTimes),
		gocron.NewTask(func() error {
			logger.Info("running overdue loans job")

			count, err := sweeper.Run()
			if err != nil {
				logger.Error("overdue loans job failed", "error", err)
				return err
			}

			logger.Info("overdue loans job completed", "defaulted", count)
			return nil
		}),
		gocron.WithName("overdue-loans"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
}

// Resumer restarts pollers for pending transactions.
type Resumer interface {
	ResumePending() (int, error)
}

// ResumePendingJob periodically re-watches pending transactions, picking up
// rows written by other instances or left behind by a crashed poller.
func ResumePendingJob(scheduler gocron.Scheduler, interval time.Duration, resumer Resumer, logger *slog.Logger) (gocron.Job, error) {
	return scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() error {
			if _, err := resumer.ResumePending(); err != nil {
				logger.Error("resume pending transactions failed", "error", err)
				return err
			}
			return nil
		}),
		gocron.WithName("resume-pending-transactions"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
}
