package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-grading/app/service"
	"github.com/vibast-solutions/ms-go-grading/config"
)

var (
	workerMode bool
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile stale pending payments and saved-card charges with Stripe",
	Run: func(_ *cobra.Command, _ []string) {
		runCommand(
			"reconcile",
			func(cfg *config.Config) time.Duration { return cfg.Jobs.ReconcileInterval },
			func(s *service.SubmissionService, ctx context.Context) (int, error) {
				return s.RunReconcileBatch(ctx)
			},
		)
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	reconcileCmd.Flags().BoolVar(&workerMode, "worker", false, "Run continuously using configured interval")
}

type jobFunc func(s *service.SubmissionService, ctx context.Context) (int, error)

func runCommand(name string, intervalResolver func(cfg *config.Config) time.Duration, fn jobFunc) {
	rt := mustCreateRuntime()
	defer rt.cleanup()

	if workerMode {
		runWorker(name, intervalResolver(rt.cfg), rt.submissionService, fn)
		return
	}

	ctx := context.Background()
	runJob(name, func() (int, error) { return fn(rt.submissionService, ctx) })
}

func runWorker(name string, interval time.Duration, submissionService *service.SubmissionService, fn jobFunc) {
	if interval <= 0 {
		logrus.WithField("job", name).Fatal("invalid worker interval")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runJob(name, func() (int, error) { return fn(submissionService, ctx) })

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	for {
		select {
		case <-quit:
			logrus.WithField("job", name).Info("Worker shutdown requested")
			return
		case <-ticker.C:
			runJob(name, func() (int, error) { return fn(submissionService, ctx) })
		}
	}
}

func runJob(name string, fn func() (int, error)) {
	start := time.Now()
	applied, err := fn()
	latency := time.Since(start)
	entry := logrus.WithField("job", name).WithField("latency", latency.String()).WithField("applied", applied)
	if err != nil {
		entry.WithError(err).Error("job_failed")
		return
	}
	entry.Info("job_completed")
}
