package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sagerun/sagerun/internal/config"
	"github.com/sagerun/sagerun/internal/history"
	"github.com/sagerun/sagerun/internal/session"
)

var submitArgs struct {
	file     string
	wait     bool
	cronSpec string
}

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "submit a training job described by a job file",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSubmit(cmd.Context())
	},
}

//nolint:gochecknoinit
func init() {
	submitCmd.Flags().StringVarP(&submitArgs.file, "file", "f", "", "job file (yaml)")
	submitCmd.Flags().BoolVar(&submitArgs.wait, "wait", false,
		"block until the job reaches a terminal state")
	submitCmd.Flags().StringVar(&submitArgs.cronSpec, "cron", "",
		"resubmit the job on a cron schedule instead of once")
	_ = submitCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(submitCmd)
}

func runSubmit(ctx context.Context) error {
	sess, err := newSession()
	if err != nil {
		return err
	}
	store, err := openHistory()
	if err != nil {
		return err
	}
	jf, err := config.ReadJobFile(submitArgs.file)
	if err != nil {
		return err
	}

	if submitArgs.cronSpec != "" {
		return runOnSchedule(ctx, submitArgs.cronSpec, func() error {
			return submitOnce(ctx, sess, store, jf)
		})
	}
	return submitOnce(ctx, sess, store, jf)
}

func submitOnce(ctx context.Context, sess *session.Session, store *history.Store,
	jf *config.JobFile,
) error {
	est, err := jf.Estimator(sess, conf)
	if err != nil {
		return err
	}

	job, err := est.Fit(ctx)
	if err != nil {
		return err
	}
	if err := store.RecordSubmission(ctx, &history.Record{
		Name:   job.Name,
		Kind:   history.KindTraining,
		ARN:    job.ARN,
		Image:  est.Image.String(),
		Region: sess.Region(),
	}); err != nil {
		log.WithError(err).Warn("failed to record submission in local history")
	}
	fmt.Println(job.Name)

	if !submitArgs.wait {
		return nil
	}
	desc, waitErr := job.Wait(ctx)
	if desc.State != "" {
		recordState(ctx, store, job.Name, desc.State, desc.FailureReason)
	}
	if waitErr != nil {
		return waitErr
	}
	fmt.Printf("%s %s\n", job.Name, desc.State)
	if desc.ModelArtifacts != "" {
		fmt.Printf("model artifacts: %s\n", desc.ModelArtifacts)
	}
	return nil
}

// runOnSchedule resubmits via the same submission path on a cron schedule
// until interrupted. Submission failures are logged and the schedule keeps
// going; periodic retraining should not stop because one run failed to submit.
func runOnSchedule(ctx context.Context, spec string, submit func() error) error {
	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		if err := submit(); err != nil {
			log.WithError(err).Error("scheduled submission failed")
		}
	}); err != nil {
		return err
	}

	log.Infof("scheduling submissions with spec %q", spec)
	c.Start()
	defer c.Stop()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case sig := <-sigs:
		log.Infof("received %s, stopping schedule", sig)
		return nil
	}
}
