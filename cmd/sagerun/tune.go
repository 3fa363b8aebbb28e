package main

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sagerun/sagerun/internal/config"
	"github.com/sagerun/sagerun/internal/history"
)

var tuneArgs struct {
	file string
	wait bool
}

var tuneCmd = &cobra.Command{
	Use:   "tune",
	Short: "submit a hyperparameter tuning campaign described by a job file",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTune(cmd.Context())
	},
}

//nolint:gochecknoinit
func init() {
	tuneCmd.Flags().StringVarP(&tuneArgs.file, "file", "f", "", "job file (yaml) with a tuning section")
	tuneCmd.Flags().BoolVar(&tuneArgs.wait, "wait", false,
		"block until the campaign reaches a terminal state")
	_ = tuneCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(tuneCmd)
}

func runTune(ctx context.Context) error {
	sess, err := newSession()
	if err != nil {
		return err
	}
	store, err := openHistory()
	if err != nil {
		return err
	}
	jf, err := config.ReadJobFile(tuneArgs.file)
	if err != nil {
		return err
	}
	est, err := jf.Estimator(sess, conf)
	if err != nil {
		return err
	}
	tuner, err := jf.Tuner(est)
	if err != nil {
		return err
	}

	job, err := tuner.Fit(ctx)
	if err != nil {
		return err
	}
	if err := store.RecordSubmission(ctx, &history.Record{
		Name:   job.Name,
		Kind:   history.KindTuning,
		ARN:    job.ARN,
		Image:  est.Image.String(),
		Region: sess.Region(),
	}); err != nil {
		log.WithError(err).Warn("failed to record submission in local history")
	}
	fmt.Println(job.Name)

	if !tuneArgs.wait {
		return nil
	}
	desc, waitErr := job.Wait(ctx)
	if desc.State != "" {
		recordState(ctx, store, job.Name, desc.State, "")
	}
	if waitErr != nil {
		return waitErr
	}
	fmt.Printf("%s %s (%d completed, %d failed, %d stopped)\n", job.Name, desc.State,
		desc.Counters.Completed, desc.Counters.Failed, desc.Counters.Stopped)
	if desc.HasBest {
		fmt.Printf("best job: %s (%s = %g)\n",
			desc.BestJobName, desc.BestMetricName, desc.BestMetricValue)
	}
	return nil
}
