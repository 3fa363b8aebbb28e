package main

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sagerun/sagerun/internal/history"
	"github.com/sagerun/sagerun/internal/train"
	"github.com/sagerun/sagerun/internal/tune"
)

var statusCmd = &cobra.Command{
	Use:   "status job-name",
	Short: "show the current state of a submitted job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStatus(cmd.Context(), args[0])
	},
}

var waitCmd = &cobra.Command{
	Use:   "wait job-name",
	Short: "block until a submitted job reaches a terminal state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWait(cmd.Context(), args[0])
	},
}

//nolint:gochecknoinit
func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(waitCmd)
}

// jobKind resolves whether a name refers to a training job or a tuning
// campaign from the local history; jobs submitted elsewhere default to
// training.
func jobKind(ctx context.Context, store *history.Store, name string) history.Kind {
	rec, err := store.Get(ctx, name)
	if err != nil {
		log.Debugf("%s not in local history, assuming a training job", name)
		return history.KindTraining
	}
	return rec.Kind
}

func runStatus(ctx context.Context, name string) error {
	sess, err := newSession()
	if err != nil {
		return err
	}
	store, err := openHistory()
	if err != nil {
		return err
	}

	if jobKind(ctx, store, name) == history.KindTuning {
		desc, err := tune.NewTuningJob(sess, name, "").Describe(ctx)
		if err != nil {
			return err
		}
		recordState(ctx, store, name, desc.State, "")
		fmt.Printf("%s %s (%d completed, %d in progress, %d failed)\n", name, desc.State,
			desc.Counters.Completed, desc.Counters.InProgress, desc.Counters.Failed)
		if desc.HasBest {
			fmt.Printf("best job: %s (%s = %g)\n",
				desc.BestJobName, desc.BestMetricName, desc.BestMetricValue)
		}
		return nil
	}

	desc, err := train.NewJob(sess, name).Describe(ctx)
	if err != nil {
		return err
	}
	recordState(ctx, store, name, desc.State, desc.FailureReason)
	fmt.Printf("%s %s (%s)\n", name, desc.State, desc.SecondaryStatus)
	if desc.FailureReason != "" {
		fmt.Printf("failure reason: %s\n", desc.FailureReason)
	}
	return nil
}

func runWait(ctx context.Context, name string) error {
	sess, err := newSession()
	if err != nil {
		return err
	}
	store, err := openHistory()
	if err != nil {
		return err
	}

	if jobKind(ctx, store, name) == history.KindTuning {
		desc, waitErr := tune.NewTuningJob(sess, name, "").Wait(ctx)
		if desc.State != "" {
			recordState(ctx, store, name, desc.State, "")
		}
		if waitErr != nil {
			return waitErr
		}
		fmt.Printf("%s %s\n", name, desc.State)
		return nil
	}

	desc, waitErr := train.NewJob(sess, name).Wait(ctx)
	if desc.State != "" {
		recordState(ctx, store, name, desc.State, desc.FailureReason)
	}
	if waitErr != nil {
		return waitErr
	}
	fmt.Printf("%s %s\n", name, desc.State)
	return nil
}
