package tune

import (
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/sagemaker"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/sagerun/sagerun/internal/model"
	"github.com/sagerun/sagerun/internal/session"
	"github.com/sagerun/sagerun/internal/train"
)

const defaultPollInterval = 30 * time.Second

// TuningJob is the opaque handle a tuning submission returns.
type TuningJob struct {
	Name string
	ARN  string

	PollInterval time.Duration

	sess   *session.Session
	syslog *logrus.Entry
}

// NewTuningJob wraps an already-submitted tuning job by name.
func NewTuningJob(sess *session.Session, name, arn string) *TuningJob {
	return &TuningJob{
		Name:         name,
		ARN:          arn,
		PollInterval: defaultPollInterval,
		sess:         sess,
		syslog:       logrus.WithField("tuning-job", name),
	}
}

// Counters summarizes the campaign's per-job outcomes.
type Counters struct {
	Completed  int64
	InProgress int64
	Failed     int64
	Stopped    int64
}

// Description is the subset of the platform's tuning job description read
// locally.
type Description struct {
	State    model.State
	Counters Counters

	BestJobName     string
	BestMetricName  string
	BestMetricValue float64
	HasBest         bool
}

// Describe fetches the campaign's current description from the platform.
func (j *TuningJob) Describe(ctx aws.Context) (Description, error) {
	out, err := j.sess.Training().DescribeHyperParameterTuningJobWithContext(ctx,
		&sagemaker.DescribeHyperParameterTuningJobInput{
			HyperParameterTuningJobName: aws.String(j.Name),
		})
	if err != nil {
		return Description{}, errors.Wrapf(err, "failed to describe tuning job %s", j.Name)
	}

	state, err := model.StateFromPlatform(aws.StringValue(out.HyperParameterTuningJobStatus))
	if err != nil {
		return Description{}, err
	}

	desc := Description{State: state}
	if c := out.TrainingJobStatusCounters; c != nil {
		desc.Counters = Counters{
			Completed:  aws.Int64Value(c.Completed),
			InProgress: aws.Int64Value(c.InProgress),
			Failed:     aws.Int64Value(c.NonRetryableError) + aws.Int64Value(c.RetryableError),
			Stopped:    aws.Int64Value(c.Stopped),
		}
	}
	if best := out.BestTrainingJob; best != nil {
		desc.HasBest = true
		desc.BestJobName = aws.StringValue(best.TrainingJobName)
		if m := best.FinalHyperParameterTuningJobObjectiveMetric; m != nil {
			desc.BestMetricName = aws.StringValue(m.MetricName)
			desc.BestMetricValue = aws.Float64Value(m.Value)
		}
	}
	return desc, nil
}

// Status returns the campaign's current state.
func (j *TuningJob) Status(ctx aws.Context) (model.State, error) {
	desc, err := j.Describe(ctx)
	if err != nil {
		return "", err
	}
	return desc.State, nil
}

// Wait polls the platform until the campaign reaches a terminal state or the
// context is canceled.
func (j *TuningJob) Wait(ctx aws.Context) (Description, error) {
	interval := j.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		desc, err := j.Describe(ctx)
		if err != nil {
			return Description{}, err
		}
		j.syslog.Debugf("tuning job state %s (%d completed, %d in progress, %d failed)",
			desc.State, desc.Counters.Completed, desc.Counters.InProgress, desc.Counters.Failed)
		if desc.State.Terminal() {
			if desc.State == model.FailedState {
				return desc, errors.Errorf("tuning job %s failed", j.Name)
			}
			return desc, nil
		}

		select {
		case <-ctx.Done():
			return Description{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

// BestTrainingJob returns a handle on the campaign's best job so far.
func (j *TuningJob) BestTrainingJob(ctx aws.Context) (*train.Job, error) {
	desc, err := j.Describe(ctx)
	if err != nil {
		return nil, err
	}
	if !desc.HasBest {
		return nil, errors.Errorf("tuning job %s has no completed training job yet", j.Name)
	}
	return train.NewJob(j.sess, desc.BestJobName), nil
}
