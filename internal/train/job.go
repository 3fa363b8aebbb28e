package train

import (
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/sagemaker"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/sagerun/sagerun/internal/model"
	"github.com/sagerun/sagerun/internal/session"
)

// Job is the opaque handle a submission returns. It is only used to poll the
// platform for status.
type Job struct {
	Name string
	ARN  string

	PollInterval time.Duration

	sess   *session.Session
	syslog *logrus.Entry
}

// NewJob wraps an already-submitted training job by name.
func NewJob(sess *session.Session, name string) *Job {
	return &Job{
		Name:         name,
		PollInterval: defaultPollInterval,
		sess:         sess,
		syslog:       logrus.WithField("job", name),
	}
}

// Description is the subset of the platform's job description read locally.
type Description struct {
	State           model.State
	SecondaryStatus string
	FailureReason   string
	ModelArtifacts  string
}

// Describe fetches the job's current description from the platform.
func (j *Job) Describe(ctx aws.Context) (Description, error) {
	out, err := j.sess.Training().DescribeTrainingJobWithContext(ctx,
		&sagemaker.DescribeTrainingJobInput{
			TrainingJobName: aws.String(j.Name),
		})
	if err != nil {
		return Description{}, errors.Wrapf(err, "failed to describe training job %s", j.Name)
	}

	state, err := model.StateFromPlatform(aws.StringValue(out.TrainingJobStatus))
	if err != nil {
		return Description{}, err
	}

	desc := Description{
		State:           state,
		SecondaryStatus: aws.StringValue(out.SecondaryStatus),
		FailureReason:   aws.StringValue(out.FailureReason),
	}
	if out.ModelArtifacts != nil {
		desc.ModelArtifacts = aws.StringValue(out.ModelArtifacts.S3ModelArtifacts)
	}
	return desc, nil
}

// Status returns the job's current state.
func (j *Job) Status(ctx aws.Context) (model.State, error) {
	desc, err := j.Describe(ctx)
	if err != nil {
		return "", err
	}
	return desc.State, nil
}

// Wait polls the platform until the job reaches a terminal state or the
// context is canceled. A failed job is reported as an error carrying the
// platform's failure reason.
func (j *Job) Wait(ctx aws.Context) (Description, error) {
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
		j.syslog.Debugf("training job state %s (%s)", desc.State, desc.SecondaryStatus)
		if desc.State.Terminal() {
			if desc.State == model.FailedState {
				return desc, errors.Errorf("training job %s failed: %s", j.Name, desc.FailureReason)
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

// Stop asks the platform to stop the job. Stopping is asynchronous; callers
// observe the transition through Wait or Status.
func (j *Job) Stop(ctx aws.Context) error {
	_, err := j.sess.Training().StopTrainingJobWithContext(ctx,
		&sagemaker.StopTrainingJobInput{
			TrainingJobName: aws.String(j.Name),
		})
	return errors.Wrapf(err, "failed to stop training job %s", j.Name)
}
