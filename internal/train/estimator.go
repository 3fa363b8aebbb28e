// Package train assembles training job configurations and submits them to the
// platform. Resource provisioning, scheduling, container execution, and metric
// scraping all happen inside the platform; this package only supplies the
// declarative configuration and reads back status.
package train

import (
	"bytes"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/sagemaker"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/sagerun/sagerun/internal/session"
	"github.com/sagerun/sagerun/pkg/check"
	"github.com/sagerun/sagerun/pkg/hparams"
	"github.com/sagerun/sagerun/pkg/imageref"
	"github.com/sagerun/sagerun/pkg/metricspec"
)

// The training-code channel convention: the staged source archive is attached
// as a named channel and the platform materializes it into a fixed path inside
// the container. The entry point and archive location travel as reserved
// hyperparameters the container runtime interprets.
const (
	CodeChannelName = "training-code"

	entryPointKey = "sagemaker_program"
	submitDirKey  = "sagemaker_submit_directory"

	trainingInputMode  = "File"
	s3DataType         = "S3Prefix"
	s3DataDistribution = "FullyReplicated"
)

// Defaults applied at submission when the caller leaves fields zero.
const (
	DefaultVolumeSizeGB = 30
	DefaultMaxRuntime   = 24 * time.Hour

	defaultPollInterval = 15 * time.Second

	maxJobNameLength = 63
)

var instanceTypePattern = regexp.MustCompile(`^(ml\.)?[a-z0-9]+\.[a-z0-9]+$`)

// Estimator describes a single training run. It is assembled once, validated,
// and submitted; the configuration is immutable once submitted.
type Estimator struct {
	Session *session.Session

	Image      imageref.ImageRef
	EntryPoint string
	SourceDir  string
	Role       string

	InstanceCount int64
	InstanceType  string
	VolumeSizeGB  int64
	MaxRuntime    time.Duration

	BaseJobName     string
	OutputPath      string
	Hyperparameters hparams.Hyperparameters
	Metrics         []metricspec.Definition

	// Channels maps additional channel names to storage locations. The
	// training-code channel is reserved.
	Channels map[string]string
}

// Validate implements the check.Validatable interface.
func (e Estimator) Validate() []error {
	errs := []error{
		check.True(e.Session != nil, "a session is required"),
		check.NotEmpty(e.EntryPoint, "entry_point must be set"),
		check.NotEmpty(e.SourceDir, "source_dir must be set"),
		check.NotEmpty(e.Role, "an execution role is required"),
		check.GreaterThan(e.InstanceCount, int64(0), "instance_count must be positive"),
		check.Match(e.InstanceType, instanceTypePattern.String(),
			"invalid instance type %q", e.InstanceType),
		check.GreaterThanOrEqualTo(e.VolumeSizeGB, int64(0),
			"volume_size must not be negative"),
	}
	for name := range e.Channels {
		errs = append(errs, check.True(name != CodeChannelName,
			"channel name %q is reserved", CodeChannelName))
	}
	return errs
}

// Fit stages the source directory, submits exactly one training job, and
// returns its handle. Platform failures are wrapped and propagated; nothing is
// retried or recovered locally.
func (e *Estimator) Fit(ctx aws.Context) (*Job, error) {
	if err := check.Validate(e); err != nil {
		return nil, err
	}

	jobName := NewName(e.BaseName(), maxJobNameLength)
	syslog := logrus.WithField("job", jobName)

	input, err := e.TrainingJobInput(ctx, jobName)
	if err != nil {
		return nil, err
	}

	syslog.Infof("submitting training job with image %s", e.Image)
	out, err := e.Session.Training().CreateTrainingJobWithContext(ctx, input)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to submit training job %s", jobName)
	}
	syslog.Infof("submitted training job %s", aws.StringValue(out.TrainingJobArn))

	return &Job{
		Name:         jobName,
		ARN:          aws.StringValue(out.TrainingJobArn),
		PollInterval: defaultPollInterval,
		sess:         e.Session,
		syslog:       syslog,
	}, nil
}

// BaseName is the stem job names are derived from: the configured base name,
// or else the entry point's file name.
func (e *Estimator) BaseName() string {
	if e.BaseJobName != "" {
		return e.BaseJobName
	}
	base := path.Base(strings.ReplaceAll(e.EntryPoint, "_", "-"))
	return strings.TrimSuffix(base, path.Ext(base))
}

// TrainingJobInput stages the source directory and assembles the submission
// request for the named job.
func (e *Estimator) TrainingJobInput(
	ctx aws.Context, jobName string,
) (*sagemaker.CreateTrainingJobInput, error) {
	outputPath, err := e.resolveOutputPath(ctx)
	if err != nil {
		return nil, err
	}
	submitDir, err := e.stageSource(ctx, outputPath, jobName)
	if err != nil {
		return nil, err
	}
	return e.trainingJobInput(jobName, outputPath, submitDir)
}

// resolveOutputPath falls back to the conventional bucket when the caller did
// not pin an output location.
func (e *Estimator) resolveOutputPath(ctx aws.Context) (string, error) {
	if e.OutputPath != "" {
		return e.OutputPath, nil
	}
	bucket, err := e.Session.DefaultBucket(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("s3://%s", bucket), nil
}

// stageSource packages the source directory and uploads it under the job's
// prefix, returning the archive's storage URI.
func (e *Estimator) stageSource(ctx aws.Context, outputPath, jobName string) (string, error) {
	archive, err := archiveDir(e.SourceDir)
	if err != nil {
		return "", err
	}

	bucket, prefix, err := splitS3URI(outputPath)
	if err != nil {
		return "", err
	}
	key := path.Join(prefix, jobName, "source", sourceArchiveName)

	_, err = e.Session.Storage().PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(archive),
		ContentType: aws.String("application/gzip"),
	})
	if err != nil {
		return "", errors.Wrapf(err, "failed to upload source archive for %s", jobName)
	}
	return fmt.Sprintf("s3://%s/%s", bucket, key), nil
}

func (e *Estimator) trainingJobInput(
	jobName, outputPath, submitDir string,
) (*sagemaker.CreateTrainingJobInput, error) {
	hp, err := e.Hyperparameters.ToStrings()
	if err != nil {
		return nil, err
	}
	hyperparameters := make(map[string]*string, len(hp)+2)
	for name, val := range hp {
		hyperparameters[name] = aws.String(val)
	}
	hyperparameters[entryPointKey] = aws.String(e.EntryPoint)
	hyperparameters[submitDirKey] = aws.String(submitDir)

	var metricDefs []*sagemaker.MetricDefinition
	for _, m := range e.Metrics {
		metricDefs = append(metricDefs, &sagemaker.MetricDefinition{
			Name:  aws.String(m.Name),
			Regex: aws.String(m.Regex),
		})
	}

	channels := []*sagemaker.Channel{newChannel(CodeChannelName, submitDir)}
	for _, name := range sortedChannelNames(e.Channels) {
		channels = append(channels, newChannel(name, e.Channels[name]))
	}

	volumeSize := e.VolumeSizeGB
	if volumeSize == 0 {
		volumeSize = DefaultVolumeSizeGB
	}
	maxRuntime := e.MaxRuntime
	if maxRuntime == 0 {
		maxRuntime = DefaultMaxRuntime
	}

	return &sagemaker.CreateTrainingJobInput{
		TrainingJobName: aws.String(jobName),
		RoleArn:         aws.String(e.Role),
		AlgorithmSpecification: &sagemaker.AlgorithmSpecification{
			TrainingImage:     aws.String(e.Image.String()),
			TrainingInputMode: aws.String(trainingInputMode),
			MetricDefinitions: metricDefs,
		},
		HyperParameters: hyperparameters,
		InputDataConfig: channels,
		OutputDataConfig: &sagemaker.OutputDataConfig{
			S3OutputPath: aws.String(outputPath),
		},
		ResourceConfig: &sagemaker.ResourceConfig{
			InstanceCount:  aws.Int64(e.InstanceCount),
			InstanceType:   aws.String(e.InstanceType),
			VolumeSizeInGB: aws.Int64(volumeSize),
		},
		StoppingCondition: &sagemaker.StoppingCondition{
			MaxRuntimeInSeconds: aws.Int64(int64(maxRuntime.Seconds())),
		},
	}, nil
}

func newChannel(name, uri string) *sagemaker.Channel {
	return &sagemaker.Channel{
		ChannelName: aws.String(name),
		DataSource: &sagemaker.DataSource{
			S3DataSource: &sagemaker.S3DataSource{
				S3DataType:             aws.String(s3DataType),
				S3Uri:                  aws.String(uri),
				S3DataDistributionType: aws.String(s3DataDistribution),
			},
		},
	}
}

func sortedChannelNames(channels map[string]string) []string {
	names := make([]string, 0, len(channels))
	for name := range channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewName derives a platform-unique job name from a base, keeping the result
// within maxLength. Tuning job names have a tighter limit than training jobs,
// so the limit is the caller's.
func NewName(base string, maxLength int) string {
	sanitized := sanitizeName(base)
	suffix := fmt.Sprintf("%s-%s",
		time.Now().UTC().Format("20060102-150405"),
		uuid.New().String()[:8])
	if max := maxLength - len(suffix) - 1; len(sanitized) > max {
		sanitized = sanitized[:max]
	}
	return fmt.Sprintf("%s-%s", sanitized, suffix)
}

var invalidNameChars = regexp.MustCompile(`[^a-zA-Z0-9]+`)

func sanitizeName(name string) string {
	sanitized := invalidNameChars.ReplaceAllString(name, "-")
	sanitized = strings.Trim(sanitized, "-")
	if sanitized == "" {
		sanitized = "training"
	}
	return sanitized
}
