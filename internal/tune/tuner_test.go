package tune

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/sagemaker"
	"github.com/aws/aws-sdk-go/service/sts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagerun/sagerun/internal/session"
	"github.com/sagerun/sagerun/internal/train"
	"github.com/sagerun/sagerun/pkg/hparams"
	"github.com/sagerun/sagerun/pkg/imageref"
	"github.com/sagerun/sagerun/pkg/metricspec"
	"github.com/sagerun/sagerun/pkg/ranges"
)

type fakeTraining struct {
	created  []*sagemaker.CreateHyperParameterTuningJobInput
	describe []*sagemaker.DescribeHyperParameterTuningJobOutput
}

func (f *fakeTraining) CreateTrainingJobWithContext(
	ctx aws.Context, in *sagemaker.CreateTrainingJobInput, opts ...request.Option,
) (*sagemaker.CreateTrainingJobOutput, error) {
	return nil, nil
}

func (f *fakeTraining) DescribeTrainingJobWithContext(
	ctx aws.Context, in *sagemaker.DescribeTrainingJobInput, opts ...request.Option,
) (*sagemaker.DescribeTrainingJobOutput, error) {
	return nil, nil
}

func (f *fakeTraining) StopTrainingJobWithContext(
	ctx aws.Context, in *sagemaker.StopTrainingJobInput, opts ...request.Option,
) (*sagemaker.StopTrainingJobOutput, error) {
	return nil, nil
}

func (f *fakeTraining) CreateHyperParameterTuningJobWithContext(
	ctx aws.Context, in *sagemaker.CreateHyperParameterTuningJobInput, opts ...request.Option,
) (*sagemaker.CreateHyperParameterTuningJobOutput, error) {
	f.created = append(f.created, in)
	return &sagemaker.CreateHyperParameterTuningJobOutput{
		HyperParameterTuningJobArn: aws.String(
			"arn:aws:sagemaker:us-west-2:123456789012:hyper-parameter-tuning-job/" +
				aws.StringValue(in.HyperParameterTuningJobName)),
	}, nil
}

func (f *fakeTraining) DescribeHyperParameterTuningJobWithContext(
	ctx aws.Context, in *sagemaker.DescribeHyperParameterTuningJobInput, opts ...request.Option,
) (*sagemaker.DescribeHyperParameterTuningJobOutput, error) {
	out := f.describe[0]
	if len(f.describe) > 1 {
		f.describe = f.describe[1:]
	}
	return out, nil
}

type fakeStorage struct{}

func (fakeStorage) PutObjectWithContext(
	ctx aws.Context, in *s3.PutObjectInput, opts ...request.Option,
) (*s3.PutObjectOutput, error) {
	return &s3.PutObjectOutput{}, nil
}

type fakeIdentity struct{}

func (fakeIdentity) GetCallerIdentityWithContext(
	ctx aws.Context, in *sts.GetCallerIdentityInput, opts ...request.Option,
) (*sts.GetCallerIdentityOutput, error) {
	return &sts.GetCallerIdentityOutput{Account: aws.String("123456789012")}, nil
}

func writeSourceDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "train.py"), []byte("pass\n"), 0o644))
	return dir
}

func newTestTuner(t *testing.T, training *fakeTraining) *Tuner {
	sess := session.NewWithClients("us-west-2", training, fakeStorage{}, fakeIdentity{})
	return &Tuner{
		Estimator: &train.Estimator{
			Session:       sess,
			Image:         imageref.ImageRef{Account: "123456789012", Region: "us-west-2", Repository: "dgl-training", Tag: "latest"},
			EntryPoint:    "train.py",
			SourceDir:     writeSourceDir(t),
			Role:          "arn:aws:iam::123456789012:role/training",
			InstanceCount: 1,
			InstanceType:  "ml.p3.2xlarge",
			Hyperparameters: hparams.Hyperparameters{
				"dataset":  "cora",
				"n-epochs": 200,
				"lr":       0.01,
			},
			Metrics: []metricspec.Definition{
				{Name: "test:accuracy", Regex: `Test Accuracy ([0-9\.]+)%`},
			},
		},
		Ranges: ranges.Ranges{
			"lr":       ranges.LogContinuous(1e-5, 1e-1),
			"n-hidden": ranges.Integer(8, 256),
			"model":    ranges.Categorical("gcn", "gat"),
		},
		Objective:       Objective{Metric: "test:accuracy"},
		MaxJobs:         12,
		MaxParallelJobs: 3,
	}
}

func TestFitSubmitsExactlyOneCampaign(t *testing.T) {
	training := &fakeTraining{}
	tuner := newTestTuner(t, training)

	job, err := tuner.Fit(context.Background())
	require.NoError(t, err)
	require.Len(t, training.created, 1)

	in := training.created[0]
	assert.Equal(t, job.Name, aws.StringValue(in.HyperParameterTuningJobName))
	assert.LessOrEqual(t, len(job.Name), maxTuningJobNameLength)

	config := in.HyperParameterTuningJobConfig
	assert.Equal(t, "Bayesian", aws.StringValue(config.Strategy))
	assert.Equal(t, "Maximize", aws.StringValue(config.HyperParameterTuningJobObjective.Type))
	assert.Equal(t, "test:accuracy",
		aws.StringValue(config.HyperParameterTuningJobObjective.MetricName))
	assert.Equal(t, int64(12), aws.Int64Value(config.ResourceLimits.MaxNumberOfTrainingJobs))
	assert.Equal(t, int64(3), aws.Int64Value(config.ResourceLimits.MaxParallelTrainingJobs))
}

func TestFitTranslatesRanges(t *testing.T) {
	training := &fakeTraining{}
	tuner := newTestTuner(t, training)

	_, err := tuner.Fit(context.Background())
	require.NoError(t, err)

	pr := training.created[0].HyperParameterTuningJobConfig.ParameterRanges
	require.Len(t, pr.ContinuousParameterRanges, 1)
	lr := pr.ContinuousParameterRanges[0]
	assert.Equal(t, "lr", aws.StringValue(lr.Name))
	assert.Equal(t, "1e-05", aws.StringValue(lr.MinValue))
	assert.Equal(t, "0.1", aws.StringValue(lr.MaxValue))
	assert.Equal(t, "Logarithmic", aws.StringValue(lr.ScalingType))

	require.Len(t, pr.IntegerParameterRanges, 1)
	hidden := pr.IntegerParameterRanges[0]
	assert.Equal(t, "n-hidden", aws.StringValue(hidden.Name))
	assert.Equal(t, "8", aws.StringValue(hidden.MinValue))
	assert.Equal(t, "256", aws.StringValue(hidden.MaxValue))

	require.Len(t, pr.CategoricalParameterRanges, 1)
	assert.Equal(t, []string{"gcn", "gat"},
		aws.StringValueSlice(pr.CategoricalParameterRanges[0].Values))
}

func TestFitDropsTunedStaticHyperparameters(t *testing.T) {
	training := &fakeTraining{}
	tuner := newTestTuner(t, training)

	_, err := tuner.Fit(context.Background())
	require.NoError(t, err)

	static := training.created[0].TrainingJobDefinition.StaticHyperParameters
	_, hasLR := static["lr"]
	assert.False(t, hasLR, "tuned hyperparameters must not stay static")
	assert.Equal(t, "cora", aws.StringValue(static["dataset"]))
	assert.Equal(t, "200", aws.StringValue(static["n-epochs"]))
}

func TestValidateParallelismBound(t *testing.T) {
	tuner := newTestTuner(t, &fakeTraining{})
	tuner.MaxJobs = 2
	tuner.MaxParallelJobs = 5

	_, err := tuner.Fit(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must not exceed max_jobs")
}

func TestValidateObjectiveMustBeExtracted(t *testing.T) {
	tuner := newTestTuner(t, &fakeTraining{})
	tuner.Objective.Metric = "validation:loss"

	_, err := tuner.Fit(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not among the job's metric definitions")
}

func TestValidateRequiresRanges(t *testing.T) {
	tuner := newTestTuner(t, &fakeTraining{})
	tuner.Ranges = nil

	_, err := tuner.Fit(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one parameter range")
}
