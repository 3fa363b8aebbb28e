// Package tune wraps a training job configuration into a hyperparameter
// tuning campaign. Selection strategy, range exploration order, and
// convergence logic are entirely delegated to the platform; this package only
// supplies the declarative configuration and reads back status.
package tune

import (
	"strconv"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/sagemaker"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/sagerun/sagerun/internal/train"
	"github.com/sagerun/sagerun/pkg/check"
	"github.com/sagerun/sagerun/pkg/ranges"
)

// Direction is the optimization direction of the objective metric.
type Direction string

// Directions.
const (
	Maximize Direction = "Maximize"
	Minimize Direction = "Minimize"
)

// Strategy names a platform search strategy.
type Strategy string

// Strategies the platform understands.
const (
	StrategyBayesian Strategy = "Bayesian"
	StrategyRandom   Strategy = "Random"
	StrategyGrid     Strategy = "Grid"
)

var strategies = []string{string(StrategyBayesian), string(StrategyRandom), string(StrategyGrid)}

const maxTuningJobNameLength = 32

// Objective names the metric the campaign optimizes. Direction defaults to
// maximize.
type Objective struct {
	Metric    string    `json:"metric"`
	Direction Direction `json:"direction,omitempty"`
}

// Validate implements the check.Validatable interface.
func (o Objective) Validate() []error {
	errs := []error{
		check.NotEmpty(o.Metric, "objective metric must be set"),
	}
	if o.Direction != "" {
		errs = append(errs, check.In(string(o.Direction),
			[]string{string(Maximize), string(Minimize)},
			"unknown objective direction %q", o.Direction))
	}
	return errs
}

// Tuner wraps an estimator with the parameter ranges and limits of a tuning
// campaign. Up to MaxJobs jobs run in total, at most MaxParallelJobs
// concurrently.
type Tuner struct {
	Estimator *train.Estimator

	Ranges    ranges.Ranges
	Objective Objective
	Strategy  Strategy

	MaxJobs         int64
	MaxParallelJobs int64

	BaseTuningJobName string
	EarlyStopping     bool
}

// Validate implements the check.Validatable interface.
func (t Tuner) Validate() []error {
	errs := []error{
		check.True(t.Estimator != nil, "an estimator is required"),
		check.GreaterThan(t.MaxJobs, int64(0), "max_jobs must be positive"),
		check.GreaterThan(t.MaxParallelJobs, int64(0), "max_parallel_jobs must be positive"),
		check.LessThanOrEqualTo(t.MaxParallelJobs, t.MaxJobs,
			"max_parallel_jobs (%d) must not exceed max_jobs (%d)", t.MaxParallelJobs, t.MaxJobs),
	}
	if t.Strategy != "" {
		errs = append(errs, check.In(string(t.Strategy), strategies,
			"unknown strategy %q", t.Strategy))
	}
	if t.Estimator != nil {
		errs = append(errs, t.validateObjectiveMetric())
	}
	return errs
}

// The objective must be one of the metrics the job definition extracts, or
// the platform has nothing to optimize on.
func (t Tuner) validateObjectiveMetric() error {
	for _, m := range t.Estimator.Metrics {
		if m.Name == t.Objective.Metric {
			return nil
		}
	}
	return errors.Errorf("objective metric %q is not among the job's metric definitions",
		t.Objective.Metric)
}

func (t *Tuner) direction() Direction {
	if t.Objective.Direction == "" {
		return Maximize
	}
	return t.Objective.Direction
}

func (t *Tuner) strategy() Strategy {
	if t.Strategy == "" {
		return StrategyBayesian
	}
	return t.Strategy
}

func (t *Tuner) baseName() string {
	if t.BaseTuningJobName != "" {
		return t.BaseTuningJobName
	}
	return t.Estimator.BaseName()
}

// Fit submits exactly one tuning campaign and returns its handle. The
// underlying training configuration is staged once and shared by every job
// the campaign launches.
func (t *Tuner) Fit(ctx aws.Context) (*TuningJob, error) {
	if err := check.Validate(t); err != nil {
		return nil, err
	}

	jobName := train.NewName(t.baseName(), maxTuningJobNameLength)
	syslog := logrus.WithField("tuning-job", jobName)

	trainingInput, err := t.Estimator.TrainingJobInput(ctx, jobName)
	if err != nil {
		return nil, err
	}

	input := &sagemaker.CreateHyperParameterTuningJobInput{
		HyperParameterTuningJobName:   aws.String(jobName),
		HyperParameterTuningJobConfig: t.tuningJobConfig(),
		TrainingJobDefinition:         t.trainingJobDefinition(trainingInput, syslog),
	}

	syslog.Infof("submitting tuning job: up to %d jobs, %d in parallel",
		t.MaxJobs, t.MaxParallelJobs)
	out, err := t.Estimator.Session.Training().CreateHyperParameterTuningJobWithContext(ctx, input)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to submit tuning job %s", jobName)
	}
	syslog.Infof("submitted tuning job %s", aws.StringValue(out.HyperParameterTuningJobArn))

	return NewTuningJob(t.Estimator.Session, jobName, aws.StringValue(out.HyperParameterTuningJobArn)), nil
}

func (t *Tuner) tuningJobConfig() *sagemaker.HyperParameterTuningJobConfig {
	earlyStopping := "Off"
	if t.EarlyStopping {
		earlyStopping = "Auto"
	}
	return &sagemaker.HyperParameterTuningJobConfig{
		Strategy: aws.String(string(t.strategy())),
		HyperParameterTuningJobObjective: &sagemaker.HyperParameterTuningJobObjective{
			Type:       aws.String(string(t.direction())),
			MetricName: aws.String(t.Objective.Metric),
		},
		ResourceLimits: &sagemaker.ResourceLimits{
			MaxNumberOfTrainingJobs: aws.Int64(t.MaxJobs),
			MaxParallelTrainingJobs: aws.Int64(t.MaxParallelJobs),
		},
		ParameterRanges:              t.parameterRanges(),
		TrainingJobEarlyStoppingType: aws.String(earlyStopping),
	}
}

// trainingJobDefinition reshapes a single-job submission into the tuning
// campaign's shared job definition. Hyperparameters under tuning are removed
// from the static set; the campaign supplies their values per job.
func (t *Tuner) trainingJobDefinition(
	in *sagemaker.CreateTrainingJobInput, syslog *logrus.Entry,
) *sagemaker.HyperParameterTrainingJobDefinition {
	static := make(map[string]*string, len(in.HyperParameters))
	for name, val := range in.HyperParameters {
		if _, tuned := t.Ranges[name]; tuned {
			syslog.Warnf("hyperparameter %q is under tuning, dropping its static value", name)
			continue
		}
		static[name] = val
	}

	return &sagemaker.HyperParameterTrainingJobDefinition{
		StaticHyperParameters: static,
		AlgorithmSpecification: &sagemaker.HyperParameterAlgorithmSpecification{
			TrainingImage:     in.AlgorithmSpecification.TrainingImage,
			TrainingInputMode: in.AlgorithmSpecification.TrainingInputMode,
			MetricDefinitions: in.AlgorithmSpecification.MetricDefinitions,
		},
		RoleArn:           in.RoleArn,
		InputDataConfig:   in.InputDataConfig,
		OutputDataConfig:  in.OutputDataConfig,
		ResourceConfig:    in.ResourceConfig,
		StoppingCondition: in.StoppingCondition,
	}
}

func (t *Tuner) parameterRanges() *sagemaker.ParameterRanges {
	pr := &sagemaker.ParameterRanges{}
	t.Ranges.Each(func(name string, r ranges.Range) {
		switch {
		case r.Categorical != nil:
			pr.CategoricalParameterRanges = append(pr.CategoricalParameterRanges,
				&sagemaker.CategoricalParameterRange{
					Name:   aws.String(name),
					Values: aws.StringSlice(r.Categorical.Vals),
				})
		case r.Continuous != nil:
			pr.ContinuousParameterRanges = append(pr.ContinuousParameterRanges,
				&sagemaker.ContinuousParameterRange{
					Name:        aws.String(name),
					MinValue:    aws.String(formatFloat(r.Continuous.Minval)),
					MaxValue:    aws.String(formatFloat(r.Continuous.Maxval)),
					ScalingType: scalingType(r.Continuous.Scaling),
				})
		case r.Integer != nil:
			pr.IntegerParameterRanges = append(pr.IntegerParameterRanges,
				&sagemaker.IntegerParameterRange{
					Name:        aws.String(name),
					MinValue:    aws.String(strconv.Itoa(r.Integer.Minval)),
					MaxValue:    aws.String(strconv.Itoa(r.Integer.Maxval)),
					ScalingType: scalingType(r.Integer.Scaling),
				})
		}
	})
	return pr
}

func formatFloat(val float64) string {
	return strconv.FormatFloat(val, 'g', -1, 64)
}

func scalingType(scaling ranges.ScalingType) *string {
	switch scaling {
	case ranges.ScalingLinear:
		return aws.String("Linear")
	case ranges.ScalingLog:
		return aws.String("Logarithmic")
	default:
		return aws.String("Auto")
	}
}
