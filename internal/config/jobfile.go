package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ghodss/yaml"
	"github.com/pkg/errors"

	"github.com/sagerun/sagerun/internal/model"
	"github.com/sagerun/sagerun/internal/session"
	"github.com/sagerun/sagerun/internal/train"
	"github.com/sagerun/sagerun/internal/tune"
	"github.com/sagerun/sagerun/pkg/check"
	"github.com/sagerun/sagerun/pkg/hparams"
	"github.com/sagerun/sagerun/pkg/imageref"
	"github.com/sagerun/sagerun/pkg/metricspec"
	"github.com/sagerun/sagerun/pkg/ranges"
)

// JobFile is the declarative description of a single training run, optionally
// with a tuning section layered on top of the same configuration.
type JobFile struct {
	Name       string `json:"name"`
	EntryPoint string `json:"entry_point"`
	SourceDir  string `json:"source_dir"`

	// Either a full image reference, or a framework plus tag resolved against
	// the vendor registries.
	Image     string `json:"image"`
	Framework string `json:"framework"`
	Tag       string `json:"tag"`

	Role       string `json:"role"`
	OutputPath string `json:"output_path"`

	Resources       ResourcesConfig         `json:"resources"`
	Hyperparameters hparams.Hyperparameters `json:"hyperparameters"`
	Metrics         []metricspec.Definition `json:"metrics"`
	Channels        map[string]string       `json:"channels"`

	Tuning *TuningConfig `json:"tuning"`
}

// ResourcesConfig is the resource shape of a job.
type ResourcesConfig struct {
	Instances    int64          `json:"instances"`
	InstanceType string         `json:"instance_type"`
	VolumeSizeGB int64          `json:"volume_size"`
	MaxRuntime   model.Duration `json:"max_runtime"`
}

// TuningConfig is the declarative description of a search campaign over the
// job's hyperparameter ranges.
type TuningConfig struct {
	Ranges    ranges.Ranges `json:"ranges"`
	Metric    string        `json:"metric"`
	Direction string        `json:"direction"`
	Strategy  string        `json:"strategy"`

	MaxJobs         int64 `json:"max_jobs"`
	MaxParallelJobs int64 `json:"max_parallel_jobs"`
	EarlyStopping   bool  `json:"early_stopping"`
}

// Validate implements the check.Validatable interface.
func (j JobFile) Validate() []error {
	errs := []error{
		check.NotEmpty(j.EntryPoint, "entry_point must be set"),
		check.NotEmpty(j.SourceDir, "source_dir must be set"),
	}
	if j.Image == "" {
		errs = append(errs, check.NotEmpty(j.Framework,
			"either image or framework must be set"))
	} else {
		errs = append(errs, check.True(j.Framework == "",
			"image and framework are mutually exclusive"))
	}
	return errs
}

// ReadJobFile reads and validates a job file.
func ReadJobFile(path string) (*JobFile, error) {
	bs, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return nil, errors.Wrap(err, "error reading job file")
	}
	jf := &JobFile{
		Resources: ResourcesConfig{Instances: 1},
	}
	if err := yaml.Unmarshal(bs, jf, yaml.DisallowUnknownFields); err != nil {
		return nil, errors.Wrapf(err, "cannot parse job file %q", path)
	}
	if err := check.Validate(jf); err != nil {
		return nil, err
	}
	return jf, nil
}

func (j *JobFile) imageRef(region string) (imageref.ImageRef, error) {
	if j.Image != "" {
		return imageref.Parse(j.Image)
	}
	tag := j.Tag
	if tag == "" {
		tag = "latest"
	}
	return imageref.ForFramework(j.Framework, region, tag)
}

// Estimator assembles the job file into a submittable estimator, filling in
// the globally configured role and bucket where the file leaves them unset.
func (j *JobFile) Estimator(sess *session.Session, global *Config) (*train.Estimator, error) {
	image, err := j.imageRef(sess.Region())
	if err != nil {
		return nil, err
	}

	role := j.Role
	if role == "" {
		role = global.Role
	}
	outputPath := j.OutputPath
	if outputPath == "" && global.Bucket != "" {
		outputPath = fmt.Sprintf("s3://%s", global.Bucket)
	}

	return &train.Estimator{
		Session:         sess,
		Image:           image,
		EntryPoint:      j.EntryPoint,
		SourceDir:       j.SourceDir,
		Role:            role,
		InstanceCount:   j.Resources.Instances,
		InstanceType:    j.Resources.InstanceType,
		VolumeSizeGB:    j.Resources.VolumeSizeGB,
		MaxRuntime:      time.Duration(j.Resources.MaxRuntime),
		BaseJobName:     j.Name,
		OutputPath:      outputPath,
		Hyperparameters: j.Hyperparameters,
		Metrics:         j.Metrics,
		Channels:        j.Channels,
	}, nil
}

// Tuner assembles the job file's tuning section around the estimator.
func (j *JobFile) Tuner(est *train.Estimator) (*tune.Tuner, error) {
	if j.Tuning == nil {
		return nil, errors.New("job file has no tuning section")
	}
	return &tune.Tuner{
		Estimator: est,
		Ranges:    j.Tuning.Ranges,
		Objective: tune.Objective{
			Metric:    j.Tuning.Metric,
			Direction: tune.Direction(j.Tuning.Direction),
		},
		Strategy:          tune.Strategy(j.Tuning.Strategy),
		MaxJobs:           j.Tuning.MaxJobs,
		MaxParallelJobs:   j.Tuning.MaxParallelJobs,
		BaseTuningJobName: j.Name,
		EarlyStopping:     j.Tuning.EarlyStopping,
	}, nil
}
