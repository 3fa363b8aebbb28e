package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagerun/sagerun/internal/session"
	"github.com/sagerun/sagerun/internal/tune"
)

const jobFileYAML = `
name: gcn-cora
entry_point: train.py
source_dir: ./src
framework: dgl
tag: latest
resources:
  instance_type: ml.p3.2xlarge
  volume_size: 50
  max_runtime: 4h
hyperparameters:
  dataset: cora
  lr: 0.001
  n-epochs: 200
metrics:
  - name: test:accuracy
    regex: Test Accuracy ([0-9\.]+)%
channels:
  training: s3://data/cora
`

const tuningFileYAML = jobFileYAML + `
tuning:
  metric: test:accuracy
  strategy: Random
  max_jobs: 10
  max_parallel_jobs: 2
  ranges:
    lr:
      type: continuous
      minval: 1.0e-05
      maxval: 0.1
      scaling: log
    n-hidden:
      type: int
      minval: 8
      maxval: 256
`

func writeJobFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "job.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestReadJobFile(t *testing.T) {
	jf, err := ReadJobFile(writeJobFile(t, jobFileYAML))
	require.NoError(t, err)

	assert.Equal(t, "gcn-cora", jf.Name)
	assert.Equal(t, "train.py", jf.EntryPoint)
	assert.Equal(t, int64(1), jf.Resources.Instances, "instances should default to 1")
	assert.Equal(t, int64(50), jf.Resources.VolumeSizeGB)
	assert.Equal(t, 4*time.Hour, time.Duration(jf.Resources.MaxRuntime))
	assert.Equal(t, 200, int(jf.Hyperparameters["n-epochs"].(float64)))
	assert.Nil(t, jf.Tuning)
}

func TestReadJobFileRejectsUnknownFields(t *testing.T) {
	_, err := ReadJobFile(writeJobFile(t, jobFileYAML+"\nentrypoint: typo.py\n"))
	assert.ErrorContains(t, err, "unknown field")
}

func TestReadJobFileRequiresImageOrFramework(t *testing.T) {
	_, err := ReadJobFile(writeJobFile(t, "entry_point: train.py\nsource_dir: .\n"))
	assert.ErrorContains(t, err, "either image or framework")

	both := "entry_point: train.py\nsource_dir: .\nframework: dgl\nimage: 123456789012.dkr.ecr.us-west-2.amazonaws.com/x:y\n"
	_, err = ReadJobFile(writeJobFile(t, both))
	assert.ErrorContains(t, err, "mutually exclusive")
}

func TestEstimatorResolvesFrameworkImage(t *testing.T) {
	jf, err := ReadJobFile(writeJobFile(t, jobFileYAML))
	require.NoError(t, err)

	sess := session.NewWithClients("us-west-2", nil, nil, nil)
	est, err := jf.Estimator(sess, &Config{Role: "arn:aws:iam::123456789012:role/global"})
	require.NoError(t, err)

	assert.Equal(t,
		"763104351884.dkr.ecr.us-west-2.amazonaws.com/dgl-training:latest",
		est.Image.String())
	assert.Equal(t, "arn:aws:iam::123456789012:role/global", est.Role,
		"the global role fills in when the file has none")
	assert.Equal(t, "gcn-cora", est.BaseJobName)
	assert.Equal(t, map[string]string{"training": "s3://data/cora"}, est.Channels)
}

func TestTunerFromJobFile(t *testing.T) {
	jf, err := ReadJobFile(writeJobFile(t, tuningFileYAML))
	require.NoError(t, err)
	require.NotNil(t, jf.Tuning)

	sess := session.NewWithClients("us-west-2", nil, nil, nil)
	est, err := jf.Estimator(sess, &Config{})
	require.NoError(t, err)

	tuner, err := jf.Tuner(est)
	require.NoError(t, err)
	assert.Equal(t, tune.StrategyRandom, tuner.Strategy)
	assert.Equal(t, int64(10), tuner.MaxJobs)
	assert.Equal(t, int64(2), tuner.MaxParallelJobs)
	require.Contains(t, tuner.Ranges, "lr")
	assert.NotNil(t, tuner.Ranges["lr"].Continuous)

	jf.Tuning = nil
	_, err = jf.Tuner(est)
	assert.ErrorContains(t, err, "no tuning section")
}
