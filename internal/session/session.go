// Package session wraps the platform clients behind narrow interfaces so the
// submission paths can be exercised without the platform.
package session

import (
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	awssession "github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/sagemaker"
	"github.com/aws/aws-sdk-go/service/sts"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// TrainingAPI is the subset of the training service the submission paths use.
type TrainingAPI interface {
	CreateTrainingJobWithContext(aws.Context, *sagemaker.CreateTrainingJobInput,
		...request.Option) (*sagemaker.CreateTrainingJobOutput, error)
	DescribeTrainingJobWithContext(aws.Context, *sagemaker.DescribeTrainingJobInput,
		...request.Option) (*sagemaker.DescribeTrainingJobOutput, error)
	StopTrainingJobWithContext(aws.Context, *sagemaker.StopTrainingJobInput,
		...request.Option) (*sagemaker.StopTrainingJobOutput, error)
	CreateHyperParameterTuningJobWithContext(aws.Context,
		*sagemaker.CreateHyperParameterTuningJobInput,
		...request.Option) (*sagemaker.CreateHyperParameterTuningJobOutput, error)
	DescribeHyperParameterTuningJobWithContext(aws.Context,
		*sagemaker.DescribeHyperParameterTuningJobInput,
		...request.Option) (*sagemaker.DescribeHyperParameterTuningJobOutput, error)
}

// StorageAPI is the subset of the object store used to stage source archives.
type StorageAPI interface {
	PutObjectWithContext(aws.Context, *s3.PutObjectInput,
		...request.Option) (*s3.PutObjectOutput, error)
}

// IdentityAPI resolves the caller's account.
type IdentityAPI interface {
	GetCallerIdentityWithContext(aws.Context, *sts.GetCallerIdentityInput,
		...request.Option) (*sts.GetCallerIdentityOutput, error)
}

// Session holds the per-region platform clients plus the lazily resolved
// caller identity.
type Session struct {
	region string

	// mu guards account; a session may be shared by concurrent submissions.
	mu      sync.Mutex
	account string

	training TrainingAPI
	storage  StorageAPI
	identity IdentityAPI

	syslog *logrus.Entry
}

// New creates a session for the region. Credentials are discovered the usual
// way (environment, shared credentials file, or instance role); see
// https://docs.aws.amazon.com/sdk-for-go/v1/developer-guide/configuring-sdk.html.
func New(region string) (*Session, error) {
	sess, err := awssession.NewSession(&aws.Config{
		Region: aws.String(region),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create AWS session")
	}
	return &Session{
		region:   region,
		training: sagemaker.New(sess),
		storage:  s3.New(sess),
		identity: sts.New(sess),
		syslog:   logrus.WithField("component", "session"),
	}, nil
}

// NewWithClients creates a session over preconstructed clients.
func NewWithClients(region string, training TrainingAPI, storage StorageAPI,
	identity IdentityAPI,
) *Session {
	return &Session{
		region:   region,
		training: training,
		storage:  storage,
		identity: identity,
		syslog:   logrus.WithField("component", "session"),
	}
}

// Region returns the session region.
func (s *Session) Region() string { return s.region }

// Training returns the training service client.
func (s *Session) Training() TrainingAPI { return s.training }

// Storage returns the object store client.
func (s *Session) Storage() StorageAPI { return s.storage }

// Account returns the caller's account ID, resolving it on first use.
func (s *Session) Account(ctx aws.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.account != "" {
		return s.account, nil
	}
	out, err := s.identity.GetCallerIdentityWithContext(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", errors.Wrap(err, "failed to resolve caller identity")
	}
	s.account = aws.StringValue(out.Account)
	s.syslog.Debugf("resolved account %s", s.account)
	return s.account, nil
}

// DefaultBucket returns the conventional per-account artifact bucket.
func (s *Session) DefaultBucket(ctx aws.Context) (string, error) {
	account, err := s.Account(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("sagemaker-%s-%s", s.region, account), nil
}
