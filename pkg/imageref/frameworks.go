package imageref

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// The framework training containers are published from partition-wide registry
// accounts rather than the caller's own account.
const (
	frameworkAccount         = "763104351884"
	frameworkAccountChina    = "727897471807"
	frameworkAccountGovCloud = "442386744353"
)

// Frameworks recognized by ForFramework. The repository name is always
// "<framework>-training".
var knownFrameworks = []string{"dgl", "pytorch", "mxnet", "tensorflow"}

func frameworkAccountFor(region string) string {
	switch {
	case strings.HasPrefix(region, "cn-"):
		return frameworkAccountChina
	case strings.HasPrefix(region, "us-gov-"):
		return frameworkAccountGovCloud
	default:
		return frameworkAccount
	}
}

// ForFramework resolves the vendor-provided training container for a framework
// in a region, e.g. ForFramework("dgl", "us-west-2", "latest").
func ForFramework(framework, region, tag string) (ImageRef, error) {
	found := false
	for _, f := range knownFrameworks {
		if f == framework {
			found = true
			break
		}
	}
	if !found {
		return ImageRef{}, errors.Errorf("unknown framework %q (want one of %v)",
			framework, knownFrameworks)
	}
	return ImageRef{
		Account:    frameworkAccountFor(region),
		Region:     region,
		Repository: fmt.Sprintf("%s-training", framework),
		Tag:        tag,
	}, nil
}
