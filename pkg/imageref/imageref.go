// Package imageref builds and parses container image references for the
// platform's per-region registries.
package imageref

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pkg/errors"

	"github.com/sagerun/sagerun/pkg/check"
)

var (
	accountPattern    = regexp.MustCompile(`^[0-9]{12}$`)
	regionPattern     = regexp.MustCompile(`^[a-z]{2}(-[a-z]+)+-[0-9]+$`)
	repositoryPattern = regexp.MustCompile(`^[a-z0-9]+(?:[._/-][a-z0-9]+)*$`)
	tagPattern        = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9._-]{0,127}$`)
)

// ImageRef identifies one container image in a regional registry.
type ImageRef struct {
	Account    string `json:"account"`
	Region     string `json:"region"`
	Repository string `json:"repository"`
	Tag        string `json:"tag"`
}

// Validate implements the check.Validatable interface.
func (r ImageRef) Validate() []error {
	return []error{
		check.Match(r.Account, accountPattern.String(), "account must be a 12-digit ID, got %q", r.Account),
		check.Match(r.Region, regionPattern.String(), "invalid region %q", r.Region),
		check.Match(r.Repository, repositoryPattern.String(), "invalid repository %q", r.Repository),
		check.Match(r.Tag, tagPattern.String(), "invalid tag %q", r.Tag),
	}
}

// RegistryHost returns the registry endpoint for a region. Regions in the
// China partition use a different registry domain.
func RegistryHost(region string) string {
	domain := "amazonaws.com"
	if strings.HasPrefix(region, "cn-") {
		domain = "amazonaws.com.cn"
	}
	return fmt.Sprintf("dkr.ecr.%s.%s", region, domain)
}

// String renders the reference as <account>.<registry-host>/<repository>:<tag>.
func (r ImageRef) String() string {
	return fmt.Sprintf("%s.%s/%s:%s", r.Account, RegistryHost(r.Region), r.Repository, r.Tag)
}

// Parse inverts String. It rejects references that are not in one of the
// recognized registry domains.
func Parse(ref string) (ImageRef, error) {
	slash := strings.IndexByte(ref, '/')
	if slash < 0 {
		return ImageRef{}, errors.Errorf("image reference %q has no repository", ref)
	}
	host, rest := ref[:slash], ref[slash+1:]

	colon := strings.LastIndexByte(rest, ':')
	if colon < 0 {
		return ImageRef{}, errors.Errorf("image reference %q has no tag", ref)
	}
	repository, tag := rest[:colon], rest[colon+1:]

	dot := strings.IndexByte(host, '.')
	if dot < 0 {
		return ImageRef{}, errors.Errorf("image reference %q has no registry account", ref)
	}
	account, registry := host[:dot], host[dot+1:]

	var region string
	switch parts := strings.Split(registry, "."); {
	case len(parts) >= 4 && parts[0] == "dkr" && parts[1] == "ecr":
		region = parts[2]
	default:
		return ImageRef{}, errors.Errorf("unrecognized registry host %q", registry)
	}

	parsed := ImageRef{Account: account, Region: region, Repository: repository, Tag: tag}
	if err := check.Validate(parsed); err != nil {
		return ImageRef{}, errors.Wrapf(err, "invalid image reference %q", ref)
	}
	if parsed.String() != ref {
		return ImageRef{}, errors.Errorf("unrecognized registry host %q", registry)
	}
	return parsed, nil
}
