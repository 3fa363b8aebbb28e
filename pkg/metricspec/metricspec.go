// Package metricspec defines how scalar metrics are pulled out of training job
// log lines. The same definitions are passed declaratively to the platform,
// which scrapes the job logs to drive tuning feedback.
package metricspec

import (
	"regexp"
	"strconv"

	"github.com/pkg/errors"

	"github.com/sagerun/sagerun/pkg/check"
)

// Definition names one metric and the pattern that extracts its value from a
// log line. The pattern must contain exactly one capture group, which must
// match a decimal number, e.g. `Test Accuracy ([0-9\.]+)%`.
type Definition struct {
	Name  string `json:"name"`
	Regex string `json:"regex"`
}

// Validate implements the check.Validatable interface.
func (d Definition) Validate() []error {
	errs := []error{
		check.NotEmpty(d.Name, "metric name must be non-empty"),
		check.NotEmpty(d.Regex, "metric regex must be non-empty"),
	}
	if _, err := d.Compile(); err != nil {
		errs = append(errs, err)
	}
	return errs
}

// Compile compiles the definition for local extraction.
func (d Definition) Compile() (*Compiled, error) {
	re, err := regexp.Compile(d.Regex)
	if err != nil {
		return nil, errors.Wrapf(err, "compiling metric regex %q", d.Regex)
	}
	if re.NumSubexp() != 1 {
		return nil, errors.Errorf(
			"metric regex %q must have exactly one capture group, found %d",
			d.Regex, re.NumSubexp())
	}
	return &Compiled{name: d.Name, re: re}, nil
}

// Compiled extracts one metric from log lines.
type Compiled struct {
	name string
	re   *regexp.Regexp
}

// Name returns the metric name.
func (c *Compiled) Name() string { return c.name }

// Extract returns the metric value from a single log line, or false if the
// line does not report the metric.
func (c *Compiled) Extract(line string) (float64, bool) {
	match := c.re.FindStringSubmatch(line)
	if match == nil {
		return 0, false
	}
	val, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, false
	}
	return val, true
}

// ExtractLast scans lines in order and returns the last reported value, the
// way the platform keeps the final metric of a job.
func (c *Compiled) ExtractLast(lines []string) (float64, bool) {
	var val float64
	found := false
	for _, line := range lines {
		if v, ok := c.Extract(line); ok {
			val, found = v, true
		}
	}
	return val, found
}
