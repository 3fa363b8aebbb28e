// Package ranges defines the hyperparameter ranges a tuning campaign explores.
// The ranges are declarative configuration only; range exploration and
// selection strategy are delegated entirely to the platform.
package ranges

import (
	"encoding/json"
	"sort"

	"github.com/pkg/errors"

	"github.com/sagerun/sagerun/pkg/check"
	"github.com/sagerun/sagerun/pkg/ptrs"
)

// ScalingType controls how a numeric interval is traversed.
type ScalingType string

// Scaling types understood by the platform.
const (
	ScalingAuto   ScalingType = "auto"
	ScalingLinear ScalingType = "linear"
	ScalingLog    ScalingType = "log"
)

var scalingTypes = []string{string(ScalingAuto), string(ScalingLinear), string(ScalingLog)}

// CategoricalRange enumerates the values to try.
type CategoricalRange struct {
	Vals []string `json:"vals"`
}

// Validate implements the check.Validatable interface.
func (c CategoricalRange) Validate() []error {
	return []error{
		check.GreaterThan(len(c.Vals), 0, "categorical range must list at least one value"),
	}
}

// ContinuousRange is an interval of float64s.
type ContinuousRange struct {
	Minval  float64     `json:"minval"`
	Maxval  float64     `json:"maxval"`
	Scaling ScalingType `json:"scaling,omitempty"`
}

// Validate implements the check.Validatable interface.
func (c ContinuousRange) Validate() []error {
	errs := []error{
		check.GreaterThan(c.Maxval, c.Minval, "minval is greater than maxval"),
	}
	if c.Scaling != "" {
		errs = append(errs, check.In(string(c.Scaling), scalingTypes,
			"unknown scaling type %q", c.Scaling))
	}
	if c.Scaling == ScalingLog {
		errs = append(errs, check.GreaterThan(c.Minval, 0.0,
			"log scaling requires minval > 0"))
	}
	return errs
}

// IntegerRange is an interval of ints.
type IntegerRange struct {
	Minval  int         `json:"minval"`
	Maxval  int         `json:"maxval"`
	Scaling ScalingType `json:"scaling,omitempty"`
}

// Validate implements the check.Validatable interface.
func (i IntegerRange) Validate() []error {
	errs := []error{
		check.GreaterThan(i.Maxval, i.Minval, "minval is greater than maxval"),
	}
	if i.Scaling != "" {
		errs = append(errs, check.In(string(i.Scaling), scalingTypes,
			"unknown scaling type %q", i.Scaling))
	}
	if i.Scaling == ScalingLog {
		errs = append(errs, check.GreaterThan(i.Minval, 0, "log scaling requires minval > 0"))
	}
	return errs
}

// Range is a sum type over the supported parameter range kinds. Exactly one
// member is non-nil.
type Range struct {
	Categorical *CategoricalRange `json:"-"`
	Continuous  *ContinuousRange  `json:"-"`
	Integer     *IntegerRange     `json:"-"`
}

// Categorical constructs a range enumerating the given values.
func Categorical(vals ...string) Range {
	return Range{Categorical: ptrs.Ptr(CategoricalRange{Vals: vals})}
}

// Continuous constructs a continuous range with the given bounds.
func Continuous(minval, maxval float64) Range {
	return Range{Continuous: ptrs.Ptr(ContinuousRange{Minval: minval, Maxval: maxval})}
}

// LogContinuous constructs a log-scaled continuous range.
func LogContinuous(minval, maxval float64) Range {
	return Range{Continuous: ptrs.Ptr(ContinuousRange{
		Minval: minval, Maxval: maxval, Scaling: ScalingLog,
	})}
}

// Integer constructs an integer range with the given bounds.
func Integer(minval, maxval int) Range {
	return Range{Integer: ptrs.Ptr(IntegerRange{Minval: minval, Maxval: maxval})}
}

// Validate implements the check.Validatable interface.
func (r Range) Validate() []error {
	count := 0
	if r.Categorical != nil {
		count++
	}
	if r.Continuous != nil {
		count++
	}
	if r.Integer != nil {
		count++
	}
	return []error{
		check.True(count == 1, "exactly one range type must be set, got %d", count),
	}
}

func marshalTagged(rangeType string, member interface{}) ([]byte, error) {
	bs, err := json.Marshal(member)
	if err != nil {
		return nil, err
	}
	fields := make(map[string]interface{})
	if err := json.Unmarshal(bs, &fields); err != nil {
		return nil, err
	}
	fields["type"] = rangeType
	return json.Marshal(fields)
}

// MarshalJSON implements the json.Marshaler interface.
func (r Range) MarshalJSON() ([]byte, error) {
	switch {
	case r.Categorical != nil:
		return marshalTagged("categorical", r.Categorical)
	case r.Continuous != nil:
		return marshalTagged("continuous", r.Continuous)
	case r.Integer != nil:
		return marshalTagged("int", r.Integer)
	default:
		return nil, errors.New("no range type specified")
	}
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (r *Range) UnmarshalJSON(data []byte) error {
	var tag struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return err
	}
	*r = Range{}
	switch tag.Type {
	case "categorical":
		r.Categorical = &CategoricalRange{}
		return json.Unmarshal(data, r.Categorical)
	case "continuous", "double":
		r.Continuous = &ContinuousRange{}
		return json.Unmarshal(data, r.Continuous)
	case "int":
		r.Integer = &IntegerRange{}
		return json.Unmarshal(data, r.Integer)
	default:
		return errors.Errorf("unexpected range type: %q", tag.Type)
	}
}

// Ranges maps hyperparameter names to the range to explore for each.
type Ranges map[string]Range

// Each applies the function to each range in string order of the name.
func (rs Ranges) Each(f func(name string, r Range)) {
	keys := make([]string, 0, len(rs))
	for k := range rs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		f(k, rs[k])
	}
}

// Validate implements the check.Validatable interface.
func (rs Ranges) Validate() []error {
	errs := []error{
		check.GreaterThan(len(rs), 0, "at least one parameter range is required"),
	}
	rs.Each(func(name string, r Range) {
		errs = append(errs, check.NotEmpty(name, "parameter range names must be non-empty"))
	})
	return errs
}
