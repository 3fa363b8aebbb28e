// Package hparams holds the flat hyperparameter mapping handed to a training
// job. The mapping is opaque to this code; the training script inside the
// container is solely responsible for interpreting it.
package hparams

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/pkg/errors"

	"github.com/sagerun/sagerun/pkg/check"
)

// Limits the platform enforces on submitted hyperparameters.
const (
	MaxCount       = 100
	MaxKeyLength   = 256
	MaxValueLength = 2500
)

// Hyperparameters maps hyperparameter names to values.
type Hyperparameters map[string]interface{}

// Each applies the function to each hyperparameter in string order of the name.
func (h Hyperparameters) Each(f func(name string, val interface{})) {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		f(k, h[k])
	}
}

// Validate implements the check.Validatable interface.
func (h Hyperparameters) Validate() []error {
	errs := []error{
		check.LessThanOrEqualTo(len(h), MaxCount,
			"at most %d hyperparameters are allowed, got %d", MaxCount, len(h)),
	}
	h.Each(func(name string, val interface{}) {
		errs = append(errs,
			check.NotEmpty(name, "hyperparameter names must be non-empty"),
			check.LessThanOrEqualTo(len(name), MaxKeyLength,
				"hyperparameter name %q exceeds %d characters", name, MaxKeyLength))
		if s, err := render(val); err != nil {
			errs = append(errs, err)
		} else {
			errs = append(errs, check.LessThanOrEqualTo(len(s), MaxValueLength,
				"hyperparameter %q value exceeds %d characters", name, MaxValueLength))
		}
	})
	return errs
}

// ToStrings renders the mapping into the string form the platform API accepts.
// Rendering is deterministic and lossless: numbers keep their full precision
// and values are never reordered, truncated, or dropped.
func (h Hyperparameters) ToStrings() (map[string]string, error) {
	out := make(map[string]string, len(h))
	for name, val := range h {
		s, err := render(val)
		if err != nil {
			return nil, errors.Wrapf(err, "hyperparameter %q", name)
		}
		out[name] = s
	}
	return out, nil
}

func render(val interface{}) (string, error) {
	switch v := val.(type) {
	case nil:
		return "", errors.New("value must not be nil")
	case string:
		return v, nil
	case bool:
		return strconv.FormatBool(v), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case uint64:
		return strconv.FormatUint(v, 10), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32), nil
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	case fmt.Stringer:
		return v.String(), nil
	default:
		bs, err := json.Marshal(v)
		if err != nil {
			return "", errors.Wrapf(err, "cannot render %T value", val)
		}
		return string(bs), nil
	}
}
