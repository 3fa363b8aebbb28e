package ranges

import (
	"encoding/json"
	"testing"

	"gotest.tools/assert"
)

func firstError(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func TestConstructors(t *testing.T) {
	r := Categorical("gcn", "gat", "sage")
	assert.Assert(t, r.Categorical != nil)
	assert.NilError(t, firstError(r.Validate()))

	r = LogContinuous(1e-5, 1e-1)
	assert.Assert(t, r.Continuous != nil)
	assert.Equal(t, ScalingLog, r.Continuous.Scaling)

	r = Integer(8, 256)
	assert.Assert(t, r.Integer != nil)
}

func TestValidateBounds(t *testing.T) {
	assert.ErrorContains(t, firstError(Continuous(2.0, 1.0).Continuous.Validate()), "minval")
	assert.ErrorContains(t, firstError(Integer(10, 2).Integer.Validate()), "minval")
	assert.ErrorContains(t, firstError(Categorical().Categorical.Validate()), "at least one")
	assert.ErrorContains(t, firstError(LogContinuous(0, 1).Continuous.Validate()), "log scaling")
}

func TestExactlyOneMember(t *testing.T) {
	assert.ErrorContains(t, firstError(Range{}.Validate()), "exactly one")
	both := Range{
		Continuous: &ContinuousRange{Minval: 0, Maxval: 1},
		Integer:    &IntegerRange{Minval: 0, Maxval: 1},
	}
	assert.ErrorContains(t, firstError(both.Validate()), "exactly one")
}

func TestJSONRoundTrip(t *testing.T) {
	rs := Ranges{
		"lr":       LogContinuous(1e-5, 1e-1),
		"n-hidden": Integer(8, 256),
		"dataset":  Categorical("cora", "citeseer", "pubmed"),
	}
	bs, err := json.Marshal(rs)
	assert.NilError(t, err)

	var parsed Ranges
	assert.NilError(t, json.Unmarshal(bs, &parsed))
	assert.DeepEqual(t, rs, parsed)
}

func TestUnmarshalRejectsUnknownType(t *testing.T) {
	var r Range
	err := json.Unmarshal([]byte(`{"type": "boolean"}`), &r)
	assert.ErrorContains(t, err, "unexpected range type")
}

func TestEachIsOrdered(t *testing.T) {
	rs := Ranges{"b": Integer(0, 1), "a": Integer(0, 1), "c": Integer(0, 1)}
	var names []string
	rs.Each(func(name string, r Range) {
		names = append(names, name)
	})
	assert.DeepEqual(t, []string{"a", "b", "c"}, names)
}
