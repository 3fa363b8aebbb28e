package check

import (
	"fmt"
	"reflect"
	"regexp"

	"github.com/pkg/errors"
)

func check(condition bool, msgAndArgs []interface{}, internalMsg string, internalArgs ...interface{}) error {
	if condition {
		return nil
	}
	message := messageFromMsgAndArgs(msgAndArgs...)
	if message == "" {
		message = fmt.Sprintf(internalMsg, internalArgs...)
	}
	return errors.New(message)
}

func messageFromMsgAndArgs(msgAndArgs ...interface{}) string {
	switch {
	case len(msgAndArgs) == 1:
		return fmt.Sprintf("%v", msgAndArgs[0])
	case len(msgAndArgs) > 1:
		return fmt.Sprintf(msgAndArgs[0].(string), msgAndArgs[1:]...)
	default:
		return ""
	}
}

// Numeric checks dereference pointer arguments and treat nil as vacuously
// valid, so optional fields can be checked without guarding.
func toFloat(val interface{}) (float64, bool) {
	v := reflect.ValueOf(val)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return 0, false
		}
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), true
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	default:
		return 0, false
	}
}

func compare(actual, expected interface{}, test func(a, e float64) bool,
	msgAndArgs []interface{}, op string,
) error {
	a, ok := toFloat(actual)
	if !ok {
		return nil
	}
	e, ok := toFloat(expected)
	if !ok {
		return nil
	}
	return check(test(a, e), msgAndArgs, "expected %v %s %v", actual, op, expected)
}

// True checks whether the condition is true. This method returns an error with
// the provided message if the check fails.
func True(condition bool, msgAndArgs ...interface{}) error {
	return check(condition, msgAndArgs, "expected condition to be true")
}

// GreaterThan checks whether actual > expected.
func GreaterThan(actual, expected interface{}, msgAndArgs ...interface{}) error {
	return compare(actual, expected, func(a, e float64) bool { return a > e }, msgAndArgs, ">")
}

// GreaterThanOrEqualTo checks whether actual >= expected.
func GreaterThanOrEqualTo(actual, expected interface{}, msgAndArgs ...interface{}) error {
	return compare(actual, expected, func(a, e float64) bool { return a >= e }, msgAndArgs, ">=")
}

// LessThanOrEqualTo checks whether actual <= expected.
func LessThanOrEqualTo(actual, expected interface{}, msgAndArgs ...interface{}) error {
	return compare(actual, expected, func(a, e float64) bool { return a <= e }, msgAndArgs, "<=")
}

// NotEmpty checks whether the provided string is non-empty.
func NotEmpty(actual string, msgAndArgs ...interface{}) error {
	return check(len(actual) > 0, msgAndArgs, "expected a non-empty string")
}

// In checks whether the actual value is contained in the expected list.
func In(actual string, expected []string, msgAndArgs ...interface{}) error {
	for _, value := range expected {
		if value == actual {
			return nil
		}
	}
	return check(false, msgAndArgs, "%s not in %v", actual, expected)
}

// Match checks whether the actual value matches the provided regular expression.
func Match(actual string, regex string, msgAndArgs ...interface{}) error {
	compiled, err := regexp.Compile(regex)
	if err != nil {
		return errors.Wrapf(err, "error compiling regex %q", regex)
	}
	return check(compiled.MatchString(actual), msgAndArgs, "%q does not match %q", actual, regex)
}
