package predict

import "fmt"

// InvalidDateError is the one fatal validation on otherwise free-form input:
// a date that does not parse cannot be scheduled downstream.
type InvalidDateError struct {
	Value string
}

func (e *InvalidDateError) Error() string {
	return fmt.Sprintf("invalid event date %q: expected YYYY-MM-DD", e.Value)
}

// InvalidRangeError reports a numeric field outside its configured bounds.
type InvalidRangeError struct {
	Field string
	Value float64
	Min   float64
	Max   float64
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("%s %g outside allowed range [%g, %g]", e.Field, e.Value, e.Min, e.Max)
}
