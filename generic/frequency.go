package generic

import (
	"fmt"
	"strings"
)

// Frequency is the recurrence cadence of a template. It is a closed set:
// anything outside it is rejected by ParseFrequency, never defaulted.
type Frequency string

const (
	Monthly   Frequency = "monthly"
	Quarterly Frequency = "quarterly"
	Annually  Frequency = "annually"
)

// Frequencies lists every valid frequency.
func Frequencies() []Frequency { return []Frequency{Monthly, Quarterly, Annually} }

// ParseFrequency maps user or storage input onto the closed enum. Matching is
// case-insensitive; "yearly" is accepted as an alias of annually.
func ParseFrequency(s string) (Frequency, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "monthly":
		return Monthly, nil
	case "quarterly":
		return Quarterly, nil
	case "annually", "yearly":
		return Annually, nil
	}
	return "", &FrequencyError{Value: s}
}

// Valid reports whether f is one of the enum members.
func (f Frequency) Valid() bool {
	switch f {
	case Monthly, Quarterly, Annually:
		return true
	}
	return false
}

// Months returns the number of calendar months one period spans.
func (f Frequency) Months() (int, error) {
	switch f {
	case Monthly:
		return 1, nil
	case Quarterly:
		return 3, nil
	case Annually:
		return 12, nil
	}
	return 0, &FrequencyError{Value: string(f)}
}

// Advance moves date forward by one period of f using the end-of-month clamp
// described on TimePoint.AddMonths.
func Advance(date TimePoint, f Frequency) (TimePoint, error) {
	months, err := f.Months()
	if err != nil {
		return TimePoint{}, err
	}
	return date.AddMonths(months), nil
}

// FrequencyError reports a frequency outside the closed enum.
type FrequencyError struct {
	Value string
}

func (e *FrequencyError) Error() string {
	valid := make([]string, 0, 3)
	for _, f := range Frequencies() {
		valid = append(valid, string(f))
	}
	return fmt.Sprintf("invalid frequency %q (want one of %s)", e.Value, strings.Join(valid, ", "))
}

func (e *FrequencyError) Unwrap() error { return ErrInvalidFrequency }
