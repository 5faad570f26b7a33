package generic_test

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/Cherif0104/EcosystIA-sub001/generic"
)

// genDate yields dates between 1990 and 2060.
func genDate() gopter.Gen {
	return gen.IntRange(0, 70*366).Map(func(offset int) generic.TimePoint {
		return generic.NewTimePoint(1990, time.January, 1).AddDays(offset)
	})
}

func genFrequency() gopter.Gen {
	return gen.OneConstOf(generic.Monthly, generic.Quarterly, generic.Annually)
}

func TestDateMathProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("DaysBetween inverts AddDays", prop.ForAll(
		func(d generic.TimePoint, n int) bool {
			return generic.DaysBetween(d, d.AddDays(n)) == n
		},
		genDate(), gen.IntRange(-800, 800),
	))

	properties.Property("DaysBetween is antisymmetric", prop.ForAll(
		func(a, b generic.TimePoint) bool {
			return generic.DaysBetween(a, b) == -generic.DaysBetween(b, a)
		},
		genDate(), genDate(),
	))

	properties.Property("Advance always moves strictly forward", prop.ForAll(
		func(d generic.TimePoint, f generic.Frequency) bool {
			next, err := generic.Advance(d, f)
			return err == nil && next.After(d)
		},
		genDate(), genFrequency(),
	))

	properties.Property("Advance never skips a calendar month", prop.ForAll(
		func(d generic.TimePoint, f generic.Frequency) bool {
			next, err := generic.Advance(d, f)
			if err != nil {
				return false
			}
			months, _ := f.Months()
			elapsed := (next.Year()-d.Year())*12 + int(next.Month()) - int(d.Month())
			return elapsed == months && next.Day() <= d.Day()
		},
		genDate(), genFrequency(),
	))

	properties.TestingRun(t)
}
