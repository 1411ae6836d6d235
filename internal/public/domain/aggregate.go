package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const (
	MinStars = 1
	MaxStars = 5
)

// RatingAggregate is the running rating summary stored on a café.
// Breakdown maps a star value to the number of ratings with that value.
type RatingAggregate struct {
	Average   float64
	Count     int
	Breakdown map[int]int
}

// NewRatingAggregate returns the empty aggregate a café starts with.
func NewRatingAggregate() RatingAggregate {
	breakdown := make(map[int]int, MaxStars)
	for stars := MinStars; stars <= MaxStars; stars++ {
		breakdown[stars] = 0
	}
	return RatingAggregate{Breakdown: breakdown}
}

// ValidStars reports whether stars is an accepted star value.
func ValidStars(stars int) bool {
	return stars >= MinStars && stars <= MaxStars
}

// Apply folds one new rating into the aggregate and returns the result.
// The receiver is left untouched.
func (a RatingAggregate) Apply(stars int) (RatingAggregate, error) {
	if !ValidStars(stars) {
		return a, fmt.Errorf("stars must be between %d and %d: %d", MinStars, MaxStars, stars)
	}

	breakdown := make(map[int]int, len(a.Breakdown)+1)
	for k, v := range a.Breakdown {
		breakdown[k] = v
	}
	breakdown[stars]++

	newCount := a.Count + 1
	total := decimal.NewFromFloat(a.Average).
		Mul(decimal.NewFromInt(int64(a.Count))).
		Add(decimal.NewFromInt(int64(stars)))

	return RatingAggregate{
		Average:   roundAverage(total.Div(decimal.NewFromInt(int64(newCount)))),
		Count:     newCount,
		Breakdown: breakdown,
	}, nil
}

// Total returns the number of ratings recorded in the breakdown.
func (a RatingAggregate) Total() int {
	total := 0
	for _, v := range a.Breakdown {
		total += v
	}
	return total
}

// AggregateFromBreakdown rebuilds an aggregate from star counts alone.
// Star values outside 1..5 are ignored.
func AggregateFromBreakdown(counts map[int]int) RatingAggregate {
	agg := NewRatingAggregate()
	sum := decimal.Zero
	for stars, n := range counts {
		if !ValidStars(stars) || n <= 0 {
			continue
		}
		agg.Breakdown[stars] = n
		agg.Count += n
		sum = sum.Add(decimal.NewFromInt(int64(stars * n)))
	}
	if agg.Count > 0 {
		agg.Average = roundAverage(sum.Div(decimal.NewFromInt(int64(agg.Count))))
	}
	return agg
}

func roundAverage(v decimal.Decimal) float64 {
	f, _ := v.Round(1).Float64()
	return f
}
