package dataset

import "slices"

// Direction says which end of a state ranking is better for a question.
type Direction int

const (
	// HigherIsBetter applies to every question not listed as lower-is-better.
	HigherIsBetter Direction = iota
	LowerIsBetter
)

var lowerIsBetter = []string{
	"Percent of adults aged 18 years and older who have an overweight classification",
	"Percent of adults aged 18 years and older who have obesity",
	"Percent of adults who engage in no leisure-time physical activity",
	"Percent of adults who report consuming fruit less than one time daily",
	"Percent of adults who report consuming vegetables less than one time daily",
}

var higherIsBetter = []string{
	"Percent of adults who achieve at least 150 minutes a week of moderate-intensity " +
		"aerobic physical activity or 75 minutes a week of vigorous-intensity aerobic activity (or an equivalent combination)",
	"Percent of adults who achieve at least 150 minutes a week of moderate-intensity " +
		"aerobic physical activity or 75 minutes a week of vigorous-intensity aerobic physical activity " +
		"and engage in muscle-strengthening activities on 2 or more days a week",
	"Percent of adults who achieve at least 300 minutes a week of moderate-intensity aerobic physical activity " +
		"or 150 minutes a week of vigorous-intensity aerobic activity (or an equivalent combination)",
	"Percent of adults who engage in muscle-strengthening activities on 2 or more days a week",
}

// DirectionOf classifies question. Unlisted questions rank as
// higher-is-better.
func DirectionOf(question string) Direction {
	if slices.Contains(lowerIsBetter, question) {
		return LowerIsBetter
	}
	return HigherIsBetter
}

// takeHead reports whether the wanted five states sit at the low end of the
// ascending ranking. best5 wants the low end for lower-is-better questions;
// worst5 wants it only for questions explicitly listed as higher-is-better.
func takeHead(question string, best bool) bool {
	if best {
		return slices.Contains(lowerIsBetter, question)
	}
	return slices.Contains(higherIsBetter, question)
}
