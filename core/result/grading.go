package result

import (
	"math"

	"github.com/pkg/errors"
)

// Grade is a letter grade. The zero value means the total fell outside every band.
type Grade string

const (
	GradeAStar Grade = "A*"
	GradeA     Grade = "A"
	GradeB     Grade = "B"
	GradeC     Grade = "C"
	GradeD     Grade = "D"
	GradeE     Grade = "E"
	GradeF     Grade = "F"
)

// Band maps totals in [Min, Max] to a grade and a comment.
type Band struct {
	Min, Max float64
	Grade    Grade
	Comment  string
}

// Policy is an ordered list of bands. The first band containing the total wins.
type Policy struct {
	Name  string
	Bands []Band
}

var (
	StandardPolicy = Policy{
		Name: "standard",
		Bands: []Band{
			{Min: 0, Max: 39, Grade: GradeF, Comment: "Poor performance. Needs improvement."},
			{Min: 0, Max: 44, Grade: GradeE, Comment: "Below average. Put in more effort."},
			{Min: 0, Max: 49, Grade: GradeD, Comment: "Fair, but can do better."},
			{Min: 0, Max: 59, Grade: GradeC, Comment: "Average, needs improvement."},
			{Min: 0, Max: 69, Grade: GradeB, Comment: "Good performance."},
			{Min: 0, Max: 89, Grade: GradeA, Comment: "Very good! Keep it up."},
			{Min: 0, Max: 100, Grade: GradeAStar, Comment: "Excellent! Outstanding performance."},
		},
	}

	// LegacyAdminPolicy is the lower-bound table once used by admin edits. It grades every total.
	LegacyAdminPolicy = Policy{
		Name: "legacy",
		Bands: []Band{
			{Min: 70, Max: math.Inf(1), Grade: GradeA, Comment: "Excellent performance."},
			{Min: 60, Max: 70, Grade: GradeB, Comment: "Very good work."},
			{Min: 50, Max: 60, Grade: GradeC, Comment: "Good effort, can improve."},
			{Min: 45, Max: 50, Grade: GradeD, Comment: "Needs improvement."},
			{Min: math.Inf(-1), Max: 45, Grade: GradeF, Comment: "Poor performance. Extra effort required."},
		},
	}

	ErrUnknownPolicy = errors.New("unknown grading policy")
)

// PolicyByName returns the named policy. An empty name is the standard one.
func PolicyByName(name string) (Policy, error) {
	switch name {
	case "", StandardPolicy.Name:
		return StandardPolicy, nil
	case LegacyAdminPolicy.Name:
		return LegacyAdminPolicy, nil
	}
	return Policy{}, errors.Wrap(ErrUnknownPolicy, name)
}

// Grade returns the grade and comment of test+exam. Totals outside every band give ("", "").
func (p Policy) Grade(testScore, examScore float64) (Grade, string) {
	total := testScore + examScore
	for _, b := range p.Bands {
		if total >= b.Min && total <= b.Max {
			return b.Grade, b.Comment
		}
	}
	return "", ""
}
