package review

import (
	"errors"
	"fmt"
)

const (
	ColumnReviewer       = "Reviewer"
	ColumnImageName      = "ImageName"
	ColumnCondition      = "Condition"
	ColumnDiagnosticNote = "DiagnosticNote"
	ColumnFeedback       = "Feedback"
)

// Columns is the canonical column order of reviewer and master files.
var Columns = []string{
	ColumnReviewer,
	ColumnImageName,
	ColumnCondition,
	ColumnDiagnosticNote,
	ColumnFeedback,
}

var (
	ErrUnknownCondition = errors.New("unknown condition")
	ErrReviewNotFound   = errors.New("review not found")
	ErrAlreadyReviewed  = errors.New("image already reviewed")
)

type Condition string

const (
	ConditionBacterial Condition = "Bacterial"
	ConditionFungal    Condition = "Fungal"
	ConditionOthers    Condition = "Others"
	ConditionNotSure   Condition = "Not Sure"
)

// Conditions lists the selectable diagnoses in display order. The first one
// is the form default.
var Conditions = []Condition{
	ConditionBacterial,
	ConditionFungal,
	ConditionOthers,
	ConditionNotSure,
}

func (c Condition) Valid() bool {
	for _, known := range Conditions {
		if c == known {
			return true
		}
	}
	return false
}

func ParseCondition(value string) (Condition, error) {
	c := Condition(value)
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownCondition, value)
	}
	return c, nil
}

// Record is one row of a reviewer file.
type Record struct {
	Reviewer       string
	ImageName      string
	Condition      Condition
	DiagnosticNote string
	Feedback       string
}

func (r Record) value(column string) string {
	switch column {
	case ColumnReviewer:
		return r.Reviewer
	case ColumnImageName:
		return r.ImageName
	case ColumnCondition:
		return string(r.Condition)
	case ColumnDiagnosticNote:
		return r.DiagnosticNote
	case ColumnFeedback:
		return r.Feedback
	}
	return ""
}

// valuesFor lays the record out in the given column order. Unknown columns stay empty.
func (r Record) valuesFor(header []string) []string {
	values := make([]string, len(header))
	for i, column := range header {
		values[i] = r.value(column)
	}
	return values
}
