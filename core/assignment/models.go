package assignment

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/academia/core"
)

// DefaultPointValue is the point value of assignments created without one.
const DefaultPointValue = 5

type Assignment struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	DueDate     time.Time `json:"due_date"`
	TeacherID   string    `json:"teacher_id"`
	CourseID    string    `json:"course_id"`
	ClassID     *string   `json:"class_id"`
	PointValue  int       `json:"point_value"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SubmissionStatus is the submission of an assignment by a student.
type SubmissionStatus struct {
	ID           string    `json:"id"`
	StudentID    string    `json:"student_id"`
	AssignmentID string    `json:"assignment_id"`
	CourseID     string    `json:"course_id"`
	SubmittedAt  time.Time `json:"submitted_at"`
	IsSubmitted  bool      `json:"is_submitted"`
	PointsEarned int       `json:"points_earned"`
}

// StudentAssignment is an assignment as seen by a student.
type StudentAssignment struct {
	Assignment
	Submission *SubmissionStatus `json:"submission"`
	IsPastDue  bool              `json:"is_past_due"`
}

type NewAssignment struct {
	Title       string    `json:"title" validate:"required,max=200"`
	Description string    `json:"description" validate:"max=5000"`
	DueDate     time.Time `json:"due_date" validate:"required"`
	CourseID    string    `json:"course_id" validate:"required,uuid"`
	ClassID     *string   `json:"class_id" validate:"omitempty,uuid"`
	PointValue  *int      `json:"point_value" validate:"omitempty,min=0"`
}

func (na *NewAssignment) Validate(validate *validator.Validate) error {
	na.Title = core.CleanString(na.Title)
	na.Description = core.CleanString(na.Description)
	na.CourseID = core.CleanString(na.CourseID)
	na.ClassID = core.CleanStringPtr(na.ClassID)
	return validate.Struct(na)
}

type UpdateAssignment struct {
	Title       *string    `json:"title" validate:"omitempty,notblank,max=200"`
	Description *string    `json:"description" validate:"omitempty,max=5000"`
	DueDate     *time.Time `json:"due_date"`
	PointValue  *int       `json:"point_value" validate:"omitempty,min=0"`
}

func (ua *UpdateAssignment) Validate(validate *validator.Validate) error {
	ua.Title = core.CleanStringPtr(ua.Title)
	if ua.Description != nil {
		desc := core.CleanString(*ua.Description)
		ua.Description = &desc
	}
	return validate.Struct(ua)
}

func (ua *UpdateAssignment) apply(a Assignment) Assignment {
	if ua.Title != nil {
		a.Title = *ua.Title
	}
	if ua.Description != nil {
		a.Description = *ua.Description
	}
	if ua.DueDate != nil {
		a.DueDate = ua.DueDate.UTC()
	}
	if ua.PointValue != nil {
		a.PointValue = *ua.PointValue
	}
	return a
}

type QueryFilter struct {
	CourseIDs []string `query:"course_id"`
	TeacherID string   `query:"teacher_id"` // current teacher of the course, not the author
	ClassID   string   `query:"class_id"`
}

type SubmissionFilter struct {
	AssignmentID string
	StudentID    string
	CourseID     string
}
