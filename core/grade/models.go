package grade

import (
	"math"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/academia/core"
)

// Types
const (
	TypeExam     = "exam"
	TypeHomework = "homework"
	TypeProject  = "project"
	TypeOther    = "other"
)

var AllTypes = []string{TypeExam, TypeHomework, TypeProject, TypeOther}

type Grade struct {
	ID        string    `json:"id"`
	StudentID string    `json:"student_id"`
	CourseID  string    `json:"course_id"`
	TeacherID string    `json:"teacher_id"`
	Type      string    `json:"type"`
	Value     int       `json:"value"` // 0..100
	Date      time.Time `json:"date"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Average returns the mean of the grade values rounded half away from zero; 0 when there are none.
func Average(grades []Grade) int {
	if len(grades) == 0 {
		return 0
	}
	var sum int
	for _, g := range grades {
		sum += g.Value
	}
	return int(math.Round(float64(sum) / float64(len(grades))))
}

// CourseGrades are the grades of a student in one course.
type CourseGrades struct {
	CourseID string  `json:"course_id"`
	Grades   []Grade `json:"grades"`
	Average  int     `json:"average"`
	Count    int     `json:"count"`
}

type NewGrade struct {
	StudentID string    `json:"student_id" validate:"required,uuid"`
	CourseID  string    `json:"course_id" validate:"required,uuid"`
	Type      string    `json:"type" validate:"required,grade_type"`
	Value     *int      `json:"value" validate:"required,min=0,max=100"`
	Date      time.Time `json:"date"` // defaults to now
	Comment   string    `json:"comment" validate:"max=1000"`
}

func (ng *NewGrade) Validate(validate *validator.Validate) error {
	ng.StudentID = core.CleanString(ng.StudentID)
	ng.CourseID = core.CleanString(ng.CourseID)
	ng.Type = core.CleanString(ng.Type, true /* lower */)
	ng.Comment = core.CleanString(ng.Comment)
	return validate.Struct(ng)
}

type UpdateGrade struct {
	Type    *string    `json:"type" validate:"omitempty,grade_type"`
	Value   *int       `json:"value" validate:"omitempty,min=0,max=100"`
	Date    *time.Time `json:"date"`
	Comment *string    `json:"comment" validate:"omitempty,max=1000"`
}

func (ug *UpdateGrade) Validate(validate *validator.Validate) error {
	ug.Type = core.CleanStringPtr(ug.Type, true /* lower */)
	return validate.Struct(ug)
}

func (ug *UpdateGrade) apply(g Grade) Grade {
	if ug.Type != nil {
		g.Type = *ug.Type
	}
	if ug.Value != nil {
		g.Value = *ug.Value
	}
	if ug.Date != nil {
		g.Date = ug.Date.UTC()
	}
	if ug.Comment != nil {
		g.Comment = core.CleanString(*ug.Comment)
	}
	return g
}

type QueryFilter struct {
	StudentID string `query:"student_id"`
	CourseID  string `query:"course_id"`
	Type      string `query:"type"`
}
