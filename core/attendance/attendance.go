package attendance

import (
	"context"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/course"
)

// Attendance counts the classes held and attended by a student in a course.
type Attendance struct {
	StudentID       string    `json:"student_id"`
	CourseID        string    `json:"course_id"`
	TotalClasses    int       `json:"total_classes"`
	AttendedClasses int       `json:"attended_classes"`
	Rate            float64   `json:"rate"` // %
	UpdatedAt       time.Time `json:"updated_at"`
}

// ComputeRate returns the attendance percentage rounded to one decimal; 0 when no class was held.
func ComputeRate(attended, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(attended)*1000/float64(total)) / 10
}

func (a Attendance) WithRate() Attendance {
	a.Rate = ComputeRate(a.AttendedClasses, a.TotalClasses)
	return a
}

// Session is a held class of a course with the students who attended it.
type Session struct {
	PresentStudentIDs []string `json:"present_student_ids" validate:"omitempty,dive,uuid"`
}

func (s *Session) Validate(validate *validator.Validate) error {
	s.PresentStudentIDs = core.UniqueStrings(s.PresentStudentIDs)
	return validate.Struct(s)
}

type QueryFilter struct {
	StudentID string
	CourseID  string
}

type (
	Repository interface {
		// RecordSession increments the total classes of every student of studentIDs and the attended
		// classes of those in presentIDs, atomically per row. Missing rows are created.
		RecordSession(ctx context.Context, courseID string, studentIDs, presentIDs []string) ([]Attendance, error)
		QueryAttendance(ctx context.Context, filter QueryFilter) ([]Attendance, error)
	}

	CourseService interface {
		GetTaughtBy(ctx context.Context, id, teacherID string) (course.Course, error)
	}

	Service interface {
		Record(ctx context.Context, teacherID, courseID string, s Session) ([]Attendance, error)
		QueryCourse(ctx context.Context, teacherID, courseID string) ([]Attendance, error)
		QueryStudent(ctx context.Context, studentID string) ([]Attendance, error)
	}

	service struct {
		repo      Repository
		courseSvc CourseService
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, courseSvc CourseService) Service {
	return &service{repo: repo, courseSvc: courseSvc}
}

func (svc *service) Record(ctx context.Context, teacherID, courseID string, s Session) ([]Attendance, error) {
	c, err := svc.courseSvc.GetTaughtBy(ctx, courseID, teacherID)
	if err != nil {
		return nil, err
	}
	for _, id := range s.PresentStudentIDs {
		if !c.HasStudent(id) {
			return nil, core.NewValidationError(course.ErrNotEnrolled, core.FieldError{Field: "present_student_ids", Error: course.ErrNotEnrolled.Error()})
		}
	}
	if len(c.StudentIDs) == 0 {
		return []Attendance{}, nil
	}
	att, err := svc.repo.RecordSession(ctx, c.ID, c.StudentIDs, s.PresentStudentIDs)
	if err != nil {
		return nil, errors.Wrap(err, "recording attendance")
	}
	return withRates(att), nil
}

func (svc *service) QueryCourse(ctx context.Context, teacherID, courseID string) ([]Attendance, error) {
	if _, err := svc.courseSvc.GetTaughtBy(ctx, courseID, teacherID); err != nil {
		return nil, err
	}
	att, err := svc.repo.QueryAttendance(ctx, QueryFilter{CourseID: courseID})
	return withRates(att), err
}

func (svc *service) QueryStudent(ctx context.Context, studentID string) ([]Attendance, error) {
	att, err := svc.repo.QueryAttendance(ctx, QueryFilter{StudentID: studentID})
	return withRates(att), err
}

func withRates(att []Attendance) []Attendance {
	for i := range att {
		att[i] = att[i].WithRate()
	}
	return att
}
