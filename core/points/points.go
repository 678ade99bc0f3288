package points

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/course"
)

// StudentPoint accumulates the points of a student in a course.
type StudentPoint struct {
	StudentID string    `json:"student_id"`
	CourseID  string    `json:"course_id"`
	Points    int       `json:"points"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Apply returns current+delta, floored at 0.
func Apply(current, delta int) int {
	if sum := current + delta; sum > 0 {
		return sum
	}
	return 0
}

// Total sums points.
func Total(pts []StudentPoint) int {
	var total int
	for _, p := range pts {
		total += p.Points
	}
	return total
}

// Adjustment is a manual change of a student's points in a course.
type Adjustment struct {
	StudentID string `json:"student_id" validate:"required,uuid"`
	CourseID  string `json:"course_id" validate:"required,uuid"`
	Delta     int    `json:"delta" validate:"ne=0"`
	Reason    string `json:"reason" validate:"max=500"`
}

func (adj *Adjustment) Validate(validate *validator.Validate) error {
	adj.StudentID = core.CleanString(adj.StudentID)
	adj.CourseID = core.CleanString(adj.CourseID)
	adj.Reason = core.CleanString(adj.Reason)
	return validate.Struct(adj)
}

type QueryFilter struct {
	StudentID string
	CourseID  string
}

type (
	Repository interface {
		// AddPoints atomically adds delta to the (student, course) points, flooring the total at 0.
		// The row is created when missing.
		AddPoints(ctx context.Context, studentID, courseID string, delta int) (StudentPoint, error)
		QueryPoints(ctx context.Context, filter QueryFilter) ([]StudentPoint, error)
	}

	CourseService interface {
		GetTaughtBy(ctx context.Context, id, teacherID string) (course.Course, error)
	}

	Service interface {
		Adjust(ctx context.Context, teacherID string, adj Adjustment) (StudentPoint, error)
		QueryCourse(ctx context.Context, teacherID, courseID string) ([]StudentPoint, error)
		QueryStudent(ctx context.Context, studentID string) ([]StudentPoint, error)
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

func (svc *service) Adjust(ctx context.Context, teacherID string, adj Adjustment) (StudentPoint, error) {
	c, err := svc.courseSvc.GetTaughtBy(ctx, adj.CourseID, teacherID)
	if err != nil {
		if core.IsNotFound(err) {
			return StudentPoint{}, core.NewValidationError(err, core.FieldError{Field: "course_id", Error: err.Error()})
		}
		return StudentPoint{}, err
	}
	if !c.HasStudent(adj.StudentID) {
		return StudentPoint{}, core.NewValidationError(course.ErrNotEnrolled, core.FieldError{Field: "student_id", Error: course.ErrNotEnrolled.Error()})
	}
	sp, err := svc.repo.AddPoints(ctx, adj.StudentID, c.ID, adj.Delta)
	if err != nil {
		return StudentPoint{}, errors.Wrap(err, "adding points")
	}
	return sp, nil
}

func (svc *service) QueryCourse(ctx context.Context, teacherID, courseID string) ([]StudentPoint, error) {
	if _, err := svc.courseSvc.GetTaughtBy(ctx, courseID, teacherID); err != nil {
		return nil, err
	}
	return svc.repo.QueryPoints(ctx, QueryFilter{CourseID: courseID})
}

func (svc *service) QueryStudent(ctx context.Context, studentID string) ([]StudentPoint, error) {
	return svc.repo.QueryPoints(ctx, QueryFilter{StudentID: studentID})
}
