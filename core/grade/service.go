package grade

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/course"
)

var ErrNotFound = core.NewNotFoundError("grade not found")

type (
	Repository interface {
		CreateGrade(ctx context.Context, g Grade) (Grade, error)
		// QueryGrades returns the grades matching filter, by date.
		QueryGrades(ctx context.Context, filter *QueryFilter) ([]Grade, error)
		GetGrade(ctx context.Context, id string) (Grade, error)
		UpdateGrade(ctx context.Context, g Grade) (Grade, error)
		DeleteGrade(ctx context.Context, id string) error
	}

	CourseService interface {
		GetTaughtBy(ctx context.Context, id, teacherID string) (course.Course, error)
	}

	Service interface {
		Create(ctx context.Context, teacherID string, ng NewGrade) (Grade, error)
		Update(ctx context.Context, teacherID, id string, ug UpdateGrade) (Grade, error)
		Delete(ctx context.Context, teacherID, id string) error
		// QueryCourse lists the grades of a course taught by the teacher, optionally of one student.
		QueryCourse(ctx context.Context, teacherID, courseID, studentID string) ([]Grade, error)
		// StudentSummary groups the student's grades per course, with their average.
		StudentSummary(ctx context.Context, studentID string) ([]CourseGrades, error)
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

func (svc *service) Create(ctx context.Context, teacherID string, ng NewGrade) (Grade, error) {
	c, err := svc.courseSvc.GetTaughtBy(ctx, ng.CourseID, teacherID)
	if err != nil {
		if core.IsNotFound(err) {
			return Grade{}, core.NewValidationError(err, core.FieldError{Field: "course_id", Error: err.Error()})
		}
		return Grade{}, err
	}
	if !c.HasStudent(ng.StudentID) {
		return Grade{}, core.NewValidationError(course.ErrNotEnrolled, core.FieldError{Field: "student_id", Error: course.ErrNotEnrolled.Error()})
	}

	now := time.Now().UTC()
	date := ng.Date.UTC()
	if ng.Date.IsZero() {
		date = now
	}
	return svc.repo.CreateGrade(ctx, Grade{
		StudentID: ng.StudentID,
		CourseID:  c.ID,
		TeacherID: teacherID,
		Type:      ng.Type,
		Value:     *ng.Value,
		Date:      date,
		Comment:   ng.Comment,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (svc *service) getForTeacher(ctx context.Context, teacherID, id string) (Grade, error) {
	g, err := svc.repo.GetGrade(ctx, id)
	if err != nil {
		return Grade{}, err
	}
	if _, err := svc.courseSvc.GetTaughtBy(ctx, g.CourseID, teacherID); err != nil {
		if core.IsNotFound(err) {
			return Grade{}, ErrNotFound
		}
		return Grade{}, err
	}
	return g, nil
}

func (svc *service) Update(ctx context.Context, teacherID, id string, ug UpdateGrade) (Grade, error) {
	g, err := svc.getForTeacher(ctx, teacherID, id)
	if err != nil {
		return Grade{}, err
	}
	g = ug.apply(g)
	g.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateGrade(ctx, g)
}

func (svc *service) Delete(ctx context.Context, teacherID, id string) error {
	if _, err := svc.getForTeacher(ctx, teacherID, id); err != nil {
		return err
	}
	return svc.repo.DeleteGrade(ctx, id)
}

func (svc *service) QueryCourse(ctx context.Context, teacherID, courseID, studentID string) ([]Grade, error) {
	if _, err := svc.courseSvc.GetTaughtBy(ctx, courseID, teacherID); err != nil {
		return nil, err
	}
	return svc.repo.QueryGrades(ctx, &QueryFilter{CourseID: courseID, StudentID: studentID})
}

func (svc *service) StudentSummary(ctx context.Context, studentID string) ([]CourseGrades, error) {
	grades, err := svc.repo.QueryGrades(ctx, &QueryFilter{StudentID: studentID})
	if err != nil {
		return nil, errors.Wrap(err, "querying grades")
	}
	return GroupByCourse(grades), nil
}

// GroupByCourse groups grades per course, ordered by course ID.
func GroupByCourse(grades []Grade) []CourseGrades {
	byCourse := make(map[string][]Grade)
	for _, g := range grades {
		byCourse[g.CourseID] = append(byCourse[g.CourseID], g)
	}
	res := make([]CourseGrades, 0, len(byCourse))
	for courseID, gs := range byCourse {
		res = append(res, CourseGrades{
			CourseID: courseID,
			Grades:   gs,
			Average:  Average(gs),
			Count:    len(gs),
		})
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CourseID < res[j].CourseID })
	return res
}
