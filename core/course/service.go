package course

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/branch"
	"github.com/trezcool/academia/core/class"
	"github.com/trezcool/academia/core/user"
)

var (
	// errors
	ErrNotFound         = core.NewNotFoundError("course not found")
	ErrCodeExists       = errors.New("a course with this code already exists")
	ErrNotATeacher      = errors.New("user is not a teacher")
	ErrNotAStudent      = errors.New("user is not a student")
	ErrNotEnrolled      = errors.New("student is not enrolled in this course")
	ErrNotCourseTeacher = errors.New("you do not teach this course")
)

type (
	Repository interface {
		// CheckCodeUniqueness returns ErrCodeExists if another course (not in excludedIDs) has code.
		CheckCodeUniqueness(ctx context.Context, code string, excludedIDs ...string) error
		// CreateCourse stores c and enrols the students of its class.
		CreateCourse(ctx context.Context, c Course) (Course, error)
		QueryCourses(ctx context.Context, filter *QueryFilter) ([]Course, error)
		GetCourse(ctx context.Context, id string) (Course, error)
		// UpdateCourse saves c. When its class changes, the students of the old class are
		// unenrolled and those of the new class enrolled, in the same transaction.
		UpdateCourse(ctx context.Context, c Course) (Course, error)
		DeleteCourse(ctx context.Context, id string) error
		EnrollStudents(ctx context.Context, id string, studentIDs ...string) (Course, error)
		UnenrollStudents(ctx context.Context, id string, studentIDs ...string) (Course, error)
	}

	UserGetter interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	ClassGetter interface {
		GetByID(ctx context.Context, id string) (class.Class, error)
	}

	BranchGetter interface {
		GetByID(ctx context.Context, id string) (branch.Branch, error)
	}

	Service interface {
		Create(ctx context.Context, nc NewCourse) (Course, error)
		Query(ctx context.Context, filter *QueryFilter) ([]Course, error)
		GetByID(ctx context.Context, id string) (Course, error)
		Update(ctx context.Context, id string, uc UpdateCourse) (Course, error)
		Delete(ctx context.Context, id string) error
		Enroll(ctx context.Context, id string, studentIDs ...string) (Course, error)
		Unenroll(ctx context.Context, id string, studentIDs ...string) (Course, error)
		// GetTaughtBy returns the course if teacherID teaches it.
		GetTaughtBy(ctx context.Context, id, teacherID string) (Course, error)
		// GetEnrolled returns the course if studentID is enrolled in it.
		GetEnrolled(ctx context.Context, id, studentID string) (Course, error)
	}

	service struct {
		repo      Repository
		userSvc   UserGetter
		classSvc  ClassGetter
		branchSvc BranchGetter
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, userSvc UserGetter, classSvc ClassGetter, branchSvc BranchGetter) Service {
	return &service{
		repo:      repo,
		userSvc:   userSvc,
		classSvc:  classSvc,
		branchSvc: branchSvc,
	}
}

func conflict(err error) error {
	if errors.Cause(err) == ErrCodeExists {
		return core.NewConflictError(ErrCodeExists, core.FieldError{Field: "code", Error: ErrCodeExists.Error()})
	}
	return err
}

func fieldErr(field string, err error) error {
	return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
}

// validateRefs checks that the teacher is a teacher and that the class and branch exist.
func (svc *service) validateRefs(ctx context.Context, c Course) error {
	if c.TeacherID != nil {
		usr, err := svc.userSvc.GetByID(ctx, *c.TeacherID)
		if err != nil {
			if core.IsNotFound(err) {
				return fieldErr("teacher_id", user.ErrNotFound)
			}
			return errors.Wrap(err, "finding teacher")
		}
		if !usr.IsTeacher() {
			return fieldErr("teacher_id", ErrNotATeacher)
		}
	}
	if c.ClassID != nil {
		if _, err := svc.classSvc.GetByID(ctx, *c.ClassID); err != nil {
			if core.IsNotFound(err) {
				return fieldErr("class_id", class.ErrNotFound)
			}
			return errors.Wrap(err, "finding class")
		}
	}
	if c.BranchID != nil {
		if _, err := svc.branchSvc.GetByID(ctx, *c.BranchID); err != nil {
			if core.IsNotFound(err) {
				return fieldErr("branch_id", branch.ErrNotFound)
			}
			return errors.Wrap(err, "finding branch")
		}
	}
	return nil
}

func (svc *service) Create(ctx context.Context, nc NewCourse) (Course, error) {
	if err := svc.repo.CheckCodeUniqueness(ctx, nc.Code); err != nil {
		return Course{}, conflict(err)
	}
	now := time.Now().UTC()
	c := Course{
		Name:        nc.Name,
		Code:        nc.Code,
		Description: nc.Description,
		TeacherID:   nc.TeacherID,
		ClassID:     nc.ClassID,
		BranchID:    nc.BranchID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := svc.validateRefs(ctx, c); err != nil {
		return Course{}, err
	}
	c, err := svc.repo.CreateCourse(ctx, c)
	return c, conflict(err)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter) ([]Course, error) {
	return svc.repo.QueryCourses(ctx, filter)
}

func (svc *service) GetByID(ctx context.Context, id string) (Course, error) {
	return svc.repo.GetCourse(ctx, id)
}

func (svc *service) Update(ctx context.Context, id string, uc UpdateCourse) (Course, error) {
	orig, err := svc.repo.GetCourse(ctx, id)
	if err != nil {
		return Course{}, err
	}
	c := uc.apply(orig)
	if c.Code != orig.Code {
		if err := svc.repo.CheckCodeUniqueness(ctx, c.Code, id); err != nil {
			return Course{}, conflict(err)
		}
	}
	if err := svc.validateRefs(ctx, c); err != nil {
		return Course{}, err
	}
	c.UpdatedAt = time.Now().UTC()
	c, err = svc.repo.UpdateCourse(ctx, c)
	return c, conflict(err)
}

func (svc *service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteCourse(ctx, id)
}

func (svc *service) Enroll(ctx context.Context, id string, studentIDs ...string) (Course, error) {
	if _, err := svc.repo.GetCourse(ctx, id); err != nil {
		return Course{}, err
	}
	for _, sid := range studentIDs {
		usr, err := svc.userSvc.GetByID(ctx, sid)
		if err != nil {
			if core.IsNotFound(err) {
				return Course{}, fieldErr("student_ids", user.ErrNotFound)
			}
			return Course{}, errors.Wrap(err, "finding student")
		}
		if !usr.IsStudent() {
			return Course{}, fieldErr("student_ids", ErrNotAStudent)
		}
	}
	return svc.repo.EnrollStudents(ctx, id, studentIDs...)
}

func (svc *service) Unenroll(ctx context.Context, id string, studentIDs ...string) (Course, error) {
	return svc.repo.UnenrollStudents(ctx, id, studentIDs...)
}

func (svc *service) GetTaughtBy(ctx context.Context, id, teacherID string) (Course, error) {
	c, err := svc.repo.GetCourse(ctx, id)
	if err != nil {
		return Course{}, err
	}
	if !c.IsTaughtBy(teacherID) {
		return Course{}, errors.Wrap(core.ErrForbidden, ErrNotCourseTeacher.Error())
	}
	return c, nil
}

func (svc *service) GetEnrolled(ctx context.Context, id, studentID string) (Course, error) {
	c, err := svc.repo.GetCourse(ctx, id)
	if err != nil {
		return Course{}, err
	}
	if !c.HasStudent(studentID) {
		return Course{}, errors.Wrap(core.ErrForbidden, ErrNotEnrolled.Error())
	}
	return c, nil
}
