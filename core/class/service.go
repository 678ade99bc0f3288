package class

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/user"
)

var (
	// errors
	ErrNotFound          = core.NewNotFoundError("class not found")
	ErrNameYearExists    = errors.New("a class with this name already exists for this academic year")
	ErrNotATeacher       = errors.New("user is not a teacher")
	ErrStudentNotInClass = errors.New("student does not belong to this class")
)

type (
	Repository interface {
		// CheckUniqueness returns ErrNameYearExists if another class (not in excludedIDs)
		// has the same name and academic year.
		CheckUniqueness(ctx context.Context, name, academicYear string, excludedIDs ...string) error
		CreateClass(ctx context.Context, c Class) (Class, error)
		QueryClasses(ctx context.Context, filter *QueryFilter) ([]Class, error)
		GetClass(ctx context.Context, id string) (Class, error)
		UpdateClass(ctx context.Context, c Class) (Class, error)
		// DeleteClass deletes the class; its students are detached and its courses left without class.
		DeleteClass(ctx context.Context, id string) error
	}

	// UserService is the part of user.Service classes depend on.
	UserService interface {
		GetByID(ctx context.Context, id string) (user.User, error)
		SetClass(ctx context.Context, studentID string, classID *string) (user.User, error)
	}

	Service interface {
		Create(ctx context.Context, nc NewClass) (Class, error)
		Query(ctx context.Context, filter *QueryFilter) ([]Class, error)
		GetByID(ctx context.Context, id string) (Class, error)
		Update(ctx context.Context, id string, uc UpdateClass) (Class, error)
		Delete(ctx context.Context, id string) error
		// AddStudent moves the student into the class, re-enrolling them into its courses.
		AddStudent(ctx context.Context, id, studentID string) (user.User, error)
		RemoveStudent(ctx context.Context, id, studentID string) (user.User, error)
	}

	service struct {
		repo    Repository
		userSvc UserService
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, userSvc UserService) Service {
	return &service{repo: repo, userSvc: userSvc}
}

func conflict(err error) error {
	if errors.Cause(err) == ErrNameYearExists {
		return core.NewConflictError(ErrNameYearExists, core.FieldError{Field: "name", Error: ErrNameYearExists.Error()})
	}
	return err
}

// checkTeachers verifies that every id belongs to a teacher.
func (svc *service) checkTeachers(ctx context.Context, field string, ids ...string) error {
	for _, id := range ids {
		usr, err := svc.userSvc.GetByID(ctx, id)
		if err != nil {
			if core.IsNotFound(err) {
				return core.NewValidationError(user.ErrNotFound, core.FieldError{Field: field, Error: user.ErrNotFound.Error()})
			}
			return errors.Wrap(err, "finding teacher")
		}
		if !usr.IsTeacher() {
			return core.NewValidationError(ErrNotATeacher, core.FieldError{Field: field, Error: ErrNotATeacher.Error()})
		}
	}
	return nil
}

func (svc *service) validateTeachers(ctx context.Context, c Class) error {
	if c.ClassTeacherID != nil {
		if err := svc.checkTeachers(ctx, "class_teacher_id", *c.ClassTeacherID); err != nil {
			return err
		}
	}
	return svc.checkTeachers(ctx, "branch_teacher_ids", c.BranchTeacherIDs...)
}

func (svc *service) Create(ctx context.Context, nc NewClass) (Class, error) {
	now := time.Now().UTC()
	c := Class{
		Name:             nc.Name,
		AcademicYear:     nc.AcademicYear,
		ClassTeacherID:   nc.ClassTeacherID,
		BranchTeacherIDs: nc.BranchTeacherIDs,
		IsActive:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if nc.IsActive != nil {
		c.IsActive = *nc.IsActive
	}
	if err := svc.repo.CheckUniqueness(ctx, c.Name, c.AcademicYear); err != nil {
		return Class{}, conflict(err)
	}
	if err := svc.validateTeachers(ctx, c); err != nil {
		return Class{}, err
	}
	c, err := svc.repo.CreateClass(ctx, c)
	return c, conflict(err)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter) ([]Class, error) {
	return svc.repo.QueryClasses(ctx, filter)
}

func (svc *service) GetByID(ctx context.Context, id string) (Class, error) {
	return svc.repo.GetClass(ctx, id)
}

func (svc *service) Update(ctx context.Context, id string, uc UpdateClass) (Class, error) {
	orig, err := svc.repo.GetClass(ctx, id)
	if err != nil {
		return Class{}, err
	}
	c := uc.apply(orig)
	if c.Name != orig.Name || c.AcademicYear != orig.AcademicYear {
		if err := svc.repo.CheckUniqueness(ctx, c.Name, c.AcademicYear, id); err != nil {
			return Class{}, conflict(err)
		}
	}
	if err := svc.validateTeachers(ctx, c); err != nil {
		return Class{}, err
	}
	c.UpdatedAt = time.Now().UTC()
	c, err = svc.repo.UpdateClass(ctx, c)
	return c, conflict(err)
}

func (svc *service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteClass(ctx, id)
}

func (svc *service) AddStudent(ctx context.Context, id, studentID string) (user.User, error) {
	if _, err := svc.repo.GetClass(ctx, id); err != nil {
		return user.User{}, err
	}
	return svc.userSvc.SetClass(ctx, studentID, &id)
}

func (svc *service) RemoveStudent(ctx context.Context, id, studentID string) (user.User, error) {
	c, err := svc.repo.GetClass(ctx, id)
	if err != nil {
		return user.User{}, err
	}
	if !c.HasStudent(studentID) {
		return user.User{}, core.NewValidationError(ErrStudentNotInClass, core.FieldError{Field: "student_id", Error: ErrStudentNotInClass.Error()})
	}
	return svc.userSvc.SetClass(ctx, studentID, nil)
}
