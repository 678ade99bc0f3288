package badge

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/user"
)

var (
	// errors
	ErrNotFound       = core.NewNotFoundError("badge not found")
	ErrAwardNotFound  = core.NewNotFoundError("badge not awarded to this student")
	ErrNameExists     = errors.New("a badge with this name already exists")
	ErrAlreadyAwarded = errors.New("badge already awarded to this student")
	ErrNotAStudent    = errors.New("user is not a student")
)

type Badge struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// StudentBadge is a badge earned by a student.
type StudentBadge struct {
	ID        string    `json:"id"`
	StudentID string    `json:"student_id"`
	BadgeID   string    `json:"badge_id"`
	Badge     *Badge    `json:"badge,omitempty"`
	AwardedAt time.Time `json:"awarded_at"`
}

type NewBadge struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=1000"`
	Icon        string `json:"icon" validate:"max=200"`
}

func (nb *NewBadge) Validate(validate *validator.Validate) error {
	nb.Name = core.CleanString(nb.Name)
	nb.Description = core.CleanString(nb.Description)
	nb.Icon = core.CleanString(nb.Icon)
	return validate.Struct(nb)
}

type UpdateBadge struct {
	Name        *string `json:"name" validate:"omitempty,notblank,max=100"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
	Icon        *string `json:"icon" validate:"omitempty,max=200"`
}

func (ub *UpdateBadge) Validate(validate *validator.Validate) error {
	ub.Name = core.CleanStringPtr(ub.Name)
	return validate.Struct(ub)
}

type Award struct {
	StudentID string `json:"student_id" validate:"required,uuid"`
}

func (a *Award) Validate(validate *validator.Validate) error {
	a.StudentID = core.CleanString(a.StudentID)
	return validate.Struct(a)
}

type (
	Repository interface {
		CheckNameUniqueness(ctx context.Context, name string, excludedIDs ...string) error
		CreateBadge(ctx context.Context, b Badge) (Badge, error)
		QueryBadges(ctx context.Context) ([]Badge, error)
		GetBadge(ctx context.Context, id string) (Badge, error)
		UpdateBadge(ctx context.Context, b Badge) (Badge, error)
		// DeleteBadge deletes the badge and its awards.
		DeleteBadge(ctx context.Context, id string) error
		// AwardBadge returns ErrAlreadyAwarded if the student already holds the badge.
		AwardBadge(ctx context.Context, sb StudentBadge) (StudentBadge, error)
		RevokeBadge(ctx context.Context, studentID, badgeID string) error
		// QueryStudentBadges returns the badges of a student, most recent first, with their Badge set.
		QueryStudentBadges(ctx context.Context, studentID string) ([]StudentBadge, error)
	}

	UserGetter interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	Service interface {
		Create(ctx context.Context, nb NewBadge) (Badge, error)
		Query(ctx context.Context) ([]Badge, error)
		GetByID(ctx context.Context, id string) (Badge, error)
		Update(ctx context.Context, id string, ub UpdateBadge) (Badge, error)
		Delete(ctx context.Context, id string) error
		Award(ctx context.Context, id, studentID string) (StudentBadge, error)
		Revoke(ctx context.Context, id, studentID string) error
		QueryStudent(ctx context.Context, studentID string) ([]StudentBadge, error)
	}

	service struct {
		repo    Repository
		userSvc UserGetter
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, userSvc UserGetter) Service {
	return &service{repo: repo, userSvc: userSvc}
}

func conflict(err error) error {
	switch errors.Cause(err) {
	case ErrNameExists:
		return core.NewConflictError(ErrNameExists, core.FieldError{Field: "name", Error: ErrNameExists.Error()})
	case ErrAlreadyAwarded:
		return core.NewConflictError(ErrAlreadyAwarded, core.FieldError{Field: "student_id", Error: ErrAlreadyAwarded.Error()})
	}
	return err
}

func (svc *service) Create(ctx context.Context, nb NewBadge) (Badge, error) {
	if err := svc.repo.CheckNameUniqueness(ctx, nb.Name); err != nil {
		return Badge{}, conflict(err)
	}
	now := time.Now().UTC()
	b, err := svc.repo.CreateBadge(ctx, Badge{
		Name:        nb.Name,
		Description: nb.Description,
		Icon:        nb.Icon,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	return b, conflict(err)
}

func (svc *service) Query(ctx context.Context) ([]Badge, error) {
	return svc.repo.QueryBadges(ctx)
}

func (svc *service) GetByID(ctx context.Context, id string) (Badge, error) {
	return svc.repo.GetBadge(ctx, id)
}

func (svc *service) Update(ctx context.Context, id string, ub UpdateBadge) (Badge, error) {
	b, err := svc.repo.GetBadge(ctx, id)
	if err != nil {
		return Badge{}, err
	}
	if ub.Name != nil && *ub.Name != b.Name {
		if err := svc.repo.CheckNameUniqueness(ctx, *ub.Name, id); err != nil {
			return Badge{}, conflict(err)
		}
		b.Name = *ub.Name
	}
	if ub.Description != nil {
		b.Description = core.CleanString(*ub.Description)
	}
	if ub.Icon != nil {
		b.Icon = core.CleanString(*ub.Icon)
	}
	b.UpdatedAt = time.Now().UTC()
	b, err = svc.repo.UpdateBadge(ctx, b)
	return b, conflict(err)
}

func (svc *service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteBadge(ctx, id)
}

func (svc *service) Award(ctx context.Context, id, studentID string) (StudentBadge, error) {
	b, err := svc.repo.GetBadge(ctx, id)
	if err != nil {
		return StudentBadge{}, err
	}
	usr, err := svc.userSvc.GetByID(ctx, studentID)
	if err != nil {
		if core.IsNotFound(err) {
			return StudentBadge{}, core.NewValidationError(err, core.FieldError{Field: "student_id", Error: err.Error()})
		}
		return StudentBadge{}, errors.Wrap(err, "finding student")
	}
	if !usr.IsStudent() {
		return StudentBadge{}, core.NewValidationError(ErrNotAStudent, core.FieldError{Field: "student_id", Error: ErrNotAStudent.Error()})
	}
	sb, err := svc.repo.AwardBadge(ctx, StudentBadge{
		StudentID: studentID,
		BadgeID:   b.ID,
		AwardedAt: time.Now().UTC(),
	})
	if err != nil {
		return StudentBadge{}, conflict(err)
	}
	sb.Badge = &b
	return sb, nil
}

func (svc *service) Revoke(ctx context.Context, id, studentID string) error {
	return svc.repo.RevokeBadge(ctx, studentID, id)
}

func (svc *service) QueryStudent(ctx context.Context, studentID string) ([]StudentBadge, error) {
	return svc.repo.QueryStudentBadges(ctx, studentID)
}
