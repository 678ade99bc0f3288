package branch

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
)

var (
	// errors
	ErrNotFound   = core.NewNotFoundError("branch not found")
	ErrNameExists = errors.New("a branch with this name already exists")
)

type (
	Branch struct {
		ID          string    `json:"id"`
		Name        string    `json:"name"`
		Description string    `json:"description"`
		CreatedAt   time.Time `json:"created_at"`
		UpdatedAt   time.Time `json:"updated_at"`
	}

	NewBranch struct {
		Name        string `json:"name" validate:"required,max=100"`
		Description string `json:"description" validate:"max=1000"`
	}

	UpdateBranch struct {
		Name        *string `json:"name" validate:"omitempty,notblank,max=100"`
		Description *string `json:"description" validate:"omitempty,max=1000"`
	}

	Repository interface {
		// CheckNameUniqueness returns ErrNameExists if another branch (not in excludedIDs) is named name.
		CheckNameUniqueness(ctx context.Context, name string, excludedIDs ...string) error
		CreateBranch(ctx context.Context, b Branch) (Branch, error)
		// QueryBranches returns the branches whose name contains search (case-insensitive), by name.
		QueryBranches(ctx context.Context, search string) ([]Branch, error)
		GetBranch(ctx context.Context, id string) (Branch, error)
		UpdateBranch(ctx context.Context, b Branch) (Branch, error)
		DeleteBranch(ctx context.Context, id string) error
	}

	Service interface {
		Create(ctx context.Context, nb NewBranch) (Branch, error)
		Query(ctx context.Context, search string) ([]Branch, error)
		GetByID(ctx context.Context, id string) (Branch, error)
		Update(ctx context.Context, id string, ub UpdateBranch) (Branch, error)
		Delete(ctx context.Context, id string) error
	}

	service struct {
		repo Repository
	}
)

func (nb *NewBranch) Validate(validate *validator.Validate) error {
	nb.Name = core.CleanString(nb.Name)
	nb.Description = core.CleanString(nb.Description)
	return validate.Struct(nb)
}

func (ub *UpdateBranch) Validate(validate *validator.Validate) error {
	ub.Name = core.CleanStringPtr(ub.Name)
	if ub.Description != nil {
		desc := core.CleanString(*ub.Description)
		ub.Description = &desc
	}
	return validate.Struct(ub)
}

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func conflict(err error) error {
	if errors.Cause(err) == ErrNameExists {
		return core.NewConflictError(ErrNameExists, core.FieldError{Field: "name", Error: ErrNameExists.Error()})
	}
	return err
}

func (svc *service) Create(ctx context.Context, nb NewBranch) (Branch, error) {
	if err := svc.repo.CheckNameUniqueness(ctx, nb.Name); err != nil {
		return Branch{}, conflict(err)
	}
	now := time.Now().UTC()
	b, err := svc.repo.CreateBranch(ctx, Branch{
		Name:        nb.Name,
		Description: nb.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	return b, conflict(err)
}

func (svc *service) Query(ctx context.Context, search string) ([]Branch, error) {
	return svc.repo.QueryBranches(ctx, core.CleanString(search))
}

func (svc *service) GetByID(ctx context.Context, id string) (Branch, error) {
	return svc.repo.GetBranch(ctx, id)
}

func (svc *service) Update(ctx context.Context, id string, ub UpdateBranch) (Branch, error) {
	b, err := svc.repo.GetBranch(ctx, id)
	if err != nil {
		return Branch{}, err
	}
	if ub.Name != nil {
		if err := svc.repo.CheckNameUniqueness(ctx, *ub.Name, id); err != nil {
			return Branch{}, conflict(err)
		}
		b.Name = *ub.Name
	}
	if ub.Description != nil {
		b.Description = *ub.Description
	}
	b.UpdatedAt = time.Now().UTC()
	b, err = svc.repo.UpdateBranch(ctx, b)
	return b, conflict(err)
}

func (svc *service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteBranch(ctx, id)
}
