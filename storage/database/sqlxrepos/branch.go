package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/branch"
	"github.com/trezcool/academia/storage/database"
)

type (
	branchRepository struct {
		db *sqlx.DB
	}

	branchRow struct {
		ID          string    `db:"id"`
		Name        string    `db:"name"`
		Description string    `db:"description"`
		CreatedAt   time.Time `db:"created_at"`
		UpdatedAt   time.Time `db:"updated_at"`
	}
)

var _ branch.Repository = (*branchRepository)(nil)

func NewBranchRepository(db *sqlx.DB) branch.Repository {
	return &branchRepository{db: db}
}

func (row branchRow) toBranch() branch.Branch {
	return branch.Branch{
		ID:          row.ID,
		Name:        row.Name,
		Description: row.Description,
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
}

func branchErr(err error, msg string) error {
	if database.IsUniqueViolation(err, "branches_name_key") {
		return branch.ErrNameExists
	}
	return errors.Wrap(err, msg)
}

func (repo *branchRepository) CheckNameUniqueness(ctx context.Context, name string, excludedIDs ...string) error {
	var exists bool
	q := "SELECT EXISTS (SELECT 1 FROM branches WHERE lower(name) = lower($1) AND NOT (id::text = ANY($2::text[])))"
	if err := repo.db.GetContext(ctx, &exists, q, name, textArray(excludedIDs)); err != nil {
		return errors.Wrap(err, "checking branch name uniqueness")
	}
	if exists {
		return branch.ErrNameExists
	}
	return nil
}

func (repo *branchRepository) CreateBranch(ctx context.Context, b branch.Branch) (branch.Branch, error) {
	b.ID = newID()
	q := "INSERT INTO branches (id, name, description, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)"
	if _, err := repo.db.ExecContext(ctx, q, b.ID, b.Name, b.Description, b.CreatedAt.UTC(), b.UpdatedAt.UTC()); err != nil {
		return branch.Branch{}, branchErr(err, "inserting branch")
	}
	return repo.GetBranch(ctx, b.ID)
}

func (repo *branchRepository) QueryBranches(ctx context.Context, search string) ([]branch.Branch, error) {
	var w where
	if search != "" {
		w.add("name ILIKE ?", searchPattern(search))
	}
	var rows []branchRow
	q := query("SELECT id, name, description, created_at, updated_at FROM branches" + w.String() + " ORDER BY name")
	if err := repo.db.SelectContext(ctx, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying branches")
	}
	branches := make([]branch.Branch, 0, len(rows))
	for _, row := range rows {
		branches = append(branches, row.toBranch())
	}
	return branches, nil
}

func (repo *branchRepository) GetBranch(ctx context.Context, id string) (branch.Branch, error) {
	var row branchRow
	q := "SELECT id, name, description, created_at, updated_at FROM branches WHERE id = $1"
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return branch.Branch{}, trapNoRowsErr(err, branch.ErrNotFound, "finding branch")
	}
	return row.toBranch(), nil
}

func (repo *branchRepository) UpdateBranch(ctx context.Context, b branch.Branch) (branch.Branch, error) {
	q := "UPDATE branches SET name = $2, description = $3, updated_at = $4 WHERE id = $1"
	res, err := repo.db.ExecContext(ctx, q, b.ID, b.Name, b.Description, b.UpdatedAt.UTC())
	if err != nil {
		return branch.Branch{}, branchErr(err, "updating branch")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return branch.Branch{}, branch.ErrNotFound
	}
	return repo.GetBranch(ctx, b.ID)
}

// DeleteBranch relies on teacher_branches cascading and courses.branch_id being set to NULL.
func (repo *branchRepository) DeleteBranch(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM branches WHERE id = $1", id)
	if err != nil {
		return trapNoRowsErr(err, branch.ErrNotFound, "deleting branch")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return branch.ErrNotFound
	}
	return nil
}
