package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/academia/core/branch"
)

type branchRepository struct {
	db *DB
}

var _ branch.Repository = (*branchRepository)(nil)

func NewBranchRepository(db *DB) branch.Repository {
	return &branchRepository{db: db}
}

func (repo *branchRepository) checkNameUniqueness(name string, excludedIDs ...string) error {
	for _, b := range repo.db.branches {
		if strings.EqualFold(b.Name, name) && !isExcluded(b.ID, excludedIDs) {
			return branch.ErrNameExists
		}
	}
	return nil
}

func (repo *branchRepository) CheckNameUniqueness(_ context.Context, name string, excludedIDs ...string) error {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return repo.checkNameUniqueness(name, excludedIDs...)
}

func (repo *branchRepository) CreateBranch(_ context.Context, b branch.Branch) (branch.Branch, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.checkNameUniqueness(b.Name); err != nil {
		return branch.Branch{}, err
	}
	b.ID = newID()
	repo.db.branches[b.ID] = &b
	return b, nil
}

func (repo *branchRepository) QueryBranches(_ context.Context, search string) ([]branch.Branch, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	branches := make([]branch.Branch, 0, len(repo.db.branches))
	for _, b := range repo.db.branches {
		if search == "" || containsFold(b.Name, search) {
			branches = append(branches, *b)
		}
	}
	sort.Slice(branches, func(i, j int) bool { return branches[i].Name < branches[j].Name })
	return branches, nil
}

func (repo *branchRepository) GetBranch(_ context.Context, id string) (branch.Branch, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if b, ok := repo.db.branches[id]; ok {
		return *b, nil
	}
	return branch.Branch{}, branch.ErrNotFound
}

func (repo *branchRepository) UpdateBranch(_ context.Context, b branch.Branch) (branch.Branch, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.branches[b.ID]; !ok {
		return branch.Branch{}, branch.ErrNotFound
	}
	if err := repo.checkNameUniqueness(b.Name, b.ID); err != nil {
		return branch.Branch{}, err
	}
	repo.db.branches[b.ID] = &b
	return b, nil
}

func (repo *branchRepository) DeleteBranch(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.branches[id]; !ok {
		return branch.ErrNotFound
	}
	for _, u := range repo.db.users {
		u.BranchIDs = removeString(u.BranchIDs, id)
	}
	for _, c := range repo.db.courses {
		if c.BranchID != nil && *c.BranchID == id {
			c.BranchID = nil
		}
	}
	delete(repo.db.branches, id)
	return nil
}
