package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/assignment"
)

type assignmentRepository struct {
	db *DB
}

var _ assignment.Repository = (*assignmentRepository)(nil)

func NewAssignmentRepository(db *DB) assignment.Repository {
	return &assignmentRepository{db: db}
}

// deleteAssignment deletes an assignment and its submissions. Requires the write lock.
func (db *DB) deleteAssignment(id string) {
	for k := range db.submissions {
		if k.b == id {
			delete(db.submissions, k)
		}
	}
	delete(db.assignments, id)
}

func (repo *assignmentRepository) CreateAssignment(_ context.Context, a assignment.Assignment) (assignment.Assignment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	c, ok := repo.db.courses[a.CourseID]
	if !ok {
		return assignment.Assignment{}, assignment.ErrNotFound
	}
	a.ID = newID()
	a.ClassID = c.ClassID
	repo.db.assignments[a.ID] = &a
	return a, nil
}

func (repo *assignmentRepository) QueryAssignments(_ context.Context, filter *assignment.QueryFilter) ([]assignment.Assignment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	assignments := make([]assignment.Assignment, 0)
	for _, a := range repo.db.assignments {
		if repo.db.matchAssignment(a, filter) {
			assignments = append(assignments, *a)
		}
	}
	sort.Slice(assignments, func(i, j int) bool {
		if !assignments[i].DueDate.Equal(assignments[j].DueDate) {
			return assignments[i].DueDate.Before(assignments[j].DueDate)
		}
		return assignments[i].ID < assignments[j].ID
	})
	return assignments, nil
}

// matchAssignment requires the read lock.
func (db *DB) matchAssignment(a *assignment.Assignment, filter *assignment.QueryFilter) bool {
	if filter == nil {
		return true
	}
	if filter.CourseIDs != nil && !core.ContainsString(filter.CourseIDs, a.CourseID) {
		return false
	}
	if filter.TeacherID != "" {
		c, ok := db.courses[a.CourseID]
		if !ok || c.TeacherID == nil || *c.TeacherID != filter.TeacherID {
			return false
		}
	}
	if filter.ClassID != "" && (a.ClassID == nil || *a.ClassID != filter.ClassID) {
		return false
	}
	return true
}

func (repo *assignmentRepository) GetAssignment(_ context.Context, id string) (assignment.Assignment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if a, ok := repo.db.assignments[id]; ok {
		return *a, nil
	}
	return assignment.Assignment{}, assignment.ErrNotFound
}

func (repo *assignmentRepository) UpdateAssignment(_ context.Context, a assignment.Assignment) (assignment.Assignment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.assignments[a.ID]
	if !ok {
		return assignment.Assignment{}, assignment.ErrNotFound
	}
	a.CourseID, a.ClassID, a.CreatedAt = orig.CourseID, orig.ClassID, orig.CreatedAt
	repo.db.assignments[a.ID] = &a
	return a, nil
}

func (repo *assignmentRepository) DeleteAssignment(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.assignments[id]; !ok {
		return assignment.ErrNotFound
	}
	repo.db.deleteAssignment(id)
	return nil
}

func (repo *assignmentRepository) HasSubmitted(_ context.Context, studentID, assignmentID string) (bool, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	_, ok := repo.db.submissions[pairKey{studentID, assignmentID}]
	return ok, nil
}

func (repo *assignmentRepository) Submit(_ context.Context, sub assignment.SubmissionStatus) (assignment.SubmissionStatus, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	key := pairKey{sub.StudentID, sub.AssignmentID}
	if _, ok := repo.db.submissions[key]; ok {
		return assignment.SubmissionStatus{}, assignment.ErrAlreadySubmitted
	}
	if _, ok := repo.db.assignments[sub.AssignmentID]; !ok {
		return assignment.SubmissionStatus{}, assignment.ErrNotFound
	}
	sub.ID = newID()
	repo.db.submissions[key] = &sub
	repo.db.addPoints(sub.StudentID, sub.CourseID, sub.PointsEarned, sub.SubmittedAt)
	return sub, nil
}

func (repo *assignmentRepository) QuerySubmissions(_ context.Context, filter assignment.SubmissionFilter) ([]assignment.SubmissionStatus, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	subs := make([]assignment.SubmissionStatus, 0)
	for _, s := range repo.db.submissions {
		switch {
		case filter.AssignmentID != "" && s.AssignmentID != filter.AssignmentID:
		case filter.StudentID != "" && s.StudentID != filter.StudentID:
		case filter.CourseID != "" && s.CourseID != filter.CourseID:
		default:
			subs = append(subs, *s)
		}
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].SubmittedAt.Before(subs[j].SubmittedAt) })
	return subs, nil
}
