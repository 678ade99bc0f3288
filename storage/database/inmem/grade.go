package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/academia/core/grade"
)

type gradeRepository struct {
	db *DB
}

var _ grade.Repository = (*gradeRepository)(nil)

func NewGradeRepository(db *DB) grade.Repository {
	return &gradeRepository{db: db}
}

func (repo *gradeRepository) CreateGrade(_ context.Context, g grade.Grade) (grade.Grade, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	g.ID = newID()
	repo.db.grades[g.ID] = &g
	return g, nil
}

func (repo *gradeRepository) QueryGrades(_ context.Context, filter *grade.QueryFilter) ([]grade.Grade, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	grades := make([]grade.Grade, 0)
	for _, g := range repo.db.grades {
		if filter != nil {
			switch {
			case filter.StudentID != "" && g.StudentID != filter.StudentID:
				continue
			case filter.CourseID != "" && g.CourseID != filter.CourseID:
				continue
			case filter.Type != "" && g.Type != filter.Type:
				continue
			}
		}
		grades = append(grades, *g)
	}
	sort.Slice(grades, func(i, j int) bool {
		if !grades[i].Date.Equal(grades[j].Date) {
			return grades[i].Date.Before(grades[j].Date)
		}
		return grades[i].CreatedAt.Before(grades[j].CreatedAt)
	})
	return grades, nil
}

func (repo *gradeRepository) GetGrade(_ context.Context, id string) (grade.Grade, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if g, ok := repo.db.grades[id]; ok {
		return *g, nil
	}
	return grade.Grade{}, grade.ErrNotFound
}

func (repo *gradeRepository) UpdateGrade(_ context.Context, g grade.Grade) (grade.Grade, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.grades[g.ID]
	if !ok {
		return grade.Grade{}, grade.ErrNotFound
	}
	g.StudentID, g.CourseID, g.CreatedAt = orig.StudentID, orig.CourseID, orig.CreatedAt
	repo.db.grades[g.ID] = &g
	return g, nil
}

func (repo *gradeRepository) DeleteGrade(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.grades[id]; !ok {
		return grade.ErrNotFound
	}
	delete(repo.db.grades, id)
	return nil
}
