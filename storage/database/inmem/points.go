package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/academia/core/points"
)

type pointsRepository struct {
	db *DB
}

var _ points.Repository = (*pointsRepository)(nil)

func NewPointsRepository(db *DB) points.Repository {
	return &pointsRepository{db: db}
}

// addPoints requires the write lock.
func (db *DB) addPoints(studentID, courseID string, delta int, at time.Time) points.StudentPoint {
	key := pairKey{studentID, courseID}
	pt, ok := db.points[key]
	if !ok {
		pt = &points.StudentPoint{StudentID: studentID, CourseID: courseID}
		db.points[key] = pt
	}
	pt.Points = points.Apply(pt.Points, delta)
	pt.UpdatedAt = at
	return *pt
}

func (repo *pointsRepository) AddPoints(_ context.Context, studentID, courseID string, delta int) (points.StudentPoint, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	return repo.db.addPoints(studentID, courseID, delta, time.Now().UTC()), nil
}

func (repo *pointsRepository) QueryPoints(_ context.Context, filter points.QueryFilter) ([]points.StudentPoint, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	pts := make([]points.StudentPoint, 0)
	for k, pt := range repo.db.points {
		if (filter.StudentID == "" || k.a == filter.StudentID) && (filter.CourseID == "" || k.b == filter.CourseID) {
			pts = append(pts, *pt)
		}
	}
	sort.Slice(pts, func(i, j int) bool {
		if pts[i].Points != pts[j].Points {
			return pts[i].Points > pts[j].Points
		}
		return pts[i].StudentID+pts[i].CourseID < pts[j].StudentID+pts[j].CourseID
	})
	return pts, nil
}
