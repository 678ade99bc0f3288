package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/attendance"
)

type attendanceRepository struct {
	db *DB
}

var _ attendance.Repository = (*attendanceRepository)(nil)

func NewAttendanceRepository(db *DB) attendance.Repository {
	return &attendanceRepository{db: db}
}

func (repo *attendanceRepository) RecordSession(_ context.Context, courseID string, studentIDs, presentIDs []string) ([]attendance.Attendance, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	now := time.Now().UTC()
	att := make([]attendance.Attendance, 0, len(studentIDs))
	for _, sid := range studentIDs {
		key := pairKey{sid, courseID}
		a, ok := repo.db.attendance[key]
		if !ok {
			a = &attendance.Attendance{StudentID: sid, CourseID: courseID}
			repo.db.attendance[key] = a
		}
		a.TotalClasses++
		if core.ContainsString(presentIDs, sid) {
			a.AttendedClasses++
		}
		a.UpdatedAt = now
		att = append(att, *a)
	}
	return att, nil
}

func (repo *attendanceRepository) QueryAttendance(_ context.Context, filter attendance.QueryFilter) ([]attendance.Attendance, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	att := make([]attendance.Attendance, 0)
	for k, a := range repo.db.attendance {
		if (filter.StudentID == "" || k.a == filter.StudentID) && (filter.CourseID == "" || k.b == filter.CourseID) {
			att = append(att, *a)
		}
	}
	sort.Slice(att, func(i, j int) bool {
		return att[i].CourseID+att[i].StudentID < att[j].CourseID+att[j].StudentID
	})
	return att, nil
}
