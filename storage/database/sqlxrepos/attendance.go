package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/attendance"
)

type (
	attendanceRepository struct {
		db *sqlx.DB
	}

	attendanceRow struct {
		StudentID       string    `db:"student_id"`
		CourseID        string    `db:"course_id"`
		TotalClasses    int       `db:"total_classes"`
		AttendedClasses int       `db:"attended_classes"`
		UpdatedAt       time.Time `db:"updated_at"`
	}
)

var _ attendance.Repository = (*attendanceRepository)(nil)

func NewAttendanceRepository(db *sqlx.DB) attendance.Repository {
	return &attendanceRepository{db: db}
}

func (row attendanceRow) toAttendance() attendance.Attendance {
	return attendance.Attendance{
		StudentID:       row.StudentID,
		CourseID:        row.CourseID,
		TotalClasses:    row.TotalClasses,
		AttendedClasses: row.AttendedClasses,
		UpdatedAt:       row.UpdatedAt.UTC(),
	}
}

// RecordSession upserts one row per student in a single statement.
func (repo *attendanceRepository) RecordSession(ctx context.Context, courseID string, studentIDs, presentIDs []string) ([]attendance.Attendance, error) {
	q := `
INSERT INTO attendances (student_id, course_id, total_classes, attended_classes, updated_at)
SELECT s::uuid, $1::uuid, 1, CASE WHEN s = ANY($3::text[]) THEN 1 ELSE 0 END, $4
FROM UNNEST($2::text[]) s
ON CONFLICT (student_id, course_id)
DO UPDATE SET total_classes    = attendances.total_classes + 1,
              attended_classes = attendances.attended_classes + EXCLUDED.attended_classes,
              updated_at       = EXCLUDED.updated_at
RETURNING student_id, course_id, total_classes, attended_classes, updated_at`

	var rows []attendanceRow
	err := repo.db.SelectContext(ctx, &rows, q, courseID, textArray(studentIDs), textArray(presentIDs), time.Now().UTC())
	if err != nil {
		return nil, errors.Wrap(err, "recording attendance")
	}
	att := make([]attendance.Attendance, 0, len(rows))
	for _, row := range rows {
		att = append(att, row.toAttendance())
	}
	return att, nil
}

func (repo *attendanceRepository) QueryAttendance(ctx context.Context, filter attendance.QueryFilter) ([]attendance.Attendance, error) {
	var w where
	if filter.StudentID != "" {
		w.add("student_id::text = ?", filter.StudentID)
	}
	if filter.CourseID != "" {
		w.add("course_id::text = ?", filter.CourseID)
	}
	var rows []attendanceRow
	q := query("SELECT student_id, course_id, total_classes, attended_classes, updated_at FROM attendances" + w.String() +
		" ORDER BY course_id, student_id")
	if err := repo.db.SelectContext(ctx, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying attendance")
	}
	att := make([]attendance.Attendance, 0, len(rows))
	for _, row := range rows {
		att = append(att, row.toAttendance())
	}
	return att, nil
}
