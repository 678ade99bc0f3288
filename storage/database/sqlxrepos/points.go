package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/points"
)

// pointsUpsert adds $3 to the (student, course) points, flooring the total at 0.
const pointsUpsert = `
INSERT INTO student_points (student_id, course_id, points, updated_at)
VALUES ($1, $2, GREATEST($3::integer, 0), $4)
ON CONFLICT (student_id, course_id)
DO UPDATE SET points = GREATEST(student_points.points + $3::integer, 0), updated_at = $4
RETURNING student_id, course_id, points, updated_at`

type (
	pointsRepository struct {
		db *sqlx.DB
	}

	pointRow struct {
		StudentID string    `db:"student_id"`
		CourseID  string    `db:"course_id"`
		Points    int       `db:"points"`
		UpdatedAt time.Time `db:"updated_at"`
	}
)

var _ points.Repository = (*pointsRepository)(nil)

func NewPointsRepository(db *sqlx.DB) points.Repository {
	return &pointsRepository{db: db}
}

func (row pointRow) toStudentPoint() points.StudentPoint {
	return points.StudentPoint{
		StudentID: row.StudentID,
		CourseID:  row.CourseID,
		Points:    row.Points,
		UpdatedAt: row.UpdatedAt.UTC(),
	}
}

func addPoints(ctx context.Context, q sqlx.QueryerContext, studentID, courseID string, delta int, at time.Time) (points.StudentPoint, error) {
	var row pointRow
	if err := sqlx.GetContext(ctx, q, &row, pointsUpsert, studentID, courseID, delta, at.UTC()); err != nil {
		return points.StudentPoint{}, errors.Wrap(err, "adding points")
	}
	return row.toStudentPoint(), nil
}

func (repo *pointsRepository) AddPoints(ctx context.Context, studentID, courseID string, delta int) (points.StudentPoint, error) {
	return addPoints(ctx, repo.db, studentID, courseID, delta, time.Now())
}

func (repo *pointsRepository) QueryPoints(ctx context.Context, filter points.QueryFilter) ([]points.StudentPoint, error) {
	var w where
	if filter.StudentID != "" {
		w.add("student_id::text = ?", filter.StudentID)
	}
	if filter.CourseID != "" {
		w.add("course_id::text = ?", filter.CourseID)
	}
	var rows []pointRow
	q := query("SELECT student_id, course_id, points, updated_at FROM student_points" + w.String() +
		" ORDER BY points DESC, student_id, course_id")
	if err := repo.db.SelectContext(ctx, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying points")
	}
	pts := make([]points.StudentPoint, 0, len(rows))
	for _, row := range rows {
		pts = append(pts, row.toStudentPoint())
	}
	return pts, nil
}
