package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/grade"
)

const gradeSelect = `
SELECT id, student_id, course_id, COALESCE(teacher_id::text, '') AS teacher_id, type, value, date, comment,
       created_at, updated_at
FROM grades`

type (
	gradeRepository struct {
		db *sqlx.DB
	}

	gradeRow struct {
		ID        string    `db:"id"`
		StudentID string    `db:"student_id"`
		CourseID  string    `db:"course_id"`
		TeacherID string    `db:"teacher_id"`
		Type      string    `db:"type"`
		Value     int       `db:"value"`
		Date      time.Time `db:"date"`
		Comment   string    `db:"comment"`
		CreatedAt time.Time `db:"created_at"`
		UpdatedAt time.Time `db:"updated_at"`
	}
)

var _ grade.Repository = (*gradeRepository)(nil)

func NewGradeRepository(db *sqlx.DB) grade.Repository {
	return &gradeRepository{db: db}
}

func (row gradeRow) toGrade() grade.Grade {
	return grade.Grade{
		ID:        row.ID,
		StudentID: row.StudentID,
		CourseID:  row.CourseID,
		TeacherID: row.TeacherID,
		Type:      row.Type,
		Value:     row.Value,
		Date:      row.Date.UTC(),
		Comment:   row.Comment,
		CreatedAt: row.CreatedAt.UTC(),
		UpdatedAt: row.UpdatedAt.UTC(),
	}
}

func (repo *gradeRepository) CreateGrade(ctx context.Context, g grade.Grade) (grade.Grade, error) {
	g.ID = newID()
	q := `INSERT INTO grades (id, student_id, course_id, teacher_id, type, value, date, comment, created_at, updated_at)
	      VALUES ($1, $2, $3, NULLIF($4, '')::uuid, $5, $6, $7, $8, $9, $10)`
	_, err := repo.db.ExecContext(ctx, q, g.ID, g.StudentID, g.CourseID, g.TeacherID, g.Type, g.Value, g.Date.UTC(),
		g.Comment, g.CreatedAt.UTC(), g.UpdatedAt.UTC())
	if err != nil {
		return grade.Grade{}, errors.Wrap(err, "inserting grade")
	}
	return repo.GetGrade(ctx, g.ID)
}

func (repo *gradeRepository) QueryGrades(ctx context.Context, filter *grade.QueryFilter) ([]grade.Grade, error) {
	var w where
	if filter != nil {
		if filter.StudentID != "" {
			w.add("student_id::text = ?", filter.StudentID)
		}
		if filter.CourseID != "" {
			w.add("course_id::text = ?", filter.CourseID)
		}
		if filter.Type != "" {
			w.add("type = ?", filter.Type)
		}
	}
	var rows []gradeRow
	q := query(gradeSelect + w.String() + " ORDER BY date, created_at")
	if err := repo.db.SelectContext(ctx, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying grades")
	}
	grades := make([]grade.Grade, 0, len(rows))
	for _, row := range rows {
		grades = append(grades, row.toGrade())
	}
	return grades, nil
}

func (repo *gradeRepository) GetGrade(ctx context.Context, id string) (grade.Grade, error) {
	var row gradeRow
	if err := repo.db.GetContext(ctx, &row, gradeSelect+" WHERE id = $1", id); err != nil {
		return grade.Grade{}, trapNoRowsErr(err, grade.ErrNotFound, "finding grade")
	}
	return row.toGrade(), nil
}

func (repo *gradeRepository) UpdateGrade(ctx context.Context, g grade.Grade) (grade.Grade, error) {
	q := `UPDATE grades SET teacher_id = NULLIF($2, '')::uuid, type = $3, value = $4, date = $5, comment = $6, updated_at = $7
	      WHERE id = $1`
	res, err := repo.db.ExecContext(ctx, q, g.ID, g.TeacherID, g.Type, g.Value, g.Date.UTC(), g.Comment, g.UpdatedAt.UTC())
	if err != nil {
		return grade.Grade{}, trapNoRowsErr(err, grade.ErrNotFound, "updating grade")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return grade.Grade{}, grade.ErrNotFound
	}
	return repo.GetGrade(ctx, g.ID)
}

func (repo *gradeRepository) DeleteGrade(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM grades WHERE id = $1", id)
	if err != nil {
		return trapNoRowsErr(err, grade.ErrNotFound, "deleting grade")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return grade.ErrNotFound
	}
	return nil
}
