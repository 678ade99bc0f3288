package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/class"
	"github.com/trezcool/academia/storage/database"
)

const classSelect = `
SELECT c.id, c.name, c.academic_year, c.class_teacher_id, c.is_active, c.created_at, c.updated_at,
       ARRAY(SELECT bt.teacher_id::text FROM class_branch_teachers bt WHERE bt.class_id = c.id ORDER BY 1) AS branch_teacher_ids,
       ARRAY(SELECT u.id::text FROM users u WHERE u.class_id = c.id ORDER BY 1) AS student_ids,
       ARRAY(SELECT crs.id::text FROM courses crs WHERE crs.class_id = c.id ORDER BY 1) AS course_ids
FROM classes c`

type (
	classRepository struct {
		db *sqlx.DB
	}

	classRow struct {
		ID               string         `db:"id"`
		Name             string         `db:"name"`
		AcademicYear     string         `db:"academic_year"`
		ClassTeacherID   sql.NullString `db:"class_teacher_id"`
		IsActive         bool           `db:"is_active"`
		CreatedAt        time.Time      `db:"created_at"`
		UpdatedAt        time.Time      `db:"updated_at"`
		BranchTeacherIDs pq.StringArray `db:"branch_teacher_ids"`
		StudentIDs       pq.StringArray `db:"student_ids"`
		CourseIDs        pq.StringArray `db:"course_ids"`
	}
)

var _ class.Repository = (*classRepository)(nil)

func NewClassRepository(db *sqlx.DB) class.Repository {
	return &classRepository{db: db}
}

func (row classRow) toClass() class.Class {
	return class.Class{
		ID:               row.ID,
		Name:             row.Name,
		AcademicYear:     row.AcademicYear,
		ClassTeacherID:   stringPtr(row.ClassTeacherID),
		BranchTeacherIDs: stringSlice(row.BranchTeacherIDs),
		StudentIDs:       stringSlice(row.StudentIDs),
		CourseIDs:        stringSlice(row.CourseIDs),
		IsActive:         row.IsActive,
		CreatedAt:        row.CreatedAt.UTC(),
		UpdatedAt:        row.UpdatedAt.UTC(),
	}
}

func classErr(err error, msg string) error {
	if database.IsUniqueViolation(err, "classes_name_academic_year_key") {
		return class.ErrNameYearExists
	}
	return errors.Wrap(err, msg)
}

func (repo *classRepository) CheckUniqueness(ctx context.Context, name, academicYear string, excludedIDs ...string) error {
	var exists bool
	q := `SELECT EXISTS (SELECT 1 FROM classes
	                     WHERE lower(name) = lower($1) AND academic_year = $2 AND NOT (id::text = ANY($3::text[])))`
	if err := repo.db.GetContext(ctx, &exists, q, name, academicYear, textArray(excludedIDs)); err != nil {
		return errors.Wrap(err, "checking class uniqueness")
	}
	if exists {
		return class.ErrNameYearExists
	}
	return nil
}

func setBranchTeachers(ctx context.Context, tx *sqlx.Tx, classID string, teacherIDs []string) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM class_branch_teachers WHERE class_id = $1", classID); err != nil {
		return errors.Wrap(err, "clearing branch teachers")
	}
	if len(teacherIDs) == 0 {
		return nil
	}
	q := `INSERT INTO class_branch_teachers (class_id, teacher_id)
	      SELECT $1::uuid, t::uuid FROM UNNEST($2::text[]) t`
	_, err := tx.ExecContext(ctx, q, classID, textArray(teacherIDs))
	return errors.Wrap(err, "setting branch teachers")
}

func (repo *classRepository) CreateClass(ctx context.Context, c class.Class) (class.Class, error) {
	c.ID = newID()
	err := database.WithTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		q := `INSERT INTO classes (id, name, academic_year, class_teacher_id, is_active, created_at, updated_at)
		      VALUES ($1, $2, $3, $4, $5, $6, $7)`
		_, err := tx.ExecContext(ctx, q, c.ID, c.Name, c.AcademicYear, nullString(c.ClassTeacherID), c.IsActive,
			c.CreatedAt.UTC(), c.UpdatedAt.UTC())
		if err != nil {
			return classErr(err, "inserting class")
		}
		return setBranchTeachers(ctx, tx, c.ID, c.BranchTeacherIDs)
	})
	if err != nil {
		return class.Class{}, err
	}
	return repo.GetClass(ctx, c.ID)
}

func (repo *classRepository) QueryClasses(ctx context.Context, filter *class.QueryFilter) ([]class.Class, error) {
	var w where
	if filter != nil {
		if filter.Search != "" {
			w.add("c.name ILIKE ?", searchPattern(filter.Search))
		}
		if filter.AcademicYear != "" {
			w.add("c.academic_year = ?", filter.AcademicYear)
		}
		if filter.TeacherID != "" {
			w.add(`(c.class_teacher_id::text = ? OR EXISTS (
			           SELECT 1 FROM class_branch_teachers bt WHERE bt.class_id = c.id AND bt.teacher_id::text = ?))`,
				filter.TeacherID, filter.TeacherID)
		}
		if filter.IsActive != nil {
			w.add("c.is_active = ?", *filter.IsActive)
		}
	}

	var rows []classRow
	q := query(classSelect + w.String() + " ORDER BY c.academic_year DESC, c.name ASC")
	if err := repo.db.SelectContext(ctx, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying classes")
	}
	classes := make([]class.Class, 0, len(rows))
	for _, row := range rows {
		classes = append(classes, row.toClass())
	}
	return classes, nil
}

func (repo *classRepository) GetClass(ctx context.Context, id string) (class.Class, error) {
	var row classRow
	if err := repo.db.GetContext(ctx, &row, classSelect+" WHERE c.id = $1", id); err != nil {
		return class.Class{}, trapNoRowsErr(err, class.ErrNotFound, "finding class")
	}
	return row.toClass(), nil
}

func (repo *classRepository) UpdateClass(ctx context.Context, c class.Class) (class.Class, error) {
	err := database.WithTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		q := `UPDATE classes SET name = $2, academic_year = $3, class_teacher_id = $4, is_active = $5, updated_at = $6
		      WHERE id = $1`
		res, err := tx.ExecContext(ctx, q, c.ID, c.Name, c.AcademicYear, nullString(c.ClassTeacherID), c.IsActive, c.UpdatedAt.UTC())
		if err != nil {
			return classErr(err, "updating class")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return class.ErrNotFound
		}
		return setBranchTeachers(ctx, tx, c.ID, c.BranchTeacherIDs)
	})
	if err != nil {
		return class.Class{}, err
	}
	return repo.GetClass(ctx, c.ID)
}

// DeleteClass relies on users, courses and assignments class_id being set to NULL.
func (repo *classRepository) DeleteClass(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM classes WHERE id = $1", id)
	if err != nil {
		return trapNoRowsErr(err, class.ErrNotFound, "deleting class")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return class.ErrNotFound
	}
	return nil
}
