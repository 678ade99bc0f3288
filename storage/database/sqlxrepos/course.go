package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/user"
	"github.com/trezcool/academia/storage/database"
)

const courseSelect = `
SELECT c.id, c.name, c.code, c.description, c.teacher_id, c.class_id, c.branch_id, c.created_at, c.updated_at,
       ARRAY(SELECT cs.student_id::text FROM course_students cs WHERE cs.course_id = c.id ORDER BY 1) AS student_ids
FROM courses c`

type (
	courseRepository struct {
		db *sqlx.DB
	}

	courseRow struct {
		ID          string         `db:"id"`
		Name        string         `db:"name"`
		Code        string         `db:"code"`
		Description string         `db:"description"`
		TeacherID   sql.NullString `db:"teacher_id"`
		ClassID     sql.NullString `db:"class_id"`
		BranchID    sql.NullString `db:"branch_id"`
		CreatedAt   time.Time      `db:"created_at"`
		UpdatedAt   time.Time      `db:"updated_at"`
		StudentIDs  pq.StringArray `db:"student_ids"`
	}
)

var _ course.Repository = (*courseRepository)(nil)

func NewCourseRepository(db *sqlx.DB) course.Repository {
	return &courseRepository{db: db}
}

func (row courseRow) toCourse() course.Course {
	return course.Course{
		ID:          row.ID,
		Name:        row.Name,
		Code:        row.Code,
		Description: row.Description,
		TeacherID:   stringPtr(row.TeacherID),
		ClassID:     stringPtr(row.ClassID),
		BranchID:    stringPtr(row.BranchID),
		StudentIDs:  stringSlice(row.StudentIDs),
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
}

func courseErr(err error, msg string) error {
	if database.IsUniqueViolation(err, "courses_code_key") {
		return course.ErrCodeExists
	}
	return errors.Wrap(err, msg)
}

func (repo *courseRepository) CheckCodeUniqueness(ctx context.Context, code string, excludedIDs ...string) error {
	var exists bool
	q := "SELECT EXISTS (SELECT 1 FROM courses WHERE upper(code) = upper($1) AND NOT (id::text = ANY($2::text[])))"
	if err := repo.db.GetContext(ctx, &exists, q, code, textArray(excludedIDs)); err != nil {
		return errors.Wrap(err, "checking course code uniqueness")
	}
	if exists {
		return course.ErrCodeExists
	}
	return nil
}

func (repo *courseRepository) get(ctx context.Context, q sqlx.QueryerContext, id string) (course.Course, error) {
	var row courseRow
	if err := sqlx.GetContext(ctx, q, &row, courseSelect+" WHERE c.id = $1", id); err != nil {
		return course.Course{}, trapNoRowsErr(err, course.ErrNotFound, "finding course")
	}
	return row.toCourse(), nil
}

// enrollClass enrols the students of classID in the course.
func enrollClass(ctx context.Context, tx *sqlx.Tx, courseID string, classID *string) error {
	if classID == nil {
		return nil
	}
	q := `INSERT INTO course_students (course_id, student_id)
	      SELECT $1::uuid, id FROM users WHERE class_id = $2 AND role = 'student'
	      ON CONFLICT DO NOTHING`
	_, err := tx.ExecContext(ctx, q, courseID, *classID)
	return errors.Wrap(err, "enrolling class students")
}

func (repo *courseRepository) CreateCourse(ctx context.Context, c course.Course) (course.Course, error) {
	c.ID = newID()
	err := database.WithTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		q := `INSERT INTO courses (id, name, code, description, teacher_id, class_id, branch_id, created_at, updated_at)
		      VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
		_, err := tx.ExecContext(ctx, q, c.ID, c.Name, c.Code, c.Description, nullString(c.TeacherID),
			nullString(c.ClassID), nullString(c.BranchID), c.CreatedAt.UTC(), c.UpdatedAt.UTC())
		if err != nil {
			return courseErr(err, "inserting course")
		}
		return enrollClass(ctx, tx, c.ID, c.ClassID)
	})
	if err != nil {
		return course.Course{}, err
	}
	return repo.get(ctx, repo.db, c.ID)
}

func (repo *courseRepository) QueryCourses(ctx context.Context, filter *course.QueryFilter) ([]course.Course, error) {
	var w where
	if filter != nil {
		if filter.Search != "" {
			val := searchPattern(filter.Search)
			w.add("(c.name ILIKE ? OR c.code ILIKE ?)", val, val)
		}
		if filter.TeacherID != "" {
			w.add("c.teacher_id::text = ?", filter.TeacherID)
		}
		if filter.ClassID != "" {
			w.add("c.class_id::text = ?", filter.ClassID)
		}
		if filter.BranchID != "" {
			w.add("c.branch_id::text = ?", filter.BranchID)
		}
		if filter.StudentID != "" {
			w.add("EXISTS (SELECT 1 FROM course_students cs WHERE cs.course_id = c.id AND cs.student_id::text = ?)", filter.StudentID)
		}
	}

	var rows []courseRow
	q := query(courseSelect + w.String() + " ORDER BY c.code")
	if err := repo.db.SelectContext(ctx, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	courses := make([]course.Course, 0, len(rows))
	for _, row := range rows {
		courses = append(courses, row.toCourse())
	}
	return courses, nil
}

func (repo *courseRepository) GetCourse(ctx context.Context, id string) (course.Course, error) {
	return repo.get(ctx, repo.db, id)
}

// UpdateCourse moves the enrolment of the class students and the class of the assignments
// along with the course class.
func (repo *courseRepository) UpdateCourse(ctx context.Context, c course.Course) (course.Course, error) {
	err := database.WithTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		var current sql.NullString
		err := tx.GetContext(ctx, &current, "SELECT class_id FROM courses WHERE id = $1 FOR UPDATE", c.ID)
		if err != nil {
			return trapNoRowsErr(err, course.ErrNotFound, "locking course")
		}

		q := `UPDATE courses SET name = $2, code = $3, description = $4, teacher_id = $5, class_id = $6,
		                         branch_id = $7, updated_at = $8
		      WHERE id = $1`
		_, err = tx.ExecContext(ctx, q, c.ID, c.Name, c.Code, c.Description, nullString(c.TeacherID),
			nullString(c.ClassID), nullString(c.BranchID), c.UpdatedAt.UTC())
		if err != nil {
			return courseErr(err, "updating course")
		}

		oldClassID := stringPtr(current)
		if ptrEq(oldClassID, c.ClassID) {
			return nil
		}
		if oldClassID != nil {
			q = `DELETE FROM course_students
			     WHERE course_id = $1 AND student_id IN (SELECT id FROM users WHERE class_id = $2 AND role = 'student')`
			if _, err = tx.ExecContext(ctx, q, c.ID, *oldClassID); err != nil {
				return errors.Wrap(err, "unenrolling former class")
			}
		}
		if err = enrollClass(ctx, tx, c.ID, c.ClassID); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, "UPDATE assignments SET class_id = $2 WHERE course_id = $1", c.ID, nullString(c.ClassID))
		return errors.Wrap(err, "moving course assignments")
	})
	if err != nil {
		return course.Course{}, err
	}
	return repo.get(ctx, repo.db, c.ID)
}

// DeleteCourse relies on the cascade of the course rows (enrolments, assignments, grades, points, attendance).
func (repo *courseRepository) DeleteCourse(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM courses WHERE id = $1", id)
	if err != nil {
		return trapNoRowsErr(err, course.ErrNotFound, "deleting course")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return course.ErrNotFound
	}
	return nil
}

func (repo *courseRepository) EnrollStudents(ctx context.Context, id string, studentIDs ...string) (course.Course, error) {
	q := `INSERT INTO course_students (course_id, student_id)
	      SELECT $1::uuid, s::uuid FROM UNNEST($2::text[]) s
	      ON CONFLICT DO NOTHING`
	if _, err := repo.db.ExecContext(ctx, q, id, textArray(studentIDs)); err != nil {
		switch {
		case database.IsForeignKeyViolation(err, "course_students_course_id_fkey"):
			return course.Course{}, course.ErrNotFound
		case database.IsForeignKeyViolation(err, "course_students_student_id_fkey"):
			return course.Course{}, user.ErrNotFound
		}
		return course.Course{}, trapNoRowsErr(err, course.ErrNotFound, "enrolling students")
	}
	return repo.get(ctx, repo.db, id)
}

func (repo *courseRepository) UnenrollStudents(ctx context.Context, id string, studentIDs ...string) (course.Course, error) {
	q := "DELETE FROM course_students WHERE course_id = $1 AND student_id::text = ANY($2::text[])"
	if _, err := repo.db.ExecContext(ctx, q, id, textArray(studentIDs)); err != nil {
		return course.Course{}, trapNoRowsErr(err, course.ErrNotFound, "unenrolling students")
	}
	return repo.get(ctx, repo.db, id)
}
