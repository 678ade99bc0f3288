package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/assignment"
	"github.com/trezcool/academia/storage/database"
)

const (
	assignmentSelect = `
SELECT id, title, description, due_date, COALESCE(teacher_id::text, '') AS teacher_id, course_id, class_id,
       point_value, created_at, updated_at
FROM assignments`

	submissionSelect = `
SELECT id, student_id, assignment_id, course_id, submitted_at, is_submitted, points_earned
FROM submission_statuses`
)

type (
	assignmentRepository struct {
		db *sqlx.DB
	}

	assignmentRow struct {
		ID          string         `db:"id"`
		Title       string         `db:"title"`
		Description string         `db:"description"`
		DueDate     time.Time      `db:"due_date"`
		TeacherID   string         `db:"teacher_id"`
		CourseID    string         `db:"course_id"`
		ClassID     sql.NullString `db:"class_id"`
		PointValue  int            `db:"point_value"`
		CreatedAt   time.Time      `db:"created_at"`
		UpdatedAt   time.Time      `db:"updated_at"`
	}

	submissionRow struct {
		ID           string    `db:"id"`
		StudentID    string    `db:"student_id"`
		AssignmentID string    `db:"assignment_id"`
		CourseID     string    `db:"course_id"`
		SubmittedAt  time.Time `db:"submitted_at"`
		IsSubmitted  bool      `db:"is_submitted"`
		PointsEarned int       `db:"points_earned"`
	}
)

var _ assignment.Repository = (*assignmentRepository)(nil)

func NewAssignmentRepository(db *sqlx.DB) assignment.Repository {
	return &assignmentRepository{db: db}
}

func (row assignmentRow) toAssignment() assignment.Assignment {
	return assignment.Assignment{
		ID:          row.ID,
		Title:       row.Title,
		Description: row.Description,
		DueDate:     row.DueDate.UTC(),
		TeacherID:   row.TeacherID,
		CourseID:    row.CourseID,
		ClassID:     stringPtr(row.ClassID),
		PointValue:  row.PointValue,
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
}

func (row submissionRow) toSubmission() assignment.SubmissionStatus {
	return assignment.SubmissionStatus{
		ID:           row.ID,
		StudentID:    row.StudentID,
		AssignmentID: row.AssignmentID,
		CourseID:     row.CourseID,
		SubmittedAt:  row.SubmittedAt.UTC(),
		IsSubmitted:  row.IsSubmitted,
		PointsEarned: row.PointsEarned,
	}
}

// CreateAssignment sets the class of the assignment to the class of its course.
func (repo *assignmentRepository) CreateAssignment(ctx context.Context, a assignment.Assignment) (assignment.Assignment, error) {
	a.ID = newID()
	q := `INSERT INTO assignments (id, title, description, due_date, teacher_id, course_id, class_id, point_value,
	                               created_at, updated_at)
	      SELECT $1, $2, $3, $4, NULLIF($5, '')::uuid, c.id, c.class_id, $6, $7, $8
	      FROM courses c WHERE c.id = $9`
	res, err := repo.db.ExecContext(ctx, q, a.ID, a.Title, a.Description, a.DueDate.UTC(), a.TeacherID,
		a.PointValue, a.CreatedAt.UTC(), a.UpdatedAt.UTC(), a.CourseID)
	if err != nil {
		return assignment.Assignment{}, trapNoRowsErr(err, assignment.ErrNotFound, "inserting assignment")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return assignment.Assignment{}, assignment.ErrNotFound
	}
	return repo.GetAssignment(ctx, a.ID)
}

func (repo *assignmentRepository) QueryAssignments(ctx context.Context, filter *assignment.QueryFilter) ([]assignment.Assignment, error) {
	var w where
	if filter != nil {
		if filter.CourseIDs != nil {
			w.add("course_id::text = ANY(?::text[])", textArray(filter.CourseIDs))
		}
		if filter.TeacherID != "" {
			w.add("course_id IN (SELECT id FROM courses WHERE teacher_id::text = ?)", filter.TeacherID)
		}
		if filter.ClassID != "" {
			w.add("class_id::text = ?", filter.ClassID)
		}
	}
	var rows []assignmentRow
	q := query(assignmentSelect + w.String() + " ORDER BY due_date, id")
	if err := repo.db.SelectContext(ctx, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	assignments := make([]assignment.Assignment, 0, len(rows))
	for _, row := range rows {
		assignments = append(assignments, row.toAssignment())
	}
	return assignments, nil
}

func (repo *assignmentRepository) GetAssignment(ctx context.Context, id string) (assignment.Assignment, error) {
	var row assignmentRow
	if err := repo.db.GetContext(ctx, &row, assignmentSelect+" WHERE id = $1", id); err != nil {
		return assignment.Assignment{}, trapNoRowsErr(err, assignment.ErrNotFound, "finding assignment")
	}
	return row.toAssignment(), nil
}

func (repo *assignmentRepository) UpdateAssignment(ctx context.Context, a assignment.Assignment) (assignment.Assignment, error) {
	q := `UPDATE assignments SET title = $2, description = $3, due_date = $4, teacher_id = NULLIF($5, '')::uuid,
	                             point_value = $6, updated_at = $7
	      WHERE id = $1`
	res, err := repo.db.ExecContext(ctx, q, a.ID, a.Title, a.Description, a.DueDate.UTC(), a.TeacherID, a.PointValue, a.UpdatedAt.UTC())
	if err != nil {
		return assignment.Assignment{}, trapNoRowsErr(err, assignment.ErrNotFound, "updating assignment")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return assignment.Assignment{}, assignment.ErrNotFound
	}
	return repo.GetAssignment(ctx, a.ID)
}

// DeleteAssignment relies on the submissions cascading.
func (repo *assignmentRepository) DeleteAssignment(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM assignments WHERE id = $1", id)
	if err != nil {
		return trapNoRowsErr(err, assignment.ErrNotFound, "deleting assignment")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return assignment.ErrNotFound
	}
	return nil
}

func (repo *assignmentRepository) HasSubmitted(ctx context.Context, studentID, assignmentID string) (bool, error) {
	var exists bool
	q := `SELECT EXISTS (SELECT 1 FROM submission_statuses
	                     WHERE student_id::text = $1 AND assignment_id::text = $2)`
	if err := repo.db.GetContext(ctx, &exists, q, studentID, assignmentID); err != nil {
		return false, errors.Wrap(err, "checking submission")
	}
	return exists, nil
}

// Submit inserts the submission and adds its points in one transaction.
// The unique (student, assignment) key makes the first concurrent submission win.
func (repo *assignmentRepository) Submit(ctx context.Context, sub assignment.SubmissionStatus) (assignment.SubmissionStatus, error) {
	sub.ID = newID()
	err := database.WithTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		q := `INSERT INTO submission_statuses (id, student_id, assignment_id, course_id, submitted_at, is_submitted, points_earned)
		      VALUES ($1, $2, $3, $4, $5, $6, $7)`
		_, err := tx.ExecContext(ctx, q, sub.ID, sub.StudentID, sub.AssignmentID, sub.CourseID, sub.SubmittedAt.UTC(),
			sub.IsSubmitted, sub.PointsEarned)
		switch {
		case database.IsUniqueViolation(err, "submission_statuses_student_assignment_key"):
			return assignment.ErrAlreadySubmitted
		case database.IsForeignKeyViolation(err, "submission_statuses_assignment_id_fkey"):
			return assignment.ErrNotFound
		case err != nil:
			return errors.Wrap(err, "inserting submission")
		}
		_, err = addPoints(ctx, tx, sub.StudentID, sub.CourseID, sub.PointsEarned, sub.SubmittedAt)
		return err
	})
	if err != nil {
		return assignment.SubmissionStatus{}, err
	}
	return sub, nil
}

func (repo *assignmentRepository) QuerySubmissions(ctx context.Context, filter assignment.SubmissionFilter) ([]assignment.SubmissionStatus, error) {
	var w where
	if filter.AssignmentID != "" {
		w.add("assignment_id::text = ?", filter.AssignmentID)
	}
	if filter.StudentID != "" {
		w.add("student_id::text = ?", filter.StudentID)
	}
	if filter.CourseID != "" {
		w.add("course_id::text = ?", filter.CourseID)
	}
	var rows []submissionRow
	q := query(submissionSelect + w.String() + " ORDER BY submitted_at")
	if err := repo.db.SelectContext(ctx, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	subs := make([]assignment.SubmissionStatus, 0, len(rows))
	for _, row := range rows {
		subs = append(subs, row.toSubmission())
	}
	return subs, nil
}
