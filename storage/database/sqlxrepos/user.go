package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/user"
	"github.com/trezcool/academia/storage/database"
)

const userSelect = `
SELECT u.id, u.username, u.email, u.first_name, u.last_name, u.role, u.class_id, u.student_number,
       u.is_active, u.password_hash, u.created_at, u.updated_at, u.last_login,
       ARRAY(SELECT tb.branch_id::text FROM teacher_branches tb WHERE tb.teacher_id = u.id ORDER BY 1) AS branch_ids,
       ARRAY(SELECT c.id::text FROM courses c WHERE c.teacher_id = u.id
             UNION
             SELECT cs.course_id::text FROM course_students cs WHERE cs.student_id = u.id
             ORDER BY 1) AS course_ids
FROM users u`

type (
	userRepository struct {
		db *sqlx.DB
	}

	userRow struct {
		ID            string         `db:"id"`
		Username      string         `db:"username"`
		Email         string         `db:"email"`
		FirstName     string         `db:"first_name"`
		LastName      string         `db:"last_name"`
		Role          string         `db:"role"`
		ClassID       sql.NullString `db:"class_id"`
		StudentNumber sql.NullString `db:"student_number"`
		IsActive      bool           `db:"is_active"`
		PasswordHash  []byte         `db:"password_hash"`
		CreatedAt     time.Time      `db:"created_at"`
		UpdatedAt     time.Time      `db:"updated_at"`
		LastLogin     sql.NullTime   `db:"last_login"`
		BranchIDs     pq.StringArray `db:"branch_ids"`
		CourseIDs     pq.StringArray `db:"course_ids"`
	}
)

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

func (row userRow) toUser() user.User {
	return user.User{
		ID:            row.ID,
		Username:      row.Username,
		Email:         row.Email,
		FirstName:     row.FirstName,
		LastName:      row.LastName,
		Role:          row.Role,
		ClassID:       stringPtr(row.ClassID),
		StudentNumber: stringPtr(row.StudentNumber),
		IsActive:      row.IsActive,
		PasswordHash:  row.PasswordHash,
		CreatedAt:     row.CreatedAt.UTC(),
		UpdatedAt:     row.UpdatedAt.UTC(),
		LastLogin:     row.LastLogin.Time.UTC(),
		BranchIDs:     stringSlice(row.BranchIDs),
		CourseIDs:     stringSlice(row.CourseIDs),
	}
}

func lastLogin(usr user.User) sql.NullTime {
	return sql.NullTime{Time: usr.LastLogin.UTC(), Valid: !usr.LastLogin.IsZero()}
}

// uniquenessErr maps a unique or foreign key violation to the matching user error.
func uniquenessErr(err error, msg string) error {
	switch {
	case database.IsUniqueViolation(err, "users_username_key"):
		return user.ErrUsernameExists
	case database.IsUniqueViolation(err, "users_email_key"):
		return user.ErrEmailExists
	case database.IsUniqueViolation(err, "users_student_number_key"):
		return user.ErrStudentNumberExists
	case database.IsForeignKeyViolation(err, "users_class_id_fkey"):
		return user.ErrClassNotFound
	case database.IsForeignKeyViolation(err, "teacher_branches_branch_id_fkey"):
		return user.ErrBranchNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo *userRepository) CheckUniqueness(ctx context.Context, username, email string, studentNumber *string, excludedIDs ...string) error {
	var rows []struct {
		Username      string         `db:"username"`
		Email         string         `db:"email"`
		StudentNumber sql.NullString `db:"student_number"`
	}
	var sn interface{}
	if studentNumber != nil {
		sn = *studentNumber
	}
	q := `SELECT username, email, student_number FROM users
	      WHERE ((username <> '' AND username = $1) OR (email <> '' AND email = $2) OR student_number = $3)
	        AND NOT (id::text = ANY($4::text[]))`
	if err := repo.db.SelectContext(ctx, &rows, q, username, email, sn, textArray(excludedIDs)); err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	for _, r := range rows {
		switch {
		case username != "" && r.Username == username:
			return user.ErrUsernameExists
		case email != "" && r.Email == email:
			return user.ErrEmailExists
		case studentNumber != nil && r.StudentNumber.String == *studentNumber:
			return user.ErrStudentNumberExists
		}
	}
	return nil
}

func (repo *userRepository) get(ctx context.Context, q sqlx.QueryerContext, id string) (user.User, error) {
	if !isUUID(id) {
		return user.User{}, user.ErrNotFound
	}
	var row userRow
	if err := sqlx.GetContext(ctx, q, &row, userSelect+" WHERE u.id = $1", id); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "finding user by ID")
	}
	return row.toUser(), nil
}

func setTeacherBranches(ctx context.Context, tx *sqlx.Tx, teacherID string, branchIDs []string) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM teacher_branches WHERE teacher_id = $1", teacherID); err != nil {
		return errors.Wrap(err, "clearing teacher branches")
	}
	if len(branchIDs) == 0 {
		return nil
	}
	q := `INSERT INTO teacher_branches (teacher_id, branch_id)
	      SELECT $1::uuid, b::uuid FROM UNNEST($2::text[]) b`
	if _, err := tx.ExecContext(ctx, q, teacherID, textArray(branchIDs)); err != nil {
		return uniquenessErr(err, "setting teacher branches")
	}
	return nil
}

// enrollInClassCourses adds the student to the courses of classID.
func enrollInClassCourses(ctx context.Context, tx *sqlx.Tx, studentID string, classID *string) error {
	if classID == nil {
		return nil
	}
	q := `INSERT INTO course_students (course_id, student_id)
	      SELECT id, $1::uuid FROM courses WHERE class_id = $2
	      ON CONFLICT DO NOTHING`
	_, err := tx.ExecContext(ctx, q, studentID, *classID)
	return errors.Wrap(err, "enrolling student in class courses")
}

// unenrollFromClassCourses removes the student from the courses of classID.
func unenrollFromClassCourses(ctx context.Context, tx *sqlx.Tx, studentID string, classID *string) error {
	if classID == nil {
		return nil
	}
	q := `DELETE FROM course_students
	      WHERE student_id = $1 AND course_id IN (SELECT id FROM courses WHERE class_id = $2)`
	_, err := tx.ExecContext(ctx, q, studentID, *classID)
	return errors.Wrap(err, "unenrolling student from class courses")
}

func moveStudent(ctx context.Context, tx *sqlx.Tx, studentID string, oldClassID, newClassID *string) error {
	if ptrEq(oldClassID, newClassID) {
		return nil
	}
	if err := unenrollFromClassCourses(ctx, tx, studentID, oldClassID); err != nil {
		return err
	}
	return enrollInClassCourses(ctx, tx, studentID, newClassID)
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = newID()
	err := database.WithTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		q := `INSERT INTO users (id, username, email, first_name, last_name, role, class_id, student_number,
		                         is_active, password_hash, created_at, updated_at, last_login)
		      VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
		_, err := tx.ExecContext(ctx, q, usr.ID, usr.Username, usr.Email, usr.FirstName, usr.LastName, usr.Role,
			nullString(usr.ClassID), nullString(usr.StudentNumber), usr.IsActive, usr.PasswordHash,
			usr.CreatedAt.UTC(), usr.UpdatedAt.UTC(), lastLogin(usr))
		if err != nil {
			return uniquenessErr(err, "inserting user")
		}
		if err = setTeacherBranches(ctx, tx, usr.ID, usr.BranchIDs); err != nil {
			return err
		}
		return enrollInClassCourses(ctx, tx, usr.ID, usr.ClassID)
	})
	if err != nil {
		return user.User{}, err
	}
	return repo.get(ctx, repo.db, usr.ID)
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering ...core.DBOrdering) ([]user.User, error) {
	var w where
	if filter != nil {
		if filter.Search != "" {
			val := searchPattern(filter.Search)
			w.add("(u.first_name ILIKE ? OR u.last_name ILIKE ? OR u.username ILIKE ? OR u.email ILIKE ? OR u.student_number ILIKE ?)",
				val, val, val, val, val)
		}
		if len(filter.Roles) > 0 {
			w.add("u.role = ANY(?::text[])", textArray(filter.Roles))
		}
		if filter.ClassID != "" {
			if !isUUID(filter.ClassID) {
				return []user.User{}, nil
			}
			w.add("u.class_id = ?", filter.ClassID)
		}
		if filter.IsActive != nil {
			w.add("u.is_active = ?", *filter.IsActive)
		}
		if !filter.CreatedFrom.IsZero() {
			w.add("u.created_at >= ?", filter.CreatedFrom.UTC())
		}
		if !filter.CreatedTo.IsZero() {
			w.add("u.created_at <= ?", filter.CreatedTo.UTC())
		}
	}

	// ordering fields are whitelisted column names (core.CleanOrderings)
	orderList := make([]string, 0, len(ordering)+2)
	for _, ord := range ordering {
		orderList = append(orderList, "u."+ord.String())
	}
	orderList = append(orderList, "u.created_at ASC", "u.id ASC")

	var rows []userRow
	q := query(userSelect + w.String() + " ORDER BY " + strings.Join(orderList, ", "))
	if err := repo.db.SelectContext(ctx, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.toUser())
	}
	return users, nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	if filter.ID != "" {
		return repo.get(ctx, repo.db, filter.ID)
	}

	var (
		cond string
		arg  string
	)
	switch {
	case filter.Username != "":
		cond, arg = "u.username = $1", filter.Username
	case filter.Email != "":
		cond, arg = "u.email = $1", filter.Email
	case filter.UsernameOrEmail != "":
		cond, arg = "(u.username = $1 OR u.email = $1)", filter.UsernameOrEmail
	default:
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	if err := repo.db.GetContext(ctx, &row, userSelect+" WHERE "+cond+" LIMIT 1", arg); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "finding user")
	}
	return row.toUser(), nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	err := database.WithTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		orig, err := repo.get(ctx, tx, usr.ID)
		if err != nil {
			return err
		}

		q := `UPDATE users SET username = $2, email = $3, first_name = $4, last_name = $5, role = $6, class_id = $7,
		                       student_number = $8, is_active = $9, password_hash = $10, updated_at = $11, last_login = $12
		      WHERE id = $1`
		_, err = tx.ExecContext(ctx, q, usr.ID, usr.Username, usr.Email, usr.FirstName, usr.LastName, usr.Role,
			nullString(usr.ClassID), nullString(usr.StudentNumber), usr.IsActive, usr.PasswordHash,
			usr.UpdatedAt.UTC(), lastLogin(usr))
		if err != nil {
			return uniquenessErr(err, "updating user")
		}
		if err = setTeacherBranches(ctx, tx, usr.ID, usr.BranchIDs); err != nil {
			return err
		}

		if orig.IsStudent() && !usr.IsStudent() {
			if _, err = tx.ExecContext(ctx, "DELETE FROM course_students WHERE student_id = $1", usr.ID); err != nil {
				return errors.Wrap(err, "unenrolling former student")
			}
		} else if err = moveStudent(ctx, tx, usr.ID, orig.ClassID, usr.ClassID); err != nil {
			return err
		}
		if orig.IsTeacher() && !usr.IsTeacher() {
			return detachTeacher(ctx, tx, usr.ID)
		}
		return nil
	})
	if err != nil {
		return user.User{}, err
	}
	return repo.get(ctx, repo.db, usr.ID)
}

// detachTeacher clears the references to a teacher that the foreign keys keep on a role change.
func detachTeacher(ctx context.Context, tx *sqlx.Tx, id string) error {
	stmts := []string{
		"UPDATE classes SET class_teacher_id = NULL WHERE class_teacher_id = $1",
		"DELETE FROM class_branch_teachers WHERE teacher_id = $1",
		"UPDATE courses SET teacher_id = NULL WHERE teacher_id = $1",
		"UPDATE assignments SET teacher_id = NULL WHERE teacher_id = $1",
		"UPDATE grades SET teacher_id = NULL WHERE teacher_id = $1",
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return errors.Wrap(err, "detaching teacher")
		}
	}
	return nil
}

func (repo *userRepository) SetStudentClass(ctx context.Context, studentID string, classID *string) (user.User, error) {
	err := database.WithTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		var current sql.NullString
		err := tx.GetContext(ctx, &current, "SELECT class_id FROM users WHERE id = $1 FOR UPDATE", studentID)
		if err != nil {
			return trapNoRowsErr(err, user.ErrNotFound, "locking student")
		}
		q := "UPDATE users SET class_id = $2, updated_at = $3 WHERE id = $1"
		if _, err = tx.ExecContext(ctx, q, studentID, nullString(classID), time.Now().UTC()); err != nil {
			return uniquenessErr(err, "setting student class")
		}
		return moveStudent(ctx, tx, studentID, stringPtr(current), classID)
	})
	if err != nil {
		return user.User{}, err
	}
	return repo.get(ctx, repo.db, studentID)
}

func (repo *userRepository) SetLastLogin(ctx context.Context, id string, at time.Time) (user.User, error) {
	res, err := repo.db.ExecContext(ctx, "UPDATE users SET last_login = $2 WHERE id = $1", id, at.UTC())
	if err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "setting last login")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return repo.get(ctx, repo.db, id)
}

// DeleteUsers relies on the foreign keys: owned rows cascade, teacher references are set to NULL.
func (repo *userRepository) DeleteUsers(ctx context.Context, ids ...string) error {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if isUUID(id) {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return nil
	}
	if _, err := repo.db.ExecContext(ctx, "DELETE FROM users WHERE id::text = ANY($1::text[])", textArray(valid)); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return nil
}
