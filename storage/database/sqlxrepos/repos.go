// Package sqlxrepos implements the domain repositories on Postgres with sqlx.
// Multi-table writes run in a single transaction.
package sqlxrepos

import (
	"database/sql"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/assignment"
	"github.com/trezcool/academia/core/attendance"
	"github.com/trezcool/academia/core/badge"
	"github.com/trezcool/academia/core/branch"
	"github.com/trezcool/academia/core/class"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/grade"
	"github.com/trezcool/academia/core/message"
	"github.com/trezcool/academia/core/points"
	"github.com/trezcool/academia/core/user"
)

const invalidTextRepresentation = "22P02"

// Repositories bundles every repository backed by db.
type Repositories struct {
	Users       user.Repository
	Branches    branch.Repository
	Classes     class.Repository
	Courses     course.Repository
	Assignments assignment.Repository
	Grades      grade.Repository
	Points      points.Repository
	Attendance  attendance.Repository
	Messages    message.Repository
	Badges      badge.Repository
}

func New(db *sqlx.DB) Repositories {
	return Repositories{
		Users:       NewUserRepository(db),
		Branches:    NewBranchRepository(db),
		Classes:     NewClassRepository(db),
		Courses:     NewCourseRepository(db),
		Assignments: NewAssignmentRepository(db),
		Grades:      NewGradeRepository(db),
		Points:      NewPointsRepository(db),
		Attendance:  NewAttendanceRepository(db),
		Messages:    NewMessageRepository(db),
		Badges:      NewBadgeRepository(db),
	}
}

// trapNoRowsErr maps "no rows" and malformed UUID errors to notFound.
func trapNoRowsErr(err, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == invalidTextRepresentation {
		return notFound
	}
	return errors.Wrap(err, msg)
}

func newID() string {
	return uuid.New().String()
}

func isUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func ptrEq(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// textArray binds ids as a non-NULL text[] (a nil slice would bind NULL).
func textArray(ids []string) interface{} {
	return pq.StringArray(append([]string{}, ids...))
}

func stringSlice(a pq.StringArray) []string {
	if len(a) == 0 {
		return nil
	}
	return []string(a)
}

// where accumulates AND-ed conditions written with `?` bind vars.
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) add(cond string, args ...interface{}) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// query rebinds q (built with `?` bind vars) for postgres.
func query(q string) string {
	return sqlx.Rebind(sqlx.DOLLAR, q)
}

func searchPattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)
	return "%" + r.Replace(s) + "%"
}
