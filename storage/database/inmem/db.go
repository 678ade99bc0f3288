// Package inmemdb is an in-memory store implementing the domain repositories.
// Writes that touch several tables happen under a single write lock, so they are atomic
// the same way the Postgres repositories are within a transaction.
package inmemdb

import (
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/trezcool/academia/core"
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

type (
	// pairKey identifies a (student, course|assignment|badge) row.
	pairKey struct {
		a, b string
	}

	DB struct {
		mu sync.RWMutex

		users         map[string]*user.User
		branches      map[string]*branch.Branch
		classes       map[string]*class.Class
		courses       map[string]*course.Course
		assignments   map[string]*assignment.Assignment
		submissions   map[pairKey]*assignment.SubmissionStatus // (student, assignment)
		grades        map[string]*grade.Grade
		points        map[pairKey]*points.StudentPoint   // (student, course)
		attendance    map[pairKey]*attendance.Attendance // (student, course)
		messages      map[string]*message.Message
		badges        map[string]*badge.Badge
		studentBadges map[pairKey]*badge.StudentBadge // (student, badge)
	}
)

func Open() *DB {
	return &DB{
		users:         make(map[string]*user.User),
		branches:      make(map[string]*branch.Branch),
		classes:       make(map[string]*class.Class),
		courses:       make(map[string]*course.Course),
		assignments:   make(map[string]*assignment.Assignment),
		submissions:   make(map[pairKey]*assignment.SubmissionStatus),
		grades:        make(map[string]*grade.Grade),
		points:        make(map[pairKey]*points.StudentPoint),
		attendance:    make(map[pairKey]*attendance.Attendance),
		messages:      make(map[string]*message.Message),
		badges:        make(map[string]*badge.Badge),
		studentBadges: make(map[pairKey]*badge.StudentBadge),
	}
}

// Repositories bundles every repository of the store.
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

func (db *DB) Repositories() Repositories {
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

func newID() string {
	return uuid.New().String()
}

func copyStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

func removeString(list []string, s string) []string {
	out := list[:0]
	for _, item := range list {
		if item != s {
			out = append(out, item)
		}
	}
	return out
}

func isExcluded(id string, excludedIDs []string) bool {
	return core.ContainsString(excludedIDs, id)
}

func ptrEq(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// enrollInClassCourses adds the student to the courses of classID. Requires the write lock.
func (db *DB) enrollInClassCourses(studentID string, classID *string) {
	if classID == nil {
		return
	}
	for _, c := range db.courses {
		if ptrEq(c.ClassID, classID) && !core.ContainsString(c.StudentIDs, studentID) {
			c.StudentIDs = append(c.StudentIDs, studentID)
		}
	}
}

// unenrollFromClassCourses removes the student from the courses of classID. Requires the write lock.
func (db *DB) unenrollFromClassCourses(studentID string, classID *string) {
	if classID == nil {
		return
	}
	for _, c := range db.courses {
		if ptrEq(c.ClassID, classID) {
			c.StudentIDs = removeString(c.StudentIDs, studentID)
		}
	}
}

// courseIDsOf returns the courses taught by a teacher or attended by a student. Requires the read lock.
func (db *DB) courseIDsOf(usr *user.User) []string {
	var ids []string
	for _, c := range db.courses {
		switch {
		case usr.IsTeacher() && c.TeacherID != nil && *c.TeacherID == usr.ID:
			ids = append(ids, c.ID)
		case usr.IsStudent() && core.ContainsString(c.StudentIDs, usr.ID):
			ids = append(ids, c.ID)
		}
	}
	sort.Strings(ids)
	return ids
}
