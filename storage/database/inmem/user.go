package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

// get returns a copy of the user with its derived fields. Requires the read lock.
func (repo *userRepository) get(id string) (user.User, bool) {
	u, ok := repo.db.users[id]
	if !ok {
		return user.User{}, false
	}
	usr := *u
	usr.BranchIDs = copyStrings(u.BranchIDs)
	usr.PasswordHash = append([]byte(nil), u.PasswordHash...)
	usr.CourseIDs = repo.db.courseIDsOf(u)
	return usr, true
}

func (repo *userRepository) checkUniqueness(username, email string, studentNumber *string, excludedIDs ...string) error {
	for _, u := range repo.db.users {
		if isExcluded(u.ID, excludedIDs) {
			continue
		}
		if username != "" && u.Username == username {
			return user.ErrUsernameExists
		}
		if email != "" && u.Email == email {
			return user.ErrEmailExists
		}
		if studentNumber != nil && u.StudentNumber != nil && *u.StudentNumber == *studentNumber {
			return user.ErrStudentNumberExists
		}
	}
	return nil
}

// checkRefs mirrors the foreign keys of the users table. Requires the read lock.
func (repo *userRepository) checkRefs(usr user.User) error {
	if usr.ClassID != nil {
		if _, ok := repo.db.classes[*usr.ClassID]; !ok {
			return user.ErrClassNotFound
		}
	}
	for _, id := range usr.BranchIDs {
		if _, ok := repo.db.branches[id]; !ok {
			return user.ErrBranchNotFound
		}
	}
	return nil
}

func (repo *userRepository) CheckUniqueness(_ context.Context, username, email string, studentNumber *string, excludedIDs ...string) error {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return repo.checkUniqueness(username, email, studentNumber, excludedIDs...)
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.checkUniqueness(usr.Username, usr.Email, usr.StudentNumber); err != nil {
		return user.User{}, err
	}
	if err := repo.checkRefs(usr); err != nil {
		return user.User{}, err
	}

	usr.ID = newID()
	usr.BranchIDs = copyStrings(usr.BranchIDs)
	usr.CourseIDs = nil
	repo.db.users[usr.ID] = &usr
	repo.db.enrollInClassCourses(usr.ID, usr.ClassID)

	created, _ := repo.get(usr.ID)
	return created, nil
}

func (repo *userRepository) QueryUsers(_ context.Context, filter *user.QueryFilter, ordering ...core.DBOrdering) ([]user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	users := make([]user.User, 0, len(repo.db.users))
	for id := range repo.db.users {
		usr, _ := repo.get(id)
		if matchUser(usr, filter) {
			users = append(users, usr)
		}
	}
	sortUsers(users, ordering)
	return users, nil
}

func matchUser(usr user.User, filter *user.QueryFilter) bool {
	if filter == nil {
		return true
	}
	if filter.Search != "" {
		var sn string
		if usr.StudentNumber != nil {
			sn = *usr.StudentNumber
		}
		if !(containsFold(usr.FirstName, filter.Search) || containsFold(usr.LastName, filter.Search) ||
			containsFold(usr.Username, filter.Search) || containsFold(usr.Email, filter.Search) ||
			containsFold(sn, filter.Search)) {
			return false
		}
	}
	if len(filter.Roles) > 0 && !core.ContainsString(filter.Roles, usr.Role) {
		return false
	}
	if filter.ClassID != "" && (usr.ClassID == nil || *usr.ClassID != filter.ClassID) {
		return false
	}
	if filter.IsActive != nil && usr.IsActive != *filter.IsActive {
		return false
	}
	if !filter.CreatedFrom.IsZero() && usr.CreatedAt.Before(filter.CreatedFrom) {
		return false
	}
	if !filter.CreatedTo.IsZero() && usr.CreatedAt.After(filter.CreatedTo) {
		return false
	}
	return true
}

// sortUsers orders users by the given columns, then by creation date.
func sortUsers(users []user.User, ordering []core.DBOrdering) {
	sort.SliceStable(users, func(i, j int) bool {
		for _, ord := range ordering {
			cmp := compareUsers(users[i], users[j], ord.Field)
			if cmp == 0 {
				continue
			}
			if ord.Ascending {
				return cmp < 0
			}
			return cmp > 0
		}
		if !users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].CreatedAt.Before(users[j].CreatedAt)
		}
		return users[i].ID < users[j].ID
	})
}

func compareUsers(a, b user.User, column string) int {
	switch column {
	case "username":
		return strings.Compare(a.Username, b.Username)
	case "email":
		return strings.Compare(a.Email, b.Email)
	case "first_name":
		return strings.Compare(a.FirstName, b.FirstName)
	case "last_name":
		return strings.Compare(a.LastName, b.LastName)
	case "role":
		return strings.Compare(a.Role, b.Role)
	case "created_at":
		return compareTimes(a.CreatedAt, b.CreatedAt)
	case "last_login":
		return compareTimes(a.LastLogin, b.LastLogin)
	}
	return 0
}

func compareTimes(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter) (user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if filter.ID != "" {
		if usr, ok := repo.get(filter.ID); ok {
			return usr, nil
		}
		return user.User{}, user.ErrNotFound
	}
	for id, u := range repo.db.users {
		var match bool
		switch {
		case filter.Username != "":
			match = u.Username == filter.Username
		case filter.Email != "":
			match = u.Email == filter.Email
		case filter.UsernameOrEmail != "":
			match = u.Username == filter.UsernameOrEmail || u.Email == filter.UsernameOrEmail
		}
		if match {
			usr, _ := repo.get(id)
			return usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.users[usr.ID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	if err := repo.checkUniqueness(usr.Username, usr.Email, usr.StudentNumber, usr.ID); err != nil {
		return user.User{}, err
	}
	if err := repo.checkRefs(usr); err != nil {
		return user.User{}, err
	}

	repo.moveStudent(orig, orig.ClassID, usr.ClassID)
	if orig.IsTeacher() && !usr.IsTeacher() {
		repo.db.detachTeacher(usr.ID)
	}
	if orig.IsStudent() && !usr.IsStudent() {
		for _, c := range repo.db.courses {
			c.StudentIDs = removeString(c.StudentIDs, usr.ID)
		}
	}

	usr.BranchIDs = copyStrings(usr.BranchIDs)
	usr.CourseIDs = nil
	usr.CreatedAt = orig.CreatedAt
	repo.db.users[usr.ID] = &usr

	updated, _ := repo.get(usr.ID)
	return updated, nil
}

// moveStudent re-enrols a student from the courses of its old class to those of the new one.
// Requires the write lock.
func (repo *userRepository) moveStudent(usr *user.User, oldClassID, newClassID *string) {
	if ptrEq(oldClassID, newClassID) {
		return
	}
	repo.db.unenrollFromClassCourses(usr.ID, oldClassID)
	repo.db.enrollInClassCourses(usr.ID, newClassID)
}

func (repo *userRepository) SetStudentClass(_ context.Context, studentID string, classID *string) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	u, ok := repo.db.users[studentID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	if classID != nil {
		if _, ok := repo.db.classes[*classID]; !ok {
			return user.User{}, user.ErrClassNotFound
		}
	}
	repo.moveStudent(u, u.ClassID, classID)
	u.ClassID = classID
	u.UpdatedAt = time.Now().UTC()

	updated, _ := repo.get(studentID)
	return updated, nil
}

func (repo *userRepository) SetLastLogin(_ context.Context, id string, at time.Time) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	u, ok := repo.db.users[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	u.LastLogin = at
	updated, _ := repo.get(id)
	return updated, nil
}

func (repo *userRepository) DeleteUsers(_ context.Context, ids ...string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, id := range ids {
		if _, ok := repo.db.users[id]; !ok {
			continue
		}
		repo.db.detachTeacher(id)
		repo.db.detachStudent(id)
		for mid, m := range repo.db.messages {
			if m.SenderID == id || m.RecipientID == id {
				delete(repo.db.messages, mid)
			}
		}
		delete(repo.db.users, id)
	}
	return nil
}

// detachTeacher clears the references to a teacher. Requires the write lock.
func (db *DB) detachTeacher(id string) {
	for _, c := range db.classes {
		if c.ClassTeacherID != nil && *c.ClassTeacherID == id {
			c.ClassTeacherID = nil
		}
		c.BranchTeacherIDs = removeString(c.BranchTeacherIDs, id)
	}
	for _, c := range db.courses {
		if c.TeacherID != nil && *c.TeacherID == id {
			c.TeacherID = nil
		}
	}
	for _, a := range db.assignments {
		if a.TeacherID == id {
			a.TeacherID = ""
		}
	}
	for _, g := range db.grades {
		if g.TeacherID == id {
			g.TeacherID = ""
		}
	}
}

// detachStudent deletes the rows owned by a student and its enrolments. Requires the write lock.
func (db *DB) detachStudent(id string) {
	for _, c := range db.courses {
		c.StudentIDs = removeString(c.StudentIDs, id)
	}
	for k := range db.submissions {
		if k.a == id {
			delete(db.submissions, k)
		}
	}
	for gid, g := range db.grades {
		if g.StudentID == id {
			delete(db.grades, gid)
		}
	}
	for k := range db.points {
		if k.a == id {
			delete(db.points, k)
		}
	}
	for k := range db.attendance {
		if k.a == id {
			delete(db.attendance, k)
		}
	}
	for k := range db.studentBadges {
		if k.a == id {
			delete(db.studentBadges, k)
		}
	}
}
