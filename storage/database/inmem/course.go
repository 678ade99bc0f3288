package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/user"
)

type courseRepository struct {
	db *DB
}

var _ course.Repository = (*courseRepository)(nil)

func NewCourseRepository(db *DB) course.Repository {
	return &courseRepository{db: db}
}

// get requires the read lock.
func (repo *courseRepository) get(id string) (course.Course, bool) {
	c, ok := repo.db.courses[id]
	if !ok {
		return course.Course{}, false
	}
	crs := *c
	crs.StudentIDs = copyStrings(c.StudentIDs)
	sort.Strings(crs.StudentIDs)
	return crs, true
}

// classStudents returns the active students of classID. Requires the read lock.
func (repo *courseRepository) classStudents(classID *string) []string {
	if classID == nil {
		return nil
	}
	var ids []string
	for _, u := range repo.db.users {
		if u.Role == user.RoleStudent && ptrEq(u.ClassID, classID) {
			ids = append(ids, u.ID)
		}
	}
	return ids
}

func (repo *courseRepository) checkCodeUniqueness(code string, excludedIDs ...string) error {
	for _, c := range repo.db.courses {
		if strings.EqualFold(c.Code, code) && !isExcluded(c.ID, excludedIDs) {
			return course.ErrCodeExists
		}
	}
	return nil
}

func (repo *courseRepository) CheckCodeUniqueness(_ context.Context, code string, excludedIDs ...string) error {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return repo.checkCodeUniqueness(code, excludedIDs...)
}

func (repo *courseRepository) CreateCourse(_ context.Context, c course.Course) (course.Course, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.checkCodeUniqueness(c.Code); err != nil {
		return course.Course{}, err
	}
	c.ID = newID()
	c.StudentIDs = repo.classStudents(c.ClassID)
	repo.db.courses[c.ID] = &c

	created, _ := repo.get(c.ID)
	return created, nil
}

func (repo *courseRepository) QueryCourses(_ context.Context, filter *course.QueryFilter) ([]course.Course, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	courses := make([]course.Course, 0, len(repo.db.courses))
	for id := range repo.db.courses {
		c, _ := repo.get(id)
		if matchCourse(c, filter) {
			courses = append(courses, c)
		}
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].Code < courses[j].Code })
	return courses, nil
}

func matchCourse(c course.Course, filter *course.QueryFilter) bool {
	if filter == nil {
		return true
	}
	if filter.Search != "" && !(containsFold(c.Name, filter.Search) || containsFold(c.Code, filter.Search)) {
		return false
	}
	if filter.TeacherID != "" && (c.TeacherID == nil || *c.TeacherID != filter.TeacherID) {
		return false
	}
	if filter.ClassID != "" && (c.ClassID == nil || *c.ClassID != filter.ClassID) {
		return false
	}
	if filter.BranchID != "" && (c.BranchID == nil || *c.BranchID != filter.BranchID) {
		return false
	}
	if filter.StudentID != "" && !core.ContainsString(c.StudentIDs, filter.StudentID) {
		return false
	}
	return true
}

func (repo *courseRepository) GetCourse(_ context.Context, id string) (course.Course, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if c, ok := repo.get(id); ok {
		return c, nil
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) UpdateCourse(_ context.Context, c course.Course) (course.Course, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.courses[c.ID]
	if !ok {
		return course.Course{}, course.ErrNotFound
	}
	if err := repo.checkCodeUniqueness(c.Code, c.ID); err != nil {
		return course.Course{}, err
	}

	students := copyStrings(orig.StudentIDs)
	if !ptrEq(orig.ClassID, c.ClassID) {
		for _, id := range repo.classStudents(orig.ClassID) {
			students = removeString(students, id)
		}
		for _, id := range repo.classStudents(c.ClassID) {
			if !core.ContainsString(students, id) {
				students = append(students, id)
			}
		}
		for _, a := range repo.db.assignments {
			if a.CourseID == c.ID {
				a.ClassID = c.ClassID
			}
		}
	}
	c.StudentIDs = students
	c.CreatedAt = orig.CreatedAt
	repo.db.courses[c.ID] = &c

	updated, _ := repo.get(c.ID)
	return updated, nil
}

func (repo *courseRepository) DeleteCourse(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.courses[id]; !ok {
		return course.ErrNotFound
	}
	for aid, a := range repo.db.assignments {
		if a.CourseID == id {
			repo.db.deleteAssignment(aid)
		}
	}
	for gid, g := range repo.db.grades {
		if g.CourseID == id {
			delete(repo.db.grades, gid)
		}
	}
	for k := range repo.db.points {
		if k.b == id {
			delete(repo.db.points, k)
		}
	}
	for k := range repo.db.attendance {
		if k.b == id {
			delete(repo.db.attendance, k)
		}
	}
	delete(repo.db.courses, id)
	return nil
}

func (repo *courseRepository) EnrollStudents(_ context.Context, id string, studentIDs ...string) (course.Course, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	c, ok := repo.db.courses[id]
	if !ok {
		return course.Course{}, course.ErrNotFound
	}
	for _, sid := range studentIDs {
		if _, ok := repo.db.users[sid]; !ok {
			return course.Course{}, user.ErrNotFound
		}
	}
	for _, sid := range studentIDs {
		if !core.ContainsString(c.StudentIDs, sid) {
			c.StudentIDs = append(c.StudentIDs, sid)
		}
	}
	updated, _ := repo.get(id)
	return updated, nil
}

func (repo *courseRepository) UnenrollStudents(_ context.Context, id string, studentIDs ...string) (course.Course, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	c, ok := repo.db.courses[id]
	if !ok {
		return course.Course{}, course.ErrNotFound
	}
	for _, sid := range studentIDs {
		c.StudentIDs = removeString(c.StudentIDs, sid)
	}
	updated, _ := repo.get(id)
	return updated, nil
}
