package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/class"
)

type classRepository struct {
	db *DB
}

var _ class.Repository = (*classRepository)(nil)

func NewClassRepository(db *DB) class.Repository {
	return &classRepository{db: db}
}

// get returns a copy of the class with its derived fields. Requires the read lock.
func (repo *classRepository) get(id string) (class.Class, bool) {
	c, ok := repo.db.classes[id]
	if !ok {
		return class.Class{}, false
	}
	cls := *c
	cls.BranchTeacherIDs = copyStrings(c.BranchTeacherIDs)
	cls.StudentIDs, cls.CourseIDs = nil, nil
	for _, u := range repo.db.users {
		if u.ClassID != nil && *u.ClassID == id {
			cls.StudentIDs = append(cls.StudentIDs, u.ID)
		}
	}
	for _, crs := range repo.db.courses {
		if crs.ClassID != nil && *crs.ClassID == id {
			cls.CourseIDs = append(cls.CourseIDs, crs.ID)
		}
	}
	sort.Strings(cls.StudentIDs)
	sort.Strings(cls.CourseIDs)
	return cls, true
}

func (repo *classRepository) checkUniqueness(name, academicYear string, excludedIDs ...string) error {
	for _, c := range repo.db.classes {
		if strings.EqualFold(c.Name, name) && c.AcademicYear == academicYear && !isExcluded(c.ID, excludedIDs) {
			return class.ErrNameYearExists
		}
	}
	return nil
}

func (repo *classRepository) CheckUniqueness(_ context.Context, name, academicYear string, excludedIDs ...string) error {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return repo.checkUniqueness(name, academicYear, excludedIDs...)
}

func (repo *classRepository) CreateClass(_ context.Context, c class.Class) (class.Class, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.checkUniqueness(c.Name, c.AcademicYear); err != nil {
		return class.Class{}, err
	}
	c.ID = newID()
	c.BranchTeacherIDs = copyStrings(c.BranchTeacherIDs)
	c.StudentIDs, c.CourseIDs = nil, nil
	repo.db.classes[c.ID] = &c

	created, _ := repo.get(c.ID)
	return created, nil
}

func (repo *classRepository) QueryClasses(_ context.Context, filter *class.QueryFilter) ([]class.Class, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	classes := make([]class.Class, 0, len(repo.db.classes))
	for id := range repo.db.classes {
		c, _ := repo.get(id)
		if matchClass(c, filter) {
			classes = append(classes, c)
		}
	}
	sort.Slice(classes, func(i, j int) bool {
		if classes[i].AcademicYear != classes[j].AcademicYear {
			return classes[i].AcademicYear > classes[j].AcademicYear
		}
		return classes[i].Name < classes[j].Name
	})
	return classes, nil
}

func matchClass(c class.Class, filter *class.QueryFilter) bool {
	if filter == nil {
		return true
	}
	if filter.Search != "" && !containsFold(c.Name, filter.Search) {
		return false
	}
	if filter.AcademicYear != "" && c.AcademicYear != filter.AcademicYear {
		return false
	}
	if filter.TeacherID != "" && !core.ContainsString(c.TeacherIDs(), filter.TeacherID) {
		return false
	}
	if filter.IsActive != nil && c.IsActive != *filter.IsActive {
		return false
	}
	return true
}

func (repo *classRepository) GetClass(_ context.Context, id string) (class.Class, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if c, ok := repo.get(id); ok {
		return c, nil
	}
	return class.Class{}, class.ErrNotFound
}

func (repo *classRepository) UpdateClass(_ context.Context, c class.Class) (class.Class, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.classes[c.ID]
	if !ok {
		return class.Class{}, class.ErrNotFound
	}
	if err := repo.checkUniqueness(c.Name, c.AcademicYear, c.ID); err != nil {
		return class.Class{}, err
	}
	c.BranchTeacherIDs = copyStrings(c.BranchTeacherIDs)
	c.StudentIDs, c.CourseIDs = nil, nil
	c.CreatedAt = orig.CreatedAt
	repo.db.classes[c.ID] = &c

	updated, _ := repo.get(c.ID)
	return updated, nil
}

func (repo *classRepository) DeleteClass(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.classes[id]; !ok {
		return class.ErrNotFound
	}
	for _, u := range repo.db.users {
		if u.ClassID != nil && *u.ClassID == id {
			u.ClassID = nil
		}
	}
	for _, c := range repo.db.courses {
		if c.ClassID != nil && *c.ClassID == id {
			c.ClassID = nil
		}
	}
	for _, a := range repo.db.assignments {
		if a.ClassID != nil && *a.ClassID == id {
			a.ClassID = nil
		}
	}
	delete(repo.db.classes, id)
	return nil
}
