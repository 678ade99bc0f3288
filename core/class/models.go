package class

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/academia/core"
)

type Class struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	AcademicYear     string    `json:"academic_year"`
	ClassTeacherID   *string   `json:"class_teacher_id"`
	BranchTeacherIDs []string  `json:"branch_teacher_ids"`
	StudentIDs       []string  `json:"student_ids"` // students whose class this is
	CourseIDs        []string  `json:"course_ids"`  // courses held in this class
	IsActive         bool      `json:"is_active"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TeacherIDs returns the class teacher and the branch teachers.
func (c Class) TeacherIDs() []string {
	ids := make([]string, 0, len(c.BranchTeacherIDs)+1)
	if c.ClassTeacherID != nil {
		ids = append(ids, *c.ClassTeacherID)
	}
	return core.UniqueStrings(append(ids, c.BranchTeacherIDs...))
}

func (c Class) HasStudent(id string) bool { return core.ContainsString(c.StudentIDs, id) }

type NewClass struct {
	Name             string   `json:"name" validate:"required,max=50"`
	AcademicYear     string   `json:"academic_year" validate:"required,academic_year"`
	ClassTeacherID   *string  `json:"class_teacher_id" validate:"omitempty,uuid"`
	BranchTeacherIDs []string `json:"branch_teacher_ids" validate:"omitempty,dive,uuid"`
	IsActive         *bool    `json:"is_active"`
}

func (nc *NewClass) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.AcademicYear = core.CleanString(nc.AcademicYear)
	nc.ClassTeacherID = core.CleanStringPtr(nc.ClassTeacherID)
	nc.BranchTeacherIDs = core.UniqueStrings(nc.BranchTeacherIDs)
	return validate.Struct(nc)
}

// UpdateClass holds the fields to change; nil fields are left unchanged.
type UpdateClass struct {
	Name               *string   `json:"name" validate:"omitempty,notblank,max=50"`
	AcademicYear       *string   `json:"academic_year" validate:"omitempty,academic_year"`
	ClassTeacherID     *string   `json:"class_teacher_id" validate:"omitempty,uuid"`
	RemoveClassTeacher bool      `json:"remove_class_teacher"`
	BranchTeacherIDs   *[]string `json:"branch_teacher_ids" validate:"omitempty,dive,uuid"`
	IsActive           *bool     `json:"is_active"`
}

func (uc *UpdateClass) Validate(validate *validator.Validate) error {
	uc.Name = core.CleanStringPtr(uc.Name)
	uc.AcademicYear = core.CleanStringPtr(uc.AcademicYear)
	uc.ClassTeacherID = core.CleanStringPtr(uc.ClassTeacherID)
	if uc.BranchTeacherIDs != nil {
		ids := core.UniqueStrings(*uc.BranchTeacherIDs)
		if ids == nil {
			ids = []string{}
		}
		uc.BranchTeacherIDs = &ids
	}
	return validate.Struct(uc)
}

func (uc *UpdateClass) apply(c Class) Class {
	if uc.Name != nil {
		c.Name = *uc.Name
	}
	if uc.AcademicYear != nil {
		c.AcademicYear = *uc.AcademicYear
	}
	if uc.RemoveClassTeacher {
		c.ClassTeacherID = nil
	} else if uc.ClassTeacherID != nil {
		c.ClassTeacherID = uc.ClassTeacherID
	}
	if uc.BranchTeacherIDs != nil {
		c.BranchTeacherIDs = *uc.BranchTeacherIDs
	}
	if uc.IsActive != nil {
		c.IsActive = *uc.IsActive
	}
	return c
}

type QueryFilter struct {
	Search       string `query:"search"`
	AcademicYear string `query:"academic_year"`
	TeacherID    string `query:"teacher_id"` // class teacher or branch teacher
	IsActive     *bool  `query:"is_active"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.AcademicYear = core.CleanString(qf.AcademicYear)
	qf.TeacherID = core.CleanString(qf.TeacherID)
}
