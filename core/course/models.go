package course

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/academia/core"
)

type Course struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Code        string    `json:"code"`
	Description string    `json:"description"`
	TeacherID   *string   `json:"teacher_id"`
	ClassID     *string   `json:"class_id"`
	BranchID    *string   `json:"branch_id"`
	StudentIDs  []string  `json:"student_ids"` // enrolled students
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (c Course) IsTaughtBy(teacherID string) bool {
	return c.TeacherID != nil && *c.TeacherID == teacherID
}

func (c Course) HasStudent(studentID string) bool {
	return core.ContainsString(c.StudentIDs, studentID)
}

type NewCourse struct {
	Name        string  `json:"name" validate:"required,max=100"`
	Code        string  `json:"code" validate:"required,max=20,course_code"`
	Description string  `json:"description" validate:"max=1000"`
	TeacherID   *string `json:"teacher_id" validate:"omitempty,uuid"`
	ClassID     *string `json:"class_id" validate:"omitempty,uuid"`
	BranchID    *string `json:"branch_id" validate:"omitempty,uuid"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Code = cleanCode(nc.Code)
	nc.Description = core.CleanString(nc.Description)
	nc.TeacherID = core.CleanStringPtr(nc.TeacherID)
	nc.ClassID = core.CleanStringPtr(nc.ClassID)
	nc.BranchID = core.CleanStringPtr(nc.BranchID)
	return validate.Struct(nc)
}

// UpdateCourse holds the fields to change; nil fields are left unchanged,
// Remove* flags clear the matching reference.
type UpdateCourse struct {
	Name          *string `json:"name" validate:"omitempty,notblank,max=100"`
	Code          *string `json:"code" validate:"omitempty,max=20,course_code"`
	Description   *string `json:"description" validate:"omitempty,max=1000"`
	TeacherID     *string `json:"teacher_id" validate:"omitempty,uuid"`
	RemoveTeacher bool    `json:"remove_teacher"`
	ClassID       *string `json:"class_id" validate:"omitempty,uuid"`
	RemoveClass   bool    `json:"remove_class"`
	BranchID      *string `json:"branch_id" validate:"omitempty,uuid"`
	RemoveBranch  bool    `json:"remove_branch"`
}

func (uc *UpdateCourse) Validate(validate *validator.Validate) error {
	uc.Name = core.CleanStringPtr(uc.Name)
	if uc.Code != nil {
		code := cleanCode(*uc.Code)
		uc.Code = &code
	}
	if uc.Description != nil {
		desc := core.CleanString(*uc.Description)
		uc.Description = &desc
	}
	uc.TeacherID = core.CleanStringPtr(uc.TeacherID)
	uc.ClassID = core.CleanStringPtr(uc.ClassID)
	uc.BranchID = core.CleanStringPtr(uc.BranchID)
	return validate.Struct(uc)
}

func (uc *UpdateCourse) apply(c Course) Course {
	if uc.Name != nil {
		c.Name = *uc.Name
	}
	if uc.Code != nil {
		c.Code = *uc.Code
	}
	if uc.Description != nil {
		c.Description = *uc.Description
	}
	c.TeacherID = applyRef(c.TeacherID, uc.TeacherID, uc.RemoveTeacher)
	c.ClassID = applyRef(c.ClassID, uc.ClassID, uc.RemoveClass)
	c.BranchID = applyRef(c.BranchID, uc.BranchID, uc.RemoveBranch)
	return c
}

func applyRef(orig, val *string, remove bool) *string {
	if remove {
		return nil
	}
	if val != nil {
		return val
	}
	return orig
}

// Enrollment lists the students to enrol into (or unenrol from) a course.
type Enrollment struct {
	StudentIDs []string `json:"student_ids" validate:"required,min=1,dive,uuid"`
}

func (e *Enrollment) Validate(validate *validator.Validate) error {
	e.StudentIDs = core.UniqueStrings(e.StudentIDs)
	return validate.Struct(e)
}

type QueryFilter struct {
	Search    string `query:"search"`
	TeacherID string `query:"teacher_id"`
	ClassID   string `query:"class_id"`
	BranchID  string `query:"branch_id"`
	StudentID string `query:"student_id"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.TeacherID = core.CleanString(qf.TeacherID)
	qf.ClassID = core.CleanString(qf.ClassID)
	qf.BranchID = core.CleanString(qf.BranchID)
	qf.StudentID = core.CleanString(qf.StudentID)
}

// course codes are stored upper-cased
func cleanCode(code string) string {
	return strings.ToUpper(core.CleanString(code))
}
