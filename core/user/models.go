package user

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/academia/core"
)

// Roles
const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

var (
	AllRoles = []string{RoleAdmin, RoleTeacher, RoleStudent}

	Roles = []Role{
		{Name: "Student", Value: RoleStudent},
		{Name: "Teacher", Value: RoleTeacher},
		{Name: "Admin", Value: RoleAdmin},
	}
)

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type User struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	FirstName     string    `json:"first_name"`
	LastName      string    `json:"last_name"`
	Role          string    `json:"role"`
	ClassID       *string   `json:"class_id"`       // students
	StudentNumber *string   `json:"student_number"` // students; unique when set
	BranchIDs     []string  `json:"branch_ids"`     // teachers
	CourseIDs     []string  `json:"course_ids"`     // taught (teachers) or enrolled (students) courses
	IsActive      bool      `json:"is_active"`
	PasswordHash  []byte    `json:"-"`
	CreatedAt     time.Time `json:"created_at"` // UTC
	UpdatedAt     time.Time `json:"updated_at"` // UTC
	LastLogin     time.Time `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

// FullName is the display name of the user, falling back to the username.
func (u *User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

func (u *User) IsAdmin() bool   { return u.Role == RoleAdmin }
func (u *User) IsTeacher() bool { return u.Role == RoleTeacher }
func (u *User) IsStudent() bool { return u.Role == RoleStudent }

// NewUser contains information needed to create a new User.
type NewUser struct {
	Username        string   `json:"username" validate:"omitempty,min=3,alphanum_"`
	Email           string   `json:"email" validate:"omitempty,email"`
	FirstName       string   `json:"first_name" validate:"required"`
	LastName        string   `json:"last_name" validate:"required"`
	Password        string   `json:"password" validate:"required"`
	PasswordConfirm string   `json:"password_confirm" validate:"required,eqfield=Password"`
	Role            string   `json:"role" validate:"required,role"`
	ClassID         *string  `json:"class_id" validate:"omitempty,uuid"`
	StudentNumber   *string  `json:"student_number" validate:"omitempty,max=32"`
	BranchIDs       []string `json:"branch_ids" validate:"omitempty,dive,uuid"`
}

func (nu *NewUser) clean() {
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.FirstName = core.CleanString(nu.FirstName)
	nu.LastName = core.CleanString(nu.LastName)
	nu.Role = core.CleanString(nu.Role, true /* lower */)
	nu.ClassID = core.CleanStringPtr(nu.ClassID)
	nu.StudentNumber = core.CleanStringPtr(nu.StudentNumber)
	nu.BranchIDs = core.UniqueStrings(nu.BranchIDs)
}

func (nu *NewUser) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	nu.clean()
	if err := validate.Struct(nu); err != nil {
		return err
	}
	if err := validateRoleFields(nu.Role, nu.ClassID, nu.StudentNumber, nu.BranchIDs); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, nu.Username, nu.Email, nu.StudentNumber)
}

// UpdateUser defines what information may be provided to modify an existing User.
// Nil fields are left unchanged.
type UpdateUser struct {
	Username        *string   `json:"username" validate:"omitempty,min=3,alphanum_"`
	Email           *string   `json:"email" validate:"omitempty,email"`
	FirstName       *string   `json:"first_name" validate:"omitempty,notblank"`
	LastName        *string   `json:"last_name" validate:"omitempty,notblank"`
	IsActive        *bool     `json:"is_active"`
	Role            *string   `json:"role" validate:"omitempty,role"`
	ClassID         *string   `json:"class_id" validate:"omitempty,uuid"`
	RemoveClass     bool      `json:"remove_class"`
	StudentNumber   *string   `json:"student_number" validate:"omitempty,max=32"`
	BranchIDs       *[]string `json:"branch_ids" validate:"omitempty,dive,uuid"`
	Password        string    `json:"password" validate:"omitempty"`
	PasswordConfirm string    `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`

	account User // the stored user, used by the password policy
}

func (uu *UpdateUser) clean() {
	uu.Username = core.CleanStringPtr(uu.Username, true /* lower */)
	uu.Email = core.CleanStringPtr(uu.Email, true /* lower */)
	uu.FirstName = trimPtr(uu.FirstName)
	uu.LastName = trimPtr(uu.LastName)
	if uu.Role != nil {
		role := core.CleanString(*uu.Role, true /* lower */)
		uu.Role = &role
	}
	uu.ClassID = core.CleanStringPtr(uu.ClassID)
	uu.StudentNumber = trimPtr(uu.StudentNumber)
	if uu.BranchIDs != nil {
		ids := core.UniqueStrings(*uu.BranchIDs)
		if ids == nil {
			ids = []string{}
		}
		uu.BranchIDs = &ids
	}
}

// Apply returns a copy of origUsr with the update applied, password excluded.
func (uu *UpdateUser) Apply(origUsr User) User {
	usr := origUsr
	if uu.Username != nil {
		usr.Username = *uu.Username
	}
	if uu.Email != nil {
		usr.Email = *uu.Email
	}
	if uu.FirstName != nil {
		usr.FirstName = *uu.FirstName
	}
	if uu.LastName != nil {
		usr.LastName = *uu.LastName
	}
	if uu.IsActive != nil {
		usr.IsActive = *uu.IsActive
	}
	if uu.Role != nil {
		usr.Role = *uu.Role
	}
	if uu.RemoveClass {
		usr.ClassID = nil
	} else if uu.ClassID != nil {
		usr.ClassID = uu.ClassID
	}
	if uu.StudentNumber != nil {
		if *uu.StudentNumber == "" {
			usr.StudentNumber = nil
		} else {
			usr.StudentNumber = uu.StudentNumber
		}
	}
	if uu.BranchIDs != nil {
		usr.BranchIDs = *uu.BranchIDs
	}
	if !usr.IsStudent() {
		usr.ClassID = nil
		usr.StudentNumber = nil
	}
	if !usr.IsTeacher() {
		usr.BranchIDs = nil
	}
	return usr
}

func (uu *UpdateUser) Validate(ctx context.Context, origUsr User, validate *validator.Validate, svc Service) error {
	uu.clean()
	uu.account = origUsr
	if err := validate.Struct(uu); err != nil {
		return err
	}
	usr := uu.Apply(origUsr)
	if usr.Username == "" && usr.Email == "" {
		return core.NewValidationError(nil,
			core.FieldError{Field: "username", Error: usernameOrEmailText},
			core.FieldError{Field: "email", Error: usernameOrEmailText},
		)
	}
	if err := validateRoleFields(usr.Role, uu.ClassID, uu.StudentNumber, derefSlice(uu.BranchIDs)); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, usr.Username, usr.Email, usr.StudentNumber, origUsr.ID)
}

// UpdateProfile is what users may change on their own account.
type UpdateProfile struct {
	FirstName       *string `json:"first_name" validate:"omitempty,notblank"`
	LastName        *string `json:"last_name" validate:"omitempty,notblank"`
	Password        string  `json:"password" validate:"omitempty"`
	PasswordConfirm string  `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`

	account User
}

// Validate checks the profile update of usr; the new password must not resemble usr's names, username or email.
func (up *UpdateProfile) Validate(validate *validator.Validate, usr User) error {
	up.FirstName = trimPtr(up.FirstName)
	up.LastName = trimPtr(up.LastName)
	up.account = usr
	return validate.Struct(up)
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetUserPassword) Validate(validate *validator.Validate) error { return validate.Struct(rp) }

type QueryFilter struct {
	Search      string    `query:"search"`
	Roles       []string  `query:"role"`
	ClassID     string    `query:"class_id"`
	IsActive    *bool     `query:"is_active"`
	CreatedFrom time.Time `query:"created_from"`
	CreatedTo   time.Time `query:"created_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Roles == nil && qf.ClassID == "" && qf.IsActive == nil &&
		qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.ClassID = core.CleanString(qf.ClassID)
	for i, role := range qf.Roles {
		qf.Roles[i] = core.CleanString(role, true /* lower */)
	}
}

// GetFilter selects a single User; the first non-empty field is used.
type GetFilter struct {
	ID              string
	Username        string
	Email           string
	UsernameOrEmail string
}

// validateRoleFields checks that role-specific fields are only set for that role.
func validateRoleFields(role string, classID, studentNumber *string, branchIDs []string) error {
	var flds []core.FieldError
	if role != RoleStudent {
		if classID != nil {
			flds = append(flds, core.FieldError{Field: "class_id", Error: "only students can belong to a class"})
		}
		if studentNumber != nil && *studentNumber != "" {
			flds = append(flds, core.FieldError{Field: "student_number", Error: "only students have a student number"})
		}
	}
	if role != RoleTeacher && len(branchIDs) > 0 {
		flds = append(flds, core.FieldError{Field: "branch_ids", Error: "only teachers have branches"})
	}
	if flds != nil {
		return core.NewValidationError(nil, flds...)
	}
	return nil
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	ts := strings.TrimSpace(*s)
	return &ts
}

func derefSlice(s *[]string) []string {
	if s == nil {
		return nil
	}
	return *s
}
