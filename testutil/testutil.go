// Package testutil holds the fixtures shared by package tests.
package testutil

import (
	"context"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

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
	inmemdb "github.com/trezcool/academia/storage/database/inmem"
)

// Password satisfies the password policy; fixtures users are created with it.
const Password = "Sup3r$ecret!"

type Services struct {
	Users       user.Service
	Branches    branch.Service
	Classes     class.Service
	Courses     course.Service
	Assignments assignment.Service
	Grades      grade.Service
	Points      points.Service
	Attendance  attendance.Service
	Messages    message.Service
	Badges      badge.Service
}

// NewServices wires every service over repos.
func NewServices(conf *core.Config, repos inmemdb.Repositories, mailSvc core.EmailService) Services {
	var s Services
	s.Users = user.NewService(repos.Users, mailSvc, conf)
	s.Branches = branch.NewService(repos.Branches)
	s.Classes = class.NewService(repos.Classes, s.Users)
	s.Courses = course.NewService(repos.Courses, s.Users, s.Classes, s.Branches)
	s.Assignments = assignment.NewService(repos.Assignments, s.Courses)
	s.Grades = grade.NewService(repos.Grades, s.Courses)
	s.Points = points.NewService(repos.Points, s.Courses)
	s.Attendance = attendance.NewService(repos.Attendance, s.Courses)
	s.Messages = message.NewService(repos.Messages, s.Users)
	s.Badges = badge.NewService(repos.Badges, s.Users)
	return s
}

// NewValidator returns a validator knowing every custom validation tag of the app.
func NewValidator() (*validator.Validate, ut.Translator) {
	translator := core.NewTranslator()
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	class.InitValidators(validate, translator)
	course.InitValidators(validate, translator)
	grade.InitValidators(validate, translator)
	return validate, translator
}

func StrPtr(s string) *string { return &s }

// CreateUser stores an active user with Password, straight through repo.
func CreateUser(t *testing.T, repo user.Repository, role, uname string, opts ...func(*user.User)) user.User {
	t.Helper()

	now := time.Now().UTC()
	usr := user.User{
		Username:  uname,
		Email:     uname + "@test.cd",
		FirstName: uname,
		LastName:  "Test",
		Role:      role,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, opt := range opts {
		opt(&usr)
	}
	if err := usr.SetPassword(Password); err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// InClass puts a student fixture into classID.
func InClass(classID string) func(*user.User) {
	return func(usr *user.User) { usr.ClassID = &classID }
}

func Inactive(usr *user.User) { usr.IsActive = false }

func CreateClass(t *testing.T, svc class.Service, name, year string, classTeacherID *string) class.Class {
	t.Helper()

	c, err := svc.Create(context.Background(), class.NewClass{Name: name, AcademicYear: year, ClassTeacherID: classTeacherID})
	if err != nil {
		t.Fatalf("CreateClass() failed: %v", err)
	}
	return c
}

func CreateCourse(t *testing.T, svc course.Service, name, code string, teacherID, classID *string) course.Course {
	t.Helper()

	c, err := svc.Create(context.Background(), course.NewCourse{Name: name, Code: code, TeacherID: teacherID, ClassID: classID})
	if err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	return c
}
