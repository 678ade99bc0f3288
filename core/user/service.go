package user

import (
	"context"
	"net/mail"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/academia/core"
)

var (
	// errors
	ErrNotFound            = core.NewNotFoundError("user not found")
	ErrEmailExists         = errors.New("a user with this email already exists")
	ErrUsernameExists      = errors.New("a user with this username already exists")
	ErrStudentNumberExists = errors.New("a user with this student number already exists")
	ErrAccountDeactivated  = errors.New("account deactivated")
	ErrClassNotFound       = errors.New("class not found")
	ErrBranchNotFound      = errors.New("branch not found")
	ErrNotAStudent         = errors.New("user is not a student")

	// dummyHash is compared against when no user matches the login identifier,
	// so that a failed login takes the same time whether the user exists or not.
	dummyHash     []byte
	dummyHashOnce sync.Once

	// UserOrderings maps the public fields users can be ordered by to their column.
	UserOrderings = map[string]string{
		"username":   "username",
		"email":      "email",
		"first_name": "first_name",
		"last_name":  "last_name",
		"role":       "role",
		"created_at": "created_at",
		"last_login": "last_login",
	}
)

type (
	Repository interface {
		// CheckUniqueness returns one of ErrUsernameExists, ErrEmailExists or ErrStudentNumberExists
		// when another user (not in excludedIDs) holds one of the non-empty values.
		CheckUniqueness(ctx context.Context, username, email string, studentNumber *string, excludedIDs ...string) error
		// CreateUser stores usr with its branches, enrolling a student into the courses of its class.
		CreateUser(ctx context.Context, usr User) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of the names, username, email or student number.
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering ...core.DBOrdering) ([]User, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		// UpdateUser saves every field of usr. A class change moves the student's enrolments
		// from the old class's courses to the new class's courses in the same transaction.
		UpdateUser(ctx context.Context, usr User) (User, error)
		SetStudentClass(ctx context.Context, studentID string, classID *string) (User, error)
		SetLastLogin(ctx context.Context, id string, at time.Time) (User, error)
		DeleteUsers(ctx context.Context, ids ...string) error
	}

	Service interface {
		CheckUniqueness(ctx context.Context, uname, email string, studentNumber *string, excludedIDs ...string) error
		Create(ctx context.Context, nu NewUser) (User, error)
		Register(ctx context.Context, nu NewUser) (User, error)
		Query(ctx context.Context, filter *QueryFilter, ordering ...core.DBOrdering) ([]User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		GetByUsernameOrEmail(ctx context.Context, uname string) (User, error)
		Update(ctx context.Context, id string, uu UpdateUser) (User, error)
		UpdateProfile(ctx context.Context, id string, up UpdateProfile) (User, error)
		SetClass(ctx context.Context, studentID string, classID *string) (User, error)
		Delete(ctx context.Context, ids ...string) error
		Authenticate(ctx context.Context, uname, pwd string) (User, error)
		RequestPasswordReset(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, data ResetUserPassword) (User, error)
	}

	service struct {
		repo     Repository
		mailSvc  core.EmailService
		tokenGen *tokenGenerator
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config) Service {
	return newService(repo, mailSvc, conf)
}

func newService(repo Repository, mailSvc core.EmailService, conf *core.Config) *service {
	return &service{
		repo:     repo,
		mailSvc:  mailSvc,
		tokenGen: newTokenGenerator(conf.SecretKey, conf.PasswordResetTimeoutDelta),
	}
}

func (svc *service) CheckUniqueness(ctx context.Context, uname, email string, studentNumber *string, excludedIDs ...string) error {
	if err := svc.repo.CheckUniqueness(ctx, uname, email, studentNumber, excludedIDs...); err != nil {
		return uniquenessError(err)
	}
	return nil
}

// uniquenessError turns a repository uniqueness error into a *core.ConflictError.
func uniquenessError(err error) error {
	var field string
	switch errors.Cause(err) {
	case ErrUsernameExists:
		field = "username"
	case ErrEmailExists:
		field = "email"
	case ErrStudentNumberExists:
		field = "student_number"
	case ErrClassNotFound:
		return core.NewValidationError(ErrClassNotFound, core.FieldError{Field: "class_id", Error: ErrClassNotFound.Error()})
	case ErrBranchNotFound:
		return core.NewValidationError(ErrBranchNotFound, core.FieldError{Field: "branch_ids", Error: ErrBranchNotFound.Error()})
	default:
		return err
	}
	cause := errors.Cause(err)
	return core.NewConflictError(cause, core.FieldError{Field: field, Error: cause.Error()})
}

func (svc *service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := time.Now().UTC()
	usr := User{
		Username:  nu.Username,
		Email:     nu.Email,
		FirstName: nu.FirstName,
		LastName:  nu.LastName,
		Role:      nu.Role,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	switch usr.Role {
	case RoleStudent:
		usr.ClassID = nu.ClassID
		usr.StudentNumber = nu.StudentNumber
	case RoleTeacher:
		usr.BranchIDs = nu.BranchIDs
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		return User{}, uniquenessError(err)
	}
	return usr, nil
}

// Register creates a student account; any other requested role is ignored.
func (svc *service) Register(ctx context.Context, nu NewUser) (User, error) {
	nu.Role = RoleStudent
	nu.BranchIDs = nil
	return svc.Create(ctx, nu)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering ...core.DBOrdering) ([]User, error) {
	return svc.repo.QueryUsers(ctx, filter, core.CleanOrderings(ordering, UserOrderings)...)
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

func (svc *service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{UsernameOrEmail: core.CleanString(uname, true /* lower */)})
}

func (svc *service) Update(ctx context.Context, id string, uu UpdateUser) (User, error) {
	origUsr, err := svc.GetByID(ctx, id)
	if err != nil {
		return User{}, errors.Wrap(err, "finding user by ID")
	}
	usr := uu.Apply(origUsr)
	usr.UpdatedAt = time.Now().UTC()
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, errors.Wrap(err, "setting password")
		}
	}
	usr, err = svc.repo.UpdateUser(ctx, usr)
	if err != nil {
		return User{}, uniquenessError(err)
	}
	return usr, nil
}

func (svc *service) UpdateProfile(ctx context.Context, id string, up UpdateProfile) (User, error) {
	return svc.Update(ctx, id, UpdateUser{
		FirstName: up.FirstName,
		LastName:  up.LastName,
		Password:  up.Password,
	})
}

// SetClass moves a student to classID (nil detaches the student from its class).
func (svc *service) SetClass(ctx context.Context, studentID string, classID *string) (User, error) {
	usr, err := svc.GetByID(ctx, studentID)
	if err != nil {
		return User{}, errors.Wrap(err, "finding user by ID")
	}
	if !usr.IsStudent() {
		return User{}, core.NewValidationError(ErrNotAStudent, core.FieldError{Field: "student_id", Error: ErrNotAStudent.Error()})
	}
	usr, err = svc.repo.SetStudentClass(ctx, studentID, classID)
	if err != nil {
		return User{}, uniquenessError(err)
	}
	return usr, nil
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	return svc.repo.DeleteUsers(ctx, ids...)
}

// Authenticate checks the credentials of the user identified by its username or email
// and records the login.
func (svc *service) Authenticate(ctx context.Context, uname, pwd string) (User, error) {
	usr, err := svc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		if core.IsNotFound(err) {
			dummyHashOnce.Do(func() {
				dummyHash, _ = bcrypt.GenerateFromPassword([]byte("academia"), bcrypt.DefaultCost)
			})
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(pwd))
			return User{}, core.ErrInvalidCredentials
		}
		return User{}, errors.Wrap(err, "finding user by username or email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return User{}, core.ErrInvalidCredentials
	}
	if !usr.IsActive {
		return User{}, ErrAccountDeactivated
	}
	usr, err = svc.repo.SetLastLogin(ctx, usr.ID, time.Now().UTC())
	if err != nil {
		return User{}, errors.Wrap(err, "setting lastLogin")
	}
	return usr, nil
}

// RequestPasswordReset emails a password reset link to the active user owning email.
func (svc *service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return ErrNotFound
	}
	svc.mailSvc.SendMessages(svc.passwordResetMessage(usr))
	return nil
}

func (svc *service) passwordResetMessage(usr User) *core.EmailMessage {
	return &core.EmailMessage{
		To:           []mail.Address{{Name: usr.FullName(), Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]interface{}{
			"Name":  usr.FullName(),
			"UID":   EncodeUID(usr),
			"Token": svc.tokenGen.makeToken(usr),
		},
	}
}

func (svc *service) ResetPassword(ctx context.Context, data ResetUserPassword) (User, error) {
	invalid := core.NewValidationError(errInvalidToken, core.FieldError{Field: "token", Error: errInvalidToken.Error()})

	id, err := decodeUID(data.UID)
	if err != nil {
		return User{}, invalid
	}
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		if core.IsNotFound(err) {
			return User{}, invalid
		}
		return User{}, errors.Wrap(err, "finding user by ID")
	}
	if err := svc.tokenGen.verifyToken(usr, data.Token); err != nil {
		return User{}, core.NewValidationError(err, core.FieldError{Field: "token", Error: err.Error()})
	}
	if err := usr.SetPassword(data.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}
