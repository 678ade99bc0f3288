package assignment

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/course"
)

var (
	// errors
	ErrNotFound         = core.NewNotFoundError("assignment not found")
	ErrAlreadySubmitted = errors.New("assignment already submitted")
	ErrPastDue          = errors.New("the due date of this assignment has passed")
	ErrClassMismatch    = errors.New("the course is not held in this class")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateAssignment(ctx context.Context, a Assignment) (Assignment, error)
		// QueryAssignments returns the assignments matching filter, by due date.
		QueryAssignments(ctx context.Context, filter *QueryFilter) ([]Assignment, error)
		GetAssignment(ctx context.Context, id string) (Assignment, error)
		UpdateAssignment(ctx context.Context, a Assignment) (Assignment, error)
		DeleteAssignment(ctx context.Context, id string) error
		HasSubmitted(ctx context.Context, studentID, assignmentID string) (bool, error)
		// Submit stores the submission and adds its points to the student's course points
		// in one transaction. A second submission of the same assignment returns ErrAlreadySubmitted.
		Submit(ctx context.Context, sub SubmissionStatus) (SubmissionStatus, error)
		QuerySubmissions(ctx context.Context, filter SubmissionFilter) ([]SubmissionStatus, error)
	}

	CourseService interface {
		GetByID(ctx context.Context, id string) (course.Course, error)
		GetTaughtBy(ctx context.Context, id, teacherID string) (course.Course, error)
		GetEnrolled(ctx context.Context, id, studentID string) (course.Course, error)
		Query(ctx context.Context, filter *course.QueryFilter) ([]course.Course, error)
	}

	Service interface {
		Create(ctx context.Context, teacherID string, na NewAssignment) (Assignment, error)
		// QueryTeacher lists the assignments of the teacher's courses, optionally of one course.
		QueryTeacher(ctx context.Context, teacherID, courseID string) ([]Assignment, error)
		GetForTeacher(ctx context.Context, teacherID, id string) (Assignment, error)
		Update(ctx context.Context, teacherID, id string, ua UpdateAssignment) (Assignment, error)
		Delete(ctx context.Context, teacherID, id string) error
		Submissions(ctx context.Context, teacherID, id string) ([]SubmissionStatus, error)
		// QueryStudent lists the assignments of the student's courses with their submission status.
		QueryStudent(ctx context.Context, studentID string) ([]StudentAssignment, error)
		Submit(ctx context.Context, studentID, id string) (SubmissionStatus, error)
		StudentSubmissions(ctx context.Context, studentID, courseID string) ([]SubmissionStatus, error)
	}

	service struct {
		repo      Repository
		courseSvc CourseService
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, courseSvc CourseService) Service {
	return &service{repo: repo, courseSvc: courseSvc}
}

func alreadySubmitted() error {
	return core.NewConflictError(ErrAlreadySubmitted, core.FieldError{Field: "assignment_id", Error: ErrAlreadySubmitted.Error()})
}

func (svc *service) Create(ctx context.Context, teacherID string, na NewAssignment) (Assignment, error) {
	c, err := svc.courseSvc.GetTaughtBy(ctx, na.CourseID, teacherID)
	if err != nil {
		if core.IsNotFound(err) {
			return Assignment{}, core.NewValidationError(err, core.FieldError{Field: "course_id", Error: err.Error()})
		}
		return Assignment{}, err
	}

	classID := c.ClassID
	if na.ClassID != nil {
		if c.ClassID == nil || *c.ClassID != *na.ClassID {
			return Assignment{}, core.NewValidationError(ErrClassMismatch, core.FieldError{Field: "class_id", Error: ErrClassMismatch.Error()})
		}
	}
	pointValue := DefaultPointValue
	if na.PointValue != nil {
		pointValue = *na.PointValue
	}

	now := nowFunc().UTC()
	return svc.repo.CreateAssignment(ctx, Assignment{
		Title:       na.Title,
		Description: na.Description,
		DueDate:     na.DueDate.UTC(),
		TeacherID:   teacherID,
		CourseID:    c.ID,
		ClassID:     classID,
		PointValue:  pointValue,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func (svc *service) QueryTeacher(ctx context.Context, teacherID, courseID string) ([]Assignment, error) {
	if courseID != "" {
		if _, err := svc.courseSvc.GetTaughtBy(ctx, courseID, teacherID); err != nil {
			return nil, err
		}
		return svc.repo.QueryAssignments(ctx, &QueryFilter{CourseIDs: []string{courseID}})
	}
	courses, err := svc.courseSvc.Query(ctx, &course.QueryFilter{TeacherID: teacherID})
	if err != nil {
		return nil, errors.Wrap(err, "querying teacher courses")
	}
	if len(courses) == 0 {
		return []Assignment{}, nil
	}
	return svc.repo.QueryAssignments(ctx, &QueryFilter{CourseIDs: courseIDs(courses)})
}

func courseIDs(courses []course.Course) []string {
	ids := make([]string, 0, len(courses))
	for _, c := range courses {
		ids = append(ids, c.ID)
	}
	return ids
}

// GetForTeacher returns the assignment if it belongs to one of the teacher's courses.
func (svc *service) GetForTeacher(ctx context.Context, teacherID, id string) (Assignment, error) {
	a, err := svc.repo.GetAssignment(ctx, id)
	if err != nil {
		return Assignment{}, err
	}
	if _, err := svc.courseSvc.GetTaughtBy(ctx, a.CourseID, teacherID); err != nil {
		if core.IsNotFound(err) {
			return Assignment{}, ErrNotFound
		}
		return Assignment{}, err
	}
	return a, nil
}

func (svc *service) Update(ctx context.Context, teacherID, id string, ua UpdateAssignment) (Assignment, error) {
	a, err := svc.GetForTeacher(ctx, teacherID, id)
	if err != nil {
		return Assignment{}, err
	}
	a = ua.apply(a)
	a.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateAssignment(ctx, a)
}

func (svc *service) Delete(ctx context.Context, teacherID, id string) error {
	if _, err := svc.GetForTeacher(ctx, teacherID, id); err != nil {
		return err
	}
	return svc.repo.DeleteAssignment(ctx, id)
}

func (svc *service) Submissions(ctx context.Context, teacherID, id string) ([]SubmissionStatus, error) {
	if _, err := svc.GetForTeacher(ctx, teacherID, id); err != nil {
		return nil, err
	}
	return svc.repo.QuerySubmissions(ctx, SubmissionFilter{AssignmentID: id})
}

func (svc *service) QueryStudent(ctx context.Context, studentID string) ([]StudentAssignment, error) {
	courses, err := svc.courseSvc.Query(ctx, &course.QueryFilter{StudentID: studentID})
	if err != nil {
		return nil, errors.Wrap(err, "querying student courses")
	}
	if len(courses) == 0 {
		return []StudentAssignment{}, nil
	}
	assignments, err := svc.repo.QueryAssignments(ctx, &QueryFilter{CourseIDs: courseIDs(courses)})
	if err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	subs, err := svc.repo.QuerySubmissions(ctx, SubmissionFilter{StudentID: studentID})
	if err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	subsByAssignment := make(map[string]SubmissionStatus, len(subs))
	for _, s := range subs {
		subsByAssignment[s.AssignmentID] = s
	}

	now := nowFunc()
	res := make([]StudentAssignment, 0, len(assignments))
	for _, a := range assignments {
		sa := StudentAssignment{Assignment: a, IsPastDue: now.After(a.DueDate)}
		if s, ok := subsByAssignment[a.ID]; ok {
			s := s
			sa.Submission = &s
		}
		res = append(res, sa)
	}
	return res, nil
}

// Submit marks the assignment as submitted by the student and awards its point value.
func (svc *service) Submit(ctx context.Context, studentID, id string) (SubmissionStatus, error) {
	a, err := svc.repo.GetAssignment(ctx, id)
	if err != nil {
		return SubmissionStatus{}, err
	}
	if _, err := svc.courseSvc.GetEnrolled(ctx, a.CourseID, studentID); err != nil {
		if core.IsNotFound(err) {
			return SubmissionStatus{}, ErrNotFound
		}
		return SubmissionStatus{}, err
	}

	now := nowFunc().UTC()
	if now.After(a.DueDate) {
		return SubmissionStatus{}, core.NewValidationError(ErrPastDue, core.FieldError{Field: "due_date", Error: ErrPastDue.Error()})
	}

	done, err := svc.repo.HasSubmitted(ctx, studentID, id)
	if err != nil {
		return SubmissionStatus{}, errors.Wrap(err, "checking submission")
	}
	if done {
		return SubmissionStatus{}, alreadySubmitted()
	}

	sub, err := svc.repo.Submit(ctx, SubmissionStatus{
		StudentID:    studentID,
		AssignmentID: a.ID,
		CourseID:     a.CourseID,
		SubmittedAt:  now,
		IsSubmitted:  true,
		PointsEarned: a.PointValue,
	})
	if err != nil {
		if errors.Cause(err) == ErrAlreadySubmitted {
			return SubmissionStatus{}, alreadySubmitted()
		}
		return SubmissionStatus{}, errors.Wrap(err, "submitting assignment")
	}
	return sub, nil
}

func (svc *service) StudentSubmissions(ctx context.Context, studentID, courseID string) ([]SubmissionStatus, error) {
	return svc.repo.QuerySubmissions(ctx, SubmissionFilter{StudentID: studentID, CourseID: courseID})
}
