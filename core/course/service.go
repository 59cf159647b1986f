package course

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/organization"
	"github.com/trezcool/academia/core/user"
)

var (
	// errors
	ErrNotFound         = core.NewAppError(core.KindNotFound, "course not found")
	ErrModuleNotFound   = core.NewAppError(core.KindNotFound, "module not found")
	ErrLessonNotFound   = core.NewAppError(core.KindNotFound, "lesson not found")
	ErrAlreadyEnrolled  = core.NewAppError(core.KindConflict, "already enrolled in this course")
	ErrNotEnrolled      = core.NewAppError(core.KindForbidden, "not enrolled in this course")
	ErrNotOpen          = core.NewAppError(core.KindForbidden, "course is not open for enrollment")
	ErrAlreadyCompleted = core.NewAppError(core.KindConflict, "lesson already completed")
	ErrInstructorOnly   = core.NewAppError(core.KindForbidden, "only instructors can manage courses")
	ErrNotCourseOwner   = core.NewAppError(core.KindForbidden, "only the course instructor can do this")
	ErrNotOrgMember     = core.NewAppError(core.KindForbidden, "not a member of this organization")
)

type (
	Repository interface {
		CreateCourse(ctx context.Context, c Course) (Course, error)
		GetCourseByID(ctx context.Context, id string) (Course, error)
		QueryCourses(ctx context.Context, filter QueryFilter) ([]Course, error)
		UpdateCourse(ctx context.Context, c Course) (Course, error)
		DeleteCourse(ctx context.Context, id string) error

		CreateModule(ctx context.Context, m Module) (Module, error)
		GetModuleByID(ctx context.Context, courseID, moduleID string) (Module, error)
		QueryModules(ctx context.Context, courseID string) ([]Module, error)
		NextModulePosition(ctx context.Context, courseID string) (int, error)

		CreateLesson(ctx context.Context, l Lesson) (Lesson, error)
		// GetCourseLesson returns ErrLessonNotFound if the lesson is not part of the course.
		GetCourseLesson(ctx context.Context, courseID, lessonID string) (Lesson, error)
		QueryCourseLessons(ctx context.Context, courseID string) ([]Lesson, error)
		NextLessonPosition(ctx context.Context, moduleID string) (int, error)

		// CreateEnrollment returns ErrAlreadyEnrolled on a second enrollment.
		CreateEnrollment(ctx context.Context, e Enrollment) (Enrollment, error)
		EnrollmentExists(ctx context.Context, courseID, studentID string) (bool, error)

		// CreateLessonCompletion returns ErrAlreadyCompleted when the lesson is already completed.
		CreateLessonCompletion(ctx context.Context, lc LessonCompletion) (LessonCompletion, error)
		CountCourseLessons(ctx context.Context, courseID string) (int, error)
		CountCompletedLessons(ctx context.Context, courseID, studentID string) (int, error)
	}

	Service struct {
		repo   Repository
		orgSvc *organization.Service
		tx     core.TxRunner
	}
)

func NewService(repo Repository, orgSvc *organization.Service, tx core.TxRunner) *Service {
	return &Service{repo: repo, orgSvc: orgSvc, tx: tx}
}

func canManage(c Course, usr user.User) bool {
	return c.InstructorID == usr.ID || usr.IsAdmin()
}

func (svc *Service) find(ctx context.Context, courseID string) (Course, error) {
	if !core.IsValidID(courseID) {
		return Course{}, ErrNotFound
	}
	return svc.repo.GetCourseByID(ctx, courseID)
}

// findVisible hides drafts from everyone but their instructor and admins.
func (svc *Service) findVisible(ctx context.Context, courseID string, caller user.User) (Course, error) {
	c, err := svc.find(ctx, courseID)
	if err != nil {
		return Course{}, err
	}
	if c.Status == StatusDraft && !canManage(c, caller) {
		return Course{}, ErrNotFound
	}
	return c, nil
}

func (svc *Service) findManaged(ctx context.Context, courseID string, caller user.User) (Course, error) {
	c, err := svc.findVisible(ctx, courseID, caller)
	if err != nil {
		return Course{}, err
	}
	if !canManage(c, caller) {
		return Course{}, ErrNotCourseOwner
	}
	return c, nil
}

func (svc *Service) findOwned(ctx context.Context, courseID string, caller user.User) (Course, error) {
	c, err := svc.findVisible(ctx, courseID, caller)
	if err != nil {
		return Course{}, err
	}
	if c.InstructorID != caller.ID {
		return Course{}, ErrNotCourseOwner
	}
	return c, nil
}

func (svc *Service) Create(ctx context.Context, caller user.User, nc NewCourse) (Course, error) {
	if !caller.CanTeach() {
		return Course{}, ErrInstructorOnly
	}
	if nc.OrganizationID != "" {
		ok, err := svc.orgSvc.IsMember(ctx, nc.OrganizationID, caller.ID)
		if err != nil {
			return Course{}, errors.Wrap(err, "checking membership")
		}
		if !ok {
			return Course{}, ErrNotOrgMember
		}
	}

	now := core.NowFunc()
	c, err := svc.repo.CreateCourse(ctx, Course{
		ID:             core.NewID(),
		OrganizationID: null.NewString(nc.OrganizationID, nc.OrganizationID != ""),
		InstructorID:   caller.ID,
		Title:          nc.Title,
		Description:    nc.Description,
		Status:         StatusDraft,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		return Course{}, errors.Wrap(err, "creating course")
	}
	c.InstructorName = caller.Name
	return c, nil
}

// Get returns the course with its modules and lessons in order.
func (svc *Service) Get(ctx context.Context, courseID string, caller user.User) (Details, error) {
	c, err := svc.findVisible(ctx, courseID, caller)
	if err != nil {
		return Details{}, err
	}
	modules, err := svc.repo.QueryModules(ctx, c.ID)
	if err != nil {
		return Details{}, errors.Wrap(err, "querying modules")
	}
	lessons, err := svc.repo.QueryCourseLessons(ctx, c.ID)
	if err != nil {
		return Details{}, errors.Wrap(err, "querying lessons")
	}

	byModule := make(map[string][]Lesson, len(modules))
	for _, l := range lessons {
		byModule[l.ModuleID] = append(byModule[l.ModuleID], l)
	}
	sort.SliceStable(modules, func(i, j int) bool { return modules[i].Position < modules[j].Position })
	for i := range modules {
		ls := byModule[modules[i].ID]
		sort.SliceStable(ls, func(a, b int) bool { return ls[a].Position < ls[b].Position })
		if ls == nil {
			ls = []Lesson{}
		}
		modules[i].Lessons = ls
	}
	if modules == nil {
		modules = []Module{}
	}
	return Details{Course: c, Modules: modules}, nil
}

// List returns published courses, or the caller's own courses when filter.Mine is set.
func (svc *Service) List(ctx context.Context, caller user.User, filter QueryFilter) ([]Course, error) {
	if filter.Mine {
		filter.InstructorID = caller.ID
		filter.Status = ""
	} else {
		filter.InstructorID = ""
		filter.Status = StatusPublished
	}
	return svc.repo.QueryCourses(ctx, filter)
}

func (svc *Service) Update(ctx context.Context, courseID string, caller user.User, uc UpdateCourse) (Course, error) {
	c, err := svc.findManaged(ctx, courseID, caller)
	if err != nil {
		return Course{}, err
	}
	if uc.Title != nil {
		c.Title = *uc.Title
	}
	if uc.Description != nil {
		c.Description = *uc.Description
	}
	if uc.Status != nil {
		c.Status = *uc.Status
	}
	c.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateCourse(ctx, c)
}

func (svc *Service) Delete(ctx context.Context, courseID string, caller user.User) error {
	c, err := svc.findManaged(ctx, courseID, caller)
	if err != nil {
		return err
	}
	return svc.repo.DeleteCourse(ctx, c.ID)
}

// AddModule appends a module to the course.
func (svc *Service) AddModule(ctx context.Context, courseID string, caller user.User, nm NewModule) (Module, error) {
	c, err := svc.findOwned(ctx, courseID, caller)
	if err != nil {
		return Module{}, err
	}
	var m Module
	err = svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		pos, err := svc.repo.NextModulePosition(ctx, c.ID)
		if err != nil {
			return errors.Wrap(err, "getting next position")
		}
		m, err = svc.repo.CreateModule(ctx, Module{ID: core.NewID(), CourseID: c.ID, Title: nm.Title, Position: pos})
		return errors.Wrap(err, "creating module")
	})
	m.Lessons = []Lesson{}
	return m, err
}

// AddLesson appends a lesson to a module of the course.
func (svc *Service) AddLesson(ctx context.Context, courseID, moduleID string, caller user.User, nl NewLesson) (Lesson, error) {
	c, err := svc.findOwned(ctx, courseID, caller)
	if err != nil {
		return Lesson{}, err
	}
	if !core.IsValidID(moduleID) {
		return Lesson{}, ErrModuleNotFound
	}
	var l Lesson
	err = svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		m, err := svc.repo.GetModuleByID(ctx, c.ID, moduleID)
		if err != nil {
			return err
		}
		pos, err := svc.repo.NextLessonPosition(ctx, m.ID)
		if err != nil {
			return errors.Wrap(err, "getting next position")
		}
		l, err = svc.repo.CreateLesson(ctx, Lesson{
			ID:              core.NewID(),
			ModuleID:        m.ID,
			Title:           nl.Title,
			Content:         nl.Content,
			Position:        pos,
			DurationMinutes: nl.DurationMinutes,
		})
		return errors.Wrap(err, "creating lesson")
	})
	return l, err
}

// Enroll enrolls the student in a published course.
func (svc *Service) Enroll(ctx context.Context, courseID string, student user.User) (Enrollment, error) {
	c, err := svc.findVisible(ctx, courseID, student)
	if err != nil {
		return Enrollment{}, err
	}
	if !c.IsPublished() {
		return Enrollment{}, ErrNotOpen
	}
	return svc.repo.CreateEnrollment(ctx, Enrollment{
		ID:         core.NewID(),
		CourseID:   c.ID,
		StudentID:  student.ID,
		EnrolledAt: core.NowFunc(),
	})
}

func (svc *Service) requireEnrollment(ctx context.Context, courseID, studentID string) (Course, error) {
	c, err := svc.find(ctx, courseID)
	if err != nil {
		return Course{}, err
	}
	ok, err := svc.repo.EnrollmentExists(ctx, c.ID, studentID)
	if err != nil {
		return Course{}, errors.Wrap(err, "checking enrollment")
	}
	if !ok {
		return Course{}, ErrNotEnrolled
	}
	return c, nil
}

// CompleteLesson marks the lesson done for the student; completing it twice is a no-op.
func (svc *Service) CompleteLesson(ctx context.Context, courseID, lessonID, studentID string) (Progress, error) {
	c, err := svc.requireEnrollment(ctx, courseID, studentID)
	if err != nil {
		return Progress{}, err
	}
	if !core.IsValidID(lessonID) {
		return Progress{}, ErrLessonNotFound
	}
	if _, err = svc.repo.GetCourseLesson(ctx, c.ID, lessonID); err != nil {
		return Progress{}, err
	}
	_, err = svc.repo.CreateLessonCompletion(ctx, LessonCompletion{
		ID:          core.NewID(),
		StudentID:   studentID,
		LessonID:    lessonID,
		CompletedAt: core.NowFunc(),
	})
	if err != nil && errors.Cause(err) != ErrAlreadyCompleted {
		return Progress{}, errors.Wrap(err, "completing lesson")
	}
	return svc.progress(ctx, c.ID, studentID)
}

// Progress returns the progress of an enrolled student in the course.
func (svc *Service) Progress(ctx context.Context, courseID, studentID string) (Progress, error) {
	c, err := svc.requireEnrollment(ctx, courseID, studentID)
	if err != nil {
		return Progress{}, err
	}
	return svc.progress(ctx, c.ID, studentID)
}

func (svc *Service) progress(ctx context.Context, courseID, studentID string) (Progress, error) {
	total, err := svc.repo.CountCourseLessons(ctx, courseID)
	if err != nil {
		return Progress{}, errors.Wrap(err, "counting lessons")
	}
	completed, err := svc.repo.CountCompletedLessons(ctx, courseID, studentID)
	if err != nil {
		return Progress{}, errors.Wrap(err, "counting completed lessons")
	}
	return NewProgress(courseID, completed, total), nil
}
