package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/academia/core/course"
)

type courseRepository struct {
	db *DB
}

var _ course.Repository = (*courseRepository)(nil)

func NewCourseRepository(db *DB) course.Repository {
	return &courseRepository{db: db}
}

// Courses

// withInstructor fills the instructor's name; callers hold the lock.
func (repo *courseRepository) withInstructor(c course.Course) course.Course {
	if usr, ok := repo.db.t.users[c.InstructorID]; ok {
		c.InstructorName = usr.Name
	}
	return c
}

func (repo *courseRepository) CreateCourse(_ context.Context, c course.Course) (course.Course, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	c.InstructorName = ""
	repo.db.t.courses[c.ID] = c
	return c, nil
}

func (repo *courseRepository) GetCourseByID(_ context.Context, id string) (course.Course, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if c, ok := repo.db.t.courses[id]; ok {
		return repo.withInstructor(c), nil
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) QueryCourses(_ context.Context, filter course.QueryFilter) ([]course.Course, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	courses := make([]course.Course, 0)
	for _, c := range repo.db.t.courses {
		if filter.InstructorID != "" && c.InstructorID != filter.InstructorID {
			continue
		}
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		if filter.OrganizationID != "" && c.OrganizationID.String != filter.OrganizationID {
			continue
		}
		if filter.Search != "" && !containsFold(c.Title, filter.Search) && !containsFold(c.Description, filter.Search) {
			continue
		}
		courses = append(courses, repo.withInstructor(c))
	}
	sort.SliceStable(courses, func(i, j int) bool { return courses[i].CreatedAt.After(courses[j].CreatedAt) })
	return courses, nil
}

func (repo *courseRepository) UpdateCourse(_ context.Context, c course.Course) (course.Course, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.t.courses[c.ID]
	if !ok {
		return course.Course{}, course.ErrNotFound
	}
	orig.Title = c.Title
	orig.Description = c.Description
	orig.Status = c.Status
	orig.UpdatedAt = c.UpdatedAt
	repo.db.t.courses[c.ID] = orig
	return repo.withInstructor(orig), nil
}

// DeleteCourse removes the course with its modules, lessons, enrollments and completions.
func (repo *courseRepository) DeleteCourse(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.t.courses[id]; !ok {
		return course.ErrNotFound
	}
	delete(repo.db.t.courses, id)

	lessons := make(map[string]bool)
	for mid, m := range repo.db.t.modules {
		if m.CourseID != id {
			continue
		}
		for lid, l := range repo.db.t.lessons {
			if l.ModuleID == mid {
				lessons[lid] = true
				delete(repo.db.t.lessons, lid)
			}
		}
		delete(repo.db.t.modules, mid)
	}
	for cid, lc := range repo.db.t.completions {
		if lessons[lc.LessonID] {
			delete(repo.db.t.completions, cid)
		}
	}
	for eid, e := range repo.db.t.enrollments {
		if e.CourseID == id {
			delete(repo.db.t.enrollments, eid)
		}
	}
	return nil
}

// Modules

func (repo *courseRepository) CreateModule(_ context.Context, m course.Module) (course.Module, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.t.courses[m.CourseID]; !ok {
		return course.Module{}, course.ErrNotFound
	}
	m.Lessons = nil
	repo.db.t.modules[m.ID] = m
	return m, nil
}

func (repo *courseRepository) GetModuleByID(_ context.Context, courseID, moduleID string) (course.Module, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	m, ok := repo.db.t.modules[moduleID]
	if !ok || m.CourseID != courseID {
		return course.Module{}, course.ErrModuleNotFound
	}
	return m, nil
}

func (repo *courseRepository) QueryModules(_ context.Context, courseID string) ([]course.Module, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	modules := make([]course.Module, 0)
	for _, m := range repo.db.t.modules {
		if m.CourseID == courseID {
			modules = append(modules, m)
		}
	}
	sort.SliceStable(modules, func(i, j int) bool { return modules[i].Position < modules[j].Position })
	return modules, nil
}

func (repo *courseRepository) NextModulePosition(_ context.Context, courseID string) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	pos := 0
	for _, m := range repo.db.t.modules {
		if m.CourseID == courseID && m.Position > pos {
			pos = m.Position
		}
	}
	return pos + 1, nil
}

// Lessons

func (repo *courseRepository) CreateLesson(_ context.Context, l course.Lesson) (course.Lesson, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.t.modules[l.ModuleID]; !ok {
		return course.Lesson{}, course.ErrModuleNotFound
	}
	repo.db.t.lessons[l.ID] = l
	return l, nil
}

func (repo *courseRepository) GetCourseLesson(_ context.Context, courseID, lessonID string) (course.Lesson, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	l, ok := repo.db.t.lessons[lessonID]
	if !ok {
		return course.Lesson{}, course.ErrLessonNotFound
	}
	if m, ok := repo.db.t.modules[l.ModuleID]; !ok || m.CourseID != courseID {
		return course.Lesson{}, course.ErrLessonNotFound
	}
	return l, nil
}

// courseLessons returns the lessons of a course ordered by module then lesson position;
// callers hold the lock.
func (repo *courseRepository) courseLessons(courseID string) []course.Lesson {
	return courseLessons(repo.db.t, courseID)
}

func courseLessons(t tables, courseID string) []course.Lesson {
	lessons := make([]course.Lesson, 0)
	for _, l := range t.lessons {
		if m, ok := t.modules[l.ModuleID]; ok && m.CourseID == courseID {
			lessons = append(lessons, l)
		}
	}
	sort.SliceStable(lessons, func(i, j int) bool {
		mi, mj := t.modules[lessons[i].ModuleID].Position, t.modules[lessons[j].ModuleID].Position
		if mi != mj {
			return mi < mj
		}
		return lessons[i].Position < lessons[j].Position
	})
	return lessons
}

func (repo *courseRepository) QueryCourseLessons(_ context.Context, courseID string) ([]course.Lesson, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	return repo.courseLessons(courseID), nil
}

func (repo *courseRepository) NextLessonPosition(_ context.Context, moduleID string) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	pos := 0
	for _, l := range repo.db.t.lessons {
		if l.ModuleID == moduleID && l.Position > pos {
			pos = l.Position
		}
	}
	return pos + 1, nil
}

// Enrollments & completions

func (repo *courseRepository) CreateEnrollment(_ context.Context, e course.Enrollment) (course.Enrollment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, other := range repo.db.t.enrollments {
		if other.CourseID == e.CourseID && other.StudentID == e.StudentID {
			return course.Enrollment{}, course.ErrAlreadyEnrolled
		}
	}
	repo.db.t.enrollments[e.ID] = e
	return e, nil
}

func (repo *courseRepository) EnrollmentExists(_ context.Context, courseID, studentID string) (bool, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, e := range repo.db.t.enrollments {
		if e.CourseID == courseID && e.StudentID == studentID {
			return true, nil
		}
	}
	return false, nil
}

func (repo *courseRepository) CreateLessonCompletion(_ context.Context, lc course.LessonCompletion) (course.LessonCompletion, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, other := range repo.db.t.completions {
		if other.LessonID == lc.LessonID && other.StudentID == lc.StudentID {
			return course.LessonCompletion{}, course.ErrAlreadyCompleted
		}
	}
	repo.db.t.completions[lc.ID] = lc
	return lc, nil
}

func (repo *courseRepository) CountCourseLessons(_ context.Context, courseID string) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	return len(repo.courseLessons(courseID)), nil
}

func (repo *courseRepository) CountCompletedLessons(_ context.Context, courseID, studentID string) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	return countCompleted(repo.db.t, courseID, studentID), nil
}

func countCompleted(t tables, courseID, studentID string) int {
	var n int
	for _, lc := range t.completions {
		if lc.StudentID != studentID {
			continue
		}
		l, ok := t.lessons[lc.LessonID]
		if !ok {
			continue
		}
		if m, ok := t.modules[l.ModuleID]; ok && m.CourseID == courseID {
			n++
		}
	}
	return n
}
