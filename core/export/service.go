package export

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/dashboard"
	"github.com/trezcool/academia/core/user"
)

type (
	// Request selects what to export; StudentID only applies to progress exports.
	Request struct {
		Format    string `json:"format" query:"format" validate:"required,oneof=csv pdf"`
		Type      string `json:"type" query:"type" validate:"required,oneof=courses enrollment-trends progress"`
		StudentID string `json:"studentId" query:"studentId" validate:"omitempty,uuid"`
	}

	UserGetter interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	Service struct {
		dash  *dashboard.Service
		users UserGetter
	}
)

func (r *Request) Validate(validate *validator.Validate) error {
	r.Format = core.CleanString(r.Format, true)
	r.Type = core.CleanString(r.Type, true)
	r.StudentID = core.CleanString(r.StudentID)
	return validate.Struct(r)
}

func NewService(dash *dashboard.Service, users UserGetter) *Service {
	return &Service{dash: dash, users: users}
}

// Table builds the content of an export for caller. Course and trend exports cover the
// courses taught by caller; progress exports follow the dashboard progress rules.
func (svc *Service) Table(ctx context.Context, caller user.User, req Request) (Table, error) {
	switch req.Type {
	case KindCourses, KindEnrollmentTrends:
		if !caller.CanTeach() {
			return Table{}, core.ErrForbidden
		}
		dash, err := svc.dash.InstructorDashboard(ctx, caller.ID)
		if err != nil {
			return Table{}, errors.Wrap(err, "building instructor dashboard")
		}
		if req.Type == KindCourses {
			return CoursesTable(dash.Courses), nil
		}
		return TrendsTable(dash.EnrollmentTrends), nil

	case KindProgress:
		student := caller
		if req.StudentID != "" {
			student.ID = req.StudentID
		}
		// access is decided before the student is looked up
		rows, err := svc.dash.StudentProgress(ctx, caller, student.ID)
		if err != nil {
			return Table{}, err
		}
		if student.ID != caller.ID {
			if student, err = svc.users.GetByID(ctx, student.ID); err != nil {
				return Table{}, err
			}
		}
		return ProgressTable(student.Name, rows), nil
	}
	return Table{}, ErrUnknownKind
}

// Export builds and renders an export, stamped with the current date.
func (svc *Service) Export(ctx context.Context, caller user.User, req Request) (File, error) {
	if req.Format != FormatCSV && req.Format != FormatPDF {
		return File{}, ErrUnknownFormat
	}
	t, err := svc.Table(ctx, caller, req)
	if err != nil {
		return File{}, err
	}
	return Render(t, req.Format, core.NowFunc())
}
