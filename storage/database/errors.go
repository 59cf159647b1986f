package database

import (
	"database/sql"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/invitation"
	"github.com/trezcool/academia/core/organization"
	"github.com/trezcool/academia/core/user"
)

const uniqueViolation = "23505"

// unique constraint name -> domain conflict
var uniqueViolations = map[string]error{
	"users_email_key":                             user.ErrEmailExists,
	"organizations_slug_key":                      organization.ErrSlugExists,
	"members_organization_id_user_id_key":         organization.ErrMemberExists,
	"teams_organization_id_slug_key":              organization.ErrTeamSlugExists,
	"team_members_pkey":                           organization.ErrTeamMemberExists,
	"invitations_token_key":                       invitation.ErrPendingExists,
	"enrollments_course_id_student_id_key":        course.ErrAlreadyEnrolled,
	"lesson_completions_student_id_lesson_id_key": course.ErrAlreadyCompleted,
}

// mapError translates driver errors into domain errors: no rows into notFound (when
// given) and unique violations into the conflict of the violated constraint.
func mapError(err error, notFound error) error {
	if err == nil {
		return nil
	}
	if notFound != nil && errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		if domainErr, ok := uniqueViolations[pqErr.Constraint]; ok {
			return domainErr
		}
	}
	return err
}
