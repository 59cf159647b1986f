package user_test

import (
	"context"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/user"
	"github.com/trezcool/academia/tests"
)

const pwd = "Pa$$w0rd!"

func newValidator() *validator.Validate {
	enLocale := en.New()
	translator, _ := ut.New(enLocale, enLocale).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	user.LoadCommonPasswords(nil)
	return validate
}

func TestNewUserValidate(t *testing.T) {
	env := testutil.NewEnv(t)
	validate := newValidator()
	testutil.CreateUser(t, env.UserRepo, "Taken", "taken@test.test", pwd, user.RoleStudent, true)

	tests := []struct {
		name      string
		nu        user.NewUser
		wantField string
	}{
		{
			name: "valid",
			nu:   user.NewUser{Name: " Jane ", Email: " JANE@Test.test", Password: "Xy7#pqRt!", PasswordConfirm: "Xy7#pqRt!"},
		},
		{
			name:      "short password",
			nu:        user.NewUser{Name: "Jane", Email: "jane@test.test", Password: "Xy7#", PasswordConfirm: "Xy7#"},
			wantField: "password",
		},
		{
			name:      "numeric password",
			nu:        user.NewUser{Name: "Jane", Email: "jane@test.test", Password: "12345678901", PasswordConfirm: "12345678901"},
			wantField: "password",
		},
		{
			name:      "password confirm mismatch",
			nu:        user.NewUser{Name: "Jane", Email: "jane@test.test", Password: "Xy7#pqRt!", PasswordConfirm: "Xy7#pqRt?"},
			wantField: "password_confirm",
		},
		{
			name:      "invalid role",
			nu:        user.NewUser{Name: "Jane", Email: "jane@test.test", Password: "Xy7#pqRt!", PasswordConfirm: "Xy7#pqRt!", Role: "god"},
			wantField: "role",
		},
		{
			name:      "email taken",
			nu:        user.NewUser{Name: "Jane", Email: "Taken@test.test", Password: "Xy7#pqRt!", PasswordConfirm: "Xy7#pqRt!"},
			wantField: "email",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			nu := tc.nu
			err := nu.Validate(context.Background(), validate, env.UserSvc)
			if tc.wantField == "" {
				require.NoError(t, err)
				assert.Equal(t, "Jane", nu.Name)
				assert.Equal(t, "jane@test.test", nu.Email)
				assert.Equal(t, user.RoleStudent, nu.Role)
				return
			}
			require.Error(t, err)

			var vErrs validator.ValidationErrors
			if errors.As(err, &vErrs) {
				fields := make([]string, 0, len(vErrs))
				for _, fe := range vErrs {
					fields = append(fields, fe.Field())
				}
				assert.Contains(t, fields, tc.wantField)
				return
			}
			var appErr *core.ValidationError
			require.True(t, errors.As(err, &appErr), "unexpected error: %v", err)
			assert.Equal(t, tc.wantField, appErr.Fields[0].Field)
		})
	}
}

func TestCreateAndAuthenticate(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	usr, err := env.UserSvc.Create(ctx, user.NewUser{Name: "Jane", Email: "jane@test.test", Password: pwd})
	require.NoError(t, err)
	assert.Equal(t, user.RoleStudent, usr.Role)
	assert.True(t, usr.IsActive)
	assert.NoError(t, usr.CheckPassword(pwd))

	_, err = env.UserSvc.Create(ctx, user.NewUser{Name: "Jane 2", Email: "jane@test.test", Password: pwd})
	var vErr *core.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "email", vErr.Fields[0].Field)

	_, err = env.UserSvc.Authenticate(ctx, "jane@test.test", "wrong")
	assert.Equal(t, user.ErrInvalidCredentials, err)
	_, err = env.UserSvc.Authenticate(ctx, "nobody@test.test", pwd)
	assert.Equal(t, user.ErrInvalidCredentials, err)

	usr, err = env.UserSvc.Authenticate(ctx, " JANE@test.test ", pwd)
	require.NoError(t, err)
	assert.True(t, usr.LastLogin.Valid)

	_, err = env.UserSvc.SetActive(ctx, usr.ID, false)
	require.NoError(t, err)
	_, err = env.UserSvc.Authenticate(ctx, usr.Email, pwd)
	assert.Equal(t, user.ErrAccountDeactivated, errors.Cause(err))
}

func TestFindOrCreate(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	existing := testutil.CreateUser(t, env.UserRepo, "Existing", "existing@test.test", pwd, user.RoleInstructor, true)

	usr, created, err := env.UserSvc.FindOrCreate(ctx, "EXISTING@test.test", "", "")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, existing.ID, usr.ID)

	_, _, err = env.UserSvc.FindOrCreate(ctx, "new@test.test", "", "short")
	var vErr *core.ValidationError
	require.True(t, errors.As(err, &vErr))
	require.Len(t, vErr.Fields, 2)
	assert.Equal(t, "name", vErr.Fields[0].Field)
	assert.Equal(t, "password", vErr.Fields[1].Field)

	// only the minimum length applies to invitees
	usr, created, err = env.UserSvc.FindOrCreate(ctx, "new@test.test", "Newbie", "password")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, user.RoleStudent, usr.Role)
	assert.Equal(t, "new@test.test", usr.Email)
}

func TestPasswordReset(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	usr := testutil.CreateUser(t, env.UserRepo, "Jane", "jane@test.test", pwd, user.RoleStudent, true)
	inactive := testutil.CreateUser(t, env.UserRepo, "Off", "off@test.test", pwd, user.RoleStudent, false)

	require.NoError(t, env.UserSvc.RequestPasswordReset(ctx, usr.Email))
	sent := env.Mail.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, usr.Email, sent[0].To[0].Address)
	assert.Contains(t, sent[0].TextContent, "/password-reset?")

	assert.Equal(t, user.ErrNotFound, errors.Cause(env.UserSvc.RequestPasswordReset(ctx, inactive.Email)))

	uid, token, err := env.UserSvc.ResetCredentials(usr)
	require.NoError(t, err)

	_, err = env.UserSvc.ResetPassword(ctx, user.ResetUserPassword{UID: uid, Token: "bad-token-x", Password: "N3w#Secret!"})
	assert.Error(t, err)

	_, err = env.UserSvc.ResetPassword(ctx, user.ResetUserPassword{UID: uid, Token: token, Password: "weak"})
	var vErr *core.ValidationError
	require.True(t, errors.As(err, &vErr))

	usr, err = env.UserSvc.ResetPassword(ctx, user.ResetUserPassword{UID: uid, Token: token, Password: "N3w#Secret!"})
	require.NoError(t, err)
	assert.NoError(t, usr.CheckPassword("N3w#Secret!"))

	// the token is bound to the old password hash
	_, err = env.UserSvc.ResetPassword(ctx, user.ResetUserPassword{UID: uid, Token: token, Password: "An0ther#One!"})
	assert.Error(t, err)
}
