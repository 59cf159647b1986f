package user

import (
	"context"
	"net/mail"
	"net/url"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
)

var (
	// errors
	ErrNotFound           = core.NewAppError(core.KindNotFound, "user not found")
	ErrEmailExists        = core.NewAppError(core.KindConflict, "a user with this email already exists")
	ErrAccountDeactivated = core.NewAppError(core.KindForbidden, "account deactivated")
	ErrInvalidCredentials = core.NewValidationError(errors.New("invalid credentials"))
)

type (
	Repository interface {
		// CreateUser returns ErrEmailExists when the email is taken.
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUserByID(ctx context.Context, id string) (User, error)
		GetUserByEmail(ctx context.Context, email string) (User, error)
		QueryUsers(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
	}

	Service struct {
		repo    Repository
		mailSvc core.EmailService
		tokens  *TokenGenerator
		conf    *core.Config
	}

	// QueryFilter applies AND operation on its set fields; Search does a case-insensitive
	// match on one of User.Name or User.Email.
	QueryFilter struct {
		Search   string `query:"search"`
		Role     string `query:"role"`
		IsActive *bool  `query:"is_active"`
	}
)

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config) *Service {
	return &Service{
		repo:    repo,
		mailSvc: mailSvc,
		tokens:  NewTokenGenerator(conf.SecretKey, conf.PasswordResetTimeoutDelta),
		conf:    conf,
	}
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Role = core.CleanString(qf.Role, true /* lower */)
}

// CheckUniqueness returns a ValidationError on the "email" field if the email is taken.
func (svc *Service) CheckUniqueness(ctx context.Context, email string, excludedUsers ...User) error {
	usr, err := svc.repo.GetUserByEmail(ctx, email)
	switch {
	case errors.Cause(err) == ErrNotFound:
		return nil
	case err != nil:
		return errors.Wrap(err, "finding user by email")
	}
	for _, excl := range excludedUsers {
		if excl.ID == usr.ID {
			return nil
		}
	}
	return core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
}

func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := core.NowFunc()
	usr := User{
		ID:        core.NewID(),
		Name:      nu.Name,
		Email:     nu.Email,
		Role:      nu.Role,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if usr.Role == "" {
		usr.Role = RoleStudent
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	usr, err := svc.repo.CreateUser(ctx, usr)
	if errors.Cause(err) == ErrEmailExists {
		return User{}, core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
	}
	return usr, errors.Wrap(err, "creating user")
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]User, error) {
	return svc.repo.QueryUsers(ctx, filter, ordering...)
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	if !core.IsValidID(id) {
		return User{}, ErrNotFound
	}
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
}

// Authenticate checks the credentials of an active user and records the login.
func (svc *Service) Authenticate(ctx context.Context, email, pwd string) (User, error) {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, ErrInvalidCredentials
		}
		return User{}, errors.Wrap(err, "finding user by email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return User{}, ErrInvalidCredentials
	}
	if !usr.IsActive {
		return User{}, ErrAccountDeactivated
	}
	usr, err = svc.SetLastLogin(ctx, usr)
	return usr, errors.Wrap(err, "setting lastLogin")
}

func (svc *Service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin.SetValid(core.NowFunc())
	return svc.repo.UpdateUser(ctx, usr)
}

// FindOrCreate returns the user owning email, creating an active student with the given
// name and password when there is none. name and password are only required in that case;
// the password then only needs PasswordMinLen characters.
func (svc *Service) FindOrCreate(ctx context.Context, email, name, pwd string) (usr User, created bool, err error) {
	email = core.CleanString(email, true /* lower */)
	usr, err = svc.repo.GetUserByEmail(ctx, email)
	if err == nil {
		return usr, false, nil
	}
	if errors.Cause(err) != ErrNotFound {
		return User{}, false, errors.Wrap(err, "finding user by email")
	}

	name = core.CleanString(name)
	var fldErrs []core.FieldError
	if name == "" {
		fldErrs = append(fldErrs, core.FieldError{Field: "name", Error: "this field is required"})
	}
	switch {
	case pwd == "":
		fldErrs = append(fldErrs, core.FieldError{Field: "password", Error: "this field is required"})
	case len([]rune(pwd)) < PasswordMinLen:
		fldErrs = append(fldErrs, core.FieldError{Field: "password", Error: pwdMinLenText})
	}
	if len(fldErrs) > 0 {
		return User{}, false, core.NewValidationError(nil, fldErrs...)
	}

	usr, err = svc.Create(ctx, NewUser{Name: name, Email: email, Password: pwd, Role: RoleStudent})
	if err != nil {
		return User{}, false, err
	}
	return usr, true, nil
}

// SetPassword sets a new password for the user with the given email.
func (svc *Service) SetPassword(ctx context.Context, email, pwd string) (User, error) {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return User{}, errors.Wrap(err, "finding user by email")
	}
	if err = usr.SetPassword(pwd); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateUser(ctx, usr)
}

// SetActive activates or deactivates a user.
func (svc *Service) SetActive(ctx context.Context, id string, active bool) (User, error) {
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return User{}, errors.Wrap(err, "finding user by ID")
	}
	usr.IsActive = active
	usr.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateUser(ctx, usr)
}

// RequestPasswordReset emails a password reset link to the active user owning email.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return ErrNotFound
	}

	token, err := svc.tokens.MakeToken(usr)
	if err != nil {
		return errors.Wrap(err, "making token")
	}
	q := make(url.Values)
	q.Set("uid", EncodeUID(usr))
	q.Set("token", token)

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]interface{}{
			"Name": usr.Name,
			"URL":  svc.conf.FrontendBaseURL + "/password-reset?" + q.Encode(),
		},
	})
	return nil
}

// ResetPassword sets a new password for the user after checking their reset token.
func (svc *Service) ResetPassword(ctx context.Context, data ResetUserPassword) (User, error) {
	uid, err := DecodeUID(data.UID)
	if err != nil {
		return User{}, errInvalidToken
	}
	usr, err := svc.GetByID(ctx, uid)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, errInvalidToken
		}
		return User{}, errors.Wrap(err, "finding user by ID")
	}
	if err = svc.tokens.VerifyToken(usr, data.Token); err != nil {
		return User{}, err
	}
	if err = ValidatePassword(data.Password, usr.Name, usr.Email); err != nil {
		return User{}, err
	}

	if err = usr.SetPassword(data.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateUser(ctx, usr)
}
