package user

import (
	"bufio"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/trezcool/academia/core"
	appfs "github.com/trezcool/academia/fs"
)

var (
	userRoleTag  = "userrole"
	userRoleText = "invalid role"

	// password policy
	PasswordMinLen = 8
	pwdMinLenTag   = "pwdminlen"
	pwdMinLenText  = fmt.Sprintf("password must contain at least %d characters", PasswordMinLen)

	pwdNoSpaceTag  = "pwdnospace"
	pwdNoSpaceText = "password must not contain whitespace"

	pwdNotAllNumTag  = "pwdnotallnum"
	pwdNotAllNumText = "password cannot be entirely numeric"

	pwdComplexityTag  = "pwdcplx"
	pwdComplexityText = "password must contain at least 1 uppercase character, 1 lowercase character, 1 digit and 1 special character"
	specialRegex      = regexp.MustCompile("[^A-Za-z0-9]")

	pwdMaxSim      = .7
	pwdAttrSimTag  = "pwdtoosim"
	pwdAttrSimText = "password cannot be similar to user attributes"

	pwdNoCommonTag  = "pwdnocommon"
	pwdNoCommonText = "password is too common"
	commonPasswords []string

	errRoleNotAllowed = "not enough rights to set this role"
)

// InitValidators registers the user validators and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(userRoleTag, userRoleValidation)
	core.RegisterCustomTranslation(validate, translator, userRoleTag, userRoleText)

	validate.RegisterStructValidation(userStructValidation, NewUser{}, ResetUserPassword{})
	core.RegisterCustomTranslation(validate, translator, pwdMinLenTag, pwdMinLenText)
	core.RegisterCustomTranslation(validate, translator, pwdNoSpaceTag, pwdNoSpaceText)
	core.RegisterCustomTranslation(validate, translator, pwdNotAllNumTag, pwdNotAllNumText)
	core.RegisterCustomTranslation(validate, translator, pwdComplexityTag, pwdComplexityText)
	core.RegisterCustomTranslation(validate, translator, pwdAttrSimTag, pwdAttrSimText)
	core.RegisterCustomTranslation(validate, translator, pwdNoCommonTag, pwdNoCommonText)
}

// LoadCommonPasswords loads the embedded list of common passwords, lowered and sorted.
func LoadCommonPasswords(logger core.Logger) {
	pwds := make([]string, 0, 256)
	scanner := bufio.NewScanner(strings.NewReader(appfs.CommonPasswords))
	for scanner.Scan() {
		if pwd := strings.TrimSpace(scanner.Text()); pwd != "" {
			pwds = append(pwds, strings.ToLower(pwd))
		}
	}
	if err := scanner.Err(); err != nil && logger != nil {
		logger.Error(fmt.Sprintf("loading common passwords: %v", err), err)
	}
	sort.Strings(pwds)
	commonPasswords = pwds
}

// CheckSignupRole returns a ValidationError on "role" when role cannot be self-assigned.
func CheckSignupRole(role string) error {
	for _, r := range SignupRoles {
		if r == role {
			return nil
		}
	}
	return core.NewValidationError(nil, core.FieldError{Field: "role", Error: errRoleNotAllowed})
}

// Custom Validators

func userRoleValidation(fl validator.FieldLevel) bool {
	return IsValidRole(fl.Field().String())
}

// userStructValidation does struct level validation on NewUser and ResetUserPassword structs.
func userStructValidation(sl validator.StructLevel) {
	switch usr := sl.Current().Interface().(type) {
	case NewUser:
		if tag := checkPassword(usr.Password, usr.Name, usr.Email); tag != "" {
			sl.ReportError(usr.Password, "password", "Password", tag, "")
		}
	case ResetUserPassword:
		if tag := checkPassword(usr.Password); tag != "" {
			sl.ReportError(usr.Password, "password", "Password", tag, "")
		}
	}
}

// ValidatePassword applies the password policy to pwd and returns a ValidationError
// on the "password" field when it is not respected.
func ValidatePassword(pwd string, attrs ...string) error {
	tag := checkPassword(pwd, attrs...)
	if tag == "" {
		return nil
	}
	return core.NewValidationError(nil, core.FieldError{Field: "password", Error: policyTexts[tag]})
}

var policyTexts = map[string]string{
	pwdMinLenTag:     pwdMinLenText,
	pwdNoSpaceTag:    pwdNoSpaceText,
	pwdNotAllNumTag:  pwdNotAllNumText,
	pwdComplexityTag: pwdComplexityText,
	pwdAttrSimTag:    pwdAttrSimText,
	pwdNoCommonTag:   pwdNoCommonText,
}

// checkPassword applies the password policy to provided password and returns the tag
// of the first failing rule:
// - minLen: 8
// - no whitespace
// - no all numeric
// - complexity: 1 upper, 1 lower, 1 digit, 1 special
// - no user attrs similarity
// - no common password
func checkPassword(pwd string, attrs ...string) string {
	var (
		digitCount                             int
		hasUpper, hasLower, hasDig, hasSpecial bool
	)

	pwdLen := len([]rune(pwd))
	if pwdLen < PasswordMinLen {
		return pwdMinLenTag
	}
	for _, char := range pwd {
		if unicode.IsSpace(char) {
			return pwdNoSpaceTag
		}
		if unicode.IsDigit(char) {
			digitCount++
		}
		if !hasUpper && unicode.IsUpper(char) {
			hasUpper = true
		}
		if !hasLower && unicode.IsLower(char) {
			hasLower = true
		}
	}

	if digitCount == pwdLen {
		return pwdNotAllNumTag
	}

	hasDig = digitCount > 0
	hasSpecial = specialRegex.MatchString(pwd)
	if !(hasUpper && hasLower && hasDig && hasSpecial) {
		return pwdComplexityTag
	}

	getRatio := func(pass, usrAttr string) float64 {
		if usrAttr == "" {
			return 0
		}
		return difflib.NewMatcher(strings.Split(pass, ""), strings.Split(usrAttr, "")).QuickRatio()
	}
	lpwd := strings.ToLower(pwd)
	for _, attr := range attrs {
		if getRatio(lpwd, strings.ToLower(attr)) >= pwdMaxSim {
			return pwdAttrSimTag
		}
	}

	if idx := sort.SearchStrings(commonPasswords, lpwd); idx < len(commonPasswords) {
		if match := commonPasswords[idx]; lpwd == match {
			return pwdNoCommonTag
		}
	}
	return ""
}
