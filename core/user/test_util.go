package user

// ResetCredentials returns the uid and token of a password reset link for usr,
// as they are emailed by RequestPasswordReset.
func (svc *Service) ResetCredentials(usr User) (uid, token string, err error) {
	token, err = svc.tokens.MakeToken(usr)
	if err != nil {
		return "", "", err
	}
	return EncodeUID(usr), token, nil
}
