package identity

// UserIdentity adapts a User into the Identity interface for token generation.
type UserIdentity struct {
	user *User
}

// NewIdentityFromUser returns an Identity adapter for the provided user.
func NewIdentityFromUser(user *User) Identity {
	if user == nil {
		return nil
	}
	return UserIdentity{user: user}
}

// ID returns the user's ID as a string.
func (u UserIdentity) ID() string {
	if u.user == nil {
		return ""
	}
	return u.user.ID.String()
}

// Email returns the user's email address.
func (u UserIdentity) Email() string {
	if u.user == nil {
		return ""
	}
	return u.user.Email
}

// FirstName returns the user's first name.
func (u UserIdentity) FirstName() string {
	if u.user == nil {
		return ""
	}
	return u.user.FirstName
}

// LastName returns the user's last name.
func (u UserIdentity) LastName() string {
	if u.user == nil {
		return ""
	}
	return u.user.LastName
}

// Verified reports whether the underlying account redeemed its verification token.
func (u UserIdentity) Verified() bool {
	if u.user == nil {
		return false
	}
	return u.user.Verified
}
