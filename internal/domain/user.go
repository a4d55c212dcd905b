package domain

// User is the read-only view of a platform account that owns tickets.
type User struct {
	ID    string
	Name  string
	Email string
}

// HasEmail reports whether the user can be reached by email.
func (u *User) HasEmail() bool {
	return u != nil && u.Email != ""
}
