package models

// RelatedUser is the projection of a parent/child link returned by the host
// relationship store: the linked user with basic profile fields.
type RelatedUser struct {
	UserID    int64  `db:"user_id" json:"user_id"`
	Username  string `db:"username" json:"username"`
	FirstName string `db:"first_name" json:"first_name"`
	LastName  string `db:"last_name" json:"last_name"`
}

// FullName returns the display name used in navigation links and emails.
func (u RelatedUser) FullName() string {
	if u.FirstName == "" {
		return u.LastName
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
