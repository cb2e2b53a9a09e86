package models

// User is the slice of the host user record this service reads.
// LastLogin is unix seconds, zero when the user never logged in.
type User struct {
	ID        int64  `db:"id" json:"id"`
	Username  string `db:"username" json:"username"`
	FirstName string `db:"first_name" json:"first_name"`
	LastName  string `db:"last_name" json:"last_name"`
	Email     string `db:"email" json:"email"`
	LastLogin int64  `db:"last_login" json:"last_login"`
}
