package models

const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// User represents an authenticated customer or administrator.
type User struct {
	BaseModel    `bson:",inline"`
	Name         string `json:"name" bson:"name"`
	Email        string `gorm:"uniqueIndex" json:"email" bson:"email"`
	Phone        string `json:"phone" bson:"phone"`
	PasswordHash string `json:"-" bson:"passwordHash"`
	Role         string `gorm:"default:customer" json:"role" bson:"role"`
	IsVerified   bool   `json:"isVerified" bson:"isVerified"`
}

// IsAdmin reports whether the user may use the admin surface.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
