// models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Valid roles, lowest to highest privilege.
const (
	RoleUser       = "user"
	RoleAdmin      = "admin"
	RoleAuditor    = "auditor"
	RoleSuperadmin = "superadmin"
)

type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Email        string             `bson:"email" json:"email"`
	PasswordHash string             `bson:"passwordHash" json:"-"`
	Role         string             `bson:"role" json:"role"`
	AvatarURL    string             `bson:"avatarUrl,omitempty" json:"avatarUrl,omitempty"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// IsPrivileged reports whether a role bypasses ownership scoping.
func IsPrivileged(role string) bool {
	switch role {
	case RoleAdmin, RoleAuditor, RoleSuperadmin:
		return true
	}
	return false
}
