package domain

import (
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role type for the closed set of user roles.
type Role string

// Define constants for roles
const (
	RoleGeneralPublic  Role = "general public"
	RoleMedicalOfficer Role = "medical officer"
	RoleEpidemiologist Role = "epidemiologist"
	RoleAdmin          Role = "admin"
	RoleSuperadmin     Role = "superadmin"
)

// ParseRole validates a raw role string against the closed enumeration.
// Unrecognized values are rejected rather than defaulted to general public.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleGeneralPublic:
		return RoleGeneralPublic, nil
	case RoleMedicalOfficer:
		return RoleMedicalOfficer, nil
	case RoleEpidemiologist:
		return RoleEpidemiologist, nil
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleSuperadmin:
		return RoleSuperadmin, nil
	default:
		return "", fmt.Errorf("unrecognized role %q", raw)
	}
}

// IsPrivileged reports whether the role sits above general public.
func (r Role) IsPrivileged() bool {
	return r != RoleGeneralPublic && r != ""
}

// IsReviewer reports whether the role may approve or reject upgrade requests.
func (r Role) IsReviewer() bool {
	return r == RoleAdmin || r == RoleSuperadmin
}

// RequiresDocuments reports whether an upgrade request for this role must
// carry at least one supporting identity document.
func (r Role) RequiresDocuments() bool {
	return r == RoleMedicalOfficer || r == RoleEpidemiologist
}

// RequestableRoles lists the roles a user may request an upgrade to.
func RequestableRoles() []Role {
	return []Role{RoleMedicalOfficer, RoleEpidemiologist, RoleAdmin}
}

// IsRequestable reports whether the role is a valid upgrade target.
func (r Role) IsRequestable() bool {
	for _, candidate := range RequestableRoles() {
		if r == candidate {
			return true
		}
	}
	return false
}

// User represents a registered user of the platform.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Email        string             `bson:"email" json:"email"`    // Should be unique
	PasswordHash string             `bson:"passwordHash" json:"-"` // Never expose this via JSON
	Role         Role               `bson:"role" json:"role"`
	Country      string             `bson:"country,omitempty" json:"country,omitempty"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}
