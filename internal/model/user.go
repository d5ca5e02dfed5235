package model

import (
	"fmt"

	"github.com/google/uuid"
)

// UserRole is the closed set of staff roles.
type UserRole string

const (
	UserRoleAdmin        UserRole = "admin"
	UserRoleDoctor       UserRole = "doctor"
	UserRoleReceptionist UserRole = "receptionist"
)

func (r UserRole) Valid() bool {
	switch r {
	case UserRoleAdmin, UserRoleDoctor, UserRoleReceptionist:
		return true
	}
	return false
}

// CanRecordConsultation reports whether the role may register a consultation.
func (r UserRole) CanRecordConsultation() bool {
	switch r {
	case UserRoleAdmin, UserRoleDoctor:
		return true
	case UserRoleReceptionist:
		return false
	}
	return false
}

func ParseUserRole(s string) (UserRole, error) {
	r := UserRole(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown user role %q", s)
	}
	return r, nil
}

// User represents a staff member of a clinic
type User struct {
	Base
	ClinicID     uuid.UUID  `json:"clinic_id" db:"clinic_id"`
	BranchID     *uuid.UUID `json:"branch_id,omitempty" db:"branch_id"`
	FullName     string     `json:"full_name" db:"full_name"`
	Email        string     `json:"email" db:"email"`
	PasswordHash string     `json:"-" db:"password_hash"`
	Role         UserRole   `json:"role" db:"role"`
	Active       bool       `json:"active" db:"active"`
}

// IsDoctor reports whether the user holds the doctor role
func (u *User) IsDoctor() bool {
	return u != nil && u.Role == UserRoleDoctor
}
