package model

import (
	"time"

	"github.com/google/uuid"
)

// Rol is the coarse access level of a user.
type Rol string

const (
	RolCliente Rol = "ROLE_CLIENTE"
	RolAdmin   Rol = "ROLE_ADMIN"
)

// ParseRol returns the Rol for s, or false when s is not a known role.
func ParseRol(s string) (Rol, bool) {
	switch Rol(s) {
	case RolCliente, RolAdmin:
		return Rol(s), true
	}
	return "", false
}

// Usuario stores a storefront account.
type Usuario struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	NombreUsuario string    `gorm:"uniqueIndex;not null"`
	Email         string    `gorm:"uniqueIndex;not null"`
	PasswordHash  string    `gorm:"not null"`
	Rol           Rol       `gorm:"type:varchar(20);not null;default:'ROLE_CLIENTE'"`
	Bloqueado     bool      `gorm:"not null;default:false"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (Usuario) TableName() string { return "usuarios" }

func (u *Usuario) EsAdmin() bool { return u.Rol == RolAdmin }
