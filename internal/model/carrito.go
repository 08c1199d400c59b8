package model

import (
	"time"

	"github.com/google/uuid"
)

// EstadoCarritoPendiente is the only cart state in use: the active cart.
// A partial unique index keeps at most one pending cart per user.
const EstadoCarritoPendiente = "pendiente"

type Carrito struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UsuarioID uuid.UUID `gorm:"type:uuid;not null;index"`
	Estado    string    `gorm:"type:varchar(50);not null;default:'pendiente'"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Usuario *Usuario `gorm:"foreignKey:UsuarioID;constraint:OnDelete:CASCADE"`
}

func (Carrito) TableName() string { return "carritos" }

// CarritoItem is unique per (carrito, producto): adding the same product again
// increases Cantidad.
type CarritoItem struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CarritoID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_carrito_producto"`
	ProductoID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_carrito_producto"`
	Cantidad   int       `gorm:"not null;check:cantidad >= 1"`
	CreatedAt  time.Time
	UpdatedAt  time.Time

	Carrito  *Carrito  `gorm:"foreignKey:CarritoID;constraint:OnDelete:CASCADE"`
	Producto *Producto `gorm:"foreignKey:ProductoID;constraint:OnDelete:CASCADE"`
}

func (CarritoItem) TableName() string { return "carrito_items" }
