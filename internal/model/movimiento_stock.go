package model

import (
	"time"

	"github.com/google/uuid"
)

// Tipos de MovimientoStock.
const (
	MovimientoPedido       = "pedido"
	MovimientoAjusteManual = "ajuste_manual"
	MovimientoAlta         = "alta"
	MovimientoEdicion      = "edicion"
)

// MovimientoStock registra cada cambio de stock en un producto.
// Se crea al confirmar un pedido, al ajustar stock o al dar de alta un producto.
type MovimientoStock struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ProductoID    uuid.UUID `gorm:"type:uuid;not null;index"`
	Tipo          string    `gorm:"not null"`
	Cantidad      int       `gorm:"not null"` // positive = entrada, negative = salida
	StockAnterior int       `gorm:"not null"`
	StockNuevo    int       `gorm:"not null"`
	Motivo        string
	ReferenciaID  *uuid.UUID `gorm:"type:uuid"` // pedido_id when applicable
	CreatedAt     time.Time

	Producto *Producto `gorm:"foreignKey:ProductoID;constraint:OnDelete:CASCADE"`
}

// TableName overrides GORM's default pluralization (movimiento_stocks → movimientos_stock).
func (MovimientoStock) TableName() string { return "movimientos_stock" }
