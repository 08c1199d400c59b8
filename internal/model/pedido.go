package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EstadoPedido is the order lifecycle state.
type EstadoPedido string

const (
	EstadoPendiente EstadoPedido = "pendiente"
	EstadoEnProceso EstadoPedido = "en_proceso"
	EstadoEnviado   EstadoPedido = "enviado"
	EstadoEntregado EstadoPedido = "entregado"
)

// ordenEstados gives each state its position in the forward-only flow.
var ordenEstados = map[EstadoPedido]int{
	EstadoPendiente: 0,
	EstadoEnProceso: 1,
	EstadoEnviado:   2,
	EstadoEntregado: 3,
}

// ParseEstadoPedido returns the state named s, or false when s is unknown.
func ParseEstadoPedido(s string) (EstadoPedido, bool) {
	e := EstadoPedido(s)
	_, ok := ordenEstados[e]
	return e, ok
}

// Avanza reports whether moving from e to next goes strictly forward.
func (e EstadoPedido) Avanza(next EstadoPedido) bool {
	return ordenEstados[next] > ordenEstados[e]
}

// Pedido is the immutable record of a checkout. Only Estado and the shipping
// timestamps change after creation.
type Pedido struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UsuarioID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	Estado        EstadoPedido    `gorm:"type:varchar(20);not null;default:'pendiente'"`
	FechaCreacion time.Time       `gorm:"not null;index"`
	FechaEnvio    *time.Time
	FechaEntrega  *time.Time
	Total         decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	UpdatedAt     time.Time

	Items   []PedidoItem `gorm:"foreignKey:PedidoID"`
	Usuario *Usuario     `gorm:"foreignKey:UsuarioID;constraint:OnDelete:RESTRICT"`
}

func (Pedido) TableName() string { return "pedidos" }

// NuevoPedido builds a pending order stamped with the creation time. The id is
// assigned up front so stock movements can reference it inside the same
// transaction.
func NuevoPedido(usuarioID uuid.UUID, now time.Time) *Pedido {
	return &Pedido{
		ID:            uuid.New(),
		UsuarioID:     usuarioID,
		Estado:        EstadoPendiente,
		FechaCreacion: now,
		Total:         decimal.Zero,
	}
}

// CalcularTotal sums cantidad × precio_unitario over the full item set.
func (p *Pedido) CalcularTotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range p.Items {
		total = total.Add(it.Subtotal())
	}
	return total
}

// CambiarEstado sets the new state and stamps fecha_envio / fecha_entrega.
func (p *Pedido) CambiarEstado(e EstadoPedido, now time.Time) {
	p.Estado = e
	switch e {
	case EstadoEnviado:
		p.FechaEnvio = &now
	case EstadoEntregado:
		p.FechaEntrega = &now
	}
}

// PedidoItem copies the unit price at checkout time, so later product price
// edits never alter historical orders.
type PedidoItem struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	PedidoID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductoID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	Cantidad       int             `gorm:"not null"`
	PrecioUnitario decimal.Decimal `gorm:"type:decimal(10,2);not null"`

	Pedido   *Pedido   `gorm:"foreignKey:PedidoID;constraint:OnDelete:CASCADE"`
	Producto *Producto `gorm:"foreignKey:ProductoID;constraint:OnDelete:RESTRICT"`
}

func (PedidoItem) TableName() string { return "pedido_items" }

func (i PedidoItem) Subtotal() decimal.Decimal {
	return i.PrecioUnitario.Mul(decimal.NewFromInt(int64(i.Cantidad)))
}
