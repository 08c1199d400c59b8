package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type CrearPedidoRequest struct {
	UserID string `json:"user_id" validate:"required,uuid"`
}

type ActualizarEstadoRequest struct {
	Estado string `json:"estado" validate:"required"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type CrearPedidoResponse struct {
	Message       string          `json:"message"`
	PedidoID      string          `json:"pedido_id"`
	Estado        string          `json:"estado"`
	Total         decimal.Decimal `json:"total"`
	FechaCreacion string          `json:"fecha_creacion"`
}

type PedidoUsuarioResponse struct {
	ID            string `json:"id"`
	NombreUsuario string `json:"nombre_usuario"`
	Email         string `json:"email"`
}

type PedidoItemResponse struct {
	ID             string            `json:"id"`
	PedidoID       string            `json:"pedido_id"`
	ProductoID     string            `json:"producto_id"`
	NombreProducto string            `json:"nombre_producto"`
	Imagen         *string           `json:"imagen"`
	Producto       *ProductoResponse `json:"producto,omitempty"`
	Cantidad       int               `json:"cantidad"`
	PrecioUnitario decimal.Decimal   `json:"precio_unitario"`
	Subtotal       decimal.Decimal   `json:"subtotal"`
}

type PedidoResponse struct {
	ID            string                 `json:"id"`
	UsuarioID     string                 `json:"usuario_id"`
	NombreCliente string                 `json:"nombre_cliente,omitempty"`
	Usuario       *PedidoUsuarioResponse `json:"usuario,omitempty"`
	Estado        string                 `json:"estado"`
	FechaCreacion string                 `json:"fecha_creacion"`
	FechaEnvio    *string                `json:"fecha_envio"`
	FechaEntrega  *string                `json:"fecha_entrega"`
	Total         decimal.Decimal        `json:"total"`
	Items         []PedidoItemResponse   `json:"items"`
}

type MisPedidosResponse struct {
	TotalPedidos int              `json:"total_pedidos"`
	Pedidos      []PedidoResponse `json:"pedidos"`
}

type PedidoItemsResponse struct {
	PedidoID      string               `json:"pedido_id"`
	Estado        string               `json:"estado"`
	Total         decimal.Decimal      `json:"total"`
	FechaCreacion string               `json:"fecha_creacion"`
	Items         []PedidoItemResponse `json:"items"`
}

type EstadoPedidoResponse struct {
	Message string `json:"message"`
	Estado  string `json:"estado"`
}

// PedidoEvento is pushed to admin websocket clients.
type PedidoEvento struct {
	Tipo      string          `json:"tipo"` // pedido_creado | pedido_estado
	PedidoID  string          `json:"pedido_id"`
	UsuarioID string          `json:"usuario_id"`
	Estado    string          `json:"estado"`
	Total     decimal.Decimal `json:"total"`
	Fecha     string          `json:"fecha"`
}
