package repository

import (
	"context"

	"github.com/Ambrosio03/TFG/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PedidoRepository interface {
	CreateTx(tx *gorm.DB, p *model.Pedido) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Pedido, error)
	List(ctx context.Context) ([]model.Pedido, error)
	ListByUsuario(ctx context.Context, usuarioID uuid.UUID) ([]model.Pedido, error)
	ListItems(ctx context.Context) ([]model.PedidoItem, error)
	// UpdateEstado persists estado, fecha_envio and fecha_entrega only.
	UpdateEstado(ctx context.Context, p *model.Pedido) error
}

type pedidoRepo struct{ db *gorm.DB }

func NewPedidoRepository(db *gorm.DB) PedidoRepository { return &pedidoRepo{db: db} }

// CreateTx inserts the pedido and its items in one call.
func (r *pedidoRepo) CreateTx(tx *gorm.DB, p *model.Pedido) error {
	return tx.Omit("Usuario").Create(p).Error
}

func (r *pedidoRepo) withDetalle(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Usuario").
		Preload("Items").
		Preload("Items.Producto")
}

func (r *pedidoRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Pedido, error) {
	var p model.Pedido
	err := r.withDetalle(ctx).First(&p, "id = ?", id).Error
	return &p, err
}

func (r *pedidoRepo) List(ctx context.Context) ([]model.Pedido, error) {
	var pedidos []model.Pedido
	err := r.withDetalle(ctx).Order("fecha_creacion DESC").Find(&pedidos).Error
	return pedidos, err
}

func (r *pedidoRepo) ListByUsuario(ctx context.Context, usuarioID uuid.UUID) ([]model.Pedido, error) {
	var pedidos []model.Pedido
	err := r.withDetalle(ctx).Where("usuario_id = ?", usuarioID).
		Order("fecha_creacion DESC").Find(&pedidos).Error
	return pedidos, err
}

func (r *pedidoRepo) ListItems(ctx context.Context) ([]model.PedidoItem, error) {
	var items []model.PedidoItem
	err := r.db.WithContext(ctx).Preload("Producto").Order("pedido_id").Find(&items).Error
	return items, err
}

func (r *pedidoRepo) UpdateEstado(ctx context.Context, p *model.Pedido) error {
	return r.db.WithContext(ctx).Model(&model.Pedido{}).Where("id = ?", p.ID).
		Updates(map[string]interface{}{
			"estado":        p.Estado,
			"fecha_envio":   p.FechaEnvio,
			"fecha_entrega": p.FechaEntrega,
		}).Error
}
