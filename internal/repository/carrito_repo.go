package repository

import (
	"context"

	"github.com/Ambrosio03/TFG/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CarritoRepository covers carts and their line items. Mutations run inside the
// caller's transaction so they serialize with the product row locks.
type CarritoRepository interface {
	FindPendienteByUsuario(ctx context.Context, usuarioID uuid.UUID) (*model.Carrito, error)
	ListItems(ctx context.Context, carritoID uuid.UUID) ([]model.CarritoItem, error)
	FindItemByID(ctx context.Context, itemID uuid.UUID) (*model.CarritoItem, error)
	DeleteItem(ctx context.Context, itemID uuid.UUID) error

	// FindPendienteByUsuarioTx and FindByIDForUpdateTx lock the cart row until
	// the transaction ends. Lock order is cart first, then products.
	FindPendienteByUsuarioTx(tx *gorm.DB, usuarioID uuid.UUID) (*model.Carrito, error)
	FindByIDForUpdateTx(tx *gorm.DB, carritoID uuid.UUID) (*model.Carrito, error)
	CreateTx(tx *gorm.DB, c *model.Carrito) error
	DeleteTx(tx *gorm.DB, carritoID uuid.UUID) error
	ListItemsTx(tx *gorm.DB, carritoID uuid.UUID) ([]model.CarritoItem, error)
	FindItemTx(tx *gorm.DB, carritoID, productoID uuid.UUID) (*model.CarritoItem, error)
	FindItemByIDTx(tx *gorm.DB, itemID uuid.UUID) (*model.CarritoItem, error)
	CreateItemTx(tx *gorm.DB, it *model.CarritoItem) error
	UpdateItemCantidadTx(tx *gorm.DB, itemID uuid.UUID, cantidad int) error

	DB() *gorm.DB
}

type carritoRepo struct{ db *gorm.DB }

func NewCarritoRepository(db *gorm.DB) CarritoRepository { return &carritoRepo{db: db} }

func (r *carritoRepo) FindPendienteByUsuario(ctx context.Context, usuarioID uuid.UUID) (*model.Carrito, error) {
	var c model.Carrito
	err := r.db.WithContext(ctx).
		Where("usuario_id = ? AND estado = ?", usuarioID, model.EstadoCarritoPendiente).First(&c).Error
	return &c, err
}

func (r *carritoRepo) ListItems(ctx context.Context, carritoID uuid.UUID) ([]model.CarritoItem, error) {
	return r.ListItemsTx(r.db.WithContext(ctx), carritoID)
}

func (r *carritoRepo) FindItemByID(ctx context.Context, itemID uuid.UUID) (*model.CarritoItem, error) {
	return r.FindItemByIDTx(r.db.WithContext(ctx), itemID)
}

func (r *carritoRepo) DeleteItem(ctx context.Context, itemID uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&model.CarritoItem{}, "id = ?", itemID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *carritoRepo) FindPendienteByUsuarioTx(tx *gorm.DB, usuarioID uuid.UUID) (*model.Carrito, error) {
	var c model.Carrito
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("usuario_id = ? AND estado = ?", usuarioID, model.EstadoCarritoPendiente).First(&c).Error
	return &c, err
}

func (r *carritoRepo) FindByIDForUpdateTx(tx *gorm.DB, carritoID uuid.UUID) (*model.Carrito, error) {
	var c model.Carrito
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&c, "id = ?", carritoID).Error
	return &c, err
}

func (r *carritoRepo) CreateTx(tx *gorm.DB, c *model.Carrito) error {
	return tx.Create(c).Error
}

func (r *carritoRepo) DeleteTx(tx *gorm.DB, carritoID uuid.UUID) error {
	if err := tx.Where("carrito_id = ?", carritoID).Delete(&model.CarritoItem{}).Error; err != nil {
		return err
	}
	return tx.Delete(&model.Carrito{}, "id = ?", carritoID).Error
}

func (r *carritoRepo) ListItemsTx(tx *gorm.DB, carritoID uuid.UUID) ([]model.CarritoItem, error) {
	var items []model.CarritoItem
	err := tx.Preload("Producto").Where("carrito_id = ?", carritoID).
		Order("created_at ASC").Find(&items).Error
	return items, err
}

func (r *carritoRepo) FindItemTx(tx *gorm.DB, carritoID, productoID uuid.UUID) (*model.CarritoItem, error) {
	var it model.CarritoItem
	err := tx.Where("carrito_id = ? AND producto_id = ?", carritoID, productoID).First(&it).Error
	return &it, err
}

func (r *carritoRepo) FindItemByIDTx(tx *gorm.DB, itemID uuid.UUID) (*model.CarritoItem, error) {
	var it model.CarritoItem
	err := tx.Preload("Carrito").Preload("Producto").First(&it, "id = ?", itemID).Error
	return &it, err
}

func (r *carritoRepo) CreateItemTx(tx *gorm.DB, it *model.CarritoItem) error {
	return tx.Omit("Carrito", "Producto").Create(it).Error
}

func (r *carritoRepo) UpdateItemCantidadTx(tx *gorm.DB, itemID uuid.UUID, cantidad int) error {
	return tx.Model(&model.CarritoItem{}).Where("id = ?", itemID).Update("cantidad", cantidad).Error
}

func (r *carritoRepo) DB() *gorm.DB { return r.db }
