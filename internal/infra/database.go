package infra

import (
	"fmt"

	"github.com/Ambrosio03/TFG/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase establishes a GORM connection backed by pgx, runs AutoMigrate to
// create / update all tables, then applies the idempotent SQL patches that GORM
// cannot express (partial indexes, JSON defaults).
//
// TranslateError is enabled so unique and foreign key violations surface as
// gorm.ErrDuplicatedKey / gorm.ErrForeignKeyViolated.
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if err := RunMigrations(db); err != nil {
		return nil, err
	}
	return db, nil
}

// RunMigrations creates the schema. Integration tests call it directly.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Usuario{},
		&model.Producto{},
		&model.Carrito{},
		&model.CarritoItem{},
		&model.Pedido{},
		&model.PedidoItem{},
		&model.MovimientoStock{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	if err := applySchemaPatches(db); err != nil {
		return fmt.Errorf("schema patches: %w", err)
	}
	return nil
}

// applySchemaPatches runs idempotent DDL statements that GORM AutoMigrate cannot
// handle on its own. Each statement uses IF NOT EXISTS semantics so re-running
// on an already-patched DB is safe.
func applySchemaPatches(db *gorm.DB) error {
	patches := []struct{ descr, sql string }{
		// One pending cart per user. Concurrent first adds race on this index.
		{"idx_carritos_usuario_pendiente", `
CREATE UNIQUE INDEX IF NOT EXISTS idx_carritos_usuario_pendiente
    ON carritos (usuario_id) WHERE estado = 'pendiente'`},
		{"productos.imagenes default", `
ALTER TABLE productos ALTER COLUMN imagenes SET DEFAULT '[]'::jsonb`},
		{"chk_productos_precio", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_productos_precio') THEN
    ALTER TABLE productos ADD CONSTRAINT chk_productos_precio CHECK (precio >= 0);
  END IF;
END $$`},
		{"chk_pedidos_estado", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_pedidos_estado') THEN
    ALTER TABLE pedidos ADD CONSTRAINT chk_pedidos_estado
        CHECK (estado IN ('pendiente', 'en_proceso', 'enviado', 'entregado'));
  END IF;
END $$`},
		{"idx_movimientos_stock_producto_fecha", `
CREATE INDEX IF NOT EXISTS idx_movimientos_stock_producto_fecha
    ON movimientos_stock (producto_id, created_at DESC)`},
	}

	for _, p := range patches {
		if err := db.Exec(p.sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", p.descr, err)
		}
	}
	return nil
}
