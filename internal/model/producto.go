package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ImagenesPorProducto is the only accepted size of a product image set.
const ImagenesPorProducto = 4

// Imagenes is the list of stored image file names of a product.
// Scanning a NULL or malformed column yields an empty list instead of an error
// so one corrupt row never breaks a catalog listing.
type Imagenes []string

func (i *Imagenes) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	}
	var out []string
	if len(raw) == 0 || json.Unmarshal(raw, &out) != nil || out == nil {
		out = []string{}
	}
	*i = out
	return nil
}

func (i Imagenes) Value() (driver.Value, error) {
	if i == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(i))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Producto is a catalog entry. Imagen holds the primary image, which is always
// Imagenes[0] when the set is not empty.
type Producto struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Nombre      string          `gorm:"index;not null"`
	Precio      decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Stock       int             `gorm:"not null;default:0;check:stock >= 0"`
	Descripcion string          `gorm:"type:text;not null"`
	Imagen      *string
	Imagenes    Imagenes `gorm:"type:jsonb"`
	Visible     bool     `gorm:"not null"` // no default tag: a declared default replaces false on insert
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName overrides GORM's default pluralization.
func (Producto) TableName() string { return "productos" }
