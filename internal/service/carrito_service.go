package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Ambrosio03/TFG/internal/dto"
	"github.com/Ambrosio03/TFG/internal/model"
	"github.com/Ambrosio03/TFG/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const mensajeSinCarrito = "No hay carrito pendiente para este usuario"

// CarritoService mutates the pending cart of a user. Every stock check runs
// with the product row locked.
type CarritoService interface {
	AgregarItem(ctx context.Context, usuarioID, productoID uuid.UUID, cantidad int) (*dto.AgregarCarritoResponse, error)
	ActualizarCantidad(ctx context.Context, itemID uuid.UUID, cantidad int) error
	EliminarItem(ctx context.Context, itemID uuid.UUID) error
	ObtenerCarrito(ctx context.Context, usuarioID uuid.UUID) (*dto.CarritoResponse, error)
	// PropietarioItem returns the user owning the cart of itemID.
	PropietarioItem(ctx context.Context, itemID uuid.UUID) (uuid.UUID, error)
}

type carritoService struct {
	carritos  repository.CarritoRepository
	productos repository.ProductoRepository
	usuarios  repository.UsuarioRepository
}

func NewCarritoService(
	carritos repository.CarritoRepository,
	productos repository.ProductoRepository,
	usuarios repository.UsuarioRepository,
) CarritoService {
	return &carritoService{carritos: carritos, productos: productos, usuarios: usuarios}
}

// ── AgregarItem ───────────────────────────────────────────────────────────────
// Checks run in order: cantidad, usuario (existing and not blocked), producto,
// stock. Locks follow the checkout order: the pending cart row first, then the
// product row. A missing cart is created once the product checks pass; two
// concurrent first adds collide on the partial unique index and the loser
// retries once against the winner's cart.

func (s *carritoService) AgregarItem(ctx context.Context, usuarioID, productoID uuid.UUID, cantidad int) (*dto.AgregarCarritoResponse, error) {
	if cantidad <= 0 {
		return nil, ErrCantidadInvalida
	}
	usuario, err := s.usuarios.FindByID(ctx, usuarioID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, noEncontrado("usuario")
		}
		return nil, err
	}
	// A token issued before the block is still valid until it expires.
	if usuario.Bloqueado {
		return nil, ErrUsuarioBloqueado
	}

	var resp *dto.AgregarCarritoResponse
	for intento := 0; intento < 2; intento++ {
		resp, err = s.agregarTx(ctx, usuarioID, productoID, cantidad)
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			break
		}
		log.Debug().Str("usuario_id", usuarioID.String()).Msg("carrito: creacion concurrente, reintentando")
	}
	return resp, err
}

func (s *carritoService) agregarTx(ctx context.Context, usuarioID, productoID uuid.UUID, cantidad int) (*dto.AgregarCarritoResponse, error) {
	var carrito *model.Carrito
	err := runTx(ctx, s.productos.DB(), func(tx *gorm.DB) error {
		var err error
		carrito, err = s.carritos.FindPendienteByUsuarioTx(tx, usuarioID)
		nuevo := errors.Is(err, gorm.ErrRecordNotFound)
		if err != nil && !nuevo {
			return err
		}

		p, err := s.productos.FindByIDForUpdateTx(tx, productoID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return noEncontrado("producto")
		}
		if err != nil {
			return err
		}
		if cantidad > p.Stock {
			return &StockInsuficienteError{
				ProductoID: p.ID, Nombre: p.Nombre,
				StockDisponible: p.Stock, CantidadSolicitada: cantidad,
			}
		}

		if nuevo {
			carrito = &model.Carrito{UsuarioID: usuarioID, Estado: model.EstadoCarritoPendiente}
			if err := s.carritos.CreateTx(tx, carrito); err != nil {
				return err
			}
		}

		item, err := s.carritos.FindItemTx(tx, carrito.ID, productoID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s.carritos.CreateItemTx(tx, &model.CarritoItem{
				CarritoID:  carrito.ID,
				ProductoID: productoID,
				Cantidad:   cantidad,
			})
		}
		if err != nil {
			return err
		}

		total := item.Cantidad + cantidad
		if total > p.Stock {
			actual := item.Cantidad
			return &StockInsuficienteError{
				ProductoID: p.ID, Nombre: p.Nombre,
				StockDisponible: p.Stock, CantidadActual: &actual, CantidadSolicitada: cantidad,
			}
		}
		return s.carritos.UpdateItemCantidadTx(tx, item.ID, total)
	})
	if err != nil {
		return nil, err
	}
	return &dto.AgregarCarritoResponse{
		Message: "Producto añadido al carrito",
		CartID:  carrito.ID.String(),
		Estado:  carrito.Estado,
	}, nil
}

// ── Line item edits ───────────────────────────────────────────────────────────

func (s *carritoService) ActualizarCantidad(ctx context.Context, itemID uuid.UUID, cantidad int) error {
	if cantidad < 1 {
		return ErrCantidadInvalida
	}
	return runTx(ctx, s.productos.DB(), func(tx *gorm.DB) error {
		item, err := s.carritos.FindItemByIDTx(tx, itemID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return noEncontrado("item del carrito")
		}
		if err != nil {
			return err
		}
		// A checkout that committed meanwhile has deleted the cart.
		if _, err := s.carritos.FindByIDForUpdateTx(tx, item.CarritoID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return noEncontrado("item del carrito")
			}
			return err
		}
		p, err := s.productos.FindByIDForUpdateTx(tx, item.ProductoID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return noEncontrado("producto")
		}
		if err != nil {
			return err
		}
		if cantidad > p.Stock {
			return &StockInsuficienteError{
				ProductoID: p.ID, Nombre: p.Nombre,
				StockDisponible: p.Stock, CantidadSolicitada: cantidad,
			}
		}
		return s.carritos.UpdateItemCantidadTx(tx, itemID, cantidad)
	})
}

// EliminarItem deletes the line only; an emptied cart stays pending.
func (s *carritoService) EliminarItem(ctx context.Context, itemID uuid.UUID) error {
	if err := s.carritos.DeleteItem(ctx, itemID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return noEncontrado("item del carrito")
		}
		return fmt.Errorf("eliminar item: %w", err)
	}
	return nil
}

func (s *carritoService) PropietarioItem(ctx context.Context, itemID uuid.UUID) (uuid.UUID, error) {
	item, err := s.carritos.FindItemByID(ctx, itemID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return uuid.Nil, noEncontrado("item del carrito")
	}
	if err != nil {
		return uuid.Nil, err
	}
	if item.Carrito == nil {
		return uuid.Nil, noEncontrado("carrito")
	}
	return item.Carrito.UsuarioID, nil
}

// ── ObtenerCarrito ────────────────────────────────────────────────────────────

func (s *carritoService) ObtenerCarrito(ctx context.Context, usuarioID uuid.UUID) (*dto.CarritoResponse, error) {
	if _, err := s.usuarios.FindByID(ctx, usuarioID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, noEncontrado("usuario")
		}
		return nil, err
	}

	carrito, err := s.carritos.FindPendienteByUsuario(ctx, usuarioID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &dto.CarritoResponse{
			UserID:  usuarioID.String(),
			Items:   []dto.CarritoItemResponse{},
			Message: mensajeSinCarrito,
		}, nil
	}
	if err != nil {
		return nil, err
	}

	items, err := s.carritos.ListItems(ctx, carrito.ID)
	if err != nil {
		return nil, err
	}
	out := &dto.CarritoResponse{
		ID:     carrito.ID.String(),
		Estado: carrito.Estado,
		UserID: usuarioID.String(),
		Items:  make([]dto.CarritoItemResponse, 0, len(items)),
	}
	for _, it := range items {
		ir := dto.CarritoItemResponse{ID: it.ID.String(), Quantity: it.Cantidad}
		if it.Producto != nil {
			ir.Product = productoToResponse(it.Producto)
		} else {
			ir.Product = dto.ProductoResponse{ID: it.ProductoID.String(), Imagenes: []string{}}
		}
		out.Items = append(out.Items, ir)
	}
	return out, nil
}
