package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/Ambrosio03/TFG/internal/dto"
	"github.com/Ambrosio03/TFG/internal/infra"
	"github.com/Ambrosio03/TFG/internal/model"
	"github.com/Ambrosio03/TFG/internal/repository"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Notificador schedules the emails that follow an order. worker.Dispatcher
// implements it.
type Notificador interface {
	PedidoCreado(ctx context.Context, p *model.Pedido, email string) error
	EstadoCambiado(ctx context.Context, p *model.Pedido, email string) error
}

// EventPublisher broadcasts order events; realtime.Hub implements it.
type EventPublisher interface {
	Publish(v interface{})
}

const (
	EventoPedidoCreado = "pedido_creado"
	EventoPedidoEstado = "pedido_estado"
)

type PedidoService interface {
	Crear(ctx context.Context, usuarioID uuid.UUID) (*dto.CrearPedidoResponse, error)
	ObtenerPorID(ctx context.Context, id uuid.UUID) (*dto.PedidoResponse, error)
	Listar(ctx context.Context) ([]dto.PedidoResponse, error)
	ListarPorUsuario(ctx context.Context, usuarioID uuid.UUID) ([]dto.PedidoResponse, error)
	MisPedidos(ctx context.Context, usuarioID uuid.UUID) (*dto.MisPedidosResponse, error)
	Items(ctx context.Context, pedidoID uuid.UUID) (*dto.PedidoItemsResponse, error)
	ItemsTodos(ctx context.Context) ([]dto.PedidoItemResponse, error)
	ActualizarEstado(ctx context.Context, id uuid.UUID, estado string) (*dto.EstadoPedidoResponse, error)
	Comprobante(ctx context.Context, id uuid.UUID, w io.Writer) error
	// Propietario returns the user owning pedido id.
	Propietario(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
}

// PedidoOptions carries the policy switches and optional collaborators.
// Nil collaborators are skipped.
type PedidoOptions struct {
	StrictTransitions bool
	Notificador       Notificador
	Eventos           EventPublisher
	Redis             *redis.Client
	CacheTTL          time.Duration
	Now               func() time.Time
}

type pedidoService struct {
	pedidos   repository.PedidoRepository
	carritos  repository.CarritoRepository
	productos repository.ProductoRepository
	usuarios  repository.UsuarioRepository
	movRepo   repository.MovimientoStockRepository
	opts      PedidoOptions
	cache     catalogoCache
}

func NewPedidoService(
	pedidos repository.PedidoRepository,
	carritos repository.CarritoRepository,
	productos repository.ProductoRepository,
	usuarios repository.UsuarioRepository,
	movRepo repository.MovimientoStockRepository,
	opts PedidoOptions,
) PedidoService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &pedidoService{
		pedidos:   pedidos,
		carritos:  carritos,
		productos: productos,
		usuarios:  usuarios,
		movRepo:   movRepo,
		opts:      opts,
		cache:     newCatalogoCache(opts.Redis, opts.CacheTTL),
	}
}

// runTx executes fn inside a DB transaction when db is available.
// When db is nil (unit tests with stub repos) fn is called directly with a nil tx.
func runTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if db == nil {
		return fn(nil)
	}
	return db.WithContext(ctx).Transaction(fn)
}

// ── Crear (checkout) ──────────────────────────────────────────────────────────
// One transaction:
//  1. load the pending cart and its items
//  2. lock every product row (sorted by id) and check all stock first
//  3. build the Pedido with price snapshots and recompute the total
//  4. persist it, decrement stock, record the movements
//  5. delete the cart
// Nothing is written until every check has passed. Blocked users cannot check
// out even with a token issued before the block.

func (s *pedidoService) Crear(ctx context.Context, usuarioID uuid.UUID) (*dto.CrearPedidoResponse, error) {
	usuario, err := s.usuarios.FindByID(ctx, usuarioID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, noEncontrado("usuario")
	}
	if err != nil {
		return nil, err
	}
	if usuario.Bloqueado {
		return nil, ErrUsuarioBloqueado
	}

	var pedido *model.Pedido
	err = runTx(ctx, s.productos.DB(), func(tx *gorm.DB) error {
		carrito, err := s.carritos.FindPendienteByUsuarioTx(tx, usuarioID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCarritoNoPendiente
		}
		if err != nil {
			return err
		}
		items, err := s.carritos.ListItemsTx(tx, carrito.ID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return ErrCarritoVacio
		}

		sort.Slice(items, func(i, j int) bool {
			return items[i].ProductoID.String() < items[j].ProductoID.String()
		})
		bloqueados := make([]*model.Producto, len(items))
		for i, it := range items {
			p, err := s.productos.FindByIDForUpdateTx(tx, it.ProductoID)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return noEncontrado("producto")
			}
			if err != nil {
				return err
			}
			if it.Cantidad > p.Stock {
				return &StockInsuficienteError{
					ProductoID: p.ID, Nombre: p.Nombre,
					StockDisponible: p.Stock, CantidadSolicitada: it.Cantidad,
				}
			}
			bloqueados[i] = p
		}

		pedido = model.NuevoPedido(usuarioID, s.opts.Now())
		for i, it := range items {
			pedido.Items = append(pedido.Items, model.PedidoItem{
				ID:             uuid.New(),
				PedidoID:       pedido.ID,
				ProductoID:     it.ProductoID,
				Cantidad:       it.Cantidad,
				PrecioUnitario: bloqueados[i].Precio,
			})
		}
		pedido.Total = pedido.CalcularTotal()

		if err := s.pedidos.CreateTx(tx, pedido); err != nil {
			return fmt.Errorf("crear pedido: %w", err)
		}
		for i, it := range items {
			if err := s.productos.UpdateStockTx(tx, it.ProductoID, -it.Cantidad); err != nil {
				return fmt.Errorf("descontar stock: %w", err)
			}
			ref := pedido.ID
			if err := s.movRepo.CreateTx(tx, &model.MovimientoStock{
				ProductoID:    it.ProductoID,
				Tipo:          model.MovimientoPedido,
				Cantidad:      -it.Cantidad,
				StockAnterior: bloqueados[i].Stock,
				StockNuevo:    bloqueados[i].Stock - it.Cantidad,
				Motivo:        "pedido",
				ReferenciaID:  &ref,
			}); err != nil {
				return fmt.Errorf("registrar movimiento: %w", err)
			}
		}
		return s.carritos.DeleteTx(tx, carrito.ID)
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("pedido_id", pedido.ID.String()).
		Str("usuario_id", usuarioID.String()).
		Str("total", pedido.Total.StringFixed(2)).
		Int("items", len(pedido.Items)).
		Msg("pedido creado")

	s.despuesDeCrear(ctx, pedido, usuario.Email)

	return &dto.CrearPedidoResponse{
		Message:       "Pedido creado correctamente",
		PedidoID:      pedido.ID.String(),
		Estado:        string(pedido.Estado),
		Total:         pedido.Total,
		FechaCreacion: pedido.FechaCreacion.Format(dto.FechaLayout),
	}, nil
}

// despuesDeCrear runs the post-commit side effects. None of them can fail the
// request.
func (s *pedidoService) despuesDeCrear(ctx context.Context, p *model.Pedido, email string) {
	if s.opts.Notificador != nil {
		if err := s.opts.Notificador.PedidoCreado(ctx, p, email); err != nil {
			log.Warn().Err(err).Str("pedido_id", p.ID.String()).Msg("no se pudo encolar el comprobante")
		}
	}
	if s.opts.Eventos != nil {
		s.opts.Eventos.Publish(evento(EventoPedidoCreado, p))
	}
	s.cache.invalidar(ctx)
}

// ── ActualizarEstado ──────────────────────────────────────────────────────────

func (s *pedidoService) ActualizarEstado(ctx context.Context, id uuid.UUID, estado string) (*dto.EstadoPedidoResponse, error) {
	p, err := s.buscar(ctx, id)
	if err != nil {
		return nil, err
	}
	nuevo, ok := model.ParseEstadoPedido(estado)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrEstadoInvalido, estado)
	}
	if s.opts.StrictTransitions && !p.Estado.Avanza(nuevo) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrTransicionInvalida, p.Estado, nuevo)
	}

	anterior := p.Estado
	p.CambiarEstado(nuevo, s.opts.Now())
	if err := s.pedidos.UpdateEstado(ctx, p); err != nil {
		return nil, fmt.Errorf("actualizar estado: %w", err)
	}
	log.Info().
		Str("pedido_id", id.String()).
		Str("de", string(anterior)).
		Str("a", string(nuevo)).
		Msg("estado de pedido actualizado")

	if s.opts.Eventos != nil {
		s.opts.Eventos.Publish(evento(EventoPedidoEstado, p))
	}
	if s.opts.Notificador != nil && p.Usuario != nil &&
		(nuevo == model.EstadoEnviado || nuevo == model.EstadoEntregado) {
		if err := s.opts.Notificador.EstadoCambiado(ctx, p, p.Usuario.Email); err != nil {
			log.Warn().Err(err).Str("pedido_id", id.String()).Msg("no se pudo encolar la notificacion")
		}
	}
	return &dto.EstadoPedidoResponse{Message: "Estado actualizado", Estado: string(nuevo)}, nil
}

// ── Queries ───────────────────────────────────────────────────────────────────

func (s *pedidoService) ObtenerPorID(ctx context.Context, id uuid.UUID) (*dto.PedidoResponse, error) {
	p, err := s.buscar(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := pedidoToResponse(p)
	return &resp, nil
}

func (s *pedidoService) Propietario(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	p, err := s.buscar(ctx, id)
	if err != nil {
		return uuid.Nil, err
	}
	return p.UsuarioID, nil
}

func (s *pedidoService) Listar(ctx context.Context) ([]dto.PedidoResponse, error) {
	pedidos, err := s.pedidos.List(ctx)
	if err != nil {
		return nil, err
	}
	return pedidosToResponse(pedidos), nil
}

func (s *pedidoService) ListarPorUsuario(ctx context.Context, usuarioID uuid.UUID) ([]dto.PedidoResponse, error) {
	if _, err := s.usuarios.FindByID(ctx, usuarioID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, noEncontrado("usuario")
		}
		return nil, err
	}
	pedidos, err := s.pedidos.ListByUsuario(ctx, usuarioID)
	if err != nil {
		return nil, err
	}
	return pedidosToResponse(pedidos), nil
}

// MisPedidos lists the orders of a user newest first, with their count.
func (s *pedidoService) MisPedidos(ctx context.Context, usuarioID uuid.UUID) (*dto.MisPedidosResponse, error) {
	pedidos, err := s.ListarPorUsuario(ctx, usuarioID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(pedidos, func(i, j int) bool {
		return pedidos[i].FechaCreacion > pedidos[j].FechaCreacion
	})
	return &dto.MisPedidosResponse{TotalPedidos: len(pedidos), Pedidos: pedidos}, nil
}

func (s *pedidoService) Items(ctx context.Context, pedidoID uuid.UUID) (*dto.PedidoItemsResponse, error) {
	p, err := s.buscar(ctx, pedidoID)
	if err != nil {
		return nil, err
	}
	resp := pedidoToResponse(p)
	return &dto.PedidoItemsResponse{
		PedidoID:      resp.ID,
		Estado:        resp.Estado,
		Total:         resp.Total,
		FechaCreacion: resp.FechaCreacion,
		Items:         resp.Items,
	}, nil
}

func (s *pedidoService) ItemsTodos(ctx context.Context) ([]dto.PedidoItemResponse, error) {
	items, err := s.pedidos.ListItems(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.PedidoItemResponse, 0, len(items))
	for i := range items {
		out = append(out, pedidoItemToResponse(&items[i]))
	}
	return out, nil
}

// Comprobante renders the receipt PDF of the order into w.
func (s *pedidoService) Comprobante(ctx context.Context, id uuid.UUID, w io.Writer) error {
	p, err := s.buscar(ctx, id)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := infra.EscribirComprobantePDF(&buf, p); err != nil {
		return err
	}
	_, err = buf.WriteTo(w)
	return err
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func (s *pedidoService) buscar(ctx context.Context, id uuid.UUID) (*model.Pedido, error) {
	p, err := s.pedidos.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, noEncontrado("pedido")
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func evento(tipo string, p *model.Pedido) dto.PedidoEvento {
	return dto.PedidoEvento{
		Tipo:      tipo,
		PedidoID:  p.ID.String(),
		UsuarioID: p.UsuarioID.String(),
		Estado:    string(p.Estado),
		Total:     p.Total,
		Fecha:     time.Now().Format(dto.FechaLayout),
	}
}

func formatFecha(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dto.FechaLayout)
	return &s
}

func pedidoItemToResponse(it *model.PedidoItem) dto.PedidoItemResponse {
	r := dto.PedidoItemResponse{
		ID:             it.ID.String(),
		PedidoID:       it.PedidoID.String(),
		ProductoID:     it.ProductoID.String(),
		Cantidad:       it.Cantidad,
		PrecioUnitario: it.PrecioUnitario,
		Subtotal:       it.Subtotal(),
	}
	if it.Producto != nil {
		prod := productoToResponse(it.Producto)
		r.NombreProducto = it.Producto.Nombre
		r.Imagen = it.Producto.Imagen
		r.Producto = &prod
	}
	return r
}

func pedidoToResponse(p *model.Pedido) dto.PedidoResponse {
	r := dto.PedidoResponse{
		ID:            p.ID.String(),
		UsuarioID:     p.UsuarioID.String(),
		Estado:        string(p.Estado),
		FechaCreacion: p.FechaCreacion.Format(dto.FechaLayout),
		FechaEnvio:    formatFecha(p.FechaEnvio),
		FechaEntrega:  formatFecha(p.FechaEntrega),
		Total:         p.Total,
		Items:         make([]dto.PedidoItemResponse, 0, len(p.Items)),
	}
	if p.Usuario != nil {
		r.NombreCliente = p.Usuario.NombreUsuario
		r.Usuario = &dto.PedidoUsuarioResponse{
			ID:            p.Usuario.ID.String(),
			NombreUsuario: p.Usuario.NombreUsuario,
			Email:         p.Usuario.Email,
		}
	}
	for i := range p.Items {
		r.Items = append(r.Items, pedidoItemToResponse(&p.Items[i]))
	}
	return r
}

func pedidosToResponse(pedidos []model.Pedido) []dto.PedidoResponse {
	out := make([]dto.PedidoResponse, 0, len(pedidos))
	for i := range pedidos {
		out = append(out, pedidoToResponse(&pedidos[i]))
	}
	return out
}
