package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
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

// ImageStorage persists product images. infra.ImageStore is the production
// implementation.
type ImageStorage interface {
	Save(dataURIs []string) ([]string, error)
	Delete(names []string)
	Placeholder() string
}

// ProductoService defines the business logic contract for the catalog.
type ProductoService interface {
	ListarVisibles(ctx context.Context) ([]dto.ProductoResponse, error)
	ListarTodos(ctx context.Context) ([]dto.ProductoResponse, error)
	ObtenerPorID(ctx context.Context, id uuid.UUID) (*dto.ProductoResponse, error)
	Crear(ctx context.Context, req dto.CrearProductoRequest) (*dto.ProductoResponse, error)
	Actualizar(ctx context.Context, id uuid.UUID, req dto.ActualizarProductoRequest) (*dto.ProductoResponse, error)
	Eliminar(ctx context.Context, id uuid.UUID) error
	AjustarStock(ctx context.Context, id uuid.UUID, delta int) (*dto.StockResponse, error)
	VerificarStock(ctx context.Context, id uuid.UUID, cantidad int) (*dto.CheckStockResponse, error)
	ListarMovimientos(ctx context.Context, id uuid.UUID) ([]dto.MovimientoStockResponse, error)

	ImportarCSV(ctx context.Context, r io.Reader) (*dto.ImportResponse, error)
	ImportarExcel(ctx context.Context, r io.ReaderAt, size int64) (*dto.ImportResponse, error)
	ExportarExcel(ctx context.Context, w io.Writer) error
}

type productoService struct {
	repo    repository.ProductoRepository
	movRepo repository.MovimientoStockRepository
	images  ImageStorage
	cache   catalogoCache
}

func NewProductoService(
	repo repository.ProductoRepository,
	movRepo repository.MovimientoStockRepository,
	images ImageStorage,
	rdb *redis.Client,
	cacheTTL time.Duration,
) ProductoService {
	return &productoService{
		repo:    repo,
		movRepo: movRepo,
		images:  images,
		cache:   newCatalogoCache(rdb, cacheTTL),
	}
}

// ── Queries ───────────────────────────────────────────────────────────────────

func (s *productoService) ListarVisibles(ctx context.Context) ([]dto.ProductoResponse, error) {
	if cached, ok := s.cache.get(ctx); ok {
		return cached, nil
	}
	productos, err := s.repo.ListVisibles(ctx)
	if err != nil {
		return nil, err
	}
	out := productosToResponse(productos)
	s.cache.set(ctx, out)
	return out, nil
}

func (s *productoService) ListarTodos(ctx context.Context) ([]dto.ProductoResponse, error) {
	productos, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return productosToResponse(productos), nil
}

func (s *productoService) ObtenerPorID(ctx context.Context, id uuid.UUID) (*dto.ProductoResponse, error) {
	p, err := s.buscar(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := productoToResponse(p)
	return &resp, nil
}

func (s *productoService) VerificarStock(ctx context.Context, id uuid.UUID, cantidad int) (*dto.CheckStockResponse, error) {
	if cantidad <= 0 {
		return nil, validacion("la cantidad debe ser mayor que 0", map[string]string{"cantidad": "debe ser mayor que 0"})
	}
	p, err := s.buscar(ctx, id)
	if err != nil {
		return nil, err
	}
	return &dto.CheckStockResponse{
		Disponible:         p.Stock >= cantidad,
		StockActual:        p.Stock,
		CantidadSolicitada: cantidad,
	}, nil
}

func (s *productoService) ListarMovimientos(ctx context.Context, id uuid.UUID) ([]dto.MovimientoStockResponse, error) {
	if _, err := s.buscar(ctx, id); err != nil {
		return nil, err
	}
	movs, err := s.movRepo.ListByProducto(ctx, id, 100)
	if err != nil {
		return nil, err
	}
	out := make([]dto.MovimientoStockResponse, 0, len(movs))
	for _, m := range movs {
		r := dto.MovimientoStockResponse{
			ID:            m.ID.String(),
			ProductoID:    m.ProductoID.String(),
			Tipo:          m.Tipo,
			Cantidad:      m.Cantidad,
			StockAnterior: m.StockAnterior,
			StockNuevo:    m.StockNuevo,
			Motivo:        m.Motivo,
			CreatedAt:     m.CreatedAt.Format(dto.FechaLayout),
		}
		if m.ReferenciaID != nil {
			ref := m.ReferenciaID.String()
			r.ReferenciaID = &ref
		}
		out = append(out, r)
	}
	return out, nil
}

// ── Mutations ─────────────────────────────────────────────────────────────────

func (s *productoService) Crear(ctx context.Context, req dto.CrearProductoRequest) (*dto.ProductoResponse, error) {
	fields := map[string]string{}
	nombre := strings.TrimSpace(req.Nombre)
	if nombre == "" {
		fields["nombre"] = "es obligatorio"
	}
	if strings.TrimSpace(req.Descripcion) == "" {
		fields["descripcion"] = "es obligatoria"
	}
	if req.Precio == nil {
		fields["precio"] = "es obligatorio"
	} else if req.Precio.IsNegative() {
		fields["precio"] = "no puede ser negativo"
	}
	if req.Stock == nil {
		fields["stock"] = "es obligatorio"
	} else if *req.Stock < 0 {
		fields["stock"] = "no puede ser negativo"
	}
	validarImagenes(req.Imagenes, fields)
	if len(fields) > 0 {
		return nil, validacion("datos de producto invalidos", fields)
	}

	names, err := s.images.Save(req.Imagenes)
	if err != nil {
		if errors.Is(err, infra.ErrImagenInvalida) {
			return nil, validacion("imagenes invalidas", map[string]string{"imagenes": err.Error()})
		}
		return nil, fmt.Errorf("guardar imagenes: %w", err)
	}

	p := &model.Producto{
		Nombre:      nombre,
		Precio:      req.Precio.Round(2),
		Stock:       *req.Stock,
		Descripcion: req.Descripcion,
		Imagen:      &names[0],
		Imagenes:    model.Imagenes(names),
		Visible:     true,
	}
	if err := s.crearConMovimiento(ctx, p, "alta de producto"); err != nil {
		s.images.Delete(names)
		return nil, err
	}

	s.cache.invalidar(ctx)
	log.Info().Str("producto_id", p.ID.String()).Str("nombre", p.Nombre).Msg("producto creado")
	resp := productoToResponse(p)
	return &resp, nil
}

// crearConMovimiento inserts p and, when it starts with stock, its ledger entry.
func (s *productoService) crearConMovimiento(ctx context.Context, p *model.Producto, motivo string) error {
	return runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		if err := s.repo.CreateTx(tx, p); err != nil {
			return fmt.Errorf("crear producto: %w", err)
		}
		if p.Stock == 0 {
			return nil
		}
		return s.movRepo.CreateTx(tx, &model.MovimientoStock{
			ProductoID:    p.ID,
			Tipo:          model.MovimientoAlta,
			Cantidad:      p.Stock,
			StockAnterior: 0,
			StockNuevo:    p.Stock,
			Motivo:        motivo,
		})
	})
}

// Actualizar applies a partial edit under the row lock. Only the supplied
// columns are written; stock is left alone unless it is part of the request.
func (s *productoService) Actualizar(ctx context.Context, id uuid.UUID, req dto.ActualizarProductoRequest) (*dto.ProductoResponse, error) {
	fields := map[string]string{}
	if req.Nombre != nil && strings.TrimSpace(*req.Nombre) == "" {
		fields["nombre"] = "no puede estar vacio"
	}
	if req.Descripcion != nil && strings.TrimSpace(*req.Descripcion) == "" {
		fields["descripcion"] = "no puede estar vacia"
	}
	if req.Precio != nil && req.Precio.IsNegative() {
		fields["precio"] = "no puede ser negativo"
	}
	if req.Stock != nil && *req.Stock < 0 {
		fields["stock"] = "no puede ser negativo"
	}
	if req.Imagenes != nil {
		validarImagenes(req.Imagenes, fields)
	}
	if len(fields) > 0 {
		return nil, validacion("datos de producto invalidos", fields)
	}

	var nuevas []string
	if req.Imagenes != nil {
		var err error
		if nuevas, err = s.images.Save(req.Imagenes); err != nil {
			return nil, fmt.Errorf("guardar imagenes: %w", err)
		}
	}

	var p *model.Producto
	var viejas model.Imagenes
	err := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		var err error
		p, err = s.repo.FindByIDForUpdateTx(tx, id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return noEncontrado("producto")
		}
		if err != nil {
			return err
		}

		stockAnterior := p.Stock
		campos := map[string]interface{}{}
		if req.Nombre != nil {
			p.Nombre = strings.TrimSpace(*req.Nombre)
			campos["nombre"] = p.Nombre
		}
		if req.Descripcion != nil {
			p.Descripcion = *req.Descripcion
			campos["descripcion"] = p.Descripcion
		}
		if req.Precio != nil {
			p.Precio = req.Precio.Round(2)
			campos["precio"] = p.Precio
		}
		if req.Stock != nil && *req.Stock != p.Stock {
			p.Stock = *req.Stock
			campos["stock"] = p.Stock
		}
		if req.Visible != nil {
			p.Visible = *req.Visible
			campos["visible"] = p.Visible
		}
		if nuevas != nil {
			viejas = p.Imagenes
			p.Imagen = &nuevas[0]
			p.Imagenes = model.Imagenes(nuevas)
			campos["imagen"] = p.Imagen
			campos["imagenes"] = p.Imagenes
		}
		if len(campos) == 0 {
			return nil
		}

		if err := s.repo.UpdateFieldsTx(tx, id, campos); err != nil {
			return fmt.Errorf("actualizar producto: %w", err)
		}
		if p.Stock == stockAnterior {
			return nil
		}
		return s.movRepo.CreateTx(tx, &model.MovimientoStock{
			ProductoID:    p.ID,
			Tipo:          model.MovimientoEdicion,
			Cantidad:      p.Stock - stockAnterior,
			StockAnterior: stockAnterior,
			StockNuevo:    p.Stock,
			Motivo:        "edicion de producto",
		})
	})
	if err != nil {
		if nuevas != nil {
			s.images.Delete(nuevas)
		}
		return nil, err
	}
	if len(viejas) > 0 {
		s.images.Delete(viejas)
	}

	s.cache.invalidar(ctx)
	resp := productoToResponse(p)
	return &resp, nil
}

func (s *productoService) Eliminar(ctx context.Context, id uuid.UUID) error {
	p, err := s.buscar(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrForeignKeyViolated) {
			return fmt.Errorf("%w: el producto figura en pedidos, ocultalo en lugar de borrarlo", ErrConflicto)
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return noEncontrado("producto")
		}
		return err
	}
	s.images.Delete(p.Imagenes)
	s.cache.invalidar(ctx)
	log.Info().Str("producto_id", id.String()).Msg("producto eliminado")
	return nil
}

// AjustarStock applies a signed delta under a row lock.
func (s *productoService) AjustarStock(ctx context.Context, id uuid.UUID, delta int) (*dto.StockResponse, error) {
	var nuevo int
	err := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		p, err := s.repo.FindByIDForUpdateTx(tx, id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return noEncontrado("producto")
		}
		if err != nil {
			return err
		}
		nuevo = p.Stock + delta
		if nuevo < 0 {
			return &StockInsuficienteError{
				ProductoID:         p.ID,
				Nombre:             p.Nombre,
				StockDisponible:    p.Stock,
				CantidadSolicitada: -delta,
			}
		}
		if err := s.repo.UpdateStockTx(tx, id, delta); err != nil {
			return err
		}
		return s.movRepo.CreateTx(tx, &model.MovimientoStock{
			ProductoID:    id,
			Tipo:          model.MovimientoAjusteManual,
			Cantidad:      delta,
			StockAnterior: p.Stock,
			StockNuevo:    nuevo,
			Motivo:        "ajuste manual",
		})
	})
	if err != nil {
		return nil, err
	}
	s.cache.invalidar(ctx)
	return &dto.StockResponse{Message: "Stock actualizado", StockActual: nuevo}, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func (s *productoService) buscar(ctx context.Context, id uuid.UUID) (*model.Producto, error) {
	p, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, noEncontrado("producto")
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// validarImagenes requires exactly ImagenesPorProducto data URIs of an accepted type.
func validarImagenes(imagenes []string, fields map[string]string) {
	if len(imagenes) != model.ImagenesPorProducto {
		fields["imagenes"] = fmt.Sprintf("se requieren exactamente %d imagenes", model.ImagenesPorProducto)
		return
	}
	for i, img := range imagenes {
		if _, _, err := infra.DecodeDataURI(img); err != nil {
			fields["imagenes"] = fmt.Sprintf("la imagen %d no es jpeg, png o webp en base64", i+1)
			return
		}
	}
}

func productoToResponse(p *model.Producto) dto.ProductoResponse {
	imagenes := []string(p.Imagenes)
	if imagenes == nil {
		imagenes = []string{}
	}
	return dto.ProductoResponse{
		ID:          p.ID.String(),
		Nombre:      p.Nombre,
		Precio:      p.Precio,
		Stock:       p.Stock,
		Descripcion: p.Descripcion,
		Imagen:      p.Imagen,
		Imagenes:    imagenes,
		Visible:     p.Visible,
	}
}

func productosToResponse(productos []model.Producto) []dto.ProductoResponse {
	out := make([]dto.ProductoResponse, 0, len(productos))
	for i := range productos {
		out = append(out, productoToResponse(&productos[i]))
	}
	return out
}
