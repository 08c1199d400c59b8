package service_test

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/Ambrosio03/TFG/internal/model"
	"github.com/Ambrosio03/TFG/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ── In-memory store ───────────────────────────────────────────────────────────
// One store backs every stub repo so cross-entity effects (checkout deleting
// the cart, decrementing stock) are observable. Reads return copies.

type memStore struct {
	mu          sync.Mutex
	productos   map[uuid.UUID]*model.Producto
	usuarios    map[uuid.UUID]*model.Usuario
	carritos    map[uuid.UUID]*model.Carrito
	items       map[uuid.UUID]*model.CarritoItem
	pedidos     map[uuid.UUID]*model.Pedido
	movimientos []model.MovimientoStock

	// failCreatePedido makes PedidoRepository.CreateTx fail when set.
	failCreatePedido error

	// bloqueos records row locks in acquisition order ("carrito"/"producto").
	bloqueos []string
	// columnas records the column set of every product UpdateFieldsTx.
	columnas [][]string
	// trasLeerProducto runs once, right after the next product read, to model
	// another transaction committing in between.
	trasLeerProducto func(*memStore)
}

func newMemStore() *memStore {
	return &memStore{
		productos: make(map[uuid.UUID]*model.Producto),
		usuarios:  make(map[uuid.UUID]*model.Usuario),
		carritos:  make(map[uuid.UUID]*model.Carrito),
		items:     make(map[uuid.UUID]*model.CarritoItem),
		pedidos:   make(map[uuid.UUID]*model.Pedido),
	}
}

func (s *memStore) seedUsuario(email string) *model.Usuario {
	u := &model.Usuario{
		ID:            uuid.New(),
		NombreUsuario: strings.Split(email, "@")[0],
		Email:         email,
		Rol:           model.RolCliente,
	}
	s.usuarios[u.ID] = u
	return u
}

func (s *memStore) seedProducto(nombre, precio string, stock int) *model.Producto {
	p := &model.Producto{
		ID:          uuid.New(),
		Nombre:      nombre,
		Precio:      mustDecimal(precio),
		Stock:       stock,
		Descripcion: nombre,
		Imagenes:    model.Imagenes{"a.png", "b.png", "c.png", "d.png"},
		Visible:     true,
	}
	img := p.Imagenes[0]
	p.Imagen = &img
	s.productos[p.ID] = p
	return p
}

func (s *memStore) seedCarrito(usuarioID uuid.UUID, lineas map[uuid.UUID]int) *model.Carrito {
	c := &model.Carrito{ID: uuid.New(), UsuarioID: usuarioID, Estado: model.EstadoCarritoPendiente}
	s.carritos[c.ID] = c
	for productoID, cantidad := range lineas {
		it := &model.CarritoItem{ID: uuid.New(), CarritoID: c.ID, ProductoID: productoID, Cantidad: cantidad}
		s.items[it.ID] = it
	}
	return c
}

func (s *memStore) stock(id uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.productos[id].Stock
}

func (s *memStore) itemsDe(carritoID uuid.UUID) []model.CarritoItem {
	var out []model.CarritoItem
	for _, it := range s.items {
		if it.CarritoID == carritoID {
			out = append(out, *it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out
}

// ── Producto ──────────────────────────────────────────────────────────────────

type stubProductoRepo struct{ s *memStore }

var _ repository.ProductoRepository = (*stubProductoRepo)(nil)

func (r *stubProductoRepo) Create(_ context.Context, p *model.Producto) error {
	return r.CreateTx(nil, p)
}

func (r *stubProductoRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Producto, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.copia(id)
}

func (r *stubProductoRepo) copia(id uuid.UUID) (*model.Producto, error) {
	p, ok := r.s.productos[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *p
	if hook := r.s.trasLeerProducto; hook != nil {
		r.s.trasLeerProducto = nil
		hook(r.s)
	}
	return &cp, nil
}

func (r *stubProductoRepo) list(filter func(*model.Producto) bool) []model.Producto {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.Producto{}
	for _, p := range r.s.productos {
		if filter(p) {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Nombre < out[j].Nombre })
	return out
}

func (r *stubProductoRepo) ListVisibles(_ context.Context) ([]model.Producto, error) {
	return r.list(func(p *model.Producto) bool { return p.Visible }), nil
}

func (r *stubProductoRepo) ListAll(_ context.Context) ([]model.Producto, error) {
	return r.list(func(*model.Producto) bool { return true }), nil
}

func (r *stubProductoRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.productos[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	for _, p := range r.s.pedidos {
		for _, it := range p.Items {
			if it.ProductoID == id {
				return gorm.ErrForeignKeyViolated
			}
		}
	}
	delete(r.s.productos, id)
	return nil
}

func (r *stubProductoRepo) CreateTx(_ *gorm.DB, p *model.Producto) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	cp := *p
	r.s.productos[p.ID] = &cp
	return nil
}

// UpdateFieldsTx applies only the listed columns, like the GORM map update.
func (r *stubProductoRepo) UpdateFieldsTx(_ *gorm.DB, id uuid.UUID, campos map[string]interface{}) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.productos[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	cols := make([]string, 0, len(campos))
	for k := range campos {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	r.s.columnas = append(r.s.columnas, cols)
	for k, v := range campos {
		switch k {
		case "nombre":
			p.Nombre = v.(string)
		case "descripcion":
			p.Descripcion = v.(string)
		case "precio":
			p.Precio = v.(decimal.Decimal)
		case "stock":
			p.Stock = v.(int)
		case "visible":
			p.Visible = v.(bool)
		case "imagen":
			p.Imagen = v.(*string)
		case "imagenes":
			p.Imagenes = v.(model.Imagenes)
		default:
			panic("stub: columna desconocida " + k)
		}
	}
	return nil
}

func (r *stubProductoRepo) FindByIDForUpdateTx(_ *gorm.DB, id uuid.UUID) (*model.Producto, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.bloqueos = append(r.s.bloqueos, "producto")
	return r.copia(id)
}

func (r *stubProductoRepo) UpdateStockTx(_ *gorm.DB, id uuid.UUID, delta int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.productos[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	p.Stock += delta
	return nil
}

func (r *stubProductoRepo) DB() *gorm.DB { return nil }

// ── Usuario ───────────────────────────────────────────────────────────────────

type stubUsuarioRepo struct {
	s *memStore
	// createErr is returned by Create when set, e.g. a unique violation race.
	createErr error
}

var _ repository.UsuarioRepository = (*stubUsuarioRepo)(nil)

func (r *stubUsuarioRepo) Create(_ context.Context, u *model.Usuario) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u.ID = uuid.New()
	cp := *u
	r.s.usuarios[u.ID] = &cp
	return nil
}

func (r *stubUsuarioRepo) FindByEmail(_ context.Context, email string) (*model.Usuario, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.usuarios {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubUsuarioRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Usuario, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.usuarios[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *stubUsuarioRepo) ExistsNombreOrEmail(_ context.Context, nombre, email string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.usuarios {
		if u.NombreUsuario == nombre || strings.EqualFold(u.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (r *stubUsuarioRepo) List(_ context.Context, search string) ([]model.Usuario, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.Usuario{}
	for _, u := range r.s.usuarios {
		if search == "" || strings.Contains(strings.ToLower(u.NombreUsuario), strings.ToLower(search)) {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NombreUsuario < out[j].NombreUsuario })
	return out, nil
}

func (r *stubUsuarioRepo) Update(_ context.Context, u *model.Usuario) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.usuarios[u.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	cp := *u
	r.s.usuarios[u.ID] = &cp
	return nil
}

// ── Carrito ───────────────────────────────────────────────────────────────────

type stubCarritoRepo struct{ s *memStore }

var _ repository.CarritoRepository = (*stubCarritoRepo)(nil)

func (r *stubCarritoRepo) FindPendienteByUsuario(_ context.Context, usuarioID uuid.UUID) (*model.Carrito, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.pendiente(usuarioID)
}

func (r *stubCarritoRepo) ListItems(_ context.Context, carritoID uuid.UUID) ([]model.CarritoItem, error) {
	return r.ListItemsTx(nil, carritoID)
}

func (r *stubCarritoRepo) FindItemByID(_ context.Context, itemID uuid.UUID) (*model.CarritoItem, error) {
	return r.FindItemByIDTx(nil, itemID)
}

func (r *stubCarritoRepo) DeleteItem(_ context.Context, itemID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.items[itemID]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.s.items, itemID)
	return nil
}

func (r *stubCarritoRepo) FindPendienteByUsuarioTx(_ *gorm.DB, usuarioID uuid.UUID) (*model.Carrito, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.bloqueos = append(r.s.bloqueos, "carrito")
	return r.pendiente(usuarioID)
}

func (r *stubCarritoRepo) FindByIDForUpdateTx(_ *gorm.DB, carritoID uuid.UUID) (*model.Carrito, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.bloqueos = append(r.s.bloqueos, "carrito")
	c, ok := r.s.carritos[carritoID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *stubCarritoRepo) pendiente(usuarioID uuid.UUID) (*model.Carrito, error) {
	for _, c := range r.s.carritos {
		if c.UsuarioID == usuarioID && c.Estado == model.EstadoCarritoPendiente {
			cp := *c
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubCarritoRepo) CreateTx(_ *gorm.DB, c *model.Carrito) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.carritos {
		if existing.UsuarioID == c.UsuarioID && existing.Estado == model.EstadoCarritoPendiente {
			return gorm.ErrDuplicatedKey
		}
	}
	c.ID = uuid.New()
	cp := *c
	r.s.carritos[c.ID] = &cp
	return nil
}

func (r *stubCarritoRepo) DeleteTx(_ *gorm.DB, carritoID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, it := range r.s.items {
		if it.CarritoID == carritoID {
			delete(r.s.items, id)
		}
	}
	delete(r.s.carritos, carritoID)
	return nil
}

func (r *stubCarritoRepo) ListItemsTx(_ *gorm.DB, carritoID uuid.UUID) ([]model.CarritoItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	items := r.s.itemsDe(carritoID)
	for i := range items {
		if p, ok := r.s.productos[items[i].ProductoID]; ok {
			cp := *p
			items[i].Producto = &cp
		}
	}
	return items, nil
}

func (r *stubCarritoRepo) FindItemTx(_ *gorm.DB, carritoID, productoID uuid.UUID) (*model.CarritoItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, it := range r.s.items {
		if it.CarritoID == carritoID && it.ProductoID == productoID {
			cp := *it
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubCarritoRepo) FindItemByIDTx(_ *gorm.DB, itemID uuid.UUID) (*model.CarritoItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	it, ok := r.s.items[itemID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *it
	if c, ok := r.s.carritos[it.CarritoID]; ok {
		cc := *c
		cp.Carrito = &cc
	}
	return &cp, nil
}

func (r *stubCarritoRepo) CreateItemTx(_ *gorm.DB, it *model.CarritoItem) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	it.ID = uuid.New()
	cp := *it
	r.s.items[it.ID] = &cp
	return nil
}

func (r *stubCarritoRepo) UpdateItemCantidadTx(_ *gorm.DB, itemID uuid.UUID, cantidad int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	it, ok := r.s.items[itemID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	it.Cantidad = cantidad
	return nil
}

func (r *stubCarritoRepo) DB() *gorm.DB { return nil }

// ── Pedido ────────────────────────────────────────────────────────────────────

type stubPedidoRepo struct{ s *memStore }

var _ repository.PedidoRepository = (*stubPedidoRepo)(nil)

func (r *stubPedidoRepo) CreateTx(_ *gorm.DB, p *model.Pedido) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failCreatePedido != nil {
		return r.s.failCreatePedido
	}
	cp := *p
	cp.Items = append([]model.PedidoItem(nil), p.Items...)
	r.s.pedidos[p.ID] = &cp
	return nil
}

// detalle mirrors the preloads of the gorm implementation.
func (r *stubPedidoRepo) detalle(p *model.Pedido) model.Pedido {
	cp := *p
	cp.Items = make([]model.PedidoItem, len(p.Items))
	for i, it := range p.Items {
		if prod, ok := r.s.productos[it.ProductoID]; ok {
			pc := *prod
			it.Producto = &pc
		}
		cp.Items[i] = it
	}
	if u, ok := r.s.usuarios[p.UsuarioID]; ok {
		uc := *u
		cp.Usuario = &uc
	}
	return cp
}

func (r *stubPedidoRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Pedido, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.pedidos[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := r.detalle(p)
	return &out, nil
}

func (r *stubPedidoRepo) list(filter func(*model.Pedido) bool) []model.Pedido {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.Pedido{}
	for _, p := range r.s.pedidos {
		if filter(p) {
			out = append(out, r.detalle(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FechaCreacion.After(out[j].FechaCreacion) })
	return out
}

func (r *stubPedidoRepo) List(_ context.Context) ([]model.Pedido, error) {
	return r.list(func(*model.Pedido) bool { return true }), nil
}

func (r *stubPedidoRepo) ListByUsuario(_ context.Context, usuarioID uuid.UUID) ([]model.Pedido, error) {
	return r.list(func(p *model.Pedido) bool { return p.UsuarioID == usuarioID }), nil
}

func (r *stubPedidoRepo) ListItems(_ context.Context) ([]model.PedidoItem, error) {
	var out []model.PedidoItem
	for _, p := range r.list(func(*model.Pedido) bool { return true }) {
		out = append(out, p.Items...)
	}
	return out, nil
}

func (r *stubPedidoRepo) UpdateEstado(_ context.Context, p *model.Pedido) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.pedidos[p.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	stored.Estado = p.Estado
	stored.FechaEnvio = p.FechaEnvio
	stored.FechaEntrega = p.FechaEntrega
	return nil
}

// ── MovimientoStock ───────────────────────────────────────────────────────────

type stubMovimientoRepo struct{ s *memStore }

var _ repository.MovimientoStockRepository = (*stubMovimientoRepo)(nil)

func (r *stubMovimientoRepo) Create(_ context.Context, m *model.MovimientoStock) error {
	return r.CreateTx(nil, m)
}

func (r *stubMovimientoRepo) CreateTx(_ *gorm.DB, m *model.MovimientoStock) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m.ID = uuid.New()
	r.s.movimientos = append(r.s.movimientos, *m)
	return nil
}

func (r *stubMovimientoRepo) ListByProducto(_ context.Context, productoID uuid.UUID, limit int) ([]model.MovimientoStock, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []model.MovimientoStock{}
	for i := len(r.s.movimientos) - 1; i >= 0 && len(out) < limit; i-- {
		if r.s.movimientos[i].ProductoID == productoID {
			out = append(out, r.s.movimientos[i])
		}
	}
	return out, nil
}

// ── Image storage ─────────────────────────────────────────────────────────────

type stubImages struct {
	saved   [][]string
	deleted [][]string
}

func (s *stubImages) Save(dataURIs []string) ([]string, error) {
	names := make([]string, len(dataURIs))
	for i := range dataURIs {
		names[i] = uuid.NewString() + ".png"
	}
	s.saved = append(s.saved, names)
	return names, nil
}

func (s *stubImages) Delete(names []string) { s.deleted = append(s.deleted, names) }

func (s *stubImages) Placeholder() string { return "placeholder.webp" }
