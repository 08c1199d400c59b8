//go:build integration

package router_test

// End-to-end tests against real Postgres + Redis via testcontainers.
// Run with: go test -tags integration ./internal/router/... -v

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Ambrosio03/TFG/internal/config"
	"github.com/Ambrosio03/TFG/internal/dto"
	"github.com/Ambrosio03/TFG/internal/infra"
	"github.com/Ambrosio03/TFG/internal/model"
	"github.com/Ambrosio03/TFG/internal/repository"
	"github.com/Ambrosio03/TFG/internal/router"
	"github.com/Ambrosio03/TFG/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
	"gorm.io/gorm"
)

const pngDataURI = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII="

// ── Helpers ──────────────────────────────────────────────────────────────────

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewBuffer(b)
}

func do(t *testing.T, srv *httptest.Server, method, path string, body *bytes.Buffer, token string) *http.Response {
	t.Helper()
	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequest(method, srv.URL+path, body)
	} else {
		req, err = http.NewRequest(method, srv.URL+path, nil)
	}
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, dest any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dest))
}

func upload(t *testing.T, srv *httptest.Server, path, filename, content, token string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	return resp
}

// ── Test Suite Setup ─────────────────────────────────────────────────────────

type testEnv struct {
	server *httptest.Server
	db     *gorm.DB
}

const (
	adminEmail    = "admin@tienda.test"
	adminPassword = "admin-secret"
)

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	pgC, err := tcPostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15-alpine"),
		tcPostgres.WithDatabase("tienda_test"),
		tcPostgres.WithUsername("tienda"),
		tcPostgres.WithPassword("tienda"),
		tcPostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	pgURL, err := pgC.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	rdC, err := tcRedis.RunContainer(ctx,
		testcontainers.WithImage("redis:7-alpine"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdC.Terminate(ctx) })

	rdURL, err := rdC.ConnectionString(ctx)
	require.NoError(t, err)

	cfg := &config.Config{
		Port:                   8000,
		Env:                    "test",
		JWTSecret:              "test-secret-key",
		JWTExpirationHours:     8,
		AuthRejectBlocked:      true,
		DatabaseURL:            pgURL,
		RedisURL:               rdURL,
		WorkerPoolSize:         1,
		ImageStoragePath:       t.TempDir(),
		PDFStoragePath:         t.TempDir(),
		PlaceholderImage:       "placeholder.webp",
		CatalogCacheTTLMinutes: 1,
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	require.NoError(t, err)
	rdb, err := infra.NewRedis(cfg.RedisURL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	hash, err := service.HashPassword(adminPassword)
	require.NoError(t, err)
	require.NoError(t, repository.NewUsuarioRepository(db).Create(ctx, &model.Usuario{
		NombreUsuario: "admin",
		Email:         adminEmail,
		PasswordHash:  hash,
		Rol:           model.RolAdmin,
	}))

	engine := router.New(cfg, router.Deps{
		DB:     db,
		Redis:  rdb,
		Images: infra.NewImageStore(cfg.ImageStoragePath, cfg.PlaceholderImage),
	})
	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)

	return &testEnv{server: srv, db: db}
}

func (e *testEnv) login(t *testing.T, email, password string) dto.LoginResponse {
	t.Helper()
	resp := do(t, e.server, http.MethodPost, "/login", jsonBody(t, map[string]string{
		"email": email, "password": password,
	}), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out dto.LoginResponse
	decodeJSON(t, resp, &out)
	require.NotEmpty(t, out.AccessToken)
	return out
}

func (e *testEnv) register(t *testing.T, nombre, email string) {
	t.Helper()
	resp := do(t, e.server, http.MethodPost, "/register", jsonBody(t, map[string]string{
		"nombre_usuario": nombre, "email": email, "password": "secreto1",
	}), "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()
}

// ── Shop flow ────────────────────────────────────────────────────────────────

func TestE2E_CatalogCartCheckout(t *testing.T) {
	env := setupTestEnv(t)
	srv := env.server

	// register + login use the shared credential limiter (5/min per IP)
	env.register(t, "ana", "ana@tienda.test")
	env.register(t, "luis", "luis@tienda.test")
	admin := env.login(t, adminEmail, adminPassword)
	ana := env.login(t, "ana@tienda.test", "secreto1")
	luis := env.login(t, "luis@tienda.test", "secreto1")
	assert.Equal(t, string(model.RolCliente), ana.Role)

	// Clients cannot reach admin routes.
	resp := do(t, srv, http.MethodGet, "/product/all", nil, ana.AccessToken)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	// ── Admin creates a product ──
	resp = do(t, srv, http.MethodPost, "/product", jsonBody(t, map[string]any{
		"nombre":      "Taza",
		"precio":      "12.50",
		"stock":       5,
		"descripcion": "Taza de cerámica",
		"imagenes":    []string{pngDataURI, pngDataURI, pngDataURI, pngDataURI},
	}), admin.AccessToken)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var creado dto.ProductoMutacionResponse
	decodeJSON(t, resp, &creado)
	prod := creado.Producto
	require.Len(t, prod.Imagenes, 4)
	require.NotNil(t, prod.Imagen)
	assert.Equal(t, prod.Imagenes[0], *prod.Imagen)

	// Stored image is served statically.
	img, err := srv.Client().Get(srv.URL + "/images/products/" + prod.Imagenes[0])
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, img.StatusCode)
	img.Body.Close()

	// Public catalog lists it.
	resp = do(t, srv, http.MethodGet, "/product", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var catalogo []dto.ProductoResponse
	decodeJSON(t, resp, &catalogo)
	require.Len(t, catalogo, 1)
	assert.Equal(t, "Taza", catalogo[0].Nombre)

	// ── Cart ──
	resp = do(t, srv, http.MethodPost, "/cart/add", jsonBody(t, map[string]any{
		"user_id": ana.ID, "product_id": prod.ID, "quantity": 6,
	}), ana.AccessToken)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "quantity above stock")
	resp.Body.Close()

	resp = do(t, srv, http.MethodPost, "/cart/add", jsonBody(t, map[string]any{
		"user_id": ana.ID, "product_id": prod.ID, "quantity": 2,
	}), ana.AccessToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Another client cannot read or fill Ana's cart.
	resp = do(t, srv, http.MethodGet, "/cart/"+ana.ID, nil, luis.AccessToken)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()
	resp = do(t, srv, http.MethodPost, "/cart/add", jsonBody(t, map[string]any{
		"user_id": ana.ID, "product_id": prod.ID, "quantity": 1,
	}), luis.AccessToken)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp = do(t, srv, http.MethodGet, "/cart/"+ana.ID, nil, ana.AccessToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var carrito dto.CarritoResponse
	decodeJSON(t, resp, &carrito)
	require.Len(t, carrito.Items, 1)
	assert.Equal(t, 2, carrito.Items[0].Quantity)

	// ── Checkout ──
	resp = do(t, srv, http.MethodPost, "/pedidos/crear", jsonBody(t, map[string]string{
		"user_id": ana.ID,
	}), ana.AccessToken)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var pedido dto.CrearPedidoResponse
	decodeJSON(t, resp, &pedido)
	assert.Equal(t, string(model.EstadoPendiente), pedido.Estado)
	assert.Equal(t, "25", pedido.Total.String())

	resp = do(t, srv, http.MethodGet, "/product/"+prod.ID, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var despues dto.ProductoResponse
	decodeJSON(t, resp, &despues)
	assert.Equal(t, 3, despues.Stock)

	// The cart is consumed by the checkout.
	resp = do(t, srv, http.MethodPost, "/pedidos/crear", jsonBody(t, map[string]string{
		"user_id": ana.ID,
	}), ana.AccessToken)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// Order detail is private to its owner.
	resp = do(t, srv, http.MethodGet, "/pedidos/"+pedido.PedidoID, nil, luis.AccessToken)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp = do(t, srv, http.MethodGet, "/pedidos/"+pedido.PedidoID+"/comprobante", nil, ana.AccessToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	resp.Body.Close()

	// ── Admin moves the order forward ──
	resp = do(t, srv, http.MethodPatch, "/pedidos/"+pedido.PedidoID+"/estado", jsonBody(t, map[string]string{
		"estado": string(model.EstadoEnviado),
	}), admin.AccessToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = do(t, srv, http.MethodGet, "/pedidos/"+pedido.PedidoID, nil, ana.AccessToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var detalle dto.PedidoResponse
	decodeJSON(t, resp, &detalle)
	assert.Equal(t, string(model.EstadoEnviado), detalle.Estado)
	assert.NotNil(t, detalle.FechaEnvio)
	require.Len(t, detalle.Items, 1)
	assert.Equal(t, "12.5", detalle.Items[0].PrecioUnitario.String())

	// ── Admin rename while another transaction holds a stock change ──
	tx := env.db.Begin()
	require.NoError(t, tx.Error)
	require.NoError(t, tx.Exec(`UPDATE productos SET stock = stock - 1 WHERE id = ?`, prod.ID).Error)

	renamed := make(chan int, 1)
	go func() {
		req, err := http.NewRequest(http.MethodPatch, srv.URL+"/product/"+prod.ID, strings.NewReader(`{"nombre":"Taza XL"}`))
		if err != nil {
			renamed <- 0
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+admin.AccessToken)
		r, err := srv.Client().Do(req)
		if err != nil {
			renamed <- 0
			return
		}
		r.Body.Close()
		renamed <- r.StatusCode
	}()
	time.Sleep(300 * time.Millisecond) // let the PATCH reach the row lock
	require.NoError(t, tx.Commit().Error)
	assert.Equal(t, http.StatusOK, <-renamed)

	resp = do(t, srv, http.MethodGet, "/product/"+prod.ID, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeJSON(t, resp, &despues)
	assert.Equal(t, "Taza XL", despues.Nombre)
	assert.Equal(t, 2, despues.Stock, "the rename must not write back the stock it read")

	// Referenced products cannot be deleted.
	resp = do(t, srv, http.MethodDelete, "/product/"+prod.ID, nil, admin.AccessToken)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	// ── Bulk import ──
	csv := "nombre,descripcion,precio,stock,visible\n" +
		"Plato,Plato llano,8.90,10,si\n" +
		"Gorra,Gorra roja,5,3,no\n" +
		"Vaso,Vaso de vidrio,abc,4,1\n"
	resp = upload(t, srv, "/product/import-csv", "productos.csv", csv, admin.AccessToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var imp dto.ImportResponse
	decodeJSON(t, resp, &imp)
	assert.Equal(t, 2, imp.Imported)
	require.Len(t, imp.Errors, 1)
	assert.Equal(t, 3, imp.Errors[0].Row)

	// Hidden rows stay out of the public catalog.
	resp = do(t, srv, http.MethodGet, "/product", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	catalogo = nil
	decodeJSON(t, resp, &catalogo)
	publicos := make([]string, 0, len(catalogo))
	for _, p := range catalogo {
		publicos = append(publicos, p.Nombre)
	}
	assert.ElementsMatch(t, []string{"Taza XL", "Plato"}, publicos)

	resp = do(t, srv, http.MethodGet, "/product/all", nil, admin.AccessToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var todos []dto.ProductoResponse
	decodeJSON(t, resp, &todos)
	nombres := make([]string, 0, len(todos))
	for _, p := range todos {
		nombres = append(nombres, p.Nombre)
	}
	assert.ElementsMatch(t, []string{"Taza XL", "Plato", "Gorra"}, nombres)
}

func TestE2E_Health(t *testing.T) {
	env := setupTestEnv(t)

	resp := do(t, env.server, http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]any
	decodeJSON(t, resp, &body)
	assert.Equal(t, true, body["ok"])

	resp = do(t, env.server, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err := buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(buf.String(), "tienda_api_http_requests_total"))
}
