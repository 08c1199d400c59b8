package dto

// ─── Request DTOs ────────────────────────────────────────────────────────────

type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RegisterRequest struct {
	NombreUsuario string `json:"nombre_usuario" validate:"required,min=1,max=255"`
	Email         string `json:"email"          validate:"required,email,max=255"`
	Password      string `json:"password"       validate:"required,min=6"`
}

type CambiarRolRequest struct {
	Role string `json:"role" validate:"required"`
}

type CambiarBloqueoRequest struct {
	IsBlocked *bool `json:"isBlocked" validate:"required"`
}

type UsuarioFilter struct {
	Search string `form:"search"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type UsuarioResponse struct {
	ID            string `json:"id"`
	NombreUsuario string `json:"nombre_usuario"`
	Email         string `json:"email"`
	Role          string `json:"role"`
	IsBlocked     bool   `json:"isBlocked"`
}

// LoginResponse keeps the profile fields at top level next to the token.
type LoginResponse struct {
	UsuarioResponse
	AccessToken string `json:"access_token,omitempty"`
	TokenType   string `json:"token_type,omitempty"`
	ExpiresIn   int    `json:"expires_in,omitempty"` // seconds
}

type RegisterResponse struct {
	Message string          `json:"message"`
	User    UsuarioResponse `json:"user"`
}

type CambiarRolResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
	Role    string `json:"role"`
}

type CambiarBloqueoResponse struct {
	Message   string `json:"message"`
	ID        string `json:"id"`
	IsBlocked bool   `json:"isBlocked"`
}
