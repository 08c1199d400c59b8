package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Ambrosio03/TFG/internal/config"
	"github.com/Ambrosio03/TFG/internal/dto"
	"github.com/Ambrosio03/TFG/internal/model"
	"github.com/Ambrosio03/TFG/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type AuthService interface {
	Registrar(ctx context.Context, req dto.RegisterRequest) (*dto.RegisterResponse, error)
	Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error)
	Me(ctx context.Context, id uuid.UUID) (*dto.UsuarioResponse, error)
	ListarUsuarios(ctx context.Context, search string) ([]dto.UsuarioResponse, error)
	CambiarRol(ctx context.Context, id uuid.UUID, rol string) (*dto.CambiarRolResponse, error)
	CambiarBloqueo(ctx context.Context, id uuid.UUID, bloqueado bool) (*dto.CambiarBloqueoResponse, error)
}

type authService struct {
	repo repository.UsuarioRepository
	cfg  *config.Config
}

func NewAuthService(repo repository.UsuarioRepository, cfg *config.Config) AuthService {
	return &authService{repo: repo, cfg: cfg}
}

// HashPassword is shared with the admin seeding command.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (s *authService) Registrar(ctx context.Context, req dto.RegisterRequest) (*dto.RegisterResponse, error) {
	nombre := strings.TrimSpace(req.NombreUsuario)
	email := strings.TrimSpace(req.Email)
	fields := map[string]string{}
	if nombre == "" {
		fields["nombre_usuario"] = "es obligatorio"
	}
	if email == "" {
		fields["email"] = "es obligatorio"
	}
	if req.Password == "" {
		fields["password"] = "es obligatoria"
	}
	if len(fields) > 0 {
		return nil, validacion("faltan datos de registro", fields)
	}

	existe, err := s.repo.ExistsNombreOrEmail(ctx, nombre, email)
	if err != nil {
		return nil, err
	}
	if existe {
		return nil, fmt.Errorf("%w: el nombre de usuario o el email ya estan registrados", ErrConflicto)
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	user := &model.Usuario{
		NombreUsuario: nombre,
		Email:         email,
		PasswordHash:  hash,
		Rol:           model.RolCliente,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: el nombre de usuario o el email ya estan registrados", ErrConflicto)
		}
		return nil, err
	}

	log.Info().Str("usuario_id", user.ID.String()).Str("nombre_usuario", nombre).Msg("usuario registrado")
	return &dto.RegisterResponse{Message: "Usuario registrado correctamente", User: usuarioToResponse(user)}, nil
}

// Login never issues a token to a blocked user. With AuthRejectBlocked the
// attempt fails with ErrUsuarioBloqueado; otherwise the profile is returned
// with isBlocked=true and no token.
func (s *authService) Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error) {
	user, err := s.repo.FindByEmail(ctx, strings.TrimSpace(req.Email))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, noEncontrado("usuario")
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrCredencialesInvalidas
	}

	resp := &dto.LoginResponse{UsuarioResponse: usuarioToResponse(user)}
	if user.Bloqueado {
		if s.cfg.AuthRejectBlocked {
			return nil, ErrUsuarioBloqueado
		}
		return resp, nil
	}

	token, err := s.generateToken(user, time.Duration(s.cfg.JWTExpirationHours)*time.Hour)
	if err != nil {
		return nil, err
	}
	resp.AccessToken = token
	resp.TokenType = "bearer"
	resp.ExpiresIn = s.cfg.JWTExpirationHours * 3600
	return resp, nil
}

func (s *authService) Me(ctx context.Context, id uuid.UUID) (*dto.UsuarioResponse, error) {
	user, err := s.buscar(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := usuarioToResponse(user)
	return &resp, nil
}

func (s *authService) ListarUsuarios(ctx context.Context, search string) ([]dto.UsuarioResponse, error) {
	users, err := s.repo.List(ctx, strings.TrimSpace(search))
	if err != nil {
		return nil, err
	}
	resp := make([]dto.UsuarioResponse, len(users))
	for i := range users {
		resp[i] = usuarioToResponse(&users[i])
	}
	return resp, nil
}

func (s *authService) CambiarRol(ctx context.Context, id uuid.UUID, rol string) (*dto.CambiarRolResponse, error) {
	nuevo, ok := model.ParseRol(rol)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrRolInvalido, rol)
	}
	user, err := s.buscar(ctx, id)
	if err != nil {
		return nil, err
	}
	user.Rol = nuevo
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, err
	}
	log.Info().Str("usuario_id", id.String()).Str("rol", string(nuevo)).Msg("rol actualizado")
	return &dto.CambiarRolResponse{Message: "Rol actualizado correctamente", ID: id.String(), Role: string(nuevo)}, nil
}

func (s *authService) CambiarBloqueo(ctx context.Context, id uuid.UUID, bloqueado bool) (*dto.CambiarBloqueoResponse, error) {
	user, err := s.buscar(ctx, id)
	if err != nil {
		return nil, err
	}
	user.Bloqueado = bloqueado
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, err
	}
	msg := "Usuario desbloqueado"
	if bloqueado {
		msg = "Usuario bloqueado"
	}
	log.Info().Str("usuario_id", id.String()).Bool("bloqueado", bloqueado).Msg("bloqueo actualizado")
	return &dto.CambiarBloqueoResponse{Message: msg, ID: id.String(), IsBlocked: bloqueado}, nil
}

func (s *authService) buscar(ctx context.Context, id uuid.UUID) (*model.Usuario, error) {
	user, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, noEncontrado("usuario")
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *authService) generateToken(user *model.Usuario, duration time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"user_id":  user.ID.String(),
		"username": user.NombreUsuario,
		"rol":      string(user.Rol),
		"exp":      time.Now().Add(duration).Unix(),
		"iat":      time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}

func usuarioToResponse(u *model.Usuario) dto.UsuarioResponse {
	return dto.UsuarioResponse{
		ID:            u.ID.String(),
		NombreUsuario: u.NombreUsuario,
		Email:         u.Email,
		Role:          string(u.Rol),
		IsBlocked:     u.Bloqueado,
	}
}
