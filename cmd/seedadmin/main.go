// cmd/seedadmin/main.go: crea o actualiza el administrador inicial.
// Uso: ADMIN_EMAIL=... ADMIN_PASSWORD=... go run ./cmd/seedadmin
package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/Ambrosio03/TFG/internal/config"
	"github.com/Ambrosio03/TFG/internal/infra"
	"github.com/Ambrosio03/TFG/internal/model"
	"github.com/Ambrosio03/TFG/internal/repository"
	"github.com/Ambrosio03/TFG/internal/service"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	nombre := envOr("ADMIN_USERNAME", "admin")
	email := envOr("ADMIN_EMAIL", "admin@tienda.local")
	password := os.Getenv("ADMIN_PASSWORD")
	if len(password) < 6 {
		log.Fatal().Msg("ADMIN_PASSWORD must have at least 6 characters")
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect error")
	}

	hash, err := service.HashPassword(password)
	if err != nil {
		log.Fatal().Err(err).Msg("bcrypt error")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo := repository.NewUsuarioRepository(db)
	u, err := repo.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		u = &model.Usuario{NombreUsuario: nombre, Email: email}
		u.PasswordHash = hash
		u.Rol = model.RolAdmin
		err = repo.Create(ctx, u)
	case err == nil:
		u.PasswordHash = hash
		u.Rol = model.RolAdmin
		u.Bloqueado = false
		err = repo.Update(ctx, u)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("failed to save admin")
	}
	log.Info().Str("email", email).Str("id", u.ID.String()).Msg("admin creado/actualizado")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
