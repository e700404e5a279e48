// Command seed provisions or updates a portal user. The portal never creates accounts itself.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ir-comercio/ir-comercio-sistema/internal/auth"
	"github.com/ir-comercio/ir-comercio-sistema/internal/config"
	"github.com/ir-comercio/ir-comercio-sistema/internal/db"
	"github.com/ir-comercio/ir-comercio-sistema/internal/model"
	"github.com/ir-comercio/ir-comercio-sistema/internal/repo"
)

func main() {
	username := flag.String("username", "", "Login name (required)")
	password := flag.String("password", "", "Plain-text password, stored as a bcrypt hash (required)")
	name := flag.String("name", "", "Display name")
	sector := flag.String("sector", "", "Sector the user belongs to")
	admin := flag.Bool("admin", false, "Grant admin rights (exempt from business hours)")
	inactive := flag.Bool("inactive", false, "Create the account disabled")
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer func() { _ = logger.Sync() }()

	if *username == "" || *password == "" {
		flag.Usage()
		os.Exit(2)
	}

	_ = godotenv.Load(".env")
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	database, err := db.Open(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal("open database", zap.Error(err))
	}
	defer database.Close()

	if err := db.Migrate(database); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	hash, err := auth.NewPasswordHasher(cfg.BcryptCost).Hash(*password)
	if err != nil {
		logger.Fatal("hash password", zap.Error(err))
	}

	displayName := *name
	if displayName == "" {
		displayName = *username
	}
	user, err := repo.NewUserRepo(database).Upsert(ctx, model.User{
		Username:     *username,
		PasswordHash: hash,
		Name:         displayName,
		Sector:       *sector,
		IsAdmin:      *admin,
		IsActive:     !*inactive,
	})
	if err != nil {
		logger.Fatal("save user", zap.Error(err))
	}

	logger.Info("user provisioned",
		zap.String("id", user.ID.String()),
		zap.String("username", user.Username),
		zap.Bool("admin", user.IsAdmin),
		zap.Bool("active", user.IsActive),
	)
}
