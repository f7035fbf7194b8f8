package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/goSTYLO/My-Crew-Manager-sub001/internal/models"
	"github.com/goSTYLO/My-Crew-Manager-sub001/pkg/config"
	"github.com/goSTYLO/My-Crew-Manager-sub001/pkg/logger"
)

func main() {
	cfg := config.MustLoad()
	log, err := logger.Init(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	// gen_random_uuid() defaults need pgcrypto on Postgres < 13.
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS pgcrypto").Error; err != nil {
		log.Fatal("failed to enable pgcrypto", zap.Error(err))
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Project{},
		&models.ProjectMember{},
		&models.Sprint{},
		&models.Backlog{},
		&models.Epic{},
		&models.SubEpic{},
		&models.UserStory{},
		&models.Task{},
		&models.GenerationJob{},
		&models.ChatRoom{},
		&models.ChatMessage{},
	); err != nil {
		log.Fatal("migration failed", zap.Error(err))
	}

	fmt.Fprintln(os.Stdout, "migrations completed")
}
