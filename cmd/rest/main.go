package main

import (
	"context"
	"log"

	"calmconnect-be/internal/bootstrap"
	"calmconnect-be/internal/config"
	"calmconnect-be/internal/server"
	"calmconnect-be/internal/tracer"
	"calmconnect-be/pkg/database"
)

func main() {
	shutdownTracer := tracer.InitTracer()
	defer shutdownTracer(context.Background())

	cfg := config.Load()

	gormDB, err := database.NewGormDBFromDSN(cfg.Database.Connection)
	if err != nil {
		log.Panicf("Unable to connect to GORM DB: %v", err)
	}

	container := bootstrap.NewContainer(gormDB, cfg)

	// Event workers and the expiry sweeper run for the process lifetime.
	if err := container.NotificationService.Start(context.Background()); err != nil {
		log.Printf("Background worker error: %v", err)
	}

	srv := server.New(cfg, container)

	log.Fatal(srv.Run())
}
