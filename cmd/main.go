package main

import (
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"

	"stamprally/internal/config"
	"stamprally/internal/handlers"
	"stamprally/internal/services"
	"stamprally/internal/storage"
)

func main() {
	// 1. Load configuration (.env, flags, environment)
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	lg := logger.Init("stamprally", true, false, io.Discard)
	defer lg.Close()

	// 2. Open the database and bring the schema up to date
	db, err := storage.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	if err := storage.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	store := storage.NewStore(db)

	// 3. Seed booths when a seed file is configured
	if cfg.SeedFile != "" {
		n, err := store.Booths.SeedFromFile(cfg.SeedFile)
		if err != nil {
			log.Fatalf("Failed to seed booths: %v", err)
		}
		logger.Infof("Seeded %d booths from %s", n, cfg.SeedFile)
	}

	// 4. Initialize the services and HTTP handler
	stampService := services.NewStampService(store, cfg.RequiredTotal, cfg.TicketsPerStamps)
	drawService := services.NewDrawService(store.Registry)
	httpHandler := handlers.NewHTTPHandler(stampService, drawService, cfg.AdminKey)

	// 5. Set up the Gin router
	r := gin.Default()
	httpHandler.RegisterRoutes(r)

	server := http.Server{
		Handler: r,
		Addr:    ":" + strconv.Itoa(cfg.Port),
	}

	// signal.Notify requires the channel to be buffered
	ctrlc := make(chan os.Signal, 1)
	signal.Notify(ctrlc, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctrlc
		server.Close()
	}()

	// 6. Run the server
	log.Printf("Server starting on http://localhost:%d", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Failed to run server: %v", err)
	}
}
