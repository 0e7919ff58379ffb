package main

import (
	"flag"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/soundloft/beatlab/internal/catalog"
	"github.com/soundloft/beatlab/pkg/beatlab"
)

var (
	port           int
	dbPath         string
	allowedOrigins string
	maxUploadMB    int
)

func init() {
	// .env is optional; flags and real env vars win.
	godotenv.Load()

	flag.IntVar(&port, "port", 8080, "HTTP server port")
	flag.StringVar(&dbPath, "db", getEnvOrDefault("BEATLAB_DB_PATH", catalog.DefaultDBFile), "Path to SQLite beat catalog")
	flag.StringVar(&allowedOrigins, "origins", getEnvOrDefault("BEATLAB_CORS_ORIGINS", "*"), "Comma-separated list of allowed CORS origins (use * for all)")
	flag.IntVar(&maxUploadMB, "max-upload", 50, "Maximum upload size in MB")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	flag.Parse()

	var origins []string
	if allowedOrigins == "*" {
		origins = []string{"*"}
	} else {
		origins = strings.Split(allowedOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
	}

	service, err := beatlab.NewService()
	if err != nil {
		log.Fatalf("Failed to create service: %v", err)
	}

	store, err := catalog.Open(dbPath)
	if err != nil {
		log.Fatalf("Failed to open beat catalog: %v", err)
	}
	defer store.Close()

	config := &ServerConfig{
		Port:           port,
		DBPath:         dbPath,
		AllowedOrigins: origins,
		MaxUploadBytes: int64(maxUploadMB) << 20,
	}

	server := NewServer(service, store, config)
	if err := server.Start(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
