package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/sstpro/backend/config"
	"github.com/sstpro/backend/handlers"
	"github.com/sstpro/backend/middleware"
	"github.com/sstpro/backend/pdf"
	"github.com/sstpro/backend/routes"
	"github.com/sstpro/backend/storage"
)

var (
	Version   = "dev"
	BuildTime = ""
)

func main() {
	versionFlag := flag.Bool("version", false, "Print version info and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("Version:   %s\n", Version)
		fmt.Printf("BuildTime: %s\n", BuildTime)
		os.Exit(0)
	}

	db, err := config.Connect()
	if err != nil {
		log.Fatalf("could not connect to database: %v", err)
	}
	if err := config.Migrations(db); err != nil {
		log.Fatalf("could not run migrations: %v", err)
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET is required")
	}
	tokens := middleware.NewTokenManager(secret)

	var images storage.ImageStore
	uploadsDir := ""
	if os.Getenv("USE_GCS") == "true" {
		gcs, err := storage.NewGCSStore(context.Background())
		if err != nil {
			log.Fatalf("could not open GCS store: %v", err)
		}
		images = gcs
		log.Println("Using GCS image store")
	} else {
		local, err := storage.NewLocalStore(os.Getenv("UPLOAD_DIR"))
		if err != nil {
			log.Fatalf("could not open local store: %v", err)
		}
		images = local
		uploadsDir = local.Dir()
		log.Println("Using local image store at", uploadsDir)
	}

	h := handlers.New(db, images, tokens, pdf.WKHTMLConverter{})
	handler := routes.RegisterRoutes(h, tokens, uploadsDir)
	handlerWithCORS := enableCORS(handler)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Println("Server starting at port", port)
	log.Fatal(http.ListenAndServe(":"+port, handlerWithCORS))
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
