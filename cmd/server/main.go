package main

import (
	"log"

	"github.com/kestrelchat/kestrel/internal/server"
)

func main() {
	// Create a new server instance.
	s, err := server.New()
	if err != nil {
		log.Fatalf("Failed to initialize server: %v", err)
	}

	// Register all application routes.
	s.RegisterRoutes()

	// Start the server.
	s.Start()
}
