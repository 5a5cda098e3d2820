package main

import (
	"github.com/nfrund/projecthub/internal/server"
)

func main() {
	// Create a new server instance.
	s := server.New(server.Options{})

	// Register all application routes.
	s.RegisterRoutes()

	// Start the server.
	s.Start()
}
