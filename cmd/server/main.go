package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/aquib-J/mysecondbrain-backend/internal/app"
	"github.com/aquib-J/mysecondbrain-backend/internal/platform/envutil"
)

func main() {
	// Best effort; in containers the env comes from the orchestrator.
	_ = godotenv.Load()

	a, err := app.New()
	if err != nil {
		fmt.Printf("Failed to start: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	a.Start()

	port := envutil.String("PORT", "8080")
	a.Log.Info("Server listening", "port", port)
	if err := a.Run(":" + port); err != nil {
		a.Log.Error("Server failed", "error", err)
	}
}
