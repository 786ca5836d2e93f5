package main

import (
	"log"

	"vistream/billing-service/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		log.Fatalf("billing service failed: %v", err)
	}
}
