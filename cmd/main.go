package main

import (
	"log"
	"os"

	"wedding-quiz-service/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		log.Printf("wedding-quiz: %v", err)
		os.Exit(1)
	}
}
