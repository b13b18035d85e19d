package main

import (
	"aiblog/cmd/handlers"
	"aiblog/internal/logger"
)

func main() {
	logger.Init() // Initialize the logger
	handlers.Execute()
}
