package main

import (
	"newscurator/cmd/handlers"
	"newscurator/internal/logger"
)

func main() {
	logger.Init()
	handlers.Execute()
}
