package main

import (
	"flag"
	"os"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config.yml", "Path to configuration file")
	flag.Parse()

	app, err := NewApplication(*configPath, os.Stdin, os.Stdout)
	if err != nil {
		panic(err)
	}

	if err := app.Run(); err != nil {
		app.logger.Fatal("Application failed", zap.Error(err))
	}
}
