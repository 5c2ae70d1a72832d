package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"

	"forwarder/internal/di"
	"forwarder/internal/structures"
)

func main() {
	flags := &structures.CliFlags{}
	flag.StringVar(&flags.ConfigPath, "config", "config.yml", "path to the YAML config file")
	flag.BoolVar(&flags.DebugMode, "debug", false, "mirror logs to the console")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %s\n", err)
	}

	app, err := di.InitApp(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "startup failed: %s\n", err)
		os.Exit(1)
	}
	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}
