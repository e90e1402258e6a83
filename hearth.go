package main

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	cli "github.com/neboloop/hearth/cmd/hearth"
	"github.com/neboloop/hearth/internal/config"
)

//go:embed etc/hearth.yaml
var embeddedConfig []byte

var version = "dev"

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	c, err := config.LoadFromBytes(embeddedConfig)
	if err != nil {
		fmt.Printf("Failed to load embedded config: %v\n", err)
		os.Exit(1)
	}

	if err := cli.SetupRootCmd(&c, version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
