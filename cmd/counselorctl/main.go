package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"counselor-assistant/internal/cli"
)

// set via ldflags
var version = "dev"

func main() {
	_ = godotenv.Load(".env")

	if err := cli.NewRootCmd(version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
