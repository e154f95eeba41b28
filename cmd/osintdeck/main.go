package main

import (
	"os"

	"osintdeck/internal/cli"
)

func main() {
	os.Exit(cli.Run(os.Args))
}
