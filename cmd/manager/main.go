package main

import (
	"os"

	"viralshorts/manager-go/internal/cli"
)

func main() {
	os.Exit(cli.Run(os.Args))
}
