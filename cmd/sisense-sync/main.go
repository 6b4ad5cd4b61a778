package main

import (
	"os"

	"sisense-sync/src/cli"
)

func main() {
	os.Exit(cli.Execute())
}
