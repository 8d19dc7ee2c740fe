package main

import (
	"os"

	"datahouse.com/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
