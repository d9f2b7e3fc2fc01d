package main

import (
	"os"

	"github.com/ayarullin/finvizor/cmd/finvizor/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
