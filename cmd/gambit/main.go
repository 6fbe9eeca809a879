package main

import (
	"github.com/gambitchess/gambit/internal/cli"
)

func main() {
	cli.Execute()
}
