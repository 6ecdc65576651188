package main

import (
	"os"

	"github.com/wonny/vnmarket/cmd/vnmarket/commands"
)

func main() {
	os.Exit(commands.Run(commands.Options{
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}, os.Args[1:]))
}
