package main

import (
	"github.com/aia-cli/aia/cmd"
)

func main() {
	cmd.Execute()
}
