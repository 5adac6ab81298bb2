package main

import (
	"os"

	"github.com/isdelr/dirback/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
