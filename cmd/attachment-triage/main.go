package main

import (
	"os"

	"github.com/mikey/attachment-triage/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
