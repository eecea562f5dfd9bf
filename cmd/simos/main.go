// Package main provides the entry point for the simos command.
package main

import (
	"fmt"
	"os"

	"github.com/ajaxzhan/simos/cmd/simos/commands"
	"github.com/ajaxzhan/simos/internal/logging"
)

func main() {
	err := commands.Execute()
	_ = logging.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, "simos:", err)
		os.Exit(commands.ExitCode(err))
	}
}
