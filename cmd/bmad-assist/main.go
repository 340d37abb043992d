// Command bmad-assist is the autonomous multi-LLM software-development
// orchestrator's CLI entrypoint.
package main

import (
	"os"

	"github.com/bmad-assist/bmad-assist-go/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
