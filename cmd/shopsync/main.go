// Command shopsync runs the offline-first sync host for one store tenant.
package main

import (
	"fmt"
	"os"

	"github.com/assistpro/shopsync/internal/logging"
)

func main() {
	cmd := NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		_ = logging.Get().Sync()
		os.Exit(1)
	}
	_ = logging.Get().Sync()
}
