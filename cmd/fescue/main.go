// Command fescue serves the VIP identity API and runs its maintenance jobs.
package main

import (
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
