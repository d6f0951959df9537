package main

import (
	"fmt"
	"os"

	"github.com/ldi/pbltrack/internal/cli"
	"github.com/ldi/pbltrack/internal/ui"
)

func main() {
	// No args opens the menu; anything else goes to the command line.
	if len(os.Args) > 1 {
		if err := cli.Execute(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	selected, err := ui.RunMenu()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error running menu: %v\n", err)
		os.Exit(1)
	}
	if selected == "" {
		return
	}
	if err := cli.Run(selected); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
