package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		// An interrupt already printed whatever mattered.
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "redub: %v\n", err)
		}
		os.Exit(1)
	}
}
