package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gabapcia/walletstream/internal/handlers/cli"
	"github.com/gabapcia/walletstream/internal/pkg/logger"
)

func main() {
	ctx := context.Background()

	err := cli.Run(ctx, build)
	_ = logger.Sync()

	if err != nil {
		// The logger is not initialized when the config fails to load.
		fmt.Fprintf(os.Stderr, "walletstream: %v\n", err)
		os.Exit(1)
	}
}
