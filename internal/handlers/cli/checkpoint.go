package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/gabapcia/walletstream/internal/txevent"

	"github.com/urfave/cli/v3"
)

func addressFlag(usage string) cli.Flag {
	return &cli.StringFlag{
		Name:     "address",
		Usage:    usage,
		Required: true,
	}
}

// checkpointCommand inspects and clears the deduplication state.
//
//	walletstream checkpoint show --address 0xABC123...
//	walletstream checkpoint reset --address 0xABC123...
func checkpointCommand(app *application) *cli.Command {
	return &cli.Command{
		Name:        "checkpoint",
		Description: "Inspect or clear the last processed transaction of a wallet.",
		Usage:       "Manage the deduplication checkpoint.",
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Print the timestamp of the last processed transaction.",
				Flags: []cli.Flag{addressFlag("Wallet address to inspect")},
				Action: func(ctx context.Context, c *cli.Command) error {
					address := txevent.NormalizeAddress(c.String("address"))

					last, ok, err := app.deps.Manager.LastProcessed(ctx, address)
					if err != nil {
						return err
					}

					w := c.Root().Writer
					if !ok {
						_, err = fmt.Fprintf(w, "%s: no transaction processed\n", address)
						return err
					}

					_, err = fmt.Fprintf(w, "%s: %d (%s)\n", address, last, time.Unix(last, 0).UTC().Format(time.RFC3339))
					return err
				},
			},
			{
				Name:  "reset",
				Usage: "Forget the last processed transaction so it is notified again.",
				Flags: []cli.Flag{addressFlag("Wallet address to reset")},
				Action: func(ctx context.Context, c *cli.Command) error {
					address := txevent.NormalizeAddress(c.String("address"))

					if err := app.deps.Manager.Reset(ctx, address); err != nil {
						return err
					}

					_, err := fmt.Fprintf(c.Root().Writer, "%s: checkpoint cleared\n", address)
					return err
				},
			},
		},
	}
}
