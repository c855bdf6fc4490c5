// Command whaling-select moves every running whaling view to a year by
// publishing a selection over AMQP.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"whaling/internal/amqp"
	"whaling/internal/cli"
	applog "whaling/internal/log"
)

var origin string

func main() {
	cfg, _ := cli.Init(applog.ComponentAMQP, os.Stderr, false)

	host, _ := os.Hostname()
	cmd := &cobra.Command{
		Use:   "whaling-select <year>",
		Short: "Publish a year selection to all whaling views",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			year, err := strconv.Atoi(args[0])
			if err != nil || year <= 0 {
				return fmt.Errorf("invalid year %q", args[0])
			}
			if cfg.AMQPURL == "" {
				return fmt.Errorf("AMQP_URL is not set")
			}

			client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			return client.PublishYearSelected(ctx, year, origin)
		},
	}
	cmd.Flags().StringVar(&origin, "origin", "whaling-select@"+host, "name of the controller sending the selection")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
