package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
	"github.com/terminal-bench/fleetcompliance/pkg/messaging"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Print domain events published on NATS",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.NATSURL == "" {
			return errors.New("nats.url is not configured")
		}

		client, err := messaging.NewClient(messaging.Config{URL: cfg.NATSURL, Name: "fleetcompliance-events"})
		if err != nil {
			return err
		}
		defer client.Close()

		out := cmd.OutOrStdout()
		for _, subject := range messaging.Subjects() {
			err := client.Subscribe(subject, func(msg *nats.Msg) {
				var event messaging.Event
				if err := json.Unmarshal(msg.Data, &event); err != nil {
					log.WithError(err).WithField("subject", msg.Subject).Warn("skipping malformed event")
					return
				}
				fmt.Fprintf(out, "%s %-24s %-8s %s\n",
					event.Timestamp.Format("2006-01-02T15:04:05Z07:00"), event.Type, event.AggregateID, event.Data)
			})
			if err != nil {
				return err
			}
		}
		log.WithField("subjects", len(messaging.Subjects())).Info("listening for events")

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		<-ctx.Done()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
}
