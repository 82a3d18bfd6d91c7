package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/family-finance-ledger/internal/domain/outbox"
	"github.com/family-finance-ledger/internal/platform/messaging/consumers"
	"github.com/spf13/cobra"
)

func newEventsCmd() *cobra.Command {
	var group string

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Tail applied-draft events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := newLogger()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			consumer := consumers.NewEventConsumer(log, &cfg.Kafka, group)
			defer func() {
				if err := consumer.Close(); err != nil {
					log.Error("Failed to close consumer", "error", err)
				}
			}()

			out := cmd.OutOrStdout()
			return consumer.Consume(ctx, func(_ context.Context, event consumers.Event) error {
				return writeEvent(out, event)
			})
		},
	}

	cmd.Flags().StringVar(&group, "group", "statementctl", "Kafka consumer group")
	return cmd
}

// writeEvent prints one line per event; applied-draft payloads are summarized
func writeEvent(w io.Writer, event consumers.Event) error {
	prefix := fmt.Sprintf("%s %s p%d@%d", event.Time.UTC().Format(time.RFC3339), event.Type, event.Partition, event.Offset)

	if event.Type == outbox.EventDraftApplied {
		var applied outbox.DraftAppliedEvent
		if err := json.Unmarshal(event.Payload, &applied); err == nil {
			_, err := fmt.Fprintf(w, "%s draft=%s budget=%s user=%s transactions=%d accounts=%d categories=%d balance_events=%d\n",
				prefix,
				applied.DraftID, applied.BudgetID, applied.UserID,
				len(applied.TransactionIDs),
				len(applied.CreatedAccountIDs),
				len(applied.CreatedCategoryIDs),
				len(applied.BalanceEventIDs),
			)
			return err
		}
	}

	_, err := fmt.Fprintf(w, "%s key=%s %s\n", prefix, event.Key, event.Payload)
	return err
}
