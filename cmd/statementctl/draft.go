package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/family-finance-ledger/internal/domain/draft"
	"github.com/family-finance-ledger/internal/platform/llm"
	"github.com/family-finance-ledger/internal/statement/drafting"
	"github.com/family-finance-ledger/internal/statement/resolver"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// errContractViolation makes the command exit non-zero after the violations were printed
var errContractViolation = errors.New("model response violates the draft contract")

func newDraftCmd() *cobra.Command {
	var (
		contextPath   string
		statementDate string
		contentType   string
	)

	cmd := &cobra.Command{
		Use:   "draft <file|gs://bucket/object>",
		Short: "Draft a statement against a JSON budget snapshot and print the resolved payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := newLogger()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			snapshot, err := readSnapshot(contextPath)
			if err != nil {
				return err
			}
			if statementDate != "" {
				date, err := time.Parse(time.DateOnly, statementDate)
				if err != nil {
					return fmt.Errorf("--statement-date must be YYYY-MM-DD: %w", err)
				}
				snapshot.AsOf = date.Format(time.DateOnly)
			}

			canonical, err := decodeStatement(ctx, log, args[0], contentType)
			if err != nil {
				return err
			}

			client, err := llm.NewClient(ctx, cfg.LLM, log)
			if err != nil {
				return fmt.Errorf("failed to initialize LLM client: %w", err)
			}
			log.Info("Requesting draft", "provider", client.Provider(), "model", client.Model(), "format", canonical.Format)

			result, err := drafting.NewRequester(client, nil, log).RequestDraft(ctx, canonical.Text, snapshot, nil)
			if err != nil {
				var violation drafting.ErrContractViolation
				if errors.As(err, &violation) {
					for _, v := range violation.Violations {
						fmt.Fprintln(cmd.ErrOrStderr(), "violation:", v)
					}
					return errContractViolation
				}
				return err
			}

			accounts, categories := snapshot.Entities(uuid.Nil)
			resolved := resolver.Resolve(result.Payload, accounts, categories)
			resolved.Context = snapshot

			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(resolved)
		},
	}

	cmd.Flags().StringVar(&contextPath, "context", "", "Budget snapshot JSON (accounts, categories, debts)")
	cmd.Flags().StringVar(&statementDate, "statement-date", "", "Snapshot date, YYYY-MM-DD")
	cmd.Flags().StringVar(&contentType, "content-type", "", "Override the content type guessed from the file extension")
	_ = cmd.MarkFlagRequired("context")
	return cmd
}

func readSnapshot(path string) (*draft.Context, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read context: %w", err)
	}

	var snapshot draft.Context
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("context is not valid JSON: %w", err)
	}
	if snapshot.AsOf == "" {
		snapshot.AsOf = time.Now().UTC().Format(time.DateOnly)
	}
	return &snapshot, nil
}
