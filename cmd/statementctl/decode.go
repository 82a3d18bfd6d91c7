package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path"
	"strings"

	"github.com/family-finance-ledger/internal/platform/archive"
	"github.com/family-finance-ledger/internal/statement/decoder"
	"github.com/spf13/cobra"
)

func newDecodeCmd() *cobra.Command {
	var contentType string

	cmd := &cobra.Command{
		Use:   "decode <file|gs://bucket/object>",
		Short: "Print the canonical text of a statement file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger()

			canonical, err := decodeStatement(cmd.Context(), log, args[0], contentType)
			if err != nil {
				return err
			}
			log.Debug("Statement decoded", "format", canonical.Format, "chars", len(canonical.Text))

			_, err = io.WriteString(cmd.OutOrStdout(), canonical.Text+"\n")
			return err
		},
	}
	cmd.Flags().StringVar(&contentType, "content-type", "", "Override the content type guessed from the file extension")
	return cmd
}

// decodeStatement reads a local path or an archived gs:// object and decodes it
func decodeStatement(ctx context.Context, log *slog.Logger, location, contentType string) (*decoder.Canonical, error) {
	data, err := readStatement(ctx, log, location)
	if err != nil {
		return nil, err
	}

	filename := path.Base(location)
	if contentType == "" {
		ext := strings.ToLower(path.Ext(filename))
		contentType = mime.TypeByExtension(ext)
		if contentType == "" && ext == ".txt" {
			contentType = "text/plain"
		}
	}

	canonical, err := decoder.Decode(data, contentType, filename)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", location, err)
	}
	return canonical, nil
}

func readStatement(ctx context.Context, log *slog.Logger, location string) ([]byte, error) {
	if !strings.HasPrefix(location, "gs://") {
		data, err := os.ReadFile(location)
		if err != nil {
			return nil, fmt.Errorf("failed to read statement: %w", err)
		}
		return data, nil
	}

	bucket, _, err := archive.ParseURI(location)
	if err != nil {
		return nil, err
	}
	store, err := archive.NewGCSStore(ctx, log, bucket)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	return store.Fetch(ctx, location)
}
