package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ironsheep/annodiff/internal/config"
	"github.com/ironsheep/annodiff/internal/dataset"
	"github.com/ironsheep/annodiff/internal/logger"
)

var publishCmd = &cobra.Command{
	Use:   "publish <dataset> <redis-url>",
	Short: "Store a manifest dataset in Redis",
	Long: `publish validates a dataset manifest (a file or a directory containing
dataset.yaml) and stores it in Redis, replacing any dataset already stored
under the same name. The dataset query parameter of the URL chooses the key
prefix, for example:

  annodiff publish ./ground-truth redis://localhost:6379/0?dataset=gt
  annodiff diff -p redis://localhost:6379/0?dataset=gt ./predictions`,
	Args: cobra.ExactArgs(2),
	RunE: runPublish,
}

func init() {
	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, args []string) error {
	src, location := args[0], args[1]
	if !dataset.IsRedisLocation(location) {
		return fmt.Errorf("%w: %q is not a redis:// URL", config.ErrInvalid, location)
	}

	m, err := dataset.Load(src)
	if err != nil {
		return fmt.Errorf("dataset %s: %w", src, err)
	}
	data, err := os.ReadFile(m.Path())
	if err != nil {
		return fmt.Errorf("failed to read manifest: %w", err)
	}

	client, prefix, err := dataset.RedisClient(location)
	if err != nil {
		return fmt.Errorf("%w: %v", config.ErrInvalid, err)
	}
	defer client.Close()

	if err := dataset.Publish(cmd.Context(), client, prefix, data, m.Path()); err != nil {
		return err
	}

	ids, err := m.ItemIDs(cmd.Context())
	if err != nil {
		return err
	}
	logger.Info("dataset published", "dataset", m.Name(), "items", len(ids), "prefix", prefix)
	fmt.Fprintf(cmd.OutOrStdout(), "published %s (%d items)\n", m.Name(), len(ids))
	return nil
}
