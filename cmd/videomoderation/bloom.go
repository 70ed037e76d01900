package main

import (
	"github.com/spf13/cobra"
)

var rebuildBloomCmd = &cobra.Command{
	Use:   "rebuild-bloom",
	Short: "Rebuild the Redis Bloom filter of flagged frames from Postgres",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		uc, cleanup, err := wireAnalyze(bc.Classifier, bc.Sampler, bc.Data, bc.Cache, bc.Analyze, logger)
		if err != nil {
			return err
		}
		defer cleanup()

		n, err := uc.RebuildBloom(cmd.Context())
		if err != nil {
			return err
		}
		cmd.Printf("rebuilt bloom filter with %d frame hashes\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rebuildBloomCmd)
}
