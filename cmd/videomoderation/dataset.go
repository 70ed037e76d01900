package main

import (
	"github.com/spf13/cobra"
)

var (
	violenceDir    string
	nonViolenceDir string
	outDir         string
	maxPerClass    int
)

var datasetCmd = &cobra.Command{
	Use:   "dataset",
	Short: "Extract labelled training frames from violence / non-violence videos",
	Long: `Scan two directories of .mp4/.avi/.mov videos, sample frames from each video
(dataset.frame_interval, default every 30th frame) and write them under
<out>/violence and <out>/nonviolence with a labels.yaml manifest. Videos that
fail to decode are logged and skipped.

Example:
  videomoderation dataset --violence data/violence --nonviolence data/nonviolence --out frames --max-per-class 50`,
	RunE: func(cmd *cobra.Command, args []string) error {
		uc, err := wireDataset(bc.Sampler, bc.Dataset, logger)
		if err != nil {
			return err
		}
		m, err := uc.Build(cmd.Context(), violenceDir, nonViolenceDir, outDir, maxPerClass)
		if err != nil {
			return err
		}
		cmd.Printf("wrote %d frames (%d videos failed) to %s\n", len(m.Samples), len(m.Failed), outDir)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(datasetCmd)
	datasetCmd.Flags().StringVar(&violenceDir, "violence", "", "directory of violent videos (required)")
	datasetCmd.Flags().StringVar(&nonViolenceDir, "nonviolence", "", "directory of non-violent videos (required)")
	datasetCmd.Flags().StringVar(&outDir, "out", "", "output directory (required)")
	datasetCmd.Flags().IntVar(&maxPerClass, "max-per-class", 0, "cap on videos per class, 0 for all")
	datasetCmd.MarkFlagRequired("violence")
	datasetCmd.MarkFlagRequired("nonviolence")
	datasetCmd.MarkFlagRequired("out")
}
