package main

import (
	"encoding/json"
	"fmt"
	"os"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/spf13/cobra"

	"videomoderation/internal/biz"
	"videomoderation/internal/pkg/moderator"
)

var skipPing bool

var analyzeCmd = &cobra.Command{
	Use:   "analyze <video>...",
	Short: "Moderate one or more video files",
	Long: `Sample each video, classify the sampled frames and print the aggregate verdict
as JSON. With one video the verdict is printed as is; with several, one JSON
report per line is printed in argument order.

Example:
  videomoderation analyze clip.mp4
  videomoderation analyze --config configs/config.yaml a.mp4 b.mkv`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().BoolVar(&skipPing, "skip-ping", false, "do not check the classifier before processing")
}

// videoReport is the JSON line printed for each video of a batch.
type videoReport struct {
	RequestID string                      `json:"request_id"`
	Path      string                      `json:"path"`
	Result    *moderator.AggregateVerdict `json:"result,omitempty"`
	Error     *reportError                `json:"error,omitempty"`
}

type reportError struct {
	Code    int32  `json:"code"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	uc, cleanup, err := wireAnalyze(bc.Classifier, bc.Sampler, bc.Data, bc.Cache, bc.Analyze, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	if !skipPing {
		if err := uc.Ping(ctx); err != nil {
			return err
		}
	}

	enc := json.NewEncoder(os.Stdout)
	if len(args) == 1 {
		verdict, err := uc.AnalyzeVideo(ctx, args[0])
		if err != nil {
			return err
		}
		enc.SetIndent("", "  ")
		return enc.Encode(verdict)
	}

	failed := 0
	for _, r := range uc.AnalyzeBatch(ctx, args) {
		if err := enc.Encode(toVideoReport(r)); err != nil {
			return err
		}
		if r.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d videos failed", failed, len(args))
	}
	return nil
}

func toVideoReport(r *biz.VideoReport) *videoReport {
	out := &videoReport{
		RequestID: r.RequestID,
		Path:      r.Path,
		Result:    r.Verdict,
	}
	if r.Err != nil {
		se := kerrors.FromError(r.Err)
		out.Error = &reportError{Code: se.Code, Reason: se.Reason, Message: se.Message}
	}
	return out
}

// formatError prints kratos errors as "REASON: message".
func formatError(err error) string {
	se := kerrors.FromError(err)
	if se == nil || se.Reason == "" {
		return err.Error()
	}
	return fmt.Sprintf("%s: %s", se.Reason, se.Message)
}
