package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/faceattend/faceattend/internal/attendance"
	"github.com/faceattend/faceattend/internal/index"
	"github.com/faceattend/faceattend/internal/vision"
	"github.com/spf13/cobra"
)

var recognizeCmd = &cobra.Command{
	Use:   "recognize",
	Short: "Recognize a face photo and mark attendance",
	Long: `Run one recognition against the enrolled identities and update the
attendance ledger, the same way the kiosk endpoints do.

Examples:
  # Check in
  faceattend recognize --image shot.jpg

  # Check out
  faceattend recognize --image shot.jpg --out`,
	RunE: runRecognize,
}

func init() {
	rootCmd.AddCommand(recognizeCmd)

	recognizeCmd.Flags().String("image", "", "Path to the camera shot (required)")
	recognizeCmd.Flags().Bool("out", false, "Mark a checkout instead of a check-in")
	recognizeCmd.MarkFlagRequired("image")
}

func runRecognize(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	imagePath := mustGetString(cmd, "image")
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}

	checkout, err := cmd.Flags().GetBool("out")
	if err != nil {
		return err
	}

	rt, err := buildRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	data = vision.ResizeToLimit(data, rt.cfg.Match.MaxImageDim)

	recognize := rt.engine.RecognizeIn
	if checkout {
		recognize = rt.engine.RecognizeOut
	}

	result, err := recognize(ctx, data)
	if err != nil {
		var noMatch *index.NoMatchError
		switch {
		case errors.Is(err, vision.ErrNoFaceDetected):
			return fmt.Errorf("no face detected in %s", imagePath)
		case errors.As(err, &noMatch):
			return fmt.Errorf("face not recognized (best distance %.3f)", noMatch.BestDistance)
		case errors.Is(err, attendance.ErrNotCheckedIn):
			return errors.New("cannot check out: not checked in today")
		default:
			return fmt.Errorf("recognition failed: %w", err)
		}
	}

	fmt.Printf("Matched %s (distance %.3f): %s\n", result.Username, result.Distance, result.Outcome)
	fmt.Printf("  Date: %s  In: %s", result.Record.Date, result.Record.InTime.Format("15:04:05"))
	if result.Record.OutTime != nil {
		fmt.Printf("  Out: %s", result.Record.OutTime.Format("15:04:05"))
	}
	fmt.Println()
	return nil
}
