package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/faceattend/faceattend/internal/engine"
	"github.com/faceattend/faceattend/internal/vision"
	"github.com/spf13/cobra"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll",
	Short: "Enroll one person from a photo",
	Long: `Enroll a person into the attendance system from an image file.
The photo must contain a detectable face.

Example:
  faceattend enroll --image alice.jpg --username alice --name "Alice A" \
    --phone 5550001111 --department CSE --college State --age 21`,
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().String("image", "", "Path to the face photo (required)")
	enrollCmd.Flags().String("username", "", "Unique username (required)")
	enrollCmd.Flags().String("name", "", "Full name")
	enrollCmd.Flags().Int64("phone", 0, "Phone number (required)")
	enrollCmd.Flags().String("department", "", "Department")
	enrollCmd.Flags().String("college", "", "College")
	enrollCmd.Flags().String("college-username", "", "College username")
	enrollCmd.Flags().Int("age", 0, "Age")

	enrollCmd.MarkFlagRequired("image")
	enrollCmd.MarkFlagRequired("username")
	enrollCmd.MarkFlagRequired("phone")
}

func runEnroll(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	imagePath := mustGetString(cmd, "image")
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}

	rt, err := buildRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	data = vision.ResizeToLimit(data, rt.cfg.Match.MaxImageDim)

	req := engine.RegisterRequest{
		Username:        mustGetString(cmd, "username"),
		Name:            mustGetString(cmd, "name"),
		Phone:           mustGetInt64(cmd, "phone"),
		Department:      mustGetString(cmd, "department"),
		College:         mustGetString(cmd, "college"),
		CollegeUsername: mustGetString(cmd, "college-username"),
		Age:             mustGetInt(cmd, "age"),
		Image:           data,
	}

	ident, err := rt.engine.Register(ctx, req)
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrDuplicateUsername):
			return fmt.Errorf("username %q is already enrolled", req.Username)
		case errors.Is(err, vision.ErrNoFaceDetected):
			return fmt.Errorf("no face detected in %s", imagePath)
		default:
			return fmt.Errorf("enrollment failed: %w", err)
		}
	}

	fmt.Printf("Enrolled %s (%s)\n", ident.Username, ident.Name)
	return nil
}
