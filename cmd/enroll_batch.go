package cmd

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/faceattend/faceattend/internal/engine"
	"github.com/faceattend/faceattend/internal/vision"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var enrollBatchCmd = &cobra.Command{
	Use:   "enroll-batch",
	Short: "Enroll many people from a roster CSV",
	Long: `Enroll a whole roster in one run. The roster is a CSV file with a
header row and the columns:

  username,name,phone,department,college,age,image

The image column is a path relative to the roster file (or absolute).
Rows whose username is already enrolled are skipped, so the command can
be re-run after fixing bad photos.

Example:
  faceattend enroll-batch --roster students.csv`,
	RunE: runEnrollBatch,
}

func init() {
	rootCmd.AddCommand(enrollBatchCmd)

	enrollBatchCmd.Flags().String("roster", "", "Path to the roster CSV (required)")
	enrollBatchCmd.MarkFlagRequired("roster")
}

// rosterEntry is one parsed roster row.
type rosterEntry struct {
	req       engine.RegisterRequest
	imagePath string
}

// parseRoster reads and validates the roster CSV. Image paths are resolved
// relative to the roster file.
func parseRoster(path string) ([]rosterEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open roster: %w", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse roster: %w", err)
	}
	if len(rows) < 2 {
		return nil, errors.New("roster has no data rows")
	}

	baseDir := filepath.Dir(path)

	var entries []rosterEntry
	for i, row := range rows[1:] {
		line := i + 2
		if len(row) != 7 {
			return nil, fmt.Errorf("roster line %d: expected 7 columns, got %d", line, len(row))
		}

		phone, err := strconv.ParseInt(row[2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("roster line %d: bad phone %q", line, row[2])
		}
		age, err := strconv.Atoi(row[5])
		if err != nil {
			return nil, fmt.Errorf("roster line %d: bad age %q", line, row[5])
		}

		imagePath := row[6]
		if !filepath.IsAbs(imagePath) {
			imagePath = filepath.Join(baseDir, imagePath)
		}

		entries = append(entries, rosterEntry{
			req: engine.RegisterRequest{
				Username:   row[0],
				Name:       row[1],
				Phone:      phone,
				Department: row[3],
				College:    row[4],
				Age:        age,
			},
			imagePath: imagePath,
		})
	}
	return entries, nil
}

func runEnrollBatch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	entries, err := parseRoster(mustGetString(cmd, "roster"))
	if err != nil {
		return err
	}

	rt, err := buildRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	bar := progressbar.NewOptions(len(entries),
		progressbar.OptionSetDescription("Enrolling"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("people"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	var enrolled, skipped, failed int
	for _, entry := range entries {
		bar.Add(1)

		data, err := os.ReadFile(entry.imagePath)
		if err != nil {
			fmt.Printf("\n%s: failed to read image: %v\n", entry.req.Username, err)
			failed++
			continue
		}
		entry.req.Image = vision.ResizeToLimit(data, rt.cfg.Match.MaxImageDim)

		_, err = rt.engine.Register(ctx, entry.req)
		switch {
		case err == nil:
			enrolled++
		case errors.Is(err, engine.ErrDuplicateUsername):
			skipped++
		case errors.Is(err, vision.ErrNoFaceDetected):
			fmt.Printf("\n%s: no face detected in %s\n", entry.req.Username, entry.imagePath)
			failed++
		default:
			fmt.Printf("\n%s: enrollment failed: %v\n", entry.req.Username, err)
			failed++
		}
	}

	fmt.Printf("\nDone: %d enrolled, %d already present, %d failed\n", enrolled, skipped, failed)
	if failed > 0 {
		return fmt.Errorf("%d roster entries failed", failed)
	}
	return nil
}
