package cmd

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/faceattend/faceattend/internal/config"
	"github.com/faceattend/faceattend/internal/identity"
	"github.com/faceattend/faceattend/internal/store/postgres"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Dump enrolled identities for auditing",
	Long: `Dump every enrolled identity as JSON, embeddings included.

Embeddings are emitted as base64 big-endian float32 bytes so the dump
stays readable by tooling that predates the vector column.

Examples:
  # Dump to stdout
  faceattend export

  # Dump to a file
  faceattend export --output identities.json`,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().String("output", "", "Write the dump to this file instead of stdout")
}

// exportRecord is one identity in the audit dump. The face crop is omitted;
// the dump is about who is enrolled, not their photos.
type exportRecord struct {
	Username        string    `json:"username"`
	Name            string    `json:"name"`
	Phone           int64     `json:"phone"`
	Department      string    `json:"department"`
	College         string    `json:"college"`
	CollegeUsername string    `json:"college_username,omitempty"`
	Age             int       `json:"age"`
	Embedding       string    `json:"embedding"`
	EmbeddingDim    int       `json:"embedding_dim"`
	CreatedAt       time.Time `json:"created_at"`
}

func buildExportRecords(idents []identity.Identity) []exportRecord {
	records := make([]exportRecord, 0, len(idents))
	for _, ident := range idents {
		records = append(records, exportRecord{
			Username:        ident.Username,
			Name:            ident.Name,
			Phone:           ident.Phone,
			Department:      ident.Department,
			College:         ident.College,
			CollegeUsername: ident.CollegeUsername,
			Age:             ident.Age,
			Embedding:       base64.StdEncoding.EncodeToString(identity.EncodeEmbedding(ident.Embedding)),
			EmbeddingDim:    len(ident.Embedding),
			CreatedAt:       ident.CreatedAt,
		})
	}
	return records
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg := config.Load()

	pool, err := postgres.NewPool(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	defer pool.Close()

	idents, err := postgres.NewIdentityRepository(pool).FindAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load identities: %w", err)
	}

	out := os.Stdout
	if path := mustGetString(cmd, "output"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(buildExportRecords(idents)); err != nil {
		return fmt.Errorf("failed to write dump: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Exported %d identities\n", len(idents))
	return nil
}
