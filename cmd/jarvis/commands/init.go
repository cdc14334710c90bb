// ABOUTME: Init command creates the vector store collections
// ABOUTME: Safe to run repeatedly; existing collections are left alone
package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

type initResult struct {
	Store       string   `json:"store" yaml:"store"`
	Collections []string `json:"collections" yaml:"collections"`
	Created     []string `json:"created" yaml:"created"`
}

// NewInitCmd creates the init command
func NewInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create missing collections",
		Long: `Create every collection jarvis needs in the configured vector store.

Collections that already exist are not touched, so running init twice
is harmless. "jarvis serve" does the same on startup.

Examples:
  jarvis init
  VECTOR_STORE=qdrant QDRANT_URL=http://localhost:6333 jarvis init
  jarvis init --format json`,
		RunE: runInit,
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	a, closeApp, err := buildApp(cmd.Context())
	if err != nil {
		return err
	}
	defer closeApp()

	created, err := a.Storage.EnsureCollections(cmd.Context())
	if err != nil {
		return fmt.Errorf("creating collections: %w", err)
	}

	result := initResult{Store: a.Config.VectorStore, Created: created}
	if result.Created == nil {
		result.Created = []string{}
	}
	for _, spec := range a.Storage.Specs() {
		result.Collections = append(result.Collections, spec.Name)
	}

	return render(cmd.OutOrStdout(), result, func(w io.Writer) error {
		if len(created) == 0 {
			success(w, "All %d collections already exist (%s)", len(result.Collections), result.Store)
			return nil
		}
		success(w, "Created %d of %d collections (%s)", len(created), len(result.Collections), result.Store)
		for _, name := range created {
			fmt.Fprintf(w, "  %s\n", name)
		}
		return nil
	})
}
