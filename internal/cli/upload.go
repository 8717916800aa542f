package cli

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/cvlens/cvlens/internal/client"
	"github.com/cvlens/cvlens/internal/models"
)

func newUploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a resume for analysis",
		Args:  cobra.ExactArgs(1),
		RunE:  runUpload,
	}

	return cmd
}

func runUpload(cmd *cobra.Command, args []string) error {
	path := args[0]
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	file := &models.FileMeta{
		Name:      filepath.Base(path),
		SizeBytes: info.Size(),
		MediaType: mime.TypeByExtension(filepath.Ext(path)),
		Path:      path,
	}

	onChange := func(a models.UploadAttempt) {
		if a.Phase == models.PhaseTransmitting {
			fmt.Printf("\rUploading %s... %3d%%", file.Name, a.ProgressPercent)
		}
	}

	transport := client.NewHTTPTransport(serverURL)
	coordinator := client.NewCoordinator(transport, nil, onChange)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := coordinator.Submit(ctx, file); err != nil {
		fmt.Println()
		return fmt.Errorf("upload failed: %v", err)
	}

	fmt.Printf("\rUploading %s... done\n", file.Name)

	// Confirm against a fresh listing; the list is newest-first so the
	// first name match is the resume just uploaded.
	query := client.NewHTTPQueryService(serverURL)
	if resumes, err := query.List(ctx); err == nil {
		for _, r := range resumes {
			if r.FileName == file.Name {
				fmt.Printf("Accepted as %s (%s)\n", r.ID, models.Project(r.AnalysisStatus))
				break
			}
		}
	}

	fmt.Println("Run 'cvlens list' or 'cvlens watch' to follow progress.")
	return nil
}
