package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cvlens/cvlens/internal/client"
	"github.com/cvlens/cvlens/internal/models"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <resume-id>",
		Short: "Show a resume's analysis status and result",
		Args:  cobra.ExactArgs(1),
		RunE:  runStatus,
	}

	return cmd
}

func runStatus(cmd *cobra.Command, args []string) error {
	id := args[0]
	query := client.NewHTTPQueryService(serverURL)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resume, err := query.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get resume: %v", err)
	}

	fmt.Printf("Id: %s\n", resume.ID)
	fmt.Printf("File: %s (%d bytes)\n", resume.FileName, resume.FileSizeBytes)
	fmt.Printf("Uploaded: %s\n", resume.CreatedAt.Local().Format(time.RFC3339))
	fmt.Printf("State: %s\n", models.Project(resume.AnalysisStatus))
	if resume.FailureReason != "" {
		fmt.Printf("Failure: %s\n", resume.FailureReason)
	}

	if resume.AnalysisStatus != models.StatusCompleted {
		return nil
	}

	result, err := query.Result(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get analysis result: %v", err)
	}

	fmt.Printf("Score: %.1f\n", result.Score)
	fmt.Printf("Summary: %s\n", result.Summary)
	if len(result.Sections) > 0 {
		fmt.Printf("Sections: %s\n", strings.Join(result.Sections, ", "))
	}
	if len(result.Skills) > 0 {
		fmt.Printf("Skills: %s\n", strings.Join(result.Skills, ", "))
	}
	fmt.Printf("Words: %d\n", result.WordCount)
	return nil
}
