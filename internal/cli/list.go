package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cvlens/cvlens/internal/client"
	"github.com/cvlens/cvlens/internal/models"
)

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List uploaded resumes",
		RunE:  runList,
	}

	cmd.Flags().BoolVar(&listParams.msgpack, "msgpack", false, "Fetch the list msgpack-encoded")

	return cmd
}

type listCmdParams struct {
	msgpack bool
}

var listParams = &listCmdParams{}

func runList(cmd *cobra.Command, args []string) error {
	query := client.NewHTTPQueryService(serverURL).UseMsgpack(listParams.msgpack)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resumes, err := query.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list resumes: %v", err)
	}

	if len(resumes) == 0 {
		fmt.Println("No resumes uploaded")
		return nil
	}

	printResumes(resumes)
	return nil
}

// printResumes renders the collection in server order
func printResumes(resumes []models.Resume) {
	fmt.Printf("%-36s  %-28s  %10s  %-10s  %s\n", "ID", "FILE", "BYTES", "STATE", "UPLOADED")
	for _, r := range resumes {
		fmt.Printf("%-36s  %-28s  %10d  %-10s  %s\n",
			r.ID, r.FileName, r.FileSizeBytes,
			models.Project(r.AnalysisStatus),
			r.CreatedAt.Local().Format(time.RFC3339))
	}
}
