package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cvlens/cvlens/internal/client"
	"github.com/cvlens/cvlens/internal/models"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the resume list until every analysis finishes",
		RunE:  runWatch,
	}

	cmd.Flags().DurationVarP(&watchParams.interval, "interval", "i", client.DefaultWatchInterval,
		"Poll interval while analyses are running")

	return cmd
}

type watchCmdParams struct {
	interval time.Duration
}

var watchParams = &watchCmdParams{}

func runWatch(cmd *cobra.Command, args []string) error {
	query := client.NewHTTPQueryService(serverURL)
	cache := client.NewCache(query)
	watcher := client.NewWatcher(cache, watchParams.interval)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nStopping watch...")
		cancel()
	}()

	snapshots, unsubscribe := cache.Subscribe()
	defer unsubscribe()

	go watcher.Run(ctx)
	cache.Invalidate()

	fmt.Println("Watching resumes (Press Ctrl+C to exit):")

	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-snapshots:
			if !ok {
				return nil
			}
			renderSnapshot(snap)
			if snap.State == client.CacheReady && allTerminal(snap.Resumes) {
				fmt.Println("All analyses finished.")
				return nil
			}
		}
	}
}

func renderSnapshot(snap client.Snapshot) {
	fmt.Printf("\n[%s] %s\n", time.Now().Format("15:04:05"), describeSnapshot(snap))
	if len(snap.Resumes) > 0 {
		printResumes(snap.Resumes)
	}
}

func describeSnapshot(snap client.Snapshot) string {
	switch snap.State {
	case client.CacheLoading:
		return "loading..."
	case client.CacheStale:
		return "refreshing..."
	case client.CacheError:
		return fmt.Sprintf("fetch failed: %v (showing last good list)", snap.Err)
	default:
		return fmt.Sprintf("%d resumes", len(snap.Resumes))
	}
}

func allTerminal(resumes []models.Resume) bool {
	for _, r := range resumes {
		if !r.AnalysisStatus.IsTerminal() {
			return false
		}
	}
	return true
}
