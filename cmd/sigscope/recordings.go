package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AnatoleLucet/sigscope/internal/recording"
	"github.com/AnatoleLucet/sigscope/internal/tracker"
)

var recordingsCmd = &cobra.Command{
	Use:     "recordings",
	Aliases: []string{"rec"},
	Short:   "Manage stored recordings",
}

var recordingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored recordings, oldest first",
	Args:  cobra.NoArgs,
	RunE:  runRecordingsList,
}

var recordingsDeleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Delete stored recordings",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRecordingsDelete,
}

var recordingsExportCmd = &cobra.Command{
	Use:   "export <id> <file.jsonl>",
	Short: "Write a stored recording as JSON lines",
	Args:  cobra.ExactArgs(2),
	RunE:  runRecordingsExport,
}

var flagImportName string

var recordingsImportCmd = &cobra.Command{
	Use:   "import <file.jsonl>",
	Short: "Store the events of a JSON lines file as a new recording",
	Args:  cobra.ExactArgs(1),
	RunE:  runRecordingsImport,
}

func init() {
	recordingsImportCmd.Flags().StringVar(&flagImportName, "name", "", "recording name (default: the file name)")

	recordingsCmd.AddCommand(recordingsListCmd, recordingsDeleteCmd, recordingsExportCmd, recordingsImportCmd)
}

func runRecordingsList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	summaries, err := store.List(ctx)
	if err != nil {
		return err
	}
	return renderSummaries(cmd.OutOrStdout(), summaries)
}

func runRecordingsDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	for _, id := range args {
		if err := store.Delete(ctx, id); err != nil {
			return fmt.Errorf("delete %s: %w", id, err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "deleted", idStyle.Render(id))
	}
	return nil
}

func runRecordingsExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	rec, err := store.Load(ctx, args[0])
	if err != nil {
		return err
	}
	return exportEvents(args[1], rec.Events)
}

func runRecordingsImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	events, err := readEventsFile(args[0])
	if err != nil {
		return err
	}
	name := flagImportName
	if name == "" {
		name = args[0]
	}
	rec, err := recording.New(name, events)
	if err != nil {
		return err
	}

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Save(ctx, rec); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "imported", idStyle.Render(rec.ID))
	return nil
}

func exportEvents(path string, events []tracker.Event) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := recording.WriteJSONL(f, events); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
