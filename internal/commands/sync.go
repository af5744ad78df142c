package commands

import (
	"github.com/spf13/cobra"
)

func newSyncCommand(e *env) *cobra.Command {
	var once, scheduled bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Mirror note metadata into the local store",
		Long: `Copies note metadata of the user and all their teams into the mirror
store (MIRROR_DRIVER, MIRROR_DSN) and records the outcome of every run.

With --once (the default) a single sync runs and its result is printed.
With --schedule the command syncs immediately and then on SYNC_SCHEDULE
until interrupted. Failures are reported to Telegram when
TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID are set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := e.App()
			if err != nil {
				return err
			}
			if scheduled {
				return a.RunSync(cmd.Context())
			}
			run, err := a.SyncOnce(cmd.Context())
			if err != nil {
				return err
			}
			return e.print(cmd.OutOrStdout(), run)
		},
	}
	cmd.Flags().BoolVar(&once, "once", true, "Run a single sync")
	cmd.Flags().BoolVar(&scheduled, "schedule", false, "Keep running on SYNC_SCHEDULE")
	cmd.MarkFlagsMutuallyExclusive("once", "schedule")
	return cmd
}

func newMirrorCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mirror",
		Short: "Inspect the local mirror",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List mirrored notes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := e.App()
			if err != nil {
				return err
			}
			store, err := a.OpenStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()
			entries, err := store.ListNotes(cmd.Context())
			if err != nil {
				return err
			}
			return e.print(cmd.OutOrStdout(), entries)
		},
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Show the last sync run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := e.App()
			if err != nil {
				return err
			}
			store, err := a.OpenStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()
			run, err := store.LastRun(cmd.Context())
			if err != nil {
				return err
			}
			return e.print(cmd.OutOrStdout(), run)
		},
	}

	cmd.AddCommand(list, status)
	return cmd
}
