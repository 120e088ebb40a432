package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"hirelens/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var sessionID string
	var lines int
	var follow bool
	var list bool
	var raw bool

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the log of a practice session",
		Long:  "Shows the most recent practice session log, or the one named by --session (a unique id prefix is enough).",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if list {
				sessions, err := logs.SessionLogs(cfg.Paths.LogDir)
				if err != nil {
					return err
				}
				if len(sessions) == 0 {
					fmt.Fprintln(out, "No session logs yet")
					return nil
				}
				rows := make([][]string, 0, len(sessions))
				for _, s := range sessions {
					rows = append(rows, []string{s.SessionID, formatTimestamp(s.Modified), fmt.Sprintf("%d", s.Size)})
				}
				fmt.Fprintln(out, renderTable([]string{"Session", "Modified", "Bytes"}, rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight}))
				return nil
			}

			session, err := logs.Resolve(cfg.Paths.LogDir, sessionID)
			if errors.Is(err, logs.ErrNoSessionLogs) {
				fmt.Fprintln(out, "No session logs yet. Run `hirelens practice` first.")
				return nil
			}
			if err != nil {
				return err
			}

			emit := func(line string) {
				if !raw {
					line = logs.FormatLine(line)
				}
				fmt.Fprintln(out, line)
			}
			tail, offset, err := logs.Tail(session.Path, lines)
			if err != nil {
				return err
			}
			for _, line := range tail {
				emit(line)
			}
			if !follow {
				return nil
			}
			fmt.Fprintf(os.Stderr, "Following %s (Ctrl-C to stop)\n", session.Path)
			return logs.Follow(cmd.Context(), session.Path, offset, 250*time.Millisecond, emit)
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Session id or unique prefix (defaults to the latest session)")
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing lines as they are written")
	cmd.Flags().BoolVar(&list, "list", false, "List session logs instead of showing one")
	cmd.Flags().BoolVar(&raw, "raw", false, "Print JSON records unformatted")
	return cmd
}
