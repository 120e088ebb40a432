package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"hirelens/internal/archive"
	"hirelens/internal/scoring"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var local bool
	var limit int
	var sessionID string
	var pruneDays int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past practice results",
		Long: "Lists results stored by the scoring service. With --local, lists sessions archived " +
			"on this machine; --session shows one archived session attempt by attempt.",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if pruneDays > 0 {
				store, err := ctx.archiveStore()
				if err != nil {
					return err
				}
				cutoff := time.Now().AddDate(0, 0, -pruneDays)
				removed, err := store.Prune(cmd.Context(), cutoff)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Removed %d archived session(s) older than %d day(s)\n", removed, pruneDays)
				return nil
			}

			if strings.TrimSpace(sessionID) != "" {
				store, err := ctx.archiveStore()
				if err != nil {
					return err
				}
				session, err := store.Session(cmd.Context(), strings.TrimSpace(sessionID))
				if err != nil {
					return err
				}
				if session == nil {
					return fmt.Errorf("no archived session %q", sessionID)
				}
				if asJSON {
					return writeJSON(cmd, session)
				}
				fmt.Fprintln(out, renderSessionDetail(*session))
				return nil
			}

			if local {
				store, err := ctx.archiveStore()
				if err != nil {
					return err
				}
				sessions, err := store.Sessions(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, sessions)
				}
				if len(sessions) == 0 {
					fmt.Fprintln(out, "No archived sessions yet")
					return nil
				}
				fmt.Fprintln(out, renderArchivedSessions(sessions))
				return nil
			}

			client, err := ctx.scoringClient(true)
			if err != nil {
				return err
			}
			results, err := client.Results(cmd.Context())
			if err != nil {
				return err
			}
			sortResults(results)
			if limit > 0 && len(results) > limit {
				results = results[:limit]
			}
			if asJSON {
				return writeJSON(cmd, results)
			}
			if len(results) == 0 {
				fmt.Fprintln(out, "No results yet. Run `hirelens practice` to record your first session.")
				return nil
			}
			fmt.Fprintln(out, renderRemoteResults(results))
			return nil
		},
	}

	cmd.Flags().BoolVar(&local, "local", false, "List sessions archived on this machine")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of rows")
	cmd.Flags().StringVar(&sessionID, "session", "", "Show one archived session in detail")
	cmd.Flags().IntVar(&pruneDays, "prune", 0, "Delete archived sessions older than this many days")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

// sortResults orders results newest first; unparseable dates sort last.
func sortResults(results []scoring.ResultRecord) {
	sort.SliceStable(results, func(i, j int) bool {
		ti, oki := results[i].Created()
		tj, okj := results[j].Created()
		if oki != okj {
			return oki
		}
		return ti.After(tj)
	})
}

func renderRemoteResults(results []scoring.ResultRecord) string {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		date := "-"
		if ts, ok := r.Created(); ok {
			date = formatTimestamp(ts)
		}
		rows = append(rows, []string{
			string(r.ID),
			date,
			formatScore(r.OverallScore),
			formatScore(r.PostureScore),
			formatScore(r.EyeContactScore),
			formatScore(r.SmilePercentage),
		})
	}
	return renderTable(
		[]string{"ID", "Date", "Overall", "Posture", "Eye contact", "Smile"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight},
	)
}

func renderArchivedSessions(sessions []archive.Session) string {
	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		rows = append(rows, []string{
			shortID(s.ID),
			formatTimestamp(s.CompletedAt),
			fmt.Sprintf("%d", s.QuestionCount),
			formatScore(s.Scores.Overall),
			formatScore(s.Scores.Posture),
			formatScore(s.Scores.EyeContact),
			formatScore(s.Scores.AnswerQuality),
		})
	}
	return renderTable(
		[]string{"Session", "Completed", "Questions", "Overall", "Posture", "Eye contact", "Answer"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight},
	)
}

func renderSessionDetail(session archive.Session) string {
	rows := make([][]string, 0, len(session.Attempts))
	for _, a := range session.Attempts {
		marker := ""
		if a.Best {
			marker = "★"
		}
		if a.Fallback {
			marker += " fallback"
		}
		rows = append(rows, []string{
			fmt.Sprintf("Q%d", a.QuestionIndex+1),
			fmt.Sprintf("%d", a.Number),
			formatScore(a.Scores.Overall),
			formatScore(a.Scores.AnswerQuality),
			truncate(a.Transcript, 48),
			strings.TrimSpace(marker),
		})
	}
	return renderTableWith(
		[]string{"Question", "Attempt", "Overall", "Answer", "Transcript", ""},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignLeft, alignLeft},
		tableOptions{
			title:  fmt.Sprintf("Session %s (%s)", session.ID, formatTimestamp(session.CompletedAt)),
			footer: []string{"Final", "", formatScore(session.Scores.Overall), formatScore(session.Scores.AnswerQuality), "", ""},
		},
	)
}

func newStatsCommand(ctx *commandContext) *cobra.Command {
	var localOnly bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize practice results",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			var lines []string

			if !localOnly {
				lines = append(lines, renderSectionHeader("Scoring service", colorize)...)
				client, err := ctx.scoringClient(true)
				if err != nil {
					return err
				}
				results, err := client.Results(cmd.Context())
				if err != nil {
					return err
				}
				summary := scoring.SummarizeResults(results)
				lines = append(lines,
					renderStatusLine("Interviews", statusInfo, fmt.Sprintf("%d", summary.Total), colorize),
					renderStatusLine("Average score", statusInfo, fmt.Sprintf("%d", summary.Average), colorize),
					renderStatusLine("Best score", statusInfo, fmt.Sprintf("%d", summary.Best), colorize),
					"", "",
				)
			}

			store, err := ctx.archiveStore()
			if err != nil {
				return err
			}
			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}
			lines = append(lines, renderSectionHeader("Local archive", colorize)...)
			lines = append(lines,
				renderStatusLine("Sessions", statusInfo, fmt.Sprintf("%d", stats.Sessions), colorize),
				renderStatusLine("Attempts", statusInfo, fmt.Sprintf("%d", stats.Attempts), colorize),
				renderStatusLine("Fallback attempts", fallbackKind(stats), fmt.Sprintf("%d", stats.FallbackAttempts), colorize),
				renderStatusLine("Average score", statusInfo, formatScore(stats.AverageOverall), colorize),
				renderStatusLine("Best score", statusInfo, formatScore(stats.BestOverall), colorize),
				renderStatusLine("Last session", statusInfo, formatTimestamp(stats.LastCompleted), colorize),
			)
			fmt.Fprintln(out, strings.Join(lines, "\n"))
			return nil
		},
	}

	cmd.Flags().BoolVar(&localOnly, "local", false, "Only summarize the local archive")
	return cmd
}

func fallbackKind(stats archive.Stats) statusKind {
	if stats.FallbackAttempts > 0 {
		return statusWarn
	}
	return statusInfo
}

func newDevicesCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List cameras and microphones visible through udev",
		RunE: func(cmd *cobra.Command, args []string) error {
			devices, err := listDevices(cmd)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, deviceViews(devices))
			}
			out := cmd.OutOrStdout()
			if len(devices) == 0 {
				fmt.Fprintln(out, "No cameras or microphones found")
				return nil
			}
			fmt.Fprintln(out, renderDevices(devices))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}
