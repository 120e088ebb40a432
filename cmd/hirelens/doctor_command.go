package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"hirelens/internal/capture"
	"hirelens/internal/deps"
	"hirelens/internal/preflight"
	"hirelens/internal/services"
)

const deviceScanTimeout = 3 * time.Second

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, login, scoring service and capture devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client, err := ctx.scoringClient(false)
			if err != nil {
				return err
			}
			authCtx, err := ctx.authContext()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			var lines []string

			lines = append(lines, renderSectionHeader("Dependencies", colorize)...)
			lines = append(lines, dependencyLines(preflight.CheckSystemDeps(cmd.Context(), cfg), colorize)...)

			lines = append(lines, "", "")
			lines = append(lines, renderSectionHeader("Checks", colorize)...)
			results := preflight.RunAll(cmd.Context(), cfg, client, authCtx)
			lines = append(lines, preflightLines(results, colorize)...)

			lines = append(lines, "", "")
			lines = append(lines, renderSectionHeader("Capture devices", colorize)...)
			lines = append(lines, deviceSummaryLines(cmd.Context(), colorize)...)

			fmt.Fprintln(out, strings.Join(lines, "\n"))
			if failed := preflight.Failed(results); len(failed) > 0 {
				fmt.Fprintf(out, "\n%d check(s) need attention; practice still runs with reduced scoring.\n", len(failed))
			}
			return nil
		},
	}
}

func dependencyLines(statuses []deps.Status, colorize bool) []string {
	if len(statuses) == 0 {
		return []string{renderStatusLine("Summary", statusOK, "No external binaries required", colorize)}
	}
	lines := make([]string, 0, len(statuses)+1)
	missing := make([]string, 0)
	for _, dep := range statuses {
		if dep.Available {
			message := "Ready"
			if dep.Detail != "" {
				message = fmt.Sprintf("Ready (%s)", dep.Detail)
			} else if dep.Command != "" {
				message = fmt.Sprintf("Ready (command: %s)", dep.Command)
			}
			lines = append(lines, renderStatusLine(dep.Name, statusOK, message, colorize))
			continue
		}
		detail := strings.TrimSpace(dep.Detail)
		if detail == "" {
			detail = "not available"
		}
		kind := statusError
		if dep.Optional {
			kind = statusWarn
		}
		lines = append(lines, renderStatusLine(dep.Name, kind, detail, colorize))
		missing = append(missing, dep.Name)
	}
	if len(missing) > 0 {
		lines = append(lines, renderStatusLine("Missing dependencies", statusWarn, strings.Join(missing, ", "), colorize))
	}
	return lines
}

func preflightLines(results []preflight.Result, colorize bool) []string {
	lines := make([]string, 0, len(results))
	for _, r := range results {
		kind := statusOK
		if !r.Passed {
			kind = statusWarn
		}
		lines = append(lines, renderStatusLine(r.Name, kind, r.Detail, colorize))
	}
	return lines
}

func deviceSummaryLines(ctx context.Context, colorize bool) []string {
	scanCtx, cancel := context.WithTimeout(ctx, deviceScanTimeout)
	defer cancel()
	devices, err := capture.ListDevices(scanCtx)
	if err != nil {
		return []string{renderStatusLine("udev", statusWarn, services.Banner(err), colorize)}
	}
	var cameras, mics int
	for _, d := range devices {
		switch d.Kind {
		case capture.KindCamera:
			cameras++
		case capture.KindMicrophone:
			mics++
		}
	}
	camKind, micKind := statusOK, statusOK
	if cameras == 0 {
		camKind = statusWarn
	}
	if mics == 0 {
		micKind = statusWarn
	}
	return []string{
		renderStatusLine("Cameras", camKind, fmt.Sprintf("%d found", cameras), colorize),
		renderStatusLine("Microphones", micKind, fmt.Sprintf("%d found", mics), colorize),
	}
}
