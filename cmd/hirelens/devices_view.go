package main

import (
	"context"

	"github.com/spf13/cobra"

	"hirelens/internal/capture"
	"hirelens/internal/services"
)

type deviceView struct {
	Kind   string `json:"kind"`
	Path   string `json:"path"`
	Input  string `json:"input"`
	Name   string `json:"name"`
	Access string `json:"access"`
}

func listDevices(cmd *cobra.Command) ([]capture.Device, error) {
	scanCtx, cancel := context.WithTimeout(cmd.Context(), deviceScanTimeout)
	defer cancel()
	return capture.ListDevices(scanCtx)
}

func deviceViews(devices []capture.Device) []deviceView {
	views := make([]deviceView, 0, len(devices))
	for _, d := range devices {
		access := "ok"
		if d.Access != nil {
			access = services.Banner(d.Access)
		}
		views = append(views, deviceView{Kind: d.Kind, Path: d.Path, Input: d.Input, Name: d.Name, Access: access})
	}
	return views
}

func renderDevices(devices []capture.Device) string {
	views := deviceViews(devices)
	rows := make([][]string, 0, len(views))
	for _, v := range views {
		rows = append(rows, []string{v.Kind, v.Path, v.Input, v.Name, v.Access})
	}
	return renderTable(
		[]string{"Kind", "Path", "Input", "Name", "Access"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
	)
}
