package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var (
	reportName  string
	reportXKey  string
	reportYKey  string
	reportChart string
)

// reportCmd groups report commands
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Publish and run analytical reports",
}

var reportPublishCmd = &cobra.Command{
	Use:   "publish [form-id]",
	Short: "Publish a named report behind a shareable URL",
	Args:  cobra.ExactArgs(1),
	RunE:  runReportPublish,
}

var reportRunCmd = &cobra.Command{
	Use:   "run [report-url]",
	Short: "Run a published report against current submissions",
	Args:  cobra.ExactArgs(1),
	RunE:  runReportRun,
}

var reportListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your published reports",
	RunE:  runReportList,
}

// statsCmd prints dashboard counters
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show visit and submission totals across your forms",
	RunE:  runStats,
}

func init() {
	reportPublishCmd.Flags().StringVar(&reportName, "name", "", "report name")
	reportPublishCmd.Flags().StringVar(&reportXKey, "x", "", "projection key for the x axis / grouping")
	reportPublishCmd.Flags().StringVar(&reportYKey, "y", "", "projection key for the y axis / series")
	reportPublishCmd.Flags().StringVar(&reportChart, "chart", "bar", "chart type: pie, bar, line, tabular")
	_ = reportPublishCmd.MarkFlagRequired("name")
	_ = reportPublishCmd.MarkFlagRequired("x")
	_ = reportPublishCmd.MarkFlagRequired("y")
}

func runReportPublish(cmd *cobra.Command, args []string) error {
	formID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid form id %q", args[0])
	}
	rep, err := svc.PublishReport(cmd.Context(), reportName, formID, reportXKey, reportYKey, reportChart)
	if err != nil {
		return err
	}
	fmt.Printf("Report %q published: %s\n", rep.Name, svc.ReportLink(rep))
	return nil
}

func runReportRun(cmd *cobra.Command, args []string) error {
	rows, err := svc.RunReport(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	blob, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(blob))
	return nil
}

func runReportList(cmd *cobra.Command, args []string) error {
	reports, err := svc.Reports(cmd.Context(), ownerID)
	if err != nil {
		return err
	}
	if len(reports) == 0 {
		fmt.Println("No reports yet.")
		return nil
	}
	for _, r := range reports {
		fmt.Printf("%4d  %-30s form=%d chart=%-7s %s\n",
			r.ID, r.Name, r.FormID, r.Config.ChartType, svc.ReportLink(r))
	}
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	dash, err := svc.Dashboard(cmd.Context(), ownerID)
	if err != nil {
		return err
	}
	fmt.Printf("Forms: %d   Reports: %d\n", len(dash.Forms), len(dash.Reports))
	fmt.Printf("Visits: %d   Submissions: %d\n", dash.Stats.Visits, dash.Stats.Submissions)
	fmt.Printf("Submission rate: %.1f%%   Bounce rate: %.1f%%\n",
		dash.Stats.SubmissionRate, dash.Stats.BounceRate)
	return nil
}
