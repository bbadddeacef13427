package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var submitData string

// submitCmd records a submission against a published form
var submitCmd = &cobra.Command{
	Use:   "submit [share-url]",
	Short: "Submit content to a published form",
	Long: `Appends a submission to the form behind the share URL and propagates
it into every form that embeds the target through a nested-form field.

Example:
  formforge submit 3f2a... --data '{"q1":"hi","q2":"5"}'`,
	Args: cobra.ExactArgs(1),
	RunE: runSubmit,
}

// openCmd fetches a published form's schema, counting the visit
var openCmd = &cobra.Command{
	Use:   "open [share-url]",
	Short: "Fetch a published form's schema (counts a visit)",
	Args:  cobra.ExactArgs(1),
	RunE:  runOpen,
}

func init() {
	submitCmd.Flags().StringVar(&submitData, "data", "", "submission content as a JSON object")
	_ = submitCmd.MarkFlagRequired("data")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	sub, err := svc.SubmitForm(cmd.Context(), args[0], submitData)
	if err != nil {
		return err
	}
	logger.Info("submission accepted",
		zap.Int64("form_id", sub.FormID),
		zap.Int64("submission_id", sub.ID))
	fmt.Printf("Submission %d recorded for form %d\n", sub.ID, sub.FormID)
	return nil
}

func runOpen(cmd *cobra.Command, args []string) error {
	schema, err := svc.OpenForm(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	blob, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(blob))
	return nil
}
