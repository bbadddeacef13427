package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	formName        string
	formDescription string
	formContentFile string
)

// formCmd groups form lifecycle commands
var formCmd = &cobra.Command{
	Use:   "form",
	Short: "Create, inspect, and publish forms",
}

var formCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new empty form",
	RunE:  runFormCreate,
}

var formListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your forms, newest first",
	RunE:  runFormList,
}

var formShowCmd = &cobra.Command{
	Use:   "show [form-id]",
	Short: "Show a form and its submissions",
	Args:  cobra.ExactArgs(1),
	RunE:  runFormShow,
}

var formPublishCmd = &cobra.Command{
	Use:   "publish [form-id]",
	Short: "Publish a form for public submission (irreversible)",
	Args:  cobra.ExactArgs(1),
	RunE:  runFormPublish,
}

var formUpdateCmd = &cobra.Command{
	Use:   "update [form-id]",
	Short: "Replace a form's schema from a JSON file",
	Args:  cobra.ExactArgs(1),
	RunE:  runFormUpdate,
}

var formReindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the nested-form reference index from stored schemas",
	RunE:  runFormReindex,
}

func init() {
	formCreateCmd.Flags().StringVar(&formName, "name", "", "form name (min 4 characters)")
	formCreateCmd.Flags().StringVar(&formDescription, "description", "", "form description")
	_ = formCreateCmd.MarkFlagRequired("name")

	formUpdateCmd.Flags().StringVar(&formContentFile, "schema", "", "path to schema JSON")
	_ = formUpdateCmd.MarkFlagRequired("schema")
}

func runFormCreate(cmd *cobra.Command, args []string) error {
	form, err := svc.CreateForm(cmd.Context(), ownerID, formName, formDescription)
	if err != nil {
		return err
	}
	logger.Info("form created", zap.Int64("id", form.ID))
	fmt.Printf("Created form %d (%s)\nShare URL: %s\n", form.ID, form.Name, svc.ShareLink(form))
	return nil
}

func runFormList(cmd *cobra.Command, args []string) error {
	forms, err := svc.Forms(cmd.Context(), ownerID)
	if err != nil {
		return err
	}
	if len(forms) == 0 {
		fmt.Println("No forms yet.")
		return nil
	}
	for _, f := range forms {
		state := "draft"
		if f.Published {
			state = "published"
		}
		fmt.Printf("%4d  %-30s %-9s visits=%d submissions=%d\n",
			f.ID, f.Name, state, f.Visits, f.Submissions)
	}
	return nil
}

func runFormShow(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid form id %q", args[0])
	}
	form, subs, err := svc.FormWithSubmissions(cmd.Context(), ownerID, id)
	if err != nil {
		return err
	}

	fmt.Printf("Form %d: %s\n", form.ID, form.Name)
	if form.Description != "" {
		fmt.Printf("  %s\n", form.Description)
	}
	fmt.Printf("  published=%v visits=%d submissions=%d\n", form.Published, form.Visits, form.Submissions)
	fmt.Printf("  share: %s\n", svc.ShareLink(form))
	fmt.Printf("  schema: %s\n", form.Content)
	for _, sub := range subs {
		fmt.Printf("  [%s] %s\n", sub.CreatedAt.Format("2006-01-02 15:04:05"), sub.Content)
	}
	return nil
}

func runFormPublish(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid form id %q", args[0])
	}
	if err := svc.PublishForm(cmd.Context(), ownerID, id); err != nil {
		return err
	}
	fmt.Printf("Form %d published\n", id)
	return nil
}

func runFormReindex(cmd *cobra.Command, args []string) error {
	if err := db.ReindexAllRefs(cmd.Context()); err != nil {
		return err
	}
	fmt.Println("Reference index rebuilt")
	return nil
}

func runFormUpdate(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid form id %q", args[0])
	}
	blob, err := os.ReadFile(formContentFile)
	if err != nil {
		return fmt.Errorf("read schema file: %w", err)
	}
	if err := svc.UpdateFormContent(cmd.Context(), ownerID, id, string(blob)); err != nil {
		return err
	}
	fmt.Printf("Form %d schema updated\n", id)
	return nil
}
