package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/me/wesconsole/internal/console"
	"github.com/me/wesconsole/internal/inspect"
	"github.com/me/wesconsole/pkg/model"
)

func newWorkflowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "workflow",
		Aliases: []string{"workflows", "wf"},
		Short:   "Manage workflows registered to services",
	}
	cmd.AddCommand(
		newWorkflowListCmd(),
		newWorkflowAddCmd(),
		newWorkflowImportCmd(),
		newWorkflowShowCmd(),
		newWorkflowDeleteCmd(),
	)
	return cmd
}

func newWorkflowListCmd() *cobra.Command {
	var serviceID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List workflows",
		RunE: func(cmd *cobra.Command, args []string) error {
			var workflows []model.Workflow
			if err := client.GetInto(withQuery("/api/v1/workflows/", "service_id", serviceID), &workflows); err != nil {
				return fmt.Errorf("list workflows: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(workflows) == 0 {
				fmt.Fprintln(out, "No workflows found.")
				return nil
			}
			fmt.Fprintf(out, "%-36s  %-24s  %-12s  %-36s  %s\n", "ID", "NAME", "TYPE", "SERVICE", "ADDED")
			for _, wf := range workflows {
				fmt.Fprintf(out, "%-36s  %-24s  %-12s  %-36s  %s\n",
					wf.ID, truncate(wf.Name, 24), wf.TypeVersion(), wf.ServiceID, ago(wf.AddedDate))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&serviceID, "service", "", "Only list workflows of this service")
	return cmd
}

func newWorkflowAddCmd() *cobra.Command {
	var req console.WorkflowRequest
	var file string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a workflow by URL or local file",
		Long:  "Registers a workflow with a service. Either --url or --file is required; type and version are detected from the document when omitted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file != "" {
				data, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("read workflow: %w", err)
				}
				req.Content = string(data)
				if req.URL == "" {
					req.URL = filepath.Base(file)
				}
			}
			if req.URL == "" && req.Content == "" {
				return fmt.Errorf("one of --url or --file is required")
			}

			var wf model.Workflow
			if err := client.PostInto("/api/v1/workflows/", req, &wf); err != nil {
				return fmt.Errorf("add workflow: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Workflow registered: %s (%s)\n", wf.ID, wf.TypeVersion())
			return nil
		},
	}
	cmd.Flags().StringVar(&req.ServiceID, "service", "", "Service ID (required)")
	cmd.Flags().StringVar(&req.Name, "name", "", "Workflow name (required)")
	cmd.Flags().StringVar(&req.URL, "url", "", "Workflow URL")
	cmd.Flags().StringVar(&file, "file", "", "Local workflow document")
	cmd.Flags().StringVar(&req.Type, "type", "", "Workflow type (CWL, WDL, NFL, SMK)")
	cmd.Flags().StringVar(&req.Version, "version", "", "Workflow type version")
	cmd.MarkFlagRequired("service")
	cmd.MarkFlagRequired("name")
	return cmd
}

func newWorkflowImportCmd() *cobra.Command {
	var req console.TRSImportRequest
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a workflow from a GA4GH TRS registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			var wf model.Workflow
			if err := client.PostInto("/api/v1/workflows/import", req, &wf); err != nil {
				return fmt.Errorf("import workflow: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Workflow imported: %s (%s)\n", wf.ID, wf.TypeVersion())
			fmt.Fprintf(out, "  URL:         %s\n", wf.URL)
			fmt.Fprintf(out, "  Attachments: %d\n", len(wf.PreRegisteredWorkflowAttachment))
			return nil
		},
	}
	cmd.Flags().StringVar(&req.ServiceID, "service", "", "Service ID (required)")
	cmd.Flags().StringVar(&req.TRSEndpoint, "trs", "", "TRS endpoint URL (required)")
	cmd.Flags().StringVar(&req.ToolID, "tool", "", "TRS tool ID (required)")
	cmd.Flags().StringVar(&req.Version, "version", "", "TRS tool version (required)")
	cmd.Flags().StringVar(&req.WorkflowType, "type", "CWL", "Workflow type")
	cmd.Flags().StringVar(&req.Name, "name", "", "Workflow name (defaults to the tool ID)")
	for _, f := range []string{"service", "trs", "tool", "version"} {
		cmd.MarkFlagRequired(f)
	}
	return cmd
}

// workflowDetail is the workflow payload of GET /workflows/{id}.
type workflowDetail struct {
	model.Workflow
	Parameters []inspect.Parameter `json:"parameters"`
}

func newWorkflowShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <workflow_id>",
		Short: "Show a workflow and its input parameters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var wf workflowDetail
			if err := client.GetInto("/api/v1/workflows/"+args[0], &wf); err != nil {
				return fmt.Errorf("get workflow: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Workflow: %s\n", wf.ID)
			fmt.Fprintf(out, "  Name:    %s\n", wf.Name)
			fmt.Fprintf(out, "  Type:    %s\n", wf.TypeVersion())
			fmt.Fprintf(out, "  URL:     %s\n", wf.URL)
			fmt.Fprintf(out, "  Service: %s\n", wf.ServiceID)
			fmt.Fprintf(out, "  Runs:    %d\n", len(wf.RunIDs))
			if len(wf.Parameters) > 0 {
				fmt.Fprintln(out, "  Inputs:")
				for _, p := range wf.Parameters {
					typ := p.Type
					if p.Array {
						typ += "[]"
					}
					req := ""
					if p.Required {
						req = " (required)"
					}
					fmt.Fprintf(out, "    - %s: %s%s\n", p.Name, typ, req)
				}
			}
			return nil
		},
	}
}

func newWorkflowDeleteCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "delete <workflow_id>...",
		Short: "Delete workflows and their runs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, id := range args {
				if _, err := client.Delete(withQuery("/api/v1/workflows/"+id, "force", forceValue(force))); err != nil {
					return fmt.Errorf("delete workflow %s: %w", id, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted workflow %s\n", id)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Also delete pre-registered workflows")
	return cmd
}
