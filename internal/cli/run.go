package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/me/wesconsole/internal/console"
	"github.com/me/wesconsole/pkg/model"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Aliases: []string{"runs"},
		Short:   "Submit and track workflow runs",
	}
	cmd.AddCommand(
		newRunListCmd(),
		newRunSubmitCmd(),
		newRunStatusCmd(),
		newRunCancelCmd(),
		newRunRefreshCmd(),
		newRunDeleteCmd(),
	)
	return cmd
}

func newRunListCmd() *cobra.Command {
	var serviceID, workflowID, state string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := withQuery("/api/v1/runs/", "service_id", serviceID, "workflow_id", workflowID, "state", state)
			var runs []model.Run
			if err := client.GetInto(path, &runs); err != nil {
				return fmt.Errorf("list runs: %w", err)
			}
			printRuns(cmd, runs)
			return nil
		},
	}
	cmd.Flags().StringVar(&serviceID, "service", "", "Only list runs of this service")
	cmd.Flags().StringVar(&workflowID, "workflow", "", "Only list runs of this workflow")
	cmd.Flags().StringVar(&state, "state", "", "Only list runs in this state")
	return cmd
}

func printRuns(cmd *cobra.Command, runs []model.Run) {
	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs found.")
		return
	}
	fmt.Fprintf(out, "%-36s  %-24s  %-14s  %-36s  %s\n", "ID", "NAME", "STATE", "WORKFLOW", "UPDATED")
	for _, r := range runs {
		fmt.Fprintf(out, "%-36s  %-24s  %-14s  %-36s  %s\n",
			r.ID, truncate(r.Name, 24), r.State, r.WorkflowID, ago(r.UpdatedDate))
	}
}

// readParams loads a parameter document; YAML is converted by the server.
func readParams(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read params: %w", err)
	}
	return string(data), nil
}

func readAttachments(paths []string) ([]console.RunAttachment, error) {
	var out []console.RunAttachment
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read attachment: %w", err)
		}
		out = append(out, console.RunAttachment{FileName: filepath.Base(p), Data: data})
	}
	return out, nil
}

func newRunSubmitCmd() *cobra.Command {
	var req console.RunRequest
	var paramsFile string
	var attach []string
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a workflow run to its service",
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := readParams(paramsFile)
			if err != nil {
				return err
			}
			req.Params = params
			if req.Attachments, err = readAttachments(attach); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			var size uint64
			for _, a := range req.Attachments {
				size += uint64(len(a.Data))
			}
			if len(req.Attachments) > 0 {
				fmt.Fprintf(out, "Uploading %d attachments (%s)\n", len(req.Attachments), humanize.Bytes(size))
			}

			var run model.Run
			if err := client.PostInto("/api/v1/runs/", req, &run); err != nil {
				return fmt.Errorf("submit run: %w", err)
			}
			fmt.Fprintf(out, "Run submitted: %s\n", run.ID)
			fmt.Fprintf(out, "  Name:  %s\n", run.Name)
			fmt.Fprintf(out, "  State: %s\n", run.State)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.ServiceID, "service", "", "Service ID (required)")
	cmd.Flags().StringVar(&req.WorkflowID, "workflow", "", "Workflow ID (required)")
	cmd.Flags().StringVar(&req.Name, "name", "", "Run name (defaults to the run ID)")
	cmd.Flags().StringVar(&paramsFile, "params", "", "Workflow parameters file (JSON or YAML)")
	cmd.Flags().StringVar(&req.Tags, "tags", "", "Run tags as a JSON object")
	cmd.Flags().StringVar(&req.EngineName, "engine", "", "Workflow engine name")
	cmd.Flags().StringVar(&req.EngineParams, "engine-params", "", "Workflow engine parameters as a JSON object")
	cmd.Flags().StringArrayVar(&attach, "attach", nil, "File to upload as a workflow attachment (repeatable)")
	cmd.MarkFlagRequired("service")
	cmd.MarkFlagRequired("workflow")
	return cmd
}

func newRunStatusCmd() *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "status <run_id>",
		Short: "Show the state and log of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			var run model.Run
			var err error
			if refresh {
				err = client.PostInto("/api/v1/runs/"+id+"/refresh", nil, &run)
			} else {
				err = client.GetInto("/api/v1/runs/"+id, &run)
			}
			if err != nil {
				return fmt.Errorf("get run: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run: %s\n", run.ID)
			fmt.Fprintf(out, "  Name:     %s\n", run.Name)
			fmt.Fprintf(out, "  State:    %s\n", run.State)
			fmt.Fprintf(out, "  Service:  %s\n", run.ServiceID)
			fmt.Fprintf(out, "  Workflow: %s\n", run.WorkflowID)
			fmt.Fprintf(out, "  Added:    %s\n", ago(run.AddedDate))
			fmt.Fprintf(out, "  Updated:  %s\n", ago(run.UpdatedDate))

			log := run.RunLog.RunLog
			if log.StartTime != "" {
				fmt.Fprintf(out, "  Started:  %s\n", log.StartTime)
			}
			if log.EndTime != "" {
				fmt.Fprintf(out, "  Ended:    %s\n", log.EndTime)
			}
			if log.ExitCode != nil {
				fmt.Fprintf(out, "  Exit:     %d\n", *log.ExitCode)
			}
			if len(run.RunLog.TaskLogs) > 0 {
				fmt.Fprintln(out, "  Tasks:")
				for _, t := range run.RunLog.TaskLogs {
					exit := "-"
					if t.ExitCode != nil {
						exit = fmt.Sprint(*t.ExitCode)
					}
					fmt.Fprintf(out, "    - %s: exit %s\n", t.Name, exit)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Poll the service before printing")
	return cmd
}

func newRunCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <run_id>",
		Short: "Ask the service to cancel a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			var data struct {
				Requested bool `json:"cancel_requested"`
			}
			if err := client.PostInto("/api/v1/runs/"+id+"/cancel", nil, &data); err != nil {
				return fmt.Errorf("cancel run: %w", err)
			}
			if data.Requested {
				fmt.Fprintf(cmd.OutOrStdout(), "Cancel requested for run %s\n", id)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Run %s is not cancelable in its current state\n", id)
			}
			return nil
		},
	}
}

func newRunRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Poll the state of every tracked run",
		RunE: func(cmd *cobra.Command, args []string) error {
			var runs []model.Run
			if err := client.PostInto("/api/v1/runs/refresh", nil, &runs); err != nil {
				return fmt.Errorf("refresh runs: %w", err)
			}
			printRuns(cmd, runs)
			return nil
		},
	}
}

func newRunDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <run_id>...",
		Short: "Forget runs locally",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, id := range args {
				if _, err := client.Delete("/api/v1/runs/" + id); err != nil {
					return fmt.Errorf("delete run %s: %w", id, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", id)
			}
			return nil
		},
	}
}
