package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/me/wesconsole/internal/console"
	"github.com/me/wesconsole/pkg/model"
)

func newServiceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "service",
		Aliases: []string{"services", "svc"},
		Short:   "Manage registered WES services",
	}
	cmd.AddCommand(
		newServiceListCmd(),
		newServiceAddCmd(),
		newServiceShowCmd(),
		newServiceRefreshCmd(),
		newServiceDeleteCmd(),
	)
	return cmd
}

func newServiceListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List services",
		RunE: func(cmd *cobra.Command, args []string) error {
			var services []model.Service
			if err := client.GetInto("/api/v1/services/", &services); err != nil {
				return fmt.Errorf("list services: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(services) == 0 {
				fmt.Fprintln(out, "No services found.")
				return nil
			}
			fmt.Fprintf(out, "%-36s  %-20s  %-11s  %-9s  %-9s  %s\n", "ID", "NAME", "STATE", "WORKFLOWS", "RUNS", "UPDATED")
			for _, s := range services {
				fmt.Fprintf(out, "%-36s  %-20s  %-11s  %-9d  %-9d  %s\n",
					s.ID, truncate(s.Name, 20), s.State, len(s.WorkflowIDs), len(s.RunIDs), ago(s.UpdatedDate))
			}
			return nil
		},
	}
}

func newServiceAddCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "add <endpoint>",
		Short: "Register a WES service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				name = args[0]
			}
			var svc model.Service
			if err := client.PostInto("/api/v1/services/", console.ServiceRequest{Name: name, Endpoint: args[0]}, &svc); err != nil {
				return fmt.Errorf("add service: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Service registered: %s\n", svc.ID)
			fmt.Fprintf(out, "  State:     %s\n", svc.State)
			fmt.Fprintf(out, "  Workflows: %d\n", len(svc.WorkflowIDs))
			if svc.State == model.ServiceStateDisconnect {
				fmt.Fprintln(out, "  Warning: the endpoint did not answer service-info; refresh it once it is reachable.")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Display name (defaults to the endpoint)")
	return cmd
}

func newServiceShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <service_id>",
		Short: "Show a service and its capabilities",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var svc model.Service
			if err := client.GetInto("/api/v1/services/"+args[0], &svc); err != nil {
				return fmt.Errorf("get service: %w", err)
			}
			printService(cmd, &svc)
			return nil
		},
	}
}

func printService(cmd *cobra.Command, svc *model.Service) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Service: %s\n", svc.ID)
	fmt.Fprintf(out, "  Name:      %s\n", svc.Name)
	fmt.Fprintf(out, "  Endpoint:  %s\n", svc.Endpoint)
	fmt.Fprintf(out, "  State:     %s\n", svc.State)
	fmt.Fprintf(out, "  WES:       %s\n", joinOrDash(svc.ServiceInfo.SupportedWesVersions))

	var engines []string
	for _, e := range svc.ServiceInfo.WorkflowEngines() {
		engines = append(engines, e.Name+" "+e.Version)
	}
	fmt.Fprintf(out, "  Engines:   %s\n", joinOrDash(engines))

	var langs []string
	for _, l := range svc.ServiceInfo.WorkflowLanguages() {
		langs = append(langs, l.Name)
	}
	fmt.Fprintf(out, "  Languages: %s\n", joinOrDash(langs))
	fmt.Fprintf(out, "  Workflows: %d\n", len(svc.WorkflowIDs))
	fmt.Fprintf(out, "  Runs:      %d\n", len(svc.RunIDs))
	fmt.Fprintf(out, "  Added:     %s\n", ago(svc.AddedDate))
	fmt.Fprintf(out, "  Updated:   %s\n", ago(svc.UpdatedDate))
}

func newServiceRefreshCmd() *cobra.Command {
	var runs bool
	cmd := &cobra.Command{
		Use:   "refresh [service_id]",
		Short: "Re-read service-info and the workflow catalog",
		Long:  "Refreshes one service, or every service when no id is given. With --runs the service's run states are polled instead.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				var services []model.Service
				if err := client.PostInto("/api/v1/services/refresh", nil, &services); err != nil {
					return fmt.Errorf("refresh services: %w", err)
				}
				for _, s := range services {
					fmt.Fprintf(out, "%s: %s\n", s.ID, s.State)
				}
				return nil
			}

			id := args[0]
			if runs {
				var runList []model.Run
				if err := client.PostInto("/api/v1/services/"+id+"/runs/refresh", nil, &runList); err != nil {
					return fmt.Errorf("refresh runs: %w", err)
				}
				for _, r := range runList {
					fmt.Fprintf(out, "%s: %s\n", r.ID, r.State)
				}
				fmt.Fprintf(out, "Refreshed %d runs of %s\n", len(runList), id)
				return nil
			}

			var svc model.Service
			if err := client.PostInto("/api/v1/services/"+id+"/refresh", nil, &svc); err != nil {
				return fmt.Errorf("refresh service: %w", err)
			}
			fmt.Fprintf(out, "%s: %s\n", svc.ID, svc.State)
			return nil
		},
	}
	cmd.Flags().BoolVar(&runs, "runs", false, "Poll run states instead of service-info")
	return cmd
}

func newServiceDeleteCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "delete <service_id>...",
		Short: "Delete services with their workflows and runs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, id := range args {
				if _, err := client.Delete(withQuery("/api/v1/services/"+id, "force", forceValue(force))); err != nil {
					return fmt.Errorf("delete service %s: %w", id, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted service %s\n", id)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Also delete pre-registered services")
	return cmd
}

func forceValue(force bool) string {
	if force {
		return "true"
	}
	return ""
}
