package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/statuswatch/statuswatch/internal/api"
	"github.com/statuswatch/statuswatch/internal/auth"
)

func loginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the API token",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")

			reader := bufio.NewReader(os.Stdin)
			if email == "" {
				fmt.Print("email: ")
				line, err := reader.ReadString('\n')
				if err != nil {
					return err
				}
				email = strings.TrimSpace(line)
			}
			if password == "" {
				fmt.Print("password: ")
				line, err := reader.ReadString('\n')
				if err != nil {
					return err
				}
				password = strings.TrimSpace(line)
			}

			resp, err := a.client.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}

			if err := a.session.Save(auth.Credentials{
				Token:          resp.Token,
				UserID:         resp.UserID,
				OrganizationID: resp.OrganizationID,
			}); err != nil {
				return err
			}

			fmt.Printf("logged in (organization %s)\n", resp.OrganizationID)
			return nil
		},
	}

	cmd.Flags().String("email", "", "account email")
	cmd.Flags().String("password", "", "account password")

	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored API token",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.session.Clear(); err != nil {
				return err
			}
			fmt.Println("logged out")
			return nil
		},
	}
}

func servicesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "services",
		Aliases: []string{"applications"},
		Short:   "Manage the organization's services",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List services",
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			apps, err := a.client.ListApplications(cmd.Context())
			if err != nil {
				return err
			}
			w := newTable()
			fmt.Fprintln(w, "ID\tNAME\tSTATUS\tUPDATED")
			for _, app := range apps {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", app.ID, app.Name, app.Status, app.UpdatedAt)
			}
			return w.Flush()
		}),
	}

	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Register a service",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			description, _ := cmd.Flags().GetString("description")
			link, _ := cmd.Flags().GetString("link")

			created, err := a.client.CreateApplication(cmd.Context(), api.Application{
				Name:        args[0],
				Description: description,
				Link:        link,
			})
			if err != nil {
				return err
			}
			fmt.Printf("service %s created (%s)\n", created.Name, created.ID)
			return nil
		}),
	}
	add.Flags().String("description", "", "service description")
	add.Flags().String("link", "", "service URL")

	remove := &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a service",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			if err := a.client.DeleteApplication(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("service %s removed\n", args[0])
			return nil
		}),
	}

	cmd.AddCommand(list, add, remove)
	return cmd
}

func incidentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "incidents",
		Short: "Manage incidents",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List incidents",
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			incidents, err := a.client.ListIncidents(cmd.Context())
			if err != nil {
				return err
			}
			w := newTable()
			fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tSEVERITY\tCREATED")
			for _, inc := range incidents {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", inc.ID, inc.Title, inc.Status, inc.Severity, inc.CreatedAt)
			}
			return w.Flush()
		}),
	}

	report := &cobra.Command{
		Use:   "report <title>",
		Short: "Report a new incident",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			description, _ := cmd.Flags().GetString("description")
			severity, _ := cmd.Flags().GetString("severity")
			appID, _ := cmd.Flags().GetString("service")

			created, err := a.client.ReportIncident(cmd.Context(), api.Incident{
				Title:         args[0],
				Description:   description,
				Severity:      severity,
				ApplicationID: appID,
			})
			if err != nil {
				return err
			}
			fmt.Printf("incident %s reported (%s)\n", created.Title, created.ID)
			return nil
		}),
	}
	report.Flags().String("description", "", "incident description")
	report.Flags().String("severity", "minor", "severity (minor, major, critical)")
	report.Flags().String("service", "", "affected service id")

	resolve := &cobra.Command{
		Use:   "resolve <id>",
		Short: "Resolve an incident",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			if _, err := a.client.UpdateIncident(cmd.Context(), args[0], map[string]any{
				"status": "resolved",
			}); err != nil {
				return err
			}
			fmt.Printf("incident %s resolved\n", args[0])
			return nil
		}),
	}

	logCmd := &cobra.Command{
		Use:   "log <id> <message>",
		Short: "Post an update on an incident",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			status, _ := cmd.Flags().GetString("status")
			if _, err := a.client.AppendIncidentLog(cmd.Context(), args[0], api.IncidentLog{
				Message: args[1],
				Status:  status,
			}); err != nil {
				return err
			}
			fmt.Printf("update posted on incident %s\n", args[0])
			return nil
		}),
	}
	logCmd.Flags().String("status", "", "new incident status (investigating, identified, monitoring, resolved)")

	timeline := &cobra.Command{
		Use:   "timeline <id>",
		Short: "Show an incident's update timeline",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			logs, err := a.client.ListIncidentLogs(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, entry := range logs {
				fmt.Printf("%s  [%s] %s\n", entry.CreatedAt, entry.Status, entry.Message)
			}
			return nil
		}),
	}

	cmd.AddCommand(list, report, resolve, logCmd, timeline)
	return cmd
}

func maintenanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "maintenance",
		Short: "Manage maintenance windows",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List maintenance windows",
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			windows, err := a.client.ListMaintenance(cmd.Context())
			if err != nil {
				return err
			}
			w := newTable()
			fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tSTARTS\tENDS")
			for _, m := range windows {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", m.ID, m.Title, m.Status, m.StartsAt, m.EndsAt)
			}
			return w.Flush()
		}),
	}

	schedule := &cobra.Command{
		Use:   "schedule <title>",
		Short: "Schedule a maintenance window",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			starts, _ := cmd.Flags().GetString("starts")
			ends, _ := cmd.Flags().GetString("ends")
			appID, _ := cmd.Flags().GetString("service")

			created, err := a.client.ScheduleMaintenance(cmd.Context(), api.Maintenance{
				Title:         args[0],
				StartsAt:      starts,
				EndsAt:        ends,
				ApplicationID: appID,
			})
			if err != nil {
				return err
			}
			fmt.Printf("maintenance %s scheduled (%s)\n", created.Title, created.ID)
			return nil
		}),
	}
	schedule.Flags().String("starts", "", "start time (RFC 3339)")
	schedule.Flags().String("ends", "", "end time (RFC 3339)")
	schedule.Flags().String("service", "", "affected service id")

	complete := &cobra.Command{
		Use:   "complete <id>",
		Short: "Mark a maintenance window completed",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			if _, err := a.client.UpdateMaintenance(cmd.Context(), args[0], map[string]any{
				"status": "completed",
			}); err != nil {
				return err
			}
			fmt.Printf("maintenance %s completed\n", args[0])
			return nil
		}),
	}

	cancel := &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a maintenance window",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			if err := a.client.CancelMaintenance(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("maintenance %s cancelled\n", args[0])
			return nil
		}),
	}

	cmd.AddCommand(list, schedule, complete, cancel)
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [org-id]",
		Short: "Show the public status dashboard (no login required)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			if len(args) == 0 {
				orgs, err := a.client.PublicOrganizations(cmd.Context())
				if err != nil {
					return err
				}
				w := newTable()
				fmt.Fprintln(w, "ID\tNAME")
				for _, org := range orgs {
					fmt.Fprintf(w, "%s\t%s\n", org.ID, org.Name)
				}
				return w.Flush()
			}

			stats, err := a.client.PublicStatsOverview(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Printf("overall: %s\n", stats.OverallStatus)
			fmt.Printf("services: %d up / %d down of %d\n", stats.ServicesUp, stats.ServicesDown, stats.TotalServices)
			fmt.Printf("open incidents: %d\n", stats.OpenIncidents)
			fmt.Printf("planned maintenance: %d\n", stats.PlannedWindows)
			if stats.UptimePercent30d > 0 {
				fmt.Printf("uptime (30d): %.2f%%\n", stats.UptimePercent30d)
			}
			return nil
		},
	}
}

// withApp loads application state, enforces login, and cleans up.
func withApp(run func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.requireLogin(); err != nil {
			return err
		}
		return run(cmd, a, args)
	}
}

func newTable() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
}
