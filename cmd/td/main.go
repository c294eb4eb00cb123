package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"taskdeck/internal/app"
	"taskdeck/internal/config"
	"taskdeck/internal/domain"
	"taskdeck/internal/localstore"
	"taskdeck/internal/stubserver"
)

var rootCmd = &cobra.Command{
	Use:   "td",
	Short: "Taskdeck CLI",
	Long: `Taskdeck is a client for the task-management backend.
It keeps a signed-in session across invocations, mirrors your projects and
tasks locally, and applies edits optimistically with automatic rollback
when the backend refuses them.`,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	_ = godotenv.Load()
	viper.SetEnvPrefix("TASKDECK")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("backend", "", "backend base URL (overrides config)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (overrides config)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("backend", rootCmd.PersistentFlags().Lookup("backend"))
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func registerCommands() {
	rootCmd.AddCommand(loginCmd())
	rootCmd.AddCommand(logoutCmd())
	rootCmd.AddCommand(whoamiCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(prefsCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(devserverCmd())
}

func loginCmd() *cobra.Command {
	var returnURL string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in via the external authorization flow",
		Long: `Without flags, prints the authorization URL to open in a browser.
With --return, completes the round trip: the URL you came back on is
checked for the login_success marker and the session is re-checked once.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if returnURL == "" {
					snap := a.Session.Snapshot()
					if snap.Authenticated() {
						fmt.Printf("already signed in as %s\n", snap.Identity.Name)
						return nil
					}
					fmt.Println("open this URL to sign in:")
					fmt.Println("  " + a.Session.LoginURL())
					return nil
				}
				cleaned, rechecked := a.Session.HandleLoginReturn(ctx, returnURL)
				snap := a.Session.Snapshot()
				if snap.Authenticated() {
					fmt.Printf("signed in as %s\n", snap.Identity.Name)
				} else if rechecked {
					fmt.Println("login marker seen but no session was established")
				} else {
					fmt.Println("no login marker on that URL; nothing to do")
				}
				a.Log.WithField("url", cleaned).Debug("login return handled")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&returnURL, "return", "", "URL you were redirected back to")
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear the local session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				a.Session.Logout(ctx)
				if err := a.Jar.Clear(); err != nil {
					return err
				}
				fmt.Println("signed out")
				return nil
			})
		},
	}
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				snap := a.Session.Snapshot()
				if !snap.Authenticated() {
					if snap.Err != "" {
						return fmt.Errorf("session check failed: %s", snap.Err)
					}
					fmt.Println("not signed in; run td login")
					return nil
				}
				return printJSONOrTable(snap.Identity)
			})
		},
	}
}

func projectCmd() *cobra.Command {
	prj := &cobra.Command{Use: "project", Short: "Manage projects"}
	prj.AddCommand(projectListCmd())
	prj.AddCommand(projectCreateCmd())
	return prj
}

func projectListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSignedInApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				projects := a.Flow.Projects()
				if viper.GetBool("json") {
					return printJSON(projects)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Owner", "Tasks", "Favorite"})
				for _, p := range projects {
					fav := ""
					if p.IsFavorite {
						fav = "*"
					}
					tw.AppendRow(table.Row{p.ID, p.Name, p.OwnerName, p.TaskCount, fav})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func projectCreateCmd() *cobra.Command {
	var payload domain.ProjectPayload
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSignedInApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				p, err := a.Mutations.CreateProject(ctx, payload)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&payload.Name, "name", "", "project name")
	cmd.Flags().StringVar(&payload.Description, "description", "", "description")
	cmd.Flags().StringVar(&payload.Color, "color", "", "display color")
	cmd.Flags().StringVar(&payload.IconName, "icon", "", "icon name")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func taskCmd() *cobra.Command {
	task := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
		Long: `Tasks live in projects and carry a status (TODO, IN_PROGRESS, DONE,
CANCELLED). Listing defaults to tasks assigned to you; --project scopes to
one project. Edits are applied locally first and rolled back if the
backend rejects them.`,
	}
	task.AddCommand(taskListCmd())
	task.AddCommand(taskGetCmd())
	task.AddCommand(taskAddCmd())
	task.AddCommand(taskEditCmd())
	task.AddCommand(taskStatusCmd())
	task.AddCommand(taskDoneCmd())
	task.AddCommand(taskDeleteCmd())
	return task
}

func taskListCmd() *cobra.Command {
	var projectID int64
	var completed bool
	var status, search, sortBy string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			scope := scopeFlag(cmd, projectID)
			return withScopedApp(cmd.Context(), scope, func(ctx context.Context, a *app.App) error {
				filters := domain.TaskFilters{View: domain.ViewUncompleted, Search: search}
				if completed {
					filters.View = domain.ViewCompleted
				}
				if status != "" {
					filters.Status = domain.TaskStatus(strings.ToUpper(status))
				}
				tasks := domain.SortTasks(domain.FilterTasks(a.Flow.Tasks(), filters), domain.SortOrder(sortBy))
				if msg := a.Flow.PageError(); msg != "" {
					fmt.Fprintf(os.Stderr, "warning: showing stale data: %s\n", msg)
				}
				if viper.GetBool("json") {
					return printJSON(tasks)
				}
				printTaskTable(tasks)
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&projectID, "project", 0, "project id (default: tasks assigned to you)")
	cmd.Flags().BoolVar(&completed, "completed", false, "show completed tasks instead of open ones")
	cmd.Flags().StringVar(&status, "status", "", "status filter (open view only)")
	cmd.Flags().StringVar(&search, "search", "", "match in title or description")
	cmd.Flags().StringVar(&sortBy, "sort", "newest", "newest, oldest, dueDateAsc, dueDateDesc, titleAsc, titleDesc")
	return cmd
}

func taskGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withSignedInApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				t, err := a.Client.GetTask(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
}

func taskAddCmd() *cobra.Command {
	var projectID, assigneeID int64
	var title, description, status, dueDate string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := domain.TaskPayload{
				Title:  title,
				Status: domain.StatusTodo,
			}
			if status != "" {
				payload.Status = domain.TaskStatus(strings.ToUpper(status))
			}
			if description != "" {
				payload.Description = &description
			}
			if dueDate != "" {
				payload.DueDate = &dueDate
			}
			if cmd.Flags().Changed("project") {
				payload.ProjectID = &projectID
			}
			if cmd.Flags().Changed("assignee") {
				payload.AssigneeID = &assigneeID
			}
			return withSignedInApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				t, err := a.Mutations.CreateTask(ctx, payload)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&status, "status", "", "initial status (default TODO)")
	cmd.Flags().StringVar(&dueDate, "due", "", "due date (YYYY-MM-DD)")
	cmd.Flags().Int64Var(&projectID, "project", 0, "project id")
	cmd.Flags().Int64Var(&assigneeID, "assignee", 0, "assignee user id")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func taskEditCmd() *cobra.Command {
	var scopeProject int64
	var title, description, status, dueDate string
	var clearDue bool
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			scope := scopeFlag(cmd, scopeProject)
			return withScopedApp(cmd.Context(), scope, func(ctx context.Context, a *app.App) error {
				prior, _, ok := a.Flow.TaskByID(id)
				if !ok {
					return fmt.Errorf("task %d not found in the current view", id)
				}
				payload := domain.PayloadFromTask(prior)
				if cmd.Flags().Changed("title") {
					payload.Title = title
				}
				if cmd.Flags().Changed("description") {
					payload.Description = &description
				}
				if cmd.Flags().Changed("status") {
					payload.Status = domain.TaskStatus(strings.ToUpper(status))
				}
				if clearDue {
					payload.DueDate = nil
				} else if cmd.Flags().Changed("due") {
					payload.DueDate = &dueDate
				}
				t, err := a.Mutations.UpdateTask(ctx, id, payload)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().Int64Var(&scopeProject, "project", 0, "project id the task is listed under")
	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&description, "description", "", "new description")
	cmd.Flags().StringVar(&status, "status", "", "new status")
	cmd.Flags().StringVar(&dueDate, "due", "", "new due date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&clearDue, "clear-due", false, "remove the due date")
	return cmd
}

func taskStatusCmd() *cobra.Command {
	var scopeProject int64
	cmd := &cobra.Command{
		Use:   "status <id> <status>",
		Short: "Set task status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			status := domain.TaskStatus(strings.ToUpper(args[1]))
			scope := scopeFlag(cmd, scopeProject)
			return withScopedApp(cmd.Context(), scope, func(ctx context.Context, a *app.App) error {
				t, err := a.Mutations.SetTaskStatus(ctx, id, status)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().Int64Var(&scopeProject, "project", 0, "project id the task is listed under")
	return cmd
}

func taskDoneCmd() *cobra.Command {
	var scopeProject int64
	cmd := &cobra.Command{
		Use:   "done <id>",
		Short: "Mark a task done",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			scope := scopeFlag(cmd, scopeProject)
			return withScopedApp(cmd.Context(), scope, func(ctx context.Context, a *app.App) error {
				t, err := a.Mutations.SetTaskStatus(ctx, id, domain.StatusDone)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().Int64Var(&scopeProject, "project", 0, "project id the task is listed under")
	return cmd
}

func taskDeleteCmd() *cobra.Command {
	var scopeProject int64
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if !yes {
				return fmt.Errorf("refusing to delete task %d without --yes", id)
			}
			scope := scopeFlag(cmd, scopeProject)
			return withScopedApp(cmd.Context(), scope, func(ctx context.Context, a *app.App) error {
				if err := a.Mutations.DeleteTask(ctx, id, true); err != nil {
					return err
				}
				fmt.Printf("deleted task %d\n", id)
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&scopeProject, "project", 0, "project id the task is listed under")
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deletion")
	return cmd
}

func historyCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent mutation outcomes",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := localstore.Open(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			defer store.Close()
			entries, err := store.RecentMutations(n)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(entries)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"When", "Action", "Entity", "Outcome", "Detail"})
			for _, e := range entries {
				entity := ""
				if e.EntityID != nil {
					entity = strconv.FormatInt(*e.EntityID, 10)
				}
				tw.AppendRow(table.Row{e.TS, e.Action, entity, e.Outcome, e.Detail})
			}
			tw.Render()
			return nil
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of entries")
	return cmd
}

func prefsCmd() *cobra.Command {
	prefs := &cobra.Command{Use: "prefs", Short: "Local display preferences"}
	prefs.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show stored preferences",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := localstore.Open(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			defer store.Close()
			theme, err := store.Theme()
			if err != nil {
				return err
			}
			sidebar, err := store.SidebarOpen()
			if err != nil {
				return err
			}
			return printJSONOrTable(map[string]any{"theme": theme, "sidebarOpen": sidebar})
		},
	})
	prefs.AddCommand(&cobra.Command{
		Use:   "set-theme <light|dark>",
		Short: "Set the theme",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			theme := args[0]
			if theme != "light" && theme != "dark" {
				return fmt.Errorf("theme must be light or dark")
			}
			store, err := localstore.Open(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			defer store.Close()
			return store.SetTheme(theme)
		},
	})
	prefs.AddCommand(&cobra.Command{
		Use:   "sidebar <open|closed>",
		Short: "Set the sidebar state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[0] != "open" && args[0] != "closed" {
				return fmt.Errorf("sidebar must be open or closed")
			}
			store, err := localstore.Open(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			defer store.Close()
			return store.SetSidebarOpen(args[0] == "open")
		},
	})
	return prefs
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Manage client config"}
	cfg.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a default taskdeck.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	})
	cfg.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.LoadOptional(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSONOrTable(c)
		},
	})
	cfg.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate taskdeck.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			if err := c.Validate(); err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	})
	return cfg
}

func devserverCmd() *cobra.Command {
	var addr string
	var seed bool
	cmd := &cobra.Command{
		Use:   "devserver",
		Short: "Run a local stand-in backend",
		Long:  "Serves the same routes and error shapes as the real backend with in-memory data, for development without a deployment.",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logrus.New()
			log.SetLevel(logrus.InfoLevel)
			srv := stubserver.New(log.WithField("component", "stubserver"))
			srv.ReturnTo = "http://" + addr + "/"
			if seed {
				p := srv.SeedProject("Inbox")
				srv.SeedTask(p.ID, "Try out taskdeck", domain.StatusTodo)
			}
			httpSrv := &http.Server{Addr: addr, Handler: srv.Handler()}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				httpSrv.Shutdown(ctx)
			}()
			fmt.Printf("Serving stand-in backend on http://%s\n", addr)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().BoolVar(&seed, "seed", true, "seed a demo project and task")
	return cmd
}

// --- helpers ---

func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	a, err := app.New(app.Options{
		Workspace: viper.GetString("workspace"),
		BaseURL:   viper.GetString("backend"),
		LogLevel:  viper.GetString("log-level"),
	})
	if err != nil {
		return err
	}
	defer a.Close()
	if _, err := a.Session.Check(ctx, true); err != nil {
		a.Log.WithError(err).Debug("initial session check failed")
	}
	return fn(ctx, a)
}

func withSignedInApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	return withScopedApp(ctx, nil, fn)
}

func withScopedApp(ctx context.Context, scope *int64, fn func(context.Context, *app.App) error) error {
	return withApp(ctx, func(ctx context.Context, a *app.App) error {
		if !a.Session.Snapshot().Authenticated() {
			snap := a.Session.Snapshot()
			if snap.Err != "" {
				return fmt.Errorf("backend unreachable: %s", snap.Err)
			}
			return fmt.Errorf("not signed in; run td login")
		}
		a.Flow.SetScope(scope)
		if err := a.Flow.Refresh(ctx); err != nil {
			a.Log.WithError(err).Warn("refresh failed")
		}
		return fn(ctx, a)
	})
}

func scopeFlag(cmd *cobra.Command, projectID int64) *int64 {
	if cmd.Flags().Changed("project") {
		return &projectID
	}
	return nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func printTaskTable(tasks []domain.Task) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Title", "Status", "Due", "Project", "Assignee"})
	for _, t := range tasks {
		due := ""
		if t.DueDate != nil {
			due = *t.DueDate
		}
		tw.AppendRow(table.Row{t.ID, t.Title, t.Status, due, t.ProjectName, t.AssigneeName})
	}
	tw.Render()
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
