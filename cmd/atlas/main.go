package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"atlas/internal/config"
	"atlas/internal/db"
	"atlas/internal/domain"
	"atlas/internal/engine"
	"atlas/internal/migrate"
	"atlas/internal/repo"
	"atlas/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "atlas",
	Short: "Atlas CLI",
	Long: `Atlas manages the task board: accounts, departments, tasks and their
timelines. The workspace is a directory holding atlas.yml and the .atlas
database; the serve command exposes the same operations over HTTP.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
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
	viper.SetEnvPrefix("ATLAS")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("as", "", "act as this username")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("as", rootCmd.PersistentFlags().Lookup("as"))
}

func registerCommands() {
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(deptCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(keyCmd())
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Manage configuration"}
	cfg.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write the default atlas.yml",
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
		Short: "Show effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.LoadOptional(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSON(c)
		},
	})
	return cfg
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := db.Open(db.Config{Workspace: viper.GetString("workspace")})
			if err != nil {
				return err
			}
			defer conn.Close()
			n, err := migrate.Up(conn)
			if err != nil {
				return err
			}
			v, err := migrate.Version(conn)
			if err != nil {
				return err
			}
			fmt.Printf("applied %d migration(s), schema version %d\n", n, v)
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			cfg, err := config.LoadOptional(workspace)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Listen = addr
			}
			if basePath != "" {
				cfg.Server.BasePath = basePath
			}
			if s := os.Getenv("ATLAS_JWT_SECRET"); s != "" {
				cfg.Server.JWTSecret = s
			}
			if cfg.Server.JWTSecret == "" {
				return fmt.Errorf("jwt secret required: set server.jwt_secret or ATLAS_JWT_SECRET")
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			log := slog.New(slog.NewJSONHandler(os.Stderr, nil))
			e := engine.New(conn, cfg, log)
			handler, err := server.New(server.Config{
				Engine:   e,
				BasePath: cfg.Server.BasePath,
				Server:   *cfg,
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: cfg.Server.Listen, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			log.Info("serving", "addr", cfg.Server.Listen, "base_path", cfg.Server.BasePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (overrides config)")
	return cmd
}

func userCmd() *cobra.Command {
	user := &cobra.Command{Use: "user", Short: "Manage users"}
	user.AddCommand(userCreateCmd())
	user.AddCommand(userListCmd())
	user.AddCommand(userDeleteCmd())
	return user
}

func userCreateCmd() *cobra.Command {
	var email, password, username, fullName, role, dept string
	var supervised []string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Provision a user account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				p, err := e.ProvisionUser(ctx, engine.ProvisionUserInput{
					Email:        email,
					Password:     password,
					Username:     username,
					FullName:     fullName,
					Role:         domain.Role(role),
					DepartmentID: optionalString(dept),
					Supervised:   supervised,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "initial password")
	cmd.Flags().StringVar(&username, "username", "", "username (defaults to email local part)")
	cmd.Flags().StringVar(&fullName, "full-name", "", "full name")
	cmd.Flags().StringVar(&role, "role", "Usuario", "role")
	cmd.Flags().StringVar(&dept, "department", "", "department id")
	cmd.Flags().StringArrayVar(&supervised, "supervised", []string{}, "supervised profile id (repeatable)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	_ = cmd.MarkFlagRequired("full-name")
	return cmd
}

func userListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				users, err := e.Repo.ListProfiles(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(users)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Username", "Full name", "Role", "Department"})
				for _, u := range users {
					dept := ""
					if u.DepartmentID != nil {
						dept = *u.DepartmentID
					}
					tw.AppendRow(table.Row{u.ID, u.Username, u.FullName, u.Role, dept})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func userDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				return e.DeleteUser(ctx, localAdmin(), args[0])
			})
		},
	}
}

func deptCmd() *cobra.Command {
	dept := &cobra.Command{Use: "dept", Short: "Manage departments"}
	var name, description string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a department",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				d, err := e.CreateDepartment(ctx, localAdmin(), name, description)
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
	create.Flags().StringVar(&name, "name", "", "department name")
	create.Flags().StringVar(&description, "description", "", "description")
	_ = create.MarkFlagRequired("name")
	dept.AddCommand(create)

	dept.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List departments",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				items, err := e.Repo.ListDepartments(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	})

	dept.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a department",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				return e.DeleteDepartment(ctx, localAdmin(), args[0])
			})
		},
	})
	return dept
}

func taskCmd() *cobra.Command {
	task := &cobra.Command{Use: "task", Short: "Manage tasks"}
	task.AddCommand(taskCreateCmd())
	task.AddCommand(taskListCmd())
	task.AddCommand(taskHistoryCmd())
	task.AddCommand(taskChatCmd())
	return task
}

func taskCreateCmd() *cobra.Command {
	var title, description, priority, assignedTo, dept string
	var private bool
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				actor, err := resolveActor(ctx, e)
				if err != nil {
					return err
				}
				t, err := e.CreateTask(ctx, actor, engine.CreateTaskInput{
					Title:        title,
					Description:  description,
					Priority:     domain.Priority(priority),
					AssignedTo:   assignedTo,
					DepartmentID: optionalString(dept),
					Private:      private,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "task title")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&priority, "priority", "", "priority (Baja, Media, Alta, Urgente)")
	cmd.Flags().StringVar(&assignedTo, "assigned-to", "", "assignee (id, username, email or full name)")
	cmd.Flags().StringVar(&dept, "department", "", "department id")
	cmd.Flags().BoolVar(&private, "private", false, "visible to the creator only")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func taskListCmd() *cobra.Command {
	var f engine.TaskFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List visible tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				actor, err := resolveActor(ctx, e)
				if err != nil {
					return err
				}
				tasks, err := e.VisibleTasks(ctx, actor, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(tasks)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Status", "Priority", "Assignee"})
				for _, t := range tasks {
					assignee := ""
					if t.AssigneeID != nil {
						assignee = *t.AssigneeID
					} else if t.AssigneeText != nil {
						assignee = *t.AssigneeText
					}
					tw.AppendRow(table.Row{t.ID, t.Title, t.Status, t.Priority, assignee})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter (OPEN_TASKS matches everything not finished)")
	cmd.Flags().StringVar(&f.Priority, "priority", "", "priority filter")
	cmd.Flags().StringVar(&f.Assignee, "assignee", "", "assignee profile id")
	cmd.Flags().StringVar(&f.Query, "q", "", "text match on title and description")
	return cmd
}

func taskHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <id>",
		Short: "Show a task's timeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				actor, err := resolveActor(ctx, e)
				if err != nil {
					return err
				}
				items, err := e.Timeline(ctx, actor, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"At", "Kind", "Actor", "Field", "Value"})
				for _, it := range items {
					tw.AppendRow(table.Row{it.CreatedAt, it.Kind, it.ActorID, it.Field, it.NewValue})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func taskChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat <id> <message>",
		Short: "Post a chat message on a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				actor, err := resolveActor(ctx, e)
				if err != nil {
					return err
				}
				entry, err := e.AddChatMessage(ctx, actor, args[0], args[1])
				if err != nil {
					return err
				}
				return printJSONOrTable(entry)
			})
		},
	}
}

func keyCmd() *cobra.Command {
	key := &cobra.Command{Use: "key", Short: "Manage service keys"}
	var name string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a service key; the raw key is printed once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				raw, err := randomKey()
				if err != nil {
					return err
				}
				k := domain.ServiceKey{
					ID:        uuid.New().String(),
					Name:      name,
					KeyHash:   repo.HashKey(raw),
					CreatedAt: time.Now().UTC().Format(time.RFC3339),
				}
				if err := e.Repo.InsertServiceKey(ctx, k); err != nil {
					return err
				}
				fmt.Println(raw)
				return nil
			})
		},
	}
	create.Flags().StringVar(&name, "name", "", "key label")
	key.AddCommand(create)

	key.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List service keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				items, err := e.Repo.ListServiceKeys(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	})

	key.AddCommand(&cobra.Command{
		Use:   "revoke <id>",
		Short: "Revoke a service key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				return e.Repo.DeleteServiceKey(ctx, args[0])
			})
		},
	})
	return key
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, *engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return err
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	return fn(ctx, engine.New(conn, cfg, log))
}

// resolveActor maps --as to a real profile; task operations need one
// because they write rows keyed by the actor.
func resolveActor(ctx context.Context, e *engine.Engine) (domain.Profile, error) {
	username := viper.GetString("as")
	if username == "" {
		return domain.Profile{}, fmt.Errorf("--as <username> required")
	}
	return e.Repo.GetProfileByUsername(ctx, username)
}

// localAdmin is the implicit actor for management commands run on the
// workspace directly; it holds the privileged role and owns no rows.
func localAdmin() domain.Profile {
	return domain.Profile{ID: "local-admin", Role: domain.RoleAdministrador, FullName: "local admin"}
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

func randomKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "ak_" + hex.EncodeToString(buf), nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
