package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"triton/internal/app"
	"triton/internal/config"
	"triton/internal/db"
	"triton/internal/domain"
	"triton/internal/engine"
	"triton/internal/migrate"
	"triton/internal/portal"
	"triton/internal/repo"
	"triton/internal/server"
	"triton/internal/status"
)

var rootCmd = &cobra.Command{
	Use:   "triton",
	Short: "Triton participation platform CLI",
	Long: `Triton runs program participation: organizations enroll cohorts,
cohorts carry checkpoints and tasks whose statuses are derived from
attachments, and participants enter through the portal with a
(code, session, token) triple to be routed to their survey.`,
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
	viper.SetEnvPrefix("TRITON")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().String("timezone", "", "portal timezone (IANA name, defaults to system local)")
	rootCmd.PersistentFlags().String("link-url", "", "survey link service base URL")
	rootCmd.PersistentFlags().String("roster-url", "", "roster service base URL")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("timezone", rootCmd.PersistentFlags().Lookup("timezone"))
	_ = viper.BindPFlag("link-url", rootCmd.PersistentFlags().Lookup("link-url"))
	_ = viper.BindPFlag("roster-url", rootCmd.PersistentFlags().Lookup("roster-url"))
}

func registerCommands() {
	rootCmd.AddCommand(orgCmd())
	rootCmd.AddCommand(programCmd())
	rootCmd.AddCommand(cohortCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(pdCmd())
	rootCmd.AddCommand(portalCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(serveCmd())
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := db.Open(db.Config{Workspace: viper.GetString("workspace")})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			v, err := migrate.Version(conn)
			if err != nil {
				return err
			}
			fmt.Printf("schema at version %d: %s\n", v, db.Path(viper.GetString("workspace")))
			return nil
		},
	}
}

func orgCmd() *cobra.Command {
	org := &cobra.Command{Use: "org", Short: "Manage organizations"}
	org.AddCommand(orgCreateCmd())
	org.AddCommand(orgShowCmd())
	org.AddCommand(orgDashboardCmd())
	return org
}

func orgCreateCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create organization",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return fmt.Errorf("--name required")
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				o, err := a.Engine.CreateOrganization(ctx, name, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(o)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "organization name")
	return cmd
}

func orgShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <organization-id>",
		Short: "Show organization",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				o, err := a.Repo.GetOrganization(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(o)
			})
		},
	}
	return cmd
}

func orgDashboardCmd() *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "dashboard <organization-id>",
		Short: "Dashboard checkpoints across the organization's cohorts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				cohorts, err := a.Repo.ListProjectCohorts(ctx, args[0])
				if err != nil {
					return err
				}
				var cps []domain.Checkpoint
				var tasks []domain.Task
				for _, pc := range cohorts {
					c, err := a.Repo.ListCheckpoints(ctx, pc.UID)
					if err != nil {
						return err
					}
					t, err := a.Repo.ListTasks(ctx, pc.UID)
					if err != nil {
						return err
					}
					cps = append(cps, c...)
					tasks = append(tasks, t...)
				}
				resolved := status.ResolveDashboard(cps, tasks, status.Role(role))
				if viper.GetBool("json") {
					return printJSON(resolved)
				}
				renderCheckpointTable(resolved)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&role, "role", string(status.RoleSuperAdmin), "viewer role (super_admin or org_admin)")
	return cmd
}

func programCmd() *cobra.Command {
	prg := &cobra.Command{Use: "program", Short: "Manage program configs"}
	prg.AddCommand(programImportCmd())
	prg.AddCommand(programShowCmd())
	return prg
}

func programImportCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a program config from YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return fmt.Errorf("--file required")
			}
			cfg, err := config.FromFile(file)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if err := a.ImportProgram(ctx, cfg); err != nil {
					return err
				}
				fmt.Printf("Imported program %s (%d surveys, %d checkpoints)\n",
					cfg.Program.Label, len(cfg.Surveys), len(cfg.Checkpoints))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "program YAML path")
	return cmd
}

func programShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <label>",
		Short: "Show a stored program config",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				cfg, err := a.Repo.GetProgram(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(cfg)
			})
		},
	}
	return cmd
}

func cohortCmd() *cobra.Command {
	ch := &cobra.Command{Use: "cohort", Short: "Manage project cohorts"}
	ch.AddCommand(cohortCreateCmd())
	ch.AddCommand(cohortShowCmd())
	ch.AddCommand(cohortStatusCmd())
	return ch
}

func cohortCreateCmd() *cobra.Command {
	var orgID, program, cohortLabel, code, portalType, portalURL string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Open a cohort for an organization",
		RunE: func(cmd *cobra.Command, args []string) error {
			if orgID == "" || program == "" || cohortLabel == "" || code == "" {
				return fmt.Errorf("--org, --program, --cohort and --code required")
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if _, err := a.EnsureProgram(ctx, program); err != nil {
					return err
				}
				pc, err := a.Engine.CreateProjectCohort(ctx, engine.CohortCreateOptions{
					OrganizationID:  orgID,
					ProgramLabel:    program,
					CohortLabel:     cohortLabel,
					Code:            portal.NormalizeCode(code),
					PortalType:      portalType,
					CustomPortalURL: portalURL,
					ActorID:         viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(pc)
			})
		},
	}
	cmd.Flags().StringVar(&orgID, "org", "", "organization id")
	cmd.Flags().StringVar(&program, "program", "", "program label")
	cmd.Flags().StringVar(&cohortLabel, "cohort", "", "cohort label")
	cmd.Flags().StringVar(&code, "code", "", "participation code (two words)")
	cmd.Flags().StringVar(&portalType, "portal-type", "", "portal type")
	cmd.Flags().StringVar(&portalURL, "portal-url", "", "custom portal URL")
	return cmd
}

func cohortShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <cohort-id>",
		Short: "Show project cohort",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				pc, err := a.Repo.GetProjectCohort(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(pc)
			})
		},
	}
	return cmd
}

func cohortStatusCmd() *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "status <cohort-id>",
		Short: "Checkpoint and task statuses for one cohort",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				cps, err := a.Repo.ListCheckpoints(ctx, args[0])
				if err != nil {
					return err
				}
				tasks, err := a.Repo.ListTasks(ctx, args[0])
				if err != nil {
					return err
				}
				cps, tasks = status.ResolveCohort(cps, tasks, status.Role(role), a.Logger)
				if viper.GetBool("json") {
					return printJSON(map[string]any{"checkpoints": cps, "tasks": tasks})
				}
				renderCheckpointTable(cps)
				renderTaskTable(tasks)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&role, "role", string(status.RoleSuperAdmin), "viewer role (super_admin or org_admin)")
	return cmd
}

func taskCmd() *cobra.Command {
	task := &cobra.Command{Use: "task", Short: "Manage tasks"}
	task.AddCommand(taskShowCmd())
	task.AddCommand(taskAttachCmd())
	return task
}

func taskShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				t, err := a.Repo.GetTask(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	return cmd
}

func taskAttachCmd() *cobra.Command {
	var value, role string
	var clear bool
	cmd := &cobra.Command{
		Use:   "attach <task-id>",
		Short: "Submit or clear a task attachment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				var attachment *string
				if !clear {
					attachment = &value
				}
				t, err := a.Engine.UpdateTaskAttachment(ctx, args[0], attachment, viper.GetString("actor-id"), status.Role(role))
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&value, "value", "", "attachment value")
	cmd.Flags().BoolVar(&clear, "clear", false, "clear the attachment")
	cmd.Flags().StringVar(&role, "role", string(status.RoleSuperAdmin), "acting role")
	return cmd
}

func pdCmd() *cobra.Command {
	pd := &cobra.Command{Use: "pd", Short: "Participant data"}
	pd.AddCommand(pdListCmd())
	pd.AddCommand(pdRecordCmd())
	return pd
}

func pdListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <participant-id>",
		Short: "Participant data history, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				pds, err := a.Repo.ListParticipantData(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(pds)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Key", "Value", "Cohort", "Survey"})
				for _, pd := range pds {
					cohort, survey := "", ""
					if pd.ProjectCohortID != nil {
						cohort = *pd.ProjectCohortID
					}
					if pd.SurveyOrdinal != nil {
						survey = fmt.Sprintf("%d", *pd.SurveyOrdinal)
					}
					tw.AppendRow(table.Row{pd.ID, pd.Key, pd.Value, cohort, survey})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func pdRecordCmd() *cobra.Command {
	var key, value, cohortID string
	var survey int
	cmd := &cobra.Command{
		Use:   "record <participant-id>",
		Short: "Append a participant data record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if key == "" {
				return fmt.Errorf("--key required")
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				pd := domain.ParticipantData{
					ParticipantID: args[0],
					Key:           key,
					Value:         value,
				}
				if cohortID != "" {
					pd.ProjectCohortID = &cohortID
				}
				if survey > 0 {
					pd.SurveyOrdinal = &survey
				}
				out, err := a.Engine.RecordParticipantData(ctx, pd, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(out)
			})
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "pd key")
	cmd.Flags().StringVar(&value, "value", "", "pd value")
	cmd.Flags().StringVar(&cohortID, "cohort", "", "project cohort id scope")
	cmd.Flags().IntVar(&survey, "survey", 0, "survey ordinal scope")
	return cmd
}

func portalCmd() *cobra.Command {
	p := &cobra.Command{Use: "portal", Short: "Portal routing"}
	p.AddCommand(portalEnterCmd())
	return p
}

// portalEnterCmd simulates a browser carrying the cookie triple.
func portalEnterCmd() *cobra.Command {
	var code, session, token, resumeAfter string
	var override bool
	cmd := &cobra.Command{
		Use:   "enter",
		Short: "Route a participant from a (code, session, token) triple",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				decision, err := a.Router.Route(ctx, portal.RouteRequest{
					Code:        code,
					Session:     session,
					Token:       token,
					Override:    override,
					ResumeAfter: resumeAfter,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(decision)
				}
				switch {
				case decision.DeniedReason != "":
					fmt.Printf("Denied: %s\n", decision.DeniedReason)
					if decision.ReenterToken {
						fmt.Println("Re-enter your token to continue.")
					}
				case decision.PendingState != "":
					fmt.Printf("Pending state: %s (re-run with --resume-after %s once acknowledged)\n",
						decision.PendingState, decision.PendingState)
				default:
					fmt.Printf("Redirect: %s\n", decision.RedirectURL)
				}
				if decision.FirstLogin {
					fmt.Println("First login for this participant.")
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&code, "code", "", "participation code")
	cmd.Flags().StringVar(&session, "session", "", "session ordinal ("+portal.MissingSession+" if unset)")
	cmd.Flags().StringVar(&token, "token", "", "participant token")
	cmd.Flags().BoolVar(&override, "override", false, "bypass cohort and readiness gates")
	cmd.Flags().StringVar(&resumeAfter, "resume-after", "", "presurvey state already acknowledged")
	return cmd
}

func apikeyCmd() *cobra.Command {
	ak := &cobra.Command{Use: "apikey", Short: "Manage API keys"}
	ak.AddCommand(apikeyCreateCmd())
	ak.AddCommand(apikeyListCmd())
	ak.AddCommand(apikeyDeleteCmd())
	return ak
}

func apikeyCreateCmd() *cobra.Command {
	var actor, role, name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key (prints the secret once)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if actor == "" {
				return fmt.Errorf("--actor required")
			}
			if role != string(status.RoleSuperAdmin) && role != string(status.RoleOrgAdmin) {
				return fmt.Errorf("--role must be %s or %s", status.RoleSuperAdmin, status.RoleOrgAdmin)
			}
			raw := make([]byte, 24)
			if _, err := rand.Read(raw); err != nil {
				return err
			}
			secret := "tk_" + hex.EncodeToString(raw)
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				tx, err := a.DB.BeginTx(ctx, nil)
				if err != nil {
					return err
				}
				defer tx.Rollback()
				key := domain.APIKey{
					ID:        uuid.New().String(),
					ActorID:   actor,
					Name:      name,
					Role:      role,
					KeyHash:   repo.HashAPIKey(secret),
					CreatedAt: time.Now().UTC().Format(time.RFC3339),
				}
				if err := a.Repo.InsertAPIKey(ctx, tx, key); err != nil {
					return err
				}
				if err := tx.Commit(); err != nil {
					return err
				}
				fmt.Printf("API key %s created for %s (%s)\n", key.ID, actor, role)
				fmt.Printf("Secret (store it now, it is not shown again): %s\n", secret)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "", "actor id")
	cmd.Flags().StringVar(&role, "role", string(status.RoleOrgAdmin), "role (super_admin or org_admin)")
	cmd.Flags().StringVar(&name, "name", "", "key name")
	return cmd
}

func apikeyListCmd() *cobra.Command {
	var actor string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				keys, err := a.Repo.ListAPIKeys(ctx, actor)
				if err != nil {
					return err
				}
				return printJSONOrTable(keys)
			})
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "", "filter by actor id")
	return cmd
}

func apikeyDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <key-id>",
		Short: "Delete an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				return a.Repo.DeleteAPIKey(ctx, args[0])
			})
		},
	}
	return cmd
}

func logCmd() *cobra.Command {
	lg := &cobra.Command{Use: "log", Short: "Event log"}
	lg.AddCommand(logTailCmd())
	return lg
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, cohortID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				events, err := a.Repo.LatestEvents(ctx, n, cohortID, evtType)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&cohortID, "cohort", "", "project cohort filter")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				authCfg := server.AuthConfig{JWTSecret: os.Getenv("TRITON_JWT_SECRET"), Logger: a.Logger}
				if authCfg.JWTSecret == "" {
					return fmt.Errorf("TRITON_JWT_SECRET is required for bearer auth")
				}
				handler, err := server.New(server.Config{App: a, BasePath: basePath, Auth: authCfg})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: addr, Handler: handler}
				go func() {
					<-ctx.Done()
					sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(sctx)
				}()
				fmt.Printf("Serving Triton API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v1", "API base path")
	return cmd
}

// --- helpers ---

func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	a, err := app.New(app.Options{
		Workspace: viper.GetString("workspace"),
		Timezone:  viper.GetString("timezone"),
		LinkURL:   viper.GetString("link-url"),
		RosterURL: viper.GetString("roster-url"),
	})
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func renderCheckpointTable(cps []domain.Checkpoint) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Checkpoint", "Parent", "Status", "View", "Current"})
	for _, cp := range cps {
		if !cp.IsVisible {
			continue
		}
		current := ""
		if cp.IsCurrent {
			current = "*"
		}
		tw.AppendRow(table.Row{cp.Label, cp.ParentKind, cp.Status, cp.StatusVM, current})
	}
	tw.Render()
}

func renderTaskTable(tasks []domain.Task) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Task", "Type", "Status", "Current"})
	for _, t := range tasks {
		current := ""
		if t.IsCurrent {
			current = "*"
		}
		tw.AppendRow(table.Row{t.Label, t.DataType, t.Status, current})
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
