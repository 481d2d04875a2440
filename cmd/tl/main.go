package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"tripline/internal/aiplan"
	"tripline/internal/config"
	"tripline/internal/db"
	"tripline/internal/domain"
	"tripline/internal/migrate"
	"tripline/internal/repo"
	"tripline/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "tl",
	Short: "Tripline CLI",
	Long: `Tripline plans trips with AI-generated day-by-day itineraries.
- Workspace: your .tripline directory holding the SQLite database.
- Projects: trips with a destination name and a duration in days.
- Notes: prioritized places and activities (1=high, 2=medium, 3=low) with place tags.
- Plans: AI-generated schedules covering every day of the trip, with an audit log
  of every generation attempt (tl log list).`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initViper)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initViper() {
	viper.SetEnvPrefix("TRIPLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("user", "", "acting user email")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("user", rootCmd.PersistentFlags().Lookup("user"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(noteCmd())
	rootCmd.AddCommand(planCmd())
	rootCmd.AddCommand(logCmd())
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default tripline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := filepath.Join(viper.GetString("workspace"), config.FileName)
			if err := config.WriteDefault(path); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(filepath.Join(viper.GetString("workspace"), config.FileName))
	if err != nil {
		return config.Config{}, err
	}
	// Env overrides for secrets.
	if v := viper.GetString("ai-api-key"); v != "" {
		cfg.AI.APIKey = v
	}
	if v := viper.GetString("jwt-secret"); v != "" {
		cfg.Server.JWTSecret = v
	}
	return cfg, nil
}

func newLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Server.Addr
			}
			if basePath == "" {
				basePath = cfg.Server.BasePath
			}
			if cfg.Server.JWTSecret == "" {
				return fmt.Errorf("jwt secret is required; set server.jwt_secret or TRIPLINE_JWT_SECRET")
			}
			if cfg.AI.APIKey == "" {
				return fmt.Errorf("AI api key is required; set ai.api_key or TRIPLINE_AI_API_KEY")
			}

			conn, err := db.Open(db.Config{Workspace: viper.GetString("workspace")})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			r := repo.New(conn)

			chat, err := aiplan.NewClient(aiplan.ClientConfig{
				APIKey:       cfg.AI.APIKey,
				BaseURL:      cfg.AI.BaseURL,
				DefaultModel: cfg.AI.DefaultModel,
				Temperature:  cfg.AI.Temperature,
				MaxTokens:    cfg.AI.MaxTokens,
				Timeout:      time.Duration(cfg.AI.TimeoutMs) * time.Millisecond,
				Logger:       logger,
			})
			if err != nil {
				return err
			}
			planner := aiplan.NewPlanner(r, chat, logger)

			handler, err := server.New(server.Config{
				Repo:     r,
				Planner:  planner,
				BasePath: basePath,
				Auth:     server.AuthConfig{JWTSecret: cfg.Server.JWTSecret},
				Logger:   logger,
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			logger.Info().Str("addr", addr).Str("base_path", basePath).
				Msg("serving Tripline API (OpenAPI at openapi.json, Swagger UI at /docs)")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (default from config)")
	return cmd
}

func userCmd() *cobra.Command {
	user := &cobra.Command{Use: "user", Short: "Manage users"}
	user.AddCommand(userCreateCmd())
	return user
}

func userCreateCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
			if err != nil {
				return err
			}
			u := domain.User{
				ID:           uuid.NewString(),
				Email:        email,
				PasswordHash: string(hash),
				CreatedOn:    time.Now().UTC().Format(time.RFC3339),
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r *repo.Repo) error {
				if err := r.CreateUser(ctx, u); err != nil {
					return err
				}
				return printJSONOrTable(map[string]string{"id": u.ID, "email": u.Email})
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&password, "password", "", "password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func apikeyCmd() *cobra.Command {
	key := &cobra.Command{Use: "apikey", Short: "Manage API keys"}
	key.AddCommand(apikeyCreateCmd())
	return key
}

func apikeyCreateCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key for the acting user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUser(cmd.Context(), func(ctx context.Context, r *repo.Repo, u domain.User) error {
				raw := "tlk_" + uuid.NewString()
				k := domain.APIKey{
					ID:        uuid.NewString(),
					UserID:    u.ID,
					Name:      name,
					KeyHash:   repo.HashAPIKey(raw),
					CreatedOn: time.Now().UTC().Format(time.RFC3339),
				}
				if err := r.CreateAPIKey(ctx, k); err != nil {
					return err
				}
				// The raw key is shown once and never stored.
				return printJSONOrTable(map[string]string{"id": k.ID, "key": raw})
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "key name")
	return cmd
}

func projectCmd() *cobra.Command {
	prj := &cobra.Command{Use: "project", Short: "Manage trips"}
	prj.AddCommand(projectCreateCmd())
	prj.AddCommand(projectListCmd())
	prj.AddCommand(projectShowCmd())
	prj.AddCommand(projectUpdateCmd())
	prj.AddCommand(projectDeleteCmd())
	return prj
}

func projectCreateCmd() *cobra.Command {
	var name, plannedDate string
	var days int
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a trip",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUser(cmd.Context(), func(ctx context.Context, r *repo.Repo, u domain.User) error {
				p := domain.Project{
					ID:           uuid.NewString(),
					UserID:       u.ID,
					Name:         name,
					DurationDays: days,
					CreatedOn:    time.Now().UTC().Format(time.RFC3339),
				}
				if plannedDate != "" {
					p.PlannedDate = &plannedDate
				}
				if err := r.CreateProject(ctx, p); err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "destination name")
	cmd.Flags().IntVar(&days, "days", 1, "trip duration in days")
	cmd.Flags().StringVar(&plannedDate, "planned-date", "", "planned start date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func projectListCmd() *cobra.Command {
	var page, size int
	var sort, order string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List trips",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUser(cmd.Context(), func(ctx context.Context, r *repo.Repo, u domain.User) error {
				items, total, err := r.ListProjects(ctx, u.ID, repo.ProjectPage{
					Page: page, Size: size, Sort: sort, Order: order,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"data": items, "total": total})
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Days", "Planned", "Created"})
				for _, p := range items {
					planned := ""
					if p.PlannedDate != nil {
						planned = *p.PlannedDate
					}
					tw.AppendRow(table.Row{p.ID, p.Name, p.DurationDays, planned, p.CreatedOn})
				}
				tw.Render()
				fmt.Printf("total: %d\n", total)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&size, "size", 20, "page size")
	cmd.Flags().StringVar(&sort, "sort", "created_on", "sort column (name, created_on, duration_days, planned_date)")
	cmd.Flags().StringVar(&order, "order", "desc", "sort order (asc, desc)")
	return cmd
}

func projectShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a trip",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUser(cmd.Context(), func(ctx context.Context, r *repo.Repo, u domain.User) error {
				p, err := ownedProject(ctx, r, u, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	return cmd
}

func projectUpdateCmd() *cobra.Command {
	var name, plannedDate string
	var days int
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a trip",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUser(cmd.Context(), func(ctx context.Context, r *repo.Repo, u domain.User) error {
				p, err := ownedProject(ctx, r, u, args[0])
				if err != nil {
					return err
				}
				if cmd.Flags().Changed("name") {
					p.Name = name
				}
				if cmd.Flags().Changed("days") {
					p.DurationDays = days
				}
				if cmd.Flags().Changed("planned-date") {
					if plannedDate == "" {
						p.PlannedDate = nil
					} else {
						p.PlannedDate = &plannedDate
					}
				}
				if err := r.UpdateProject(ctx, p); err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "destination name")
	cmd.Flags().IntVar(&days, "days", 0, "trip duration in days")
	cmd.Flags().StringVar(&plannedDate, "planned-date", "", "planned start date (empty clears)")
	return cmd
}

func projectDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a trip",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUser(cmd.Context(), func(ctx context.Context, r *repo.Repo, u domain.User) error {
				return r.DeleteProject(ctx, args[0], u.ID)
			})
		},
	}
	return cmd
}

func noteCmd() *cobra.Command {
	note := &cobra.Command{Use: "note", Short: "Manage trip notes"}
	note.AddCommand(noteAddCmd())
	note.AddCommand(noteListCmd())
	note.AddCommand(noteUpdateCmd())
	note.AddCommand(noteDeleteCmd())
	return note
}

func noteAddCmd() *cobra.Command {
	var projectID, content string
	var priority int
	var tags []string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a note to a trip",
		RunE: func(cmd *cobra.Command, args []string) error {
			if priority < aiplan.PriorityHigh || priority > aiplan.PriorityLow {
				return fmt.Errorf("priority must be 1 (high), 2 (medium) or 3 (low)")
			}
			return withUser(cmd.Context(), func(ctx context.Context, r *repo.Repo, u domain.User) error {
				if _, err := ownedProject(ctx, r, u, projectID); err != nil {
					return err
				}
				n := domain.Note{
					ID:        uuid.NewString(),
					ProjectID: projectID,
					Content:   content,
					Priority:  priority,
					PlaceTags: tags,
					UpdatedOn: time.Now().UTC().Format(time.RFC3339),
				}
				if err := r.CreateNote(ctx, n); err != nil {
					return err
				}
				return printJSONOrTable(n)
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "trip id")
	cmd.Flags().StringVar(&content, "content", "", "note content")
	cmd.Flags().IntVar(&priority, "priority", aiplan.PriorityMedium, "priority (1=high, 2=medium, 3=low)")
	cmd.Flags().StringArrayVar(&tags, "tag", []string{}, "place tag (repeatable)")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("content")
	return cmd
}

func noteListCmd() *cobra.Command {
	var projectID, placeTag string
	var priority, page, size int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List trip notes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUser(cmd.Context(), func(ctx context.Context, r *repo.Repo, u domain.User) error {
				if _, err := ownedProject(ctx, r, u, projectID); err != nil {
					return err
				}
				items, total, err := r.ListNotes(ctx, projectID, repo.NotePage{
					Page: page, Size: size, Priority: priority, PlaceTag: placeTag,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"data": items, "total": total})
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Content", "Priority", "Tags", "Updated"})
				for _, n := range items {
					tw.AppendRow(table.Row{n.ID, n.Content, n.Priority, strings.Join(n.PlaceTags, ", "), n.UpdatedOn})
				}
				tw.Render()
				fmt.Printf("total: %d\n", total)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "trip id")
	cmd.Flags().IntVar(&priority, "priority", 0, "priority filter (1-3, 0 for all)")
	cmd.Flags().StringVar(&placeTag, "tag", "", "place tag filter")
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&size, "size", 20, "page size")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func noteUpdateCmd() *cobra.Command {
	var projectID, content string
	var priority int
	var tags []string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUser(cmd.Context(), func(ctx context.Context, r *repo.Repo, u domain.User) error {
				if _, err := ownedProject(ctx, r, u, projectID); err != nil {
					return err
				}
				n, err := r.GetNote(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if n.ProjectID != projectID {
					return repo.ErrNotFound
				}
				if cmd.Flags().Changed("content") {
					n.Content = content
				}
				if cmd.Flags().Changed("priority") {
					n.Priority = priority
				}
				if cmd.Flags().Changed("tag") {
					n.PlaceTags = tags
				}
				n.UpdatedOn = time.Now().UTC().Format(time.RFC3339)
				if err := r.UpdateNote(ctx, n); err != nil {
					return err
				}
				return printJSONOrTable(n)
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "trip id")
	cmd.Flags().StringVar(&content, "content", "", "note content")
	cmd.Flags().IntVar(&priority, "priority", 0, "priority (1=high, 2=medium, 3=low)")
	cmd.Flags().StringArrayVar(&tags, "tag", []string{}, "place tag (repeatable)")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func noteDeleteCmd() *cobra.Command {
	var projectID string
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUser(cmd.Context(), func(ctx context.Context, r *repo.Repo, u domain.User) error {
				if _, err := ownedProject(ctx, r, u, projectID); err != nil {
					return err
				}
				return r.DeleteNote(ctx, args[0], projectID)
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "trip id")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func planCmd() *cobra.Command {
	plan := &cobra.Command{Use: "plan", Short: "Generate and inspect AI travel plans"}
	plan.AddCommand(planGenerateCmd())
	plan.AddCommand(planShowCmd())
	return plan
}

func planGenerateCmd() *cobra.Command {
	var projectID, model string
	var categories []string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a plan for a trip",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.AI.APIKey == "" {
				return fmt.Errorf("AI api key is required; set ai.api_key or TRIPLINE_AI_API_KEY")
			}
			return withUser(cmd.Context(), func(ctx context.Context, r *repo.Repo, u domain.User) error {
				p, err := ownedProject(ctx, r, u, projectID)
				if err != nil {
					return err
				}
				notes, err := r.ListProjectNotes(ctx, p.ID)
				if err != nil {
					return err
				}
				if len(notes) == 0 {
					return fmt.Errorf("trip has no notes; add some with tl note add")
				}
				command := aiplan.GeneratePlanCommand{
					Model:        model,
					ProjectName:  p.Name,
					DurationDays: p.DurationDays,
				}
				for _, n := range notes {
					command.Notes = append(command.Notes, aiplan.NoteRef{
						ID:        n.ID,
						Content:   n.Content,
						Priority:  n.Priority,
						PlaceTags: n.PlaceTags,
					})
				}
				if len(categories) > 0 {
					command.Preferences = &aiplan.Preferences{Categories: categories}
				}

				chat, err := aiplan.NewClient(aiplan.ClientConfig{
					APIKey:       cfg.AI.APIKey,
					BaseURL:      cfg.AI.BaseURL,
					DefaultModel: cfg.AI.DefaultModel,
					Temperature:  cfg.AI.Temperature,
					MaxTokens:    cfg.AI.MaxTokens,
					Timeout:      time.Duration(cfg.AI.TimeoutMs) * time.Millisecond,
					Logger:       logger,
				})
				if err != nil {
					return err
				}
				planner := aiplan.NewPlanner(r, chat, logger)

				rawBody, _ := json.Marshal(command)
				plan, err := planner.GeneratePlan(ctx, p.ID, u.ID, command, rawBody)
				if err != nil {
					return err
				}
				return printSchedule(plan.Schedule)
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "trip id")
	cmd.Flags().StringVar(&model, "model", "gpt-4", "model name")
	cmd.Flags().StringArrayVar(&categories, "category", []string{}, "preference category (repeatable)")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func planShowCmd() *cobra.Command {
	var projectID string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the latest generated plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUser(cmd.Context(), func(ctx context.Context, r *repo.Repo, u domain.User) error {
				if _, err := ownedProject(ctx, r, u, projectID); err != nil {
					return err
				}
				entry, err := r.LatestSuccessAILog(ctx, projectID)
				if err != nil {
					return err
				}
				var plan aiplan.PlanResponse
				if err := json.Unmarshal([]byte(entry.Response), &plan); err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{
						"schedule":  plan.Schedule,
						"version":   entry.Version,
						"createdOn": entry.CreatedOn,
					})
				}
				fmt.Printf("Plan version %d (generated %s)\n", entry.Version, entry.CreatedOn)
				return printSchedule(plan.Schedule)
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "trip id")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{Use: "log", Short: "AI generation audit log"}
	log.AddCommand(logListCmd())
	return log
}

func logListCmd() *cobra.Command {
	var projectID string
	var page, size int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List generation attempts for a trip",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUser(cmd.Context(), func(ctx context.Context, r *repo.Repo, u domain.User) error {
				if _, err := ownedProject(ctx, r, u, projectID); err != nil {
					return err
				}
				items, total, err := r.ListAILogs(ctx, projectID, repo.AILogPage{Page: page, Size: size})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"data": items, "total": total})
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Version", "Status", "Code", "Duration (ms)", "Created"})
				for _, l := range items {
					code := ""
					if l.ResponseCode != nil {
						code = fmt.Sprint(*l.ResponseCode)
					}
					dur := ""
					if l.DurationMs != nil {
						dur = fmt.Sprint(*l.DurationMs)
					}
					tw.AppendRow(table.Row{l.Version, l.Status, code, dur, l.CreatedOn})
				}
				tw.Render()
				fmt.Printf("total: %d\n", total)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "trip id")
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&size, "size", 20, "page size")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

// --- helpers ---

func withRepo(ctx context.Context, fn func(context.Context, *repo.Repo) error) error {
	conn, err := db.Open(db.Config{Workspace: viper.GetString("workspace")})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.New(conn))
}

func withUser(ctx context.Context, fn func(context.Context, *repo.Repo, domain.User) error) error {
	email := strings.TrimSpace(viper.GetString("user"))
	if email == "" {
		return fmt.Errorf("acting user required; use --user or set TRIPLINE_USER")
	}
	return withRepo(ctx, func(ctx context.Context, r *repo.Repo) error {
		u, err := r.GetUserByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return fmt.Errorf("no user with email %s; create one with tl user create", email)
			}
			return err
		}
		return fn(ctx, r, u)
	})
}

func ownedProject(ctx context.Context, r *repo.Repo, u domain.User, id string) (domain.Project, error) {
	p, err := r.GetProject(ctx, id)
	if err != nil {
		return domain.Project{}, err
	}
	if p.UserID != u.ID {
		return domain.Project{}, repo.ErrNotFound
	}
	return p, nil
}

func printSchedule(schedule []aiplan.ScheduleItem) error {
	if viper.GetBool("json") {
		return printJSON(schedule)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Day", "Activities"})
	for _, item := range schedule {
		tw.AppendRow(table.Row{item.Day, strings.Join(item.Activities, "\n")})
	}
	tw.Render()
	return nil
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
