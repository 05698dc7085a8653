package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"okr-cli/internal/format"
	"okr-cli/internal/sheets"
	"okr-cli/internal/store"
	"okr-cli/internal/syncer"
	"okr-cli/internal/tree"

	"github.com/spf13/cobra"
)

type App struct {
	Dir        string
	User       string
	Cycle      string
	PrettyJSON bool
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "okr",
		Short:        "Goal hierarchy CLI (goals > objectives > key results > tasks)",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Create a goal and drill down
  okr add --type GOAL --title "Ship v2"
  okr add --parent <goal-id> --type OBJECTIVE --title "Stabilize the API"

  # Track work
  okr timer start <task-id>
  okr timer stop <task-id> --summary "wrote the migration"

  # Inspect
  okr tree
  okr show <id>
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().StringVar(&app.Dir, "dir", envOr("OKR_DIR", ""), "Data directory (default: ~/.okr)")
	cmd.PersistentFlags().StringVar(&app.User, "user", envOr("OKR_USER", ""), "Acting username (default: $USER)")
	cmd.PersistentFlags().StringVar(&app.Cycle, "cycle", envOr("OKR_CYCLE", ""), "Planning cycle id for new goals")
	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print JSON output")

	cmd.AddCommand(newAddCmd(app))
	cmd.AddCommand(newUpdateCmd(app))
	cmd.AddCommand(newDeleteCmd(app))
	cmd.AddCommand(newShowCmd(app))
	cmd.AddCommand(newTreeCmd(app))
	cmd.AddCommand(newTimeCmd(app))
	cmd.AddCommand(newTimerCmd(app))
	cmd.AddCommand(newLogCmd(app))
	cmd.AddCommand(newSyncCmd(app))
	cmd.AddCommand(newCyclesCmd(app))
	cmd.AddCommand(newUsersCmd(app))
	cmd.AddCommand(newCheckinCmd(app))

	return cmd
}

// env is everything a command needs: the session over the tree, the mirror
// database, and the sync engine. close() flushes queued sheet pushes and
// closes the database; call it before returning.
type env struct {
	session *tree.Session
	db      *store.DB
	engine  *syncer.Engine
}

func (e *env) close() {
	e.engine.Close()
	_ = e.db.Close()
}

func (a *App) dataDir() (string, error) {
	if a.Dir != "" {
		return a.Dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".okr"), nil
}

func (a *App) username() string {
	if a.User != "" {
		return a.User
	}
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "default"
}

// loadEnv opens the data directory: the JSON tree, the SQLite mirror, and
// the sheet client when sheets.yaml exists. A broken database or sheet
// config is logged and dropped, never fatal; the tree keeps working alone.
func loadEnv(ctx context.Context, app *App) (*env, error) {
	dir, err := app.dataDir()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	doc, err := tree.LoadDocument(filepath.Join(dir, "tree.json"))
	if err != nil {
		return nil, err
	}

	db, err := store.Open(ctx, filepath.Join(dir, "okr.db"))
	if err != nil {
		return nil, err
	}

	var client sheets.Client
	cfg, err := sheets.LoadConfig(filepath.Join(dir, "sheets.yaml"))
	switch {
	case err == sheets.ErrNotConfigured:
		// SQL-only mode.
	case err != nil:
		log.Printf("sheets config: %v (continuing without spreadsheet)", err)
	default:
		client, err = sheets.NewGoogleClient(ctx, cfg)
		if err != nil {
			log.Printf("sheets client: %v (continuing without spreadsheet)", err)
			client = nil
		}
	}

	engine := syncer.New(db, client, log.Printf)
	session := &tree.Session{
		User:   app.username(),
		Cycle:  app.Cycle,
		Path:   filepath.Join(dir, "tree.json"),
		Doc:    doc,
		Mirror: engine,
	}
	return &env{session: session, db: db, engine: engine}, nil
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	return format.WriteJSON(cmd.OutOrStdout(), v, app.PrettyJSON)
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}
