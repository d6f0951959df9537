package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/ldi/pbltrack/internal/config"
	"github.com/ldi/pbltrack/internal/db"
	"github.com/ldi/pbltrack/internal/logging"
	"github.com/ldi/pbltrack/pkg/models"
)

// workspace is an opened .pbltrack directory: its config, log and database.
type workspace struct {
	cfg config.Config
	log *logging.Logger
	db  *db.DB
}

func (o *rootOptions) loadConfig() (config.Config, error) {
	cfg, err := config.Load(o.dir)
	if err != nil {
		return config.Config{}, err
	}
	if o.dbPath != "" {
		cfg.DBPath = o.dbPath
	}
	if o.snapshotPath != "" {
		cfg.SnapshotPath = o.snapshotPath
	}
	if o.debug {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

// open loads config, opens the log and database and migrates the schema. An
// empty database is restored from the snapshot when one exists. Writes made
// afterwards are mirrored to the snapshot.
func (o *rootOptions) open(ctx context.Context) (*workspace, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(o.dir, cfg.Debug())
	if err != nil {
		return nil, err
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		logger.Close()
		return nil, err
	}
	ws := &workspace{cfg: cfg, log: logger, db: database}

	if err := database.Init(ctx); err != nil {
		ws.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if _, err := ws.restore(ctx); err != nil {
		ws.Close()
		return nil, err
	}

	database.EnableAutoSnapshot(cfg.SnapshotPath, func(err error) {
		logger.Printf("snapshot: export failed: %v", err)
	})
	return ws, nil
}

// restore imports the snapshot into an empty database. It reports whether an
// import happened.
func (ws *workspace) restore(ctx context.Context) (bool, error) {
	if _, err := os.Stat(ws.cfg.SnapshotPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat snapshot: %w", err)
	}
	projects, err := ws.db.ListProjects(ctx)
	if err != nil {
		return false, err
	}
	if len(projects) > 0 {
		return false, nil
	}
	if err := ws.db.ImportSnapshot(ctx, ws.cfg.SnapshotPath); err != nil {
		return false, fmt.Errorf("failed to import snapshot: %w", err)
	}
	ws.log.Printf("snapshot: restored from %s", ws.cfg.SnapshotPath)
	return true, nil
}

func (ws *workspace) Close() {
	ws.db.Close()
	ws.log.Close()
}

// project finds a project by ID or title. An empty ref picks the only
// project when there is exactly one.
func (ws *workspace) project(ctx context.Context, ref string) (*models.Project, error) {
	projects, err := ws.db.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	if ref == "" {
		switch len(projects) {
		case 0:
			return nil, fmt.Errorf("no projects yet; create one with 'pbltrack project create'")
		case 1:
			return projects[0], nil
		default:
			return nil, fmt.Errorf("%d projects found; choose one with --project", len(projects))
		}
	}
	for _, p := range projects {
		if p.ID == ref || strings.EqualFold(p.Title, ref) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("project %q not found", ref)
}
