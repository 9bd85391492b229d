package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"triton/internal/cache"
	"triton/internal/config"
	"triton/internal/db"
	"triton/internal/domain"
	"triton/internal/engine"
	"triton/internal/links"
	"triton/internal/migrate"
	"triton/internal/portal"
	"triton/internal/repo"
	"triton/internal/roster"
)

const programCacheSize = 64

// Options configure a wired App. External service URLs are optional;
// without them link minting reports exhaustion and roster lookups fail
// closed.
type Options struct {
	Workspace  string
	LinkURL    string
	RosterURL  string
	Timezone   string
	Now        func() time.Time
	Logger     *log.Logger
	LinkIssuer links.Issuer
	Roster     roster.Verifier
}

// App bundles the components shared by the server and the CLI.
type App struct {
	DB       *sql.DB
	Repo     repo.Repo
	Engine   engine.Engine
	Programs *cache.Cache[*config.Config]
	Router   *portal.Router
	Logger   *log.Logger
}

// New opens the workspace database, runs migrations, and wires the
// engine, program cache, and portal router.
func New(opts Options) (*App, error) {
	conn, err := db.Open(db.Config{Workspace: opts.Workspace})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	r := repo.Repo{DB: conn}
	eng := engine.New(conn)
	eng.Logger = logger
	if opts.Now != nil {
		eng.Now = opts.Now
	}

	programs, err := cache.New(programCacheSize, func(ctx context.Context, label string) (*config.Config, error) {
		return r.GetProgram(ctx, label)
	})
	if err != nil {
		conn.Close()
		return nil, err
	}
	orgs, err := cache.New(programCacheSize, func(ctx context.Context, uid string) (domain.Organization, error) {
		return r.GetOrganization(ctx, uid)
	})
	if err != nil {
		conn.Close()
		return nil, err
	}

	loc := time.Local
	if opts.Timezone != "" {
		loc, err = time.LoadLocation(opts.Timezone)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("timezone %q: %w", opts.Timezone, err)
		}
	}

	issuer := opts.LinkIssuer
	if issuer == nil {
		if opts.LinkURL != "" {
			issuer = links.New(opts.LinkURL)
		} else {
			issuer = exhaustedIssuer{}
		}
	}
	verifier := opts.Roster
	if verifier == nil {
		if opts.RosterURL != "" {
			verifier = roster.New(opts.RosterURL)
		} else {
			verifier = emptyRoster{}
		}
	}

	a := &App{
		DB:       conn,
		Repo:     r,
		Engine:   eng,
		Programs: programs,
		Logger:   logger,
		Router: &portal.Router{
			Engine:   eng,
			Repo:     r,
			Programs: programs,
			Orgs:     orgs,
			Links:    issuer,
			Roster:   verifier,
			Location: loc,
			Now:      opts.Now,
			Logger:   logger,
		},
	}
	return a, nil
}

func (a *App) Close() error {
	return a.DB.Close()
}

// exhaustedIssuer stands in when no link service is configured, so
// routing falls back to anonymous links.
type exhaustedIssuer struct{}

func (exhaustedIssuer) GetUnique(context.Context, string, int) (string, error) {
	return "", links.ErrExhausted
}

// emptyRoster stands in when no roster service is configured.
type emptyRoster struct{}

func (emptyRoster) Lookup(context.Context, string, string) (roster.Info, error) {
	return roster.Info{}, roster.ErrNotFound
}

// EnsureProgram returns the stored config for a program label, seeding
// the default definition on first reference.
func (a *App) EnsureProgram(ctx context.Context, label string) (*config.Config, error) {
	cfg, err := a.Repo.GetProgram(ctx, label)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}
	cfg = config.Default(label)
	if err := a.Repo.UpsertProgram(ctx, label, cfg); err != nil {
		return nil, fmt.Errorf("seed program %s: %w", label, err)
	}
	a.Programs.Put(label, cfg)
	return cfg, nil
}

// ImportProgram validates and stores a program config, refreshing the
// cache entry.
func (a *App) ImportProgram(ctx context.Context, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := a.Repo.UpsertProgram(ctx, cfg.Program.Label, cfg); err != nil {
		return err
	}
	a.Programs.Put(cfg.Program.Label, cfg)
	return nil
}
