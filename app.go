// app.go
//
// Composition root shared by every subcommand.
// Responsibilities:
//   - Open the SQLite app database and apply migrations.
//   - Pick the session store: Postgres when database.url is set, else SQLite.
//   - Load puzzles (embedded, or puzzles.dir) and index them into the FTS corpus.
//   - Build the language model, judges, knowledge gateway and game engine.
//
// No game logic lives here, only wiring.

package main

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/turtlesoup/assets"
	"github.com/robalobadob/turtlesoup/internal/config"
	"github.com/robalobadob/turtlesoup/internal/daily"
	"github.com/robalobadob/turtlesoup/internal/game"
	"github.com/robalobadob/turtlesoup/internal/httpserver"
	"github.com/robalobadob/turtlesoup/internal/judge"
	"github.com/robalobadob/turtlesoup/internal/knowledge"
	"github.com/robalobadob/turtlesoup/internal/llm"
	"github.com/robalobadob/turtlesoup/internal/memory"
	"github.com/robalobadob/turtlesoup/internal/puzzles"
	"github.com/robalobadob/turtlesoup/internal/sqldb"
	"github.com/robalobadob/turtlesoup/internal/store"
	"github.com/robalobadob/turtlesoup/internal/store/postgres"
	sqlitestore "github.com/robalobadob/turtlesoup/internal/store/sqlite"
)

type app struct {
	cfg      config.Config
	db       *sql.DB
	repo     *puzzles.Repository
	sessions store.Store
	memory   *memory.Manager
	results  daily.Results
	picker   *daily.Picker
	engine   *game.Engine
	accounts *httpserver.Accounts

	closers []func()
}

func component(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

// loadApp reads the configuration named by the global flags and wires the app.
func loadApp(ctx context.Context, gf *globalFlags) (*app, error) {
	cfg, err := config.Load(gf.configPath)
	if err != nil {
		return nil, err
	}
	return newApp(ctx, cfg)
}

func newApp(ctx context.Context, cfg config.Config) (_ *app, err error) {
	a := &app{cfg: cfg}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.db, err = sqldb.OpenMigrated(ctx, cfg.Database.Path, component("sqldb"))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	a.closers = append(a.closers, func() { _ = a.db.Close() })

	if cfg.Database.URL != "" {
		pg, err := postgres.New(ctx, cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		a.closers = append(a.closers, pg.Close)
		a.sessions = pg
	} else {
		a.sessions = sqlitestore.New(a.db)
	}

	a.memory = memory.NewManager(memory.NewSQLiteDocs(a.db), memory.WithLogger(component("memory")))

	a.repo = puzzleRepo(cfg)

	gateway, err := a.openKnowledge(ctx)
	if err != nil {
		return nil, err
	}

	completer, err := llm.New(ctx, cfg.LLMClientConfig())
	if err != nil {
		return nil, fmt.Errorf("language model: %w", err)
	}
	judgeLog := component("judge")
	judgeOpts := []judge.Option{judge.WithTimeout(cfg.Judge.Timeout), judge.WithLogger(judgeLog)}

	dailyStore := daily.NewStore(a.db)
	a.results = dailyStore
	a.picker = daily.NewPicker(a.repo, cfg.Daily.Salt)

	a.engine = game.NewEngine(a.repo, a.sessions, game.Deps{
		Questions:  judge.NewQuestionJudge(completer, judgeOpts...),
		Hypotheses: judge.NewHypothesisJudge(completer, judgeOpts...),
		Knowledge:  gateway,
		Events:     a.memory,
		Observer:   game.NewLogObserver(component("game")),
		AgentLLM:   completer,
		OnFinish:   daily.Recorder(dailyStore, component("daily")),
	}, cfg.GameSettings())

	if cfg.Auth.JWTSecret != "" {
		a.accounts = httpserver.NewAccounts(a.db, cfg.Auth)
	} else {
		log.Warn().Msg("JWT_SECRET not set; player accounts are disabled")
	}

	log.Debug().
		Str("db", cfg.Database.Path).
		Bool("postgres", cfg.Database.URL != "").
		Str("llm", cfg.LLM.Provider).
		Msg("app ready")
	return a, nil
}

// puzzleRepo reads puzzles.dir when set, the embedded set otherwise.
func puzzleRepo(cfg config.Config) *puzzles.Repository {
	var fsys fs.FS = assets.Puzzles()
	if cfg.Puzzles.Dir != "" {
		fsys = os.DirFS(cfg.Puzzles.Dir)
	}
	return puzzles.New(fsys,
		puzzles.WithDefaultLanguage(cfg.Puzzles.DefaultLanguage),
		puzzles.WithLogger(component("puzzles")),
	)
}

// openKnowledge indexes every puzzle into the corpus. Without a corpus path
// the gateway answers every query with an empty result.
func (a *app) openKnowledge(ctx context.Context) (*knowledge.Gateway, error) {
	kcfg := a.cfg.Knowledge
	opts := []knowledge.GatewayOption{
		knowledge.WithQueryTimeout(kcfg.QueryTimeout),
		knowledge.WithLogger(component("knowledge")),
	}
	if kcfg.CorpusPath == "" {
		return knowledge.NewGateway(nil, opts...), nil
	}

	corpus, err := knowledge.OpenCorpus(ctx, kcfg.CorpusPath, kcfg.TopK)
	if err != nil {
		return nil, fmt.Errorf("opening corpus: %w", err)
	}
	a.closers = append(a.closers, func() { _ = corpus.Close() })

	n, err := a.repo.IndexAll(ctx, corpus)
	if err != nil {
		return nil, fmt.Errorf("indexing puzzles: %w", err)
	}
	log.Info().Int("puzzles", n).Str("corpus", kcfg.CorpusPath).Msg("knowledge corpus indexed")
	return knowledge.NewGateway(corpus, opts...), nil
}

// Close releases everything in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *app) httpDeps() httpserver.Deps {
	return httpserver.Deps{
		Engine:   a.engine,
		Puzzles:  a.repo,
		Sessions: a.sessions,
		Memory:   a.memory,
		Daily:    a.picker,
		Results:  a.results,
		Accounts: a.accounts,
		Log:      component("http"),
	}
}
