package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/retinalab/retina-dashboard/internal/config"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/riverdriver/riversqlite"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/riverqueue/river/rivertype"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	DefaultQueue   = "processing"
	DefaultWorkers = 4
	MaxJobRetries  = 1
	// JobTimeout bounds a single finalization once the job is picked up.
	JobTimeout = time.Minute
	// DefaultStopTimeout bounds how long shutdown waits for running jobs.
	DefaultStopTimeout = 30 * time.Second
)

var ErrNotStarted = errors.New("job client is not started")

type riverClient interface {
	Insert(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error)
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Client persists processing jobs in the database next to the records they finalize,
// so scheduled work survives a restart.
type Client struct {
	migrate  func(ctx context.Context) error
	build    func(rc *river.Config) (riverClient, error)
	close    func()
	workers  int
	pollOnly bool
	river    riverClient
	log      *zap.SugaredLogger
}

// NewClient picks the river driver matching the configured database. Postgres gets its own
// pgx pool; sqlite shares the gorm connection.
func NewClient(ctx context.Context, cfg *config.Config, db *gorm.DB) (*Client, error) {
	c := &Client{
		workers: cfg.Service.Processing.Workers,
		close:   func() {},
		log:     zap.S().Named("jobs"),
	}
	if c.workers <= 0 {
		c.workers = DefaultWorkers
	}

	switch cfg.Database.Type {
	case "pgsql":
		pool, err := newPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		driver := riverpgxv5.New(pool)
		c.migrate = func(ctx context.Context) error { return migrate(ctx, driver) }
		c.build = builder(driver)
		c.close = pool.Close
	case "sqlite":
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		driver := riversqlite.New(sqlDB)
		c.pollOnly = true
		c.migrate = func(ctx context.Context) error { return migrate(ctx, driver) }
		c.build = builder(driver)
	default:
		return nil, fmt.Errorf("unsupported database type %q", cfg.Database.Type)
	}

	return c, nil
}

func newPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s port=%s dbname=%s",
		cfg.Database.Hostname,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Port,
		cfg.Database.Name,
	)

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse pgx config: %w", err)
	}
	poolCfg.MaxConns = 20
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	return pool, nil
}

func builder[TTx any](driver riverdriver.Driver[TTx]) func(rc *river.Config) (riverClient, error) {
	return func(rc *river.Config) (riverClient, error) {
		client, err := river.NewClient(driver, rc)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

func migrate[TTx any](ctx context.Context, driver riverdriver.Driver[TTx]) error {
	migrator, err := rivermigrate.New(driver, nil)
	if err != nil {
		return err
	}
	_, err = migrator.Migrate(ctx, rivermigrate.DirectionUp, nil)
	return err
}

// Migrate creates or upgrades the river tables.
func (c *Client) Migrate(ctx context.Context) error {
	if err := c.migrate(ctx); err != nil {
		return fmt.Errorf("river migrations: %w", err)
	}
	return nil
}

// Start builds the river client around workers and starts fetching jobs.
func (c *Client) Start(ctx context.Context, workers *river.Workers) error {
	rc, err := c.build(&river.Config{
		Queues: map[string]river.QueueConfig{
			DefaultQueue: {MaxWorkers: c.workers},
		},
		Workers:                     workers,
		JobTimeout:                  JobTimeout,
		PollOnly:                    c.pollOnly,
		FetchCooldown:               50 * time.Millisecond,
		FetchPollInterval:           100 * time.Millisecond,
		CompletedJobRetentionPeriod: 24 * time.Hour,
		DiscardedJobRetentionPeriod: 7 * 24 * time.Hour,
	})
	if err != nil {
		return fmt.Errorf("failed to create river client: %w", err)
	}
	if err := rc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start river: %w", err)
	}

	c.river = rc
	c.log.Infow("job client started", "queue", DefaultQueue, "workers", c.workers)
	return nil
}

// Insert persists a job. opts override the defaults of the args, e.g. ScheduledAt.
func (c *Client) Insert(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error) {
	if c.river == nil {
		return nil, ErrNotStarted
	}
	return c.river.Insert(ctx, args, opts)
}

// Stop waits for running jobs and releases the connections owned by the client.
func (c *Client) Stop(ctx context.Context) error {
	defer c.close()
	if c.river == nil {
		return nil
	}
	return c.river.Stop(ctx)
}
