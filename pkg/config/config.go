package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/umputun/livedash/pkg/aggregate"
	"github.com/umputun/livedash/pkg/classify"
	"github.com/umputun/livedash/pkg/domain"
	"github.com/umputun/livedash/pkg/subscription"
)

//go:generate go run ../../cmd/schema/main.go schema.json

// Config holds the application configuration
type Config struct {
	Server struct {
		Listen  string        `yaml:"listen" json:"listen" jsonschema:"default=:8080,description=HTTP server listen address"`
		Timeout time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=HTTP server timeout"`
	} `yaml:"server" json:"server" jsonschema:"description=Server configuration"`

	Database struct {
		DSN             string `yaml:"dsn" json:"dsn" jsonschema:"default=file:livedash.db?cache=shared&mode=rwc,description=Database connection string"`
		MaxOpenConns    int    `yaml:"max_open_conns" json:"max_open_conns" jsonschema:"default=10,description=Maximum number of open connections"`
		MaxIdleConns    int    `yaml:"max_idle_conns" json:"max_idle_conns" jsonschema:"default=5,description=Maximum number of idle connections"`
		ConnMaxLifetime int    `yaml:"conn_max_lifetime" json:"conn_max_lifetime" jsonschema:"default=3600,description=Connection maximum lifetime in seconds"`
	} `yaml:"database" json:"database" jsonschema:"description=Database configuration"`

	Store struct {
		PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval" jsonschema:"default=1s,description=How often subscriptions check collections for changes"`
	} `yaml:"store" json:"store" jsonschema:"description=Record store configuration"`

	Engine EngineConfig `yaml:"engine" json:"engine" jsonschema:"description=Aggregation engine configuration"`

	Sources    []SourceConfig    `yaml:"sources" json:"sources" jsonschema:"description=Live data sources in declaration order, the order breaks feed ties"`
	Counters   []CounterConfig   `yaml:"counters" json:"counters" jsonschema:"description=Derived counters, defaults used when empty"`
	Breakdowns []BreakdownConfig `yaml:"breakdowns" json:"breakdowns" jsonschema:"description=Counters grouped by field value, defaults used when empty"`

	Exclusion ExclusionConfig `yaml:"exclusion" json:"exclusion" jsonschema:"description=Keyword exclusion of notifications"`
}

// EngineConfig holds feed bounds and subscription retries
type EngineConfig struct {
	FeedLimit             int         `yaml:"feed_limit" json:"feed_limit" jsonschema:"default=10,minimum=1,description=Maximum entries in the merged feed"`
	RecentActivityLimit   int         `yaml:"recent_activity_limit" json:"recent_activity_limit" jsonschema:"default=15,minimum=1,description=Maximum entries in the recent activity feed"`
	RecentActivitySources []string    `yaml:"recent_activity_sources" json:"recent_activity_sources" jsonschema:"description=Sources of the recent activity feed, all activities sources when empty"`
	Retry                 RetryConfig `yaml:"retry" json:"retry" jsonschema:"description=Subscribe retry settings"`
}

// RetryConfig defines backoff of failed subscribe calls
type RetryConfig struct {
	Attempts int           `yaml:"attempts" json:"attempts" jsonschema:"default=5,minimum=1,description=Subscribe attempts before reporting the source as failed"`
	Delay    time.Duration `yaml:"delay" json:"delay" jsonschema:"default=100ms,description=Initial retry delay"`
	MaxDelay time.Duration `yaml:"max_delay" json:"max_delay" jsonschema:"default=5s,description=Maximum retry delay"`
}

// SourceConfig describes one live source
type SourceConfig struct {
	ID           string `yaml:"id" json:"id" jsonschema:"required,description=Unique source id"`
	Type         string `yaml:"type" json:"type" jsonschema:"enum=students,enum=violations,enum=notifications,enum=activities,enum=lost_found,enum=receipts,enum=announcements,enum=generic,description=Source type selecting the classification rule"`
	Collection   string `yaml:"collection" json:"collection" jsonschema:"description=Store collection, defaults to id"`
	Field        string `yaml:"field" json:"field" jsonschema:"description=Record field matched against the identity, empty for all records"`
	IdentityAttr string `yaml:"identity_attr" json:"identity_attr" jsonschema:"enum=email,enum=id,description=Identity attribute matched by field"`
	OrderBy      string `yaml:"order_by" json:"order_by" jsonschema:"description=Ordering hint passed to the store"`
	FeedLimit    int    `yaml:"feed_limit" json:"feed_limit" jsonschema:"minimum=-1,description=Maximum feed entries of this source, 0 for type default, -1 disables"`
}

// CounterConfig defines a counter over one source
type CounterConfig struct {
	Name           string   `yaml:"name" json:"name" jsonschema:"required,description=Counter name in statistics"`
	Source         string   `yaml:"source" json:"source" jsonschema:"required,description=Source id"`
	Field          string   `yaml:"field" json:"field" jsonschema:"description=Record field compared with values, empty counts all records"`
	Values         []string `yaml:"values" json:"values" jsonschema:"description=Matching values, case-insensitive"`
	Negate         bool     `yaml:"negate" json:"negate" jsonschema:"default=false,description=Count records not matching values"`
	AfterExclusion bool     `yaml:"after_exclusion" json:"after_exclusion" jsonschema:"default=false,description=Skip records removed by keyword exclusion"`
}

// BreakdownConfig defines counters grouped by a field value
type BreakdownConfig struct {
	Name   string `yaml:"name" json:"name" jsonschema:"required,description=Breakdown name, counters are named name.value"`
	Source string `yaml:"source" json:"source" jsonschema:"required,description=Source id"`
	Field  string `yaml:"field" json:"field" jsonschema:"required,description=Grouping field"`
}

// ExclusionConfig holds notification exclusion settings
type ExclusionConfig struct {
	Keywords  []string `yaml:"keywords" json:"keywords" jsonschema:"description=Case-insensitive keywords excluding notifications, defaults used when empty"`
	KeepTypes []string `yaml:"keep_types" json:"keep_types" jsonschema:"description=Record types never excluded"`
}

// default per-source feed limits by type
var defaultFeedLimits = map[domain.SourceType]int{
	domain.SourceNotifications: 5,
	domain.SourceViolations:    5,
	domain.SourceActivities:    10,
	domain.SourceLostFound:     3,
	domain.SourceReceipts:      3,
	domain.SourceAnnouncements: 5,
	domain.SourceStudents:      3,
	domain.SourceGeneric:       5,
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // file path comes from CLI flag
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	if err := Verify(&cfg); err != nil {
		return nil, fmt.Errorf("verify config: %w", err)
	}
	return &cfg, nil
}

// Default returns configuration of the standard dashboard sources
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

// DefaultSources returns the standard dashboard sources scoped to the signed-in user
func DefaultSources() []SourceConfig {
	return []SourceConfig{
		{ID: "notifications", Type: "notifications", Field: "recipientEmail", IdentityAttr: domain.IdentityEmail, OrderBy: "createdAt"},
		{ID: "violations", Type: "violations", Field: "studentEmail", IdentityAttr: domain.IdentityEmail, OrderBy: "createdAt"},
		{ID: "activities", Type: "activities", OrderBy: "createdAt"},
		{ID: "lost_found", Type: "lost_found", Field: "reportedBy", IdentityAttr: domain.IdentityEmail, OrderBy: "dateReported"},
		{ID: "receipts", Type: "receipts", Field: "submittedBy", IdentityAttr: domain.IdentityEmail, OrderBy: "submittedAt"},
		{ID: "announcements", Type: "announcements", OrderBy: "createdAt"},
		{ID: "students", Type: "students", Field: "guardianEmail", IdentityAttr: domain.IdentityEmail, OrderBy: "createdAt"},
	}
}

func setDefaults(cfg *Config) {
	// set defaults for server
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = ":8080"
	}
	if cfg.Server.Timeout == 0 {
		cfg.Server.Timeout = 30 * time.Second
	}

	// set defaults for database
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "file:livedash.db?cache=shared&mode=rwc&_txlock=immediate"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 3600
	}
	if cfg.Store.PollInterval == 0 {
		cfg.Store.PollInterval = time.Second
	}

	// set defaults for engine
	if cfg.Engine.FeedLimit == 0 {
		cfg.Engine.FeedLimit = aggregate.DefaultFeedLimit
	}
	if cfg.Engine.RecentActivityLimit == 0 {
		cfg.Engine.RecentActivityLimit = aggregate.DefaultRecentActivityLimit
	}
	if cfg.Engine.Retry.Attempts == 0 {
		cfg.Engine.Retry.Attempts = 5
	}
	if cfg.Engine.Retry.Delay == 0 {
		cfg.Engine.Retry.Delay = 100 * time.Millisecond
	}
	if cfg.Engine.Retry.MaxDelay == 0 {
		cfg.Engine.Retry.MaxDelay = 5 * time.Second
	}

	// set defaults for sources
	if len(cfg.Sources) == 0 {
		cfg.Sources = DefaultSources()
	}
	for i := range cfg.Sources {
		src := &cfg.Sources[i]
		if src.Type == "" {
			src.Type = string(domain.SourceGeneric)
		}
		if src.Collection == "" {
			src.Collection = src.ID
		}
		if src.Field != "" && src.IdentityAttr == "" {
			src.IdentityAttr = domain.IdentityEmail
		}
		if src.FeedLimit == 0 {
			src.FeedLimit = defaultFeedLimits[domain.SourceType(src.Type)]
		}
	}

	// default counters and breakdowns only for configured sources
	ids := make(map[domain.SourceID]bool, len(cfg.Sources))
	for _, src := range cfg.Sources {
		ids[domain.SourceID(src.ID)] = true
	}
	if len(cfg.Counters) == 0 {
		for _, c := range aggregate.DefaultCounters() {
			if !ids[c.Source] {
				continue
			}
			cfg.Counters = append(cfg.Counters, CounterConfig{Name: c.Name, Source: string(c.Source), Field: c.Field,
				Values: c.Values, Negate: c.Negate, AfterExclusion: c.AfterExclusion})
		}
	}
	if len(cfg.Breakdowns) == 0 {
		for _, b := range aggregate.DefaultBreakdowns() {
			if !ids[b.Source] {
				continue
			}
			cfg.Breakdowns = append(cfg.Breakdowns, BreakdownConfig{Name: b.Name, Source: string(b.Source), Field: b.Field})
		}
	}
}

// validate checks configuration for correctness
func validate(cfg *Config) error {
	if cfg.Server.Timeout < time.Second {
		return fmt.Errorf("server timeout must be at least 1 second")
	}
	if cfg.Store.PollInterval < 10*time.Millisecond {
		return fmt.Errorf("store poll_interval must be at least 10ms")
	}
	if cfg.Engine.FeedLimit < 1 {
		return fmt.Errorf("engine.feed_limit must be at least 1")
	}
	if cfg.Engine.RecentActivityLimit < 1 {
		return fmt.Errorf("engine.recent_activity_limit must be at least 1")
	}
	if cfg.Engine.Retry.Attempts < 1 {
		return fmt.Errorf("engine.retry.attempts must be at least 1")
	}

	ids := make(map[string]bool, len(cfg.Sources))
	for i, src := range cfg.Sources {
		if src.ID == "" {
			return fmt.Errorf("sources[%d].id is required", i)
		}
		if ids[src.ID] {
			return fmt.Errorf("duplicate source id %q", src.ID)
		}
		ids[src.ID] = true
		if !classify.KnownSourceType(domain.SourceType(src.Type)) {
			return fmt.Errorf("source %s: unknown type %q", src.ID, src.Type)
		}
		switch strings.ToLower(src.IdentityAttr) {
		case "", domain.IdentityEmail, domain.IdentityID:
		default:
			return fmt.Errorf("source %s: identity_attr must be email or id", src.ID)
		}
		if src.FeedLimit < -1 {
			return fmt.Errorf("source %s: feed_limit must be -1 or greater", src.ID)
		}
	}

	for _, id := range cfg.Engine.RecentActivitySources {
		if !ids[id] {
			return fmt.Errorf("engine.recent_activity_sources: unknown source %q", id)
		}
	}
	// generated totals can't be shadowed by configured counters
	reserved := map[string]bool{aggregate.TotalKey: true}
	for id := range ids {
		reserved[aggregate.TotalKeyFor(domain.SourceID(id))] = true
	}
	names := make(map[string]bool, len(cfg.Counters)+len(cfg.Breakdowns))
	checkName := func(kind, name string) error {
		if reserved[name] {
			return fmt.Errorf("%s %s: name is reserved for source totals", kind, name)
		}
		if names[name] {
			return fmt.Errorf("%s %s: duplicate name", kind, name)
		}
		names[name] = true
		return nil
	}

	for _, c := range cfg.Counters {
		if c.Name == "" {
			return fmt.Errorf("counter name is required")
		}
		if err := checkName("counter", c.Name); err != nil {
			return err
		}
		if !ids[c.Source] {
			return fmt.Errorf("counter %s: unknown source %q", c.Name, c.Source)
		}
	}
	for _, b := range cfg.Breakdowns {
		if b.Name == "" || b.Field == "" {
			return fmt.Errorf("breakdown name and field are required")
		}
		if err := checkName("breakdown", b.Name); err != nil {
			return err
		}
		if !ids[b.Source] {
			return fmt.Errorf("breakdown %s: unknown source %q", b.Name, b.Source)
		}
	}
	return nil
}

// Descriptors returns source descriptors in declaration order
func (c *Config) Descriptors() []domain.SourceDescriptor {
	res := make([]domain.SourceDescriptor, 0, len(c.Sources))
	for _, src := range c.Sources {
		limit := src.FeedLimit
		if limit < 0 {
			limit = 0
		}
		res = append(res, domain.SourceDescriptor{
			ID:         domain.SourceID(src.ID),
			Type:       domain.SourceType(src.Type),
			Collection: src.Collection,
			Predicate:  domain.Predicate{Field: src.Field, IdentityAttr: strings.ToLower(src.IdentityAttr)},
			OrderBy:    src.OrderBy,
			FeedLimit:  limit,
		})
	}
	return res
}

// AggregateConfig returns the aggregator settings
func (c *Config) AggregateConfig() aggregate.Config {
	res := aggregate.Config{
		Sources:             c.Descriptors(),
		FeedLimit:           c.Engine.FeedLimit,
		RecentActivityLimit: c.Engine.RecentActivityLimit,
	}
	for _, id := range c.Engine.RecentActivitySources {
		res.RecentActivitySources = append(res.RecentActivitySources, domain.SourceID(id))
	}
	for _, cnt := range c.Counters {
		res.Counters = append(res.Counters, aggregate.CounterDef{Name: cnt.Name, Source: domain.SourceID(cnt.Source),
			Field: cnt.Field, Values: cnt.Values, Negate: cnt.Negate, AfterExclusion: cnt.AfterExclusion})
	}
	for _, b := range c.Breakdowns {
		res.Breakdowns = append(res.Breakdowns, aggregate.BreakdownDef{Name: b.Name, Source: domain.SourceID(b.Source), Field: b.Field})
	}
	return res
}

// ClassifyConfig returns exclusion settings of the classifier
func (c *Config) ClassifyConfig() classify.Config {
	return classify.Config{Keywords: c.Exclusion.Keywords, KeepTypes: c.Exclusion.KeepTypes}
}

// RetryOptions returns subscription retry options
func (c *Config) RetryOptions() subscription.Options {
	return subscription.Options{Attempts: c.Engine.Retry.Attempts, Delay: c.Engine.Retry.Delay, MaxDelay: c.Engine.Retry.MaxDelay}
}

// GetServerConfig returns server configuration
func (c *Config) GetServerConfig() (listen string, timeout time.Duration) {
	return c.Server.Listen, c.Server.Timeout
}

// GetFullConfig returns the full configuration
func (c *Config) GetFullConfig() *Config {
	return c
}
