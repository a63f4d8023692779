// Package sql loads schema documents from a database table with one row
// per content type or global field.
package sql

import (
	"context"
	sqldb "database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"

	"github.com/effectus/extension-sdk/adapters"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// SchemaConfig controls where schema rows live.
type SchemaConfig struct {
	Driver       string `json:"driver" yaml:"driver"`
	DSN          string `json:"dsn" yaml:"dsn"`
	Table        string `json:"table" yaml:"table"`
	UIDColumn    string `json:"uid_column" yaml:"uid_column"`
	KindColumn   string `json:"kind_column" yaml:"kind_column"`
	BodyColumn   string `json:"body_column" yaml:"body_column"`
	FormatColumn string `json:"format_column" yaml:"format_column"`
	Timeout      string `json:"timeout" yaml:"timeout"`

	timeout time.Duration
}

func (c *SchemaConfig) applyDefaults() error {
	if c.Driver == "" {
		return fmt.Errorf("driver is required")
	}
	if c.DSN == "" {
		return fmt.Errorf("dsn is required")
	}
	if _, err := dialectFor(c.Driver); err != nil {
		return err
	}
	if c.Table == "" {
		c.Table = "extension_schemas"
	}
	if c.UIDColumn == "" {
		c.UIDColumn = "uid"
	}
	if c.KindColumn == "" {
		c.KindColumn = "kind"
	}
	if c.BodyColumn == "" {
		c.BodyColumn = "body"
	}
	for _, ident := range []string{c.Table, c.UIDColumn, c.KindColumn, c.BodyColumn} {
		if !identifierPattern.MatchString(ident) {
			return fmt.Errorf("invalid identifier %q", ident)
		}
	}
	if c.FormatColumn != "" && !identifierPattern.MatchString(c.FormatColumn) {
		return fmt.Errorf("invalid identifier %q", c.FormatColumn)
	}
	c.timeout = 30 * time.Second
	if c.Timeout != "" {
		timeout, err := time.ParseDuration(c.Timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout: %w", err)
		}
		c.timeout = timeout
	}
	return nil
}

// dialect covers the SQL differences between the supported drivers
type dialect struct {
	name        string
	placeholder func(n int) string
	conflict    func(key string, columns []string) string
}

func dialectFor(driver string) (dialect, error) {
	driver = strings.ToLower(strings.TrimSpace(driver))
	switch {
	case driver == "postgres" || driver == "pgx" || strings.Contains(driver, "postgres"):
		return dialect{
			name:        "postgres",
			placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
			conflict: func(key string, columns []string) string {
				sets := make([]string, len(columns))
				for i, col := range columns {
					sets[i] = fmt.Sprintf("%s = EXCLUDED.%s", col, col)
				}
				return fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET %s", key, strings.Join(sets, ", "))
			},
		}, nil
	case strings.Contains(driver, "mysql"):
		return dialect{
			name:        "mysql",
			placeholder: func(int) string { return "?" },
			conflict: func(_ string, columns []string) string {
				sets := make([]string, len(columns))
				for i, col := range columns {
					sets[i] = fmt.Sprintf("%s = VALUES(%s)", col, col)
				}
				return "ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
			},
		}, nil
	default:
		return dialect{}, fmt.Errorf("unsupported sql driver: %s", driver)
	}
}

// upsert inserts a row keyed by key or replaces the other columns of an
// existing one
func (d dialect) upsert(table, key string, columns []string) string {
	all := append([]string{key}, columns...)
	params := make([]string, len(all))
	for i := range all {
		params[i] = d.placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) %s",
		table, strings.Join(all, ", "), strings.Join(params, ", "), d.conflict(key, columns))
}

// SchemaProvider reads schema rows.
type SchemaProvider struct {
	config *SchemaConfig
	db     *sqldb.DB
}

// NewSchemaProvider opens the database; the connection is verified on load
func NewSchemaProvider(config *SchemaConfig) (*SchemaProvider, error) {
	if err := config.applyDefaults(); err != nil {
		return nil, err
	}
	db, err := sqldb.Open(config.Driver, config.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening sql connection: %w", err)
	}
	return &SchemaProvider{config: config, db: db}, nil
}

func (p *SchemaProvider) selectQuery() string {
	format := "''"
	if p.config.FormatColumn != "" {
		format = p.config.FormatColumn
	}
	return fmt.Sprintf("SELECT %s, %s, %s, %s FROM %s ORDER BY %s",
		p.config.UIDColumn, p.config.KindColumn, p.config.BodyColumn, format, p.config.Table, p.config.UIDColumn)
}

func (p *SchemaProvider) LoadSchemas(ctx context.Context) ([]adapters.SchemaDefinition, error) {
	if p == nil || p.db == nil {
		return nil, fmt.Errorf("sql connection not initialized")
	}
	ctx, cancel := context.WithTimeout(ctx, p.config.timeout)
	defer cancel()

	if err := p.db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("sql ping failed: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, p.selectQuery())
	if err != nil {
		return nil, fmt.Errorf("querying schemas: %w", err)
	}
	defer rows.Close()

	var defs []adapters.SchemaDefinition
	for rows.Next() {
		var (
			uid, kind, format string
			body              []byte
		)
		if err := rows.Scan(&uid, &kind, &body, &format); err != nil {
			return nil, fmt.Errorf("scanning schema row: %w", err)
		}
		def, err := p.definition(uid, kind, format, body)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return defs, nil
}

func (p *SchemaProvider) definition(uid, kind, format string, body []byte) (adapters.SchemaDefinition, error) {
	if len(body) == 0 {
		return adapters.SchemaDefinition{}, fmt.Errorf("schema row %s has an empty body", uid)
	}
	if format == "" {
		format = string(adapters.SchemaFormatAuto)
	}
	return adapters.SchemaDefinition{
		Name:   uid,
		Kind:   strings.TrimSpace(kind),
		Format: adapters.SchemaFormat(strings.ToLower(format)),
		Data:   body,
		Source: fmt.Sprintf("%s:%s/%s", p.config.Driver, p.config.Table, uid),
	}, nil
}

// PutSchema stores or replaces the row of def.Name. The format column is
// written when configured.
func (p *SchemaProvider) PutSchema(ctx context.Context, def adapters.SchemaDefinition) error {
	if p == nil || p.db == nil {
		return fmt.Errorf("sql connection not initialized")
	}
	if def.Name == "" || def.Kind == "" {
		return fmt.Errorf("schema %q needs a uid and a kind", def.Name)
	}
	if len(def.Data) == 0 {
		return fmt.Errorf("schema %s has an empty body", def.Name)
	}
	d, err := dialectFor(p.config.Driver)
	if err != nil {
		return err
	}

	columns := []string{p.config.KindColumn, p.config.BodyColumn}
	args := []interface{}{def.Name, def.Kind, string(def.Data)}
	if p.config.FormatColumn != "" {
		format := def.Format
		if format == "" {
			format = adapters.SchemaFormatAuto
		}
		columns = append(columns, p.config.FormatColumn)
		args = append(args, string(format))
	}

	ctx, cancel := context.WithTimeout(ctx, p.config.timeout)
	defer cancel()
	if _, err := p.db.ExecContext(ctx, d.upsert(p.config.Table, p.config.UIDColumn, columns), args...); err != nil {
		return fmt.Errorf("storing schema %s: %w", def.Name, err)
	}
	return nil
}

func (p *SchemaProvider) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}

// SchemaFactory creates SQL schema providers.
type SchemaFactory struct{}

func decodeSchemaConfig(config adapters.SchemaSourceConfig) (*SchemaConfig, error) {
	var cfg SchemaConfig
	if err := config.DecodeConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (f *SchemaFactory) ValidateConfig(config adapters.SchemaSourceConfig) error {
	cfg, err := decodeSchemaConfig(config)
	if err != nil {
		return err
	}
	return cfg.applyDefaults()
}

func (f *SchemaFactory) Create(config adapters.SchemaSourceConfig) (adapters.SchemaProvider, error) {
	cfg, err := decodeSchemaConfig(config)
	if err != nil {
		return nil, err
	}
	return NewSchemaProvider(cfg)
}

func (f *SchemaFactory) GetConfigSchema() adapters.ConfigSchema {
	return adapters.ConfigSchema{
		Properties: map[string]adapters.ConfigProperty{
			"driver": {
				Type:        "string",
				Description: "database/sql driver name (postgres, pgx, mysql)",
			},
			"dsn": {
				Type:        "string",
				Description: "connection string for the database",
			},
			"table": {
				Type:        "string",
				Description: "table holding one schema document per row",
				Default:     "extension_schemas",
			},
			"uid_column": {
				Type:    "string",
				Default: "uid",
			},
			"kind_column": {
				Type:        "string",
				Description: "content_type or global_field",
				Default:     "kind",
			},
			"body_column": {
				Type:        "string",
				Description: "JSON or YAML document",
				Default:     "body",
			},
			"format_column": {
				Type:        "string",
				Description: "optional column naming the body format",
			},
			"timeout": {
				Type:    "string",
				Default: "30s",
			},
		},
		Required: []string{"driver", "dsn"},
	}
}

func init() {
	_ = adapters.RegisterSchemaProvider("sql", &SchemaFactory{})
}
