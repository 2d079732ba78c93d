package internal

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/folio/internal/deploy"
	"github.com/starford/folio/internal/draft"
	"github.com/starford/folio/internal/publish"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Store drivers.
const (
	StoreDriverSQLite = "sqlite"
	StoreDriverFiles  = "files"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Store     StoreConfig       `yaml:"store"`
	Content   ContentConfig     `yaml:"content"`
	Auth      AuthConfig        `yaml:"auth"`
	Deploy    DeployConfig      `yaml:"deploy"`
	AI        AIConfig          `yaml:"ai"`
	Images    ImagesConfig      `yaml:"images"`
	Scheduler SchedulerConfig   `yaml:"scheduler"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{
		&c.App, &c.Store, &c.Content, &c.Auth, &c.Deploy, &c.AI, &c.Images, &c.Scheduler,
	} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// StoreConfig selects and configures the note store.
//
// Driver "sqlite" keeps notes in SQLitePath. Driver "files" keeps one
// Markdown document per note under NotesDir; with Watch set, edits made
// outside the process are broadcast as events.
type StoreConfig struct {
	Driver     string `yaml:"driver"`
	SQLitePath string `yaml:"sqlite_path"`
	NotesDir   string `yaml:"notes_dir"`
	Watch      bool   `yaml:"watch"`
}

// Validate validates the store configuration.
func (c *StoreConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.Required, validation.In(StoreDriverSQLite, StoreDriverFiles)),
		validation.Field(&c.SQLitePath, validation.When(c.Driver == StoreDriverSQLite, validation.Required)),
		validation.Field(&c.NotesDir, validation.When(c.Driver == StoreDriverFiles, validation.Required)),
	)
}

// ContentConfig holds the location of published posts.
type ContentConfig struct {
	PostsDir string `yaml:"posts_dir"`
}

// Validate validates the content configuration.
func (c *ContentConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.PostsDir, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
//
// CronSecret guards the cron endpoint independently of Mode. When empty the
// endpoint rejects every request.
type AuthConfig struct {
	Mode       string `yaml:"mode"`
	Token      string `yaml:"token"`
	CronSecret string `yaml:"cron_secret"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// DeployConfig holds the deploy hook. An empty HookURL disables notifications.
type DeployConfig struct {
	HookURL string        `yaml:"hook_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// Validate validates the deploy configuration.
func (c *DeployConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.HookURL, validation.When(c.HookURL != "", validation.By(httpURL))),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	)
}

// AIConfig configures draft generation. An empty APIKey disables it.
type AIConfig struct {
	APIKey    string        `yaml:"api_key"`
	Model     string        `yaml:"model"`
	MaxTokens int           `yaml:"max_tokens"`
	Timeout   time.Duration `yaml:"timeout"`
	BaseURL   string        `yaml:"base_url"`
}

// Enabled reports whether an API key is configured.
func (c *AIConfig) Enabled() bool {
	return c.APIKey != ""
}

// Validate validates the AI configuration.
func (c *AIConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxTokens, validation.Min(0), validation.Max(64000)),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
		validation.Field(&c.BaseURL, validation.When(c.BaseURL != "", validation.By(httpURL))),
	)
}

// ImagesConfig configures S3-compatible object storage for images.
// An empty Bucket disables uploads and hero images resolve to absent.
type ImagesConfig struct {
	Bucket          string `yaml:"bucket"`
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	PublicURL       string `yaml:"public_url"`
}

// Enabled reports whether a bucket is configured.
func (c *ImagesConfig) Enabled() bool {
	return c.Bucket != ""
}

// Validate validates the images configuration.
func (c *ImagesConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Endpoint, validation.When(c.Endpoint != "", validation.By(httpURL))),
		validation.Field(&c.PublicURL, validation.When(c.PublicURL != "", validation.By(httpURL))),
		validation.Field(&c.SecretAccessKey, validation.When(c.AccessKeyID != "", validation.Required)),
	)
}

// SchedulerConfig configures the in-process publish trigger.
// Interval 0 disables it; the cron endpoint and publish-due command still work.
type SchedulerConfig struct {
	Interval    time.Duration `yaml:"interval"`
	Concurrency int           `yaml:"concurrency"`
}

// Validate validates the scheduler configuration.
func (c *SchedulerConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Interval, validation.When(c.Interval != 0, validation.Min(time.Second))),
		validation.Field(&c.Concurrency, validation.Min(0), validation.Max(64)),
	)
}

func httpURL(value any) error {
	s, _ := value.(string)
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		return fmt.Errorf("must be an http(s) URL")
	}
	return nil
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Store: StoreConfig{
			Driver:     StoreDriverSQLite,
			SQLitePath: "./folio.db",
			NotesDir:   "./notes",
		},
		Content: ContentConfig{
			PostsDir: "./content/posts",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Deploy: DeployConfig{
			Timeout: deploy.DefaultTimeout,
		},
		AI: AIConfig{
			Model:     draft.DefaultModel,
			MaxTokens: draft.DefaultMaxTokens,
			Timeout:   draft.DefaultTimeout,
		},
		Scheduler: SchedulerConfig{
			Concurrency: publish.DefaultConcurrency,
		},
	}
}
