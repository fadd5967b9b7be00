package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/krackn88/hybrid-dev-beta/pkg/types"
)

// Config holds every recognized option. It is built once at startup and
// passed to each component; nothing reads the environment after Load.
type Config struct {
	RepoOwner   string `mapstructure:"repo_owner" validate:"required"`
	RepoName    string `mapstructure:"repo_name" validate:"required"`
	Branch      string `mapstructure:"branch" validate:"required"`
	LocalPath   string `mapstructure:"local_path"`
	RemoteURL   string `mapstructure:"remote_url"`
	APIBaseURL  string `mapstructure:"api_base_url" validate:"omitempty,url"`
	GitHubToken string `mapstructure:"github_token" validate:"required"`

	WebhookSecret    string `mapstructure:"webhook_secret"`
	InsecureWebhooks bool   `mapstructure:"insecure_webhooks"`
	WebhookPort      int    `mapstructure:"webhook_port" validate:"min=1,max=65535"`

	PollIntervalSeconds       int           `mapstructure:"poll_interval_seconds" validate:"min=1"`
	AutoCommit                bool          `mapstructure:"auto_commit"`
	AutoCommitIntervalMinutes int           `mapstructure:"auto_commit_interval_minutes" validate:"min=1"`
	CooldownSeconds           int           `mapstructure:"cooldown_seconds" validate:"min=0"`
	StepTimeout               time.Duration `mapstructure:"step_timeout" validate:"gt=0"`

	ExtensionDir  string   `mapstructure:"extension_dir" validate:"required"`
	ExtensionName string   `mapstructure:"extension_name" validate:"required"`
	BuildCommands []string `mapstructure:"build_commands"`
	// DependencyCommands run in the repository root when requirements.txt exists
	DependencyCommands []string `mapstructure:"dependency_commands"`
	SkipBuild          bool     `mapstructure:"skip_build"`
	TodoFile           string   `mapstructure:"todo_file" validate:"required"`
	ChangelogFile      string   `mapstructure:"changelog_file" validate:"required"`
	CommitMessage      string   `mapstructure:"commit_message"`
	AuthorName         string   `mapstructure:"author_name" validate:"required"`
	AuthorEmail        string   `mapstructure:"author_email" validate:"required,email"`

	StateFile string `mapstructure:"state_file"`
	AuditLog  string `mapstructure:"audit_log"`

	Provider        string `mapstructure:"provider" validate:"oneof=openai claude copilot"`
	OpenAIAPIKey    string `mapstructure:"openai_api_key"`
	AnthropicAPIKey string `mapstructure:"anthropic_api_key"`
	GitHubPAT       string `mapstructure:"github_pat"`
	Model           string `mapstructure:"model"`
}

// Error reports missing or invalid configuration. It is the only error that
// terminates the process.
type Error struct {
	Problems []string
}

func (e *Error) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

// envBindings maps config keys to the environment variables that can set them,
// in precedence order. Legacy names used by older deployments come second.
var envBindings = map[string][]string{
	"repo_owner":                   {"REPO_OWNER"},
	"repo_name":                    {"REPO_NAME"},
	"branch":                       {"BRANCH"},
	"local_path":                   {"LOCAL_PATH", "LOCAL_REPO_PATH"},
	"remote_url":                   {"REMOTE_URL"},
	"api_base_url":                 {"GITHUB_API_URL"},
	"github_token":                 {"GITHUB_TOKEN"},
	"webhook_secret":               {"WEBHOOK_SECRET"},
	"insecure_webhooks":            {"INSECURE_WEBHOOKS"},
	"webhook_port":                 {"WEBHOOK_PORT"},
	"poll_interval_seconds":        {"POLL_INTERVAL_SECONDS", "POLL_INTERVAL"},
	"auto_commit":                  {"AUTO_COMMIT"},
	"auto_commit_interval_minutes": {"AUTO_COMMIT_INTERVAL_MINUTES", "AUTO_COMMIT_INTERVAL"},
	"cooldown_seconds":             {"COOLDOWN_SECONDS"},
	"step_timeout":                 {"STEP_TIMEOUT"},
	"extension_dir":                {"VSCODE_EXTENSION_DIR", "EXTENSION_DIR"},
	"extension_name":               {"EXTENSION_NAME"},
	"build_commands":               {"BUILD_COMMANDS"},
	"dependency_commands":          {"DEPENDENCY_COMMANDS"},
	"skip_build":                   {"SKIP_BUILD"},
	"todo_file":                    {"TODO_FILE"},
	"changelog_file":               {"CHANGELOG_FILE"},
	"commit_message":               {"COMMIT_MESSAGE"},
	"author_name":                  {"GIT_AUTHOR_NAME"},
	"author_email":                 {"GIT_AUTHOR_EMAIL"},
	"state_file":                   {"STATE_FILE"},
	"audit_log":                    {"AUDIT_LOG"},
	"provider":                     {"AI_PROVIDER"},
	"openai_api_key":               {"OPENAI_API_KEY"},
	"anthropic_api_key":            {"ANTHROPIC_API_KEY"},
	"github_pat":                   {"GITHUB_PAT"},
	"model":                        {"AI_MODEL"},
}

// flagBindings maps command line flags to config keys
var flagBindings = map[string]string{
	"repo-owner":     "repo_owner",
	"repo-name":      "repo_name",
	"branch":         "branch",
	"local-path":     "local_path",
	"webhook-port":   "webhook_port",
	"poll-interval":  "poll_interval_seconds",
	"auto-commit":    "auto_commit",
	"no-build":       "skip_build",
	"commit-message": "commit_message",
	"provider":       "provider",
	"model":          "model",
}

// RegisterFlags adds the configuration flags to fs
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to a YAML config file")
	fs.String("repo-owner", "", "repository owner")
	fs.String("repo-name", "", "repository name")
	fs.String("branch", "", "branch to track (default main)")
	fs.String("local-path", "", "local working copy path")
	fs.Int("webhook-port", 0, "port for the webhook server (default 8000)")
	fs.Int("poll-interval", 0, "polling interval in seconds (default 300)")
	fs.Bool("auto-commit", true, "enable the periodic auto-commit trigger")
	fs.Bool("no-build", false, "skip building the VSCode extension")
	fs.String("commit-message", "", "custom commit message")
	fs.String("provider", "", "completion provider: openai, claude or copilot")
	fs.String("model", "", "completion model override")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("branch", "main")
	v.SetDefault("webhook_port", 8000)
	v.SetDefault("poll_interval_seconds", 300)
	v.SetDefault("auto_commit", true)
	v.SetDefault("auto_commit_interval_minutes", 30)
	v.SetDefault("cooldown_seconds", 5)
	v.SetDefault("step_timeout", "10m")
	v.SetDefault("extension_dir", "vscode-extension")
	v.SetDefault("extension_name", "vscode-hybrid-extension")
	v.SetDefault("build_commands", []string{"npm install", "npm run compile"})
	v.SetDefault("dependency_commands", []string{"python3 -m pip install -r requirements.txt"})
	v.SetDefault("todo_file", "todo.md")
	v.SetDefault("changelog_file", "CHANGELOG.md")
	v.SetDefault("author_name", "GitHub Automator")
	v.SetDefault("author_email", "automator@github.com")
	v.SetDefault("provider", "openai")
}

// Load reads configuration from defaults, the optional --config file, the
// environment and flags, in increasing precedence. fs may be nil.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	for key, envs := range envBindings {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	if fs != nil {
		for name, key := range flagBindings {
			if flag := fs.Lookup(name); flag != nil {
				if err := v.BindPFlag(key, flag); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
		if path, err := fs.GetString("config"); err == nil && path != "" {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, &Error{Problems: []string{fmt.Sprintf("failed to read config file: %v", err)}}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &Error{Problems: []string{fmt.Sprintf("failed to unmarshal config: %v", err)}}
	}

	if cfg.LocalPath == "" && cfg.RepoName != "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		cfg.LocalPath = filepath.Join(home, cfg.RepoName)
	}
	if cfg.GitHubPAT == "" {
		cfg.GitHubPAT = cfg.GitHubToken
	}

	return &cfg, nil
}

// Validate checks everything the repository modes (webhook, poll, update) need
func (c *Config) Validate() error {
	return translate(validator.New().Struct(c))
}

// ValidateProvider checks only what the complete mode needs
func (c *Config) ValidateProvider() error {
	if err := translate(validator.New().StructPartial(c, "Provider")); err != nil {
		return err
	}
	if c.ProviderKey() == "" {
		return &Error{Problems: []string{fmt.Sprintf("no API key configured for provider %s", c.Provider)}}
	}
	return nil
}

// ProviderKey returns the credential for the selected completion provider
func (c *Config) ProviderKey() string {
	switch c.Provider {
	case "openai":
		return c.OpenAIAPIKey
	case "claude":
		return c.AnthropicAPIKey
	case "copilot":
		return c.GitHubPAT
	}
	return ""
}

// Target returns the managed repository described by the configuration
func (c *Config) Target() types.RepoTarget {
	return types.RepoTarget{
		Owner:       c.RepoOwner,
		Name:        c.RepoName,
		Branch:      c.Branch,
		LocalPath:   c.LocalPath,
		RemoteURL:   c.RemoteURL,
		RemoteToken: c.GitHubToken,
	}
}

// PollInterval returns the polling interval as a duration
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// AutoCommitInterval returns the auto-commit interval as a duration
func (c *Config) AutoCommitInterval() time.Duration {
	return time.Duration(c.AutoCommitIntervalMinutes) * time.Minute
}

// Cooldown returns the pause the scheduler takes after each run
func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.CooldownSeconds) * time.Second
}

// BuildArgv splits each configured build command into an argument vector.
// Commands are never passed to a shell.
func (c *Config) BuildArgv() [][]string {
	return splitCommands(c.BuildCommands)
}

// DependencyArgv splits each dependency install command into an argument vector
func (c *Config) DependencyArgv() [][]string {
	return splitCommands(c.DependencyCommands)
}

func splitCommands(commands []string) [][]string {
	argv := make([][]string, 0, len(commands))
	for _, command := range commands {
		if fields := strings.Fields(command); len(fields) > 0 {
			argv = append(argv, fields)
		}
	}
	return argv
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &Error{Problems: []string{err.Error()}}
	}
	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		problems = append(problems, fmt.Sprintf("%s failed %q validation", keyFor(fe.StructField()), fe.Tag()))
	}
	return &Error{Problems: problems}
}

var configType = reflect.TypeOf(Config{})

// keyFor returns the config key for a struct field name, falling back to the
// field name itself.
func keyFor(field string) string {
	if f, ok := configType.FieldByName(field); ok {
		if tag := f.Tag.Get("mapstructure"); tag != "" {
			return tag
		}
	}
	return field
}
