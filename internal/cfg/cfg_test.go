package cfg

import (
	"flag"
	"math"
	"net/url"
	"strings"
	"testing"
)

// validBase returns a Config with all required fields set to valid values.
func validBase() Config {
	return Config{
		DrainSeconds:          60,
		ShutdownBudgetSeconds: 90,
		APIPort:               8080,
		AdminToken:            "test-token-123",
		NotifyThreshold:       80,
	}
}

func with(mod func(*Config)) Config {
	c := validBase()
	mod(&c)
	return c
}

func TestRegisterFlags_Defaults(t *testing.T) {
	t.Parallel()

	var c Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.RegisterFlags(fs)

	if err := fs.Parse(nil); err != nil {
		t.Fatalf("parse empty args: %v", err)
	}

	if c.DrainSeconds != 60 {
		t.Errorf("DrainSeconds = %d, want 60", c.DrainSeconds)
	}
	if c.ShutdownBudgetSeconds != 90 {
		t.Errorf("ShutdownBudgetSeconds = %d, want 90", c.ShutdownBudgetSeconds)
	}
	if c.APIPort != 8080 {
		t.Errorf("APIPort = %d, want 8080", c.APIPort)
	}
	if c.NotifyThreshold != 80 {
		t.Errorf("NotifyThreshold = %d, want 80", c.NotifyThreshold)
	}
	if c.DatabaseURL != "" {
		t.Errorf("DatabaseURL = %q, want empty (in-memory)", c.DatabaseURL)
	}
	if c.LoadSamples {
		t.Error("LoadSamples = true, want false")
	}
}

func TestRegisterFlags_Override(t *testing.T) {
	t.Parallel()

	var c Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.RegisterFlags(fs)

	args := []string{
		"-drain-seconds", "30",
		"-shutdown-budget-seconds", "120",
		"-http-port", "9090",
		"-database-url", "postgres://sift@db/sift",
		"-admin-token", "tok",
		"-slack-webhook-url", "https://hooks.slack.com/services/T/B/X",
		"-notify-threshold", "95",
		"-samples-file", "/etc/sift/samples.yaml",
		"-load-samples",
	}
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse args: %v", err)
	}

	if c.DrainSeconds != 30 {
		t.Errorf("DrainSeconds = %d, want 30", c.DrainSeconds)
	}
	if c.ShutdownBudgetSeconds != 120 {
		t.Errorf("ShutdownBudgetSeconds = %d, want 120", c.ShutdownBudgetSeconds)
	}
	if c.APIPort != 9090 {
		t.Errorf("APIPort = %d, want 9090", c.APIPort)
	}
	if c.DatabaseURL != "postgres://sift@db/sift" {
		t.Errorf("DatabaseURL = %q", c.DatabaseURL)
	}
	if c.AdminToken != "tok" {
		t.Errorf("AdminToken = %q, want tok", c.AdminToken)
	}
	if c.SlackWebhookURL != "https://hooks.slack.com/services/T/B/X" {
		t.Errorf("SlackWebhookURL = %q", c.SlackWebhookURL)
	}
	if c.NotifyThreshold != 95 {
		t.Errorf("NotifyThreshold = %d, want 95", c.NotifyThreshold)
	}
	if c.SamplesFile != "/etc/sift/samples.yaml" {
		t.Errorf("SamplesFile = %q", c.SamplesFile)
	}
	if !c.LoadSamples {
		t.Error("LoadSamples = false, want true")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		cfg       Config
		wantErr   bool
		errSubstr []string // substrings that must appear in error message
	}{
		{
			name:    "defaults are valid",
			cfg:     validBase(),
			wantErr: false,
		},
		{
			name: "minimum valid values",
			cfg: Config{
				DrainSeconds: 1, ShutdownBudgetSeconds: 2, APIPort: 1,
				AdminToken: "t", NotifyThreshold: 1,
			},
			wantErr: false,
		},
		{
			name: "maximum valid values",
			cfg: Config{
				DrainSeconds: 299, ShutdownBudgetSeconds: 300, APIPort: 65535,
				AdminToken: "t", NotifyThreshold: 100,
			},
			wantErr: false,
		},
		// DrainSeconds boundaries
		{
			name:      "drain zero",
			cfg:       with(func(c *Config) { c.DrainSeconds = 0 }),
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS"},
		},
		{
			name:      "drain negative",
			cfg:       with(func(c *Config) { c.DrainSeconds = -1 }),
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS"},
		},
		{
			name:      "drain above max",
			cfg:       with(func(c *Config) { c.DrainSeconds, c.ShutdownBudgetSeconds = 301, 302 }),
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS"},
		},
		{
			name:    "drain at upper bound",
			cfg:     with(func(c *Config) { c.DrainSeconds, c.ShutdownBudgetSeconds = 300, 300 }),
			wantErr: true, // budget must be greater than drain
		},
		// ShutdownBudgetSeconds boundaries
		{
			name:      "budget zero",
			cfg:       with(func(c *Config) { c.ShutdownBudgetSeconds = 0 }),
			wantErr:   true,
			errSubstr: []string{"SHUTDOWN_BUDGET_SECONDS"},
		},
		{
			name:      "budget above max",
			cfg:       with(func(c *Config) { c.ShutdownBudgetSeconds = 301 }),
			wantErr:   true,
			errSubstr: []string{"SHUTDOWN_BUDGET_SECONDS"},
		},
		// Cross-field: budget vs drain
		{
			name:      "budget equals drain",
			cfg:       with(func(c *Config) { c.ShutdownBudgetSeconds = 60 }),
			wantErr:   true,
			errSubstr: []string{"must be greater than"},
		},
		{
			name:      "budget less than drain",
			cfg:       with(func(c *Config) { c.ShutdownBudgetSeconds = 30 }),
			wantErr:   true,
			errSubstr: []string{"must be greater than"},
		},
		{
			name:    "budget is drain plus one",
			cfg:     with(func(c *Config) { c.ShutdownBudgetSeconds = 61 }),
			wantErr: false,
		},
		// APIPort boundaries
		{
			name:      "port zero",
			cfg:       with(func(c *Config) { c.APIPort = 0 }),
			wantErr:   true,
			errSubstr: []string{"HTTP_PORT"},
		},
		{
			name:      "port above max",
			cfg:       with(func(c *Config) { c.APIPort = 65536 }),
			wantErr:   true,
			errSubstr: []string{"HTTP_PORT"},
		},
		// Admin token
		{
			name:      "empty admin token",
			cfg:       with(func(c *Config) { c.AdminToken = "" }),
			wantErr:   true,
			errSubstr: []string{"ADMIN_TOKEN"},
		},
		// Notify threshold
		{
			name:      "threshold zero",
			cfg:       with(func(c *Config) { c.NotifyThreshold = 0 }),
			wantErr:   true,
			errSubstr: []string{"NOTIFY_THRESHOLD"},
		},
		{
			name:      "threshold above max score",
			cfg:       with(func(c *Config) { c.NotifyThreshold = 101 }),
			wantErr:   true,
			errSubstr: []string{"NOTIFY_THRESHOLD"},
		},
		// Slack webhook
		{
			name:    "slack https url",
			cfg:     with(func(c *Config) { c.SlackWebhookURL = "https://hooks.slack.com/services/T/B/X" }),
			wantErr: false,
		},
		{
			name:      "slack plain http",
			cfg:       with(func(c *Config) { c.SlackWebhookURL = "http://hooks.slack.com/services/T/B/X" }),
			wantErr:   true,
			errSubstr: []string{"SLACK_WEBHOOK_URL"},
		},
		{
			name:      "slack not a url",
			cfg:       with(func(c *Config) { c.SlackWebhookURL = "hooks.slack.com" }),
			wantErr:   true,
			errSubstr: []string{"SLACK_WEBHOOK_URL"},
		},
		// Optional fields
		{
			name: "database and samples set",
			cfg: with(func(c *Config) {
				c.DatabaseURL = "postgres://localhost/sift"
				c.SamplesFile = "samples.yaml"
				c.LoadSamples = true
			}),
			wantErr: false,
		},
		// Error accumulation: all fields invalid
		{
			name:      "all fields invalid",
			cfg:       Config{SlackWebhookURL: "ftp://x"},
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS", "SHUTDOWN_BUDGET_SECONDS", "HTTP_PORT", "ADMIN_TOKEN", "NOTIFY_THRESHOLD", "SLACK_WEBHOOK_URL"},
		},
		// Extreme values
		{
			name:      "extreme negative values",
			cfg:       Config{DrainSeconds: math.MinInt32, ShutdownBudgetSeconds: math.MinInt32, APIPort: math.MinInt32, NotifyThreshold: math.MinInt32},
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS", "SHUTDOWN_BUDGET_SECONDS", "HTTP_PORT", "NOTIFY_THRESHOLD"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				errMsg := err.Error()
				for _, sub := range tt.errSubstr {
					if !strings.Contains(errMsg, sub) {
						t.Errorf("error %q does not contain %q", errMsg, sub)
					}
				}
			}
		})
	}
}

func FuzzValidate(f *testing.F) {
	// Seeds: defaults, boundaries, extremes
	seeds := []struct {
		drain, budget, port, threshold int
		token, slack                   string
	}{
		{60, 90, 8080, 80, "tok", ""},
		{1, 2, 1, 1, "t", "https://hooks.slack.com/x"},
		{299, 300, 65535, 100, "t", ""},
		{0, 0, 0, 0, "", ""},
		{-1, -1, -1, -1, "", "http://x"},
		{300, 300, 65535, 80, "t", ""},
		{301, 302, 65536, 101, "", "::"},
		{150, 100, 8080, 80, "t", ""},
		{math.MinInt32, math.MinInt32, math.MinInt32, math.MinInt32, "", ""},
		{math.MaxInt32, math.MaxInt32, math.MaxInt32, math.MaxInt32, "", ""},
	}
	for _, s := range seeds {
		f.Add(s.drain, s.budget, s.port, s.threshold, s.token, s.slack)
	}

	f.Fuzz(func(t *testing.T, drain, budget, port, threshold int, token, slack string) {
		c := Config{
			DrainSeconds:          drain,
			ShutdownBudgetSeconds: budget,
			APIPort:               port,
			AdminToken:            token,
			NotifyThreshold:       threshold,
			SlackWebhookURL:       slack,
		}
		err := c.Validate()

		drainOK := drain >= 1 && drain <= 300
		budgetOK := budget >= 1 && budget <= 300
		portOK := port >= 1 && port <= 65535
		crossOK := budget > drain
		tokenOK := token != ""
		thresholdOK := threshold >= 1 && threshold <= 100
		slackOK := slack == ""
		if !slackOK {
			u, perr := url.Parse(slack)
			slackOK = perr == nil && u.Scheme == "https" && u.Host != ""
		}

		allValid := drainOK && budgetOK && portOK && crossOK && tokenOK && thresholdOK && slackOK

		if allValid && err != nil {
			t.Errorf("expected no error for valid config %+v, got: %v", c, err)
		}
		if !allValid && err == nil {
			t.Errorf("expected error for invalid config %+v, got nil", c)
		}
	})
}
