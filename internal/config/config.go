package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/tournevent/apc/pkg/shipper"
	"github.com/tournevent/apc/pkg/shipper/apc"
	"go.opentelemetry.io/otel/attribute"
)

// Config holds all configuration for the service.
type Config struct {
	// Server
	Port     int    `envconfig:"PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// APC account
	APCUsername string        `envconfig:"APC_USERNAME"`
	APCPassword string        `envconfig:"APC_PASSWORD"`
	APCSandbox  bool          `envconfig:"APC_SANDBOX" default:"true"`
	APCBaseURL  string        `envconfig:"APC_BASE_URL"`
	APCUseMock  bool          `envconfig:"APC_USE_MOCK" default:"false"`
	APCTimeout  time.Duration `envconfig:"APC_TIMEOUT" default:"30s"`
	APCServices []string      `envconfig:"APC_SERVICES"`

	// Company is the account holder: the default collection point for
	// deliveries and the destination of collections.
	Company CompanyConfig `envconfig:"APC_COMPANY"`

	// Telemetry
	OTELEnabled  bool   `envconfig:"OTEL_ENABLED" default:"false"`
	OTELEndpoint string `envconfig:"OTEL_ENDPOINT" default:"http://localhost:4318"`
	ServiceName  string `envconfig:"SERVICE_NAME" default:"apc-bridge"`
	Version      string `envconfig:"SERVICE_VERSION" default:"0.0.1"`
}

// CompanyConfig is read from the APC_COMPANY_* variables.
type CompanyConfig struct {
	Name     string   `envconfig:"NAME"`
	Lines    []string `envconfig:"LINES"`
	City     string   `envconfig:"CITY"`
	County   string   `envconfig:"COUNTY"`
	Postcode string   `envconfig:"POSTCODE"`
	Country  string   `envconfig:"COUNTRY" default:"GB"`
	Contact  string   `envconfig:"CONTACT"`
	Phone    string   `envconfig:"PHONE"`
	Email    string   `envconfig:"EMAIL"`
	OpenFrom string   `envconfig:"OPEN_FROM" default:"09:00"`
	OpenTo   string   `envconfig:"OPEN_TO" default:"17:30"`
}

// Load reads configuration from environment variables. A .env file in the
// working directory is applied first when present; variables already set
// in the environment win.
func Load() (*Config, error) {
	return LoadFiles(".env")
}

// LoadFiles is Load with explicit dotenv files. Missing files are skipped.
func LoadFiles(files ...string) (*Config, error) {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", f, err)
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return &cfg, nil
}

// CompanyDetails builds the account holder from the APC_COMPANY_* settings.
func (c *Config) CompanyDetails() (shipper.Company, error) {
	cc := c.Company
	if strings.TrimSpace(cc.Postcode) == "" {
		return shipper.Company{}, fmt.Errorf("APC_COMPANY_POSTCODE is required: %w", shipper.ErrInvalidAddress)
	}

	from, err := shipper.ParseClock(cc.OpenFrom)
	if err != nil {
		return shipper.Company{}, fmt.Errorf("APC_COMPANY_OPEN_FROM: %w", err)
	}
	to, err := shipper.ParseClock(cc.OpenTo)
	if err != nil {
		return shipper.Company{}, fmt.Errorf("APC_COMPANY_OPEN_TO: %w", err)
	}

	opts := []shipper.AddressOption{
		shipper.WithCompanyName(cc.Name),
		shipper.WithCounty(cc.County),
	}
	if cc.Contact != "" || cc.Phone != "" || cc.Email != "" {
		opts = append(opts, shipper.WithContact(shipper.Contact{
			Name:  strings.TrimSpace(cc.Contact),
			Phone: strings.TrimSpace(cc.Phone),
			Email: strings.TrimSpace(cc.Email),
		}))
	}
	addr := shipper.NewAddress(cc.Lines, cc.City, cc.Postcode, cc.Country, opts...)

	company, err := shipper.NewCompany(addr, from, to)
	if err != nil {
		return shipper.Company{}, fmt.Errorf("company details: %w", err)
	}
	return company, nil
}

// APC returns the client configuration for the APC account.
func (c *Config) APC() (apc.Config, error) {
	company, err := c.CompanyDetails()
	if err != nil {
		return apc.Config{}, err
	}
	return apc.Config{
		Username: c.APCUsername,
		Password: c.APCPassword,
		BaseURL:  c.APCBaseURL,
		Sandbox:  c.APCSandbox,
		UseMock:  c.APCUseMock,
		Timeout:  c.APCTimeout,
		Company:  company,

		KnownServices: c.APCServices,
	}, nil
}

// Attributes returns OpenTelemetry attributes for this configuration.
func (c *Config) Attributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("service.name", c.ServiceName),
		attribute.String("service.version", c.Version),
		attribute.Bool("apc.sandbox", c.APCSandbox),
		attribute.Bool("apc.mock", c.APCUseMock),
	}
}
