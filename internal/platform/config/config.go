package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvFile      = ".env"
	defaultPort         = "8080"
	defaultReadTimeout  = 15 * time.Second
	defaultWriteTimeout = 30 * time.Second
	defaultIdleTimeout  = 120 * time.Second

	defaultCarrierTimeout = 10 * time.Second
	defaultGatewayTimeout = 10 * time.Second

	defaultCreateAttempts  = 3
	defaultCreateBackoff   = 50 * time.Millisecond
	defaultPollAttempts    = 3
	defaultPollInitialWait = 30 * time.Second
	defaultPollSteadyWait  = 15 * time.Second
	defaultDedupTTL        = 72 * time.Hour
	defaultItemWeightGrams = 500
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server      ServerConfig
	Firestore   FirestoreConfig
	Stripe      StripeConfig
	Carrier     CarrierConfig
	PubSub      PubSubConfig
	Fulfillment FulfillmentConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// StripeConfig collects payment gateway credentials.
type StripeConfig struct {
	APIKey        string
	WebhookSecret string
	Timeout       time.Duration
}

// CarrierConfig configures the shipping aggregator client.
type CarrierConfig struct {
	BaseURL     string
	Token       string
	ServiceCode string
	Timeout     time.Duration
}

// PubSubConfig names the topics used for outbound notifications and jobs.
type PubSubConfig struct {
	ProjectID          string
	NotificationsTopic string
	JobsTopic          string
}

// FulfillmentConfig tunes the pipeline retry and polling behaviour.
type FulfillmentConfig struct {
	// CreateAttempts caps retries of the order-creation transaction on conflict.
	CreateAttempts int
	// CreateBackoff is the base backoff between creation retries, jittered per attempt.
	CreateBackoff time.Duration
	// PollAttempts caps the tracking-code resolution polls per invocation.
	PollAttempts int
	// PollInitialWait precedes the first poll; the carrier's first assignment
	// window is the longest.
	PollInitialWait time.Duration
	// PollSteadyWait precedes every subsequent poll.
	PollSteadyWait time.Duration
	// DedupTTL bounds retention of payment-event idempotency records.
	DedupTTL time.Duration
	// ItemWeightGrams estimates parcel weight per unit until the catalog
	// carries real weights.
	ItemWeightGrams int
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups.
// Values in the map take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables fallback to the process environment. Used by tests.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// Load resolves configuration from the env file, process environment and
// explicit overrides, in increasing precedence order.
func Load(opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		opt(&options)
	}

	values, err := environmentValues(options)
	if err != nil {
		return Config{}, err
	}
	env := envReader{values: values}

	cfg := Config{
		Server: ServerConfig{
			Port:         env.str("PORT", defaultPort),
			ReadTimeout:  env.duration("SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: env.duration("SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  env.duration("SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Firestore: FirestoreConfig{
			ProjectID:    env.str("FIRESTORE_PROJECT_ID", env.str("GOOGLE_CLOUD_PROJECT", "")),
			EmulatorHost: env.str("FIRESTORE_EMULATOR_HOST", ""),
		},
		Stripe: StripeConfig{
			APIKey:        env.str("STRIPE_API_KEY", ""),
			WebhookSecret: env.str("STRIPE_WEBHOOK_SECRET", ""),
			Timeout:       env.duration("STRIPE_TIMEOUT", defaultGatewayTimeout),
		},
		Carrier: CarrierConfig{
			BaseURL:     env.str("CARRIER_BASE_URL", ""),
			Token:       env.str("CARRIER_API_TOKEN", ""),
			ServiceCode: env.str("CARRIER_SERVICE_CODE", "standard"),
			Timeout:     env.duration("CARRIER_TIMEOUT", defaultCarrierTimeout),
		},
		PubSub: PubSubConfig{
			ProjectID:          env.str("PUBSUB_PROJECT_ID", env.str("GOOGLE_CLOUD_PROJECT", "")),
			NotificationsTopic: env.str("PUBSUB_NOTIFICATIONS_TOPIC", "customer-notifications"),
			JobsTopic:          env.str("PUBSUB_JOBS_TOPIC", "fulfillment-jobs"),
		},
		Fulfillment: FulfillmentConfig{
			CreateAttempts:  env.integer("ORDER_CREATE_ATTEMPTS", defaultCreateAttempts),
			CreateBackoff:   env.duration("ORDER_CREATE_BACKOFF", defaultCreateBackoff),
			PollAttempts:    env.integer("TRACKING_POLL_ATTEMPTS", defaultPollAttempts),
			PollInitialWait: env.duration("TRACKING_POLL_INITIAL_WAIT", defaultPollInitialWait),
			PollSteadyWait:  env.duration("TRACKING_POLL_STEADY_WAIT", defaultPollSteadyWait),
			DedupTTL:        env.duration("PAYMENT_DEDUP_TTL", defaultDedupTTL),
			ItemWeightGrams: env.integer("PARCEL_ITEM_WEIGHT_GRAMS", defaultItemWeightGrams),
		},
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	var missing []string
	if strings.TrimSpace(cfg.Firestore.ProjectID) == "" {
		missing = append(missing, "Firestore.ProjectID")
	}
	if strings.TrimSpace(cfg.Carrier.BaseURL) == "" {
		missing = append(missing, "Carrier.BaseURL")
	}
	if cfg.Fulfillment.CreateAttempts <= 0 {
		missing = append(missing, "Fulfillment.CreateAttempts")
	}
	if cfg.Fulfillment.PollAttempts <= 0 {
		missing = append(missing, "Fulfillment.PollAttempts")
	}
	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func environmentValues(options loaderOptions) (map[string]string, error) {
	values := make(map[string]string)
	merge := func(source map[string]string) {
		for key, value := range source {
			values[key] = value
		}
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return nil, err
	}
	merge(dotEnvValues)

	if options.useSystemEnv {
		system := make(map[string]string)
		for _, entry := range os.Environ() {
			parts := strings.SplitN(entry, "=", 2)
			if len(parts) != 2 {
				continue
			}
			key := strings.TrimSpace(parts[0])
			if key == "" {
				continue
			}
			system[key] = parts[1]
		}
		merge(system)
	}

	merge(options.envMap)
	return values, nil
}

func loadDotEnv(path string) (map[string]string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: open env file %s: %w", path, err)
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		if key == "" {
			continue
		}
		value := strings.TrimSpace(parts[1])
		value = strings.Trim(value, `"'`)
		values[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: read env file %s: %w", path, err)
	}
	return values, nil
}

type envReader struct {
	values map[string]string
}

func (e envReader) str(key, fallback string) string {
	if value, ok := e.values[key]; ok {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func (e envReader) duration(key string, fallback time.Duration) time.Duration {
	raw := e.str(key, "")
	if raw == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func (e envReader) integer(key string, fallback int) int {
	raw := e.str(key, "")
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}
