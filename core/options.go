package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
)

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

// Runtime is the resolved, read-only set of dependencies shared by every
// component of a client.
type Runtime struct {
	Config         Config
	Logger         Logger
	LoggerProvider LoggerProvider
	Metrics        MetricsRecorder
	ErrorMapper    ErrorMapper
	Transport      TransportAdapter
	Clock          Clock
	NameSynonyms   map[string]string
}

func (r Runtime) Observer() Observer {
	return Observer{Logger: r.Logger, Metrics: r.Metrics}
}

type builder struct {
	runtimeConfig   Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorMapper     ErrorMapper
	configProvider  ConfigProvider
	optionsResolver OptionsResolver
	transport       TransportAdapter
	clock           Clock
	nameSynonyms    map[string]string
}

type Option func(*builder)

func WithLogger(logger Logger) Option {
	return func(b *builder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *builder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *builder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *builder) {
		b.errorMapper = mapper
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *builder) {
		b.configProvider = provider
	}
}

func WithRawConfig(values map[string]any) Option {
	return func(b *builder) {
		b.configProvider = NewCfgxConfigProvider(staticRawConfigLoader{Values: values})
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *builder) {
		b.optionsResolver = resolver
	}
}

func WithTransport(transport TransportAdapter) Option {
	return func(b *builder) {
		b.transport = transport
	}
}

func WithClock(clock Clock) Option {
	return func(b *builder) {
		b.clock = clock
	}
}

// WithNameSynonyms adds irregular declared-name to wire-name translations.
func WithNameSynonyms(synonyms map[string]string) Option {
	return func(b *builder) {
		if len(synonyms) == 0 {
			return
		}
		if b.nameSynonyms == nil {
			b.nameSynonyms = map[string]string{}
		}
		for key, value := range synonyms {
			b.nameSynonyms[key] = value
		}
	}
}

// Build resolves configuration layers (defaults < loaded < runtime) and
// dependency defaults into a Runtime.
func Build(cfg Config, options ...Option) (Runtime, error) {
	b := builder{
		runtimeConfig:   cfg,
		metricsRecorder: NopMetricsRecorder{},
		errorMapper:     MapError,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
		clock:           SystemClock{},
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&b)
	}

	provider, logger := glog.Resolve("renderlink", b.loggerProvider, b.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("renderlink"); named != nil {
			logger = glog.Ensure(named)
		}
	}
	if b.metricsRecorder == nil {
		b.metricsRecorder = NopMetricsRecorder{}
	}
	if b.errorMapper == nil {
		b.errorMapper = MapError
	}
	if b.configProvider == nil {
		b.configProvider = NewCfgxConfigProvider(nil)
	}
	if b.optionsResolver == nil {
		b.optionsResolver = GoOptionsResolver{}
	}
	if b.clock == nil {
		b.clock = SystemClock{}
	}

	defaults := DefaultConfig()
	loaded, err := b.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return Runtime{}, mapBuildError(b.errorMapper, err)
	}
	finalConfig, err := b.optionsResolver.Resolve(defaults, loaded, b.runtimeConfig)
	if err != nil {
		return Runtime{}, mapBuildError(b.errorMapper, err)
	}

	return Runtime{
		Config:         finalConfig,
		Logger:         logger,
		LoggerProvider: provider,
		Metrics:        b.metricsRecorder,
		ErrorMapper:    b.errorMapper,
		Transport:      b.transport,
		Clock:          b.clock,
		NameSynonyms:   b.nameSynonyms,
	}, nil
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return UsageError(err, "core: invalid configuration", nil)
	}
	mapped := mapper(UsageError(err, "core: invalid configuration", nil))
	if mapped == nil {
		return err
	}
	return mapped
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

// Load decodes raw values over defaults. Credentials may arrive in a later
// layer, so full validation happens in the resolver.
func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, false)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	setString := func(target map[string]any, key string, value string) {
		if includeZero || strings.TrimSpace(value) != "" {
			target[key] = strings.TrimSpace(value)
		}
	}
	setInt := func(target map[string]any, key string, value int64) {
		if includeZero || value != 0 {
			target[key] = value
		}
	}

	setString(layer, "base_url", cfg.BaseURL)
	setString(layer, "api_key", cfg.APIKey)
	setString(layer, "api_secret", cfg.APISecret)
	if includeZero || cfg.SignLinks {
		layer["sign_links"] = cfg.SignLinks
	}

	polling := map[string]any{}
	setInt(polling, "interval_ms", int64(cfg.Polling.IntervalMS))
	setInt(polling, "timeout_ms", int64(cfg.Polling.TimeoutMS))
	setInt(polling, "min_timeout_ms", int64(cfg.Polling.MinTimeoutMS))
	setInt(polling, "max_timeout_ms", int64(cfg.Polling.MaxTimeoutMS))
	if len(polling) > 0 {
		layer["polling"] = polling
	}

	httpLayer := map[string]any{}
	setInt(httpLayer, "timeout_ms", int64(cfg.HTTP.TimeoutMS))
	setInt(httpLayer, "max_response_body_bytes", cfg.HTTP.MaxResponseBodyBytes)
	if len(httpLayer) > 0 {
		layer["http"] = httpLayer
	}

	webhook := map[string]any{}
	setString(webhook, "secret", cfg.Webhook.Secret)
	setString(webhook, "header", cfg.Webhook.Header)
	setInt(webhook, "replay_window_ms", int64(cfg.Webhook.ReplayWindowMS))
	if len(webhook) > 0 {
		layer["webhook"] = webhook
	}

	cache := map[string]any{}
	setInt(cache, "status_ttl_ms", int64(cfg.Cache.StatusTTLMS))
	if len(cache) > 0 {
		layer["cache"] = cache
	}
	return layer
}
