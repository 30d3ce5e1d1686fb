// Package secrets resolves secret:// references against Google Secret
// Manager, with an in-memory cache and a local dotfile fallback for
// development environments.
package secrets

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	defaultEnvironment  = "local"
	defaultFallbackPath = ".secrets.local"
	meterName           = "github.com/duka-pos/api/internal/platform/secrets"
)

// Swapped out in tests to avoid dialling the real service.
var secretManagerClientFactory = func(ctx context.Context, opts ...option.ClientOption) (*secretmanager.Client, error) {
	return secretmanager.NewClient(ctx, opts...)
}

type accessClient interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	Close() error
}

type cachedSecret struct {
	value     string
	canonical string
	version   string
	fetchedAt time.Time
	source    string
}

// Fetcher resolves secret references. Resolution order is cache, Secret
// Manager, then the local fallback file; access failures that look like a
// missing local setup (permission, auth, transport) fall through to the
// fallback file while NotFound does not.
type Fetcher struct {
	client     accessClient
	ownsClient bool

	logger *zap.Logger

	env            string
	defaultProject string
	projectByEnv   map[string]string
	versionPins    map[string]string

	fallbackPath string
	fallbackOnce sync.Once
	fallbackVals map[string]string
	fallbackErr  error

	mu       sync.RWMutex
	cache    map[string]cachedSecret
	watchers map[string][]chan struct{}

	latency        metric.Float64Histogram
	latencyOK      bool
	cacheHits      metric.Int64Counter
	cacheHitsOK    bool
}

type fetcherOptions struct {
	logger       *zap.Logger
	env          string
	defaultProj  string
	projectByEnv map[string]string
	fallbackPath string
	meter        metric.Meter
	client       accessClient
	clientOpts   []option.ClientOption
	versionPins  map[string]string
}

// Option configures NewFetcher.
type Option func(*fetcherOptions)

// WithLogger sets the diagnostic logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *fetcherOptions) { o.logger = logger }
}

// WithEnvironment names the deploy environment used for project lookup.
func WithEnvironment(env string) Option {
	return func(o *fetcherOptions) { o.env = strings.ToLower(strings.TrimSpace(env)) }
}

// WithDefaultProject sets the project used when no per-environment mapping matches.
func WithDefaultProject(projectID string) Option {
	return func(o *fetcherOptions) { o.defaultProj = strings.TrimSpace(projectID) }
}

// WithProjectMap maps environment names to Secret Manager project IDs.
func WithProjectMap(m map[string]string) Option {
	return func(o *fetcherOptions) { o.projectByEnv = cloneMap(m) }
}

// WithFallbackFile sets the path of the local fallback secrets file.
func WithFallbackFile(path string) Option {
	return func(o *fetcherOptions) { o.fallbackPath = strings.TrimSpace(path) }
}

// WithMeter overrides the OpenTelemetry meter.
func WithMeter(m metric.Meter) Option {
	return func(o *fetcherOptions) { o.meter = m }
}

// WithSecretManagerClient injects a prebuilt client, used by tests.
func WithSecretManagerClient(client accessClient) Option {
	return func(o *fetcherOptions) { o.client = client }
}

// WithClientOptions passes client options through to the Secret Manager client.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(o *fetcherOptions) { o.clientOpts = append(o.clientOpts, opts...) }
}

// WithVersionPins pins specific versions per canonical reference, optionally
// scoped by environment with an "env:" prefix.
func WithVersionPins(pins map[string]string) Option {
	return func(o *fetcherOptions) { o.versionPins = cloneMap(pins) }
}

// NewFetcher constructs a Fetcher. When the Secret Manager client cannot be
// created the fetcher still works, serving only the local fallback file.
func NewFetcher(ctx context.Context, opts ...Option) (*Fetcher, error) {
	o := fetcherOptions{
		logger:       zap.NewNop(),
		env:          strings.ToLower(strings.TrimSpace(os.Getenv("POS_ENVIRONMENT"))),
		fallbackPath: defaultFallbackPath,
		projectByEnv: map[string]string{},
		versionPins:  map[string]string{},
	}
	if o.env == "" {
		o.env = defaultEnvironment
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}

	meter := o.meter
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(meterName)
	}
	latency, latencyErr := meter.Float64Histogram(
		"secrets.fetch.latency",
		metric.WithUnit("ms"),
		metric.WithDescription("Latency in milliseconds for secret fetch attempts"),
	)
	if latencyErr != nil {
		o.logger.Warn("secrets: unable to register latency metric", zap.Error(latencyErr))
	}
	cacheHits, hitsErr := meter.Int64Counter(
		"secrets.fetch.cache_hits",
		metric.WithDescription("Count of cache hits when resolving secrets"),
	)
	if hitsErr != nil {
		o.logger.Warn("secrets: unable to register cache hit metric", zap.Error(hitsErr))
	}

	f := &Fetcher{
		logger:         o.logger,
		env:            o.env,
		defaultProject: o.defaultProj,
		projectByEnv:   cloneMap(o.projectByEnv),
		versionPins:    cloneMap(o.versionPins),
		fallbackPath:   o.fallbackPath,
		cache:          make(map[string]cachedSecret),
		watchers:       make(map[string][]chan struct{}),
		latency:        latency,
		latencyOK:      latencyErr == nil,
		cacheHits:      cacheHits,
		cacheHitsOK:    hitsErr == nil,
	}

	if o.client != nil {
		f.client = o.client
	} else if client, err := secretManagerClientFactory(ctx, o.clientOpts...); err != nil {
		o.logger.Warn("secrets: secret manager client unavailable; operating in fallback mode", zap.Error(err))
	} else {
		f.client = client
		f.ownsClient = true
	}
	return f, nil
}

// Close releases the client and closes all subscriber channels.
func (f *Fetcher) Close() error {
	f.mu.Lock()
	for canonical, chans := range f.watchers {
		delete(f.watchers, canonical)
		for _, ch := range chans {
			closeQuietly(ch)
		}
	}
	f.mu.Unlock()

	if f.ownsClient && f.client != nil {
		return f.client.Close()
	}
	return nil
}

// Resolve returns the value for a secret:// reference.
func (f *Fetcher) Resolve(ctx context.Context, ref string) (string, error) {
	start := time.Now()
	parsed, err := parseRef(ref)
	if err != nil {
		return "", err
	}

	version := f.pinnedVersion(parsed)
	key := cacheKey(parsed.canonical, version)
	if value, ok := f.fromCache(key); ok {
		f.countCacheHit(ctx, parsed)
		f.observe(ctx, time.Since(start), "cache", nil)
		return value, nil
	}

	projectID := f.resolveProject(parsed)
	if projectID != "" && f.client != nil {
		value, fetchErr := f.accessRemote(ctx, projectID, parsed.secret, version)
		if fetchErr == nil {
			f.store(key, value, parsed.canonical, version, "remote")
			f.observe(ctx, time.Since(start), "remote", nil)
			return value, nil
		}
		if !shouldFallback(fetchErr) {
			f.observe(ctx, time.Since(start), "error", fetchErr)
			return "", fmt.Errorf("secrets: fetch failed for %s: %w", parsed.canonical, fetchErr)
		}
		f.logger.Debug("secrets: falling back to local secrets", zap.String("ref", parsed.canonical), zap.Error(fetchErr))
	}

	value, ok := f.fromFallback(parsed, version)
	if !ok {
		err := fmt.Errorf("secrets: fallback value not found for %s", parsed.canonical)
		f.observe(ctx, time.Since(start), "error", err)
		return "", err
	}
	f.store(key, value, parsed.canonical, version, "fallback")
	f.observe(ctx, time.Since(start), "fallback", nil)
	return value, nil
}

// Invalidate drops cached values for ref and wakes its subscribers.
func (f *Fetcher) Invalidate(ref string) {
	parsed, err := parseRef(ref)
	if err != nil {
		return
	}

	f.mu.Lock()
	for key, entry := range f.cache {
		if entry.canonical == parsed.canonical {
			delete(f.cache, key)
		}
	}
	chans := f.watchers[parsed.canonical]
	f.mu.Unlock()

	for _, ch := range chans {
		if ch == nil {
			continue
		}
		signalQuietly(ch)
	}
}

// Subscribe returns a channel that receives a tick whenever the secret is
// invalidated, plus a cancel function to unregister.
func (f *Fetcher) Subscribe(ref string) (<-chan struct{}, func()) {
	parsed, err := parseRef(ref)
	if err != nil {
		ch := make(chan struct{})
		close(ch)
		return ch, func() {}
	}

	ch := make(chan struct{}, 1)
	f.mu.Lock()
	f.watchers[parsed.canonical] = append(f.watchers[parsed.canonical], ch)
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		chans := f.watchers[parsed.canonical]
		for i, watcher := range chans {
			if watcher == ch {
				chans = append(chans[:i], chans[i+1:]...)
				break
			}
		}
		if len(chans) == 0 {
			delete(f.watchers, parsed.canonical)
		} else {
			f.watchers[parsed.canonical] = chans
		}
	}
	return ch, cancel
}

// Notify handles an external rotation event for ref.
func (f *Fetcher) Notify(ref string) {
	f.Invalidate(ref)
}

func (f *Fetcher) fromCache(key string) (string, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	entry, ok := f.cache[key]
	return entry.value, ok
}

func (f *Fetcher) store(key, value, canonical, version, source string) {
	f.mu.Lock()
	f.cache[key] = cachedSecret{
		value:     value,
		canonical: canonical,
		version:   version,
		fetchedAt: time.Now(),
		source:    source,
	}
	f.mu.Unlock()
}

func (f *Fetcher) accessRemote(ctx context.Context, projectID, name, version string) (string, error) {
	resource := fmt.Sprintf("projects/%s/secrets/%s/versions/%s", projectID, name, version)
	resp, err := f.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: resource})
	if err != nil {
		return "", err
	}
	if resp == nil || resp.Payload == nil {
		return "", fmt.Errorf("secret manager returned empty payload for %s", resource)
	}
	return string(resp.Payload.GetData()), nil
}

func (f *Fetcher) resolveProject(ref secretRef) string {
	if ref.project != "" {
		return ref.project
	}
	if id := strings.TrimSpace(f.projectByEnv[f.env]); id != "" {
		return id
	}
	return strings.TrimSpace(f.defaultProject)
}

func (f *Fetcher) pinnedVersion(ref secretRef) string {
	if ref.version != "" {
		return ref.version
	}
	if pin := strings.TrimSpace(f.versionPins[f.env+":"+ref.canonical]); pin != "" {
		return pin
	}
	if pin := strings.TrimSpace(f.versionPins[ref.canonical]); pin != "" {
		return pin
	}
	return "latest"
}

func (f *Fetcher) fromFallback(ref secretRef, version string) (string, bool) {
	f.loadFallbackFile()
	if f.fallbackErr != nil {
		f.logger.Debug("secrets: fallback load error", zap.Error(f.fallbackErr))
		return "", false
	}
	if val, ok := f.fallbackVals[cacheKey(ref.canonical, version)]; ok {
		return val, true
	}
	val, ok := f.fallbackVals[ref.canonical]
	return val, ok
}

// loadFallbackFile parses the local dotfile once. Lines are KEY=VALUE where
// KEY is a secret:// (or legacy sm://) reference; blank lines and # comments
// are skipped.
func (f *Fetcher) loadFallbackFile() {
	f.fallbackOnce.Do(func() {
		f.fallbackVals = map[string]string{}

		path := strings.TrimSpace(f.fallbackPath)
		if path == "" {
			return
		}
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}

		file, err := os.Open(path)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				f.fallbackErr = fmt.Errorf("secrets: unable to open fallback file %s: %w", path, err)
			}
			return
		}
		defer file.Close()

		values := make(map[string]string)
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			key, value, found := strings.Cut(line, "=")
			key = strings.TrimSpace(key)
			value = strings.TrimSpace(value)
			if !found || key == "" {
				continue
			}
			if strings.HasPrefix(key, "sm://") {
				key = "secret://" + strings.TrimPrefix(key, "sm://")
			}
			parsed, err := parseRef(key)
			if err != nil {
				values[key] = value
				continue
			}
			version := parsed.version
			if version == "" {
				version = "latest"
			}
			values[parsed.canonical] = value
			values[cacheKey(parsed.canonical, version)] = value
		}
		if err := scanner.Err(); err != nil {
			f.fallbackErr = fmt.Errorf("secrets: failed reading %s: %w", path, err)
		}
		f.fallbackVals = values
	})
}

func (f *Fetcher) observe(ctx context.Context, d time.Duration, source string, err error) {
	if !f.latencyOK {
		return
	}
	attrs := []attribute.KeyValue{attribute.String("source", source)}
	if err != nil {
		attrs = append(attrs, attribute.String("error", err.Error()))
	}
	f.latency.Record(ctx, float64(d)/float64(time.Millisecond), metric.WithAttributes(attrs...))
}

func (f *Fetcher) countCacheHit(ctx context.Context, ref secretRef) {
	if !f.cacheHitsOK {
		return
	}
	digest := sha256.Sum256([]byte(ref.canonical))
	f.cacheHits.Add(ctx, 1, metric.WithAttributes(
		attribute.String("secret", hex.EncodeToString(digest[:8])),
	))
}

type secretRef struct {
	canonical string
	secret    string
	version   string
	project   string
}

// parseRef parses secret://NAME with optional version and project query
// parameters. The canonical form drops the query so cache keys stay stable.
func parseRef(ref string) (secretRef, error) {
	if strings.TrimSpace(ref) == "" {
		return secretRef{}, errors.New("secrets: empty reference")
	}
	u, err := url.Parse(ref)
	if err != nil {
		return secretRef{}, fmt.Errorf("secrets: invalid reference %q: %w", ref, err)
	}
	if u.Scheme != "secret" {
		return secretRef{}, fmt.Errorf("secrets: unsupported scheme %q", u.Scheme)
	}
	name := strings.Trim(strings.TrimPrefix(u.Host+u.Path, "/"), "/")
	if name == "" {
		return secretRef{}, fmt.Errorf("secrets: missing secret name in %q", ref)
	}

	canonical := *u
	canonical.RawQuery = ""
	canonical.Fragment = ""

	query := u.Query()
	return secretRef{
		canonical: canonical.String(),
		secret:    name,
		version:   strings.TrimSpace(query.Get("version")),
		project:   strings.TrimSpace(query.Get("project")),
	}, nil
}

func cacheKey(canonical, version string) string {
	return canonical + "#" + version
}

func cloneMap(src map[string]string) map[string]string {
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// shouldFallback reports whether a Secret Manager failure indicates a local
// environment without access rather than a genuinely missing secret.
func shouldFallback(err error) bool {
	switch status.Code(err) {
	case codes.PermissionDenied, codes.Unauthenticated, codes.Unavailable, codes.DeadlineExceeded:
		return true
	default:
		return false
	}
}

func signalQuietly(ch chan struct{}) {
	defer func() { _ = recover() }()
	select {
	case ch <- struct{}{}:
	default:
	}
}

func closeQuietly(ch chan struct{}) {
	defer func() { _ = recover() }()
	close(ch)
}
