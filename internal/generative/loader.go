// Package generative loads the generative language model and runs inference on it.
//
// Loading follows a fixed cascade: the quantized variant first, then the
// full-precision variant, then the offloaded variant. The first variant that
// loads serves every later request. When all fail the loader stays FAILED for
// the life of the process and Generate reports ErrNotReady.
package generative

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// Options configure inference on the loaded model.
type Options struct {
	MaxInputTokens int
	MaxNewTokens   int
	Temperature    float64
	TopP           float64
	// Parallelism bounds concurrent inferences. 1 serializes them.
	Parallelism int64
	// Timeout bounds each Generate call. Zero means no extra bound.
	Timeout time.Duration
}

// DefaultOptions returns the sampling defaults.
func DefaultOptions() Options {
	return Options{
		MaxInputTokens: 512,
		MaxNewTokens:   256,
		Temperature:    0.7,
		TopP:           0.9,
		Parallelism:    1,
	}
}

// Loader owns the model lifecycle and doubles as the handle used for inference.
// It is safe for concurrent use.
type Loader struct {
	runtime Runtime
	opts    Options
	sem     *semaphore.Weighted
	logger  *slog.Logger

	once    sync.Once
	loadErr error

	mu          sync.RWMutex
	state       State
	variant     Variant
	session     Session
	transitions []Transition
	failures    *LoadError
}

func NewLoader(rt Runtime, opts Options) *Loader {
	if opts.Parallelism <= 0 {
		opts.Parallelism = 1
	}
	return &Loader{
		runtime: rt,
		opts:    opts,
		sem:     semaphore.NewWeighted(opts.Parallelism),
		logger:  slog.Default().With("component", "generative", "runtime", rt.Name()),
		state:   StateUninitialized,
	}
}

// Load runs the cascade once. Later calls return the first call's result.
func (l *Loader) Load(ctx context.Context) error {
	l.once.Do(func() { l.loadErr = l.load(ctx) })
	return l.loadErr
}

func (l *Loader) load(ctx context.Context) error {
	failures := newLoadError()

	l.transition(StateLoadingQuantized)
	if l.try(ctx, VariantQuantized, failures) {
		l.transition(StateQuantizedReady)
		return nil
	}

	l.transition(StateLoadingFallback)
	for _, v := range fallbackOrder {
		if l.try(ctx, v, failures) {
			l.transition(StateFallbackReady)
			return nil
		}
	}

	l.mu.Lock()
	l.failures = failures
	l.mu.Unlock()
	l.transition(StateFailed)
	l.logger.Error("generative model unavailable, continuing without analysis", "error", failures)
	return failures
}

// try loads one variant and installs it on success.
func (l *Loader) try(ctx context.Context, v Variant, failures *LoadError) bool {
	model := l.runtime.Model(v)
	l.logger.Info("loading model variant", "variant", v, "model", model)

	sess, err := l.runtime.Load(ctx, v)
	if err != nil {
		l.logger.Warn("model variant failed to load", "variant", v, "model", model, "error", err)
		failures.add(v, err)
		return false
	}

	l.mu.Lock()
	l.session = sess
	l.variant = v
	l.mu.Unlock()
	l.logger.Info("model variant loaded", "variant", v, "model", model)
	return true
}

func (l *Loader) transition(to State) {
	l.mu.Lock()
	from := l.state
	l.state = to
	l.transitions = append(l.transitions, Transition{From: from, To: to, At: time.Now()})
	l.mu.Unlock()
	l.logger.Debug("model state changed", "from", from, "to", to)
}

func (l *Loader) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// LoadState maps the lifecycle state to the reported load outcome.
func (l *Loader) LoadState() LoadState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	switch l.state {
	case StateQuantizedReady:
		return LoadQuantized
	case StateFallbackReady:
		if l.variant == VariantOffloaded {
			return LoadFallbackOffloaded
		}
		return LoadFallbackFullPrecision
	case StateFailed:
		return LoadFailed
	default:
		return LoadUninitialized
	}
}

func (l *Loader) Transitions() []Transition {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Transition(nil), l.transitions...)
}

// Ready reports whether Generate can run.
func (l *Loader) Ready() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.Ready() && l.session != nil
}

// Generate runs the prompt on the loaded variant. The prompt is truncated to
// MaxInputTokens and any echo of it is removed from the output.
func (l *Loader) Generate(ctx context.Context, prompt, language string) (string, error) {
	l.mu.RLock()
	state, sess := l.state, l.session
	l.mu.RUnlock()
	if !state.Ready() || sess == nil {
		return "", fmt.Errorf("%w: state %s", ErrNotReady, state)
	}

	// the deadline covers queueing for a slot as well as inference
	if l.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.opts.Timeout)
		defer cancel()
	}

	if err := l.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("wait for inference slot: %w", err)
	}
	defer l.sem.Release(1)

	input := truncateTokens(prompt, l.opts.MaxInputTokens)
	start := time.Now()
	out, err := sess.Generate(ctx, input, Params{
		Temperature:    l.opts.Temperature,
		TopP:           l.opts.TopP,
		MaxNewTokens:   l.opts.MaxNewTokens,
		MaxInputTokens: l.opts.MaxInputTokens,
	})
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	l.logger.Debug("generation finished", "language", language, "duration", time.Since(start))
	return stripEcho(out, input), nil
}

// Info describes the runtime and load outcome.
type Info struct {
	Runtime      string            `json:"runtime"`
	State        State             `json:"state"`
	LoadState    LoadState         `json:"load_state"`
	Variant      string            `json:"variant,omitempty"`
	ModelName    string            `json:"model_name,omitempty"`
	Quantization string            `json:"quantization"`
	Models       map[string]string `json:"models"`
	LoadErrors   []string          `json:"load_errors,omitempty"`
	Transitions  []Transition      `json:"transitions"`
}

func (l *Loader) Info() Info {
	info := Info{
		Runtime:      l.runtime.Name(),
		LoadState:    l.LoadState(),
		Quantization: "None",
		Models:       map[string]string{},
		Transitions:  l.Transitions(),
	}
	for _, v := range []Variant{VariantQuantized, VariantFullPrecision, VariantOffloaded} {
		info.Models[v.String()] = l.runtime.Model(v)
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	info.State = l.state
	if l.state.Ready() {
		info.Variant = l.variant.String()
		info.ModelName = l.runtime.Model(l.variant)
		if l.variant == VariantQuantized {
			info.Quantization = "4-bit"
		}
	}
	if l.failures != nil {
		for _, err := range l.failures.Errors() {
			info.LoadErrors = append(info.LoadErrors, err.Error())
		}
	}
	return info
}

// Close releases the loaded session. Generate reports ErrNotReady afterwards.
func (l *Loader) Close() error {
	l.mu.Lock()
	sess := l.session
	l.session = nil
	l.mu.Unlock()
	if sess == nil {
		return nil
	}
	return sess.Close()
}
