package generative

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
)

var (
	// ErrNotReady is returned by Generate unless a model variant is loaded.
	ErrNotReady = errors.New("generative model not ready")

	// ErrVariantUnavailable is returned by a runtime that has no model configured for a variant.
	ErrVariantUnavailable = errors.New("model variant not configured")
)

// State is the loader lifecycle state.
type State string

const (
	StateUninitialized    State = "UNINITIALIZED"
	StateLoadingQuantized State = "LOADING_QUANTIZED"
	StateQuantizedReady   State = "QUANTIZED_READY"
	StateLoadingFallback  State = "LOADING_FALLBACK"
	StateFallbackReady    State = "FALLBACK_READY"
	StateFailed           State = "FAILED"
)

// Ready reports whether the state allows inference.
func (s State) Ready() bool {
	return s == StateQuantizedReady || s == StateFallbackReady
}

// LoadState is the externally reported outcome of loading.
type LoadState string

const (
	LoadUninitialized         LoadState = "UNINITIALIZED"
	LoadQuantized             LoadState = "QUANTIZED"
	LoadFallbackFullPrecision LoadState = "FALLBACK_FULL_PRECISION"
	LoadFallbackOffloaded     LoadState = "FALLBACK_OFFLOADED"
	LoadFailed                LoadState = "FAILED"
)

// LoadStateNames lists every LoadState as a string, for gauges.
func LoadStateNames() []string {
	return []string{
		string(LoadUninitialized),
		string(LoadQuantized),
		string(LoadFallbackFullPrecision),
		string(LoadFallbackOffloaded),
		string(LoadFailed),
	}
}

// Variant is one way of loading the model.
type Variant int

const (
	// VariantQuantized is the 4-bit quantized model.
	VariantQuantized Variant = iota
	// VariantFullPrecision is the unquantized model.
	VariantFullPrecision
	// VariantOffloaded is the unquantized model with layers kept off the accelerator.
	VariantOffloaded
)

func (v Variant) String() string {
	switch v {
	case VariantQuantized:
		return "quantized"
	case VariantFullPrecision:
		return "full_precision"
	case VariantOffloaded:
		return "offloaded"
	default:
		return fmt.Sprintf("variant(%d)", int(v))
	}
}

// fallbackOrder is tried after the quantized variant fails.
var fallbackOrder = []Variant{VariantFullPrecision, VariantOffloaded}

// Transition records one state change.
type Transition struct {
	From State     `json:"from"`
	To   State     `json:"to"`
	At   time.Time `json:"at"`
}

// LoadError is returned when every variant failed to load. It keeps the
// quantized error and every fallback error.
type LoadError struct {
	Quantized error
	errs      *multierror.Error
}

func newLoadError() *LoadError {
	return &LoadError{errs: &multierror.Error{ErrorFormat: joinAttempts}}
}

func (e *LoadError) add(v Variant, err error) {
	if v == VariantQuantized {
		e.Quantized = err
	}
	e.errs = multierror.Append(e.errs, fmt.Errorf("%s: %w", v, err))
}

// Errors returns one error per attempted variant, in attempt order.
func (e *LoadError) Errors() []error { return e.errs.WrappedErrors() }

func (e *LoadError) Error() string {
	return "cannot load generative model: " + e.errs.Error()
}

func (e *LoadError) Unwrap() error { return e.errs.ErrorOrNil() }

func joinAttempts(errs []error) string {
	parts := make([]string, len(errs))
	for i, err := range errs {
		parts[i] = err.Error()
	}
	return strings.Join(parts, "; ")
}
