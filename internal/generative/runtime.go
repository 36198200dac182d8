package generative

import "context"

// Params are the sampling settings for one generation.
type Params struct {
	Temperature    float64
	TopP           float64
	MaxNewTokens   int
	MaxInputTokens int
}

// Session is a loaded model.
type Session interface {
	Generate(ctx context.Context, prompt string, p Params) (string, error)
	Close() error
}

// Runtime loads model variants.
type Runtime interface {
	Name() string
	// Model returns the model identifier used for v, or "" when v is not configured.
	Model(v Variant) string
	Load(ctx context.Context, v Variant) (Session, error)
}

// Models names the model to use for each variant.
type Models struct {
	Quantized     string
	FullPrecision string
	// Offloaded defaults to FullPrecision when empty.
	Offloaded string
}

func (m Models) forVariant(v Variant) string {
	switch v {
	case VariantQuantized:
		return m.Quantized
	case VariantFullPrecision:
		return m.FullPrecision
	case VariantOffloaded:
		if m.Offloaded != "" {
			return m.Offloaded
		}
		return m.FullPrecision
	}
	return ""
}

// Disabled is a runtime with no models. Loading it always fails, so the
// service runs without generated analysis.
type Disabled struct{}

func (Disabled) Name() string { return "none" }

func (Disabled) Model(Variant) string { return "" }

func (Disabled) Load(context.Context, Variant) (Session, error) { return nil, ErrVariantUnavailable }
