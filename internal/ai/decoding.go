package ai

import "fmt"

const maxGroundedTemperature = 0.5

// DecodingConfig is fixed per generator. Grounded answers use a low
// temperature so repeated questions give the same citations.
type DecodingConfig struct {
	Temperature     float32 `json:"temperature"`
	TopP            float32 `json:"top_p"`
	TopK            int     `json:"top_k"`
	MaxOutputTokens int     `json:"max_output_tokens"`
}

func DefaultDecodingConfig() DecodingConfig {
	return DecodingConfig{
		Temperature:     0.1,
		TopP:            0.8,
		TopK:            20,
		MaxOutputTokens: 1024,
	}
}

func (d DecodingConfig) Validate() error {
	if d.Temperature < 0 || d.Temperature > maxGroundedTemperature {
		return fmt.Errorf("decoding temperature must be within [0, %.1f], got %v", maxGroundedTemperature, d.Temperature)
	}
	if d.TopP <= 0 || d.TopP > 1 {
		return fmt.Errorf("decoding top_p must be within (0, 1], got %v", d.TopP)
	}
	if d.TopK < 0 {
		return fmt.Errorf("decoding top_k must not be negative, got %d", d.TopK)
	}
	if d.MaxOutputTokens <= 0 {
		return fmt.Errorf("decoding max_output_tokens must be positive, got %d", d.MaxOutputTokens)
	}
	return nil
}

// WithDefaults fills zero fields from DefaultDecodingConfig. An all-zero
// config becomes the default; otherwise a zero temperature is kept since
// greedy decoding is a valid choice.
func (d DecodingConfig) WithDefaults() DecodingConfig {
	def := DefaultDecodingConfig()
	if d == (DecodingConfig{}) {
		return def
	}
	if d.TopP == 0 {
		d.TopP = def.TopP
	}
	if d.TopK == 0 {
		d.TopK = def.TopK
	}
	if d.MaxOutputTokens == 0 {
		d.MaxOutputTokens = def.MaxOutputTokens
	}
	return d
}
