package llm

// RouterModel is the NVIDIA NIM model (Mixtral 8x7B Instruct) used for
// intent classification when only an NVIDIA key is configured.
const RouterModel = "mistralai/mixtral-8x7b-instruct-v0.1"

// DevstralModel is Mistral's agentic coding model used by the Build agent.
const DevstralModel = "devstral-small-latest"

// Config carries the provider API keys NewClassifier and NewBuilder choose
// between. Both prefer Mistral when both keys are set, because it's the
// only one that reliably supports tool calling for the Build agent;
// callers that only need classification can use either.
type Config struct {
	NvidiaAPIKey  string
	MistralAPIKey string
}

// NewClassifier returns a Client usable for the Intent Router, or nil if no
// provider is configured.
func NewClassifier(cfg Config) *Client {
	if cfg.MistralAPIKey != "" {
		return NewMistral(cfg.MistralAPIKey, "mistral-small-latest")
	}
	if cfg.NvidiaAPIKey != "" {
		return NewNvidia(cfg.NvidiaAPIKey, RouterModel)
	}
	return nil
}

// NewBuilder returns a Client usable for the Build agent's tool-calling
// loop, preferring Mistral (Devstral supports tools; NVIDIA NIM does not).
// The bool reports whether the returned client supports tool calling.
func NewBuilder(cfg Config) (client *Client, supportsTools bool) {
	if cfg.MistralAPIKey != "" {
		return NewMistral(cfg.MistralAPIKey, DevstralModel), true
	}
	if cfg.NvidiaAPIKey != "" {
		return NewNvidia(cfg.NvidiaAPIKey, RouterModel), false
	}
	return nil, false
}
