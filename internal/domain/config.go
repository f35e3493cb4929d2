package domain

// VectorConfig holds vectorization settings shared by query and catalog embedding.
type VectorConfig struct {
	Model               string
	Dimensions          int
	DocumentInstruction string
	QueryInstruction    string
}

// DefaultVectorConfig returns the defaults for a 1024-dimension OpenAI-compatible model.
func DefaultVectorConfig() VectorConfig {
	return VectorConfig{
		Model:               "Qwen/Qwen3-Embedding-8B",
		Dimensions:          1024,
		DocumentInstruction: "Represent this road safety intervention for retrieval: ",
		QueryInstruction:    "Find road safety interventions for this defect: ",
	}
}
