// Package modes manages named processing configurations: which STT
// provider/model to record with and, optionally, which LLM
// provider/model/prompt rewrites the transcript afterwards.
package modes

// Mode is one user-selectable workflow. Callers always receive copies;
// the registry never hands out shared references.
type Mode struct {
	Key            string `json:"key"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	STTProvider    string `json:"stt_provider"`
	STTModel       string `json:"stt_model"`
	AIProcessing   bool   `json:"ai_processing"`
	LLMProvider    string `json:"llm_provider,omitempty"`
	LLMModel       string `json:"llm_model,omitempty"`
	PromptTemplate string `json:"prompt_template,omitempty"`
	OutputFormat   string `json:"output_format"`
	Builtin        bool   `json:"builtin"`
}

// DefaultModeKey is the built-in mode used when the configured active
// mode no longer exists.
const DefaultModeKey = "voice_to_text"

// builtinModes is the compiled-in set. Keys here can never be created,
// deleted, or renamed through the registry.
var builtinModes = []Mode{
	{
		Key:          "voice_to_text",
		Name:         "Voice to Text",
		Description:  "Plain dictation, no AI rewriting",
		STTProvider:  "whispercpp",
		STTModel:     "base.en",
		AIProcessing: false,
		OutputFormat: "plain",
		Builtin:      true,
	},
	{
		Key:          "clean_text",
		Name:         "Clean Text",
		Description:  "Dictation with filler words removed and punctuation fixed",
		STTProvider:  "whispercpp",
		STTModel:     "base.en",
		AIProcessing: true,
		LLMProvider:  "ollama",
		LLMModel:     "llama3.2",
		PromptTemplate: "Clean up this transcript. Fix punctuation and remove filler " +
			"words, but keep the meaning and wording intact. Reply with only the " +
			"cleaned text, in {{language}}.\n\n{{transcript}}",
		OutputFormat: "plain",
		Builtin:      true,
	},
	{
		Key:          "email",
		Name:         "Email",
		Description:  "Turn dictation into a polished email",
		STTProvider:  "whispercpp",
		STTModel:     "base.en",
		AIProcessing: true,
		LLMProvider:  "ollama",
		LLMModel:     "llama3.2",
		PromptTemplate: "Write a professional email in {{language}} based on this " +
			"dictation. Use the surrounding context if it helps:\n" +
			"{{context}}\n\nDictation:\n{{transcript}}",
		OutputFormat: "plain",
		Builtin:      true,
	},
	{
		Key:          "summary",
		Name:         "Summary",
		Description:  "Summarize the dictation as markdown bullet points",
		STTProvider:  "whispercpp",
		STTModel:     "base.en",
		AIProcessing: true,
		LLMProvider:  "ollama",
		LLMModel:     "llama3.2",
		PromptTemplate: "Summarize the following transcript as concise markdown " +
			"bullet points in {{language}}:\n\n{{transcript}}",
		OutputFormat: "markdown",
		Builtin:      true,
	},
}
