package settings

const (
	// CurrentSchemaVersion is written into every migrated blob. Blobs saved
	// before versioning carry no schemaVersion and are treated as version 0.
	CurrentSchemaVersion = 2

	// DefaultMaxTokens is the token limit given to models converted from
	// the plain-string model list.
	DefaultMaxTokens = 4096
)

// DefaultPrompts returns the built-in prompt template set.
func DefaultPrompts() PromptConfig {
	return PromptConfig{
		ChapterGeneration: "You are writing a novel titled {novelTitle}. " +
			"Novel description: {novelDescription}\n" +
			"Characters:\n{characters}\n" +
			"Previous chapters:\n{previousChapters}\n" +
			"Write chapter {chapterOrder}, \"{chapterTitle}\", following this outline: {chapterDescription}",
		ChapterSummary: "Summarize the following chapter in a few sentences, " +
			"keeping names and key events:\n{chapterContent}",
		CharacterGeneration: "Create a character for the novel {novelTitle} ({novelDescription}). " +
			"Give a name, gender, personality, background and relationships to existing characters:\n{characters}",
		CharacterSummary: "Summarize this character in one paragraph:\n" +
			"Name: {name}\nPersonality: {personality}\nBackground: {background}\nRelationships: {relationships}",
		PlotGeneration: "Suggest plot developments for the novel {novelTitle}. " +
			"Description: {novelDescription}\nCurrent chapters:\n{chapters}",
		Continuation: "Continue the following text in the same voice and tense:\n{content}",
	}
}

// DefaultModelParameters returns the default sampling parameters.
func DefaultModelParameters() ModelParameters {
	return ModelParameters{
		Temperature: 0.7,
		TopP:        1,
		MaxTokens:   DefaultMaxTokens,
		Stream:      true,
	}
}

// Defaults returns a complete blob for a first start.
func Defaults() AppSettings {
	return AppSettings{
		SchemaVersion:   CurrentSchemaVersion,
		APIs:            []APIConfig{},
		Databases:       []DatabaseConfig{},
		StorageType:     StorageLocal,
		Prompts:         DefaultPrompts(),
		ModelParameters: DefaultModelParameters(),
	}
}
