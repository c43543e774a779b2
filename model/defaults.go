package model

// DefaultStagePrompts is the prompt used for each stage when a run request names none.
var DefaultStagePrompts = map[BookStage]string{
	StageIdea:        "Summarise the core idea in one paragraph.",
	StageStructure:   "Propose chapter outline based on the supplied context.",
	StageTitle:       "Generate five compelling title options.",
	StageResearch:    "List three research directions relevant to the outline.",
	StageFactMapping: "Map key facts to the existing subchapters.",
	StageEmotional:   "Suggest emotional narratives to support the facts.",
	StageGuidelines:  "Draft creative guidelines for the next writing pass.",
	StageWriting:     "Execute the seven-pass writing loop to produce publication-ready drafts.",
	StageComplete:    "Provide closing remarks confirming completion.",
}

// StagePrompt pairs a stage with its prompt text.
type StagePrompt struct {
	Stage  BookStage
	Prompt string
}

// DefaultStageSequence returns every stage in pipeline order with its default prompt.
func DefaultStageSequence() []StagePrompt {
	seq := make([]StagePrompt, 0, len(AllStages))
	for _, stage := range AllStages {
		seq = append(seq, StagePrompt{Stage: stage, Prompt: DefaultStagePrompts[stage]})
	}
	return seq
}
