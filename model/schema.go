package model

import "fmt"

// JSON-schema descriptors sent to providers for structured output.
// Engine-owned fields (ids, timestamps) are optional so models may omit them.

func str() map[string]any { return map[string]any{"type": "string"} }

func strLen(min, max int) map[string]any {
	s := map[string]any{"type": "string", "minLength": min}
	if max > 0 {
		s["maxLength"] = max
	}
	return s
}

func integer(min int) map[string]any { return map[string]any{"type": "integer", "minimum": min} }

func intRange(min, max int) map[string]any {
	i := integer(min)
	i["maximum"] = max
	return i
}

func boolean() map[string]any { return map[string]any{"type": "boolean"} }

func arr(items map[string]any) map[string]any {
	return map[string]any{"type": "array", "items": items}
}

func arrLen(items map[string]any, min, max int) map[string]any {
	a := arr(items)
	a["minItems"] = min
	if max > 0 {
		a["maxItems"] = max
	}
	return a
}

func enum[T ~string](values ...T) map[string]any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return map[string]any{"type": "string", "enum": out}
}

func obj(props map[string]any, required ...string) map[string]any {
	req := make([]any, len(required))
	for i, r := range required {
		req[i] = r
	}
	return map[string]any{"type": "object", "properties": props, "required": req}
}

func citationSchema() map[string]any {
	return obj(map[string]any{
		"source_title":     str(),
		"author":           str(),
		"publication_date": str(),
		"url":              strLen(0, 400),
		"page":             str(),
		"source_type":      enum(sourceTypes...),
	}, "source_title")
}

// BookStructureSchema describes BookStructure.
func BookStructureSchema() map[string]any {
	subchapter := obj(map[string]any{
		"id":                  str(),
		"title":               strLen(1, 200),
		"summary":             strLen(1, 1000),
		"order":               integer(1),
		"learning_objectives": arr(str()),
		"related_subchapters": arr(str()),
	}, "title", "summary", "order")
	chapter := obj(map[string]any{
		"id":            str(),
		"title":         strLen(1, 200),
		"summary":       strLen(1, 1200),
		"order":         integer(1),
		"subchapters":   arr(subchapter),
		"narrative_arc": strLen(0, 1000),
	}, "title", "summary", "order", "subchapters")
	return obj(map[string]any{
		"project_id": str(),
		"version":    integer(1),
		"chapters":   arr(chapter),
		"synopsis":   strLen(0, 2000),
	}, "chapters")
}

// TitleBatchSchema describes TitleBatch.
func TitleBatchSchema() map[string]any {
	option := obj(map[string]any{
		"title":     strLen(2, 120),
		"rationale": strLen(2, 400),
	}, "title", "rationale")
	return obj(map[string]any{"options": arrLen(option, 1, 10)}, "options")
}

// ResearchPromptBatchSchema describes ResearchPromptBatch.
func ResearchPromptBatchSchema() map[string]any {
	prompt := obj(map[string]any{
		"focus_summary":     strLen(2, 400),
		"focus_subchapters": arr(str()),
		"prompt_text":       strLen(5, 0),
		"desired_sources":   arr(str()),
		"additional_notes":  strLen(0, 600),
	}, "focus_summary", "prompt_text")
	return obj(map[string]any{"prompts": arrLen(prompt, 1, 5)}, "prompts")
}

// FactMappingBatchSchema describes FactMappingBatch.
func FactMappingBatchSchema() map[string]any {
	fact := obj(map[string]any{
		"id":             str(),
		"project_id":     str(),
		"subchapter_id":  str(),
		"upload_id":      integer(0),
		"prompt_index":   integer(0),
		"summary":        strLen(1, 800),
		"detail":         str(),
		"citation":       citationSchema(),
		"redundancy_key": str(),
	}, "subchapter_id", "summary", "detail", "citation")
	coverage := obj(map[string]any{
		"subchapter_id": str(),
		"fact_count":    integer(0),
	}, "subchapter_id", "fact_count")
	return obj(map[string]any{
		"project_id": str(),
		"facts":      arr(fact),
		"coverage":   arr(coverage),
	}, "facts")
}

// ResearchFactCandidateSchema describes ResearchFactCandidate.
func ResearchFactCandidateSchema() map[string]any {
	return obj(map[string]any{
		"id":              str(),
		"project_id":      str(),
		"upload_id":       integer(0),
		"prompt_index":    integer(0),
		"source_filename": str(),
		"summary":         strLen(1, 800),
		"detail":          str(),
		"citation":        citationSchema(),
	}, "summary", "detail", "citation")
}

// EmotionalLayerBatchSchema describes EmotionalLayerBatch.
func EmotionalLayerBatchSchema() map[string]any {
	persona := obj(map[string]any{
		"name":               strLen(1, 120),
		"background":         strLen(1, 1500),
		"voice":              strLen(1, 600),
		"signature_themes":   arr(str()),
		"guiding_principles": arr(str()),
	}, "name", "background", "voice")
	entry := obj(map[string]any{
		"id":             str(),
		"project_id":     str(),
		"subchapter_id":  str(),
		"story_hook":     strLen(1, 1500),
		"persona_note":   strLen(0, 500),
		"analogy":        strLen(0, 1000),
		"emotional_goal": strLen(0, 400),
		"created_by":     enum(agentRoles...),
	}, "subchapter_id", "story_hook")
	return obj(map[string]any{
		"project_id": str(),
		"persona":    persona,
		"entries":    arr(entry),
	}, "persona", "entries")
}

// CreativeGuidelineBatchSchema describes CreativeGuidelineBatch.
func CreativeGuidelineBatchSchema() map[string]any {
	factRef := obj(map[string]any{
		"fact_id":   str(),
		"summary":   strLen(1, 600),
		"citation":  citationSchema(),
		"rationale": strLen(0, 400),
	}, "fact_id", "summary", "citation")
	guideline := obj(map[string]any{
		"id":                   str(),
		"project_id":           str(),
		"subchapter_id":        str(),
		"objectives":           arrLen(str(), 1, 0),
		"must_include_facts":   arr(factRef),
		"emotional_beats":      arr(str()),
		"narrative_voice":      strLen(0, 400),
		"structural_reminders": arr(str()),
		"success_metrics":      arr(str()),
		"risks":                arr(str()),
		"status":               enum(GuidelineDraft, GuidelineFinal, GuidelineNeedsReview),
		"created_by":           enum(agentRoles...),
		"version":              integer(1),
	}, "subchapter_id", "objectives")
	return obj(map[string]any{
		"project_id": str(),
		"version":    integer(1),
		"summary":    strLen(0, 2000),
		"readiness":  enum(ReadinessDraft, ReadinessReady),
		"guidelines": arr(guideline),
	}, "guidelines")
}

// WriterDraftBatchSchema describes WriterDraftBatch.
func WriterDraftBatchSchema() map[string]any {
	entry := obj(map[string]any{
		"subchapter_id": str(),
		"content":       str(),
		"summary":       str(),
		"word_count":    integer(0),
	}, "subchapter_id", "content")
	return obj(map[string]any{
		"subchapters": arr(entry),
		"overview":    str(),
	}, "subchapters")
}

// CritiqueBatchSchema describes CritiqueBatch.
func CritiqueBatchSchema() map[string]any {
	feedback := obj(map[string]any{
		"message":   str(),
		"severity":  enum(SeverityInfo, SeverityWarning, SeverityError),
		"category":  str(),
		"rationale": str(),
	}, "message", "severity")
	entry := obj(map[string]any{
		"subchapter_id": str(),
		"overview":      str(),
		"feedback":      arr(feedback),
	}, "subchapter_id", "overview")
	return obj(map[string]any{
		"subchapters": arr(entry),
		"summary":     str(),
	}, "subchapters")
}

// ImplementationBatchSchema describes ImplementationBatch.
func ImplementationBatchSchema() map[string]any {
	entry := obj(map[string]any{
		"subchapter_id":     str(),
		"content":           str(),
		"summary":           str(),
		"word_count":        integer(0),
		"resolved_feedback": arr(str()),
		"notes":             str(),
	}, "subchapter_id", "content")
	return obj(map[string]any{
		"subchapters": arr(entry),
		"summary":     str(),
	}, "subchapters")
}

// WritingBatchSchema describes WritingBatch.
func WritingBatchSchema() map[string]any {
	feedbackItem := obj(map[string]any{
		"id":                     str(),
		"message":                strLen(1, 600),
		"severity":               enum(SeverityInfo, SeverityWarning, SeverityError),
		"category":               strLen(0, 100),
		"rationale":              strLen(0, 600),
		"addressed":              boolean(),
		"addressed_in_iteration": str(),
	}, "message")
	iteration := obj(map[string]any{
		"id":            str(),
		"subchapter_id": str(),
		"cycle":         integer(0),
		"role":          enum(agentRoles...),
		"content":       strLen(1, 0),
		"summary":       strLen(0, 600),
		"word_count":    integer(0),
		"feedback":      arr(feedbackItem),
	}, "subchapter_id", "cycle", "role", "content")
	state := obj(map[string]any{
		"subchapter_id":        str(),
		"title":                strLen(1, 200),
		"chapter_title":        strLen(0, 200),
		"order_label":          str(),
		"current_cycle":        integer(0),
		"status":               enum(DraftStatusDraft, DraftStatusInReview, DraftStatusReady),
		"iterations":           arr(iteration),
		"outstanding_feedback": arr(feedbackItem),
		"final_word_count":     integer(0),
	}, "subchapter_id", "title")
	return obj(map[string]any{
		"project_id":       str(),
		"cycle_count":      intRange(1, 5),
		"readiness":        enum(ReadinessDraft, ReadinessReady),
		"summary":          strLen(0, 2000),
		"subchapters":      arr(state),
		"total_word_count": integer(0),
	}, "project_id", "subchapters")
}

var schemas = map[string]func() map[string]any{
	"BookStructure":          BookStructureSchema,
	"TitleBatch":             TitleBatchSchema,
	"ResearchPromptBatch":    ResearchPromptBatchSchema,
	"FactMappingBatch":       FactMappingBatchSchema,
	"ResearchFactCandidate":  ResearchFactCandidateSchema,
	"EmotionalLayerBatch":    EmotionalLayerBatchSchema,
	"CreativeGuidelineBatch": CreativeGuidelineBatchSchema,
	"WritingBatch":           WritingBatchSchema,
	"WriterDraftBatch":       WriterDraftBatchSchema,
	"CritiqueBatch":          CritiqueBatchSchema,
	"ImplementationBatch":    ImplementationBatchSchema,
}

// Schema returns the schema registered under name.
func Schema(name string) (map[string]any, error) {
	build, ok := schemas[name]
	if !ok {
		return nil, fmt.Errorf("unknown schema: %s", name)
	}
	return build(), nil
}
