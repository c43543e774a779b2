package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/richinex/bookforge/config"
	"github.com/richinex/bookforge/docparser"
	"github.com/richinex/bookforge/llm"
	"github.com/richinex/bookforge/manuscript"
	"github.com/richinex/bookforge/model"
	"github.com/richinex/bookforge/orchestration"
	"github.com/richinex/bookforge/storage"
)

// LoadRunRequest reads a run request from a YAML or JSON file.
func LoadRunRequest(path string) (orchestration.RunRequest, error) {
	var req orchestration.RunRequest
	data, err := os.ReadFile(path)
	if err != nil {
		return req, fmt.Errorf("failed to read request file: %w", err)
	}
	if err := yaml.Unmarshal(data, &req); err != nil {
		return req, fmt.Errorf("failed to decode request file %s: %w", path, err)
	}
	for i, s := range req.Stages {
		stage, err := model.ParseBookStage(string(s.Stage))
		if err != nil {
			return req, fmt.Errorf("stages[%d]: %w", i, err)
		}
		req.Stages[i].Stage = stage
	}
	return req, nil
}

// RunPipeline executes req. Flag overrides win over the request's run-level provider.
// With asJSON the raw response is printed instead of the summary.
func RunPipeline(ctx context.Context, app *App, req orchestration.RunRequest, asJSON bool) (*orchestration.RunResponse, error) {
	req.Provider = llm.MergeOverrides(app.Override(), req.Provider)

	resp, err := app.Orchestrator.Run(ctx, req)
	if err != nil {
		return nil, err
	}
	if asJSON {
		enc := json.NewEncoder(app.Out)
		enc.SetIndent("", "  ")
		return resp, enc.Encode(resp)
	}
	printRunResponse(app.Out, resp)
	printTelemetry(app.Out, app.Recorder.Snapshot())
	return resp, nil
}

// ProjectInput holds the fields of a new project.
type ProjectInput struct {
	Title              string
	IdeaSummary        string
	ResearchGuidelines string
	LimitUSD           *float64
}

// CreateProject stores a new project and prints it.
func CreateProject(ctx context.Context, app *App, in ProjectInput) (*storage.Project, error) {
	if strings.TrimSpace(in.IdeaSummary) == "" {
		return nil, errors.New("an idea summary is required")
	}
	limit, err := limitCents(in.LimitUSD)
	if err != nil {
		return nil, err
	}
	p, err := app.Store.CreateProject(ctx, storage.Project{
		Title:              strings.TrimSpace(in.Title),
		IdeaSummary:        strings.TrimSpace(in.IdeaSummary),
		ResearchGuidelines: strings.TrimSpace(in.ResearchGuidelines),
		SpendLimitCents:    limit,
	})
	if err != nil {
		return nil, err
	}
	app.Logger.Info("project created", zap.String("project_id", p.ID))
	printProject(app.Out, p)
	return p, nil
}

// ShowProject prints a project, its latest artifacts and its stage runs.
func ShowProject(ctx context.Context, app *App, id string) error {
	p, err := app.Store.GetProject(ctx, id)
	if err != nil {
		return err
	}
	printProject(app.Out, p)

	heading(app.Out, "Artifacts")
	for _, stage := range model.AllStages {
		a, err := app.Store.LatestArtifact(ctx, id, stage)
		if errors.Is(err, storage.ErrArtifactNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		field(app.Out, string(stage), fmt.Sprintf("v%d  %s", a.Version, truncate(a.Output, 80)))
	}

	candidates, err := app.Store.ListCandidates(ctx, id)
	if err != nil {
		return err
	}
	field(app.Out, "candidates", len(candidates))

	runs, err := app.Store.ListStageRuns(ctx, id)
	if err != nil {
		return err
	}
	printStageRuns(app.Out, runs)
	return nil
}

// SetBudget sets the spend limit in USD, or clears it when limitUSD is nil.
func SetBudget(ctx context.Context, app *App, id string, limitUSD *float64) error {
	limit, err := limitCents(limitUSD)
	if err != nil {
		return err
	}
	if err := app.Store.SetSpendLimit(ctx, id, limit); err != nil {
		return err
	}
	b, err := app.Store.Budget(ctx, id)
	if err != nil {
		return err
	}
	heading(app.Out, "Budget "+id)
	printBudget(app.Out, b)
	return nil
}

// RunStage runs one stage for a stored project. Flag overrides are merged
// under any override already present in opts.
func RunStage(ctx context.Context, app *App, projectID string, stage model.BookStage, opts orchestration.StageOptions) (*orchestration.StageOutcome, error) {
	opts.Provider = llm.MergeOverrides(opts.Provider, app.Override())

	out, err := app.Runner.RunStage(ctx, projectID, stage, opts)
	if err != nil {
		return nil, err
	}
	printStageResult(app.Out, out.Result)
	field(app.Out, "artifact", fmt.Sprintf("v%d", out.Artifact.Version))
	field(app.Out, "charged", cents(out.CostCents))
	return out, nil
}

// ParseDocument parses a research document and stores its paragraphs as fact
// candidates for the project.
func ParseDocument(ctx context.Context, app *App, projectID, path string, promptIndex *int) (*docparser.Result, error) {
	if _, err := app.Store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}

	filename := filepath.Base(path)
	app.Logger.Info("parsing uploaded research document",
		zap.String("document_filename", filename),
		zap.String("project_id", projectID))

	result, err := docparser.Parse(filename, data)
	if err != nil {
		return nil, err
	}
	candidates := result.Candidates(projectID, promptIndex)
	if err := app.Store.SaveCandidates(ctx, projectID, candidates); err != nil {
		return nil, err
	}

	app.Logger.Info("document parsed",
		zap.Int("paragraph_count", result.ParagraphCount),
		zap.Int("fact_count", len(result.Facts)),
		zap.Int("candidate_count", len(candidates)),
		zap.Int("word_count", result.WordCount))

	heading(app.Out, "Parsed "+filename)
	field(app.Out, "paragraphs", result.ParagraphCount)
	field(app.Out, "words", result.WordCount)
	field(app.Out, "candidates", len(candidates))
	return result, nil
}

// Export formats.
const (
	FormatMarkdown = "md"
	FormatHTML     = "html"
)

// Export renders the project's latest writing artifact. The manuscript is
// written to path, or to the app output when path is empty.
func Export(ctx context.Context, app *App, projectID, format, path string) error {
	p, err := app.Store.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	a, err := app.Store.LatestArtifact(ctx, projectID, model.StageWriting)
	if errors.Is(err, storage.ErrArtifactNotFound) {
		return errors.New("no writing artifact yet: run the WRITING stage first")
	}
	if err != nil {
		return err
	}
	var batch model.WritingBatch
	if err := json.Unmarshal(a.Payload, &batch); err != nil {
		return fmt.Errorf("failed to decode writing artifact: %w", err)
	}

	book := manuscript.Book{Title: p.Title, Writing: batch}
	if book.Title == "" {
		book.Title = p.IdeaSummary
	}
	if s, err := app.Store.LatestArtifact(ctx, projectID, model.StageStructure); err == nil {
		var structure model.BookStructure
		if json.Unmarshal(s.Payload, &structure) == nil && structure.Synopsis != nil {
			book.Synopsis = *structure.Synopsis
		}
	}

	var rendered string
	switch strings.ToLower(format) {
	case FormatMarkdown, "markdown", "":
		rendered = manuscript.Markdown(book)
	case FormatHTML:
		rendered, err = manuscript.HTML(book)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown export format %q (want md or html)", format)
	}

	if path == "" {
		_, err = fmt.Fprint(app.Out, rendered)
		return err
	}
	if err := os.WriteFile(path, []byte(rendered), 0o644); err != nil {
		return fmt.Errorf("failed to write manuscript: %w", err)
	}
	field(app.Out, "written", path)
	return nil
}

// ProviderInfo describes one supported provider.
type ProviderInfo struct {
	Name         string
	Model        string
	KeyPresent   bool
	Capabilities llm.Capabilities
}

// ListProviders prints every supported provider, its model and capabilities.
// Providers are constructed offline to read capabilities; no request is sent.
func ListProviders(app *App) ([]ProviderInfo, error) {
	var infos []ProviderInfo
	for _, name := range config.SupportedProviders() {
		modelName, err := config.ModelFor(name)
		if err != nil {
			return nil, err
		}
		cfg := config.ProviderConfig{Name: name, APIKey: "unset", Model: modelName, Settings: config.DefaultProviderSettings()}
		_, keyErr := config.APIKeyFor(name)
		info := ProviderInfo{Name: name, Model: modelName, KeyPresent: name == config.MockProvider || keyErr == nil}
		if p, err := llm.NewProvider(cfg); err == nil {
			info.Capabilities = p.Capabilities()
		}
		infos = append(infos, info)
	}

	heading(app.Out, "Providers")
	for _, info := range infos {
		key := errStyle.Render("no key")
		if info.KeyPresent {
			key = okStyle.Render("ready")
		}
		maxOut := "-"
		if info.Capabilities.MaxOutputTokens != nil {
			maxOut = fmt.Sprint(*info.Capabilities.MaxOutputTokens)
		}
		fmt.Fprintf(app.Out, "%-10s %-24s %s  json=%t thinking=%t max_output=%s\n",
			info.Name, info.Model, key, info.Capabilities.SupportsJSONMode, info.Capabilities.SupportsThinking, maxOut)
	}
	return infos, nil
}

func limitCents(usd *float64) (*int64, error) {
	if usd == nil {
		return nil, nil
	}
	if math.IsNaN(*usd) || *usd < 0 {
		return nil, fmt.Errorf("invalid spend limit %v: must be zero or more", *usd)
	}
	c := orchestration.USDToCents(*usd)
	return &c, nil
}

