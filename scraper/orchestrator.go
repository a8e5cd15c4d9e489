package scraper

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/google/uuid"

	"deal_scout/config"
	"deal_scout/models"
	"deal_scout/services"
)

const (
	maxPhrases  = 6
	maxAnalyzed = 10
)

// Recorder persists run history. Failures are logged and never fail a run.
type Recorder interface {
	CreateRun(ctx context.Context, run *models.SearchRun) error
	FinishRun(ctx context.Context, run *models.SearchRun) error
	Log(ctx context.Context, entry *models.RunLog) error
	SaveResults(ctx context.Context, runID uuid.UUID, props []models.AnalyzedProperty) error
}

// ResultSink receives the final result set of every completed search run.
type ResultSink interface {
	Publish(ctx context.Context, run *models.SearchRun, props []models.AnalyzedProperty) error
}

// Stages groups the components a Pipeline drives.
type Stages struct {
	Classifier *services.IntentClassifier
	Expander   *services.QueryExpander
	Analyzer   *services.DealAnalyzer
	Responder  *services.Responder
	Discovery  *Discovery
	Extractor  *Extractor
}

// Pipeline runs one query from intent classification to the summarized
// result set.
type Pipeline struct {
	cfg    *config.Config
	stages Stages

	recorder Recorder
	sinks    []ResultSink
}

func NewPipeline(cfg *config.Config, stages Stages) *Pipeline {
	return &Pipeline{cfg: cfg, stages: stages}
}

func (p *Pipeline) SetRecorder(r Recorder) {
	p.recorder = r
}

func (p *Pipeline) AddSink(s ResultSink) {
	p.sinks = append(p.sinks, s)
}

// Run answers one query. The returned error wraps services.ErrConfiguration
// or services.ErrClassification where applicable; degraded stages are not
// errors.
func (p *Pipeline) Run(ctx context.Context, query, trigger string) (*models.AgentResponse, error) {
	if !p.cfg.LLM.Configured() {
		return nil, fmt.Errorf("%w: set LLM_API_KEY (or GROQ_API_KEY) to enable the agent", services.ErrConfiguration)
	}

	if p.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.RequestTimeout)
		defer cancel()
	}

	run := models.NewSearchRun(query, trigger)
	p.createRun(run)

	resp, props, err := p.execute(ctx, run)
	if err != nil {
		p.log(run, models.LogLevelError, "pipeline", err.Error())
		run.Finish(models.RunStatusFailed, err)
		p.finishRun(run)
		return nil, err
	}

	run.Finish(models.RunStatusCompleted, nil)
	p.finishRun(run)
	if run.Type == models.CategorySearch {
		p.publish(run, props)
	}
	return resp, nil
}

func (p *Pipeline) execute(ctx context.Context, run *models.SearchRun) (*models.AgentResponse, []models.AnalyzedProperty, error) {
	query := run.Query

	intent, err := p.stages.Classifier.Classify(ctx, query)
	if err != nil {
		return nil, nil, err
	}
	p.log(run, models.LogLevelInfo, "intent", fmt.Sprintf("type=%s search=%t", intent.Category, intent.IsPropertySearch))

	if intent.IsConversation() {
		run.Type = models.CategoryConversation
		reply, err := p.stages.Responder.Reply(ctx, query)
		if err != nil {
			return nil, nil, err
		}
		return &models.AgentResponse{
			Type:     models.CategoryConversation,
			Response: reply,
			Status:   models.StatusCompleted,
		}, nil, nil
	}
	run.Type = models.CategorySearch

	exp := p.stages.Expander.Expand(ctx, query)
	if exp.Degraded {
		p.degrade(run, models.ExpansionDegraded, "expand", "model expansion failed, using templates")
	}
	phrases := exp.Phrases
	if len(phrases) > maxPhrases {
		phrases = phrases[:maxPhrases]
	}
	run.Phrases = len(phrases)

	found, err := p.stages.Discovery.Discover(ctx, query, phrases)
	if err != nil {
		return nil, nil, err
	}
	if found.Degraded {
		p.degrade(run, models.DiscoveryDegraded, "discover", "search failed or empty, using direct site searches")
	}
	urls := DedupURLs(found.URLs)
	run.URLsFound = len(urls)
	p.log(run, models.LogLevelInfo, "discover", fmt.Sprintf("%d raw urls, %d to scrape", len(found.URLs), len(urls)))

	extracted, err := p.stages.Extractor.Extract(ctx, query, urls)
	if err != nil {
		return nil, nil, err
	}
	if extracted.Skipped > 0 {
		p.degrade(run, models.ScrapeSkipped, "extract", fmt.Sprintf("%d of %d pages skipped", extracted.Skipped, len(urls)))
	}
	run.ListingsFound = len(extracted.Candidates)

	candidates := extracted.Candidates
	if len(candidates) > maxAnalyzed {
		candidates = candidates[:maxAnalyzed]
	}

	analyzed := make([]models.AnalyzedProperty, 0, len(candidates))
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, nil, fmt.Errorf("analyze: %w", err)
		}
		prop, degraded := p.stages.Analyzer.Analyze(ctx, c, query)
		if degraded {
			p.degrade(run, models.AnalysisDegraded, "analyze", fmt.Sprintf("estimated %q", c.Title))
		}
		analyzed = append(analyzed, prop)
	}
	run.Analyzed = len(analyzed)

	deals := SelectDeals(analyzed)
	run.Results = len(deals)
	p.log(run, models.LogLevelInfo, "select", fmt.Sprintf("%d of %d analyzed clear $%d", len(deals), len(analyzed), models.MinProfit))

	summary, err := p.stages.Responder.Summarize(ctx, query, deals)
	if err != nil {
		return nil, nil, err
	}

	return &models.AgentResponse{
		Type:       models.CategorySearch,
		Response:   summary,
		Properties: deals,
		Status:     models.StatusCompleted,
		Query:      query,
	}, deals, nil
}

// SelectDeals keeps properties at or above MinProfit, most profitable first.
// Ties keep their analysis order.
func SelectDeals(props []models.AnalyzedProperty) []models.AnalyzedProperty {
	deals := make([]models.AnalyzedProperty, 0, len(props))
	for _, prop := range props {
		if prop.Profit >= models.MinProfit {
			deals = append(deals, prop)
		}
	}
	sort.SliceStable(deals, func(i, j int) bool {
		return deals[i].Profit > deals[j].Profit
	})
	return deals
}

func (p *Pipeline) degrade(run *models.SearchRun, d models.Degradation, stage, message string) {
	run.Degrade(d)
	p.log(run, models.LogLevelWarn, stage, message)
}

// Recording uses a background context so a canceled request still leaves a
// finished run row behind.

func (p *Pipeline) createRun(run *models.SearchRun) {
	if p.recorder == nil {
		return
	}
	if err := p.recorder.CreateRun(context.Background(), run); err != nil {
		log.Printf("Warning: failed to record run %s: %v", run.ID, err)
	}
}

func (p *Pipeline) finishRun(run *models.SearchRun) {
	if p.recorder == nil {
		return
	}
	if err := p.recorder.FinishRun(context.Background(), run); err != nil {
		log.Printf("Warning: failed to finish run %s: %v", run.ID, err)
	}
}

func (p *Pipeline) publish(run *models.SearchRun, props []models.AnalyzedProperty) {
	ctx := context.Background()
	if p.recorder != nil {
		if err := p.recorder.SaveResults(ctx, run.ID, props); err != nil {
			log.Printf("Warning: failed to save results for run %s: %v", run.ID, err)
		}
	}
	for _, sink := range p.sinks {
		if err := sink.Publish(ctx, run, props); err != nil {
			log.Printf("Warning: result sink failed for run %s: %v", run.ID, err)
		}
	}
}

func (p *Pipeline) log(run *models.SearchRun, level models.LogLevel, stage, message string) {
	log.Printf("[%s] %s: %s", level, stage, message)
	if p.recorder == nil {
		return
	}
	err := p.recorder.Log(context.Background(), &models.RunLog{
		RunID:   run.ID,
		Level:   level,
		Stage:   stage,
		Message: message,
	})
	if err != nil {
		log.Printf("Warning: failed to log %s entry for run %s: %v", stage, run.ID, err)
	}
}
