package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/awolfe89/ecommerce-kpi-dashboard/internal/ai"
	"github.com/awolfe89/ecommerce-kpi-dashboard/internal/cache"
	"github.com/awolfe89/ecommerce-kpi-dashboard/internal/domain"
	"github.com/awolfe89/ecommerce-kpi-dashboard/internal/queue"
	"github.com/awolfe89/ecommerce-kpi-dashboard/internal/report"
	"github.com/awolfe89/ecommerce-kpi-dashboard/internal/store"
)

type ProcessorConfig struct {
	BatchSize     int
	SweepInterval time.Duration
	Model         string
	FallbackModel string
	Temperature   float64
	MaxTokens     int
}

// Processor turns pending report jobs into completed or failed ones. It is
// woken by dispatch messages, by a periodic sweep, and by manual kicks; all
// three paths funnel through the store claim, so overlapping wake-ups never
// double-process a job.
type Processor struct {
	store     store.JobStore
	consumer  queue.Consumer
	generator ai.TextGenerator
	cache     *cache.ReportCache
	logger    *log.Logger

	batchSize     int
	sweepInterval time.Duration
	model         string
	fallbackModel string
	temperature   float64
	maxTokens     int

	kick chan struct{}
}

func NewProcessor(
	jobStore store.JobStore,
	consumer queue.Consumer,
	generator ai.TextGenerator,
	reportCache *cache.ReportCache,
	cfg ProcessorConfig,
	logger *log.Logger,
) *Processor {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 15 * time.Second
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = "gpt-4-turbo"
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}
	if reportCache == nil {
		reportCache = cache.NewReportCache(cache.Config{})
	}

	return &Processor{
		store:         jobStore,
		consumer:      consumer,
		generator:     generator,
		cache:         reportCache,
		logger:        logger,
		batchSize:     cfg.BatchSize,
		sweepInterval: cfg.SweepInterval,
		model:         cfg.Model,
		fallbackModel: strings.TrimSpace(cfg.FallbackModel),
		temperature:   cfg.Temperature,
		maxTokens:     cfg.MaxTokens,
		kick:          make(chan struct{}, 1),
	}
}

// Kick requests a processing pass. It never blocks; a pass is already
// queued when the buffer is full.
func (p *Processor) Kick() {
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

// Start runs the worker until the context is cancelled: one goroutine
// consumes dispatch messages for immediate pickup, while the main loop
// sweeps for pending jobs on an interval and on manual kicks. The sweep is
// what guarantees retried and missed jobs are picked up again.
func (p *Processor) Start(ctx context.Context) {
	if p.consumer != nil {
		go p.consumeLoop(ctx)
	}

	ticker := time.NewTicker(p.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-p.kick:
		}

		if _, err := p.RunOnce(ctx); err != nil && p.logger != nil {
			p.logger.Printf("processor sweep failed: %v", err)
		}
	}
}

func (p *Processor) consumeLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		err := p.consumer.Consume(ctx, p.handleDispatch)
		if err == nil || ctx.Err() != nil {
			return
		}
		if p.logger != nil {
			p.logger.Printf("worker consume loop error: %v", err)
		}

		timer := time.NewTimer(2 * time.Second)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (p *Processor) handleDispatch(ctx context.Context, message domain.DispatchMessage) error {
	job, err := p.store.GetJob(ctx, message.JobID)
	if err != nil {
		return fmt.Errorf("load job %s: %w", message.JobID, err)
	}

	claimed, err := p.store.ClaimJob(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("claim job %s: %w", job.ID, err)
	}
	if !claimed {
		// Already picked up by a sweep or another consumer.
		return nil
	}

	p.processJob(ctx, job)
	return nil
}

// RunOnce performs a single processing pass: claim up to the batch size of
// the oldest pending jobs and process the claimed ones concurrently. One
// job's failure never blocks the others. Returns how many jobs were
// processed.
func (p *Processor) RunOnce(ctx context.Context) (int, error) {
	pending, err := p.store.ListPending(ctx, p.batchSize)
	if err != nil {
		return 0, fmt.Errorf("list pending jobs: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	claimed := make([]*domain.ReportJob, 0, len(pending))
	for _, job := range pending {
		won, claimErr := p.store.ClaimJob(ctx, job.ID)
		if claimErr != nil {
			if p.logger != nil {
				p.logger.Printf("claim failed job_id=%s err=%v", job.ID, claimErr)
			}
			continue
		}
		if won {
			claimed = append(claimed, job)
		}
	}

	var wg sync.WaitGroup
	for _, job := range claimed {
		wg.Add(1)
		go func(job *domain.ReportJob) {
			defer wg.Done()
			p.processJob(ctx, job)
		}(job)
	}
	wg.Wait()

	return len(claimed), nil
}

func (p *Processor) processJob(ctx context.Context, job *domain.ReportJob) {
	prompt, err := report.BuildPrompt(job.Type, job.Payload)
	if err != nil {
		p.recordFailure(ctx, job, err)
		return
	}

	signature := p.cache.BuildSignature(string(job.Type), p.model, prompt)
	if entry, hit := p.cache.Get(signature); hit {
		p.complete(ctx, job, entry.Result)
		if p.logger != nil {
			p.logger.Printf("report served from cache job_id=%s model=%s", job.ID, entry.ModelID)
		}
		return
	}

	result, err := p.generateText(ctx, prompt)
	if err != nil {
		p.recordFailure(ctx, job, err)
		return
	}

	parsed, degraded := report.ParseCompletion(job.Type, job.Payload, result.Text, time.Now().UTC())
	encoded, err := json.Marshal(parsed)
	if err != nil {
		p.recordFailure(ctx, job, fmt.Errorf("encode report result: %w", err))
		return
	}

	if !p.complete(ctx, job, encoded) {
		return
	}
	if !degraded {
		p.cache.Set(signature, cache.Entry{Result: encoded, ModelID: result.ModelID})
	}

	if p.logger != nil {
		if degraded {
			p.logger.Printf("report completed degraded job_id=%s type=%s", job.ID, job.Type)
		} else {
			p.logger.Printf("report completed job_id=%s type=%s model=%s", job.ID, job.Type, result.ModelID)
		}
	}
}

func (p *Processor) generateText(ctx context.Context, prompt string) (ai.GenerateResult, error) {
	if p.generator == nil || !p.generator.Available() {
		return ai.GenerateResult{}, ai.ErrOpenAIUnavailable
	}

	primary, err := p.generator.Generate(ctx, ai.GenerateRequest{
		Model:           p.model,
		Instructions:    report.SystemInstructions,
		Input:           prompt,
		Temperature:     p.temperature,
		MaxOutputTokens: p.maxTokens,
	})
	if err == nil {
		return primary, nil
	}

	if p.fallbackModel == "" || p.fallbackModel == p.model {
		return ai.GenerateResult{}, err
	}

	fallback, fallbackErr := p.generator.Generate(ctx, ai.GenerateRequest{
		Model:           p.fallbackModel,
		Instructions:    report.SystemInstructions,
		Input:           prompt,
		Temperature:     p.temperature,
		MaxOutputTokens: p.maxTokens,
	})
	if fallbackErr != nil {
		return ai.GenerateResult{}, fmt.Errorf("primary model failed: %v; fallback failed: %w", err, fallbackErr)
	}
	return fallback, nil
}

func (p *Processor) complete(ctx context.Context, job *domain.ReportJob, result json.RawMessage) bool {
	if err := p.store.CompleteJob(ctx, job.ID, result); err != nil {
		// The job stays in its last written state; the failure is logged
		// for manual reprocessing.
		if p.logger != nil {
			p.logger.Printf("mark completed failed job_id=%s err=%v", job.ID, err)
		}
		return false
	}
	return true
}

func (p *Processor) recordFailure(ctx context.Context, job *domain.ReportJob, cause error) {
	maxRetries := job.MaxRetries
	if maxRetries <= 0 {
		maxRetries = domain.DefaultMaxRetries
	}

	if job.RetryCount < maxRetries {
		if err := p.store.RetryJob(ctx, job.ID, job.RetryCount+1, cause.Error()); err != nil {
			if p.logger != nil {
				p.logger.Printf("schedule retry failed job_id=%s err=%v", job.ID, err)
			}
			return
		}
		if p.logger != nil {
			p.logger.Printf(
				"report scheduled for retry job_id=%s attempt=%d/%d err=%v",
				job.ID, job.RetryCount+1, maxRetries, cause,
			)
		}
		return
	}

	if err := p.store.FailJob(ctx, job.ID, cause.Error()); err != nil {
		if p.logger != nil {
			p.logger.Printf("mark failed failed job_id=%s err=%v", job.ID, err)
		}
		return
	}
	if p.logger != nil {
		p.logger.Printf("report failed after %d attempts job_id=%s err=%v", maxRetries, job.ID, cause)
	}
}
