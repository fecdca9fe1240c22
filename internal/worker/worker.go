// Package worker runs the document processing pool: a polling loop
// claiming queued documents and a bounded set of goroutines handing
// each claim to the document processor.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/donor-eligibility-engine/internal/domain"
	"github.com/donor-eligibility-engine/internal/metrics"
	"github.com/donor-eligibility-engine/internal/queue"
	"github.com/donor-eligibility-engine/internal/service"
)

// Pool coordinates document processing workers. Concurrency is bounded
// by a semaphore channel sized from configuration.
type Pool struct {
	queue     *queue.Queue
	docs      domain.DocumentRepository
	processor domain.DocumentProcessor
	trigger   *service.Trigger
	metrics   *metrics.Metrics
	cfg       domain.WorkerConfig
	log       *logrus.Logger

	sem chan struct{}
	wg  sync.WaitGroup
}

func NewPool(q *queue.Queue, docs domain.DocumentRepository, processor domain.DocumentProcessor,
	trigger *service.Trigger, m *metrics.Metrics, cfg domain.WorkerConfig, log *logrus.Logger) *Pool {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 3
	}
	return &Pool{
		queue:     q,
		docs:      docs,
		processor: processor,
		trigger:   trigger,
		metrics:   m,
		cfg:       cfg,
		log:       log,
		sem:       make(chan struct{}, cfg.MaxConcurrent),
	}
}

// Run polls for work until ctx is canceled, then drains in-flight
// documents before returning. Crash recovery happens first: documents a
// previous process left in flight rejoin the queue.
func (p *Pool) Run(ctx context.Context) error {
	if _, err := p.queue.ResetStuck(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	p.log.WithFields(logrus.Fields{
		"max_concurrent": p.cfg.MaxConcurrent,
		"poll_interval":  p.cfg.PollInterval,
	}).Info("Document worker pool started")

	for {
		select {
		case <-ctx.Done():
			p.log.Info("Worker pool stopping, draining in-flight documents")
			p.drain()
			return nil
		case <-ticker.C:
			p.claimAvailable(ctx)
		}
	}
}

// claimAvailable takes documents until the queue is empty or all worker
// slots are busy.
func (p *Pool) claimAvailable(ctx context.Context) {
	for {
		select {
		case p.sem <- struct{}{}:
		default:
			return
		}

		doc, err := p.queue.Claim(ctx)
		if err != nil {
			<-p.sem
			p.log.WithError(err).Error("Claiming document failed")
			return
		}
		if doc == nil {
			<-p.sem
			return
		}

		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			defer func() { <-p.sem }()
			p.process(ctx, doc)
		}()
	}
}

func (p *Pool) process(ctx context.Context, doc *domain.Document) {
	log := p.log.WithFields(logrus.Fields{
		"document_id": doc.ID,
		"donor_id":    doc.DonorID,
		"file_name":   doc.FileName,
	})
	log.Info("Processing document")

	start := time.Now()
	if p.metrics != nil {
		p.metrics.DocumentStarted()
	}

	procCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.ProcessTimeout)
	defer cancel()

	final := domain.DocumentCompleted
	if err := p.processor.Process(procCtx, doc); err != nil {
		final = domain.DocumentFailed
		log.WithError(err).Error("Document processing failed")
		if uerr := p.docs.UpdateStatus(procCtx, doc.ID, domain.DocumentFailed, doc.Progress, err.Error()); uerr != nil {
			log.WithError(uerr).Error("Could not mark document failed")
		}
	} else {
		if uerr := p.docs.UpdateStatus(procCtx, doc.ID, domain.DocumentCompleted, 100, ""); uerr != nil {
			log.WithError(uerr).Error("Could not mark document completed")
		}
		log.Info("Document processed")
	}
	if p.metrics != nil {
		p.metrics.DocumentFinished(string(final), time.Since(start))
	}

	// success or failure, the donor may now have settled
	if err := p.trigger.TriggerIfReady(procCtx, doc.DonorID); err != nil {
		log.WithError(err).Error("Post-processing evaluation trigger failed")
	}
}

func (p *Pool) drain() {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.log.Info("Worker pool drained")
	case <-time.After(p.cfg.ShutdownTimeout):
		p.log.Warn("Worker pool shutdown timeout, abandoning in-flight documents")
	}
}
