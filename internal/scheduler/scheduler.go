package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	dwhttp "github.com/tanq16/dw/internal/downloaders/http"
	"github.com/tanq16/dw/internal/output"
	"github.com/tanq16/dw/internal/utils"
)

type indexedJob struct {
	id  int
	job utils.TransferJob
}

// Run executes jobs on numWorkers workers. Each job gets its own
// downloader built from its config. Every outcome lands in the returned
// summary; the error joins all job failures.
func Run(ctx context.Context, jobs []utils.TransferJob, numWorkers int, progress utils.ProgressFactory) (*output.Summary, error) {
	summary := output.NewSummary()
	numWorkers = max(1, min(numWorkers, len(jobs)))
	log := utils.GetLogger("scheduler")
	log.Debug().Int("jobs", len(jobs)).Int("workers", numWorkers).Msg("Starting batch")

	// register up front so the summary keeps file order
	jobCh := make(chan indexedJob, len(jobs))
	for _, job := range jobs {
		jobCh <- indexedJob{id: summary.Register(job.URL), job: job}
	}
	close(jobCh)

	var (
		mu   sync.Mutex
		errs []error
		wg   sync.WaitGroup
	)
	for i := range numWorkers {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for _, err := range processJobs(ctx, workerID, jobCh, summary, progress) {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	return summary, errors.Join(errs...)
}

// processJobs handles job processing for a worker
func processJobs(ctx context.Context, workerID int, jobCh <-chan indexedJob, summary *output.Summary, progress utils.ProgressFactory) []error {
	log := utils.GetLogger("scheduler").With().Int("worker", workerID).Logger()
	var errs []error
	for item := range jobCh {
		job := item.job
		if err := ctx.Err(); err != nil {
			summary.ReportError(item.id, err)
			errs = append(errs, fmt.Errorf("%s: %w", job.URL, err))
			continue
		}
		summary.Start(item.id)
		downloader, err := dwhttp.NewHTTPDownloader(job.Config, dwhttp.WithProgress(progress))
		if err == nil {
			err = downloader.Download(ctx, &job)
		}
		if err != nil {
			log.Error().Err(err).Str("url", job.URL).Msg("Job failed")
			summary.ReportError(item.id, err)
			errs = append(errs, fmt.Errorf("%s: %w", job.URL, err))
			continue
		}
		size, _ := job.Metadata["fileSize"].(int64)
		log.Debug().Str("url", job.URL).Str("output", job.OutputPath).Int64("bytes", size).Msg("Job complete")
		summary.Complete(item.id, job.OutputPath, size)
	}
	return errs
}
