package dwhttp

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tanq16/dw/internal/bandwidth"
	"github.com/tanq16/dw/internal/utils"
)

// PartitionChunks splits [0, totalSize) into n contiguous end-inclusive
// ranges; the last one absorbs the division remainder. n is capped at
// totalSize so no range is empty.
func PartitionChunks(totalSize int64, n int) []utils.Chunk {
	if totalSize <= 0 || n < 1 {
		return nil
	}
	if int64(n) > totalSize {
		n = int(totalSize)
	}
	chunkSize := totalSize / int64(n)
	chunks := make([]utils.Chunk, n)
	for i := range n {
		start := int64(i) * chunkSize
		end := int64(i+1)*chunkSize - 1
		if i == n-1 {
			end = totalSize - 1
		}
		chunks[i] = utils.Chunk{Index: i, Start: start, End: end}
	}
	return chunks
}

func preallocate(dest string, totalSize int64) error {
	file, err := os.Create(dest)
	if err != nil {
		return utils.NewError(utils.KindFilesystem, "create", err)
	}
	if err := file.Truncate(totalSize); err != nil {
		file.Close()
		return utils.NewError(utils.KindFilesystem, "truncate", err)
	}
	if err := file.Close(); err != nil {
		return utils.NewError(utils.KindFilesystem, "close", err)
	}
	return nil
}

// parallel writes every chunk straight into its offset of one pre-sized
// file. Chunks never overlap, so writers share the file without locking.
// The first failure is returned at once; remaining chunks are left to run
// out on their own and may still write after this returns.
func (d *HTTPDownloader) parallel(ctx context.Context, log zerolog.Logger, rawURL, dest string, totalSize int64, monitor *bandwidth.Monitor) error {
	if err := preallocate(dest, totalSize); err != nil {
		return err
	}
	chunks := PartitionChunks(totalSize, d.cfg.MaxConnections)
	progress := d.progress(totalSize, dest)
	m := meter{monitor: monitor, progress: progress, limiter: d.limiter}

	var group errgroup.Group
	firstErr := make(chan error, 1)
	for _, chunk := range chunks {
		client := d.clients[chunk.Index%len(d.clients)]
		group.Go(func() error {
			err := d.runChunk(ctx, log, client, rawURL, dest, chunk, m)
			if err != nil {
				select {
				case firstErr <- err:
				default:
				}
			}
			return err
		})
	}
	done := make(chan error, 1)
	go func() {
		done <- group.Wait()
	}()

	var err error
	select {
	case err = <-firstErr:
	case err = <-done:
	}
	if err != nil {
		progress.Finish("Download failed")
		return err
	}
	progress.Finish("Download complete")
	return nil
}

func (d *HTTPDownloader) runChunk(ctx context.Context, log zerolog.Logger, client utils.HTTPDoer, rawURL, dest string, chunk utils.Chunk, m meter) error {
	if err := d.sem.Acquire(ctx, 1); err != nil {
		return utils.NewError(utils.KindConcurrency, "acquire", err)
	}
	defer d.sem.Release(1)
	chunkLog := log.With().Int("chunkId", chunk.Index).Logger()
	chunkLog.Debug().Str("range", chunk.RangeHeader()).Msg("Sending range request")
	if err := fetchChunk(ctx, client, rawURL, dest, chunk, d.cfg.BufferSize, m); err != nil {
		chunkLog.Error().Err(err).Msg("Chunk failed")
		return err
	}
	chunkLog.Debug().Int64("bytes", chunk.Len()).Msg("Chunk complete")
	return nil
}
