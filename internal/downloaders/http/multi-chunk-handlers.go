package dwhttp

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/tanq16/dw/internal/utils"
)

// fetchChunk performs one ranged GET and streams the body into dest starting
// at chunk.Start. Nothing is retried.
func fetchChunk(ctx context.Context, client utils.HTTPDoer, rawURL, dest string, chunk utils.Chunk, bufferSize int, m meter) error {
	op := fmt.Sprintf("chunk %d", chunk.Index)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return utils.NewError(utils.KindNetwork, op, err)
	}
	req.Header.Set("Range", chunk.RangeHeader())
	req.Header.Set("Connection", "keep-alive")
	resp, err := client.Do(req)
	if err != nil {
		return utils.NewError(utils.KindNetwork, op, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusPartialContent {
		return &utils.TransferError{Kind: utils.KindRangeNotHonored, Op: op, StatusCode: resp.StatusCode}
	}

	file, err := os.OpenFile(dest, os.O_WRONLY, 0)
	if err != nil {
		return utils.NewError(utils.KindFilesystem, op, err)
	}
	defer file.Close()
	if _, err := file.Seek(chunk.Start, io.SeekStart); err != nil {
		return utils.NewError(utils.KindFilesystem, op, err)
	}

	// never write past the chunk end, even if the server overruns the range
	body := io.LimitReader(resp.Body, chunk.Len())
	buffer := make([]byte, bufferSize)
	var written int64
	for {
		bytesRead, readErr := body.Read(buffer)
		if bytesRead > 0 {
			if _, err := file.Write(buffer[:bytesRead]); err != nil {
				return utils.NewError(utils.KindFilesystem, op, err)
			}
			written += int64(bytesRead)
			if err := m.observe(ctx, bytesRead); err != nil {
				return utils.NewError(utils.KindNetwork, op, err)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return utils.NewError(utils.KindNetwork, op, readErr)
		}
	}
	if written != chunk.Len() {
		return utils.NewError(utils.KindNetwork, op, fmt.Errorf("short body: expected %d bytes, got %d", chunk.Len(), written))
	}
	if err := file.Close(); err != nil {
		return utils.NewError(utils.KindFilesystem, op, err)
	}
	return nil
}
