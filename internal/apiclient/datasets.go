package apiclient

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"

	"github.com/newthinker/stratdesk/internal/core"
)

// UploadData sends a dataset file as multipart form field "file".
// The body is streamed; r is read exactly once. A failure reading r is
// returned as is, not as a NetworkError.
func (c *Client) UploadData(ctx context.Context, filename string, r io.Reader) (*core.Dataset, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	src := &recordingReader{r: r}
	done := make(chan struct{})
	go func() {
		defer close(done)
		part, err := mw.CreateFormFile("file", filepath.Base(filename))
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, src); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	var ds core.Dataset
	err := c.do(ctx, http.MethodPost, "/upload-data", mw.FormDataContentType(), pr, &ds)
	// Unblocks the writer goroutine if the request ended before the body was drained.
	pr.CloseWithError(io.ErrClosedPipe)
	<-done
	if src.err != nil {
		return nil, fmt.Errorf("reading %s: %w", filename, src.err)
	}
	if err != nil {
		return nil, err
	}
	return &ds, nil
}

// recordingReader keeps the first error, other than io.EOF, returned by r.
type recordingReader struct {
	r   io.Reader
	err error
}

func (rr *recordingReader) Read(p []byte) (int, error) {
	n, err := rr.r.Read(p)
	if err != nil && err != io.EOF && rr.err == nil {
		rr.err = err
	}
	return n, err
}

// RunBacktest runs a strategy against a previously uploaded dataset.
func (c *Client) RunBacktest(ctx context.Context, req core.BacktestRequest) (*core.BacktestResult, error) {
	var result core.BacktestResult
	if err := c.doJSON(ctx, http.MethodPost, "/run-backtest", req, &result); err != nil {
		return nil, err
	}
	if result.StrategyID == 0 {
		result.StrategyID = req.StrategyID
	}
	return &result, nil
}
