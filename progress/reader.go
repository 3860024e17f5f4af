package progress

import (
	"io"
	"sync/atomic"

	"github.com/videoreport/api/config"
)

// ReadCounter wraps a reader and tracks bytes read, feeding §4.2's download-
// progress mapping: bytes transferred are linearly interpolated into the
// [10,20] progress interval while the source file downloads.
type ReadCounter struct {
	r     io.Reader
	count uint64
}

func NewReadCounter(r io.Reader) *ReadCounter {
	return &ReadCounter{r: r}
}

func (h *ReadCounter) Read(p []byte) (int, error) {
	n, err := h.r.Read(p)
	if n > 0 {
		atomic.AddUint64(&h.count, uint64(n))
	}
	return n, err
}

func (h *ReadCounter) Count() uint64 {
	return atomic.LoadUint64(&h.count)
}

// DownloadProgress maps bytes transferred against the expected total size
// into §4.2's [10,20] download sub-range. Callers pass the result straight
// through a Reporter's Track snapshot as JobStatus.Progress.
func DownloadProgress(bytesRead, totalBytes uint64) int {
	span := config.DownloadProgressEnd - config.DownloadProgressStart
	if totalBytes == 0 {
		return config.DownloadProgressStart
	}
	frac := float64(bytesRead) / float64(totalBytes)
	if frac > 1 {
		frac = 1
	}
	return config.DownloadProgressStart + int(frac*float64(span))
}
