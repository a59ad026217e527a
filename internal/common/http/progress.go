package http

import "io"

// ProgressReader counts bytes as they are read and reports the running total
// to OnProgress after every read that returned data.
type ProgressReader struct {
	r          io.Reader
	sent       int64
	total      int64
	onProgress func(sent, total int64)
}

func NewProgressReader(r io.Reader, total int64, onProgress func(sent, total int64)) *ProgressReader {
	return &ProgressReader{r: r, total: total, onProgress: onProgress}
}

func (p *ProgressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.sent += int64(n)
		if p.onProgress != nil {
			p.onProgress(p.sent, p.total)
		}
	}
	return n, err
}

// Sent returns the number of bytes read so far.
func (p *ProgressReader) Sent() int64 {
	return p.sent
}
