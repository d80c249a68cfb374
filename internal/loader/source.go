package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"payphone-api/internal/logger"
	"payphone-api/internal/payphone"
)

// FileSource：本地 JSON 数组文件，格式与采集工具的输出一致
type FileSource struct {
	Path string
}

func (f FileSource) Fetch(ctx context.Context) ([]payphone.RawRecord, error) {
	b, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, err
	}
	return decodeRaw(b)
}

// HTTPSource：GET 返回 JSON 数组的地址
type HTTPSource struct {
	URL    string
	Client *http.Client
}

func (h HTTPSource) Fetch(ctx context.Context) ([]payphone.RawRecord, error) {
	hc := h.Client
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	t0 := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("source: status %d", resp.StatusCode)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	logger.L().Debug("source_http_done", "url", h.URL, "bytes", len(b), "duration_ms", time.Since(t0).Milliseconds())
	return decodeRaw(b)
}

func decodeRaw(b []byte) ([]payphone.RawRecord, error) {
	var raw []payphone.RawRecord
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("source: decode: %w", err)
	}
	return raw, nil
}
