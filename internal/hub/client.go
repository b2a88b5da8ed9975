package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"golang.org/x/time/rate"
)

// DefaultEndpoint is the public Hugging Face hub.
const DefaultEndpoint = "https://huggingface.co"

// Config configures a Client.
type Config struct {
	// Endpoint is the hub base URL (default DefaultEndpoint)
	Endpoint string

	// Root is the local models directory
	Root string

	// RequestsPerMinute limits hub requests (default 60)
	RequestsPerMinute int

	// Revision to download when the hub does not report one (default "main")
	Revision string

	// HTTPClient overrides the default client
	HTTPClient *http.Client
}

// Client downloads model snapshots into a local directory.
type Client struct {
	endpoint    string
	root        string
	revision    string
	http        *http.Client
	rateLimiter *rate.Limiter
}

type modelInfo struct {
	ID       string    `json:"id"`
	SHA      string    `json:"sha"`
	Siblings []sibling `json:"siblings"`
}

type sibling struct {
	Filename string `json:"rfilename"`
	Size     int64  `json:"size"`
}

// Result summarizes one model download.
type Result struct {
	ModelID    string
	Dir        string
	Revision   string
	Downloaded int
	Skipped    int
	Bytes      int64
}

// NewClient creates a hub client.
func NewClient(config Config) (*Client, error) {
	if config.Root == "" {
		return nil, errors.New("models directory is required")
	}
	if config.Endpoint == "" {
		config.Endpoint = DefaultEndpoint
	}
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = 60
	}
	if config.Revision == "" {
		config.Revision = "main"
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: 30 * time.Minute}
	}

	return &Client{
		endpoint:    strings.TrimSuffix(config.Endpoint, "/"),
		root:        config.Root,
		revision:    config.Revision,
		http:        config.HTTPClient,
		rateLimiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(config.RequestsPerMinute)), 1),
	}, nil
}

// Download fetches every file of modelID into its local directory. Files
// already present with the size the hub reports are skipped.
func (c *Client) Download(ctx context.Context, modelID string) (*Result, error) {
	info, err := c.modelInfo(ctx, modelID)
	if err != nil {
		return nil, err
	}

	revision := info.SHA
	if revision == "" {
		revision = c.revision
	}

	dir := Dir(c.root, modelID)
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec
		return nil, fmt.Errorf("unable to create model directory: %w", err)
	}

	res := &Result{ModelID: modelID, Dir: dir, Revision: revision}
	for _, s := range info.Siblings {
		dst, err := localPath(dir, s.Filename)
		if err != nil {
			return nil, err
		}
		if st, err := os.Stat(dst); err == nil && s.Size > 0 && st.Size() == s.Size {
			logger().Debug("Already cached", "model", modelID, "file", s.Filename)
			res.Skipped++
			continue
		}

		n, err := c.downloadFile(ctx, modelID, revision, s.Filename, dst)
		if err != nil {
			return nil, err
		}
		logger().Info("Downloaded", "model", modelID, "file", s.Filename, "size", humanize.Bytes(uint64(n))) //nolint:gosec
		res.Downloaded++
		res.Bytes += n
	}
	return res, nil
}

func (c *Client) modelInfo(ctx context.Context, modelID string) (*modelInfo, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	// sibling sizes are only reported with blobs=true
	u := c.endpoint + "/api/models/" + modelID + "?blobs=true"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("unable to create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("unable to query hub: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("hub returned HTTP %d for %s", resp.StatusCode, modelID)
	}

	var info modelInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("unable to decode model info: %w", err)
	}
	if len(info.Siblings) == 0 {
		return nil, fmt.Errorf("hub lists no files for %s", modelID)
	}
	return &info, nil
}

// downloadFile writes to a temporary file next to dst and renames it into
// place, so an interrupted download never leaves a partial file behind.
func (c *Client) downloadFile(ctx context.Context, modelID, revision, name, dst string) (int64, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return 0, err
	}

	u := c.endpoint + "/" + modelID + "/resolve/" + url.PathEscape(revision) + "/" + name
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, fmt.Errorf("unable to create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("unable to download %s: %w", name, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("hub returned HTTP %d for %s/%s", resp.StatusCode, modelID, name)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil { //nolint:gosec
		return 0, fmt.Errorf("unable to create directory: %w", err)
	}
	f, err := os.CreateTemp(filepath.Dir(dst), ".download-*")
	if err != nil {
		return 0, fmt.Errorf("unable to create temp file: %w", err)
	}
	tmp := f.Name()
	defer os.Remove(tmp) //nolint:errcheck

	n, err := io.Copy(f, resp.Body)
	if err != nil {
		_ = f.Close()
		return 0, fmt.Errorf("unable to write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("unable to write %s: %w", name, err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		return 0, fmt.Errorf("unable to move %s into place: %w", name, err)
	}
	return n, nil
}

// localPath joins a hub file name onto dir, rejecting names that would
// escape it.
func localPath(dir, name string) (string, error) {
	clean := path.Clean("/" + name)[1:]
	if clean == "" || clean != name {
		return "", fmt.Errorf("refusing suspicious file name %q", name)
	}
	return filepath.Join(dir, filepath.FromSlash(clean)), nil
}

// logger is resolved on every use so level changes on the default logger
// apply.
func logger() *log.Logger {
	return log.WithPrefix("hub")
}
