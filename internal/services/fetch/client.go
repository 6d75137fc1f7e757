package fetch

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/hashicorp/go-getter"

	"blendflow/internal/services"
)

// Service downloads a single source to a local file.
type Service interface {
	Download(ctx context.Context, source, destination string) (int64, error)
}

// Client is the go-getter backed Service.
type Client struct {
	// MinSize rejects downloads smaller than this many bytes.
	MinSize int64
	// WorkingDir resolves relative local sources.
	WorkingDir string
}

// NewClient constructs a client.
func NewClient(minSize int64, workingDir string) *Client {
	return &Client{MinSize: minSize, WorkingDir: workingDir}
}

// newGetters builds a getter set per download; go-getter getters hold a
// back-reference to their client and cannot be shared across goroutines.
// Local sources are copied rather than symlinked.
func newGetters() map[string]getter.Getter {
	httpGetter := &getter.HttpGetter{Netrc: true}
	return map[string]getter.Getter{
		"file":  &getter.FileGetter{Copy: true},
		"http":  httpGetter,
		"https": httpGetter,
		"s3":    new(getter.S3Getter),
		"gcs":   new(getter.GCSGetter),
	}
}

// Download fetches source into destination and returns the file size.
func (c *Client) Download(ctx context.Context, source, destination string) (int64, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return 0, services.Wrap(services.ErrValidation, "fetch", "detect source", "source locator is empty", nil)
	}
	pwd := c.WorkingDir
	if pwd == "" {
		if wd, err := os.Getwd(); err == nil {
			pwd = wd
		} else {
			pwd = "."
		}
	}
	detected, err := getter.Detect(source, pwd, getter.Detectors)
	if err != nil {
		return 0, services.Wrap(services.ErrValidation, "fetch", "detect source", fmt.Sprintf("unsupported source %q", source), err)
	}
	if err := os.MkdirAll(filepath.Dir(destination), 0o755); err != nil {
		return 0, services.Wrap(services.ErrConfiguration, "fetch", "prepare destination", "create work directory", err)
	}
	if local, ok := localPath(detected); ok {
		if _, statErr := os.Stat(local); statErr != nil {
			return 0, services.Wrap(services.ErrNotFound, "fetch", "stat source", fmt.Sprintf("source %s does not exist", local), statErr)
		}
	}

	client := &getter.Client{
		Ctx:     ctx,
		Src:     detected,
		Dst:     destination,
		Pwd:     pwd,
		Mode:    getter.ClientModeFile,
		Getters: newGetters(),
	}
	if err := client.Get(); err != nil {
		_ = os.Remove(destination)
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, classify(source, err)
	}

	info, err := os.Stat(destination)
	if err != nil {
		return 0, services.Wrap(services.ErrTransient, "fetch", "verify download", "downloaded file missing", err)
	}
	if info.Size() < c.MinSize {
		_ = os.Remove(destination)
		return info.Size(), services.WithHint(
			services.Wrap(services.ErrMalformedInput, "fetch", "verify download",
				fmt.Sprintf("file too small: %d < %d bytes", info.Size(), c.MinSize), nil),
			"check that the source points at a BVH file and not an error page",
		)
	}
	return info.Size(), nil
}

var responseCode = regexp.MustCompile(`bad response code: (\d{3})`)

// classify maps go-getter failures onto the error taxonomy.
func classify(source string, err error) error {
	if m := responseCode.FindStringSubmatch(err.Error()); m != nil {
		code, _ := strconv.Atoi(m[1])
		return wrapStatus(source, code, err)
	}
	msg := fmt.Sprintf("download %s", source)
	if services.Classify(err) == services.KindTransient {
		return services.Wrap(services.ErrTransient, "fetch", "download", msg, err)
	}
	lower := strings.ToLower(err.Error())
	if strings.Contains(lower, "no such file") || strings.Contains(lower, "not found") {
		return services.Wrap(services.ErrNotFound, "fetch", "download", msg, err)
	}
	return services.Wrap(services.ErrPermanent, "fetch", "download", msg, err)
}

// wrapStatus maps an HTTP status onto the error taxonomy.
func wrapStatus(source string, code int, err error) error {
	msg := fmt.Sprintf("download %s: HTTP %d", source, code)
	switch {
	case code == 401 || code == 403:
		return services.WithHint(
			services.Wrap(services.ErrUnauthorized, "fetch", "download", msg, err),
			"the source rejected the request; check that the URL is public or signed",
		)
	case code == 404 || code == 410:
		return services.Wrap(services.ErrNotFound, "fetch", "download", msg, err)
	case code == 408:
		return services.Wrap(services.ErrTimeout, "fetch", "download", msg, err)
	case code == 429:
		return services.Wrap(services.ErrRateLimited, "fetch", "download", msg, err)
	case code >= 500:
		return services.Wrap(services.ErrTransient, "fetch", "download", msg, err)
	default:
		return services.Wrap(services.ErrPermanent, "fetch", "download", msg, err)
	}
}

func localPath(detected string) (string, bool) {
	u, err := url.Parse(detected)
	if err != nil || u.Scheme != "file" {
		return "", false
	}
	return u.Path, true
}
