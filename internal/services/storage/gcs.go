package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	gcs "cloud.google.com/go/storage"
	"github.com/cockroachdb/errors"
	"google.golang.org/api/googleapi"

	"blendflow/internal/services"
)

// GCSPublisher uploads artifacts to a Cloud Storage bucket.
type GCSPublisher struct {
	client   *gcs.Client
	bucket   string
	maxBytes int64
}

// NewGCSPublisher wraps an existing client. Credentials come from the
// environment the client was built in.
func NewGCSPublisher(client *gcs.Client, bucket string, maxBytes int64) *GCSPublisher {
	return &GCSPublisher{client: client, bucket: strings.TrimSpace(bucket), maxBytes: maxBytes}
}

func (p *GCSPublisher) Describe() string {
	return "gs://" + p.bucket
}

// Publish streams the artifact into the bucket with its metadata.
func (p *GCSPublisher) Publish(ctx context.Context, obj Object) (string, error) {
	if _, err := CheckSize(obj.LocalPath, p.maxBytes); err != nil {
		return "", err
	}
	f, err := os.Open(obj.LocalPath)
	if err != nil {
		return "", services.Wrap(services.ErrPermanent, "publish", "open artifact", obj.LocalPath, err)
	}
	defer f.Close()

	name := obj.Name()
	w := p.client.Bucket(p.bucket).Object(name).NewWriter(ctx)
	w.ContentType = obj.ContentType
	if w.ContentType == "" {
		w.ContentType = ContentType(name)
	}
	if len(obj.Metadata) > 0 {
		w.Metadata = make(map[string]string, len(obj.Metadata))
		for k, v := range obj.Metadata {
			w.Metadata[k] = v
		}
	}
	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return "", classifyGCS(name, err)
	}
	if err := w.Close(); err != nil {
		return "", classifyGCS(name, err)
	}
	return fmt.Sprintf("gs://%s/%s", p.bucket, name), nil
}

// Check confirms the bucket exists and is readable.
func (p *GCSPublisher) Check(ctx context.Context) error {
	if p.bucket == "" {
		return services.Wrap(services.ErrConfiguration, "publish", "check bucket", "storage.bucket is empty", nil)
	}
	if _, err := p.client.Bucket(p.bucket).Attrs(ctx); err != nil {
		return classifyGCS(p.bucket, err)
	}
	return nil
}

// classifyGCS maps Cloud Storage failures onto the error taxonomy.
func classifyGCS(target string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, gcs.ErrBucketNotExist) {
		return services.WithHint(
			services.Wrap(services.ErrConfiguration, "publish", "upload", fmt.Sprintf("bucket for %s does not exist", target), err),
			"create the bucket or fix storage.bucket / GCS_BUCKET",
		)
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		msg := fmt.Sprintf("upload %s: HTTP %d", target, apiErr.Code)
		switch {
		case apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden:
			return services.WithHint(
				services.Wrap(services.ErrUnauthorized, "publish", "upload", msg, err),
				"check the service account's storage.objects.create permission",
			)
		case apiErr.Code == http.StatusNotFound:
			return services.Wrap(services.ErrNotFound, "publish", "upload", msg, err)
		case apiErr.Code == http.StatusRequestTimeout:
			return services.Wrap(services.ErrTimeout, "publish", "upload", msg, err)
		case apiErr.Code == http.StatusTooManyRequests:
			return services.Wrap(services.ErrRateLimited, "publish", "upload", msg, err)
		case apiErr.Code >= 500:
			return services.Wrap(services.ErrTransient, "publish", "upload", msg, err)
		default:
			return services.Wrap(services.ErrPermanent, "publish", "upload", msg, err)
		}
	}
	if services.Classify(err) == services.KindTransient {
		return services.Wrap(services.ErrTransient, "publish", "upload", target, err)
	}
	return services.Wrap(services.ErrPermanent, "publish", "upload", target, err)
}
