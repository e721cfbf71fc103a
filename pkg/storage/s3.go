package storage

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

const (
	// ChunkPrefix is the filename prefix of every recorded segment: {shift}/{employee}/chunk_<n>.
	ChunkPrefix = "chunk_"
	// ManifestName is the HLS playlist written next to the segments.
	ManifestName = "playlist.m3u8"

	defaultRegion = "sgp1"
)

// S3Config holds S3-compatible storage settings (DigitalOcean Spaces in production).
type S3Config struct {
	Endpoint             string
	Bucket               string
	AccessKeyID          string
	SecretAccessKey      string
	Region               string
	PresignExpireMinutes int
}

// Credentials is what the capture provider needs to upload segments directly.
type Credentials struct {
	AccessKey string
	Secret    string
	Region    string
	Endpoint  string
	Bucket    string
}

// RecordingPrefix returns the directory of one employee's recording: {shift}/{employee}/.
func RecordingPrefix(shiftID, employeeID string) string {
	return shiftID + "/" + employeeID + "/"
}

// ChunkFilenamePrefix returns {shift}/{employee}/chunk_ (the provider appends the index).
func ChunkFilenamePrefix(shiftID, employeeID string) string {
	return RecordingPrefix(shiftID, employeeID) + ChunkPrefix
}

// PlaylistKey returns {shift}/{employee}/playlist.m3u8.
func PlaylistKey(shiftID, employeeID string) string {
	return RecordingPrefix(shiftID, employeeID) + ManifestName
}

// NormalizeEndpoint returns the bare regional endpoint (scheme included, no trailing slash,
// no bucket subdomain) so the provider can build virtual-hosted URLs itself.
// "farm-recordings.sgp1.digitaloceanspaces.com" -> "https://sgp1.digitaloceanspaces.com".
func NormalizeEndpoint(endpoint, bucket string) string {
	e := strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if e == "" {
		return ""
	}
	if !strings.HasPrefix(e, "http://") && !strings.HasPrefix(e, "https://") {
		e = "https://" + e
	}
	if bucket != "" {
		for _, scheme := range []string{"https://", "http://"} {
			if host, ok := strings.CutPrefix(e, scheme+bucket+"."); ok {
				return scheme + host
			}
		}
	}
	return e
}

// RegionFromEndpoint extracts the region slug from a regional endpoint host ("sgp1").
func RegionFromEndpoint(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.Split(u.Hostname(), ".")[0]
}

// Locator turns object keys into directly fetchable URLs. It never touches the network.
type Locator struct {
	endpoint string
	bucket   string
	region   string
}

// NewLocator builds a Locator from raw settings. region may be empty.
func NewLocator(endpoint, bucket, region string) *Locator {
	e := NormalizeEndpoint(endpoint, bucket)
	if region == "" {
		region = RegionFromEndpoint(e)
	}
	if region == "" {
		region = defaultRegion
	}
	return &Locator{endpoint: e, bucket: bucket, region: region}
}

// Endpoint returns the normalized regional endpoint.
func (l *Locator) Endpoint() string { return l.endpoint }

// Bucket returns the bucket name.
func (l *Locator) Bucket() string { return l.bucket }

// Region returns the storage region.
func (l *Locator) Region() string { return l.region }

// PublicObjectURL returns {endpoint}/{bucket}/{key}.
func (l *Locator) PublicObjectURL(key string) string {
	return l.endpoint + "/" + l.bucket + "/" + strings.TrimLeft(key, "/")
}

// PlaylistURL returns the manifest URL for a recording by path convention.
func (l *Locator) PlaylistURL(shiftID, employeeID string) string {
	return l.PublicObjectURL(PlaylistKey(shiftID, employeeID))
}

// ResolveLocation converts a provider-reported output location into a fetchable URL.
// s3://bucket/key becomes a public object URL; http(s) URLs pass through; anything else
// (including "") yields "".
func (l *Locator) ResolveLocation(reported string) string {
	reported = strings.TrimSpace(reported)
	switch {
	case strings.HasPrefix(reported, "s3://"):
		rest := strings.TrimPrefix(reported, "s3://")
		bucket, key, ok := strings.Cut(rest, "/")
		if !ok || key == "" {
			return ""
		}
		if bucket == l.bucket {
			return l.PublicObjectURL(key)
		}
		return l.endpoint + "/" + bucket + "/" + key
	case strings.HasPrefix(reported, "https://"), strings.HasPrefix(reported, "http://"):
		return reported
	default:
		return ""
	}
}

// KeyFromLocation returns the object key for a URL produced by PublicObjectURL.
func (l *Locator) KeyFromLocation(location string) (string, bool) {
	prefix := l.endpoint + "/" + l.bucket + "/"
	if !strings.HasPrefix(location, prefix) {
		return "", false
	}
	key := path.Clean(strings.TrimPrefix(location, prefix))
	return key, key != "." && key != ""
}

// S3 provides presigned access to recorded chunks on top of a Locator.
type S3 struct {
	*Locator
	client  *s3.Client
	presign *s3.PresignClient
	cfg     S3Config
	logger  *zap.Logger
}

// NewS3 creates an S3 client pointed at the configured S3-compatible endpoint.
func NewS3(ctx context.Context, cfg S3Config, logger *zap.Logger) (*S3, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("storage endpoint and bucket are required")
	}
	loc := NewLocator(cfg.Endpoint, cfg.Bucket, cfg.Region)

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(loc.Region()),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "",
		)))
	} else {
		logger.Warn("storage client using default credential chain (DO_SPACES_KEY/DO_SPACES_SECRET not set)")
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(loc.Endpoint())
	})
	logger.Info("storage client ready",
		zap.String("endpoint", loc.Endpoint()),
		zap.String("bucket", loc.Bucket()),
		zap.String("region", loc.Region()),
	)
	return &S3{
		Locator: loc,
		client:  client,
		presign: s3.NewPresignClient(client),
		cfg:     cfg,
		logger:  logger,
	}, nil
}

// Credentials returns the upload credentials handed to the capture provider.
func (s *S3) Credentials() Credentials {
	return Credentials{
		AccessKey: s.cfg.AccessKeyID,
		Secret:    s.cfg.SecretAccessKey,
		Region:    s.Region(),
		Endpoint:  s.Endpoint(),
		Bucket:    s.Bucket(),
	}
}

// PresignExpire returns the configured presign duration.
func (s *S3) PresignExpire() time.Duration {
	if s.cfg.PresignExpireMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(s.cfg.PresignExpireMinutes) * time.Minute
}

// GeneratePresignedDownloadURL returns a pre-signed GET URL for a key in the recordings bucket.
func (s *S3) GeneratePresignedDownloadURL(ctx context.Context, key string, expires time.Duration) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket()),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = expires
	})
	if err != nil {
		return "", fmt.Errorf("presign get: %w", err)
	}
	return req.URL, nil
}
