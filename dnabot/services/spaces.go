package services

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// SpacesConfig configures the DigitalOcean Spaces mirror for announcement
// images. Disabled when the key is empty.
type SpacesConfig struct {
	Key    string `toml:"key"`
	Secret string `toml:"secret"`
	Region string `toml:"region"`
	Bucket string `toml:"bucket"`
	Root   string `toml:"root"`
}

func (c SpacesConfig) Enabled() bool {
	return c.Key != "" && c.Bucket != ""
}

// SpacesService mirrors vendor-hosted images into a Spaces bucket so pushed
// embeds do not depend on the vendor CDN's availability or hotlink policy.
type SpacesService struct {
	client *s3.Client
	http   *http.Client
	bucket string
	region string
	root   string
}

func NewSpacesService(cfg SpacesConfig) (*SpacesService, error) {
	resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{
			URL: fmt.Sprintf("https://%s.digitaloceanspaces.com", region),
		}, nil
	})

	awsCfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithEndpointResolverWithOptions(resolver),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.Key, cfg.Secret, "")),
		config.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load Spaces config: %w", err)
	}

	return &SpacesService{
		client: s3.NewFromConfig(awsCfg),
		http:   &http.Client{Timeout: 30 * time.Second},
		bucket: cfg.Bucket,
		region: cfg.Region,
		root:   strings.Trim(cfg.Root, "/"),
	}, nil
}

// MirrorImage downloads the source image and uploads it under a
// content-addressed key. Re-mirroring the same URL is a no-op upload of the
// same object. Returns the public mirror URL.
func (s *SpacesService) MirrorImage(ctx context.Context, srcURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srcURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch source image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("source image returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	sum := md5.Sum([]byte(srcURL))
	key := hex.EncodeToString(sum[:]) + ext(srcURL)
	if s.root != "" {
		key = s.root + "/" + key
	}

	contentType := resp.Header.Get("Content-Type")
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &key,
		Body:        strings.NewReader(string(body)),
		ContentType: &contentType,
		ACL:         "public-read",
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload mirror object: %w", err)
	}

	return fmt.Sprintf("https://%s.%s.digitaloceanspaces.com/%s", s.bucket, s.region, key), nil
}

func ext(srcURL string) string {
	e := strings.ToLower(path.Ext(srcURL))
	switch e {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return e
	}
	return ".jpg"
}
