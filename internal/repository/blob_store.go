package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"atmeex_cloud/internal/config"
	"atmeex_cloud/internal/models"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Mirror copies config entry tokens to an S3 bucket so a fresh install can be
// reseeded without a new vendor sign-in. The password is never mirrored.
type S3Mirror struct {
	client *minio.Client
	bucket string
	prefix string
}

var _ EntryMirror = (*S3Mirror)(nil)

type entryDocument struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func NewS3Mirror(cfg config.BlobConfig) (*S3Mirror, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	bucket := strings.TrimSpace(cfg.Bucket)
	if endpoint == "" || bucket == "" {
		return nil, fmt.Errorf("missing blob configuration")
	}

	host, secure, err := parseEndpoint(endpoint, cfg.UseSSL)
	if err != nil {
		return nil, err
	}

	client, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}

	prefix := strings.Trim(strings.TrimSpace(cfg.Prefix), "/")
	if prefix == "" {
		prefix = "atmeex/entries"
	}
	return &S3Mirror{client: client, bucket: bucket, prefix: prefix}, nil
}

func (s *S3Mirror) Save(ctx context.Context, e models.ConfigEntry) error {
	data, err := marshalEntryDocument(e)
	if err != nil {
		return err
	}
	reader := bytes.NewReader(data)
	_, err = s.client.PutObject(ctx, s.bucket, s.key(e.ID), reader, int64(reader.Len()), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("mirror entry %q: %w", e.ID, err)
	}
	return nil
}

func (s *S3Mirror) Delete(ctx context.Context, id string) error {
	err := s.client.RemoveObject(ctx, s.bucket, s.key(id), minio.RemoveObjectOptions{})
	if err != nil && minio.ToErrorResponse(err).Code != "NoSuchKey" {
		return fmt.Errorf("remove mirrored entry %q: %w", id, err)
	}
	return nil
}

func (s *S3Mirror) key(id string) string {
	return path.Join(s.prefix, id+".json")
}

func marshalEntryDocument(e models.ConfigEntry) ([]byte, error) {
	updated := e.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	return json.Marshal(entryDocument{
		ID:           e.ID,
		Email:        e.Email,
		AccessToken:  e.AccessToken,
		RefreshToken: e.RefreshToken,
		UpdatedAt:    updated.UTC(),
	})
}

func parseEndpoint(raw string, defaultSecure bool) (string, bool, error) {
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", false, fmt.Errorf("parse endpoint: %w", err)
		}
		if u.Host == "" {
			return "", false, fmt.Errorf("invalid endpoint: %q", raw)
		}
		return u.Host, u.Scheme == "https", nil
	}
	return raw, defaultSecure, nil
}

// NopMirror is used when no bucket is configured.
type NopMirror struct{}

func (NopMirror) Save(context.Context, models.ConfigEntry) error { return nil }
func (NopMirror) Delete(context.Context, string) error           { return nil }
