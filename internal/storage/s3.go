// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package storage archives batch reports in S3-compatible object storage.
// It wraps the AWS SDK v2 and uses path-style access so it works against
// CEPH, MinIO and Hetzner as well as AWS.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"copyforge/internal/models"
)

// Config holds the connection settings for the report bucket.
type Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
}

// Reports stores batch results as JSON objects.
type Reports struct {
	s3        *s3.Client
	presigner *s3.PresignClient
	bucket    string
}

// New creates a report store. Returns (nil, nil) if the endpoint,
// credentials or bucket are empty, allowing the app to start without
// storage.
func New(cfg Config) (*Reports, error) {
	if cfg.Endpoint == "" || cfg.AccessKey == "" || cfg.SecretKey == "" || cfg.Bucket == "" {
		return nil, nil
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	client := s3.New(s3.Options{
		Region:       cfg.Region,
		BaseEndpoint: aws.String(strings.TrimRight(cfg.Endpoint, "/")),
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	})

	return &Reports{
		s3:        client,
		presigner: s3.NewPresignClient(client),
		bucket:    cfg.Bucket,
	}, nil
}

// Key returns the object key for a batch report.
func Key(shopID, batchID uuid.UUID) string {
	return fmt.Sprintf("reports/%s/%s.json", shopID, batchID)
}

// Upload writes the batch result and returns its object key.
func (r *Reports) Upload(ctx context.Context, result *models.BatchResult) (string, error) {
	body, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}
	key := Key(result.ShopID, result.BatchID)

	_, err = r.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(r.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("s3 upload %s/%s: %w", r.bucket, key, err)
	}
	return key, nil
}

// Download reads a stored report back.
func (r *Reports) Download(ctx context.Context, shopID, batchID uuid.UUID) (*models.BatchResult, error) {
	key := Key(shopID, batchID)
	out, err := r.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 download %s/%s: %w", r.bucket, key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3 read body %s/%s: %w", r.bucket, key, err)
	}
	var result models.BatchResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", key, err)
	}
	return &result, nil
}

// PresignedURL returns a pre-signed GET URL for a report, valid for expires
// (at most 7 days).
func (r *Reports) PresignedURL(ctx context.Context, key string, expires time.Duration) (string, error) {
	req, err := r.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expires))
	if err != nil {
		return "", fmt.Errorf("s3 presign %s/%s: %w", r.bucket, key, err)
	}
	return req.URL, nil
}
