// Copyright 2024 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package objstore

import (
	"bytes"
	"context"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/nfsmeta/distfs/cfg"
	"github.com/pkg/errors"
)

// s3Store backs regular-file payloads with an S3-compatible bucket,
// grounded on rclone's backend/s3 client construction (a session plus
// a single long-lived *s3.S3 client reused across calls).
type s3Store struct {
	client *s3.S3
	bucket string
}

// NewS3Store builds a Store from a storage configuration whose
// Backend is cfg.StorageBackendS3.
func NewS3Store(storageCfg cfg.StorageConfig) (Store, error) {
	awsCfg := aws.NewConfig().WithRegion("us-east-1")
	if storageCfg.Endpoint != "" {
		awsCfg = awsCfg.WithEndpoint(storageCfg.Endpoint).WithS3ForcePathStyle(true)
	}
	if storageCfg.AccessKey != "" {
		awsCfg = awsCfg.WithCredentials(credentials.NewStaticCredentials(
			storageCfg.AccessKey, storageCfg.SecretKey, ""))
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, errors.Wrap(err, "objstore: building aws session")
	}

	return &s3Store{client: s3.New(sess), bucket: storageCfg.Bucket}, nil
}

func (s *s3Store) GetObject(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == s3.ErrCodeNoSuchKey {
			return nil, ErrNotExist
		}
		return nil, errors.Wrapf(err, "objstore: get %s", key)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "objstore: read body for %s", key)
	}
	return data, nil
}

func (s *s3Store) PutObject(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return errors.Wrapf(err, "objstore: put %s", key)
	}
	return nil
}

func (s *s3Store) DeleteObject(ctx context.Context, key string) error {
	_, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return errors.Wrapf(err, "objstore: delete %s", key)
	}
	return nil
}
