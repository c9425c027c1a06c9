/*
formdata - multipart/form-data part assembly for Go servers.
Copyright © 2019-2020 Max Mazurov <fox.cpp@disroot.org>, Maddy Mail Server contributors

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/foxcpp/formdata/framework/log"
	"github.com/foxcpp/formdata/framework/module"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const modName = "s3"

const (
	credsTypeFileMinio = "file_minio"
	credsTypeFileAWS   = "file_aws"
	credsTypeAccessKey = "access_key"
	credsTypeIAM       = "iam"
	credsTypeDefault   = credsTypeAccessKey
)

// Config describes the S3 connection. Endpoint and Bucket are required.
type Config struct {
	Endpoint     string
	Secure       bool
	AccessKey    string
	SecretKey    string
	Bucket       string
	Region       string
	ObjectPrefix string

	// Creds is one of "access_key" (default), "file_minio", "file_aws",
	// "iam".
	Creds string
}

// ConfigFromMap reads Config from the string options used in the
// configuration file.
func ConfigFromMap(opts map[string]string) (Config, error) {
	cfg := Config{
		Endpoint:     opts["endpoint"],
		AccessKey:    opts["access_key"],
		SecretKey:    opts["secret_key"],
		Bucket:       opts["bucket"],
		Region:       opts["region"],
		ObjectPrefix: opts["object_prefix"],
		Creds:        opts["creds"],
	}
	if v, ok := opts["secure"]; ok {
		secure, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("%s: invalid value for secure: %w", modName, err)
		}
		cfg.Secure = secure
	}
	return cfg, nil
}

type Store struct {
	log log.Logger

	endpoint string
	cl       *minio.Client

	bucketName   string
	objectPrefix string
}

func New(cfg Config, logger log.Logger) (*Store, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("%s: endpoint not set", modName)
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%s: bucket not set", modName)
	}

	var creds *credentials.Credentials

	switch cfg.Creds {
	case credsTypeFileMinio:
		creds = credentials.NewFileMinioClient("", "")
	case credsTypeFileAWS:
		creds = credentials.NewFileAWSCredentials("", "")
	case credsTypeIAM:
		creds = credentials.NewIAM("")
	case credsTypeAccessKey, "":
		creds = credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, "")
	default:
		return nil, fmt.Errorf("%s: unknown credentials type: %s", modName, cfg.Creds)
	}

	cl, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  creds,
		Secure: cfg.Secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", modName, err)
	}

	return &Store{
		log:          logger,
		endpoint:     cfg.Endpoint,
		cl:           cl,
		bucketName:   cfg.Bucket,
		objectPrefix: cfg.ObjectPrefix,
	}, nil
}

type s3blob struct {
	pw      *io.PipeWriter
	didSync bool
	closed  bool
	errCh   chan error
}

func (b *s3blob) Sync() error {
	// Upload is completed in Sync instead of Close because callers do not
	// always check the error of Close. Sync can be called only once.
	if b.didSync {
		panic("blob_store.s3: Sync called twice for a blob object")
	}

	b.pw.Close()
	b.didSync = true
	return <-b.errCh
}

func (b *s3blob) Write(p []byte) (n int, err error) {
	return b.pw.Write(p)
}

// Close aborts the upload if Sync was not called and waits for the upload
// goroutine to finish.
func (b *s3blob) Close() error {
	if b.didSync || b.closed {
		return nil
	}
	b.closed = true
	b.pw.CloseWithError(errors.New("blob_store.s3: blob closed without Sync"))
	<-b.errCh
	return nil
}

func (s *Store) Create(ctx context.Context, key string, blobSize int64) (module.Blob, error) {
	pr, pw := io.Pipe()
	errCh := make(chan error, 1)

	go func() {
		partSize := uint64(0)
		if blobSize == module.UnknownBlobSize {
			// Without this, minio-go will allocate 500 MiB buffer.
			// https://github.com/minio/minio-go/issues/1478
			partSize = 1 * 1024 * 1024 /* 1 MiB */
		}
		_, err := s.cl.PutObject(ctx, s.bucketName, s.objectPrefix+key, pr, blobSize, minio.PutObjectOptions{
			PartSize: partSize,
		})
		if err != nil {
			pr.CloseWithError(fmt.Errorf("s3 PutObject: %w", err))
		}
		errCh <- err
	}()

	return &s3blob{
		pw:    pw,
		errCh: errCh,
	}, nil
}

func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	// GetObject is lazy, Stat is used to get the not found error right away.
	obj, err := s.cl.GetObject(ctx, s.bucketName, s.objectPrefix+key, minio.GetObjectOptions{})
	if err == nil {
		_, err = obj.Stat()
		if err != nil {
			obj.Close()
		}
	}
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.StatusCode == http.StatusNotFound {
			return nil, module.ErrNoSuchBlob
		}
		return nil, err
	}
	return obj, nil
}

func (s *Store) Delete(ctx context.Context, keys []string) error {
	var lastErr error
	for _, k := range keys {
		err := s.cl.RemoveObject(ctx, s.bucketName, s.objectPrefix+k, minio.RemoveObjectOptions{})
		if err != nil {
			s.log.Error("failed to delete object", err, "key", s.objectPrefix+k)
			lastErr = err
		}
	}
	return lastErr
}

func init() {
	var _ module.BlobStore = &Store{}
	module.RegisterBlobStore(modName, func(opts map[string]string, logger log.Logger) (module.BlobStore, error) {
		cfg, err := ConfigFromMap(opts)
		if err != nil {
			return nil, err
		}
		return New(cfg, logger)
	})
}
