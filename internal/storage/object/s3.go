// Copyright 2026 fanjia1024
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

package object

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"note-platform/pkg/config"
	"note-platform/pkg/errors"
)

// S3Store S3 兼容对象存储（AWS/MinIO/R2）。读取走 GetFile 时下载为
// 临时文件，调用方用完必须 Cleanup；key 的校验规则与本地盘一致。
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string // 桶内 key 前缀，来自 customPath
	guard  *PathGuard
}

// NewS3Store 创建 S3 存储；endpoint 为空时用 AWS 官方地址
func NewS3Store(ctx context.Context, cfg config.S3Config, guard *PathGuard) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.ConfigMissingf("s3 bucket is empty")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.AccessKeySecret, "")),
	)
	if err != nil {
		return nil, errors.Wrap(err, "load aws config")
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return &S3Store{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.CustomPath, "/"),
		guard:  guard,
	}, nil
}

// resolveKey 归一化路径并拼出桶内 key
func (s *S3Store) resolveKey(p string, allowTemp bool) (key string, rel string, err error) {
	rel, err = s.guard.ValidateRelPath(NormalizeWebPath(p), allowTemp)
	if err != nil {
		return "", "", err
	}
	return path.Join(s.prefix, rel), rel, nil
}

func isNoSuchKey(err error) bool {
	var nsk *s3types.NoSuchKey
	var nf *s3types.NotFound
	return stderrors.As(err, &nsk) || stderrors.As(err, &nf)
}

// GetFile 下载对象到临时目录；Cleanup 删除副本并清扫残留
func (s *S3Store) GetFile(ctx context.Context, p string) (*FileHandle, error) {
	key, rel, err := s.resolveKey(p, true)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, errors.WithKind(errors.ErrNotFound, err)
		}
		return nil, errors.Wrap(err, "get s3 object")
	}
	defer out.Body.Close()

	tmp, err := s.guard.TempPath(path.Base(rel))
	if err != nil {
		return nil, err
	}
	f, err := os.Create(tmp)
	if err != nil {
		return nil, errors.Wrap(err, "create temp file")
	}
	if _, err := io.Copy(f, out.Body); err != nil {
		f.Close()
		os.Remove(tmp)
		return nil, errors.Wrap(err, "download s3 object")
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return nil, errors.Wrap(err, "close temp file")
	}
	guard := s.guard
	return &FileHandle{
		LocalPath:   tmp,
		IsTemporary: true,
		Cleanup: func() {
			os.Remove(tmp)
			guard.SweepTemp(tempSweepAge)
		},
	}, nil
}

// GetFileBuffer 整块读取对象
func (s *S3Store) GetFileBuffer(ctx context.Context, p string) ([]byte, error) {
	key, _, err := s.resolveKey(p, true)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, errors.WithKind(errors.ErrNotFound, err)
		}
		return nil, errors.Wrap(err, "get s3 object")
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read s3 object")
	}
	return data, nil
}

// UploadFile 写入对象并返回 web 路径
func (s *S3Store) UploadFile(ctx context.Context, p string, data []byte) (string, error) {
	key, rel, err := s.resolveKey(p, true)
	if err != nil {
		return "", err
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return "", errors.Wrap(err, "put s3 object")
	}
	return WebPathS3 + rel, nil
}

// UploadFileStream 流式写入。签名需要可回溯的 body，
// 不可 Seek 的 reader 先落内存再上传。
func (s *S3Store) UploadFileStream(ctx context.Context, p string, r io.Reader, size int64) (string, error) {
	body, ok := r.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(r)
		if err != nil {
			return "", errors.Wrap(err, "read upload stream")
		}
		return s.UploadFile(ctx, p, data)
	}
	key, rel, err := s.resolveKey(p, true)
	if err != nil {
		return "", err
	}
	in := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if size >= 0 {
		in.ContentLength = aws.Int64(size)
	}
	if _, err := s.client.PutObject(ctx, in); err != nil {
		return "", errors.Wrap(err, "put s3 object")
	}
	return WebPathS3 + rel, nil
}

// DeleteFile 删除对象；S3 删除本身幂等
func (s *S3Store) DeleteFile(ctx context.Context, p string) error {
	key, _, err := s.resolveKey(p, true)
	if err != nil {
		return err
	}
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return errors.Wrap(err, "delete s3 object")
	}
	return nil
}

// copyThenDelete S3 没有原子 rename，拷贝后删源
func (s *S3Store) copyThenDelete(ctx context.Context, oldKey, newKey string) error {
	_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		CopySource: aws.String(url.PathEscape(s.bucket + "/" + oldKey)),
		Key:        aws.String(newKey),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return errors.WithKind(errors.ErrNotFound, err)
		}
		return errors.Wrap(err, "copy s3 object")
	}
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(oldKey),
	})
	if err != nil {
		return errors.Wrap(err, "delete s3 object after copy")
	}
	return nil
}

// RenameFile 改名只在正式前缀内进行
func (s *S3Store) RenameFile(ctx context.Context, oldPath, newPath string) (string, error) {
	oldKey, _, err := s.resolveKey(oldPath, false)
	if err != nil {
		return "", err
	}
	newKey, newRel, err := s.resolveKey(newPath, false)
	if err != nil {
		return "", err
	}
	if err := s.copyThenDelete(ctx, oldKey, newKey); err != nil {
		return "", err
	}
	return WebPathS3 + newRel, nil
}

// MoveFile 允许从临时前缀移入正式前缀，目标不得落在临时前缀
func (s *S3Store) MoveFile(ctx context.Context, oldPath, newPath string) (string, error) {
	oldKey, _, err := s.resolveKey(oldPath, true)
	if err != nil {
		return "", err
	}
	newKey, newRel, err := s.resolveKey(newPath, false)
	if err != nil {
		return "", err
	}
	if err := s.copyThenDelete(ctx, oldKey, newKey); err != nil {
		return "", err
	}
	return WebPathS3 + newRel, nil
}

// Close S3 客户端无连接可关
func (s *S3Store) Close() error { return nil }
