package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"orphansweep/pkg/storage"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3 单次 DeleteObjects 最多 1000 个 key
const maxDeleteBatch = 1000

// Adapter 实现了 storage.Store 接口
type Adapter struct {
	client *s3.Client
	bucket string
}

// Config 用于初始化 Adapter
type Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	// PathStyle: MinIO 等自建服务需要开启
	PathStyle bool
}

// NewAdapter 初始化 S3 客户端
// 不自动创建 Bucket，不存在即 fail-fast
func NewAdapter(ctx context.Context, cfg Config) (*Adapter, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	// 1. 加载基础配置 (仅包含 Region 和 Credentials)
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "",
		)))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	// 2. 创建 S3 客户端时，注入特定于 S3 的配置
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})

	a := &Adapter{client: client, bucket: cfg.Bucket}

	// 3. 连通性检查 (凭证、bucket)
	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(cfg.Bucket)}); err != nil {
		return nil, fmt.Errorf("s3 bucket %q not reachable: %w", cfg.Bucket, err)
	}

	return a, nil
}

// ListKeys 使用分页器遍历整个 bucket
func (s *Adapter) ListKeys(ctx context.Context, fn func(key string) error) error {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return classify(fmt.Errorf("s3 list failed: %w", err))
		}
		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			if err := fn(*obj.Key); err != nil {
				return err
			}
		}
	}
	return nil
}

// Get 下载对象
func (s *Adapter) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		// 将 AWS 的 NoSuchKey 错误映射为我们自己的 ErrNotFound
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, classify(fmt.Errorf("s3 get %s failed: %w", key, err))
	}
	return resp.Body, nil
}

// Delete 批量删除，自动按 1000 个一批切分
func (s *Adapter) Delete(ctx context.Context, keys []string) (map[string]error, error) {
	failures := make(map[string]error)

	for i := 0; i < len(keys); i += maxDeleteBatch {
		if err := ctx.Err(); err != nil {
			for _, k := range keys[i:] {
				failures[k] = err
			}
			return failures, err
		}

		end := min(i+maxDeleteBatch, len(keys))
		batch := keys[i:end]

		objects := make([]s3types.ObjectIdentifier, len(batch))
		for j, k := range batch {
			objects[j] = s3types.ObjectIdentifier{Key: aws.String(k)}
		}

		result, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &s3types.Delete{
				Objects: objects,
				Quiet:   aws.Bool(true),
			},
		})
		if err != nil {
			err = classify(fmt.Errorf("s3 delete failed: %w", err))
			for _, k := range batch {
				failures[k] = err
			}
			continue
		}

		// Quiet 模式下只返回失败的 key
		for _, e := range result.Errors {
			if e.Key == nil {
				continue
			}
			code := aws.ToString(e.Code)
			if code == "NoSuchKey" {
				continue // 已经不存在，幂等
			}
			keyErr := fmt.Errorf("%s: %s", code, aws.ToString(e.Message))
			if isRetryableCode(code) {
				keyErr = fmt.Errorf("%w: %w", storage.ErrTransient, keyErr)
			}
			failures[*e.Key] = keyErr
		}
	}

	return failures, nil
}

// classify 给可重试的错误打上 storage.ErrTransient 标记
func classify(err error) error {
	if isRetryableError(err) {
		return fmt.Errorf("%w: %w", storage.ErrTransient, err)
	}
	return err
}

// isRetryableError 判断是否为暂时性故障 (网络、限流、5xx)
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	// Context 错误不算暂时性故障：那是操作员主动取消
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return isRetryableCode(apiErr.ErrorCode())
	}

	// 兼容性：某些 S3 实现只给出字符串
	errStr := err.Error()
	return strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "i/o timeout") ||
		strings.Contains(errStr, "503")
}

func isRetryableCode(code string) bool {
	switch code {
	case "Throttling", "ThrottlingException", "RequestThrottled", "SlowDown",
		"InternalError", "ServiceUnavailable", "RequestTimeout":
		return true
	}
	return false
}

// isNotFoundError 判断对象是否不存在
func isNotFoundError(err error) bool {
	var noKey *s3types.NoSuchKey
	var notFound *s3types.NotFound
	if errors.As(err, &noKey) || errors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NoSuchKey" || code == "NotFound"
	}
	return false
}

// 编译期检查
var _ storage.Store = (*Adapter)(nil)
