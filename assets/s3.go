package assets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

// S3Config groups the values needed to reach an S3 compatible bucket.
// for Cloudflare R2 the endpoint is https://<account id>.r2.cloudflarestorage.com
// and the region is "auto".
type S3Config struct {
	Bucket          string
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// S3Store keeps assets as objects in one bucket, key = "<slug>/<relative path>".
// the Content-Type is stored on the object at upload time and returned on Get.
type S3Store struct {
	client s3iface.S3API
	bucket string
	logger *slog.Logger
}

// NewS3Store builds an S3 client from static credentials.
// path-style addressing is forced because R2 and most self-hosted S3 servers
// (MinIO, SeaweedFS) do not resolve bucket subdomains.
func NewS3Store(s3Config S3Config, logger *slog.Logger) (*S3Store, error) {
	awsConfig := &aws.Config{
		Region:           aws.String(s3Config.Region),
		Credentials:      credentials.NewStaticCredentials(s3Config.AccessKeyID, s3Config.SecretAccessKey, ""),
		S3ForcePathStyle: aws.Bool(true),
	}
	if s3Config.Endpoint != "" {
		awsConfig.Endpoint = aws.String(s3Config.Endpoint)
	}

	awsSession, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 session: %w", err)
	}

	logger.Info("s3 asset store ready", "bucket", s3Config.Bucket, "endpoint", s3Config.Endpoint)
	return NewS3StoreWithClient(s3.New(awsSession), s3Config.Bucket, logger), nil
}

// NewS3StoreWithClient wraps an existing client (tests pass one pointed at an httptest server).
func NewS3StoreWithClient(client s3iface.S3API, bucket string, logger *slog.Logger) *S3Store {
	return &S3Store{client: client, bucket: bucket, logger: logger}
}

// Put uploads data as a single PutObject call. bundle files are small enough that
// multipart upload is not worth the extra requests.
func (store *S3Store) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := store.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(store.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return fmt.Errorf("failed to put object %q: %w", key, err)
	}
	return nil
}

// Get downloads the object. NoSuchKey (or a bare 404) becomes ErrNotFound.
func (store *S3Store) Get(ctx context.Context, key string) (*Object, error) {
	output, err := store.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(store.bucket),
		Key:    aws.String(key),
	})
	if isS3NotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get object %q: %w", key, err)
	}
	defer output.Body.Close()

	data, err := io.ReadAll(output.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object body %q: %w", key, err)
	}

	contentType := aws.StringValue(output.ContentType)
	if contentType == "" {
		contentType = ContentTypeFor(key)
	}
	return &Object{Data: data, ContentType: contentType}, nil
}

// Exists issues a HeadObject. HEAD responses have no body, so a missing key
// only shows up as a 404 status code, never as a NoSuchKey error code.
func (store *S3Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := store.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(store.bucket),
		Key:    aws.String(key),
	})
	if isS3NotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to head object %q: %w", key, err)
	}
	return true, nil
}

// DeletePrefix lists every key under prefix and deletes them page by page.
// a ListObjectsV2 page holds at most 1000 keys, which is also the DeleteObjects limit,
// so each page maps to exactly one delete call.
func (store *S3Store) DeletePrefix(ctx context.Context, prefix string) error {
	if strings.Trim(prefix, "/") == "" {
		return fmt.Errorf("refusing to delete empty asset prefix")
	}

	var deletedCount int
	var errDelete error

	errList := store.client.ListObjectsV2PagesWithContext(ctx,
		&s3.ListObjectsV2Input{
			Bucket: aws.String(store.bucket),
			Prefix: aws.String(prefix),
		},
		func(page *s3.ListObjectsV2Output, lastPage bool) bool {
			if len(page.Contents) == 0 {
				return true
			}

			objectIdentifiers := make([]*s3.ObjectIdentifier, 0, len(page.Contents))
			for _, object := range page.Contents {
				objectIdentifiers = append(objectIdentifiers, &s3.ObjectIdentifier{Key: object.Key})
			}

			output, err := store.client.DeleteObjectsWithContext(ctx, &s3.DeleteObjectsInput{
				Bucket: aws.String(store.bucket),
				Delete: &s3.Delete{
					Objects: objectIdentifiers,
					// Quiet mode only reports failures in the response body
					Quiet: aws.Bool(true),
				},
			})
			if err != nil {
				errDelete = fmt.Errorf("failed to delete objects under %q: %w", prefix, err)
				return false
			}
			if len(output.Errors) > 0 {
				firstFailure := output.Errors[0]
				errDelete = fmt.Errorf("failed to delete %d objects under %q, first: %s (%s)",
					len(output.Errors), prefix, aws.StringValue(firstFailure.Key), aws.StringValue(firstFailure.Message))
				return false
			}

			deletedCount += len(objectIdentifiers)
			return true
		},
	)
	if errList != nil {
		return fmt.Errorf("failed to list objects under %q: %w", prefix, errList)
	}
	if errDelete != nil {
		return errDelete
	}

	store.logger.Info("asset prefix removed", "prefix", prefix, "objects", deletedCount)
	return nil
}

// ListPrefixes lists the common prefixes at the bucket root ("guide/", "report/").
func (store *S3Store) ListPrefixes(ctx context.Context) ([]string, error) {
	var slugs []string

	err := store.client.ListObjectsV2PagesWithContext(ctx,
		&s3.ListObjectsV2Input{
			Bucket:    aws.String(store.bucket),
			Delimiter: aws.String("/"),
		},
		func(page *s3.ListObjectsV2Output, lastPage bool) bool {
			for _, commonPrefix := range page.CommonPrefixes {
				slugs = append(slugs, strings.TrimSuffix(aws.StringValue(commonPrefix.Prefix), "/"))
			}
			return true
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list bucket prefixes: %w", err)
	}
	return slugs, nil
}

// isS3NotFound matches both shapes a missing key can take:
// an error code (GetObject returns an XML body with NoSuchKey)
// and a bare 404 status (HeadObject has no body to carry a code).
func isS3NotFound(err error) bool {
	if err == nil {
		return false
	}

	var requestFailure awserr.RequestFailure
	if errors.As(err, &requestFailure) &&
		requestFailure.StatusCode() == http.StatusNotFound &&
		requestFailure.Code() != s3.ErrCodeNoSuchBucket {
		return true
	}

	var awsError awserr.Error
	if errors.As(err, &awsError) {
		switch awsError.Code() {
		case s3.ErrCodeNoSuchKey, "NotFound":
			return true
		}
	}
	return false
}
