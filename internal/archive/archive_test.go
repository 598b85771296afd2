package archive

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	bucket, key, contentType string
	body                     []byte
	err                      error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.bucket = aws.ToString(in.Bucket)
	f.key = aws.ToString(in.Key)
	f.contentType = aws.ToString(in.ContentType)
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, nil
}

func stubS3(t *testing.T, fake *fakeS3, load func(context.Context, ...func(*awsconfig.LoadOptions) error) (aws.Config, error)) *s3.Options {
	t.Helper()

	origLoad := loadDefaultAWSConfig
	origNew := newS3ClientFromConfig
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNew
	})

	var captured s3.Options
	if load != nil {
		loadDefaultAWSConfig = load
	}
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) putObjectAPI {
		for _, fn := range optFns {
			fn(&captured)
		}
		return fake
	}
	return &captured
}

func TestKey(t *testing.T) {
	assert.Equal(t, "raw/payments/r1/123/00001.json", Key("payments", "r1", "123", 1))
	assert.Equal(t, "raw/sales/r1/a_b_c/00012.json", Key("sales", "r1", "a/b c", 12))
	assert.Equal(t, "raw/sales/r1/_/00000.json", Key("sales", "r1", "", 0))
}

func TestNewS3Archiver_AppliesConfig(t *testing.T) {
	fake := &fakeS3{}
	var lo awsconfig.LoadOptions
	opts := stubS3(t, fake, func(_ context.Context, fns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		for _, fn := range fns {
			require.NoError(t, fn(&lo))
		}
		return aws.Config{}, nil
	})

	a, err := NewS3Archiver(context.Background(), S3Config{
		Bucket:       "statements",
		Region:       "us-east-1",
		AccessKey:    "minioadmin",
		SecretKey:    "minioadmin",
		BaseEndpoint: "http://127.0.0.1:9000",
	})
	require.NoError(t, err)

	assert.Equal(t, "us-east-1", lo.Region)
	require.NotNil(t, lo.Credentials)
	creds, err := lo.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "minioadmin", creds.AccessKeyID)

	require.NotNil(t, opts.BaseEndpoint)
	assert.Equal(t, "http://127.0.0.1:9000", *opts.BaseEndpoint)
	assert.True(t, opts.UsePathStyle)

	require.NoError(t, a.Put(context.Background(), "raw/x.json", []byte(`{"a":1}`)))
	assert.Equal(t, "statements", fake.bucket)
	assert.Equal(t, "raw/x.json", fake.key)
	assert.Equal(t, "application/json", fake.contentType)
	assert.JSONEq(t, `{"a":1}`, string(fake.body))
}

func TestNewS3Archiver_Errors(t *testing.T) {
	_, err := NewS3Archiver(context.Background(), S3Config{})
	require.Error(t, err)

	stubS3(t, &fakeS3{}, func(context.Context, ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("no region")
	})
	_, err = NewS3Archiver(context.Background(), S3Config{Bucket: "b"})
	require.ErrorContains(t, err, "no region")
}

func TestS3Archiver_PutError(t *testing.T) {
	a := &S3Archiver{client: &fakeS3{err: errors.New("denied")}, bucket: "b"}
	err := a.Put(context.Background(), "k", nil)
	require.ErrorContains(t, err, "put s3://b/k: denied")
}

func TestNop(t *testing.T) {
	require.NoError(t, Nop{}.Put(context.Background(), "k", []byte("x")))
}
