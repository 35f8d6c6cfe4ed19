package s3

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"provenance-audit/internal/shared/storage/object"
)

func TestApplyPrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		prefix string
		key    string
		want   string
	}{
		{name: "no prefix", prefix: "", key: "reports/latest.md", want: "reports/latest.md"},
		{name: "simple prefix", prefix: "audit", key: "reports/latest.md", want: "audit/reports/latest.md"},
		{name: "prefix trailing slash", prefix: "audit/", key: "reports/latest.md", want: "audit/reports/latest.md"},
		{name: "prefix and key slashes", prefix: "/audit/", key: "/reports/latest.md", want: "audit/reports/latest.md"},
		{name: "nested prefix", prefix: "md/hanover", key: "reports/latest.md", want: "md/hanover/reports/latest.md"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := applyPrefix(tt.prefix, tt.key); got != tt.want {
				t.Fatalf("applyPrefix(%q, %q) = %q, want %q", tt.prefix, tt.key, got, tt.want)
			}
		})
	}
}

type fakeAPI struct {
	puts    []*s3.PutObjectInput
	bodies  map[string][]byte
	lastGet string
}

func (f *fakeAPI) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	if f.bodies == nil {
		f.bodies = map[string][]byte{}
	}
	f.bodies[aws.ToString(in.Key)] = body
	f.puts = append(f.puts, in)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeAPI) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.lastGet = aws.ToString(in.Key)
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(f.bodies[f.lastGet]))}, nil
}

func TestPublishReportToS3(t *testing.T) {
	api := &fakeAPI{}
	store := NewWithClient(api, "audit-bucket", "/md/", "kms-key")

	if _, err := object.PublishReport(context.Background(), store, time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC), "Overall: WARN\n"); err != nil {
		t.Fatalf("PublishReport: %v", err)
	}
	if len(api.puts) != 2 {
		t.Fatalf("expected 2 puts, got %d", len(api.puts))
	}
	latest := api.puts[1]
	if aws.ToString(latest.Key) != "md/reports/latest.md" || aws.ToString(latest.Bucket) != "audit-bucket" {
		t.Fatalf("unexpected put %s/%s", aws.ToString(latest.Bucket), aws.ToString(latest.Key))
	}
	if latest.ServerSideEncryption != s3types.ServerSideEncryptionAwsKms || aws.ToString(latest.SSEKMSKeyId) != "kms-key" {
		t.Fatalf("expected kms encryption, got %s", latest.ServerSideEncryption)
	}
	if aws.ToString(latest.CacheControl) != "no-cache" || api.puts[0].CacheControl != nil {
		t.Fatalf("only latest.md should be no-cache")
	}
	if latest.ChecksumAlgorithm != s3types.ChecksumAlgorithmSha256 {
		t.Fatalf("expected sha256 checksum, got %s", latest.ChecksumAlgorithm)
	}

	rc, err := store.Open(context.Background(), object.LatestReportKey)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	if string(body) != "Overall: WARN\n" || api.lastGet != "md/reports/latest.md" {
		t.Fatalf("unexpected read %q from %s", body, api.lastGet)
	}
}
