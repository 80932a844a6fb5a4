package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/workhub-api/pkg/config"
)

func TestS3PresignerRequiresBucket(t *testing.T) {
	_, err := NewS3Presigner(config.StorageConfig{})
	require.Error(t, err)
}

func TestS3PresignerPresignGet(t *testing.T) {
	presigner, err := NewS3Presigner(config.StorageConfig{
		Endpoint:        "http://localhost:9000/",
		Region:          "us-east-1",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		Bucket:          "attachments",
		ForcePathStyle:  true,
		PresignTTL:      10 * time.Minute,
	})
	require.NoError(t, err)

	url, expiresAt, err := presigner.PresignGet(context.Background(), "/ann-1/handbook.pdf")
	require.NoError(t, err)
	assert.Contains(t, url, "http://localhost:9000/attachments/ann-1/handbook.pdf")
	assert.Contains(t, url, "X-Amz-Signature=")
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), expiresAt, 5*time.Second)

	_, _, err = presigner.PresignGet(context.Background(), "")
	require.Error(t, err)
}
