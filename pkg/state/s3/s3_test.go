// Copyright Flowbot Authors
// SPDX-License-Identifier: Apache-2.0

package s3_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leseb/flowbot/pkg/state"
	stateS3 "github.com/leseb/flowbot/pkg/state/s3"
	"github.com/leseb/flowbot/pkg/state/statetest"
)

func TestS3Conformance(t *testing.T) {
	bucket := os.Getenv("STATE_STORE_S3_BUCKET")
	endpoint := os.Getenv("STATE_STORE_S3_ENDPOINT")
	if bucket == "" || endpoint == "" {
		t.Skip("Skipping S3 conformance tests: STATE_STORE_S3_BUCKET and STATE_STORE_S3_ENDPOINT must be set (e.g. with MinIO)")
	}

	region := os.Getenv("STATE_STORE_S3_REGION")
	if region == "" {
		region = "us-east-1"
	}

	statetest.Run(t, func(t *testing.T) state.Store {
		store, err := stateS3.New(context.Background(), stateS3.Options{
			Bucket:   bucket,
			Region:   region,
			Prefix:   "test-" + t.Name() + "/",
			Endpoint: endpoint,
		})
		require.NoError(t, err)
		return store
	})
}

func TestS3RequiresBucket(t *testing.T) {
	_, err := stateS3.New(context.Background(), stateS3.Options{})
	assert.ErrorContains(t, err, "bucket is required")
}
