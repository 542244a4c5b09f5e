package archive

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/ToolFox/internal/pkg/config"
)

type recordingPutter struct {
	inputs []*s3.PutObjectInput
	bodies []string
	err    error
}

func (r *recordingPutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if r.err != nil {
		return nil, r.err
	}
	b, _ := io.ReadAll(in.Body)
	r.inputs = append(r.inputs, in)
	r.bodies = append(r.bodies, string(b))
	return &s3.PutObjectOutput{}, nil
}

func TestObjectKey(t *testing.T) {
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.FixedZone("CET", 3600))
	assert.Equal(t, "sweeps/advertisements/2026/03/04/040607.json", ObjectKey("sweeps", "advertisements", at))
	assert.Equal(t, "subscriptions/2026/03/04/040607.json", ObjectKey("", "subscriptions", at))
}

func TestStoreUploadsJSON(t *testing.T) {
	p := &recordingPutter{}
	c := newClient(p, "reports", "/toolfox/sweeps/")

	key, err := c.Store(context.Background(), "subscriptions", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), []byte(`{"expired":1}`))
	require.NoError(t, err)
	assert.Equal(t, "toolfox/sweeps/subscriptions/2026/01/02/030405.json", key)

	require.Len(t, p.inputs, 1)
	assert.Equal(t, "reports", aws.ToString(p.inputs[0].Bucket))
	assert.Equal(t, "application/json", aws.ToString(p.inputs[0].ContentType))
	assert.Equal(t, int64(13), aws.ToInt64(p.inputs[0].ContentLength))
	assert.Equal(t, `{"expired":1}`, p.bodies[0])
}

func TestStoreWrapsErrors(t *testing.T) {
	boom := errors.New("access denied")
	c := newClient(&recordingPutter{err: boom}, "reports", "")
	_, err := c.Store(context.Background(), "advertisements", time.Now(), []byte(`{}`))
	assert.ErrorIs(t, err, boom)
}

func TestNewClientRequiresEnabled(t *testing.T) {
	_, err := NewClient(context.Background(), config.Archive{})
	assert.Error(t, err)
}
