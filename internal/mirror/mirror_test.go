package mirror

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_ReturnsNilSinkWhenBucketUnset(t *testing.T) {
	sink, err := New(context.Background(), "", "")
	require.NoError(t, err)
	assert.Nil(t, sink)
}

func TestMirrorFinalized_SafeOnNilSink(t *testing.T) {
	var sink *Sink
	assert.NotPanics(t, func() {
		sink.MirrorFinalized(context.Background(), "/tmp/does-not-matter.aiff", "/tmp/does-not-matter.dropcrate.json")
	})
}

func TestMirrorFinalized_SkipsEmptyPathsWithoutUploading(t *testing.T) {
	sink := &Sink{bucket: "test-bucket"}
	assert.NotPanics(t, func() {
		sink.MirrorFinalized(context.Background(), "", "")
	})
}

func TestUpload_ReturnsErrorForMissingLocalFile(t *testing.T) {
	sink := &Sink{bucket: "test-bucket"}
	err := sink.Upload(context.Background(), "/nonexistent/path/track.aiff", "track.aiff")
	assert.Error(t, err)
}
