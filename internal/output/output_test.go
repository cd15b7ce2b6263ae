package output

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderAppendsLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")

	rec := NewRecorder(path)
	require.NoError(t, rec.Record([]byte(`{"state":"connected"}`)))
	require.NoError(t, rec.Record([]byte(`{"state":"disconnected"}`)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\"state\":\"connected\"}\n{\"state\":\"disconnected\"}\n", string(data))
	require.NoError(t, rec.Close())
}

func TestRecorderNeverTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{\"state\":\"initialized\"}\n"), 0o644))

	rec := NewRecorder(path)
	require.NoError(t, rec.Record([]byte(`{"state":"connected"}`)))
	require.NoError(t, rec.Close())

	rec = NewRecorder(path)
	require.NoError(t, rec.Record([]byte(`{"state":"disconnected"}`)))
	require.NoError(t, rec.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"{\"state\":\"initialized\"}\n{\"state\":\"connected\"}\n{\"state\":\"disconnected\"}\n",
		string(data))
}

func TestRecorderClosed(t *testing.T) {
	rec := NewRecorder(filepath.Join(t.TempDir(), "x.json"))
	require.NoError(t, rec.Close())
	assert.ErrorIs(t, rec.Record([]byte(`{}`)), ErrRecorderClosed)
}

func TestRecorderOpenFailure(t *testing.T) {
	dir := t.TempDir()
	rec := NewRecorder(dir)
	assert.Error(t, rec.Record([]byte(`{}`)))
}

func TestRawLogRoundTrip(t *testing.T) {
	writer, err := NewRawLogWriter(t.TempDir(), "bridge")
	require.NoError(t, err)
	stamp := time.Unix(1700000000, 123)
	writer.now = func() time.Time { return stamp }

	require.NoError(t, writer.Record([]byte{0xa1, 0x01, 0x02}))
	require.NoError(t, writer.Record([]byte("second")))
	require.NoError(t, writer.Close())

	f, err := os.Open(writer.Path())
	require.NoError(t, err)
	defer f.Close()

	reader, err := NewRawLogReader(f)
	require.NoError(t, err)

	first, err := reader.Next()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xa1, 0x01, 0x02}, first.Payload)
	assert.True(t, stamp.Equal(first.Timestamp))

	second, err := reader.Next()
	require.NoError(t, err)
	assert.Equal(t, "second", string(second.Payload))

	_, err = reader.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestRawLogReaderRejectsBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.bin")
	require.NoError(t, os.WriteFile(path, []byte("NOTALOG!"), 0o644))
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	_, err = NewRawLogReader(f)
	assert.ErrorIs(t, err, ErrBadMagic)
}
