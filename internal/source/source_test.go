package source

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tserrors "github.com/vango-dev/trackstate/internal/errors"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	return p
}

func TestFormatOf(t *testing.T) {
	tests := []struct {
		name string
		want Format
	}{
		{"doc.json", JSON},
		{"doc.YAML", YAML},
		{"doc.yml", YAML},
		{"conf.toml", TOML},
		{"s3://bucket/dir/doc.json", JSON},
	}
	for _, tt := range tests {
		got, err := FormatOf(tt.name)
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.want, got, tt.name)
	}

	_, err := FormatOf("doc.xml")
	assert.True(t, tserrors.HasCode(err, "E403"))
}

func TestLoadFormatsAgree(t *testing.T) {
	want := map[string]any{
		"name":  "tree",
		"count": int64(3),
		"ratio": 0.5,
		"tags":  []any{"a", "b"},
		"meta":  map[string]any{"on": true},
	}

	docs := map[string]string{
		"doc.json": `{"name": "tree", "count": 3, "ratio": 0.5, "tags": ["a", "b"], "meta": {"on": true}}`,
		"doc.yaml": "name: tree\ncount: 3\nratio: 0.5\ntags: [a, b]\nmeta:\n  on: true\n",
		"doc.toml": "name = \"tree\"\ncount = 3\nratio = 0.5\ntags = [\"a\", \"b\"]\n\n[meta]\non = true\n",
	}

	for name, content := range docs {
		t.Run(name, func(t *testing.T) {
			got, err := Load(context.Background(), writeFile(t, name, content))
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "missing.json"))
	assert.True(t, tserrors.HasCode(err, "E402"), "missing file: %v", err)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	_, err = Load(context.Background(), writeFile(t, "bad.json", `{"a": `))
	assert.True(t, tserrors.HasCode(err, "E402"), "bad json: %v", err)

	_, err = Load(context.Background(), writeFile(t, "two.json", `{} {}`))
	assert.True(t, tserrors.HasCode(err, "E402"), "trailing data: %v", err)

	_, err = Load(context.Background(), writeFile(t, "doc.ini", `a=1`))
	assert.True(t, tserrors.HasCode(err, "E403"), "unknown format: %v", err)
}

func TestNormalize(t *testing.T) {
	in := map[any]any{
		1:     "one",
		"arr": []map[string]any{{"n": 2}},
	}
	got := Normalize(in)
	assert.Equal(t, map[string]any{
		"1":   "one",
		"arr": []any{map[string]any{"n": int64(2)}},
	}, got)
}

func TestEncodeRoundTrip(t *testing.T) {
	doc := map[string]any{"a": int64(1), "b": []any{"x"}}
	for _, f := range []Format{JSON, YAML, TOML} {
		data, err := Encode(f, doc)
		require.NoError(t, err, f)
		back, err := Decode(f, data)
		require.NoError(t, err, f)
		assert.Equal(t, doc, back, f)
	}
}

type fakeS3 struct {
	objects map[string]string
	calls   []string
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	key := *in.Bucket + "/" + *in.Key
	f.calls = append(f.calls, key)
	body, ok := f.objects[key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func TestLoadFromS3(t *testing.T) {
	fake := &fakeS3{objects: map[string]string{
		"docs/app/settings.yaml": "theme: dark\n",
	}}

	got, err := Load(context.Background(), "s3://docs/app/settings.yaml", WithS3Client(fake))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"theme": "dark"}, got)
	assert.Equal(t, []string{"docs/app/settings.yaml"}, fake.calls)

	_, err = Load(context.Background(), "s3://docs/missing.json", WithS3Client(fake))
	assert.True(t, tserrors.HasCode(err, "E402"))
}

func TestParseS3URL(t *testing.T) {
	bucket, key, err := ParseS3URL("s3://bucket/a/b.json")
	require.NoError(t, err)
	assert.Equal(t, "bucket", bucket)
	assert.Equal(t, "a/b.json", key)

	for _, bad := range []string{"s3://bucket", "s3:///key.json", "http://bucket/key.json"} {
		_, _, err := ParseS3URL(bad)
		assert.Error(t, err, bad)
	}
}

func TestNewS3Client(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "")
	client := NewS3Client(S3Config{Region: "eu-west-1", Endpoint: "http://localhost:9000", PathStyle: true})
	opts := client.Options()
	assert.Equal(t, "eu-west-1", opts.Region)
	assert.True(t, opts.UsePathStyle)
	require.NotNil(t, opts.BaseEndpoint)
	assert.Equal(t, "http://localhost:9000", *opts.BaseEndpoint)
}
