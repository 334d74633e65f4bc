package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/vango-dev/trackstate/internal/errors"
	"gopkg.in/yaml.v3"
)

// Format is a document encoding.
type Format string

const (
	JSON Format = "json"
	YAML Format = "yaml"
	TOML Format = "toml"
)

// FormatOf returns the format implied by name's extension.
func FormatOf(name string) (Format, error) {
	switch strings.ToLower(path.Ext(name)) {
	case ".json":
		return JSON, nil
	case ".yaml", ".yml":
		return YAML, nil
	case ".toml":
		return TOML, nil
	}
	return "", errors.New("E403").WithPath(name)
}

// Options configures Load.
type Options struct {
	// S3 fetches s3:// documents. Nil builds a client from S3Config on
	// first use.
	S3 S3API

	// S3Config configures the default S3 client.
	S3Config S3Config
}

// Option configures Load.
type Option func(*Options)

// WithS3Client sets the client used for s3:// documents.
func WithS3Client(client S3API) Option {
	return func(o *Options) {
		o.S3 = client
	}
}

// WithS3Config sets how the default S3 client is built.
func WithS3Config(cfg S3Config) Option {
	return func(o *Options) {
		o.S3Config = cfg
	}
}

// Load reads and decodes the document at location: a file path or an
// s3://bucket/key URL.
func Load(ctx context.Context, location string, opts ...Option) (any, error) {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}

	format, err := FormatOf(location)
	if err != nil {
		return nil, err
	}

	var data []byte
	if strings.HasPrefix(location, "s3://") {
		client := o.S3
		if client == nil {
			client = NewS3Client(o.S3Config)
		}
		data, err = fetchS3(ctx, client, location)
	} else {
		data, err = os.ReadFile(filepath.Clean(location))
	}
	if err != nil {
		return nil, errors.New("E402").WithPath(location).Wrap(err)
	}

	v, err := Decode(format, data)
	if err != nil {
		return nil, errors.New("E402").WithPath(location).Wrap(err)
	}
	return v, nil
}

// Decode decodes data in format and normalises the result.
func Decode(format Format, data []byte) (any, error) {
	var (
		v   any
		err error
	)
	switch format {
	case JSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		err = dec.Decode(&v)
		if err == nil {
			if _, extra := dec.Token(); extra != io.EOF {
				err = fmt.Errorf("unexpected data after top-level value")
			}
		}
	case YAML:
		err = yaml.Unmarshal(data, &v)
	case TOML:
		var doc map[string]any
		err = toml.Unmarshal(data, &doc)
		v = doc
	default:
		return nil, errors.New("E403").WithDetail("Unknown format " + string(format) + ".")
	}
	if err != nil {
		return nil, err
	}
	return Normalize(v), nil
}

// Encode encodes v in format. Values must be plain trees, not views.
func Encode(format Format, v any) ([]byte, error) {
	switch format {
	case JSON:
		return json.MarshalIndent(v, "", "  ")
	case YAML:
		return yaml.Marshal(v)
	case TOML:
		return toml.Marshal(v)
	}
	return nil, errors.New("E403").WithDetail("Unknown format " + string(format) + ".")
}

// Normalize converts decoder output to the store's value model.
func Normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = Normalize(e)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[fmt.Sprint(k)] = Normalize(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Normalize(e)
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Normalize(e)
		}
		return out
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case int:
		return int64(t)
	}
	return v
}
