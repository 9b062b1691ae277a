package qdrant

import (
	"errors"
	"testing"
)

func TestValidateConfigValid(t *testing.T) {
	err := ValidateConfig(Config{
		URL:        "http://qdrant:6333",
		Collection: "faces",
		VectorDim:  512,
	})
	if err != nil {
		t.Fatalf("ValidateConfig: %v", err)
	}
}

func TestValidateConfigErrors(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		code ConfigErrorCode
	}{
		{
			name: "missing url",
			cfg:  Config{Collection: "faces", VectorDim: 512},
			code: ConfigErrorMissingURL,
		},
		{
			name: "relative url",
			cfg:  Config{URL: "qdrant:6333", Collection: "faces", VectorDim: 512},
			code: ConfigErrorInvalidURL,
		},
		{
			name: "missing collection",
			cfg:  Config{URL: "http://qdrant:6333", VectorDim: 512},
			code: ConfigErrorMissingCollection,
		},
		{
			name: "zero dim",
			cfg:  Config{URL: "http://qdrant:6333", Collection: "faces"},
			code: ConfigErrorInvalidVectorDim,
		},
		{
			name: "negative dim",
			cfg:  Config{URL: "http://qdrant:6333", Collection: "faces", VectorDim: -1},
			code: ConfigErrorInvalidVectorDim,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateConfig(tc.cfg)
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("error type: want=*ConfigError got=%T", err)
			}
			if cfgErr.Code != tc.code {
				t.Fatalf("code: want=%s got=%s", tc.code, cfgErr.Code)
			}
		})
	}
}
