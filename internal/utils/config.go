package utils

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func DefaultTransferConfig() TransferConfig {
	return TransferConfig{
		MaxConnections:    DefaultConnections,
		BufferSize:        DefaultBufferSize,
		AdaptiveBuffering: true,
		MinChunkThreshold: DefaultMinChunkThreshold,
		ConnectionTimeout: DefaultConnectionTimeout,
		HTTP: HTTPClientConfig{
			KATimeout: DefaultKATimeout,
			UserAgent: ToolUserAgent,
			Headers:   map[string]string{},
		},
	}
}

// LoadConfigFile overlays the YAML file at path onto the defaults.
func LoadConfigFile(path string) (TransferConfig, error) {
	cfg := DefaultTransferConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, NewError(KindConfig, "read config", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, NewError(KindConfig, "parse config", err)
	}
	if cfg.HTTP.Headers == nil {
		cfg.HTTP.Headers = map[string]string{}
	}
	return cfg, cfg.Validate()
}

func (c TransferConfig) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		msgs := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			msgs = append(msgs, fmt.Sprintf("%s failed %q (got %v)", fe.Namespace(), fe.Tag(), fe.Value()))
		}
		return NewError(KindConfig, "validate", errors.New(strings.Join(msgs, "; ")))
	}
	return NewError(KindConfig, "validate", err)
}
