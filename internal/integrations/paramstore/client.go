// Package paramstore reads configuration and secrets from AWS SSM Parameter Store.
package paramstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// ssmAPI is the subset of *ssm.Client the store calls.
type ssmAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Getter is what consumers (the model client, the catalog loader, main)
// depend on instead of the concrete *Client.
type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// Client resolves parameters relative to a prefix such as "/formula-agent/prod".
// Names that already start with "/" followed by the prefix are used as is.
type Client struct {
	api    ssmAPI
	prefix string
}

// New creates a Client. prefix may be empty, in which case names are used verbatim.
func New(api ssmAPI, prefix string) (*Client, error) {
	if api == nil {
		return nil, errors.New("paramstore: api must not be nil")
	}
	return &Client{api: api, prefix: strings.TrimRight(strings.TrimSpace(prefix), "/")}, nil
}

// Name joins key onto the configured prefix.
func (c *Client) Name(key string) string {
	key = strings.TrimSpace(key)
	if c.prefix == "" || key == "" || strings.HasPrefix(key, c.prefix+"/") {
		return key
	}
	return c.prefix + "/" + strings.TrimLeft(key, "/")
}

// GetParameter returns the decrypted value of the named parameter.
func (c *Client) GetParameter(ctx context.Context, name string) (string, error) {
	if c.api == nil {
		return "", errors.New("paramstore: client not initialized")
	}
	name = c.Name(name)
	if name == "" {
		return "", errors.New("paramstore: name is required")
	}

	withDecryption := true
	out, err := c.api.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &name,
		WithDecryption: &withDecryption,
	})
	if err != nil {
		return "", fmt.Errorf("paramstore: get parameter %q: %w", name, err)
	}
	if out == nil || out.Parameter == nil || out.Parameter.Value == nil {
		return "", errors.New("paramstore: parameter missing value")
	}
	return *out.Parameter.Value, nil
}

// GetJSON fetches name and decodes its value into v.
func GetJSON(ctx context.Context, g Getter, name string, v any) error {
	raw, err := g.GetParameter(ctx, name)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("paramstore: decode %q as JSON: %w", name, err)
	}
	return nil
}
