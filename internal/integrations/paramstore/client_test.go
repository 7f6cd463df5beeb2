package paramstore

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/require"
)

// fakeAPI records the requested name and returns canned output.
type fakeAPI struct {
	getOut *ssm.GetParameterOutput
	getErr error

	gotName string
	gotDecr bool
}

func (f *fakeAPI) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	if in.Name != nil {
		f.gotName = *in.Name
	}
	if in.WithDecryption != nil {
		f.gotDecr = *in.WithDecryption
	}
	return f.getOut, f.getErr
}

func strPtr(s string) *string { return &s }

func valueOut(v string) *ssm.GetParameterOutput {
	return &ssm.GetParameterOutput{Parameter: &types.Parameter{Name: strPtr("p"), Value: strPtr(v)}}
}

func TestGetParameter_PrefixedName(t *testing.T) {
	api := &fakeAPI{getOut: valueOut("gpt-4o-mini")}
	client, err := New(api, "/formula/dev/")
	require.NoError(t, err)

	v, err := client.GetParameter(context.Background(), "config/openai_model")
	require.NoError(t, err)
	require.Equal(t, "gpt-4o-mini", v)
	require.Equal(t, "/formula/dev/config/openai_model", api.gotName)
	require.True(t, api.gotDecr)
}

func TestName(t *testing.T) {
	client, err := New(&fakeAPI{}, "/formula/dev")
	require.NoError(t, err)

	tests := []struct {
		key  string
		want string
	}{
		{"catalog", "/formula/dev/catalog"},
		{"/catalog", "/formula/dev/catalog"},
		{"/formula/dev/open-ai-token", "/formula/dev/open-ai-token"},
		{"  ", ""},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, client.Name(tt.key), tt.key)
	}

	bare, err := New(&fakeAPI{}, "")
	require.NoError(t, err)
	require.Equal(t, "/abs/name", bare.Name("/abs/name"))
}

func TestGetParameter_MissingValue(t *testing.T) {
	api := &fakeAPI{getOut: &ssm.GetParameterOutput{Parameter: &types.Parameter{Name: strPtr("p"), Value: nil}}}
	client, err := New(api, "")
	require.NoError(t, err)
	_, err = client.GetParameter(context.Background(), "p")
	require.ErrorContains(t, err, "missing value")
}

func TestGetParameter_ApiError(t *testing.T) {
	api := &fakeAPI{getErr: errors.New("boom")}
	client, err := New(api, "/x")
	require.NoError(t, err)
	_, err = client.GetParameter(context.Background(), "p")
	require.ErrorContains(t, err, "boom")
	require.ErrorContains(t, err, `"/x/p"`)
}

func TestGetParameter_ClientNotInitialized(t *testing.T) {
	_, err := (&Client{}).GetParameter(context.Background(), "p")
	require.ErrorContains(t, err, "not initialized")
}

func TestGetParameter_EmptyName(t *testing.T) {
	client, err := New(&fakeAPI{}, "/x")
	require.NoError(t, err)
	_, err = client.GetParameter(context.Background(), "  ")
	require.ErrorContains(t, err, "required")
}

func TestNew_NilAPI(t *testing.T) {
	_, err := New(nil, "/x")
	require.ErrorContains(t, err, "must not be nil")
}

func TestGetJSON(t *testing.T) {
	client, err := New(&fakeAPI{getOut: valueOut(`{"token":"abc"}`)}, "")
	require.NoError(t, err)

	var got struct {
		Token string `json:"token"`
	}
	require.NoError(t, GetJSON(context.Background(), client, "t", &got))
	require.Equal(t, "abc", got.Token)
}

func TestGetJSON_BadJSON(t *testing.T) {
	client, err := New(&fakeAPI{getOut: valueOut(`not json`)}, "")
	require.NoError(t, err)

	var got map[string]any
	err = GetJSON(context.Background(), client, "t", &got)
	require.ErrorContains(t, err, "decode")
}

func TestGetJSON_GetterError(t *testing.T) {
	client, err := New(&fakeAPI{getErr: errors.New("denied")}, "")
	require.NoError(t, err)

	var got map[string]any
	require.ErrorContains(t, GetJSON(context.Background(), client, "t", &got), "denied")
}
