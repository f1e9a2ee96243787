package mcp

import (
	"testing"

	"github.com/felixgeelhaar/mcp-go/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/rendezvous/adapter/cli"
	"github.com/felixgeelhaar/rendezvous/pkg/config"
)

func TestNewServer_RegistersTools(t *testing.T) {
	_, err := NewServer(nil, nil)
	require.Error(t, err)

	srv, err := NewServer(&cli.App{}, nil)
	require.NoError(t, err)

	tc := testutil.NewTestClient(t, srv)
	defer tc.Close()

	tools, err := tc.ListTools()
	require.NoError(t, err)
	assert.NotEmpty(t, tools)
}

func TestMiddlewareStack_Auth(t *testing.T) {
	_, err := middlewareStack(&config.Config{AppEnv: "production"}, nil)
	assert.EqualError(t, err, "MCP_AUTH_TOKEN is required outside development")

	open, err := middlewareStack(&config.Config{AppEnv: "development"}, nil)
	require.NoError(t, err)

	secured, err := middlewareStack(&config.Config{AppEnv: "production", MCPAuthToken: "secret"}, nil)
	require.NoError(t, err)
	assert.Len(t, secured, len(open)+1)
}
