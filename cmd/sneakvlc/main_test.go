package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeCmd(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		cmd := newDecodeCmd()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"sneakvlc://ABCDEF?ip=192.168.1.5&port=8080"})
		require.NoError(t, cmd.ExecuteContext(context.Background()))
		assert.Contains(t, out.String(), "hash:    abcdef")
		assert.Contains(t, out.String(), "address: 192.168.1.5:8080")
	})

	t.Run("malformed", func(t *testing.T) {
		cmd := newDecodeCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{"sneakvlc://abc?ip=1.2.3.4"})
		err := cmd.ExecuteContext(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sneakvlc link")
	})
}

func TestListenPort(t *testing.T) {
	port, err := listenPort("0.0.0.0:8080")
	require.NoError(t, err)
	assert.Equal(t, 8080, port)

	_, err = listenPort("nope")
	assert.Error(t, err)
	_, err = listenPort(":http")
	assert.Error(t, err)
}
