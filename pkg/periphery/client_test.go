package periphery

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/komodo-sh/komodo/pkg/types"
)

func TestClientCall(t *testing.T) {
	t.Run("posts envelope with passkey", func(t *testing.T) {
		var gotBody map[string]any
		var gotPasskey string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPasskey = r.Header.Get("x-komodo-passkey")
			data, _ := io.ReadAll(r.Body)
			require.NoError(t, json.Unmarshal(data, &gotBody))
			_ = json.NewEncoder(w).Encode(types.GetVersionResponse{Version: "1.16.12"})
		}))
		defer srv.Close()

		client := NewFactory("core-pass").ForAddress(srv.URL)
		version, err := client.GetVersion(context.Background())
		require.NoError(t, err)

		assert.Equal(t, "1.16.12", version)
		assert.Equal(t, "core-pass", gotPasskey)
		assert.Equal(t, "GetVersion", gotBody["type"])
	})

	t.Run("server passkey override wins", func(t *testing.T) {
		var gotPasskey string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPasskey = r.Header.Get("x-komodo-passkey")
			_ = json.NewEncoder(w).Encode(types.GetVersionResponse{Version: "dev"})
		}))
		defer srv.Close()

		client := NewFactory("core-pass").ForServer(types.ServerConfig{
			Address: srv.URL,
			Passkey: "server-pass",
		})
		_, err := client.GetVersion(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "server-pass", gotPasskey)
	})

	t.Run("error body surfaces as external error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "no such container"})
		}))
		defer srv.Close()

		client := NewFactory("pk").ForAddress(srv.URL)
		_, err := client.StartContainer(context.Background(), "api")
		require.Error(t, err)
		assert.True(t, types.IsExternalError(err))
		assert.Contains(t, err.Error(), "no such container")
	})

	t.Run("unreachable agent is an external error", func(t *testing.T) {
		client := NewFactory("pk").ForAddress("http://127.0.0.1:1")
		_, err := client.GetVersion(context.Background())
		require.Error(t, err)
		assert.True(t, types.IsExternalError(err))
	})

	t.Run("log responses decode", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(types.Log{
				Stage:   "docker start",
				Stdout:  "api",
				Success: true,
			})
		}))
		defer srv.Close()

		client := NewFactory("pk").ForAddress(srv.URL)
		log, err := client.StartContainer(context.Background(), "api")
		require.NoError(t, err)
		assert.True(t, log.Success)
		assert.Equal(t, "docker start", log.Stage)
	})
}
