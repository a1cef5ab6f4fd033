package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"ephemera/logger"
)

func TestConfiguration_CreateAndLoad(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg := testConfiguration()

	require.NoError(t, cfg.Create("node1"))

	loaded, err := LoadNode("node1")
	require.NoError(t, err)
	require.Equal(t, cfg, loaded)
}

func TestConfiguration_CreateTwice(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg := testConfiguration()

	require.NoError(t, cfg.Create("node1"))
	require.ErrorIs(t, cfg.Create("node1"), ErrConfigExists)
}

func TestConfiguration_Update(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg := testConfiguration()

	require.ErrorIs(t, cfg.Update("node1"), ErrConfigNotFound)

	require.NoError(t, cfg.Create("node1"))
	cfg.Libp2p.TopicName = "updated"
	require.NoError(t, cfg.Update("node1"))

	loaded, err := LoadNode("node1")
	require.NoError(t, err)
	require.Equal(t, "updated", loaded.Libp2p.TopicName)
}

func TestConfiguration_LoadMissing(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	_, err := LoadNode("no-such-node")
	require.ErrorIs(t, err, ErrConfigNotFound)
}

func TestConfiguration_InvalidPeerAddress(t *testing.T) {
	cfg := testConfiguration()
	cfg.Libp2p.Peers[0].Address = "not-a-multiaddr"
	require.Error(t, cfg.Validate())
}

func TestConfiguration_Paths(t *testing.T) {
	t.Setenv("HOME", "/home/user")

	file, err := ConfigFile("node1")
	require.NoError(t, err)
	require.Equal(t, "/home/user/.ephemera/node1/ephemera.toml", file)
}

func TestConfiguration_GeneratedFileHeader(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	require.NoError(t, testConfiguration().Create("node1"))

	file, err := ConfigFile("node1")
	require.NoError(t, err)
	content, err := os.ReadFile(file)
	require.NoError(t, err)
	require.Contains(t, string(content), "# Generated file")
}

func testConfiguration() Configuration {
	return Configuration{
		Node: NodeConfig{
			Address: "/ip4/127.0.0.1/tcp/3000",
			PubKey:  "pub",
			PrivKey: "priv",
		},
		Storage: StorageConfig{
			SqlitePath: "/tmp/ephemera.db",
			BoltPath:   "/tmp/blocks.db",
		},
		Libp2p: Libp2pConfig{
			TopicName:            "blocks",
			HeartbeatIntervalSec: 1,
			Peers: []PeerSetting{
				{Name: "peer1", Address: "/ip4/127.0.0.1/tcp/3001", PubKey: "pub1"},
			},
		},
		Log: logger.LogConfiguration{Level: "info", Format: "text"},
	}
}
