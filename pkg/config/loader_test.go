package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	viper.Reset()
	t.Chdir(t.TempDir())

	require.NoError(t, Load(""))

	wd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(wd, "data", "raw"), viper.GetString("paths.raw"))
	assert.Equal(t, "file", viper.GetString("registry.type"))
	assert.Equal(t, "disk", viper.GetString("storage.type"))
	assert.Equal(t, 10*time.Minute, viper.GetDuration("fetch.timeout"))
	assert.Empty(t, Used())
}

func TestLoad_FileAndEnv(t *testing.T) {
	viper.Reset()
	dir := t.TempDir()
	t.Chdir(dir)

	// 1. 项目目录下的 .dfold/config.yaml
	require.NoError(t, os.MkdirAll(DirName, 0755))
	cfg := "paths:\n  raw: /srv/raw\nstorage:\n  type: s3\ns3:\n  bucket: datasets\n"
	require.NoError(t, os.WriteFile(filepath.Join(DirName, "config.yaml"), []byte(cfg), 0644))

	// 2. 环境变量覆盖文件
	t.Setenv("DFOLD_S3_BUCKET", "from-env")

	require.NoError(t, Load(""))
	assert.Equal(t, "/srv/raw", viper.GetString("paths.raw"))
	assert.Equal(t, "s3", viper.GetString("storage.type"))
	assert.Equal(t, "from-env", viper.GetString("s3.bucket"))
	assert.Contains(t, Used(), "config.yaml")
}

func TestLoad_ExplicitFileBroken(t *testing.T) {
	viper.Reset()
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("paths: [unclosed"), 0644))

	err := Load(path)
	assert.Error(t, err)
}
