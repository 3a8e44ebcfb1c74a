package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀：DFOLD_PATHS_RAW, DFOLD_S3_BUCKET ...
const EnvPrefix = "DFOLD"

// DirName 是项目级配置目录
const DirName = ".dfold"

// Load 初始化 Viper 配置
// cfgFile: 可选，用户显式指定的配置文件路径
func Load(cfgFile string) error {
	// 1. 设置默认值 (Defaults)
	wd, err := os.Getwd()
	if err != nil {
		return err
	}
	setDefaults(wd)

	// 2. 配置搜索路径
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}

		// 搜索顺序：当前目录 -> ./.dfold -> ~/.dfold
		viper.AddConfigPath(".")
		viper.AddConfigPath(DirName)
		viper.AddConfigPath(filepath.Join(home, DirName))

		viper.SetConfigType("yaml")
		viper.SetConfigName("config") // 找 config.yaml
	}

	// 3. 读取环境变量 (DFOLD_DATABASE_HOST 等)
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// 4. 读取配置文件
	// 没找到配置文件不算错 (可能全靠环境变量)，格式错误才是错
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("fatal error config file: %w", err)
		}
	}
	return nil
}

// Used 返回实际加载的配置文件，没有则为空
func Used() string { return viper.ConfigFileUsed() }

func setDefaults(wd string) {
	root := filepath.Join(wd, "data")

	// 数据目录
	viper.SetDefault("paths.raw", filepath.Join(root, "raw"))
	viper.SetDefault("paths.interim", filepath.Join(root, "interim"))
	viper.SetDefault("paths.processed", filepath.Join(root, "processed"))

	// 原始数据集注册表
	viper.SetDefault("registry.type", "file")
	viper.SetDefault("registry.path", "") // 为空时使用 <paths.raw>/raw_datasets.json

	// 数据库默认值
	viper.SetDefault("database.driver", "postgres")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.path", filepath.Join(wd, DirName, "datafold.db"))

	// 存储默认值 (为空时使用 paths.processed)
	viper.SetDefault("storage.type", "disk")
	viper.SetDefault("storage.path", "")

	viper.SetDefault("s3.region", "us-east-1")
	viper.SetDefault("s3.prefix", "processed")

	viper.SetDefault("redis.ttl", 24*time.Hour)
	viper.SetDefault("redis.prefix", "dfold:")

	viper.SetDefault("fetch.timeout", 10*time.Minute)
	viper.SetDefault("hash.type", "sha1")

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")

	viper.SetDefault("server.addr", ":8080")
}
