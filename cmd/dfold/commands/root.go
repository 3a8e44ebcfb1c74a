package commands

import (
	"fmt"
	"os"

	"datafold/pkg/app"
	"datafold/pkg/config"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	// 全局应用实例，供子命令使用
	DF *app.App
)

// standalone 命令不需要本地 App (init 负责创建环境，remote 走 gRPC)
var standalone = map[string]bool{"init": true, "remote": true}

func needsApp(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if standalone[c.Name()] {
			return false
		}
	}
	return true
}

var rootCmd = &cobra.Command{
	Use:           "dfold",
	Short:         "datafold: reproducible dataset fetch / unpack / process",
	SilenceUsage:  true,
	SilenceErrors: false,
	// PersistentPreRunE 会在所有子命令执行前运行
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !needsApp(cmd) || DF != nil {
			return nil
		}

		// 统一初始化 App
		var err error
		DF, err = app.NewApp(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to initialize datafold: %w\n(Did you run 'dfold init'?)", err)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if DF == nil {
			return nil
		}
		return DF.Close()
	},
}

// Execute 是入口
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// 在初始化时，加载配置
	cobra.OnInitialize(initConfig)

	// 1. 全局参数 --config
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./.dfold/config.yaml or $HOME/.dfold/config.yaml)")

	// 2. 目录参数绑定到 Viper，既可以在 yaml 里写，也可以用 flag 覆盖
	flags := map[string]string{
		"raw-dir":       "paths.raw",
		"interim-dir":   "paths.interim",
		"processed-dir": "paths.processed",
		"log-level":     "log.level",
	}
	rootCmd.PersistentFlags().String("raw-dir", "", "directory holding raw files and the registry")
	rootCmd.PersistentFlags().String("interim-dir", "", "parent directory of unpack targets")
	rootCmd.PersistentFlags().String("processed-dir", "", "directory holding processed datasets")
	rootCmd.PersistentFlags().String("log-level", "", "debug | info | warn | error")
	for flag, key := range flags {
		if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			fmt.Println("Failed to bind flag:", err)
			os.Exit(1)
		}
	}
}

// initConfig 读取配置文件和环境变量
func initConfig() {
	if err := config.Load(cfgFile); err != nil {
		fmt.Println("Config error:", err)
		os.Exit(1)
	}
}
