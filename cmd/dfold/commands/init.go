package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"datafold/pkg/config"
	"datafold/pkg/registry"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a datafold project",
	Long:  `Create the data directories, an empty raw dataset registry and .dfold/config.yaml in the current directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		// 1. 获取当前路径
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		cfgDir := filepath.Join(wd, config.DirName)
		cfgPath := filepath.Join(cfgDir, "config.yaml")

		// 2. 检查是否已存在
		if _, err := os.Stat(cfgPath); err == nil {
			yellow.Fprintf(out, "⚠️  datafold project already exists in %s\n", cfgDir)
			return nil
		}

		// 3. 创建目录结构
		paths := map[string]string{
			"raw":       viper.GetString("paths.raw"),
			"interim":   viper.GetString("paths.interim"),
			"processed": viper.GetString("paths.processed"),
		}
		for _, dir := range append([]string{cfgDir}, paths["raw"], paths["interim"], paths["processed"]) {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}
		}

		// 4. 空注册表
		regPath := filepath.Join(paths["raw"], registry.DefaultFileName)
		if _, err := os.Stat(regPath); os.IsNotExist(err) {
			if err := os.WriteFile(regPath, []byte("{}\n"), 0644); err != nil {
				return fmt.Errorf("failed to create registry: %w", err)
			}
		}

		// 5. 写配置文件
		data, err := yaml.Marshal(map[string]any{
			"paths":    paths,
			"registry": map[string]any{"type": "file"},
			"storage":  map[string]any{"type": "disk"},
			"log":      map[string]any{"level": "info"},
		})
		if err != nil {
			return err
		}
		if err := os.WriteFile(cfgPath, data, 0644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}

		green.Fprintf(out, "✅ Initialized datafold project in %s\n", wd)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
