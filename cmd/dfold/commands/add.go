package commands

import (
	"fmt"

	"datafold/pkg/pipeline"
	"datafold/pkg/registry"
	"datafold/pkg/types"

	"github.com/spf13/cobra"
)

var (
	addURLs        []string
	addHashes      []string
	addFiles       []string
	addHashType    string
	addTransform   string
	addArgs        []string
	addKwargs      []string
	addDatasetDir  string
	addDescr       string
	addDescrFile   string
	addLicense     string
	addLicenseFile string
)

var addCmd = &cobra.Command{
	Use:   "add [name]",
	Short: "Add or replace a raw dataset definition in the registry",
	Long: `Declare where a dataset's files come from and which transform processes them.

  dfold add iris --url https://example.com/iris.csv --hash 2aae6c35... \
      --transform csv --arg iris.csv --kwarg target=species --descr "Fisher's iris data"

--hash values pair with --url values by position. --arg and --kwarg values are
parsed as YAML scalars, so 3 is an integer and true a boolean.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if DF == nil {
			return appNotInitialized()
		}
		name := args[0]
		if len(addHashes) > len(addURLs) {
			return fmt.Errorf("got %d --hash values for %d --url values", len(addHashes), len(addURLs))
		}
		ht, err := types.ParseHashType(addHashType)
		if err != nil {
			return err
		}
		kwargs, err := parseKV(addKwargs)
		if err != nil {
			return err
		}

		// 1. 构造定义 (transform 无法解析时在这里失败)
		env := DF.Env()
		raw, err := pipeline.NewRawDataset(registry.Record{
			Name:        name,
			DatasetDir:  addDatasetDir,
			FunctionID:  addTransform,
			BoundArgs:   parseArgs(addArgs),
			BoundKwargs: kwargs,
		}, env)
		if err != nil {
			return err
		}

		// 2. 追加文件
		for i, u := range addURLs {
			opts := pipeline.FileOptions{HashType: ht}
			if i < len(addHashes) {
				opts.HashValue = addHashes[i]
			}
			if err := raw.AddURL(u, opts); err != nil {
				return err
			}
		}
		for _, f := range addFiles {
			if err := raw.AddFile(f, pipeline.FileOptions{HashType: ht}); err != nil {
				return err
			}
		}
		if err := addMetadata(raw, types.RoleDescr, addDescrFile, addDescr); err != nil {
			return err
		}
		if err := addMetadata(raw, types.RoleLicense, addLicenseFile, addLicense); err != nil {
			return err
		}

		// 3. 写入注册表
		if err := pipeline.AddRawDataset(cmd.Context(), env, raw); err != nil {
			return fmt.Errorf("failed to save definition: %w", err)
		}
		green.Fprintf(cmd.OutOrStdout(), "✅ Added %s (%d files, transform %s)\n",
			name, len(raw.Files()), raw.Transform().Signature())
		return nil
	},
}

func addMetadata(raw *pipeline.RawDataset, kind types.Role, fileName, contents string) error {
	if fileName == "" && contents == "" {
		return nil
	}
	return raw.AddMetadata(kind, fileName, contents)
}

func init() {
	f := addCmd.Flags()
	f.StringArrayVar(&addURLs, "url", nil, "remote source (http, https, s3); repeatable")
	f.StringArrayVar(&addHashes, "hash", nil, "expected hash of the matching --url")
	f.StringArrayVar(&addFiles, "file", nil, "local file prepared out of band; repeatable")
	f.StringVar(&addHashType, "hash-type", "sha1", "sha1 | md5 | sha256")
	f.StringVar(&addTransform, "transform", "", "transform function id (default \"default\")")
	f.StringArrayVar(&addArgs, "arg", nil, "bound positional argument; repeatable")
	f.StringArrayVar(&addKwargs, "kwarg", nil, "bound keyword argument key=value; repeatable")
	f.StringVar(&addDatasetDir, "dir", "", "dataset directory (default paths.raw)")
	f.StringVar(&addDescr, "descr", "", "inline description")
	f.StringVar(&addDescrFile, "descr-file", "", "description file in the dataset directory")
	f.StringVar(&addLicense, "license", "", "inline license text")
	f.StringVar(&addLicenseFile, "license-file", "", "license file in the dataset directory")
	rootCmd.AddCommand(addCmd)
}
