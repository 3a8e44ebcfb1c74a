package commands

import (
	"fmt"
	"os"

	"datafold/pkg/client"
	"datafold/pkg/exporter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	remoteAddr string
	// 远程客户端，由 remote 的 PersistentPreRunE 创建
	remote *client.DFClient
)

var remoteCmd = &cobra.Command{
	Use:   "remote",
	Short: "Talk to a dfold-server over gRPC",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		addr := remoteAddr
		if addr == "" {
			addr = viper.GetString("server.addr")
		}
		var err error
		remote, err = client.NewDFClient(addr)
		return err
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if remote == nil {
			return nil
		}
		return remote.Close()
	},
}

var remoteLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List raw datasets registered on the server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		names, err := remote.ListRawDatasets(cmd.Context())
		if err != nil {
			return err
		}
		for _, n := range names {
			fmt.Fprintln(cmd.OutOrStdout(), n)
		}
		return nil
	},
}

var remoteProcessCmd = &cobra.Command{
	Use:   "process [name]",
	Short: "Process a raw dataset on the server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kwargs, err := parseKV(processKwargs)
		if err != nil {
			return err
		}
		extra, err := parseKV(processMeta)
		if err != nil {
			return err
		}
		key, meta, err := remote.Process(cmd.Context(), client.ProcessRequest{
			Name:         args[0],
			Force:        processForce,
			UseDocstring: processUseDocstring,
			Args:         kwargs,
			Metadata:     extra,
		})
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		green.Fprintf(out, "✓ %s", args[0])
		fmt.Fprintf(out, " -> ")
		yellow.Fprintln(out, key)
		return exporter.PrintMetadata(meta, out)
	},
}

var remoteDatasetsCmd = &cobra.Command{
	Use:   "datasets",
	Short: "List processed datasets cached on the server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		all, err := remote.ListDatasets(cmd.Context())
		if err != nil {
			return err
		}
		return exporter.PrintCatalog(all, cmd.OutOrStdout())
	},
}

var remoteExportCmd = &cobra.Command{
	Use:   "export [key]",
	Short: "Stream a processed dataset from the server as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if exportOutput == "" {
			_, err := remote.Export(cmd.Context(), args[0], cmd.OutOrStdout())
			return err
		}

		f, err := os.Create(exportOutput)
		if err != nil {
			return err
		}
		n, err := remote.Export(cmd.Context(), args[0], f)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(exportOutput)
			return err
		}
		green.Fprintf(cmd.OutOrStdout(), "✅ Exported %s (%s) to %s\n", args[0], exporter.FormatSize(n), exportOutput)
		return nil
	},
}

func init() {
	remoteCmd.PersistentFlags().StringVar(&remoteAddr, "addr", "", "server address (default is server.addr from config)")

	// 与本地命令共用同一组变量
	pf := remoteProcessCmd.Flags()
	pf.BoolVarP(&processForce, "force", "f", false, "ignore the server cache")
	pf.BoolVar(&processUseDocstring, "use-docstring", false, "describe the dataset with the transform documentation")
	pf.StringArrayVar(&processKwargs, "kwarg", nil, "keyword argument key=value; repeatable")
	pf.StringArrayVar(&processMeta, "meta", nil, "metadata entry key=value; repeatable")
	remoteExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "write to this file")

	remoteCmd.AddCommand(remoteLsCmd, remoteProcessCmd, remoteDatasetsCmd, remoteExportCmd)
	rootCmd.AddCommand(remoteCmd)
}
