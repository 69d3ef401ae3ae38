package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lwlgate/internal"
	"lwlgate/internal/pkg"
)

// NewRootCommand 创建根命令
func NewRootCommand() *cobra.Command {
	// 创建根命令
	rootCmd := &cobra.Command{
		Use:   "lwlctl",
		Short: "LWL CLI for decoding flight-recorder dumps",
		Long:  `LWL CLI decodes pasted hex dumps into log entries without running the daemon.`,
	}

	// 添加子命令
	rootCmd.AddCommand(NewDecodeCommand())
	rootCmd.AddCommand(NewReportCommand())

	return rootCmd
}

// newCommandContext 构造子命令用的上下文，配置加载失败时退回默认解码参数
func newCommandContext() context.Context {
	config, err := pkg.InitCommon("yaml")
	if err != nil {
		config = &pkg.Config{
			Decoder: pkg.DecoderConfig{EntryOffset: pkg.DefaultEntryOffset},
		}
	}

	ctx := context.Background()
	errChan := make(chan error, 10)
	ctx = pkg.WithErrChan(ctx, errChan)
	ctx = pkg.WithConfig(ctx, config)
	ctx = pkg.WithLogger(ctx, zap.NewNop())
	return ctx
}

// NewDecodeCommand 创建 decode 子命令
func NewDecodeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode a dump and list its entries",
		Long:  `Decode a pasted hex dump and print every recovered log entry with its ring offset.`,
		Args:  cobra.MinimumNArgs(1), // 转储文本里有空格，全部参数拼回一段
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")

			batch, err := internal.DecodeOnce(newCommandContext(), text)
			if err != nil {
				return fmt.Errorf("failed to decode dump: %w", err)
			}

			fmt.Println("Result:", batch)
			for _, entry := range batch.Entries {
				if entry.Name != "" {
					fmt.Printf("  ID %d (%s) at offset %d\n", entry.ID, entry.Name, entry.Offset)
				} else {
					fmt.Printf("  %s\n", entry)
				}
			}
			if batch.Fault != nil {
				fmt.Printf("  fault: type=%d param=%d return_addr=0x%08x\n",
					batch.Fault.Type, batch.Fault.Param, batch.Fault.ReturnAddr)
			}
			return nil
		},
	}

	return cmd
}

// NewReportCommand 创建 report 子命令
func NewReportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Decode a dump and print the text report",
		Long:  `Decode a pasted hex dump and print the canonical "LWL Log Entries:" report.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")

			report, err := internal.RenderOnce(newCommandContext(), text)
			if err != nil {
				return fmt.Errorf("failed to render report: %w", err)
			}

			fmt.Print(report)
			return nil
		},
	}

	return cmd
}
