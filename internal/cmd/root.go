// Package cmd 定义 parley 的命令行入口。
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/purpose168/parley-cn/internal/app"
	"github.com/purpose168/parley-cn/internal/config"
	"github.com/purpose168/parley-cn/internal/db"
	"github.com/purpose168/parley-cn/internal/home"
	"github.com/purpose168/parley-cn/internal/log"
	"github.com/purpose168/parley-cn/internal/version"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.PersistentFlags().StringP("data-dir", "D", "", "自定义 parley 数据目录")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "调试")
	rootCmd.Flags().BoolP("help", "h", false, "帮助")

	rootCmd.AddCommand(
		runCmd,
		chatsCmd,
		statsCmd,
		cleanupCmd,
	)
}

var rootCmd = &cobra.Command{
	Use:     "parley",
	Short:   "多聊天并发流式的 AI 聊天客户端",
	Long:    "管理多个聊天会话的 AI 聊天客户端，支持并发流式回复、图片生成与成本统计",
	Version: version.Version,
	Example: `
# 运行单个非交互式提示
parley run "解释 Go 中 context 的使用"

# 在已有聊天中继续对话
parley run --chat <聊天ID> "继续上面的话题"

# 列出所有聊天
parley chats

# 查看使用统计
parley stats

# 使用自定义数据目录运行
parley -D /path/to/data run "你好"
  `,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute 运行命令行入口
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// setupApp 处理各子命令的通用初始化逻辑
// 返回的应用实例由调用方负责 Shutdown
func setupApp(cmd *cobra.Command) (*app.App, error) {
	debug, _ := cmd.Flags().GetBool("debug")
	dataDir, _ := cmd.Flags().GetString("data-dir")

	if dataDir != "" {
		os.Setenv("PARLEY_DATA_DIR", home.Long(dataDir))
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if debug {
		cfg.Debug = true
	}
	log.Setup(filepath.Join(cfg.DataDir, "parley.log"), cfg.Debug)
	slog.Info("应用启动", "version", version.Version, "data_dir", home.Short(cfg.DataDir))

	conn, err := db.Connect(cmd.Context(), cfg.DataDir)
	if err != nil {
		return nil, err
	}
	application, err := app.New(cmd.Context(), conn, cfg)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return application, nil
}

// MaybePrependStdin 把标准输入管道中的内容拼接到提示前面
func MaybePrependStdin(prompt string) (string, error) {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return prompt, err
	}
	if stat.Mode()&os.ModeNamedPipe == 0 {
		return prompt, nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return prompt, err
	}
	if len(data) == 0 {
		return prompt, nil
	}
	return fmt.Sprintf("%s\n\n%s", string(data), prompt), nil
}
