package cmd

import (
	"errors"
	"os"
	"os/signal"
	"strings"

	"github.com/purpose168/parley-cn/internal/log"
	"github.com/spf13/cobra"
)

func init() {
	runCmd.Flags().StringP("chat", "c", "", "在指定聊天中继续对话")
}

var runCmd = &cobra.Command{
	Use:   "run [提示]",
	Short: "运行单个非交互式提示",
	Long:  "运行单个提示并把流式回复打印到标准输出，可以通过管道传入内容",
	Example: `
# 直接运行提示
parley run "解释 Go 中 context 的使用"

# 通过管道传入内容
cat main.go | parley run "解释这段代码"

# 在已有聊天中继续
parley run --chat <聊天ID> "继续上面的话题"
  `,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, os.Kill)
		defer cancel()
		cmd.SetContext(ctx)

		prompt := strings.Join(args, " ")
		prompt, err := MaybePrependStdin(prompt)
		if err != nil {
			return err
		}
		if strings.TrimSpace(prompt) == "" {
			return errors.New("未提供提示")
		}

		application, err := setupApp(cmd)
		if err != nil {
			return err
		}
		defer application.Shutdown()
		defer log.RecoverPanic("run", func() {
			application.Shutdown()
		})

		if _, err := application.RestoreSnapshot(); err != nil {
			return err
		}
		chatID, _ := cmd.Flags().GetString("chat")
		return application.RunPrompt(ctx, cmd.OutOrStdout(), chatID, prompt)
	},
}
