package cmd

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "查看使用统计",
	Long:  "汇总所有聊天的令牌用量与总成本",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := setupApp(cmd)
		if err != nil {
			return err
		}
		defer application.Shutdown()

		ctx := cmd.Context()
		chats, err := application.Chats.List(ctx)
		if err != nil {
			return err
		}
		var promptTokens, completionTokens int64
		for _, c := range chats {
			promptTokens += c.PromptTokens
			completionTokens += c.CompletionTokens
		}
		total, err := application.Chats.TotalCost(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "聊天数量: %d\n", len(chats))
		fmt.Fprintf(out, "提示词令牌: %s\n", humanize.Comma(promptTokens))
		fmt.Fprintf(out, "完成令牌: %s\n", humanize.Comma(completionTokens))
		fmt.Fprintf(out, "总成本: %s\n", formatCost(total))
		return nil
	},
}
