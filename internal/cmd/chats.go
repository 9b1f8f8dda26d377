package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/purpose168/parley-cn/internal/message"
	"github.com/spf13/cobra"
)

var chatsCmd = &cobra.Command{
	Use:   "chats",
	Short: "列出所有聊天",
	Long:  "按最近更新时间列出所有聊天，包括模型与累计成本",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := setupApp(cmd)
		if err != nil {
			return err
		}
		defer application.Shutdown()

		chats, err := application.Chats.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(chats) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "暂无聊天")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\t标题\t模型\t成本\t更新时间")
		for _, c := range chats {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				c.ID,
				c.Title,
				c.Model,
				formatCost(c.Cost),
				humanize.Time(time.Unix(c.UpdatedAt, 0)),
			)
		}
		return w.Flush()
	},
}

func formatCost(cost float64) string {
	if cost == message.UnknownCost {
		return "未知"
	}
	return fmt.Sprintf("$%.4f", cost)
}
