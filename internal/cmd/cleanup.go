package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var cleanupOlderThan time.Duration

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "清理过期的缓存图片",
	Long:  "删除图片缓存中超过保留期限的文件，释放磁盘空间",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := setupApp(cmd)
		if err != nil {
			return err
		}
		defer application.Shutdown()

		removed, err := application.ImageCache.Cleanup(cleanupOlderThan)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "已清理 %d 个缓存图片\n", removed)
		return nil
	},
}

func init() {
	cleanupCmd.Flags().DurationVar(&cleanupOlderThan, "older-than", 30*24*time.Hour, "清理早于该时长的缓存图片")
}
