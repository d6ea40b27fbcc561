package cmd

import (
	"fmt"

	"Decibel/model"

	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "查看或清除保存的播放列表",
}

var sessionShowCmd = &cobra.Command{
	Use:   "show",
	Short: "显示退出时保存的播放列表",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		_, sessions, cleanup, err := openStores(cfg)
		if err != nil {
			return err
		}
		defer cleanup()
		if sessions == nil {
			fmt.Println("会话保存已关闭 (session_backend: none)")
			return nil
		}

		session, err := sessions.LoadSession(cmd.Context())
		if err != nil {
			return err
		}
		if session == nil || len(session.Tracks) == 0 {
			fmt.Println("没有保存的播放列表")
			return nil
		}

		for i, t := range session.Tracks {
			marker := "  "
			if i == session.Current {
				marker = "> "
			}
			fmt.Printf("%s%3d. %s - %s (%s)\n", marker, i+1, t.Artist(), t.Title(), model.FormatDuration(t.Length()))
		}
		return nil
	},
}

var sessionClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "清除保存的播放列表",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		_, sessions, cleanup, err := openStores(cfg)
		if err != nil {
			return err
		}
		defer cleanup()
		if sessions == nil {
			return nil
		}
		if err := sessions.ClearSession(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("播放列表已清除")
		return nil
	},
}

func init() {
	sessionCmd.AddCommand(sessionShowCmd, sessionClearCmd)
	rootCmd.AddCommand(sessionCmd)
}
