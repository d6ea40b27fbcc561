package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configFile string
	remoteAddr string
	playNow    bool
)

var rootCmd = &cobra.Command{
	Use:   "decibel [files or directories...]",
	Short: "Decibel is a simple audio player.",
	Long: `Decibel plays local audio files through ffplay.

Files and directories given on the command line replace the saved tracklist.
Use --remote to control the player over HTTP and WebSocket.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPlayer(cmd.Context(), args)
	},
	SilenceUsage: true,
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML 配置文件路径")
	rootCmd.Flags().StringVarP(&remoteAddr, "remote", "r", "", "远程控制监听地址, 例如 :8080")
	rootCmd.Flags().BoolVarP(&playNow, "play", "p", true, "立即播放命令行给出的文件")
}
