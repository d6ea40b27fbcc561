package cmd

import (
	"fmt"

	"Decibel/core/audio"
	"Decibel/core/tags"
	"Decibel/model"

	"github.com/spf13/cobra"
)

var (
	tagsByFilename bool
	tagsSerialized bool
)

var tagsCmd = &cobra.Command{
	Use:   "tags <files or directories...>",
	Short: "读取并打印音频文件的标签",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		reader := tags.NewReader(audio.NewProber(cfg.FFprobePath))
		tracks := reader.GetTracks(cmd.Context(), args, tagsByFilename)
		if len(tracks) == 0 {
			fmt.Println("未找到可读取的音频文件")
			return nil
		}

		total := 0
		for i, t := range tracks {
			total += t.Length()
			if tagsSerialized {
				fmt.Println(t.Serialize())
				continue
			}
			fmt.Printf("%3d. %s - %s [%s] (%s)\n", i+1, t.Artist(), t.Title(), t.ExtendedAlbum(), model.FormatDuration(t.Length()))
		}
		if !tagsSerialized {
			fmt.Printf("\n%d tracks, %s\n", len(tracks), model.FormatDuration(total))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tagsCmd)

	tagsCmd.Flags().BoolVarP(&tagsByFilename, "by-filename", "f", false, "目录中的文件按文件名而不是标签排序")
	tagsCmd.Flags().BoolVarP(&tagsSerialized, "serialized", "s", false, "输出序列化的曲目行")
}
