package cmd

import (
	"context"
	"fmt"
	"time"

	"Decibel/cache"

	"github.com/spf13/cobra"
)

var redisCmd = &cobra.Command{
	Use:   "redis",
	Short: "Redis连接测试",
	Long:  `测试会话存储使用的Redis连接是否成功，并进行基本读写操作。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("开始测试Redis连接...")

		// 加载配置
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		fmt.Printf("Redis配置: %s, DB: %d, 会话后端: %s\n", cfg.RedisAddr(), cfg.RedisDB, cfg.SessionBackend)

		// 连接Redis
		if err := cache.ConnectRedis(cfg); err != nil {
			return fmt.Errorf("无法连接到Redis: %w", err)
		}
		defer cache.CloseRedis()
		fmt.Println("Redis连接成功！")

		// 在会话命名空间下测试读写
		store := cache.NewRedisSessionStore(cache.RedisClient, cfg.SessionName, cfg.SessionTTL)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		saved, err := store.Check(ctx)
		if err != nil {
			return fmt.Errorf("Redis操作测试失败: %w", err)
		}
		fmt.Println("Redis基本操作测试成功！")
		fmt.Printf("会话 %s (%s): 已保存 %d 首曲目\n", store.Name(), cache.GetSessionKey(store.Name()), saved)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(redisCmd)
}
