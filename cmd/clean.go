package cmd

import (
	"log"

	"github.com/coreux/asset-gateway/config"
	"github.com/coreux/asset-gateway/internal/filestore"
	"github.com/spf13/cobra"
)

// cleanCmd 清理超龄的本地暂存文件
var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove stale files from the local staging area",
	Run: func(cmd *cobra.Command, args []string) {
		config.InitConfig()
		cfg := config.Get()

		// 只做本地清理，不接持久化存储与数据库
		gateway, err := filestore.NewStagingGateway(cfg)
		if err != nil {
			log.Fatalf("Failed to initialize file gateway: %v", err)
		}

		removed, err := gateway.StagingJanitor(cfg.StagingMaxAge)
		if err != nil {
			log.Fatalf("Staging cleanup failed: %v", err)
		}
		log.Printf("Removed %d stale staged files from %s", removed, gateway.StagingDir())
	},
}

func init() {
	rootCmd.AddCommand(cleanCmd)
}
