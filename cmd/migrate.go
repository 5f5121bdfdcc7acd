package cmd

import (
	"log"

	"github.com/coreux/asset-gateway/config"
	"github.com/coreux/asset-gateway/database"
	assetsrepo "github.com/coreux/asset-gateway/database/repo/assets"
	"github.com/spf13/cobra"
)

// migrateCmd 数据库迁移命令
// 建表并创建主关联的部分唯一索引，可重复执行。
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database schema migration",
	Run: func(cmd *cobra.Command, args []string) {
		config.InitConfig()
		cfg := config.Get()

		db, err := database.NewDB(cfg)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}

		if err := database.AutoMigrate(db); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}

		if err := assetsrepo.NewAssociationRepository(db).EnsurePrimaryIndex(); err != nil {
			log.Fatalf("Failed to create primary association index: %v", err)
		}

		log.Println("Migration completed")
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
