package config

import (
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/spf13/viper"
)

var (
	globalConfig Config
	once         sync.Once
)

// Config 扁平化配置结构体
type Config struct {
	// 服务器配置
	ServerHost         string        `mapstructure:"server_host"`
	ServerPort         int           `mapstructure:"server_port"`
	ServerDomain       string        `mapstructure:"server_domain"`
	ServerReadTimeout  time.Duration `mapstructure:"server_read_timeout"`
	ServerWriteTimeout time.Duration `mapstructure:"server_write_timeout"`
	ServerIdleTimeout  time.Duration `mapstructure:"server_idle_timeout"`

	// 数据库配置
	DBType            string `mapstructure:"db_type"`
	DBHost            string `mapstructure:"db_host"`
	DBPort            int    `mapstructure:"db_port"`
	DBUsername        string `mapstructure:"db_username"`
	DBPassword        string `mapstructure:"db_password"`
	DBName            string `mapstructure:"db_name"`
	DBFilePath        string `mapstructure:"db_file_path"`
	DBMaxOpenConns    int    `mapstructure:"db_max_open_conns"`
	DBMaxIdleConns    int    `mapstructure:"db_max_idle_conns"`
	DBConnMaxLifetime int    `mapstructure:"db_conn_max_lifetime"`

	// 持久化存储配置
	StorageType        string `mapstructure:"storage_type"`
	StorageLocalPath   string `mapstructure:"storage_local_path"`
	MinioEndpoint      string `mapstructure:"minio_endpoint"`
	MinioAccessKey     string `mapstructure:"minio_access_key"`
	MinioSecretKey     string `mapstructure:"minio_secret_key"`
	MinioBucket        string `mapstructure:"minio_bucket"`
	MinioUseSSL        bool   `mapstructure:"minio_use_ssl"`
	WebDAVURL          string `mapstructure:"webdav_url"`
	WebDAVUsername     string `mapstructure:"webdav_username"`
	WebDAVPassword     string `mapstructure:"webdav_password"`
	WebDAVRootPath     string `mapstructure:"webdav_root_path"`

	// 文件网关配置
	CloudBaseURL            string `mapstructure:"cloud_base_url"`
	CloudFolder             string `mapstructure:"cloud_folder"`
	LocalDriver             string `mapstructure:"local_driver"`
	LocalDocumentFolder     string `mapstructure:"local_document_folder"`
	LocalDocumentFolderName string `mapstructure:"local_document_folder_name"`
	KeepLocalCopy           bool   `mapstructure:"keep_local_copy"`

	// 图片处理引擎: vips 或 native
	ImageEngine string `mapstructure:"image_engine"`

	// 资产驱动配置
	AssetsDefaultDriver     string `mapstructure:"assets_default_driver"`
	AssetsStrictDriverMatch bool   `mapstructure:"assets_strict_driver_match"`
	AssetsConfigFile        string `mapstructure:"assets_config_file"`

	// 缓存配置
	CacheType          string `mapstructure:"cache_type"`
	CacheAssetTTL      int    `mapstructure:"cache_asset_ttl"`
	CacheRedisAddr     string `mapstructure:"cache_redis_addr"`
	CacheRedisPassword string `mapstructure:"cache_redis_password"`
	CacheRedisDB       int    `mapstructure:"cache_redis_db"`

	// 限流配置
	RateLimitApiRPS   float64 `mapstructure:"rate_limit_api_rps"`
	RateLimitApiBurst int     `mapstructure:"rate_limit_api_burst"`

	// 上传配置
	UploadMaxSizeMB int `mapstructure:"upload_max_size_mb"`

	// Worker 配置
	WorkerCount       int           `mapstructure:"worker_count"`
	StagingMaxAge     time.Duration `mapstructure:"staging_max_age"`
}

// InitConfig Initialize configuration
func InitConfig() {
	once.Do(func() {
		loadConfig()
	})
}

func Get() *Config {
	return &globalConfig
}

// loadConfig Core configuration loading
func loadConfig() {
	setDefaults()

	viper.SetConfigFile(".env")
	viper.SetConfigType("env")

	if err := viper.ReadInConfig(); err != nil {
		fmt.Fprintln(os.Stderr, "Info: .env file not found, using defaults and environment variables")
	} else {
		fmt.Fprintln(os.Stderr, "Info: Loaded configuration from .env file")
	}

	viper.AutomaticEnv()
	for _, key := range viper.AllKeys() {
		viper.BindEnv(key)
	}

	if err := viper.Unmarshal(&globalConfig); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: Unable to unmarshal config, %v\n", err)
		os.Exit(1)
	}

	if globalConfig.WorkerCount <= 0 {
		globalConfig.WorkerCount = getCpus()
	}
}

// setDefaults 设置默认值
func setDefaults() {
	// 服务器配置默认值
	viper.SetDefault("server_host", "127.0.0.1")
	viper.SetDefault("server_port", 8080)
	viper.SetDefault("server_domain", "")
	viper.SetDefault("server_read_timeout", "15s")
	viper.SetDefault("server_write_timeout", "30s")
	viper.SetDefault("server_idle_timeout", "120s")

	// 数据库配置默认值
	viper.SetDefault("db_type", "sqlite")
	viper.SetDefault("db_host", "localhost")
	viper.SetDefault("db_port", 5432)
	viper.SetDefault("db_username", "postgres")
	viper.SetDefault("db_password", "")
	viper.SetDefault("db_name", "asset-gateway")
	viper.SetDefault("db_file_path", "")
	viper.SetDefault("db_max_open_conns", 100)
	viper.SetDefault("db_max_idle_conns", 25)
	viper.SetDefault("db_conn_max_lifetime", 3600)

	// 持久化存储配置默认值
	viper.SetDefault("storage_type", "local")
	viper.SetDefault("storage_local_path", "./data/cloud")
	viper.SetDefault("minio_endpoint", "")
	viper.SetDefault("minio_bucket", "assets")
	viper.SetDefault("minio_use_ssl", false)
	viper.SetDefault("webdav_url", "")

	// 文件网关配置默认值
	viper.SetDefault("cloud_base_url", "")
	viper.SetDefault("cloud_folder", "")
	viper.SetDefault("local_driver", "local")
	viper.SetDefault("local_document_folder", "./data/documents")
	viper.SetDefault("local_document_folder_name", "documents")
	viper.SetDefault("keep_local_copy", false)

	// 图片处理引擎默认值
	viper.SetDefault("image_engine", "vips")

	// 资产驱动配置默认值
	viper.SetDefault("assets_default_driver", "image")
	viper.SetDefault("assets_strict_driver_match", false)
	viper.SetDefault("assets_config_file", "")

	// 缓存配置默认值
	viper.SetDefault("cache_type", "memory")
	viper.SetDefault("cache_asset_ttl", 3600)
	viper.SetDefault("cache_redis_addr", "localhost:6379")
	viper.SetDefault("cache_redis_password", "")
	viper.SetDefault("cache_redis_db", 0)

	// 限流配置默认值
	viper.SetDefault("rate_limit_api_rps", 30.0)
	viper.SetDefault("rate_limit_api_burst", 60)

	// 上传配置默认值
	viper.SetDefault("upload_max_size_mb", 50)

	// Worker 配置默认值
	viper.SetDefault("worker_count", 0)
	viper.SetDefault("staging_max_age", "24h")
}

// Addr 返回监听地址，格式为 "host:port"
func (c *Config) Addr() string {
	host := c.ServerHost
	if host == "" {
		host = "0.0.0.0"
	}
	port := c.ServerPort
	if port == 0 {
		port = 8080
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// GetWorkerCount 返回 worker 数量
func (c *Config) GetWorkerCount() int {
	if c.WorkerCount <= 0 {
		return getCpus()
	}
	return c.WorkerCount
}

// getCpus 获取默认线程数量
func getCpus() int {
	n := runtime.GOMAXPROCS(0)
	if n < 2 {
		return 2
	}
	return n
}
