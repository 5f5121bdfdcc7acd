package config

import (
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// SizeBox 目标尺寸框，Y 为 0 时表示按比例缩放
type SizeBox struct {
	X int `mapstructure:"x"`
	Y int `mapstructure:"y"`
}

// ThumbnailDescriptor 通用文档缩略图描述
// ID 非空时直接复用已入库的文件，否则从 URL 拉取
type ThumbnailDescriptor struct {
	ID  *uint  `mapstructure:"id"`
	URL string `mapstructure:"url"`
}

// ManipulatorConfig 单个处理器配置
type ManipulatorConfig struct {
	Impl       string                         `mapstructure:"impl"`
	Sizes      map[string]SizeBox             `mapstructure:"sizes"`
	Thumbnails map[string]ThumbnailDescriptor `mapstructure:"thumbnails"`
	Mimes      map[string][]string            `mapstructure:"mimes"`
}

// DriverConfig 单个文档驱动配置
type DriverConfig struct {
	Impl               string                       `mapstructure:"impl"`
	Mimes              []string                     `mapstructure:"mimes"`
	DefaultManipulator string                       `mapstructure:"default_manipulator"`
	Manipulators       map[string]ManipulatorConfig `mapstructure:"manipulators"`
}

// AssetsConfig 资产网关配置树
type AssetsConfig struct {
	DefaultDriver     string                  `mapstructure:"default_driver"`
	StrictDriverMatch bool                    `mapstructure:"strict_driver_match"`
	Drivers           map[string]DriverConfig `mapstructure:"drivers"`
}

// 处理器实现选择器
const (
	ManipulatorImageProfile    = "ImageProfiles"
	ManipulatorBanner          = "BannerImages"
	ManipulatorCompanyLogo     = "LogoManipulator"
	ManipulatorGenericDocument = "GenericDocuments"
)

// 驱动实现选择器
const (
	DriverImage           = "image"
	DriverGenericDocument = "document"
)

// LoadAssetsConfig 加载资产配置树
// 指定了 assets_config_file 时从 YAML 文件读取，否则使用内置默认配置。
// 顶层开关（default_driver、strict_driver_match）取自扁平配置，
// 文件里显式写了同名键时以文件为准。
func LoadAssetsConfig(cfg *Config) (*AssetsConfig, error) {
	assets := DefaultAssetsConfig()
	assets.DefaultDriver = cfg.AssetsDefaultDriver
	assets.StrictDriverMatch = cfg.AssetsStrictDriverMatch

	if cfg.AssetsConfigFile == "" {
		return assets, nil
	}

	data, err := os.ReadFile(cfg.AssetsConfigFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read assets config file '%s': %w", cfg.AssetsConfigFile, err)
	}

	// 处理器名区分大小写，用 yaml 原样解码后再走 mapstructure
	raw := map[string]interface{}{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse assets config file '%s': %w", cfg.AssetsConfigFile, err)
	}

	decoded := &AssetsConfig{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           decoded,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("failed to decode assets config: %w", err)
	}

	if decoded.DefaultDriver == "" {
		decoded.DefaultDriver = assets.DefaultDriver
	}
	// 布尔零值分不清"未设置"，文件没写这个键时沿用扁平配置
	if _, ok := raw["strict_driver_match"]; !ok {
		decoded.StrictDriverMatch = assets.StrictDriverMatch
	}
	if len(decoded.Drivers) == 0 {
		decoded.Drivers = assets.Drivers
	}
	return decoded, nil
}

// DefaultAssetsConfig 内置默认配置
func DefaultAssetsConfig() *AssetsConfig {
	return &AssetsConfig{
		DefaultDriver: DriverImage,
		Drivers: map[string]DriverConfig{
			DriverImage: {
				Impl:               DriverImage,
				Mimes:              []string{"image/jpeg", "image/png", "image/gif"},
				DefaultManipulator: ManipulatorImageProfile,
				Manipulators: map[string]ManipulatorConfig{
					ManipulatorImageProfile: {
						Impl: ManipulatorImageProfile,
						Sizes: map[string]SizeBox{
							"large":  {X: 700, Y: 0},
							"medium": {X: 400, Y: 0},
							"small":  {X: 100, Y: 0},
						},
					},
					ManipulatorBanner: {
						Impl: ManipulatorBanner,
						Sizes: map[string]SizeBox{
							"large":  {X: 1000, Y: 563},
							"medium": {X: 700, Y: 394},
							"small":  {X: 400, Y: 225},
						},
					},
					ManipulatorCompanyLogo: {
						Impl: ManipulatorCompanyLogo,
						Sizes: map[string]SizeBox{
							"large":  {X: 500, Y: 500},
							"medium": {X: 250, Y: 250},
							"small":  {X: 100, Y: 100},
						},
					},
				},
			},
			DriverGenericDocument: {
				Impl:               DriverGenericDocument,
				Mimes:              []string{},
				DefaultManipulator: ManipulatorGenericDocument,
				Manipulators: map[string]ManipulatorConfig{
					ManipulatorGenericDocument: {
						Impl: ManipulatorGenericDocument,
						Thumbnails: map[string]ThumbnailDescriptor{
							"word":    {URL: "https://cdn.coreux.io/thumbnails/word.png"},
							"excel":   {URL: "https://cdn.coreux.io/thumbnails/excel.png"},
							"generic": {URL: "https://cdn.coreux.io/thumbnails/generic.png"},
						},
						Mimes: map[string][]string{
							"word": {
								"application/msword",
								"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
								"application/vnd.openxmlformats-officedocument.wordprocessingml.template",
								"application/vnd.ms-word.document.macroEnabled.12",
								"application/vnd.ms-word.template.macroEnabled.12",
							},
							"excel": {
								"application/vnd.ms-excel",
								"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
								"application/vnd.openxmlformats-officedocument.spreadsheetml.template",
								"application/vnd.ms-excel.sheet.macroEnabled.12",
								"application/vnd.ms-excel.template.macroEnabled.12",
								"application/vnd.ms-excel.addin.macroEnabled.12",
								"application/vnd.ms-excel.sheet.binary.macroEnabled.12",
							},
						},
					},
				},
			},
		},
	}
}
