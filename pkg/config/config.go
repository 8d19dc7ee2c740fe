package config

import (
	"log"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Load 读取 config/{service}.yaml 并解码到 out
// defaults 中的 key 使用 viper 的点号路径，例如 "progress.topic"
func Load(service string, out interface{}, defaults map[string]interface{}) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigName(service)
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".") // 兜底，直接放当前目录也行

	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	// 环境变量覆盖，例如：
	//   RECORDER_PROGRESS_URL 覆盖 progress.url
	//   RECORDER_LOG_LEVEL    覆盖 log.level
	v.SetEnvPrefix(strings.ToUpper(service))
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	if err := v.Unmarshal(out); err != nil {
		return nil, err
	}

	log.Printf("[%s] config loaded from %s", service, v.ConfigFileUsed())
	return v, nil
}

// Watch 监听文件变更，热更新到 out；onChange 可为 nil
// 只在常驻的 schedule 模式下使用，单次运行不需要
func Watch(v *viper.Viper, service string, out interface{}, onChange func()) {
	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		log.Printf("[%s] config file changed: %s", service, e.Name)

		if err := v.Unmarshal(out); err != nil {
			log.Printf("[%s] reload config error: %v", service, err)
			return
		}
		log.Printf("[%s] config reloaded OK", service)
		if onChange != nil {
			onChange()
		}
	})
}
