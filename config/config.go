package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config 映射 config.yaml。BA 计算图定义由 ConfigManager 从 data/bam_config.yaml 合并进来，
// 未配置的端口、topic 和引擎参数在 Load 时补默认值。
type Config struct {
	API              APIConfig              `yaml:"api"`
	Log              LogConfig              `yaml:"log"`                // 日志配置
	Kafka            KafkaConfig            `yaml:"kafka"`              // Kafka 配置
	DepServices      DepServicesConfig      `yaml:"depServices"`        // 依赖服务配置
	BamConfigService BamConfigServiceConfig `yaml:"bam_config_service"` // 远程 BAM 定义服务
	Bam              EngineConfig           `yaml:"bam"`                // 引擎运行参数
	BAM              BAMConfig              `yaml:"-"`                  // BA 计算图定义（本地文件 + 远程接口）
}

type APIConfig struct {
	Port int `yaml:"port"`
}

// LogConfig 日志配置，level 支持运行时调整。
type LogConfig struct {
	Filepath    string `yaml:"filepath"`    // 日志文件路径
	Level       string `yaml:"level"`       // 日志级别 info warning error
	MaxSize     int    `yaml:"max_size"`    // 每个日志文件最大空间(单位：MB)
	MaxAge      int    `yaml:"max_age"`     // 文件最多保留多少天
	MaxBackups  int    `yaml:"max_backups"` // 文件最多保留多少备份
	Compress    bool   `yaml:"compress"`    // 是否压缩
	Development bool   `yaml:"development"` // 是否开启开发模式
}

type KafkaConfig struct {
	MonitoringUpdates KafkaStreamConfig `yaml:"monitoring_updates"` // 原始监控更新流（HTTP/采集端 -> 引擎）
	BamEvents         KafkaStreamConfig `yaml:"bam_events"`         // BA/KPI 事件流（引擎 -> 通知消费者）
}

type KafkaStreamConfig struct {
	Topic         string `yaml:"topic"`
	ConsumerGroup string `yaml:"consumer_group"`
}

// DepServicesConfig 依赖服务配置
type DepServicesConfig struct {
	MQ         MQConfig            `yaml:"mq"`         // 消息队列配置
	OpenSearch DepOpenSearchConfig `yaml:"opensearch"` // OpenSearch 配置
	Redis      DepRedisConfig      `yaml:"redis"`      // Redis 配置
}

// MQConfig 消息队列配置
type MQConfig struct {
	Auth     MQAuthConfig `yaml:"auth"`     // 认证配置
	MQHost   string       `yaml:"mqHost"`   // 消息队列主机地址
	MQPort   int          `yaml:"mqPort"`   // 消息队列端口
	MQType   string       `yaml:"mqType"`   // 消息队列类型（如 kafka）
	Protocol string       `yaml:"protocol"` // 协议（如 sasl_plaintext）
	Tenant   string       `yaml:"tenant"`   // 租户
}

// MQAuthConfig 消息队列认证配置
type MQAuthConfig struct {
	Mechanism string `yaml:"mechanism"` // 认证机制（如 PLAIN）
	Password  string `yaml:"password"`  // 密码
	Username  string `yaml:"username"`  // 用户名
}

// DepOpenSearchConfig 依赖的 OpenSearch 配置
type DepOpenSearchConfig struct {
	Host     string `yaml:"host"`     // OpenSearch 主机地址
	Port     int    `yaml:"port"`     // OpenSearch 端口
	Protocol string `yaml:"protocol"` // 协议（http/https）
	User     string `yaml:"user"`     // 用户名
	Password string `yaml:"password"` // 密码
}

// DepRedisConfig 依赖的 Redis 配置
type DepRedisConfig struct {
	ConnectInfo RedisConnectInfo `yaml:"connectInfo"` // 连接信息
	ConnectType string           `yaml:"connectType"` // 连接类型（如 sentinel）
}

// RedisConnectInfo Redis 连接信息
type RedisConnectInfo struct {
	MasterGroupName  string `yaml:"masterGroupName"`  // Master 组名（Sentinel 模式）
	Password         string `yaml:"password"`         // Redis 密码
	SentinelHost     string `yaml:"sentinelHost"`     // Sentinel 主机地址
	SentinelPassword string `yaml:"sentinelPassword"` // Sentinel 密码
	SentinelPort     int    `yaml:"sentinelPort"`     // Sentinel 端口
	SentinelUsername string `yaml:"sentinelUsername"` // Sentinel 用户名
	Username         string `yaml:"username"`         // Redis 用户名
}

// Load 从指定路径读取 YAML 配置。
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

const (
	defaultAPIPort          = 13048
	defaultUpdatesTopic     = "itops_bam_monitoring_updates"
	defaultEventsTopic      = "itops_bam_events"
	defaultConsumerGroup    = "itops-bam-engine"
	defaultSourceType       = "native"
	defaultMetaInterval     = 60 * time.Second
	defaultAvailabilityCron = "5 0 * * *"
)

// applyDefaults 补齐未配置的端口、topic 和引擎参数。
func applyDefaults(c *Config) {
	if c.API.Port == 0 {
		c.API.Port = defaultAPIPort
	}
	if c.Kafka.MonitoringUpdates.Topic == "" {
		c.Kafka.MonitoringUpdates.Topic = defaultUpdatesTopic
	}
	if c.Kafka.MonitoringUpdates.ConsumerGroup == "" {
		c.Kafka.MonitoringUpdates.ConsumerGroup = defaultConsumerGroup
	}
	if c.Kafka.BamEvents.Topic == "" {
		c.Kafka.BamEvents.Topic = defaultEventsTopic
	}

	e := &c.Bam
	if e.Ingest.Source.Type == "" {
		e.Ingest.Source.Type = defaultSourceType
	}
	if e.MetaStatusInterval <= 0 {
		e.MetaStatusInterval = defaultMetaInterval
	}
	if e.Availability.Schedule == "" {
		e.Availability.Schedule = defaultAvailabilityCron
	}
}

// LoadBAMConfig 从指定路径读取 BAM 定义
func LoadBAMConfig(path string) (*BAMConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read bam config")
	}

	var bamCfg BAMConfig
	if err := yaml.Unmarshal(data, &bamCfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal bam config")
	}
	return &bamCfg, nil
}

// SaveBAMConfig 将 BAM 定义写入指定路径
func SaveBAMConfig(path string, bamCfg *BAMConfig) error {
	data, err := yaml.Marshal(bamCfg)
	if err != nil {
		return errors.Wrap(err, "marshal bam config")
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrap(err, "write bam config")
	}
	return nil
}
