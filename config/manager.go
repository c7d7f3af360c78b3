package config

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	httpx "devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/infra/http"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/infra/log"
)

// ConfigManager 配置管理器
type ConfigManager struct {
	mu            sync.RWMutex
	config        *Config // 当前生效的配置（基础配置 + BAM 定义合并后）
	configPath    string  // config.yaml 文件路径（只读）
	bamConfigPath string  // bam_config.yaml 文件路径（可写）

	// 远程配置
	httpClient    *httpx.Client
	lastRemoteBAM *RemoteBAMConfig // 上次远程获取的定义（用于变更检测）

	// watch 相关
	watcher *fsnotify.Watcher
	stopCh  chan struct{}
}

// NewConfigManager 创建配置管理器
func NewConfigManager(configPath string) (*ConfigManager, error) {
	// 初始加载基础配置
	cfg, err := Load(configPath)
	if err != nil {
		return nil, errors.Wrap(err, "初始加载配置失败")
	}

	// 计算 bam_config.yaml 路径（与 config.yaml 同目录下的 data 子目录）
	configDir := filepath.Dir(configPath)
	bamConfigPath := filepath.Join(configDir, "data", "bam_config.yaml")

	// 尝试加载 BAM 定义
	bamCfg, err := loadValidBAMConfig(bamConfigPath)
	if err != nil {
		// 文件不存在或不合法时使用空定义
		log.Warnf("加载 BAM 定义失败: %v，使用空定义", err)
		bamCfg = &BAMConfig{}

		// 确保 data 目录存在
		dataDir := filepath.Dir(bamConfigPath)
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			log.Warnf("创建 data 目录失败: %v", err)
		} else if _, statErr := os.Stat(bamConfigPath); os.IsNotExist(statErr) {
			// 只在文件不存在时写入空定义，避免覆盖用户写错的文件
			if err := SaveBAMConfig(bamConfigPath, bamCfg); err != nil {
				log.Warnf("写入默认 BAM 定义失败: %v", err)
			}
		}
	}
	cfg.BAM = *bamCfg

	// 创建文件 watcher
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "创建文件 watcher 失败")
	}

	// 添加配置文件到 watch 列表
	if err := watcher.Add(configPath); err != nil {
		watcher.Close()
		return nil, errors.Wrap(err, "添加配置文件到 watch 列表失败")
	}

	// 尝试添加 bam_config.yaml 到 watch 列表（可能不存在）
	if _, err := os.Stat(bamConfigPath); err == nil {
		if err := watcher.Add(bamConfigPath); err != nil {
			log.Warnf("添加 BAM 定义文件到 watch 列表失败: %v", err)
		}
	}

	return &ConfigManager{
		config:        cfg,
		configPath:    configPath,
		bamConfigPath: bamConfigPath,
		httpClient: httpx.NewClient(httpx.Config{Timeout: 10 * time.Second}, nil),
		watcher: watcher,
		stopCh:  make(chan struct{}),
	}, nil
}

// loadValidBAMConfig 读取并校验 BAM 定义
func loadValidBAMConfig(path string) (*BAMConfig, error) {
	bamCfg, err := LoadBAMConfig(path)
	if err != nil {
		return nil, err
	}
	if err := bamCfg.Validate(); err != nil {
		return nil, err
	}
	return bamCfg, nil
}

// Start 启动配置管理（文件 watch + 定时刷新）
func (m *ConfigManager) Start(ctx context.Context) error {
	// 启动时立即尝试拉取远程配置
	if m.config.BamConfigService.Enabled {
		if err := m.fetchAndWriteRemoteConfig(); err != nil {
			log.Warnf("启动时拉取远程配置失败: %v，使用本地默认配置", err)
		}
	}

	// 启动文件 watch 协程
	go m.watchConfigFile(ctx)

	// 启动远程配置定时刷新协程
	if m.config.BamConfigService.Enabled {
		go m.runRemoteConfigRefresher(ctx)
	}

	<-ctx.Done()
	return ctx.Err()
}

// Stop 停止配置管理
func (m *ConfigManager) Stop() {
	close(m.stopCh)
	if m.watcher != nil {
		m.watcher.Close()
	}
}

// GetConfig 获取当前配置（线程安全）
func (m *ConfigManager) GetConfig() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// GetBAMConfigPath 获取 BAM 定义文件路径
func (m *ConfigManager) GetBAMConfigPath() string {
	return m.bamConfigPath
}

// watchConfigFile 监控配置文件变动
func (m *ConfigManager) watchConfigFile(ctx context.Context) {
	log.Info("启动配置文件 watch 协程")

	for {
		select {
		case <-ctx.Done():
			log.Info("配置文件 watch 协程收到停止信号")
			return
		case <-m.stopCh:
			log.Info("配置文件 watch 协程收到停止信号")
			return
		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			// 只处理写入和创建事件
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				log.Infof("检测到配置文件变动: %s", event.Name)
				// 延迟一下，确保文件写入完成
				time.Sleep(100 * time.Millisecond)
				if err := m.reload(); err != nil {
					log.Errorf("重新加载配置失败: %v", err)
				} else {
					log.Info("配置重新加载成功")
				}
			}
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			log.Errorf("配置文件 watch 错误: %v", err)
		}
	}
}

// runRemoteConfigRefresher 定时刷新远程配置
func (m *ConfigManager) runRemoteConfigRefresher(ctx context.Context) {
	interval := m.config.BamConfigService.RefreshInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	log.Infof("启动远程配置定时刷新协程（间隔: %v）", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("远程配置定时刷新协程收到停止信号")
			return
		case <-m.stopCh:
			log.Info("远程配置定时刷新协程收到停止信号")
			return
		case <-ticker.C:
			log.Debug("开始定时拉取远程配置...")
			if err := m.fetchAndWriteRemoteConfig(); err != nil {
				log.Errorf("定时拉取远程配置失败: %v", err)
			}
		}
	}
}

// fetchAndWriteRemoteConfig 获取远程定义并写入 bam_config.yaml
func (m *ConfigManager) fetchAndWriteRemoteConfig() error {
	// 获取远程定义
	remoteBAM, err := m.fetchRemoteBAMConfig()
	if err != nil {
		return errors.Wrap(err, "获取远程配置失败")
	}

	// 检查是否有变更
	if m.lastRemoteBAM != nil && reflect.DeepEqual(m.lastRemoteBAM, remoteBAM) {
		log.Debug("远程配置无变化，跳过写入")
		return nil
	}

	bamCfg := remoteBAM.ToBAMConfig()
	if err := bamCfg.Validate(); err != nil {
		return errors.Wrap(err, "远程 BAM 定义不合法")
	}
	if err := m.writeBAMConfig(bamCfg); err != nil {
		return errors.Wrap(err, "写入 BAM 定义失败")
	}

	m.lastRemoteBAM = remoteBAM
	log.Info("远程配置已更新并写入 bam_config.yaml")

	// 直接重新加载配置，不依赖 watcher（避免 watcher 还未启动或事件延迟）
	if err := m.reload(); err != nil {
		log.Warnf("写入后重新加载配置失败: %v", err)
	}

	return nil
}

// fetchRemoteBAMConfig 获取远程 BAM 定义
func (m *ConfigManager) fetchRemoteBAMConfig() (*RemoteBAMConfig, error) {
	endpoint := m.config.BamConfigService.Endpoint
	if endpoint == "" {
		return nil, errors.New("远程配置接口地址为空")
	}

	resp, err := m.httpClient.Get(context.Background(), endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, "请求远程配置失败")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("远程配置接口返回非 200 状态码: %d", resp.StatusCode)
	}

	var remoteBAM RemoteBAMConfig
	if err := sonic.Unmarshal(resp.Body, &remoteBAM); err != nil {
		return nil, errors.Wrap(err, "解析远程配置 JSON 失败")
	}
	if remoteBAM.Code != 0 {
		return nil, errors.Errorf("远程配置接口返回错误: code=%d, message=%s", remoteBAM.Code, remoteBAM.Message)
	}

	return &remoteBAM, nil
}

// writeBAMConfig 写入 BAM 定义到 bam_config.yaml
func (m *ConfigManager) writeBAMConfig(bamCfg *BAMConfig) error {
	// 确保目录存在
	dataDir := filepath.Dir(m.bamConfigPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return errors.Wrap(err, "创建 data 目录失败")
	}

	// 写入文件
	if err := SaveBAMConfig(m.bamConfigPath, bamCfg); err != nil {
		return err
	}

	// 尝试添加到 watcher（如果是新创建的文件）
	if m.watcher != nil {
		_ = m.watcher.Add(m.bamConfigPath)
	}

	return nil
}

// reload 重新加载配置，生成新的配置快照
func (m *ConfigManager) reload() error {
	// 加载基础配置
	cfg, err := Load(m.configPath)
	if err != nil {
		return errors.Wrap(err, "加载基础配置失败")
	}

	// 加载 BAM 定义
	bamCfg, err := loadValidBAMConfig(m.bamConfigPath)
	if err != nil {
		log.Warnf("加载 BAM 定义失败: %v，保持原有定义", err)
		m.mu.RLock()
		bamCfg = &m.config.BAM
		m.mu.RUnlock()
	}
	cfg.BAM = *bamCfg

	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()

	return nil
}
