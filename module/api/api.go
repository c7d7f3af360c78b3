package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cast"

	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/config"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/core"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/domain"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/infra/kafka"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/infra/log"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/module/bam"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/utils"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/utils/idgen"
	"devops.aishu.cn/AISHUDevOps/AnyRobot/_git/itops-bam-engine/utils/slice"
)

const (
	maxBodyBytes     = 10 << 20
	defaultQuerySpan = 24 * time.Hour
)

// StateReader 查询计算图的实时状态。
type StateReader interface {
	BAState(ids ...uint32) []bam.BAView
	KPIState(ids ...uint32) []bam.KPIView
	MetaState(ids ...uint32) []bam.MetaView
}

// UpdateValidator 在写入 Kafka 前按当前数据源格式解析请求体。
type UpdateValidator interface {
	Standardize(ctx context.Context, payload []byte) (domain.Update, error)
}

// Server 提供 HTTP 入口：更新接收、实时状态与历史查询。
type Server struct {
	port       int
	producer   core.KafkaProducer
	validator  UpdateValidator
	states     StateReader
	repos      core.RepositoryFactory
	ids        *idgen.Generator
	httpServer *http.Server
}

func New(cfg *config.Config, states StateReader, validator UpdateValidator, repos core.RepositoryFactory) (*Server, error) {
	producer, err := kafka.NewProducer(kafka.ConfigFromMQ(cfg.DepServices.MQ, cfg.Kafka.MonitoringUpdates.Topic, ""))
	if err != nil {
		return nil, errors.Wrap(err, "初始化 Kafka Producer 失败")
	}
	return newServer(cfg.API.Port, producer, validator, states, repos), nil
}

func newServer(port int, producer core.KafkaProducer, validator UpdateValidator, states StateReader, repos core.RepositoryFactory) *Server {
	return &Server{
		port:      port,
		producer:  producer,
		validator: validator,
		states:    states,
		repos:     repos,
		ids:       idgen.New(),
	}
}

// Router 注册 /api/itops-bam-engine/v1 下的接口。
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	v1 := engine.Group("/api/itops-bam-engine").Group("/v1")
	{
		v1.POST("/updates", s.postUpdate)
		v1.GET("/bas/:ba_ids", s.queryBAs)
		v1.GET("/bas/:ba_ids/events", s.queryBaEvents)
		v1.GET("/bas/:ba_ids/availabilities", s.queryAvailabilities)
		v1.GET("/kpis/:kpi_ids", s.queryKPIs)
		v1.GET("/meta-services/:meta_ids", s.queryMetaServices)
		v1.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
	return engine
}

// Start 启动 HTTP Server，ctx 取消后优雅关闭。
func (s *Server) Start(ctx context.Context) error {
	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv
	log.Infof("HTTP 服务监听 %s", httpSrv.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// Stop 优雅关闭 HTTP 服务并释放 Kafka 客户端。
func (s *Server) Stop(ctx context.Context) error {
	var errs []error
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, errors.Wrap(err, "shutdown http server"))
		}
	}
	if s.producer != nil {
		if err := s.producer.Close(); err != nil {
			errs = append(errs, errors.Wrap(err, "close kafkaProducer"))
		}
	}
	if len(errs) > 0 {
		return errors.New(fmt.Sprintf("关闭 api 时发生 %d 个错误: %v", len(errs), errs))
	}
	return nil
}

func (s *Server) postUpdate(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	defer func() {
		if c.Request.Body != nil {
			_ = c.Request.Body.Close()
		}
	}()

	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "读取请求失败"})
		return
	}
	if len(body) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求体不能为空"})
		return
	}

	upd, err := s.validator.Standardize(c.Request.Context(), body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("更新格式错误: %v", err)})
		return
	}

	id := s.ids.NextID()
	log.Debugf("收到更新 %d: %s", id, utils.JsonEncode(upd))

	if err := s.producer.Publish(c.Request.Context(), partitionKey(upd), body); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("写入 Kafka 失败: %v", err)})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "id": id, "type": upd.Type})
}

// partitionKey 同一主机的更新落在同一分区以保持顺序。
func partitionKey(u domain.Update) string {
	switch {
	case u.ServiceStatus != nil:
		return fmt.Sprintf("host_%d", u.ServiceStatus.HostID)
	case u.Acknowledgement != nil:
		return fmt.Sprintf("host_%d", u.Acknowledgement.HostID)
	case u.Downtime != nil:
		return fmt.Sprintf("host_%d", u.Downtime.HostID)
	case u.Metric != nil:
		return fmt.Sprintf("metric_%d", u.Metric.MetricID)
	default:
		return string(u.Type)
	}
}

func (s *Server) queryBAs(c *gin.Context) {
	ids, ok := parseIDs(c, "ba_ids")
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": s.states.BAState(ids...)})
}

func (s *Server) queryKPIs(c *gin.Context) {
	ids, ok := parseIDs(c, "kpi_ids")
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": s.states.KPIState(ids...)})
}

func (s *Server) queryMetaServices(c *gin.Context) {
	ids, ok := parseIDs(c, "meta_ids")
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": s.states.MetaState(ids...)})
}

func (s *Server) queryBaEvents(c *gin.Context) {
	baID, start, end, ok := parseHistoryQuery(c)
	if !ok {
		return
	}
	items, err := s.repos.BaEvent().QueryByBaID(c.Request.Context(), baID, start, end)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (s *Server) queryAvailabilities(c *gin.Context) {
	baID, start, end, ok := parseHistoryQuery(c)
	if !ok {
		return
	}
	items, err := s.repos.Availability().QueryByBaID(c.Request.Context(), baID, start, end)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func parseIDs(c *gin.Context, param string) ([]uint32, bool) {
	ids, err := slice.SplitToUint32s(c.Param(param))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s 参数格式错误: %v", param, err)})
		return nil, false
	}
	if len(ids) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s 参数必填", param)})
		return nil, false
	}
	return ids, true
}

type historyQuery struct {
	Start string `form:"start"`
	End   string `form:"end"`
}

// parseHistoryQuery 解析单个 BA ID 与 [start, end)，缺省为最近 24 小时。
func parseHistoryQuery(c *gin.Context) (uint32, time.Time, time.Time, bool) {
	baID, err := cast.ToUint32E(c.Param("ba_ids"))
	if err != nil || baID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ba_id 必须是有效的数字"})
		return 0, time.Time{}, time.Time{}, false
	}

	var q historyQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("请求参数验证失败: %v", err)})
		return 0, time.Time{}, time.Time{}, false
	}

	end, err := parseTimeParam(q.End, time.Now())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("end 参数格式错误: %v", err)})
		return 0, time.Time{}, time.Time{}, false
	}
	start, err := parseTimeParam(q.Start, end.Add(-defaultQuerySpan))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("start 参数格式错误: %v", err)})
		return 0, time.Time{}, time.Time{}, false
	}
	if !start.Before(end) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start 必须早于 end"})
		return 0, time.Time{}, time.Time{}, false
	}
	return baID, start, end, true
}

// parseTimeParam 支持 unix 秒和 RFC3339 等常见格式。
func parseTimeParam(v string, def time.Time) (time.Time, error) {
	if v == "" {
		return def, nil
	}
	if sec, err := cast.ToInt64E(v); err == nil {
		return time.Unix(sec, 0), nil
	}
	return cast.ToTimeInDefaultLocationE(v, time.Local)
}
