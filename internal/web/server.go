package web

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"video-shot-workflow/pkg/broadcast"
	"video-shot-workflow/pkg/project"
	"video-shot-workflow/pkg/shotid"
	"video-shot-workflow/pkg/splitter"
	"video-shot-workflow/pkg/workflow"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Server 提供镜头流水线的HTTP接口和日志推送
type Server struct {
	processor *workflow.Processor
	service   *broadcast.BroadcastService
	logger    *zap.Logger
}

// NewServer 创建Web服务器
func NewServer(logger *zap.Logger) (*Server, error) {
	service := broadcast.NewBroadcastService()
	broadcast.GlobalBroadcastService = service

	// 处理器的日志同时写入stderr和WebSocket广播
	webLogger := logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, NewBroadcastCore(
			"workflow",
			service,
			zapcore.NewConsoleEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(os.Stderr),
		))
	}))

	processor, err := workflow.NewProcessor(webLogger)
	if err != nil {
		return nil, err
	}

	return &Server{
		processor: processor,
		service:   service,
		logger:    logger,
	}, nil
}

// Start 启动HTTP服务，阻塞直到服务退出
func (s *Server) Start() error {
	var wg sync.WaitGroup
	wg.Add(1)
	go s.service.Start(&wg)

	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()

	r.GET("/", s.statusHandler)
	r.GET("/ws", s.wsHandler)
	r.GET("/api/runs", s.listRunsHandler)
	r.POST("/api/split", s.splitHandler)
	r.POST("/api/process", s.processHandler)
	r.POST("/api/fix", s.fixHandler)
	r.POST("/api/convert", s.convertHandler)

	outputDir := viper.GetString("workflow.output_dir")
	if outputDir == "" {
		outputDir = "output"
	}
	os.MkdirAll(outputDir, 0755)
	r.Static("/files/output", outputDir)

	port := viper.GetString("web.port")
	if port == "" {
		port = "8080"
	}

	s.logger.Info("Web服务器启动", zap.String("port", port))
	return r.Run(":" + port)
}

func (s *Server) statusHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "video-shot-workflow",
		"status":  "ok",
		"time":    time.Now().Format("2006-01-02 15:04:05"),
	})
}

// wsHandler 把广播日志推送给WebSocket客户端
func (s *Server) wsHandler(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("WebSocket升级失败", zap.Error(err))
		return
	}
	defer ws.Close()

	client := s.service.RegisterClient(ws)
	defer s.service.UnregisterClient(client)
	for msg := range client.Send {
		if err := ws.WriteJSON(msg); err != nil {
			s.logger.Warn("WebSocket写入失败", zap.Error(err))
			return
		}
	}
}

type splitRequest struct {
	Text           string  `json:"text" binding:"required"`
	TargetDuration float64 `json:"target_duration"`
}

func (s *Server) splitHandler(c *gin.Context) {
	var req splitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求参数: " + err.Error()})
		return
	}

	config := splitter.DefaultSplitConfig()
	if req.TargetDuration > 0 {
		config.TargetDuration = req.TargetDuration
	}
	sp := splitter.NewSplitter(config, s.logger)
	segments := sp.SplitTextByDuration(req.Text)

	c.JSON(http.StatusOK, gin.H{
		"segment_count": len(segments),
		"segments":      segments,
		"validation":    sp.ValidateSegments(segments),
	})
}

type processRequest struct {
	Text           string  `json:"text" binding:"required"`
	ProjectName    string  `json:"project_name"`
	ReferenceAudio string  `json:"reference_audio"`
	TargetDuration float64 `json:"target_duration"`
}

// processHandler 异步处理解说词，进度通过WebSocket推送
func (s *Server) processHandler(c *gin.Context) {
	var req processRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求参数: " + err.Error()})
		return
	}

	// 请求上下文在响应返回后会被取消，后台任务使用独立上下文
	go func() {
		result, err := s.processor.ProcessNarration(context.Background(), workflow.NarrationParams{
			Text:           req.Text,
			ProjectName:    req.ProjectName,
			ReferenceAudio: req.ReferenceAudio,
			TargetDuration: req.TargetDuration,
		})
		if err != nil {
			s.service.SendMessage("workflow", "处理失败: "+err.Error(), broadcast.GetTimeStr())
			return
		}
		s.service.SendLog("workflow", "处理完成: "+result.ProjectFile, broadcast.GetTimeStr())
	}()

	c.JSON(http.StatusAccepted, gin.H{"status": "processing", "message": "已开始处理，进度请通过 /ws 查看"})
}

type fixRequest struct {
	ProjectDir string `json:"project_dir" binding:"required"`
	DryRun     bool   `json:"dry_run"`
}

func (s *Server) fixHandler(c *gin.Context) {
	var req fixRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求参数: " + err.Error()})
		return
	}

	fixer := shotid.NewFixer(req.ProjectDir, s.logger)
	analysis, err := fixer.AnalyzeProject()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "项目分析失败: " + err.Error()})
		return
	}

	response := gin.H{
		"project_dir": req.ProjectDir,
		"analysis":    analysis,
		"dry_run":     req.DryRun,
	}
	if !req.DryRun {
		fixed := fixer.FixProjectIDs()
		valid, validation := fixer.ValidateFix()
		response["fixed"] = fixed
		response["valid"] = valid
		response["validation"] = validation
		response["backup"] = filepath.Join(req.ProjectDir, "project.json.backup")
	}
	c.JSON(http.StatusOK, response)
}

type convertRequest struct {
	ProjectFile  string `json:"project_file" binding:"required"`
	ShotID       string `json:"shot_id" binding:"required"`
	TargetFormat string `json:"target_format" binding:"required"`
}

func (s *Server) convertHandler(c *gin.Context) {
	var req convertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求参数: " + err.Error()})
		return
	}

	doc, err := project.Load(req.ProjectFile)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "加载项目文件失败: " + err.Error()})
		return
	}

	manager := shotid.NewManager(s.logger)
	if err := manager.InitializeFromProject(doc); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "初始化镜头映射失败: " + err.Error()})
		return
	}

	converted, err := manager.ConvertID(req.ShotID, req.TargetFormat)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"source_id":     req.ShotID,
		"target_format": req.TargetFormat,
		"converted_id":  converted,
	})
}

func (s *Server) listRunsHandler(c *gin.Context) {
	limit := 20
	runs, err := s.processor.ListRecentRuns(limit)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs, "count": len(runs)})
}
