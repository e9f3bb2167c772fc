package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	mcp "github.com/mark3labs/mcp-go/mcp"
	mcp_server "github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"video-shot-workflow/pkg/project"
	"video-shot-workflow/pkg/shotid"
	"video-shot-workflow/pkg/splitter"
	"video-shot-workflow/pkg/workflow"
)

// Handler processes MCP requests
type Handler struct {
	server    *mcp_server.MCPServer
	processor *workflow.Processor
	logger    *zap.Logger
	toolNames []string
}

// NewHandler creates a new handler
func NewHandler(server *mcp_server.MCPServer, processor *workflow.Processor, logger *zap.Logger) *Handler {
	h := &Handler{
		server:    server,
		processor: processor,
		logger:    logger,
		toolNames: make([]string, 0),
	}

	return h
}

// RegisterTools registers all tools with the MCP server
func (h *Handler) RegisterTools() {
	processNarrationTool := mcp.NewTool("process_narration",
		mcp.WithDescription("Process a narration text into voice segments, audio, subtitles and shot images"),
		mcp.WithString("text", mcp.Required(), mcp.Description("The narration text to process")),
		mcp.WithString("project_name", mcp.Description("Project name, used as output directory name")),
		mcp.WithString("reference_audio", mcp.Description("Reference audio file path for voice cloning")),
		mcp.WithNumber("target_duration", mcp.Description("Target duration per voice segment in seconds")),
	)
	h.server.AddTool(processNarrationTool, h.handleProcessNarration)
	h.toolNames = append(h.toolNames, "process_narration")

	splitTextTool := mcp.NewTool("split_text",
		mcp.WithDescription("Split text into duration-constrained segments for voice-over"),
		mcp.WithString("text", mcp.Required(), mcp.Description("The text to split")),
		mcp.WithNumber("target_duration", mcp.Description("Target duration per segment in seconds")),
	)
	h.server.AddTool(splitTextTool, h.handleSplitText)
	h.toolNames = append(h.toolNames, "split_text")

	createVoiceSegmentsTool := mcp.NewTool("create_voice_segments",
		mcp.WithDescription("Split text and build canonical voice segment entries with scene and shot IDs"),
		mcp.WithString("text", mcp.Required(), mcp.Description("The text to split")),
		mcp.WithNumber("target_duration", mcp.Description("Target duration per segment in seconds")),
	)
	h.server.AddTool(createVoiceSegmentsTool, h.handleCreateVoiceSegments)
	h.toolNames = append(h.toolNames, "create_voice_segments")

	convertShotIDTool := mcp.NewTool("convert_shot_id",
		mcp.WithDescription("Convert a shot identifier between global, unified and scene-local formats"),
		mcp.WithString("project_file", mcp.Required(), mcp.Description("Path to the project.json file")),
		mcp.WithString("shot_id", mcp.Required(), mcp.Description("The shot identifier to convert")),
		mcp.WithString("target_format", mcp.Required(), mcp.Description("Target format: unified, text_segment or shot_only")),
	)
	h.server.AddTool(convertShotIDTool, h.handleConvertShotID)
	h.toolNames = append(h.toolNames, "convert_shot_id")

	fixShotIDsTool := mcp.NewTool("fix_shot_ids",
		mcp.WithDescription("Analyze and repair inconsistent shot identifiers in a project directory"),
		mcp.WithString("project_dir", mcp.Required(), mcp.Description("Project directory containing project.json")),
		mcp.WithBoolean("dry_run", mcp.Description("Analyze without writing changes")),
	)
	h.server.AddTool(fixShotIDsTool, h.handleFixShotIDs)
	h.toolNames = append(h.toolNames, "fix_shot_ids")

	listRunsTool := mcp.NewTool("list_runs",
		mcp.WithDescription("List recent narration processing runs"),
		mcp.WithNumber("limit", mcp.Description("Maximum number of runs to return")),
	)
	h.server.AddTool(listRunsTool, h.handleListRuns)
	h.toolNames = append(h.toolNames, "list_runs")

	h.logger.Info("MCP tools registered",
		zap.Int("tool_count", len(h.toolNames)))
}

// handleProcessNarration handles full narration processing
func (h *Handler) handleProcessNarration(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := request.RequireString("text")
	if err != nil {
		h.logger.Error("Missing text parameter", zap.Error(err))
		return mcp.NewToolResultError("Missing required parameter: text"), nil
	}

	params := workflow.NarrationParams{
		Text:           text,
		ProjectName:    request.GetString("project_name", ""),
		ReferenceAudio: request.GetString("reference_audio", ""),
		TargetDuration: request.GetFloat("target_duration", 0),
	}

	result, err := h.processor.ProcessNarration(ctx, params)
	if err != nil {
		h.logger.Error("Failed to process narration", zap.Error(err))
		return mcp.NewToolResultError(fmt.Sprintf("Failed to process narration: %v", err)), nil
	}

	resultJSON, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		h.logger.Error("Failed to serialize result", zap.Error(err))
		return mcp.NewToolResultError(fmt.Sprintf("Failed to serialize result: %v", err)), nil
	}

	return mcp.NewToolResultText(string(resultJSON)), nil
}

// handleSplitText splits text into duration segments
func (h *Handler) handleSplitText(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := request.RequireString("text")
	if err != nil {
		h.logger.Error("Missing text parameter", zap.Error(err))
		return mcp.NewToolResultError("Missing required parameter: text"), nil
	}

	config := splitter.DefaultSplitConfig()
	if target := request.GetFloat("target_duration", 0); target > 0 {
		config.TargetDuration = target
	}

	s := splitter.NewSplitter(config, h.logger)
	segments := s.SplitTextByDuration(text)
	validation := s.ValidateSegments(segments)

	response := map[string]interface{}{
		"segment_count": len(segments),
		"segments":      segments,
		"validation":    validation,
	}

	responseJSON, err := json.MarshalIndent(response, "", "  ")
	if err != nil {
		h.logger.Error("Failed to serialize response", zap.Error(err))
		return mcp.NewToolResultError(fmt.Sprintf("Failed to serialize response: %v", err)), nil
	}

	return mcp.NewToolResultText(string(responseJSON)), nil
}

// handleCreateVoiceSegments builds canonical voice segment entries
func (h *Handler) handleCreateVoiceSegments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := request.RequireString("text")
	if err != nil {
		h.logger.Error("Missing text parameter", zap.Error(err))
		return mcp.NewToolResultError("Missing required parameter: text"), nil
	}

	targetDuration := request.GetFloat("target_duration", 0)
	segments := splitter.CreateVoiceSegments(text, targetDuration, h.logger)

	response := map[string]interface{}{
		"segment_count":  len(segments),
		"voice_segments": segments,
	}

	responseJSON, err := json.MarshalIndent(response, "", "  ")
	if err != nil {
		h.logger.Error("Failed to serialize response", zap.Error(err))
		return mcp.NewToolResultError(fmt.Sprintf("Failed to serialize response: %v", err)), nil
	}

	return mcp.NewToolResultText(string(responseJSON)), nil
}

// handleConvertShotID converts a shot identifier between formats
func (h *Handler) handleConvertShotID(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectFile, err := request.RequireString("project_file")
	if err != nil {
		return mcp.NewToolResultError("Missing required parameter: project_file"), nil
	}
	shotID, err := request.RequireString("shot_id")
	if err != nil {
		return mcp.NewToolResultError("Missing required parameter: shot_id"), nil
	}
	targetFormat, err := request.RequireString("target_format")
	if err != nil {
		return mcp.NewToolResultError("Missing required parameter: target_format"), nil
	}

	doc, err := project.Load(projectFile)
	if err != nil {
		h.logger.Error("Failed to load project file", zap.Error(err))
		return mcp.NewToolResultError(fmt.Sprintf("Failed to load project file: %v", err)), nil
	}

	manager := shotid.NewManager(h.logger)
	if err := manager.InitializeFromProject(doc); err != nil {
		h.logger.Error("Failed to initialize shot mappings", zap.Error(err))
		return mcp.NewToolResultError(fmt.Sprintf("Failed to initialize shot mappings: %v", err)), nil
	}

	converted, err := manager.ConvertID(shotID, targetFormat)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to convert shot ID: %v", err)), nil
	}

	response := map[string]interface{}{
		"source_id":     shotID,
		"target_format": targetFormat,
		"converted_id":  converted,
	}

	responseJSON, err := json.MarshalIndent(response, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to serialize response: %v", err)), nil
	}

	return mcp.NewToolResultText(string(responseJSON)), nil
}

// handleFixShotIDs analyzes and repairs a project's shot identifiers
func (h *Handler) handleFixShotIDs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectDir, err := request.RequireString("project_dir")
	if err != nil {
		return mcp.NewToolResultError("Missing required parameter: project_dir"), nil
	}
	dryRun := request.GetBool("dry_run", false)

	fixer := shotid.NewFixer(projectDir, h.logger)
	analysis, err := fixer.AnalyzeProject()
	if err != nil {
		h.logger.Error("Failed to analyze project", zap.Error(err))
		return mcp.NewToolResultError(fmt.Sprintf("Failed to analyze project: %v", err)), nil
	}

	response := map[string]interface{}{
		"project_dir": projectDir,
		"analysis":    analysis,
		"dry_run":     dryRun,
	}

	if !dryRun {
		fixed := fixer.FixProjectIDs()
		valid, validation := fixer.ValidateFix()
		response["fixed"] = fixed
		response["valid"] = valid
		response["validation"] = validation
		response["backup_hint"] = filepath.Join(projectDir, "project.json.backup")
	}

	responseJSON, err := json.MarshalIndent(response, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to serialize response: %v", err)), nil
	}

	return mcp.NewToolResultText(string(responseJSON)), nil
}

// handleListRuns lists recent processing runs
func (h *Handler) handleListRuns(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := int(request.GetFloat("limit", 20))

	runs, err := h.processor.ListRecentRuns(limit)
	if err != nil {
		h.logger.Error("Failed to list runs", zap.Error(err))
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list runs: %v", err)), nil
	}

	responseJSON, err := json.MarshalIndent(runs, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to serialize response: %v", err)), nil
	}

	return mcp.NewToolResultText(string(responseJSON)), nil
}

// GetToolNames gets all tool names
func (h *Handler) GetToolNames() []string {
	return h.toolNames
}
