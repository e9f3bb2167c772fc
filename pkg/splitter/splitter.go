package splitter

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode"

	"go.uber.org/zap"
)

// 段落类型
const (
	SegmentTypeParagraph      = "paragraph"
	SegmentTypeSentenceGroup  = "sentence_group"
	SegmentTypeSentence       = "sentence"
	SegmentTypeMerged         = "merged"
	SegmentTypeCharacterSplit = "character_split"
)

// TextSegment 分割产出的文本段落
type TextSegment struct {
	Content           string  `json:"content"`
	EstimatedDuration float64 `json:"estimated_duration"`
	StartIndex        int     `json:"start_index"`
	EndIndex          int     `json:"end_index"`
	SegmentType       string  `json:"segment_type"`
	QualityScore      float64 `json:"quality_score"`
}

// SplitConfig 分割配置
type SplitConfig struct {
	TargetDuration        float64 `json:"target_duration"`          // 目标时长（秒）
	MinDuration           float64 `json:"min_duration"`             // 最小时长（秒）
	MaxDuration           float64 `json:"max_duration"`             // 最大时长（秒）
	Tolerance             float64 `json:"tolerance"`                // 容忍范围（秒）
	ChineseCharsPerSecond float64 `json:"chinese_chars_per_second"` // 中文每秒字数
	EnglishWordsPerSecond float64 `json:"english_words_per_second"` // 英文每秒词数
	PauseFactor           float64 `json:"pause_factor"`             // 停顿因子
}

// DefaultSplitConfig 默认分割配置
func DefaultSplitConfig() SplitConfig {
	return SplitConfig{
		TargetDuration:        10.0,
		MinDuration:           5.0,
		MaxDuration:           15.0,
		Tolerance:             2.0,
		ChineseCharsPerSecond: 4.0,
		EnglishWordsPerSecond: 2.5,
		PauseFactor:           1.2,
	}
}

// Splitter 智能文本分割器
// 根据目标时长分割文本，保持语义完整性和自然断句
type Splitter struct {
	config SplitConfig
	logger *zap.Logger
}

// NewSplitter 创建文本分割器，logger 为 nil 时不输出日志
func NewSplitter(config SplitConfig, logger *zap.Logger) *Splitter {
	if config == (SplitConfig{}) {
		config = DefaultSplitConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Splitter{config: config, logger: logger}
}

// Config 返回当前分割配置
func (s *Splitter) Config() SplitConfig {
	return s.config
}

// languageUnit 语言单元（句子级），携带时长估算和原文偏移
type languageUnit struct {
	content      string
	duration     float64
	startPos     int
	endPos       int
	paragraphIdx int
	sentenceIdx  int
}

var (
	lineEndingPattern = regexp.MustCompile(`\r\n|\r`)
	blankLinePattern  = regexp.MustCompile(`\n\s*\n`)
	hSpacePattern     = regexp.MustCompile(`[ \t]+`)
)

// SplitTextByDuration 根据目标时长智能分割文本
// 空文本返回 nil；内部任何意外一律降级为简单段落分割，不向外传播
func (s *Splitter) SplitTextByDuration(text string) (segments []TextSegment) {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("智能文本分割失败，降级为段落分割", zap.Any("reason", r))
			segments = s.fallbackSplit(text)
		}
	}()

	s.logger.Info("开始智能文本分割",
		zap.Int("原文长度", len([]rune(text))),
		zap.Float64("目标时长", s.config.TargetDuration),
	)

	processed := s.preprocessText(text)
	units := s.createLanguageUnits(processed)
	segments = s.intelligentGrouping(units)
	segments = s.optimizeSegments(segments)

	s.logger.Info("文本分割完成", zap.Int("段落数", len(segments)))
	s.logSegmentStats(segments)

	return segments
}

// preprocessText 标准化换行和空白
func (s *Splitter) preprocessText(text string) string {
	text = lineEndingPattern.ReplaceAllString(text, "\n")
	text = blankLinePattern.ReplaceAllString(text, "\n\n")
	text = hSpacePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// createLanguageUnits 按段落再按句子切分为语言单元
// 偏移采用游标顺序定位，重复句子不会错位
func (s *Splitter) createLanguageUnits(text string) []languageUnit {
	var units []languageUnit
	cursor := 0

	paragraphs := strings.Split(text, "\n\n")
	for paraIdx, paragraph := range paragraphs {
		if strings.TrimSpace(paragraph) == "" {
			continue
		}

		sentences := splitIntoSentences(paragraph)
		for sentIdx, sentence := range sentences {
			if sentence == "" {
				continue
			}

			startPos := cursor
			if idx := strings.Index(text[cursor:], sentence); idx >= 0 {
				startPos = cursor + idx
				cursor = startPos + len(sentence)
			}

			units = append(units, languageUnit{
				content:      sentence,
				duration:     s.estimateDuration(sentence),
				startPos:     startPos,
				endPos:       startPos + len(sentence),
				paragraphIdx: paraIdx,
				sentenceIdx:  sentIdx,
			})
		}
	}

	return units
}

// splitIntoSentences 按中文句末标点切分，标点保留在前句末尾
func splitIntoSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	for _, r := range text {
		current.WriteRune(r)
		switch r {
		case '。', '！', '？', '；':
			if sentence := strings.TrimSpace(current.String()); sentence != "" {
				sentences = append(sentences, sentence)
			}
			current.Reset()
		}
	}

	// 末尾可能没有结束符
	if sentence := strings.TrimSpace(current.String()); sentence != "" {
		sentences = append(sentences, sentence)
	}

	return sentences
}

// estimateDuration 估算文本的配音时长
// 中文按字符计、英文按词计，乘以停顿因子后夹到 [0.5, 30] 秒。
// 只是启发式估算，不等价于TTS实际时长
func (s *Splitter) estimateDuration(text string) float64 {
	if text == "" {
		return 0
	}

	chineseChars := 0
	for _, r := range text {
		if r >= 0x4e00 && r <= 0x9fff {
			chineseChars++
		}
	}

	englishWords := 0
	for _, word := range strings.Fields(text) {
		if isAlphabetic(word) {
			englishWords++
		}
	}

	var base float64
	if chineseChars > englishWords {
		base = float64(chineseChars) / s.config.ChineseCharsPerSecond
	} else {
		base = float64(englishWords) / s.config.EnglishWordsPerSecond
	}

	duration := base * s.config.PauseFactor
	return math.Max(0.5, math.Min(duration, 30.0))
}

func isAlphabetic(word string) bool {
	if word == "" {
		return false
	}
	for _, r := range word {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// intelligentGrouping 贪心地把语言单元累积成接近目标时长的段落
func (s *Splitter) intelligentGrouping(units []languageUnit) []TextSegment {
	if len(units) == 0 {
		return nil
	}

	var segments []TextSegment
	var currentGroup []languageUnit
	currentDuration := 0.0

	for _, unit := range units {
		if s.canAddToGroup(currentDuration, unit.duration) {
			currentGroup = append(currentGroup, unit)
			currentDuration += unit.duration
			continue
		}

		if len(currentGroup) > 0 {
			segments = append(segments, s.createSegmentFromGroup(currentGroup))
		}
		currentGroup = []languageUnit{unit}
		currentDuration = unit.duration
	}

	if len(currentGroup) > 0 {
		segments = append(segments, s.createSegmentFromGroup(currentGroup))
	}

	return segments
}

// canAddToGroup 判断单元能否加入当前组
func (s *Splitter) canAddToGroup(currentDuration, unitDuration float64) bool {
	if currentDuration == 0 {
		return true
	}

	total := currentDuration + unitDuration
	if total > s.config.MaxDuration {
		return false
	}

	// 当前时长已落在目标范围内时，不允许加入后超出上容忍界
	lower := s.config.TargetDuration - s.config.Tolerance
	upper := s.config.TargetDuration + s.config.Tolerance
	if currentDuration >= lower && currentDuration <= upper && total > upper {
		return false
	}

	return true
}

// createSegmentFromGroup 从语言单元组创建文本段落
func (s *Splitter) createSegmentFromGroup(group []languageUnit) TextSegment {
	contents := make([]string, 0, len(group))
	totalDuration := 0.0
	for _, unit := range group {
		contents = append(contents, unit.content)
		totalDuration += unit.duration
	}

	segmentType := SegmentTypeSentence
	if len(group) > 1 {
		if sameParagraph(group) {
			segmentType = SegmentTypeParagraph
		} else {
			segmentType = SegmentTypeSentenceGroup
		}
	}

	return TextSegment{
		Content:           strings.Join(contents, " "),
		EstimatedDuration: totalDuration,
		StartIndex:        group[0].startPos,
		EndIndex:          group[len(group)-1].endPos,
		SegmentType:       segmentType,
		QualityScore:      s.calculateQualityScore(group, totalDuration),
	}
}

func sameParagraph(group []languageUnit) bool {
	for _, unit := range group {
		if unit.paragraphIdx != group[0].paragraphIdx {
			return false
		}
	}
	return true
}

// calculateQualityScore 质量评分：0.6 时长贴近度 + 0.4 语义完整度
func (s *Splitter) calculateQualityScore(group []languageUnit, duration float64) float64 {
	durationDiff := math.Abs(duration - s.config.TargetDuration)
	durationScore := math.Max(0, 1-durationDiff/s.config.TargetDuration)

	semanticScore := 1.0
	if len(group) > 1 && !sameParagraph(group) {
		semanticScore = 0.7
	}

	return durationScore*0.6 + semanticScore*0.4
}

// optimizeSegments 修复过长/过短的段落
func (s *Splitter) optimizeSegments(segments []TextSegment) []TextSegment {
	if len(segments) == 0 {
		return segments
	}

	var optimized []TextSegment
	for _, segment := range segments {
		switch {
		case segment.EstimatedDuration > s.config.MaxDuration:
			optimized = append(optimized, s.splitLongSegment(segment)...)
		case segment.EstimatedDuration < s.config.MinDuration && len(optimized) > 0:
			// 合并到前一个已接受的段落，除非合并后超长
			last := optimized[len(optimized)-1]
			if last.EstimatedDuration+segment.EstimatedDuration <= s.config.MaxDuration {
				optimized[len(optimized)-1] = mergeSegments(last, segment)
			} else {
				optimized = append(optimized, segment)
			}
		default:
			optimized = append(optimized, segment)
		}
	}

	return optimized
}

// splitLongSegment 按句子重新切分过长段落，单句仍超长时退化为按字数硬切
func (s *Splitter) splitLongSegment(segment TextSegment) []TextSegment {
	sentences := splitIntoSentences(segment.Content)

	var subSegments []TextSegment
	currentContent := ""
	currentDuration := 0.0

	flush := func() {
		if currentContent == "" {
			return
		}
		subSegments = append(subSegments, TextSegment{
			Content:           currentContent,
			EstimatedDuration: currentDuration,
			StartIndex:        segment.StartIndex,
			EndIndex:          segment.EndIndex,
			SegmentType:       SegmentTypeSentenceGroup,
			QualityScore:      0.8,
		})
		currentContent = ""
		currentDuration = 0
	}

	for _, sentence := range sentences {
		sentenceDuration := s.estimateDuration(sentence)

		if sentenceDuration > s.config.MaxDuration {
			flush()
			subSegments = append(subSegments, s.splitByCharacters(sentence, segment)...)
			continue
		}

		if currentContent != "" && currentDuration+sentenceDuration <= s.config.MaxDuration {
			currentContent += " " + sentence
			currentDuration += sentenceDuration
		} else {
			flush()
			currentContent = sentence
			currentDuration = sentenceDuration
		}
	}
	flush()

	if len(subSegments) == 0 {
		return []TextSegment{segment}
	}
	return subSegments
}

// splitByCharacters 无句读可用时按固定字数硬切单句
func (s *Splitter) splitByCharacters(sentence string, parent TextSegment) []TextSegment {
	chunkSize := int(s.config.MaxDuration * s.config.ChineseCharsPerSecond / s.config.PauseFactor)
	if chunkSize < 1 {
		chunkSize = 1
	}

	runes := []rune(sentence)
	var chunks []TextSegment
	for start := 0; start < len(runes); start += chunkSize {
		end := start + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		content := string(runes[start:end])
		chunks = append(chunks, TextSegment{
			Content:           content,
			EstimatedDuration: s.estimateDuration(content),
			StartIndex:        parent.StartIndex,
			EndIndex:          parent.EndIndex,
			SegmentType:       SegmentTypeCharacterSplit,
			QualityScore:      0.6,
		})
	}
	return chunks
}

// mergeSegments 合并两个相邻段落
func mergeSegments(first, second TextSegment) TextSegment {
	return TextSegment{
		Content:           first.Content + " " + second.Content,
		EstimatedDuration: first.EstimatedDuration + second.EstimatedDuration,
		StartIndex:        first.StartIndex,
		EndIndex:          second.EndIndex,
		SegmentType:       SegmentTypeMerged,
		QualityScore:      math.Min(first.QualityScore, second.QualityScore),
	}
}

// fallbackSplit 降级分割：简单按段落切分，统一质量分0.5
func (s *Splitter) fallbackSplit(text string) []TextSegment {
	s.logger.Warn("使用降级分割方法")

	var segments []TextSegment
	for _, paragraph := range strings.Split(text, "\n\n") {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}
		segments = append(segments, TextSegment{
			Content:           paragraph,
			EstimatedDuration: s.estimateDuration(paragraph),
			StartIndex:        0,
			EndIndex:          len(paragraph),
			SegmentType:       SegmentTypeParagraph,
			QualityScore:      0.5,
		})
	}
	return segments
}

// GetOptimalSegmentCount 计算建议段落数量
func (s *Splitter) GetOptimalSegmentCount(text string) int {
	totalDuration := s.estimateDuration(text)
	count := int(math.Round(totalDuration / s.config.TargetDuration))
	if count < 1 {
		count = 1
	}

	s.logger.Info("估算建议段落数",
		zap.Float64("文本总时长", totalDuration),
		zap.Int("建议段落数", count),
	)
	return count
}

// SegmentStats 分割结果统计
type SegmentStats struct {
	TotalSegments int     `json:"total_segments"`
	AvgDuration   float64 `json:"avg_duration"`
	MinDuration   float64 `json:"min_duration"`
	MaxDuration   float64 `json:"max_duration"`
	AvgQuality    float64 `json:"avg_quality"`
}

// ValidationResult 分割结果校验
type ValidationResult struct {
	Valid  bool         `json:"valid"`
	Issues []string     `json:"issues"`
	Stats  SegmentStats `json:"stats"`
}

// ValidateSegments 校验分割结果的时长范围和内容完整性
func (s *Splitter) ValidateSegments(segments []TextSegment) *ValidationResult {
	if len(segments) == 0 {
		return &ValidationResult{Valid: false, Issues: []string{"没有生成任何段落"}}
	}

	var issues []string
	stats := SegmentStats{
		TotalSegments: len(segments),
		MinDuration:   segments[0].EstimatedDuration,
		MaxDuration:   segments[0].EstimatedDuration,
	}

	totalDuration := 0.0
	totalQuality := 0.0
	for i, segment := range segments {
		totalDuration += segment.EstimatedDuration
		totalQuality += segment.QualityScore
		stats.MinDuration = math.Min(stats.MinDuration, segment.EstimatedDuration)
		stats.MaxDuration = math.Max(stats.MaxDuration, segment.EstimatedDuration)

		if segment.EstimatedDuration < s.config.MinDuration {
			issues = append(issues, fmt.Sprintf("段落%d时长过短: %.1f秒", i+1, segment.EstimatedDuration))
		} else if segment.EstimatedDuration > s.config.MaxDuration {
			issues = append(issues, fmt.Sprintf("段落%d时长过长: %.1f秒", i+1, segment.EstimatedDuration))
		}
		if strings.TrimSpace(segment.Content) == "" {
			issues = append(issues, fmt.Sprintf("段落%d内容为空", i+1))
		}
	}

	stats.AvgDuration = totalDuration / float64(len(segments))
	stats.AvgQuality = totalQuality / float64(len(segments))

	return &ValidationResult{Valid: len(issues) == 0, Issues: issues, Stats: stats}
}

// logSegmentStats 记录分割统计信息
func (s *Splitter) logSegmentStats(segments []TextSegment) {
	if len(segments) == 0 {
		return
	}

	total := 0.0
	underTarget, inTarget, overTarget := 0, 0, 0
	lower := s.config.TargetDuration - s.config.Tolerance
	upper := s.config.TargetDuration + s.config.Tolerance

	for _, segment := range segments {
		total += segment.EstimatedDuration
		switch {
		case segment.EstimatedDuration < lower:
			underTarget++
		case segment.EstimatedDuration > upper:
			overTarget++
		default:
			inTarget++
		}
	}

	s.logger.Info("分割统计",
		zap.Int("总段落数", len(segments)),
		zap.Float64("平均时长", total/float64(len(segments))),
		zap.Int("低于目标", underTarget),
		zap.Int("符合目标", inTarget),
		zap.Int("超过目标", overTarget),
	)
}
