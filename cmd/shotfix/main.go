package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"video-shot-workflow/pkg/project"
	"video-shot-workflow/pkg/shotid"
)

func main() {
	_ = godotenv.Load() // best-effort: load .env if present

	root := &cobra.Command{
		Use:          "shotfix",
		Short:        "检查和修复项目文件中的镜头ID",
		SilenceUsage: true,
	}
	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)
	root.SilenceErrors = true

	root.PersistentFlags().String("config", "config.yaml", "配置文件路径")
	root.AddCommand(analyzeCmd(), fixCmd(), convertCmd(), statsCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger() *zap.Logger {
	logger, err := zap.NewProduction()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func loadConfig(cmd *cobra.Command) {
	configPath, _ := cmd.Flags().GetString("config")
	viper.SetConfigFile(configPath)
	_ = viper.ReadInConfig()
}

func analyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <project_dir>",
		Short: "分析项目中的ID格式问题，不做任何修改",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loadConfig(cmd)
			logger := newLogger()
			defer logger.Sync()

			fixer := shotid.NewFixer(args[0], logger)
			analysis, err := fixer.AnalyzeProject()
			if err != nil {
				return fmt.Errorf("分析项目失败: %w", err)
			}

			data, err := json.MarshalIndent(analysis, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))

			problemCount := len(analysis.IDFormatIssues) + len(analysis.MissingInImages) + len(analysis.MissingInVoice)
			if problemCount > 0 {
				fmt.Printf("\n⚠️  发现 %d 个问题，运行 shotfix fix %s 进行修复\n",
					problemCount, args[0])
			} else {
				fmt.Println("\n✅ 项目ID格式正常")
			}
			return nil
		},
	}
}

func fixCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fix <project_dir>",
		Short: "修复项目中的镜头ID格式，修复前自动备份",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loadConfig(cmd)
			logger := newLogger()
			defer logger.Sync()

			skipBackup, _ := cmd.Flags().GetBool("no-backup")

			fixer := shotid.NewFixer(args[0], logger)
			if !skipBackup {
				if !fixer.CreateBackup() {
					return fmt.Errorf("创建备份失败，中止修复")
				}
				fmt.Printf("已创建备份: %s\n", filepath.Join(args[0], "project.json.backup"))
			}

			if !fixer.FixProjectIDs() {
				return fmt.Errorf("修复项目ID失败")
			}

			valid, validation := fixer.ValidateFix()
			data, _ := json.MarshalIndent(validation, "", "  ")
			fmt.Println(string(data))

			if !valid {
				return fmt.Errorf("修复后校验未通过")
			}
			fmt.Println("✅ 修复完成并通过校验")
			return nil
		},
	}
	cmd.Flags().Bool("no-backup", false, "跳过修复前备份")
	return cmd
}

func convertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "convert <project_file> <shot_id> <target_format>",
		Short: "在unified、text_segment、shot_only三种格式间转换镜头ID",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			loadConfig(cmd)
			logger := newLogger()
			defer logger.Sync()

			doc, err := project.Load(args[0])
			if err != nil {
				return fmt.Errorf("加载项目文件失败: %w", err)
			}

			manager := shotid.NewManager(logger)
			if err := manager.InitializeFromProject(doc); err != nil {
				return fmt.Errorf("初始化镜头映射失败: %w", err)
			}

			converted, err := manager.ConvertID(args[1], args[2])
			if err != nil {
				return err
			}
			fmt.Printf("%s -> %s\n", args[1], converted)
			return nil
		},
	}
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <project_file>",
		Short: "显示项目的镜头与场景统计",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loadConfig(cmd)
			logger := newLogger()
			defer logger.Sync()

			doc, err := project.Load(args[0])
			if err != nil {
				return fmt.Errorf("加载项目文件失败: %w", err)
			}

			manager := shotid.NewManager(logger)
			if err := manager.InitializeFromProject(doc); err != nil {
				return fmt.Errorf("初始化镜头映射失败: %w", err)
			}

			stats := manager.GetStatistics()
			data, err := json.MarshalIndent(stats, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))

			if ok, problems := manager.ValidateConsistency(); !ok {
				fmt.Printf("\n⚠️  发现 %d 个一致性问题:\n", len(problems))
				for _, p := range problems {
					fmt.Println("  - " + p)
				}
			}
			return nil
		},
	}
}
