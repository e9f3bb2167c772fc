package database

import (
	"path/filepath"
	"testing"
)

func newTestManager(t *testing.T) *GormManager {
	t.Helper()
	gm, err := NewGormManagerAt(filepath.Join(t.TempDir(), "test.sqlite"))
	if err != nil {
		t.Fatalf("创建测试数据库失败: %v", err)
	}
	t.Cleanup(func() { gm.Close() })
	return gm
}

func TestProcessRunLifecycle(t *testing.T) {
	gm := newTestManager(t)

	run := &ProcessRun{
		RunID:          "run-0001",
		ProjectDir:     "/tmp/project",
		NarrationChars: 500,
		SegmentCount:   6,
		SceneCount:     2,
	}
	if err := gm.CreateProcessRun(run); err != nil {
		t.Fatalf("创建运行记录失败: %v", err)
	}
	if run.Status != StatusProcessing {
		t.Errorf("新建运行状态应该是processing: %s", run.Status)
	}

	if err := gm.UpdateRunProgress(run.ID, true, false, true, true); err != nil {
		t.Fatalf("更新进度失败: %v", err)
	}
	if err := gm.FinishProcessRun(run.ID, StatusCompleted, ""); err != nil {
		t.Fatalf("结束运行失败: %v", err)
	}

	loaded, err := gm.GetProcessRunByRunID("run-0001")
	if err != nil {
		t.Fatalf("查询运行记录失败: %v", err)
	}
	if loaded == nil {
		t.Fatal("运行记录不存在")
	}
	if loaded.Status != StatusCompleted || !loaded.AudioGenerated || loaded.ImageGenerated {
		t.Errorf("运行记录状态错误: %+v", loaded)
	}
	if !loaded.IDsSynced || !loaded.SubtitleCreated {
		t.Errorf("阶段标志错误: %+v", loaded)
	}

	// 不存在的运行返回nil而不是错误
	missing, err := gm.GetProcessRunByRunID("不存在")
	if err != nil || missing != nil {
		t.Errorf("不存在的运行应该返回nil: %+v, %v", missing, err)
	}
}

func TestProcessSteps(t *testing.T) {
	gm := newTestManager(t)

	run := &ProcessRun{RunID: "run-0002"}
	if err := gm.CreateProcessRun(run); err != nil {
		t.Fatalf("创建运行记录失败: %v", err)
	}

	for _, name := range []string{"split", "tts", "sync"} {
		step := &ProcessStep{RunDBID: run.ID, StepName: name, Status: StatusCompleted}
		if err := gm.CreateProcessStep(step); err != nil {
			t.Fatalf("创建步骤失败: %v", err)
		}
	}

	loaded, err := gm.GetProcessRunByRunID("run-0002")
	if err != nil {
		t.Fatalf("查询失败: %v", err)
	}
	if len(loaded.Steps) != 3 {
		t.Errorf("期望3个步骤，实际 %d 个", len(loaded.Steps))
	}
}

func TestPublishRecords(t *testing.T) {
	gm := newTestManager(t)

	record := &PublishRecord{
		RunID:     "run-0003",
		Platform:  "wechat_channels",
		VideoPath: "/tmp/final.mp4",
		Title:     "测试视频",
		Status:    StatusPending,
	}
	if err := gm.CreatePublishRecord(record); err != nil {
		t.Fatalf("创建发布记录失败: %v", err)
	}
	if err := gm.UpdatePublishStatus(record.ID, StatusFailed, "上传超时"); err != nil {
		t.Fatalf("更新发布状态失败: %v", err)
	}

	var loaded PublishRecord
	if err := gm.DB.First(&loaded, record.ID).Error; err != nil {
		t.Fatalf("查询发布记录失败: %v", err)
	}
	if loaded.Status != StatusFailed || loaded.ErrorMsg != "上传超时" {
		t.Errorf("发布记录状态错误: %+v", loaded)
	}
}

func TestListRecentRuns(t *testing.T) {
	gm := newTestManager(t)

	for i := 0; i < 5; i++ {
		run := &ProcessRun{RunID: "run-list-" + string(rune('a'+i))}
		if err := gm.CreateProcessRun(run); err != nil {
			t.Fatalf("创建运行记录失败: %v", err)
		}
	}

	runs, err := gm.ListRecentRuns(3)
	if err != nil {
		t.Fatalf("列出运行记录失败: %v", err)
	}
	if len(runs) != 3 {
		t.Errorf("期望3条记录，实际 %d 条", len(runs))
	}
}
