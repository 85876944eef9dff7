package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/IBM/sarama/mocks"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestKafkaNotifier_UploadCompleted(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var ev UploadCompleted
		if err := json.Unmarshal(val, &ev); err != nil {
			return err
		}
		if ev.TaskID != "task-1" {
			return fmt.Errorf("task_id = %q, want task-1", ev.TaskID)
		}
		if ev.Key != "vids/lecture.mp4" {
			return fmt.Errorf("key = %q, want vids/lecture.mp4", ev.Key)
		}
		return nil
	})

	n := NewKafkaNotifierWithProducer(producer, "uploads", testLogger())
	err := n.UploadCompleted(context.Background(), UploadCompleted{
		TaskID:      "task-1",
		FileName:    "lecture.mp4",
		FileSize:    2048,
		Bucket:      "sunhacks25",
		Key:         "vids/lecture.mp4",
		CompletedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("UploadCompleted() error = %v", err)
	}
	if err := n.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}

func TestKafkaNotifier_SendFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	sendErr := errors.New("broker down")
	producer.ExpectSendMessageAndFail(sendErr)

	n := NewKafkaNotifierWithProducer(producer, "uploads", testLogger())
	err := n.UploadCompleted(context.Background(), UploadCompleted{TaskID: "task-1"})
	if !errors.Is(err, sendErr) {
		t.Fatalf("err = %v, want %v", err, sendErr)
	}
	n.Close()
}

func TestLogNotifier_NeverFails(t *testing.T) {
	n := NewLogNotifier(testLogger())
	if err := n.UploadCompleted(context.Background(), UploadCompleted{TaskID: "t", Demo: true}); err != nil {
		t.Fatalf("UploadCompleted() error = %v", err)
	}
}
