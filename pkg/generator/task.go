package generator

import (
	"sync"
	"time"
)

// TaskState はタスクの状態です。Done と Failed は終端状態です。
type TaskState string

const (
	StatePending TaskState = "pending"
	StateRunning TaskState = "running"
	StateDone    TaskState = "done"
	StateFailed  TaskState = "failed"
)

// IsTerminal は終端状態かどうかを返します。
func (s TaskState) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}

// Task は1件の生成タスクです。ポーリングを担当するゴルーチンだけが更新します。
type Task struct {
	Index       int
	ID          string
	SubmittedAt time.Time
	State       TaskState
	Images      []string
	Err         error
}

func (t *Task) fail(err error) {
	t.State = StateFailed
	t.Err = err
}

// BatchJob は Generate 1回分のタスク群を保持します。
type BatchJob struct {
	ID                string
	RequestedCount    int
	MaxConcurrent     int
	MinSubmitInterval time.Duration
	Tasks             []*Task
	// Cancelled はコンテキストの終了によって途中で打ち切られたことを表します。
	Cancelled bool

	mu     sync.Mutex
	images []string
}

// collect は完了したタスクの画像を完了順に追加します。
func (j *BatchJob) collect(images []string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.images = append(j.images, images...)
}

// Images は成功したタスクの画像を完了順に連結して返します。
func (j *BatchJob) Images() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]string, len(j.images))
	copy(out, j.images)
	return out
}

// SuccessCount は Done になったタスク数です。
func (j *BatchJob) SuccessCount() int {
	n := 0
	for _, t := range j.Tasks {
		if t.State == StateDone {
			n++
		}
	}
	return n
}

func (j *BatchJob) taskErrors() []error {
	var errs []error
	for _, t := range j.Tasks {
		if t.Err != nil {
			errs = append(errs, t.Err)
		}
	}
	return errs
}
