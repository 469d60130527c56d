package service

import (
	"sync"
	"time"
)

type scheduledTask struct {
	timer *time.Timer
	gen   uint64
}

// Scheduler 可取消的延迟回调，同一个 key 只保留最后一次调度
// 回调在独立的 goroutine 中执行，已取消或被替换的回调不会执行
type Scheduler struct {
	mu      sync.Mutex
	tasks   map[string]scheduledTask
	gen     uint64
	stopped bool
}

func NewScheduler() *Scheduler {
	return &Scheduler{tasks: make(map[string]scheduledTask)}
}

// Schedule 在 d 之后执行 fn，替换同 key 的未执行任务
func (s *Scheduler) Schedule(key string, d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	if old, ok := s.tasks[key]; ok {
		old.timer.Stop()
	}

	s.gen++
	gen := s.gen
	timer := time.AfterFunc(d, func() {
		s.mu.Lock()
		cur, ok := s.tasks[key]
		if !ok || cur.gen != gen {
			s.mu.Unlock()
			return
		}
		delete(s.tasks, key)
		s.mu.Unlock()

		fn()
	})
	s.tasks[key] = scheduledTask{timer: timer, gen: gen}
}

// Cancel 取消任务，返回是否存在未执行的任务
func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[key]
	if !ok {
		return false
	}
	task.timer.Stop()
	delete(s.tasks, key)
	return true
}

// Pending 是否有未执行的任务
func (s *Scheduler) Pending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[key]
	return ok
}

// Stop 取消所有任务，之后的调度全部忽略
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, task := range s.tasks {
		task.timer.Stop()
		delete(s.tasks, key)
	}
	s.stopped = true
}
