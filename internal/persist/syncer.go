package persist

import (
	"log/slog"
	"sync"
	"time"
)

// Syncer 落后沿去抖的写盘调度器
// 连续的 Schedule 调用会合并为时间窗口结束后的一次写盘
// 关闭前保证最后一次计划中的写盘一定执行
type Syncer struct {
	window time.Duration
	write  func() error

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	pending bool
	closed  bool
	// inflight 统计尚未结束的计时器回调
	inflight sync.WaitGroup
}

// NewSyncer 创建写盘调度器
// write 回调负责收集最新状态并写出，在计时器协程里执行
func NewSyncer(window time.Duration, write func() error) *Syncer {
	return &Syncer{window: window, write: write}
}

// Schedule 计划一次写盘
// 时间窗口内的重复调用只会推迟执行，不会叠加多次写盘
func (s *Syncer) Schedule() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.pending = true
	s.gen++
	g := s.gen
	// 旧计时器作废；Stop 成功说明其回调不会再执行
	if s.timer != nil && s.timer.Stop() {
		s.inflight.Done()
	}
	s.inflight.Add(1)
	s.timer = time.AfterFunc(s.window, func() {
		defer s.inflight.Done()
		s.fire(g)
	})
}

// fire 计时器到期后执行写盘
// 期间若有更新的计划或冲刷发生，本次到期作废
func (s *Syncer) fire(g uint64) {
	s.mu.Lock()
	if g != s.gen || !s.pending {
		s.mu.Unlock()
		return
	}
	s.pending = false
	s.mu.Unlock()

	if err := s.write(); err != nil {
		slog.Error("延迟写盘失败", "error", err)
	}
}

// FlushNow 立即执行计划中的写盘
// 没有待写内容时等待进行中的写盘结束后返回
func (s *Syncer) FlushNow() error {
	s.mu.Lock()
	if !s.pending {
		s.mu.Unlock()
		s.inflight.Wait()
		return nil
	}
	s.pending = false
	s.gen++
	if s.timer != nil && s.timer.Stop() {
		s.inflight.Done()
	}
	s.timer = nil
	s.mu.Unlock()
	return s.write()
}

// Discard 丢弃计划中的写盘并等待进行中的写盘结束
// 最终内容即将由调用方直接写出时使用，避免迟到的过期写盘
func (s *Syncer) Discard() {
	s.mu.Lock()
	s.pending = false
	s.gen++
	if s.timer != nil && s.timer.Stop() {
		s.inflight.Done()
	}
	s.timer = nil
	s.mu.Unlock()
	s.inflight.Wait()
}

// Close 停止调度并冲刷最后一次写盘
// 关闭后的 Schedule 调用不再生效
func (s *Syncer) Close() error {
	err := s.FlushNow()
	s.mu.Lock()
	s.closed = true
	if s.timer != nil && s.timer.Stop() {
		s.inflight.Done()
	}
	s.timer = nil
	s.mu.Unlock()
	s.inflight.Wait()
	return err
}
