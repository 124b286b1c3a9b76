package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrCircuitOpen 熔断器打开
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// State 熔断器状态
type State int

const (
	// StateClosed 关闭状态 (正常)
	StateClosed State = iota
	// StateOpen 打开状态 (熔断)
	StateOpen
	// StateHalfOpen 半开状态 (尝试恢复)
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config 熔断器配置
type Config struct {
	// 连续失败多少次后打开熔断器
	FailureThreshold int `yaml:"failure_threshold"`
	// 半开状态下连续成功多少次后关闭熔断器
	SuccessThreshold int `yaml:"success_threshold"`
	// 熔断器打开后多久进入半开状态
	Timeout time.Duration `yaml:"timeout"`
	// 半开状态最大并发探测请求数
	MaxHalfOpenRequests int `yaml:"max_half_open_requests"`
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		FailureThreshold:    5,
		SuccessThreshold:    2,
		Timeout:             30 * time.Second,
		MaxHalfOpenRequests: 1,
	}
}

// Option 熔断器选项
type Option func(*CircuitBreaker)

// WithStateChange 状态变化回调，在持有锁之外调用
func WithStateChange(fn func(name string, from, to State)) Option {
	return func(cb *CircuitBreaker) { cb.onStateChange = fn }
}

// WithClock 替换时钟，测试使用
func WithClock(now func() time.Time) Option {
	return func(cb *CircuitBreaker) { cb.now = now }
}

// CircuitBreaker 熔断器
type CircuitBreaker struct {
	name          string
	config        Config
	now           func() time.Time
	onStateChange func(name string, from, to State)

	mu               sync.Mutex
	state            State
	failures         int
	successes        int
	openedAt         time.Time
	halfOpenRequests int
}

// New 创建熔断器
func New(name string, config *Config, opts ...Option) *CircuitBreaker {
	cfg := DefaultConfig()
	if config != nil {
		cfg = config
	}
	cb := &CircuitBreaker{
		name:   name,
		config: *cfg,
		now:    time.Now,
		state:  StateClosed,
	}
	if cb.config.FailureThreshold <= 0 {
		cb.config.FailureThreshold = 1
	}
	if cb.config.SuccessThreshold <= 0 {
		cb.config.SuccessThreshold = 1
	}
	if cb.config.MaxHalfOpenRequests <= 0 {
		cb.config.MaxHalfOpenRequests = 1
	}
	for _, opt := range opts {
		opt(cb)
	}
	return cb
}

// Name 熔断器名称
func (cb *CircuitBreaker) Name() string { return cb.name }

// State 获取当前状态
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	state, changed := cb.advance()
	cb.mu.Unlock()
	cb.notify(changed)
	return state
}

type transition struct {
	from, to State
}

// advance 打开超时后转入半开，调用方持有锁
func (cb *CircuitBreaker) advance() (State, *transition) {
	if cb.state == StateOpen && cb.now().Sub(cb.openedAt) >= cb.config.Timeout {
		return cb.setState(StateHalfOpen)
	}
	return cb.state, nil
}

// setState 切换状态并重置计数，调用方持有锁
func (cb *CircuitBreaker) setState(to State) (State, *transition) {
	from := cb.state
	cb.state = to
	cb.failures = 0
	cb.successes = 0
	cb.halfOpenRequests = 0
	if to == StateOpen {
		cb.openedAt = cb.now()
	}
	if from == to {
		return to, nil
	}
	return to, &transition{from: from, to: to}
}

func (cb *CircuitBreaker) notify(t *transition) {
	if t != nil && cb.onStateChange != nil {
		cb.onStateChange(cb.name, t.from, t.to)
	}
}

// Allow 检查是否允许请求通过
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	state, changed := cb.advance()
	var err error
	switch state {
	case StateOpen:
		err = ErrCircuitOpen
	case StateHalfOpen:
		if cb.halfOpenRequests >= cb.config.MaxHalfOpenRequests {
			err = ErrCircuitOpen
		} else {
			cb.halfOpenRequests++
		}
	}
	cb.mu.Unlock()
	cb.notify(changed)
	return err
}

// Success 记录成功
func (cb *CircuitBreaker) Success() {
	cb.mu.Lock()
	var changed *transition
	switch cb.state {
	case StateClosed:
		cb.failures = 0
	case StateHalfOpen:
		cb.successes++
		if cb.halfOpenRequests > 0 {
			cb.halfOpenRequests--
		}
		if cb.successes >= cb.config.SuccessThreshold {
			_, changed = cb.setState(StateClosed)
		}
	}
	cb.mu.Unlock()
	cb.notify(changed)
}

// Failure 记录失败
func (cb *CircuitBreaker) Failure() {
	cb.mu.Lock()
	var changed *transition
	switch cb.state {
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.config.FailureThreshold {
			_, changed = cb.setState(StateOpen)
		}
	case StateHalfOpen:
		// 半开状态下失败，回到打开状态
		_, changed = cb.setState(StateOpen)
	}
	cb.mu.Unlock()
	cb.notify(changed)
}

// Execute 执行函数并自动记录结果
//
// 调用方取消 (context.Canceled) 不计为失败。
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := cb.Allow(); err != nil {
		return err
	}

	err := fn(ctx)
	switch {
	case err == nil:
		cb.Success()
	case errors.Is(err, context.Canceled):
		cb.release()
	default:
		cb.Failure()
	}
	return err
}

// release 归还半开探测名额，不影响计数
func (cb *CircuitBreaker) release() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateHalfOpen && cb.halfOpenRequests > 0 {
		cb.halfOpenRequests--
	}
}

// Reset 重置熔断器
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	_, changed := cb.setState(StateClosed)
	cb.mu.Unlock()
	cb.notify(changed)
}

// Stats 统计信息
type Stats struct {
	Name             string
	State            State
	Failures         int
	Successes        int
	HalfOpenRequests int
}

// Stats 获取统计信息
func (cb *CircuitBreaker) Stats() Stats {
	cb.mu.Lock()
	state, changed := cb.advance()
	stats := Stats{
		Name:             cb.name,
		State:            state,
		Failures:         cb.failures,
		Successes:        cb.successes,
		HalfOpenRequests: cb.halfOpenRequests,
	}
	cb.mu.Unlock()
	cb.notify(changed)
	return stats
}
