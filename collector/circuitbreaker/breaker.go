package circuitbreaker

import (
	"sync"
	"time"

	"github.com/BaSui01/collectorflow/types"
	"go.uber.org/zap"
)

// State 熔断器状态
type State int

const (
	// StateClosed 关闭状态（正常工作）
	StateClosed State = iota
	// StateOpen 打开状态（熔断中）
	StateOpen
	// StateHalfOpen 半开状态（试探性恢复）
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "Closed"
	case StateOpen:
		return "Open"
	case StateHalfOpen:
		return "HalfOpen"
	default:
		return "Unknown"
	}
}

// Config 熔断器配置
type Config struct {
	// Threshold 连续失败次数阈值（触发熔断）
	Threshold int

	// ResetTimeout 熔断恢复等待时间（从 Open -> HalfOpen）
	ResetTimeout time.Duration

	// OnStateChange 状态变更回调（携带键，供指标上报）
	OnStateChange func(key string, from State, to State)
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Threshold:    5,
		ResetTimeout: 60 * time.Second,
	}
}

// Breaker 单个键的熔断器。
// 半开状态只放行一个探测请求：成功关闭，失败重新打开。
type Breaker struct {
	key    string
	config *Config
	logger *zap.Logger

	mu              sync.Mutex
	state           State
	failureCount    int
	lastFailureTime time.Time
	halfOpenProbing bool

	// 可注入的时钟，测试用
	now func() time.Time
}

// NewBreaker 创建熔断器
func NewBreaker(key string, config *Config, logger *zap.Logger) *Breaker {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Threshold <= 0 {
		config.Threshold = 5
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = 60 * time.Second
	}
	return &Breaker{
		key:    key,
		config: config,
		logger: logger,
		state:  StateClosed,
		now:    time.Now,
	}
}

// Allow 调用前检查。熔断中返回 CIRCUIT_OPEN 错误。
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil

	case StateOpen:
		if b.now().Sub(b.lastFailureTime) >= b.config.ResetTimeout {
			b.setState(StateHalfOpen)
			b.halfOpenProbing = true
			b.logger.Info("熔断器进入半开状态", zap.String("key", b.key))
			return nil
		}
		return types.NewError(types.ErrCircuitOpen, "circuit breaker is open").
			WithContext("key", b.key)

	case StateHalfOpen:
		// 半开状态只允许一个在途探测
		if b.halfOpenProbing {
			return types.NewError(types.ErrCircuitOpen, "half-open probe already in flight").
				WithContext("key", b.key)
		}
		b.halfOpenProbing = true
		return nil

	default:
		return types.NewError(types.ErrCircuitOpen, "unknown breaker state")
	}
}

// RecordSuccess 记录一次成功调用
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.failureCount = 0
	case StateHalfOpen:
		b.logger.Info("熔断器恢复正常", zap.String("key", b.key))
		b.setState(StateClosed)
		b.failureCount = 0
		b.halfOpenProbing = false
	}
}

// RecordFailure 记录一次失败调用
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount++
	b.lastFailureTime = b.now()

	switch b.state {
	case StateClosed:
		if b.failureCount >= b.config.Threshold {
			b.logger.Warn("熔断器打开",
				zap.String("key", b.key),
				zap.Int("failure_count", b.failureCount),
				zap.Int("threshold", b.config.Threshold),
			)
			b.setState(StateOpen)
		}
	case StateHalfOpen:
		b.logger.Warn("熔断器半开探测失败，重新打开", zap.String("key", b.key))
		b.setState(StateOpen)
		b.halfOpenProbing = false
	}
}

// State 返回当前状态
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// FailureCount 返回当前连续失败计数
func (b *Breaker) FailureCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failureCount
}

// Reset 重置熔断器（手动恢复）
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	old := b.state
	b.state = StateClosed
	b.failureCount = 0
	b.halfOpenProbing = false
	if b.config.OnStateChange != nil && old != StateClosed {
		go b.config.OnStateChange(b.key, old, StateClosed)
	}
}

func (b *Breaker) setState(newState State) {
	oldState := b.state
	b.state = newState
	if b.config.OnStateChange != nil {
		go b.config.OnStateChange(b.key, oldState, newState)
	}
}
