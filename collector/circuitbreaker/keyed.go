package circuitbreaker

import (
	"sync"

	"go.uber.org/zap"
)

// KeyedBreakers 按键管理一组熔断器。
// 键是请求的规范化 collector 集合字符串（types.CanonicalCollectorKey）。
// 外层锁只保护映射本身，每个键的状态由各自熔断器的锁保护，
// 避免单一全局锁成为热点。
type KeyedBreakers struct {
	config *Config
	logger *zap.Logger

	mu       sync.RWMutex
	breakers map[string]*Breaker
}

// NewKeyedBreakers 创建按键熔断器集合
func NewKeyedBreakers(config *Config, logger *zap.Logger) *KeyedBreakers {
	if config == nil {
		config = DefaultConfig()
	}
	return &KeyedBreakers{
		config:   config,
		logger:   logger,
		breakers: make(map[string]*Breaker),
	}
}

// Get 返回键对应的熔断器，首次访问时创建。
func (k *KeyedBreakers) Get(key string) *Breaker {
	k.mu.RLock()
	b, ok := k.breakers[key]
	k.mu.RUnlock()
	if ok {
		return b
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if b, ok := k.breakers[key]; ok {
		return b
	}
	b = NewBreaker(key, k.config, k.logger)
	k.breakers[key] = b
	return b
}

// States 返回所有键的当前状态快照（监控用）。
func (k *KeyedBreakers) States() map[string]State {
	k.mu.RLock()
	defer k.mu.RUnlock()

	out := make(map[string]State, len(k.breakers))
	for key, b := range k.breakers {
		out[key] = b.State()
	}
	return out
}
