// Copyright (c) CollectorFlow Authors.
// Licensed under the MIT License.

/*
Package collector 实现采集编排的核心：优先级回退执行器、
重试与熔断的韧性包装、批量编排器与 provider 健康监控。

# 执行模型

每个 collector（chatgpt、google_aio、perplexity 等）绑定一条
按 priority 升序的 provider 链。执行器逐个尝试：每个 provider
内部先走重试（指数退避 + 抖动），整条调用受按 collector 集合
分键的熔断器保护。成功（含异步快照提交）立即停止回退；
失败且 fallback_on_failure=true 时继续下一个 provider。

批量编排器把请求的 collector 集合切成固定大小的批次并发执行，
批次间有间隔；单个 collector 失败不影响其它 collector（all-settled）。

# 子包

  - retry：指数退避 + 随机抖动的重试器
  - circuitbreaker：closed/open/half-open 三态熔断器，按键隔离
*/
package collector
