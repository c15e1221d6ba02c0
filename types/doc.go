// Copyright (c) CollectorFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供 CollectorFlow 的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 collector、providers、
snapshot、state 等上层模块提供统一的类型契约。所有跨包共享的结构体、
枚举和错误码均定义于此，以避免循环依赖。

# 核心类型

  - Request           — 一次采集请求（查询文本、品牌、启用的 collector 列表）
  - ExecutionResult   — 单个 (request, collector) 的执行结果
  - Attempt           — 重试历史中的单次尝试记录
  - ExecutionStatus   — Execution 生命周期状态（pending/running/completed/failed）
  - ResultStatus      — CollectorResult 生命周期状态（processing/completed/failed/failed_retry）
  - Error / ErrorCode — 结构化错误体系，含 HTTP 状态码、Retryable、Provider 标记

# 错误工具链

  - NewError / WithCause / WithRetryable / WithProvider / WithContext
  - IsRetryable / GetErrorCode / IsErrorCode
*/
package types
