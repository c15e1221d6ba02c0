// Copyright (c) CollectorFlow Authors.
// Licensed under the MIT License.

/*
包 metrics 提供基于 Prometheus 的全链路指标采集能力，覆盖
provider 调用、执行与回退、熔断器、快照轮询与数据库五大维度。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用 promauto
自动注册机制，避免手动管理 Registry。所有指标按 namespace 隔离，
支持多维度 label 分组，便于 Grafana 等工具进行可视化与告警。

# 核心类型

  - Collector：指标收集器，持有 Counter、Histogram、Gauge 等
    Prometheus 向量指标，按业务域分组管理。nil 接收者安全，
    未接入指标的调用方无需判空。

# 主要能力

  - Provider 指标：调用总数、调用耗时、重试次数，
    按 collector/provider/outcome 分组。
  - 执行指标：执行总数与耗时、回退计数，按 collector/status 分组。
  - 熔断器指标：状态转换计数与拒绝计数，按规范化 collector 键分组。
  - 快照指标：轮询周期计数（ready/not_ready/error）与在途快照数。
  - 数据库指标：活跃/空闲连接数 Gauge、查询耗时 Histogram，
    按 database/operation 分组。
*/
package metrics
