// Copyright (c) CollectorFlow Authors.
// Licensed under the MIT License.

/*
Package state 提供 Execution 与 CollectorResult 成对记录的持久化状态管理。

# 概述

每个 (request, collector) 对应一条 Execution 与至多一条 CollectorResult，
二者以 execution_id 为唯一冲突键。所有状态流转必须经由 Manager——
它校验目标状态、保证终态只进不出（幂等跳过）、维护 metadata 中的
状态流转记录，并强制执行以下不变式：

 1. Execution 为 completed 时配对的 CollectorResult 必须存在且
    raw_answer 非空，否则降级回 running（打印告警）。
 2. 每个 Execution 至多一条 CollectorResult（execution_id 唯一索引 + UPSERT）。
 3. raw_response_json（大负载）永不写入 metadata，独立成列，
    以第二次容错更新写入——该步失败不影响基本字段。

# 崩溃恢复

snapshot_id 在已知的第一时间通过 SetSnapshotID 落到 Execution 上，
先于主调用完成——进程在轮询期间崩溃后可据此重挂快照。

# 并发约定

单个 Execution 的状态流转由行级更新序列化；quick-poll 与
background-poll 并发完成同一快照时，UPSERT 保证结果唯一。
*/
package state
