// Copyright (c) CollectorFlow Authors.
// Licensed under the MIT License.

/*
Package main 提供 CollectorFlow 命令行入口。

# 概述

cmd/collectorflow 是采集编排器的可执行入口，提供一次性批量采集、
数据库迁移和版本查询子命令。程序支持 YAML 配置文件加载、结构化日志
（zap）以及异步快照等待。

# 主要能力

  - 子命令：run（批量采集）、migrate（数据库迁移）、version、help
  - run 命令：解析 collector 列表，构建 App 门面并执行批次，
    结果以 JSON 输出到 stdout，存在失败时退出码为 1
  - --wait 选项：轮询状态库等待异步快照到达终态
  - migrate 子命令：up/down/status/version/goto/force/reset，
    支持 --config、--db-type、--db-url 覆盖连接来源
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
