// Copyright (c) CollectorFlow Authors.
// Licensed under the MIT License.

// Package config 提供 CollectorFlow 的配置管理功能。
//
// 包含配置加载与热更新。支持从 YAML 文件和环境变量加载，
// 优先级为 默认值 → 文件 → 环境变量；文件变更时校验通过的
// 新配置被原子替换，校验失败的被拒绝。
package config
