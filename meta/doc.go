// Copyright (c) CollectorFlow Authors.
// Licensed under the MIT License.

// Package meta 提供品牌/查询元数据读取与 fire-and-forget 打分。
// 元数据缺失或打分失败只影响富化字段，永不阻塞采集主链路。
package meta
