// Copyright (c) CollectorFlow Authors.
// Licensed under the MIT License.

/*
Package providers 定义 provider 适配器契约与各后端的配置结构。

# 概述

每个适配器把规范化的 AnswerRequest 翻译为某个具体后端的 HTTP 调用，
并把响应规范化为 AnswerResponse。适配器不读写持久化状态，状态流转
完全由 collector / state 包负责。

# 适配器契约

  - 同步成功：返回带非空 Answer 的 AnswerResponse
  - 异步提交：返回空 Answer + Metadata[snapshot_id] + Metadata[async]=true，
    后台轮询由 snapshot 包接管
  - 失败：返回 types.Error（错误码见 types 包）

凭证缺失必须返回 CONFIGURATION_MISSING，生产请求绝不回退到合成数据。
确定性 mock 仅在显式配置开关下可用（见 providers/mock）。

# 子包

  - brightdata — 基于 Bright Data 数据集/SERP 接口的 scraper 适配器
  - openrouter — 直连 LLM chat-completion 适配器
  - mock       — 显式开关门控的确定性 mock
*/
package providers
