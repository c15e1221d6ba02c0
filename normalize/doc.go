// Copyright (c) CollectorFlow Authors.
// Licensed under the MIT License.

/*
Package normalize 提供对异构 provider 响应的规范化提取。

# 概述

各个答案引擎后端（scraper 数据集、SERP 接口、直连 LLM API）返回的 JSON
形状差异极大，且同一后端的不同版本之间也会变化。本包暴露一组纯函数，
从任意 JSON 值中提取纯文本答案、引用 URL 与模型标识：

  - ExtractAnswer    — 按固定优先级链提取答案文本
  - ExtractURLs      — 合并所有已知来源的 URL 并去重（保持首见顺序）
  - ExtractModel     — 提取模型标识
  - BlocksToMarkdown — SERP text_block 序列转 Markdown 风格纯文本
  - StripHTML        — 去除 HTML 标签

# 容错约定

所有函数对缺失键、类型错误、畸形片段均保持容错：不会 panic，
无法识别的形状返回零值。空答案在异步流程中表示"尚未就绪"，
在同步流程中表示"未知内容"——由调用方解释。
*/
package normalize
