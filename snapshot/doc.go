// Copyright (c) CollectorFlow Authors.
// Licensed under the MIT License.

/*
Package snapshot 管理异步 Bright Data 快照的在途登记与后台轮询。

# 生命周期

适配器提交数据集触发后拿到 snapshot id；快速轮询未命中时，
执行器把快照登记到 Registry 并交由 Poller 后台轮询。
Poller 按登记条目自带的节奏轮询（默认 10s 一次、最长 10 分钟；
AIO 批量为 30s 一次、最长 15 分钟），就绪后执行最终化协议：

 1. 按 snapshot id（或 execution_id UPSERT）定位结果记录；
 2. 写入规范化后的 raw_answer、citations、urls 与 collection_time_ms；
 3. 结果与 Execution 双双转入 completed；
 4. 原始负载以第二次容错更新写入 raw_response_json；
 5. 未被抑制时触发 fire-and-forget 打分。

超过最长等待仍未就绪的快照以 reason=timeout 转入 failed。

# 崩溃恢复

Registry 可选 Redis 落地；进程重启后 Resume 重挂所有在途快照。
*/
package snapshot
