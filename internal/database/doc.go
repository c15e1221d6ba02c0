// Copyright (c) CollectorFlow Authors.
// Licensed under the MIT License.

/*
包 database 提供状态库的连接管理，支持多驱动打开、健康检查与事务重试。

# 概述

Open 按配置选择 postgres/mysql/sqlite 方言打开 GORM 连接；
PoolManager 封装连接池参数与生命周期，后台定时探活并把
连接数上报到指标采集器。

# 核心类型

  - PoolManager：连接池管理器，持有 GORM DB 实例与底层 sql.DB，
    提供 DB()、Ping()、Stats()、Close() 等生命周期方法。
  - PoolConfig：连接池配置，包含最大空闲连接数、最大打开连接数、
    连接最大生命周期、空闲超时与健康检查间隔。
  - TransactionFunc：事务回调函数类型。

# 主要能力

  - 多驱动：postgres/mysql 生产使用，sqlite（纯 Go）用于开发与测试。
  - 健康检查：后台定时 PingContext 探活，连接数与空闲数进指标。
  - 事务管理：WithTransaction 提供单次事务执行，
    WithTransactionRetry 支持指数退避重试（死锁、序列化失败等场景）。
*/
package database
