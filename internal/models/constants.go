package models

import "time"

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusExpired   = "expired"
)

const (
	// DefaultHoldDuration окно оплаты для pending-брони
	DefaultHoldDuration = 15 * time.Minute

	// DefaultSweeperInterval интервал обхода просроченных броней
	DefaultSweeperInterval = 30 * time.Second

	// DefaultSweeperBatch максимум броней за один цикл свипера
	DefaultSweeperBatch = 100

	// DefaultRedisTTL время жизни состояния сессии в Redis
	DefaultRedisTTL = 24 * 60 * 60 // 24 часа в секундах

	// DefaultStoreRetries число повторов при недоступности хранилища
	DefaultStoreRetries = 3

	// MaxAdvanceDays как далеко вперёд можно бронировать
	MaxAdvanceDays = 365

	// WorkerQueueSize размер очереди воркера
	WorkerQueueSize = 1000

	// RateLimitRequests количество запросов в окне
	RateLimitRequests = 20

	// RateLimitWindow окно ограничения частоты запросов
	RateLimitWindow = 60 // 1 минута в секундах
)
