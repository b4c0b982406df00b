package infra

const (
	// RedisNamespace Базовый префикс для изоляции данных проекта в Redis
	RedisNamespace = "spaceai"
)

// Каналы Pub/Sub (события)
const (
	// RedisChanEntitlementsReload: admin-сервис сообщает, что назначения изменились.
	// Формат сообщения: "<email>:true", "*:true" перезагружает всех.
	RedisChanEntitlementsReload = RedisNamespace + ":entitlements:reload"
)
