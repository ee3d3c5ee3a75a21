package database

// created_at columns hold UTC unix microseconds in both dialects.

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		username VARCHAR(30) NOT NULL UNIQUE,
		email VARCHAR(254) NOT NULL UNIQUE,
		is_active TINYINT(1) NOT NULL DEFAULT 1,
		created_at BIGINT NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,

	`CREATE TABLE IF NOT EXISTS agents (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(100) NOT NULL,
		field VARCHAR(50) NOT NULL DEFAULT '',
		avatar_url VARCHAR(500) NOT NULL DEFAULT '',
		avatar_image VARCHAR(500) NOT NULL DEFAULT '',
		created_at BIGINT NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,

	`CREATE TABLE IF NOT EXISTS chat_messages (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		sender_kind VARCHAR(8) NOT NULL,
		sender_id BIGINT NOT NULL,
		receiver_kind VARCHAR(8) NOT NULL,
		receiver_id BIGINT NOT NULL,
		type VARCHAR(16) NOT NULL,
		data LONGTEXT NOT NULL,
		is_read TINYINT(1) NOT NULL DEFAULT 0,
		created_at BIGINT NOT NULL,
		INDEX idx_chat_created (created_at),
		INDEX idx_chat_sender (sender_kind, sender_id),
		INDEX idx_chat_receiver (receiver_kind, receiver_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL UNIQUE,
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at INTEGER NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS agents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		field TEXT NOT NULL DEFAULT '',
		avatar_url TEXT NOT NULL DEFAULT '',
		avatar_image TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS chat_messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sender_kind TEXT NOT NULL,
		sender_id INTEGER NOT NULL,
		receiver_kind TEXT NOT NULL,
		receiver_id INTEGER NOT NULL,
		type TEXT NOT NULL,
		data TEXT NOT NULL,
		is_read INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chat_created ON chat_messages(created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_chat_sender ON chat_messages(sender_kind, sender_id)`,
	`CREATE INDEX IF NOT EXISTS idx_chat_receiver ON chat_messages(receiver_kind, receiver_id)`,
}
