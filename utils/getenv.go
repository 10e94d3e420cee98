package utils

import "os"

// GetEnvDefault は環境変数を読み、未設定または空の場合にdefaultValueを返します。
func GetEnvDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
