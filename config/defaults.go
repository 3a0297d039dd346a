package config

var defaults = map[string]any{
	"port":      "3001",
	"log_level": "info",
	"log_json":  false,

	"web_origin":   "http://localhost:5173",
	"cors_origins": []string{},
	"catalog_file": "",

	"database.driver":          "postgres",
	"database.host":            "127.0.0.1",
	"database.port":            "5432",
	"database.user":            "postgres",
	"database.password":        "postgres",
	"database.name":            "equipment",
	"database.sslmode":         "disable",
	"database.path":            "./data/equipment.db",
	"database.connect_retries": 5,

	"redis.addr":       "",
	"redis.password":   "",
	"redis.db":         0,
	"redis.status_ttl": "5m",

	"kafka.brokers": []string{},
	"kafka.topic":   "equipment.usage",

	"usage.default_history_limit": 10,
	"usage.max_history_limit":     100,
}

func Defaults() map[string]any {
	values := make(map[string]any)
	for k, v := range defaults {
		values[k] = v
	}
	return values
}
