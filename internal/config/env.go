package config

import (
	"os"
)

// FromEnv overlays MSW_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("MSW_BROKER_URL"); v != "" {
		cfg.BrokerURL = v
	}
	if v := os.Getenv("MSW_BROKER_KIND"); v != "" {
		cfg.BrokerKind = v
	}
	if v := os.Getenv("MSW_JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
	if v := os.Getenv("MSW_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("MSW_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("MSW_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("MSW_GATEWAY_ADDR"); v != "" {
		cfg.Gateway.Addr = v
	}
	if v := os.Getenv("MSW_NOTIFY_ADDR"); v != "" {
		cfg.Notify.Addr = v
	}
	if v := os.Getenv("MSW_FEED_ADDR"); v != "" {
		cfg.Feed.Addr = v
	}
	if v := os.Getenv("MSW_POSTS_ADDR"); v != "" {
		cfg.Posts.Addr = v
	}

	// Backend target overrides, matching the compose service names.
	overlayRoute(cfg.Gateway.Routes, "/api/users", "MSW_USER_SERVICE_URL")
	overlayRoute(cfg.Gateway.Routes, "/api/posts", "MSW_POST_SERVICE_URL")
	overlayRoute(cfg.Gateway.Routes, "/api/comments", "MSW_COMMENT_SERVICE_URL")
	overlayRoute(cfg.Gateway.Routes, "/api/feed", "MSW_FEED_SERVICE_URL")
	overlayRoute(cfg.Gateway.Routes, "/api/notifications", "MSW_NOTIFICATION_SERVICE_URL")
	if v := os.Getenv("MSW_USER_SERVICE_URL"); v != "" {
		cfg.Gateway.PublicRoutes["/api/users/login"] = v
		cfg.Gateway.PublicRoutes["/api/users/register"] = v
	}
	overlayRoute(cfg.Gateway.SocketRoute, "/ws", "MSW_NOTIFICATION_SERVICE_URL")
}

func overlayRoute(routes map[string]string, prefix, envKey string) {
	if routes == nil {
		return
	}
	if v := os.Getenv(envKey); v != "" {
		if _, ok := routes[prefix]; ok {
			routes[prefix] = v
		}
	}
}
