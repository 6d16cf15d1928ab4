package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// RateLimit 返回一个 Gin 中间件，基于客户端 IP 做固定窗口限流。
// 计数器存储在 Redis 中，多个实例共享同一份配额。
// redisClient: Redis 客户端实例，必须提供。
// keyPrefix: 限流键前缀，与其他状态键隔离。
// maxRequests: 时间窗口内允许的最大请求数。
// window: 限流时间窗口。
func RateLimit(redisClient *redis.Client, keyPrefix string, maxRequests int, window time.Duration) gin.HandlerFunc {
	// 启动时检查依赖
	if redisClient == nil {
		panic("Redis client cannot be nil for RateLimit middleware")
	}
	if maxRequests <= 0 {
		panic("maxRequests must be positive for RateLimit middleware")
	}
	if window <= 0 {
		panic("window duration must be positive for RateLimit middleware")
	}

	return func(c *gin.Context) {
		// 如果服务在反向代理后面，ClientIP 会读取 X-Forwarded-For
		key := keyPrefix + "ratelimit:" + c.ClientIP()

		// INCR 和 EXPIRE 放在同一个 Pipeline 里，减少竞争窗口。
		// 更严格的原子性需要 Lua 脚本，Pipeline 是够用的折中。
		pipe := redisClient.Pipeline()
		incrCmd := pipe.Incr(c.Request.Context(), key)
		pipe.Expire(c.Request.Context(), key, window)
		if _, err := pipe.Exec(c.Request.Context()); err != nil {
			// Redis 故障时放行：限流是保护措施，不是功能前提
			logrus.WithError(err).Error("RateLimit: Redis Pipeline failed, allowing request")
			c.Next()
			return
		}

		count, err := incrCmd.Result()
		if err != nil {
			logrus.WithError(err).Error("RateLimit: Failed to get INCR result after successful Exec")
			c.Next()
			return
		}

		if count > int64(maxRequests) {
			c.JSON(http.StatusTooManyRequests, gin.H{"success": false, "error": "Too many requests"})
			c.Abort()
			return
		}

		c.Next()
	}
}
