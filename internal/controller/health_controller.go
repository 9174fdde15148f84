package controller

import (
	"context"
	"net/http"
	"prepx_backend/internal/util"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

type HealthController struct {
	DB    *gorm.DB
	Redis *redis.Client
}

func NewHealthController(db *gorm.DB, rdb *redis.Client) *HealthController {
	return &HealthController{DB: db, Redis: rdb}
}

// @Summary 健康检查
// @Description 检查数据库与 Redis (若启用) 状态
// @Tags 系统
// @Produce json
// @Success 200 {object} util.Response
// @Failure 503 {object} util.Response
// @Router /api/health [get]
func (c *HealthController) HealthCheck(ctx *gin.Context) {
	sqlDB, err := c.DB.DB()
	if err != nil {
		util.InternalServerError(ctx)
		return
	}

	var redisStatus string
	g, gctx := errgroup.WithContext(ctx.Request.Context())
	g.Go(func() error {
		pingCtx, cancel := context.WithTimeout(gctx, 3*time.Second)
		defer cancel()
		return sqlDB.PingContext(pingCtx)
	})
	if c.Redis != nil {
		// Redis 仅影响用量计数, 不可用时计数会放行
		g.Go(func() error {
			pingCtx, cancel := context.WithTimeout(gctx, 3*time.Second)
			defer cancel()
			redisStatus = "up"
			if err := c.Redis.Ping(pingCtx).Err(); err != nil {
				redisStatus = "down"
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		util.KindError(ctx, http.StatusServiceUnavailable, "database", "Database unavailable", nil)
		return
	}

	components := gin.H{"database": "up"}
	if redisStatus != "" {
		components["redis"] = redisStatus
	}
	util.Success(ctx, gin.H{
		"status":     "ok",
		"components": components,
	})
}
