package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"contract-tracker/backend/config"
	"contract-tracker/backend/internal/api/handler"
	"contract-tracker/backend/internal/api/middleware"
	"contract-tracker/backend/internal/model"
	"contract-tracker/backend/pkg/jwt"
	"contract-tracker/backend/pkg/redis"
)

// Setup 初始化并返回 Gin 路由引擎
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, db *gorm.DB, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// rdb 为 nil 时不能直接装进接口，否则中间件的 nil 判断失效
	var (
		checker middleware.TokenChecker
		limiter middleware.RateLimiter
	)
	if rdb != nil {
		checker, limiter = rdb, rdb
	}

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(cfg.Server.BodyLimitMB << 20))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db_unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// ── Prometheus 指标 ──
	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	writers := middleware.RoleAuth(model.RoleAdmin, model.RoleIPTMember)
	adminOnly := middleware.RoleAuth(model.RoleAdmin)

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// 认证模块（无需认证）
		auth := v1.Group("/auth")
		{
			auth.POST("/login", middleware.RateLimit(limiter, cfg.RateLimit.LoginLimit, cfg.RateLimit.LoginWindow), h.Auth.Login)
			auth.POST("/refresh", h.Auth.RefreshToken)
		}

		// 需要认证的路由
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(jwtMgr, checker))
		{
			// 认证模块（需要认证）
			authorized.POST("/auth/logout", h.Auth.Logout)
			authorized.GET("/auth/me", h.Auth.GetCurrentUser)
			authorized.PUT("/auth/password", h.Auth.ChangePassword)

			// 用户模块
			users := authorized.Group("/users")
			{
				users.GET("", h.User.ListUsers)
				users.GET("/:id", h.User.GetUser)
				users.POST("", adminOnly, h.User.CreateUser)
				users.PUT("/:id", h.User.UpdateUser) // admin 或本人（Service 层鉴权）
				users.DELETE("/:id", adminOnly, h.User.DeleteUser)
				users.POST("/:id/reset-password", adminOnly, h.User.ResetPassword)
			}

			// 拨款类型字典
			authorized.GET("/funding-types", h.Funding.ListFundingTypes)

			// 项目模块
			projects := authorized.Group("/projects")
			{
				projects.GET("", h.Project.ListProjects)
				projects.POST("", writers, h.Project.CreateProject)
				projects.GET("/:id", h.Project.GetProject)
				projects.PUT("/:id", writers, h.Project.UpdateProject)
				projects.DELETE("/:id", adminOnly, h.Project.DeleteProject)

				projects.GET("/:id/members", h.Project.ListMembers)
				projects.POST("/:id/members", writers, h.Project.AddMember)
				projects.DELETE("/:id/members/:user_id", writers, h.Project.RemoveMember)
				projects.POST("/:id/favorite", h.Project.ToggleFavorite)
				projects.GET("/:id/history", h.Project.ListHistory)

				// 里程碑
				projects.GET("/:id/milestones", h.Milestone.ListMilestones)
				projects.POST("/:id/milestones", writers, h.Milestone.BulkCreateMilestones)

				// 批准拨款
				projects.GET("/:id/funding", h.Funding.GetMatrix)
				projects.POST("/:id/funding/first-cell", writers, h.Funding.AddFirstCell)
				projects.POST("/:id/funding/years", writers, h.Funding.AddFiscalYear)
				projects.DELETE("/:id/funding/years/:year", writers, h.Funding.RemoveFiscalYear)
				projects.POST("/:id/funding/types", writers, h.Funding.AddFundingType)
				projects.DELETE("/:id/funding/types/:type_id", writers, h.Funding.RemoveFundingType)
				projects.PUT("/:id/funding/cells", writers, h.Funding.UpdateCells)

				// 合同
				projects.GET("/:id/contracts", h.Contract.ListContracts)
				projects.POST("/:id/contracts", writers, h.Contract.CreateContract)
				projects.GET("/:id/contracts/:cid", h.Contract.GetContract)
				projects.PUT("/:id/contracts/:cid", writers, h.Contract.UpdateContract)
				projects.DELETE("/:id/contracts/:cid", writers, h.Contract.DeleteContract)

				// 导出
				projects.GET("/:id/export/schedule", h.Export.ExportSchedule)
			}

			// 排期编辑会话
			schedule := authorized.Group("/projects/:id/schedule-sessions", writers)
			{
				schedule.POST("", h.Session.OpenSchedule)
				schedule.GET("/:sid", h.Session.GetSchedule)
				schedule.POST("/:sid/rows", h.Session.AddRow)
				schedule.PATCH("/:sid/rows/:row", h.Session.UpdateRowField)
				schedule.POST("/:sid/rows/:row/clear", h.Session.ClearRowDate)
				schedule.DELETE("/:sid/rows/:row", h.Session.DeleteRow)
				schedule.POST("/:sid/save", h.Session.SaveSchedule)
				schedule.POST("/:sid/close", h.Session.CloseSchedule)
			}

			// 拨款矩阵编辑会话
			funding := authorized.Group("/projects/:id/funding-sessions", writers)
			{
				funding.POST("", h.Session.OpenFunding)
				funding.GET("/:sid", h.Session.GetFunding)
				funding.POST("/:sid/first-cell", h.Session.AddFundingFirstCell)
				funding.POST("/:sid/years", h.Session.AddFundingYear)
				funding.DELETE("/:sid/years/:year", h.Session.RemoveFundingYear)
				funding.POST("/:sid/types", h.Session.AddFundingTypeRow)
				funding.DELETE("/:sid/types/:type_id", h.Session.RemoveFundingTypeRow)
				funding.PATCH("/:sid/cells", h.Session.EditFundingCell)
				funding.POST("/:sid/save", h.Session.SaveFunding)
				funding.DELETE("/:sid", h.Session.CloseFunding)
			}

			// 里程碑与依赖
			milestones := authorized.Group("/milestones")
			{
				milestones.GET("/:mid", h.Milestone.GetMilestone)
				milestones.PUT("/:mid", writers, h.Milestone.UpdateMilestone)
				milestones.DELETE("/:mid", writers, h.Milestone.DeleteMilestone)
				milestones.GET("/:mid/predecessors", h.Milestone.ListPredecessors)
				milestones.PUT("/:mid/predecessors", writers, h.Milestone.ReplacePredecessors)
				milestones.GET("/:mid/successors", h.Milestone.ListSuccessors)
			}

			dependencies := authorized.Group("/dependencies", writers)
			{
				dependencies.POST("", h.Milestone.AddDependency)
				dependencies.DELETE("", h.Milestone.RemoveDependency)
			}
		}
	}

	return r
}
