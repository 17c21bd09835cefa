package api

import (
	"net/http"

	"epiwatch/role-portal/internal/domain"
	"epiwatch/role-portal/internal/service"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(
	router *gin.Engine,
	jwtSecret string,
	authService service.AuthService,
	requestService service.RequestService,
	geoService service.GeoService,
) {
	authHandler := NewAuthHandler(authService)
	taskHandler := NewTaskHandler(requestService)
	geoHandler := NewGeoHandler(geoService)

	authMiddleware := AuthMiddleware(jwtSecret)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	apiV1 := router.Group("/api/v1")
	{
		authGroup := apiV1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
		}
	}

	// Admin-initiated user creation. The service re-checks the actor role;
	// the middleware keeps non-admin traffic out of the handler entirely.
	router.POST("/api/users", authMiddleware, RoleMiddleware(domain.RoleAdmin, domain.RoleSuperadmin), authHandler.CreateUser)

	// --- Upgrade request lifecycle ---
	tasks := router.Group("/tasks")
	tasks.Use(authMiddleware)
	{
		// The applicant's own view of the lifecycle.
		tasks.GET("/my-status", taskHandler.MyStatus)

		// One application endpoint backs both first submission and
		// resubmission after rejection; /submit is an alias.
		tasks.POST("/submit", taskHandler.Apply)
		tasks.POST("/resubmit", taskHandler.Apply)

		// Reviewer console. Privilege is enforced in the service so a
		// non-reviewer gets a clean 403 rather than a routing artifact.
		tasks.GET("/pending", taskHandler.ListPending)
		tasks.POST("/:userId/approve", taskHandler.Approve)
		tasks.POST("/:userId/reject", taskHandler.Reject)
	}

	// Documents are addressed by opaque relative path and opened by the
	// platform URL handler, which cannot attach a bearer header.
	router.GET("/uploads/*path", taskHandler.Document)

	// Bearer-optional location resolution.
	router.POST("/location", OptionalAuthMiddleware(jwtSecret), geoHandler.Resolve)
}
