package router

import (
	"github.com/gin-gonic/gin"

	"ml-jobs-platform/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	jobHandler := handler.NewJobHandler(deps)

	// Health and model registry
	r.GET("/health", jobHandler.Health)
	r.GET("/models", jobHandler.ListModels)

	jobs := r.Group("/jobs")
	{
		// POST /jobs - Create a new job
		jobs.POST("", jobHandler.CreateJob)

		// GET /jobs - List jobs with filtering and pagination
		jobs.GET("", jobHandler.ListJobs)

		// GET /jobs/:job_id - Get job details
		jobs.GET("/:job_id", jobHandler.GetJob)

		// DELETE /jobs/:job_id - Delete a job (test-only)
		jobs.DELETE("/:job_id", jobHandler.DeleteJob)
	}

	return r
}
