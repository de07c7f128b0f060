package server

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/Durgesh2022/yoga-app/docs"
)

// SetupSwagger registers Swagger UI routes. Production advertises https only.
func SetupSwagger(r *gin.Engine, production bool) {
	if production {
		docs.SwaggerInfo.Schemes = []string{"https"}
	}
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}
