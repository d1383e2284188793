package courseRoutes

import (
	controllers "coursehub/controllers/course"
	"coursehub/middleware"
	"coursehub/purchases"
	validators "coursehub/validators/course"

	"github.com/gofiber/fiber/v2"
)

// SetupCourseRoutes sets up all user-facing course routes
func SetupCourseRoutes(app *fiber.App, svc *purchases.Service) {
	userGroup := app.Group("/course")

	userGroup.Get("/purchases", middleware.JWTMiddleware, validators.PurchaseIdentity(), controllers.GetPurchases(svc))
	userGroup.Delete("/purchases/cache", middleware.JWTMiddleware, validators.PurchaseIdentity(), controllers.ForgetPurchases(svc))
}
