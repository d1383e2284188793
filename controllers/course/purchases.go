package controllers

import (
	"errors"

	"coursehub/logger"
	"coursehub/middleware"
	"coursehub/purchases"

	"github.com/gofiber/fiber/v2"
)

// GetPurchases lists the courses the session user has access to.
func GetPurchases(svc *purchases.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, ok := c.Locals("purchaseIdentity").(*purchases.Identity)
		if !ok {
			return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
		}

		result, err := svc.GetPurchases(c.UserContext(), *identity)
		if err != nil {
			var fetchErr *purchases.FetchError
			var verifyErr *purchases.VerificationError
			switch {
			case errors.As(err, &fetchErr):
				logger.Error().Err(err).Str("email", identity.Email).Msg("Failed to fetch courses")
				return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to fetch courses!", nil)
			case errors.As(err, &verifyErr):
				logger.Error().Err(err).Str("email", identity.Email).Msg("Failed to verify purchases")
				return middleware.JsonResponse(c, fiber.StatusBadGateway, false, "Failed to verify purchases!", nil)
			default:
				logger.Error().Err(err).Str("email", identity.Email).Msg("Failed to resolve purchases")
				return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to resolve purchases!", nil)
			}
		}

		message := "Purchases fetched successfully!"
		if result.Partial {
			message = "Some purchases could not be verified!"
		}
		return middleware.JsonResponse(c, fiber.StatusOK, true, message, result)
	}
}

// ForgetPurchases drops the session user's cached purchase list, e.g. right
// after a new purchase.
func ForgetPurchases(svc *purchases.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, ok := c.Locals("purchaseIdentity").(*purchases.Identity)
		if !ok {
			return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
		}

		removed := svc.Forget(identity.Email)
		return middleware.JsonResponse(c, fiber.StatusOK, true, "Purchase cache cleared!", fiber.Map{
			"removed": removed,
		})
	}
}
