package courseValidator

import (
	"errors"
	"strings"

	"coursehub/middleware"
	"coursehub/purchases"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New()

// PurchaseIdentity builds the purchases identity from the session set by
// JWTMiddleware and stores it as "purchaseIdentity".
func PurchaseIdentity() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, _ := c.Locals("userId").(string)
		email, _ := c.Locals("email").(string)
		if userID == "" {
			return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
		}

		identity := &purchases.Identity{
			UserID: userID,
			Email:  strings.ToLower(strings.TrimSpace(email)),
		}

		if err := validate.Struct(identity); err != nil {
			errs := make(map[string]string)
			var fieldErrs validator.ValidationErrors
			if errors.As(err, &fieldErrs) {
				for _, fe := range fieldErrs {
					errs[strings.ToLower(fe.Field())] = identityMessage(fe)
				}
			}
			return middleware.ValidationErrorResponse(c, errs)
		}

		c.Locals("purchaseIdentity", identity)
		return c.Next()
	}
}

func identityMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required!"
	case "email":
		return "Email must be a valid email address!"
	default:
		return fe.Field() + " is invalid!"
	}
}
