package errors

// Error codes returned in the "code" field of every error body.
// Format: CATEGORY_SPECIFIC_DETAIL

const (
	// Authentication
	AuthUnauthorized       = "AUTH_UNAUTHORIZED"
	AuthInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	AuthTokenExpired       = "AUTH_TOKEN_EXPIRED"
	AuthTokenInvalid       = "AUTH_TOKEN_INVALID"
	AuthUsernameExists     = "AUTH_USERNAME_EXISTS"
	AuthWeakPassword       = "AUTH_WEAK_PASSWORD"
	AuthIncorrectPassword  = "AUTH_INCORRECT_PASSWORD"

	// Authorization
	AuthzForbidden = "AUTHZ_FORBIDDEN"
	AuthzAdminOnly = "AUTHZ_ADMIN_ONLY"

	// Validation
	ValidationInvalidInput = "VALIDATION_INVALID_INPUT"
	ValidationInvalidID    = "VALIDATION_INVALID_ID"
	ValidationRequired     = "VALIDATION_REQUIRED"

	// Resources
	ResourceNotFound      = "RESOURCE_NOT_FOUND"
	ResourceAlreadyExists = "RESOURCE_ALREADY_EXISTS"
	ResourceConflict      = "RESOURCE_CONFLICT"

	// Cart
	CartItemNotFound = "CART_ITEM_NOT_FOUND"

	// Orders
	OrderInvalidItems      = "ORDER_INVALID_ITEMS"
	OrderMissingFields     = "ORDER_MISSING_FIELDS"
	OrderTotalMismatch     = "ORDER_TOTAL_MISMATCH"
	OrderNotFound          = "ORDER_NOT_FOUND"
	OrderInvalidStatus     = "ORDER_INVALID_STATUS"
	OrderPlacementFailed   = "ORDER_PLACEMENT_FAILED"
	OrderCheckoutInFlight  = "ORDER_CHECKOUT_IN_PROGRESS"
	OrderStatusUpdateFails = "ORDER_STATUS_UPDATE_FAILED"

	// Reviews
	ReviewNotFound      = "REVIEW_NOT_FOUND"
	ReviewInvalidRating = "REVIEW_INVALID_RATING"
	ReviewNotAllowed    = "REVIEW_NOT_ALLOWED"
	ReviewAlreadyExists = "REVIEW_ALREADY_EXISTS"

	// Support messages
	MessageNotFound = "MESSAGE_NOT_FOUND"

	// Internal
	InternalServerError = "INTERNAL_SERVER_ERROR"
	InternalStoreBusy   = "INTERNAL_STORE_BUSY"
	InternalUnavailable = "INTERNAL_UNAVAILABLE"
)
