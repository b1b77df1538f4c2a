// internal/i18n/keys.go
package i18n

// Translation keys constants
const (
	// Authentication
	KeyAuthRequired           = "auth.required"
	KeyAuthInvalidToken       = "auth.invalid_token"
	KeyAuthTokenExpired       = "auth.token_expired"
	KeyAuthInvalidCredentials = "auth.invalid_credentials"
	KeyAuthLoginSuccess       = "auth.login_success"
	KeyAuthRegisterSuccess    = "auth.register_success"

	// Accounts
	KeyAccountProfileUpdated = "account.profile_updated"

	// Assets
	KeyAssetCreated           = "asset.created"
	KeyAssetNotFound          = "asset.not_found"
	KeyAssetNotForSale        = "asset.not_for_sale"
	KeyAssetContentRegistered = "asset.content_registered"

	// Purchases
	KeyPurchaseConfirmed          = "purchase.confirmed"
	KeyPurchaseAlreadyOwned       = "purchase.already_owned"
	KeyPurchaseVerificationFailed = "purchase.verification_failed"
	KeyPurchasePending            = "purchase.pending"
	KeyPurchaseLedgerUnavailable  = "purchase.ledger_unavailable"
	KeyPurchaseBuyerRequired      = "purchase.buyer_required"

	// Streaming and storage
	KeyStreamAccessDenied        = "stream.access_denied"
	KeyStreamContentUnavailable  = "stream.content_unavailable"
	KeyStreamRangeInvalid        = "stream.range_not_satisfiable"
	KeyStorageUploadFailed       = "storage.upload_failed"
	KeyStorageRegistrationFailed = "storage.registration_failed"

	// Subscriptions
	KeySubscriptionCreated   = "subscription.created"
	KeySubscriptionCancelled = "subscription.cancelled"

	// Generic error kinds
	KeyErrorForbidden = "error.forbidden"
	KeyErrorConflict  = "error.conflict"
	KeyErrorNotFound  = "error.not_found"
	KeyErrorInternal  = "error.internal"
	KeyRateLimited    = "error.rate_limited"

	// Validation
	KeyValidationRequired = "validation.required"
	KeyValidationInvalid  = "validation.invalid"
)
