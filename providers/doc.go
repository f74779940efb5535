// Package providers contains the generic OAuth2 authorization-code provider
// used by the cloud account service, plus the identity lookup that turns an
// access token into a stable provider account id. Vendor-specific wiring lives
// in the subpackages.
package providers
